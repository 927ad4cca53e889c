package config

import (
	"log/slog"
	"strings"
)

// RetryBackoffMode enumerates supported backoff strategies for retries.
type RetryBackoffMode string

const (
	RetryBackoffFixed       RetryBackoffMode = "fixed"
	RetryBackoffLinear      RetryBackoffMode = "linear"
	RetryBackoffExponential RetryBackoffMode = "exponential"
)

// NormalizeRetryBackoff converts user input (case-insensitive) into a typed mode, returning empty string for unknown.
func NormalizeRetryBackoff(raw string) RetryBackoffMode {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case string(RetryBackoffFixed):
		return RetryBackoffFixed
	case string(RetryBackoffLinear):
		return RetryBackoffLinear
	case string(RetryBackoffExponential):
		return RetryBackoffExponential
	default:
		return ""
	}
}

// AuthType enumerates supported authentication methods.
type AuthType string

const (
	AuthTypeNone   AuthType = "none"
	AuthTypeBasic  AuthType = "basic"
	AuthTypeBearer AuthType = "bearer"
	AuthTypeHeader AuthType = "header"
	AuthTypeJWT    AuthType = "jwt"
	AuthTypeOAuth2 AuthType = "oauth2"
	AuthTypeNTLM   AuthType = "ntlm"
	AuthTypeCert   AuthType = "cert"
	AuthTypeAWS    AuthType = "aws"
)

var authTypes = map[string]AuthType{
	"none":        AuthTypeNone,
	"basic":       AuthTypeBasic,
	"bearer":      AuthTypeBearer,
	"token":       AuthTypeBearer,
	"header":      AuthTypeHeader,
	"jwt":         AuthTypeJWT,
	"oauth2":      AuthTypeOAuth2,
	"oauth":       AuthTypeOAuth2,
	"ntlm":        AuthTypeNTLM,
	"cert":        AuthTypeCert,
	"certificate": AuthTypeCert,
	"aws":         AuthTypeAWS,
	"sigv4":       AuthTypeAWS,
}

// NormalizeAuthType maps user input to an AuthType, returning empty string for unknown.
func NormalizeAuthType(raw string) AuthType {
	return authTypes[strings.ToLower(strings.TrimSpace(raw))]
}

// LogLevel enumerates supported logging levels.
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// NormalizeLogLevel maps user input to a LogLevel, defaulting to info.
func NormalizeLogLevel(raw string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return LogLevelDebug
	case "warn", "warning":
		return LogLevelWarn
	case "error":
		return LogLevelError
	default:
		return LogLevelInfo
	}
}

// SlogLevel converts the level for log/slog.
func (l LogLevel) SlogLevel() slog.Level {
	switch l {
	case LogLevelDebug:
		return slog.LevelDebug
	case LogLevelWarn:
		return slog.LevelWarn
	case LogLevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// LogFormat enumerates supported log output formats.
type LogFormat string

const (
	LogFormatJSON LogFormat = "json"
	LogFormatText LogFormat = "text"
)

// NormalizeLogFormat maps user input to a LogFormat, defaulting to text.
func NormalizeLogFormat(raw string) LogFormat {
	if strings.EqualFold(strings.TrimSpace(raw), "json") {
		return LogFormatJSON
	}
	return LogFormatText
}
