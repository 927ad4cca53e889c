package config

// Default values applied to unset fields.
const (
	DefaultTimeout          = "30s"
	DefaultMaxRedirects     = 10
	DefaultRetryInitial     = "1s"
	DefaultRetryMax         = "30s"
	DefaultCheckConcurrency = 8
	DefaultCheckRate        = 10.0
	DefaultCheckTimeout     = "10s"
	DefaultEchoAddr         = ":8080"
	DefaultDocsFormat       = "vitepress"
)

func applyDefaults(cfg *Config) {
	if cfg.Client.Timeout == "" {
		cfg.Client.Timeout = DefaultTimeout
	}
	if cfg.Client.FollowRedirects == nil {
		follow := true
		cfg.Client.FollowRedirects = &follow
	}
	if cfg.Client.MaxRedirects == 0 {
		cfg.Client.MaxRedirects = DefaultMaxRedirects
	}

	if cfg.Retry.Backoff == "" {
		cfg.Retry.Backoff = RetryBackoffLinear
	}
	if cfg.Retry.InitialDelay == "" {
		cfg.Retry.InitialDelay = DefaultRetryInitial
	}
	if cfg.Retry.MaxDelay == "" {
		cfg.Retry.MaxDelay = DefaultRetryMax
	}

	if cfg.RateLimit.RequestsPerSecond > 0 && cfg.RateLimit.Burst == 0 {
		cfg.RateLimit.Burst = 1
	}

	if cfg.Auth.Type == "" {
		cfg.Auth.Type = AuthTypeNone
	}
	if cfg.Auth.Type == AuthTypeJWT && cfg.Auth.JWT.Algorithm == "" {
		cfg.Auth.JWT.Algorithm = "HS256"
	}
	if cfg.Auth.Type == AuthTypeOAuth2 && cfg.Auth.OAuth2.Grant == "" {
		cfg.Auth.OAuth2.Grant = "client_credentials"
	}

	if cfg.Docs.Format == "" {
		cfg.Docs.Format = DefaultDocsFormat
	}
	if cfg.Docs.Check.Concurrency == 0 {
		cfg.Docs.Check.Concurrency = DefaultCheckConcurrency
	}
	if cfg.Docs.Check.RequestsPerSecond == 0 {
		cfg.Docs.Check.RequestsPerSecond = DefaultCheckRate
	}
	if cfg.Docs.Check.Timeout == "" {
		cfg.Docs.Check.Timeout = DefaultCheckTimeout
	}

	if cfg.Echo.Addr == "" {
		cfg.Echo.Addr = DefaultEchoAddr
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = LogLevelInfo
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = LogFormatText
	}
}
