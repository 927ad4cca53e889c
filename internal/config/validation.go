package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/cast"

	"git.home.luguber.info/inful/greq"
)

// Validate checks a defaulted configuration and reports every problem at once.
func Validate(cfg *Config) error {
	var result *multierror.Error
	add := func(format string, args ...any) {
		result = multierror.Append(result, fmt.Errorf(format, args...))
	}

	checkDuration := func(field, raw string, allowZero bool) {
		d, err := ParseDuration(raw)
		if err != nil {
			add("%s: invalid duration %q", field, raw)
			return
		}
		if d < 0 || (!allowZero && d == 0) {
			add("%s: must be positive, got %s", field, raw)
		}
	}

	checkDuration("client.timeout", cfg.Client.Timeout, true)
	if cfg.Client.MaxRedirects < 0 {
		add("client.max_redirects: must not be negative")
	}

	checkDuration("retry.initial_delay", cfg.Retry.InitialDelay, false)
	checkDuration("retry.max_delay", cfg.Retry.MaxDelay, false)
	if cfg.Retry.MaxRetries < 0 {
		add("retry.max_retries: must not be negative")
	}

	if cfg.RateLimit.RequestsPerSecond < 0 {
		add("rate_limit.requests_per_second: must not be negative")
	}

	validateAuth(&cfg.Auth, add)

	if cfg.Docs.Check.Concurrency < 0 {
		add("docs.check.concurrency: must not be negative")
	}
	checkDuration("docs.check.timeout", cfg.Docs.Check.Timeout, true)
	if cfg.Docs.Check.Every != "" {
		checkDuration("docs.check.every", cfg.Docs.Check.Every, false)
	}
	switch cfg.Docs.Format {
	case "vitepress", "hugo", "json", "yaml":
	default:
		add("docs.format: unsupported format %q", cfg.Docs.Format)
	}

	if err := result.ErrorOrNil(); err != nil {
		return greq.NewError(greq.CategoryConfig, "configuration validation failed").
			WithCause(err).
			WithContext("problems", len(result.Errors)).
			Build()
	}
	return nil
}

func validateAuth(a *AuthConfig, add func(string, ...any)) {
	switch a.Type {
	case AuthTypeNone:
	case AuthTypeBasic, AuthTypeNTLM:
		if a.Username == "" {
			add("auth.username: required for %s auth", a.Type)
		}
	case AuthTypeBearer:
		if a.Token == "" {
			add("auth.token: required for bearer auth")
		}
	case AuthTypeHeader:
		if a.Header == "" {
			add("auth.header: required for header auth")
		}
	case AuthTypeJWT:
		alg := strings.ToUpper(a.JWT.Algorithm)
		switch {
		case strings.HasPrefix(alg, "HS"):
			if a.JWT.Secret == "" {
				add("auth.jwt.secret: required for %s", alg)
			}
		case strings.HasPrefix(alg, "RS"), strings.HasPrefix(alg, "PS"), strings.HasPrefix(alg, "ES"):
			if a.JWT.KeyFile == "" {
				add("auth.jwt.key_file: required for %s", alg)
			}
		default:
			add("auth.jwt.algorithm: unsupported algorithm %q", a.JWT.Algorithm)
		}
	case AuthTypeOAuth2:
		o := a.OAuth2
		if o.ClientID == "" {
			add("auth.oauth2.client_id: required")
		}
		if o.TokenURL == "" && o.DiscoveryURL == "" {
			add("auth.oauth2: token_url or discovery_url is required")
		}
		switch greq.Oauth2AuthType(o.Grant) {
		case greq.ClientCredentials, greq.PasswordCredentials, greq.AuthorizationCode:
		case greq.RefreshToken:
			if o.RefreshToken == "" {
				add("auth.oauth2.refresh_token: required for the refresh_token grant")
			}
		default:
			add("auth.oauth2.grant: unsupported grant %q", o.Grant)
		}
	case AuthTypeCert:
		if a.Cert.PKCS12File == "" && (a.Cert.CertFile == "" || a.Cert.KeyFile == "") {
			add("auth.cert: pkcs12_file or cert_file and key_file are required")
		}
	case AuthTypeAWS:
		if a.AWS.AccessKeyID == "" || a.AWS.SecretAccessKey == "" {
			add("auth.aws: access_key_id and secret_access_key are required")
		}
		if a.AWS.Region == "" || a.AWS.Service == "" {
			add("auth.aws: region and service are required")
		}
	}
}

// ParseDuration accepts Go duration strings ("1m30s") and bare numbers of seconds.
func ParseDuration(raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	if secs, err := cast.ToFloat64E(raw); err == nil {
		return time.Duration(secs * float64(time.Second)), nil
	}
	return cast.ToDurationE(raw)
}
