package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/greq"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "greq.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, Validate(cfg))

	assert.Equal(t, Version, cfg.Version)
	assert.Equal(t, 30*time.Second, cfg.Timeout())
	assert.True(t, *cfg.Client.FollowRedirects)
	assert.Equal(t, RetryBackoffLinear, cfg.Retry.Backoff)
	assert.Equal(t, AuthTypeNone, cfg.Auth.Type)
	assert.Equal(t, "vitepress", cfg.Docs.Format)
	assert.Equal(t, ":8080", cfg.Echo.Addr)
	assert.Equal(t, LogLevelInfo, cfg.Logging.Level)
	assert.Nil(t, cfg.RateLimiter())
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `version: "1.0"
client:
  timeout: 5s
  follow_redirects: false
  headers:
    Accept: application/json
retry:
  backoff: EXPONENTIAL
  initial_delay: 100ms
  max_delay: 2s
  max_retries: 3
rate_limit:
  requests_per_second: 5
docs:
  nav: docs/nav.yaml
  dir: docs
  format: Hugo
  check:
    every: 30m
logging:
  level: DEBUG
  format: json
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 5*time.Second, cfg.Timeout())
	assert.False(t, cfg.ClientOptions().FollowRedirects)
	assert.Equal(t, "application/json", cfg.Client.Headers["Accept"])

	policy := cfg.RetryPolicy()
	assert.Equal(t, greq.BackoffExponential, policy.Mode)
	assert.Equal(t, 100*time.Millisecond, policy.Initial)
	assert.Equal(t, 2*time.Second, policy.Max)
	assert.Equal(t, 3, policy.MaxRetries)

	limiter := cfg.RateLimiter()
	require.NotNil(t, limiter)
	assert.Equal(t, 1, limiter.Burst())

	assert.Equal(t, "hugo", cfg.Docs.Format)
	assert.Equal(t, 30*time.Minute, cfg.CheckEvery())
	assert.Equal(t, 10*time.Second, cfg.CheckTimeout())
	assert.Equal(t, LogLevelDebug, cfg.Logging.Level)
	assert.Equal(t, LogFormatJSON, cfg.Logging.Format)
}

func TestLoadExpandsEnvironment(t *testing.T) {
	t.Setenv("GREQ_TEST_TOKEN", "s3cret")
	path := writeConfig(t, "auth:\n  type: bearer\n  token: ${GREQ_TEST_TOKEN}\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "s3cret", cfg.Auth.Token)
}

func TestLoadReadsDotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Cleanup(func() { _ = os.Unsetenv("GREQ_DOTENV_USER") })
	require.NoError(t, os.WriteFile(".env", []byte("GREQ_DOTENV_USER=alice\n"), 0o600))
	require.NoError(t, os.WriteFile("greq.yaml", []byte("auth:\n  type: basic\n  username: ${GREQ_DOTENV_USER}\n"), 0o600))

	cfg, err := Load("greq.yaml")
	require.NoError(t, err)
	assert.Equal(t, "alice", cfg.Auth.Username)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.True(t, greq.HasCategory(err, greq.CategoryConfig))
}

func TestLoadOrDefault(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope.yaml")

	cfg, err := LoadOrDefault(missing, false)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	_, err = LoadOrDefault(missing, true)
	assert.Error(t, err)
}

func TestParseRejectsUnsupportedVersion(t *testing.T) {
	_, err := Parse([]byte(`version: "2.0"`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported configuration version")
}

func TestParseRejectsUnknownEnums(t *testing.T) {
	_, err := Parse([]byte("retry:\n  backoff: random\n"))
	assert.Error(t, err)

	_, err = Parse([]byte("auth:\n  type: kerberos\n"))
	assert.Error(t, err)
}

func TestValidateReportsAllProblems(t *testing.T) {
	_, err := Parse([]byte(`client:
  timeout: soon
retry:
  max_retries: -1
docs:
  format: pdf
`))
	require.Error(t, err)
	assert.True(t, greq.HasCategory(err, greq.CategoryConfig))

	var merr *multierror.Error
	require.ErrorAs(t, err, &merr)
	assert.Len(t, merr.Errors, 3)
}

func TestParseDuration(t *testing.T) {
	tests := map[string]time.Duration{
		"":     0,
		"90":   90 * time.Second,
		"1.5":  1500 * time.Millisecond,
		"2m":   2 * time.Minute,
		"1h5m": time.Hour + 5*time.Minute,
	}
	for in, want := range tests {
		got, err := ParseDuration(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseDuration("later")
	assert.Error(t, err)
}

func TestNormalizeHelpers(t *testing.T) {
	assert.Equal(t, RetryBackoffFixed, NormalizeRetryBackoff(" Fixed "))
	assert.Equal(t, RetryBackoffMode(""), NormalizeRetryBackoff("jitter"))
	assert.Equal(t, AuthTypeBearer, NormalizeAuthType("token"))
	assert.Equal(t, AuthTypeAWS, NormalizeAuthType("SigV4"))
	assert.Equal(t, LogLevelWarn, NormalizeLogLevel("warning"))
	assert.Equal(t, LogLevelInfo, NormalizeLogLevel("verbose"))
	assert.Equal(t, LogFormatText, NormalizeLogFormat("logfmt"))
}
