package config

import (
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"git.home.luguber.info/inful/greq"
)

// ClientOptions converts the client section for greq.NewClient.
func (c *Config) ClientOptions() greq.ClientOptions {
	opts := greq.DefaultClientOptions()
	opts.Timeout = c.Timeout()
	if c.Client.FollowRedirects != nil {
		opts.FollowRedirects = *c.Client.FollowRedirects
	}
	if c.Client.MaxRedirects > 0 {
		opts.MaxRedirects = c.Client.MaxRedirects
	}
	opts.InsecureSkipVerify = c.Client.InsecureSkipVerify
	opts.ForceHTTP2 = !c.Client.DisableHTTP2
	return opts
}

// HTTPClient builds the client described by the client section.
func (c *Config) HTTPClient() *http.Client {
	return greq.NewClient(c.ClientOptions())
}

// Timeout is the per-request timeout; zero means none.
func (c *Config) Timeout() time.Duration {
	d, _ := ParseDuration(c.Client.Timeout)
	return d
}

// RetryPolicy converts the retry section. MaxRetries of zero disables retries.
func (c *Config) RetryPolicy() greq.RetryPolicy {
	initial, _ := ParseDuration(c.Retry.InitialDelay)
	maxDelay, _ := ParseDuration(c.Retry.MaxDelay)
	return greq.NewRetryPolicy(greq.BackoffMode(c.Retry.Backoff), initial, maxDelay, c.Retry.MaxRetries)
}

// RateLimiter returns the shared limiter, or nil when limiting is disabled.
func (c *Config) RateLimiter() *rate.Limiter {
	if c.RateLimit.RequestsPerSecond <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(c.RateLimit.RequestsPerSecond), c.RateLimit.Burst)
}

// CheckTimeout is the per-link timeout of the docs checker.
func (c *Config) CheckTimeout() time.Duration {
	d, _ := ParseDuration(c.Docs.Check.Timeout)
	return d
}

// CheckEvery is the interval of scheduled link checks; zero means run once.
func (c *Config) CheckEvery() time.Duration {
	d, _ := ParseDuration(c.Docs.Check.Every)
	return d
}
