package greq

import (
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// BackoffMode enumerates supported backoff strategies for retries.
type BackoffMode string

const (
	BackoffFixed       BackoffMode = "fixed"
	BackoffLinear      BackoffMode = "linear"
	BackoffExponential BackoffMode = "exponential"
)

// NormalizeBackoffMode converts arbitrary user input (case-insensitive) into a typed mode, returning empty string for unknown.
func NormalizeBackoffMode(raw string) BackoffMode {
	switch BackoffMode(strings.ToLower(strings.TrimSpace(raw))) {
	case BackoffFixed:
		return BackoffFixed
	case BackoffLinear:
		return BackoffLinear
	case BackoffExponential:
		return BackoffExponential
	default:
		return ""
	}
}

// RetryPolicy encapsulates retry/backoff settings for transient failures.
type RetryPolicy struct {
	Mode          BackoffMode
	Initial       time.Duration // base delay
	Max           time.Duration // cap for growth
	MaxRetries    int           // retries after the first attempt
	RetryOnStatus []int         // response codes treated as transient
}

// DefaultRetryStatuses are the response codes retried when a policy does not list its own.
var DefaultRetryStatuses = []int{
	http.StatusTooManyRequests,
	http.StatusBadGateway,
	http.StatusServiceUnavailable,
	http.StatusGatewayTimeout,
}

// DefaultRetryPolicy returns a linear policy with a 1s step, a 30s cap and 2 retries.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Mode: BackoffLinear, Initial: time.Second, Max: 30 * time.Second, MaxRetries: 2}
}

// NewRetryPolicy builds a policy from raw config fields; zero/invalid values fall back to defaults.
func NewRetryPolicy(mode BackoffMode, initial, maxDuration time.Duration, maxRetries int) RetryPolicy {
	p := DefaultRetryPolicy()
	if maxRetries >= 0 {
		p.MaxRetries = maxRetries
	}
	if initial > 0 {
		p.Initial = initial
	}
	if maxDuration > 0 {
		p.Max = maxDuration
	}
	if m := NormalizeBackoffMode(string(mode)); m != "" {
		p.Mode = m
	}
	if p.Initial > p.Max {
		p.Initial = p.Max
	}
	return p
}

// Delay returns the backoff delay for the given retry number (1-based: first retry => 1).
func (p RetryPolicy) Delay(retryCount int) time.Duration {
	if retryCount <= 0 {
		return 0
	}
	switch p.Mode {
	case BackoffFixed:
		return p.Initial
	case BackoffExponential:
		if retryCount > 32 {
			return p.Max
		}
		d := p.Initial * (1 << (retryCount - 1))
		if d > p.Max || d <= 0 {
			return p.Max
		}
		return d
	default:
		d := time.Duration(retryCount) * p.Initial
		if d > p.Max {
			return p.Max
		}
		return d
	}
}

// Validate ensures the policy can be applied.
func (p RetryPolicy) Validate() error {
	if p.Initial <= 0 {
		return fmt.Errorf("initial must be >0")
	}
	if p.Max <= 0 {
		return fmt.Errorf("max must be >0")
	}
	if p.MaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative")
	}
	return nil
}

// RetriesStatus reports whether a response code is considered transient.
func (p RetryPolicy) RetriesStatus(code int) bool {
	statuses := p.RetryOnStatus
	if len(statuses) == 0 {
		statuses = DefaultRetryStatuses
	}
	return slices.Contains(statuses, code)
}

// NewBackOff returns a backoff.BackOff yielding Delay(1), Delay(2), ... and
// stopping after MaxRetries.
func (p RetryPolicy) NewBackOff() backoff.BackOff {
	var b backoff.BackOff
	switch p.Mode {
	case BackoffFixed:
		b = backoff.NewConstantBackOff(p.Initial)
	case BackoffExponential:
		eb := backoff.NewExponentialBackOff()
		eb.InitialInterval = p.Initial
		eb.MaxInterval = p.Max
		eb.Multiplier = 2
		eb.RandomizationFactor = 0
		eb.MaxElapsedTime = 0
		eb.Reset()
		b = eb
	default:
		b = &policyBackOff{policy: p}
	}
	return backoff.WithMaxRetries(b, uint64(max(p.MaxRetries, 0)))
}

// policyBackOff adapts Delay to the backoff.BackOff interface.
type policyBackOff struct {
	policy RetryPolicy
	n      int
}

func (b *policyBackOff) NextBackOff() time.Duration {
	b.n++
	return b.policy.Delay(b.n)
}

func (b *policyBackOff) Reset() { b.n = 0 }
