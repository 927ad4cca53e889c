package greq

import (
	"net/http"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// TestDefaultRetryPolicy verifies the baseline default values.
func TestDefaultRetryPolicy(t *testing.T) {
	p := DefaultRetryPolicy()
	if p.Mode != BackoffLinear {
		t.Fatalf("expected linear default mode got %s", p.Mode)
	}
	if p.Initial != time.Second {
		t.Fatalf("expected initial 1s got %v", p.Initial)
	}
	if p.Max != 30*time.Second {
		t.Fatalf("expected max 30s got %v", p.Max)
	}
	if p.MaxRetries != 2 {
		t.Fatalf("expected max retries 2 got %d", p.MaxRetries)
	}
}

// TestNewRetryPolicyOverrides checks override precedence and clamping when initial > max.
func TestNewRetryPolicyOverrides(t *testing.T) {
	p := NewRetryPolicy(BackoffFixed, 5*time.Second, 2*time.Second, 5)
	if p.Initial != 2*time.Second {
		t.Fatalf("expected clamped initial 2s got %v", p.Initial)
	}
	if p.Max != 2*time.Second {
		t.Fatalf("expected max 2s got %v", p.Max)
	}
	if p.Mode != BackoffFixed {
		t.Fatalf("expected fixed mode got %s", p.Mode)
	}
	if p.MaxRetries != 5 {
		t.Fatalf("expected maxRetries 5 got %d", p.MaxRetries)
	}

	// Negative retries keep the default; zero disables retrying.
	if p := NewRetryPolicy("", 0, 0, -1); p.MaxRetries != 2 {
		t.Fatalf("expected default retries for -1 got %d", p.MaxRetries)
	}
	if p := NewRetryPolicy("", 0, 0, 0); p.MaxRetries != 0 {
		t.Fatalf("expected zero retries got %d", p.MaxRetries)
	}
}

// TestDelayModes ensures fixed, linear, exponential behave and respect cap.
func TestDelayModes(t *testing.T) {
	fixed := NewRetryPolicy(BackoffFixed, 100*time.Millisecond, 500*time.Millisecond, 3)
	for i := 1; i <= 3; i++ {
		if d := fixed.Delay(i); d != 100*time.Millisecond {
			t.Fatalf("fixed attempt %d expected 100ms got %v", i, d)
		}
	}

	linear := NewRetryPolicy(BackoffLinear, 100*time.Millisecond, 250*time.Millisecond, 5)
	cases := []struct {
		attempt int
		want    time.Duration
	}{{1, 100 * time.Millisecond}, {2, 200 * time.Millisecond}, {3, 250 * time.Millisecond}, {4, 250 * time.Millisecond}}
	for _, c := range cases {
		if got := linear.Delay(c.attempt); got != c.want {
			t.Fatalf("linear attempt %d expected %v got %v", c.attempt, c.want, got)
		}
	}

	exp := NewRetryPolicy(BackoffExponential, 50*time.Millisecond, 160*time.Millisecond, 5)
	expCases := []struct {
		attempt int
		want    time.Duration
	}{{1, 50 * time.Millisecond}, {2, 100 * time.Millisecond}, {3, 160 * time.Millisecond}, {4, 160 * time.Millisecond}, {40, 160 * time.Millisecond}}
	for _, c := range expCases {
		if got := exp.Delay(c.attempt); got != c.want {
			t.Fatalf("exp attempt %d expected %v got %v", c.attempt, c.want, got)
		}
	}
}

// TestDelayEdgeCases ensures non-positive attempts yield zero.
func TestDelayEdgeCases(t *testing.T) {
	p := NewRetryPolicy(BackoffLinear, 10*time.Millisecond, 20*time.Millisecond, 1)
	if d := p.Delay(0); d != 0 {
		t.Fatalf("attempt 0 expected 0 got %v", d)
	}
	if d := p.Delay(-1); d != 0 {
		t.Fatalf("attempt -1 expected 0 got %v", d)
	}
}

func TestRetryPolicyValidate(t *testing.T) {
	badInitial := RetryPolicy{Mode: BackoffLinear, Initial: 0, Max: time.Second, MaxRetries: 1}
	if err := badInitial.Validate(); err == nil {
		t.Fatalf("expected error for zero initial")
	}
	badMax := RetryPolicy{Mode: BackoffLinear, Initial: time.Second, Max: 0, MaxRetries: 1}
	if err := badMax.Validate(); err == nil {
		t.Fatalf("expected error for zero max")
	}
	badRetries := RetryPolicy{Mode: BackoffLinear, Initial: time.Second, Max: 2 * time.Second, MaxRetries: -1}
	if err := badRetries.Validate(); err == nil {
		t.Fatalf("expected error for negative retries")
	}
	good := RetryPolicy{Mode: BackoffLinear, Initial: time.Second, Max: 2 * time.Second, MaxRetries: 0}
	if err := good.Validate(); err != nil {
		t.Fatalf("unexpected validation error: %v", err)
	}
}

func TestUnknownModeFallsBack(t *testing.T) {
	p := NewRetryPolicy("weird", 250*time.Millisecond, 500*time.Millisecond, 1)
	if p.Mode != BackoffLinear {
		t.Fatalf("unknown mode should fall back to linear got %s", p.Mode)
	}
	if m := NormalizeBackoffMode(" Exponential "); m != BackoffExponential {
		t.Fatalf("expected exponential got %q", m)
	}
}

func TestRetriesStatus(t *testing.T) {
	p := DefaultRetryPolicy()
	for _, code := range []int{http.StatusTooManyRequests, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout} {
		if !p.RetriesStatus(code) {
			t.Fatalf("expected %d to be retried", code)
		}
	}
	if p.RetriesStatus(http.StatusInternalServerError) {
		t.Fatalf("500 is not transient by default")
	}

	p.RetryOnStatus = []int{http.StatusInternalServerError}
	if !p.RetriesStatus(http.StatusInternalServerError) || p.RetriesStatus(http.StatusServiceUnavailable) {
		t.Fatalf("custom status list should replace the defaults")
	}
}

// TestNewBackOffFollowsDelay checks the backoff sequence stops after MaxRetries.
func TestNewBackOffFollowsDelay(t *testing.T) {
	p := NewRetryPolicy(BackoffLinear, 10*time.Millisecond, 25*time.Millisecond, 3)
	b := p.NewBackOff()
	want := []time.Duration{10 * time.Millisecond, 20 * time.Millisecond, 25 * time.Millisecond, backoff.Stop}
	for i, w := range want {
		if got := b.NextBackOff(); got != w {
			t.Fatalf("step %d expected %v got %v", i+1, w, got)
		}
	}

	fixed := NewRetryPolicy(BackoffFixed, 5*time.Millisecond, 5*time.Millisecond, 0).NewBackOff()
	if got := fixed.NextBackOff(); got != backoff.Stop {
		t.Fatalf("zero retries should stop immediately, got %v", got)
	}
}
