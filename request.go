package greq

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"

	"git.home.luguber.info/inful/greq/internal/logfields"
	"git.home.luguber.info/inful/greq/internal/version"
)

// Method is the HTTP method of a request.
type Method string

const (
	GET     Method = "GET"
	POST    Method = "POST"
	PUT     Method = "PUT"
	PATCH   Method = "PATCH"
	DELETE  Method = "DELETE"
	HEAD    Method = "HEAD"
	OPTIONS Method = "OPTIONS"
)

var knownMethods = []Method{GET, POST, PUT, PATCH, DELETE, HEAD, OPTIONS}

// DefaultUserAgent is sent when the caller does not set a User-Agent header.
var DefaultUserAgent = "greq/" + version.Version

// RequestIDHeader carries the id generated by WithRequestID.
const RequestIDHeader = "X-Request-ID"

// Request is a fluent HTTP request builder.
//
// Builder methods never fail immediately: problems are collected and
// reported by Validate, which Execute calls before anything is sent.
type Request struct {
	Url    string
	Method Method

	client  *http.Client
	headers http.Header
	query   url.Values

	body    []byte
	stream  io.Reader
	hasBody bool

	auth      Authorization
	timeout   time.Duration
	retry     *RetryPolicy
	limiter   *rate.Limiter
	metrics   *Metrics
	tracing   bool
	requestID bool
	logger    *slog.Logger

	errs []error
}

func NewRequest(method Method, rawURL string) *Request {
	return &Request{
		Method:  method,
		Url:     rawURL,
		headers: make(http.Header),
		query:   make(url.Values),
	}
}

func GetRequest(rawURL string) *Request { return NewRequest(GET, rawURL) }

func PostRequest(rawURL string) *Request { return NewRequest(POST, rawURL) }

func PutRequest(rawURL string) *Request { return NewRequest(PUT, rawURL) }

func PatchRequest(rawURL string) *Request { return NewRequest(PATCH, rawURL) }

func DeleteRequest(rawURL string) *Request { return NewRequest(DELETE, rawURL) }

func HeadRequest(rawURL string) *Request { return NewRequest(HEAD, rawURL) }

// addError records a builder error; it is reported by Validate.
func (g *Request) addError(err error) {
	g.errs = append(g.errs, err)
}

// Errors returns the builder errors collected so far.
func (g *Request) Errors() []error {
	return slices.Clone(g.errs)
}

func (g *Request) setHeader(key, value string) {
	if g.headers == nil {
		g.headers = make(http.Header)
	}
	g.headers.Set(key, value)
}

// WithClient sets the HTTP client used to send the request. A nil client
// selects the shared default client.
func (g *Request) WithClient(client *http.Client) *Request {
	g.client = client
	return g
}

// WithAuth sets the authorization scheme. An Authorization can be passed to
// many requests, which lets token-based schemes reuse their token.
func (g *Request) WithAuth(auth Authorization) *Request {
	if auth == nil {
		g.addError(validationError("authorization cannot be nil").Build())
		return g
	}
	g.auth = auth
	return g
}

// WithHeader sets a header. The value may be any string-like, numeric or boolean value.
// Body functions set Content-Type themselves and override an earlier value.
func (g *Request) WithHeader(key string, value any) *Request {
	if key == "" {
		g.addError(validationError("header key cannot be empty").Build())
		return g
	}

	stv, err := stringValue(value)
	if err != nil {
		g.addError(validationError("header value must be a string, numeric or boolean value").
			WithCause(err).
			WithContext("header", key).
			Build())
		return g
	}
	if stv == "" {
		g.addError(validationError("header value cannot be empty").WithContext("header", key).Build())
		return g
	}

	g.setHeader(key, stv)
	return g
}

// WithHeaders sets multiple headers.
func (g *Request) WithHeaders(headers map[string]any) *Request {
	keys := make([]string, 0, len(headers))
	for k := range headers {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		g.WithHeader(k, headers[k])
	}
	return g
}

// WithQueryParam adds a single query parameter.
func (g *Request) WithQueryParam(key, value string) *Request {
	if g.query == nil {
		g.query = make(url.Values)
	}
	g.query.Add(key, value)
	return g
}

// WithQueryParams adds query parameters from url.Values, map[string]string,
// map[string][]string, map[string][]byte or map[string]any.
func (g *Request) WithQueryParams(params any) *Request {
	values, errs := toValues(params, "query params")
	for _, err := range errs {
		g.addError(err)
	}
	for k, vs := range values {
		for _, v := range vs {
			g.WithQueryParam(k, v)
		}
	}
	return g
}

// WithTimeout bounds the whole exchange, including reading the response body.
func (g *Request) WithTimeout(timeout time.Duration) *Request {
	if timeout < 0 {
		g.addError(validationError("timeout cannot be negative").Build())
		return g
	}
	g.timeout = timeout
	return g
}

// WithRetry retries network errors and transient status codes according to policy.
func (g *Request) WithRetry(policy RetryPolicy) *Request {
	if err := policy.Validate(); err != nil {
		g.addError(validationError("invalid retry policy").WithCause(err).Build())
		return g
	}
	g.retry = &policy
	return g
}

// WithRateLimiter makes every attempt wait for a token from limiter.
func (g *Request) WithRateLimiter(limiter *rate.Limiter) *Request {
	g.limiter = limiter
	return g
}

// WithMetrics records the outcome in m.
func (g *Request) WithMetrics(m *Metrics) *Request {
	g.metrics = m
	return g
}

// WithTracing wraps the transport with OpenTelemetry instrumentation.
func (g *Request) WithTracing() *Request {
	g.tracing = true
	return g
}

// WithRequestID sends a random X-Request-ID unless one is already set.
func (g *Request) WithRequestID() *Request {
	g.requestID = true
	return g
}

// WithLogger sets the logger used for retry diagnostics.
func (g *Request) WithLogger(logger *slog.Logger) *Request {
	g.logger = logger
	return g
}

// Validate reports the errors collected while building the request, then
// checks the URL and method.
func (g *Request) Validate() error {
	if len(g.errs) > 0 {
		return validationError("request has errors").
			WithCause(multierror.Append(nil, g.errs...)).
			WithContext("count", len(g.errs)).
			Build()
	}

	u, err := url.Parse(g.Url)
	if g.Url == "" || err != nil || u.Scheme == "" || u.Host == "" {
		return validationError("url must be absolute and non-empty").
			WithCause(err).
			WithContext("url", g.Url).
			Build()
	}

	if !slices.Contains(knownMethods, g.Method) {
		return validationError("method must be one of GET, POST, PUT, PATCH, DELETE, HEAD, or OPTIONS").
			WithContext("method", string(g.Method)).
			Build()
	}

	return nil
}

// Execute sends the request with a background context.
func (g *Request) Execute() (*Response, error) {
	return g.ExecuteContext(context.Background())
}

// ExecuteContext validates, sends and, when a retry policy is set, retries the request.
func (g *Request) ExecuteContext(ctx context.Context) (*Response, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}

	target := g.targetURL()
	headers := g.finalHeaders()

	client, err := g.httpClient()
	if err != nil {
		return nil, err
	}

	if g.stream != nil && g.retry != nil && g.retry.MaxRetries > 0 {
		data, err := io.ReadAll(g.stream)
		if err != nil {
			return nil, encodingError("failed to buffer request body").WithCause(err).Build()
		}
		g.body, g.stream = data, nil
	}

	if g.auth != nil {
		if err := g.auth.Prepare(ctx); err != nil {
			return nil, err
		}
	}

	var b backoff.BackOff = &backoff.StopBackOff{}
	if g.retry != nil {
		b = g.retry.NewBackOff()
	}
	b = backoff.WithContext(b, ctx)

	start := time.Now()
	for attempt := 1; ; attempt++ {
		if g.limiter != nil {
			if err := g.limiter.Wait(ctx); err != nil {
				return nil, networkError("rate limiter wait aborted").WithCause(err).Build()
			}
		}

		resp, err := g.roundTrip(ctx, client, target, headers)
		if g.shouldRetry(ctx, resp, err) {
			if wait := b.NextBackOff(); wait != backoff.Stop {
				g.log().Debug("Retrying request",
					logfields.Method(string(g.Method)),
					logfields.URL(target),
					logfields.Attempt(attempt),
					logfields.RequestID(headers.Get(RequestIDHeader)),
					logfields.Status(statusOf(resp)),
					logfields.Error(err),
					slog.Duration("wait", wait))
				discard(resp)
				g.metrics.retry(g.Method)
				if err := sleep(ctx, wait); err != nil {
					return nil, networkError("request canceled while waiting to retry").WithCause(err).Build()
				}
				continue
			}
		}

		elapsed := time.Since(start)
		g.metrics.observe(g.Method, statusOf(resp), err, elapsed)
		if err != nil {
			return nil, err
		}
		return &Response{
			StatusCode: resp.StatusCode,
			Headers:    resp.Header,
			Response:   resp,
			Attempts:   attempt,
			Duration:   elapsed,
		}, nil
	}
}

func (g *Request) log() *slog.Logger {
	if g.logger != nil {
		return g.logger
	}
	return slog.Default()
}

// targetURL merges the builder's query parameters into the URL's own query.
func (g *Request) targetURL() string {
	if len(g.query) == 0 {
		return g.Url
	}
	u, _ := url.Parse(g.Url) // already validated
	q := u.Query()
	for k, vs := range g.query {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	u.RawQuery = q.Encode()
	return u.String()
}

func (g *Request) finalHeaders() http.Header {
	headers := g.headers.Clone()
	if headers == nil {
		headers = make(http.Header)
	}
	if headers.Get("User-Agent") == "" {
		headers.Set("User-Agent", DefaultUserAgent)
	}
	if g.requestID && headers.Get(RequestIDHeader) == "" {
		headers.Set(RequestIDHeader, uuid.NewString())
	}
	return headers
}

// httpClient returns a per-execution copy of the client with transport
// wrappers and timeout applied, leaving the caller's client untouched.
func (g *Request) httpClient() (*http.Client, error) {
	base := g.client
	if base == nil {
		base = DefaultClient()
	}
	c := *base

	rt := c.Transport
	if rt == nil {
		rt = http.DefaultTransport
	}
	if tw, ok := g.auth.(TransportWrapper); ok {
		wrapped, err := tw.WrapTransport(rt)
		if err != nil {
			return nil, WrapError(err, CategoryAuth, "failed to configure transport for authorization").Build()
		}
		rt = wrapped
	}
	if g.tracing {
		rt = otelhttp.NewTransport(rt)
	}
	c.Transport = rt

	if g.timeout > 0 {
		c.Timeout = g.timeout
	}
	return &c, nil
}

func (g *Request) roundTrip(ctx context.Context, client *http.Client, target string, headers http.Header) (*http.Response, error) {
	var body io.Reader = http.NoBody
	switch {
	case g.stream != nil:
		body = g.stream
	case g.hasBody:
		body = bytes.NewReader(g.body)
	}

	req, err := http.NewRequestWithContext(ctx, string(g.Method), target, body)
	if err != nil {
		return nil, validationError("failed to create request").
			WithCause(err).
			WithContext("method", string(g.Method)).
			WithContext("url", target).
			Build()
	}
	req.Header = headers.Clone()

	if g.auth != nil {
		if err := g.auth.Apply(req); err != nil {
			return nil, err
		}
	}

	resp, err := client.Do(req)
	if err != nil {
		b := networkError("failed to execute request").
			WithCause(err).
			WithContext("method", string(g.Method)).
			WithContext("url", target)
		if ctx.Err() != nil {
			b = NewError(CategoryNetwork, "request canceled").WithCause(err).WithContext("url", target)
		}
		return nil, b.Build()
	}
	return resp, nil
}

func (g *Request) shouldRetry(ctx context.Context, resp *http.Response, err error) bool {
	if g.retry == nil || ctx.Err() != nil {
		return false
	}
	if err != nil {
		e, ok := AsError(err)
		return ok && e.Retryable()
	}
	return g.retry.RetriesStatus(resp.StatusCode)
}

func statusOf(resp *http.Response) int {
	if resp == nil {
		return 0
	}
	return resp.StatusCode
}

// discard drains a bounded amount of an abandoned response so the connection can be reused.
func discard(resp *http.Response) {
	if resp == nil || resp.Body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	_ = resp.Body.Close()
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// String renders the request line, for logs.
func (g *Request) String() string {
	return fmt.Sprintf("%s %s", g.Method, strings.TrimSpace(g.Url))
}
