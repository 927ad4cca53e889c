package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"

	"git.home.luguber.info/inful/greq"
	"git.home.luguber.info/inful/greq/internal/config"
	"git.home.luguber.info/inful/greq/internal/logfields"
)

// RequestCmd sends a single HTTP request using the client, retry, rate limit
// and auth settings of the configuration.
type RequestCmd struct {
	Method string `arg:"" help:"HTTP method (GET, POST, PUT, PATCH, DELETE, HEAD, OPTIONS)."`
	URL    string `arg:"" name:"url" help:"Absolute request URL."`

	Headers     []string `short:"H" name:"header" help:"Request header as 'Key: Value'. Repeatable."`
	Query       []string `short:"q" name:"query" help:"Query parameter as key=value. Repeatable."`
	JSON        string   `name:"json" xor:"body" help:"JSON request body."`
	Data        string   `short:"d" name:"data" xor:"body" help:"Raw request body; @path reads it from a file."`
	Form        []string `short:"F" name:"form" xor:"body" help:"Form field as key=value; key=@path uploads a file as multipart. Repeatable."`
	ContentType string   `name:"content-type" help:"Override the Content-Type of the body."`

	User   string `short:"u" name:"user" xor:"auth" help:"Basic auth credentials as user:password."`
	Bearer string `name:"bearer" xor:"auth" help:"Bearer token."`
	NoAuth bool   `name:"no-auth" xor:"auth" help:"Ignore the auth section of the configuration."`

	Retries int  `name:"retries" default:"-1" help:"Override the configured number of retries."`
	Include bool `short:"i" name:"include" help:"Print the status line and response headers."`
	Fail    bool `name:"fail" help:"Fail with a status error on non-2xx responses."`
}

func (r *RequestCmd) Run(g *Global, root *CLI) error {
	cfg, err := root.Settings()
	if err != nil {
		return err
	}

	req, err := r.build(cfg, g)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	resp, err := req.ExecuteContext(ctx)
	if err != nil {
		return err
	}
	defer resp.Close()

	g.Logger.Debug("Request complete",
		logfields.Method(string(req.Method)),
		logfields.URL(req.Url),
		logfields.Status(resp.StatusCode),
		logfields.Attempt(resp.Attempts),
		logfields.DurationMS(float64(resp.Duration.Milliseconds())))

	if r.Include {
		writeHead(g.Stdout, resp)
	}
	if r.Fail {
		if err := resp.EnsureSuccess(); err != nil {
			return err
		}
	}

	body, err := resp.BodyReader()
	if err != nil {
		return err
	}
	defer body.Close()
	if _, err := io.Copy(g.Stdout, body); err != nil {
		return greq.WrapError(err, greq.CategoryNetwork, "failed to read response body").Build()
	}
	return nil
}

// build assembles the request. Configured headers are applied first so
// that command line headers override them.
func (r *RequestCmd) build(cfg *config.Config, g *Global) (*greq.Request, error) {
	req := greq.NewRequest(greq.Method(strings.ToUpper(r.Method)), r.URL).
		WithClient(cfg.HTTPClient()).
		WithRateLimiter(cfg.RateLimiter()).
		WithLogger(g.Logger)

	for _, k := range sortedKeys(cfg.Client.Headers) {
		req.WithHeader(k, cfg.Client.Headers[k])
	}
	for _, h := range r.Headers {
		k, v, ok := strings.Cut(h, ":")
		if !ok {
			return nil, usageError("header must be 'Key: Value'", "header", h)
		}
		req.WithHeader(strings.TrimSpace(k), strings.TrimSpace(v))
	}
	for _, q := range r.Query {
		k, v, ok := strings.Cut(q, "=")
		if !ok {
			return nil, usageError("query parameter must be key=value", "query", q)
		}
		req.WithQueryParam(k, v)
	}

	if cfg.Client.RequestID {
		req.WithRequestID()
	}
	if cfg.Client.Tracing {
		req.WithTracing()
	}

	policy := cfg.RetryPolicy()
	if r.Retries >= 0 {
		policy.MaxRetries = r.Retries
	}
	if policy.MaxRetries > 0 {
		req.WithRetry(policy)
	}

	if err := r.applyBody(req); err != nil {
		return nil, err
	}

	auth, err := r.authorization(cfg)
	if err != nil {
		return nil, err
	}
	if auth != nil {
		req.WithAuth(auth)
	}
	return req, nil
}

func (r *RequestCmd) applyBody(req *greq.Request) error {
	switch {
	case r.JSON != "":
		req.WithJSONBody(r.JSON, r.ContentType)
	case r.Data != "":
		data := []byte(r.Data)
		if path, ok := strings.CutPrefix(r.Data, "@"); ok {
			b, err := os.ReadFile(path) // #nosec G304 -- operator supplied path
			if err != nil {
				return greq.WrapError(err, greq.CategoryValidation, "failed to read body file").
					WithContext("path", path).
					Build()
			}
			data = b
		}
		req.WithByteBody(data)
		if r.ContentType != "" {
			req.WithHeader("Content-Type", r.ContentType)
		}
	case len(r.Form) > 0:
		return r.applyForm(req)
	}
	return nil
}

// applyForm sends a urlencoded form unless a field uploads a file, in which
// case the whole form is multipart.
func (r *RequestCmd) applyForm(req *greq.Request) error {
	type pair struct{ key, value string }
	pairs := make([]pair, 0, len(r.Form))
	multipart := false
	for _, f := range r.Form {
		k, v, ok := strings.Cut(f, "=")
		if !ok {
			return usageError("form field must be key=value", "form", f)
		}
		if strings.HasPrefix(v, "@") {
			multipart = true
		}
		pairs = append(pairs, pair{k, v})
	}

	if !multipart {
		values := make(map[string][]string, len(pairs))
		for _, p := range pairs {
			values[p.key] = append(values[p.key], p.value)
		}
		req.WithUrlencodedFormBody(values, r.ContentType)
		return nil
	}

	fields := make([]*greq.MultipartField, 0, len(pairs))
	for _, p := range pairs {
		path, isFile := strings.CutPrefix(p.value, "@")
		if !isFile {
			fields = append(fields, greq.NewMultipartField(p.key).WithStringValue(p.value))
			continue
		}
		f, err := os.Open(path) // #nosec G304 -- operator supplied path
		if err != nil {
			return greq.WrapError(err, greq.CategoryValidation, "failed to open upload").
				WithContext("path", path).
				Build()
		}
		fields = append(fields, greq.NewMultipartField(p.key).WithFile(f))
	}
	req.WithMultipartFormBody(fields)
	return nil
}

func (r *RequestCmd) authorization(cfg *config.Config) (greq.Authorization, error) {
	switch {
	case r.User != "":
		user, pass, _ := strings.Cut(r.User, ":")
		return &greq.BasicAuth{Username: user, Password: pass}, nil
	case r.Bearer != "":
		return &greq.BearerAuth{Token: r.Bearer}, nil
	case r.NoAuth || cfg.Auth.IsZero():
		return nil, nil
	default:
		return cfg.Auth.Authorization()
	}
}

func writeHead(w io.Writer, resp *greq.Response) {
	fmt.Fprintf(w, "%s %s\n", resp.Response.Proto, resp.Response.Status)
	for _, k := range sortedKeys(resp.Headers) {
		for _, v := range resp.Headers[k] {
			fmt.Fprintf(w, "%s: %s\n", k, v)
		}
	}
	fmt.Fprintln(w)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func usageError(msg, key, value string) error {
	return greq.NewError(greq.CategoryValidation, msg).WithContext(key, value).Build()
}
