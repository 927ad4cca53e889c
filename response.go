package greq

import (
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/html"
	"gopkg.in/yaml.v3"
)

// errorBodyLimit caps how much of an error response is kept for diagnostics.
const errorBodyLimit = 512

// Response wraps the HTTP response. Its body can be consumed exactly once,
// by any one of the Body* methods.
type Response struct {
	StatusCode int
	Headers    http.Header
	Response   *http.Response

	// Attempts is the number of round trips made, including retries.
	Attempts int
	Duration time.Duration

	bodyRead bool
}

func (r *Response) consume() error {
	if r.bodyRead {
		return ErrBodyConsumed
	}
	r.bodyRead = true
	return nil
}

func (r *Response) BodyBytes() ([]byte, error) {
	if err := r.consume(); err != nil {
		return nil, err
	}
	defer r.Response.Body.Close()

	data, err := io.ReadAll(r.Response.Body)
	if err != nil {
		return nil, networkError("failed to read response body").WithCause(err).Build()
	}
	return data, nil
}

func (r *Response) BodyString() (string, error) {
	b, err := r.BodyBytes()
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// BodyReader hands the body to the caller, who must close it.
func (r *Response) BodyReader() (io.ReadCloser, error) {
	if err := r.consume(); err != nil {
		return nil, err
	}
	return r.Response.Body, nil
}

func (r *Response) decode(format string, fn func(io.Reader) error) error {
	if err := r.consume(); err != nil {
		return err
	}
	defer r.Response.Body.Close()

	if err := fn(r.Response.Body); err != nil {
		return decodeError(fmt.Sprintf("failed to decode %s response", format)).
			WithCause(err).
			WithContext("status", r.StatusCode).
			WithContext("content_type", r.Headers.Get("Content-Type")).
			Build()
	}
	return nil
}

func (r *Response) BodyUnmarshalJSON(v any) error {
	return r.decode("json", func(rd io.Reader) error { return json.NewDecoder(rd).Decode(v) })
}

func (r *Response) BodyUnmarshalXML(v any) error {
	return r.decode("xml", func(rd io.Reader) error { return xml.NewDecoder(rd).Decode(v) })
}

func (r *Response) BodyUnmarshalYAML(v any) error {
	return r.decode("yaml", func(rd io.Reader) error { return yaml.NewDecoder(rd).Decode(v) })
}

// BodyHTML parses the body into an HTML node tree.
func (r *Response) BodyHTML() (*html.Node, error) {
	var doc *html.Node
	err := r.decode("html", func(rd io.Reader) error {
		var err error
		doc, err = html.Parse(rd)
		return err
	})
	return doc, err
}

// BodyUnmarshal picks the decoder from the Content-Type header: JSON, XML or
// YAML (including +json/+xml/+yaml suffixes). Other types are a decode error
// and leave the body unread.
func (r *Response) BodyUnmarshal(v any) error {
	mediaType, _, _ := mime.ParseMediaType(r.Headers.Get("Content-Type"))
	switch {
	case mediaType == "application/json" || strings.HasSuffix(mediaType, "+json"):
		return r.BodyUnmarshalJSON(v)
	case mediaType == "application/xml" || mediaType == "text/xml" || strings.HasSuffix(mediaType, "+xml"):
		return r.BodyUnmarshalXML(v)
	case mediaType == "application/yaml" || mediaType == "application/x-yaml" ||
		mediaType == "text/yaml" || strings.HasSuffix(mediaType, "+yaml"):
		return r.BodyUnmarshalYAML(v)
	default:
		return decodeError("cannot detect decoder for content type").
			WithContext("content_type", r.Headers.Get("Content-Type")).
			Build()
	}
}

// IsSuccess reports a 2xx status.
func (r *Response) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// EnsureSuccess returns nil for 2xx responses. Otherwise it consumes the
// body and returns an error carrying the status and the start of the body;
// 401/403 are auth errors and 404 is not_found.
func (r *Response) EnsureSuccess() error {
	if r.IsSuccess() {
		return nil
	}

	var bodyStr string
	if !r.bodyRead {
		r.bodyRead = true
		limited, _ := io.ReadAll(io.LimitReader(r.Response.Body, errorBodyLimit))
		_ = r.Response.Body.Close()
		bodyStr = strings.ReplaceAll(string(limited), "\n", " ")
	}

	category := CategoryStatus
	switch r.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		category = CategoryAuth
	case http.StatusNotFound:
		category = CategoryNotFound
	}

	b := NewError(category, fmt.Sprintf("unexpected response status: %s", r.Response.Status)).
		WithContext("code", r.StatusCode).
		WithContext("response", bodyStr)
	if r.Response.Request != nil {
		b = b.WithContext("url", r.Response.Request.URL.String())
	}
	if r.StatusCode >= 500 || r.StatusCode == http.StatusTooManyRequests {
		b = b.Retryable()
	}
	return b.Build()
}

// Close releases the body if it was never consumed. Safe to call repeatedly.
func (r *Response) Close() {
	if r.bodyRead {
		return
	}
	r.bodyRead = true
	_ = r.Response.Body.Close()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
