package greq

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"mime/multipart"

	"gopkg.in/yaml.v3"
)

// bodyAccepted records an error when the method does not carry a body.
func (g *Request) bodyAccepted() bool {
	switch g.Method {
	case GET, DELETE, HEAD:
		g.addError(validationError(fmt.Sprintf("cannot have a body with a %s request", g.Method)).
			WithContext("method", string(g.Method)).
			Build())
		return false
	}
	return true
}

func (g *Request) setBody(body []byte) {
	g.body, g.stream, g.hasBody = body, nil, true
}

// contentTypeOr returns the first non-empty override, or def.
func contentTypeOr(def string, override []string) string {
	for _, ct := range override {
		if ct != "" {
			return ct
		}
	}
	return def
}

// WithByteBody sends body verbatim.
func (g *Request) WithByteBody(body []byte) *Request {
	if g.bodyAccepted() {
		g.setBody(bytes.Clone(body))
	}
	return g
}

// WithStringBody sends body verbatim.
func (g *Request) WithStringBody(body string) *Request {
	return g.WithByteBody([]byte(body))
}

// WithReaderBody streams body. The reader is consumed by the first attempt,
// so it is buffered in memory when a retry policy is set.
func (g *Request) WithReaderBody(body io.Reader) *Request {
	if g.bodyAccepted() {
		g.body, g.stream, g.hasBody = nil, body, true
	}
	return g
}

// WithJSONBody marshals body as JSON. A string or []byte is sent as
// pre-marshalled JSON. The Content-Type defaults to application/json.
func (g *Request) WithJSONBody(body any, contentType ...string) *Request {
	return g.withEncodedBody(body, contentTypeOr("application/json", contentType), "json", func(w io.Writer, v any) error {
		return json.NewEncoder(w).Encode(v)
	})
}

// WithXMLBody marshals body as XML. A string or []byte is sent as
// pre-marshalled XML. The Content-Type defaults to application/xml.
func (g *Request) WithXMLBody(body any, contentType ...string) *Request {
	return g.withEncodedBody(body, contentTypeOr("application/xml", contentType), "xml", func(w io.Writer, v any) error {
		return xml.NewEncoder(w).Encode(v)
	})
}

// WithYAMLBody marshals body as YAML. A string or []byte is sent as
// pre-marshalled YAML. The Content-Type defaults to application/yaml.
func (g *Request) WithYAMLBody(body any, contentType ...string) *Request {
	return g.withEncodedBody(body, contentTypeOr("application/yaml", contentType), "yaml", func(w io.Writer, v any) error {
		enc := yaml.NewEncoder(w)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	})
}

func (g *Request) withEncodedBody(body any, contentType, format string, encode func(io.Writer, any) error) *Request {
	if !g.bodyAccepted() {
		return g
	}

	switch val := body.(type) {
	case string:
		g.setBody([]byte(val))
	case []byte:
		g.setBody(bytes.Clone(val))
	default:
		buf := new(bytes.Buffer)
		if err := encode(buf, body); err != nil {
			g.addError(encodingError(fmt.Sprintf("failed to encode %s body", format)).
				WithCause(err).
				WithContext("type", fmt.Sprintf("%T", body)).
				Build())
			return g
		}
		g.setBody(buf.Bytes())
	}

	g.setHeader("Content-Type", contentType)
	return g
}

// WithUrlencodedFormBody sends an application/x-www-form-urlencoded body.
// Accepts url.Values, map[string]string, map[string][]string, map[string][]byte,
// or map[string]any whose values are string-like, numeric, boolean or []string.
func (g *Request) WithUrlencodedFormBody(body any, contentType ...string) *Request {
	if !g.bodyAccepted() {
		return g
	}

	data, errs := toValues(body, "form body")
	if len(errs) > 0 {
		for _, err := range errs {
			g.addError(err)
		}
		return g
	}

	g.setBody([]byte(data.Encode()))
	g.setHeader("Content-Type", contentTypeOr("application/x-www-form-urlencoded", contentType))
	return g
}

// WithMultipartFormBody encodes fields as multipart/form-data.
func (g *Request) WithMultipartFormBody(fields []*MultipartField) *Request {
	if !g.bodyAccepted() {
		return g
	}

	buf := &bytes.Buffer{}
	writer := multipart.NewWriter(buf)

	failed := false
	for _, field := range fields {
		if err := field.AddToWriter(writer); err != nil {
			g.addError(encodingError("failed to add multipart field").
				WithCause(err).
				WithContext("field", field.Key).
				Build())
			failed = true
		}
	}
	if failed {
		return g
	}

	if err := writer.Close(); err != nil {
		g.addError(encodingError("failed to finish multipart body").WithCause(err).Build())
		return g
	}

	g.setBody(buf.Bytes())
	g.setHeader("Content-Type", writer.FormDataContentType())
	return g
}
