package greq

import (
	"context"
	"net/http"
)

// HeaderAuth adds an arbitrary header, e.g. an API key.
type HeaderAuth struct {
	Key   string
	Value string
}

func (ha *HeaderAuth) Prepare(context.Context) error {
	if ha.Key == "" {
		return authError("header auth key cannot be empty").Build()
	}
	return nil
}

func (ha *HeaderAuth) Apply(req *http.Request) error {
	req.Header.Set(ha.Key, ha.Value)
	return nil
}
