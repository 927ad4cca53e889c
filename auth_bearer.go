package greq

import (
	"context"
	"net/http"
	"strings"
)

// BearerAuth sets the Authorization header to "<Prefix> <Token>".
// Prefix defaults to Bearer; trailing spaces are trimmed.
type BearerAuth struct {
	Token  string
	Prefix string
}

func (ba *BearerAuth) Prepare(context.Context) error {
	if ba.Token == "" {
		return authError("bearer token cannot be empty").Build()
	}
	return nil
}

func (ba *BearerAuth) Apply(req *http.Request) error {
	req.Header.Set("Authorization", prefixed(ba.Prefix, ba.Token))
	return nil
}

// prefixed joins an authorization scheme and credential, defaulting the scheme to Bearer.
func prefixed(prefix, token string) string {
	prefix = strings.TrimRight(prefix, " ")
	if prefix == "" {
		prefix = "Bearer"
	}
	return prefix + " " + token
}
