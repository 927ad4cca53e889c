package greq

import (
	"context"
	"encoding/base64"
	"net/http"
)

// BasicAuth sets the Authorization header with Basic credentials.
type BasicAuth struct {
	Username string
	Password string
}

func (ba *BasicAuth) Prepare(context.Context) error { return nil }

func (ba *BasicAuth) Apply(req *http.Request) error {
	req.Header.Set("Authorization", "Basic "+basicToken(ba.Username, ba.Password))
	return nil
}

func basicToken(username, password string) string {
	return base64.StdEncoding.EncodeToString([]byte(username + ":" + password))
}
