package greq

import (
	"context"
	"crypto/tls"
	"net/http"

	"github.com/Azure/go-ntlmssp"
)

// NTLMAuth negotiates NTLM over a dedicated transport. The negotiator reads
// the credentials from the Basic Authorization header.
type NTLMAuth struct {
	Username string
	Password string

	ForceHttp11        bool
	InsecureSkipVerify bool
}

func (na *NTLMAuth) Prepare(context.Context) error {
	if na.Username == "" {
		return authError("ntlm username cannot be empty").Build()
	}
	return nil
}

func (na *NTLMAuth) Apply(req *http.Request) error {
	req.Header.Set("Authorization", "Basic "+basicToken(na.Username, na.Password))
	return nil
}

func (na *NTLMAuth) WrapTransport(base http.RoundTripper) (http.RoundTripper, error) {
	t := baseTransport(base)
	if na.ForceHttp11 {
		t.ForceAttemptHTTP2 = false
		t.TLSNextProto = map[string]func(string, *tls.Conn) http.RoundTripper{}
	}
	if na.InsecureSkipVerify {
		if t.TLSClientConfig == nil {
			t.TLSClientConfig = &tls.Config{}
		}
		t.TLSClientConfig.InsecureSkipVerify = true //nolint:gosec // opt-in
	}
	return ntlmssp.Negotiator{RoundTripper: t}, nil
}
