package greq

import (
	"context"
	"net/http"
)

// Authorization decorates outgoing requests with credentials.
//
// Prepare runs once per Execute before the first attempt and may fetch or
// refresh tokens. Apply runs for every attempt on the fully built request, so
// signature schemes see the final URL, headers and body. An Authorization may
// be shared between requests.
type Authorization interface {
	Prepare(ctx context.Context) error
	Apply(req *http.Request) error
}

// TransportWrapper is implemented by schemes that need control of the
// connection itself (NTLM handshakes, client certificates).
type TransportWrapper interface {
	WrapTransport(base http.RoundTripper) (http.RoundTripper, error)
}

// baseTransport returns a clone of the *http.Transport behind rt, or a clone
// of the default transport when rt is something else.
func baseTransport(rt http.RoundTripper) *http.Transport {
	if t, ok := rt.(*http.Transport); ok && t != nil {
		return t.Clone()
	}
	return http.DefaultTransport.(*http.Transport).Clone()
}
