package greq

import (
	"crypto/tls"
	"fmt"
	"net/http"
	"sync"
	"time"
)

// ClientOptions configures clients built by NewClient.
type ClientOptions struct {
	Timeout              time.Duration
	FollowRedirects      bool
	MaxRedirects         int
	ProxyFromEnvironment bool
	ForceHTTP2           bool
	InsecureSkipVerify   bool
}

// DefaultClientOptions follows up to 10 redirects, honours HTTP(S)_PROXY and
// attempts HTTP/2. No client-wide timeout is set; use WithTimeout per request.
func DefaultClientOptions() ClientOptions {
	return ClientOptions{
		FollowRedirects:      true,
		MaxRedirects:         10,
		ProxyFromEnvironment: true,
		ForceHTTP2:           true,
	}
}

// NewClient builds an *http.Client from opts.
func NewClient(opts ClientOptions) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ForceAttemptHTTP2 = opts.ForceHTTP2
	if !opts.ForceHTTP2 {
		transport.TLSNextProto = map[string]func(string, *tls.Conn) http.RoundTripper{}
	}
	if opts.ProxyFromEnvironment {
		transport.Proxy = http.ProxyFromEnvironment
	} else {
		transport.Proxy = nil
	}
	if opts.InsecureSkipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opt-in
	}

	return &http.Client{
		Timeout:   opts.Timeout,
		Transport: transport,
		CheckRedirect: func(_ *http.Request, via []*http.Request) error {
			if !opts.FollowRedirects {
				return http.ErrUseLastResponse
			}
			if len(via) >= opts.MaxRedirects {
				return fmt.Errorf("stopped after %d redirects", opts.MaxRedirects)
			}
			return nil
		},
	}
}

var (
	defaultClientOnce sync.Once
	defaultClient     *http.Client
)

// DefaultClient returns the shared client used when a request has none.
func DefaultClient() *http.Client {
	defaultClientOnce.Do(func() {
		defaultClient = NewClient(DefaultClientOptions())
	})
	return defaultClient
}
