package echoserver

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer() *Server {
	opts := DefaultOptions()
	opts.Quiet = true
	return New(opts)
}

func serve(s *Server, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func decodeEcho(t *testing.T, w *httptest.ResponseRecorder) Echo {
	t.Helper()
	var echo Echo
	require.NoError(t, json.NewDecoder(w.Body).Decode(&echo))
	return echo
}

func TestEchoGet(t *testing.T) {
	s := newTestServer()
	req := httptest.NewRequest(http.MethodGet, "/get?a=1&a=2&b=x", nil)
	req.Header.Set("X-Test", "yes")

	w := serve(s, req)
	require.Equal(t, http.StatusOK, w.Code)

	echo := decodeEcho(t, w)
	assert.Equal(t, "GET", echo.Method)
	assert.Equal(t, []string{"1", "2"}, echo.Args["a"])
	assert.Equal(t, []string{"x"}, echo.Args["b"])
	assert.Equal(t, "yes", echo.Headers["X-Test"])
	assert.Equal(t, "http://example.com/get?a=1&a=2&b=x", echo.URL)
	assert.Equal(t, "192.0.2.1", echo.Origin)
}

func TestEchoMethodRouting(t *testing.T) {
	s := newTestServer()
	w := serve(s, httptest.NewRequest(http.MethodPost, "/get", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)

	for _, m := range []string{http.MethodGet, http.MethodPost, http.MethodOptions} {
		w := serve(s, httptest.NewRequest(m, "/anything/some/path", nil))
		assert.Equal(t, http.StatusOK, w.Code, m)
	}
}

func TestEchoJSONBody(t *testing.T) {
	s := newTestServer()
	req := httptest.NewRequest(http.MethodPost, "/post", strings.NewReader(`{"name":"greq","n":2}`))
	req.Header.Set("Content-Type", "application/json")

	echo := decodeEcho(t, serve(s, req))
	assert.Equal(t, `{"name":"greq","n":2}`, echo.Data)
	assert.Equal(t, map[string]any{"name": "greq", "n": float64(2)}, echo.JSON)
}

func TestEchoFormBody(t *testing.T) {
	s := newTestServer()
	form := url.Values{"a": {"1", "2"}, "b": {"x"}}
	req := httptest.NewRequest(http.MethodPut, "/put", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	echo := decodeEcho(t, serve(s, req))
	assert.Equal(t, []string{"1", "2"}, echo.Form["a"])
	assert.Empty(t, echo.Data)
}

func TestEchoMultipartBody(t *testing.T) {
	s := newTestServer()
	buf := &bytes.Buffer{}
	mw := multipart.NewWriter(buf)
	require.NoError(t, mw.WriteField("field", "value"))
	fw, err := mw.CreateFormFile("upload", "hello.txt")
	require.NoError(t, err)
	_, _ = fw.Write([]byte("hello"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/post", buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	echo := decodeEcho(t, serve(s, req))
	assert.Equal(t, []string{"value"}, echo.Form["field"])
	assert.Equal(t, "hello", echo.Files["upload"])
	assert.Equal(t, "hello.txt", echo.FileNames["upload"])
	assert.Equal(t, "application/octet-stream", echo.FileTypes["upload"])
}

func TestStatusEndpoint(t *testing.T) {
	s := newTestServer()
	assert.Equal(t, http.StatusTeapot, serve(s, httptest.NewRequest(http.MethodGet, "/status/418", nil)).Code)
	assert.Equal(t, http.StatusBadRequest, serve(s, httptest.NewRequest(http.MethodGet, "/status/abc", nil)).Code)
	assert.Equal(t, http.StatusBadRequest, serve(s, httptest.NewRequest(http.MethodGet, "/status/999", nil)).Code)
}

func TestRedirectEndpoint(t *testing.T) {
	s := newTestServer()
	w := serve(s, httptest.NewRequest(http.MethodGet, "/redirect/3", nil))
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/redirect/2", w.Header().Get("Location"))

	w = serve(s, httptest.NewRequest(http.MethodGet, "/redirect/1", nil))
	assert.Equal(t, "/get", w.Header().Get("Location"))
}

func TestFlakyEndpoint(t *testing.T) {
	s := newTestServer()
	for i := 0; i < 2; i++ {
		w := serve(s, httptest.NewRequest(http.MethodGet, "/flaky/2?key=a", nil))
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	}
	assert.Equal(t, http.StatusOK, serve(s, httptest.NewRequest(http.MethodGet, "/flaky/2?key=a", nil)).Code)

	// Counters are per key.
	assert.Equal(t, http.StatusServiceUnavailable, serve(s, httptest.NewRequest(http.MethodGet, "/flaky/2?key=b", nil)).Code)
}

func TestBasicAuthEndpoint(t *testing.T) {
	s := newTestServer()
	req := httptest.NewRequest(http.MethodGet, "/basic-auth/alice/secret", nil)
	req.SetBasicAuth("alice", "secret")
	assert.Equal(t, http.StatusOK, serve(s, req).Code)

	req = httptest.NewRequest(http.MethodGet, "/basic-auth/alice/secret", nil)
	req.SetBasicAuth("alice", "wrong")
	w := serve(s, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Header().Get("WWW-Authenticate"), "Basic")
}

func TestBearerEndpoint(t *testing.T) {
	s := newTestServer()
	req := httptest.NewRequest(http.MethodGet, "/bearer", nil)
	req.Header.Set("Authorization", "Bearer abc")
	w := serve(s, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"token":"abc"`)

	assert.Equal(t, http.StatusUnauthorized, serve(s, httptest.NewRequest(http.MethodGet, "/bearer", nil)).Code)
}

func TestContentEndpoints(t *testing.T) {
	s := newTestServer()
	tests := []struct {
		path, contentType, contains string
	}{
		{"/json", "application/json", "WonderWidgets"},
		{"/xml", "application/xml", "<slideshow"},
		{"/yaml", "application/yaml", "title: Sample Slide Show"},
		{"/html", "text/html; charset=utf-8", "Moby-Dick"},
	}
	for _, tt := range tests {
		w := serve(s, httptest.NewRequest(http.MethodGet, tt.path, nil))
		assert.Equal(t, http.StatusOK, w.Code, tt.path)
		assert.Equal(t, tt.contentType, w.Header().Get("Content-Type"), tt.path)
		assert.Contains(t, w.Body.String(), tt.contains, tt.path)
	}
}

func TestDiscoveryDocument(t *testing.T) {
	s := newTestServer()
	w := serve(s, httptest.NewRequest(http.MethodGet, "/.well-known/openid-configuration", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var doc map[string]any
	require.NoError(t, json.NewDecoder(w.Body).Decode(&doc))
	assert.Equal(t, "http://example.com/oauth2/token", doc["token_endpoint"])
	assert.Contains(t, doc["grant_types_supported"], "client_credentials")
}

func tokenRequest(form url.Values, basic bool) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/oauth2/token", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if basic {
		req.SetBasicAuth("greq-client", "greq-secret")
	}
	return req
}

func TestTokenEndpoint(t *testing.T) {
	s := newTestServer()

	w := serve(s, tokenRequest(url.Values{"grant_type": {"client_credentials"}}, true))
	require.Equal(t, http.StatusOK, w.Code)
	var tok struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		ExpiresIn    int64  `json:"expires_in"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&tok))
	assert.Equal(t, "access-1", tok.AccessToken)
	assert.Equal(t, int64(3600), tok.ExpiresIn)

	// Credentials in the body work too.
	w = serve(s, tokenRequest(url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {tok.RefreshToken},
		"client_id":     {"greq-client"},
		"client_secret": {"greq-secret"},
	}, false))
	assert.Equal(t, http.StatusOK, w.Code)

	// Refresh tokens are single use.
	w = serve(s, tokenRequest(url.Values{"grant_type": {"refresh_token"}, "refresh_token": {tok.RefreshToken}}, true))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	assert.Equal(t, 2, s.TokenRequests())
}

func TestTokenEndpointRejects(t *testing.T) {
	s := newTestServer()

	w := serve(s, tokenRequest(url.Values{"grant_type": {"client_credentials"}}, false))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = serve(s, tokenRequest(url.Values{"grant_type": {"password"}, "username": {"user"}, "password": {"bad"}}, true))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid_grant")

	w = serve(s, tokenRequest(url.Values{"grant_type": {"device_code"}}, true))
	assert.Contains(t, w.Body.String(), "unsupported_grant_type")

	assert.Equal(t, 0, s.TokenRequests())
}

func TestUserinfoRequiresIssuedToken(t *testing.T) {
	s := newTestServer()
	serve(s, tokenRequest(url.Values{"grant_type": {"client_credentials"}}, true))

	req := httptest.NewRequest(http.MethodGet, "/oauth2/userinfo", nil)
	req.Header.Set("Authorization", "Bearer access-1")
	assert.Equal(t, http.StatusOK, serve(s, req).Code)

	s.RevokeTokens()
	req = httptest.NewRequest(http.MethodGet, "/oauth2/userinfo", nil)
	req.Header.Set("Authorization", "Bearer access-1")
	assert.Equal(t, http.StatusUnauthorized, serve(s, req).Code)
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer()
	serve(s, httptest.NewRequest(http.MethodGet, "/get", nil))

	w := serve(s, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `echoserver_requests_total{method="GET"}`)
}

func TestRateLimit(t *testing.T) {
	opts := DefaultOptions()
	opts.Quiet = true
	opts.RequestsPerMinute = 1
	s := New(opts)

	assert.Equal(t, http.StatusOK, serve(s, httptest.NewRequest(http.MethodGet, "/get", nil)).Code)
	assert.Equal(t, http.StatusTooManyRequests, serve(s, httptest.NewRequest(http.MethodGet, "/get", nil)).Code)
}
