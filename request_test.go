package greq_test

import (
	"context"
	"encoding/xml"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/greq"
	"git.home.luguber.info/inful/greq/internal/echoserver"
	"git.home.luguber.info/inful/greq/internal/version"
)

func newEchoServer(t *testing.T) *httptest.Server {
	t.Helper()
	opts := echoserver.DefaultOptions()
	opts.Quiet = true
	srv := httptest.NewServer(echoserver.New(opts).Handler())
	t.Cleanup(srv.Close)
	return srv
}

// execEcho sends req and decodes the echo document.
func execEcho(t *testing.T, req *greq.Request) echoserver.Echo {
	t.Helper()
	resp, err := req.Execute()
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var echo echoserver.Echo
	require.NoError(t, resp.BodyUnmarshalJSON(&echo))
	return echo
}

func TestRequestConstructors(t *testing.T) {
	tests := []struct {
		req    *greq.Request
		method greq.Method
	}{
		{greq.GetRequest("http://x"), greq.GET},
		{greq.PostRequest("http://x"), greq.POST},
		{greq.PutRequest("http://x"), greq.PUT},
		{greq.PatchRequest("http://x"), greq.PATCH},
		{greq.DeleteRequest("http://x"), greq.DELETE},
		{greq.HeadRequest("http://x"), greq.HEAD},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.method, tt.req.Method)
		assert.Equal(t, "http://x", tt.req.Url)
	}
	assert.Equal(t, "OPTIONS http://x", greq.NewRequest(greq.OPTIONS, " http://x ").String())
}

func TestRequestValidate(t *testing.T) {
	tests := []struct {
		name string
		req  *greq.Request
	}{
		{"empty url", greq.GetRequest("")},
		{"relative url", greq.GetRequest("/get")},
		{"no host", greq.GetRequest("http://")},
		{"unknown method", greq.NewRequest("FETCH", "http://example.com")},
		{"empty header key", greq.GetRequest("http://example.com").WithHeader("", "v")},
		{"empty header value", greq.GetRequest("http://example.com").WithHeader("X-Empty", "")},
		{"unsupported header value", greq.GetRequest("http://example.com").WithHeader("X-Slice", []string{"a"})},
		{"nil auth", greq.GetRequest("http://example.com").WithAuth(nil)},
		{"negative timeout", greq.GetRequest("http://example.com").WithTimeout(-time.Second)},
		{"invalid retry", greq.GetRequest("http://example.com").WithRetry(greq.RetryPolicy{})},
		{"body on GET", greq.GetRequest("http://example.com").WithStringBody("x")},
		{"body on DELETE", greq.DeleteRequest("http://example.com").WithJSONBody(map[string]string{"a": "b"})},
		{"body on HEAD", greq.HeadRequest("http://example.com").WithByteBody([]byte("x"))},
		{"unsupported form value", greq.PostRequest("http://example.com").WithUrlencodedFormBody(map[string]any{"a": struct{}{}})},
		{"unsupported form type", greq.PostRequest("http://example.com").WithUrlencodedFormBody(42)},
		{"unencodable json", greq.PostRequest("http://example.com").WithJSONBody(make(chan int))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			require.Error(t, err)
			assert.True(t, greq.HasCategory(err, greq.CategoryValidation), err.Error())

			_, execErr := tt.req.Execute()
			require.Error(t, execErr)
		})
	}

	assert.NoError(t, greq.GetRequest("https://example.com/path?q=1").Validate())
}

func TestRequestCollectsAllErrors(t *testing.T) {
	req := greq.GetRequest("http://example.com").
		WithHeader("", "v").
		WithHeader("X-Empty", "").
		WithStringBody("x")

	assert.Len(t, req.Errors(), 3)
	err := req.Validate()
	require.Error(t, err)
	e, ok := greq.AsError(err)
	require.True(t, ok)
	count, _ := e.Context().Get("count")
	assert.Equal(t, 3, count)
}

func TestRequestHeadersAndQuery(t *testing.T) {
	srv := newEchoServer(t)

	echo := execEcho(t, greq.GetRequest(srv.URL+"/get?fixed=1").
		WithHeader("X-String", "s").
		WithHeader("X-Int", 42).
		WithHeader("X-Bool", true).
		WithHeaders(map[string]any{"X-Float": 1.5, "User-Agent": "custom/2"}).
		WithQueryParam("single", "a").
		WithQueryParams(map[string]any{"n": 7, "multi": []string{"x", "y"}}).
		WithQueryParams(url.Values{"v": {"1"}}))

	assert.Equal(t, "s", echo.Headers["X-String"])
	assert.Equal(t, "42", echo.Headers["X-Int"])
	assert.Equal(t, "true", echo.Headers["X-Bool"])
	assert.Equal(t, "1.5", echo.Headers["X-Float"])
	assert.Equal(t, "custom/2", echo.Headers["User-Agent"])

	assert.Equal(t, []string{"1"}, echo.Args["fixed"])
	assert.Equal(t, []string{"a"}, echo.Args["single"])
	assert.Equal(t, []string{"7"}, echo.Args["n"])
	assert.Equal(t, []string{"x", "y"}, echo.Args["multi"])
	assert.Equal(t, []string{"1"}, echo.Args["v"])
}

func TestRequestDefaultsAndRequestID(t *testing.T) {
	srv := newEchoServer(t)

	echo := execEcho(t, greq.GetRequest(srv.URL+"/get"))
	assert.Equal(t, "greq/"+version.Version, greq.DefaultUserAgent)
	assert.Equal(t, greq.DefaultUserAgent, echo.Headers["User-Agent"])
	assert.Empty(t, echo.Headers["X-Request-Id"])

	echo = execEcho(t, greq.GetRequest(srv.URL+"/get").WithRequestID())
	assert.Len(t, echo.Headers["X-Request-Id"], 36)

	echo = execEcho(t, greq.GetRequest(srv.URL+"/get").WithRequestID().WithHeader(greq.RequestIDHeader, "fixed-id"))
	assert.Equal(t, "fixed-id", echo.Headers["X-Request-Id"])
}

func TestRequestBodies(t *testing.T) {
	srv := newEchoServer(t)

	t.Run("string", func(t *testing.T) {
		echo := execEcho(t, greq.PostRequest(srv.URL+"/post").WithStringBody("plain text"))
		assert.Equal(t, "plain text", echo.Data)
	})

	t.Run("bytes are copied", func(t *testing.T) {
		body := []byte("original")
		req := greq.PutRequest(srv.URL + "/put").WithByteBody(body)
		copy(body, "mutated!")
		assert.Equal(t, "original", execEcho(t, req).Data)
	})

	t.Run("reader", func(t *testing.T) {
		echo := execEcho(t, greq.PatchRequest(srv.URL+"/patch").WithReaderBody(strings.NewReader("streamed")))
		assert.Equal(t, "streamed", echo.Data)
	})

	t.Run("json struct", func(t *testing.T) {
		body := struct {
			Name  string `json:"name"`
			Count int    `json:"count"`
		}{"greq", 2}
		echo := execEcho(t, greq.PostRequest(srv.URL+"/post").WithJSONBody(body))
		assert.Equal(t, "application/json", echo.Headers["Content-Type"])
		assert.Equal(t, map[string]any{"name": "greq", "count": float64(2)}, echo.JSON)
	})

	t.Run("json pre-marshalled with content type", func(t *testing.T) {
		echo := execEcho(t, greq.PostRequest(srv.URL+"/post").WithJSONBody(`{"a":1}`, "application/vnd.api+json"))
		assert.Equal(t, "application/vnd.api+json", echo.Headers["Content-Type"])
		assert.Equal(t, map[string]any{"a": float64(1)}, echo.JSON)
	})

	t.Run("xml", func(t *testing.T) {
		type item struct {
			XMLName xml.Name `xml:"item"`
			ID      int      `xml:"id,attr"`
			Name    string   `xml:"name"`
		}
		echo := execEcho(t, greq.PostRequest(srv.URL+"/post").WithXMLBody(item{ID: 3, Name: "widget"}))
		assert.Equal(t, "application/xml", echo.Headers["Content-Type"])
		assert.Equal(t, `<item id="3"><name>widget</name></item>`, echo.Data)
	})

	t.Run("yaml", func(t *testing.T) {
		echo := execEcho(t, greq.PostRequest(srv.URL+"/post").WithYAMLBody(map[string]any{"name": "greq", "tags": []string{"a"}}))
		assert.Equal(t, "application/yaml", echo.Headers["Content-Type"])

		var decoded map[string]any
		require.NoError(t, yaml.Unmarshal([]byte(echo.Data), &decoded))
		assert.Equal(t, "greq", decoded["name"])
	})

	t.Run("urlencoded", func(t *testing.T) {
		echo := execEcho(t, greq.PostRequest(srv.URL+"/post").WithUrlencodedFormBody(map[string]any{
			"name":  "greq",
			"count": 3,
			"ok":    false,
			"tags":  []string{"a", "b"},
		}))
		assert.Equal(t, "application/x-www-form-urlencoded", echo.Headers["Content-Type"])
		assert.Equal(t, []string{"greq"}, echo.Form["name"])
		assert.Equal(t, []string{"3"}, echo.Form["count"])
		assert.Equal(t, []string{"false"}, echo.Form["ok"])
		assert.Equal(t, []string{"a", "b"}, echo.Form["tags"])
	})

	t.Run("urlencoded map shapes", func(t *testing.T) {
		for _, body := range []any{
			map[string]string{"k": "v"},
			map[string][]string{"k": {"v"}},
			map[string][]byte{"k": []byte("v")},
			url.Values{"k": {"v"}},
		} {
			echo := execEcho(t, greq.PostRequest(srv.URL+"/post").WithUrlencodedFormBody(body))
			assert.Equal(t, []string{"v"}, echo.Form["k"], "%T", body)
		}
	})

	t.Run("later body replaces earlier", func(t *testing.T) {
		echo := execEcho(t, greq.PostRequest(srv.URL+"/post").WithStringBody("first").WithStringBody("second"))
		assert.Equal(t, "second", echo.Data)
	})
}

func TestRequestTimeout(t *testing.T) {
	srv := newEchoServer(t)

	_, err := greq.GetRequest(srv.URL + "/delay/500").WithTimeout(50 * time.Millisecond).Execute()
	require.Error(t, err)
	assert.True(t, greq.HasCategory(err, greq.CategoryNetwork), err.Error())

	resp, err := greq.GetRequest(srv.URL + "/delay/10").WithTimeout(2 * time.Second).Execute()
	require.NoError(t, err)
	resp.Close()
}

func TestRequestContextCanceled(t *testing.T) {
	srv := newEchoServer(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := greq.GetRequest(srv.URL + "/get").ExecuteContext(ctx)
	require.Error(t, err)
	assert.True(t, greq.HasCategory(err, greq.CategoryNetwork))
}

func TestRequestDoesNotMutateClient(t *testing.T) {
	srv := newEchoServer(t)
	client := greq.NewClient(greq.DefaultClientOptions())

	resp, err := greq.GetRequest(srv.URL + "/get").
		WithClient(client).
		WithTimeout(time.Second).
		WithTracing().
		Execute()
	require.NoError(t, err)
	resp.Close()

	assert.Zero(t, client.Timeout)
	_, isTransport := client.Transport.(*http.Transport)
	assert.True(t, isTransport, "tracing must wrap a copy of the client")
}

func TestClientRedirects(t *testing.T) {
	srv := newEchoServer(t)

	resp, err := greq.GetRequest(srv.URL + "/redirect/3").Execute()
	require.NoError(t, err)
	defer resp.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "/get", resp.Response.Request.URL.Path)

	opts := greq.DefaultClientOptions()
	opts.FollowRedirects = false
	resp, err = greq.GetRequest(srv.URL + "/redirect/1").WithClient(greq.NewClient(opts)).Execute()
	require.NoError(t, err)
	defer resp.Close()
	assert.Equal(t, http.StatusFound, resp.StatusCode)

	opts = greq.DefaultClientOptions()
	opts.MaxRedirects = 2
	_, err = greq.GetRequest(srv.URL + "/redirect/5").WithClient(greq.NewClient(opts)).Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stopped after 2 redirects")
}

func TestDefaultClientIsShared(t *testing.T) {
	assert.Same(t, greq.DefaultClient(), greq.DefaultClient())
}
