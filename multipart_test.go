package greq_test

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/greq"
)

func TestMultipartFieldsFromMap(t *testing.T) {
	fields, err := greq.MultipartFieldsFromMap(map[string]any{
		"zeta":  "last",
		"alpha": 1,
		"tags":  []string{"a", "b"},
		"raw":   []byte("bytes"),
		"read":  strings.NewReader("reader"),
	})
	require.NoError(t, err)

	keys := make([]string, 0, len(fields))
	for _, f := range fields {
		keys = append(keys, f.Key)
	}
	assert.Equal(t, []string{"alpha", "raw", "read", "tags", "tags", "zeta"}, keys)

	_, err = greq.MultipartFieldsFromMap(map[string]any{"bad": struct{}{}})
	require.Error(t, err)
	assert.True(t, greq.HasCategory(err, greq.CategoryValidation))
	assert.Contains(t, err.Error(), "unsupported type struct {} for key bad")
}

func TestMultipartFormBody(t *testing.T) {
	srv := newEchoServer(t)

	path := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello from a file\n"), 0o600))
	file, err := os.Open(path)
	require.NoError(t, err)

	fields, err := greq.MultipartFieldsFromMap(map[string]any{"name": "greq", "tags": []string{"a", "b"}})
	require.NoError(t, err)
	pr, pw := io.Pipe()
	go func() {
		_, _ = pw.Write([]byte("piped"))
		_ = pw.Close()
	}()
	fields = append(fields,
		greq.NewMultipartField("upload").WithFile(file),
		greq.NewMultipartField("doc").WithBytesValue([]byte(`{"a":1}`)).WithFilename(`we"ird.json`).WithContentType("application/json"),
		greq.NewMultipartField("stream").WithPipe(pr),
	)

	echo := execEcho(t, greq.PostRequest(srv.URL+"/post").WithMultipartFormBody(fields))
	assert.True(t, strings.HasPrefix(echo.Headers["Content-Type"], "multipart/form-data; boundary="))
	assert.Equal(t, []string{"greq"}, echo.Form["name"])
	assert.Equal(t, []string{"a", "b"}, echo.Form["tags"])
	assert.Equal(t, []string{"piped"}, echo.Form["stream"])

	assert.Equal(t, "hello from a file\n", echo.Files["upload"])
	assert.Equal(t, "notes.txt", echo.FileNames["upload"])
	assert.Equal(t, "text/plain; charset=utf-8", echo.FileTypes["upload"])

	assert.Equal(t, `{"a":1}`, echo.Files["doc"])
	assert.Equal(t, `we"ird.json`, echo.FileNames["doc"])
	assert.Equal(t, "application/json", echo.FileTypes["doc"])
}

func TestMultipartFieldWithoutValue(t *testing.T) {
	req := greq.PostRequest("http://example.com").
		WithMultipartFormBody([]*greq.MultipartField{greq.NewMultipartField("empty")})
	require.Len(t, req.Errors(), 1)
	assert.True(t, greq.HasCategory(req.Errors()[0], greq.CategoryEncoding))

	req = greq.GetRequest("http://example.com").
		WithMultipartFormBody([]*greq.MultipartField{greq.NewMultipartField("k").WithStringValue("v")})
	assert.Error(t, req.Validate())
}
