package echoserver

import (
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"gopkg.in/yaml.v3"
)

// maxMemory bounds in-memory multipart parsing.
const maxMemory = 32 << 20

// Echo is the JSON document returned by the echo endpoints.
type Echo struct {
	Method    string              `json:"method"`
	URL       string              `json:"url"`
	Origin    string              `json:"origin"`
	Args      map[string][]string `json:"args"`
	Headers   map[string]string   `json:"headers"`
	Form      map[string][]string `json:"form"`
	Files     map[string]string   `json:"files"`
	FileTypes map[string]string   `json:"file_types"`
	FileNames map[string]string   `json:"file_names"`
	Data      string              `json:"data"`
	JSON      any                 `json:"json"`
}

func (s *Server) handleEcho(w http.ResponseWriter, r *http.Request) {
	echo, err := readEcho(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, echo)
}

func readEcho(r *http.Request) (*Echo, error) {
	echo := &Echo{
		Method:    r.Method,
		URL:       requestURL(r),
		Origin:    origin(r),
		Args:      r.URL.Query(),
		Headers:   flattenHeaders(r),
		Form:      map[string][]string{},
		Files:     map[string]string{},
		FileTypes: map[string]string{},
		FileNames: map[string]string{},
	}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch {
	case mediaType == "multipart/form-data":
		if err := r.ParseMultipartForm(maxMemory); err != nil {
			return nil, fmt.Errorf("parse multipart: %w", err)
		}
		for k, vs := range r.MultipartForm.Value {
			echo.Form[k] = vs
		}
		for k, fhs := range r.MultipartForm.File {
			if len(fhs) == 0 {
				continue
			}
			fh := fhs[0]
			f, err := fh.Open()
			if err != nil {
				return nil, fmt.Errorf("open part %s: %w", k, err)
			}
			data, err := io.ReadAll(f)
			_ = f.Close()
			if err != nil {
				return nil, fmt.Errorf("read part %s: %w", k, err)
			}
			echo.Files[k] = string(data)
			echo.FileTypes[k] = fh.Header.Get("Content-Type")
			echo.FileNames[k] = fh.Filename
		}
	case mediaType == "application/x-www-form-urlencoded":
		if err := r.ParseForm(); err != nil {
			return nil, fmt.Errorf("parse form: %w", err)
		}
		for k, vs := range r.PostForm {
			echo.Form[k] = vs
		}
	default:
		data, err := io.ReadAll(r.Body)
		if err != nil {
			return nil, fmt.Errorf("read body: %w", err)
		}
		echo.Data = string(data)
		if len(data) > 0 && (mediaType == "application/json" || strings.HasSuffix(mediaType, "+json")) {
			var v any
			if err := json.Unmarshal(data, &v); err == nil {
				echo.JSON = v
			}
		}
	}
	return echo, nil
}

func (s *Server) handleHeaders(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"headers": flattenHeaders(r)})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	code, err := strconv.Atoi(chi.URLParam(r, "code"))
	if err != nil || code < 100 || code > 599 {
		writeError(w, http.StatusBadRequest, "invalid status code")
		return
	}
	w.WriteHeader(code)
}

func (s *Server) handleRedirect(w http.ResponseWriter, r *http.Request) {
	n, err := strconv.Atoi(chi.URLParam(r, "n"))
	if err != nil || n < 0 {
		writeError(w, http.StatusBadRequest, "invalid redirect count")
		return
	}
	target := "/get"
	if n > 1 {
		target = fmt.Sprintf("/redirect/%d", n-1)
	}
	http.Redirect(w, r, target, http.StatusFound)
}

func (s *Server) handleDelay(w http.ResponseWriter, r *http.Request) {
	ms, err := strconv.Atoi(chi.URLParam(r, "ms"))
	if err != nil || ms < 0 {
		writeError(w, http.StatusBadRequest, "invalid delay")
		return
	}
	t := time.NewTimer(time.Duration(ms) * time.Millisecond)
	defer t.Stop()
	select {
	case <-r.Context().Done():
		return
	case <-t.C:
	}
	s.handleEcho(w, r)
}

// handleFlaky fails the first n requests for a key with 503, then echoes.
// The key comes from the "key" query parameter so tests can run in parallel.
func (s *Server) handleFlaky(w http.ResponseWriter, r *http.Request) {
	n, err := strconv.Atoi(chi.URLParam(r, "n"))
	if err != nil || n < 0 {
		writeError(w, http.StatusBadRequest, "invalid failure count")
		return
	}
	key := chi.URLParam(r, "n") + ":" + r.URL.Query().Get("key")

	s.mu.Lock()
	s.flaky[key]++
	seen := s.flaky[key]
	s.mu.Unlock()

	if seen <= n {
		w.Header().Set("Retry-After", "0")
		writeError(w, http.StatusServiceUnavailable, fmt.Sprintf("failure %d of %d", seen, n))
		return
	}
	s.handleEcho(w, r)
}

func (s *Server) handleBasicAuth(w http.ResponseWriter, r *http.Request) {
	user, pass, ok := r.BasicAuth()
	if !ok || user != chi.URLParam(r, "user") || pass != chi.URLParam(r, "passwd") {
		w.Header().Set("WWW-Authenticate", `Basic realm="echo"`)
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"authenticated": true, "user": user})
}

func (s *Server) handleBearer(w http.ResponseWriter, r *http.Request) {
	token, ok := bearerToken(r)
	if !ok {
		w.Header().Set("WWW-Authenticate", "Bearer")
		writeError(w, http.StatusUnauthorized, "missing bearer token")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"authenticated": true, "token": token})
}

func bearerToken(r *http.Request) (string, bool) {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "bearer") || token == "" {
		return "", false
	}
	return token, true
}

type slide struct {
	Title string   `json:"title" yaml:"title" xml:"title"`
	Items []string `json:"items,omitempty" yaml:"items,omitempty" xml:"item,omitempty"`
}

type slideshow struct {
	Title  string  `json:"title" yaml:"title"`
	Author string  `json:"author" yaml:"author"`
	Slides []slide `json:"slides" yaml:"slides"`
}

var sample = slideshow{
	Title:  "Sample Slide Show",
	Author: "Yours Truly",
	Slides: []slide{
		{Title: "Wake up to WonderWidgets!"},
		{Title: "Overview", Items: []string{"Why WonderWidgets are great", "Who buys WonderWidgets"}},
	},
}

func (s *Server) handleJSON(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"slideshow": sample})
}

const sampleXML = `<?xml version="1.0" encoding="utf-8"?>
<slideshow title="Sample Slide Show" author="Yours Truly">
  <slide><title>Wake up to WonderWidgets!</title></slide>
  <slide><title>Overview</title><item>Why WonderWidgets are great</item><item>Who buys WonderWidgets</item></slide>
</slideshow>
`

func (s *Server) handleXML(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/xml")
	_, _ = io.WriteString(w, sampleXML)
}

func (s *Server) handleYAML(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/yaml")
	enc := yaml.NewEncoder(w)
	_ = enc.Encode(map[string]any{"slideshow": sample})
	_ = enc.Close()
}

const sampleHTML = `<!DOCTYPE html>
<html>
  <head><title>Echo</title></head>
  <body>
    <h1>Herman Melville - Moby-Dick</h1>
    <p>Availing himself of the mild, summer-cool weather.</p>
  </body>
</html>
`

func (s *Server) handleHTML(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = io.WriteString(w, sampleHTML)
}

func requestURL(r *http.Request) string {
	return baseURL(r) + r.URL.RequestURI()
}

func baseURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host
}

func origin(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func flattenHeaders(r *http.Request) map[string]string {
	out := make(map[string]string, len(r.Header)+1)
	for k, vs := range r.Header {
		out[k] = strings.Join(vs, ",")
	}
	if r.Host != "" {
		out["Host"] = r.Host
	}
	return out
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes an error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
