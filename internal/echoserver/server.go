// Package echoserver is an httpbin-style server that reflects requests back
// as JSON. It backs the greq test suites and the `greq echo` command.
package echoserver

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Options configures the echo server.
type Options struct {
	// OAuth2 client and resource owner accepted by /oauth2/token.
	ClientID     string
	ClientSecret string
	Username     string
	Password     string
	// AuthCode is the only authorization code accepted by the authorization_code grant.
	AuthCode string
	TokenTTL time.Duration

	// RequestsPerMinute enables per-IP rate limiting when > 0.
	RequestsPerMinute int
	// Quiet disables the chi request logger.
	Quiet bool
}

// DefaultOptions returns the credentials used by tests and the CLI.
func DefaultOptions() Options {
	return Options{
		ClientID:     "greq-client",
		ClientSecret: "greq-secret",
		Username:     "user",
		Password:     "password",
		AuthCode:     "valid-code",
		TokenTTL:     time.Hour,
	}
}

// Server represents the echo server.
type Server struct {
	opts     Options
	router   *chi.Mux
	server   *http.Server
	registry *prometheus.Registry
	requests *prometheus.CounterVec

	mu            sync.Mutex
	flaky         map[string]int
	tokens        map[string]bool
	refreshTokens map[string]bool
	tokenSeq      int
	tokenRequests int
}

// New creates a new echo server.
func New(opts Options) *Server {
	if opts.TokenTTL <= 0 {
		opts.TokenTTL = time.Hour
	}
	s := &Server{
		opts:          opts,
		router:        chi.NewRouter(),
		registry:      prometheus.NewRegistry(),
		flaky:         make(map[string]int),
		tokens:        make(map[string]bool),
		refreshTokens: make(map[string]bool),
	}
	s.requests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "echoserver",
		Name:      "requests_total",
		Help:      "Requests received by method.",
	}, []string{"method"})
	s.registry.MustRegister(s.requests)

	s.setupRoutes()
	return s
}

// setupRoutes configures all routes.
func (s *Server) setupRoutes() {
	s.router.Use(middleware.RealIP)
	if !s.opts.Quiet {
		s.router.Use(middleware.Logger)
	}
	s.router.Use(middleware.Recoverer)
	s.router.Use(s.countRequests)
	if s.opts.RequestsPerMinute > 0 {
		s.router.Use(httprate.LimitByIP(s.opts.RequestsPerMinute, time.Minute))
	}

	s.router.Get("/get", s.handleEcho)
	s.router.Post("/post", s.handleEcho)
	s.router.Put("/put", s.handleEcho)
	s.router.Patch("/patch", s.handleEcho)
	s.router.Delete("/delete", s.handleEcho)
	s.router.HandleFunc("/anything", s.handleEcho)
	s.router.HandleFunc("/anything/*", s.handleEcho)

	s.router.Get("/headers", s.handleHeaders)
	s.router.HandleFunc("/status/{code}", s.handleStatus)
	s.router.Get("/redirect/{n}", s.handleRedirect)
	s.router.Get("/delay/{ms}", s.handleDelay)
	s.router.HandleFunc("/flaky/{n}", s.handleFlaky)

	s.router.Get("/basic-auth/{user}/{passwd}", s.handleBasicAuth)
	s.router.Get("/bearer", s.handleBearer)

	s.router.Get("/json", s.handleJSON)
	s.router.Get("/xml", s.handleXML)
	s.router.Get("/yaml", s.handleYAML)
	s.router.Get("/html", s.handleHTML)

	s.router.Get("/.well-known/openid-configuration", s.handleDiscovery)
	s.router.Post("/oauth2/token", s.handleToken)
	s.router.Get("/oauth2/userinfo", s.handleUserinfo)

	s.router.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
}

func (s *Server) countRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.requests.WithLabelValues(r.Method).Inc()
		next.ServeHTTP(w, r)
	})
}

// Handler returns the root handler, for httptest servers.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves on addr until Shutdown.
func (s *Server) ListenAndServe(addr string) error {
	s.mu.Lock()
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	srv := s.server
	s.mu.Unlock()
	return srv.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.server
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

// TokenRequests reports how many token requests were answered successfully.
func (s *Server) TokenRequests() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tokenRequests
}
