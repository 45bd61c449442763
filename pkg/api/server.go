package api

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/stvn101/carbonconstruct-scope-lca/pkg/archive"
	"github.com/stvn101/carbonconstruct-scope-lca/pkg/engine"
	"github.com/stvn101/carbonconstruct-scope-lca/pkg/findings"
	"github.com/stvn101/carbonconstruct-scope-lca/pkg/publish"
	"github.com/stvn101/carbonconstruct-scope-lca/pkg/ratelimit"
	"github.com/stvn101/carbonconstruct-scope-lca/pkg/store"
)

const (
	requestIDHeader = "X-Request-ID"
	// maxProjectBytes bounds an evaluation request body.
	maxProjectBytes = 10 << 20
)

// ReportCache is the cache lookup the evaluation handler uses.
type ReportCache interface {
	Get(ctx context.Context, inputDigest string) (*findings.Report, bool, error)
	Set(ctx context.Context, inputDigest string, r *findings.Report) error
}

// Server holds the engine and the optional backends behind the HTTP API.
// The engine may be replaced at any time with SetEngine; in-flight requests
// finish on the engine they started with.
type Server struct {
	engine atomic.Pointer[engine.Engine]

	store     store.ReportStore
	cache     ReportCache
	archive   archive.Store
	publisher publish.Publisher
	limiter   ratelimit.Store
	policy    ratelimit.Policy
	metrics   *Metrics
	logger    *slog.Logger
	timeout   time.Duration
}

// Option configures a Server.
type Option func(*Server)

func WithStore(s store.ReportStore) Option       { return func(srv *Server) { srv.store = s } }
func WithCache(c ReportCache) Option             { return func(srv *Server) { srv.cache = c } }
func WithArchive(a archive.Store) Option         { return func(srv *Server) { srv.archive = a } }
func WithPublisher(p publish.Publisher) Option   { return func(srv *Server) { srv.publisher = p } }
func WithMetrics(m *Metrics) Option              { return func(srv *Server) { srv.metrics = m } }
func WithLogger(l *slog.Logger) Option           { return func(srv *Server) { srv.logger = l } }
func WithRequestTimeout(d time.Duration) Option { return func(srv *Server) { srv.timeout = d } }

// WithRateLimit throttles evaluation requests per client address.
func WithRateLimit(s ratelimit.Store, p ratelimit.Policy) Option {
	return func(srv *Server) {
		srv.limiter = s
		srv.policy = p
	}
}

// New returns a server evaluating with e.
func New(e *engine.Engine, opts ...Option) *Server {
	s := &Server{
		publisher: publish.Noop{},
		logger:    slog.Default(),
		timeout:   60 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = NewMetrics()
	}
	s.logger = s.logger.With("component", "api")
	s.engine.Store(e)
	return s
}

// Engine returns the engine new requests use.
func (s *Server) Engine() *engine.Engine { return s.engine.Load() }

// SetEngine swaps the engine, e.g. after a catalogue reload.
func (s *Server) SetEngine(e *engine.Engine) {
	old := s.engine.Swap(e)
	s.logger.Info("engine replaced",
		"old_rules_version", old.Catalogue().Version,
		"rules_version", e.Catalogue().Version,
		"rules_digest", e.Catalogue().Digest())
}

// Routes builds the router.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(exposeRequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.metrics.Middleware)
	r.Use(middleware.Timeout(s.timeout))

	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Get("/rules", s.handleRules)
		r.With(s.rateLimit).Post("/evaluations", s.handleEvaluate)
		r.Get("/reports/{reportID}", s.handleGetReport)
		r.Get("/projects/{projectID}/reports", s.handleListReports)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		WriteNotFound(w, r, "No route for "+r.URL.Path)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		WriteError(w, r, http.StatusMethodNotAllowed, "Method Not Allowed", "The HTTP method is not supported for this endpoint")
	})
	return r
}

func exposeRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := middleware.GetReqID(r.Context()); id != "" {
			w.Header().Set(requestIDHeader, id)
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) rateLimit(next http.Handler) http.Handler {
	if s.limiter == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		err := ratelimit.Check(r.Context(), s.limiter, clientKey(r), s.policy)
		switch {
		case errors.Is(err, ratelimit.ErrLimited):
			WriteTooManyRequests(w, r, retryAfter(s.policy))
			return
		case err != nil:
			// Fail open.
			s.logger.Warn("rate limiter unavailable", "error", err)
		}
		next.ServeHTTP(w, r)
	})
}

func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = strings.Trim(r.RemoteAddr, "[]")
	}
	return host
}

// retryAfter is the time for one token to refill, rounded up.
func retryAfter(p ratelimit.Policy) int {
	if p.RPM <= 0 {
		return 60
	}
	secs := (60 + p.RPM - 1) / p.RPM
	if secs < 1 {
		secs = 1
	}
	return secs
}
