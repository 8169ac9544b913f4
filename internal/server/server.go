package server

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/lazypower/memseries/internal/config"
	"github.com/lazypower/memseries/internal/metrics"
	"github.com/lazypower/memseries/internal/series"
	"github.com/lazypower/memseries/internal/store"
	"github.com/lazypower/memseries/internal/sweep"
)

// Server is the memseries HTTP API server.
type Server struct {
	db       *store.DB
	runner   *sweep.Runner
	log      *zap.Logger
	metrics  *metrics.Collector
	validate *validator.Validate
	limiter  *rate.Limiter
	cfg      config.ServerConfig
	workers  int
	window   int
	router   chi.Router
	version  string
	started  time.Time

	// Sweeps submitted over HTTP outlive their request; they run under ctx
	// and Close waits for them.
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type Option func(*Server)

func WithLogger(l *zap.Logger) Option {
	return func(s *Server) { s.log = l }
}

func WithMetrics(m *metrics.Collector) Option {
	return func(s *Server) { s.metrics = m }
}

func WithConfig(cfg config.ServerConfig) Option {
	return func(s *Server) { s.cfg = cfg }
}

// WithWorkers sets the sweep worker pool size; 0 means GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(s *Server) { s.workers = n }
}

// WithWindow sets the default tail window for classification requests and
// critical sweeps that do not name one.
func WithWindow(n int) Option {
	return func(s *Server) { s.window = n }
}

// New creates a new Server with the given database and version string.
func New(db *store.DB, version string, opts ...Option) *Server {
	s := &Server{
		db:       db,
		log:      zap.NewNop(),
		validate: validator.New(),
		cfg:      config.Default().Server,
		window:   series.DefaultWindow,
		version:  version,
		started:  time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = metrics.NewCollector(s.log)
	}
	s.runner = sweep.NewRunner(db, s.log, s.metrics, s.workers)
	s.limiter = rate.NewLimiter(rate.Limit(s.cfg.SweepRate), s.cfg.SweepBurst)
	s.ctx, s.cancel = context.WithCancel(context.Background())

	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Close cancels running sweeps and waits for them to record their outcome.
func (s *Server) Close() {
	s.cancel()
	s.wg.Wait()
}

func (s *Server) routes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(s.instrument)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Post("/series", s.handleSeries)
		r.Post("/classify", s.handleClassify)
		r.Post("/validate", s.handleValidate)
		r.Post("/breathe", s.handleBreathe)

		r.Route("/sweeps", func(r chi.Router) {
			r.Get("/", s.handleListSweeps)
			r.With(s.sweepLimit).Post("/critical", s.handleCriticalSweep)
			r.With(s.sweepLimit).Post("/breathing", s.handleBreathingSweep)
			r.Get("/{id}", s.handleGetSweep)
			r.Delete("/{id}", s.handleDeleteSweep)
			r.Get("/{id}/points", s.handleSweepPoints)
		})
	})
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	dbOK := true
	if err := s.db.Ping(); err != nil {
		dbOK = false
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
		"uptime":  time.Since(s.started).Seconds(),
		"db":      dbOK,
		"db_path": s.db.Path,
		"max_n":   s.cfg.MaxN,
	})
}
