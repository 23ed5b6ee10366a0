// Package api serves the scoring, connection and audit endpoints.
package api

import (
	"context"
	"net/http"
	"slices"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/render"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/sells-group/zkcredit/internal/config"
	"github.com/sells-group/zkcredit/internal/model"
	"github.com/sells-group/zkcredit/internal/pipeline"
	"github.com/sells-group/zkcredit/internal/session"
	"github.com/sells-group/zkcredit/internal/store"
)

// RunLister reads the proof-run audit log.
type RunLister interface {
	ListProofRuns(ctx context.Context, filter store.RunFilter) ([]model.ProofRun, error)
}

// Server holds the handler dependencies.
type Server struct {
	cfg      config.ServerConfig
	pipeline *pipeline.Pipeline
	sessions *session.Manager
	runs     RunLister
}

// NewServer creates a Server. runs may be nil, in which case the run
// listing answers 404.
func NewServer(cfg config.ServerConfig, p *pipeline.Pipeline, sessions *session.Manager, runs RunLister) *Server {
	return &Server{cfg: cfg, pipeline: p, sessions: sessions, runs: runs}
}

// corsOptions allows any origin without credentials unless explicit origins
// are configured. The session cookie is only sent to those origins.
func corsOptions(origins []string) cors.Options {
	opts := cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}
	if len(origins) == 0 || slices.Contains(origins, "*") {
		opts.AllowedOrigins = []string{"*"}
		return opts
	}
	opts.AllowCredentials = true
	return opts
}

// Routes builds the router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	if s.cfg.RequestTimeoutSecs > 0 {
		r.Use(middleware.Timeout(time.Duration(s.cfg.RequestTimeoutSecs) * time.Second))
	}

	r.Use(cors.Handler(corsOptions(s.cfg.CORSOrigins)))

	r.Get("/health", s.health)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))

		r.Post("/prove", s.prove)
		r.Post("/prove-reliability", s.proveReliability)
		r.Post("/evaluate", s.evaluate)
		r.Get("/runs", s.listRuns)

		r.Route("/quickbooks", func(r chi.Router) {
			r.Get("/ping", s.ping)
			r.Group(func(r chi.Router) {
				r.Use(s.withSession)
				r.Get("/connect", s.connect)
				r.Get("/callback", s.callback)
				r.Get("/status", s.status)
				r.Post("/disconnect", s.disconnect)
				r.Post("/prove", s.proveConnected)
			})
		})
	})

	return r
}

// requestLogger logs one line per request through the global zap logger.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		zap.L().Debug("api: request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
