// Package server is docent's HTTP surface: the /ws chat upgrade, the
// admin REST API for models, backends, ingestion, and the agent, plus
// health and optional Prometheus metrics.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/docent-ai/docent/pkg/agent"
	"github.com/docent-ai/docent/pkg/config"
	"github.com/docent-ai/docent/pkg/llms"
	"github.com/docent-ai/docent/pkg/observability"
	"github.com/docent-ai/docent/pkg/orchestrator"
	"github.com/docent-ai/docent/pkg/rag"
	"github.com/docent-ai/docent/pkg/session"
)

// Server wires the gateway's components behind one listener.
type Server struct {
	cfg      *config.Config
	orch     *orchestrator.Orchestrator
	ingestor *rag.Ingestor
	agent    *agent.Agent
	llm      *llms.Client
	hub      *session.Hub
	obs      *observability.Manager

	httpServer *http.Server
}

// Option configures the server.
type Option func(*Server)

// WithObservability attaches the tracing/metrics manager. Request spans
// are only emitted when tracing is enabled in config.
func WithObservability(obs *observability.Manager) Option {
	return func(s *Server) {
		s.obs = obs
	}
}

// New assembles the HTTP surface. The WebSocket hub is owned by the
// server and torn down on Shutdown.
func New(cfg *config.Config, orch *orchestrator.Orchestrator, ingestor *rag.Ingestor, chatAgent *agent.Agent, llm *llms.Client, opts ...Option) *Server {
	s := &Server{
		cfg:      cfg,
		orch:     orch,
		ingestor: ingestor,
		agent:    chatAgent,
		llm:      llm,
		hub:      session.NewHub(orch),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Hub returns the chat session hub.
func (s *Server) Hub() *session.Hub {
	return s.hub
}

// Handler builds the full route tree. Exposed for httptest use.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	// Order: logging -> recovery -> cors -> tracing
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(corsMiddleware)
	if s.obs != nil && s.cfg.Observability.TracingEnabled {
		r.Use(s.tracingMiddleware)
	}

	r.Get("/health", s.handleHealth)
	r.Get("/ws", s.hub.ServeHTTP)

	if s.cfg.Observability.MetricsEnabled {
		r.Get("/metrics", promhttp.Handler().ServeHTTP)
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/models", s.handleListModels)
		r.Post("/models/load", s.handleLoadModel)

		r.Get("/system/current", s.handleCurrentSystem)
		r.Post("/system/switch", s.handleSwitchSystem)

		r.Route("/rag", func(r chi.Router) {
			r.Get("/stats", s.handleRAGStats)
			r.Post("/ingest_text", s.handleIngestText)
			r.Post("/ingest_file", s.handleIngestFile)
			r.Post("/preview", s.handlePreview)
			r.Post("/reset", s.handleReset)

			r.Route("/{backend}", func(r chi.Router) {
				r.Get("/stats", s.handleBackendStats)
				r.Post("/ingest_text", s.handleBackendIngestText)
				r.Post("/ingest_file", s.handleBackendIngestFile)
				r.Post("/preview", s.handleBackendPreview)
				r.Post("/reset", s.handleBackendReset)
			})
		})

		r.Route("/agents/agent1", func(r chi.Router) {
			r.Get("/info", s.handleAgentInfo)
			r.Get("/tools", s.handleAgentTools)
			r.Post("/query", s.handleAgentQuery)
			r.Post("/reset", s.handleAgentReset)
		})
	})

	return r
}

// Start runs the server until ctx is cancelled or the listener fails.
// Timeouts do not apply to hijacked WebSocket connections.
func (s *Server) Start(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:         s.cfg.Server.Address(),
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	slog.Info("HTTP server starting", "address", s.cfg.Server.Address())

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return s.Shutdown(context.Background())
	}
}

// Shutdown drains HTTP, closes chat sessions, and flushes the RAG
// backends so persistent indexes survive the restart.
func (s *Server) Shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var errs []error

	if s.httpServer != nil {
		slog.Info("HTTP server shutting down")
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("http shutdown: %w", err))
		}
	}

	s.hub.Shutdown()

	for _, backend := range s.ingestor.Backends() {
		closer, ok := backend.(interface{ Close() error })
		if !ok {
			continue
		}
		if err := closer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s backend close: %w", backend.Name(), err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %v", errs)
	}
	return nil
}

// Address returns the configured listen address.
func (s *Server) Address() string {
	return s.cfg.Server.Address()
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	// ResponseWriter stays unwrapped so /ws keeps http.Hijacker.
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		slog.Debug("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"duration", time.Since(start),
		)
	})
}

func (s *Server) tracingMiddleware(next http.Handler) http.Handler {
	tracer := s.obs.GetTracer("docent.http")
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), r.Method+" "+r.URL.Path)
		defer span.End()
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// corsMiddleware adds permissive CORS headers, matching the gateway's
// local-first posture.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
