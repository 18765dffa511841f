// Package server owns the HTTP surface: routing, middleware, health
// probes, and graceful shutdown.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/stilehq/stile/internal/handler"
	"github.com/stilehq/stile/internal/openapi"
	"github.com/stilehq/stile/internal/server/middleware"
	"github.com/stilehq/stile/internal/service"
	"github.com/stilehq/stile/internal/store"
)

// Config holds the HTTP server configuration.
type Config struct {
	Host            string
	Port            int
	ShutdownTimeout time.Duration
	CORSOrigins     []string
	// StepUpRatePerMinute caps per-IP requests to the step-up
	// verification endpoints.
	StepUpRatePerMinute int
}

// DefaultConfig returns a Config with sensible production defaults.
func DefaultConfig() Config {
	return Config{
		Host:                "0.0.0.0",
		Port:                8080,
		ShutdownTimeout:     30 * time.Second,
		CORSOrigins:         []string{"*"},
		StepUpRatePerMinute: 30,
	}
}

// Server is the top-level HTTP server. It owns the Chi router, the store,
// and the auth and step-up services.
type Server struct {
	cfg        Config
	router     chi.Router
	store      *store.Store
	authSvc    *service.AuthService
	stepupSvc  *service.StepUpService
	httpServer *http.Server
	logger     *slog.Logger
}

// New creates a Server with all routes and middleware wired, ready to
// listen. Call ListenAndServe to start accepting connections.
func New(cfg Config, st *store.Store, authSvc *service.AuthService, stepupSvc *service.StepUpService, logger *slog.Logger) *Server {
	s := &Server{
		cfg:       cfg,
		store:     st,
		authSvc:   authSvc,
		stepupSvc: stepupSvc,
		logger:    logger,
	}
	s.setupRouter()
	return s
}

func (s *Server) setupRouter() {
	r := chi.NewRouter()

	// --- Global middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(s.logger))
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", middleware.APIKeyHeader, "X-Requested-With"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))
	r.Use(chimw.Compress(5))

	// --- Health checks (no auth required) ---
	r.Get("/healthz", s.handleHealthz)
	r.Get("/readyz", s.handleReadyz)

	// --- OpenAPI spec (no auth required) ---
	r.Get("/openapi.json", openapi.Handler())

	// --- Resource gateway ---
	resHandler := handler.NewResourceHandler(s.store)
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.RequireAPIKey(s.authSvc))

		// Reject mutating verbs before routing: the gateway is read-only.
		r.MethodNotAllowed(handler.MethodNotAllowed)

		// Paths that match nothing get the discovery payload, same as an
		// unknown resource name.
		r.NotFound(resHandler.Discovery)

		r.Get("/", resHandler.Discovery)
		r.Get("/{resource}", resHandler.List)
		r.Get("/{resource}/{id}", resHandler.Get)
	})

	// --- Step-up verification ---
	stepupHandler := handler.NewStepUpHandler(s.stepupSvc)
	r.Route("/auth/v1", func(r chi.Router) {
		r.Use(middleware.RateLimit(s.cfg.StepUpRatePerMinute))

		// Device endpoints require a verified identity.
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireIdentity(s.authSvc))
			r.Post("/device", stepupHandler.RegisterDevice)
			r.Post("/device/check", stepupHandler.CheckDevice)
			r.Get("/device", stepupHandler.ListDevices)
		})

		// Code verification is called by the identity collaborator
		// service-to-service, with the user carried in the body.
		r.Post("/code/verify", stepupHandler.VerifyCode)
	})

	s.router = r
}

// handleHealthz is a liveness probe. Returns 200 if the process is running.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

// handleReadyz is a readiness probe. Returns 200 when the store is
// reachable, 503 otherwise.
func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	httpStatus := http.StatusOK

	if err := s.store.DB().PingContext(r.Context()); err != nil {
		status = "degraded: " + err.Error()
		httpStatus = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus)
	json.NewEncoder(w).Encode(map[string]interface{}{"status": status})
}

// ListenAndServe starts the HTTP server and blocks until a SIGINT or
// SIGTERM is received, then drains in-flight requests before returning.
func (s *Server) ListenAndServe() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", "addr", addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server listen: %w", err)
	case <-ctx.Done():
		s.logger.Info("shutdown signal received, draining connections...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	s.logger.Info("server stopped")
	return nil
}

// Router returns the underlying Chi router, useful for testing.
func (s *Server) Router() chi.Router {
	return s.router
}

// ServeHTTP implements http.Handler, delegating to the router.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
