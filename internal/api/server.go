// Copyright (c) 2026 WashPass. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package api wires together the HTTP router, middleware chain, and the portal
handlers into a runnable [http.Server].

Architecture:

  - This package is the topmost presentation boundary.
  - It is the composition root for the chi router.
  - Only this package and cmd/portal import net/http server primitives.
*/
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/taibuivan/washpass/internal/platform/config"
	"github.com/taibuivan/washpass/internal/platform/constants"
	"github.com/taibuivan/washpass/internal/platform/metrics"
	"github.com/taibuivan/washpass/internal/platform/middleware"
)

// # Server Definitions

// Server wraps the chi router and the [http.Server].
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	log        *slog.Logger
}

// # Handler Registry

// Handlers groups the HTTP handler sets of the portal.
type Handlers struct {
	// Liveness is the /health handler; 200 while the process is alive.
	Liveness http.HandlerFunc

	// Readiness is the /ready handler; 200 when the Session Store backend is reachable.
	Readiness http.HandlerFunc

	// Portal serves the login, logout and guarded view routes of every domain.
	Portal *PortalHandler
}

// # Server Initialization

// NewServer constructs the chi router with the full middleware chain and
// registers all routes. ctx bounds the lifetime of background middleware.
func NewServer(ctx context.Context, cfg *config.Config, log *slog.Logger, h Handlers) *Server {
	r := chi.NewRouter()

	// # Middleware Chain
	r.Use(middleware.RequestID())
	r.Use(middleware.StructuredLogger(log))
	r.Use(chimw.Timeout(constants.GlobalRequestTimeout))
	r.Use(middleware.RateLimit(ctx))
	r.Use(middleware.PanicRecovery(log))
	r.Use(middleware.CORS(cfg))
	r.Use(chimw.CleanPath)

	// # Infrastructure Endpoints
	r.Get("/health", h.Liveness)
	r.Get("/ready", h.Readiness)
	r.Handle("/metrics", metrics.Handler())

	// # Portal
	// Every portal route is scoped to the browser origin cookie.
	r.Group(func(portalRoutes chi.Router) {
		portalRoutes.Use(middleware.Origin(cfg.IsProduction()))
		portalRoutes.Mount("/", h.Portal.Routes())
	})

	return &Server{
		router: r,
		log:    log,
		httpServer: &http.Server{
			Addr:              ":" + cfg.ServerPort,
			Handler:           r,
			ReadTimeout:       constants.DefaultReadTimeout,
			WriteTimeout:      constants.DefaultWriteTimeout,
			IdleTimeout:       constants.DefaultIdleTimeout,
			ReadHeaderTimeout: constants.DefaultReadHeaderTimeout,
		},
	}
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// # Server Lifecycle

// ListenAndServe starts the HTTP server. It blocks until the server is closed.
func (s *Server) ListenAndServe() error {
	s.log.Info("server_starting", slog.String("addr", s.httpServer.Addr))
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the server, waiting for in-flight requests.
func (s *Server) Shutdown(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return s.httpServer.Shutdown(ctx)
}
