// Copyright (c) 2026 WashPass. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Command portal is the entry point for the WashPass portal BFF server.
//
// # Startup Sequence
//
//  1. Initialize structured logger.
//  2. Load configuration from environment variables.
//  3. Open the Session Store backend (memory, Redis or PostgreSQL).
//  4. Build the customer and partner identity clients.
//  5. Start the portal registry and its idle sweeper.
//  6. Start HTTP server with graceful shutdown.
//
// No business logic lives here. All wiring is explicit constructor injection.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/taibuivan/washpass/internal/api"
	"github.com/taibuivan/washpass/internal/identity"
	"github.com/taibuivan/washpass/internal/platform/config"
	"github.com/taibuivan/washpass/internal/platform/constants"
	"github.com/taibuivan/washpass/internal/platform/migration"
	pgstore "github.com/taibuivan/washpass/internal/platform/postgres"
	redisstore "github.com/taibuivan/washpass/internal/platform/redis"
	"github.com/taibuivan/washpass/internal/platform/sec"
	"github.com/taibuivan/washpass/internal/portal"
	"github.com/taibuivan/washpass/internal/session/store"
)

func main() {
	// ── 1. Logger ──────────────────────────────────────────────────────────
	// Initialize first so that subsequent startup errors are structured JSON.
	log := newLogger(slog.LevelInfo)
	slog.SetDefault(log)

	log.Info("[WashPass] portal_initializing")

	// ── 2. Configuration ──────────────────────────────────────────────────
	cfg, err := config.Load()
	must(log, err, "load configuration")

	if cfg.Debug {
		log = newLogger(slog.LevelDebug)
		slog.SetDefault(log)
		log.Debug("debug_logging_enabled")
	}

	log.Info("configuration_loaded",
		slog.String("environment", cfg.Environment),
		slog.String("port", cfg.ServerPort),
		slog.String("session_store", cfg.SessionStore),
	)

	// Root context for startup. A 30s deadline catches misconfiguration
	// quickly rather than hanging indefinitely.
	startupCtx, startupCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer startupCancel()

	// ── 3. Session Store ──────────────────────────────────────────────────
	stores, checks, closeStore, err := openStore(startupCtx, cfg, log)
	must(log, err, "open session store")
	defer closeStore()

	// ── 4. Identity Clients ───────────────────────────────────────────────
	identities := portal.Identities{
		Customer: identity.New(cfg.IdentityURL, cfg.CustomerAuthPath,
			identity.WithTimeout(cfg.IdentityTimeout),
		),
		Partner: identity.New(cfg.IdentityURL, cfg.PartnerAuthPath,
			identity.WithTimeout(cfg.IdentityTimeout),
			identity.WithDefaultRole(sec.RolePartner),
		),
	}

	// ── 5. Portal Registry ────────────────────────────────────────────────
	rootCtx, rootCancel := context.WithCancel(context.Background())
	defer rootCancel()

	registry := portal.NewRegistry(portal.Options{
		Stores:           stores,
		Identities:       identities,
		Logger:           log,
		NotificationsURL: cfg.NotificationsURL,
		MaxOrigins:       cfg.MaxOrigins,
	}, cfg.OriginIdleTTL)
	go registry.Run(rootCtx)

	// ── 6. HTTP Server ────────────────────────────────────────────────────
	liveness, readiness := api.NewHealthHandlers(checks, log)

	server := api.NewServer(rootCtx, cfg, log, api.Handlers{
		Liveness:  liveness,
		Readiness: readiness,
		Portal:    api.NewPortalHandler(registry, cfg.RestoreWait),
	})

	// ── 7. Graceful Shutdown ──────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)

	serverErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Block until OS signal or server error.
	select {
	case sig := <-quit:
		log.Info("shutdown signal received", slog.String("signal", sig.String()))
	case err := <-serverErr:
		log.Error("server startup error", slog.Any("error", err))
	}

	shutdownTimeout := constants.ShutdownTimeout
	log.Info("shutting down server", slog.Duration("timeout", shutdownTimeout))

	if err := server.Shutdown(shutdownTimeout); err != nil {
		log.Error("shutdown error", slog.Any("error", err))
	}

	// Pending logout notifications are flushed before the store goes away.
	registry.Shutdown()
	log.Info("server stopped cleanly")
}

func newLogger(level slog.Level) *slog.Logger {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	return slog.New(handler).With(slog.String("app", "washpass-portal"))
}

// openStore builds the Session Store factory selected by SESSION_STORE, the
// readiness probes of its backend and a func releasing it.
func openStore(ctx context.Context, cfg *config.Config, log *slog.Logger) (store.Factory, []api.HealthCheck, func(), error) {
	switch cfg.SessionStore {
	case config.StoreMemory:
		log.Warn("session_store_in_memory", slog.String("hint", "sessions are lost on restart"))
		return store.NewMemoryFactory(), nil, func() {}, nil

	case config.StoreRedis:
		rdb, err := redisstore.NewClient(ctx, cfg.RedisURL, log)
		if err != nil {
			return nil, nil, nil, err
		}
		checks := []api.HealthCheck{{
			Name:  "redis",
			Probe: func(ctx context.Context) error { return redisstore.Ping(ctx, rdb) },
		}}
		closeFn := func() {
			log.Info("closing redis client")
			if cerr := rdb.Close(); cerr != nil {
				log.Error("redis close error", slog.Any("error", cerr))
			}
		}
		return store.NewRedisFactory(rdb), checks, closeFn, nil

	case config.StorePostgres:
		if err := migration.RunUp(cfg.DatabaseURL, cfg.MigrationPath, log); err != nil {
			return nil, nil, nil, err
		}
		pool, err := pgstore.NewPool(ctx, cfg.DatabaseURL, log)
		if err != nil {
			return nil, nil, nil, err
		}
		checks := []api.HealthCheck{{
			Name:  "postgres",
			Probe: func(ctx context.Context) error { return pgstore.Ping(ctx, pool) },
		}}
		closeFn := func() {
			log.Info("closing postgres pool")
			pool.Close()
		}
		return store.NewPostgresFactory(pool), checks, closeFn, nil
	}

	return nil, nil, nil, fmt.Errorf("unknown session store %q", cfg.SessionStore)
}

// must logs a structured fatal error and terminates the process if err is non-nil.
//
// It is limited to startup wiring. After startup, all errors are returned
// and handled explicitly.
func must(log *slog.Logger, err error, context string) {
	if err != nil {
		log.Error("startup failure",
			slog.String("context", context),
			slog.Any("error", err),
		)
		os.Exit(1)
	}
}
