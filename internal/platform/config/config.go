// Copyright (c) 2026 WashPass. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package config handles portal-wide settings and environment parsing.

It leverages 'caarlos0/env' to map OS environment variables into a strongly-typed
Go struct, providing early validation and default values.

Usage:

	cfg, err := config.Load()
	if err != nil {
	    log.Fatal(err)
	}

Architecture:

  - Immutability: Once loaded, configuration is read-only.
  - DI-Friendly: Passed to the store factory, identity clients and router via constructors.
  - Zero Hidden State: No global variables are used to store config.
*/
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// # Session Store Backends

const (
	StoreMemory   = "memory"
	StoreRedis    = "redis"
	StorePostgres = "postgres"
)

// # Configuration Schema

// Config holds all runtime configuration for the portal BFF.
type Config struct {

	// Server settings
	ServerPort  string `env:"SERVER_PORT"  envDefault:"8080"`
	Environment string `env:"ENVIRONMENT"  envDefault:"development"`
	Debug       bool   `env:"DEBUG"        envDefault:"false"`

	// Identity backend (REST API issuing bearer tokens)
	IdentityURL      string        `env:"IDENTITY_URL,required"`
	CustomerAuthPath string        `env:"CUSTOMER_AUTH_PATH" envDefault:"/api/v1/auth"`
	PartnerAuthPath  string        `env:"PARTNER_AUTH_PATH"  envDefault:"/api/v1/partner/auth"`
	IdentityTimeout  time.Duration `env:"IDENTITY_TIMEOUT"   envDefault:"10s"`

	// Session Store backend: memory, redis or postgres
	SessionStore string `env:"SESSION_STORE" envDefault:"memory"`

	// Relational Database (PostgreSQL), required when SESSION_STORE=postgres
	DatabaseURL string `env:"DATABASE_URL"`

	// MigrationPath is the filesystem path to the SQL migrations directory.
	MigrationPath string `env:"MIGRATION_PATH" envDefault:"./data/migrations"`

	// Key-Value Cache (Redis), required when SESSION_STORE=redis
	RedisURL string `env:"REDIS_URL"`

	// RestoreWait bounds how long a guarded view waits for a pending restore
	// before rendering the loading placeholder.
	RestoreWait time.Duration `env:"RESTORE_WAIT" envDefault:"1500ms"`

	// OriginIdleTTL is how long an idle origin keeps its mounted portal in memory.
	OriginIdleTTL time.Duration `env:"ORIGIN_IDLE_TTL" envDefault:"30m"`

	// MaxOrigins caps the portals kept in memory; the least recently used goes first.
	MaxOrigins int `env:"MAX_ORIGINS" envDefault:"10000"`

	// NotificationsURL enables push-device registration when set.
	NotificationsURL string `env:"NOTIFICATIONS_URL"`

	// Cross-Origin Resource Sharing
	ExtraOrigins string `env:"EXTRA_ORIGINS"`
}

// # Configuration Loading

// Load parses environment variables into a [Config] struct.
func Load() (*Config, error) {
	cfg := &Config{}

	// This will fail if any field marked with 'required' is missing.
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse environment variables: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validate checks cross-field constraints that struct tags cannot express.
func (c *Config) validate() error {
	c.SessionStore = strings.ToLower(strings.TrimSpace(c.SessionStore))

	switch c.SessionStore {
	case StoreMemory:
	case StoreRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("config: REDIS_URL is required when SESSION_STORE=%s", StoreRedis)
		}
	case StorePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("config: DATABASE_URL is required when SESSION_STORE=%s", StorePostgres)
		}
	default:
		return fmt.Errorf("config: unknown SESSION_STORE %q (want memory, redis or postgres)", c.SessionStore)
	}

	if c.RestoreWait < 0 {
		return fmt.Errorf("config: RESTORE_WAIT must not be negative")
	}

	if c.MaxOrigins <= 0 {
		return fmt.Errorf("config: MAX_ORIGINS must be positive")
	}

	return nil
}

// AllowedOrigins returns the extra CORS origins as a trimmed list.
func (c *Config) AllowedOrigins() []string {
	var origins []string
	for _, origin := range strings.Split(c.ExtraOrigins, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, origin)
		}
	}
	return origins
}

// IsDevelopment reports whether the server is running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction reports whether the server is running in production mode.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
