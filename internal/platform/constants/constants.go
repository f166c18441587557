// Copyright (c) 2026 WashPass. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package constants provides centralized, immutable values for the portal.

Categories:

  - Server Timing: Read/Write/Idle timeouts for the HTTP server.
  - Rate Limiting: Burst capacities and IP tracking TTLs.
  - Session: cookie names, handoff parameter, storage key prefixes.
*/
package constants

import "time"

// # Metadata

const (
	AppName    = "washpass-portal"
	AppVersion = "0.1.0-dev"
)

// # Server Timing

const (
	// DefaultReadTimeout is the maximum duration for reading the entire request.
	DefaultReadTimeout = 5 * time.Second

	// DefaultWriteTimeout is the maximum duration before timing out writes of the response.
	DefaultWriteTimeout = 10 * time.Second

	// DefaultIdleTimeout is the maximum amount of time to wait for the next request.
	DefaultIdleTimeout = 120 * time.Second

	// DefaultReadHeaderTimeout is the amount of time allowed to read request headers.
	DefaultReadHeaderTimeout = 2 * time.Second

	// GlobalRequestTimeout is the deadline for the entire request lifecycle.
	GlobalRequestTimeout = 30 * time.Second

	// ShutdownTimeout is how long we wait for in-flight requests to complete during shutdown.
	ShutdownTimeout = 30 * time.Second
)

// # Rate Limiting

const (
	// DefaultRateLimitRPS is the requests per second allowed per IP.
	DefaultRateLimitRPS = 50.0

	// DefaultRateLimitBurst is the maximum burst allowed for the rate limiter.
	DefaultRateLimitBurst = 100

	// RateLimitCleanupInterval is how often old IP entries are removed from memory.
	RateLimitCleanupInterval = 1 * time.Minute

	// RateLimitClientTTL is how long a client must be idle before its entry is deleted.
	RateLimitClientTTL = 3 * time.Minute

	// SignInRateLimitRPS and SignInRateLimitBurst bound login and register
	// attempts per IP, on top of the general limit.
	SignInRateLimitRPS   = 0.2
	SignInRateLimitBurst = 10

	// MaxRequestIDLength caps a caller-supplied X-Request-ID.
	MaxRequestIDLength = 64
)

// # Session

const (
	// OriginCookieName identifies the browser profile that owns a Session Store scope.
	OriginCookieName = "wp_origin"

	// OriginCookieMaxAge keeps the origin stable across reloads and restarts.
	OriginCookieMaxAge = 400 * 24 * time.Hour

	// HandoffParam is the query parameter carrying a native-app session token.
	HandoffParam = "token"

	// MaxHandoffTokenLength rejects absurdly long handoff values.
	MaxHandoffTokenLength = 4096

	// PartnerPathPrefix is the route namespace owned by the partner domain.
	PartnerPathPrefix = "/partner"

	// LogoutNotifyTimeout bounds the best-effort identity logout call.
	LogoutNotifyTimeout = 5 * time.Second

	// OriginSweepInterval is how often idle mounted portals are evicted.
	OriginSweepInterval = 1 * time.Minute

	// DefaultMaxOrigins caps the portals one server keeps mounted.
	DefaultMaxOrigins = 10000
)

// # HTTP Headers

const (
	HeaderXRequestID    = "X-Request-ID"
	HeaderXRealIP       = "X-Real-IP"
	HeaderXForwardedFor = "X-Forwarded-For"
	HeaderOrigin        = "Origin"
	HeaderAuthorization = "Authorization"

	// HeaderReplaceURL tells the shell to swap the visible URL without
	// navigating (history.replaceState).
	HeaderReplaceURL = "X-Replace-Url"
)

// # JSON Field Identifiers

const (
	FieldData    = "data"
	FieldError   = "error"
	FieldCode    = "code"
	FieldDetails = "details"
	FieldMessage = "message"
	FieldStatus  = "status"
	FieldChecks  = "checks"
)

// # Storage Prefixes

const (
	RedisPrefixStorage = "washpass:storage:"
	SchemaPortal       = "portal"
)
