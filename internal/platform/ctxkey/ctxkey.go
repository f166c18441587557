// Copyright (c) 2026 WashPass. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package ctxkey defines typed context keys used by middleware and handlers.
//
// # Safety
//
// Using a private, unexported type for keys prevents collisions with third-party
// packages that might also use context for storage.
package ctxkey

type key string

const (
	// KeyRequestID is the context key for the X-Request-ID correlation value.
	KeyRequestID key = "request_id"

	// KeyLogger is the context key for the per-request [*log/slog.Logger].
	KeyLogger key = "logger"

	// KeyOrigin is the context key for the browser origin id (Session Store scope).
	KeyOrigin key = "origin"

	// KeySession is the context key for the session snapshot a guard admitted.
	KeySession key = "session"

	// KeyPortal is the context key for the origin's mounted portal.
	KeyPortal key = "portal"
)
