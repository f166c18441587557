// Copyright (c) 2026 WashPass. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package middleware provides the portal's HTTP processing chain.

Order in the router: request id, access log, timeout, rate limit, panic
recovery, CORS, and, on portal routes only, the origin cookie that scopes
the browser's Session Store. Probes (/health, /ready, /metrics) sit outside
the origin group so they never mint a cookie.
*/
package middleware

import (
	"context"
	"encoding/json"
	"log/slog"
	"math"
	"net"
	"net/http"
	"runtime/debug"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/time/rate"

	"github.com/taibuivan/washpass/internal/platform/constants"
	"github.com/taibuivan/washpass/internal/platform/ctxutil"
	"github.com/taibuivan/washpass/pkg/uuid"
)

// # Request Tracing

// RequestID keeps a caller's X-Request-ID when it is short and printable,
// and mints a UUIDv7 otherwise.
func RequestID() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			requestID := request.Header.Get(constants.HeaderXRequestID)
			if !usableRequestID(requestID) {
				requestID = uuid.New()
			}

			writer.Header().Set(constants.HeaderXRequestID, requestID)
			ctx := ctxutil.WithRequestID(request.Context(), requestID)
			next.ServeHTTP(writer, request.WithContext(ctx))
		})
	}
}

func usableRequestID(id string) bool {
	if id == "" || len(id) > constants.MaxRequestIDLength {
		return false
	}
	for _, r := range id {
		if r <= ' ' || r > '~' {
			return false
		}
	}
	return true
}

// # Access Log

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (recorder *statusRecorder) WriteHeader(code int) {
	recorder.status = code
	recorder.ResponseWriter.WriteHeader(code)
}

/*
StructuredLogger puts a request-scoped logger into the context and writes
one http_request_finished entry per request.

Probe traffic is logged at DEBUG. Other requests log at INFO, WARN for 4xx
and ERROR for 5xx. The chi route pattern is logged next to the raw path so
/app/{view} requests group together.
*/
func StructuredLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			started := time.Now()

			requestLogger := logger.With(
				slog.String("request_id", ctxutil.GetRequestID(request.Context())),
				slog.String("method", request.Method),
				slog.String("path", request.URL.Path),
				slog.String("ip", RealIP(request)),
			)
			ctx := ctxutil.WithLogger(request.Context(), requestLogger)
			recorder := &statusRecorder{ResponseWriter: writer, status: http.StatusOK}

			next.ServeHTTP(recorder, request.WithContext(ctx))

			level := slog.LevelInfo
			switch {
			case recorder.status >= 500:
				level = slog.LevelError
			case recorder.status >= 400:
				level = slog.LevelWarn
			case isProbe(request.URL.Path):
				level = slog.LevelDebug
			}

			attrs := []slog.Attr{
				slog.Int("status", recorder.status),
				slog.Int64("latency_ms", time.Since(started).Milliseconds()),
			}
			if routeCtx := chi.RouteContext(ctx); routeCtx != nil && routeCtx.RoutePattern() != "" {
				attrs = append(attrs, slog.String("route", routeCtx.RoutePattern()))
			}
			if replaced := writer.Header().Get(constants.HeaderReplaceURL); replaced != "" {
				attrs = append(attrs, slog.Bool("handoff", true))
			}
			requestLogger.LogAttrs(ctx, level, "http_request_finished", attrs...)
		})
	}
}

func isProbe(path string) bool {
	return path == "/health" || path == "/ready" || path == "/metrics"
}

// # Rate Limiting

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// visitors is a token bucket per key, swept of idle keys by a ticker.
type visitors struct {
	mu    sync.Mutex
	limit rate.Limit
	burst int
	seen  map[string]*visitor
}

func newVisitors(limit rate.Limit, burst int) *visitors {
	return &visitors{limit: limit, burst: burst, seen: make(map[string]*visitor)}
}

// reserve takes a token for key. When none is left it reports how long the
// caller should wait.
func (v *visitors) reserve(key string, now time.Time) (bool, time.Duration) {
	v.mu.Lock()
	defer v.mu.Unlock()

	entry, ok := v.seen[key]
	if !ok {
		entry = &visitor{limiter: rate.NewLimiter(v.limit, v.burst)}
		v.seen[key] = entry
	}
	entry.lastSeen = now

	reservation := entry.limiter.ReserveN(now, 1)
	delay := reservation.DelayFrom(now)
	if delay == 0 {
		return true, 0
	}
	reservation.CancelAt(now)
	return false, delay
}

func (v *visitors) sweep(now time.Time) {
	v.mu.Lock()
	defer v.mu.Unlock()
	for key, entry := range v.seen {
		if now.Sub(entry.lastSeen) > constants.RateLimitClientTTL {
			delete(v.seen, key)
		}
	}
}

/*
RateLimit applies a per-IP token bucket to every request, and a much
tighter one to sign-in attempts (POST .../login and .../register).

Rejections carry Retry-After. The sweep goroutine stops when ctx is done.
*/
func RateLimit(ctx context.Context) func(http.Handler) http.Handler {
	general := newVisitors(rate.Limit(constants.DefaultRateLimitRPS), constants.DefaultRateLimitBurst)
	signIn := newVisitors(rate.Limit(constants.SignInRateLimitRPS), constants.SignInRateLimitBurst)

	go func() {
		ticker := time.NewTicker(constants.RateLimitCleanupInterval)
		defer ticker.Stop()

		for {
			select {
			case now := <-ticker.C:
				general.sweep(now)
				signIn.sweep(now)
			case <-ctx.Done():
				return
			}
		}
	}()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			ip := RealIP(request)
			now := time.Now()

			allowed, wait := general.reserve(ip, now)
			if allowed && isSignIn(request) {
				allowed, wait = signIn.reserve(ip, now)
			}
			if !allowed {
				writer.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
				writeError(writer, http.StatusTooManyRequests, "TOO_MANY_REQUESTS", "Too many requests, please slow down")
				return
			}

			next.ServeHTTP(writer, request)
		})
	}
}

func isSignIn(request *http.Request) bool {
	if request.Method != http.MethodPost {
		return false
	}
	path := strings.TrimRight(request.URL.Path, "/")
	return strings.HasSuffix(path, "/login") || strings.HasSuffix(path, "/register")
}

// # Panic Recovery

// PanicRecovery turns a handler panic into a logged stack and a 500 envelope.
func PanicRecovery(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			defer func() {
				recovered := recover()
				if recovered == nil {
					return
				}

				log := ctxutil.GetLogger(request.Context())
				if log == slog.Default() && logger != nil {
					log = logger
				}
				log.ErrorContext(request.Context(), "panic_recovered",
					slog.Any("error", recovered),
					slog.String("stack", string(debug.Stack())),
				)

				writeError(writer, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "An unexpected error occurred")
			}()

			next.ServeHTTP(writer, request)
		})
	}
}

// # CORS

// AppConfig defines the behavior needed by the CORS middleware.
type AppConfig interface {
	IsDevelopment() bool
	AllowedOrigins() []string
}

/*
CORS admits the portal shells. Development allows any origin; otherwise
washpass.vn subdomains and the configured extras.

Credentials are allowed so the origin cookie travels with every call.
X-Replace-Url is exposed for the handoff response.
*/
func CORS(cfg AppConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			origin := request.Header.Get(constants.HeaderOrigin)
			if origin == "" {
				next.ServeHTTP(writer, request)
				return
			}

			if cfg.IsDevelopment() || strings.HasSuffix(origin, ".washpass.vn") || slices.Contains(cfg.AllowedOrigins(), origin) {
				header := writer.Header()
				header.Set("Access-Control-Allow-Origin", origin)
				header.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
				header.Set("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, X-Request-ID")
				header.Set("Access-Control-Expose-Headers", "X-Request-ID, Retry-After, "+constants.HeaderReplaceURL)
				header.Set("Access-Control-Allow-Credentials", "true")
				header.Set("Access-Control-Max-Age", "300")
				header.Add("Vary", "Origin")
			}

			if request.Method == http.MethodOptions {
				writer.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(writer, request)
		})
	}
}

// # Helpers

// RealIP returns the client address, trusting X-Real-IP and then the first
// X-Forwarded-For hop set by the ingress.
func RealIP(request *http.Request) string {
	if ip := request.Header.Get(constants.HeaderXRealIP); ip != "" {
		return ip
	}

	if forwarded := request.Header.Get(constants.HeaderXForwardedFor); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		return strings.TrimSpace(first)
	}

	host, _, err := net.SplitHostPort(request.RemoteAddr)
	if err != nil {
		return request.RemoteAddr
	}
	return host
}

// writeError writes the error envelope directly.
func writeError(writer http.ResponseWriter, status int, code, message string) {
	writer.Header().Set("Content-Type", "application/json; charset=utf-8")
	writer.WriteHeader(status)
	_ = json.NewEncoder(writer).Encode(map[string]string{
		constants.FieldCode:  code,
		constants.FieldError: message,
	})
}
