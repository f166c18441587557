// Copyright (c) 2026 WashPass. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package middleware

import (
	"log/slog"
	"net/http"

	"github.com/taibuivan/washpass/internal/platform/constants"
	"github.com/taibuivan/washpass/internal/platform/ctxutil"
	"github.com/taibuivan/washpass/pkg/uuid"
)

// # Origin Scope

/*
Origin identifies the browser profile behind a request.

The id lives in a long-lived, HttpOnly cookie and scopes the Session Store,
so every tab of one browser shares one session per domain. A missing or
malformed cookie is replaced with a fresh UUIDv7.
*/
func Origin(secure bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			var origin string
			if cookie, err := request.Cookie(constants.OriginCookieName); err == nil && uuid.Valid(cookie.Value) {
				origin = cookie.Value
			} else {
				origin = uuid.New()
				http.SetCookie(writer, &http.Cookie{
					Name:     constants.OriginCookieName,
					Value:    origin,
					Path:     "/",
					MaxAge:   int(constants.OriginCookieMaxAge.Seconds()),
					HttpOnly: true,
					Secure:   secure,
					SameSite: http.SameSiteLaxMode,
				})
			}

			ctx := ctxutil.WithOrigin(request.Context(), origin)
			ctx = ctxutil.WithLogger(ctx, ctxutil.GetLogger(ctx).With(slog.String("origin", origin)))

			next.ServeHTTP(writer, request.WithContext(ctx))
		})
	}
}
