// Copyright (c) 2026 WashPass. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package handoff adopts a session token passed in the URL by the native app.

An [Interceptor] runs once per mount, before the domain's machine restores.
When the current location carries `?token=...` on a path the domain owns, the
token overwrites whatever the domain had stored and the parameter is removed
from the visible URL in place. Path ownership decides which domain consumes a
token; its content is never inspected.
*/
package handoff

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"unicode"

	"github.com/taibuivan/washpass/internal/platform/constants"
	"github.com/taibuivan/washpass/internal/session/store"
)

// Location is the mutable address of the current view.
type Location interface {
	URL() *url.URL

	// Replace swaps the visible URL without a new navigation.
	Replace(next *url.URL)
}

// PathMatcher reports whether a domain owns a request path.
type PathMatcher func(path string) bool

// UnderPrefix matches prefix itself and every path below it. Matching is per
// segment: "/partners" is not under "/partner".
func UnderPrefix(prefix string) PathMatcher {
	prefix = "/" + strings.Trim(prefix, "/")
	return func(path string) bool {
		return path == prefix || strings.HasPrefix(path, prefix+"/")
	}
}

// OutsidePrefix is the complement of UnderPrefix.
func OutsidePrefix(prefix string) PathMatcher {
	under := UnderPrefix(prefix)
	return func(path string) bool {
		return !under(path)
	}
}

// Interceptor consumes handoff tokens for one identity domain.
type Interceptor struct {
	store  store.Store
	ns     store.Namespace
	owns   PathMatcher
	logger *slog.Logger
}

// New builds an interceptor writing into ns of sessionStore for paths owns accepts.
func New(sessionStore store.Store, ns store.Namespace, owns PathMatcher, logger *slog.Logger) *Interceptor {
	return &Interceptor{store: sessionStore, ns: ns, owns: owns, logger: logger}
}

/*
Intercept adopts the handoff token of loc, if any.

It reports whether a token was consumed. A missing, blank or oversized token
is not an error: nothing is written and the URL is left as is. The token is
persisted before the URL is rewritten, so a failed write keeps the parameter
for the next attempt.
*/
func (i *Interceptor) Intercept(ctx context.Context, loc Location) (bool, error) {
	current := loc.URL()
	if current == nil || !i.owns(current.Path) {
		return false, nil
	}

	token, rest, found := extract(current.RawQuery)
	if !found {
		return false, nil
	}
	if !wellFormed(token) {
		i.logger.DebugContext(ctx, "handoff_token_ignored", slog.String("path", current.Path))
		return false, nil
	}

	if err := i.store.Set(ctx, i.ns, store.Credentials{AccessToken: token}); err != nil {
		return false, fmt.Errorf("handoff: persist token: %w", err)
	}

	next := *current
	next.RawQuery = rest
	next.ForceQuery = false
	loc.Replace(&next)

	i.logger.InfoContext(ctx, "handoff_token_consumed", slog.String("path", current.Path))
	return true, nil
}

// extract removes every handoff parameter from rawQuery, keeping the other
// pairs byte for byte and in order. The first occurrence is the token.
func extract(rawQuery string) (token, rest string, found bool) {
	if rawQuery == "" {
		return "", "", false
	}

	kept := make([]string, 0, strings.Count(rawQuery, "&")+1)
	for _, pair := range strings.Split(rawQuery, "&") {
		if pair == "" {
			continue
		}

		rawKey, rawValue, _ := strings.Cut(pair, "=")
		key, err := url.QueryUnescape(rawKey)
		if err != nil || key != constants.HandoffParam {
			kept = append(kept, pair)
			continue
		}

		if !found {
			found = true
			// Path unescaping keeps a literal '+', as found in base64 tokens.
			if value, err := url.PathUnescape(rawValue); err == nil {
				token = value
			}
		}
	}

	return token, strings.Join(kept, "&"), found
}

func wellFormed(token string) bool {
	if token == "" || len(token) > constants.MaxHandoffTokenLength {
		return false
	}
	return strings.IndexFunc(token, unicode.IsSpace) < 0
}
