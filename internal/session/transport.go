// Copyright (c) 2026 WashPass. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package session

import (
	"net/http"
	"strings"

	"golang.org/x/oauth2"

	"github.com/taibuivan/washpass/internal/platform/constants"
)

// Transport is an [http.RoundTripper] for authorized requests on behalf of a
// machine. It attaches the current access token as a bearer credential and
// invalidates the session when the server answers 401 for that token.
// A request that already carries a bearer token keeps it.
type Transport struct {
	Machine *Machine
	Base    http.RoundTripper
}

// NewTransport wraps base, or [http.DefaultTransport] when base is nil.
func NewTransport(machine *Machine, base http.RoundTripper) *Transport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &Transport{Machine: machine, Base: base}
}

// RoundTrip implements [http.RoundTripper].
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	next := t.Base

	token, found := strings.CutPrefix(req.Header.Get(constants.HeaderAuthorization), "Bearer ")
	if !found {
		// The token is pinned for the whole call so a 401 invalidates the
		// session it was sent for and nothing newer.
		token = t.Machine.Snapshot().Token
		if token != "" {
			next = &oauth2.Transport{
				Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"}),
				Base:   t.Base,
			}
		}
	}

	resp, err := next.RoundTrip(req)
	if err != nil {
		return nil, err
	}

	if token != "" && resp.StatusCode == http.StatusUnauthorized {
		t.Machine.Invalidate(req.Context(), token)
	}
	return resp, nil
}

// Client returns an http.Client using t.
func (t *Transport) Client() *http.Client {
	return &http.Client{Transport: t}
}
