// Copyright (c) 2026 WashPass. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package handoff_test

import (
	"context"
	"io"
	"log/slog"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/washpass/internal/handoff"
	"github.com/taibuivan/washpass/internal/session/store"
)

func interceptors(s store.Store) (customer, partner *handoff.Interceptor) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	customer = handoff.New(s, store.CustomerNamespace, handoff.OutsidePrefix("/partner"), logger)
	partner = handoff.New(s, store.PartnerNamespace, handoff.UnderPrefix("/partner"), logger)
	return customer, partner
}

func location(t *testing.T, raw string) *handoff.StaticLocation {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return &handoff.StaticLocation{Current: u}
}

/*
TestIntercept_Customer covers consumption on paths the customer domain owns.
*/
func TestIntercept_Customer(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		token   string
		wantURL string
	}{
		{"strips_token_keeps_others", "https://portal.washpass.vn/app/dashboard?token=abc123&foo=bar", "abc123", "https://portal.washpass.vn/app/dashboard?foo=bar"},
		{"only_param", "https://portal.washpass.vn/app/plans?token=abc123", "abc123", "https://portal.washpass.vn/app/plans"},
		{"keeps_order_and_encoding", "/app/codes?a=1&token=t%2B1&q=a%20b&a=2", "t+1", "/app/codes?a=1&q=a%20b&a=2"},
		{"keeps_fragment", "/app/billing?token=abc#invoices", "abc", "/app/billing#invoices"},
		{"admin_is_customer_domain", "/admin?token=adm", "adm", "/admin"},
		{"prefix_is_per_segment", "/partners/info?token=cust", "cust", "/partners/info"},
		{"literal_plus_survives", "/app/dashboard?token=ab+cd/ef==&x=1", "ab+cd/ef==", "/app/dashboard?x=1"},
		{"duplicates_first_wins", "/app/dashboard?token=first&token=second&x=1", "first", "/app/dashboard?x=1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			s := store.NewMemoryStore()
			customer, _ := interceptors(s)
			loc := location(t, tt.raw)

			consumed, err := customer.Intercept(ctx, loc)
			require.NoError(t, err)
			assert.True(t, consumed)
			assert.Equal(t, tt.wantURL, loc.Current.String())

			creds, err := s.Get(ctx, store.CustomerNamespace)
			require.NoError(t, err)
			assert.Equal(t, tt.token, creds.AccessToken)
		})
	}
}

/*
TestIntercept_PartnerPath ensures a token on a partner path is consumed by
the partner domain only.
*/
func TestIntercept_PartnerPath(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	customer, partner := interceptors(s)
	loc := location(t, "https://portal.washpass.vn/partner/dashboard?token=abc123&foo=bar")

	consumed, err := customer.Intercept(ctx, loc)
	require.NoError(t, err)
	assert.False(t, consumed)
	assert.Equal(t, "token=abc123&foo=bar", loc.Current.RawQuery)

	_, err = s.Get(ctx, store.CustomerNamespace)
	assert.ErrorIs(t, err, store.ErrNoCredentials)

	consumed, err = partner.Intercept(ctx, loc)
	require.NoError(t, err)
	assert.True(t, consumed)
	assert.Equal(t, "/partner/dashboard", loc.Current.Path)
	assert.Equal(t, "foo=bar", loc.Current.RawQuery)

	creds, err := s.Get(ctx, store.PartnerNamespace)
	require.NoError(t, err)
	assert.Equal(t, "abc123", creds.AccessToken)
}

/*
TestIntercept_Overwrites verifies a handoff replaces the stored pair.
*/
func TestIntercept_Overwrites(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	require.NoError(t, s.Set(ctx, store.CustomerNamespace, store.Credentials{AccessToken: "old", RefreshToken: "old-refresh"}))
	customer, _ := interceptors(s)

	_, err := customer.Intercept(ctx, location(t, "/app/dashboard?token=new"))
	require.NoError(t, err)

	creds, err := s.Get(ctx, store.CustomerNamespace)
	require.NoError(t, err)
	assert.Equal(t, store.Credentials{AccessToken: "new"}, creds)
}

/*
TestIntercept_NoOp checks that absent or malformed tokens change nothing.
*/
func TestIntercept_NoOp(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"no_query", "/app/dashboard"},
		{"other_params", "/app/dashboard?foo=bar"},
		{"similar_name", "/app/dashboard?tokens=abc&refresh_token=x"},
		{"empty_token", "/app/dashboard?token=&foo=bar"},
		{"bare_token", "/app/dashboard?token"},
		{"whitespace_token", "/app/dashboard?token=a%20b"},
		{"bad_escape", "/app/dashboard?token=%zz"},
		{"oversized", "/app/dashboard?token=" + strings.Repeat("x", 4097)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			s := store.NewMemoryStore()
			customer, _ := interceptors(s)
			loc := location(t, tt.raw)
			before := loc.Current.String()

			consumed, err := customer.Intercept(ctx, loc)
			require.NoError(t, err)
			assert.False(t, consumed)
			assert.Equal(t, before, loc.Current.String())

			_, err = s.Get(ctx, store.CustomerNamespace)
			assert.ErrorIs(t, err, store.ErrNoCredentials)
		})
	}
}

/*
TestRequestLocation verifies the in-flight request is rewritten and the
shell is told which URL to show.
*/
func TestRequestLocation(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	customer, _ := interceptors(s)

	r := httptest.NewRequest("GET", "/app/dashboard?token=abc123&foo=bar", nil)
	w := httptest.NewRecorder()

	consumed, err := customer.Intercept(ctx, handoff.NewRequestLocation(w, r))
	require.NoError(t, err)
	assert.True(t, consumed)

	assert.Equal(t, "/app/dashboard?foo=bar", r.URL.RequestURI())
	assert.Equal(t, "/app/dashboard?foo=bar", w.Header().Get("X-Replace-Url"))
}

/*
TestPathMatchers checks segment-aware prefix ownership.
*/
func TestPathMatchers(t *testing.T) {
	under := handoff.UnderPrefix("/partner/")

	assert.True(t, under("/partner"))
	assert.True(t, under("/partner/"))
	assert.True(t, under("/partner/codes/validate"))
	assert.False(t, under("/partners"))
	assert.False(t, under("/app/partner"))
	assert.True(t, handoff.OutsidePrefix("/partner")("/partnership"))
}
