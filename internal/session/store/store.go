// Copyright (c) 2026 WashPass. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package store implements the Session Store: the durable, origin-scoped
key/value storage holding each identity domain's access and refresh tokens.

# Contract

  - Get returns [ErrNoCredentials] when the domain has no access token.
  - Set replaces the whole pair; an empty refresh token removes that entry.
  - Clear removes both entries at once. No caller can observe a state where
    one entry survives and the other does not.

Every Store instance is bound to one origin (browser profile or CLI user),
and every call names the [Namespace] of the domain it acts for, so logging
out of one domain never touches the other.
*/
package store

import (
	"context"
	"errors"
)

var (
	// ErrNoCredentials is returned by Get when no access token is stored.
	ErrNoCredentials = errors.New("store: no credentials")

	// ErrEmptyAccessToken is returned by Set when asked to persist a blank token.
	ErrEmptyAccessToken = errors.New("store: empty access token")
)

// Credentials is the persisted token pair of one identity domain.
type Credentials struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

// Namespace names the two storage keys owned by one identity domain.
type Namespace struct {
	AccessKey  string
	RefreshKey string
}

// Keys returns both keys, access first.
func (ns Namespace) Keys() []string {
	return []string{ns.AccessKey, ns.RefreshKey}
}

// Storage namespaces of the portal's identity domains.
var (
	CustomerNamespace = Namespace{AccessKey: "token", RefreshKey: "refreshToken"}
	PartnerNamespace  = Namespace{AccessKey: "partnerToken", RefreshKey: "partnerRefreshToken"}
)

// Store is the Session Store contract shared by every backend.
type Store interface {
	// Get returns the credentials of ns, or ErrNoCredentials.
	Get(ctx context.Context, ns Namespace) (Credentials, error)

	// Set persists creds under ns, overwriting what was there.
	Set(ctx context.Context, ns Namespace, creds Credentials) error

	// Clear removes both entries of ns.
	Clear(ctx context.Context, ns Namespace) error
}

// Factory builds the Store of one origin scope.
type Factory func(scope string) Store

// fromEntries turns raw key/value lookups into Credentials.
func fromEntries(access, refresh string) (Credentials, error) {
	if access == "" {
		return Credentials{}, ErrNoCredentials
	}
	return Credentials{AccessToken: access, RefreshToken: refresh}, nil
}

// checkSet rejects writes that would leave a refresh token without an access token.
func checkSet(creds Credentials) error {
	if creds.AccessToken == "" {
		return ErrEmptyAccessToken
	}
	return nil
}
