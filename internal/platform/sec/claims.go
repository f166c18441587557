// Copyright (c) 2026 WashPass. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package sec holds the portal's role model and the best-effort bearer
// token inspection used for UX shortcuts.
//
// # Trust Boundary
//
// Nothing in this package verifies a signature. The portal never issues or
// validates tokens; the identity backend does. A role read from a token here
// is a hint and must never decide access on its own.
package sec

import (
	"github.com/golang-jwt/jwt/v5"
)

// TokenClaims is the subset of an access token payload the portal peeks at.
// Both the abbreviated ("rol") and long ("role") claim names are accepted.
type TokenClaims struct {
	jwt.RegisteredClaims

	UserID   string `json:"uid,omitempty"`
	Role     string `json:"rol,omitempty"`
	RoleLong string `json:"role,omitempty"`
}

var unverifiedParser = jwt.NewParser()

// PeekClaims decodes the payload of a JWT without verifying it.
// Opaque (non-JWT) tokens report false.
func PeekClaims(token string) (*TokenClaims, bool) {
	claims := &TokenClaims{}
	if _, _, err := unverifiedParser.ParseUnverified(token, claims); err != nil {
		return nil, false
	}
	return claims, true
}

// PeekRole extracts the role claim of a JWT without verifying it.
func PeekRole(token string) (Role, bool) {
	claims, ok := PeekClaims(token)
	if !ok {
		return "", false
	}
	raw := claims.Role
	if raw == "" {
		raw = claims.RoleLong
	}
	return ParseRole(raw)
}
