// Copyright (c) 2026 WashPass. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package sec

import (
	"strings"

	"golang.org/x/text/cases"
)

// # Portal Roles

// Role is the authorization level of a Principal. It decides which route
// set the Principal may reach and which navigation menu renders.
type Role string

const (
	// Subscribers browsing plans, billing and verification codes
	RoleCustomer Role = "CUSTOMER"

	// Wash-site operators validating codes
	RolePartner Role = "PARTNER"

	// Back-office staff administering partners
	RoleAdmin Role = "ADMIN"
)

var fold = cases.Fold()

// ParseRole maps a backend role string onto the enumeration. Comparison is
// case-insensitive; unknown values report false.
func ParseRole(raw string) (Role, bool) {
	folded := fold.String(strings.TrimSpace(raw))
	for _, role := range []Role{RoleCustomer, RolePartner, RoleAdmin} {
		if fold.String(string(role)) == folded {
			return role, true
		}
	}
	return "", false
}

// Is reports whether r names the same role as other, ignoring case.
func (r Role) Is(other Role) bool {
	if r == "" || other == "" {
		return false
	}
	return fold.String(string(r)) == fold.String(string(other))
}

// Normalize returns the canonical spelling of r, or r unchanged if unknown.
func (r Role) Normalize() Role {
	if role, ok := ParseRole(string(r)); ok {
		return role
	}
	return r
}
