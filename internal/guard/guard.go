// Copyright (c) 2026 WashPass. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package guard decides whether a protected view may render.

[Decide] is total and pure: every snapshot and rule maps to exactly one
[Outcome], and protected content is only ever allowed for a settled,
authenticated session whose role matches.
*/
package guard

import (
	"github.com/taibuivan/washpass/internal/platform/sec"
	"github.com/taibuivan/washpass/internal/session"
)

// Outcome is the verdict of the route guard.
type Outcome int

const (
	// Pending renders a loading placeholder; the session has not settled.
	Pending Outcome = iota

	// RedirectLogin sends an anonymous visitor to the domain's login route.
	RedirectLogin

	// RedirectHome sends an authenticated visitor of the wrong role to the
	// home of the role they actually hold.
	RedirectHome

	// Allow renders the protected view.
	Allow
)

func (o Outcome) String() string {
	switch o {
	case Pending:
		return "pending"
	case RedirectLogin:
		return "redirect_login"
	case RedirectHome:
		return "redirect_home"
	case Allow:
		return "allow"
	default:
		return "unknown"
	}
}

// Decision is an Outcome plus, for redirects, its target.
type Decision struct {
	Outcome  Outcome
	Location string
}

// Rule protects one route. An empty RequiredRole admits any authenticated principal.
type Rule struct {
	RequiredRole sec.Role
	LoginRoute   string
}

// Homes maps each role to its landing route.
type Homes struct {
	Admin   string
	Partner string
	Default string
}

// DefaultHomes are the landing routes of the portal.
var DefaultHomes = Homes{
	Admin:   "/admin",
	Partner: "/partner/dashboard",
	Default: "/app/dashboard",
}

// For returns the home of role.
func (h Homes) For(role sec.Role) string {
	switch {
	case role.Is(sec.RoleAdmin):
		return h.Admin
	case role.Is(sec.RolePartner):
		return h.Partner
	default:
		return h.Default
	}
}

// Decide applies rule to the session snapshot.
func Decide(snapshot session.Snapshot, rule Rule, homes Homes) Decision {
	switch {
	case snapshot.Loading:
		return Decision{Outcome: Pending}
	case !snapshot.Authenticated || snapshot.Principal == nil:
		return Decision{Outcome: RedirectLogin, Location: rule.LoginRoute}
	case rule.RequiredRole != "" && !snapshot.Principal.Role.Is(rule.RequiredRole):
		return Decision{Outcome: RedirectHome, Location: homes.For(snapshot.Principal.Role)}
	default:
		return Decision{Outcome: Allow}
	}
}
