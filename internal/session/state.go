// Copyright (c) 2026 WashPass. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package session

// State is a node of the session state machine.
//
//	UNINITIALIZED ─Restore─▶ LOADING ─▶ AUTHENTICATED | ANONYMOUS
//	AUTHENTICATED ─Logout/Invalidate─▶ ANONYMOUS
//	ANONYMOUS ─Login/Register─▶ LOADING ─▶ AUTHENTICATED
type State int

const (
	StateUninitialized State = iota
	StateLoading
	StateAuthenticated
	StateAnonymous
)

// String returns the upper-case state name used in logs and view-models.
func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "UNINITIALIZED"
	case StateLoading:
		return "LOADING"
	case StateAuthenticated:
		return "AUTHENTICATED"
	case StateAnonymous:
		return "ANONYMOUS"
	default:
		return "UNKNOWN"
	}
}

// Snapshot is an immutable copy of a machine's session tuple.
//
// Authenticated is true exactly when State is AUTHENTICATED, which in turn
// implies both Principal and Token are present. Loading is true before the
// first restore settles and while a login or registration is in flight.
type Snapshot struct {
	State         State      `json:"state"`
	Principal     *Principal `json:"principal,omitempty"`
	Token         string     `json:"-"`
	Loading       bool       `json:"loading"`
	Authenticated bool       `json:"authenticated"`
}
