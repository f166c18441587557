// Copyright (c) 2026 WashPass. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package session

import (
	"context"

	"github.com/taibuivan/washpass/internal/platform/sec"
	"github.com/taibuivan/washpass/internal/session/store"
)

// # Domain Entities

// Principal is the authenticated identity of a session. It is a value:
// machines replace it wholesale on re-authentication and hand out copies.
type Principal struct {
	ID           int64    `json:"id"`
	Name         string   `json:"name"`
	Email        string   `json:"email"`
	Role         sec.Role `json:"role"`
	Phone        string   `json:"phone,omitempty"`
	Vehicle      Vehicle  `json:"vehicle,omitzero"`
	BusinessName string   `json:"business_name,omitempty"`
}

// Vehicle is the customer's registered car.
type Vehicle struct {
	Make  string `json:"make,omitempty"`
	Model string `json:"model,omitempty"`
	Plate string `json:"plate,omitempty"`
}

// Grant is what the identity backend returns for a successful login or registration.
type Grant struct {
	Principal   Principal
	Credentials store.Credentials
}

// LoginInput defines credentials for an authentication attempt.
type LoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegisterInput holds the data required to enroll a customer or partner.
type RegisterInput struct {
	Name         string   `json:"name"`
	Email        string   `json:"email"`
	Password     string   `json:"password"`
	Phone        string   `json:"phone,omitempty"`
	Vehicle      *Vehicle `json:"vehicle,omitempty"`
	BusinessName string   `json:"business_name,omitempty"`
}

// # Contracts

// IdentityClient is the network boundary of one identity domain.
//
// # Errors
//
// FetchCurrentPrincipal failing for any reason (401, transport, malformed
// payload) means the stored token cannot restore a session. Logout is
// best-effort and its error is only logged.
type IdentityClient interface {
	Login(ctx context.Context, input LoginInput) (Grant, error)
	Register(ctx context.Context, input RegisterInput) (Grant, error)
	FetchCurrentPrincipal(ctx context.Context, token string) (Principal, error)
	Logout(ctx context.Context, token string) error
}
