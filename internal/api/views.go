// Copyright (c) 2026 WashPass. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package api

import (
	"net/http"
	"strings"

	"github.com/taibuivan/washpass/internal/guard"
	"github.com/taibuivan/washpass/internal/nav"
	requestutil "github.com/taibuivan/washpass/internal/platform/request"
	"github.com/taibuivan/washpass/internal/platform/validate"
	"github.com/taibuivan/washpass/internal/session"
)

// # View Models

// SessionView is the shell-facing state of one domain's session.
type SessionView struct {
	Domain        string             `json:"domain"`
	State         string             `json:"state"`
	Loading       bool               `json:"loading"`
	Authenticated bool               `json:"authenticated"`
	Principal     *session.Principal `json:"principal,omitempty"`
	Home          string             `json:"home,omitempty"`
	Menu          []nav.Item         `json:"menu"`
}

func newSessionView(domain session.Domain, snapshot session.Snapshot) SessionView {
	view := SessionView{
		Domain:        domain.Name,
		State:         snapshot.State.String(),
		Loading:       snapshot.Loading,
		Authenticated: snapshot.Authenticated,
		Principal:     snapshot.Principal,
		Menu:          nav.Menu(""),
	}
	if snapshot.Authenticated && snapshot.Principal != nil {
		view.Home = guard.DefaultHomes.For(snapshot.Principal.Role)
		view.Menu = nav.Menu(snapshot.Principal.Role)
	}
	return view
}

// LoginView is the body of a login page.
type LoginView struct {
	View    string      `json:"view"`
	Session SessionView `json:"session"`
}

// PageView is the body of a guarded view.
type PageView struct {
	View      string             `json:"view"`
	Title     string             `json:"title"`
	Principal *session.Principal `json:"principal"`
	Menu      []nav.Item         `json:"menu"`
}

// # Input Decoding

func decodeLogin(request *http.Request) (session.LoginInput, error) {
	var input session.LoginInput
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		return input, err
	}
	input.Email = strings.TrimSpace(input.Email)

	v := &validate.Validator{}
	v.Required("email", input.Email).
		Email("email", input.Email).
		Required("password", input.Password)
	return input, v.Err()
}

func decodeRegistration(request *http.Request, check func(session.RegisterInput) error) (session.RegisterInput, error) {
	var input session.RegisterInput
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		return input, err
	}
	input.Name = strings.TrimSpace(input.Name)
	input.Email = strings.TrimSpace(input.Email)
	input.Phone = strings.TrimSpace(input.Phone)
	input.BusinessName = strings.TrimSpace(input.BusinessName)
	return input, check(input)
}

func validateCustomerRegistration(input session.RegisterInput) error {
	v := baseRegistration(input)
	if input.Vehicle != nil {
		v.Required("vehicle.plate", input.Vehicle.Plate).
			MaxLen("vehicle.plate", input.Vehicle.Plate, 20)
	}
	return v.Err()
}

func validatePartnerRegistration(input session.RegisterInput) error {
	v := baseRegistration(input)
	v.Required("business_name", input.BusinessName).
		MaxLen("business_name", input.BusinessName, 150).
		Custom("vehicle", input.Vehicle != nil, "is not accepted for partners")
	return v.Err()
}

func baseRegistration(input session.RegisterInput) *validate.Validator {
	v := &validate.Validator{}
	v.Required("name", input.Name).
		MaxLen("name", input.Name, 100).
		Required("email", input.Email).
		Email("email", input.Email).
		MinLen("password", input.Password, 8).
		MaxLen("password", input.Password, 128).
		Phone("phone", input.Phone)
	return v
}
