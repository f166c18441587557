// Copyright (c) 2026 WashPass. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package requestutil provides utilities for extracting data from HTTP requests.

It hides the router's parameter extraction and the body decoding pattern so
every handler fails the same way on bad input.
*/
package requestutil

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/taibuivan/washpass/internal/platform/validate"
)

// maxBodyBytes bounds login and registration payloads.
const maxBodyBytes = 64 << 10

/*
DecodeJSON reads the request body and decodes it into target.

Unknown fields are rejected and the body is capped, so a client typo surfaces
as validate.ErrInvalidJSON instead of a silently empty field.
*/
func DecodeJSON(request *http.Request, target any) error {
	decoder := json.NewDecoder(io.LimitReader(request.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(target); err != nil {
		return validate.ErrInvalidJSON
	}
	return nil
}

// Param retrieves a named URL parameter from the request.
func Param(request *http.Request, name string) string {
	return chi.URLParam(request, name)
}
