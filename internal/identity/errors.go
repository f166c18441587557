// Copyright (c) 2026 WashPass. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedResponse is returned when a 2xx body cannot be read as the
// expected envelope, or lacks a token or principal.
var ErrMalformedResponse = errors.New("identity: malformed response")

// HTTPError represents a non-2xx response from the identity backend.
type HTTPError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// IsStatus reports whether err (or any wrapped error) is an HTTPError with the given status code.
func IsStatus(err error, code int) bool {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode == code
	}
	return false
}

// Message reduces err to the single sentence shown to a user after a failed
// login or registration.
func Message(err error) string {
	var httpErr *HTTPError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &httpErr) && strings.TrimSpace(httpErr.Message) != "" && httpErr.StatusCode < 500:
		return httpErr.Message
	case errors.As(err, &httpErr) && httpErr.StatusCode == 401:
		return "Invalid email or password."
	case errors.Is(err, context.DeadlineExceeded):
		return "The sign-in service did not respond in time. Please try again."
	default:
		return "Sign-in is unavailable right now. Please try again."
	}
}
