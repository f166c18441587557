// Copyright (c) 2026 WashPass. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package validate provides a chainable Validator that collects field-level
// errors before returning a single [apperr.AppError].
//
// # Messages
//
// Failed logins and registrations are shown to the user as one sentence. Err
// therefore carries the first failure as its message; the full list stays in
// Details for logs and API clients that want it.
package validate

import (
	"fmt"
	"net/mail"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/taibuivan/washpass/internal/platform/apperr"
)

var (
	// phoneRegex accepts an optional leading + and 8 to 15 digits, with spaces or dashes.
	phoneRegex = regexp.MustCompile(`^\+?[0-9][0-9 \-]{6,18}[0-9]$`)

	// ErrInvalidJSON is returned when the request body cannot be decoded.
	ErrInvalidJSON = apperr.ValidationError("Invalid JSON payload")
)

// Validator collects field-level validation errors via a fluent, chainable API.
//
// # Concurrency
//
// Validator is not safe for concurrent use. Create one per request.
type Validator struct {
	errs []apperr.FieldError
}

// Required fails if the trimmed value is empty.
func (v *Validator) Required(field, value string) *Validator {
	if strings.TrimSpace(value) == "" {
		v.add(field, "is required")
	}
	return v
}

// MaxLen fails if the Unicode character count exceeds max.
func (v *Validator) MaxLen(field, value string, max int) *Validator {
	if utf8.RuneCountInString(value) > max {
		v.add(field, fmt.Sprintf("must be at most %d characters", max))
	}
	return v
}

// MinLen fails if the Unicode character count is below min.
func (v *Validator) MinLen(field, value string, min int) *Validator {
	if utf8.RuneCountInString(value) < min {
		v.add(field, fmt.Sprintf("must be at least %d characters", min))
	}
	return v
}

// Email fails if the value is not a bare RFC 5322 address.
func (v *Validator) Email(field, value string) *Validator {
	if address, err := mail.ParseAddress(value); err != nil || address.Address != value {
		v.add(field, "must be a valid email address")
	}
	return v
}

// Phone fails if a non-empty value does not look like a phone number.
func (v *Validator) Phone(field, value string) *Validator {
	if value != "" && !phoneRegex.MatchString(value) {
		v.add(field, "must be a valid phone number")
	}
	return v
}

// OneOf fails if the value is not in the allowed set of strings.
func (v *Validator) OneOf(field, value string, allowed ...string) *Validator {
	for _, a := range allowed {
		if value == a {
			return v
		}
	}
	v.add(field, fmt.Sprintf("must be one of: %s", strings.Join(allowed, ", ")))
	return v
}

// Custom adds a failure with a custom message if the condition is true.
//
//	v.Custom("vehicle.plate", plate == "", "is required for customers")
func (v *Validator) Custom(field string, failed bool, message string) *Validator {
	if failed {
		v.add(field, message)
	}
	return v
}

// Err returns a VALIDATION_ERROR whose message names the first failure, or
// nil if all rules passed. Call it at the end of the chain.
func (v *Validator) Err() error {
	if len(v.errs) == 0 {
		return nil
	}
	first := v.errs[0]
	return apperr.ValidationError(first.Field+" "+first.Message, v.errs...)
}

// HasErrors reports whether any validation rule has failed so far.
func (v *Validator) HasErrors() bool {
	return len(v.errs) > 0
}

func (v *Validator) add(field, message string) {
	v.errs = append(v.errs, apperr.FieldError{Field: field, Message: message})
}
