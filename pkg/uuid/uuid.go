// Copyright (c) 2026 WashPass. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package uuid generates the portal's time-ordered identifiers.

Origin ids (the Session Store scope of a browser profile) and request ids are
UUIDv7 values: sortable by creation time, which keeps the portal.storage
primary key append-friendly.
*/
package uuid

import "github.com/google/uuid"

// # Generators

// New generates a new UUIDv7 string.
func New() string {
	id, err := uuid.NewV7()

	// entropy failure is an unrecoverable system-level error
	if err != nil {
		panic("uuid: failed to generate UUIDv7: " + err.Error())
	}

	return id.String()
}

// Valid reports whether s parses as a UUID. Used to reject forged origin cookies.
func Valid(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
