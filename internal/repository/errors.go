// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as
// services and handlers to distinguish between different failure
// scenarios: a caller must be able to tell "you lost a race" apart
// from "the system is broken".
package repository

import "errors"

// ErrForbidden is returned when the caller attempts an operation
// on a resource they do not own. Handlers should translate this
// into an HTTP 403 response.
var ErrForbidden = errors.New("forbidden")

// ErrNotFound is returned when the requested record does not exist.
// Handlers should translate this into an HTTP 404 response.
var ErrNotFound = errors.New("not found")

// ErrLockHeld is returned when a reservation lock cannot be acquired
// because a live lock on an overlapping date range is owned by a
// different guest. This is a business outcome, not a system error.
var ErrLockHeld = errors.New("held by another guest")

// ErrDuplicateSlip is returned when a payment proof with the same
// content fingerprint already exists in the verified-slip ledger, or
// when the external transaction reference has already been recorded
// for another slip. It signals proof reuse across bookings.
var ErrDuplicateSlip = errors.New("this proof was already used")
