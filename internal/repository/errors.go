// Package repository defines error types that are reused across the
// booking stores. These sentinel values allow higher layers such as the
// service to distinguish between different failure scenarios without
// inspecting driver errors. Abort reasons raised inside a transaction
// are returned as these values and must reach the caller unchanged.
package repository

import "errors"

// ErrBookingNotFound is returned when no booking exists for the given ID.
var ErrBookingNotFound = errors.New("booking not found")

// ErrNotClaimable is returned from inside a claim transaction when the
// booking is no longer waiting for an artist.
var ErrNotClaimable = errors.New("booking already claimed or unavailable")

// ErrForbidden is returned when the caller attempts an operation
// on a booking they are not a party to.
var ErrForbidden = errors.New("forbidden")

// ErrConflict signals that a transaction lost a race with a concurrent
// writer. The transaction runner retries on it; it only escapes when
// the retry policy is exhausted.
var ErrConflict = errors.New("transaction conflict")
