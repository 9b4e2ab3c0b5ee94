// Package sheet adapts the external spreadsheet-backed record store to
// the rest of the application. Rows are addressed by the record id,
// which equals the row position (1-indexed, header row excluded).
package sheet

import "errors"

var (
	// ErrNotFound is returned when no row exists at the given id.
	ErrNotFound = errors.New("location not found")

	// ErrInvalidStatus is returned when an update supplies a status
	// outside the enumerated set.
	ErrInvalidStatus = errors.New("invalid status")

	// ErrNotesTooLong is returned when an update supplies notes over
	// the allowed length.
	ErrNotesTooLong = errors.New("notes exceed maximum length")

	// ErrInvalidCoordinates is returned when a coordinate write is
	// attempted with an out-of-range pair. Non-retryable by
	// definition; the write is never sent.
	ErrInvalidCoordinates = errors.New("invalid coordinates")

	// ErrRateLimited marks a write rejected by the store's quota. It
	// is the only error class the adapter retries.
	ErrRateLimited = errors.New("record store rate limited")
)
