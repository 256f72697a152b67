package db

import "errors"

// Error kinds shared by the services and the postgres store. Callers branch
// with errors.Is; the store wraps each with query context before returning.
var (
	// ErrNotFound indicates the event, role, or volunteer is absent or
	// already purged. Terminal, not retryable.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateRegistration indicates the phone already holds a confirmed
	// signup for this (event, role).
	ErrDuplicateRegistration = errors.New("duplicate registration")

	// ErrSlotFull indicates the requested capacity bucket is exhausted.
	ErrSlotFull = errors.New("slot full")

	// ErrPermissionDenied indicates the caller holds no sufficient grant for
	// the mutation. Terminal, not retryable.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrInvalidState indicates the event is not in the state the operation
	// requires, e.g. restoring or purging an event that was never
	// soft-deleted. Terminal, not retryable.
	ErrInvalidState = errors.New("invalid state")

	// ErrUnavailable indicates a storage or messaging timeout. Safe to retry
	// with backoff.
	ErrUnavailable = errors.New("unavailable")

	// ErrConsistencyViolation indicates observed confirmed signups exceed
	// configured capacity, i.e. an isolation bug upstream. Must be logged
	// loudly and abort the operation, never clamped.
	ErrConsistencyViolation = errors.New("consistency violation")
)
