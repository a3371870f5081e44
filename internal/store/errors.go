package store

import "errors"

var (
	// ErrNotFound is returned when a lookup by id finds no row.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists is returned by create operations on a duplicate id.
	ErrAlreadyExists = errors.New("already exists")

	// ErrStaleClaimToken is returned by CompleteTask when the task's
	// current claim token no longer matches the attempt that is trying
	// to commit — the completion lost a race with an invalidation (§4.5).
	ErrStaleClaimToken = errors.New("stale claim token")
)
