package domain

import "errors"

var (
	// ErrNotFound indicates the unit/property is missing, inactive or deleted.
	// Callers translate it to a false/empty result, not a failure.
	ErrNotFound = errors.New("not found")

	// ErrInvalidArgument indicates an empty or malformed identifier.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrLockTimeout indicates the build gate could not be acquired in time.
	// A soft failure: the operation is skipped and reported as false.
	ErrLockTimeout = errors.New("build gate acquisition timed out")

	// ErrStoreUnavailable indicates a transient index-store I/O failure.
	ErrStoreUnavailable = errors.New("index store unavailable")
)
