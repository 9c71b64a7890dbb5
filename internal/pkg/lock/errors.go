package lock

import "errors"

// Lock-related errors.
var (
	// ErrLockTimeout is returned when a lock cannot be acquired within the timeout period.
	ErrLockTimeout = errors.New("lock acquisition timeout")

	// ErrLeaseHeld is returned when another holder owns a lease.
	ErrLeaseHeld = errors.New("lease held by another instance")
)
