package collections

import (
	"errors"
	"fmt"
)

// Sentinel errors for the access-control core. Callers match with
// errors.Is; stores wrap their driver errors in ErrTransientStore so the
// taxonomy survives the trip through the storage layer.
var (
	// ErrPermissionDenied means the invoker's role lacks the required
	// tier for the action. Transitions fail closed, never open.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrInvariantViolation means the mutation would break a structural
	// rule (e.g. making a request/open collection private). Rejected
	// before any write.
	ErrInvariantViolation = errors.New("invariant violation")

	// ErrNotFound means a collection, post, or user id did not resolve.
	ErrNotFound = errors.New("not found")

	// ErrTransientStore wraps network or datastore failures during a
	// read or write. The core performs no automatic retry.
	ErrTransientStore = errors.New("transient store error")

	// ErrStaleState means the authoritative re-check after a suspension
	// point no longer satisfies the precondition verified before it.
	// The transition aborts with no partial mutation.
	ErrStaleState = errors.New("stale state conflict")
)

// PermissionDeniedf wraps ErrPermissionDenied with detail.
func PermissionDeniedf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: "+format, append([]interface{}{ErrPermissionDenied}, args...)...)
}

// InvariantViolationf wraps ErrInvariantViolation with detail.
func InvariantViolationf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: "+format, append([]interface{}{ErrInvariantViolation}, args...)...)
}

// StaleStatef wraps ErrStaleState with detail.
func StaleStatef(format string, args ...interface{}) error {
	return fmt.Errorf("%w: "+format, append([]interface{}{ErrStaleState}, args...)...)
}

// TransientStore wraps a store failure so callers can match the taxonomy
// without knowing the driver.
func TransientStore(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %v", ErrTransientStore, err)
}
