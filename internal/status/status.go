// Package status defines the error kinds shared by the neighbour-list
// packages.
//
// Every failing operation returns an error wrapping exactly one of the
// sentinels below, so callers branch with errors.Is. Callers that do not care
// about the failure detail collapse the result with OrElse (or a per-type
// OrEmpty helper) and carry on with an empty value.
package status

import "errors"

// MaximumCapacity bounds every capacity request made to a growable structure.
// Requests above it fail with ErrOutOfMemory before any storage is touched.
const MaximumCapacity = 1 << 31

var (
	// ErrInvalidArgument reports an argument outside the accepted domain
	// (non-positive cut-off, negative index, empty set list, ...).
	ErrInvalidArgument = errors.New("status: invalid argument")

	// ErrIndexOutOfRange reports access outside a declared capacity or upper bound.
	ErrIndexOutOfRange = errors.New("status: index out of range")

	// ErrOutOfMemory reports a storage request that cannot be honoured.
	ErrOutOfMemory = errors.New("status: out of memory")

	// ErrNonConformableArrays reports arrays whose extents do not match.
	ErrNonConformableArrays = errors.New("status: non-conformable arrays")

	// ErrAlgorithmError reports an internal invariant violation. The current
	// build must be abandoned; retrying with the same input will fail again.
	ErrAlgorithmError = errors.New("status: algorithm error")
)

// OrElse returns v when err is nil and fallback otherwise.
func OrElse[T any](v T, err error, fallback T) T {
	if err != nil {
		return fallback
	}
	return v
}

// CheckCapacity returns ErrOutOfMemory for requests above MaximumCapacity and
// ErrInvalidArgument for negative requests.
func CheckCapacity(n int) error {
	if n < 0 {
		return ErrInvalidArgument
	}
	if n > MaximumCapacity {
		return ErrOutOfMemory
	}
	return nil
}
