// Package sentinel holds infrastructure facts shared across stores. Stores
// return them, possibly wrapped, and services translate them into domain
// errors. Input validation uses pkg/domain-errors directly.
package sentinel

import "errors"

var (
	// ErrNotFound means the key or record does not exist in the backing store.
	ErrNotFound = errors.New("not found")
	// ErrInvalidState means a record is in the wrong lifecycle state for the
	// requested transition, such as resolving an expired pending record.
	ErrInvalidState = errors.New("invalid state")
)
