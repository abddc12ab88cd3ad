package storage

import (
	"errors"
	"fmt"
)

var (
	// ErrPersistence matches every PersistenceError.
	ErrPersistence = errors.New("storage: write not persisted")

	// ErrQuotaExceeded is returned by size-limited backends when a write
	// would exceed their capacity.
	ErrQuotaExceeded = errors.New("storage: quota exceeded")

	// ErrUnavailable is returned by a backend that is closed or was never
	// opened.
	ErrUnavailable = errors.New("storage: backend unavailable")
)

// PersistenceError reports a write that no backend accepted.
// When returned by a ledger operation, the in-memory change has already been
// applied and only the durable write is missing.
type PersistenceError struct {
	Op  string
	Key string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("storage: %s %q failed: %v", e.Op, e.Key, e.Err)
}

func (e *PersistenceError) Unwrap() []error {
	return []error{ErrPersistence, e.Err}
}
