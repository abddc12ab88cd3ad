// Package storage provides abstractions for persistent data storage.
package storage

import (
	"context"
)

// Adapter defines the namespaced key-value contract the ledger persists
// through. Values are opaque serialized documents: adapters never parse them.
//
// This abstraction allows swapping storage backends (memory, SQLite, or the
// Dual combination of both) without changing the ledger.
type Adapter interface {
	// Get returns the value stored under key.
	// The boolean is false when the key is absent; that is not an error.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key string, value []byte) error

	// Delete removes key. Deleting an absent key succeeds.
	Delete(ctx context.Context, key string) error
}
