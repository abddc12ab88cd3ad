// Package memory provides the fast in-process implementation of
// storage.Adapter, used as the primary backend and in tests.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/mmynk/physioledger/internal/storage"
)

// Ensure Store implements storage.Adapter
var _ storage.Adapter = (*Store)(nil)

// Store keeps values in a map. An optional quota caps the total number of
// bytes held, mirroring the size limit of browser key-value storage.
type Store struct {
	mu       sync.RWMutex
	data     map[string][]byte
	used     int
	maxBytes int
}

// Option configures a Store.
type Option func(*Store)

// WithQuota limits the total size of stored values. Zero means unlimited.
func WithQuota(maxBytes int) Option {
	return func(s *Store) { s.maxBytes = maxBytes }
}

// New creates an empty Store.
func New(opts ...Option) *Store {
	s := &Store{data: make(map[string][]byte)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns a copy of the value stored under key.
func (s *Store) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	value, ok := s.data[key]
	if !ok {
		return nil, false, nil
	}
	return clone(value), true, nil
}

// Set stores a copy of value under key.
func (s *Store) Set(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	used := s.used - len(s.data[key]) + len(value)
	if s.maxBytes > 0 && used > s.maxBytes {
		return fmt.Errorf("%w: %d of %d bytes", storage.ErrQuotaExceeded, used, s.maxBytes)
	}
	s.data[key] = clone(value)
	s.used = used
	return nil
}

// Delete removes key.
func (s *Store) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.used -= len(s.data[key])
	delete(s.data, key)
	return nil
}

// Used returns the number of bytes currently stored.
func (s *Store) Used() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.used
}

func clone(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
