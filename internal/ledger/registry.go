package ledger

import (
	"context"
	"errors"
	"slices"
	"sync"

	"github.com/mmynk/physioledger/internal/storage"
)

// Registry hands out one Store per scope over a shared adapter, opening
// each scope's ledger on first use.
type Registry struct {
	adapter storage.Adapter
	opts    []Option

	mu     sync.Mutex
	stores map[string]*Store
}

// NewRegistry creates a registry. opts are applied to every opened Store.
func NewRegistry(adapter storage.Adapter, opts ...Option) *Registry {
	return &Registry{
		adapter: adapter,
		opts:    opts,
		stores:  make(map[string]*Store),
	}
}

// Get returns the store for scope, loading it on first access.
func (r *Registry) Get(ctx context.Context, scope string) (*Store, error) {
	if scope == "" {
		scope = storage.GuestScope
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.stores[scope]; ok {
		return s, nil
	}
	s, err := Open(ctx, r.adapter, scope, r.opts...)
	if err != nil {
		return nil, err
	}
	r.stores[scope] = s
	return s, nil
}

// Scopes returns the scopes opened so far, sorted.
func (r *Registry) Scopes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	scopes := make([]string, 0, len(r.stores))
	for scope := range r.stores {
		scopes = append(scopes, scope)
	}
	slices.Sort(scopes)
	return scopes
}

// FlushAll retries pending writes of every open store.
func (r *Registry) FlushAll(ctx context.Context) error {
	r.mu.Lock()
	stores := make([]*Store, 0, len(r.stores))
	for _, s := range r.stores {
		stores = append(stores, s)
	}
	r.mu.Unlock()

	var errs []error
	for _, s := range stores {
		if err := s.Flush(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
