package replica

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mmynk/physioledger/internal/ledger"
	"github.com/mmynk/physioledger/internal/models"
	"github.com/mmynk/physioledger/internal/snapshot"
	"github.com/mmynk/physioledger/internal/storage"
)

// DefaultInterval is the period between automatic syncs.
const DefaultInterval = 5 * time.Minute

// PushResult counts the documents touched by a push.
type PushResult struct {
	Written int
	Stale   int
	Deleted int
}

// pushState remembers what the last push of a scope wrote.
type pushState struct {
	keys  map[string]bool
	stamp time.Time
}

// Syncer mirrors ledgers to a Replica.
type Syncer struct {
	replica  Replica
	logger   *slog.Logger
	now      func() time.Time
	interval time.Duration

	mu     sync.Mutex
	pushed map[string]pushState
}

// Option configures a Syncer.
type Option func(*Syncer)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Syncer) { s.logger = l }
}

// WithClock sets the time source used to stamp documents.
func WithClock(now func() time.Time) Option {
	return func(s *Syncer) { s.now = now }
}

// WithInterval sets the period of Run.
func WithInterval(d time.Duration) Option {
	return func(s *Syncer) { s.interval = d }
}

// NewSyncer creates a Syncer over r.
func NewSyncer(r Replica, opts ...Option) *Syncer {
	s := &Syncer{
		replica:  r,
		logger:   slog.Default(),
		now:      time.Now,
		interval: DefaultInterval,
		pushed:   make(map[string]pushState),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Push writes every record of l under scope, stamped with the current time.
// A remote document is deleted only when this syncer pushed it before and
// the record has since disappeared from l; documents written by other
// devices, or rewritten after the previous push, are left alone.
func (s *Syncer) Push(ctx context.Context, scope string, l ledger.Ledger) (PushResult, error) {
	var res PushResult
	stamp := s.now().UTC()

	docs, err := Documents(scope, l, stamp)
	if err != nil {
		return res, err
	}

	local := make(map[string]bool, len(docs))
	for _, doc := range docs {
		local[doc.Key()] = true
		switch err := s.replica.Put(ctx, doc); {
		case errors.Is(err, ErrStale):
			res.Stale++
		case err != nil:
			return res, fmt.Errorf("failed to put %s: %w", doc.Key(), err)
		default:
			res.Written++
		}
	}

	prev := s.lastPush(scope)
	if len(prev.keys) > 0 {
		remote, err := s.replica.ListByOwner(ctx, scope)
		if err != nil {
			return res, fmt.Errorf("failed to list replica documents: %w", err)
		}
		for _, doc := range remote {
			if local[doc.Key()] || !prev.deletedLocally(doc) {
				continue
			}
			if err := s.replica.Delete(ctx, doc.Owner, doc.Collection, doc.ID); err != nil {
				return res, fmt.Errorf("failed to delete %s: %w", doc.Key(), err)
			}
			res.Deleted++
		}
	}

	s.mu.Lock()
	s.pushed[scope] = pushState{keys: local, stamp: stamp}
	s.mu.Unlock()

	s.logger.Info("Pushed ledger to replica",
		"scope", scope,
		"written", res.Written,
		"stale", res.Stale,
		"deleted", res.Deleted,
	)
	return res, nil
}

func (s *Syncer) lastPush(scope string) pushState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pushed[scope]
}

// deletedLocally reports whether doc is a copy this syncer pushed that
// nobody has rewritten since.
func (p pushState) deletedLocally(doc Document) bool {
	return p.keys[doc.Key()] && !doc.UpdatedAt.After(p.stamp)
}

// Pull reads the scope's documents back into a snapshot document, ready for
// a merge import.
func (s *Syncer) Pull(ctx context.Context, scope string) (*snapshot.Document, error) {
	return s.pull(ctx, scope, func(Document) bool { return true })
}

func (s *Syncer) pull(ctx context.Context, scope string, keep func(Document) bool) (*snapshot.Document, error) {
	docs, err := s.replica.ListByOwner(ctx, scope)
	if err != nil {
		return nil, fmt.Errorf("failed to list replica documents: %w", err)
	}

	out := &snapshot.Document{
		Version:    snapshot.Version,
		ExportDate: s.now().UTC(),
		Scope:      scope,
		Clients:    []models.Client{},
		Sessions:   []models.Session{},
		Packages:   []models.Package{},
		Payments:   []models.Payment{},
	}
	n := 0
	for _, doc := range docs {
		if !keep(doc) {
			continue
		}
		n++
		var err error
		switch doc.Collection {
		case storage.Clients:
			out.Clients, err = appendDecoded(out.Clients, doc)
		case storage.Sessions:
			out.Sessions, err = appendDecoded(out.Sessions, doc)
		case storage.Packages:
			out.Packages, err = appendDecoded(out.Packages, doc)
		case storage.Payments:
			out.Payments, err = appendDecoded(out.Payments, doc)
		default:
			s.logger.Warn("Ignoring replica document of unknown collection", "key", doc.Key())
		}
		if err != nil {
			return nil, err
		}
	}

	s.logger.Info("Pulled ledger from replica", "scope", scope, "documents", n)
	return out, nil
}

// Sync merges the replica's copy of store's scope into store, then pushes
// the result back. Records deleted locally since the previous push are not
// pulled back in.
func (s *Syncer) Sync(ctx context.Context, store *ledger.Store) (PushResult, error) {
	scope := store.Scope()
	prev := s.lastPush(scope)

	// Only pull records that are new here and were not deleted here since the last push
	present := make(map[string]bool)
	docs, err := Documents(scope, store.View(), time.Time{})
	if err != nil {
		return PushResult{}, err
	}
	for _, doc := range docs {
		present[doc.Key()] = true
	}
	fresh := 0
	doc, err := s.pull(ctx, scope, func(d Document) bool {
		if present[d.Key()] || prev.deletedLocally(d) {
			return false
		}
		fresh++
		return true
	})
	if err != nil {
		return PushResult{}, err
	}

	if fresh > 0 {
		res, err := snapshot.Import(ctx, store, doc, snapshot.Merge)
		if err != nil {
			return PushResult{}, fmt.Errorf("failed to merge replica into %s: %w", scope, err)
		}
		s.logger.Info("Merged replica records", "scope", scope, "imported", res.Imported)
	}

	return s.Push(ctx, scope, store.View())
}

// Source provides the ledgers to sync.
type Source interface {
	// Scopes lists every scope worth syncing, opened or not.
	Scopes(ctx context.Context) ([]string, error)
	Get(ctx context.Context, scope string) (*ledger.Store, error)
}

// Run syncs every ledger of src immediately and then once per interval
// until ctx is done. Failures are logged and retried on the next tick.
func (s *Syncer) Run(ctx context.Context, src Source) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("Replica sync started", "interval", s.interval)
	s.SyncAll(ctx, src)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Replica sync stopped")
			return
		case <-ticker.C:
			s.SyncAll(ctx, src)
		}
	}
}

// SyncAll syncs every ledger of src and returns the joined errors.
func (s *Syncer) SyncAll(ctx context.Context, src Source) error {
	return s.each(ctx, src, "sync", s.Sync)
}

// PushAll pushes every ledger of src without pulling first.
func (s *Syncer) PushAll(ctx context.Context, src Source) error {
	return s.each(ctx, src, "push", func(ctx context.Context, store *ledger.Store) (PushResult, error) {
		return s.Push(ctx, store.Scope(), store.View())
	})
}

func (s *Syncer) each(ctx context.Context, src Source, op string, fn func(context.Context, *ledger.Store) (PushResult, error)) error {
	scopes, err := src.Scopes(ctx)
	if err != nil {
		return fmt.Errorf("failed to list scopes: %w", err)
	}

	var errs []error
	for _, scope := range scopes {
		store, err := src.Get(ctx, scope)
		if err == nil {
			_, err = fn(ctx, store)
		}
		if err != nil {
			s.logger.Error("Replica "+op+" failed", "scope", scope, "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Documents converts every record of l into a replica document.
func Documents(scope string, l ledger.Ledger, stamp time.Time) ([]Document, error) {
	docs := make([]Document, 0, l.Len())
	add := func(c storage.Collection, id string, v any) error {
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("failed to encode %s %s: %w", c, id, err)
		}
		docs = append(docs, Document{Owner: scope, Collection: c, ID: id, Data: data, UpdatedAt: stamp})
		return nil
	}

	for _, x := range l.Clients {
		if err := add(storage.Clients, x.ID, x); err != nil {
			return nil, err
		}
	}
	for _, x := range l.Sessions {
		if err := add(storage.Sessions, x.ID, x); err != nil {
			return nil, err
		}
	}
	for _, x := range l.Packages {
		if err := add(storage.Packages, x.ID, x); err != nil {
			return nil, err
		}
	}
	for _, x := range l.Payments {
		if err := add(storage.Payments, x.ID, x); err != nil {
			return nil, err
		}
	}
	return docs, nil
}

func appendDecoded[T any](dst []T, doc Document) ([]T, error) {
	var v T
	if err := json.Unmarshal(doc.Data, &v); err != nil {
		return dst, fmt.Errorf("failed to decode %s: %w", doc.Key(), err)
	}
	return append(dst, v), nil
}
