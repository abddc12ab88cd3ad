package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"

	"github.com/mmynk/physioledger/internal/models"
	"github.com/mmynk/physioledger/internal/storage"
)

// Store is the authoritative in-memory ledger of one scope and the only
// writer of its persisted state.
//
// Every operation validates its input first and returns ValidationError or
// NotFoundError without touching state. Once validation passes the change is
// applied in memory and the affected collections are written through the
// adapter before the operation returns. If that write fails the in-memory
// change stays applied, the collections are marked dirty and the operation
// returns a *storage.PersistenceError; Flush, or the next successful
// operation, retries the write.
//
// Operations are serialized: one runs to completion, persistence included,
// before the next starts.
type Store struct {
	adapter storage.Adapter
	scope   string

	logger   *slog.Logger
	now      func() time.Time
	newID    func(prefix string) string
	fraction int32

	mu    sync.Mutex
	data  Ledger
	dirty map[storage.Collection]struct{}
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithClock sets the time source used for createdAt fields and default dates.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithIDGenerator replaces the typeid generator.
func WithIDGenerator(newID func(prefix string) string) Option {
	return func(s *Store) { s.newID = newID }
}

// WithCurrency rejects amounts more precise than the currency's minor unit
// (two decimals for TRY or EUR, none for JPY). Unknown codes are ignored.
func WithCurrency(code string) Option {
	return func(s *Store) {
		if c := money.GetCurrency(strings.ToUpper(code)); c != nil {
			s.fraction = int32(c.Fraction)
		}
	}
}

// New creates an empty Store for scope. Use Open to load persisted state.
func New(adapter storage.Adapter, scope string, opts ...Option) *Store {
	s := &Store{
		adapter:  adapter,
		scope:    scope,
		logger:   slog.Default(),
		now:      time.Now,
		newID:    models.NewID,
		fraction: -1,
		data:     Ledger{}.Clone(),
		dirty:    make(map[storage.Collection]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open creates a Store for scope and loads its persisted collections.
func Open(ctx context.Context, adapter storage.Adapter, scope string, opts ...Option) (*Store, error) {
	s := New(adapter, scope, opts...)
	if err := s.Load(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Scope returns the namespace the store persists under.
func (s *Store) Scope() string {
	return s.scope
}

// Load replaces the in-memory state with the persisted collections.
// Absent collections load as empty. Legacy state is reconciled; collections
// changed by reconciliation are written back.
func (s *Store) Load(ctx context.Context) error {
	var l Ledger
	for _, c := range storage.Collections {
		key := storage.Key(s.scope, c)
		value, ok, err := s.adapter.Get(ctx, key)
		if err != nil {
			return fmt.Errorf("failed to load %s: %w", key, err)
		}
		if !ok {
			continue
		}
		if err := decodeCollection(&l, c, value); err != nil {
			return fmt.Errorf("%w: failed to decode %s: %v", ErrCorrupt, key, err)
		}
	}
	l = l.Clone()

	report := Reconcile(&l, s.newID)
	if err := Check(l); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.data = l
	s.dirty = make(map[storage.Collection]struct{})
	s.logger.Info("Ledger loaded",
		"scope", s.scope,
		"clients", len(l.Clients),
		"sessions", len(l.Sessions),
		"packages", len(l.Packages),
		"payments", len(l.Payments),
	)
	if len(report.Changed) == 0 {
		return nil
	}

	s.logger.Warn("Reconciled persisted ledger",
		"scope", s.scope,
		"changed", report.Changed,
		"dropped", report.Dropped,
		"synthesized_payments", report.Synthesized,
	)
	return s.persist(ctx, report.Changed...)
}

// View returns a deep copy of the current collections.
func (s *Store) View() Ledger {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.Clone()
}

// Dirty reports whether some change has not been persisted yet.
func (s *Store) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.dirty) > 0
}

// Flush writes every collection whose last write failed.
func (s *Store) Flush(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flushLocked(ctx)
}

// Restore replaces the whole ledger with the result of build, which receives
// a copy of the current state. The result is reconciled and checked before it
// becomes visible; a build or check failure leaves the ledger untouched.
// All four collections are then persisted. The returned copy is the state
// that was applied, also when only the persistence step failed.
func (s *Store) Restore(ctx context.Context, build func(current Ledger) (Ledger, error)) (Ledger, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, err := build(s.data.Clone())
	if err != nil {
		return Ledger{}, err
	}
	next = next.Clone()
	Reconcile(&next, s.newID)
	if err := Check(next); err != nil {
		return Ledger{}, err
	}

	s.data = next
	s.logger.Info("Ledger restored", "scope", s.scope, "records", next.Len())
	return next.Clone(), s.persist(ctx, storage.Collections...)
}

// persist marks collections dirty and writes every dirty collection.
// Callers must hold s.mu.
func (s *Store) persist(ctx context.Context, collections ...storage.Collection) error {
	for _, c := range collections {
		s.dirty[c] = struct{}{}
	}
	return s.flushLocked(ctx)
}

func (s *Store) flushLocked(ctx context.Context) error {
	var errs []error
	for _, c := range storage.Collections {
		if _, ok := s.dirty[c]; !ok {
			continue
		}

		key := storage.Key(s.scope, c)
		value, err := encodeCollection(s.data, c)
		if err == nil {
			err = s.adapter.Set(ctx, key, value)
		}
		if err != nil {
			var pe *storage.PersistenceError
			if !errors.As(err, &pe) {
				err = &storage.PersistenceError{Op: "set", Key: key, Err: err}
			}
			s.logger.Error("Failed to persist collection", "scope", s.scope, "collection", c, "error", err)
			errs = append(errs, err)
			continue
		}
		delete(s.dirty, c)
	}

	switch len(errs) {
	case 0:
		return nil
	case 1:
		return errs[0]
	default:
		return errors.Join(errs...)
	}
}

func (s *Store) today() string {
	return models.FormatDate(s.now())
}

func (s *Store) timestamp() time.Time {
	return s.now().UTC()
}

// checkAmount validates the precision of an amount against the currency.
func (s *Store) checkAmount(field string, amount decimal.Decimal) error {
	if s.fraction >= 0 && !amount.Equal(amount.Round(s.fraction)) {
		return invalid(field, "more than %d decimal places", s.fraction)
	}
	return nil
}

func encodeCollection(l Ledger, c storage.Collection) ([]byte, error) {
	switch c {
	case storage.Clients:
		return json.Marshal(nonNil(l.Clients))
	case storage.Sessions:
		return json.Marshal(nonNil(l.Sessions))
	case storage.Packages:
		return json.Marshal(nonNil(l.Packages))
	case storage.Payments:
		return json.Marshal(nonNil(l.Payments))
	}
	return nil, fmt.Errorf("unknown collection %q", c)
}

func decodeCollection(l *Ledger, c storage.Collection, value []byte) error {
	switch c {
	case storage.Clients:
		return json.Unmarshal(value, &l.Clients)
	case storage.Sessions:
		return json.Unmarshal(value, &l.Sessions)
	case storage.Packages:
		return json.Unmarshal(value, &l.Packages)
	case storage.Payments:
		return json.Unmarshal(value, &l.Payments)
	}
	return fmt.Errorf("unknown collection %q", c)
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
