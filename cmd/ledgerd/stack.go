package main

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/mmynk/physioledger/internal/config"
	"github.com/mmynk/physioledger/internal/ledger"
	"github.com/mmynk/physioledger/internal/replica"
	"github.com/mmynk/physioledger/internal/replica/mongo"
	"github.com/mmynk/physioledger/internal/storage"
	"github.com/mmynk/physioledger/internal/storage/memory"
	"github.com/mmynk/physioledger/internal/storage/sqlite"
)

// Ensure stack can feed the replica syncer
var _ replica.Source = (*stack)(nil)

// stack is the storage wiring shared by every command.
type stack struct {
	dual     *storage.Dual
	db       *sqlite.Store // nil when storage.db_path is empty
	registry *ledger.Registry
	logger   *slog.Logger
}

// openStack builds the memory primary, the optional SQLite secondary and a
// ledger registry over both. reg may be nil.
func openStack(cfg config.Config, logger *slog.Logger, reg prometheus.Registerer) (*stack, error) {
	primary := memory.New(memory.WithQuota(cfg.Storage.MemoryQuota))

	var db *sqlite.Store
	var secondary storage.Adapter
	if cfg.Storage.DBPath != "" {
		var err error
		db, err = sqlite.New(cfg.Storage.DBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize storage: %w", err)
		}
		secondary = db
		logger.Info("Storage initialized", "database", cfg.Storage.DBPath, "memory_quota", cfg.Storage.MemoryQuota)
	} else {
		logger.Warn("No database configured, ledger is kept in memory only")
	}

	dual := storage.NewDual(primary, secondary,
		storage.WithLogger(logger),
		storage.WithMetrics(storage.NewMetrics(reg)),
	)
	registry := ledger.NewRegistry(dual,
		ledger.WithLogger(logger),
		ledger.WithCurrency(cfg.Ledger.Currency),
	)
	return &stack{dual: dual, db: db, registry: registry, logger: logger}, nil
}

// Scopes lists the guest ledger, the open ledgers and every scope stored in
// the database, so ledgers nobody opened since startup are still synced.
func (s *stack) Scopes(ctx context.Context) ([]string, error) {
	scopes := append(s.registry.Scopes(), storage.GuestScope)
	if s.db != nil {
		stored, err := s.db.Scopes(ctx)
		if err != nil {
			return nil, err
		}
		scopes = append(scopes, stored...)
	}
	slices.Sort(scopes)
	return slices.Compact(scopes), nil
}

// Get returns the ledger of scope.
func (s *stack) Get(ctx context.Context, scope string) (*ledger.Store, error) {
	return s.registry.Get(ctx, scope)
}

// Close flushes pending writes and closes the database.
func (s *stack) Close(ctx context.Context) error {
	err := s.registry.FlushAll(ctx)
	if err != nil {
		s.logger.Error("Failed to flush ledgers", "error", err)
	}
	if s.db != nil {
		if cerr := s.db.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}

// openReplica connects to MongoDB when a URI is configured. The returned
// close func is never nil.
func openReplica(ctx context.Context, cfg config.Config, logger *slog.Logger) (*replica.Syncer, func(), error) {
	if cfg.Replica.MongoURI == "" {
		return nil, func() {}, nil
	}

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	remote, err := mongo.Connect(connectCtx, cfg.Replica.MongoURI, cfg.Replica.Database)
	if err != nil {
		return nil, func() {}, err
	}
	logger.Info("Replica connected", "database", cfg.Replica.Database)

	syncer := replica.NewSyncer(remote,
		replica.WithLogger(logger),
		replica.WithInterval(cfg.SyncInterval()),
	)
	closeFn := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := remote.Close(ctx); err != nil {
			logger.Warn("Failed to disconnect replica", "error", err)
		}
	}
	return syncer, closeFn, nil
}
