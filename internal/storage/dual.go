package storage

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// Ensure Dual implements Adapter
var _ Adapter = (*Dual)(nil)

// Dual combines a fast primary backend with a durable secondary one.
//
// The primary is authoritative for reads; the secondary only provides
// durability. A primary miss falls through to the secondary and warms the
// primary with the value found there. If a primary write fails while the
// secondary accepts it, the key is marked stale and read from the secondary
// until a later primary write succeeds, so reads never observe an older
// value than the last accepted write.
//
// A failing secondary degrades the adapter to the primary alone; writes
// keep succeeding and the condition is logged and exported as a metric.
// Set fails with a PersistenceError only when neither backend accepted.
type Dual struct {
	primary   Adapter
	secondary Adapter
	logger    *slog.Logger
	metrics   *Metrics

	mu       sync.Mutex
	stale    map[string]struct{}
	degraded bool
}

// DualOption configures a Dual adapter.
type DualOption func(*Dual)

// WithLogger sets the logger used to report degraded backends.
func WithLogger(l *slog.Logger) DualOption {
	return func(d *Dual) { d.logger = l }
}

// WithMetrics records backend traffic in m.
func WithMetrics(m *Metrics) DualOption {
	return func(d *Dual) { d.metrics = m }
}

// NewDual creates an adapter over primary and secondary.
// A nil secondary runs the adapter on the primary alone.
func NewDual(primary, secondary Adapter, opts ...DualOption) *Dual {
	d := &Dual{
		primary:   primary,
		secondary: secondary,
		logger:    slog.Default(),
		stale:     make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Degraded reports whether the last secondary write failed.
func (d *Dual) Degraded() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.degraded
}

// Get reads from the primary, falling back to the secondary on a miss.
func (d *Dual) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if !d.isStale(key) {
		value, ok, err := d.primary.Get(ctx, key)
		switch {
		case err != nil:
			d.metrics.read("primary", "error")
			if d.secondary == nil {
				return nil, false, err
			}
			d.logger.Warn("Primary read failed, using secondary", "key", key, "error", err)
		case ok:
			d.metrics.read("primary", "hit")
			return value, true, nil
		default:
			d.metrics.read("primary", "miss")
		}
	}

	if d.secondary == nil {
		return nil, false, nil
	}

	value, ok, err := d.secondary.Get(ctx, key)
	if err != nil {
		d.metrics.read("secondary", "error")
		return nil, false, err
	}
	if !ok {
		d.metrics.read("secondary", "miss")
		return nil, false, nil
	}
	d.metrics.read("secondary", "hit")

	if !d.isStale(key) {
		// Warm the primary; a failure here only costs the next read.
		if err := d.primary.Set(ctx, key, value); err != nil {
			d.logger.Debug("Failed to warm primary", "key", key, "error", err)
		}
	}
	return value, true, nil
}

// Set writes to both backends.
func (d *Dual) Set(ctx context.Context, key string, value []byte) error {
	primaryErr := d.primary.Set(ctx, key, value)
	d.metrics.write("primary", primaryErr)

	if d.secondary == nil {
		if primaryErr != nil {
			return &PersistenceError{Op: "set", Key: key, Err: primaryErr}
		}
		return nil
	}

	secondaryErr := d.secondary.Set(ctx, key, value)
	d.metrics.write("secondary", secondaryErr)

	if primaryErr != nil && secondaryErr != nil {
		return &PersistenceError{Op: "set", Key: key, Err: errors.Join(primaryErr, secondaryErr)}
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if primaryErr != nil {
		d.logger.Warn("Primary write failed, serving key from secondary", "key", key, "error", primaryErr)
		d.stale[key] = struct{}{}
	} else {
		delete(d.stale, key)
	}

	if secondaryErr != nil {
		if !d.degraded {
			d.logger.Warn("Secondary write failed, degrading to primary only", "key", key, "error", secondaryErr)
		}
		d.degraded = true
		d.metrics.degraded(true)
	} else if d.degraded {
		d.logger.Info("Secondary accepted writes again", "key", key)
		d.degraded = false
		d.metrics.degraded(false)
	}
	return nil
}

// Delete removes key from both backends. A backend that keeps the key would
// resurrect it on a later read, so any failure is reported.
func (d *Dual) Delete(ctx context.Context, key string) error {
	var errs []error

	err := d.primary.Delete(ctx, key)
	d.metrics.write("primary", err)
	if err != nil {
		errs = append(errs, err)
	}

	if d.secondary != nil {
		err := d.secondary.Delete(ctx, key)
		d.metrics.write("secondary", err)
		if err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return &PersistenceError{Op: "delete", Key: key, Err: errors.Join(errs...)}
	}

	d.mu.Lock()
	delete(d.stale, key)
	d.mu.Unlock()
	return nil
}

func (d *Dual) isStale(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.stale[key]
	return ok
}
