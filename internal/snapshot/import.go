package snapshot

import (
	"context"
	"errors"
	"fmt"

	"github.com/mmynk/physioledger/internal/ledger"
	"github.com/mmynk/physioledger/internal/storage"
)

// Mode selects how a document is combined with the existing ledger.
type Mode string

const (
	// Replace clears all four collections before loading the document.
	Replace Mode = "replace"

	// Merge loads only records whose id is not already present.
	// Existing records are never overwritten.
	Merge Mode = "merge"
)

// ParseMode parses a mode name.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case Replace, Merge:
		return Mode(s), nil
	}
	return "", fmt.Errorf("unknown import mode %q", s)
}

// Result counts the records of an import. Skipped covers id collisions in
// merge mode and orphaned records dropped while reconciling the document.
type Result struct {
	Imported int `json:"imported"`
	Skipped  int `json:"skipped"`
}

// Target is a ledger that can be replaced wholesale.
type Target interface {
	Restore(ctx context.Context, build func(current ledger.Ledger) (ledger.Ledger, error)) (ledger.Ledger, error)
}

// Import loads doc into dst. The import is all-or-nothing: a document that
// fails validation, or whose records cannot be reconciled with the ledger,
// returns a FormatError and leaves dst unchanged. A persistence error is
// returned together with the result, since the in-memory import was applied.
func Import(ctx context.Context, dst Target, doc *Document, mode Mode) (Result, error) {
	if doc == nil {
		return Result{}, &FormatError{Reason: "no document"}
	}
	if mode != Replace && mode != Merge {
		return Result{}, fmt.Errorf("unknown import mode %q", mode)
	}
	if err := doc.Validate(); err != nil {
		return Result{}, err
	}
	incoming := doc.Ledger()

	var existing keySet
	applied, err := dst.Restore(ctx, func(current ledger.Ledger) (ledger.Ledger, error) {
		if mode == Replace {
			existing = keySet{}
			return incoming, nil
		}
		existing = keysOf(current)
		return merge(current, incoming, existing), nil
	})
	if err != nil && !errors.Is(err, storage.ErrPersistence) {
		if errors.Is(err, ledger.ErrCorrupt) {
			return Result{}, &FormatError{Reason: "records are inconsistent", Err: err}
		}
		return Result{}, err
	}

	final := keysOf(applied)
	var res Result
	for k := range keysOf(incoming) {
		if final[k] && !existing[k] {
			res.Imported++
		} else {
			res.Skipped++
		}
	}
	return res, err
}

// merge appends the incoming records whose ids are not in have.
func merge(current, incoming ledger.Ledger, have keySet) ledger.Ledger {
	for _, x := range incoming.Clients {
		if !have[key{storage.Clients, x.ID}] {
			current.Clients = append(current.Clients, x)
		}
	}
	for _, x := range incoming.Sessions {
		if !have[key{storage.Sessions, x.ID}] {
			current.Sessions = append(current.Sessions, x)
		}
	}
	for _, x := range incoming.Packages {
		if !have[key{storage.Packages, x.ID}] {
			current.Packages = append(current.Packages, x)
		}
	}
	for _, x := range incoming.Payments {
		if !have[key{storage.Payments, x.ID}] {
			current.Payments = append(current.Payments, x)
		}
	}
	return current
}

type key struct {
	collection storage.Collection
	id         string
}

type keySet map[key]bool

func keysOf(l ledger.Ledger) keySet {
	out := make(keySet, l.Len())
	for _, x := range l.Clients {
		out[key{storage.Clients, x.ID}] = true
	}
	for _, x := range l.Sessions {
		out[key{storage.Sessions, x.ID}] = true
	}
	for _, x := range l.Packages {
		out[key{storage.Packages, x.ID}] = true
	}
	for _, x := range l.Payments {
		out[key{storage.Payments, x.ID}] = true
	}
	return out
}
