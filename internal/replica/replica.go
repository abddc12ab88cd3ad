// Package replica mirrors ledgers to a remote document store. The replica
// is a slower copy of the four collections, one document per record,
// reconciled by last-write-wins on the document timestamp. It never writes
// into a ledger directly; pulled documents go through a snapshot merge.
package replica

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mmynk/physioledger/internal/storage"
)

var (
	// ErrStale is returned by Put when the replica holds a newer version.
	ErrStale = errors.New("replica: newer version exists")

	// ErrNotFound is returned when a document does not exist.
	ErrNotFound = errors.New("replica: document not found")
)

// Document is the replicated form of one ledger record.
type Document struct {
	// Owner is the scope the record belongs to.
	Owner      string
	Collection storage.Collection
	ID         string

	// Data is the JSON encoding of the record.
	Data      []byte
	UpdatedAt time.Time
}

// Key identifies a document across owners.
func (d Document) Key() string {
	return DocumentKey(d.Owner, d.Collection, d.ID)
}

// DocumentKey builds the key of a document, e.g. "guest/clients/client_01h...".
func DocumentKey(owner string, c storage.Collection, id string) string {
	return fmt.Sprintf("%s/%s/%s", owner, c, id)
}

// Replica is a remote document store.
type Replica interface {
	// Put creates or replaces a document unless the stored version has a
	// later UpdatedAt, in which case it returns ErrStale.
	Put(ctx context.Context, doc Document) error

	// Get returns ErrNotFound when the document does not exist.
	Get(ctx context.Context, owner string, c storage.Collection, id string) (Document, error)

	// Delete is a no-op for missing documents.
	Delete(ctx context.Context, owner string, c storage.Collection, id string) error

	// ListByOwner returns every document of owner ordered by collection and id.
	ListByOwner(ctx context.Context, owner string) ([]Document, error)
}
