package replica

import (
	"cmp"
	"context"
	"slices"
	"sync"

	"github.com/mmynk/physioledger/internal/storage"
)

// Ensure Memory implements Replica
var _ Replica = (*Memory)(nil)

// Memory is an in-process Replica.
type Memory struct {
	mu   sync.RWMutex
	docs map[string]Document
}

// NewMemory creates an empty replica.
func NewMemory() *Memory {
	return &Memory{docs: make(map[string]Document)}
}

func (m *Memory) Put(_ context.Context, doc Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := doc.Key()
	if cur, ok := m.docs[key]; ok && cur.UpdatedAt.After(doc.UpdatedAt) {
		return ErrStale
	}
	doc.Data = slices.Clone(doc.Data)
	m.docs[key] = doc
	return nil
}

func (m *Memory) Get(_ context.Context, owner string, c storage.Collection, id string) (Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	doc, ok := m.docs[DocumentKey(owner, c, id)]
	if !ok {
		return Document{}, ErrNotFound
	}
	doc.Data = slices.Clone(doc.Data)
	return doc, nil
}

func (m *Memory) Delete(_ context.Context, owner string, c storage.Collection, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.docs, DocumentKey(owner, c, id))
	return nil
}

func (m *Memory) ListByOwner(_ context.Context, owner string) ([]Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := []Document{}
	for _, doc := range m.docs {
		if doc.Owner == owner {
			doc.Data = slices.Clone(doc.Data)
			out = append(out, doc)
		}
	}
	slices.SortFunc(out, func(a, b Document) int {
		if c := cmp.Compare(a.Collection, b.Collection); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out, nil
}
