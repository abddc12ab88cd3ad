// Package snapshot converts a ledger to and from its portable backup
// document and imports documents into a live ledger.
package snapshot

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/mmynk/physioledger/internal/ledger"
	"github.com/mmynk/physioledger/internal/models"
	"github.com/mmynk/physioledger/internal/storage"
)

// Version is written into every exported document.
const Version = 1

// Document is the backup format: the four collections of one scope.
type Document struct {
	Version    int              `json:"version"`
	ExportDate time.Time        `json:"exportDate"`
	Scope      string           `json:"scope,omitempty"`
	Clients    []models.Client  `json:"clients"`
	Sessions   []models.Session `json:"sessions"`
	Packages   []models.Package `json:"packages"`
	Payments   []models.Payment `json:"payments"`
}

// Source is a ledger that can be exported.
type Source interface {
	Scope() string
	View() ledger.Ledger
}

// Export captures the current state of src.
func Export(src Source, now time.Time) *Document {
	l := src.View()
	return &Document{
		Version:    Version,
		ExportDate: now.UTC(),
		Scope:      src.Scope(),
		Clients:    l.Clients,
		Sessions:   l.Sessions,
		Packages:   l.Packages,
		Payments:   l.Payments,
	}
}

// Ledger returns the document's collections as a ledger value.
func (d *Document) Ledger() ledger.Ledger {
	return ledger.Ledger{
		Clients:  d.Clients,
		Sessions: d.Sessions,
		Packages: d.Packages,
		Payments: d.Payments,
	}.Clone()
}

// Stats returns the number of records per collection.
func (d *Document) Stats() Stats {
	return Stats{
		Clients:  len(d.Clients),
		Sessions: len(d.Sessions),
		Packages: len(d.Packages),
		Payments: len(d.Payments),
	}
}

// Stats counts the records of a ledger or document.
type Stats struct {
	Clients  int `json:"clients"`
	Sessions int `json:"sessions"`
	Packages int `json:"packages"`
	Payments int `json:"payments"`
}

// Total returns the number of records across all collections.
func (s Stats) Total() int {
	return s.Clients + s.Sessions + s.Packages + s.Payments
}

// StatsOf counts the records of l.
func StatsOf(l ledger.Ledger) Stats {
	return Stats{
		Clients:  len(l.Clients),
		Sessions: len(l.Sessions),
		Packages: len(l.Packages),
		Payments: len(l.Payments),
	}
}

// Encode writes doc as indented JSON.
func Encode(w io.Writer, doc *Document) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return nil
}

// Decode reads a document and validates its shape. The document must be a
// JSON object; each collection must be an array when present and defaults
// to empty when absent. Every record needs an id that is unique within its
// collection.
func Decode(r io.Reader) (*Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &FormatError{Reason: "document is not a JSON object", Err: err}
	}
	if raw == nil {
		return nil, &FormatError{Reason: "document is null"}
	}

	for _, c := range storage.Collections {
		v, ok := raw[string(c)]
		if !ok {
			continue
		}
		v = bytes.TrimSpace(v)
		if len(v) == 0 || (v[0] != '[' && !bytes.Equal(v, []byte("null"))) {
			return nil, &FormatError{Reason: fmt.Sprintf("%s is not an array", c)}
		}
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, &FormatError{Reason: "malformed record", Err: err}
	}
	doc.normalize()
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return &doc, nil
}

// Validate checks that every record has a unique id.
func (d *Document) Validate() error {
	check := func(c storage.Collection, ids []string) error {
		seen := make(map[string]bool, len(ids))
		for i, id := range ids {
			if id == "" {
				return &FormatError{Reason: fmt.Sprintf("%s[%d] has no id", c, i)}
			}
			if seen[id] {
				return &FormatError{Reason: fmt.Sprintf("duplicate %s id %q", c, id)}
			}
			seen[id] = true
		}
		return nil
	}

	return errors.Join(
		check(storage.Clients, ids(d.Clients, func(x models.Client) string { return x.ID })),
		check(storage.Sessions, ids(d.Sessions, func(x models.Session) string { return x.ID })),
		check(storage.Packages, ids(d.Packages, func(x models.Package) string { return x.ID })),
		check(storage.Payments, ids(d.Payments, func(x models.Payment) string { return x.ID })),
	)
}

func (d *Document) normalize() {
	l := d.Ledger()
	d.Clients, d.Sessions, d.Packages, d.Payments = l.Clients, l.Sessions, l.Packages, l.Payments
}

func ids[T any](records []T, id func(T) string) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = id(r)
	}
	return out
}
