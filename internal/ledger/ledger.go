// Package ledger owns the client, session, package and payment collections
// of one scope and every mutation that keeps them consistent.
//
// The invariants held after each operation are:
//   - a package's PaidAmount equals the sum of its payments and never
//     exceeds its price (payments are the source of truth)
//   - 0 <= RemainingSessions <= TotalSessions, and a package with no
//     remaining sessions is completed
//   - every session, package and payment references an existing client,
//     and every payment an existing package of the same client
//   - a client's TotalPaid equals the sum of its payments
package ledger

import (
	"fmt"
	"slices"

	"github.com/shopspring/decimal"

	"github.com/mmynk/physioledger/internal/models"
	"github.com/mmynk/physioledger/internal/storage"
)

// DefaultPaymentMethod is used for payments recorded without a method,
// including the initial payment of a package.
const DefaultPaymentMethod = "cash"

// InitialPaymentNote marks the payment created together with a package.
const InitialPaymentNote = "initial payment"

// Ledger is a value copy of the four collections of one scope.
// Slices keep insertion order.
type Ledger struct {
	Clients  []models.Client
	Sessions []models.Session
	Packages []models.Package
	Payments []models.Payment
}

// Clone returns a deep copy of l.
func (l Ledger) Clone() Ledger {
	out := Ledger{
		Clients:  make([]models.Client, len(l.Clients)),
		Sessions: slices.Clone(l.Sessions),
		Packages: slices.Clone(l.Packages),
		Payments: slices.Clone(l.Payments),
	}
	for i, c := range l.Clients {
		c.Messages = slices.Clone(c.Messages)
		out.Clients[i] = c
	}
	if out.Sessions == nil {
		out.Sessions = []models.Session{}
	}
	if out.Packages == nil {
		out.Packages = []models.Package{}
	}
	if out.Payments == nil {
		out.Payments = []models.Payment{}
	}
	return out
}

// Len returns the total number of records.
func (l Ledger) Len() int {
	return len(l.Clients) + len(l.Sessions) + len(l.Packages) + len(l.Payments)
}

// FindClient returns the index of the client with id, or -1.
func (l Ledger) FindClient(id string) int {
	return slices.IndexFunc(l.Clients, func(c models.Client) bool { return c.ID == id })
}

// FindPackage returns the index of the package with id, or -1.
func (l Ledger) FindPackage(id string) int {
	return slices.IndexFunc(l.Packages, func(p models.Package) bool { return p.ID == id })
}

// FindSession returns the index of the session with id, or -1.
func (l Ledger) FindSession(id string) int {
	return slices.IndexFunc(l.Sessions, func(s models.Session) bool { return s.ID == id })
}

// ReconcileReport describes what Reconcile changed.
type ReconcileReport struct {
	// Changed lists the collections that were modified.
	Changed []storage.Collection

	// Dropped counts orphaned records removed.
	Dropped int

	// Synthesized counts payments created to back a paid amount that had no
	// payment records.
	Synthesized int
}

// Reconcile repairs caches and legacy gaps in place so that Check can pass:
//   - orphaned sessions, packages and payments are dropped (the cascade that
//     a deletion would have applied)
//   - a payment's ClientID is aligned with its package
//   - missing client status and message lists get their defaults
//   - packages with no remaining sessions are marked completed
//   - a PaidAmount above the sum of its payments gets one synthesized
//     initial payment for the gap; a lower one is raised to the sum
//   - client TotalPaid is recomputed from payments
//
// newID mints identifiers for synthesized payments.
func Reconcile(l *Ledger, newID func(prefix string) string) ReconcileReport {
	var report ReconcileReport
	changed := make(map[storage.Collection]bool)

	clientIDs := make(map[string]bool, len(l.Clients))
	for i := range l.Clients {
		c := &l.Clients[i]
		clientIDs[c.ID] = true
		if c.Status == "" {
			c.Status = models.ClientActive
			changed[storage.Clients] = true
		}
		if c.Messages == nil {
			c.Messages = []models.Message{}
		}
	}

	before := len(l.Sessions)
	l.Sessions = slices.DeleteFunc(l.Sessions, func(s models.Session) bool { return !clientIDs[s.ClientID] })
	if n := before - len(l.Sessions); n > 0 {
		report.Dropped += n
		changed[storage.Sessions] = true
	}

	before = len(l.Packages)
	l.Packages = slices.DeleteFunc(l.Packages, func(p models.Package) bool { return !clientIDs[p.ClientID] })
	if n := before - len(l.Packages); n > 0 {
		report.Dropped += n
		changed[storage.Packages] = true
	}

	owner := make(map[string]string, len(l.Packages))
	for _, p := range l.Packages {
		owner[p.ID] = p.ClientID
	}

	before = len(l.Payments)
	l.Payments = slices.DeleteFunc(l.Payments, func(p models.Payment) bool { _, ok := owner[p.PackageID]; return !ok })
	if n := before - len(l.Payments); n > 0 {
		report.Dropped += n
		changed[storage.Payments] = true
	}

	paid := make(map[string]decimal.Decimal, len(l.Packages))
	for i := range l.Payments {
		p := &l.Payments[i]
		if clientID := owner[p.PackageID]; p.ClientID != clientID {
			p.ClientID = clientID
			changed[storage.Payments] = true
		}
		paid[p.PackageID] = paid[p.PackageID].Add(p.Amount)
	}

	for i := range l.Packages {
		p := &l.Packages[i]
		status := models.PackageActive
		if p.RemainingSessions == 0 {
			status = models.PackageCompleted
		}
		if p.Status != status {
			p.Status = status
			changed[storage.Packages] = true
		}

		sum := paid[p.ID]
		switch p.PaidAmount.Cmp(sum) {
		case 1:
			l.Payments = append(l.Payments, models.Payment{
				ID:        newID(models.PrefixPayment),
				PackageID: p.ID,
				ClientID:  p.ClientID,
				Amount:    p.PaidAmount.Sub(sum),
				Date:      paymentDate(*p),
				Method:    DefaultPaymentMethod,
				Note:      InitialPaymentNote,
				CreatedAt: p.CreatedAt,
			})
			report.Synthesized++
			changed[storage.Payments] = true
		case -1:
			p.PaidAmount = sum
			changed[storage.Packages] = true
		}
	}

	totals := make(map[string]decimal.Decimal, len(l.Clients))
	for _, p := range l.Payments {
		totals[p.ClientID] = totals[p.ClientID].Add(p.Amount)
	}
	for i := range l.Clients {
		c := &l.Clients[i]
		if total := totals[c.ID]; !c.TotalPaid.Equal(total) {
			c.TotalPaid = total
			changed[storage.Clients] = true
		}
	}

	for _, c := range storage.Collections {
		if changed[c] {
			report.Changed = append(report.Changed, c)
		}
	}
	return report
}

// paymentDate picks the date of a synthesized initial payment.
func paymentDate(p models.Package) string {
	if _, err := models.ParseDate(p.StartDate); err == nil {
		return p.StartDate[:len(models.DateLayout)]
	}
	return models.FormatDate(p.CreatedAt)
}

// Check verifies every ledger invariant and returns the first violation,
// wrapped in ErrCorrupt.
func Check(l Ledger) error {
	clients := make(map[string]bool, len(l.Clients))
	for _, c := range l.Clients {
		if c.ID == "" {
			return corrupt("client without id")
		}
		if clients[c.ID] {
			return corrupt("duplicate client id %s", c.ID)
		}
		clients[c.ID] = true
	}

	sessions := make(map[string]bool, len(l.Sessions))
	for _, s := range l.Sessions {
		if s.ID == "" {
			return corrupt("session without id")
		}
		if sessions[s.ID] {
			return corrupt("duplicate session id %s", s.ID)
		}
		sessions[s.ID] = true
		if !clients[s.ClientID] {
			return corrupt("session %s references unknown client %s", s.ID, s.ClientID)
		}
	}

	packages := make(map[string]models.Package, len(l.Packages))
	for _, p := range l.Packages {
		if p.ID == "" {
			return corrupt("package without id")
		}
		if _, dup := packages[p.ID]; dup {
			return corrupt("duplicate package id %s", p.ID)
		}
		packages[p.ID] = p
		if !clients[p.ClientID] {
			return corrupt("package %s references unknown client %s", p.ID, p.ClientID)
		}
		if p.TotalSessions <= 0 {
			return corrupt("package %s has %d total sessions", p.ID, p.TotalSessions)
		}
		if p.RemainingSessions < 0 || p.RemainingSessions > p.TotalSessions {
			return corrupt("package %s has %d of %d sessions remaining", p.ID, p.RemainingSessions, p.TotalSessions)
		}
		if p.Price.IsNegative() {
			return corrupt("package %s has negative price", p.ID)
		}
		if p.PaidAmount.IsNegative() || p.PaidAmount.GreaterThan(p.Price) {
			return corrupt("package %s paid %s of price %s", p.ID, p.PaidAmount, p.Price)
		}
		if (p.RemainingSessions == 0) != (p.Status == models.PackageCompleted) {
			return corrupt("package %s status %q with %d sessions remaining", p.ID, p.Status, p.RemainingSessions)
		}
	}

	paid := make(map[string]decimal.Decimal, len(l.Packages))
	payments := make(map[string]bool, len(l.Payments))
	for _, p := range l.Payments {
		if p.ID == "" {
			return corrupt("payment without id")
		}
		if payments[p.ID] {
			return corrupt("duplicate payment id %s", p.ID)
		}
		payments[p.ID] = true
		pkg, ok := packages[p.PackageID]
		if !ok {
			return corrupt("payment %s references unknown package %s", p.ID, p.PackageID)
		}
		if p.ClientID != pkg.ClientID {
			return corrupt("payment %s client %s differs from package client %s", p.ID, p.ClientID, pkg.ClientID)
		}
		if !p.Amount.IsPositive() {
			return corrupt("payment %s has non-positive amount", p.ID)
		}
		paid[p.PackageID] = paid[p.PackageID].Add(p.Amount)
	}

	for id, p := range packages {
		if !p.PaidAmount.Equal(paid[id]) {
			return corrupt("package %s paid amount %s differs from payments %s", id, p.PaidAmount, paid[id])
		}
	}
	return nil
}

func corrupt(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrCorrupt, fmt.Sprintf(format, args...))
}
