// Package calculator derives read-only views from a ledger: per-client
// totals, income, outstanding debt, calendar occupancy and monthly reports.
// Every function is pure and recomputes from the ledger it is given.
package calculator

import (
	"github.com/shopspring/decimal"

	"github.com/mmynk/physioledger/internal/ledger"
	"github.com/mmynk/physioledger/internal/models"
)

// ClientSummary aggregates one client's activity.
type ClientSummary struct {
	ClientID string
	Name     string
	Status   models.ClientStatus

	SessionCount int

	// PackageValue is the sum of the prices of all the client's packages.
	PackageValue decimal.Decimal
	TotalPaid    decimal.Decimal

	// Outstanding = PackageValue - TotalPaid
	Outstanding decimal.Decimal

	HasActivePackage  bool
	RemainingSessions int // across active packages
}

// SummarizeClients returns a summary per client, in client order.
func SummarizeClients(l ledger.Ledger) []ClientSummary {
	index := make(map[string]int, len(l.Clients))
	out := make([]ClientSummary, len(l.Clients))
	for i, c := range l.Clients {
		index[c.ID] = i
		out[i] = ClientSummary{
			ClientID:     c.ID,
			Name:         c.Name,
			Status:       c.Status,
			PackageValue: decimal.Zero,
			TotalPaid:    decimal.Zero,
		}
	}

	for _, s := range l.Sessions {
		if i, ok := index[s.ClientID]; ok {
			out[i].SessionCount++
		}
	}
	for _, p := range l.Packages {
		i, ok := index[p.ClientID]
		if !ok {
			continue
		}
		out[i].PackageValue = out[i].PackageValue.Add(p.Price)
		if p.Active() {
			out[i].HasActivePackage = true
			out[i].RemainingSessions += p.RemainingSessions
		}
	}
	// Payments are the source of truth; the client's TotalPaid is a cache.
	for _, p := range l.Payments {
		if i, ok := index[p.ClientID]; ok {
			out[i].TotalPaid = out[i].TotalPaid.Add(p.Amount)
		}
	}

	for i := range out {
		out[i].Outstanding = out[i].PackageValue.Sub(out[i].TotalPaid)
	}
	return out
}

// SummarizeClient returns the summary of one client.
func SummarizeClient(l ledger.Ledger, clientID string) (ClientSummary, bool) {
	for _, s := range SummarizeClients(l) {
		if s.ClientID == clientID {
			return s, true
		}
	}
	return ClientSummary{}, false
}
