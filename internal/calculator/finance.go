package calculator

import (
	"cmp"
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmynk/physioledger/internal/ledger"
	"github.com/mmynk/physioledger/internal/models"
)

// DefaultRecentPayments is the length of the payment history view.
const DefaultRecentPayments = 20

// Finance holds the practice-wide figures shown on the dashboard.
type Finance struct {
	// MonthlyIncome sums the payments dated in the month of now.
	MonthlyIncome decimal.Decimal
	TotalIncome   decimal.Decimal

	// Outstanding is the unpaid part of every package's price.
	Outstanding decimal.Decimal

	SessionsThisMonth int
	TotalClients      int
	TotalSessions     int
	ActivePackages    int
}

// Summarize computes the dashboard figures as of now.
func Summarize(l ledger.Ledger, now time.Time) Finance {
	f := Finance{
		MonthlyIncome: decimal.Zero,
		TotalIncome:   decimal.Zero,
		Outstanding:   decimal.Zero,
		TotalClients:  len(l.Clients),
		TotalSessions: len(l.Sessions),
	}
	year, month := now.Year(), now.Month()

	for _, p := range l.Payments {
		f.TotalIncome = f.TotalIncome.Add(p.Amount)
		if inMonth(p.Date, year, month) {
			f.MonthlyIncome = f.MonthlyIncome.Add(p.Amount)
		}
	}
	for _, p := range l.Packages {
		f.Outstanding = f.Outstanding.Add(p.Outstanding())
		if p.Active() {
			f.ActivePackages++
		}
	}
	for _, s := range l.Sessions {
		if inMonth(s.Date, year, month) {
			f.SessionsThisMonth++
		}
	}
	return f
}

// PaymentRow is a payment with the names of its client and package.
// Names are empty when the reference cannot be resolved.
type PaymentRow struct {
	models.Payment
	ClientName  string
	PackageName string
}

// RecentPayments returns up to limit payments, newest date first. Payments
// on the same date are ordered by creation time, newest first.
// A non-positive limit returns every payment.
func RecentPayments(l ledger.Ledger, limit int) []PaymentRow {
	clients := make(map[string]string, len(l.Clients))
	for _, c := range l.Clients {
		clients[c.ID] = c.Name
	}
	packages := make(map[string]string, len(l.Packages))
	for _, p := range l.Packages {
		packages[p.ID] = p.Name
	}

	rows := make([]PaymentRow, len(l.Payments))
	for i, p := range l.Payments {
		rows[i] = PaymentRow{
			Payment:     p,
			ClientName:  clients[p.ClientID],
			PackageName: packages[p.PackageID],
		}
	}
	slices.SortStableFunc(rows, func(a, b PaymentRow) int {
		if c := cmp.Compare(b.Date, a.Date); c != 0 {
			return c
		}
		return b.CreatedAt.Compare(a.CreatedAt)
	})

	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	return rows
}

// inMonth reports whether a calendar date falls in the given month.
// Unparseable dates belong to no month.
func inMonth(date string, year int, month time.Month) bool {
	t, err := models.ParseDate(date)
	if err != nil {
		return false
	}
	return t.Year() == year && t.Month() == month
}
