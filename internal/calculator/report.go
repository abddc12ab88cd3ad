package calculator

import (
	"cmp"
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmynk/physioledger/internal/ledger"
	"github.com/mmynk/physioledger/internal/models"
)

// DefaultTopClients is the number of clients ranked in a monthly report.
const DefaultTopClients = 5

// ClientCount ranks a client by sessions.
type ClientCount struct {
	ClientID string `json:"clientId"`
	Name     string `json:"name"`
	Sessions int    `json:"sessions"`
}

// MonthlyReport summarizes the calendar month containing a reference day.
type MonthlyReport struct {
	// From and To are the first day of the month and the day of now.
	From string
	To   string

	TotalSessions int
	TotalIncome   decimal.Decimal

	SessionsByType map[string]int
	TopClients     []ClientCount

	// AvgSessionsPerDay divides the month's sessions by the elapsed days,
	// rounded to one decimal.
	AvgSessionsPerDay decimal.Decimal
}

// Monthly builds the report for the month containing now, ranking at most
// top clients by session count within the month.
func Monthly(l ledger.Ledger, now time.Time, top int) MonthlyReport {
	year, month := now.Year(), now.Month()
	first := time.Date(year, month, 1, 0, 0, 0, 0, now.Location())

	r := MonthlyReport{
		From:           models.FormatDate(first),
		To:             models.FormatDate(now),
		TotalIncome:    decimal.Zero,
		SessionsByType: make(map[string]int),
		TopClients:     []ClientCount{},
	}

	names := make(map[string]string, len(l.Clients))
	for _, c := range l.Clients {
		names[c.ID] = c.Name
	}

	counts := make(map[string]int)
	for _, s := range l.Sessions {
		if !inMonth(s.Date, year, month) {
			continue
		}
		r.TotalSessions++
		r.SessionsByType[s.Type]++
		counts[s.ClientID]++
	}
	for _, p := range l.Payments {
		if inMonth(p.Date, year, month) {
			r.TotalIncome = r.TotalIncome.Add(p.Amount)
		}
	}

	for id, n := range counts {
		r.TopClients = append(r.TopClients, ClientCount{ClientID: id, Name: names[id], Sessions: n})
	}
	slices.SortFunc(r.TopClients, func(a, b ClientCount) int {
		if c := cmp.Compare(b.Sessions, a.Sessions); c != 0 {
			return c
		}
		if c := cmp.Compare(a.Name, b.Name); c != 0 {
			return c
		}
		return cmp.Compare(a.ClientID, b.ClientID)
	})
	if top >= 0 && len(r.TopClients) > top {
		r.TopClients = r.TopClients[:top]
	}

	r.AvgSessionsPerDay = decimal.NewFromInt(int64(r.TotalSessions)).
		DivRound(decimal.NewFromInt(int64(now.Day())), 1)
	return r
}
