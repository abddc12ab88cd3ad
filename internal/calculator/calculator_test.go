package calculator

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmynk/physioledger/internal/ledger"
	"github.com/mmynk/physioledger/internal/models"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func at(day, hour int) time.Time {
	return time.Date(2025, 3, day, hour, 0, 0, 0, time.UTC)
}

// fixture: Ada has a completed and an active package, Bob one package and
// no payments, Cem nothing.
func fixture() ledger.Ledger {
	return ledger.Ledger{
		Clients: []models.Client{
			{ID: "c1", Name: "Ada", Status: models.ClientActive},
			{ID: "c2", Name: "Bob", Status: models.ClientFrozen},
			{ID: "c3", Name: "Cem", Status: models.ClientActive},
		},
		Packages: []models.Package{
			{ID: "p1", ClientID: "c1", Name: "old", TotalSessions: 2, RemainingSessions: 0, Price: d("200"), PaidAmount: d("200"), Status: models.PackageCompleted},
			{ID: "p2", ClientID: "c1", Name: "new", TotalSessions: 10, RemainingSessions: 7, Price: d("1000"), PaidAmount: d("350.50"), Status: models.PackageActive},
			{ID: "p3", ClientID: "c2", Name: "trial", TotalSessions: 1, RemainingSessions: 1, Price: d("80"), PaidAmount: d("0"), Status: models.PackageActive},
		},
		Payments: []models.Payment{
			{ID: "y1", PackageID: "p1", ClientID: "c1", Amount: d("200"), Date: "2025-02-10", CreatedAt: at(1, 9)},
			{ID: "y2", PackageID: "p2", ClientID: "c1", Amount: d("300"), Date: "2025-03-02", CreatedAt: at(2, 9)},
			{ID: "y3", PackageID: "p2", ClientID: "c1", Amount: d("50.50"), Date: "2025-03-02", CreatedAt: at(2, 10)},
		},
		Sessions: []models.Session{
			{ID: "s1", ClientID: "c1", Date: "2025-02-27", Time: "09:00", Type: "massage"},
			{ID: "s2", ClientID: "c1", Date: "2025-03-03", Time: "11:00", Type: "massage"},
			{ID: "s3", ClientID: "c1", Date: "2025-03-03", Time: "09:30", Type: "exercise"},
			{ID: "s4", ClientID: "c2", Date: "2025-03-05", Time: "14:00", Type: "massage"},
			{ID: "s5", ClientID: "c1", Date: "2025-03-31", Time: "08:00", Type: "exercise"},
			{ID: "s6", ClientID: "c3", Date: "not a date", Time: "08:00", Type: "massage"},
		},
	}
}

func TestSummarizeClients(t *testing.T) {
	got := SummarizeClients(fixture())
	if len(got) != 3 {
		t.Fatalf("got %d summaries, want 3", len(got))
	}

	tests := []struct {
		name         string
		summary      ClientSummary
		sessions     int
		value        string
		paid         string
		outstanding  string
		active       bool
		remainingAll int
	}{
		{"Ada", got[0], 4, "1200", "550.50", "649.50", true, 7},
		{"Bob", got[1], 1, "80", "0", "80", true, 1},
		{"Cem", got[2], 1, "0", "0", "0", false, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := tt.summary
			if s.Name != tt.name {
				t.Errorf("Name = %q, want %q", s.Name, tt.name)
			}
			if s.SessionCount != tt.sessions {
				t.Errorf("SessionCount = %d, want %d", s.SessionCount, tt.sessions)
			}
			if !s.PackageValue.Equal(d(tt.value)) {
				t.Errorf("PackageValue = %s, want %s", s.PackageValue, tt.value)
			}
			if !s.TotalPaid.Equal(d(tt.paid)) {
				t.Errorf("TotalPaid = %s, want %s", s.TotalPaid, tt.paid)
			}
			if !s.Outstanding.Equal(d(tt.outstanding)) {
				t.Errorf("Outstanding = %s, want %s", s.Outstanding, tt.outstanding)
			}
			if s.HasActivePackage != tt.active {
				t.Errorf("HasActivePackage = %v, want %v", s.HasActivePackage, tt.active)
			}
			if s.RemainingSessions != tt.remainingAll {
				t.Errorf("RemainingSessions = %d, want %d", s.RemainingSessions, tt.remainingAll)
			}
		})
	}

	if _, ok := SummarizeClient(fixture(), "missing"); ok {
		t.Error("SummarizeClient found a missing client")
	}
	if s, ok := SummarizeClient(fixture(), "c2"); !ok || s.Status != models.ClientFrozen {
		t.Errorf("SummarizeClient(c2) = %+v, %v", s, ok)
	}
}

func TestSummarize(t *testing.T) {
	tests := []struct {
		name      string
		now       time.Time
		monthly   string
		sessions  int
		wantTotal string
	}{
		{"march", at(14, 12), "350.50", 4, "550.50"},
		{"february", time.Date(2025, 2, 20, 0, 0, 0, 0, time.UTC), "200", 1, "550.50"},
		{"empty month", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), "0", 0, "550.50"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := Summarize(fixture(), tt.now)
			if !f.MonthlyIncome.Equal(d(tt.monthly)) {
				t.Errorf("MonthlyIncome = %s, want %s", f.MonthlyIncome, tt.monthly)
			}
			if !f.TotalIncome.Equal(d(tt.wantTotal)) {
				t.Errorf("TotalIncome = %s, want %s", f.TotalIncome, tt.wantTotal)
			}
			if f.SessionsThisMonth != tt.sessions {
				t.Errorf("SessionsThisMonth = %d, want %d", f.SessionsThisMonth, tt.sessions)
			}
			if !f.Outstanding.Equal(d("729.50")) {
				t.Errorf("Outstanding = %s, want 729.50", f.Outstanding)
			}
			if f.TotalClients != 3 || f.TotalSessions != 6 || f.ActivePackages != 2 {
				t.Errorf("counts = %d clients, %d sessions, %d active packages", f.TotalClients, f.TotalSessions, f.ActivePackages)
			}
		})
	}
}

func TestSummarizeEmpty(t *testing.T) {
	f := Summarize(ledger.Ledger{}, at(1, 0))
	if !f.TotalIncome.IsZero() || !f.Outstanding.IsZero() || f.TotalClients != 0 {
		t.Errorf("Summarize(empty) = %+v", f)
	}
}

func TestRecentPayments(t *testing.T) {
	rows := RecentPayments(fixture(), 2)
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}
	if rows[0].ID != "y3" || rows[1].ID != "y2" {
		t.Errorf("order = %s, %s; want y3, y2", rows[0].ID, rows[1].ID)
	}
	if rows[0].ClientName != "Ada" || rows[0].PackageName != "new" {
		t.Errorf("names = %q, %q", rows[0].ClientName, rows[0].PackageName)
	}

	if all := RecentPayments(fixture(), 0); len(all) != 3 || all[2].ID != "y1" {
		t.Errorf("RecentPayments(0) = %d rows", len(all))
	}
}

func TestCalendar(t *testing.T) {
	m := Calendar(fixture(), 2025, time.March)
	if len(m.Days) != 31 {
		t.Fatalf("got %d days, want 31", len(m.Days))
	}
	if m.Days[0].Date != "2025-03-01" || m.Days[30].Date != "2025-03-31" {
		t.Errorf("days span %s..%s", m.Days[0].Date, m.Days[30].Date)
	}
	if m.Total() != 4 {
		t.Errorf("Total = %d, want 4", m.Total())
	}

	third := m.Days[2]
	if len(third.Entries) != 2 {
		t.Fatalf("2025-03-03 has %d sessions, want 2", len(third.Entries))
	}
	if third.Entries[0].ID != "s3" || third.Entries[1].ID != "s2" {
		t.Errorf("entries not ordered by time: %s, %s", third.Entries[0].ID, third.Entries[1].ID)
	}
	if third.Entries[0].ClientName != "Ada" {
		t.Errorf("ClientName = %q, want Ada", third.Entries[0].ClientName)
	}

	busiest, ok := m.Busiest()
	if !ok || busiest.Date != "2025-03-03" {
		t.Errorf("Busiest = %s, %v", busiest.Date, ok)
	}

	feb := Calendar(fixture(), 2024, time.February)
	if len(feb.Days) != 29 {
		t.Errorf("February 2024 has %d days, want 29", len(feb.Days))
	}
	if _, ok := feb.Busiest(); ok {
		t.Error("Busiest found a day in an empty month")
	}
}

func TestMonthly(t *testing.T) {
	r := Monthly(fixture(), at(10, 18), DefaultTopClients)

	if r.From != "2025-03-01" || r.To != "2025-03-10" {
		t.Errorf("period = %s..%s", r.From, r.To)
	}
	if r.TotalSessions != 4 {
		t.Errorf("TotalSessions = %d, want 4", r.TotalSessions)
	}
	if !r.TotalIncome.Equal(d("350.50")) {
		t.Errorf("TotalIncome = %s, want 350.50", r.TotalIncome)
	}
	if r.SessionsByType["massage"] != 2 || r.SessionsByType["exercise"] != 2 {
		t.Errorf("SessionsByType = %v", r.SessionsByType)
	}
	if len(r.TopClients) != 2 || r.TopClients[0].Name != "Ada" || r.TopClients[0].Sessions != 3 {
		t.Errorf("TopClients = %+v", r.TopClients)
	}
	if !r.AvgSessionsPerDay.Equal(d("0.4")) {
		t.Errorf("AvgSessionsPerDay = %s, want 0.4", r.AvgSessionsPerDay)
	}

	if one := Monthly(fixture(), at(10, 18), 1); len(one.TopClients) != 1 {
		t.Errorf("top 1 returned %d clients", len(one.TopClients))
	}
}
