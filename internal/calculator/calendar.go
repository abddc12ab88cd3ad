package calculator

import (
	"cmp"
	"slices"
	"time"

	"github.com/mmynk/physioledger/internal/ledger"
	"github.com/mmynk/physioledger/internal/models"
)

// CalendarEntry is a session placed on the calendar.
type CalendarEntry struct {
	models.Session
	ClientName string
}

// Day lists the sessions of one calendar date, ordered by time.
type Day struct {
	Date    string
	Entries []CalendarEntry
}

// Month is the occupancy of one calendar month, one Day per date.
type Month struct {
	Year  int
	Month time.Month
	Days  []Day
}

// Busiest returns the day with the most sessions; the earliest one wins
// ties. ok is false when the month has no sessions.
func (m Month) Busiest() (day Day, ok bool) {
	for _, d := range m.Days {
		if len(d.Entries) > len(day.Entries) {
			day, ok = d, true
		}
	}
	return day, ok
}

// Total returns the number of sessions in the month.
func (m Month) Total() int {
	n := 0
	for _, d := range m.Days {
		n += len(d.Entries)
	}
	return n
}

// Calendar groups the sessions of a month by their exact date.
func Calendar(l ledger.Ledger, year int, month time.Month) Month {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	days := first.AddDate(0, 1, -1).Day()

	out := Month{Year: first.Year(), Month: first.Month(), Days: make([]Day, days)}
	for i := range out.Days {
		out.Days[i] = Day{
			Date:    models.FormatDate(first.AddDate(0, 0, i)),
			Entries: []CalendarEntry{},
		}
	}

	names := make(map[string]string, len(l.Clients))
	for _, c := range l.Clients {
		names[c.ID] = c.Name
	}

	for _, s := range l.Sessions {
		t, err := models.ParseDate(s.Date)
		if err != nil || t.Year() != out.Year || t.Month() != out.Month {
			continue
		}
		d := &out.Days[t.Day()-1]
		d.Entries = append(d.Entries, CalendarEntry{Session: s, ClientName: names[s.ClientID]})
	}

	for i := range out.Days {
		slices.SortStableFunc(out.Days[i].Entries, func(a, b CalendarEntry) int {
			return cmp.Compare(a.Time, b.Time)
		})
	}
	return out
}
