package models

import "time"

// DefaultSessionMinutes is used when a session is recorded without a duration.
const DefaultSessionMinutes = 60

// Session represents one appointment recorded for a client.
// Sessions are never modified after creation, only deleted.
type Session struct {
	ID       string `json:"id"`
	ClientID string `json:"clientId"`

	// Date is a calendar date (YYYY-MM-DD) and Time a wall clock time (HH:MM).
	Date string `json:"date"`
	Time string `json:"time"`

	// Type is a free category label (e.g., "Physiotherapy", "Massage").
	Type string `json:"type"`

	DurationMinutes int    `json:"duration"`
	Notes           string `json:"notes,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
}
