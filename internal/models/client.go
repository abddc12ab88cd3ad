package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ClientStatus is the lifecycle state of a client.
type ClientStatus string

const (
	ClientActive ClientStatus = "active"
	ClientFrozen ClientStatus = "frozen"
)

// Client represents a person the business provides sessions to.
type Client struct {
	// ID is the unique identifier for the client (typeid, prefix "client").
	ID string `json:"id"`

	// Name and Phone are required at creation.
	Name  string `json:"name"`
	Phone string `json:"phone"`

	Email      string `json:"email,omitempty"`
	Complaints string `json:"complaints,omitempty"`
	Notes      string `json:"notes,omitempty"`

	// Status toggles between active and frozen. Documents written before the
	// field existed decode to "" and are treated as active.
	Status ClientStatus `json:"status,omitempty"`

	// Messages is the ordered log of notes sent to or about the client.
	Messages []Message `json:"messages"`

	CreatedAt time.Time `json:"createdAt"`

	// TotalPaid is a cache of the sum of the client's payments.
	// It is recomputed by the ledger and never trusted on input.
	TotalPaid decimal.Decimal `json:"totalPaid"`
}

// Message is one entry in a client's message log.
type Message struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// Frozen reports whether the client is currently frozen.
func (c Client) Frozen() bool {
	return c.Status == ClientFrozen
}
