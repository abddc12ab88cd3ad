package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Payment is money received against a package. Payments are append-only:
// they are only removed when their package or client is deleted.
type Payment struct {
	ID        string `json:"id"`
	PackageID string `json:"packageId"`

	// ClientID always equals the package's ClientID.
	ClientID string `json:"clientId"`

	Amount decimal.Decimal `json:"amount"`

	// Date is a calendar date (YYYY-MM-DD).
	Date string `json:"date"`

	// Method is a free label such as "cash" or "card".
	Method string `json:"method"`
	Note   string `json:"note,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
}
