package models

import (
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// Amounts are written as JSON numbers, the format older backups use.
	decimal.MarshalJSONWithoutQuotes = true
}

// PackageStatus is the lifecycle state of a package.
type PackageStatus string

const (
	PackageActive    PackageStatus = "active"
	PackageCompleted PackageStatus = "completed"
)

// Package represents a prepaid bundle of sessions.
//
// RemainingSessions starts at TotalSessions and is consumed one at a time as
// sessions are recorded for the client. PaidAmount is a cache of the sum of
// the package's payments and never exceeds Price.
type Package struct {
	ID       string `json:"id"`
	ClientID string `json:"clientId"`
	Name     string `json:"name"`

	TotalSessions     int `json:"totalSessions"`
	RemainingSessions int `json:"remainingSessions"`

	Price      decimal.Decimal `json:"price"`
	PaidAmount decimal.Decimal `json:"paidAmount"`

	// StartDate is a calendar date (YYYY-MM-DD).
	StartDate string        `json:"startDate"`
	Status    PackageStatus `json:"status"`

	CreatedAt time.Time `json:"createdAt"`
}

// Active reports whether the package can still be consumed.
func (p Package) Active() bool {
	return p.Status == PackageActive
}

// Outstanding returns the part of the price not yet paid.
func (p Package) Outstanding() decimal.Decimal {
	return p.Price.Sub(p.PaidAmount)
}

// UsedSessions returns how many sessions have been consumed.
func (p Package) UsedSessions() int {
	return p.TotalSessions - p.RemainingSessions
}
