package ledger

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Sentinel errors for common failure scenarios.
var (
	ErrValidation  = errors.New("ledger: validation failed")
	ErrNotFound    = errors.New("ledger: not found")
	ErrOverpayment = errors.New("ledger: payment exceeds outstanding amount")

	// ErrCorrupt is returned when persisted or imported state violates the
	// ledger invariants and cannot be reconciled.
	ErrCorrupt = errors.New("ledger: inconsistent state")
)

// ValidationError represents a rejected input. It is raised before any
// mutation, so the ledger is unchanged.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("ledger: validation failed for %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// NotFoundError reports a reference to an entity that does not exist.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("ledger: %s not found: %s", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// OverpaymentError rejects a payment that would push a package's paid
// amount above its price. It matches both ErrOverpayment and ErrValidation.
type OverpaymentError struct {
	PackageID   string
	Amount      decimal.Decimal
	Outstanding decimal.Decimal
}

func (e *OverpaymentError) Error() string {
	return fmt.Sprintf("ledger: payment of %s exceeds outstanding %s on package %s",
		e.Amount, e.Outstanding, e.PackageID)
}

func (e *OverpaymentError) Unwrap() []error {
	return []error{ErrOverpayment, ErrValidation}
}

// IsNotFound returns true if the error is a not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsValidation returns true if the error rejected the input before mutation.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}
