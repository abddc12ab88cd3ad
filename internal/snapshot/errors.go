package snapshot

import (
	"errors"
	"fmt"
)

// ErrFormat matches every FormatError.
var ErrFormat = errors.New("snapshot: invalid document")

// FormatError rejects a document before it touches any ledger.
type FormatError struct {
	Reason string
	Err    error
}

func (e *FormatError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("snapshot: invalid document: %s: %v", e.Reason, e.Err)
	}
	return "snapshot: invalid document: " + e.Reason
}

func (e *FormatError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrFormat}
	}
	return []error{ErrFormat, e.Err}
}
