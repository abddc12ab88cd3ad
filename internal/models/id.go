package models

import (
	"fmt"
	"time"

	"go.jetify.com/typeid/v2"
)

// ID prefixes, one per entity type.
const (
	PrefixClient  = "client"
	PrefixSession = "sess"
	PrefixPackage = "pkg"
	PrefixPayment = "pay"
	PrefixMessage = "msg"
)

// Layouts for calendar fields.
const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

// NewID generates a K-sortable unique identifier such as
// "client_01h2xcejqtf2nbrexx3vqjhp41".
// It panics if prefix is not a valid TypeID prefix (programming error).
func NewID(prefix string) string {
	tid, err := typeid.Generate(prefix)
	if err != nil {
		panic(fmt.Sprintf("models: invalid id prefix %q: %v", prefix, err))
	}
	return tid.String()
}

// ParseDate parses a calendar date. Longer ISO-8601 strings, as written by
// older exports, are accepted and truncated to their date part.
func ParseDate(s string) (time.Time, error) {
	if len(s) > len(DateLayout) {
		s = s[:len(DateLayout)]
	}
	return time.Parse(DateLayout, s)
}

// ParseTime parses a wall clock time of day.
func ParseTime(s string) (time.Time, error) {
	return time.Parse(TimeLayout, s)
}

// FormatDate formats t as a calendar date.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}
