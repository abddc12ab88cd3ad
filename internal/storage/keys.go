package storage

import "strings"

// GuestScope namespaces the ledger of an unauthenticated user.
const GuestScope = "guest"

// Collection names one of the four ledger collections.
type Collection string

const (
	Clients  Collection = "clients"
	Sessions Collection = "sessions"
	Packages Collection = "packages"
	Payments Collection = "payments"
)

// Collections lists every ledger collection in persistence order.
var Collections = []Collection{Clients, Sessions, Packages, Payments}

// Key returns the storage key of a collection inside a scope,
// e.g. "guest-clients".
func Key(scope string, c Collection) string {
	return scope + "-" + string(c)
}

// SplitKey is the inverse of Key. The scope may itself contain dashes,
// so the split happens on the last one.
func SplitKey(key string) (scope string, c Collection, ok bool) {
	i := strings.LastIndexByte(key, '-')
	if i <= 0 || i == len(key)-1 {
		return "", "", false
	}
	return key[:i], Collection(key[i+1:]), true
}

// ScopeFor returns the scope owned by a user, or GuestScope for anonymous
// callers.
func ScopeFor(userID string) string {
	if userID == "" {
		return GuestScope
	}
	return "user-" + userID
}
