package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// User represents a registered account. Each user owns one ledger scope;
// requests without a user fall back to the shared guest scope.
type User struct {
	// ID is the unique identifier for the user (UUID format).
	ID string

	// Email is the user's login (unique, stored lowercase).
	Email string

	// DisplayName is shown in the UI.
	DisplayName string

	// PasswordHash is the bcrypt hash of the password.
	PasswordHash string

	// CreatedAt and UpdatedAt are Unix timestamps.
	CreatedAt int64
	UpdatedAt int64
}

// NewUser creates a user with a fresh ID and timestamps.
func NewUser(email, displayName, passwordHash string) *User {
	now := time.Now().Unix()
	return &User{
		ID:           uuid.New().String(),
		Email:        strings.ToLower(strings.TrimSpace(email)),
		DisplayName:  displayName,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}
