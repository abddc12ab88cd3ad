// Package auth provides practitioner accounts: bcrypt password
// verification and JWT issuance. Each account owns one ledger scope.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/mmynk/physioledger/internal/models"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrWeakPassword       = errors.New("password must be at least 8 characters")
	ErrEmailExists        = errors.New("email already registered")
	ErrMissingFields      = errors.New("email and display name are required")
)

// MinPasswordLength is the shortest accepted password.
const MinPasswordLength = 8

// Authenticator registers and verifies accounts. The service layer only
// depends on this interface.
type Authenticator interface {
	Register(ctx context.Context, email, displayName, credential string) (*models.User, error)
	Authenticate(ctx context.Context, email, credential string) (*models.User, error)
	ValidateCredential(credential string) error
}

// Ensure PasswordAuthenticator implements Authenticator
var _ Authenticator = (*PasswordAuthenticator)(nil)

// UserStorage defines the interface for user persistence operations.
// Lookups return nil, nil when the user does not exist.
type UserStorage interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
}

// PasswordAuthenticator implements password-based authentication using bcrypt.
type PasswordAuthenticator struct {
	storage UserStorage
	cost    int
}

// NewPasswordAuthenticator creates a new password-based authenticator.
func NewPasswordAuthenticator(storage UserStorage) *PasswordAuthenticator {
	return &PasswordAuthenticator{
		storage: storage,
		cost:    bcrypt.DefaultCost,
	}
}

// WithCost returns a copy using the given bcrypt cost. Tests use
// bcrypt.MinCost to stay fast.
func (a *PasswordAuthenticator) WithCost(cost int) *PasswordAuthenticator {
	return &PasswordAuthenticator{storage: a.storage, cost: cost}
}

// ValidateCredential checks if the password meets minimum requirements.
func (a *PasswordAuthenticator) ValidateCredential(credential string) error {
	if len(credential) < MinPasswordLength {
		return ErrWeakPassword
	}
	return nil
}

// Register creates a new user account with a hashed password.
func (a *PasswordAuthenticator) Register(ctx context.Context, email, displayName, credential string) (*models.User, error) {
	if strings.TrimSpace(email) == "" || strings.TrimSpace(displayName) == "" {
		return nil, ErrMissingFields
	}
	if err := a.ValidateCredential(credential); err != nil {
		return nil, err
	}

	// Check if email already exists
	existing, err := a.storage.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to look up email: %w", err)
	}
	if existing != nil {
		return nil, ErrEmailExists
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(credential), a.cost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := models.NewUser(email, strings.TrimSpace(displayName), string(hashedPassword))
	// The unique index still catches a concurrent registration
	if err := a.storage.CreateUser(ctx, user); err != nil {
		if errors.Is(err, ErrEmailExists) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return user, nil
}

// Authenticate verifies the email and password, returning the user if valid.
func (a *PasswordAuthenticator) Authenticate(ctx context.Context, email, credential string) (*models.User, error) {
	user, err := a.storage.GetUserByEmail(ctx, email)
	if err != nil || user == nil {
		return nil, ErrInvalidCredentials
	}

	// Compare password hash
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(credential)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return user, nil
}
