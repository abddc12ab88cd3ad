package auth

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/mmynk/physioledger/internal/models"
)

// memUsers is an in-memory UserStorage.
type memUsers struct {
	mu    sync.Mutex
	users map[string]*models.User
}

func (m *memUsers) CreateUser(_ context.Context, u *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.users == nil {
		m.users = make(map[string]*models.User)
	}
	for _, existing := range m.users {
		if existing.Email == u.Email {
			return ErrEmailExists
		}
	}
	m.users[u.ID] = u
	return nil
}

func (m *memUsers) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	email = strings.ToLower(strings.TrimSpace(email))
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, nil
}

func (m *memUsers) GetUserByID(_ context.Context, id string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.users[id], nil
}

func TestPasswordAuthenticator(t *testing.T) {
	ctx := context.Background()
	a := NewPasswordAuthenticator(&memUsers{}).WithCost(bcrypt.MinCost)

	user, err := a.Register(ctx, " Ada@Example.com ", " Ada ", "correct horse")
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if user.Email != "ada@example.com" || user.DisplayName != "Ada" || user.PasswordHash == "correct horse" {
		t.Errorf("user = %+v", user)
	}

	tests := []struct {
		name     string
		email    string
		password string
		wantErr  error
	}{
		{name: "valid", email: "ada@example.com", password: "correct horse"},
		{name: "case-insensitive email", email: "ADA@example.com", password: "correct horse"},
		{name: "wrong password", email: "ada@example.com", password: "battery staple", wantErr: ErrInvalidCredentials},
		{name: "unknown email", email: "bob@example.com", password: "correct horse", wantErr: ErrInvalidCredentials},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := a.Authenticate(ctx, tt.email, tt.password)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Authenticate error = %v, want %v", err, tt.wantErr)
			}
			if err == nil && got.ID != user.ID {
				t.Errorf("Authenticate = %q, want %q", got.ID, user.ID)
			}
		})
	}

	for _, tt := range []struct {
		name                         string
		email, displayName, password string
		wantErr                      error
	}{
		{name: "duplicate", email: "ada@example.com", displayName: "Ada", password: "long enough", wantErr: ErrEmailExists},
		{name: "weak", email: "new@example.com", displayName: "New", password: "short", wantErr: ErrWeakPassword},
		{name: "missing name", email: "new@example.com", displayName: " ", password: "long enough", wantErr: ErrMissingFields},
	} {
		t.Run("register "+tt.name, func(t *testing.T) {
			if _, err := a.Register(ctx, tt.email, tt.displayName, tt.password); !errors.Is(err, tt.wantErr) {
				t.Errorf("Register error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestJWTManager(t *testing.T) {
	now := time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)
	m := NewJWTManager("secret", time.Hour)
	m.now = func() time.Time { return now }

	token, err := m.Generate(&models.User{ID: "u1", Email: "ada@example.com"})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	claims, err := m.Validate(token)
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if claims.UserID != "u1" || claims.Email != "ada@example.com" || claims.Scope() != "user-u1" {
		t.Errorf("claims = %+v, scope %q", claims, claims.Scope())
	}

	other := NewJWTManager("another secret", time.Hour)
	other.now = m.now

	tests := []struct {
		name  string
		check func() error
	}{
		{name: "garbage", check: func() error { _, err := m.Validate("not.a.token"); return err }},
		{name: "wrong secret", check: func() error { _, err := other.Validate(token); return err }},
		{name: "expired", check: func() error {
			later := NewJWTManager("secret", time.Hour)
			later.now = func() time.Time { return now.Add(2 * time.Hour) }
			_, err := later.Validate(token)
			return err
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.check(); !errors.Is(err, ErrInvalidToken) {
				t.Errorf("Validate error = %v, want ErrInvalidToken", err)
			}
		})
	}

	if _, err := m.Generate(&models.User{}); err == nil {
		t.Error("Generate without user id succeeded")
	}
}
