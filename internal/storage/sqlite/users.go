package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/mmynk/physioledger/internal/auth"
	"github.com/mmynk/physioledger/internal/models"
)

// CreateUser inserts a new user into the database.
func (s *Store) CreateUser(ctx context.Context, user *models.User) error {
	if err := s.available(); err != nil {
		return err
	}

	query := `
		INSERT INTO users (id, email, display_name, password_hash, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		user.ID,
		user.Email,
		user.DisplayName,
		user.PasswordHash,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return auth.ErrEmailExists
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

// GetUserByEmail retrieves a user by their email address.
// Returns nil, nil when no user has that email.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.getUser(ctx, "email", strings.ToLower(strings.TrimSpace(email)))
}

// GetUserByID retrieves a user by their ID.
// Returns nil, nil when no user has that ID.
func (s *Store) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	return s.getUser(ctx, "id", id)
}

func (s *Store) getUser(ctx context.Context, column, value string) (*models.User, error) {
	if err := s.available(); err != nil {
		return nil, err
	}

	query := `
		SELECT id, email, display_name, password_hash, created_at, updated_at
		FROM users
		WHERE ` + column + ` = ?
	`

	user := &models.User{}
	err := s.db.QueryRowContext(ctx, query, value).Scan(
		&user.ID,
		&user.Email,
		&user.DisplayName,
		&user.PasswordHash,
		&user.CreatedAt,
		&user.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil // User not found
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user by %s: %w", column, err)
	}

	return user, nil
}
