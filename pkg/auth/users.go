package auth

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/fleetgrid/fleetgrid/pkg/authz"
)

// uniqueViolation is the Postgres error code for unique constraint failures.
const uniqueViolation = "23505"

// UserStore provides user account persistence.
type UserStore struct {
	db *sql.DB
}

// NewUserStore creates a user store.
func NewUserStore(db *sql.DB) *UserStore {
	return &UserStore{db: db}
}

// CreateUser creates a user account.
func (s *UserStore) CreateUser(ctx context.Context, username, email, fullName string, isBot bool) (*User, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" {
		return nil, authz.Validation("username is required")
	}

	user := &User{
		Username: username,
		Email:    email,
		FullName: fullName,
		IsBot:    isBot,
		IsActive: true,
	}
	query := `
		INSERT INTO users (username, email, full_name, is_bot)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at
	`
	err := s.db.QueryRowContext(ctx, query, username, email, fullName, isBot).
		Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == uniqueViolation {
			return nil, authz.Conflict("username %q is already taken", username)
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}

// GetUser retrieves a user by ID.
func (s *UserStore) GetUser(ctx context.Context, userID int64) (*User, error) {
	return s.getUser(ctx, "id = $1", userID)
}

// GetUserByUsername retrieves a user by username.
func (s *UserStore) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	return s.getUser(ctx, "username = $1", strings.ToLower(strings.TrimSpace(username)))
}

func (s *UserStore) getUser(ctx context.Context, where string, arg interface{}) (*User, error) {
	query := `
		SELECT id, username, email, full_name, is_bot, is_active,
		       created_at, updated_at, last_login_at
		FROM users
		WHERE ` + where
	user := &User{}
	err := s.db.QueryRowContext(ctx, query, arg).Scan(
		&user.ID, &user.Username, &user.Email, &user.FullName, &user.IsBot, &user.IsActive,
		&user.CreatedAt, &user.UpdatedAt, &user.LastLoginAt,
	)
	if err == sql.ErrNoRows {
		return nil, authz.NotFound("user not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// DeactivateUser marks a user inactive. Their tokens stop validating.
func (s *UserStore) DeactivateUser(ctx context.Context, userID int64) error {
	result, err := s.db.ExecContext(ctx,
		"UPDATE users SET is_active = FALSE, updated_at = NOW() WHERE id = $1", userID)
	if err != nil {
		return fmt.Errorf("failed to deactivate user: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return authz.NotFound("user not found")
	}
	return nil
}
