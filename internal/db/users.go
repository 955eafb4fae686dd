package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ldi/dayplan/pkg/models"
)

// ErrUserExists is returned when the email is already registered.
var ErrUserExists = errors.New("user with this email already exists")

// CreateUser inserts a new user. If u.ID is empty, a new UUID is generated.
func (db *DB) CreateUser(ctx context.Context, u *models.User) error {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}

	query := `
		INSERT INTO users (id, email, password_hash)
		VALUES (?, ?, ?)
		RETURNING created_at
	`
	err := db.QueryRowContext(ctx, query, u.ID, u.Email, u.PasswordHash).Scan(&u.CreatedAt)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return ErrUserExists
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetUser returns nil, nil if no user has the id.
func (db *DB) GetUser(ctx context.Context, id string) (*models.User, error) {
	return db.getUser(ctx, `SELECT id, email, password_hash, created_at FROM users WHERE id = ?`, id)
}

// GetUserByEmail returns nil, nil if no user has the email.
func (db *DB) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return db.getUser(ctx, `SELECT id, email, password_hash, created_at FROM users WHERE email = ?`, email)
}

func (db *DB) getUser(ctx context.Context, query string, arg string) (*models.User, error) {
	u := &models.User{}
	err := db.QueryRowContext(ctx, query, arg).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}

// RevokeToken records a session token id as signed out until it would
// have expired anyway.
func (db *DB) RevokeToken(ctx context.Context, tokenID string, expiresAt time.Time) error {
	query := `INSERT OR IGNORE INTO revoked_tokens (token_id, expires_at) VALUES (?, ?)`
	if _, err := db.ExecContext(ctx, query, tokenID, expiresAt.UTC().Truncate(time.Second)); err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	return nil
}

func (db *DB) IsTokenRevoked(ctx context.Context, tokenID string) (bool, error) {
	var count int
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM revoked_tokens WHERE token_id = ?`, tokenID).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check token: %w", err)
	}
	return count > 0, nil
}

// PurgeRevokedTokens drops revocations whose tokens have expired.
func (db *DB) PurgeRevokedTokens(ctx context.Context, now time.Time) (int64, error) {
	res, err := db.ExecContext(ctx, `DELETE FROM revoked_tokens WHERE expires_at < ?`, now.UTC().Truncate(time.Second))
	if err != nil {
		return 0, fmt.Errorf("failed to purge revoked tokens: %w", err)
	}
	return res.RowsAffected()
}
