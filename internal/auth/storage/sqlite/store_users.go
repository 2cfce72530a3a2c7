package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/louisbranch/teamspace/internal/auth/storage"
	"github.com/louisbranch/teamspace/internal/auth/user"
)

// PutUser persists a user record, replacing any previous version.
func (s *Store) PutUser(ctx context.Context, u user.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(u.ID) == "" {
		return fmt.Errorf("user id is required")
	}
	if strings.TrimSpace(u.Email) == "" {
		return fmt.Errorf("user email is required")
	}

	verifiedAt := sql.NullInt64{}
	if u.VerifiedAt != nil {
		verifiedAt = sql.NullInt64{Int64: toMillis(*u.VerifiedAt), Valid: true}
	}

	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO users (id, email, name, verified_at, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    email = excluded.email,
    name = excluded.name,
    verified_at = excluded.verified_at,
    updated_at = excluded.updated_at
`, u.ID, strings.ToLower(u.Email), u.Name, verifiedAt, toMillis(u.CreatedAt), toMillis(u.UpdatedAt))
	if err != nil {
		return fmt.Errorf("put user: %w", err)
	}
	return nil
}

// GetUser resolves a user by ID.
func (s *Store) GetUser(ctx context.Context, userID string) (user.User, error) {
	if err := ctx.Err(); err != nil {
		return user.User{}, err
	}
	if s == nil || s.sqlDB == nil {
		return user.User{}, fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(userID) == "" {
		return user.User{}, fmt.Errorf("user id is required")
	}

	row := s.sqlDB.QueryRowContext(ctx, `
SELECT id, email, name, verified_at, created_at, updated_at
FROM users WHERE id = ?
`, userID)
	return scanUser(row)
}

// GetUserByEmail resolves a user by normalized email.
//
// Emails are stored lowercase, so the lookup is case-insensitive by
// construction as long as callers normalize first.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (user.User, error) {
	if err := ctx.Err(); err != nil {
		return user.User{}, err
	}
	if s == nil || s.sqlDB == nil {
		return user.User{}, fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(email) == "" {
		return user.User{}, fmt.Errorf("email is required")
	}

	row := s.sqlDB.QueryRowContext(ctx, `
SELECT id, email, name, verified_at, created_at, updated_at
FROM users WHERE email = ?
`, strings.ToLower(strings.TrimSpace(email)))
	return scanUser(row)
}

// MarkUserVerified records the time the user's email was verified.
func (s *Store) MarkUserVerified(ctx context.Context, userID string, verifiedAt time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(userID) == "" {
		return fmt.Errorf("user id is required")
	}

	result, err := s.sqlDB.ExecContext(ctx, `
UPDATE users SET verified_at = ?, updated_at = ? WHERE id = ?
`, toMillis(verifiedAt), toMillis(verifiedAt), userID)
	if err != nil {
		return fmt.Errorf("mark user verified: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark user verified: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (user.User, error) {
	var u user.User
	var verifiedAt sql.NullInt64
	var createdAt, updatedAt int64
	if err := row.Scan(&u.ID, &u.Email, &u.Name, &verifiedAt, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return user.User{}, storage.ErrNotFound
		}
		return user.User{}, fmt.Errorf("scan user: %w", err)
	}
	if verifiedAt.Valid {
		value := fromMillis(verifiedAt.Int64)
		u.VerifiedAt = &value
	}
	u.CreatedAt = fromMillis(createdAt)
	u.UpdatedAt = fromMillis(updatedAt)
	return u, nil
}
