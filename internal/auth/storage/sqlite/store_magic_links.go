package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/louisbranch/teamspace/internal/auth/storage"
)

// PutMagicLink stores a magic link token.
func (s *Store) PutMagicLink(ctx context.Context, link storage.MagicLink) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(link.Token) == "" {
		return fmt.Errorf("magic link token is required")
	}
	if strings.TrimSpace(link.UserID) == "" {
		return fmt.Errorf("user id is required")
	}

	usedAt := sql.NullInt64{}
	if link.UsedAt != nil {
		usedAt = sql.NullInt64{Int64: toMillis(*link.UsedAt), Valid: true}
	}

	_, err := s.sqlDB.ExecContext(ctx, `
INSERT OR REPLACE INTO magic_links (token, user_id, email, created_at, expires_at, used_at)
VALUES (?, ?, ?, ?, ?, ?)
`, link.Token, link.UserID, strings.ToLower(link.Email), toMillis(link.CreatedAt), toMillis(link.ExpiresAt), usedAt)
	if err != nil {
		return fmt.Errorf("put magic link: %w", err)
	}
	return nil
}

// GetMagicLink fetches a stored magic link by token.
func (s *Store) GetMagicLink(ctx context.Context, tokenValue string) (storage.MagicLink, error) {
	if err := ctx.Err(); err != nil {
		return storage.MagicLink{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.MagicLink{}, fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(tokenValue) == "" {
		return storage.MagicLink{}, fmt.Errorf("magic link token is required")
	}

	row := s.sqlDB.QueryRowContext(ctx, `
SELECT token, user_id, email, created_at, expires_at, used_at
FROM magic_links WHERE token = ?
`, tokenValue)

	var link storage.MagicLink
	var createdAt, expiresAt int64
	var usedAt sql.NullInt64
	if err := row.Scan(&link.Token, &link.UserID, &link.Email, &createdAt, &expiresAt, &usedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.MagicLink{}, storage.ErrNotFound
		}
		return storage.MagicLink{}, fmt.Errorf("get magic link: %w", err)
	}
	link.CreatedAt = fromMillis(createdAt)
	link.ExpiresAt = fromMillis(expiresAt)
	if usedAt.Valid {
		value := fromMillis(usedAt.Int64)
		link.UsedAt = &value
	}
	return link, nil
}

// MarkMagicLinkUsed consumes a magic link exactly once.
func (s *Store) MarkMagicLinkUsed(ctx context.Context, tokenValue string, usedAt time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(tokenValue) == "" {
		return fmt.Errorf("magic link token is required")
	}

	result, err := s.sqlDB.ExecContext(ctx, `
UPDATE magic_links SET used_at = ? WHERE token = ? AND used_at IS NULL
`, toMillis(usedAt), tokenValue)
	if err != nil {
		return fmt.Errorf("mark magic link used: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark magic link used: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}
