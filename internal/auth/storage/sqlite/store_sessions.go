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

// PutSession stores an authenticated web session.
func (s *Store) PutSession(ctx context.Context, session storage.Session) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(session.Token) == "" {
		return fmt.Errorf("session token is required")
	}
	if strings.TrimSpace(session.UserID) == "" {
		return fmt.Errorf("user id is required")
	}

	revokedAt := sql.NullInt64{}
	if session.RevokedAt != nil {
		revokedAt = sql.NullInt64{Int64: toMillis(*session.RevokedAt), Valid: true}
	}

	_, err := s.sqlDB.ExecContext(ctx, `
INSERT OR REPLACE INTO web_sessions (token, user_id, created_at, expires_at, revoked_at)
VALUES (?, ?, ?, ?, ?)
`, session.Token, session.UserID, toMillis(session.CreatedAt), toMillis(session.ExpiresAt), revokedAt)
	if err != nil {
		return fmt.Errorf("put session: %w", err)
	}
	return nil
}

// GetSession fetches a stored web session by token.
func (s *Store) GetSession(ctx context.Context, token string) (storage.Session, error) {
	if err := ctx.Err(); err != nil {
		return storage.Session{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.Session{}, fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(token) == "" {
		return storage.Session{}, fmt.Errorf("session token is required")
	}

	row := s.sqlDB.QueryRowContext(ctx, `
SELECT token, user_id, created_at, expires_at, revoked_at
FROM web_sessions WHERE token = ?
`, token)

	var session storage.Session
	var createdAt, expiresAt int64
	var revokedAt sql.NullInt64
	if err := row.Scan(&session.Token, &session.UserID, &createdAt, &expiresAt, &revokedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.Session{}, storage.ErrNotFound
		}
		return storage.Session{}, fmt.Errorf("get session: %w", err)
	}
	session.CreatedAt = fromMillis(createdAt)
	session.ExpiresAt = fromMillis(expiresAt)
	if revokedAt.Valid {
		value := fromMillis(revokedAt.Int64)
		session.RevokedAt = &value
	}
	return session, nil
}

// RevokeSession marks a session revoked. Missing tokens return ErrNotFound
// so the service layer can treat revocation as idempotent.
func (s *Store) RevokeSession(ctx context.Context, token string, revokedAt time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(token) == "" {
		return fmt.Errorf("session token is required")
	}

	result, err := s.sqlDB.ExecContext(ctx, `
UPDATE web_sessions SET revoked_at = ? WHERE token = ? AND revoked_at IS NULL
`, toMillis(revokedAt), token)
	if err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// DeleteExpiredSessions removes sessions past their expiry.
func (s *Store) DeleteExpiredSessions(ctx context.Context, now time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	_, err := s.sqlDB.ExecContext(ctx, `DELETE FROM web_sessions WHERE expires_at < ?`, toMillis(now))
	return err
}
