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

// PutCredential stores a WebAuthn credential.
func (s *Store) PutCredential(ctx context.Context, credential storage.Credential) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(credential.CredentialID) == "" {
		return fmt.Errorf("credential id is required")
	}
	if strings.TrimSpace(credential.UserID) == "" {
		return fmt.Errorf("user id is required")
	}
	if strings.TrimSpace(credential.CredentialJSON) == "" {
		return fmt.Errorf("credential json is required")
	}

	lastUsed := sql.NullInt64{}
	if credential.LastUsedAt != nil {
		lastUsed = sql.NullInt64{Int64: toMillis(*credential.LastUsedAt), Valid: true}
	}

	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO passkey_credentials (credential_id, user_id, credential_json, created_at, updated_at, last_used_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(credential_id) DO UPDATE SET
    credential_json = excluded.credential_json,
    updated_at = excluded.updated_at,
    last_used_at = excluded.last_used_at
`, credential.CredentialID, credential.UserID, credential.CredentialJSON,
		toMillis(credential.CreatedAt), toMillis(credential.UpdatedAt), lastUsed)
	if err != nil {
		return fmt.Errorf("put credential: %w", err)
	}
	return nil
}

// GetCredential fetches a stored WebAuthn credential.
func (s *Store) GetCredential(ctx context.Context, credentialID string) (storage.Credential, error) {
	if err := ctx.Err(); err != nil {
		return storage.Credential{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.Credential{}, fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(credentialID) == "" {
		return storage.Credential{}, fmt.Errorf("credential id is required")
	}

	row := s.sqlDB.QueryRowContext(ctx, `
SELECT credential_id, user_id, credential_json, created_at, updated_at, last_used_at
FROM passkey_credentials WHERE credential_id = ?
`, credentialID)
	return scanCredential(row)
}

// ListCredentialsByUser returns credentials owned by a user.
func (s *Store) ListCredentialsByUser(ctx context.Context, userID string) ([]storage.Credential, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("user id is required")
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT credential_id, user_id, credential_json, created_at, updated_at, last_used_at
FROM passkey_credentials WHERE user_id = ? ORDER BY created_at
`, userID)
	if err != nil {
		return nil, fmt.Errorf("list credentials: %w", err)
	}
	defer rows.Close()

	var credentials []storage.Credential
	for rows.Next() {
		credential, err := scanCredential(rows)
		if err != nil {
			return nil, err
		}
		credentials = append(credentials, credential)
	}
	return credentials, rows.Err()
}

// DeleteCredential removes a credential.
func (s *Store) DeleteCredential(ctx context.Context, credentialID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(credentialID) == "" {
		return fmt.Errorf("credential id is required")
	}
	_, err := s.sqlDB.ExecContext(ctx, `DELETE FROM passkey_credentials WHERE credential_id = ?`, credentialID)
	return err
}

// PutChallenge stores a ceremony challenge.
func (s *Store) PutChallenge(ctx context.Context, challenge storage.Challenge) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(challenge.ID) == "" {
		return fmt.Errorf("challenge id is required")
	}
	if strings.TrimSpace(challenge.Kind) == "" {
		return fmt.Errorf("challenge kind is required")
	}
	if strings.TrimSpace(challenge.SessionJSON) == "" {
		return fmt.Errorf("session json is required")
	}

	userID := sql.NullString{}
	if strings.TrimSpace(challenge.UserID) != "" {
		userID = sql.NullString{String: challenge.UserID, Valid: true}
	}
	usedAt := sql.NullInt64{}
	if challenge.UsedAt != nil {
		usedAt = sql.NullInt64{Int64: toMillis(*challenge.UsedAt), Valid: true}
	}

	_, err := s.sqlDB.ExecContext(ctx, `
INSERT OR REPLACE INTO passkey_challenges (id, kind, user_id, session_json, expires_at, used_at)
VALUES (?, ?, ?, ?, ?, ?)
`, challenge.ID, challenge.Kind, userID, challenge.SessionJSON, toMillis(challenge.ExpiresAt), usedAt)
	if err != nil {
		return fmt.Errorf("put challenge: %w", err)
	}
	return nil
}

// GetChallenge fetches a stored ceremony challenge.
func (s *Store) GetChallenge(ctx context.Context, id string) (storage.Challenge, error) {
	if err := ctx.Err(); err != nil {
		return storage.Challenge{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.Challenge{}, fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(id) == "" {
		return storage.Challenge{}, fmt.Errorf("challenge id is required")
	}

	row := s.sqlDB.QueryRowContext(ctx, `
SELECT id, kind, user_id, session_json, expires_at, used_at
FROM passkey_challenges WHERE id = ?
`, id)

	var challenge storage.Challenge
	var userID sql.NullString
	var expiresAt int64
	var usedAt sql.NullInt64
	if err := row.Scan(&challenge.ID, &challenge.Kind, &userID, &challenge.SessionJSON, &expiresAt, &usedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.Challenge{}, storage.ErrNotFound
		}
		return storage.Challenge{}, fmt.Errorf("get challenge: %w", err)
	}
	if userID.Valid {
		challenge.UserID = userID.String
	}
	challenge.ExpiresAt = fromMillis(expiresAt)
	if usedAt.Valid {
		value := fromMillis(usedAt.Int64)
		challenge.UsedAt = &value
	}
	return challenge, nil
}

// ConsumeChallenge marks a challenge used exactly once.
//
// The conditional update is the single-use guarantee: two racing finishes
// both reach this statement, but only one matches used_at IS NULL.
func (s *Store) ConsumeChallenge(ctx context.Context, id string, usedAt time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("challenge id is required")
	}

	result, err := s.sqlDB.ExecContext(ctx, `
UPDATE passkey_challenges SET used_at = ? WHERE id = ? AND used_at IS NULL
`, toMillis(usedAt), id)
	if err != nil {
		return fmt.Errorf("consume challenge: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("consume challenge: %w", err)
	}
	if affected == 0 {
		row := s.sqlDB.QueryRowContext(ctx, `SELECT 1 FROM passkey_challenges WHERE id = ?`, id)
		var found int
		if scanErr := row.Scan(&found); scanErr != nil {
			if errors.Is(scanErr, sql.ErrNoRows) {
				return storage.ErrNotFound
			}
			return fmt.Errorf("consume challenge: %w", scanErr)
		}
		return storage.ErrChallengeUsed
	}
	return nil
}

// DeleteExpiredChallenges removes challenges past their expiry.
func (s *Store) DeleteExpiredChallenges(ctx context.Context, now time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	_, err := s.sqlDB.ExecContext(ctx, `DELETE FROM passkey_challenges WHERE expires_at < ?`, toMillis(now))
	return err
}

func scanCredential(row rowScanner) (storage.Credential, error) {
	var credential storage.Credential
	var createdAt, updatedAt int64
	var lastUsed sql.NullInt64
	if err := row.Scan(&credential.CredentialID, &credential.UserID, &credential.CredentialJSON, &createdAt, &updatedAt, &lastUsed); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.Credential{}, storage.ErrNotFound
		}
		return storage.Credential{}, fmt.Errorf("scan credential: %w", err)
	}
	credential.CreatedAt = fromMillis(createdAt)
	credential.UpdatedAt = fromMillis(updatedAt)
	if lastUsed.Valid {
		value := fromMillis(lastUsed.Int64)
		credential.LastUsedAt = &value
	}
	return credential, nil
}
