package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/louisbranch/teamspace/internal/auth/storage"
	apperrors "github.com/louisbranch/teamspace/internal/platform/errors"
)

// CreateSession issues a durable web session for a verified user.
//
// The token is a 256-bit random value; everything the server needs lives in
// the session row, so tokens carry no claims and revocation is immediate.
func (s *AuthService) CreateSession(ctx context.Context, userID string) (storage.Session, error) {
	if s.sessions == nil {
		return storage.Session{}, fmt.Errorf("session store is not configured")
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return storage.Session{}, apperrors.New(apperrors.CodeUserIDEmpty, "user id is required")
	}
	if s.users != nil {
		if _, err := s.users.GetUser(ctx, userID); err != nil {
			return storage.Session{}, err
		}
	}

	tokenValue, err := s.newToken()
	if err != nil {
		return storage.Session{}, fmt.Errorf("generate session token: %w", err)
	}
	now := s.now()
	sessionRecord := storage.Session{
		Token:     tokenValue,
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(s.sessionConfig.TTL),
	}
	if err := s.sessions.PutSession(ctx, sessionRecord); err != nil {
		return storage.Session{}, fmt.Errorf("store session: %w", err)
	}
	return sessionRecord, nil
}

// GetSession resolves a session token to its live session.
//
// Expired and revoked sessions report the same code as missing ones so a
// probing client learns nothing about token history.
func (s *AuthService) GetSession(ctx context.Context, tokenValue string) (storage.Session, error) {
	if s.sessions == nil {
		return storage.Session{}, fmt.Errorf("session store is not configured")
	}
	tokenValue = strings.TrimSpace(tokenValue)
	if tokenValue == "" {
		return storage.Session{}, apperrors.New(apperrors.CodeSessionNotFound, "session token is required")
	}

	sessionRecord, err := s.sessions.GetSession(ctx, tokenValue)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return storage.Session{}, apperrors.New(apperrors.CodeSessionNotFound, "session not found")
		}
		return storage.Session{}, fmt.Errorf("load session: %w", err)
	}
	if sessionRecord.RevokedAt != nil || sessionRecord.ExpiresAt.Before(s.now()) {
		return storage.Session{}, apperrors.New(apperrors.CodeSessionNotFound, "session not found")
	}
	return sessionRecord, nil
}

// RevokeSession invalidates a session token. Revoking a missing or already
// revoked token succeeds, so logout is idempotent.
func (s *AuthService) RevokeSession(ctx context.Context, tokenValue string) error {
	if s.sessions == nil {
		return fmt.Errorf("session store is not configured")
	}
	tokenValue = strings.TrimSpace(tokenValue)
	if tokenValue == "" {
		return nil
	}
	err := s.sessions.RevokeSession(ctx, tokenValue, s.now())
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	return err
}

// SweepExpiredSessions removes sessions past their expiry. The app layer runs
// this on a timer.
func (s *AuthService) SweepExpiredSessions(ctx context.Context) error {
	if s.sessions == nil {
		return fmt.Errorf("session store is not configured")
	}
	return s.sessions.DeleteExpiredSessions(ctx, s.now())
}
