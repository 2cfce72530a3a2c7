package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/louisbranch/teamspace/internal/auth/storage"
	"github.com/louisbranch/teamspace/internal/auth/user"
	apperrors "github.com/louisbranch/teamspace/internal/platform/errors"
)

// IssuedMagicLink is a pending email sign-in link.
type IssuedMagicLink struct {
	Token     string
	URL       string
	ExpiresAt time.Time
}

// IssueMagicLink creates a single-use sign-in link for an existing account.
//
// Delivery is the caller's problem; this only mints and records the token.
func (s *AuthService) IssueMagicLink(ctx context.Context, email string) (IssuedMagicLink, error) {
	if s.users == nil {
		return IssuedMagicLink{}, fmt.Errorf("user store is not configured")
	}
	if s.magicLinks == nil {
		return IssuedMagicLink{}, fmt.Errorf("magic link store is not configured")
	}

	normalized, err := user.NormalizeEmail(email)
	if err != nil {
		return IssuedMagicLink{}, err
	}
	account, err := s.users.GetUserByEmail(ctx, normalized)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return IssuedMagicLink{}, apperrors.New(apperrors.CodeMagicLinkNotFound, "no account for email")
		}
		return IssuedMagicLink{}, fmt.Errorf("lookup user: %w", err)
	}

	tokenValue, err := s.newToken()
	if err != nil {
		return IssuedMagicLink{}, fmt.Errorf("generate magic link token: %w", err)
	}
	now := s.now()
	expiresAt := now.Add(s.magicLinkConfig.TTL)
	err = s.magicLinks.PutMagicLink(ctx, storage.MagicLink{
		Token:     tokenValue,
		UserID:    account.ID,
		Email:     normalized,
		CreatedAt: now,
		ExpiresAt: expiresAt,
	})
	if err != nil {
		return IssuedMagicLink{}, fmt.Errorf("store magic link: %w", err)
	}

	return IssuedMagicLink{
		Token:     tokenValue,
		URL:       fmt.Sprintf("%s?token=%s", strings.TrimRight(s.magicLinkConfig.BaseURL, "?"), tokenValue),
		ExpiresAt: expiresAt,
	}, nil
}

// ConsumeMagicLink spends a magic link token and returns the account it
// belongs to. Consuming also marks the account's email verified, since the
// link proves mailbox control.
func (s *AuthService) ConsumeMagicLink(ctx context.Context, tokenValue string) (user.User, error) {
	if s.users == nil {
		return user.User{}, fmt.Errorf("user store is not configured")
	}
	if s.magicLinks == nil {
		return user.User{}, fmt.Errorf("magic link store is not configured")
	}
	tokenValue = strings.TrimSpace(tokenValue)
	if tokenValue == "" {
		return user.User{}, apperrors.New(apperrors.CodeMagicLinkNotFound, "magic link token is required")
	}

	link, err := s.magicLinks.GetMagicLink(ctx, tokenValue)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return user.User{}, apperrors.New(apperrors.CodeMagicLinkNotFound, "magic link not found")
		}
		return user.User{}, fmt.Errorf("load magic link: %w", err)
	}
	now := s.now()
	if link.UsedAt != nil {
		return user.User{}, apperrors.New(apperrors.CodeMagicLinkUsed, "magic link already used")
	}
	if link.ExpiresAt.Before(now) {
		return user.User{}, apperrors.New(apperrors.CodeMagicLinkExpired, "magic link expired")
	}

	// The conditional update is the single-use guarantee under racing consumes.
	if err := s.magicLinks.MarkMagicLinkUsed(ctx, tokenValue, now); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return user.User{}, apperrors.New(apperrors.CodeMagicLinkUsed, "magic link already used")
		}
		return user.User{}, fmt.Errorf("consume magic link: %w", err)
	}

	account, err := s.users.GetUser(ctx, link.UserID)
	if err != nil {
		return user.User{}, fmt.Errorf("load user: %w", err)
	}
	if account.VerifiedAt == nil {
		if err := s.users.MarkUserVerified(ctx, account.ID, now); err != nil && !errors.Is(err, storage.ErrNotFound) {
			return user.User{}, fmt.Errorf("mark user verified: %w", err)
		}
		verifiedAt := now
		account.VerifiedAt = &verifiedAt
	}
	return account, nil
}
