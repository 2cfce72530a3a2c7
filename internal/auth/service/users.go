package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/louisbranch/teamspace/internal/auth/storage"
	"github.com/louisbranch/teamspace/internal/auth/user"
	apperrors "github.com/louisbranch/teamspace/internal/platform/errors"
)

// CreateUser creates a user identity, rejecting duplicate emails.
func (s *AuthService) CreateUser(ctx context.Context, input user.CreateUserInput) (user.User, error) {
	if s.users == nil {
		return user.User{}, fmt.Errorf("user store is not configured")
	}

	normalized, err := user.NormalizeCreateUserInput(input)
	if err != nil {
		return user.User{}, err
	}

	if _, err := s.users.GetUserByEmail(ctx, normalized.Email); err == nil {
		return user.User{}, apperrors.WithMetadata(
			apperrors.CodeUserEmailTaken,
			"email is already registered",
			map[string]string{"email": normalized.Email},
		)
	} else if !errors.Is(err, storage.ErrNotFound) {
		return user.User{}, fmt.Errorf("check email: %w", err)
	}

	created, err := user.CreateUser(normalized, s.clock, s.idGenerator)
	if err != nil {
		return user.User{}, err
	}
	if err := s.users.PutUser(ctx, created); err != nil {
		return user.User{}, fmt.Errorf("store user: %w", err)
	}
	return created, nil
}

// GetUser resolves a user ID to an identity record.
func (s *AuthService) GetUser(ctx context.Context, userID string) (user.User, error) {
	if s.users == nil {
		return user.User{}, fmt.Errorf("user store is not configured")
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return user.User{}, apperrors.New(apperrors.CodeUserIDEmpty, "user id is required")
	}
	return s.users.GetUser(ctx, userID)
}

// GetUserByEmail resolves an email address to an identity record. This is the
// only email lookup the transport layer should use; everything past the
// boundary addresses users by ID.
func (s *AuthService) GetUserByEmail(ctx context.Context, email string) (user.User, error) {
	if s.users == nil {
		return user.User{}, fmt.Errorf("user store is not configured")
	}
	normalized, err := user.NormalizeEmail(email)
	if err != nil {
		return user.User{}, err
	}
	return s.users.GetUserByEmail(ctx, normalized)
}
