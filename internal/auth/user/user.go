// Package user provides auth user management.
package user

import (
	"fmt"
	"net/mail"
	"strings"
	"time"

	apperrors "github.com/louisbranch/teamspace/internal/platform/errors"
	"github.com/louisbranch/teamspace/internal/platform/id"
)

var (
	// ErrEmptyEmail indicates a missing email address.
	ErrEmptyEmail = apperrors.New(apperrors.CodeUserEmailEmpty, "email is required")
	// ErrInvalidEmail indicates an email that does not parse as an address.
	ErrInvalidEmail = apperrors.New(apperrors.CodeUserEmailInvalid, "email is invalid")
)

// User represents an authenticated identity record.
//
// Email is stored lowercase and is the only lookup key the transport layer
// may use; everything past the boundary addresses users by ID.
type User struct {
	ID         string
	Email      string
	Name       string
	VerifiedAt *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// CreateUserInput describes the metadata needed to create a user.
type CreateUserInput struct {
	Email string
	Name  string
}

// NormalizeEmail lowercases and validates an email address.
func NormalizeEmail(value string) (string, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "", ErrEmptyEmail
	}
	parsed, err := mail.ParseAddress(trimmed)
	if err != nil {
		return "", ErrInvalidEmail
	}
	return strings.ToLower(parsed.Address), nil
}

// CreateUser creates a durable user identity from validated input.
//
// This is the canonical point where an untrusted email becomes a stable
// identity used by auth, tenant, and admin paths.
func CreateUser(input CreateUserInput, now func() time.Time, idGenerator func() (string, error)) (User, error) {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}

	normalized, err := NormalizeCreateUserInput(input)
	if err != nil {
		return User{}, err
	}

	userID, err := idGenerator()
	if err != nil {
		return User{}, fmt.Errorf("generate user id: %w", err)
	}

	createdAt := now().UTC()
	return User{
		ID:        userID,
		Email:     normalized.Email,
		Name:      normalized.Name,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}, nil
}

// NormalizeCreateUserInput trims and normalizes input before validation.
func NormalizeCreateUserInput(input CreateUserInput) (CreateUserInput, error) {
	email, err := NormalizeEmail(input.Email)
	if err != nil {
		return CreateUserInput{}, err
	}
	input.Email = email
	input.Name = strings.TrimSpace(input.Name)
	return input, nil
}
