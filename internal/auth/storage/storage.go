// Package storage defines persistence contracts for auth data.
package storage

import (
	"context"
	"time"

	"github.com/louisbranch/teamspace/internal/auth/user"
	"github.com/louisbranch/teamspace/internal/platform/errors"
)

// ErrNotFound indicates a requested record is missing.
var ErrNotFound = errors.New(errors.CodeNotFound, "record not found")

// ErrChallengeUsed indicates a challenge was already consumed.
var ErrChallengeUsed = errors.New(errors.CodeChallengeUsed, "challenge already used")

// UserStore persists auth user records.
type UserStore interface {
	PutUser(ctx context.Context, u user.User) error
	GetUser(ctx context.Context, userID string) (user.User, error)
	GetUserByEmail(ctx context.Context, email string) (user.User, error)
	MarkUserVerified(ctx context.Context, userID string, verifiedAt time.Time) error
}

// Credential stores a WebAuthn credential bound to one user.
//
// CredentialID is the base64url encoding of the authenticator-supplied
// identifier and is globally unique. CredentialJSON carries the library's
// serialized credential (public key, sign count, transports, flags).
type Credential struct {
	CredentialID   string
	UserID         string
	CredentialJSON string
	CreatedAt      time.Time
	UpdatedAt      time.Time
	LastUsedAt     *time.Time
}

// Challenge stores a single-use WebAuthn ceremony challenge.
//
// UserID is empty for discoverable login challenges. SessionJSON holds the
// library session data, including the random challenge value the client
// must echo back.
type Challenge struct {
	ID          string
	Kind        string
	UserID      string
	SessionJSON string
	ExpiresAt   time.Time
	UsedAt      *time.Time
}

// Session is a durable authenticated web session.
type Session struct {
	Token     string
	UserID    string
	CreatedAt time.Time
	ExpiresAt time.Time
	RevokedAt *time.Time
}

// MagicLink represents a single-use magic link token.
type MagicLink struct {
	Token     string
	UserID    string
	Email     string
	CreatedAt time.Time
	ExpiresAt time.Time
	UsedAt    *time.Time
}

// SecurityEvent records a security-relevant occurrence for audit review.
type SecurityEvent struct {
	ID           string
	Kind         string
	UserID       string
	CredentialID string
	Detail       string
	CreatedAt    time.Time
}

// CredentialStore persists WebAuthn credentials.
type CredentialStore interface {
	PutCredential(ctx context.Context, credential Credential) error
	GetCredential(ctx context.Context, credentialID string) (Credential, error)
	ListCredentialsByUser(ctx context.Context, userID string) ([]Credential, error)
	DeleteCredential(ctx context.Context, credentialID string) error
}

// ChallengeStore persists single-use ceremony challenges.
//
// ConsumeChallenge marks a challenge used exactly once; a second consume for
// the same id returns ErrChallengeUsed even when two callers race.
type ChallengeStore interface {
	PutChallenge(ctx context.Context, challenge Challenge) error
	GetChallenge(ctx context.Context, id string) (Challenge, error)
	ConsumeChallenge(ctx context.Context, id string, usedAt time.Time) error
	DeleteExpiredChallenges(ctx context.Context, now time.Time) error
}

// SessionStore persists authenticated web sessions.
type SessionStore interface {
	PutSession(ctx context.Context, session Session) error
	GetSession(ctx context.Context, token string) (Session, error)
	RevokeSession(ctx context.Context, token string, revokedAt time.Time) error
	DeleteExpiredSessions(ctx context.Context, now time.Time) error
}

// MagicLinkStore persists magic link tokens.
type MagicLinkStore interface {
	PutMagicLink(ctx context.Context, link MagicLink) error
	GetMagicLink(ctx context.Context, token string) (MagicLink, error)
	MarkMagicLinkUsed(ctx context.Context, token string, usedAt time.Time) error
}

// SecurityEventStore appends security events.
type SecurityEventStore interface {
	AppendSecurityEvent(ctx context.Context, event SecurityEvent) error
}
