package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/louisbranch/teamspace/internal/auth/storage"
	"github.com/louisbranch/teamspace/internal/auth/user"
	apperrors "github.com/louisbranch/teamspace/internal/platform/errors"
)

// fakeUserStore also carries magic links and security events so the service
// discovers those capabilities the same way it does from the sqlite store.
type fakeUserStore struct {
	users      map[string]user.User
	magicLinks map[string]storage.MagicLink
	events     []storage.SecurityEvent
	getErr     error
	putErr     error
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{
		users:      make(map[string]user.User),
		magicLinks: make(map[string]storage.MagicLink),
	}
}

func (s *fakeUserStore) PutUser(_ context.Context, u user.User) error {
	if s.putErr != nil {
		return s.putErr
	}
	s.users[u.ID] = u
	return nil
}

func (s *fakeUserStore) GetUser(_ context.Context, userID string) (user.User, error) {
	if s.getErr != nil {
		return user.User{}, s.getErr
	}
	found, ok := s.users[userID]
	if !ok {
		return user.User{}, storage.ErrNotFound
	}
	return found, nil
}

func (s *fakeUserStore) GetUserByEmail(_ context.Context, email string) (user.User, error) {
	if s.getErr != nil {
		return user.User{}, s.getErr
	}
	for _, found := range s.users {
		if found.Email == email {
			return found, nil
		}
	}
	return user.User{}, storage.ErrNotFound
}

func (s *fakeUserStore) MarkUserVerified(_ context.Context, userID string, verifiedAt time.Time) error {
	found, ok := s.users[userID]
	if !ok {
		return storage.ErrNotFound
	}
	found.VerifiedAt = &verifiedAt
	s.users[userID] = found
	return nil
}

func (s *fakeUserStore) PutMagicLink(_ context.Context, link storage.MagicLink) error {
	s.magicLinks[link.Token] = link
	return nil
}

func (s *fakeUserStore) GetMagicLink(_ context.Context, token string) (storage.MagicLink, error) {
	link, ok := s.magicLinks[token]
	if !ok {
		return storage.MagicLink{}, storage.ErrNotFound
	}
	return link, nil
}

func (s *fakeUserStore) MarkMagicLinkUsed(_ context.Context, token string, usedAt time.Time) error {
	link, ok := s.magicLinks[token]
	if !ok || link.UsedAt != nil {
		return storage.ErrNotFound
	}
	link.UsedAt = &usedAt
	s.magicLinks[token] = link
	return nil
}

func (s *fakeUserStore) AppendSecurityEvent(_ context.Context, event storage.SecurityEvent) error {
	s.events = append(s.events, event)
	return nil
}

type fakeCredentialStore struct {
	credentials map[string]storage.Credential
	putErr      error
	listErr     error
}

func newFakeCredentialStore() *fakeCredentialStore {
	return &fakeCredentialStore{credentials: make(map[string]storage.Credential)}
}

func (s *fakeCredentialStore) PutCredential(_ context.Context, credential storage.Credential) error {
	if s.putErr != nil {
		return s.putErr
	}
	s.credentials[credential.CredentialID] = credential
	return nil
}

func (s *fakeCredentialStore) GetCredential(_ context.Context, credentialID string) (storage.Credential, error) {
	credential, ok := s.credentials[credentialID]
	if !ok {
		return storage.Credential{}, storage.ErrNotFound
	}
	return credential, nil
}

func (s *fakeCredentialStore) ListCredentialsByUser(_ context.Context, userID string) ([]storage.Credential, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	credentials := make([]storage.Credential, 0)
	for _, credential := range s.credentials {
		if credential.UserID == userID {
			credentials = append(credentials, credential)
		}
	}
	return credentials, nil
}

func (s *fakeCredentialStore) DeleteCredential(_ context.Context, credentialID string) error {
	delete(s.credentials, credentialID)
	return nil
}

type fakeChallengeStore struct {
	challenges map[string]storage.Challenge
	putErr     error
}

func newFakeChallengeStore() *fakeChallengeStore {
	return &fakeChallengeStore{challenges: make(map[string]storage.Challenge)}
}

func (s *fakeChallengeStore) PutChallenge(_ context.Context, challenge storage.Challenge) error {
	if s.putErr != nil {
		return s.putErr
	}
	s.challenges[challenge.ID] = challenge
	return nil
}

func (s *fakeChallengeStore) GetChallenge(_ context.Context, id string) (storage.Challenge, error) {
	challenge, ok := s.challenges[id]
	if !ok {
		return storage.Challenge{}, storage.ErrNotFound
	}
	return challenge, nil
}

func (s *fakeChallengeStore) ConsumeChallenge(_ context.Context, id string, usedAt time.Time) error {
	challenge, ok := s.challenges[id]
	if !ok {
		return storage.ErrNotFound
	}
	if challenge.UsedAt != nil {
		return storage.ErrChallengeUsed
	}
	challenge.UsedAt = &usedAt
	s.challenges[id] = challenge
	return nil
}

func (s *fakeChallengeStore) DeleteExpiredChallenges(_ context.Context, now time.Time) error {
	for id, challenge := range s.challenges {
		if challenge.ExpiresAt.Before(now) {
			delete(s.challenges, id)
		}
	}
	return nil
}

type fakeSessionStore struct {
	sessions map[string]storage.Session
	putErr   error
}

func newFakeSessionStore() *fakeSessionStore {
	return &fakeSessionStore{sessions: make(map[string]storage.Session)}
}

func (s *fakeSessionStore) PutSession(_ context.Context, session storage.Session) error {
	if s.putErr != nil {
		return s.putErr
	}
	s.sessions[session.Token] = session
	return nil
}

func (s *fakeSessionStore) GetSession(_ context.Context, token string) (storage.Session, error) {
	session, ok := s.sessions[token]
	if !ok {
		return storage.Session{}, storage.ErrNotFound
	}
	return session, nil
}

func (s *fakeSessionStore) RevokeSession(_ context.Context, token string, revokedAt time.Time) error {
	session, ok := s.sessions[token]
	if !ok || session.RevokedAt != nil {
		return storage.ErrNotFound
	}
	session.RevokedAt = &revokedAt
	s.sessions[token] = session
	return nil
}

func (s *fakeSessionStore) DeleteExpiredSessions(_ context.Context, now time.Time) error {
	for token, session := range s.sessions {
		if session.ExpiresAt.Before(now) {
			delete(s.sessions, token)
		}
	}
	return nil
}

func newTestService(users *fakeUserStore, credentials *fakeCredentialStore, challenges *fakeChallengeStore, sessions *fakeSessionStore) *AuthService {
	svc := NewAuthService(users, credentials, challenges, sessions)
	fixed := time.Date(2026, 2, 12, 12, 0, 0, 0, time.UTC)
	svc.clock = func() time.Time { return fixed }
	next := 0
	svc.idGenerator = func() (string, error) {
		next++
		return fmt.Sprintf("id-%d", next), nil
	}
	svc.tokenGenerator = func() (string, error) { return "token-1", nil }
	return svc
}

func assertErrorCode(t *testing.T, err error, want apperrors.Code) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error with code %s", want)
	}
	if got := apperrors.GetCode(err); got != want {
		t.Fatalf("error code = %s, want %s (err: %v)", got, want, err)
	}
}
