// Package service implements the auth domain: passkey ceremonies, web
// sessions, magic links, and user management.
package service

import (
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/louisbranch/teamspace/internal/auth/magiclink"
	"github.com/louisbranch/teamspace/internal/auth/passkey"
	"github.com/louisbranch/teamspace/internal/auth/session"
	"github.com/louisbranch/teamspace/internal/auth/storage"
	"github.com/louisbranch/teamspace/internal/platform/id"
	"github.com/louisbranch/teamspace/internal/platform/token"
)

// AuthService is the canonical auth domain entrypoint.
//
// Transport handlers call it to perform identity actions without touching
// storage details. The WebAuthn provider and response parser are interfaces
// so ceremony flows can be exercised without real authenticators.
type AuthService struct {
	users       storage.UserStore
	credentials storage.CredentialStore
	challenges  storage.ChallengeStore
	sessions    storage.SessionStore
	magicLinks  storage.MagicLinkStore
	events      storage.SecurityEventStore

	passkeyConfig   passkey.Config
	magicLinkConfig magiclink.Config
	sessionConfig   session.Config

	webAuthn        passkeyProvider
	webAuthnInitErr error
	parser          passkeyParser

	clock          func() time.Time
	idGenerator    func() (string, error)
	tokenGenerator func() (string, error)
}

type passkeyProvider interface {
	BeginRegistration(user webauthn.User, opts ...webauthn.RegistrationOption) (*protocol.CredentialCreation, *webauthn.SessionData, error)
	CreateCredential(user webauthn.User, session webauthn.SessionData, response *protocol.ParsedCredentialCreationData) (*webauthn.Credential, error)
	BeginLogin(user webauthn.User, opts ...webauthn.LoginOption) (*protocol.CredentialAssertion, *webauthn.SessionData, error)
	BeginDiscoverableLogin(opts ...webauthn.LoginOption) (*protocol.CredentialAssertion, *webauthn.SessionData, error)
	ValidateLogin(user webauthn.User, session webauthn.SessionData, response *protocol.ParsedCredentialAssertionData) (*webauthn.Credential, error)
	ValidatePasskeyLogin(handler webauthn.DiscoverableUserHandler, session webauthn.SessionData, response *protocol.ParsedCredentialAssertionData) (webauthn.User, *webauthn.Credential, error)
}

type passkeyParser interface {
	ParseCredentialCreationResponseBytes(data []byte) (*protocol.ParsedCredentialCreationData, error)
	ParseCredentialRequestResponseBytes(data []byte) (*protocol.ParsedCredentialAssertionData, error)
}

type defaultPasskeyParser struct{}

func (defaultPasskeyParser) ParseCredentialCreationResponseBytes(data []byte) (*protocol.ParsedCredentialCreationData, error) {
	return protocol.ParseCredentialCreationResponseBytes(data)
}

func (defaultPasskeyParser) ParseCredentialRequestResponseBytes(data []byte) (*protocol.ParsedCredentialAssertionData, error) {
	return protocol.ParseCredentialRequestResponseBytes(data)
}

// NewAuthService builds a service with defaults for the auth package.
//
// MagicLinkStore and SecurityEventStore are optional capabilities discovered
// from the user store, so a minimal store still works.
func NewAuthService(users storage.UserStore, credentials storage.CredentialStore, challenges storage.ChallengeStore, sessions storage.SessionStore) *AuthService {
	config := passkey.LoadConfigFromEnv()
	magicConfig := magiclink.LoadConfigFromEnv()
	sessionConfig := session.LoadConfigFromEnv()
	webAuthn, err := webauthn.New(&webauthn.Config{
		RPDisplayName: config.RPDisplayName,
		RPID:          config.RPID,
		RPOrigins:     config.RPOrigins,
	})

	var magicLinks storage.MagicLinkStore
	var events storage.SecurityEventStore
	if users != nil {
		if typed, ok := users.(storage.MagicLinkStore); ok {
			magicLinks = typed
		}
		if typed, ok := users.(storage.SecurityEventStore); ok {
			events = typed
		}
	}

	return &AuthService{
		users:           users,
		credentials:     credentials,
		challenges:      challenges,
		sessions:        sessions,
		magicLinks:      magicLinks,
		events:          events,
		passkeyConfig:   config,
		magicLinkConfig: magicConfig,
		sessionConfig:   sessionConfig,
		webAuthn:        webAuthn,
		webAuthnInitErr: err,
		parser:          defaultPasskeyParser{},
		clock:           time.Now,
		idGenerator:     id.NewID,
		tokenGenerator:  token.New,
	}
}

func (s *AuthService) now() time.Time {
	if s.clock != nil {
		return s.clock().UTC()
	}
	return time.Now().UTC()
}

func (s *AuthService) newID() (string, error) {
	if s.idGenerator != nil {
		return s.idGenerator()
	}
	return id.NewID()
}

func (s *AuthService) newToken() (string, error) {
	if s.tokenGenerator != nil {
		return s.tokenGenerator()
	}
	return token.New()
}
