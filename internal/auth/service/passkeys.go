package service

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/louisbranch/teamspace/internal/auth/passkey"
	"github.com/louisbranch/teamspace/internal/auth/storage"
	"github.com/louisbranch/teamspace/internal/auth/user"
	apperrors "github.com/louisbranch/teamspace/internal/platform/errors"
)

// BeginCeremonyResult carries the challenge handle and the options payload the
// browser passes to navigator.credentials.
type BeginCeremonyResult struct {
	ChallengeID string
	OptionsJSON []byte
}

// FinishCeremonyResult reports the outcome of a finish call.
//
// Verified is false when the authenticator response failed parsing or
// cryptographic checks; callers must treat that as an explicit rejection, not
// an infrastructure error.
type FinishCeremonyResult struct {
	Verified     bool
	UserID       string
	CredentialID string
	Reason       string
}

// BeginPasskeyRegistration opens a registration ceremony for an existing user.
func (s *AuthService) BeginPasskeyRegistration(ctx context.Context, userID string) (BeginCeremonyResult, error) {
	if err := s.checkCeremonyDeps(); err != nil {
		return BeginCeremonyResult{}, err
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return BeginCeremonyResult{}, apperrors.New(apperrors.CodeUserIDEmpty, "user id is required")
	}

	baseUser, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return BeginCeremonyResult{}, err
	}
	passkeyUser, err := s.loadPasskeyUser(ctx, baseUser)
	if err != nil {
		return BeginCeremonyResult{}, fmt.Errorf("load passkey user: %w", err)
	}

	options := []webauthn.RegistrationOption{
		webauthn.WithResidentKeyRequirement(protocol.ResidentKeyRequirementRequired),
	}
	if len(passkeyUser.credentials) > 0 {
		options = append(options, webauthn.WithExclusions(webauthn.Credentials(passkeyUser.credentials).CredentialDescriptors()))
	}

	creation, sessionData, err := s.webAuthn.BeginRegistration(passkeyUser, options...)
	if err != nil {
		return BeginCeremonyResult{}, fmt.Errorf("begin passkey registration: %w", err)
	}

	challengeID, err := s.storeChallenge(ctx, passkey.ChallengeKindRegistration, baseUser.ID, sessionData)
	if err != nil {
		return BeginCeremonyResult{}, err
	}
	optionsJSON, err := json.Marshal(creation)
	if err != nil {
		return BeginCeremonyResult{}, fmt.Errorf("encode registration options: %w", err)
	}
	return BeginCeremonyResult{ChallengeID: challengeID, OptionsJSON: optionsJSON}, nil
}

// FinishPasskeyRegistration validates an authenticator attestation and binds
// the new credential to the challenge's user.
//
// The challenge is consumed before validation so a response can never be
// replayed against the same challenge, even when the validation fails.
func (s *AuthService) FinishPasskeyRegistration(ctx context.Context, challengeID string, credentialResponseJSON []byte) (FinishCeremonyResult, error) {
	if err := s.checkCeremonyDeps(); err != nil {
		return FinishCeremonyResult{}, err
	}
	if len(credentialResponseJSON) == 0 {
		return FinishCeremonyResult{}, apperrors.New(apperrors.CodeChallengeNotFound, "credential response is required")
	}

	challenge, sessionData, err := s.consumeChallenge(ctx, challengeID, passkey.ChallengeKindRegistration)
	if err != nil {
		return FinishCeremonyResult{}, err
	}
	if challenge.UserID == "" {
		return FinishCeremonyResult{}, fmt.Errorf("registration challenge missing user id")
	}

	baseUser, err := s.users.GetUser(ctx, challenge.UserID)
	if err != nil {
		return FinishCeremonyResult{}, err
	}
	passkeyUser, err := s.loadPasskeyUser(ctx, baseUser)
	if err != nil {
		return FinishCeremonyResult{}, fmt.Errorf("load passkey user: %w", err)
	}

	parsed, err := s.parser.ParseCredentialCreationResponseBytes(credentialResponseJSON)
	if err != nil {
		return FinishCeremonyResult{Verified: false, Reason: "malformed credential response"}, nil
	}
	credential, err := s.webAuthn.CreateCredential(passkeyUser, sessionData, parsed)
	if err != nil {
		return FinishCeremonyResult{Verified: false, Reason: "attestation verification failed"}, nil
	}

	if err := s.storeCredential(ctx, baseUser.ID, *credential, false); err != nil {
		return FinishCeremonyResult{}, fmt.Errorf("store passkey credential: %w", err)
	}
	return FinishCeremonyResult{
		Verified:     true,
		UserID:       baseUser.ID,
		CredentialID: encodeCredentialID(credential.ID),
	}, nil
}

// BeginPasskeyLogin opens a login ceremony.
//
// An empty userID starts a discoverable (usernameless) ceremony; the
// authenticator picks the credential and supplies the user handle.
func (s *AuthService) BeginPasskeyLogin(ctx context.Context, userID string) (BeginCeremonyResult, error) {
	if err := s.checkCeremonyDeps(); err != nil {
		return BeginCeremonyResult{}, err
	}
	userID = strings.TrimSpace(userID)

	var (
		assertion   *protocol.CredentialAssertion
		sessionData *webauthn.SessionData
	)
	if userID == "" {
		var err error
		assertion, sessionData, err = s.webAuthn.BeginDiscoverableLogin()
		if err != nil {
			return BeginCeremonyResult{}, fmt.Errorf("begin discoverable login: %w", err)
		}
	} else {
		baseUser, err := s.users.GetUser(ctx, userID)
		if err != nil {
			return BeginCeremonyResult{}, err
		}
		passkeyUser, err := s.loadPasskeyUser(ctx, baseUser)
		if err != nil {
			return BeginCeremonyResult{}, fmt.Errorf("load passkey user: %w", err)
		}
		assertion, sessionData, err = s.webAuthn.BeginLogin(passkeyUser)
		if err != nil {
			return BeginCeremonyResult{}, fmt.Errorf("begin passkey login: %w", err)
		}
	}

	challengeID, err := s.storeChallenge(ctx, passkey.ChallengeKindLogin, userID, sessionData)
	if err != nil {
		return BeginCeremonyResult{}, err
	}
	optionsJSON, err := json.Marshal(assertion)
	if err != nil {
		return BeginCeremonyResult{}, fmt.Errorf("encode login options: %w", err)
	}
	return BeginCeremonyResult{ChallengeID: challengeID, OptionsJSON: optionsJSON}, nil
}

// FinishPasskeyLogin validates an authenticator assertion.
//
// expectedUserID, when set, pins the ceremony to one account: a valid
// assertion from a different account's credential is rejected with a
// credential mismatch instead of logging the caller into the other account.
func (s *AuthService) FinishPasskeyLogin(ctx context.Context, challengeID string, credentialResponseJSON []byte, expectedUserID string) (FinishCeremonyResult, error) {
	if err := s.checkCeremonyDeps(); err != nil {
		return FinishCeremonyResult{}, err
	}
	if len(credentialResponseJSON) == 0 {
		return FinishCeremonyResult{}, apperrors.New(apperrors.CodeChallengeNotFound, "credential response is required")
	}
	expectedUserID = strings.TrimSpace(expectedUserID)

	challenge, sessionData, err := s.consumeChallenge(ctx, challengeID, passkey.ChallengeKindLogin)
	if err != nil {
		return FinishCeremonyResult{}, err
	}

	parsed, err := s.parser.ParseCredentialRequestResponseBytes(credentialResponseJSON)
	if err != nil {
		return FinishCeremonyResult{Verified: false, Reason: "malformed credential response"}, nil
	}

	var (
		validatedUserID     string
		validatedCredential *webauthn.Credential
	)
	if challenge.UserID != "" {
		baseUser, err := s.users.GetUser(ctx, challenge.UserID)
		if err != nil {
			return FinishCeremonyResult{}, err
		}
		passkeyUser, err := s.loadPasskeyUser(ctx, baseUser)
		if err != nil {
			return FinishCeremonyResult{}, fmt.Errorf("load passkey user: %w", err)
		}
		credential, err := s.webAuthn.ValidateLogin(passkeyUser, sessionData, parsed)
		if err != nil {
			return FinishCeremonyResult{Verified: false, Reason: "assertion verification failed"}, nil
		}
		validatedUserID = baseUser.ID
		validatedCredential = credential
	} else {
		validatedUser, credential, err := s.webAuthn.ValidatePasskeyLogin(s.discoverableUserHandler(ctx), sessionData, parsed)
		if err != nil {
			return FinishCeremonyResult{Verified: false, Reason: "assertion verification failed"}, nil
		}
		typed, ok := validatedUser.(*passkeyUser)
		if !ok {
			return FinishCeremonyResult{}, fmt.Errorf("passkey user type mismatch")
		}
		validatedUserID = typed.user.ID
		validatedCredential = credential
	}

	if expectedUserID != "" && validatedUserID != expectedUserID {
		return FinishCeremonyResult{}, apperrors.WithMetadata(
			apperrors.CodeCredentialMismatch,
			"credential belongs to a different user",
			map[string]string{"credential_id": encodeCredentialID(validatedCredential.ID)},
		)
	}

	if validatedCredential.Authenticator.CloneWarning {
		s.recordSecurityEvent(ctx, "replay_detected", validatedUserID, encodeCredentialID(validatedCredential.ID),
			"signature counter did not increase")
		return FinishCeremonyResult{}, apperrors.New(apperrors.CodeReplayDetected, "credential replay detected")
	}

	if err := s.storeCredential(ctx, validatedUserID, *validatedCredential, true); err != nil {
		return FinishCeremonyResult{}, fmt.Errorf("store passkey credential: %w", err)
	}
	return FinishCeremonyResult{
		Verified:     true,
		UserID:       validatedUserID,
		CredentialID: encodeCredentialID(validatedCredential.ID),
	}, nil
}

// ListPasskeys returns the credentials registered for a user.
func (s *AuthService) ListPasskeys(ctx context.Context, userID string) ([]storage.Credential, error) {
	if s.credentials == nil {
		return nil, fmt.Errorf("credential store is not configured")
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, apperrors.New(apperrors.CodeUserIDEmpty, "user id is required")
	}
	return s.credentials.ListCredentialsByUser(ctx, userID)
}

// RemovePasskey deletes one of a user's credentials. Removing another user's
// credential is reported as not found rather than forbidden.
func (s *AuthService) RemovePasskey(ctx context.Context, userID, credentialID string) error {
	if s.credentials == nil {
		return fmt.Errorf("credential store is not configured")
	}
	stored, err := s.credentials.GetCredential(ctx, credentialID)
	if err != nil {
		return err
	}
	if stored.UserID != strings.TrimSpace(userID) {
		return storage.ErrNotFound
	}
	return s.credentials.DeleteCredential(ctx, credentialID)
}

// SweepExpiredCeremonies removes challenges past their expiry. The app layer
// runs this on a timer.
func (s *AuthService) SweepExpiredCeremonies(ctx context.Context) error {
	if s.challenges == nil {
		return fmt.Errorf("challenge store is not configured")
	}
	return s.challenges.DeleteExpiredChallenges(ctx, s.now())
}

type passkeyUser struct {
	user        user.User
	credentials []webauthn.Credential
}

func (u *passkeyUser) WebAuthnID() []byte {
	return []byte(u.user.ID)
}

func (u *passkeyUser) WebAuthnName() string {
	return u.user.Email
}

func (u *passkeyUser) WebAuthnDisplayName() string {
	if u.user.Name != "" {
		return u.user.Name
	}
	return u.user.Email
}

func (u *passkeyUser) WebAuthnIcon() string {
	return ""
}

func (u *passkeyUser) WebAuthnCredentials() []webauthn.Credential {
	return u.credentials
}

func (s *AuthService) checkCeremonyDeps() error {
	if s.users == nil {
		return fmt.Errorf("user store is not configured")
	}
	if s.credentials == nil {
		return fmt.Errorf("credential store is not configured")
	}
	if s.challenges == nil {
		return fmt.Errorf("challenge store is not configured")
	}
	if s.webAuthnInitErr != nil || s.webAuthn == nil {
		return fmt.Errorf("webauthn configuration is not available")
	}
	if s.parser == nil {
		return fmt.Errorf("credential parser is not configured")
	}
	return nil
}

func (s *AuthService) loadPasskeyUser(ctx context.Context, base user.User) (*passkeyUser, error) {
	records, err := s.credentials.ListCredentialsByUser(ctx, base.ID)
	if err != nil {
		return nil, err
	}
	parsed, err := decodeStoredCredentials(records)
	if err != nil {
		return nil, err
	}
	return &passkeyUser{user: base, credentials: parsed}, nil
}

func decodeStoredCredentials(records []storage.Credential) ([]webauthn.Credential, error) {
	if len(records) == 0 {
		return nil, nil
	}
	credentials := make([]webauthn.Credential, 0, len(records))
	for _, record := range records {
		var credential webauthn.Credential
		if err := json.Unmarshal([]byte(record.CredentialJSON), &credential); err != nil {
			return nil, fmt.Errorf("decode credential %s: %w", record.CredentialID, err)
		}
		credentials = append(credentials, credential)
	}
	return credentials, nil
}

func (s *AuthService) storeChallenge(ctx context.Context, kind passkey.ChallengeKind, userID string, sessionData *webauthn.SessionData) (string, error) {
	if sessionData == nil {
		return "", fmt.Errorf("session data is required")
	}
	challengeID, err := s.newID()
	if err != nil {
		return "", fmt.Errorf("create challenge id: %w", err)
	}
	payload, err := json.Marshal(sessionData)
	if err != nil {
		return "", fmt.Errorf("encode ceremony session: %w", err)
	}
	err = s.challenges.PutChallenge(ctx, storage.Challenge{
		ID:          challengeID,
		Kind:        string(kind),
		UserID:      userID,
		SessionJSON: string(payload),
		ExpiresAt:   s.now().Add(s.passkeyConfig.ChallengeTTL),
	})
	if err != nil {
		return "", fmt.Errorf("store challenge: %w", err)
	}
	return challengeID, nil
}

// consumeChallenge loads and spends a challenge in one logical step: kind and
// expiry checks happen on the loaded record, then the single-use mark goes
// through the store's conditional update so racing finishes cannot both win.
func (s *AuthService) consumeChallenge(ctx context.Context, challengeID string, expectedKind passkey.ChallengeKind) (storage.Challenge, webauthn.SessionData, error) {
	challengeID = strings.TrimSpace(challengeID)
	if challengeID == "" {
		return storage.Challenge{}, webauthn.SessionData{}, apperrors.New(apperrors.CodeChallengeNotFound, "challenge id is required")
	}

	challenge, err := s.challenges.GetChallenge(ctx, challengeID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return storage.Challenge{}, webauthn.SessionData{}, apperrors.New(apperrors.CodeChallengeNotFound, "challenge not found")
		}
		return storage.Challenge{}, webauthn.SessionData{}, fmt.Errorf("load challenge: %w", err)
	}
	if challenge.Kind != string(expectedKind) {
		return storage.Challenge{}, webauthn.SessionData{}, apperrors.New(apperrors.CodeChallengeKindMismatch, "challenge kind mismatch")
	}
	now := s.now()
	if challenge.ExpiresAt.Before(now) {
		return storage.Challenge{}, webauthn.SessionData{}, apperrors.New(apperrors.CodeChallengeExpired, "challenge expired")
	}

	if err := s.challenges.ConsumeChallenge(ctx, challengeID, now); err != nil {
		switch {
		case errors.Is(err, storage.ErrChallengeUsed):
			return storage.Challenge{}, webauthn.SessionData{}, apperrors.New(apperrors.CodeChallengeUsed, "challenge already used")
		case errors.Is(err, storage.ErrNotFound):
			return storage.Challenge{}, webauthn.SessionData{}, apperrors.New(apperrors.CodeChallengeNotFound, "challenge not found")
		default:
			return storage.Challenge{}, webauthn.SessionData{}, fmt.Errorf("consume challenge: %w", err)
		}
	}

	var sessionData webauthn.SessionData
	if err := json.Unmarshal([]byte(challenge.SessionJSON), &sessionData); err != nil {
		return storage.Challenge{}, webauthn.SessionData{}, fmt.Errorf("decode ceremony session: %w", err)
	}
	return challenge, sessionData, nil
}

func (s *AuthService) storeCredential(ctx context.Context, userID string, credential webauthn.Credential, used bool) error {
	credentialID := encodeCredentialID(credential.ID)
	now := s.now()
	stored, err := s.credentials.GetCredential(ctx, credentialID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return err
	}
	if errors.Is(err, storage.ErrNotFound) && used {
		return apperrors.New(apperrors.CodeCredentialNotFound, "credential not found")
	}

	createdAt := now
	if err == nil {
		createdAt = stored.CreatedAt
	}
	credentialJSON, err := json.Marshal(credential)
	if err != nil {
		return err
	}
	var lastUsed *time.Time
	if used {
		value := now
		lastUsed = &value
	}
	return s.credentials.PutCredential(ctx, storage.Credential{
		CredentialID:   credentialID,
		UserID:         userID,
		CredentialJSON: string(credentialJSON),
		CreatedAt:      createdAt,
		UpdatedAt:      now,
		LastUsedAt:     lastUsed,
	})
}

func (s *AuthService) discoverableUserHandler(ctx context.Context) webauthn.DiscoverableUserHandler {
	return func(_, userHandle []byte) (webauthn.User, error) {
		userID := string(userHandle)
		if strings.TrimSpace(userID) == "" {
			return nil, fmt.Errorf("user handle is required")
		}
		baseUser, err := s.users.GetUser(ctx, userID)
		if err != nil {
			return nil, err
		}
		return s.loadPasskeyUser(ctx, baseUser)
	}
}

func (s *AuthService) recordSecurityEvent(ctx context.Context, kind, userID, credentialID, detail string) {
	if s.events == nil {
		return
	}
	eventID, err := s.newID()
	if err != nil {
		return
	}
	_ = s.events.AppendSecurityEvent(ctx, storage.SecurityEvent{
		ID:           eventID,
		Kind:         kind,
		UserID:       userID,
		CredentialID: credentialID,
		Detail:       detail,
		CreatedAt:    s.now(),
	})
}

func encodeCredentialID(raw []byte) string {
	return base64.RawURLEncoding.EncodeToString(raw)
}
