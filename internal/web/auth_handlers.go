package web

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/louisbranch/teamspace/internal/auth/session"
	"github.com/louisbranch/teamspace/internal/auth/storage"
	"github.com/louisbranch/teamspace/internal/auth/user"
	apperrors "github.com/louisbranch/teamspace/internal/platform/errors"
	"github.com/louisbranch/teamspace/internal/platform/requestctx"
)

type userResponse struct {
	ID         string     `json:"id"`
	Email      string     `json:"email"`
	Name       string     `json:"name,omitempty"`
	Verified   bool       `json:"verified"`
	CreatedAt  time.Time  `json:"created_at"`
	VerifiedAt *time.Time `json:"verified_at,omitempty"`
}

func toUserResponse(account user.User) userResponse {
	return userResponse{
		ID:         account.ID,
		Email:      account.Email,
		Name:       account.Name,
		Verified:   account.VerifiedAt != nil,
		CreatedAt:  account.CreatedAt,
		VerifiedAt: account.VerifiedAt,
	}
}

type ceremonyResponse struct {
	ChallengeID string          `json:"challenge_id"`
	Options     json.RawMessage `json:"options"`
}

type finishResponse struct {
	Verified     bool   `json:"verified"`
	UserID       string `json:"user_id,omitempty"`
	CredentialID string `json:"credential_id,omitempty"`
	Reason       string `json:"reason,omitempty"`
}

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email string `json:"email"`
		Name  string `json:"name"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	account, err := s.auth.CreateUser(r.Context(), user.CreateUserInput{Email: body.Email, Name: body.Name})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toUserResponse(account))
}

// handleBeginRegistration starts a registration ceremony. A first-time email
// gets an account created on the spot; the ceremony binds to the internal
// user ID either way.
func (s *Server) handleBeginRegistration(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email string `json:"email"`
		Name  string `json:"name"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	account, err := s.auth.GetUserByEmail(r.Context(), body.Email)
	if err != nil {
		if apperrors.GetCode(err) != apperrors.CodeNotFound {
			writeError(w, err)
			return
		}
		account, err = s.auth.CreateUser(r.Context(), user.CreateUserInput{Email: body.Email, Name: body.Name})
		if err != nil {
			writeError(w, err)
			return
		}
	}
	result, err := s.auth.BeginPasskeyRegistration(r.Context(), account.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ceremonyResponse{ChallengeID: result.ChallengeID, Options: result.OptionsJSON})
}

func (s *Server) handleFinishRegistration(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ChallengeID string          `json:"challenge_id"`
		Credential  json.RawMessage `json:"credential"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	result, err := s.auth.FinishPasskeyRegistration(r.Context(), body.ChallengeID, body.Credential)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, finishResponse{
		Verified:     result.Verified,
		UserID:       result.UserID,
		CredentialID: result.CredentialID,
		Reason:       result.Reason,
	})
}

func (s *Server) handleBeginLogin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email string `json:"email"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}

	// Empty email starts a discoverable ceremony with an empty allow-list.
	userID := ""
	if body.Email != "" {
		account, err := s.auth.GetUserByEmail(r.Context(), body.Email)
		if err != nil {
			writeError(w, err)
			return
		}
		userID = account.ID
	}
	result, err := s.auth.BeginPasskeyLogin(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ceremonyResponse{ChallengeID: result.ChallengeID, Options: result.OptionsJSON})
}

func (s *Server) handleFinishLogin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ChallengeID string          `json:"challenge_id"`
		Credential  json.RawMessage `json:"credential"`
		Email       string          `json:"email"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}

	expectedUserID := ""
	if body.Email != "" {
		account, err := s.auth.GetUserByEmail(r.Context(), body.Email)
		if err != nil {
			writeError(w, err)
			return
		}
		expectedUserID = account.ID
	}
	result, err := s.auth.FinishPasskeyLogin(r.Context(), body.ChallengeID, body.Credential, expectedUserID)
	if err != nil {
		writeError(w, err)
		return
	}
	if !result.Verified {
		writeJSON(w, http.StatusUnauthorized, finishResponse{Verified: false, Reason: result.Reason})
		return
	}

	active, err := s.auth.CreateSession(r.Context(), result.UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	s.setSessionCookie(w, active.Token, active.ExpiresAt)
	writeJSON(w, http.StatusOK, finishResponse{
		Verified:     true,
		UserID:       result.UserID,
		CredentialID: result.CredentialID,
	})
}

type passkeyResponse struct {
	CredentialID string     `json:"credential_id"`
	CreatedAt    time.Time  `json:"created_at"`
	LastUsedAt   *time.Time `json:"last_used_at,omitempty"`
}

func (s *Server) handleListPasskeys(w http.ResponseWriter, r *http.Request) {
	userID := requestctx.UserIDFromContext(r.Context())
	credentials, err := s.auth.ListPasskeys(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	payload := make([]passkeyResponse, 0, len(credentials))
	for _, credential := range credentials {
		payload = append(payload, toPasskeyResponse(credential))
	}
	writeJSON(w, http.StatusOK, payload)
}

func toPasskeyResponse(credential storage.Credential) passkeyResponse {
	return passkeyResponse{
		CredentialID: credential.CredentialID,
		CreatedAt:    credential.CreatedAt,
		LastUsedAt:   credential.LastUsedAt,
	}
}

func (s *Server) handleRemovePasskey(w http.ResponseWriter, r *http.Request) {
	userID := requestctx.UserIDFromContext(r.Context())
	credentialID := r.PathValue("credentialID")
	if err := s.auth.RemovePasskey(r.Context(), userID, credentialID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	userID := requestctx.UserIDFromContext(r.Context())
	account, err := s.auth.GetUser(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(account))
}

// handleLogout revokes the cookie session. Always succeeds: logging out
// without a session is not an error.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(session.CookieName); err == nil && cookie.Value != "" {
		if err := s.auth.RevokeSession(r.Context(), cookie.Value); err != nil {
			writeError(w, err)
			return
		}
	}
	s.clearSessionCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

type magicLinkResponse struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (s *Server) handleIssueMagicLink(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email string `json:"email"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	issued, err := s.auth.IssueMagicLink(r.Context(), body.Email)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, magicLinkResponse{URL: issued.URL, ExpiresAt: issued.ExpiresAt})
}

// handleConsumeMagicLink redeems a link, verifies the account's email, and
// signs the user in.
func (s *Server) handleConsumeMagicLink(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Token string `json:"token"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	account, err := s.auth.ConsumeMagicLink(r.Context(), body.Token)
	if err != nil {
		writeError(w, err)
		return
	}
	active, err := s.auth.CreateSession(r.Context(), account.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	s.setSessionCookie(w, active.Token, active.ExpiresAt)
	writeJSON(w, http.StatusOK, toUserResponse(account))
}
