// Package web exposes the JSON HTTP surface: passkey ceremonies, sessions,
// magic links, tenants, and memberships.
package web

import (
	"context"
	"net/http"
	"time"

	"github.com/caarlos0/env/v11"
	authservice "github.com/louisbranch/teamspace/internal/auth/service"
	"github.com/louisbranch/teamspace/internal/auth/storage"
	"github.com/louisbranch/teamspace/internal/auth/user"
	"github.com/louisbranch/teamspace/internal/tenant/domain"
	tenantservice "github.com/louisbranch/teamspace/internal/tenant/service"
)

// AuthAPI is the slice of the auth service the web layer calls.
type AuthAPI interface {
	CreateUser(ctx context.Context, input user.CreateUserInput) (user.User, error)
	GetUser(ctx context.Context, userID string) (user.User, error)
	GetUserByEmail(ctx context.Context, email string) (user.User, error)

	BeginPasskeyRegistration(ctx context.Context, userID string) (authservice.BeginCeremonyResult, error)
	FinishPasskeyRegistration(ctx context.Context, challengeID string, credentialResponseJSON []byte) (authservice.FinishCeremonyResult, error)
	BeginPasskeyLogin(ctx context.Context, userID string) (authservice.BeginCeremonyResult, error)
	FinishPasskeyLogin(ctx context.Context, challengeID string, credentialResponseJSON []byte, expectedUserID string) (authservice.FinishCeremonyResult, error)
	ListPasskeys(ctx context.Context, userID string) ([]storage.Credential, error)
	RemovePasskey(ctx context.Context, userID, credentialID string) error

	CreateSession(ctx context.Context, userID string) (storage.Session, error)
	GetSession(ctx context.Context, tokenValue string) (storage.Session, error)
	RevokeSession(ctx context.Context, tokenValue string) error

	IssueMagicLink(ctx context.Context, email string) (authservice.IssuedMagicLink, error)
	ConsumeMagicLink(ctx context.Context, tokenValue string) (user.User, error)
}

// TenantAPI is the slice of the tenant service the web layer calls.
type TenantAPI interface {
	CreateTenant(ctx context.Context, creatorUserID string, input domain.CreateTenantInput) (domain.Tenant, error)
	GetTenant(ctx context.Context, requesterUserID, tenantID string) (domain.Tenant, error)
	GetTenantBySlug(ctx context.Context, slug string) (domain.Tenant, error)
	DeleteTenant(ctx context.Context, requesterUserID, tenantID string) error
	SuspendTenant(ctx context.Context, requesterUserID, tenantID string) error
	ResumeTenant(ctx context.Context, requesterUserID, tenantID string) error
	ListTenantsForUser(ctx context.Context, userID string) ([]domain.Membership, error)

	ListMembers(ctx context.Context, requesterUserID, tenantID string) ([]domain.Membership, error)
	InviteMember(ctx context.Context, requesterUserID, tenantID, email string, role domain.Role) (tenantservice.Invitation, error)
	AcceptInvite(ctx context.Context, userID, grant string) (domain.Membership, error)
	UpdateMemberRole(ctx context.Context, requesterUserID, tenantID, targetUserID string, role domain.Role) (domain.Membership, error)
	RemoveMember(ctx context.Context, requesterUserID, tenantID, targetUserID string) error
	TransferOwnership(ctx context.Context, requesterUserID, tenantID, newOwnerUserID string) error
}

// Config controls web transport policy.
type Config struct {
	SecureCookies bool `env:"TEAMSPACE_SECURE_COOKIES" envDefault:"true"`
}

// LoadConfigFromEnv returns web configuration from the environment.
func LoadConfigFromEnv() Config {
	cfg := Config{SecureCookies: true}
	_ = env.Parse(&cfg)
	return cfg
}

// Server hosts the JSON API.
type Server struct {
	auth    AuthAPI
	tenants TenantAPI
	config  Config
	clock   func() time.Time
}

// NewServer builds a web server bound to the auth and tenant services.
func NewServer(auth AuthAPI, tenants TenantAPI, config Config) *Server {
	return &Server{
		auth:    auth,
		tenants: tenants,
		config:  config,
		clock:   time.Now,
	}
}

// RegisterRoutes registers the JSON endpoints on the provided mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	if mux == nil {
		return
	}

	mux.HandleFunc("POST /v1/users", s.handleCreateUser)

	mux.HandleFunc("POST /v1/passkeys/register/begin", s.handleBeginRegistration)
	mux.HandleFunc("POST /v1/passkeys/register/finish", s.handleFinishRegistration)
	mux.HandleFunc("POST /v1/passkeys/login/begin", s.handleBeginLogin)
	mux.HandleFunc("POST /v1/passkeys/login/finish", s.handleFinishLogin)
	mux.Handle("GET /v1/passkeys", s.requireSession(s.handleListPasskeys))
	mux.Handle("DELETE /v1/passkeys/{credentialID}", s.requireSession(s.handleRemovePasskey))

	mux.Handle("GET /v1/session", s.requireSession(s.handleGetSession))
	mux.HandleFunc("POST /v1/logout", s.handleLogout)

	mux.HandleFunc("POST /v1/magic-links", s.handleIssueMagicLink)
	mux.HandleFunc("POST /v1/magic-links/consume", s.handleConsumeMagicLink)

	mux.Handle("POST /v1/tenants", s.requireSession(s.handleCreateTenant))
	mux.Handle("GET /v1/tenants", s.requireSession(s.handleListTenants))
	mux.Handle("GET /v1/tenants/{tenantID}", s.requireSession(s.handleGetTenant))
	mux.Handle("DELETE /v1/tenants/{tenantID}", s.requireSession(s.handleDeleteTenant))
	mux.Handle("POST /v1/tenants/{tenantID}/suspend", s.requireSession(s.handleSuspendTenant))
	mux.Handle("POST /v1/tenants/{tenantID}/resume", s.requireSession(s.handleResumeTenant))
	mux.HandleFunc("GET /v1/tenants/by-slug/{slug}", s.handleGetTenantBySlug)

	mux.Handle("GET /v1/tenants/{tenantID}/members", s.requireSession(s.handleListMembers))
	mux.Handle("POST /v1/tenants/{tenantID}/invitations", s.requireSession(s.handleInviteMember))
	mux.Handle("POST /v1/invitations/accept", s.requireSession(s.handleAcceptInvite))
	mux.Handle("PATCH /v1/tenants/{tenantID}/members/{userID}", s.requireSession(s.handleUpdateMemberRole))
	mux.Handle("DELETE /v1/tenants/{tenantID}/members/{userID}", s.requireSession(s.handleRemoveMember))
	mux.Handle("POST /v1/tenants/{tenantID}/ownership", s.requireSession(s.handleTransferOwnership))

	mux.HandleFunc("GET /up", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
}

func (s *Server) now() time.Time {
	if s.clock != nil {
		return s.clock().UTC()
	}
	return time.Now().UTC()
}
