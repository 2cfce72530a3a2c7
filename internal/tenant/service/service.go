// Package service implements the tenant domain: workspace lifecycle,
// memberships, role policy, and invitations.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	authstorage "github.com/louisbranch/teamspace/internal/auth/storage"
	"github.com/louisbranch/teamspace/internal/auth/sysadmin"
	"github.com/louisbranch/teamspace/internal/auth/user"
	apperrors "github.com/louisbranch/teamspace/internal/platform/errors"
	"github.com/louisbranch/teamspace/internal/platform/id"
	"github.com/louisbranch/teamspace/internal/tenant/domain"
	"github.com/louisbranch/teamspace/internal/tenant/invite"
	"github.com/louisbranch/teamspace/internal/tenant/storage"
)

// TenantService is the canonical tenant domain entrypoint.
//
// Every mutation takes the requester's user ID and resolves their tenant
// role before acting; the capability checks live here, not in transport.
type TenantService struct {
	tenants     storage.TenantStore
	memberships storage.MembershipStore
	users       authstorage.UserStore
	gate        *sysadmin.Gate
	grantConfig invite.Config

	clock       func() time.Time
	idGenerator func() (string, error)
}

// NewTenantService builds a service with defaults for the tenant package.
func NewTenantService(tenants storage.TenantStore, memberships storage.MembershipStore, users authstorage.UserStore, gate *sysadmin.Gate, grantConfig invite.Config) *TenantService {
	return &TenantService{
		tenants:     tenants,
		memberships: memberships,
		users:       users,
		gate:        gate,
		grantConfig: grantConfig,
		clock:       time.Now,
		idGenerator: id.NewID,
	}
}

func (s *TenantService) now() time.Time {
	if s.clock != nil {
		return s.clock().UTC()
	}
	return time.Now().UTC()
}

func (s *TenantService) newID() (string, error) {
	if s.idGenerator != nil {
		return s.idGenerator()
	}
	return id.NewID()
}

func (s *TenantService) checkDeps() error {
	if s.tenants == nil {
		return fmt.Errorf("tenant store is not configured")
	}
	if s.memberships == nil {
		return fmt.Errorf("membership store is not configured")
	}
	if s.users == nil {
		return fmt.Errorf("user store is not configured")
	}
	return nil
}

// isSystemAdmin resolves a user ID through the admin gate. Unknown users are
// never admins.
func (s *TenantService) isSystemAdmin(ctx context.Context, userID string) bool {
	if s.gate == nil || s.users == nil {
		return false
	}
	account, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return false
	}
	return s.gate.IsUserSystemAdmin(&account)
}

// requesterMembership resolves the requester's joined membership in a tenant.
// Pending invitations confer no privileges.
func (s *TenantService) requesterMembership(ctx context.Context, tenantID, userID string) (domain.Membership, error) {
	membership, err := s.memberships.GetMembershipByUser(ctx, tenantID, userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return domain.Membership{}, apperrors.New(apperrors.CodeInsufficientRole, "requester is not a member of the tenant")
		}
		return domain.Membership{}, fmt.Errorf("load requester membership: %w", err)
	}
	if membership.Pending() {
		return domain.Membership{}, apperrors.New(apperrors.CodeInsufficientRole, "requester has not accepted their invitation")
	}
	return membership, nil
}

// ensureActive rejects mutations on suspended tenants.
func ensureActive(tenant domain.Tenant) error {
	if tenant.Status == domain.StatusSuspended {
		return apperrors.New(apperrors.CodeTenantSuspended, "tenant is suspended")
	}
	return nil
}

func normalizeUserID(value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", apperrors.New(apperrors.CodeUserIDEmpty, "user id is required")
	}
	return value, nil
}

// createUserForInvite provisions an unverified account for an email that has
// never registered. The invitee proves mailbox control when accepting.
func (s *TenantService) createUserForInvite(ctx context.Context, email string) (user.User, error) {
	created, err := user.CreateUser(user.CreateUserInput{Email: email}, s.clock, s.idGenerator)
	if err != nil {
		return user.User{}, err
	}
	if err := s.users.PutUser(ctx, created); err != nil {
		return user.User{}, fmt.Errorf("store invited user: %w", err)
	}
	return created, nil
}
