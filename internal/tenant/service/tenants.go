package service

import (
	"context"
	"fmt"
	"strings"

	apperrors "github.com/louisbranch/teamspace/internal/platform/errors"
	"github.com/louisbranch/teamspace/internal/tenant/domain"
)

// CreateTenant creates a workspace and makes the creator its owner.
func (s *TenantService) CreateTenant(ctx context.Context, creatorUserID string, input domain.CreateTenantInput) (domain.Tenant, error) {
	if err := s.checkDeps(); err != nil {
		return domain.Tenant{}, err
	}
	creatorUserID, err := normalizeUserID(creatorUserID)
	if err != nil {
		return domain.Tenant{}, err
	}
	if _, err := s.users.GetUser(ctx, creatorUserID); err != nil {
		return domain.Tenant{}, err
	}

	tenant, err := domain.CreateTenant(input, s.clock, s.idGenerator)
	if err != nil {
		return domain.Tenant{}, err
	}
	if err := s.tenants.PutTenant(ctx, tenant); err != nil {
		return domain.Tenant{}, err
	}

	membershipID, err := s.newID()
	if err != nil {
		return domain.Tenant{}, fmt.Errorf("generate membership id: %w", err)
	}
	joined := s.now()
	err = s.memberships.CreateMembership(ctx, domain.Membership{
		ID:        membershipID,
		TenantID:  tenant.ID,
		UserID:    creatorUserID,
		Role:      domain.RoleOwner,
		JoinedAt:  &joined,
		CreatedAt: joined,
		UpdatedAt: joined,
	})
	if err != nil {
		// Roll the tenant back so a failed bootstrap leaves no ownerless shell.
		_ = s.tenants.DeleteTenant(ctx, tenant.ID)
		return domain.Tenant{}, fmt.Errorf("create owner membership: %w", err)
	}
	return tenant, nil
}

// GetTenant returns a tenant to a member or system admin.
func (s *TenantService) GetTenant(ctx context.Context, requesterUserID, tenantID string) (domain.Tenant, error) {
	if err := s.checkDeps(); err != nil {
		return domain.Tenant{}, err
	}
	requesterUserID, err := normalizeUserID(requesterUserID)
	if err != nil {
		return domain.Tenant{}, err
	}

	tenant, err := s.tenants.GetTenant(ctx, tenantID)
	if err != nil {
		return domain.Tenant{}, err
	}
	if s.isSystemAdmin(ctx, requesterUserID) {
		return tenant, nil
	}
	membership, err := s.requesterMembership(ctx, tenantID, requesterUserID)
	if err != nil {
		return domain.Tenant{}, err
	}
	if !membership.Role.CanView() {
		return domain.Tenant{}, apperrors.New(apperrors.CodeInsufficientRole, "viewing tenant data requires the member role")
	}
	return tenant, nil
}

// GetTenantBySlug resolves a workspace handle for routing. No role check:
// slugs are public identifiers, the payload is the tenant's public shape.
func (s *TenantService) GetTenantBySlug(ctx context.Context, slug string) (domain.Tenant, error) {
	if err := s.checkDeps(); err != nil {
		return domain.Tenant{}, err
	}
	slug = strings.ToLower(strings.TrimSpace(slug))
	if err := domain.ValidateSlug(slug); err != nil {
		return domain.Tenant{}, err
	}
	return s.tenants.GetTenantBySlug(ctx, slug)
}

// DeleteTenant removes a workspace. Owners and system admins only.
func (s *TenantService) DeleteTenant(ctx context.Context, requesterUserID, tenantID string) error {
	if err := s.checkDeps(); err != nil {
		return err
	}
	requesterUserID, err := normalizeUserID(requesterUserID)
	if err != nil {
		return err
	}
	if _, err := s.tenants.GetTenant(ctx, tenantID); err != nil {
		return err
	}

	if !s.isSystemAdmin(ctx, requesterUserID) {
		membership, err := s.requesterMembership(ctx, tenantID, requesterUserID)
		if err != nil {
			return err
		}
		if !membership.Role.CanDeleteTenant() {
			return apperrors.New(apperrors.CodeInsufficientRole, "deleting a tenant requires the owner role")
		}
	}
	return s.tenants.DeleteTenant(ctx, tenantID)
}

// SuspendTenant halts a workspace. System admins only; tenant roles never
// reach this operation.
func (s *TenantService) SuspendTenant(ctx context.Context, requesterUserID, tenantID string) error {
	return s.setTenantStatus(ctx, requesterUserID, tenantID, domain.StatusSuspended)
}

// ResumeTenant reactivates a suspended workspace. System admins only.
func (s *TenantService) ResumeTenant(ctx context.Context, requesterUserID, tenantID string) error {
	return s.setTenantStatus(ctx, requesterUserID, tenantID, domain.StatusActive)
}

func (s *TenantService) setTenantStatus(ctx context.Context, requesterUserID, tenantID string, status domain.Status) error {
	if err := s.checkDeps(); err != nil {
		return err
	}
	requesterUserID, err := normalizeUserID(requesterUserID)
	if err != nil {
		return err
	}
	if !s.isSystemAdmin(ctx, requesterUserID) {
		return apperrors.New(apperrors.CodeInsufficientRole, "changing tenant status requires system admin")
	}
	if _, err := s.tenants.GetTenant(ctx, tenantID); err != nil {
		return err
	}
	return s.tenants.UpdateTenantStatus(ctx, tenantID, status, s.now())
}

// ListTenantsForUser returns the tenants a user belongs to, pending
// invitations included so callers can render them distinctly.
func (s *TenantService) ListTenantsForUser(ctx context.Context, userID string) ([]domain.Membership, error) {
	if err := s.checkDeps(); err != nil {
		return nil, err
	}
	userID, err := normalizeUserID(userID)
	if err != nil {
		return nil, err
	}
	return s.memberships.ListMembershipsByUser(ctx, userID)
}
