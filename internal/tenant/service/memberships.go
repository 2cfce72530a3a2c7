package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	authstorage "github.com/louisbranch/teamspace/internal/auth/storage"
	"github.com/louisbranch/teamspace/internal/auth/user"
	apperrors "github.com/louisbranch/teamspace/internal/platform/errors"
	"github.com/louisbranch/teamspace/internal/tenant/domain"
	"github.com/louisbranch/teamspace/internal/tenant/invite"
	"github.com/louisbranch/teamspace/internal/tenant/storage"
)

// Invitation is an issued tenant invite: the pending membership plus the
// signed grant the invitee presents to accept.
type Invitation struct {
	Membership domain.Membership
	Grant      string
	GrantID    string
	ExpiresAt  time.Time
}

// ListMembers returns a tenant's memberships to a member or system admin.
func (s *TenantService) ListMembers(ctx context.Context, requesterUserID, tenantID string) ([]domain.Membership, error) {
	if err := s.checkDeps(); err != nil {
		return nil, err
	}
	requesterUserID, err := normalizeUserID(requesterUserID)
	if err != nil {
		return nil, err
	}
	if _, err := s.tenants.GetTenant(ctx, tenantID); err != nil {
		return nil, err
	}

	if !s.isSystemAdmin(ctx, requesterUserID) {
		membership, err := s.requesterMembership(ctx, tenantID, requesterUserID)
		if err != nil {
			return nil, err
		}
		if !membership.Role.CanView() {
			return nil, apperrors.New(apperrors.CodeInsufficientRole, "viewing members requires the member role")
		}
	}
	return s.memberships.ListMembershipsByTenant(ctx, tenantID)
}

// InviteMember invites an email address into a tenant.
//
// An email with no account gets one created, unverified. Inviting an email
// that already holds a membership, pending or joined, is a conflict.
func (s *TenantService) InviteMember(ctx context.Context, requesterUserID, tenantID, email string, role domain.Role) (Invitation, error) {
	if err := s.checkDeps(); err != nil {
		return Invitation{}, err
	}
	requesterUserID, err := normalizeUserID(requesterUserID)
	if err != nil {
		return Invitation{}, err
	}
	if !role.Assignable() {
		return Invitation{}, apperrors.New(apperrors.CodeRoleNotAssignable, "role cannot be granted through invitation")
	}
	normalizedEmail, err := user.NormalizeEmail(email)
	if err != nil {
		return Invitation{}, err
	}

	tenant, err := s.tenants.GetTenant(ctx, tenantID)
	if err != nil {
		return Invitation{}, err
	}
	if err := ensureActive(tenant); err != nil {
		return Invitation{}, err
	}
	requester, err := s.requesterMembership(ctx, tenantID, requesterUserID)
	if err != nil {
		return Invitation{}, err
	}
	if !requester.Role.CanInvite() {
		return Invitation{}, apperrors.New(apperrors.CodeInsufficientRole, "inviting members requires the admin role")
	}

	invitee, err := s.users.GetUserByEmail(ctx, normalizedEmail)
	if err != nil {
		if !errors.Is(err, authstorage.ErrNotFound) {
			return Invitation{}, fmt.Errorf("lookup invitee: %w", err)
		}
		invitee, err = s.createUserForInvite(ctx, normalizedEmail)
		if err != nil {
			return Invitation{}, err
		}
	}

	membershipID, err := s.newID()
	if err != nil {
		return Invitation{}, fmt.Errorf("generate membership id: %w", err)
	}
	now := s.now()
	invitedAt := now
	membership := domain.Membership{
		ID:        membershipID,
		TenantID:  tenantID,
		UserID:    invitee.ID,
		Role:      role,
		InvitedBy: requesterUserID,
		InvitedAt: &invitedAt,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.memberships.CreateMembership(ctx, membership); err != nil {
		return Invitation{}, err
	}

	grant, grantID, expiresAt, err := invite.Issue(s.grantConfig, tenantID, membershipID, normalizedEmail)
	if err != nil {
		_ = s.memberships.DeleteMembership(ctx, membershipID)
		return Invitation{}, fmt.Errorf("issue invite grant: %w", err)
	}
	return Invitation{
		Membership: membership,
		Grant:      grant,
		GrantID:    grantID,
		ExpiresAt:  expiresAt,
	}, nil
}

// AcceptInvite redeems a grant for the authenticated invitee.
//
// The grant pins tenant and membership; the membership pins the user. All
// three have to line up, and the membership must still be pending.
func (s *TenantService) AcceptInvite(ctx context.Context, userID, grant string) (domain.Membership, error) {
	if err := s.checkDeps(); err != nil {
		return domain.Membership{}, err
	}
	userID, err := normalizeUserID(userID)
	if err != nil {
		return domain.Membership{}, err
	}

	claims, err := invite.Validate(s.grantConfig, grant)
	if err != nil {
		return domain.Membership{}, err
	}
	membership, err := s.memberships.GetMembership(ctx, claims.MembershipID)
	if err != nil {
		return domain.Membership{}, err
	}
	if membership.TenantID != claims.TenantID {
		return domain.Membership{}, apperrors.New(apperrors.CodeInviteGrantMismatch, "invite grant tenant mismatch")
	}
	if membership.UserID != userID {
		return domain.Membership{}, apperrors.New(apperrors.CodeInviteGrantMismatch, "invite grant belongs to a different user")
	}
	if !membership.Pending() {
		return domain.Membership{}, apperrors.New(apperrors.CodeMembershipNotPending, "invitation was already accepted")
	}

	tenant, err := s.tenants.GetTenant(ctx, membership.TenantID)
	if err != nil {
		return domain.Membership{}, err
	}
	if err := ensureActive(tenant); err != nil {
		return domain.Membership{}, err
	}

	joinedAt := s.now()
	if err := s.memberships.MarkMembershipJoined(ctx, membership.ID, joinedAt); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return domain.Membership{}, apperrors.New(apperrors.CodeMembershipNotPending, "invitation was already accepted")
		}
		return domain.Membership{}, fmt.Errorf("mark membership joined: %w", err)
	}
	membership.JoinedAt = &joinedAt
	membership.UpdatedAt = joinedAt
	return membership, nil
}

// UpdateMemberRole changes a member's role.
//
// Owner is never assignable here; promoting to owner goes through
// TransferOwnership. Demoting an owner runs under last-owner protection in
// the store.
func (s *TenantService) UpdateMemberRole(ctx context.Context, requesterUserID, tenantID, targetUserID string, role domain.Role) (domain.Membership, error) {
	if err := s.checkDeps(); err != nil {
		return domain.Membership{}, err
	}
	if !role.Assignable() {
		return domain.Membership{}, apperrors.New(apperrors.CodeRoleNotAssignable, "owner role is only reachable through ownership transfer")
	}

	target, err := s.authorizeMembershipMutation(ctx, requesterUserID, tenantID, targetUserID)
	if err != nil {
		return domain.Membership{}, err
	}
	if err := s.memberships.UpdateMembershipRole(ctx, target.ID, role, s.now()); err != nil {
		return domain.Membership{}, err
	}
	target.Role = role
	return target, nil
}

// RemoveMember deletes a membership, pending or joined. Removing the last
// owner is refused by the store regardless of requester role.
func (s *TenantService) RemoveMember(ctx context.Context, requesterUserID, tenantID, targetUserID string) error {
	if err := s.checkDeps(); err != nil {
		return err
	}
	target, err := s.authorizeMembershipMutation(ctx, requesterUserID, tenantID, targetUserID)
	if err != nil {
		return err
	}
	return s.memberships.DeleteMembership(ctx, target.ID)
}

// TransferOwnership moves the owner role to another joined member. The
// previous owner stays on as admin.
func (s *TenantService) TransferOwnership(ctx context.Context, requesterUserID, tenantID, newOwnerUserID string) error {
	if err := s.checkDeps(); err != nil {
		return err
	}
	requesterUserID, err := normalizeUserID(requesterUserID)
	if err != nil {
		return err
	}
	newOwnerUserID = strings.TrimSpace(newOwnerUserID)
	if newOwnerUserID == "" || newOwnerUserID == requesterUserID {
		return apperrors.New(apperrors.CodeMembershipInvalidRole, "ownership transfer requires a different member")
	}

	tenant, err := s.tenants.GetTenant(ctx, tenantID)
	if err != nil {
		return err
	}
	if err := ensureActive(tenant); err != nil {
		return err
	}
	requester, err := s.requesterMembership(ctx, tenantID, requesterUserID)
	if err != nil {
		return err
	}
	if requester.Role != domain.RoleOwner {
		return apperrors.New(apperrors.CodeInsufficientRole, "only the owner can transfer ownership")
	}

	newOwner, err := s.memberships.GetMembershipByUser(ctx, tenantID, newOwnerUserID)
	if err != nil {
		return err
	}
	if newOwner.Pending() {
		return apperrors.New(apperrors.CodeMembershipNotPending, "new owner has not accepted their invitation")
	}

	return s.memberships.TransferOwnership(ctx, tenantID, requesterUserID, newOwnerUserID, s.now())
}

// authorizeMembershipMutation runs the shared policy for role changes and
// removals: active tenant, privileged requester, and the owner-target rule.
func (s *TenantService) authorizeMembershipMutation(ctx context.Context, requesterUserID, tenantID, targetUserID string) (domain.Membership, error) {
	requesterUserID, err := normalizeUserID(requesterUserID)
	if err != nil {
		return domain.Membership{}, err
	}
	targetUserID = strings.TrimSpace(targetUserID)
	if targetUserID == "" {
		return domain.Membership{}, apperrors.New(apperrors.CodeUserIDEmpty, "target user id is required")
	}

	tenant, err := s.tenants.GetTenant(ctx, tenantID)
	if err != nil {
		return domain.Membership{}, err
	}
	if err := ensureActive(tenant); err != nil {
		return domain.Membership{}, err
	}

	requester, err := s.requesterMembership(ctx, tenantID, requesterUserID)
	if err != nil {
		return domain.Membership{}, err
	}
	target, err := s.memberships.GetMembershipByUser(ctx, tenantID, targetUserID)
	if err != nil {
		return domain.Membership{}, err
	}
	if !domain.CanModifyMembership(requester.Role, target.Role) {
		if target.Role == domain.RoleOwner {
			return domain.Membership{}, apperrors.New(apperrors.CodeOwnerTargetProtected, "only an owner can modify an owner")
		}
		return domain.Membership{}, apperrors.New(apperrors.CodeInsufficientRole, "modifying members requires the admin role")
	}
	return target, nil
}
