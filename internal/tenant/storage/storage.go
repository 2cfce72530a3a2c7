// Package storage defines persistence contracts for tenant data.
package storage

import (
	"context"
	"time"

	"github.com/louisbranch/teamspace/internal/platform/errors"
	"github.com/louisbranch/teamspace/internal/tenant/domain"
)

// ErrNotFound indicates a requested record is missing.
var ErrNotFound = errors.New(errors.CodeNotFound, "record not found")

// ErrLastOwner indicates a mutation would leave a tenant without an owner.
var ErrLastOwner = errors.New(errors.CodeLastOwnerProtected, "cannot remove or demote the last owner")

// ErrSlugTaken indicates a tenant slug collision.
var ErrSlugTaken = errors.New(errors.CodeTenantSlugTaken, "slug is already taken")

// ErrDomainTaken indicates a tenant domain collision.
var ErrDomainTaken = errors.New(errors.CodeTenantDomainTaken, "domain is already taken")

// ErrMembershipExists indicates the user already belongs to the tenant.
var ErrMembershipExists = errors.New(errors.CodeMembershipExists, "user is already a member")

// TenantStore persists tenant records.
type TenantStore interface {
	PutTenant(ctx context.Context, tenant domain.Tenant) error
	GetTenant(ctx context.Context, tenantID string) (domain.Tenant, error)
	GetTenantBySlug(ctx context.Context, slug string) (domain.Tenant, error)
	UpdateTenantStatus(ctx context.Context, tenantID string, status domain.Status, now time.Time) error
	DeleteTenant(ctx context.Context, tenantID string) error
}

// MembershipStore persists tenant memberships.
//
// UpdateMembershipRole and DeleteMembership run the last-owner count and the
// mutation in one transaction: two concurrent demotions cannot both observe
// a second owner and leave the tenant ownerless.
type MembershipStore interface {
	CreateMembership(ctx context.Context, membership domain.Membership) error
	GetMembership(ctx context.Context, membershipID string) (domain.Membership, error)
	GetMembershipByUser(ctx context.Context, tenantID, userID string) (domain.Membership, error)
	ListMembershipsByTenant(ctx context.Context, tenantID string) ([]domain.Membership, error)
	ListMembershipsByUser(ctx context.Context, userID string) ([]domain.Membership, error)
	UpdateMembershipRole(ctx context.Context, membershipID string, role domain.Role, now time.Time) error
	MarkMembershipJoined(ctx context.Context, membershipID string, joinedAt time.Time) error
	DeleteMembership(ctx context.Context, membershipID string) error
	TransferOwnership(ctx context.Context, tenantID, fromUserID, toUserID string, now time.Time) error
	CountOwners(ctx context.Context, tenantID string) (int, error)
}
