// Package domain holds tenant and membership records plus role policy.
package domain

import (
	apperrors "github.com/louisbranch/teamspace/internal/platform/errors"
)

// Role is a tenant-scoped privilege level, strictly ordered
// viewer < member < admin < owner.
type Role string

const (
	RoleViewer Role = "viewer"
	RoleMember Role = "member"
	RoleAdmin  Role = "admin"
	RoleOwner  Role = "owner"
)

var roleLevels = map[Role]int{
	RoleViewer: 1,
	RoleMember: 2,
	RoleAdmin:  3,
	RoleOwner:  4,
}

// ParseRole validates a role string.
func ParseRole(value string) (Role, error) {
	role := Role(value)
	if _, ok := roleLevels[role]; !ok {
		return "", apperrors.WithMetadata(
			apperrors.CodeMembershipInvalidRole,
			"invalid role",
			map[string]string{"role": value},
		)
	}
	return role, nil
}

// Level returns the role's position in the privilege order. Unknown roles
// rank below viewer.
func (r Role) Level() int {
	return roleLevels[r]
}

// AtLeast reports whether r carries at least min's privilege.
func (r Role) AtLeast(min Role) bool {
	return r.Level() >= min.Level()
}

// Assignable reports whether a role may be granted through generic membership
// mutation. Owner is excluded: it is only reachable through the dedicated
// ownership transfer path.
func (r Role) Assignable() bool {
	switch r {
	case RoleViewer, RoleMember, RoleAdmin:
		return true
	default:
		return false
	}
}

// Capability thresholds. Minimum roles for each action a requester can take
// against a tenant.
func (r Role) CanView() bool         { return r.AtLeast(RoleMember) }
func (r Role) CanInvite() bool       { return r.AtLeast(RoleAdmin) }
func (r Role) CanManageMembers() bool { return r.AtLeast(RoleAdmin) }
func (r Role) CanDeleteTenant() bool { return r == RoleOwner }

// CanModifyMembership reports whether a requester may change or remove a
// membership holding targetRole. Admins act on member-level and admin-level
// targets; owner-level targets require an owner. The rule applies equally
// when the requester targets their own membership.
func CanModifyMembership(requesterRole, targetRole Role) bool {
	if !requesterRole.AtLeast(RoleAdmin) {
		return false
	}
	if targetRole == RoleOwner {
		return requesterRole == RoleOwner
	}
	return true
}
