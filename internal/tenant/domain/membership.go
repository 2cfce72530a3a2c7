package domain

import "time"

// Membership joins a user to a tenant with one role.
//
// A (TenantID, UserID) pair is unique. JoinedAt is nil while an invitation
// is pending; InvitedBy and InvitedAt record who extended it and when.
type Membership struct {
	ID        string
	TenantID  string
	UserID    string
	Role      Role
	InvitedBy string
	InvitedAt *time.Time
	JoinedAt  *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Pending reports whether the membership is an unaccepted invitation.
func (m Membership) Pending() bool {
	return m.JoinedAt == nil
}
