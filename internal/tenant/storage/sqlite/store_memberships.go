package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/louisbranch/teamspace/internal/tenant/domain"
	"github.com/louisbranch/teamspace/internal/tenant/storage"
)

// CreateMembership inserts a membership. A (tenant, user) collision maps to
// ErrMembershipExists.
func (s *Store) CreateMembership(ctx context.Context, membership domain.Membership) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(membership.ID) == "" {
		return fmt.Errorf("membership id is required")
	}
	if strings.TrimSpace(membership.TenantID) == "" {
		return fmt.Errorf("tenant id is required")
	}
	if strings.TrimSpace(membership.UserID) == "" {
		return fmt.Errorf("user id is required")
	}

	invitedBy := sql.NullString{}
	if strings.TrimSpace(membership.InvitedBy) != "" {
		invitedBy = sql.NullString{String: membership.InvitedBy, Valid: true}
	}
	invitedAt := sql.NullInt64{}
	if membership.InvitedAt != nil {
		invitedAt = sql.NullInt64{Int64: toMillis(*membership.InvitedAt), Valid: true}
	}
	joinedAt := sql.NullInt64{}
	if membership.JoinedAt != nil {
		joinedAt = sql.NullInt64{Int64: toMillis(*membership.JoinedAt), Valid: true}
	}

	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO tenant_memberships (id, tenant_id, user_id, role, invited_by, invited_at, joined_at, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
`, membership.ID, membership.TenantID, membership.UserID, string(membership.Role),
		invitedBy, invitedAt, joinedAt, toMillis(membership.CreatedAt), toMillis(membership.UpdatedAt))
	if err != nil {
		if mapped := mapConstraintError(err); mapped != err {
			return mapped
		}
		return fmt.Errorf("create membership: %w", err)
	}
	return nil
}

// GetMembership fetches a membership by ID.
func (s *Store) GetMembership(ctx context.Context, membershipID string) (domain.Membership, error) {
	if err := ctx.Err(); err != nil {
		return domain.Membership{}, err
	}
	if s == nil || s.sqlDB == nil {
		return domain.Membership{}, fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(membershipID) == "" {
		return domain.Membership{}, fmt.Errorf("membership id is required")
	}

	row := s.sqlDB.QueryRowContext(ctx, membershipColumns+` WHERE id = ?`, membershipID)
	return scanMembership(row)
}

// GetMembershipByUser fetches the membership binding a user to a tenant.
func (s *Store) GetMembershipByUser(ctx context.Context, tenantID, userID string) (domain.Membership, error) {
	if err := ctx.Err(); err != nil {
		return domain.Membership{}, err
	}
	if s == nil || s.sqlDB == nil {
		return domain.Membership{}, fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(tenantID) == "" || strings.TrimSpace(userID) == "" {
		return domain.Membership{}, fmt.Errorf("tenant id and user id are required")
	}

	row := s.sqlDB.QueryRowContext(ctx, membershipColumns+` WHERE tenant_id = ? AND user_id = ?`, tenantID, userID)
	return scanMembership(row)
}

// ListMembershipsByTenant returns all memberships in a tenant.
func (s *Store) ListMembershipsByTenant(ctx context.Context, tenantID string) ([]domain.Membership, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(tenantID) == "" {
		return nil, fmt.Errorf("tenant id is required")
	}

	rows, err := s.sqlDB.QueryContext(ctx, membershipColumns+` WHERE tenant_id = ? ORDER BY created_at`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list memberships: %w", err)
	}
	defer rows.Close()
	return collectMemberships(rows)
}

// ListMembershipsByUser returns all of a user's memberships across tenants.
func (s *Store) ListMembershipsByUser(ctx context.Context, userID string) ([]domain.Membership, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("user id is required")
	}

	rows, err := s.sqlDB.QueryContext(ctx, membershipColumns+` WHERE user_id = ? ORDER BY created_at`, userID)
	if err != nil {
		return nil, fmt.Errorf("list memberships: %w", err)
	}
	defer rows.Close()
	return collectMemberships(rows)
}

// UpdateMembershipRole changes a membership's role.
//
// The owner count check and the update share one transaction, so concurrent
// demotions cannot both observe a spare owner and strip the tenant bare.
func (s *Store) UpdateMembershipRole(ctx context.Context, membershipID string, role domain.Role, now time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(membershipID) == "" {
		return fmt.Errorf("membership id is required")
	}

	return s.withGuardedMembership(ctx, membershipID, role != domain.RoleOwner, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
UPDATE tenant_memberships SET role = ?, updated_at = ? WHERE id = ?
`, string(role), toMillis(now), membershipID)
		if err != nil {
			return fmt.Errorf("update membership role: %w", err)
		}
		return nil
	})
}

// MarkMembershipJoined records invitation acceptance.
func (s *Store) MarkMembershipJoined(ctx context.Context, membershipID string, joinedAt time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(membershipID) == "" {
		return fmt.Errorf("membership id is required")
	}

	result, err := s.sqlDB.ExecContext(ctx, `
UPDATE tenant_memberships SET joined_at = ?, updated_at = ? WHERE id = ? AND joined_at IS NULL
`, toMillis(joinedAt), toMillis(joinedAt), membershipID)
	if err != nil {
		return fmt.Errorf("mark membership joined: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark membership joined: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// DeleteMembership removes a membership, refusing to delete the last owner.
func (s *Store) DeleteMembership(ctx context.Context, membershipID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(membershipID) == "" {
		return fmt.Errorf("membership id is required")
	}

	return s.withGuardedMembership(ctx, membershipID, true, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `DELETE FROM tenant_memberships WHERE id = ?`, membershipID)
		if err != nil {
			return fmt.Errorf("delete membership: %w", err)
		}
		return nil
	})
}

// TransferOwnership promotes toUserID to owner and demotes fromUserID to
// admin in one transaction, keeping the owner count at one or more at every
// committed point.
func (s *Store) TransferOwnership(ctx context.Context, tenantID, fromUserID, toUserID string, now time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(tenantID) == "" || strings.TrimSpace(fromUserID) == "" || strings.TrimSpace(toUserID) == "" {
		return fmt.Errorf("tenant id, from user id, and to user id are required")
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transfer: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var fromRole string
	err = tx.QueryRowContext(ctx, `
SELECT role FROM tenant_memberships WHERE tenant_id = ? AND user_id = ?
`, tenantID, fromUserID).Scan(&fromRole)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.ErrNotFound
		}
		return fmt.Errorf("load current owner: %w", err)
	}
	if fromRole != string(domain.RoleOwner) {
		return storage.ErrNotFound
	}

	var toJoined sql.NullInt64
	err = tx.QueryRowContext(ctx, `
SELECT joined_at FROM tenant_memberships WHERE tenant_id = ? AND user_id = ?
`, tenantID, toUserID).Scan(&toJoined)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.ErrNotFound
		}
		return fmt.Errorf("load new owner: %w", err)
	}

	nowMillis := toMillis(now)
	if _, err := tx.ExecContext(ctx, `
UPDATE tenant_memberships SET role = ?, updated_at = ? WHERE tenant_id = ? AND user_id = ?
`, string(domain.RoleOwner), nowMillis, tenantID, toUserID); err != nil {
		return fmt.Errorf("promote new owner: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
UPDATE tenant_memberships SET role = ?, updated_at = ? WHERE tenant_id = ? AND user_id = ?
`, string(domain.RoleAdmin), nowMillis, tenantID, fromUserID); err != nil {
		return fmt.Errorf("demote previous owner: %w", err)
	}

	return tx.Commit()
}

// CountOwners returns the number of owner memberships in a tenant.
func (s *Store) CountOwners(ctx context.Context, tenantID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if s == nil || s.sqlDB == nil {
		return 0, fmt.Errorf("storage is not configured")
	}
	var count int
	err := s.sqlDB.QueryRowContext(ctx, `
SELECT COUNT(*) FROM tenant_memberships WHERE tenant_id = ? AND role = ?
`, tenantID, string(domain.RoleOwner)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count owners: %w", err)
	}
	return count, nil
}

// withGuardedMembership loads a membership inside a transaction and, when
// the mutation would reduce the owner set, verifies another owner remains
// before applying it.
func (s *Store) withGuardedMembership(ctx context.Context, membershipID string, reducesOwners bool, mutate func(tx *sql.Tx) error) error {
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin membership mutation: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var tenantID, role string
	err = tx.QueryRowContext(ctx, `
SELECT tenant_id, role FROM tenant_memberships WHERE id = ?
`, membershipID).Scan(&tenantID, &role)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.ErrNotFound
		}
		return fmt.Errorf("load membership: %w", err)
	}

	if role == string(domain.RoleOwner) && reducesOwners {
		var owners int
		err = tx.QueryRowContext(ctx, `
SELECT COUNT(*) FROM tenant_memberships WHERE tenant_id = ? AND role = ?
`, tenantID, string(domain.RoleOwner)).Scan(&owners)
		if err != nil {
			return fmt.Errorf("count owners: %w", err)
		}
		if owners <= 1 {
			return storage.ErrLastOwner
		}
	}

	if err := mutate(tx); err != nil {
		return err
	}
	return tx.Commit()
}

const membershipColumns = `
SELECT id, tenant_id, user_id, role, invited_by, invited_at, joined_at, created_at, updated_at
FROM tenant_memberships`

func scanMembership(row rowScanner) (domain.Membership, error) {
	var membership domain.Membership
	var role string
	var invitedBy sql.NullString
	var invitedAt, joinedAt sql.NullInt64
	var createdAt, updatedAt int64
	err := row.Scan(&membership.ID, &membership.TenantID, &membership.UserID, &role,
		&invitedBy, &invitedAt, &joinedAt, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Membership{}, storage.ErrNotFound
		}
		return domain.Membership{}, fmt.Errorf("scan membership: %w", err)
	}
	membership.Role = domain.Role(role)
	if invitedBy.Valid {
		membership.InvitedBy = invitedBy.String
	}
	if invitedAt.Valid {
		value := fromMillis(invitedAt.Int64)
		membership.InvitedAt = &value
	}
	if joinedAt.Valid {
		value := fromMillis(joinedAt.Int64)
		membership.JoinedAt = &value
	}
	membership.CreatedAt = fromMillis(createdAt)
	membership.UpdatedAt = fromMillis(updatedAt)
	return membership, nil
}

func collectMemberships(rows *sql.Rows) ([]domain.Membership, error) {
	var memberships []domain.Membership
	for rows.Next() {
		membership, err := scanMembership(rows)
		if err != nil {
			return nil, err
		}
		memberships = append(memberships, membership)
	}
	return memberships, rows.Err()
}
