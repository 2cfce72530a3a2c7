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

// PutTenant inserts or updates a tenant record.
func (s *Store) PutTenant(ctx context.Context, tenant domain.Tenant) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(tenant.ID) == "" {
		return fmt.Errorf("tenant id is required")
	}
	if strings.TrimSpace(tenant.Slug) == "" {
		return fmt.Errorf("tenant slug is required")
	}

	domainValue := sql.NullString{}
	if strings.TrimSpace(tenant.Domain) != "" {
		domainValue = sql.NullString{String: tenant.Domain, Valid: true}
	}

	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO tenants (id, name, slug, domain, status, settings, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    name = excluded.name,
    slug = excluded.slug,
    domain = excluded.domain,
    status = excluded.status,
    settings = excluded.settings,
    updated_at = excluded.updated_at
`, tenant.ID, tenant.Name, tenant.Slug, domainValue, string(tenant.Status), tenant.Settings,
		toMillis(tenant.CreatedAt), toMillis(tenant.UpdatedAt))
	if err != nil {
		if mapped := mapConstraintError(err); mapped != err {
			return mapped
		}
		return fmt.Errorf("put tenant: %w", err)
	}
	return nil
}

// GetTenant fetches a tenant by ID.
func (s *Store) GetTenant(ctx context.Context, tenantID string) (domain.Tenant, error) {
	if err := ctx.Err(); err != nil {
		return domain.Tenant{}, err
	}
	if s == nil || s.sqlDB == nil {
		return domain.Tenant{}, fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(tenantID) == "" {
		return domain.Tenant{}, fmt.Errorf("tenant id is required")
	}

	row := s.sqlDB.QueryRowContext(ctx, `
SELECT id, name, slug, domain, status, settings, created_at, updated_at
FROM tenants WHERE id = ?
`, tenantID)
	return scanTenant(row)
}

// GetTenantBySlug fetches a tenant by its URL handle.
func (s *Store) GetTenantBySlug(ctx context.Context, slug string) (domain.Tenant, error) {
	if err := ctx.Err(); err != nil {
		return domain.Tenant{}, err
	}
	if s == nil || s.sqlDB == nil {
		return domain.Tenant{}, fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(slug) == "" {
		return domain.Tenant{}, fmt.Errorf("tenant slug is required")
	}

	row := s.sqlDB.QueryRowContext(ctx, `
SELECT id, name, slug, domain, status, settings, created_at, updated_at
FROM tenants WHERE slug = ?
`, strings.ToLower(slug))
	return scanTenant(row)
}

// UpdateTenantStatus moves a tenant between lifecycle states.
func (s *Store) UpdateTenantStatus(ctx context.Context, tenantID string, status domain.Status, now time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(tenantID) == "" {
		return fmt.Errorf("tenant id is required")
	}

	result, err := s.sqlDB.ExecContext(ctx, `
UPDATE tenants SET status = ?, updated_at = ? WHERE id = ?
`, string(status), toMillis(now), tenantID)
	if err != nil {
		return fmt.Errorf("update tenant status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update tenant status: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// DeleteTenant removes a tenant. Memberships cascade with it.
func (s *Store) DeleteTenant(ctx context.Context, tenantID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(tenantID) == "" {
		return fmt.Errorf("tenant id is required")
	}

	result, err := s.sqlDB.ExecContext(ctx, `DELETE FROM tenants WHERE id = ?`, tenantID)
	if err != nil {
		return fmt.Errorf("delete tenant: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete tenant: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func scanTenant(row rowScanner) (domain.Tenant, error) {
	var tenant domain.Tenant
	var domainValue sql.NullString
	var status string
	var createdAt, updatedAt int64
	if err := row.Scan(&tenant.ID, &tenant.Name, &tenant.Slug, &domainValue, &status, &tenant.Settings, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Tenant{}, storage.ErrNotFound
		}
		return domain.Tenant{}, fmt.Errorf("scan tenant: %w", err)
	}
	if domainValue.Valid {
		tenant.Domain = domainValue.String
	}
	tenant.Status = domain.Status(status)
	tenant.CreatedAt = fromMillis(createdAt)
	tenant.UpdatedAt = fromMillis(updatedAt)
	return tenant, nil
}
