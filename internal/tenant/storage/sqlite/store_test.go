package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/louisbranch/teamspace/internal/tenant/domain"
	"github.com/louisbranch/teamspace/internal/tenant/storage"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "tenant.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

var testTime = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func putTestTenant(t *testing.T, store *Store, id, slug string) {
	t.Helper()
	err := store.PutTenant(context.Background(), domain.Tenant{
		ID:        id,
		Name:      "Tenant " + id,
		Slug:      slug,
		Status:    domain.StatusActive,
		Settings:  "{}",
		CreatedAt: testTime,
		UpdatedAt: testTime,
	})
	if err != nil {
		t.Fatalf("put tenant: %v", err)
	}
}

func putTestMembership(t *testing.T, store *Store, id, tenantID, userID string, role domain.Role) {
	t.Helper()
	joined := testTime
	err := store.CreateMembership(context.Background(), domain.Membership{
		ID:        id,
		TenantID:  tenantID,
		UserID:    userID,
		Role:      role,
		JoinedAt:  &joined,
		CreatedAt: testTime,
		UpdatedAt: testTime,
	})
	if err != nil {
		t.Fatalf("create membership: %v", err)
	}
}

func TestTenantRoundTrip(t *testing.T) {
	store := openTestStore(t)
	putTestTenant(t, store, "tenant-1", "acme")

	found, err := store.GetTenant(context.Background(), "tenant-1")
	if err != nil {
		t.Fatalf("get tenant: %v", err)
	}
	if found.Slug != "acme" || found.Status != domain.StatusActive {
		t.Fatalf("unexpected tenant %+v", found)
	}

	bySlug, err := store.GetTenantBySlug(context.Background(), "ACME")
	if err != nil {
		t.Fatalf("get tenant by slug: %v", err)
	}
	if bySlug.ID != "tenant-1" {
		t.Fatalf("id = %q", bySlug.ID)
	}

	if _, err := store.GetTenant(context.Background(), "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("error = %v, want not found", err)
	}
}

func TestTenantSlugConflict(t *testing.T) {
	store := openTestStore(t)
	putTestTenant(t, store, "tenant-1", "acme")

	err := store.PutTenant(context.Background(), domain.Tenant{
		ID:        "tenant-2",
		Name:      "Other",
		Slug:      "acme",
		Status:    domain.StatusActive,
		Settings:  "{}",
		CreatedAt: testTime,
		UpdatedAt: testTime,
	})
	if !errors.Is(err, storage.ErrSlugTaken) {
		t.Fatalf("error = %v, want slug taken", err)
	}
}

func TestTenantDomainConflict(t *testing.T) {
	store := openTestStore(t)
	tenant := domain.Tenant{
		ID:        "tenant-1",
		Name:      "Acme",
		Slug:      "acme",
		Domain:    "acme.example.com",
		Status:    domain.StatusActive,
		Settings:  "{}",
		CreatedAt: testTime,
		UpdatedAt: testTime,
	}
	if err := store.PutTenant(context.Background(), tenant); err != nil {
		t.Fatalf("put tenant: %v", err)
	}

	tenant.ID = "tenant-2"
	tenant.Slug = "other"
	err := store.PutTenant(context.Background(), tenant)
	if !errors.Is(err, storage.ErrDomainTaken) {
		t.Fatalf("error = %v, want domain taken", err)
	}
}

func TestUpdateTenantStatus(t *testing.T) {
	store := openTestStore(t)
	putTestTenant(t, store, "tenant-1", "acme")

	if err := store.UpdateTenantStatus(context.Background(), "tenant-1", domain.StatusSuspended, testTime.Add(time.Hour)); err != nil {
		t.Fatalf("update status: %v", err)
	}
	found, err := store.GetTenant(context.Background(), "tenant-1")
	if err != nil {
		t.Fatalf("get tenant: %v", err)
	}
	if found.Status != domain.StatusSuspended {
		t.Fatalf("status = %q", found.Status)
	}

	if err := store.UpdateTenantStatus(context.Background(), "missing", domain.StatusActive, testTime); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("error = %v, want not found", err)
	}
}

func TestMembershipUniquePerTenant(t *testing.T) {
	store := openTestStore(t)
	putTestTenant(t, store, "tenant-1", "acme")
	putTestMembership(t, store, "m-1", "tenant-1", "user-1", domain.RoleOwner)

	err := store.CreateMembership(context.Background(), domain.Membership{
		ID:        "m-2",
		TenantID:  "tenant-1",
		UserID:    "user-1",
		Role:      domain.RoleMember,
		CreatedAt: testTime,
		UpdatedAt: testTime,
	})
	if !errors.Is(err, storage.ErrMembershipExists) {
		t.Fatalf("error = %v, want membership exists", err)
	}
}

func TestLastOwnerProtectedOnDemotion(t *testing.T) {
	store := openTestStore(t)
	putTestTenant(t, store, "tenant-1", "acme")
	putTestMembership(t, store, "m-1", "tenant-1", "user-1", domain.RoleOwner)

	err := store.UpdateMembershipRole(context.Background(), "m-1", domain.RoleMember, testTime.Add(time.Hour))
	if !errors.Is(err, storage.ErrLastOwner) {
		t.Fatalf("error = %v, want last owner protection", err)
	}

	// With a second owner the demotion proceeds.
	putTestMembership(t, store, "m-2", "tenant-1", "user-2", domain.RoleOwner)
	if err := store.UpdateMembershipRole(context.Background(), "m-1", domain.RoleMember, testTime.Add(time.Hour)); err != nil {
		t.Fatalf("demote with spare owner: %v", err)
	}
	found, err := store.GetMembership(context.Background(), "m-1")
	if err != nil {
		t.Fatalf("get membership: %v", err)
	}
	if found.Role != domain.RoleMember {
		t.Fatalf("role = %q", found.Role)
	}
}

func TestLastOwnerProtectedOnDeletion(t *testing.T) {
	store := openTestStore(t)
	putTestTenant(t, store, "tenant-1", "acme")
	putTestMembership(t, store, "m-1", "tenant-1", "user-1", domain.RoleOwner)
	putTestMembership(t, store, "m-2", "tenant-1", "user-2", domain.RoleMember)

	if err := store.DeleteMembership(context.Background(), "m-1"); !errors.Is(err, storage.ErrLastOwner) {
		t.Fatalf("error = %v, want last owner protection", err)
	}
	if err := store.DeleteMembership(context.Background(), "m-2"); err != nil {
		t.Fatalf("delete member: %v", err)
	}
	if _, err := store.GetMembership(context.Background(), "m-2"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("error = %v, want not found after delete", err)
	}
}

func TestTransferOwnership(t *testing.T) {
	store := openTestStore(t)
	putTestTenant(t, store, "tenant-1", "acme")
	putTestMembership(t, store, "m-1", "tenant-1", "user-1", domain.RoleOwner)
	putTestMembership(t, store, "m-2", "tenant-1", "user-2", domain.RoleMember)

	if err := store.TransferOwnership(context.Background(), "tenant-1", "user-1", "user-2", testTime.Add(time.Hour)); err != nil {
		t.Fatalf("transfer ownership: %v", err)
	}

	previous, err := store.GetMembershipByUser(context.Background(), "tenant-1", "user-1")
	if err != nil {
		t.Fatalf("get previous owner: %v", err)
	}
	if previous.Role != domain.RoleAdmin {
		t.Fatalf("previous owner role = %q, want admin", previous.Role)
	}
	next, err := store.GetMembershipByUser(context.Background(), "tenant-1", "user-2")
	if err != nil {
		t.Fatalf("get new owner: %v", err)
	}
	if next.Role != domain.RoleOwner {
		t.Fatalf("new owner role = %q", next.Role)
	}

	owners, err := store.CountOwners(context.Background(), "tenant-1")
	if err != nil {
		t.Fatalf("count owners: %v", err)
	}
	if owners != 1 {
		t.Fatalf("owners = %d, want 1", owners)
	}
}

func TestTransferOwnershipRequiresOwner(t *testing.T) {
	store := openTestStore(t)
	putTestTenant(t, store, "tenant-1", "acme")
	putTestMembership(t, store, "m-1", "tenant-1", "user-1", domain.RoleAdmin)
	putTestMembership(t, store, "m-2", "tenant-1", "user-2", domain.RoleMember)

	err := store.TransferOwnership(context.Background(), "tenant-1", "user-1", "user-2", testTime)
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("error = %v, want not found for non-owner source", err)
	}
}

func TestMarkMembershipJoined(t *testing.T) {
	store := openTestStore(t)
	putTestTenant(t, store, "tenant-1", "acme")
	invited := testTime
	err := store.CreateMembership(context.Background(), domain.Membership{
		ID:        "m-1",
		TenantID:  "tenant-1",
		UserID:    "user-1",
		Role:      domain.RoleMember,
		InvitedBy: "user-0",
		InvitedAt: &invited,
		CreatedAt: testTime,
		UpdatedAt: testTime,
	})
	if err != nil {
		t.Fatalf("create pending membership: %v", err)
	}

	joined := testTime.Add(time.Hour)
	if err := store.MarkMembershipJoined(context.Background(), "m-1", joined); err != nil {
		t.Fatalf("mark joined: %v", err)
	}
	found, err := store.GetMembership(context.Background(), "m-1")
	if err != nil {
		t.Fatalf("get membership: %v", err)
	}
	if found.Pending() {
		t.Fatal("membership should no longer be pending")
	}

	// Accepting twice reads as not found via the conditional update.
	if err := store.MarkMembershipJoined(context.Background(), "m-1", joined); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("error = %v, want not found on second accept", err)
	}
}

func TestMembershipsCascadeWithTenant(t *testing.T) {
	store := openTestStore(t)
	putTestTenant(t, store, "tenant-1", "acme")
	putTestMembership(t, store, "m-1", "tenant-1", "user-1", domain.RoleOwner)

	if err := store.DeleteTenant(context.Background(), "tenant-1"); err != nil {
		t.Fatalf("delete tenant: %v", err)
	}
	if _, err := store.GetMembership(context.Background(), "m-1"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("error = %v, want cascade delete", err)
	}
}

func TestListMemberships(t *testing.T) {
	store := openTestStore(t)
	putTestTenant(t, store, "tenant-1", "acme")
	putTestTenant(t, store, "tenant-2", "beta")
	putTestMembership(t, store, "m-1", "tenant-1", "user-1", domain.RoleOwner)
	putTestMembership(t, store, "m-2", "tenant-1", "user-2", domain.RoleMember)
	putTestMembership(t, store, "m-3", "tenant-2", "user-1", domain.RoleOwner)

	byTenant, err := store.ListMembershipsByTenant(context.Background(), "tenant-1")
	if err != nil {
		t.Fatalf("list by tenant: %v", err)
	}
	if len(byTenant) != 2 {
		t.Fatalf("memberships = %d, want 2", len(byTenant))
	}

	byUser, err := store.ListMembershipsByUser(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("list by user: %v", err)
	}
	if len(byUser) != 2 {
		t.Fatalf("memberships = %d, want 2", len(byUser))
	}
}
