package service

import (
	"context"
	"crypto/ed25519"
	"fmt"
	"testing"
	"time"

	authstorage "github.com/louisbranch/teamspace/internal/auth/storage"
	"github.com/louisbranch/teamspace/internal/auth/sysadmin"
	"github.com/louisbranch/teamspace/internal/auth/user"
	apperrors "github.com/louisbranch/teamspace/internal/platform/errors"
	"github.com/louisbranch/teamspace/internal/tenant/domain"
	"github.com/louisbranch/teamspace/internal/tenant/invite"
	"github.com/louisbranch/teamspace/internal/tenant/storage"
)

type fakeUserStore struct {
	users map[string]user.User
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{users: make(map[string]user.User)}
}

func (s *fakeUserStore) PutUser(_ context.Context, u user.User) error {
	s.users[u.ID] = u
	return nil
}

func (s *fakeUserStore) GetUser(_ context.Context, userID string) (user.User, error) {
	found, ok := s.users[userID]
	if !ok {
		return user.User{}, authstorage.ErrNotFound
	}
	return found, nil
}

func (s *fakeUserStore) GetUserByEmail(_ context.Context, email string) (user.User, error) {
	for _, found := range s.users {
		if found.Email == email {
			return found, nil
		}
	}
	return user.User{}, authstorage.ErrNotFound
}

func (s *fakeUserStore) MarkUserVerified(_ context.Context, userID string, verifiedAt time.Time) error {
	found, ok := s.users[userID]
	if !ok {
		return authstorage.ErrNotFound
	}
	found.VerifiedAt = &verifiedAt
	s.users[userID] = found
	return nil
}

type fakeTenantStore struct {
	tenants map[string]domain.Tenant
}

func newFakeTenantStore() *fakeTenantStore {
	return &fakeTenantStore{tenants: make(map[string]domain.Tenant)}
}

func (s *fakeTenantStore) PutTenant(_ context.Context, tenant domain.Tenant) error {
	for _, existing := range s.tenants {
		if existing.ID == tenant.ID {
			continue
		}
		if existing.Slug == tenant.Slug {
			return storage.ErrSlugTaken
		}
		if tenant.Domain != "" && existing.Domain == tenant.Domain {
			return storage.ErrDomainTaken
		}
	}
	s.tenants[tenant.ID] = tenant
	return nil
}

func (s *fakeTenantStore) GetTenant(_ context.Context, tenantID string) (domain.Tenant, error) {
	tenant, ok := s.tenants[tenantID]
	if !ok {
		return domain.Tenant{}, storage.ErrNotFound
	}
	return tenant, nil
}

func (s *fakeTenantStore) GetTenantBySlug(_ context.Context, slug string) (domain.Tenant, error) {
	for _, tenant := range s.tenants {
		if tenant.Slug == slug {
			return tenant, nil
		}
	}
	return domain.Tenant{}, storage.ErrNotFound
}

func (s *fakeTenantStore) UpdateTenantStatus(_ context.Context, tenantID string, status domain.Status, now time.Time) error {
	tenant, ok := s.tenants[tenantID]
	if !ok {
		return storage.ErrNotFound
	}
	tenant.Status = status
	tenant.UpdatedAt = now
	s.tenants[tenantID] = tenant
	return nil
}

func (s *fakeTenantStore) DeleteTenant(_ context.Context, tenantID string) error {
	if _, ok := s.tenants[tenantID]; !ok {
		return storage.ErrNotFound
	}
	delete(s.tenants, tenantID)
	return nil
}

type fakeMembershipStore struct {
	memberships map[string]domain.Membership
}

func newFakeMembershipStore() *fakeMembershipStore {
	return &fakeMembershipStore{memberships: make(map[string]domain.Membership)}
}

func (s *fakeMembershipStore) CreateMembership(_ context.Context, membership domain.Membership) error {
	for _, existing := range s.memberships {
		if existing.TenantID == membership.TenantID && existing.UserID == membership.UserID {
			return storage.ErrMembershipExists
		}
	}
	s.memberships[membership.ID] = membership
	return nil
}

func (s *fakeMembershipStore) GetMembership(_ context.Context, membershipID string) (domain.Membership, error) {
	membership, ok := s.memberships[membershipID]
	if !ok {
		return domain.Membership{}, storage.ErrNotFound
	}
	return membership, nil
}

func (s *fakeMembershipStore) GetMembershipByUser(_ context.Context, tenantID, userID string) (domain.Membership, error) {
	for _, membership := range s.memberships {
		if membership.TenantID == tenantID && membership.UserID == userID {
			return membership, nil
		}
	}
	return domain.Membership{}, storage.ErrNotFound
}

func (s *fakeMembershipStore) ListMembershipsByTenant(_ context.Context, tenantID string) ([]domain.Membership, error) {
	var result []domain.Membership
	for _, membership := range s.memberships {
		if membership.TenantID == tenantID {
			result = append(result, membership)
		}
	}
	return result, nil
}

func (s *fakeMembershipStore) ListMembershipsByUser(_ context.Context, userID string) ([]domain.Membership, error) {
	var result []domain.Membership
	for _, membership := range s.memberships {
		if membership.UserID == userID {
			result = append(result, membership)
		}
	}
	return result, nil
}

func (s *fakeMembershipStore) countOwners(tenantID string) int {
	count := 0
	for _, membership := range s.memberships {
		if membership.TenantID == tenantID && membership.Role == domain.RoleOwner {
			count++
		}
	}
	return count
}

func (s *fakeMembershipStore) UpdateMembershipRole(_ context.Context, membershipID string, role domain.Role, now time.Time) error {
	membership, ok := s.memberships[membershipID]
	if !ok {
		return storage.ErrNotFound
	}
	if membership.Role == domain.RoleOwner && role != domain.RoleOwner && s.countOwners(membership.TenantID) <= 1 {
		return storage.ErrLastOwner
	}
	membership.Role = role
	membership.UpdatedAt = now
	s.memberships[membershipID] = membership
	return nil
}

func (s *fakeMembershipStore) MarkMembershipJoined(_ context.Context, membershipID string, joinedAt time.Time) error {
	membership, ok := s.memberships[membershipID]
	if !ok || membership.JoinedAt != nil {
		return storage.ErrNotFound
	}
	membership.JoinedAt = &joinedAt
	membership.UpdatedAt = joinedAt
	s.memberships[membershipID] = membership
	return nil
}

func (s *fakeMembershipStore) DeleteMembership(_ context.Context, membershipID string) error {
	membership, ok := s.memberships[membershipID]
	if !ok {
		return storage.ErrNotFound
	}
	if membership.Role == domain.RoleOwner && s.countOwners(membership.TenantID) <= 1 {
		return storage.ErrLastOwner
	}
	delete(s.memberships, membershipID)
	return nil
}

func (s *fakeMembershipStore) TransferOwnership(_ context.Context, tenantID, fromUserID, toUserID string, now time.Time) error {
	var from, to *domain.Membership
	for id := range s.memberships {
		membership := s.memberships[id]
		switch {
		case membership.TenantID == tenantID && membership.UserID == fromUserID:
			from = &membership
		case membership.TenantID == tenantID && membership.UserID == toUserID:
			to = &membership
		}
	}
	if from == nil || to == nil || from.Role != domain.RoleOwner {
		return storage.ErrNotFound
	}
	from.Role = domain.RoleAdmin
	from.UpdatedAt = now
	to.Role = domain.RoleOwner
	to.UpdatedAt = now
	s.memberships[from.ID] = *from
	s.memberships[to.ID] = *to
	return nil
}

func (s *fakeMembershipStore) CountOwners(_ context.Context, tenantID string) (int, error) {
	return s.countOwners(tenantID), nil
}

type testEnv struct {
	svc         *TenantService
	users       *fakeUserStore
	tenants     *fakeTenantStore
	memberships *fakeMembershipStore
	gate        *sysadmin.Gate
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	_, key, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	fixed := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	env := &testEnv{
		users:       newFakeUserStore(),
		tenants:     newFakeTenantStore(),
		memberships: newFakeMembershipStore(),
		gate:        sysadmin.NewGate(nil),
	}
	grantConfig := invite.Config{
		Issuer:   "teamspace-auth",
		Audience: "teamspace-web",
		Key:      key,
		TTL:      time.Hour,
		Now:      func() time.Time { return fixed },
	}
	env.svc = NewTenantService(env.tenants, env.memberships, env.users, env.gate, grantConfig)
	env.svc.clock = func() time.Time { return fixed }
	next := 0
	env.svc.idGenerator = func() (string, error) {
		next++
		return fmt.Sprintf("id-%d", next), nil
	}
	return env
}

func (e *testEnv) seedUser(id, email string) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	e.users.users[id] = user.User{ID: id, Email: email, CreatedAt: now, UpdatedAt: now}
}

func (e *testEnv) seedTenant(id, slug string) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	e.tenants.tenants[id] = domain.Tenant{
		ID: id, Name: "Tenant " + id, Slug: slug,
		Status: domain.StatusActive, Settings: "{}",
		CreatedAt: now, UpdatedAt: now,
	}
}

func (e *testEnv) seedMembership(id, tenantID, userID string, role domain.Role, joined bool) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	membership := domain.Membership{
		ID: id, TenantID: tenantID, UserID: userID, Role: role,
		CreatedAt: now, UpdatedAt: now,
	}
	if joined {
		membership.JoinedAt = &now
	} else {
		membership.InvitedAt = &now
	}
	e.memberships.memberships[id] = membership
}

func assertErrorCode(t *testing.T, err error, want apperrors.Code) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error with code %s", want)
	}
	if got := apperrors.GetCode(err); got != want {
		t.Fatalf("error code = %s, want %s (err: %v)", got, want, err)
	}
}
