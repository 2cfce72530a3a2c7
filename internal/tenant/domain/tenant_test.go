package domain

import (
	"testing"
	"time"

	apperrors "github.com/louisbranch/teamspace/internal/platform/errors"
)

func TestCreateTenant(t *testing.T) {
	fixed := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	created, err := CreateTenant(
		CreateTenantInput{Name: "  Acme Corp  "},
		func() time.Time { return fixed },
		func() (string, error) { return "tenant-1", nil },
	)
	if err != nil {
		t.Fatalf("create tenant: %v", err)
	}
	if created.Name != "Acme Corp" {
		t.Fatalf("name = %q", created.Name)
	}
	if created.Slug != "acme-corp" {
		t.Fatalf("slug = %q, want derived slug", created.Slug)
	}
	if created.Status != StatusActive {
		t.Fatalf("status = %q", created.Status)
	}
	if !created.CreatedAt.Equal(fixed) {
		t.Fatalf("created at = %v", created.CreatedAt)
	}
}

func TestCreateTenantEmptyName(t *testing.T) {
	_, err := CreateTenant(CreateTenantInput{Name: "   "}, nil, nil)
	if apperrors.GetCode(err) != apperrors.CodeTenantNameEmpty {
		t.Fatalf("error = %v, want name empty", err)
	}
}

func TestValidateSlug(t *testing.T) {
	for _, slug := range []string{"acme", "acme-corp", "a", "a1-b2"} {
		if err := ValidateSlug(slug); err != nil {
			t.Fatalf("slug %q rejected: %v", slug, err)
		}
	}
	for _, slug := range []string{"", "Acme", "-acme", "acme-", "ac me", "acme_corp"} {
		err := ValidateSlug(slug)
		if apperrors.GetCode(err) != apperrors.CodeTenantSlugInvalid {
			t.Fatalf("slug %q: error = %v, want invalid slug", slug, err)
		}
	}
}

func TestSlugFromName(t *testing.T) {
	cases := map[string]string{
		"Acme Corp":        "acme-corp",
		"  Spaced   Out  ": "spaced-out",
		"Already-Fine":     "already-fine",
		"Symbols & Co.":    "symbols-co",
	}
	for name, want := range cases {
		if got := SlugFromName(name); got != want {
			t.Fatalf("SlugFromName(%q) = %q, want %q", name, got, want)
		}
	}
}

func TestParseStatus(t *testing.T) {
	if _, err := ParseStatus("active"); err != nil {
		t.Fatalf("parse active: %v", err)
	}
	if _, err := ParseStatus("suspended"); err != nil {
		t.Fatalf("parse suspended: %v", err)
	}
	_, err := ParseStatus("deleted")
	if apperrors.GetCode(err) != apperrors.CodeTenantInvalidStatus {
		t.Fatalf("error = %v, want invalid status", err)
	}
}

func TestMembershipPending(t *testing.T) {
	m := Membership{ID: "m-1", TenantID: "t-1", UserID: "u-1", Role: RoleMember}
	if !m.Pending() {
		t.Fatal("membership without joined timestamp should be pending")
	}
	joined := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	m.JoinedAt = &joined
	if m.Pending() {
		t.Fatal("joined membership should not be pending")
	}
}
