package invite

import (
	"crypto/ed25519"
	"testing"
	"time"

	apperrors "github.com/louisbranch/teamspace/internal/platform/errors"
)

func testConfig(t *testing.T) Config {
	t.Helper()
	_, key, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	fixed := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	return Config{
		Issuer:   "teamspace-auth",
		Audience: "teamspace-web",
		Key:      key,
		TTL:      time.Hour,
		Now:      func() time.Time { return fixed },
	}
}

func TestIssueAndValidate(t *testing.T) {
	cfg := testConfig(t)

	grant, jti, expiresAt, err := Issue(cfg, "tenant-1", "m-1", "Alpha@Example.com")
	if err != nil {
		t.Fatalf("issue grant: %v", err)
	}
	if jti == "" {
		t.Fatal("expected jti")
	}
	if !expiresAt.Equal(cfg.Now().Add(cfg.TTL)) {
		t.Fatalf("expires at = %v", expiresAt)
	}

	claims, err := Validate(cfg, grant)
	if err != nil {
		t.Fatalf("validate grant: %v", err)
	}
	if claims.TenantID != "tenant-1" || claims.MembershipID != "m-1" {
		t.Fatalf("unexpected claims %+v", claims)
	}
	if claims.Email != "alpha@example.com" {
		t.Fatalf("email = %q, want lowercase", claims.Email)
	}
	if claims.JWTID != jti {
		t.Fatalf("jti = %q, want %q", claims.JWTID, jti)
	}
}

func TestValidateExpiredGrant(t *testing.T) {
	cfg := testConfig(t)
	grant, _, _, err := Issue(cfg, "tenant-1", "m-1", "alpha@example.com")
	if err != nil {
		t.Fatalf("issue grant: %v", err)
	}

	later := cfg.Now().Add(2 * time.Hour)
	cfg.Now = func() time.Time { return later }
	_, err = Validate(cfg, grant)
	if apperrors.GetCode(err) != apperrors.CodeInviteGrantExpired {
		t.Fatalf("error = %v, want expired", err)
	}
}

func TestValidateWrongKey(t *testing.T) {
	cfg := testConfig(t)
	grant, _, _, err := Issue(cfg, "tenant-1", "m-1", "alpha@example.com")
	if err != nil {
		t.Fatalf("issue grant: %v", err)
	}

	other := testConfig(t)
	_, err = Validate(other, grant)
	if apperrors.GetCode(err) != apperrors.CodeInviteGrantInvalid {
		t.Fatalf("error = %v, want invalid", err)
	}
}

func TestValidateIssuerMismatch(t *testing.T) {
	cfg := testConfig(t)
	grant, _, _, err := Issue(cfg, "tenant-1", "m-1", "alpha@example.com")
	if err != nil {
		t.Fatalf("issue grant: %v", err)
	}

	cfg.Issuer = "someone-else"
	_, err = Validate(cfg, grant)
	if apperrors.GetCode(err) != apperrors.CodeInviteGrantMismatch {
		t.Fatalf("error = %v, want mismatch", err)
	}
}

func TestValidateGarbage(t *testing.T) {
	cfg := testConfig(t)
	for _, grant := range []string{"", "   ", "not-a-jwt", "a.b.c"} {
		_, err := Validate(cfg, grant)
		if apperrors.GetCode(err) != apperrors.CodeInviteGrantInvalid {
			t.Fatalf("grant %q: error = %v, want invalid", grant, err)
		}
	}
}
