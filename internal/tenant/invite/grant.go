// Package invite issues and verifies signed tenant invitation grants.
//
// A grant is an EdDSA-signed JWT binding one invitation (tenant, membership,
// email) to an expiry. The signing key never leaves the issuing service;
// verification needs only the public key.
package invite

import (
	"crypto/ed25519"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/golang-jwt/jwt/v5"
	apperrors "github.com/louisbranch/teamspace/internal/platform/errors"
	"github.com/louisbranch/teamspace/internal/platform/id"
)

// grantEnv holds raw env values before post-parse validation.
type grantEnv struct {
	Issuer     string        `env:"TEAMSPACE_INVITE_GRANT_ISSUER"      envDefault:"teamspace-auth"`
	Audience   string        `env:"TEAMSPACE_INVITE_GRANT_AUDIENCE"    envDefault:"teamspace-web"`
	PrivateKey string        `env:"TEAMSPACE_INVITE_GRANT_PRIVATE_KEY"`
	TTL        time.Duration `env:"TEAMSPACE_INVITE_GRANT_TTL"         envDefault:"168h"`
}

// Config defines how invite grants are signed and verified.
type Config struct {
	Issuer   string
	Audience string
	Key      ed25519.PrivateKey
	TTL      time.Duration
	Now      func() time.Time
}

// Claims captures validated invite grant claims.
type Claims struct {
	JWTID        string
	TenantID     string
	MembershipID string
	Email        string
	ExpiresAt    time.Time
}

// grantClaims is the internal claims type used for JWT signing and parsing.
type grantClaims struct {
	jwt.RegisteredClaims
	TenantID     string `json:"tenant_id"`
	MembershipID string `json:"membership_id"`
	Email        string `json:"email"`
}

// LoadConfigFromEnv reads invite grant configuration.
//
// The private key is a base64-encoded ed25519 private key; the invite-key
// tool generates one.
func LoadConfigFromEnv(now func() time.Time) (Config, error) {
	var raw grantEnv
	if err := env.Parse(&raw); err != nil {
		return Config{}, fmt.Errorf("parse invite grant env: %w", err)
	}
	privateKey := strings.TrimSpace(raw.PrivateKey)
	if privateKey == "" {
		return Config{}, fmt.Errorf("TEAMSPACE_INVITE_GRANT_PRIVATE_KEY is required")
	}
	keyBytes, err := decodeBase64(privateKey)
	if err != nil {
		return Config{}, fmt.Errorf("decode invite grant private key: %w", err)
	}
	if len(keyBytes) != ed25519.PrivateKeySize {
		return Config{}, fmt.Errorf("invite grant private key must be %d bytes", ed25519.PrivateKeySize)
	}
	if raw.TTL <= 0 {
		return Config{}, fmt.Errorf("invite grant ttl must be positive")
	}
	if now == nil {
		now = time.Now
	}
	return Config{
		Issuer:   strings.TrimSpace(raw.Issuer),
		Audience: strings.TrimSpace(raw.Audience),
		Key:      ed25519.PrivateKey(keyBytes),
		TTL:      raw.TTL,
		Now:      now,
	}, nil
}

// Issue signs a grant for one pending membership.
func Issue(cfg Config, tenantID, membershipID, email string) (grant string, jti string, expiresAt time.Time, err error) {
	if cfg.Issuer == "" || cfg.Audience == "" || len(cfg.Key) != ed25519.PrivateKeySize {
		return "", "", time.Time{}, errors.New("invite grant signer is not configured")
	}
	if strings.TrimSpace(tenantID) == "" || strings.TrimSpace(membershipID) == "" || strings.TrimSpace(email) == "" {
		return "", "", time.Time{}, errors.New("tenant id, membership id, and email are required")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	jti, err = id.NewID()
	if err != nil {
		return "", "", time.Time{}, fmt.Errorf("generate grant id: %w", err)
	}
	now := cfg.Now().UTC()
	expiresAt = now.Add(cfg.TTL)

	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, grantClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    cfg.Issuer,
			Audience:  jwt.ClaimStrings{cfg.Audience},
			ID:        jti,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		TenantID:     tenantID,
		MembershipID: membershipID,
		Email:        strings.ToLower(email),
	})
	grant, err = token.SignedString(cfg.Key)
	if err != nil {
		return "", "", time.Time{}, fmt.Errorf("sign invite grant: %w", err)
	}
	return grant, jti, expiresAt, nil
}

// Validate verifies a grant token's signature and claims.
func Validate(cfg Config, grant string) (Claims, error) {
	grant = strings.TrimSpace(grant)
	if grant == "" {
		return Claims{}, apperrors.New(apperrors.CodeInviteGrantInvalid, "invite grant is required")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Issuer == "" || cfg.Audience == "" || len(cfg.Key) != ed25519.PrivateKeySize {
		return Claims{}, errors.New("invite grant verifier is not configured")
	}

	var parsed grantClaims
	_, err := jwt.ParseWithClaims(grant, &parsed, func(token *jwt.Token) (any, error) {
		return cfg.Key.Public(), nil
	},
		jwt.WithValidMethods([]string{"EdDSA"}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return Claims{}, mapJWTError(err)
	}

	if parsed.Issuer == "" || parsed.Issuer != cfg.Issuer {
		return Claims{}, apperrors.WithMetadata(
			apperrors.CodeInviteGrantMismatch,
			"invite grant issuer mismatch",
			map[string]string{"field": "issuer"},
		)
	}
	if !audienceContains(parsed.Audience, cfg.Audience) {
		return Claims{}, apperrors.WithMetadata(
			apperrors.CodeInviteGrantMismatch,
			"invite grant audience mismatch",
			map[string]string{"field": "audience"},
		)
	}
	if parsed.ID == "" {
		return Claims{}, apperrors.New(apperrors.CodeInviteGrantInvalid, "invite grant jti is required")
	}
	if parsed.ExpiresAt == nil {
		return Claims{}, apperrors.New(apperrors.CodeInviteGrantInvalid, "invite grant exp is required")
	}
	now := cfg.Now().UTC()
	exp := parsed.ExpiresAt.Time.UTC()
	if !exp.After(now) {
		return Claims{}, apperrors.New(apperrors.CodeInviteGrantExpired, "invite grant is expired")
	}
	if strings.TrimSpace(parsed.TenantID) == "" || strings.TrimSpace(parsed.MembershipID) == "" {
		return Claims{}, apperrors.New(apperrors.CodeInviteGrantInvalid, "invite grant subject is incomplete")
	}

	return Claims{
		JWTID:        parsed.ID,
		TenantID:     parsed.TenantID,
		MembershipID: parsed.MembershipID,
		Email:        parsed.Email,
		ExpiresAt:    exp,
	}, nil
}

// mapJWTError translates jwt library errors to application errors.
func mapJWTError(err error) error {
	if errors.Is(err, jwt.ErrTokenSignatureInvalid) || errors.Is(err, jwt.ErrEd25519Verification) {
		return apperrors.New(apperrors.CodeInviteGrantInvalid, "invite grant signature is invalid")
	}
	if errors.Is(err, jwt.ErrTokenUnverifiable) {
		return apperrors.New(apperrors.CodeInviteGrantInvalid, "invite grant alg is invalid")
	}
	return apperrors.New(apperrors.CodeInviteGrantInvalid, "invite grant is invalid")
}

func audienceContains(aud jwt.ClaimStrings, value string) bool {
	for _, item := range aud {
		if item == value {
			return true
		}
	}
	return false
}

func decodeBase64(value string) ([]byte, error) {
	if value == "" {
		return nil, errors.New("empty base64 value")
	}
	decoded, err := base64.RawStdEncoding.DecodeString(value)
	if err == nil {
		return decoded, nil
	}
	return base64.StdEncoding.DecodeString(value)
}
