package domain

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	apperrors "github.com/louisbranch/teamspace/internal/platform/errors"
	"github.com/louisbranch/teamspace/internal/platform/id"
)

// Status is a tenant lifecycle state.
type Status string

const (
	StatusActive    Status = "active"
	StatusSuspended Status = "suspended"
)

// ParseStatus validates a status string.
func ParseStatus(value string) (Status, error) {
	switch Status(value) {
	case StatusActive, StatusSuspended:
		return Status(value), nil
	default:
		return "", apperrors.WithMetadata(
			apperrors.CodeTenantInvalidStatus,
			"invalid tenant status",
			map[string]string{"status": value},
		)
	}
}

var slugPattern = regexp.MustCompile(`^[a-z0-9](?:[a-z0-9-]{0,61}[a-z0-9])?$`)

// Tenant is an isolated organizational workspace.
//
// Slug is the URL-safe unique handle. Domain is an optional custom domain,
// unique when set. Settings is an opaque JSON blob owned by callers.
type Tenant struct {
	ID        string
	Name      string
	Slug      string
	Domain    string
	Status    Status
	Settings  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CreateTenantInput describes the metadata needed to create a tenant.
type CreateTenantInput struct {
	Name   string
	Slug   string
	Domain string
}

// ValidateSlug checks a slug is lowercase, URL-safe, and bounded.
func ValidateSlug(slug string) error {
	if !slugPattern.MatchString(slug) {
		return apperrors.WithMetadata(
			apperrors.CodeTenantSlugInvalid,
			"slug must be lowercase letters, digits, and hyphens",
			map[string]string{"slug": slug},
		)
	}
	return nil
}

// NormalizeCreateTenantInput trims input and derives a slug from the name
// when none was given.
func NormalizeCreateTenantInput(input CreateTenantInput) (CreateTenantInput, error) {
	input.Name = strings.TrimSpace(input.Name)
	if input.Name == "" {
		return CreateTenantInput{}, apperrors.New(apperrors.CodeTenantNameEmpty, "tenant name is required")
	}
	input.Slug = strings.ToLower(strings.TrimSpace(input.Slug))
	if input.Slug == "" {
		input.Slug = SlugFromName(input.Name)
	}
	if err := ValidateSlug(input.Slug); err != nil {
		return CreateTenantInput{}, err
	}
	input.Domain = strings.ToLower(strings.TrimSpace(input.Domain))
	return input, nil
}

// SlugFromName derives a URL-safe slug from a display name.
func SlugFromName(name string) string {
	var b strings.Builder
	lastHyphen := true
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastHyphen = false
		default:
			if !lastHyphen {
				b.WriteRune('-')
				lastHyphen = true
			}
		}
	}
	slug := strings.Trim(b.String(), "-")
	if len(slug) > 63 {
		slug = strings.Trim(slug[:63], "-")
	}
	return slug
}

// CreateTenant creates a tenant record from validated input.
func CreateTenant(input CreateTenantInput, now func() time.Time, idGenerator func() (string, error)) (Tenant, error) {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}

	normalized, err := NormalizeCreateTenantInput(input)
	if err != nil {
		return Tenant{}, err
	}
	tenantID, err := idGenerator()
	if err != nil {
		return Tenant{}, fmt.Errorf("generate tenant id: %w", err)
	}

	createdAt := now().UTC()
	return Tenant{
		ID:        tenantID,
		Name:      normalized.Name,
		Slug:      normalized.Slug,
		Domain:    normalized.Domain,
		Status:    StatusActive,
		Settings:  "{}",
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}, nil
}
