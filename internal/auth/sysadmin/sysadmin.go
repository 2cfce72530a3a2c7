// Package sysadmin gates elevated, cross-tenant operator privileges.
package sysadmin

import (
	"strings"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/louisbranch/teamspace/internal/auth/user"
)

// Gate holds the process-wide system administrator allow-list.
//
// The allow-list is the single source of truth for operator privilege: no
// tenant role ever implies system-admin status. Mutations are process-local,
// so horizontally scaled instances converge only through restarts or
// repeated Add calls; admin grants are rare operator actions, and this is a
// documented limitation rather than a correctness concern.
type Gate struct {
	mu     sync.RWMutex
	emails map[string]struct{}
}

type gateEnv struct {
	Admins []string `env:"TEAMSPACE_SYSTEM_ADMINS" envSeparator:","`
}

// NewGate builds a gate seeded with the given admin emails.
func NewGate(seed []string) *Gate {
	gate := &Gate{emails: make(map[string]struct{})}
	for _, email := range seed {
		gate.Add(email)
	}
	return gate
}

// LoadGateFromEnv seeds a gate from TEAMSPACE_SYSTEM_ADMINS.
func LoadGateFromEnv() *Gate {
	var cfg gateEnv
	_ = env.Parse(&cfg)
	return NewGate(cfg.Admins)
}

// IsSystemAdmin reports allow-list membership, case-insensitively.
// Empty input is always false.
func (g *Gate) IsSystemAdmin(email string) bool {
	if g == nil {
		return false
	}
	normalized := strings.ToLower(strings.TrimSpace(email))
	if normalized == "" {
		return false
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.emails[normalized]
	return ok
}

// IsUserSystemAdmin reports whether the given user is a system admin.
//
// Callers pass possibly-absent session-derived users without pre-validating
// them, so a nil user or empty email is false rather than an error.
func (g *Gate) IsUserSystemAdmin(u *user.User) bool {
	if g == nil || u == nil || strings.TrimSpace(u.Email) == "" {
		return false
	}
	return g.IsSystemAdmin(u.Email)
}

// Add inserts an email into the allow-list. Idempotent; stored lowercase.
func (g *Gate) Add(email string) {
	if g == nil {
		return
	}
	normalized := strings.ToLower(strings.TrimSpace(email))
	if normalized == "" {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.emails[normalized] = struct{}{}
}

// Len returns the number of allow-list entries.
func (g *Gate) Len() int {
	if g == nil {
		return 0
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.emails)
}
