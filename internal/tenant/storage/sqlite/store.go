// Package sqlite implements tenant persistence over SQLite.
package sqlite

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/louisbranch/teamspace/internal/platform/storage/sqlitemigrate"
	"github.com/louisbranch/teamspace/internal/tenant/storage"
	"github.com/louisbranch/teamspace/internal/tenant/storage/sqlite/migrations"
	_ "modernc.org/sqlite"
)

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

type rowScanner interface {
	Scan(dest ...any) error
}

// Store implements tenant persistence over SQLite.
//
// Tenants and memberships share one file so last-owner checks and the
// mutations they guard run in a single transaction.
type Store struct {
	sqlDB *sql.DB
}

// DB returns the raw database handle for callers sharing the same file.
func (s *Store) DB() *sql.DB {
	if s == nil {
		return nil
	}
	return s.sqlDB
}

// Open opens a tenant SQLite store and applies bundled migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	store := &Store{sqlDB: sqlDB}
	if err := sqlitemigrate.ApplyMigrations(sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return store, nil
}

// Close releases the underlying SQLite database.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// mapConstraintError translates SQLite uniqueness violations into domain
// sentinels the service layer can act on.
func mapConstraintError(err error) error {
	if err == nil {
		return nil
	}
	message := err.Error()
	switch {
	case strings.Contains(message, "tenants.slug"):
		return storage.ErrSlugTaken
	case strings.Contains(message, "tenants.domain"):
		return storage.ErrDomainTaken
	case strings.Contains(message, "tenant_memberships.tenant_id") || strings.Contains(message, "idx_memberships_tenant_user"):
		return storage.ErrMembershipExists
	default:
		return err
	}
}

var _ storage.TenantStore = (*Store)(nil)
var _ storage.MembershipStore = (*Store)(nil)
