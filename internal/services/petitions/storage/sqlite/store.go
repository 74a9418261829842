// Package sqlite provides the SQLite-backed petition lifecycle store.
//
// Every mutating operation runs inside a single transaction that re-reads
// the entity being acted upon and re-validates its precondition before
// writing. That discipline, plus the schema's uniqueness constraints, is the
// engine's only concurrency control; there is no in-process locking.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/quorumhq/petitions/internal/platform/storage/sqlitemigrate"
	"github.com/quorumhq/petitions/internal/services/petitions/storage"
	"github.com/quorumhq/petitions/internal/services/petitions/storage/sqlite/migrations"
	_ "modernc.org/sqlite"
)

// Store persists petition lifecycle state in SQLite.
type Store struct {
	sqlDB *sql.DB
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens a SQLite petition store and applies embedded migrations.
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
	if err := sqlitemigrate.ApplyMigrations(sqlDB, migrations.FS, ""); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// begin starts a transaction with a rollback helper that preserves the cause.
func (s *Store) begin(ctx context.Context, label string) (*sql.Tx, func(error) error, error) {
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("begin %s: %w", label, err)
	}
	rollbackWith := func(cause error) error {
		_ = tx.Rollback()
		return cause
	}
	return tx, rollbackWith, nil
}

// isUniqueViolation reports whether err is a UNIQUE constraint failure. The
// schema's uniqueness constraints backstop every race the transactions
// guard against, so a violation always means the caller raced and lost.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	value := strings.ToLower(err.Error())
	return strings.Contains(value, "unique constraint failed") ||
		strings.Contains(value, "constraint failed: unique")
}

// isBusy reports whether err is lock contention the caller may retry.
func isBusy(err error) bool {
	if err == nil {
		return false
	}
	value := strings.ToLower(err.Error())
	return strings.Contains(value, "sqlite_busy") || strings.Contains(value, "database is locked")
}

// conflictOr maps constraint and contention failures to storage.ErrConflict.
func conflictOr(err error, label string) error {
	if isUniqueViolation(err) || isBusy(err) {
		return fmt.Errorf("%s: %w", label, storage.ErrConflict)
	}
	return fmt.Errorf("%s: %w", label, err)
}

func encodeJSON(value any) (string, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return "", fmt.Errorf("encode json: %w", err)
	}
	return string(raw), nil
}

func decodeJSON(raw string, target any) error {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(raw), target); err != nil {
		return fmt.Errorf("decode json: %w", err)
	}
	return nil
}

// toNullInt maps optional numeric identifiers to nullable columns.
func toNullInt(value *int) sql.NullInt64 {
	if value == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*value), Valid: true}
}

func fromNullInt(value sql.NullInt64) *int {
	if !value.Valid {
		return nil
	}
	v := int(value.Int64)
	return &v
}

// toNullString maps optional display numbers to nullable columns so the
// partial unique index ignores unsubmitted petitions.
func toNullString(value string) sql.NullString {
	if strings.TrimSpace(value) == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: value, Valid: true}
}

func fromNullString(value sql.NullString) string {
	if !value.Valid {
		return ""
	}
	return value.String
}

var _ storage.Store = (*Store)(nil)
