// Package store provides the SQLite-backed relational backend for letters.
package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/itsluminous/Letters/internal/backend"
	"github.com/itsluminous/Letters/internal/query"
)

//go:embed schema.sql
var schemaFS embed.FS

// Store provides database operations for letters, contacts and profiles.
type Store struct {
	db     *sql.DB
	dbPath string
	now    func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithNow overrides the clock used for server-assigned timestamps.
func WithNow(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

const defaultSQLiteParams = "?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=ON"

// isSQLiteError checks if err is a sqlite3.Error with a message containing substr.
// Handles both value (sqlite3.Error) and pointer (*sqlite3.Error) forms.
func isSQLiteError(err error, substr string) bool {
	if sqliteErr, ok := asSQLiteError(err); ok {
		return strings.Contains(sqliteErr.Error(), substr)
	}
	return false
}

func asSQLiteError(err error) (sqlite3.Error, bool) {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr, true
	}
	var sqliteErrPtr *sqlite3.Error
	if errors.As(err, &sqliteErrPtr) && sqliteErrPtr != nil {
		return *sqliteErrPtr, true
	}
	return sqlite3.Error{}, false
}

// classifyConstraint converts SQLite constraint failures into validation
// errors carrying the hosted backend's constraint codes. Other errors are
// returned unchanged.
func classifyConstraint(err error, what string) error {
	sqliteErr, ok := asSQLiteError(err)
	if !ok || sqliteErr.Code != sqlite3.ErrConstraint {
		return err
	}
	switch sqliteErr.ExtendedCode {
	case sqlite3.ErrConstraintForeignKey:
		return &backend.Error{Kind: backend.KindValidation, Code: backend.CodeForeignKey,
			Message: what + ": referenced user does not exist", Err: err}
	case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
		return &backend.Error{Kind: backend.KindValidation, Code: backend.CodeUnique,
			Message: what + ": already exists", Err: err}
	default:
		return &backend.Error{Kind: backend.KindValidation, Message: what + ": constraint violated", Err: err}
	}
}

// Open opens or creates the database at the given path.
// Only SQLite is supported; PostgreSQL URLs return an error.
func Open(dbPath string, opts ...Option) (*Store, error) {
	if strings.HasPrefix(dbPath, "postgresql://") || strings.HasPrefix(dbPath, "postgres://") {
		return nil, fmt.Errorf("PostgreSQL is not supported; use a SQLite path or a remote server")
	}

	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+defaultSQLiteParams)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &Store{db: db, dbPath: dbPath, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying database connection for advanced queries.
func (s *Store) DB() *sql.DB {
	return s.db
}

// withTx executes fn within a database transaction. If fn returns an error,
// the transaction is rolled back; otherwise it is committed.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// InitSchema creates all tables if they don't exist.
func (s *Store) InitSchema() error {
	schema, err := schemaFS.ReadFile("schema.sql")
	if err != nil {
		return fmt.Errorf("read schema.sql: %w", err)
	}
	if _, err := s.db.Exec(string(schema)); err != nil {
		return fmt.Errorf("execute schema.sql: %w", err)
	}
	return nil
}

// timestamp returns the current server time in storage format.
func (s *Store) timestamp() string {
	return query.FormatTime(s.now())
}

// Stats holds database statistics.
type Stats struct {
	UserCount    int64
	LetterCount  int64
	UnreadCount  int64
	ContactCount int64
	DatabaseSize int64
}

// GetStats returns statistics about the database.
func (s *Store) GetStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}

	queries := []struct {
		query string
		dest  *int64
	}{
		{"SELECT COUNT(*) FROM user_profiles", &stats.UserCount},
		{"SELECT COUNT(*) FROM letters", &stats.LetterCount},
		{"SELECT COUNT(*) FROM letters WHERE is_read = 0", &stats.UnreadCount},
		{"SELECT COUNT(*) FROM contacts", &stats.ContactCount},
	}

	for _, q := range queries {
		if err := s.db.QueryRowContext(ctx, q.query).Scan(q.dest); err != nil {
			if isSQLiteError(err, "no such table") {
				continue
			}
			return nil, fmt.Errorf("get stats %q: %w", q.query, err)
		}
	}

	if info, err := os.Stat(s.dbPath); err == nil {
		stats.DatabaseSize = info.Size()
	}
	return stats, nil
}
