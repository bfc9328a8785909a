// Package sqlitestore keeps badge records and the audit trail in a single
// SQLite file, for deployments without postgres.
package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/filiksyos/ghostmrr/internal/domain"
)

const (
	defaultDBFile    = "ghostmrr.db"
	maxBusyTimeoutMs = 5000
	// Fixed width so text order is time order.
	timeLayout       = "2006-01-02T15:04:05.000000000Z07:00"
)

// Store owns the database handle. A single connection serializes every
// transaction, which makes lookup-then-write atomic per key.
type Store struct {
	db   *sql.DB
	file string
}

func Open(filePath string) (*Store, error) {
	if filePath == "" {
		filePath = defaultDBFile
	}
	absPath, err := filepath.Abs(filePath)
	if err != nil {
		return nil, fmt.Errorf("resolve db path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s", filepath.Clean(absPath)))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if _, err := db.Exec(fmt.Sprintf("PRAGMA busy_timeout=%d", maxBusyTimeoutMs)); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	s := &Store{db: db, file: absPath}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Path() string {
	return s.file
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Badges() *BadgeRepository {
	return &BadgeRepository{db: s.db}
}

func (s *Store) Audit() *AuditLog {
	return &AuditLog{db: s.db}
}

func (s *Store) ensureSchema() error {
	const schema = `
CREATE TABLE IF NOT EXISTS badges (
	id TEXT PRIMARY KEY,
	did TEXT NOT NULL,
	account_hash TEXT,
	mrr INTEGER NOT NULL CHECK (mrr >= 0),
	customers INTEGER NOT NULL CHECK (customers >= 0),
	tier TEXT NOT NULL,
	public_key TEXT NOT NULL,
	signature TEXT NOT NULL,
	signed_at TEXT NOT NULL,
	raw_timestamp TEXT NOT NULL,
	display_name TEXT,
	reveal_exact INTEGER NOT NULL DEFAULT 0,
	joined_groups TEXT NOT NULL DEFAULT '[]',
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS badges_account_hash_key ON badges (account_hash) WHERE account_hash IS NOT NULL;
CREATE UNIQUE INDEX IF NOT EXISTS badges_legacy_did_key ON badges (did) WHERE account_hash IS NULL;
CREATE INDEX IF NOT EXISTS badges_did_idx ON badges (did);

CREATE TABLE IF NOT EXISTS audit_events (
	id TEXT PRIMARY KEY,
	seq INTEGER NOT NULL UNIQUE,
	action TEXT NOT NULL,
	outcome TEXT NOT NULL,
	did TEXT NOT NULL,
	key_kind TEXT NOT NULL,
	resolution TEXT NOT NULL,
	reason TEXT NOT NULL,
	client_hash TEXT NOT NULL,
	recorded_at TEXT NOT NULL,
	prev_hash TEXT NOT NULL,
	hash TEXT NOT NULL
);`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// inTx runs fn in a transaction. Errors returned by fn are passed through
// untouched; driver failures are reported as storage unavailability.
func inTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return storageErr(err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return storageErr(err)
	}
	return nil
}

func storageErr(err error) error {
	if err == nil || errors.Is(err, domain.ErrStorageUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %w", domain.ErrStorageUnavailable, err)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(value string) (time.Time, error) {
	return time.Parse(timeLayout, value)
}

func nullString(value string) sql.NullString {
	return sql.NullString{String: value, Valid: value != ""}
}
