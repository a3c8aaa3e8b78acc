// Package sqlite is the default storage backend, built on mattn/go-sqlite3.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"

	"sanitrack/internal/apperr"
	"sanitrack/internal/store"
)

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store implements store.Store on a sqlite database file.
type Store struct {
	db   *sql.DB
	q    querier
	inTx bool
	log  *slog.Logger
}

var _ store.Store = (*Store)(nil)

// Open opens (creating if needed) the database at path and applies the
// schema.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	dsn := path + sep + "_foreign_keys=on&_busy_timeout=5000&_journal_mode=WAL&_txlock=immediate"

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := createTables(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}

	logger.Info("sqlite store ready", "path", path)
	return &Store{db: db, q: db, log: logger}, nil
}

func createTables(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS accounts (
		id TEXT PRIMARY KEY,
		email TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		display_name TEXT NOT NULL,
		role TEXT NOT NULL CHECK(role IN ('citizen', 'worker', 'admin')),
		phone TEXT,
		verified INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		account_id TEXT NOT NULL,
		refresh_token_hash TEXT NOT NULL UNIQUE,
		expires_at INTEGER NOT NULL,
		created_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS reports (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		description TEXT NOT NULL,
		category TEXT NOT NULL CHECK(category IN ('garbage_overflow', 'broken_equipment', 'illegal_dumping', 'blocked_drain', 'other')),
		lng REAL NOT NULL CHECK(lng BETWEEN -180 AND 180),
		lat REAL NOT NULL CHECK(lat BETWEEN -90 AND 90),
		address TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending' CHECK(status IN ('pending', 'assigned', 'in_progress', 'completed', 'rejected')),
		priority TEXT NOT NULL DEFAULT 'medium' CHECK(priority IN ('low', 'medium', 'high', 'emergency')),
		images TEXT NOT NULL DEFAULT '[]',
		owner_account_id TEXT,
		is_anonymous INTEGER NOT NULL DEFAULT 0,
		assigned_worker_id TEXT,
		completed_at INTEGER,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL,
		CHECK(is_anonymous = 0 OR owner_account_id IS NULL)
	);

	CREATE TABLE IF NOT EXISTS emergency_alerts (
		id TEXT PRIMARY KEY,
		message TEXT NOT NULL,
		lng REAL NOT NULL CHECK(lng BETWEEN -180 AND 180),
		lat REAL NOT NULL CHECK(lat BETWEEN -90 AND 90),
		address TEXT NOT NULL,
		severity TEXT NOT NULL DEFAULT 'high' CHECK(severity IN ('medium', 'high', 'critical')),
		status TEXT NOT NULL DEFAULT 'active' CHECK(status IN ('active', 'resolved')),
		images TEXT NOT NULL DEFAULT '[]',
		reporter_account_id TEXT,
		resolved_at INTEGER,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS workers (
		id TEXT PRIMARY KEY,
		account_id TEXT NOT NULL UNIQUE,
		zone TEXT NOT NULL,
		level TEXT NOT NULL DEFAULT 'local' CHECK(level IN ('local', 'state', 'national')),
		jurisdiction TEXT NOT NULL DEFAULT '',
		active_report_ids TEXT NOT NULL DEFAULT '[]',
		completed_report_count INTEGER NOT NULL DEFAULT 0 CHECK(completed_report_count >= 0),
		rating REAL NOT NULL DEFAULT 0 CHECK(rating BETWEEN 0 AND 5),
		status TEXT NOT NULL DEFAULT 'available' CHECK(status IN ('available', 'busy', 'offline')),
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_sessions_account ON sessions(account_id);
	CREATE INDEX IF NOT EXISTS idx_sessions_expires ON sessions(expires_at);
	CREATE INDEX IF NOT EXISTS idx_reports_status ON reports(status, created_at);
	CREATE INDEX IF NOT EXISTS idx_reports_owner ON reports(owner_account_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_reports_worker ON reports(assigned_worker_id, status);
	CREATE INDEX IF NOT EXISTS idx_reports_location ON reports(lat, lng);
	CREATE INDEX IF NOT EXISTS idx_alerts_status ON emergency_alerts(status, severity, created_at);
	CREATE INDEX IF NOT EXISTS idx_alerts_location ON emergency_alerts(lat, lng);
	CREATE INDEX IF NOT EXISTS idx_workers_status ON workers(status, zone);
	`

	_, err := db.Exec(schema)
	return err
}

// RunInTx runs fn inside a single sqlite transaction. Nested calls reuse
// the outer transaction.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context, tx store.Store) error) error {
	if s.inTx {
		return fn(ctx, s)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return apperr.Wrap(err, "begin transaction")
	}
	txStore := &Store{db: s.db, q: tx, inTx: true, log: s.log}

	if err := fn(ctx, txStore); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			s.log.Error("rollback failed", "error", rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return apperr.Wrap(err, "commit transaction")
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	if s.inTx {
		return nil
	}
	return s.db.Close()
}

// translate maps driver errors onto the apperr kinds.
func translate(err error, what string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return apperr.NotFoundf("%s not found", what)
	}
	var se sqlite3.Error
	if errors.As(err, &se) {
		switch se.ExtendedCode {
		case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
			return &apperr.Error{Kind: apperr.Conflict, Message: what + " already exists", Err: err}
		case sqlite3.ErrConstraintCheck, sqlite3.ErrConstraintNotNull:
			return &apperr.Error{Kind: apperr.ValidationFailed, Message: "invalid " + what, Err: err}
		}
	}
	return apperr.Wrap(err, what)
}

func mustAffect(res sql.Result, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return apperr.Wrap(err, what)
	}
	if n == 0 {
		return apperr.NotFoundf("%s not found", what)
	}
	return nil
}

func unixNano(t time.Time) int64 { return t.UnixNano() }

func fromUnixNano(n int64) time.Time { return time.Unix(0, n).UTC() }

func nullTime(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixNano(), Valid: true}
}

func timePtr(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}
	t := fromUnixNano(n.Int64)
	return &t
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func encodeList(list []string) string {
	if list == nil {
		list = []string{}
	}
	b, _ := json.Marshal(list)
	return string(b)
}

func decodeList(raw string) ([]string, error) {
	list := []string{}
	if raw == "" {
		return list, nil
	}
	if err := json.Unmarshal([]byte(raw), &list); err != nil {
		return nil, err
	}
	return list, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
