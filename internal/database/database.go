package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"venuepark/internal/repository"

	"github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

// DB is the SQLite-backed repository.Store.
type DB struct {
	*sql.DB
	path   string
	logger *zerolog.Logger
}

var _ repository.Store = (*DB)(nil)

// NewDB opens the database at path and creates tables if they don't exist.
func NewDB(path string, logger *zerolog.Logger) (*DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// _txlock=immediate makes every BeginTx take the write lock up front, so
	// a read inside a transaction cannot be invalidated by another writer
	// before the same transaction writes.
	dsn := "file:" + path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_txlock=immediate&_foreign_keys=1"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	instance := &DB{DB: db, path: path, logger: logger}
	if err := instance.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	logger.Info().Str("path", path).Msg("Database initialized")
	return instance, nil
}

// Path returns the database file location.
func (db *DB) Path() string { return db.path }

func (db *DB) Ping(ctx context.Context) error {
	return db.PingContext(ctx)
}

func (db *DB) createTables() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS venues (
			id TEXT PRIMARY KEY,
			name TEXT UNIQUE NOT NULL,
			type TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			location TEXT NOT NULL DEFAULT '',
			open_time TEXT NOT NULL,
			close_time TEXT NOT NULL,
			slot_duration INTEGER NOT NULL,
			price REAL NOT NULL DEFAULT 0,
			price_unit TEXT NOT NULL DEFAULT '',
			need_approval BOOLEAN NOT NULL DEFAULT 0,
			min_cancel_hours INTEGER,
			enabled BOOLEAN NOT NULL DEFAULT 1,
			create_time INTEGER NOT NULL,
			update_time INTEGER NOT NULL,
			seed_name TEXT UNIQUE,
			admin_modified BOOLEAN NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS bookings (
			id TEXT PRIMARY KEY,
			owner_id TEXT NOT NULL,
			venue_id TEXT NOT NULL,
			venue_name TEXT NOT NULL,
			venue_type TEXT NOT NULL,
			date TEXT NOT NULL,
			start_time TEXT NOT NULL,
			end_time TEXT NOT NULL,
			status TEXT NOT NULL,
			user_name TEXT NOT NULL,
			user_phone TEXT NOT NULL,
			remark TEXT NOT NULL DEFAULT '',
			cancel_reason TEXT NOT NULL DEFAULT '',
			create_time INTEGER NOT NULL,
			update_time INTEGER NOT NULL
		)`,
		// At most one active booking per slot, whatever the caller does.
		`CREATE UNIQUE INDEX IF NOT EXISTS ux_bookings_active_slot
			ON bookings(venue_id, date, start_time)
			WHERE status IN ('pending', 'confirmed')`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_owner ON bookings(owner_id, create_time)`,
		`CREATE TABLE IF NOT EXISTS parking_records (
			id TEXT PRIMARY KEY,
			owner_id TEXT NOT NULL,
			plate_number TEXT NOT NULL,
			type TEXT NOT NULL,
			purpose TEXT NOT NULL DEFAULT '',
			expected_duration INTEGER NOT NULL DEFAULT 0,
			reserve_date TEXT NOT NULL DEFAULT '',
			reserve_start_time TEXT NOT NULL DEFAULT '',
			reserve_end_time TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			entry_time INTEGER,
			exit_time INTEGER,
			duration INTEGER,
			qr_code TEXT NOT NULL DEFAULT '',
			create_time INTEGER NOT NULL,
			update_time INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_parking_reserve ON parking_records(type, reserve_date, status)`,
		`CREATE INDEX IF NOT EXISTS idx_parking_owner ON parking_records(owner_id, create_time)`,
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			nick_name TEXT NOT NULL DEFAULT '',
			avatar_url TEXT NOT NULL DEFAULT '',
			phone TEXT NOT NULL DEFAULT '',
			is_admin BOOLEAN NOT NULL DEFAULT 0,
			create_time INTEGER NOT NULL,
			update_time INTEGER NOT NULL,
			last_login_time INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS parking_config (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			total_spaces INTEGER NOT NULL,
			update_time INTEGER NOT NULL
		)`,
	}

	for _, q := range queries {
		if _, err := db.Exec(q); err != nil {
			return err
		}
	}
	return nil
}

// withTx runs fn in a write transaction and commits when fn returns nil.
func (db *DB) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}

func nullMillis(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixMilli(), Valid: true}
}

func timePtr(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}
	t := time.UnixMilli(n.Int64)
	return &t
}

func intPtr(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}
