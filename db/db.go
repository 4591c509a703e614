package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/mattn/go-sqlite3"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("duplicate value")
	ErrInUse     = errors.New("record is still referenced")
)

// DuplicateError reports which unique column a write collided with.
type DuplicateError struct {
	Field string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("duplicate value for %s", e.Field)
}

func (e *DuplicateError) Is(target error) bool {
	return target == ErrDuplicate
}

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	email TEXT NOT NULL UNIQUE COLLATE NOCASE,
	password_hash TEXT NOT NULL CHECK (password_hash <> ''),
	full_name TEXT NOT NULL,
	role TEXT NOT NULL DEFAULT 'user' CHECK (role IN ('user', 'admin')),
	can_view_expenses INTEGER NOT NULL DEFAULT 1,
	can_view_external_expenses INTEGER NOT NULL DEFAULT 1,
	can_view_vehicles INTEGER NOT NULL DEFAULT 1,
	can_view_users INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS vehicles (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	brand TEXT NOT NULL,
	type TEXT NOT NULL DEFAULT '',
	color TEXT NOT NULL DEFAULT '',
	model TEXT NOT NULL DEFAULT '',
	plates TEXT NOT NULL UNIQUE,
	location TEXT NOT NULL DEFAULT '',
	engine TEXT NOT NULL DEFAULT '',
	serial TEXT NOT NULL UNIQUE,
	eco TEXT NOT NULL DEFAULT '',
	contract TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL DEFAULT '',
	agency TEXT NOT NULL DEFAULT '',
	project TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS expenses (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	vehicle_id INTEGER NOT NULL REFERENCES vehicles(id) ON DELETE RESTRICT,
	folio TEXT NOT NULL DEFAULT '',
	date DATETIME,
	company_name TEXT NOT NULL DEFAULT '',
	bank TEXT NOT NULL DEFAULT '',
	card TEXT NOT NULL DEFAULT '',
	supplier TEXT NOT NULL DEFAULT '',
	concept TEXT NOT NULL,
	reference TEXT NOT NULL DEFAULT '',
	document TEXT NOT NULL DEFAULT '',
	project TEXT NOT NULL DEFAULT '',
	responsible TEXT NOT NULL DEFAULT '',
	transfer TEXT NOT NULL DEFAULT '',
	expense_type TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_expenses_vehicle ON expenses(vehicle_id);

CREATE TABLE IF NOT EXISTS external_expenses (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	folio TEXT NOT NULL DEFAULT '',
	date DATETIME,
	company_name TEXT NOT NULL DEFAULT '',
	bank TEXT NOT NULL DEFAULT '',
	card TEXT NOT NULL DEFAULT '',
	supplier TEXT NOT NULL DEFAULT '',
	concept TEXT NOT NULL,
	reference TEXT NOT NULL DEFAULT '',
	document TEXT NOT NULL DEFAULT '',
	project TEXT NOT NULL DEFAULT '',
	responsible TEXT NOT NULL DEFAULT '',
	transfer TEXT NOT NULL DEFAULT '',
	expense_type TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

// Store is the SQLite-backed credential store and resource repository.
type Store struct {
	db *sql.DB
}

// New wraps an already opened database without touching its schema.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Open opens (or creates) the database at path and applies the schema.
// ":memory:" gives a private in-memory database.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if path == ":memory:" {
		// every pooled connection would otherwise see its own empty database
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating tables: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// translateErr maps sqlite constraint violations onto the package errors.
func translateErr(err error) error {
	var se sqlite3.Error
	if !errors.As(err, &se) {
		return err
	}
	switch se.ExtendedCode {
	case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
		return &DuplicateError{Field: violatedColumn(se.Error())}
	case sqlite3.ErrConstraintForeignKey:
		return ErrInUse
	}
	return err
}

// violatedColumn extracts "email" from "UNIQUE constraint failed: users.email".
func violatedColumn(msg string) string {
	i := strings.LastIndex(msg, ": ")
	if i < 0 {
		return ""
	}
	col := msg[i+2:]
	if j := strings.LastIndex(col, "."); j >= 0 {
		col = col[j+1:]
	}
	return col
}

func likePattern(q string) string {
	return "%" + strings.TrimSpace(q) + "%"
}

func checkAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
