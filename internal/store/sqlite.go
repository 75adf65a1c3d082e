package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	_ "modernc.org/sqlite"

	"github.com/JonMunkholm/persons/internal/core"
)

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS persons (
		id         INTEGER PRIMARY KEY,
		date       TEXT,
		first_name TEXT NOT NULL DEFAULT '',
		last_name  TEXT NOT NULL DEFAULT '',
		sur_name   TEXT NOT NULL DEFAULT '',
		city       TEXT NOT NULL DEFAULT '',
		country    TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS idx_persons_date ON persons (date)`,
}

const sqliteInsert = `INSERT INTO persons (` + personColumns + `) VALUES (?1, ?2, ?3, ?4, ?5, ?6)`

// SQLite stores persons in an embedded database file. Dates are kept as
// YYYY-MM-DD text so they sort and compare correctly.
type SQLite struct {
	conn *sql.DB
}

// OpenSQLite opens (or creates) the database file at path.
func OpenSQLite(path string) (*SQLite, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	conn, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One writer; a single connection avoids SQLITE_BUSY.
	conn.SetMaxOpenConns(1)

	slog.Info("connected to database", "driver", "sqlite", "path", path)
	return &SQLite{conn: conn}, nil
}

// EnsureSchema creates the persons table if it does not exist.
func (s *SQLite) EnsureSchema(ctx context.Context) error {
	for _, stmt := range sqliteSchema {
		if _, err := s.conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}
	return nil
}

// WriteBatch inserts batch in one transaction through a prepared statement.
func (s *SQLite) WriteBatch(ctx context.Context, batch []core.Record) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, sqliteInsert)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, r := range batch {
		if _, err := stmt.ExecContext(ctx, sqliteDate(r.Date), r.FirstName, r.LastName, r.SurName, r.City, r.Country); err != nil {
			return fmt.Errorf("insert row %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Source returns the persons matching f, ordered by id.
func (s *SQLite) Source(f core.Filter) core.RecordSource {
	return &sqliteSource{conn: s.conn, filter: f}
}

// Clear removes every person.
func (s *SQLite) Clear(ctx context.Context) error {
	if _, err := s.conn.ExecContext(ctx, "DELETE FROM persons"); err != nil {
		return fmt.Errorf("delete persons: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *SQLite) Close() error {
	return s.conn.Close()
}

type sqliteSource struct {
	conn   *sql.DB
	filter core.Filter
}

func (s *sqliteSource) Count(ctx context.Context) (int64, error) {
	query, args := sqliteDialect.countQuery(s.filter)
	var n int64
	if err := s.conn.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count persons: %w", err)
	}
	return n, nil
}

func (s *sqliteSource) Each(ctx context.Context, offset, limit int64, fn func(core.Record) error) error {
	query, args := sqliteDialect.selectQuery(s.filter, offset, limit)
	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("query persons: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var r core.Record
		var d sql.NullString
		if err := rows.Scan(&d, &r.FirstName, &r.LastName, &r.SurName, &r.City, &r.Country); err != nil {
			return fmt.Errorf("scan person: %w", err)
		}
		if r.Date, err = parseSQLiteDate(d); err != nil {
			return err
		}
		if err := fn(r); err != nil {
			return err
		}
	}
	return rows.Err()
}

func sqliteDate(d pgtype.Date) any {
	if !d.Valid {
		return nil
	}
	return d.Time.Format(core.DateLayout)
}

func parseSQLiteDate(s sql.NullString) (pgtype.Date, error) {
	if !s.Valid || s.String == "" {
		return pgtype.Date{}, nil
	}
	t, err := time.Parse(core.DateLayout, s.String)
	if err != nil {
		return pgtype.Date{}, fmt.Errorf("stored date %q: %w", s.String, err)
	}
	return pgtype.Date{Time: t, Valid: true}, nil
}
