// Package sqlstore implements the Nutrition Ledger on database/sql.
//
// TWO ENGINES, ONE SCHEMA:
// The default engine is SQLite through modernc.org/sqlite (pure Go, no CGo),
// a single file next to the binary. A DSN starting with postgres:// switches
// to Postgres through github.com/lib/pq. The schema sticks to types both
// engines understand:
//   - ids are TEXT (xid)
//   - dates and times are TEXT in fixed layouts, so ORDER BY is chronological
//   - instants (created_at, run_at) are BIGINT unix seconds
//
// Queries are written with ? placeholders and rebound to $1, $2... for Postgres.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/chuikova-e/nutritioner-bot/internal/repository"
)

var _ repository.Ledger = (*Store)(nil)

type dialect int

const (
	dialectSQLite dialect = iota
	dialectPostgres
)

// Store wraps a sql.DB pool and implements every ledger repository.
type Store struct {
	conn    *sql.DB
	dialect dialect
}

// New opens the ledger and runs migrations.
//
// dsn examples:
//   - "data/nutritioner.db"                     → SQLite file
//   - ":memory:"                                → SQLite in memory (tests)
//   - "postgres://bot:secret@db:5432/nutrition" → Postgres
func New(dsn string) (*Store, error) {
	driver, d := "sqlite", dialectSQLite
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		driver, d = "postgres", dialectPostgres
	}

	conn, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: opening %s database: %w", driver, err)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlstore: pinging %s database: %w", driver, err)
	}

	if d == dialectSQLite {
		// One connection: SQLite allows a single writer anyway, and every
		// ":memory:" connection would otherwise be a separate empty database.
		conn.SetMaxOpenConns(1)

		if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
			conn.Close()
			return nil, fmt.Errorf("sqlstore: setting WAL mode: %w", err)
		}
		if _, err := conn.Exec("PRAGMA busy_timeout=5000"); err != nil {
			conn.Close()
			return nil, fmt.Errorf("sqlstore: setting busy timeout: %w", err)
		}
	}

	s := &Store{conn: conn, dialect: d}

	if err := s.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlstore: running migrations: %w", err)
	}

	return s, nil
}

func (s *Store) Close() error {
	return s.conn.Close()
}

// Ping reports whether the database is reachable. Used by the ops health check.
func (s *Store) Ping(ctx context.Context) error {
	return s.conn.PingContext(ctx)
}

// migrate creates the ledger tables. Every statement is idempotent.
func (s *Store) migrate() error {
	statements := []struct {
		name string
		sql  string
	}{
		{"daily_data", `
			CREATE TABLE IF NOT EXISTS daily_data (
				id           TEXT PRIMARY KEY,
				date         TEXT NOT NULL,
				time         TEXT NOT NULL,
				handle       TEXT NOT NULL,
				narrative    TEXT NOT NULL,
				calories     DOUBLE PRECISION NOT NULL DEFAULT 0,
				commit_token TEXT NOT NULL UNIQUE,
				created_at   BIGINT NOT NULL
			)`},
		{"daily_data handle/date index", `
			CREATE INDEX IF NOT EXISTS idx_daily_data_handle_date ON daily_data(handle, date, time)`},
		{"nutrition_goals", `
			CREATE TABLE IF NOT EXISTS nutrition_goals (
				handle     TEXT PRIMARY KEY,
				goals      TEXT NOT NULL,
				updated_at TEXT NOT NULL
			)`},
		{"weight_goals", `
			CREATE TABLE IF NOT EXISTS weight_goals (
				handle        TEXT PRIMARY KEY,
				target_weight DOUBLE PRECISION NOT NULL,
				updated_at    TEXT NOT NULL
			)`},
		{"weight_history", `
			CREATE TABLE IF NOT EXISTS weight_history (
				id          TEXT PRIMARY KEY,
				handle      TEXT NOT NULL,
				weight      DOUBLE PRECISION NOT NULL,
				measured_at TEXT NOT NULL,
				created_at  BIGINT NOT NULL
			)`},
		{"weight_history handle index", `
			CREATE INDEX IF NOT EXISTS idx_weight_history_handle ON weight_history(handle, measured_at)`},
		{"chat_contacts", `
			CREATE TABLE IF NOT EXISTS chat_contacts (
				handle    TEXT PRIMARY KEY,
				user_id   BIGINT NOT NULL,
				chat_id   BIGINT NOT NULL,
				last_seen BIGINT NOT NULL
			)`},
		{"reminders", `
			CREATE TABLE IF NOT EXISTS reminders (
				id         TEXT PRIMARY KEY,
				handle     TEXT NOT NULL,
				chat_id    BIGINT NOT NULL,
				run_at     BIGINT NOT NULL,
				status     TEXT NOT NULL,
				attempts   INTEGER NOT NULL DEFAULT 0,
				last_error TEXT NOT NULL DEFAULT '',
				claimed_at BIGINT NOT NULL DEFAULT 0
			)`},
		{"reminders due index", `
			CREATE INDEX IF NOT EXISTS idx_reminders_due ON reminders(status, run_at)`},
	}

	for _, st := range statements {
		if _, err := s.conn.Exec(st.sql); err != nil {
			return fmt.Errorf("creating %s: %w", st.name, err)
		}
	}
	return nil
}

// rebind rewrites ? placeholders into $n for Postgres.
func (s *Store) rebind(query string) string {
	if s.dialect != dialectPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// withTx runs fn inside a transaction. fn must only use tx: with SQLite
// there is a single connection and touching s.conn inside fn would block.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}
