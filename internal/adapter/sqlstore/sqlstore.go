// Package sqlstore implements the domain repositories on PostgreSQL or SQLite
// through sqlx.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// Dialect selects the SQL flavour used for migrations and backups.
type Dialect string

const (
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite"
)

// DB wraps a *sqlx.DB and implements domain repository interfaces.
type DB struct {
	sql     *sqlx.DB
	dialect Dialect
	log     *zap.SugaredLogger
}

// ParseDSN maps a DATABASE_URL to a dialect and driver data source.
// Postgres URLs pass through; "sqlite:PATH" opens a SQLite file, and
// "sqlite::memory:" an in-memory database.
func ParseDSN(dsn string) (Dialect, string, error) {
	switch {
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return Postgres, dsn, nil
	case strings.HasPrefix(dsn, "sqlite:"):
		path := strings.TrimPrefix(dsn, "sqlite:")
		if path == "" {
			return "", "", fmt.Errorf("sqlite dsn %q has no path", dsn)
		}
		return SQLite, path, nil
	}
	return "", "", fmt.Errorf("unsupported database url %q", dsn)
}

// Open connects, pings, and runs migrations.
func Open(ctx context.Context, dsn string, log *zap.SugaredLogger) (*DB, error) {
	dialect, source, err := ParseDSN(dsn)
	if err != nil {
		return nil, err
	}

	var s *sqlx.DB
	switch dialect {
	case Postgres:
		s, err = sqlx.Open("postgres", source)
		if err != nil {
			return nil, err
		}
		s.SetMaxOpenConns(10)
		s.SetMaxIdleConns(5)
		s.SetConnMaxLifetime(5 * time.Minute)
	case SQLite:
		raw, err := sql.Open("sqlite", sqliteSource(source))
		if err != nil {
			return nil, err
		}
		// One connection keeps writes serialised and an in-memory
		// database alive for the life of the pool.
		raw.SetMaxOpenConns(1)
		raw.SetMaxIdleConns(1)
		raw.SetConnMaxLifetime(0)
		s = sqlx.NewDb(raw, "sqlite3")
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := s.PingContext(pingCtx); err != nil {
		_ = s.Close()
		return nil, err
	}

	d := New(s, dialect, log)
	if err := d.migrate(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	log.Infow("database ready", "dialect", dialect)
	return d, nil
}

// New wraps an already opened handle without migrating it.
func New(s *sqlx.DB, dialect Dialect, log *zap.SugaredLogger) *DB {
	return &DB{sql: s, dialect: dialect, log: log}
}

// Close closes the underlying database connection.
func (d *DB) Close() error {
	return d.sql.Close()
}

// Dialect reports which database the store talks to.
func (d *DB) Dialect() Dialect {
	return d.dialect
}

func sqliteSource(path string) string {
	if strings.Contains(path, "?") {
		return path
	}
	return path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}

func (d *DB) migrate(ctx context.Context) error {
	stmts := postgresSchema
	if d.dialect == SQLite {
		stmts = sqliteSchema
	}
	for _, stmt := range stmts {
		if _, err := d.sql.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

var postgresSchema = []string{
	"CREATE TABLE IF NOT EXISTS users (id BIGSERIAL PRIMARY KEY, email TEXT UNIQUE NOT NULL, password_hash TEXT NOT NULL, created_at TIMESTAMPTZ NOT NULL);",
	"CREATE TABLE IF NOT EXISTS sessions (token TEXT PRIMARY KEY, user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE, user_agent TEXT NOT NULL DEFAULT '', ip TEXT NOT NULL DEFAULT '', expires_at TIMESTAMPTZ NOT NULL, created_at TIMESTAMPTZ NOT NULL);",
	"CREATE INDEX IF NOT EXISTS idx_sessions_expires_at ON sessions(expires_at);",
	"CREATE INDEX IF NOT EXISTS idx_sessions_user_id ON sessions(user_id);",
	"CREATE TABLE IF NOT EXISTS weight_entries (id BIGSERIAL PRIMARY KEY, user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE, entry_date TEXT NOT NULL, weight_kg DOUBLE PRECISION NOT NULL CHECK (weight_kg >= 3 AND weight_kg <= 150), notes TEXT, created_at TIMESTAMPTZ NOT NULL, UNIQUE (user_id, entry_date));",
}

var sqliteSchema = []string{
	"CREATE TABLE IF NOT EXISTS users (id INTEGER PRIMARY KEY AUTOINCREMENT, email TEXT UNIQUE NOT NULL, password_hash TEXT NOT NULL, created_at DATETIME NOT NULL);",
	"CREATE TABLE IF NOT EXISTS sessions (token TEXT PRIMARY KEY, user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE, user_agent TEXT NOT NULL DEFAULT '', ip TEXT NOT NULL DEFAULT '', expires_at DATETIME NOT NULL, created_at DATETIME NOT NULL);",
	"CREATE INDEX IF NOT EXISTS idx_sessions_expires_at ON sessions(expires_at);",
	"CREATE INDEX IF NOT EXISTS idx_sessions_user_id ON sessions(user_id);",
	"CREATE TABLE IF NOT EXISTS weight_entries (id INTEGER PRIMARY KEY AUTOINCREMENT, user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE, entry_date TEXT NOT NULL, weight_kg REAL NOT NULL CHECK (weight_kg >= 3 AND weight_kg <= 150), notes TEXT, created_at DATETIME NOT NULL, UNIQUE (user_id, entry_date));",
}
