// Package store persists the gateway's core state: API keys, trusted
// devices, and one-time codes. The same connection also serves read-only
// queries against the platform's domain resource tables.
package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// Store wraps the shared relational database. All coordination between
// concurrent requests is delegated to single-row atomic statements; the
// store itself holds no mutable state beyond the connection pool.
type Store struct {
	db     *sqlx.DB
	driver string
}

// Open connects to the backing database. Supported drivers are "sqlite",
// "postgres", and "mysql". For sqlite, dsn is a data directory (empty for
// in-memory); for the others it is a driver DSN.
func Open(driver, dsn string) (*Store, error) {
	var db *sqlx.DB
	var err error

	switch driver {
	case "", "sqlite":
		driver = "sqlite"
		db, err = openSQLite(dsn)
	case "postgres":
		db, err = sqlx.Connect("pgx", dsn)
	case "mysql":
		db, err = sqlx.Connect("mysql", dsn)
	default:
		return nil, fmt.Errorf("unsupported driver %q", driver)
	}
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	s := &Store{db: db, driver: driver}

	// The embedded sqlite store owns its schema. On postgres/mysql the
	// platform provisions the core tables alongside the domain tables.
	if driver == "sqlite" {
		if err := s.migrate(); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
	}
	return s, nil
}

func openSQLite(dataDir string) (*sqlx.DB, error) {
	var dsn string
	if dataDir == "" {
		dsn = ":memory:?_journal_mode=WAL"
	} else {
		if err := os.MkdirAll(dataDir, 0755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
		dsn = filepath.Join(dataDir, "stile.db") + "?_journal_mode=WAL&_busy_timeout=5000"
	}

	db, err := sqlx.Connect("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1) // SQLite doesn't support concurrent writes

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	return db, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the underlying sqlx handle for read-only resource queries.
func (s *Store) DB() *sqlx.DB {
	return s.db
}

// Driver returns the driver name the store was opened with.
func (s *Store) Driver() string {
	return s.driver
}

// rebind converts ?-style placeholders to the connected driver's style.
func (s *Store) rebind(q string) string {
	return s.db.Rebind(q)
}

// insertRow executes an INSERT with ?-placeholders and returns the new
// row's id. The pgx driver has no LastInsertId, so on postgres the
// statement gains a RETURNING clause instead.
func (s *Store) insertRow(ctx context.Context, q string, args ...interface{}) (int64, error) {
	if s.driver == "postgres" {
		var id int64
		if err := s.db.QueryRowxContext(ctx, s.rebind(q+" RETURNING id"), args...).Scan(&id); err != nil {
			return 0, err
		}
		return id, nil
	}

	result, err := s.db.ExecContext(ctx, s.rebind(q), args...)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// HashAPIKey returns the hex-encoded SHA-256 digest of a raw API key. Two
// instances given the same raw key always compute the identical digest.
func HashAPIKey(key string) string {
	h := sha256.Sum256([]byte(key))
	return hex.EncodeToString(h[:])
}
