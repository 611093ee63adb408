// Package store persists users and summary history in SQLite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

var (
	// ErrNotFound is returned when a row does not exist or is not visible to the caller
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is returned when a unique constraint is violated
	ErrDuplicate = errors.New("already exists")
)

// Config controls the SQLite connection pool
type Config struct {
	Path            string
	BusyTimeout     time.Duration
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// LoadConfig reads pool settings from SQLITE_* environment variables
func LoadConfig() Config {
	cfg := Config{
		Path:            strings.TrimSpace(os.Getenv("SQLITE_PATH")),
		BusyTimeout:     envDuration("SQLITE_BUSY_TIMEOUT", 5*time.Second),
		MaxOpenConns:    envInt("SQLITE_MAX_OPEN_CONNS", 8),
		MaxIdleConns:    envInt("SQLITE_MAX_IDLE_CONNS", 0),
		ConnMaxLifetime: envDuration("SQLITE_CONN_MAX_LIFETIME", time.Hour),
		ConnMaxIdleTime: envDuration("SQLITE_CONN_MAX_IDLE_TIME", 15*time.Minute),
	}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.MaxOpenConns <= 0 {
		c.MaxOpenConns = 8
	}
	if c.MaxIdleConns <= 0 {
		c.MaxIdleConns = c.MaxOpenConns
	}
	if c.BusyTimeout <= 0 {
		c.BusyTimeout = 5 * time.Second
	}
}

// Store wraps a pooled sqlx.DB connection
type Store struct {
	db *sqlx.DB
}

// Open opens the database at path using pool settings from the environment
func Open(path string) (*Store, error) {
	cfg := LoadConfig()
	if trimmed := strings.TrimSpace(path); trimmed != "" {
		cfg.Path = trimmed
	}
	return OpenWithConfig(cfg)
}

// OpenWithConfig opens the database and migrates the schema
func OpenWithConfig(cfg Config) (*Store, error) {
	cfg.applyDefaults()
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path required")
	}
	abs, err := filepath.Abs(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("resolve sqlite path: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=foreign_keys(1)", abs, cfg.BusyTimeout.Milliseconds())
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.BusyTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the underlying database resources
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Ping checks the database connection
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) migrate(ctx context.Context) error {
	tx, err := s.db.BeginTxx(ctx, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin migration: %w", err)
	}
	for i, stmt := range schemaStatements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			tx.Rollback()
			return fmt.Errorf("execute schema statement %d: %w", i+1, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration: %w", err)
	}
	return nil
}

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT NOT NULL UNIQUE,
		email TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		last_login DATETIME
	);`,
	`CREATE INDEX IF NOT EXISTS idx_users_username_lower ON users(lower(username));`,
	`CREATE INDEX IF NOT EXISTS idx_users_email_lower ON users(lower(email));`,
	`CREATE TABLE IF NOT EXISTS summary_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		title TEXT NOT NULL DEFAULT '',
		original_text TEXT NOT NULL,
		summary_text TEXT NOT NULL,
		key_points TEXT NOT NULL DEFAULT '[]',
		original_word_count INTEGER NOT NULL DEFAULT 0,
		summary_word_count INTEGER NOT NULL DEFAULT 0,
		compression_ratio REAL NOT NULL DEFAULT 0,
		filename TEXT NOT NULL DEFAULT '',
		file_type TEXT NOT NULL DEFAULT '',
		detected_language TEXT NOT NULL DEFAULT '',
		language_name TEXT NOT NULL DEFAULT '',
		target_language TEXT NOT NULL DEFAULT '',
		summary_type TEXT NOT NULL DEFAULT '',
		content_type TEXT NOT NULL DEFAULT 'text',
		content_source TEXT NOT NULL DEFAULT '',
		url_domain TEXT NOT NULL DEFAULT '',
		url_author TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		tags TEXT NOT NULL DEFAULT '[]',
		is_favorite BOOLEAN NOT NULL DEFAULT 0,
		FOREIGN KEY(user_id) REFERENCES users(id) ON DELETE CASCADE
	);`,
	`CREATE INDEX IF NOT EXISTS idx_summary_history_user ON summary_history(user_id, created_at);`,
	`CREATE INDEX IF NOT EXISTS idx_summary_history_created ON summary_history(created_at);`,
}

// isUniqueViolation matches the sqlite driver's constraint error text
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func envInt(key string, def int) int {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
