package storage

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config describes the SQLite file and its connection pool. A CLI process
// rarely needs more than a handful of connections.
type Config struct {
	// Path may not contain ? or #, which would end the DSN file name.
	Path            string        `validate:"required,excludesall=?#"`
	MaxOpenConns    int           `validate:"min=1"`
	MaxIdleConns    int           `validate:"min=0,ltefield=MaxOpenConns"`
	ConnMaxLifetime time.Duration `validate:"min=1s"`
	ConnMaxIdleTime time.Duration `validate:"min=1s,ltefield=ConnMaxLifetime"`
	BusyTimeout     time.Duration `validate:"min=1ms"`
}

func DefaultConfig() Config {
	return Config{
		Path:            "storefront.db",
		MaxOpenConns:    4,
		MaxIdleConns:    2,
		ConnMaxLifetime: time.Hour,
		ConnMaxIdleTime: 30 * time.Minute,
		BusyTimeout:     5 * time.Second,
	}
}

var configValidator = validator.New()

// Validate reports the first invalid field wrapped in ErrInvalidInput.
func (c Config) Validate() error {
	if err := configValidator.Struct(c); err != nil {
		return fmt.Errorf("%w: database config: %v", ErrInvalidInput, err)
	}
	return nil
}

func (c Config) dsn() string {
	q := url.Values{}
	q.Set("_busy_timeout", strconv.FormatInt(c.BusyTimeout.Milliseconds(), 10))
	q.Set("_journal_mode", "WAL")
	q.Set("_synchronous", "NORMAL")
	return "file:" + c.Path + "?" + q.Encode()
}

// OpenDatabase creates the parent directory if needed, opens the database,
// checks the connection and applies pending migrations.
func OpenDatabase(ctx context.Context, cfg Config) (*SQLiteStorage, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", cfg.dsn())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := NewSQLiteStorage(db)
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return s, nil
}

func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
