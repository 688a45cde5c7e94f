package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

var ErrInvalidInput = errors.New("invalid input")

// SQLiteStorage keeps client state in a single key/value table.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage wraps an open database handle. Call Migrate before use.
func NewSQLiteStorage(db *sql.DB) *SQLiteStorage {
	return &SQLiteStorage{db: db}
}

// validateKeys checks that every key is non-empty
func validateKeys(keys []string) error {
	for _, key := range keys {
		if key == "" {
			return fmt.Errorf("%w: key cannot be empty", ErrInvalidInput)
		}
	}
	return nil
}

// Load returns every stored key and its value.
func (s *SQLiteStorage) Load(ctx context.Context) (map[string][]byte, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM client_state`)
	if err != nil {
		return nil, fmt.Errorf("failed to query client state: %w", err)
	}
	defer rows.Close()

	values := make(map[string][]byte)
	for rows.Next() {
		var key string
		var value []byte
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("failed to scan client state: %w", err)
		}
		values[key] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate client state: %w", err)
	}
	return values, nil
}

// Save upserts all values in one transaction.
func (s *SQLiteStorage) Save(ctx context.Context, values map[string][]byte) error {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	if err := validateKeys(keys); err != nil {
		return err
	}

	tx, err := s.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for key, value := range values {
		if err := tx.Put(ctx, key, value); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Delete removes the given keys in one transaction. Missing keys are ignored.
func (s *SQLiteStorage) Delete(ctx context.Context, keys ...string) error {
	if err := validateKeys(keys); err != nil {
		return err
	}

	tx, err := s.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := tx.Delete(ctx, keys...); err != nil {
		return err
	}
	return tx.Commit()
}
