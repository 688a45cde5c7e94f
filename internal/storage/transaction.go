package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

var ErrTransactionClosed = errors.New("transaction is already closed")

const upsertStateSQL = `
	INSERT INTO client_state (key, value) VALUES (?, ?)
	ON CONFLICT(key) DO UPDATE SET value = excluded.value
`

// Transaction groups client state writes so a credential pair is never
// persisted half-set.
type Transaction struct {
	tx     *sql.Tx
	upsert *sql.Stmt
	closed bool
}

// BeginTx starts a write transaction on the client state table.
func (s *SQLiteStorage) BeginTx(ctx context.Context) (*Transaction, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return &Transaction{tx: tx}, nil
}

// Commit finishes the transaction.
func (t *Transaction) Commit() error {
	if t.closed {
		return ErrTransactionClosed
	}
	t.close()
	return t.tx.Commit()
}

// Rollback discards the transaction. It is a no-op after Commit, so it can be
// deferred unconditionally.
func (t *Transaction) Rollback() error {
	if t.closed {
		return nil
	}
	t.close()
	return t.tx.Rollback()
}

func (t *Transaction) close() {
	t.closed = true
	if t.upsert != nil {
		t.upsert.Close()
	}
}

// Put stores value under key. The upsert statement is prepared on first use
// and reused for the remaining keys.
func (t *Transaction) Put(ctx context.Context, key string, value []byte) error {
	if t.closed {
		return ErrTransactionClosed
	}
	if t.upsert == nil {
		stmt, err := t.tx.PrepareContext(ctx, upsertStateSQL)
		if err != nil {
			return fmt.Errorf("failed to prepare upsert: %w", err)
		}
		t.upsert = stmt
	}
	if value == nil {
		value = []byte{}
	}
	if _, err := t.upsert.ExecContext(ctx, key, value); err != nil {
		return fmt.Errorf("failed to store %s: %w", key, err)
	}
	return nil
}

// Delete removes keys with a single statement.
func (t *Transaction) Delete(ctx context.Context, keys ...string) error {
	if t.closed {
		return ErrTransactionClosed
	}
	if len(keys) == 0 {
		return nil
	}

	args := make([]any, len(keys))
	for i, key := range keys {
		args[i] = key
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(keys)), ",")
	query := `DELETE FROM client_state WHERE key IN (` + placeholders + `)`
	if _, err := t.tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to delete %s: %w", strings.Join(keys, ", "), err)
	}
	return nil
}
