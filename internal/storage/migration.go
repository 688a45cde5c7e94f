package storage

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"sync"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// migrationLock ensures only one migration can run at a time
var migrationLock sync.Mutex

// MigrationStatus represents the applied schema version
type MigrationStatus struct {
	Version uint `json:"version"`
	Dirty   bool `json:"dirty"`
}

func (s *SQLiteStorage) migrator() (*migrate.Migrate, error) {
	sourceInstance, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to create migration source: %w", err)
	}

	driver, err := sqlite3.WithInstance(s.db, &sqlite3.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceInstance, "sqlite3", driver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	return m, nil
}

// Migrate applies all pending database migrations. The migrate instance is not
// closed because closing it would close the shared database handle.
func (s *SQLiteStorage) Migrate(ctx context.Context) error {
	migrationLock.Lock()
	defer migrationLock.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	m, err := s.migrator()
	if err != nil {
		return err
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	return nil
}

// GetMigrationStatus returns the current schema version
func (s *SQLiteStorage) GetMigrationStatus(ctx context.Context) (MigrationStatus, error) {
	migrationLock.Lock()
	defer migrationLock.Unlock()

	if err := ctx.Err(); err != nil {
		return MigrationStatus{}, err
	}

	m, err := s.migrator()
	if err != nil {
		return MigrationStatus{}, err
	}

	version, dirty, err := m.Version()
	if err != nil {
		if errors.Is(err, migrate.ErrNilVersion) {
			return MigrationStatus{}, nil
		}
		return MigrationStatus{}, fmt.Errorf("failed to read migration version: %w", err)
	}
	return MigrationStatus{Version: version, Dirty: dirty}, nil
}

// SchemaStatus reports the migration state of store when it is SQLite backed,
// looking through wrappers such as EncryptedStore. ok is false for stores
// without a schema.
func SchemaStatus(ctx context.Context, store KeyValueStore) (status MigrationStatus, ok bool, err error) {
	for {
		switch s := store.(type) {
		case *SQLiteStorage:
			status, err = s.GetMigrationStatus(ctx)
			return status, true, err
		case interface{ Unwrap() KeyValueStore }:
			store = s.Unwrap()
		default:
			return MigrationStatus{}, false, nil
		}
	}
}
