package checkpoint

import (
	"errors"
	"fmt"
	"log"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

// MigrateUp runs all pending checkpoint-catalogue migrations. Returns nil if
// the catalogue is already at the latest version. Grounded on the teacher's
// internal/db/migrate.go newMigrate/MigrateUp pair.
func (c *Catalog) MigrateUp() error {
	m, err := c.newMigrate()
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("checkpoint: migration up failed: %w", err)
	}
	return nil
}

// MigrateVersion returns the current migration version and dirty state.
func (c *Catalog) MigrateVersion() (version uint, dirty bool, err error) {
	m, err := c.newMigrate()
	if err != nil {
		return 0, false, err
	}
	version, dirty, err = m.Version()
	if err != nil && errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return version, dirty, err
}

func (c *Catalog) newMigrate() (*migrate.Migrate, error) {
	dir, err := migrationsDir()
	if err != nil {
		return nil, fmt.Errorf("checkpoint: migrations fs: %w", err)
	}
	sourceDriver, err := iofs.New(dir, ".")
	if err != nil {
		return nil, fmt.Errorf("checkpoint: iofs source: %w", err)
	}
	dbDriver, err := sqlite.WithInstance(c.DB, &sqlite.Config{})
	if err != nil {
		return nil, fmt.Errorf("checkpoint: sqlite driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite", dbDriver)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: migrate instance: %w", err)
	}
	m.Log = migrateLogger{}
	return m, nil
}

type migrateLogger struct{}

func (migrateLogger) Printf(format string, v ...interface{}) { log.Printf("[checkpoint migrate] "+format, v...) }
func (migrateLogger) Verbose() bool                          { return false }
