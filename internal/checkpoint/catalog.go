// Package checkpoint indexes the timestamped config-directory snapshots
// described in spec.md §6 ("Config directory. Checkpointed layout:
// <config_dir>/YYYYMMDD-HH:MM:SS/...") in a small migrated SQLite catalogue,
// so "find the newest checkpoint ≤ t" is a query rather than a directory
// walk. The env/matrix/group files themselves stay on disk in
// internal/files' plain-text formats; this package only ever stores their
// directory name and timestamp.
package checkpoint

import (
	"database/sql"
	"embed"
	"fmt"
	"io/fs"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Catalog is the checkpoint index for one config directory tree.
type Catalog struct {
	*sql.DB
}

// Open opens (creating if absent) the catalogue database at path and
// applies the embedded schema.
func Open(path string) (*Catalog, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: open %s: %w", path, err)
	}
	if err := applyPragmas(db); err != nil {
		return nil, err
	}

	c := &Catalog{db}
	if _, err := c.Exec(schemaSQL); err != nil {
		return nil, fmt.Errorf("checkpoint: apply schema: %w", err)
	}
	return c, nil
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return fmt.Errorf("checkpoint: %s: %w", p, err)
		}
	}
	return nil
}

// migrationsDir returns the embedded migrations as an fs.FS rooted at the
// migrations directory, for use with MigrateUp/MigrateDown.
func migrationsDir() (fs.FS, error) {
	return fs.Sub(migrationsFS, "migrations")
}

// Entry is one row of the checkpoint catalogue.
type Entry struct {
	ConfigDir    string
	Name         string // the "YYYYMMDD-HH:MM:SS" directory name, or "latest"'s resolved target
	TakenUnixMs  int64
	DeviceCount  int
}

// Record inserts or replaces the catalogue row for a checkpoint directory.
func (c *Catalog) Record(e Entry) error {
	_, err := c.Exec(`
		INSERT INTO checkpoints (config_dir, name, taken_unix_ms, device_count)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(config_dir, name) DO UPDATE SET
			taken_unix_ms = excluded.taken_unix_ms,
			device_count = excluded.device_count
	`, e.ConfigDir, e.Name, e.TakenUnixMs, e.DeviceCount)
	if err != nil {
		return fmt.Errorf("checkpoint: record %s/%s: %w", e.ConfigDir, e.Name, err)
	}
	return nil
}

// Nearest returns the checkpoint in configDir with the largest taken_unix_ms
// not after queryUnixMs — the "reader with a checkpoint name ... picks the
// newest whose timestamp ≤ the query timestamp" rule from spec.md §6.
func (c *Catalog) Nearest(configDir string, queryUnixMs int64) (Entry, bool, error) {
	row := c.QueryRow(`
		SELECT name, taken_unix_ms, device_count
		FROM checkpoints
		WHERE config_dir = ? AND taken_unix_ms <= ?
		ORDER BY taken_unix_ms DESC
		LIMIT 1
	`, configDir, queryUnixMs)

	var e Entry
	e.ConfigDir = configDir
	if err := row.Scan(&e.Name, &e.TakenUnixMs, &e.DeviceCount); err != nil {
		if err == sql.ErrNoRows {
			return Entry{}, false, nil
		}
		return Entry{}, false, fmt.Errorf("checkpoint: nearest in %s: %w", configDir, err)
	}
	return e, true, nil
}

// Latest returns the most recent checkpoint in configDir, resolving the
// literal name "latest" used throughout the wire/file spec.
func (c *Catalog) Latest(configDir string) (Entry, bool, error) {
	row := c.QueryRow(`
		SELECT name, taken_unix_ms, device_count
		FROM checkpoints
		WHERE config_dir = ?
		ORDER BY taken_unix_ms DESC
		LIMIT 1
	`, configDir)

	var e Entry
	e.ConfigDir = configDir
	if err := row.Scan(&e.Name, &e.TakenUnixMs, &e.DeviceCount); err != nil {
		if err == sql.ErrNoRows {
			return Entry{}, false, nil
		}
		return Entry{}, false, fmt.Errorf("checkpoint: latest in %s: %w", configDir, err)
	}
	return e, true, nil
}

// List returns every checkpoint recorded for configDir, oldest first.
func (c *Catalog) List(configDir string) ([]Entry, error) {
	rows, err := c.Query(`
		SELECT name, taken_unix_ms, device_count
		FROM checkpoints
		WHERE config_dir = ?
		ORDER BY taken_unix_ms ASC
	`, configDir)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: list %s: %w", configDir, err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		e := Entry{ConfigDir: configDir}
		if err := rows.Scan(&e.Name, &e.TakenUnixMs, &e.DeviceCount); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
