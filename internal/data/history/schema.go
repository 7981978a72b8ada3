package history

import (
	"database/sql"
	"fmt"
)

// SchemaVersion is the newest migration this build understands.
const SchemaVersion = 2

type migration struct {
	version int
	sql     string
}

var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS assemblies (
  id TEXT PRIMARY KEY,
  entry_fqn TEXT NOT NULL,
  digest TEXT NOT NULL,
  module_count INTEGER NOT NULL,
  size_bytes INTEGER NOT NULL,
  archive_path TEXT NOT NULL DEFAULT '',
  ts_utc TEXT NOT NULL,
  created_at_utc TEXT NOT NULL DEFAULT (CURRENT_TIMESTAMP)
);
CREATE INDEX IF NOT EXISTS idx_assemblies_entry ON assemblies(entry_fqn);
CREATE INDEX IF NOT EXISTS idx_assemblies_ts ON assemblies(ts_utc);
`,
	},
	{
		version: 2,
		sql: `
CREATE TABLE IF NOT EXISTS assembly_modules (
  assembly_id TEXT NOT NULL REFERENCES assemblies(id) ON DELETE CASCADE,
  position INTEGER NOT NULL,
  module_fqn TEXT NOT NULL,
  archive_path TEXT NOT NULL,
  redirected INTEGER NOT NULL DEFAULT 0,
  PRIMARY KEY (assembly_id, position)
);
CREATE INDEX IF NOT EXISTS idx_assembly_modules_fqn ON assembly_modules(module_fqn);
`,
	},
}

func EnsureSchema(db *sql.DB) error {
	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS schema_migrations (
  version INTEGER PRIMARY KEY,
  applied_at_utc TEXT NOT NULL DEFAULT (CURRENT_TIMESTAMP)
);
`); err != nil {
		return fmt.Errorf("create schema_migrations table: %w", err)
	}

	var current int
	if err := db.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&current); err != nil {
		return fmt.Errorf("read schema_migrations version: %w", err)
	}
	if current > SchemaVersion {
		return fmt.Errorf("schema version %d is newer than supported version %d", current, SchemaVersion)
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", m.version, err)
		}
		if _, err := tx.Exec(m.sql); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("apply migration %d: %w", m.version, err)
		}
		if _, err := tx.Exec(`INSERT INTO schema_migrations(version) VALUES (?)`, m.version); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.version, err)
		}
	}

	return nil
}
