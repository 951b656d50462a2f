package store

import "fmt"

// migrations are applied in order. The index of the last applied step is
// kept in PRAGMA user_version, so steps must never be edited or reordered.
var migrations = []string{
	// 1: flattened rigs registered by the rig loader
	`CREATE TABLE rigs (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		skeleton INTEGER NOT NULL DEFAULT 1,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`,

	// 2: bone or part names with an optional rest direction
	`CREATE TABLE rig_parts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		rig_id TEXT NOT NULL REFERENCES rigs(id) ON DELETE CASCADE,
		name TEXT NOT NULL,
		rest_x REAL,
		rest_y REAL,
		rest_z REAL,
		UNIQUE(rig_id, name)
	)`,

	// 3
	`CREATE INDEX idx_rig_parts_rig_id ON rig_parts(rig_id)`,

	// 4: key/value process settings
	`CREATE TABLE settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`,
}

// migrate applies every step newer than the stored schema version.
func (s *Store) migrate() error {
	var version int
	if err := s.db.QueryRow(`PRAGMA user_version`).Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version > len(migrations) {
		return fmt.Errorf("schema version %d is newer than this build (%d)", version, len(migrations))
	}

	for i := version; i < len(migrations); i++ {
		tx, err := s.db.Begin()
		if err != nil {
			return err
		}
		if _, err := tx.Exec(migrations[i]); err != nil {
			tx.Rollback()
			return fmt.Errorf("step %d: %w", i+1, err)
		}
		// PRAGMA does not accept bound parameters
		if _, err := tx.Exec(fmt.Sprintf(`PRAGMA user_version = %d`, i+1)); err != nil {
			tx.Rollback()
			return fmt.Errorf("step %d: %w", i+1, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("step %d: %w", i+1, err)
		}
	}
	return nil
}
