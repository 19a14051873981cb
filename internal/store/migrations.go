package store

import "fmt"

// runMigrations executes all database migrations in order.
func (s *Store) runMigrations() error {
	migrations := []string{
		// Settings table - application settings as key-value pairs
		`CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// Calibrations table - one row per completed calibration lock
		`CREATE TABLE IF NOT EXISTS calibrations (
			id TEXT PRIMARY KEY,
			offset_x REAL NOT NULL,
			offset_y REAL NOT NULL,
			samples INTEGER NOT NULL,
			duration_ms REAL NOT NULL DEFAULT 0,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// Calibration roles table - which roles had a signature locked.
		// Signatures themselves are never persisted.
		`CREATE TABLE IF NOT EXISTS calibration_roles (
			calibration_id TEXT NOT NULL REFERENCES calibrations(id) ON DELETE CASCADE,
			role TEXT NOT NULL CHECK(role IN ('left', 'right')),
			PRIMARY KEY (calibration_id, role)
		)`,

		`CREATE INDEX IF NOT EXISTS idx_calibrations_created_at ON calibrations(created_at)`,
	}

	for i, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}

	return nil
}
