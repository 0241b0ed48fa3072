package storage

import (
	"context"
	"database/sql"
	"fmt"
)

// expectedSchemaVersion is the latest schema version the application expects.
const expectedSchemaVersion = 1

// migration represents a database schema migration.
type migration struct {
	up          func(*sql.Tx) error
	description string
	version     int
}

var migrations = []migration{
	{
		version:     1,
		description: "Initial schema",
		up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS transaction_records (
					id TEXT PRIMARY KEY,
					category TEXT NOT NULL DEFAULT '',
					status TEXT NOT NULL DEFAULT '',
					amount REAL NOT NULL DEFAULT 0,
					vendor TEXT NOT NULL DEFAULT '',
					currency TEXT NOT NULL DEFAULT 'INR',
					updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
				`CREATE INDEX IF NOT EXISTS idx_records_status ON transaction_records(status)`,
				`CREATE INDEX IF NOT EXISTS idx_records_category ON transaction_records(category)`,
			}
			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("migration query failed: %w", err)
				}
			}
			return nil
		},
	},
}

// migrate brings the schema up to the expected version using the
// user_version pragma to track progress.
func (s *SQLiteRecordStore) migrate(ctx context.Context) error {
	var current int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&current); err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}

		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin migration transaction: %w", err)
		}

		if err := m.up(tx); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d (%s) failed: %w", m.version, m.description, err)
		}

		// PRAGMA cannot be parameterized.
		if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", m.version)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to set schema version: %w", err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", m.version, err)
		}

		s.logger.Info("applied migration", "version", m.version, "description", m.description)
	}

	if current > expectedSchemaVersion {
		return fmt.Errorf("database schema version %d is newer than expected %d", current, expectedSchemaVersion)
	}

	return nil
}
