package store

import "fmt"

// currentSchemaVersion is the latest schema version.
const currentSchemaVersion = 1

// Migrate runs forward migrations to bring the database schema up to date.
func (db *DB) Migrate() error {
	if _, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER NOT NULL
		)
	`); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	version := 0
	row := db.conn.QueryRow("SELECT version FROM schema_version LIMIT 1")
	if err := row.Scan(&version); err != nil {
		// No rows means version 0 (fresh database).
		version = 0
	}

	if version < 1 {
		if err := db.migrateV1(); err != nil {
			return fmt.Errorf("migration v1: %w", err)
		}
	}

	return nil
}

// migrateV1 creates all initial tables and indexes.
func (db *DB) migrateV1() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			id               TEXT PRIMARY KEY,
			start_time       TEXT NOT NULL,
			end_time         TEXT,
			duration_seconds INTEGER,
			working_dir      TEXT,
			total_tasks      INTEGER NOT NULL DEFAULT 0,
			completed_tasks  INTEGER NOT NULL DEFAULT 0
		)`,

		`CREATE TABLE IF NOT EXISTS activities (
			task_id          TEXT PRIMARY KEY,
			session_id       TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
			agent_id         TEXT NOT NULL,
			agent_type       TEXT NOT NULL,
			description      TEXT,
			status           TEXT NOT NULL,
			start_time       TEXT NOT NULL,
			end_time         TEXT,
			duration_seconds INTEGER,
			input_tokens     INTEGER NOT NULL DEFAULT 0,
			output_tokens    INTEGER NOT NULL DEFAULT 0,
			tools            TEXT,
			file_ops         TEXT,
			success          BOOLEAN NOT NULL DEFAULT false,
			error            TEXT,
			metadata         TEXT
		)`,

		// Indexes.
		`CREATE INDEX IF NOT EXISTS idx_sessions_start ON sessions(start_time)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_end ON sessions(end_time)`,
		`CREATE INDEX IF NOT EXISTS idx_activities_session ON activities(session_id)`,
		`CREATE INDEX IF NOT EXISTS idx_activities_type ON activities(agent_type)`,
	}

	tx, err := db.conn.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, stmt := range statements {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("executing %q: %w", stmt[:40], err)
		}
	}

	if _, err := tx.Exec("DELETE FROM schema_version"); err != nil {
		return err
	}
	if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", currentSchemaVersion); err != nil {
		return err
	}

	return tx.Commit()
}
