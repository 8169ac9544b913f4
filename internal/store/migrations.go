package store

import (
	"fmt"
)

type migration struct {
	Version     int
	Description string
	SQL         string
}

var migrations = []migration{
	{
		Version:     1,
		Description: "sweeps: one row per parameter sweep",
		SQL: `
CREATE TABLE sweeps (
    id          TEXT PRIMARY KEY,
    kind        TEXT NOT NULL CHECK (kind IN ('critical', 'breathing')),
    status      TEXT NOT NULL DEFAULT 'running' CHECK (status IN ('running', 'completed', 'failed')),
    params      TEXT NOT NULL,
    points      INTEGER NOT NULL DEFAULT 0,
    started_at  INTEGER NOT NULL,
    finished_at INTEGER,
    error       TEXT
);

CREATE INDEX idx_sweeps_started_at ON sweeps(started_at DESC);
CREATE INDEX idx_sweeps_status     ON sweeps(status);
`,
	},
	{
		Version:     2,
		Description: "diagnostics: classified points of critical sweeps",
		SQL: `
CREATE TABLE diagnostics (
    id              INTEGER PRIMARY KEY,
    sweep_id        TEXT NOT NULL,
    seq             INTEGER NOT NULL,
    n               INTEGER NOT NULL,
    alpha           REAL NOT NULL,
    beta            REAL NOT NULL,
    lambda          REAL NOT NULL,
    rho             REAL NOT NULL,
    final_sum       REAL NOT NULL,
    windowed_growth REAL NOT NULL,
    tail_mean       REAL NOT NULL,
    classification  TEXT NOT NULL CHECK (classification IN ('convergent', 'divergent')),

    UNIQUE (sweep_id, seq),
    FOREIGN KEY (sweep_id) REFERENCES sweeps(id) ON DELETE CASCADE
);
`,
	},
	{
		Version:     3,
		Description: "breathing_points: complex-grid breathing metrics",
		SQL: `
CREATE TABLE breathing_points (
    id            INTEGER PRIMARY KEY,
    sweep_id      TEXT NOT NULL,
    seq           INTEGER NOT NULL,
    n             INTEGER NOT NULL,
    alpha_r       REAL NOT NULL,
    beta_r        REAL NOT NULL,
    alpha_i       REAL NOT NULL,
    beta_i        REAL NOT NULL,
    lambda        REAL NOT NULL,
    rho           REAL NOT NULL,
    residence     INTEGER NOT NULL,
    amplitude_std REAL NOT NULL,
    mean_mag      REAL NOT NULL,
    target        REAL NOT NULL,

    UNIQUE (sweep_id, seq),
    FOREIGN KEY (sweep_id) REFERENCES sweeps(id) ON DELETE CASCADE
);
`,
	},
}

func (db *DB) migrate() error {
	// Create schema_versions table if it doesn't exist
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_versions (
			version     INTEGER PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at  INTEGER NOT NULL DEFAULT (strftime('%s', 'now') * 1000)
		)
	`)
	if err != nil {
		return fmt.Errorf("create schema_versions: %w", err)
	}

	for _, m := range migrations {
		var count int
		err := db.QueryRow("SELECT COUNT(*) FROM schema_versions WHERE version = ?", m.Version).Scan(&count)
		if err != nil {
			return fmt.Errorf("check migration %d: %w", m.Version, err)
		}
		if count > 0 {
			continue
		}

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", m.Version, err)
		}

		if _, err := tx.Exec(m.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d (%s): %w", m.Version, m.Description, err)
		}

		if _, err := tx.Exec(
			"INSERT INTO schema_versions (version, description) VALUES (?, ?)",
			m.Version, m.Description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}
	}

	return nil
}

// SchemaVersion returns the current schema version.
func (db *DB) SchemaVersion() (int, error) {
	var version int
	err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_versions").Scan(&version)
	return version, err
}
