package store

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

// testDB is a helper that creates an in-memory DB for testing.
func testDB(t *testing.T) *DB {
	t.Helper()
	db, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSchema(t *testing.T) {
	db := testDB(t)

	if db.Path != ":memory:" {
		t.Errorf("Path = %q, want :memory:", db.Path)
	}
	v, err := db.SchemaVersion()
	if err != nil {
		t.Fatalf("SchemaVersion: %v", err)
	}
	if v != len(migrations) {
		t.Errorf("SchemaVersion = %d, want %d", v, len(migrations))
	}

	for _, table := range []string{"schema_versions", "sweeps", "diagnostics", "breathing_points"} {
		var name string
		err := db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %q not found: %v", table, err)
		}
	}

	// A second migrate is a no-op.
	if err := db.migrate(); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
	if v2, _ := db.SchemaVersion(); v2 != v {
		t.Errorf("SchemaVersion after re-migrate = %d, want %d", v2, v)
	}
}

func TestOpenFileReopens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "memseries.db")

	db, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	s, err := db.CreateSweep(KindCritical, map[string]int{"steps": 3})
	if err != nil {
		t.Fatalf("CreateSweep: %v", err)
	}
	if err := db.CompleteSweep(s.ID, 9); err != nil {
		t.Fatalf("CompleteSweep: %v", err)
	}
	db.Close()

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("db file: %v", err)
	}

	db, err = Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer db.Close()

	var mode string
	if err := db.QueryRow("PRAGMA journal_mode").Scan(&mode); err != nil {
		t.Fatalf("PRAGMA journal_mode: %v", err)
	}
	if mode != "wal" {
		t.Errorf("journal_mode = %q, want wal", mode)
	}

	got, err := db.GetSweep(s.ID)
	if err != nil || got == nil {
		t.Fatalf("GetSweep after reopen: %v, %v", got, err)
	}
	if got.Status != StatusCompleted || got.Points != 9 {
		t.Errorf("sweep after reopen = %+v", got)
	}
}

func TestSweepsConstraints(t *testing.T) {
	db := testDB(t)

	insert := func(id, kind, status string) error {
		_, err := db.Exec(`
			INSERT INTO sweeps (id, kind, status, params, started_at)
			VALUES (?, ?, ?, '{}', 1000)
		`, id, kind, status)
		return err
	}
	if err := insert("s-1", KindCritical, StatusRunning); err != nil {
		t.Fatalf("valid insert failed: %v", err)
	}
	if err := insert("s-2", "lateral", StatusRunning); err == nil {
		t.Error("expected error for invalid kind, got nil")
	}
	if err := insert("s-3", KindBreathing, "paused"); err == nil {
		t.Error("expected error for invalid status, got nil")
	}

	// Orphan points must be rejected by the foreign key.
	_, err := db.Exec(`
		INSERT INTO diagnostics (sweep_id, seq, n, alpha, beta, lambda, rho,
			final_sum, windowed_growth, tail_mean, classification)
		VALUES ('missing', 0, 10, 1, 1, 0, 1, 1, 0, 0, 'divergent')
	`)
	if err == nil {
		t.Error("expected foreign key error for orphan diagnostics, got nil")
	}
}

func TestInterruptRunning(t *testing.T) {
	db := testDB(t)

	stale, _ := db.CreateSweep(KindCritical, nil)
	done, _ := db.CreateSweep(KindBreathing, nil)
	if err := db.CompleteSweep(done.ID, 1); err != nil {
		t.Fatal(err)
	}

	n, err := db.InterruptRunning()
	if err != nil {
		t.Fatalf("InterruptRunning: %v", err)
	}
	if n != 1 {
		t.Errorf("interrupted %d sweeps, want 1", n)
	}

	got, _ := db.GetSweep(stale.ID)
	if got.Status != StatusFailed || got.Error != "interrupted" || got.FinishedAt == nil {
		t.Errorf("stale sweep = %+v", got)
	}
	got, _ = db.GetSweep(done.ID)
	if got.Status != StatusCompleted {
		t.Errorf("completed sweep changed to %s", got.Status)
	}
}

func TestDeleteSweepCascades(t *testing.T) {
	db := testDB(t)

	s, _ := db.CreateSweep(KindCritical, nil)
	rows := []DiagnosticsRow{
		{Seq: 0, N: 10, Alpha: 1, Beta: 1, Rho: 1, Classification: "divergent"},
		{Seq: 1, N: 10, Alpha: 1.1, Beta: 1, Rho: 1, Classification: "convergent"},
	}
	if err := db.AddDiagnostics(s.ID, rows); err != nil {
		t.Fatal(err)
	}

	if found, err := db.DeleteSweep(s.ID); !found || !errors.Is(err, ErrSweepRunning) {
		t.Fatalf("delete running sweep = %v, %v; want ErrSweepRunning", found, err)
	}

	if err := db.CompleteSweep(s.ID, len(rows)); err != nil {
		t.Fatal(err)
	}
	if found, err := db.DeleteSweep(s.ID); !found || err != nil {
		t.Fatalf("DeleteSweep = %v, %v", found, err)
	}

	var count int
	db.QueryRow(`SELECT COUNT(*) FROM diagnostics WHERE sweep_id = ?`, s.ID).Scan(&count)
	if count != 0 {
		t.Errorf("%d diagnostics survived their sweep", count)
	}
	if found, err := db.DeleteSweep(s.ID); found || err != nil {
		t.Errorf("second delete = %v, %v; want not found", found, err)
	}
}

func TestForeignKeysEnabled(t *testing.T) {
	db := testDB(t)

	var fk int
	if err := db.QueryRow("PRAGMA foreign_keys").Scan(&fk); err != nil {
		t.Fatalf("PRAGMA foreign_keys: %v", err)
	}
	if fk != 1 {
		t.Errorf("foreign_keys = %d, want 1", fk)
	}
}
