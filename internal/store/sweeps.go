package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	KindCritical  = "critical"
	KindBreathing = "breathing"

	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// ErrSweepRunning is returned when an operation needs a finished sweep.
var ErrSweepRunning = errors.New("sweep is still running")

// Sweep is one persisted parameter sweep. Params holds the grid definition
// as submitted, encoded as JSON.
type Sweep struct {
	ID         string          `json:"id"`
	Kind       string          `json:"kind"`
	Status     string          `json:"status"`
	Params     json.RawMessage `json:"params"`
	Points     int             `json:"points"`
	StartedAt  int64           `json:"started_at"`
	FinishedAt *int64          `json:"finished_at,omitempty"`
	Error      string          `json:"error,omitempty"`
}

// DiagnosticsRow is one classified grid point of a critical sweep.
type DiagnosticsRow struct {
	Seq            int     `json:"seq"`
	N              int     `json:"n"`
	Alpha          float64 `json:"alpha"`
	Beta           float64 `json:"beta"`
	Lambda         float64 `json:"lambda"`
	Rho            float64 `json:"rho"`
	FinalSum       float64 `json:"final_sum"`
	WindowedGrowth float64 `json:"windowed_growth"`
	TailMean       float64 `json:"tail_mean"`
	Classification string  `json:"classification"`
}

// BreathingRow is one grid point of a breathing sweep.
type BreathingRow struct {
	Seq          int     `json:"seq"`
	N            int     `json:"n"`
	AlphaR       float64 `json:"alpha_r"`
	BetaR        float64 `json:"beta_r"`
	AlphaI       float64 `json:"alpha_i"`
	BetaI        float64 `json:"beta_i"`
	Lambda       float64 `json:"lambda"`
	Rho          float64 `json:"rho"`
	Residence    int     `json:"residence"`
	AmplitudeStd float64 `json:"amplitude_std"`
	MeanMag      float64 `json:"mean_mag"`
	Target       float64 `json:"target"`
}

const sweepColumns = `id, kind, status, params, points, started_at, finished_at, error`

// CreateSweep records a new sweep in the running state.
func (db *DB) CreateSweep(kind string, params any) (*Sweep, error) {
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("encode sweep params: %w", err)
	}
	s := &Sweep{
		ID:        uuid.NewString(),
		Kind:      kind,
		Status:    StatusRunning,
		Params:    raw,
		StartedAt: time.Now().UnixMilli(),
	}
	_, err = db.Exec(`
		INSERT INTO sweeps (id, kind, status, params, started_at)
		VALUES (?, ?, ?, ?, ?)
	`, s.ID, s.Kind, s.Status, string(raw), s.StartedAt)
	if err != nil {
		return nil, fmt.Errorf("insert sweep: %w", err)
	}
	return s, nil
}

// CompleteSweep marks a running sweep completed with its point count.
func (db *DB) CompleteSweep(id string, points int) error {
	return db.finishSweep(id, StatusCompleted, points, "")
}

// FailSweep marks a running sweep failed with the error text.
func (db *DB) FailSweep(id string, msg string) error {
	return db.finishSweep(id, StatusFailed, 0, msg)
}

func (db *DB) finishSweep(id, status string, points int, msg string) error {
	now := time.Now().UnixMilli()
	var errText *string
	if msg != "" {
		errText = &msg
	}
	result, err := db.Exec(`
		UPDATE sweeps SET status = ?, points = ?, finished_at = ?, error = ?
		WHERE id = ? AND status = 'running'
	`, status, points, now, errText, id)
	if err != nil {
		return fmt.Errorf("finish sweep: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("sweep %s not found or not running", id)
	}
	return nil
}

// InterruptRunning fails every sweep still marked running and returns how
// many it touched. Only call it before any sweep of this process has begun.
func (db *DB) InterruptRunning() (int64, error) {
	result, err := db.Exec(`
		UPDATE sweeps SET status = 'failed', finished_at = ?, error = 'interrupted'
		WHERE status = 'running'
	`, time.Now().UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("interrupt running sweeps: %w", err)
	}
	return result.RowsAffected()
}

// DeleteSweep removes a finished sweep and its points. It reports false when
// the sweep does not exist and fails for a sweep that is still running.
func (db *DB) DeleteSweep(id string) (bool, error) {
	var status string
	err := db.QueryRow(`SELECT status FROM sweeps WHERE id = ?`, id).Scan(&status)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("delete sweep: %w", err)
	}
	if status == StatusRunning {
		return true, ErrSweepRunning
	}
	if _, err := db.Exec(`DELETE FROM sweeps WHERE id = ? AND status != 'running'`, id); err != nil {
		return true, fmt.Errorf("delete sweep: %w", err)
	}
	return true, nil
}

// GetSweep returns a sweep by id, or nil if absent.
func (db *DB) GetSweep(id string) (*Sweep, error) {
	row := db.QueryRow(`SELECT `+sweepColumns+` FROM sweeps WHERE id = ?`, id)
	s, err := scanSweep(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get sweep: %w", err)
	}
	return s, nil
}

// ListSweeps returns the most recent sweeps first.
func (db *DB) ListSweeps(limit int) ([]Sweep, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.Query(`
		SELECT `+sweepColumns+` FROM sweeps
		ORDER BY started_at DESC, rowid DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list sweeps: %w", err)
	}
	defer rows.Close()

	var out []Sweep
	for rows.Next() {
		s, err := scanSweep(rows)
		if err != nil {
			return nil, fmt.Errorf("scan sweep: %w", err)
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSweep(sc scanner) (*Sweep, error) {
	var (
		s      Sweep
		params string
		errMsg sql.NullString
	)
	if err := sc.Scan(&s.ID, &s.Kind, &s.Status, &params, &s.Points, &s.StartedAt, &s.FinishedAt, &errMsg); err != nil {
		return nil, err
	}
	s.Params = json.RawMessage(params)
	s.Error = errMsg.String
	return &s, nil
}

// AddDiagnostics writes all rows of a critical sweep in one transaction.
func (db *DB) AddDiagnostics(sweepID string, rows []DiagnosticsRow) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin diagnostics: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO diagnostics (sweep_id, seq, n, alpha, beta, lambda, rho,
			final_sum, windowed_growth, tail_mean, classification)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare diagnostics: %w", err)
	}
	defer stmt.Close()

	for _, r := range rows {
		if _, err := stmt.Exec(sweepID, r.Seq, r.N, r.Alpha, r.Beta, r.Lambda, r.Rho,
			r.FinalSum, r.WindowedGrowth, r.TailMean, r.Classification); err != nil {
			return fmt.Errorf("insert diagnostics %d: %w", r.Seq, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit diagnostics: %w", err)
	}
	return nil
}

// ListDiagnostics returns a sweep's rows in grid order.
func (db *DB) ListDiagnostics(sweepID string) ([]DiagnosticsRow, error) {
	rows, err := db.Query(`
		SELECT seq, n, alpha, beta, lambda, rho, final_sum, windowed_growth, tail_mean, classification
		FROM diagnostics WHERE sweep_id = ? ORDER BY seq
	`, sweepID)
	if err != nil {
		return nil, fmt.Errorf("list diagnostics: %w", err)
	}
	defer rows.Close()

	var out []DiagnosticsRow
	for rows.Next() {
		var r DiagnosticsRow
		if err := rows.Scan(&r.Seq, &r.N, &r.Alpha, &r.Beta, &r.Lambda, &r.Rho,
			&r.FinalSum, &r.WindowedGrowth, &r.TailMean, &r.Classification); err != nil {
			return nil, fmt.Errorf("scan diagnostics: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// AddBreathingPoints writes all rows of a breathing sweep in one transaction.
func (db *DB) AddBreathingPoints(sweepID string, rows []BreathingRow) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin breathing points: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO breathing_points (sweep_id, seq, n, alpha_r, beta_r, alpha_i, beta_i,
			lambda, rho, residence, amplitude_std, mean_mag, target)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare breathing points: %w", err)
	}
	defer stmt.Close()

	for _, r := range rows {
		if _, err := stmt.Exec(sweepID, r.Seq, r.N, r.AlphaR, r.BetaR, r.AlphaI, r.BetaI,
			r.Lambda, r.Rho, r.Residence, r.AmplitudeStd, r.MeanMag, r.Target); err != nil {
			return fmt.Errorf("insert breathing point %d: %w", r.Seq, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit breathing points: %w", err)
	}
	return nil
}

// ListBreathingPoints returns a sweep's rows in grid order.
func (db *DB) ListBreathingPoints(sweepID string) ([]BreathingRow, error) {
	rows, err := db.Query(`
		SELECT seq, n, alpha_r, beta_r, alpha_i, beta_i, lambda, rho,
			residence, amplitude_std, mean_mag, target
		FROM breathing_points WHERE sweep_id = ? ORDER BY seq
	`, sweepID)
	if err != nil {
		return nil, fmt.Errorf("list breathing points: %w", err)
	}
	defer rows.Close()

	var out []BreathingRow
	for rows.Next() {
		var r BreathingRow
		if err := rows.Scan(&r.Seq, &r.N, &r.AlphaR, &r.BetaR, &r.AlphaI, &r.BetaI, &r.Lambda, &r.Rho,
			&r.Residence, &r.AmplitudeStd, &r.MeanMag, &r.Target); err != nil {
			return nil, fmt.Errorf("scan breathing point: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
