package store

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
)

var (
	diagnosticsHeader = []string{"N", "alpha", "beta", "lambda", "rho", "final_sum", "windowed_growth", "tail_mean", "classification"}
	breathingHeader   = []string{"alpha_r", "beta_r", "alpha_i", "beta_i", "N", "lambda", "rho", "residence", "amp_std", "mean_mag", "target"}
)

func ftoa(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// ExportCSV writes a sweep's points as CSV with the column layout of its
// kind. Returns an error for an unknown sweep.
func (db *DB) ExportCSV(w io.Writer, sweepID string) error {
	s, err := db.GetSweep(sweepID)
	if err != nil {
		return err
	}
	if s == nil {
		return fmt.Errorf("export: sweep %s not found", sweepID)
	}

	cw := csv.NewWriter(w)
	switch s.Kind {
	case KindCritical:
		rows, err := db.ListDiagnostics(sweepID)
		if err != nil {
			return err
		}
		if err := cw.Write(diagnosticsHeader); err != nil {
			return fmt.Errorf("export: %w", err)
		}
		for _, r := range rows {
			rec := []string{
				strconv.Itoa(r.N), ftoa(r.Alpha), ftoa(r.Beta), ftoa(r.Lambda), ftoa(r.Rho),
				ftoa(r.FinalSum), ftoa(r.WindowedGrowth), ftoa(r.TailMean), r.Classification,
			}
			if err := cw.Write(rec); err != nil {
				return fmt.Errorf("export: %w", err)
			}
		}
	case KindBreathing:
		rows, err := db.ListBreathingPoints(sweepID)
		if err != nil {
			return err
		}
		if err := cw.Write(breathingHeader); err != nil {
			return fmt.Errorf("export: %w", err)
		}
		for _, r := range rows {
			rec := []string{
				ftoa(r.AlphaR), ftoa(r.BetaR), ftoa(r.AlphaI), ftoa(r.BetaI), strconv.Itoa(r.N),
				ftoa(r.Lambda), ftoa(r.Rho), strconv.Itoa(r.Residence),
				ftoa(r.AmplitudeStd), ftoa(r.MeanMag), ftoa(r.Target),
			}
			if err := cw.Write(rec); err != nil {
				return fmt.Errorf("export: %w", err)
			}
		}
	default:
		return fmt.Errorf("export: unknown sweep kind %q", s.Kind)
	}
	cw.Flush()
	return cw.Error()
}
