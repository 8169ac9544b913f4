package sweep

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/lazypower/memseries/internal/analysis"
	"github.com/lazypower/memseries/internal/metrics"
	"github.com/lazypower/memseries/internal/series"
	"github.com/lazypower/memseries/internal/store"
)

// BreathingPoint is the breathing summary of one complex run.
type BreathingPoint struct {
	series.ComplexParams
	analysis.BreathingMetrics
}

// Result is a finished sweep. Exactly one of Diagnostics or Breathing is set,
// in grid order.
type Result struct {
	Sweep       *store.Sweep          `json:"sweep"`
	Diagnostics []*series.Diagnostics `json:"diagnostics,omitempty"`
	Breathing   []BreathingPoint      `json:"breathing,omitempty"`
}

// Runner evaluates grids on a bounded worker pool. DB and Metrics are
// optional; without a DB sweeps are computed but not persisted.
type Runner struct {
	DB      *store.DB
	Log     *zap.Logger
	Metrics *metrics.Collector
	Workers int
}

func NewRunner(db *store.DB, log *zap.Logger, m *metrics.Collector, workers int) *Runner {
	if log == nil {
		log = zap.NewNop()
	}
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Runner{DB: db, Log: log.With(zap.String("component", "sweep")), Metrics: m, Workers: workers}
}

// Begin records a sweep as running and returns it. Without a DB the record is
// only held in memory.
func (r *Runner) Begin(kind string, params any) (*store.Sweep, error) {
	if r.DB == nil {
		return &store.Sweep{
			ID:        uuid.NewString(),
			Kind:      kind,
			Status:    store.StatusRunning,
			StartedAt: time.Now().UnixMilli(),
		}, nil
	}
	return r.DB.CreateSweep(kind, params)
}

// Critical begins and runs a critical sweep.
func (r *Runner) Critical(ctx context.Context, g CriticalGrid) (*Result, error) {
	s, err := r.Begin(store.KindCritical, g)
	if err != nil {
		return nil, err
	}
	return r.RunCritical(ctx, s, g)
}

// Breathing begins and runs a breathing sweep.
func (r *Runner) Breathing(ctx context.Context, g BreathingGrid) (*Result, error) {
	s, err := r.Begin(store.KindBreathing, g)
	if err != nil {
		return nil, err
	}
	return r.RunBreathing(ctx, s, g)
}

// RunCritical classifies every grid point of an already begun sweep.
func (r *Runner) RunCritical(ctx context.Context, s *store.Sweep, g CriticalGrid) (*Result, error) {
	done := r.started(s)
	diags, err := r.evaluateCritical(ctx, g)
	if err == nil && r.DB != nil {
		err = r.DB.AddDiagnostics(s.ID, DiagnosticsRows(diags))
	}
	if err := r.finish(s, len(diags), err, done); err != nil {
		return nil, err
	}
	return &Result{Sweep: s, Diagnostics: diags}, nil
}

// RunBreathing measures every grid point of an already begun sweep.
func (r *Runner) RunBreathing(ctx context.Context, s *store.Sweep, g BreathingGrid) (*Result, error) {
	done := r.started(s)
	pts, err := r.evaluateBreathing(ctx, g)
	if err == nil && r.DB != nil {
		err = r.DB.AddBreathingPoints(s.ID, BreathingRows(pts))
	}
	if err := r.finish(s, len(pts), err, done); err != nil {
		return nil, err
	}
	return &Result{Sweep: s, Breathing: pts}, nil
}

func (r *Runner) started(s *store.Sweep) func(string) {
	r.Log.Info("sweep started", zap.String("id", s.ID), zap.String("kind", s.Kind), zap.Int("workers", r.Workers))
	if r.Metrics == nil {
		return func(string) {}
	}
	return r.Metrics.SweepStarted(s.Kind)
}

// finish settles the sweep record. runErr is returned unchanged so callers
// can errors.Is it against context or domain errors.
func (r *Runner) finish(s *store.Sweep, points int, runErr error, done func(string)) error {
	now := time.Now().UnixMilli()
	s.FinishedAt = &now

	if runErr != nil {
		s.Status = store.StatusFailed
		s.Error = runErr.Error()
		done(store.StatusFailed)
		r.Log.Warn("sweep failed", zap.String("id", s.ID), zap.Error(runErr))
		if r.DB != nil {
			if err := r.DB.FailSweep(s.ID, runErr.Error()); err != nil {
				r.Log.Error("record sweep failure", zap.String("id", s.ID), zap.Error(err))
			}
		}
		return runErr
	}

	s.Status = store.StatusCompleted
	s.Points = points
	if r.DB != nil {
		if err := r.DB.CompleteSweep(s.ID, points); err != nil {
			done(store.StatusFailed)
			return fmt.Errorf("complete sweep %s: %w", s.ID, err)
		}
	}
	done(store.StatusCompleted)
	r.Log.Info("sweep completed", zap.String("id", s.ID), zap.Int("points", points),
		zap.Duration("elapsed", time.Duration(now-s.StartedAt)*time.Millisecond))
	return nil
}

func (r *Runner) evaluateCritical(ctx context.Context, g CriticalGrid) ([]*series.Diagnostics, error) {
	pts, err := g.Points()
	if err != nil {
		return nil, err
	}
	return evaluate(ctx, r.Workers, pts, func(p series.Params) (*series.Diagnostics, error) {
		start := time.Now()
		d, err := series.Classify(p, g.Window)
		if err == nil && !d.Finite() {
			err = fmt.Errorf("%w: alpha=%g beta=%g", series.ErrNonFinite, p.Alpha, p.Beta)
		}
		r.record(store.KindCritical, "real", p.N, time.Since(start), err)
		return d, err
	})
}

func (r *Runner) evaluateBreathing(ctx context.Context, g BreathingGrid) ([]BreathingPoint, error) {
	pts, err := g.Points()
	if err != nil {
		return nil, err
	}
	return evaluate(ctx, r.Workers, pts, func(p series.ComplexParams) (BreathingPoint, error) {
		start := time.Now()
		s, err := series.RunComplex(p)
		r.record(store.KindBreathing, "complex", p.N, time.Since(start), err)
		if err != nil {
			return BreathingPoint{}, err
		}
		m, err := analysis.Breathing(s.Values, g.ScaleFrac)
		if err != nil {
			return BreathingPoint{}, err
		}
		if !m.Finite() {
			return BreathingPoint{}, fmt.Errorf("%w: alpha_i=%g beta_i=%g", series.ErrNonFinite, p.AlphaI, p.BetaI)
		}
		return BreathingPoint{ComplexParams: p, BreathingMetrics: *m}, nil
	})
}

func (r *Runner) record(kind, variant string, n int, elapsed time.Duration, err error) {
	if r.Metrics == nil {
		return
	}
	r.Metrics.RecordSeriesRun(variant, n, elapsed, err)
	r.Metrics.RecordSweepPoint(kind, err)
}

// evaluate applies fn to every point with at most workers in flight. Each
// worker writes only its own slot, so results come back in input order.
// Cancelling ctx stops scheduling and returns ctx's error.
func evaluate[P, R any](ctx context.Context, workers int, points []P, fn func(P) (R, error)) ([]R, error) {
	out := make([]R, len(points))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, workers))

	for i, p := range points {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := fn(p)
			if err != nil {
				return fmt.Errorf("point %d: %w", i, err)
			}
			out[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// DiagnosticsRows converts diagnostics to store rows, numbering them in
// grid order.
func DiagnosticsRows(diags []*series.Diagnostics) []store.DiagnosticsRow {
	rows := make([]store.DiagnosticsRow, len(diags))
	for i, d := range diags {
		rows[i] = store.DiagnosticsRow{
			Seq:            i,
			N:              d.N,
			Alpha:          d.Alpha,
			Beta:           d.Beta,
			Lambda:         d.Lambda,
			Rho:            d.Rho,
			FinalSum:       d.FinalSum,
			WindowedGrowth: d.WindowedGrowth,
			TailMean:       d.TailMean,
			Classification: string(d.Classification),
		}
	}
	return rows
}

func BreathingRows(pts []BreathingPoint) []store.BreathingRow {
	rows := make([]store.BreathingRow, len(pts))
	for i, p := range pts {
		rows[i] = store.BreathingRow{
			Seq:          i,
			N:            p.N,
			AlphaR:       p.Alpha,
			BetaR:        p.Beta,
			AlphaI:       p.AlphaI,
			BetaI:        p.BetaI,
			Lambda:       p.Lambda,
			Rho:          p.Rho,
			Residence:    p.Residence,
			AmplitudeStd: p.AmplitudeStd,
			MeanMag:      p.MeanMagnitude,
			Target:       p.Target,
		}
	}
	return rows
}
