package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/lazypower/memseries/internal/store"
	"github.com/lazypower/memseries/internal/sweep"
)

func (s *Server) handleCriticalSweep(w http.ResponseWriter, r *http.Request) {
	g := sweep.DefaultCriticalGrid()
	g.Window = s.window
	if !s.decode(w, r, &g) || !s.checkN(w, g.N) {
		return
	}
	if _, err := g.Points(); err != nil {
		s.fail(w, err)
		return
	}

	rec, err := s.runner.Begin(store.KindCritical, g)
	if err != nil {
		s.fail(w, err)
		return
	}
	s.accepted(w, rec)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if _, err := s.runner.RunCritical(s.ctx, rec, g); err != nil {
			s.log.Warn("critical sweep", zap.String("id", rec.ID), zap.Error(err))
		}
	}()
}

func (s *Server) handleBreathingSweep(w http.ResponseWriter, r *http.Request) {
	g := sweep.DefaultBreathingGrid()
	if !s.decode(w, r, &g) || !s.checkN(w, g.N) {
		return
	}
	if _, err := g.Points(); err != nil {
		s.fail(w, err)
		return
	}

	rec, err := s.runner.Begin(store.KindBreathing, g)
	if err != nil {
		s.fail(w, err)
		return
	}
	s.accepted(w, rec)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if _, err := s.runner.RunBreathing(s.ctx, rec, g); err != nil {
			s.log.Warn("breathing sweep", zap.String("id", rec.ID), zap.Error(err))
		}
	}()
}

// accepted answers 202 before the sweep goroutine starts touching rec.
func (s *Server) accepted(w http.ResponseWriter, rec *store.Sweep) {
	w.Header().Set("Location", "/api/sweeps/"+rec.ID)
	writeJSON(w, http.StatusAccepted, map[string]string{
		"id":     rec.ID,
		"kind":   rec.Kind,
		"status": rec.Status,
	})
}

func (s *Server) handleListSweeps(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	sweeps, err := s.db.ListSweeps(limit)
	if err != nil {
		s.fail(w, err)
		return
	}
	if sweeps == nil {
		sweeps = []store.Sweep{}
	}
	writeJSON(w, http.StatusOK, sweeps)
}

func (s *Server) handleGetSweep(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.lookupSweep(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleDeleteSweep(w http.ResponseWriter, r *http.Request) {
	found, err := s.db.DeleteSweep(chi.URLParam(r, "id"))
	switch {
	case errors.Is(err, store.ErrSweepRunning):
		writeError(w, http.StatusConflict, err.Error())
	case err != nil:
		s.fail(w, err)
	case !found:
		writeError(w, http.StatusNotFound, "sweep not found")
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) handleSweepPoints(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.lookupSweep(w, r)
	if !ok {
		return
	}

	var (
		points any
		err    error
	)
	switch rec.Kind {
	case store.KindCritical:
		var rows []store.DiagnosticsRow
		rows, err = s.db.ListDiagnostics(rec.ID)
		if rows == nil {
			rows = []store.DiagnosticsRow{}
		}
		points = rows
	case store.KindBreathing:
		var rows []store.BreathingRow
		rows, err = s.db.ListBreathingPoints(rec.ID)
		if rows == nil {
			rows = []store.BreathingRow{}
		}
		points = rows
	}
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":     rec.ID,
		"kind":   rec.Kind,
		"status": rec.Status,
		"points": points,
	})
}

func (s *Server) lookupSweep(w http.ResponseWriter, r *http.Request) (*store.Sweep, bool) {
	id := chi.URLParam(r, "id")
	rec, err := s.db.GetSweep(id)
	if err != nil {
		s.fail(w, err)
		return nil, false
	}
	if rec == nil {
		writeError(w, http.StatusNotFound, "sweep not found")
		return nil, false
	}
	return rec, true
}
