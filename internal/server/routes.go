package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/lazypower/memseries/internal/analysis"
	"github.com/lazypower/memseries/internal/series"
)

// ParamsRequest is the wire form of series.Params. Tags bound the request
// shape; the numerical domain is left to the engine so it surfaces as 422.
type ParamsRequest struct {
	N      int     `json:"n" validate:"gte=1"`
	Alpha  float64 `json:"alpha"`
	Beta   float64 `json:"beta"`
	Lambda float64 `json:"lambda"`
	Rho    float64 `json:"rho"`
}

func (p ParamsRequest) params() series.Params {
	return series.Params{N: p.N, Alpha: p.Alpha, Beta: p.Beta, Lambda: p.Lambda, Rho: p.Rho}
}

func defaultParams() ParamsRequest {
	return ParamsRequest{Rho: 1}
}

type seriesRequest struct {
	ParamsRequest
	Variant       string  `json:"variant" validate:"omitempty,oneof=real complex"`
	AlphaI        float64 `json:"alpha_i"`
	BetaI         float64 `json:"beta_i"`
	IncludeValues bool    `json:"include_values"`
}

type classifyRequest struct {
	ParamsRequest
	Window int `json:"window" validate:"gte=1"`
}

type validateRequest struct {
	ParamsRequest
	Step float64 `json:"step"`
}

type breatheRequest struct {
	ParamsRequest
	AlphaI    float64 `json:"alpha_i"`
	BetaI     float64 `json:"beta_i"`
	ScaleFrac float64 `json:"scale_frac" validate:"gt=0"`
	FitOffset int     `json:"fit_offset" validate:"gte=0"`
	FitCount  int     `json:"fit_count" validate:"gte=1"`
	Spectrum  bool    `json:"spectrum"`
}

func (s *Server) handleSeries(w http.ResponseWriter, r *http.Request) {
	req := seriesRequest{ParamsRequest: defaultParams(), Variant: "real"}
	if !s.decode(w, r, &req) || !s.checkN(w, req.N) {
		return
	}

	resp := map[string]any{"variant": req.Variant, "n": req.N}
	start := time.Now()
	if req.Variant == "complex" {
		cs, err := series.RunComplex(series.ComplexParams{Params: req.params(), AlphaI: req.AlphaI, BetaI: req.BetaI})
		s.metrics.RecordSeriesRun("complex", req.N, time.Since(start), err)
		if err != nil {
			s.fail(w, err)
			return
		}
		resp["final_sum"] = cs.FinalSum()
		if req.IncludeValues {
			resp["index"] = cs.Index
			resp["magnitude"] = cs.Magnitudes()
			resp["phase"] = cs.Phase
			resp["sum"] = cs.Sum
		}
	} else {
		rs, err := series.Run(req.params())
		s.metrics.RecordSeriesRun("real", req.N, time.Since(start), err)
		if err != nil {
			s.fail(w, err)
			return
		}
		resp["final_sum"] = rs.FinalSum()
		if req.IncludeValues {
			resp["index"] = rs.Index
			resp["values"] = rs.Values
			resp["sum"] = rs.Sum
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleClassify(w http.ResponseWriter, r *http.Request) {
	req := classifyRequest{ParamsRequest: defaultParams(), Window: s.window}
	if !s.decode(w, r, &req) || !s.checkN(w, req.N) {
		return
	}

	start := time.Now()
	d, err := series.Classify(req.params(), req.Window)
	s.metrics.RecordSeriesRun("real", req.N, time.Since(start), err)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	req := validateRequest{ParamsRequest: defaultParams(), Step: series.DefaultStep}
	if !s.decode(w, r, &req) || !s.checkN(w, req.N) {
		return
	}

	start := time.Now()
	cc, err := series.Compare(req.params(), req.Step)
	s.metrics.RecordSeriesRun("real", req.N, time.Since(start), err)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cc)
}

func (s *Server) handleBreathe(w http.ResponseWriter, r *http.Request) {
	req := breatheRequest{
		ParamsRequest: defaultParams(),
		ScaleFrac:     analysis.DefaultScaleFrac,
		FitOffset:     analysis.DefaultFitOffset,
		FitCount:      analysis.DefaultFitCount,
	}
	if !s.decode(w, r, &req) || !s.checkN(w, req.N) {
		return
	}

	start := time.Now()
	cs, err := series.RunComplex(series.ComplexParams{Params: req.params(), AlphaI: req.AlphaI, BetaI: req.BetaI})
	s.metrics.RecordSeriesRun("complex", req.N, time.Since(start), err)
	if err != nil {
		s.fail(w, err)
		return
	}
	m, err := analysis.Breathing(cs.Values, req.ScaleFrac)
	if err != nil {
		s.fail(w, err)
		return
	}
	resp := map[string]any{"metrics": m}

	if cs.Len() >= 2 {
		fit, err := analysis.FitPhase(cs.Index, cs.Phase, req.FitOffset, req.FitCount)
		if err != nil {
			s.fail(w, err)
			return
		}
		resp["phase_fit"] = fit
	}
	if req.Spectrum && cs.Len() >= 2 {
		re := make([]float64, cs.Len())
		for i, v := range cs.Values {
			re[i] = real(v)
		}
		sp, err := analysis.ComputeSpectrum(re)
		if err != nil {
			s.fail(w, err)
			return
		}
		resp["spectrum_peak"] = sp.Peak()
	}
	writeJSON(w, http.StatusOK, resp)
}

// decode reads a JSON body over the defaults already in v and validates it.
// An empty body keeps the defaults.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid json")
		return false
	}
	if err := s.validate.Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			writeError(w, http.StatusBadRequest, fmt.Sprintf("%s failed %s=%s", fe.Field(), fe.Tag(), fe.Param()))
			return false
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}

func (s *Server) checkN(w http.ResponseWriter, n int) bool {
	if n > s.cfg.MaxN {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("n exceeds server limit %d", s.cfg.MaxN))
		return false
	}
	return true
}

// fail maps engine domain errors to 422 and everything else to 500.
func (s *Server) fail(w http.ResponseWriter, err error) {
	if errors.Is(err, series.ErrDomain) || errors.Is(err, series.ErrNonFinite) ||
		errors.Is(err, analysis.ErrNoSignal) {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	s.log.Error("request failed", zap.Error(err))
	writeError(w, http.StatusInternalServerError, err.Error())
}

// writeJSON encodes before writing the header so an unencodable value still
// gets an error status. Overflowed results (±Inf, NaN) have no JSON form and
// are reported as 422.
func writeJSON(w http.ResponseWriter, status int, v any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		var unsupported *json.UnsupportedValueError
		msg := "encode response: " + err.Error()
		status = http.StatusInternalServerError
		if errors.As(err, &unsupported) {
			msg = fmt.Sprintf("%s: result overflowed to %s", series.ErrNonFinite, unsupported.Str)
			status = http.StatusUnprocessableEntity
		}
		buf.Reset()
		json.NewEncoder(&buf).Encode(map[string]string{"error": msg})
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	buf.WriteTo(w)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
