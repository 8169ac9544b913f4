package server

import (
	"net/http"
	"testing"

	"github.com/lazypower/memseries/internal/config"
	"github.com/lazypower/memseries/internal/store"
)

func TestCriticalSweepLifecycle(t *testing.T) {
	srv := testServer(t, WithWorkers(2))

	w := do(t, srv, "POST", "/api/sweeps/critical", `{"steps":2,"n":2000,"window":100}`)
	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202; body: %s", w.Code, w.Body.String())
	}
	var accepted map[string]string
	decodeBody(t, w, &accepted)
	id := accepted["id"]
	if id == "" || accepted["status"] != store.StatusRunning {
		t.Fatalf("accepted = %v", accepted)
	}
	if loc := w.Header().Get("Location"); loc != "/api/sweeps/"+id {
		t.Errorf("Location = %q", loc)
	}

	srv.wg.Wait()

	w = do(t, srv, "GET", "/api/sweeps/"+id, "")
	if w.Code != http.StatusOK {
		t.Fatalf("get sweep status = %d", w.Code)
	}
	var rec store.Sweep
	decodeBody(t, w, &rec)
	if rec.Status != store.StatusCompleted || rec.Points != 4 {
		t.Errorf("sweep = %+v, want completed with 4 points", rec)
	}

	w = do(t, srv, "GET", "/api/sweeps/"+id+"/points", "")
	var pts struct {
		Kind   string                 `json:"kind"`
		Points []store.DiagnosticsRow `json:"points"`
	}
	decodeBody(t, w, &pts)
	if pts.Kind != store.KindCritical || len(pts.Points) != 4 {
		t.Fatalf("points = %+v", pts)
	}
	for i, p := range pts.Points {
		if p.Seq != i {
			t.Errorf("point %d has seq %d", i, p.Seq)
		}
	}

	w = do(t, srv, "GET", "/api/sweeps", "")
	var list []store.Sweep
	decodeBody(t, w, &list)
	if len(list) != 1 || list[0].ID != id {
		t.Errorf("list = %+v", list)
	}
}

func TestBreathingSweep(t *testing.T) {
	srv := testServer(t)

	w := do(t, srv, "POST", "/api/sweeps/breathing", `{"steps":1,"n":1000}`)
	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d; body: %s", w.Code, w.Body.String())
	}
	var accepted map[string]string
	decodeBody(t, w, &accepted)
	srv.wg.Wait()

	w = do(t, srv, "GET", "/api/sweeps/"+accepted["id"]+"/points", "")
	var pts struct {
		Status string               `json:"status"`
		Points []store.BreathingRow `json:"points"`
	}
	decodeBody(t, w, &pts)
	if pts.Status != store.StatusCompleted || len(pts.Points) != 1 {
		t.Fatalf("points = %+v", pts)
	}
	if pts.Points[0].AlphaI != 2.4 || pts.Points[0].Residence <= 0 {
		t.Errorf("point = %+v", pts.Points[0])
	}
}

func TestSweepRejections(t *testing.T) {
	cfg := config.Default().Server
	cfg.MaxN = 5000
	cfg.SweepRate = 1000
	cfg.SweepBurst = 100
	srv := testServer(t, WithConfig(cfg))

	tests := []struct {
		name string
		path string
		body string
		want int
	}{
		{"too many steps", "/api/sweeps/critical", `{"steps":500,"n":100}`, http.StatusBadRequest},
		{"n over limit", "/api/sweeps/critical", `{"steps":2}`, http.StatusBadRequest},
		{"negative lambda", "/api/sweeps/critical", `{"steps":2,"n":100,"lambda":-1}`, http.StatusUnprocessableEntity},
		{"zero scale", "/api/sweeps/breathing", `{"steps":2,"n":100,"scale_frac":0}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, srv, "POST", tt.path, tt.body)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d; body: %s", w.Code, tt.want, w.Body.String())
			}
		})
	}

	w := do(t, srv, "GET", "/api/sweeps?limit=0", "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("limit=0 status = %d, want 400", w.Code)
	}
}

func TestSweepNotFound(t *testing.T) {
	srv := testServer(t)

	for _, path := range []string{"/api/sweeps/does-not-exist", "/api/sweeps/does-not-exist/points"} {
		w := do(t, srv, "GET", path, "")
		if w.Code != http.StatusNotFound {
			t.Errorf("%s: status = %d, want 404", path, w.Code)
		}
	}
}

func TestSweepRateLimit(t *testing.T) {
	cfg := config.Default().Server
	cfg.SweepRate = 0.001
	cfg.SweepBurst = 1
	srv := testServer(t, WithConfig(cfg))

	body := `{"steps":1,"n":500,"window":10}`
	if w := do(t, srv, "POST", "/api/sweeps/critical", body); w.Code != http.StatusAccepted {
		t.Fatalf("first submit status = %d; body: %s", w.Code, w.Body.String())
	}
	if w := do(t, srv, "POST", "/api/sweeps/critical", body); w.Code != http.StatusTooManyRequests {
		t.Errorf("second submit status = %d, want 429", w.Code)
	}
	// Reads are not throttled.
	if w := do(t, srv, "GET", "/api/sweeps", ""); w.Code != http.StatusOK {
		t.Errorf("list status = %d", w.Code)
	}
}

func TestDeleteSweep(t *testing.T) {
	srv := testServer(t)

	running, err := srv.db.CreateSweep(store.KindCritical, nil)
	if err != nil {
		t.Fatal(err)
	}
	if w := do(t, srv, "DELETE", "/api/sweeps/"+running.ID, ""); w.Code != http.StatusConflict {
		t.Errorf("delete running status = %d, want 409", w.Code)
	}

	if err := srv.db.CompleteSweep(running.ID, 0); err != nil {
		t.Fatal(err)
	}
	if w := do(t, srv, "DELETE", "/api/sweeps/"+running.ID, ""); w.Code != http.StatusNoContent {
		t.Errorf("delete status = %d, want 204", w.Code)
	}
	if w := do(t, srv, "GET", "/api/sweeps/"+running.ID, ""); w.Code != http.StatusNotFound {
		t.Errorf("get after delete status = %d, want 404", w.Code)
	}
	if w := do(t, srv, "DELETE", "/api/sweeps/"+running.ID, ""); w.Code != http.StatusNotFound {
		t.Errorf("second delete status = %d, want 404", w.Code)
	}
}
