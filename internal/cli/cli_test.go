package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// execute runs the root command with args after restoring every flag to its
// default, since cobra keeps flag state between executions.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

func tempDB(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "memseries.db")
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out, "memseries dev") {
		t.Errorf("version output = %q", out)
	}
}

func TestSeriesJSON(t *testing.T) {
	out, err := execute(t, "series", "--n", "5", "--alpha", "1", "--beta", "0", "--lambda", "0", "--values", "--json")
	if err != nil {
		t.Fatal(err)
	}
	var resp struct {
		FinalSum float64   `json:"final_sum"`
		Values   []float64 `json:"values"`
	}
	if err := json.Unmarshal([]byte(out), &resp); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	want := 1.0/2 + 1.0/3 + 1.0/4 + 1.0/5 + 1.0/6
	if diff := resp.FinalSum - want; diff > 1e-12 || diff < -1e-12 {
		t.Errorf("final_sum = %v, want %v", resp.FinalSum, want)
	}
	if len(resp.Values) != 5 {
		t.Errorf("got %d values", len(resp.Values))
	}
}

func TestSeriesFlagsDoNotLeak(t *testing.T) {
	if _, err := execute(t, "series", "--n", "3", "--json"); err != nil {
		t.Fatal(err)
	}
	out, err := execute(t, "series", "--n", "3")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "## Series (real)") {
		t.Errorf("expected text output after a --json run, got %q", out)
	}
}

func TestSeriesComplexTable(t *testing.T) {
	out, err := execute(t, "series", "--n", "4", "--complex", "--alpha-i", "2.8", "--beta-i", "2.9", "--values")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "## Series (complex)") || !strings.Contains(out, "phase") {
		t.Errorf("unexpected output:\n%s", out)
	}
	// header plus one row per term
	header := strings.LastIndex(out[:strings.Index(out, "|a_n|")], "\n") + 1
	lines := strings.Split(strings.TrimSpace(out[header:]), "\n")
	if len(lines) != 5 {
		t.Errorf("got %d table lines, want 5:\n%s", len(lines), out)
	}
}

func TestSeriesDomainError(t *testing.T) {
	if _, err := execute(t, "series", "--n", "5", "--lambda", "-1"); err == nil {
		t.Error("expected error for negative lambda")
	}
}

func TestClassify(t *testing.T) {
	out, err := execute(t, "classify", "--n", "2000", "--alpha", "1.2", "--beta", "0", "--window", "100", "--json")
	if err != nil {
		t.Fatal(err)
	}
	var d map[string]any
	if err := json.Unmarshal([]byte(out), &d); err != nil {
		t.Fatal(err)
	}
	if d["classification"] != "convergent" {
		t.Errorf("classification = %v", d["classification"])
	}
}

func TestValidate(t *testing.T) {
	out, err := execute(t, "validate", "--n", "100", "--alpha", "2", "--beta", "0", "--lambda", "0", "--step", "0.5")
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"## ODE cross-check (h = 0.5)", "discrete:", "relative diff:"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestBreathe(t *testing.T) {
	out, err := execute(t, "breathe", "--n", "2000", "--spectrum")
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"residence:", "phase slope:", "spectrum peak:"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestRelabel(t *testing.T) {
	out, err := execute(t, "relabel", "entropy", "--n", "5", "--alpha", "1", "--beta", "0", "--lambda", "0", "--kb", "2", "--json")
	if err != nil {
		t.Fatal(err)
	}
	var e struct {
		S []float64 `json:"s"`
		M []float64 `json:"m"`
	}
	if err := json.Unmarshal([]byte(out), &e); err != nil {
		t.Fatal(err)
	}
	if len(e.S) != 5 || e.S[4] != 2*e.M[4] {
		t.Errorf("entropy view = %+v", e)
	}

	out, err = execute(t, "relabel", "cosmology", "--n", "10", "--h0", "1", "--t-max", "5", "--dt", "1", "--t0", "1", "--gamma", "2", "--json")
	if err != nil {
		t.Fatal(err)
	}
	var c struct {
		Events []int     `json:"events"`
		H      []float64 `json:"h"`
	}
	if err := json.Unmarshal([]byte(out), &c); err != nil {
		t.Fatal(err)
	}
	// N(t) = t^2 clamped to 2
	want := []int{2, 4, 9, 16, 25}
	if len(c.Events) != len(want) {
		t.Fatalf("events = %v", c.Events)
	}
	for i := range want {
		if c.Events[i] != want[i] {
			t.Errorf("events[%d] = %d, want %d", i, c.Events[i], want[i])
		}
	}
	for i := 1; i < len(c.H); i++ {
		if c.H[i] <= c.H[i-1] {
			t.Errorf("H not increasing at %d: %v", i, c.H)
		}
	}

	out, err = execute(t, "relabel", "neural", "--n", "10")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "## Potentiation") {
		t.Errorf("unexpected output:\n%s", out)
	}
}

func TestSweepPersistAndExport(t *testing.T) {
	db := tempDB(t)

	out, err := execute(t, "--db", db, "--log-level", "error", "sweep", "critical", "--steps", "2", "--n", "500", "--window", "50", "--json")
	if err != nil {
		t.Fatal(err)
	}
	var res struct {
		Sweep struct {
			ID     string `json:"id"`
			Status string `json:"status"`
			Points int    `json:"points"`
		} `json:"sweep"`
	}
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if res.Sweep.Status != "completed" || res.Sweep.Points != 4 {
		t.Fatalf("sweep = %+v", res.Sweep)
	}

	out, err = execute(t, "--db", db, "runs")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, res.Sweep.ID) {
		t.Errorf("runs missing %s:\n%s", res.Sweep.ID, out)
	}

	out, err = execute(t, "--db", db, "runs", res.Sweep.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "status:   completed") {
		t.Errorf("runs detail:\n%s", out)
	}

	csvPath := filepath.Join(t.TempDir(), "out.csv")
	if _, err := execute(t, "--db", db, "export", res.Sweep.ID, "-o", csvPath); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(csvPath)
	if err != nil {
		t.Fatal(err)
	}
	if lines := strings.Split(strings.TrimSpace(string(data)), "\n"); len(lines) != 5 {
		t.Errorf("csv has %d lines, want header + 4:\n%s", len(lines), data)
	}
}

func TestSweepBreathingNoSave(t *testing.T) {
	db := tempDB(t)

	out, err := execute(t, "--db", db, "--log-level", "error", "sweep", "breathing", "--steps", "1", "--n", "500", "--no-save")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "status: completed  points: 1") {
		t.Errorf("unexpected output:\n%s", out)
	}

	out, err = execute(t, "--db", db, "runs")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "No sweeps recorded.") {
		t.Errorf("--no-save sweep was persisted:\n%s", out)
	}
}

func TestSweepInvalidGrid(t *testing.T) {
	_, err := execute(t, "--db", tempDB(t), "sweep", "critical", "--steps", "0", "--no-save")
	if err == nil || !strings.Contains(err.Error(), "invalid grid") {
		t.Errorf("err = %v, want invalid grid", err)
	}
}

func TestExportUnknownSweep(t *testing.T) {
	if _, err := execute(t, "--db", tempDB(t), "export", "nope"); err == nil {
		t.Error("expected error for unknown sweep")
	}
}

func TestBadLogLevel(t *testing.T) {
	if _, err := execute(t, "--log-level", "loud", "version"); err == nil {
		t.Error("expected error for unknown log level")
	}
}

func TestConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "memseries.yaml")
	db := filepath.Join(dir, "from-config.db")
	yaml := "database:\n  path: " + db + "\nlog:\n  level: error\n"
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := execute(t, "--config", path, "runs"); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(db); err != nil {
		t.Errorf("database from config not created: %v", err)
	}
	if cfg.Log.Level != "error" {
		t.Errorf("log level = %q, want error", cfg.Log.Level)
	}

	if err := os.WriteFile(path, []byte("log: [unterminated"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := execute(t, "--config", path, "version"); err == nil {
		t.Error("expected error for malformed config")
	}
}
