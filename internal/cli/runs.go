package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	runsLimit int
	exportOut string
)

var runsCmd = &cobra.Command{
	Use:   "runs [id]",
	Short: "List recorded sweeps, or show one",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runRuns,
}

var exportCmd = &cobra.Command{
	Use:   "export <id>",
	Short: "Export a sweep's points as CSV",
	Args:  cobra.ExactArgs(1),
	RunE:  runExport,
}

func init() {
	runsCmd.Flags().IntVar(&runsLimit, "limit", 20, "max sweeps to list")
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "output file (default stdout)")
}

func runRuns(cmd *cobra.Command, args []string) error {
	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	out := cmd.OutOrStdout()
	if len(args) == 1 {
		s, err := db.GetSweep(args[0])
		if err != nil {
			return err
		}
		if s == nil {
			return fmt.Errorf("sweep not found: %s", args[0])
		}
		fmt.Fprintf(out, "## %s\n\n", s.ID)
		fmt.Fprintf(out, "  kind:     %s\n", s.Kind)
		fmt.Fprintf(out, "  status:   %s\n", s.Status)
		fmt.Fprintf(out, "  points:   %d\n", s.Points)
		fmt.Fprintf(out, "  started:  %s\n", formatMillis(s.StartedAt))
		if s.FinishedAt != nil {
			fmt.Fprintf(out, "  finished: %s\n", formatMillis(*s.FinishedAt))
		}
		if s.Error != "" {
			fmt.Fprintf(out, "  error:    %s\n", s.Error)
		}
		fmt.Fprintf(out, "  params:   %s\n", s.Params)
		return nil
	}

	sweeps, err := db.ListSweeps(runsLimit)
	if err != nil {
		return err
	}
	if len(sweeps) == 0 {
		fmt.Fprintln(out, "No sweeps recorded.")
		return nil
	}
	for _, s := range sweeps {
		fmt.Fprintf(out, "%s  %-9s  %-9s  %5d  %s\n", s.ID, s.Kind, s.Status, s.Points, formatMillis(s.StartedAt))
	}
	return nil
}

func runExport(cmd *cobra.Command, args []string) error {
	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	if exportOut == "" {
		return db.ExportCSV(cmd.OutOrStdout(), args[0])
	}

	f, err := os.Create(exportOut)
	if err != nil {
		return err
	}
	if err := db.ExportCSV(f, args[0]); err != nil {
		f.Close()
		os.Remove(exportOut)
		return err
	}
	return f.Close()
}

func formatMillis(ms int64) string {
	return time.UnixMilli(ms).Format(time.DateTime)
}

