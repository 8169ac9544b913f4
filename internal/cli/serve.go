package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lazypower/memseries/internal/metrics"
	"github.com/lazypower/memseries/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	// Sweeps left running by a previous process will never finish.
	n, err := db.InterruptRunning()
	if err != nil {
		return err
	}
	if n > 0 {
		logger.Warn("marked stale sweeps failed", zap.Int64("count", n))
	}

	m := metrics.NewCollector(logger)
	srv := server.New(db, VersionString(),
		server.WithLogger(logger),
		server.WithMetrics(m),
		server.WithConfig(cfg.Server),
		server.WithWorkers(cfg.Sweep.Workers),
		server.WithWindow(cfg.Sweep.Window),
	)
	defer srv.Close()

	addr := cfg.ListenAddr()
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	errc := make(chan error, 1)
	go func() {
		fmt.Fprintf(os.Stderr, "memseries serving on %s\n", addr)
		fmt.Fprintf(os.Stderr, "  db: %s\n", db.Path)
		fmt.Fprintf(os.Stderr, "  max n: %d\n", cfg.Server.MaxN)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errc <- err
		}
	}()

	select {
	case <-done:
	case err := <-errc:
		return fmt.Errorf("server error: %w", err)
	}
	fmt.Fprintln(os.Stderr, "\nshutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Warn("shutdown", zap.Error(err))
		return err
	}
	return nil
}
