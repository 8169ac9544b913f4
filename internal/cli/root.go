package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lazypower/memseries/internal/config"
	"github.com/lazypower/memseries/internal/logging"
	"github.com/lazypower/memseries/internal/store"
)

var (
	configPath string
	dbFlag     string
	logLevel   string

	cfg    *config.Config
	logger = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   "memseries",
	Short: "Memory-weighted recurrence series engine",
	Long: "memseries computes series whose terms are damped by the accumulated magnitude of\n" +
		"all previous terms, classifies their growth, cross-checks them against the ODE\n" +
		"limit and sweeps parameter grids around the critical line.",
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

func Execute() error {
	defer func() { logger.Sync() }()
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "YAML config file")
	rootCmd.PersistentFlags().StringVar(&dbFlag, "db", "", "SQLite database path (default ~/.memseries/memseries.db)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "debug, info, warn or error")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(seriesCmd)
	rootCmd.AddCommand(classifyCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(breatheCmd)
	rootCmd.AddCommand(relabelCmd)
	rootCmd.AddCommand(sweepCmd)
	rootCmd.AddCommand(runsCmd)
	rootCmd.AddCommand(exportCmd)
}

// loadConfig resolves defaults, the config file, MEMSERIES_* env and flags,
// in that order, and builds the logger.
func loadConfig(cmd *cobra.Command, args []string) error {
	loaded, err := config.NewLoader().WithConfigPath(configPath).Load()
	if err != nil {
		return err
	}
	if dbFlag != "" {
		loaded.Database.Path = dbFlag
	}
	if logLevel != "" {
		loaded.Log.Level = logLevel
		if err := loaded.Validate(); err != nil {
			return err
		}
	}

	l, err := logging.New(loaded.Log)
	if err != nil {
		return err
	}
	cfg, logger = loaded, l
	return nil
}

// openDB opens the configured database, falling back to the default path.
func openDB() (*store.DB, error) {
	path := cfg.Database.Path
	if path == "" {
		var err error
		path, err = store.DefaultDBPath()
		if err != nil {
			return nil, err
		}
	}
	db, err := store.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	return db, nil
}
