// Command reflexd is the Reflex runtime's CLI front end: `eval` runs a
// query once against a state snapshot, `watch` drives it continuously
// through an in-process supervisor with a live TUI, and `version`
// prints the build identity.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/reflexrun/reflex/internal/config"
	"github.com/reflexrun/reflex/internal/logging"
)

var (
	verbose    bool
	configPath string
	logDir     string

	logger *zap.Logger
	cfg    *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "reflexd",
	Short: "reflexd drives the Reflex reactive functional runtime core",
	Long: `reflexd is the command-line front end for the Reflex runtime: a
content-addressed term heap, a bytecode compiler targeting
WebAssembly, and an actor-supervised interpreter that re-evaluates a
query incrementally as the state it depends on changes.

eval compiles and evaluates a query once against a state snapshot.
watch subscribes a query through an in-process supervisor and
re-renders on every result, hot-recompiling the query file on change.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zapCfg := zap.NewProductionConfig()
		if verbose {
			zapCfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zapCfg.Build()
		if err != nil {
			return fmt.Errorf("reflexd: build logger: %w", err)
		}

		loaded, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("reflexd: load config: %w", err)
		}
		if err := loaded.Validate(); err != nil {
			return fmt.Errorf("reflexd: invalid config: %w", err)
		}
		cfg = loaded
		if verbose {
			cfg.Logging.DebugMode = true
			cfg.Logging.Level = "debug"
		}

		dir := logDir
		if dir == "" {
			dir = "reflexd-logs"
		}
		if err := logging.Initialize(cfg.Logging, dir); err != nil {
			fmt.Fprintf(os.Stderr, "reflexd: warning: file logging disabled: %v\n", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
		logging.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a reflexd config file (defaults applied if absent)")
	rootCmd.PersistentFlags().StringVar(&logDir, "log-dir", "", "directory for category log files (default: ./reflexd-logs)")

	rootCmd.AddCommand(versionCmd, evalCmd, watchCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
