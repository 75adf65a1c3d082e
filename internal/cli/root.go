// Package cli implements the transfer command line tool.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/persons/internal/config"
	"github.com/JonMunkholm/persons/internal/core"
	"github.com/JonMunkholm/persons/internal/logging"
	"github.com/JonMunkholm/persons/internal/store"
)

var rootCmd = &cobra.Command{
	Use:   "transfer",
	Short: "Bulk transfer of person records",
	Long: `transfer moves person records between semicolon-separated text files,
a database and spreadsheet or XML exports.

The database is selected by DATABASE_URL (postgres://... or sqlite://path).
Settings are read from the environment and from a .env file when present.

Exit Codes:
  0  - Success
  1  - Operation failed
  2  - Operation cancelled`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
	PersistentPostRun: teardown,
}

var rootFlags struct {
	envFile  string
	database string
	logLevel string
}

// env is what every subcommand runs against. It is built by setup.
type env struct {
	cfg     *config.Config
	store   store.Store
	service *core.Service
	logs    io.Closer
}

var app *env

// Execute runs the root command and returns the process exit code.
func Execute() int {
	err := rootCmd.Execute()
	if err == nil {
		return 0
	}
	fmt.Fprintln(os.Stderr, "Error:", errorText(err))
	return exitCode(err)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&rootFlags.envFile, "env-file", ".env", "Environment file to load if it exists")
	rootCmd.PersistentFlags().StringVar(&rootFlags.database, "database", "", "Database URL (overrides DATABASE_URL)")
	rootCmd.PersistentFlags().StringVar(&rootFlags.logLevel, "log-level", "", "Log level: debug, info, warn, error (overrides LOG_LEVEL)")
}

// setup loads configuration, logging, the store and the service.
func setup(cmd *cobra.Command, _ []string) error {
	if err := godotenv.Overload(rootFlags.envFile); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("load %s: %w", rootFlags.envFile, err)
	}
	if rootFlags.database != "" {
		os.Setenv("DATABASE_URL", rootFlags.database)
	}
	if rootFlags.logLevel != "" {
		os.Setenv("LOG_LEVEL", rootFlags.logLevel)
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logs := logging.Setup(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Rotation())
	slog.Debug("configuration loaded", "config", cfg.String())

	st, err := store.Open(ctxOrBackground(cmd), cfg.Database)
	if err != nil {
		logs.Close()
		return err
	}

	app = &env{
		cfg:     cfg,
		store:   st,
		service: core.NewService(st, cfg.Transfer.ServiceConfig()),
		logs:    logs,
	}
	return nil
}

func teardown(*cobra.Command, []string) {
	if app == nil {
		return
	}
	if err := app.store.Close(); err != nil {
		slog.Warn("close store", "error", err)
	}
	app.logs.Close()
	app = nil
}

// ctxOrBackground returns the command context, which is nil when a command
// is invoked directly in tests.
func ctxOrBackground(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
