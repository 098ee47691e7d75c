// Command memos-users provisions and inspects the MemOS user-management
// backend. The bootstrap command applies the idempotent schema (namespace,
// tables, indexes) against the configured database and exits 0 on success,
// including when everything is already in place.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/memtensor/memos-users/pkg/config"
	"github.com/memtensor/memos-users/pkg/errors"
	"github.com/memtensor/memos-users/pkg/users"
)

// Version information (set by build process)
var (
	Version   = "dev"
	GitCommit = "unknown"
)

// Exit codes for the bootstrap contract
const (
	exitOK             = 0
	exitFailure        = 1
	exitSchemaConflict = 2
)

var (
	configFile string
	envFile    string
	backend    string
	logLevel   string
)

func main() {
	root := newRootCommand()
	if err := root.Execute(); err != nil {
		os.Exit(exitCode(err))
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "memos-users",
		Short:         "Provision and inspect the MemOS user-management backend",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			setupLogging()
			if envFile != "" {
				if err := godotenv.Load(envFile); err != nil {
					return fmt.Errorf("failed to load env file %s: %w", envFile, err)
				}
			} else {
				// A .env in the working directory is optional
				_ = godotenv.Load()
			}
			return nil
		},
	}

	root.PersistentFlags().StringVar(&configFile, "config", "", "path to a YAML config file (default: environment variables)")
	root.PersistentFlags().StringVar(&envFile, "env-file", "", "path to an env file to load before reading configuration")
	root.PersistentFlags().StringVar(&backend, "backend", "", "backend override: sqlite, mysql, or postgres")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(newBootstrapCommand())
	root.AddCommand(newHealthCommand())
	root.AddCommand(newVersionCommand())
	return root
}

func newBootstrapCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "bootstrap",
		Short: "Apply the user-management schema to the configured database",
		Long: `Bootstrap ensures the target namespace, the users, cubes, and
user_cube_association tables, and their secondary indexes exist. The
operation is idempotent: re-running it against an already provisioned
database is a no-op and exits 0. An existing object with an incompatible
shape is never altered; the command fails and exits 2 instead.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			slog.Info("bootstrapping user-management schema", "backend", cfg.Backend)

			manager, err := users.NewManager(cfg)
			if err != nil {
				return err
			}
			defer manager.Close()

			slog.Info("schema bootstrap complete", "backend", manager.Config().Backend)
			return nil
		},
	}
}

func newHealthCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check connectivity to the configured database",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			db, err := users.Open(cfg)
			if err != nil {
				return err
			}
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			defer sqlDB.Close()

			if err := sqlDB.Ping(); err != nil {
				return errors.NewConnectivityError("database is unreachable", err)
			}

			slog.Info("database is reachable", "backend", cfg.Backend)
			return nil
		},
	}
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("memos-users %s (%s)\n", Version, GitCommit)
		},
	}
}

// loadConfig reads configuration from the config file when given, the
// environment otherwise, and applies the --backend flag override.
func loadConfig() (*config.BackendConfig, error) {
	var cfg *config.BackendConfig
	var err error

	if configFile != "" {
		cfg, err = config.FromYAMLFile(configFile)
	} else {
		cfg, err = config.FromEnv()
	}
	if err != nil {
		return nil, err
	}

	if backend != "" {
		cfg.Backend = backend
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.NewValidationError(fmt.Sprintf("invalid configuration: %v", err))
	}
	return cfg, nil
}

func setupLogging() {
	level := slog.LevelInfo
	switch logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
}

// exitCode maps failures onto the documented exit-code contract: schema
// conflicts require manual intervention and get a distinct code.
func exitCode(err error) int {
	if err == nil {
		return exitOK
	}
	if errors.IsSchemaConflict(err) {
		return exitSchemaConflict
	}
	return exitFailure
}
