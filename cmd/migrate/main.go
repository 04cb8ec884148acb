// Command migrate manages the customer directory database schema.
package main

import (
	"database/sql"
	"fmt"
	"os"
	"strconv"

	_ "github.com/lib/pq"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/erp/customerdir/internal/infrastructure/config"
	"github.com/erp/customerdir/internal/infrastructure/logger"
	"github.com/erp/customerdir/internal/infrastructure/migration"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// migrateOptions are the flags shared by every subcommand
type migrateOptions struct {
	configFile string
	logLevel   string
	log        *zap.Logger
}

func newRootCmd() *cobra.Command {
	opts := &migrateOptions{}

	rootCmd := &cobra.Command{
		Use:               "migrate",
		Short:             "Customer directory database migration tool",
		Long:              `Apply, roll back and inspect the embedded schema migrations of the customer directory.`,
		DisableAutoGenTag: true,
		SilenceUsage:      true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			log, err := logger.New(&logger.Config{
				Level:      opts.logLevel,
				Format:     "console",
				Output:     "stdout",
				TimeFormat: "2006-01-02 15:04:05",
			})
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			opts.log = log
			return nil
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if opts.log != nil {
				_ = logger.Sync(opts.log)
			}
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Usage()
		},
	}

	rootCmd.PersistentFlags().StringVar(&opts.configFile, "config", "", "Path to configuration file (default: search for config.toml)")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	rootCmd.AddCommand(
		newUpCmd(opts),
		newDownCmd(opts),
		newStepsCmd(opts),
		newVersionCmd(opts),
		newForceCmd(opts),
		newListCmd(opts),
	)
	return rootCmd
}

func newUpCmd(opts *migrateOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			return opts.withMigrator(func(m *migration.Migrator) error {
				return m.Up()
			})
		},
	}
}

func newDownCmd(opts *migrateOptions) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "down",
		Short: "Roll back all migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes && !confirm(cmd, "This drops the customer table and all its data. Continue? (yes/no): ") {
				opts.log.Info("Rollback cancelled by user")
				return nil
			}
			return opts.withMigrator(func(m *migration.Migrator) error {
				return m.Down()
			})
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Answer yes to all questions")
	return cmd
}

func newStepsCmd(opts *migrateOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "steps <n>",
		Short: "Apply n migrations; a negative n rolls back",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			n, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid step count %q", args[0])
			}
			return opts.withMigrator(func(m *migration.Migrator) error {
				return m.Steps(n)
			})
		},
	}
}

func newVersionCmd(opts *migrateOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show the current migration version",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			return opts.withMigrator(func(m *migration.Migrator) error {
				version, dirty, err := m.Version()
				if err != nil {
					return err
				}
				if version == 0 {
					opts.log.Info("No migrations applied")
					return nil
				}
				opts.log.Info("Current migration version",
					zap.Uint("version", version),
					zap.Bool("dirty", dirty),
				)
				return nil
			})
		},
	}
}

func newForceCmd(opts *migrateOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "force <version>",
		Short: "Set the migration version without running migrations (clears a dirty state)",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			version, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid version number %q", args[0])
			}
			return opts.withMigrator(func(m *migration.Migrator) error {
				return m.Force(version)
			})
		},
	}
}

func newListCmd(opts *migrateOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the embedded migration files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			files, err := migration.Files()
			if err != nil {
				return fmt.Errorf("failed to list migrations: %w", err)
			}
			opts.log.Info("Available migrations", zap.Int("count", len(files)))
			for _, f := range files {
				cmd.Println("  -", f)
			}
			return nil
		},
	}
}

// withMigrator opens the configured postgres database, runs fn and closes everything
func (o *migrateOptions) withMigrator(fn func(m *migration.Migrator) error) error {
	cfg, err := config.LoadFrom(viper.New(), o.configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.Database.Driver == "sqlite" {
		return fmt.Errorf("migrations target postgres; sqlite schemas are created with database.auto_migrate")
	}

	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	// Close on the migrator also closes db
	m, err := migration.New(db, o.log)
	if err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to create migrator: %w", err)
	}
	defer func() {
		if err := m.Close(); err != nil {
			o.log.Warn("Error closing migrator", zap.Error(err))
		}
	}()

	return fn(m)
}

func confirm(cmd *cobra.Command, prompt string) bool {
	cmd.Print(prompt)
	var response string
	if _, err := fmt.Fscanln(cmd.InOrStdin(), &response); err != nil {
		return false
	}
	return response == "yes" || response == "y"
}
