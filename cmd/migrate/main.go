package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/spf13/cobra"

	"github.com/ogurasousui/jobmarket-grpc-clean-arch/internal/platform/config"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var (
		configPath    string
		migrationsDir string
	)

	root := &cobra.Command{
		Use:           "migrate",
		Short:         "Apply database migrations",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to config file (defaults to CONFIG_PATH env or assets/local.yaml)")
	root.PersistentFlags().StringVar(&migrationsDir, "dir", "assets/migrations", "directory containing migration files")

	withMigrator := func(fn func(*cobra.Command, *migrate.Migrate) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(effectiveConfigPath(configPath))
			if err != nil {
				return errors.Wrap(err, "load config")
			}
			m, err := newMigrator(migrationsDir, cfg.Database.DSN())
			if err != nil {
				return err
			}
			defer m.Close()
			return fn(cmd, m)
		}
	}

	var steps int
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations (all, or --steps N)",
		Args:  cobra.NoArgs,
		RunE: withMigrator(func(cmd *cobra.Command, m *migrate.Migrate) error {
			var err error
			if steps > 0 {
				err = m.Steps(-steps)
			} else {
				err = m.Down()
			}
			if err != nil && !errors.Is(err, migrate.ErrNoChange) {
				return errors.Wrap(err, "migration down")
			}
			cmd.Println("migration down completed")
			return nil
		}),
	}
	down.Flags().IntVar(&steps, "steps", 0, "number of migrations to roll back")

	root.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			Args:  cobra.NoArgs,
			RunE: withMigrator(func(cmd *cobra.Command, m *migrate.Migrate) error {
				if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
					return errors.Wrap(err, "migration up")
				}
				cmd.Println("migration up completed")
				return nil
			}),
		},
		down,
		&cobra.Command{
			Use:   "drop",
			Short: "Drop everything in the database",
			Args:  cobra.NoArgs,
			RunE: withMigrator(func(cmd *cobra.Command, m *migrate.Migrate) error {
				if err := m.Drop(); err != nil {
					return errors.Wrap(err, "migration drop")
				}
				cmd.Println("migration drop completed")
				return nil
			}),
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print the applied migration version",
			Args:  cobra.NoArgs,
			RunE: withMigrator(func(cmd *cobra.Command, m *migrate.Migrate) error {
				version, dirty, err := m.Version()
				if errors.Is(err, migrate.ErrNilVersion) {
					cmd.Println("no migration applied")
					return nil
				}
				if err != nil {
					return errors.Wrap(err, "migration version")
				}
				cmd.Printf("version=%d dirty=%t\n", version, dirty)
				return nil
			}),
		},
	)
	return root
}

func effectiveConfigPath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if env := os.Getenv("CONFIG_PATH"); env != "" {
		return env
	}
	return "assets/local.yaml"
}

func newMigrator(dir, dsn string) (*migrate.Migrate, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "resolve path for %s", dir)
	}

	m, err := migrate.New("file://"+filepath.ToSlash(absDir), dsn)
	if err != nil {
		return nil, errors.Wrap(err, "create migrate instance")
	}
	return m, nil
}
