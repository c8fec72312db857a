package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/ogurasousui/jobmarket-grpc-clean-arch/internal/adapters/auth"
	"github.com/ogurasousui/jobmarket-grpc-clean-arch/internal/adapters/repository/postgres"
	"github.com/ogurasousui/jobmarket-grpc-clean-arch/internal/core/job"
	"github.com/ogurasousui/jobmarket-grpc-clean-arch/internal/platform/config"
	pg "github.com/ogurasousui/jobmarket-grpc-clean-arch/internal/platform/db/postgres"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "jobadmin",
		Short:         "Administrative tasks for the job marketplace backend",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to config file (defaults to CONFIG_PATH env or assets/local.yaml)")

	loadConfig := func() (*config.Config, error) {
		path := configPath
		if path == "" {
			path = os.Getenv("CONFIG_PATH")
		}
		if path == "" {
			path = "assets/local.yaml"
		}
		cfg, err := config.Load(path)
		if err != nil {
			return nil, errors.Wrap(err, "load config")
		}
		return cfg, nil
	}

	root.AddCommand(newPersonCommand(loadConfig), newTokenCommand(loadConfig))
	return root
}

func newPersonCommand(loadConfig func() (*config.Config, error)) *cobra.Command {
	var (
		id   string
		name string
		role string
	)

	cmd := &cobra.Command{
		Use:   "add-person",
		Short: "Register a person in the identity directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			parsedRole, err := parseRole(role)
			if err != nil {
				return err
			}
			if id == "" {
				id = uuid.NewString()
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			pool, err := pg.NewPool(cmd.Context(), cfg.Database)
			if err != nil {
				return err
			}
			defer pool.Close()

			created, err := postgres.NewPersonRepository(pool).CreatePerson(cmd.Context(), &job.Person{
				ID:   id,
				Name: strings.TrimSpace(name),
				Role: parsedRole,
			})
			if err != nil {
				return errors.Wrap(err, "create person")
			}
			cmd.Printf("person id=%s role=%s\n", created.ID, created.Role)
			return nil
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "person id (UUID, generated when empty)")
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&role, "role", string(job.RoleEmployee), "EMPLOYER or EMPLOYEE")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func newTokenCommand(loadConfig func() (*config.Config, error)) *cobra.Command {
	var (
		subject string
		role    string
		ttl     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "issue-token",
		Short: "Issue a bearer token for local development",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			parsedRole, err := parseRole(role)
			if err != nil {
				return err
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			token, err := auth.Sign([]byte(cfg.Auth.JWTSecret), cfg.Auth.Issuer,
				auth.Identity{UserID: subject, Role: parsedRole}, time.Now(), ttl)
			if err != nil {
				return err
			}
			cmd.Println(token)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "sub", "", "person id")
	cmd.Flags().StringVar(&role, "role", string(job.RoleEmployee), "EMPLOYER or EMPLOYEE")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("sub")
	return cmd
}

func parseRole(raw string) (job.Role, error) {
	switch r := job.Role(strings.ToUpper(strings.TrimSpace(raw))); r {
	case job.RoleEmployer, job.RoleEmployee:
		return r, nil
	default:
		return "", errors.Newf("unknown role %q", raw)
	}
}
