package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/nerrad567/gray-logic-integrations/internal/api"
	"github.com/nerrad567/gray-logic-integrations/internal/entry"
	"github.com/nerrad567/gray-logic-integrations/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-integrations/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-integrations/migrations"
)

const defaultTokenSubject = "admin"

// withDatabase loads the config, opens the database and runs fn.
func withDatabase(ctx context.Context, configPath string, fn func(*config.Config, *database.DB) error) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	db, err := database.Open(ctx, database.FromConfig(cfg.Database, migrations.FS))
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close() //nolint:errcheck // Read-mostly command, nothing to flush

	return fn(cfg, db)
}

func newMigrateCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withDatabase(cmd.Context(), opts.resolveConfigPath(), func(_ *config.Config, db *database.DB) error {
					if err := db.Migrate(cmd.Context()); err != nil {
						return fmt.Errorf("running migrations: %w", err)
					}
					fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back the most recent migration",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withDatabase(cmd.Context(), opts.resolveConfigPath(), func(_ *config.Config, db *database.DB) error {
					if err := db.MigrateDown(cmd.Context()); err != nil {
						return fmt.Errorf("rolling back migration: %w", err)
					}
					fmt.Fprintln(cmd.OutOrStdout(), "latest migration rolled back")
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "status",
			Short: "List applied and pending migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withDatabase(cmd.Context(), opts.resolveConfigPath(), func(_ *config.Config, db *database.DB) error {
					applied, pending, err := db.MigrationStatus(cmd.Context())
					if err != nil {
						return fmt.Errorf("reading migration status: %w", err)
					}
					return printMigrationStatus(cmd.OutOrStdout(), applied, pending)
				})
			},
		},
	)
	return cmd
}

func printMigrationStatus(out io.Writer, applied []database.MigrationRecord, pending []database.Migration) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0) //nolint:mnd // column padding
	fmt.Fprintln(w, "VERSION\tSTATUS\tAPPLIED AT")
	for _, m := range applied {
		fmt.Fprintf(w, "%s\tapplied\t%s\n", m.Version, m.AppliedAt.Format(time.RFC3339))
	}
	for _, m := range pending {
		fmt.Fprintf(w, "%s\tpending\t%s\n", m.Version, m.Name)
	}
	return w.Flush()
}

func newTokenCommand(opts *options) *cobra.Command {
	var (
		subject string
		ttl     int
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an API bearer token",
		Long: `token signs a bearer token with security.jwt.secret. Use it in the
Authorization header of API requests or as ?token= on the WebSocket.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(opts.resolveConfigPath())
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			if ttl <= 0 {
				ttl = cfg.Security.JWT.AccessTokenTTL
			}

			token, expires, err := api.GenerateToken(subject, cfg.Security.JWT.Secret, ttl)
			if err != nil {
				return fmt.Errorf("generating token: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			fmt.Fprintf(cmd.ErrOrStderr(), "expires %s\n", expires.UTC().Format(time.RFC3339))
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", defaultTokenSubject, "token subject")
	cmd.Flags().IntVar(&ttl, "ttl", 0, "lifetime in minutes (default: security.jwt.access_token_ttl)")
	return cmd
}

func newEntriesCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "entries",
		Short: "Inspect config entries",
	}

	var domain string
	list := &cobra.Command{
		Use:   "list",
		Short: "List persisted config entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withDatabase(cmd.Context(), opts.resolveConfigPath(), func(_ *config.Config, db *database.DB) error {
				if err := db.Migrate(cmd.Context()); err != nil {
					return fmt.Errorf("running migrations: %w", err)
				}

				repo := entry.NewSQLiteRepository(db.DB)
				var (
					entries []entry.Entry
					err     error
				)
				if domain != "" {
					entries, err = repo.ListByDomain(cmd.Context(), domain)
				} else {
					entries, err = repo.List(cmd.Context())
				}
				if err != nil {
					return fmt.Errorf("listing entries: %w", err)
				}
				return printEntries(cmd.OutOrStdout(), entries)
			})
		},
	}
	list.Flags().StringVar(&domain, "domain", "", "only list entries of this integration")

	cmd.AddCommand(list)
	return cmd
}

// printEntries writes one line per entry. Entry data holds credentials and
// is never printed.
func printEntries(out io.Writer, entries []entry.Entry) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0) //nolint:mnd // column padding
	fmt.Fprintln(w, "ID\tDOMAIN\tTITLE\tUNIQUE ID\tSOURCE\tSTATE")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", e.ID, e.Domain, e.Title, e.UniqueID, e.Source, e.State)
	}
	return w.Flush()
}
