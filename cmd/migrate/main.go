package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/vladislavdragonenkov/storefront/internal/storage/postgres"
)

const (
	defaultTimeout = 30 * time.Second
	envPostgresDSN = "STOREFRONT_POSTGRES_DSN"
)

var errDSNRequired = errors.New(envPostgresDSN + " (or --dsn) is required")

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fail("%v", err)
	}
}

// newRootCmd собирает дерево команд: up, down и status.
func newRootCmd() *cobra.Command {
	var dsn string

	root := &cobra.Command{
		Use:           "migrate",
		Short:         "Manage storefront PostgreSQL schema migrations",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&dsn, "dsn", "", "PostgreSQL DSN (fallback: "+envPostgresDSN+")")

	withStore := func(cmd *cobra.Command, fn func(context.Context, *postgres.Store) error) error {
		resolved := strings.TrimSpace(dsn)
		if resolved == "" {
			resolved = strings.TrimSpace(os.Getenv(envPostgresDSN))
		}
		if resolved == "" {
			return errDSNRequired
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), defaultTimeout)
		defer cancel()

		store, err := postgres.Open(ctx, resolved)
		if err != nil {
			return fmt.Errorf("open postgres store: %w", err)
		}
		defer func() { _ = store.Close() }()

		return fn(ctx, store)
	}

	var upSteps int
	up := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations (all by default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withStore(cmd, func(ctx context.Context, store *postgres.Store) error {
				if err := store.MigrateUp(ctx, upSteps); err != nil {
					return fmt.Errorf("migrate up failed: %w", err)
				}
				return printStatus(ctx, cmd.OutOrStdout(), store, "migrate up ok")
			})
		},
	}
	up.Flags().IntVar(&upSteps, "steps", 0, "number of migrations to apply (0 = all)")

	var downSteps int
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back applied migrations (one by default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withStore(cmd, func(ctx context.Context, store *postgres.Store) error {
				if err := store.MigrateDown(ctx, downSteps); err != nil {
					return fmt.Errorf("migrate down failed: %w", err)
				}
				return printStatus(ctx, cmd.OutOrStdout(), store, "migrate down ok")
			})
		},
	}
	down.Flags().IntVar(&downSteps, "steps", 1, "number of migrations to roll back")

	status := &cobra.Command{
		Use:   "status",
		Short: "Show the current schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withStore(cmd, func(ctx context.Context, store *postgres.Store) error {
				return printStatus(ctx, cmd.OutOrStdout(), store, "migration status")
			})
		},
	}

	root.AddCommand(up, down, status)
	return root
}

func printStatus(ctx context.Context, out io.Writer, store *postgres.Store, prefix string) error {
	state, err := store.MigrationStatus(ctx)
	if err != nil {
		return fmt.Errorf("migration status failed: %w", err)
	}
	_, err = fmt.Fprintf(out, "%s: version=%d applied=%d pending=%d\n",
		prefix, state.Version, state.Applied, state.Pending())
	return err
}

func fail(format string, args ...any) {
	_, _ = fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
