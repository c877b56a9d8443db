package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vladislavdragonenkov/storefront/internal/app"
	"github.com/vladislavdragonenkov/storefront/internal/cart"
	"github.com/vladislavdragonenkov/storefront/internal/catalog"
	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/version"
)

type storeOpener func(ctx context.Context, cfg app.Config) (app.Stores, error)

// globalFlags: параметры подключения к хранилищу и пользователь корзины.
type globalFlags struct {
	driver      string
	dsn         string
	project     string
	credentials string
	email       string
	verbose     bool
}

func newRootCmd(open storeOpener) *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:           "cartctl",
		Short:         "Inspect and edit storefront carts directly in storage",
		Version:       version.GetVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&flags.driver, "driver", envOr("STOREFRONT_STORAGE_DRIVER", app.StorageDriverPostgres), "storage driver: memory|postgres|firestore")
	pf.StringVar(&flags.dsn, "dsn", os.Getenv("STOREFRONT_POSTGRES_DSN"), "PostgreSQL DSN")
	pf.StringVar(&flags.project, "project", os.Getenv("STOREFRONT_FIRESTORE_PROJECT"), "Firestore project ID")
	pf.StringVar(&flags.credentials, "credentials", os.Getenv("STOREFRONT_FIRESTORE_CREDENTIALS"), "Firestore credentials file")
	pf.StringVar(&flags.email, "email", os.Getenv("STOREFRONT_CART_EMAIL"), "cart owner email")
	pf.BoolVarP(&flags.verbose, "verbose", "v", false, "print every cart change as it is committed")

	env := &cliEnv{flags: flags, open: open}
	root.AddCommand(newCartCmd(env), newProductsCmd(env))
	return root
}

// cliEnv открывает хранилище по флагам и собирает поверх него сервисы.
type cliEnv struct {
	flags *globalFlags
	open  storeOpener
}

func (e *cliEnv) config() app.Config {
	cfg := app.DefaultConfig()
	cfg.StorageDriver = strings.ToLower(strings.TrimSpace(e.flags.driver))
	cfg.PostgresDSN = strings.TrimSpace(e.flags.dsn)
	cfg.PostgresAutoMigrate = false
	cfg.FirestoreProject = strings.TrimSpace(e.flags.project)
	cfg.FirestoreCredentials = strings.TrimSpace(e.flags.credentials)
	return cfg
}

func (e *cliEnv) stores(ctx context.Context) (app.Stores, error) {
	return e.open(ctx, e.config())
}

// session привязывает синхронизатор к пользователю из --email и дожидается загрузки корзины.
func (e *cliEnv) session(cmd *cobra.Command) (*cart.Synchronizer, *catalog.Service, func(), error) {
	email := strings.TrimSpace(e.flags.email)
	if email == "" {
		return nil, nil, nil, fmt.Errorf("%w: pass --email or STOREFRONT_CART_EMAIL", domain.ErrNotAuthenticated)
	}

	stores, err := e.stores(cmd.Context())
	if err != nil {
		return nil, nil, nil, err
	}

	sync := cart.NewSynchronizer(stores.Lines)
	cleanup := stores.Close
	if e.flags.verbose {
		unsubscribe := sync.Subscribe(func(snap cart.Snapshot) {
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "cart: %d items, %s\n", snap.Totals.Count, snap.Totals.Price.StringFixed(2))
		})
		cleanup = func() {
			unsubscribe()
			stores.Close()
		}
	}

	identity := domain.Identity{UID: "cli:" + email, Email: email}
	if err := sync.Bind(cmd.Context(), identity); err != nil {
		cleanup()
		return nil, nil, nil, err
	}
	return sync, catalog.NewService(stores.Catalog), cleanup, nil
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}
