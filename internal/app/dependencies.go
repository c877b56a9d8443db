package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/auth"
	"github.com/vladislavdragonenkov/storefront/internal/catalog"
	"github.com/vladislavdragonenkov/storefront/internal/domain"
	healthcheck "github.com/vladislavdragonenkov/storefront/internal/health"
	"github.com/vladislavdragonenkov/storefront/internal/storage/firestore"
	"github.com/vladislavdragonenkov/storefront/internal/storage/memory"
	"github.com/vladislavdragonenkov/storefront/internal/storage/postgres"
)

// runtimeDependencies: хранилища выбранного драйвера и всё, что нужно закрыть при остановке.
type runtimeDependencies struct {
	lines   domain.LineStore
	catalog domain.CatalogRepository
	orders  domain.OrderRepository
	outbox  domain.OutboxRepository

	checkers map[string]healthcheck.Checker
	closers  []func() error
}

func (d *runtimeDependencies) addChecker(name string, checker healthcheck.Checker) {
	if d.checkers == nil {
		d.checkers = make(map[string]healthcheck.Checker)
	}
	d.checkers[name] = checker
}

// close закрывает ресурсы в обратном порядке открытия.
func (d *runtimeDependencies) close(logger *log.Entry) {
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil {
			logger.WithError(err).Warn("failed to close dependency")
		}
	}
	d.closers = nil
}

// initRuntimeDependencies открывает хранилища согласно cfg.StorageDriver.
func initRuntimeDependencies(ctx context.Context, cfg Config, logger *log.Entry) (*runtimeDependencies, error) {
	switch cfg.StorageDriver {
	case StorageDriverMemory:
		logger.Info("using in-memory storage")
		return &runtimeDependencies{
			lines:   memory.NewLineStore(),
			catalog: memory.NewCatalogRepository(),
			orders:  memory.NewOrderRepository(),
			outbox:  memory.NewOutboxRepository(),
		}, nil

	case StorageDriverPostgres:
		if strings.TrimSpace(cfg.PostgresDSN) == "" {
			return nil, errors.New("postgres dsn is required")
		}
		store, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		if cfg.PostgresAutoMigrate {
			if err := store.EnsureSchema(ctx); err != nil {
				_ = store.Close()
				return nil, fmt.Errorf("migrate postgres schema: %w", err)
			}
		}
		logger.Info("using postgres storage")

		deps := &runtimeDependencies{
			lines:   postgres.NewLineStore(store),
			catalog: postgres.NewCatalogRepository(store),
			orders:  postgres.NewOrderRepository(store),
			outbox:  postgres.NewOutboxRepository(store),
			closers: []func() error{store.Close},
		}
		deps.addChecker("postgres", healthcheck.NewPingChecker("postgres", store))
		return deps, nil

	case StorageDriverFirestore:
		client, err := firestore.Open(ctx, cfg.FirestoreProject, cfg.FirestoreCredentials)
		if err != nil {
			return nil, err
		}
		logger.WithField("project", cfg.FirestoreProject).Info("using firestore storage, outbox stays in memory")

		deps := &runtimeDependencies{
			lines:   firestore.NewCartStore(client),
			catalog: firestore.NewCatalogRepository(client),
			orders:  firestore.NewOrderRepository(client),
			outbox:  memory.NewOutboxRepository(),
			closers: []func() error{client.Close},
		}
		deps.addChecker("firestore", healthcheck.NewPingChecker("firestore", client))
		return deps, nil

	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.StorageDriver)
	}
}

// initVerifier выбирает проверку bearer-токенов.
func initVerifier(ctx context.Context, cfg Config, logger *log.Entry) (auth.Verifier, error) {
	switch cfg.AuthMode {
	case AuthModeFirebase:
		verifier, err := auth.NewFirebaseVerifier(ctx, cfg.FirestoreProject, cfg.FirestoreCredentials)
		if err != nil {
			return nil, err
		}
		return verifier, nil
	case AuthModeInsecure, "":
		logger.Warn("insecure auth mode: bearer token is trusted as the user email")
		return auth.InsecureVerifier{}, nil
	default:
		return nil, fmt.Errorf("unsupported auth mode %q", cfg.AuthMode)
	}
}

// initCatalogCache подключает Redis-кэш каталога. Недоступный Redis не мешает
// запуску: каталог читается напрямую, а health показывает degraded.
func initCatalogCache(ctx context.Context, cfg Config, deps *runtimeDependencies, logger *log.Entry) catalog.Cache {
	if strings.TrimSpace(cfg.RedisAddr) == "" {
		return nil
	}

	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	cache := catalog.NewRedisCache(client, cfg.CatalogCacheTTL)
	deps.closers = append(deps.closers, client.Close)
	deps.addChecker("redis", healthcheck.NewOptionalChecker("redis", cache.Ping))

	if err := cache.Ping(ctx); err != nil {
		logger.WithError(err).WithField("addr", cfg.RedisAddr).Warn("redis is unavailable, catalog cache disabled")
		return nil
	}
	logger.WithFields(log.Fields{
		"addr": cfg.RedisAddr,
		"ttl":  cfg.CatalogCacheTTL,
	}).Info("catalog cache enabled")
	return cache
}

// Stores: хранилища корзины и каталога для утилит, работающих без сервера.
type Stores struct {
	Lines   domain.LineStore
	Catalog domain.CatalogRepository

	deps   *runtimeDependencies
	logger *log.Entry
}

// Close освобождает соединения с хранилищем.
func (s Stores) Close() {
	if s.deps != nil {
		s.deps.close(s.logger)
	}
}

// OpenStores открывает хранилища драйвера из cfg так же, как это делает Run.
func OpenStores(ctx context.Context, cfg Config, logger *log.Entry) (Stores, error) {
	deps, err := initRuntimeDependencies(ctx, cfg, logger)
	if err != nil {
		return Stores{}, err
	}
	return Stores{Lines: deps.lines, Catalog: deps.catalog, deps: deps, logger: logger}, nil
}
