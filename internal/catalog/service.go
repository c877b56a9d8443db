// Package catalog отдаёт товары витрины и управляет ими от имени администратора.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
)

// AllSubcategories: значение фильтра, отключающее отбор по подкатегории.
const AllSubcategories = "All"

// Filter: отбор товаров витрины. Пустые поля не фильтруют.
type Filter struct {
	Category    string
	Subcategory string
}

// Match проверяет товар без учёта регистра.
func (f Filter) Match(p domain.Product) bool {
	if f.Category != "" && !strings.EqualFold(p.Category, f.Category) {
		return false
	}
	if f.Subcategory != "" && !strings.EqualFold(f.Subcategory, AllSubcategories) &&
		!strings.EqualFold(p.Subcategory, f.Subcategory) {
		return false
	}
	return true
}

// Cache: кэш полного списка товаров.
type Cache interface {
	// Get возвращает список и признак попадания.
	Get(ctx context.Context) ([]domain.Product, bool, error)
	Set(ctx context.Context, products []domain.Product) error
	Invalidate(ctx context.Context) error
}

// Options задаёт зависимости сервиса каталога.
type Options struct {
	Logger  *log.Entry
	Metrics *metrics.CartMetrics
	Cache   Cache
}

// Option настраивает Service.
type Option func(*Options)

// WithLogger задаёт logger сервиса.
func WithLogger(logger *log.Entry) Option {
	return func(opts *Options) {
		opts.Logger = logger
	}
}

// WithMetrics задаёт метрики кэша.
func WithMetrics(m *metrics.CartMetrics) Option {
	return func(opts *Options) {
		opts.Metrics = m
	}
}

// WithCache включает read-through кэш списка товаров.
func WithCache(cache Cache) Option {
	return func(opts *Options) {
		opts.Cache = cache
	}
}

// Service: каталог товаров.
type Service struct {
	repo    domain.CatalogRepository
	cache   Cache
	logger  *log.Entry
	metrics *metrics.CartMetrics
	loads   singleflight.Group
}

// NewService создаёт сервис каталога.
func NewService(repo domain.CatalogRepository, options ...Option) *Service {
	opts := Options{}
	for _, option := range options {
		option(&opts)
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.WithField("component", "catalog-service")
	}

	return &Service{
		repo:    repo,
		cache:   opts.Cache,
		logger:  logger,
		metrics: opts.Metrics,
	}
}

// List загружает весь каталог и фильтрует его на стороне сервиса.
func (s *Service) List(ctx context.Context, filter Filter) ([]domain.Product, error) {
	products, err := s.all(ctx)
	if err != nil {
		return nil, err
	}

	result := make([]domain.Product, 0, len(products))
	for _, p := range products {
		if filter.Match(p) {
			result = append(result, p)
		}
	}
	return result, nil
}

// Get возвращает товар по ID.
func (s *Service) Get(ctx context.Context, id string) (domain.Product, error) {
	if strings.TrimSpace(id) == "" {
		return domain.Product{}, domain.ErrProductRefRequired
	}
	return s.repo.Get(ctx, id)
}

// Create проверяет и сохраняет новый товар.
func (s *Service) Create(ctx context.Context, product domain.Product) (domain.Product, error) {
	if err := validate(product); err != nil {
		return domain.Product{}, err
	}

	created, err := s.repo.Create(ctx, product)
	if err != nil {
		return domain.Product{}, fmt.Errorf("create product: %w", err)
	}
	s.invalidate(ctx)

	s.logger.WithFields(log.Fields{
		"product_id": created.ID,
		"category":   created.Category,
	}).Info("product created")
	return created, nil
}

// Update перезаписывает товар. Позиции корзин сохраняют старый снимок.
func (s *Service) Update(ctx context.Context, product domain.Product) error {
	if strings.TrimSpace(product.ID) == "" {
		return domain.ErrProductRefRequired
	}
	if err := validate(product); err != nil {
		return err
	}

	if err := s.repo.Update(ctx, product); err != nil {
		return fmt.Errorf("update product: %w", err)
	}
	s.invalidate(ctx)

	s.logger.WithField("product_id", product.ID).Info("product updated")
	return nil
}

// Delete удаляет товар.
func (s *Service) Delete(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return domain.ErrProductRefRequired
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	s.invalidate(ctx)

	s.logger.WithField("product_id", id).Info("product deleted")
	return nil
}

func (s *Service) all(ctx context.Context) ([]domain.Product, error) {
	if s.cache != nil {
		products, ok, err := s.cache.Get(ctx)
		switch {
		case err != nil:
			s.metrics.RecordCatalogCache("error")
			s.logger.WithError(err).Warn("catalog cache read failed")
		case ok:
			s.metrics.RecordCatalogCache("hit")
			return products, nil
		default:
			s.metrics.RecordCatalogCache("miss")
		}
	}

	// Одновременные промахи выполняют одну выборку.
	v, err, _ := s.loads.Do("products", func() (any, error) {
		products, err := s.repo.List(ctx)
		if err != nil {
			return nil, fmt.Errorf("list products: %w", err)
		}
		if s.cache != nil {
			if err := s.cache.Set(ctx, products); err != nil {
				s.logger.WithError(err).Warn("catalog cache write failed")
			}
		}
		return products, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]domain.Product), nil
}

func (s *Service) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx); err != nil {
		s.logger.WithError(err).Warn("catalog cache invalidation failed")
	}
}

func validate(product domain.Product) error {
	if errs := product.Validate(); len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
