package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

const (
	defaultCacheKey = "storefront:catalog:products"
	defaultCacheTTL = 5 * time.Minute
)

// cachedProduct: JSON-представление товара в Redis.
type cachedProduct struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price"`
	Image       string          `json:"image"`
	Category    string          `json:"category"`
	Subcategory string          `json:"subcategory,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// RedisCache хранит полный список товаров одним ключом.
type RedisCache struct {
	client redis.UniversalClient
	key    string
	ttl    time.Duration
}

// NewRedisCache создаёт кэш поверх существующего клиента; клиентом владеет вызывающий.
func NewRedisCache(client redis.UniversalClient, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &RedisCache{client: client, key: defaultCacheKey, ttl: ttl}
}

// Get читает список; отсутствие ключа — промах без ошибки.
func (c *RedisCache) Get(ctx context.Context) ([]domain.Product, bool, error) {
	data, err := c.client.Get(ctx, c.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get catalog from cache: %w", err)
	}

	var cached []cachedProduct
	if err := json.Unmarshal(data, &cached); err != nil {
		// Повреждённая запись удаляется, следующий запрос перечитает каталог.
		_ = c.client.Del(ctx, c.key).Err()
		return nil, false, fmt.Errorf("unmarshal cached catalog: %w", err)
	}

	products := make([]domain.Product, 0, len(cached))
	for _, p := range cached {
		products = append(products, domain.Product{
			ID:          p.ID,
			Name:        p.Name,
			Price:       p.Price,
			Image:       p.Image,
			Category:    p.Category,
			Subcategory: p.Subcategory,
			CreatedAt:   p.CreatedAt,
			UpdatedAt:   p.UpdatedAt,
		})
	}
	return products, true, nil
}

// Set сохраняет список с TTL.
func (c *RedisCache) Set(ctx context.Context, products []domain.Product) error {
	cached := make([]cachedProduct, 0, len(products))
	for _, p := range products {
		cached = append(cached, cachedProduct{
			ID:          p.ID,
			Name:        p.Name,
			Price:       p.Price,
			Image:       p.Image,
			Category:    p.Category,
			Subcategory: p.Subcategory,
			CreatedAt:   p.CreatedAt,
			UpdatedAt:   p.UpdatedAt,
		})
	}

	data, err := json.Marshal(cached)
	if err != nil {
		return fmt.Errorf("marshal catalog: %w", err)
	}
	if err := c.client.Set(ctx, c.key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("set catalog cache: %w", err)
	}
	return nil
}

// Invalidate удаляет закэшированный список.
func (c *RedisCache) Invalidate(ctx context.Context) error {
	if err := c.client.Del(ctx, c.key).Err(); err != nil {
		return fmt.Errorf("invalidate catalog cache: %w", err)
	}
	return nil
}

// Ping проверяет доступность Redis (для readiness).
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

var _ Cache = (*RedisCache)(nil)
