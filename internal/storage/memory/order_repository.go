package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// orderRepositoryInMemory: простая in-memory реализация OrderRepository.
type orderRepositoryInMemory struct {
	mu    sync.RWMutex
	items map[string]domain.Order
}

// NewOrderRepository возвращает in-memory репозиторий для локальной разработки и тестов.
func NewOrderRepository() domain.OrderRepository {
	return &orderRepositoryInMemory{
		items: make(map[string]domain.Order),
	}
}

// Create сохраняет новый заказ, если ID ещё не занят.
func (r *orderRepositoryInMemory) Create(ctx context.Context, order domain.Order) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.items[order.ID]; exists {
		return domain.ErrOrderAlreadyExists
	}
	order.Items = domain.CloneLines(order.Items)
	r.items[order.ID] = order
	return nil
}

// Get возвращает заказ или ErrOrderNotFound, если его нет.
func (r *orderRepositoryInMemory) Get(ctx context.Context, id string) (domain.Order, error) {
	if err := ctx.Err(); err != nil {
		return domain.Order{}, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	order, ok := r.items[id]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	order.Items = domain.CloneLines(order.Items)
	return order, nil
}

// List возвращает заказы с указанным статусом (пустой статус — все).
func (r *orderRepositoryInMemory) List(ctx context.Context, status domain.OrderStatus) ([]domain.Order, error) {
	return r.filter(ctx, func(o domain.Order) bool {
		return status == "" || o.Status == status
	})
}

// ListByEmail возвращает заказы покупателя.
func (r *orderRepositoryInMemory) ListByEmail(ctx context.Context, email string) ([]domain.Order, error) {
	return r.filter(ctx, func(o domain.Order) bool {
		return o.UserEmail == email
	})
}

// UpdateStatus меняет статус заказа без проверки переходов; их проверяет сервис.
func (r *orderRepositoryInMemory) UpdateStatus(ctx context.Context, id string, status domain.OrderStatus) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	order, ok := r.items[id]
	if !ok {
		return domain.ErrOrderNotFound
	}
	order.Status = status
	order.UpdatedAt = time.Now().UTC()
	r.items[id] = order
	return nil
}

func (r *orderRepositoryInMemory) filter(ctx context.Context, keep func(domain.Order) bool) ([]domain.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.Order, 0, len(r.items))
	for _, order := range r.items {
		if !keep(order) {
			continue
		}
		order.Items = domain.CloneLines(order.Items)
		result = append(result, order)
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].ID > result[j].ID
	})
	return result, nil
}

var _ domain.OrderRepository = (*orderRepositoryInMemory)(nil)
