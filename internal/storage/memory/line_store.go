package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// lineStoreInMemory: in-memory коллекция Cart для локальной разработки и тестов.
type lineStoreInMemory struct {
	mu    sync.RWMutex
	items map[string]domain.CartLine
	now   func() time.Time
}

// NewLineStore возвращает in-memory реализацию LineStore.
func NewLineStore() domain.LineStore {
	return &lineStoreInMemory{
		items: make(map[string]domain.CartLine),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Insert сохраняет позицию, соблюдая уникальность (owner, product).
func (s *lineStoreInMemory) Insert(ctx context.Context, line domain.CartLine) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if strings.TrimSpace(line.ProductRef) == "" {
		return "", domain.ErrProductRefRequired
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.items {
		if existing.Owner == line.Owner && existing.ProductRef == line.ProductRef {
			return "", domain.ErrLineAlreadyExists
		}
	}

	line.ID = uuid.NewString()
	if line.CreatedAt.IsZero() {
		line.CreatedAt = s.now()
	}
	s.items[line.ID] = line
	return line.ID, nil
}

// Query возвращает позиции владельца в порядке добавления.
func (s *lineStoreInMemory) Query(ctx context.Context, owner string) ([]domain.CartLine, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.CartLine, 0)
	for _, line := range s.items {
		if line.Owner == owner {
			result = append(result, line)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

// Update применяет патч к позиции или возвращает ErrLineNotFound.
func (s *lineStoreInMemory) Update(ctx context.Context, id string, patch domain.LinePatch) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	line, ok := s.items[id]
	if !ok {
		return domain.ErrLineNotFound
	}
	if patch.Quantity != nil {
		line.Quantity = *patch.Quantity
	}
	s.items[id] = line
	return nil
}

// Delete удаляет позицию; повторное удаление не является ошибкой.
func (s *lineStoreInMemory) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.items, id)
	return nil
}

var _ domain.LineStore = (*lineStoreInMemory)(nil)
