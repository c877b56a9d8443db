package domain

import (
	"context"
	"time"
)

// LineStore: удалённая коллекция позиций корзины (Cart).
// Любой вызов может завершиться ошибкой; повторы не выполняются.
type LineStore interface {
	// Insert создаёт позицию и возвращает назначенный хранилищем ID.
	Insert(ctx context.Context, line CartLine) (string, error)
	// Query возвращает все позиции владельца.
	Query(ctx context.Context, owner string) ([]CartLine, error)
	// Update применяет частичное изменение к позиции.
	Update(ctx context.Context, id string, patch LinePatch) error
	// Delete удаляет позицию; отсутствие записи не считается ошибкой.
	Delete(ctx context.Context, id string) error
}

// CatalogRepository хранит товары витрины (Products).
type CatalogRepository interface {
	List(ctx context.Context) ([]Product, error)
	Get(ctx context.Context, id string) (Product, error)
	// Create сохраняет товар и возвращает его с назначенным ID.
	Create(ctx context.Context, product Product) (Product, error)
	Update(ctx context.Context, product Product) error
	Delete(ctx context.Context, id string) error
}

// OrderRepository хранит оформленные заказы (Checkout).
type OrderRepository interface {
	Create(ctx context.Context, order Order) error
	Get(ctx context.Context, id string) (Order, error)
	// List возвращает заказы, отфильтрованные по статусу; пустой статус — все.
	List(ctx context.Context, status OrderStatus) ([]Order, error)
	ListByEmail(ctx context.Context, email string) ([]Order, error)
	UpdateStatus(ctx context.Context, id string, status OrderStatus) error
}

// OutboxPublisher публикует события из transactional outbox.
type OutboxPublisher interface {
	// Publish передаёт событие наружу; должен быть идемпотентным.
	Publish(event OutboxMessage) error
}

// OutboxRepository позволяет сохранять события для последующей публикации.
type OutboxRepository interface {
	Enqueue(msg OutboxMessage) (OutboxMessage, error)
	PullPending(limit int) ([]OutboxMessage, error)
	Stats() (OutboxStats, error)
	MarkSent(id string) error
	MarkFailed(id string) error
}

// Типы событий заказа, публикуемых через outbox.
const (
	EventOrderPlaced        = "OrderPlaced"
	EventOrderStatusChanged = "OrderStatusChanged"
)

// AggregateOrder: тип агрегата для событий заказа.
const AggregateOrder = "order"

// OutboxMessage хранит данные для публикуемого события.
type OutboxMessage struct {
	ID            string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
	CreatedAt     time.Time
}

// OutboxStats описывает текущее состояние backlog transactional outbox.
type OutboxStats struct {
	PendingCount    int
	OldestPendingAt time.Time
}
