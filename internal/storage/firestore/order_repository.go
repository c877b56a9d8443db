package firestore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// OrderRepository: заказы в коллекции Checkout.
type OrderRepository struct {
	client *Client
}

// NewOrderRepository создаёт OrderRepository на Firestore.
func NewOrderRepository(client *Client) *OrderRepository {
	return &OrderRepository{client: client}
}

// Create сохраняет заказ под его ID; повторное создание — ErrOrderAlreadyExists.
func (r *OrderRepository) Create(ctx context.Context, order domain.Order) error {
	if r.client == nil || r.client.fs == nil {
		return errClientNotInitialized
	}

	_, err := r.client.col(CollectionCheckout).Doc(order.ID).Create(ctx, orderDocFromDomain(order))
	if err != nil {
		if status.Code(err) == codes.AlreadyExists {
			return domain.ErrOrderAlreadyExists
		}
		return fmt.Errorf("create order: %w", err)
	}
	return nil
}

func (r *OrderRepository) Get(ctx context.Context, id string) (domain.Order, error) {
	if r.client == nil || r.client.fs == nil {
		return domain.Order{}, errClientNotInitialized
	}

	snap, err := r.client.col(CollectionCheckout).Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return domain.Order{}, domain.ErrOrderNotFound
		}
		return domain.Order{}, fmt.Errorf("get order: %w", err)
	}

	var doc orderDoc
	if err := snap.DataTo(&doc); err != nil {
		return domain.Order{}, fmt.Errorf("decode order %s: %w", id, err)
	}
	return doc.toDomain(id), nil
}

// List читает заказы с фильтром по статусу; пустой статус — все.
func (r *OrderRepository) List(ctx context.Context, status domain.OrderStatus) ([]domain.Order, error) {
	if r.client == nil || r.client.fs == nil {
		return nil, errClientNotInitialized
	}

	query := r.client.col(CollectionCheckout).Query
	if status != "" {
		query = query.Where("status", "==", string(status))
	}
	return r.collect(ctx, query)
}

func (r *OrderRepository) ListByEmail(ctx context.Context, email string) ([]domain.Order, error) {
	if r.client == nil || r.client.fs == nil {
		return nil, errClientNotInitialized
	}
	return r.collect(ctx, r.client.col(CollectionCheckout).Where("userEmail", "==", email))
}

func (r *OrderRepository) UpdateStatus(ctx context.Context, id string, next domain.OrderStatus) error {
	if r.client == nil || r.client.fs == nil {
		return errClientNotInitialized
	}

	_, err := r.client.col(CollectionCheckout).Doc(id).Update(ctx, []firestore.Update{
		{Path: "status", Value: string(next)},
		{Path: "updatedAt", Value: time.Now().UTC()},
	})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return domain.ErrOrderNotFound
		}
		return fmt.Errorf("update order status: %w", err)
	}
	return nil
}

// collect выполняет запрос и сортирует заказы по дате, новые первыми.
func (r *OrderRepository) collect(ctx context.Context, query firestore.Query) ([]domain.Order, error) {
	iter := query.Documents(ctx)
	defer iter.Stop()

	orders := make([]domain.Order, 0)
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list orders: %w", err)
		}

		var doc orderDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, fmt.Errorf("decode order %s: %w", snap.Ref.ID, err)
		}
		orders = append(orders, doc.toDomain(snap.Ref.ID))
	}

	sort.Slice(orders, func(i, j int) bool {
		if !orders[i].CreatedAt.Equal(orders[j].CreatedAt) {
			return orders[i].CreatedAt.After(orders[j].CreatedAt)
		}
		return orders[i].ID > orders[j].ID
	})
	return orders, nil
}

var _ domain.OrderRepository = (*OrderRepository)(nil)
