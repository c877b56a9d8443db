package memory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/storage/memory"
)

func newOrder(id, email string, createdAt time.Time) domain.Order {
	return domain.Order{
		ID:        id,
		UserID:    "uid-" + email,
		UserEmail: email,
		Items: []domain.CartLine{
			{ID: "line-1", ProductRef: "p-1", Quantity: 5, ProductSnapshot: domain.ProductSnapshot{Price: decimal.NewFromInt(100)}},
		},
		Subtotal:       decimal.NewFromInt(500),
		DeliveryCharge: decimal.NewFromInt(10),
		Total:          decimal.NewFromInt(510),
		Status:         domain.OrderStatusPending,
		CreatedAt:      createdAt,
		UpdatedAt:      createdAt,
	}
}

func TestOrderRepository_CreateGet(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewOrderRepository()
	order := newOrder("order-1", "a@example.com", time.Now().UTC())

	if err := repo.Create(ctx, order); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if err := repo.Create(ctx, order); !errors.Is(err, domain.ErrOrderAlreadyExists) {
		t.Fatalf("expected ErrOrderAlreadyExists, got %v", err)
	}

	stored, err := repo.Get(ctx, order.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if stored.ID != order.ID || !stored.Total.Equal(order.Total) {
		t.Fatalf("unexpected order: %+v", stored)
	}

	if _, err := repo.Get(ctx, "missing"); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}
}

func TestOrderRepository_ListFilters(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewOrderRepository()
	base := time.Now().UTC()

	for _, o := range []domain.Order{
		newOrder("order-1", "a@example.com", base),
		newOrder("order-2", "b@example.com", base.Add(time.Second)),
		newOrder("order-3", "a@example.com", base.Add(2*time.Second)),
	} {
		if err := repo.Create(ctx, o); err != nil {
			t.Fatalf("create failed: %v", err)
		}
	}
	if err := repo.UpdateStatus(ctx, "order-2", domain.OrderStatusShipped); err != nil {
		t.Fatalf("update status failed: %v", err)
	}

	all, err := repo.List(ctx, "")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(all) != 3 || all[0].ID != "order-3" {
		t.Fatalf("expected newest first, got %+v", all)
	}

	shipped, err := repo.List(ctx, domain.OrderStatusShipped)
	if err != nil {
		t.Fatalf("list shipped failed: %v", err)
	}
	if len(shipped) != 1 || shipped[0].ID != "order-2" {
		t.Fatalf("unexpected shipped orders: %+v", shipped)
	}

	mine, err := repo.ListByEmail(ctx, "a@example.com")
	if err != nil {
		t.Fatalf("list by email failed: %v", err)
	}
	if len(mine) != 2 {
		t.Fatalf("expected 2 orders, got %d", len(mine))
	}
}

func TestOrderRepository_UpdateStatusMissing(t *testing.T) {
	repo := memory.NewOrderRepository()
	if err := repo.UpdateStatus(context.Background(), "nope", domain.OrderStatusShipped); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}
}
