package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

func TestLineStore_PostgresFlow(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	lines := NewLineStore(store)
	ctx := context.Background()

	line := domain.CartLine{
		ProductRef: "p-1",
		Quantity:   1,
		Owner:      "buyer@example.com",
		ProductSnapshot: domain.ProductSnapshot{
			Name:     "Runner",
			Price:    decimal.RequireFromString("49.90"),
			Image:    "runner.png",
			Category: "shoes",
		},
	}
	id, err := lines.Insert(ctx, line)
	if err != nil {
		t.Fatalf("insert line: %v", err)
	}
	if _, err := lines.Insert(ctx, line); !errors.Is(err, domain.ErrLineAlreadyExists) {
		t.Fatalf("expected ErrLineAlreadyExists, got %v", err)
	}

	if err := lines.Update(ctx, id, domain.QuantityPatch(3)); err != nil {
		t.Fatalf("update line: %v", err)
	}
	if err := lines.Update(ctx, "missing", domain.QuantityPatch(3)); !errors.Is(err, domain.ErrLineNotFound) {
		t.Fatalf("expected ErrLineNotFound, got %v", err)
	}
	if err := lines.Update(ctx, id, domain.QuantityPatch(0)); err == nil {
		t.Fatal("quantity below 1 must be rejected by the schema")
	}

	got, err := lines.Query(ctx, "buyer@example.com")
	if err != nil {
		t.Fatalf("query lines: %v", err)
	}
	if len(got) != 1 || got[0].ID != id || got[0].Quantity != 3 || got[0].Price.StringFixed(2) != "49.90" {
		t.Fatalf("unexpected lines: %+v", got)
	}

	if err := lines.Delete(ctx, id); err != nil {
		t.Fatalf("delete line: %v", err)
	}
	if err := lines.Delete(ctx, id); err != nil {
		t.Fatalf("repeated delete must be a no-op: %v", err)
	}
}

func TestCatalogRepository_PostgresFlow(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewCatalogRepository(store)
	ctx := context.Background()

	created, err := repo.Create(ctx, domain.Product{
		Name:        "Chrono",
		Price:       decimal.RequireFromString("120.00"),
		Image:       "chrono.png",
		Category:    "watches",
		Subcategory: "Analog",
	})
	if err != nil {
		t.Fatalf("create product: %v", err)
	}

	created.Price = decimal.RequireFromString("99.50")
	if err := repo.Update(ctx, created); err != nil {
		t.Fatalf("update product: %v", err)
	}
	got, err := repo.Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if got.Price.StringFixed(2) != "99.50" || got.Subcategory != "Analog" {
		t.Fatalf("unexpected product: %+v", got)
	}

	all, err := repo.List(ctx)
	if err != nil || len(all) != 1 {
		t.Fatalf("expected 1 product, got %d (%v)", len(all), err)
	}

	if err := repo.Delete(ctx, created.ID); err != nil {
		t.Fatalf("delete product: %v", err)
	}
	if _, err := repo.Get(ctx, created.ID); !errors.Is(err, domain.ErrProductNotFound) {
		t.Fatalf("expected ErrProductNotFound, got %v", err)
	}
	if err := repo.Delete(ctx, created.ID); !errors.Is(err, domain.ErrProductNotFound) {
		t.Fatalf("expected ErrProductNotFound on repeated delete, got %v", err)
	}
}

func TestOrderRepository_PostgresFlow(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewOrderRepository(store)
	ctx := context.Background()

	now := time.Now().UTC().Round(time.Microsecond)
	order := domain.Order{
		ID:        "order-1",
		UserID:    "uid-1",
		UserEmail: "buyer@example.com",
		Shipping: domain.ShippingDetails{
			FirstName: "Ada", LastName: "Lovelace", Email: "buyer@example.com",
			Phone: "+1", Address: "1 Main St", City: "London",
			PaymentMethod: domain.PaymentMethodCashOnDelivery,
		},
		Items: []domain.CartLine{{
			ID: "l-1", ProductRef: "p-1", Quantity: 2, Owner: "buyer@example.com",
			ProductSnapshot: domain.ProductSnapshot{Name: "Runner", Price: decimal.RequireFromString("12.50")},
			CreatedAt:       now,
		}},
		Subtotal:       decimal.RequireFromString("25.00"),
		DeliveryCharge: decimal.NewFromInt(10),
		Total:          decimal.RequireFromString("35.00"),
		Status:         domain.OrderStatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := repo.Create(ctx, order); err != nil {
		t.Fatalf("create order: %v", err)
	}
	if err := repo.Create(ctx, order); !errors.Is(err, domain.ErrOrderAlreadyExists) {
		t.Fatalf("expected ErrOrderAlreadyExists, got %v", err)
	}

	got, err := repo.Get(ctx, order.ID)
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	if errs := got.ValidateInvariants(); len(errs) > 0 {
		t.Fatalf("stored order violates invariants: %v", errs)
	}
	if got.Items[0].Name != "Runner" || got.Shipping.City != "London" {
		t.Fatalf("unexpected order documents: %+v", got)
	}

	if err := repo.UpdateStatus(ctx, order.ID, domain.OrderStatusShipped); err != nil {
		t.Fatalf("update status: %v", err)
	}
	shipped, err := repo.List(ctx, domain.OrderStatusShipped)
	if err != nil || len(shipped) != 1 {
		t.Fatalf("expected 1 shipped order, got %d (%v)", len(shipped), err)
	}
	pending, err := repo.List(ctx, domain.OrderStatusPending)
	if err != nil || len(pending) != 0 {
		t.Fatalf("expected no pending orders, got %d (%v)", len(pending), err)
	}
	mine, err := repo.ListByEmail(ctx, "buyer@example.com")
	if err != nil || len(mine) != 1 {
		t.Fatalf("expected 1 own order, got %d (%v)", len(mine), err)
	}

	if err := repo.UpdateStatus(ctx, "missing", domain.OrderStatusShipped); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}
}

func TestOutboxRepository_PostgresFlow(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewOutboxRepository(store)

	first, err := repo.Enqueue(domain.OutboxMessage{
		AggregateType: domain.AggregateOrder,
		AggregateID:   "order-1",
		EventType:     domain.EventOrderPlaced,
		Payload:       []byte(`{"order_id":"order-1"}`),
	})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if first.ID == "" {
		t.Fatal("expected generated id for outbox message")
	}
	second, err := repo.Enqueue(domain.OutboxMessage{
		ID:            "outbox-fixed-id",
		AggregateType: domain.AggregateOrder,
		AggregateID:   "order-1",
		EventType:     domain.EventOrderStatusChanged,
		Payload:       []byte(`{"to":"shipped"}`),
	})
	if err != nil {
		t.Fatalf("enqueue with id: %v", err)
	}

	pending, err := repo.PullPending(0)
	if err != nil || len(pending) != 2 {
		t.Fatalf("expected 2 pending, got %d (%v)", len(pending), err)
	}
	stats, err := repo.Stats()
	if err != nil || stats.PendingCount != 2 || stats.OldestPendingAt.IsZero() {
		t.Fatalf("unexpected stats: %+v (%v)", stats, err)
	}

	if err := repo.MarkSent(first.ID); err != nil {
		t.Fatalf("mark sent: %v", err)
	}
	if err := repo.MarkFailed(second.ID); err != nil {
		t.Fatalf("mark failed: %v", err)
	}
	if err := repo.MarkSent("missing"); !errors.Is(err, domain.ErrOutboxPublish) {
		t.Fatalf("expected ErrOutboxPublish, got %v", err)
	}

	after, err := repo.PullPending(10)
	if err != nil || len(after) != 0 {
		t.Fatalf("expected empty backlog, got %d (%v)", len(after), err)
	}
}
