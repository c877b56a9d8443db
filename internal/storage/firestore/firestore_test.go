package firestore

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

func TestLineDoc_RoundTripKeepsFieldNames(t *testing.T) {
	t.Parallel()

	created := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	line := domain.CartLine{
		ID:         "doc-1",
		ProductRef: "p-1",
		Quantity:   2,
		Owner:      "buyer@example.com",
		ProductSnapshot: domain.ProductSnapshot{
			Name:        "Runner",
			Price:       decimal.RequireFromString("49.90"),
			Image:       "runner.png",
			Category:    "shoes",
			Subcategory: "Sneakers",
		},
		CreatedAt: created,
	}

	doc := lineDocFromDomain(line)
	require.Equal(t, "p-1", doc.ProductID)
	require.Equal(t, "buyer@example.com", doc.Email)
	require.InDelta(t, 49.9, doc.Price, 1e-9)

	back := doc.toDomain("doc-1")
	require.True(t, back.Price.Equal(line.Price), "price %s != %s", back.Price, line.Price)
	back.Price = line.Price
	require.Equal(t, line, back)
}

func TestOrderDoc_RoundTrip(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	order := domain.Order{
		ID:        "order-1",
		UserID:    "uid-1",
		UserEmail: "buyer@example.com",
		Shipping: domain.ShippingDetails{
			FirstName: "Ada", LastName: "Lovelace", Email: "buyer@example.com",
			Phone: "+1", Address: "1 Main St", City: "London", PostalCode: "N1",
			PaymentMethod: domain.PaymentMethodCashOnDelivery,
		},
		Items: []domain.CartLine{{
			ID: "l-1", ProductRef: "p-1", Quantity: 2, Owner: "buyer@example.com",
			ProductSnapshot: domain.ProductSnapshot{Name: "Runner", Price: decimal.RequireFromString("12.50")},
		}},
		Subtotal:       decimal.RequireFromString("25"),
		DeliveryCharge: decimal.NewFromInt(10),
		Total:          decimal.RequireFromString("35"),
		Status:         domain.OrderStatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	back := orderDocFromDomain(order).toDomain("order-1")
	require.Empty(t, back.ValidateInvariants())
	require.Equal(t, order.Shipping, back.Shipping)
	require.Equal(t, "12.5", back.Items[0].Price.String())
}

// Тесты ниже работают только с эмулятором Firestore.
func openEmulatorClient(t *testing.T) *Client {
	t.Helper()
	if os.Getenv("FIRESTORE_EMULATOR_HOST") == "" {
		t.Skip("FIRESTORE_EMULATOR_HOST is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, err := Open(ctx, "storefront-test", "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, client.Ping(ctx))
	return client
}

func TestCartStore_Emulator(t *testing.T) {
	client := openEmulatorClient(t)
	store := NewCartStore(client)
	ctx := context.Background()
	owner := "emulator-" + time.Now().Format("150405.000000") + "@example.com"

	line := domain.CartLine{
		ProductRef:      "p-1",
		Quantity:        1,
		Owner:           owner,
		ProductSnapshot: domain.ProductSnapshot{Name: "Runner", Price: decimal.NewFromInt(10)},
	}
	id, err := store.Insert(ctx, line)
	require.NoError(t, err)

	_, err = store.Insert(ctx, line)
	require.ErrorIs(t, err, domain.ErrLineAlreadyExists)

	require.NoError(t, store.Update(ctx, id, domain.QuantityPatch(4)))
	require.ErrorIs(t, store.Update(ctx, "missing-line", domain.QuantityPatch(4)), domain.ErrLineNotFound)

	lines, err := store.Query(ctx, owner)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	require.Equal(t, 4, lines[0].Quantity)

	require.NoError(t, store.Delete(ctx, id))
	require.NoError(t, store.Delete(ctx, id))
}

func TestCatalogAndOrders_Emulator(t *testing.T) {
	client := openEmulatorClient(t)
	catalog := NewCatalogRepository(client)
	orders := NewOrderRepository(client)
	ctx := context.Background()

	product, err := catalog.Create(ctx, domain.Product{
		Name: "Chrono", Price: decimal.NewFromInt(120), Image: "chrono.png", Category: "watches",
	})
	require.NoError(t, err)

	got, err := catalog.Get(ctx, product.ID)
	require.NoError(t, err)
	require.Equal(t, "Chrono", got.Name)

	require.NoError(t, catalog.Delete(ctx, product.ID))
	err = catalog.Delete(ctx, product.ID)
	require.True(t, errors.Is(err, domain.ErrProductNotFound), "got %v", err)

	now := time.Now().UTC()
	order := domain.Order{
		ID:             "order-" + now.Format("150405.000000"),
		UserEmail:      "buyer@example.com",
		Status:         domain.OrderStatusPending,
		Subtotal:       decimal.NewFromInt(10),
		DeliveryCharge: decimal.NewFromInt(10),
		Total:          decimal.NewFromInt(20),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	require.NoError(t, orders.Create(ctx, order))
	require.ErrorIs(t, orders.Create(ctx, order), domain.ErrOrderAlreadyExists)
	require.NoError(t, orders.UpdateStatus(ctx, order.ID, domain.OrderStatusShipped))

	stored, err := orders.Get(ctx, order.ID)
	require.NoError(t, err)
	require.Equal(t, domain.OrderStatusShipped, stored.Status)
	require.ErrorIs(t, orders.UpdateStatus(ctx, "missing-order", domain.OrderStatusShipped), domain.ErrOrderNotFound)
}
