package domain_test

import (
	"math"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

func line(id string, price int64, qty int) domain.CartLine {
	return domain.CartLine{
		ID:              id,
		ProductRef:      "product-" + id,
		Quantity:        qty,
		Owner:           "buyer@example.com",
		ProductSnapshot: domain.ProductSnapshot{Name: id, Price: decimal.NewFromInt(price)},
	}
}

func TestComputeTotals(t *testing.T) {
	totals := domain.ComputeTotals([]domain.CartLine{line("a", 10, 2), line("b", 5, 1)})

	if totals.Count != 3 {
		t.Fatalf("expected count 3, got %d", totals.Count)
	}
	if !totals.Price.Equal(decimal.RequireFromString("25.00")) {
		t.Fatalf("expected price 25.00, got %s", totals.Price.StringFixed(2))
	}
}

func TestComputeTotals_Empty(t *testing.T) {
	totals := domain.ComputeTotals(nil)
	if totals.Count != 0 || !totals.Price.IsZero() {
		t.Fatalf("expected zero totals, got %+v", totals)
	}
}

func TestComputeTotals_FractionalPrices(t *testing.T) {
	l := line("c", 0, 3)
	l.Price = decimal.RequireFromString("19.99")

	totals := domain.ComputeTotals([]domain.CartLine{l})
	if got := totals.Price.StringFixed(2); got != "59.97" {
		t.Fatalf("expected 59.97, got %s", got)
	}
}

func TestClampQuantity(t *testing.T) {
	cases := []struct {
		name    string
		current int
		delta   int
		want    int
	}{
		{name: "increment", current: 1, delta: 1, want: 2},
		{name: "decrement", current: 3, delta: -1, want: 2},
		{name: "floor at one", current: 2, delta: -5, want: 1},
		{name: "already at floor", current: 1, delta: -1, want: 1},
		{name: "zero delta", current: 4, delta: 0, want: 4},
		{name: "huge increment saturates", current: 2, delta: math.MaxInt, want: domain.MaxQuantity},
		{name: "increment past max", current: domain.MaxQuantity - 1, delta: 5, want: domain.MaxQuantity},
		{name: "at max stays", current: domain.MaxQuantity, delta: 1, want: domain.MaxQuantity},
		{name: "huge decrement floors", current: 2, delta: math.MinInt, want: 1},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := domain.ClampQuantity(tc.current, tc.delta); got != tc.want {
				t.Fatalf("ClampQuantity(%d, %d) = %d, want %d", tc.current, tc.delta, got, tc.want)
			}
		})
	}
}

func TestIdentity_Key(t *testing.T) {
	if !(domain.Identity{}).IsZero() {
		t.Fatal("zero identity must be signed out")
	}
	id := domain.Identity{UID: "uid-1", Email: "  buyer@example.com "}
	if id.IsZero() {
		t.Fatal("identity with email must not be zero")
	}
	if id.Key() != "buyer@example.com" {
		t.Fatalf("unexpected key %q", id.Key())
	}
	if (domain.Identity{UID: "uid-only"}).IsZero() != true {
		t.Fatal("identity without email has no partition key")
	}
}
