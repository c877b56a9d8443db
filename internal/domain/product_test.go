package domain

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func makeProduct() Product {
	return Product{
		ID:          "product-1",
		Name:        "Classic Watch",
		Price:       decimal.RequireFromString("120.50"),
		Image:       "https://cdn.example.com/watch.png",
		Category:    "Watches",
		Subcategory: "Analog",
	}
}

func TestProduct_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mut     func(p *Product)
		wantErr error
	}{
		{name: "valid", mut: func(*Product) {}},
		{name: "no name", mut: func(p *Product) { p.Name = "  " }, wantErr: ErrProductNameRequired},
		{name: "no image", mut: func(p *Product) { p.Image = "" }, wantErr: ErrProductImageRequired},
		{name: "no category", mut: func(p *Product) { p.Category = "" }, wantErr: ErrProductCategoryRequired},
		{name: "zero price", mut: func(p *Product) { p.Price = decimal.Zero }, wantErr: ErrProductPriceInvalid},
		{name: "negative price", mut: func(p *Product) { p.Price = decimal.NewFromInt(-1) }, wantErr: ErrProductPriceInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			product := makeProduct()
			tt.mut(&product)

			errs := product.Validate()
			if tt.wantErr == nil {
				if len(errs) != 0 {
					t.Fatalf("expected no errors, got %v", errs)
				}
				return
			}
			if len(errs) != 1 || !errors.Is(errs[0], tt.wantErr) {
				t.Fatalf("expected [%v], got %v", tt.wantErr, errs)
			}
		})
	}
}

func TestProduct_Snapshot(t *testing.T) {
	product := makeProduct()
	snap := product.Snapshot()

	if snap.Name != product.Name || snap.Image != product.Image {
		t.Fatalf("snapshot mismatch: %+v", snap)
	}
	if !snap.Price.Equal(product.Price) {
		t.Fatalf("expected price %s, got %s", product.Price, snap.Price)
	}
	if snap.Category != "Watches" || snap.Subcategory != "Analog" {
		t.Fatalf("unexpected category fields: %+v", snap)
	}
}
