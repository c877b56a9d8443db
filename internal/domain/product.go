package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Product: товар каталога (коллекция Products).
type Product struct {
	ID          string
	Name        string
	Price       decimal.Decimal
	Image       string
	Category    string
	Subcategory string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Validate проверяет обязательные поля товара и возвращает список замечаний.
func (p *Product) Validate() []error {
	var errs []error

	if strings.TrimSpace(p.Name) == "" {
		errs = append(errs, ErrProductNameRequired)
	}
	if strings.TrimSpace(p.Image) == "" {
		errs = append(errs, ErrProductImageRequired)
	}
	if strings.TrimSpace(p.Category) == "" {
		errs = append(errs, ErrProductCategoryRequired)
	}
	if !p.Price.IsPositive() {
		errs = append(errs, ErrProductPriceInvalid)
	}

	return errs
}

// Snapshot возвращает поля, которые копируются в позицию корзины.
func (p Product) Snapshot() ProductSnapshot {
	return ProductSnapshot{
		Name:        p.Name,
		Price:       p.Price,
		Image:       p.Image,
		Category:    p.Category,
		Subcategory: p.Subcategory,
	}
}
