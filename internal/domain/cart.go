package domain

import (
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Identity: аутентифицированный пользователь сессии.
// Корзина партиционируется только по Email; UID хранится для заказов.
type Identity struct {
	UID   string
	Email string
}

// Key возвращает ключ партиционирования корзины.
func (i Identity) Key() string {
	return strings.TrimSpace(i.Email)
}

// IsZero сообщает, что пользователь не привязан (выход из аккаунта).
func (i Identity) IsZero() bool {
	return i.Key() == ""
}

// ProductSnapshot: поля товара, копируемые в позицию корзины в момент добавления.
// После добавления они не синхронизируются с каталогом.
type ProductSnapshot struct {
	Name        string
	Price       decimal.Decimal
	Image       string
	Category    string
	Subcategory string
}

// CartLine: одна позиция корзины пользователя.
type CartLine struct {
	// ID назначается удалённым хранилищем и не меняется за время жизни позиции.
	ID string
	// ProductRef: идентификатор товара в каталоге.
	ProductRef string
	// Quantity всегда >= 1.
	Quantity int
	// Owner: ключ пользователя (Identity.Key), которому принадлежит позиция.
	Owner string
	ProductSnapshot
	CreatedAt time.Time
}

// LineTotal возвращает price × quantity для позиции.
func (l CartLine) LineTotal() decimal.Decimal {
	return l.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// LinePatch описывает частичное обновление позиции в удалённом хранилище.
type LinePatch struct {
	Quantity *int
}

// QuantityPatch строит патч, меняющий только количество.
func QuantityPatch(quantity int) LinePatch {
	return LinePatch{Quantity: &quantity}
}

// Totals: производные итоги корзины.
type Totals struct {
	Count int
	Price decimal.Decimal
}

// ComputeTotals считает количество единиц и сумму по позициям.
func ComputeTotals(lines []CartLine) Totals {
	totals := Totals{Price: decimal.Zero}
	for _, line := range lines {
		totals.Count += line.Quantity
		totals.Price = totals.Price.Add(line.LineTotal())
	}
	return totals
}

// MaxQuantity: верхняя граница количества одной позиции (quantity INTEGER в Postgres).
const MaxQuantity = math.MaxInt32

// ClampQuantity применяет границы количества: позиция не уходит ниже 1
// и не поднимается выше MaxQuantity. Переполнение int насыщается.
func ClampQuantity(current, delta int) int {
	switch {
	case delta > 0 && current > MaxQuantity-delta:
		return MaxQuantity
	case delta < 0 && current < math.MinInt-delta:
		return 1
	}

	next := current + delta
	if next < 1 {
		return 1
	}
	if next > MaxQuantity {
		return MaxQuantity
	}
	return next
}

// CloneLines возвращает независимую копию среза позиций.
func CloneLines(lines []CartLine) []CartLine {
	if lines == nil {
		return nil
	}
	out := make([]CartLine, len(lines))
	copy(out, lines)
	return out
}
