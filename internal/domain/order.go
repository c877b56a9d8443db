package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus описывает жизненный цикл заказа витрины.
type OrderStatus string

const (
	// OrderStatusPending: заказ оформлен и ждёт отправки.
	OrderStatusPending OrderStatus = "pending"
	// OrderStatusShipped: заказ передан в доставку.
	OrderStatusShipped OrderStatus = "shipped"
	// OrderStatusCompleted: заказ доставлен.
	OrderStatusCompleted OrderStatus = "completed"
	// OrderStatusCanceled: заказ отменён до отправки.
	OrderStatusCanceled OrderStatus = "canceled"
)

// PaymentMethodCashOnDelivery: единственный способ оплаты витрины.
const PaymentMethodCashOnDelivery = "cashOnDelivery"

// Valid проверяет, что статус относится к поддерживаемым значениям.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusShipped, OrderStatusCompleted, OrderStatusCanceled:
		return true
	default:
		return false
	}
}

// CanTransitionTo проверяет допустимость перехода статуса.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	switch s {
	case OrderStatusPending:
		return next == OrderStatusShipped || next == OrderStatusCanceled
	case OrderStatusShipped:
		return next == OrderStatusCompleted
	default:
		return false
	}
}

// ShippingDetails: поля формы доставки.
type ShippingDetails struct {
	FirstName     string
	LastName      string
	Email         string
	Phone         string
	Address       string
	City          string
	PostalCode    string
	PaymentMethod string
	Notes         string
}

// Validate проверяет обязательные поля доставки.
func (d *ShippingDetails) Validate() []error {
	required := []struct {
		name  string
		value string
	}{
		{"first_name", d.FirstName},
		{"last_name", d.LastName},
		{"email", d.Email},
		{"phone", d.Phone},
		{"address", d.Address},
		{"city", d.City},
	}

	var errs []error
	for _, field := range required {
		if strings.TrimSpace(field.value) == "" {
			errs = append(errs, fmt.Errorf("%w: %s", ErrShippingFieldRequired, field.name))
		}
	}
	return errs
}

// Order: оформленный заказ (коллекция Checkout).
type Order struct {
	ID             string
	UserID         string
	UserEmail      string
	Shipping       ShippingDetails
	Items          []CartLine
	Subtotal       decimal.Decimal
	DeliveryCharge decimal.Decimal
	Total          decimal.Decimal
	Status         OrderStatus
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// ValidateInvariants проверяет базовые инварианты заказа и возвращает список замечаний.
func (o *Order) ValidateInvariants() []error {
	var errs []error

	if o.UserEmail == "" {
		errs = append(errs, ErrNotAuthenticated)
	}
	if len(o.Items) == 0 {
		errs = append(errs, ErrCartEmpty)
	}
	if !o.Status.Valid() {
		errs = append(errs, ErrOrderStatusInvalid)
	}
	errs = append(errs, o.Shipping.Validate()...)

	// Сверяем суммы заказа с позициями: subtotal = Σ price × qty, total = subtotal + delivery.
	calc := ComputeTotals(o.Items)
	if !calc.Price.Equal(o.Subtotal) {
		errs = append(errs, fmt.Errorf("subtotal %s does not match items sum %s", o.Subtotal, calc.Price))
	}
	if o.DeliveryCharge.IsNegative() {
		errs = append(errs, fmt.Errorf("delivery charge must be non-negative"))
	}
	if !o.Subtotal.Add(o.DeliveryCharge).Equal(o.Total) {
		errs = append(errs, fmt.Errorf("total %s does not match subtotal plus delivery", o.Total))
	}

	return errs
}

// ItemCount возвращает количество единиц товара в заказе.
func (o *Order) ItemCount() int {
	return ComputeTotals(o.Items).Count
}
