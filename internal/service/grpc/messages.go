package grpcsvc

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// Empty: пустой запрос или ответ.
type Empty struct{}

// Product: товар каталога.
type Product struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price"`
	Image       string          `json:"image"`
	Category    string          `json:"category"`
	Subcategory string          `json:"subcategory,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

type ListProductsRequest struct {
	Category    string `json:"category,omitempty"`
	Subcategory string `json:"subcategory,omitempty"`
}

type ListProductsResponse struct {
	Products []Product `json:"products"`
}

type ProductRequest struct {
	ID string `json:"id"`
}

// CartLine: позиция корзины вместе с суммой по позиции.
type CartLine struct {
	ID          string          `json:"id"`
	ProductID   string          `json:"product_id"`
	Quantity    int             `json:"quantity"`
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price"`
	Image       string          `json:"image,omitempty"`
	Category    string          `json:"category,omitempty"`
	Subcategory string          `json:"subcategory,omitempty"`
	LineTotal   decimal.Decimal `json:"line_total"`
}

// Cart: подтверждённое хранилищем состояние корзины.
type Cart struct {
	Owner          string          `json:"owner"`
	Generation     uint64          `json:"generation"`
	Lines          []CartLine      `json:"lines"`
	Count          int             `json:"count"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	DeliveryCharge decimal.Decimal `json:"delivery_charge"`
	Total          decimal.Decimal `json:"total"`
}

type AddToCartRequest struct {
	ProductID string `json:"product_id"`
}

type UpdateQuantityRequest struct {
	LineID string `json:"line_id"`
	Delta  int    `json:"delta"`
}

type RemoveFromCartRequest struct {
	LineID string `json:"line_id"`
}

type ShippingDetails struct {
	FirstName     string `json:"first_name"`
	LastName      string `json:"last_name"`
	Email         string `json:"email"`
	Phone         string `json:"phone"`
	Address       string `json:"address"`
	City          string `json:"city"`
	PostalCode    string `json:"postal_code,omitempty"`
	PaymentMethod string `json:"payment_method,omitempty"`
	Notes         string `json:"notes,omitempty"`
}

// PlaceOrderRequest оформляет текущую корзину.
// ExpectedCount/ExpectedSubtotal — итоги, которые видел покупатель;
// если они заданы и разошлись с корзиной, заказ не создаётся.
type PlaceOrderRequest struct {
	Shipping         ShippingDetails  `json:"shipping"`
	ExpectedCount    int              `json:"expected_count,omitempty"`
	ExpectedSubtotal *decimal.Decimal `json:"expected_subtotal,omitempty"`
}

type Order struct {
	ID             string          `json:"id"`
	UserID         string          `json:"user_id,omitempty"`
	UserEmail      string          `json:"user_email"`
	Shipping       ShippingDetails `json:"shipping"`
	Items          []CartLine      `json:"items"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	DeliveryCharge decimal.Decimal `json:"delivery_charge"`
	Total          decimal.Decimal `json:"total"`
	Status         string          `json:"status"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

type ListOrdersRequest struct {
	Status string `json:"status,omitempty"`
}

type ListOrdersResponse struct {
	Orders []Order `json:"orders"`
}

type UpdateOrderStatusRequest struct {
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
}

func toProduct(p domain.Product) Product {
	return Product{
		ID:          p.ID,
		Name:        p.Name,
		Price:       p.Price,
		Image:       p.Image,
		Category:    p.Category,
		Subcategory: p.Subcategory,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

func fromProduct(p Product) domain.Product {
	return domain.Product{
		ID:          p.ID,
		Name:        p.Name,
		Price:       p.Price,
		Image:       p.Image,
		Category:    p.Category,
		Subcategory: p.Subcategory,
	}
}

func toCartLines(lines []domain.CartLine) []CartLine {
	out := make([]CartLine, 0, len(lines))
	for _, l := range lines {
		out = append(out, CartLine{
			ID:          l.ID,
			ProductID:   l.ProductRef,
			Quantity:    l.Quantity,
			Name:        l.Name,
			Price:       l.Price,
			Image:       l.Image,
			Category:    l.Category,
			Subcategory: l.Subcategory,
			LineTotal:   l.LineTotal(),
		})
	}
	return out
}

func toShipping(d domain.ShippingDetails) ShippingDetails {
	return ShippingDetails{
		FirstName:     d.FirstName,
		LastName:      d.LastName,
		Email:         d.Email,
		Phone:         d.Phone,
		Address:       d.Address,
		City:          d.City,
		PostalCode:    d.PostalCode,
		PaymentMethod: d.PaymentMethod,
		Notes:         d.Notes,
	}
}

func fromShipping(d ShippingDetails) domain.ShippingDetails {
	return domain.ShippingDetails{
		FirstName:     d.FirstName,
		LastName:      d.LastName,
		Email:         d.Email,
		Phone:         d.Phone,
		Address:       d.Address,
		City:          d.City,
		PostalCode:    d.PostalCode,
		PaymentMethod: d.PaymentMethod,
		Notes:         d.Notes,
	}
}

func toOrder(o domain.Order) Order {
	return Order{
		ID:             o.ID,
		UserID:         o.UserID,
		UserEmail:      o.UserEmail,
		Shipping:       toShipping(o.Shipping),
		Items:          toCartLines(o.Items),
		Subtotal:       o.Subtotal,
		DeliveryCharge: o.DeliveryCharge,
		Total:          o.Total,
		Status:         string(o.Status),
		CreatedAt:      o.CreatedAt,
		UpdatedAt:      o.UpdatedAt,
	}
}

func toOrders(orders []domain.Order) []Order {
	out := make([]Order, 0, len(orders))
	for _, o := range orders {
		out = append(out, toOrder(o))
	}
	return out
}
