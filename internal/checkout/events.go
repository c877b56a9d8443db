package checkout

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// OrderItemPayload: позиция заказа в событии OrderPlaced.
type OrderItemPayload struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
}

// OrderPlacedPayload: тело события OrderPlaced.
type OrderPlacedPayload struct {
	OrderID        string             `json:"order_id"`
	UserID         string             `json:"user_id,omitempty"`
	UserEmail      string             `json:"user_email"`
	Items          []OrderItemPayload `json:"items"`
	Subtotal       decimal.Decimal    `json:"subtotal"`
	DeliveryCharge decimal.Decimal    `json:"delivery_charge"`
	Total          decimal.Decimal    `json:"total"`
	PaymentMethod  string             `json:"payment_method"`
	Status         domain.OrderStatus `json:"status"`
	PlacedAt       time.Time          `json:"placed_at"`
}

// OrderStatusChangedPayload: тело события OrderStatusChanged.
type OrderStatusChangedPayload struct {
	OrderID   string             `json:"order_id"`
	UserEmail string             `json:"user_email"`
	From      domain.OrderStatus `json:"from"`
	To        domain.OrderStatus `json:"to"`
	ChangedAt time.Time          `json:"changed_at"`
}

func placedPayload(order domain.Order) OrderPlacedPayload {
	items := make([]OrderItemPayload, 0, len(order.Items))
	for _, line := range order.Items {
		items = append(items, OrderItemPayload{
			ProductID: line.ProductRef,
			Name:      line.Name,
			Price:     line.Price,
			Quantity:  line.Quantity,
		})
	}
	return OrderPlacedPayload{
		OrderID:        order.ID,
		UserID:         order.UserID,
		UserEmail:      order.UserEmail,
		Items:          items,
		Subtotal:       order.Subtotal,
		DeliveryCharge: order.DeliveryCharge,
		Total:          order.Total,
		PaymentMethod:  order.Shipping.PaymentMethod,
		Status:         order.Status,
		PlacedAt:       order.CreatedAt,
	}
}
