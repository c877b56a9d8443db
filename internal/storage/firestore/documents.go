package firestore

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// Firestore хранит цены числами с плавающей точкой; на границе они
// переводятся в decimal, дальше вся арифметика точная.

type productDoc struct {
	Name        string    `firestore:"name"`
	Price       float64   `firestore:"price"`
	Image       string    `firestore:"image"`
	Category    string    `firestore:"category"`
	Subcategory string    `firestore:"subcategory"`
	Timestamp   time.Time `firestore:"timestamp"`
	UpdatedAt   time.Time `firestore:"updatedAt"`
}

func productDocFromDomain(p domain.Product) productDoc {
	return productDoc{
		Name:        p.Name,
		Price:       p.Price.InexactFloat64(),
		Image:       p.Image,
		Category:    p.Category,
		Subcategory: p.Subcategory,
		Timestamp:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

func (d productDoc) toDomain(id string) domain.Product {
	return domain.Product{
		ID:          id,
		Name:        d.Name,
		Price:       decimal.NewFromFloat(d.Price),
		Image:       d.Image,
		Category:    d.Category,
		Subcategory: d.Subcategory,
		CreatedAt:   d.Timestamp.UTC(),
		UpdatedAt:   d.UpdatedAt.UTC(),
	}
}

// lineDoc: документ коллекции Cart: поля товара, productId, quantity, email, timestamp.
type lineDoc struct {
	ProductID   string    `firestore:"productId"`
	Quantity    int       `firestore:"quantity"`
	Email       string    `firestore:"email"`
	Name        string    `firestore:"name"`
	Price       float64   `firestore:"price"`
	Image       string    `firestore:"image"`
	Category    string    `firestore:"category"`
	Subcategory string    `firestore:"subcategory"`
	Timestamp   time.Time `firestore:"timestamp"`
}

func lineDocFromDomain(l domain.CartLine) lineDoc {
	return lineDoc{
		ProductID:   l.ProductRef,
		Quantity:    l.Quantity,
		Email:       l.Owner,
		Name:        l.Name,
		Price:       l.Price.InexactFloat64(),
		Image:       l.Image,
		Category:    l.Category,
		Subcategory: l.Subcategory,
		Timestamp:   l.CreatedAt,
	}
}

func (d lineDoc) toDomain(id string) domain.CartLine {
	return domain.CartLine{
		ID:         id,
		ProductRef: d.ProductID,
		Quantity:   d.Quantity,
		Owner:      d.Email,
		ProductSnapshot: domain.ProductSnapshot{
			Name:        d.Name,
			Price:       decimal.NewFromFloat(d.Price),
			Image:       d.Image,
			Category:    d.Category,
			Subcategory: d.Subcategory,
		},
		CreatedAt: d.Timestamp.UTC(),
	}
}

// orderItemDoc: позиция внутри документа Checkout.
type orderItemDoc struct {
	ID          string  `firestore:"id"`
	ProductID   string  `firestore:"productId"`
	Quantity    int     `firestore:"quantity"`
	Name        string  `firestore:"name"`
	Price       float64 `firestore:"price"`
	Image       string  `firestore:"image"`
	Category    string  `firestore:"category"`
	Subcategory string  `firestore:"subcategory"`
}

// orderDoc: документ Checkout: поля формы доставки лежат на верхнем уровне.
type orderDoc struct {
	FirstName      string         `firestore:"firstName"`
	LastName       string         `firestore:"lastName"`
	Email          string         `firestore:"email"`
	Phone          string         `firestore:"phone"`
	Address        string         `firestore:"address"`
	City           string         `firestore:"city"`
	PostalCode     string         `firestore:"postalCode"`
	PaymentMethod  string         `firestore:"paymentMethod"`
	Notes          string         `firestore:"notes"`
	Items          []orderItemDoc `firestore:"items"`
	Subtotal       float64        `firestore:"subtotal"`
	DeliveryCharge float64        `firestore:"deliveryCharge"`
	Total          float64        `firestore:"total"`
	Status         string         `firestore:"status"`
	CreatedAt      time.Time      `firestore:"createdAt"`
	UpdatedAt      time.Time      `firestore:"updatedAt"`
	UserID         string         `firestore:"userId"`
	UserEmail      string         `firestore:"userEmail"`
}

func orderDocFromDomain(o domain.Order) orderDoc {
	items := make([]orderItemDoc, 0, len(o.Items))
	for _, l := range o.Items {
		items = append(items, orderItemDoc{
			ID:          l.ID,
			ProductID:   l.ProductRef,
			Quantity:    l.Quantity,
			Name:        l.Name,
			Price:       l.Price.InexactFloat64(),
			Image:       l.Image,
			Category:    l.Category,
			Subcategory: l.Subcategory,
		})
	}

	s := o.Shipping
	return orderDoc{
		FirstName:      s.FirstName,
		LastName:       s.LastName,
		Email:          s.Email,
		Phone:          s.Phone,
		Address:        s.Address,
		City:           s.City,
		PostalCode:     s.PostalCode,
		PaymentMethod:  s.PaymentMethod,
		Notes:          s.Notes,
		Items:          items,
		Subtotal:       o.Subtotal.InexactFloat64(),
		DeliveryCharge: o.DeliveryCharge.InexactFloat64(),
		Total:          o.Total.InexactFloat64(),
		Status:         string(o.Status),
		CreatedAt:      o.CreatedAt,
		UpdatedAt:      o.UpdatedAt,
		UserID:         o.UserID,
		UserEmail:      o.UserEmail,
	}
}

func (d orderDoc) toDomain(id string) domain.Order {
	items := make([]domain.CartLine, 0, len(d.Items))
	for _, it := range d.Items {
		items = append(items, domain.CartLine{
			ID:         it.ID,
			ProductRef: it.ProductID,
			Quantity:   it.Quantity,
			Owner:      d.UserEmail,
			ProductSnapshot: domain.ProductSnapshot{
				Name:        it.Name,
				Price:       decimal.NewFromFloat(it.Price),
				Image:       it.Image,
				Category:    it.Category,
				Subcategory: it.Subcategory,
			},
		})
	}

	return domain.Order{
		ID:        id,
		UserID:    d.UserID,
		UserEmail: d.UserEmail,
		Shipping: domain.ShippingDetails{
			FirstName:     d.FirstName,
			LastName:      d.LastName,
			Email:         d.Email,
			Phone:         d.Phone,
			Address:       d.Address,
			City:          d.City,
			PostalCode:    d.PostalCode,
			PaymentMethod: d.PaymentMethod,
			Notes:         d.Notes,
		},
		Items:          items,
		Subtotal:       decimal.NewFromFloat(d.Subtotal),
		DeliveryCharge: decimal.NewFromFloat(d.DeliveryCharge),
		Total:          decimal.NewFromFloat(d.Total),
		Status:         domain.OrderStatus(d.Status),
		CreatedAt:      d.CreatedAt.UTC(),
		UpdatedAt:      d.UpdatedAt.UTC(),
	}
}
