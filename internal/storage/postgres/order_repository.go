package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

const orderColumns = `id, user_id, user_email, shipping, items, subtotal, delivery_charge, total, status, created_at, updated_at`

// shippingDocument: JSONB-представление формы доставки.
type shippingDocument struct {
	FirstName     string `json:"first_name"`
	LastName      string `json:"last_name"`
	Email         string `json:"email"`
	Phone         string `json:"phone"`
	Address       string `json:"address"`
	City          string `json:"city"`
	PostalCode    string `json:"postal_code,omitempty"`
	PaymentMethod string `json:"payment_method"`
	Notes         string `json:"notes,omitempty"`
}

// itemDocument: JSONB-представление позиции заказа.
type itemDocument struct {
	LineID      string          `json:"line_id"`
	ProductID   string          `json:"product_id"`
	Quantity    int             `json:"quantity"`
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price"`
	Image       string          `json:"image,omitempty"`
	Category    string          `json:"category,omitempty"`
	Subcategory string          `json:"subcategory,omitempty"`
	AddedAt     time.Time       `json:"added_at"`
}

type orderRepository struct {
	db *sql.DB
}

// NewOrderRepository создаёт PostgreSQL-реализацию OrderRepository.
func NewOrderRepository(store *Store) domain.OrderRepository {
	return &orderRepository{db: store.DB()}
}

func (r *orderRepository) Create(ctx context.Context, order domain.Order) error {
	shipping, items, err := encodeOrderDocuments(order)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO orders (`+orderColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	`,
		order.ID, order.UserID, order.UserEmail, shipping, items,
		order.Subtotal, order.DeliveryCharge, order.Total, string(order.Status),
		order.CreatedAt, order.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrOrderAlreadyExists
		}
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

func (r *orderRepository) Get(ctx context.Context, id string) (domain.Order, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	order, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return order, err
}

func (r *orderRepository) List(ctx context.Context, status domain.OrderStatus) ([]domain.Order, error) {
	if status == "" {
		return r.query(ctx, `SELECT `+orderColumns+` FROM orders ORDER BY created_at DESC, id DESC`)
	}
	return r.query(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE status = $1
		ORDER BY created_at DESC, id DESC
	`, string(status))
}

func (r *orderRepository) ListByEmail(ctx context.Context, email string) ([]domain.Order, error) {
	return r.query(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE user_email = $1
		ORDER BY created_at DESC, id DESC
	`, email)
}

func (r *orderRepository) UpdateStatus(ctx context.Context, id string, status domain.OrderStatus) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE orders
		SET status = $2,
		    updated_at = $3
		WHERE id = $1
	`, id, string(status), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	return expectAffected(res, domain.ErrOrderNotFound)
}

func (r *orderRepository) query(ctx context.Context, query string, args ...any) ([]domain.Order, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	orders := make([]domain.Order, 0)
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order rows: %w", err)
	}
	return orders, nil
}

func scanOrder(row rowScanner) (domain.Order, error) {
	var (
		order    domain.Order
		status   string
		shipping []byte
		items    []byte
	)
	if err := row.Scan(
		&order.ID, &order.UserID, &order.UserEmail, &shipping, &items,
		&order.Subtotal, &order.DeliveryCharge, &order.Total, &status,
		&order.CreatedAt, &order.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Order{}, err
		}
		return domain.Order{}, fmt.Errorf("scan order row: %w", err)
	}
	order.Status = domain.OrderStatus(status)
	order.CreatedAt = order.CreatedAt.UTC()
	order.UpdatedAt = order.UpdatedAt.UTC()

	if err := decodeOrderDocuments(&order, shipping, items); err != nil {
		return domain.Order{}, err
	}
	return order, nil
}

func encodeOrderDocuments(order domain.Order) ([]byte, []byte, error) {
	s := order.Shipping
	shipping, err := json.Marshal(shippingDocument{
		FirstName:     s.FirstName,
		LastName:      s.LastName,
		Email:         s.Email,
		Phone:         s.Phone,
		Address:       s.Address,
		City:          s.City,
		PostalCode:    s.PostalCode,
		PaymentMethod: s.PaymentMethod,
		Notes:         s.Notes,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("marshal shipping: %w", err)
	}

	docs := make([]itemDocument, 0, len(order.Items))
	for _, line := range order.Items {
		docs = append(docs, itemDocument{
			LineID:      line.ID,
			ProductID:   line.ProductRef,
			Quantity:    line.Quantity,
			Name:        line.Name,
			Price:       line.Price,
			Image:       line.Image,
			Category:    line.Category,
			Subcategory: line.Subcategory,
			AddedAt:     line.CreatedAt,
		})
	}
	items, err := json.Marshal(docs)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal order items: %w", err)
	}
	return shipping, items, nil
}

func decodeOrderDocuments(order *domain.Order, shipping, items []byte) error {
	var s shippingDocument
	if err := json.Unmarshal(shipping, &s); err != nil {
		return fmt.Errorf("unmarshal shipping: %w", err)
	}
	order.Shipping = domain.ShippingDetails{
		FirstName:     s.FirstName,
		LastName:      s.LastName,
		Email:         s.Email,
		Phone:         s.Phone,
		Address:       s.Address,
		City:          s.City,
		PostalCode:    s.PostalCode,
		PaymentMethod: s.PaymentMethod,
		Notes:         s.Notes,
	}

	var docs []itemDocument
	if err := json.Unmarshal(items, &docs); err != nil {
		return fmt.Errorf("unmarshal order items: %w", err)
	}
	order.Items = make([]domain.CartLine, 0, len(docs))
	for _, d := range docs {
		order.Items = append(order.Items, domain.CartLine{
			ID:         d.LineID,
			ProductRef: d.ProductID,
			Quantity:   d.Quantity,
			Owner:      order.UserEmail,
			ProductSnapshot: domain.ProductSnapshot{
				Name:        d.Name,
				Price:       d.Price,
				Image:       d.Image,
				Category:    d.Category,
				Subcategory: d.Subcategory,
			},
			CreatedAt: d.AddedAt,
		})
	}
	return nil
}

var _ domain.OrderRepository = (*orderRepository)(nil)
