// Package checkout оформляет заказы из корзины и ведёт их статусы.
package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
)

// DefaultDeliveryCharge: фиксированная стоимость доставки.
var DefaultDeliveryCharge = decimal.NewFromInt(10)

// Options задаёт зависимости сервиса оформления.
type Options struct {
	Logger         *log.Entry
	Metrics        *metrics.CartMetrics
	DeliveryCharge decimal.Decimal
	Now            func() time.Time
}

// Option настраивает Service.
type Option func(*Options)

// WithLogger задаёт logger сервиса.
func WithLogger(logger *log.Entry) Option {
	return func(opts *Options) {
		opts.Logger = logger
	}
}

// WithMetrics задаёт метрики заказов.
func WithMetrics(m *metrics.CartMetrics) Option {
	return func(opts *Options) {
		opts.Metrics = m
	}
}

// WithDeliveryCharge переопределяет стоимость доставки.
func WithDeliveryCharge(charge decimal.Decimal) Option {
	return func(opts *Options) {
		opts.DeliveryCharge = charge
	}
}

// WithClock подменяет источник времени (для тестов).
func WithClock(now func() time.Time) Option {
	return func(opts *Options) {
		if now != nil {
			opts.Now = now
		}
	}
}

// Service: оформление и сопровождение заказов.
type Service struct {
	orders   domain.OrderRepository
	outbox   domain.OutboxRepository
	logger   *log.Entry
	metrics  *metrics.CartMetrics
	delivery decimal.Decimal
	now      func() time.Time
}

// NewService создаёт сервис оформления. outbox может быть nil: события тогда не пишутся.
func NewService(orders domain.OrderRepository, outbox domain.OutboxRepository, options ...Option) *Service {
	opts := Options{
		DeliveryCharge: DefaultDeliveryCharge,
		Now:            time.Now,
	}
	for _, option := range options {
		option(&opts)
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.WithField("component", "checkout-service")
	}
	if opts.DeliveryCharge.IsNegative() {
		opts.DeliveryCharge = DefaultDeliveryCharge
	}

	return &Service{
		orders:   orders,
		outbox:   outbox,
		logger:   logger,
		metrics:  opts.Metrics,
		delivery: opts.DeliveryCharge,
		now:      opts.Now,
	}
}

// DeliveryCharge возвращает текущую стоимость доставки.
func (s *Service) DeliveryCharge() decimal.Decimal {
	return s.delivery
}

// PlaceOrder фиксирует снимок корзины как заказ в статусе pending.
// Корзина после оформления не очищается.
func (s *Service) PlaceOrder(ctx context.Context, identity domain.Identity, lines []domain.CartLine, totals domain.Totals, shipping domain.ShippingDetails) (domain.Order, error) {
	if identity.IsZero() {
		return domain.Order{}, domain.ErrNotAuthenticated
	}
	if len(lines) == 0 {
		return domain.Order{}, domain.ErrCartEmpty
	}

	computed := domain.ComputeTotals(lines)
	if computed.Count != totals.Count || !computed.Price.Equal(totals.Price) {
		return domain.Order{}, fmt.Errorf("%w: got %d/%s, lines sum %d/%s",
			domain.ErrTotalsMismatch, totals.Count, totals.Price, computed.Count, computed.Price)
	}

	if strings.TrimSpace(shipping.PaymentMethod) == "" {
		shipping.PaymentMethod = domain.PaymentMethodCashOnDelivery
	}

	now := s.now().UTC()
	order := domain.Order{
		ID:             uuid.NewString(),
		UserID:         identity.UID,
		UserEmail:      identity.Key(),
		Shipping:       shipping,
		Items:          domain.CloneLines(lines),
		Subtotal:       computed.Price,
		DeliveryCharge: s.delivery,
		Total:          computed.Price.Add(s.delivery),
		Status:         domain.OrderStatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if errs := order.ValidateInvariants(); len(errs) > 0 {
		return domain.Order{}, errors.Join(errs...)
	}

	if err := s.orders.Create(ctx, order); err != nil {
		return domain.Order{}, fmt.Errorf("create order: %w", err)
	}

	s.emit(order.ID, domain.EventOrderPlaced, placedPayload(order))
	s.metrics.RecordOrderPlaced()

	s.logger.WithFields(log.Fields{
		"order_id": order.ID,
		"items":    order.ItemCount(),
		"total":    order.Total.StringFixed(2),
	}).Info("order placed")

	return order, nil
}

// ListOrders возвращает заказы с указанным статусом; пустой статус — все.
func (s *Service) ListOrders(ctx context.Context, status domain.OrderStatus) ([]domain.Order, error) {
	if status != "" && !status.Valid() {
		return nil, domain.ErrOrderStatusInvalid
	}
	return s.orders.List(ctx, status)
}

// ListMyOrders возвращает заказы пользователя.
func (s *Service) ListMyOrders(ctx context.Context, identity domain.Identity) ([]domain.Order, error) {
	if identity.IsZero() {
		return nil, domain.ErrNotAuthenticated
	}
	return s.orders.ListByEmail(ctx, identity.Key())
}

// GetOrder возвращает заказ по ID.
func (s *Service) GetOrder(ctx context.Context, id string) (domain.Order, error) {
	if strings.TrimSpace(id) == "" {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return s.orders.Get(ctx, id)
}

// UpdateStatus переводит заказ в новый статус, проверяя допустимость перехода.
func (s *Service) UpdateStatus(ctx context.Context, id string, status domain.OrderStatus) (domain.Order, error) {
	if !status.Valid() {
		return domain.Order{}, domain.ErrOrderStatusInvalid
	}

	order, err := s.GetOrder(ctx, id)
	if err != nil {
		return domain.Order{}, err
	}
	if !order.Status.CanTransitionTo(status) {
		return domain.Order{}, fmt.Errorf("%w: %s -> %s", domain.ErrOrderTransitionInvalid, order.Status, status)
	}

	if err := s.orders.UpdateStatus(ctx, id, status); err != nil {
		return domain.Order{}, fmt.Errorf("update order status: %w", err)
	}

	previous := order.Status
	order.Status = status
	order.UpdatedAt = s.now().UTC()

	s.emit(order.ID, domain.EventOrderStatusChanged, OrderStatusChangedPayload{
		OrderID:   order.ID,
		UserEmail: order.UserEmail,
		From:      previous,
		To:        status,
		ChangedAt: order.UpdatedAt,
	})
	s.metrics.RecordStatusChange(string(status))

	s.logger.WithFields(log.Fields{
		"order_id": order.ID,
		"from":     previous,
		"to":       status,
	}).Info("order status changed")

	return order, nil
}

// emit пишет событие в outbox. Заказ уже сохранён, поэтому ошибка только логируется.
func (s *Service) emit(orderID, eventType string, payload any) {
	if s.outbox == nil {
		return
	}

	data, err := json.Marshal(payload)
	if err != nil {
		s.logger.WithError(err).WithFields(log.Fields{
			"order_id": orderID,
			"event":    eventType,
		}).Error("marshal event failed")
		return
	}

	msg := domain.OutboxMessage{
		AggregateType: domain.AggregateOrder,
		AggregateID:   orderID,
		EventType:     eventType,
		Payload:       data,
	}
	if _, err := s.outbox.Enqueue(msg); err != nil {
		s.logger.WithError(err).WithFields(log.Fields{
			"order_id": orderID,
			"event":    eventType,
		}).Error("enqueue event failed")
	}
}
