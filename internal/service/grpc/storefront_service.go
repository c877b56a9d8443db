package grpcsvc

import (
	"context"
	"errors"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc/codes"

	"github.com/vladislavdragonenkov/storefront/internal/auth"
	"github.com/vladislavdragonenkov/storefront/internal/cart"
	"github.com/vladislavdragonenkov/storefront/internal/catalog"
	"github.com/vladislavdragonenkov/storefront/internal/checkout"
	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/session"
)

// maxQuantityDelta ограничивает шаг UpdateQuantity за один вызов.
const maxQuantityDelta = 1000

// StorefrontService реализует gRPC API поверх каталога, сессий корзин и оформления заказов.
type StorefrontService struct {
	catalog  *catalog.Service
	sessions *session.Manager
	checkout *checkout.Service
	admins   auth.Admins
	logger   *log.Entry
}

// NewStorefrontService конструирует сервис с зависимостями.
func NewStorefrontService(
	catalogService *catalog.Service,
	sessions *session.Manager,
	checkoutService *checkout.Service,
	admins auth.Admins,
	logger *log.Entry,
) *StorefrontService {
	if logger == nil {
		logger = log.New().WithField("component", "storefront-service")
	}
	return &StorefrontService{
		catalog:  catalogService,
		sessions: sessions,
		checkout: checkoutService,
		admins:   admins,
		logger:   logger,
	}
}

func (s *StorefrontService) ListProducts(ctx context.Context, req *ListProductsRequest) (*ListProductsResponse, error) {
	products, err := s.catalog.List(ctx, catalog.Filter{Category: req.Category, Subcategory: req.Subcategory})
	if err != nil {
		return nil, s.fail(ctx, "ListProducts", err)
	}

	resp := &ListProductsResponse{Products: make([]Product, 0, len(products))}
	for _, p := range products {
		resp.Products = append(resp.Products, toProduct(p))
	}
	return resp, nil
}

func (s *StorefrontService) GetProduct(ctx context.Context, req *ProductRequest) (*Product, error) {
	product, err := s.catalog.Get(ctx, req.ID)
	if err != nil {
		return nil, s.fail(ctx, "GetProduct", err)
	}
	out := toProduct(product)
	return &out, nil
}

func (s *StorefrontService) CreateProduct(ctx context.Context, req *Product) (*Product, error) {
	if _, err := s.requireAdmin(ctx); err != nil {
		return nil, toStatus(err)
	}

	created, err := s.catalog.Create(ctx, fromProduct(*req))
	if err != nil {
		return nil, s.fail(ctx, "CreateProduct", err)
	}
	out := toProduct(created)
	return &out, nil
}

func (s *StorefrontService) UpdateProduct(ctx context.Context, req *Product) (*Product, error) {
	if _, err := s.requireAdmin(ctx); err != nil {
		return nil, toStatus(err)
	}

	if err := s.catalog.Update(ctx, fromProduct(*req)); err != nil {
		return nil, s.fail(ctx, "UpdateProduct", err)
	}
	return s.GetProduct(ctx, &ProductRequest{ID: req.ID})
}

func (s *StorefrontService) DeleteProduct(ctx context.Context, req *ProductRequest) (*Empty, error) {
	if _, err := s.requireAdmin(ctx); err != nil {
		return nil, toStatus(err)
	}

	if err := s.catalog.Delete(ctx, req.ID); err != nil {
		return nil, s.fail(ctx, "DeleteProduct", err)
	}
	return &Empty{}, nil
}

func (s *StorefrontService) GetCart(ctx context.Context, _ *Empty) (*Cart, error) {
	sync, err := s.session(ctx)
	if err != nil {
		return nil, s.fail(ctx, "GetCart", err)
	}
	return s.cart(sync.Snapshot()), nil
}

// AddToCart копирует текущие поля товара в позицию; повторное добавление увеличивает количество.
func (s *StorefrontService) AddToCart(ctx context.Context, req *AddToCartRequest) (*Cart, error) {
	sync, err := s.session(ctx)
	if err != nil {
		return nil, s.fail(ctx, "AddToCart", err)
	}

	product, err := s.catalog.Get(ctx, strings.TrimSpace(req.ProductID))
	if err != nil {
		return nil, s.fail(ctx, "AddToCart", err)
	}
	if err := sync.AddLine(ctx, product.ID, product.Snapshot()); err != nil {
		s.refreshOnConflict(ctx, sync, err)
		return nil, s.fail(ctx, "AddToCart", err)
	}
	return s.cart(sync.Snapshot()), nil
}

// UpdateQuantity меняет количество позиции на Delta, не опуская его ниже 1.
func (s *StorefrontService) UpdateQuantity(ctx context.Context, req *UpdateQuantityRequest) (*Cart, error) {
	if req.Delta > maxQuantityDelta || req.Delta < -maxQuantityDelta {
		err := fmt.Errorf("%w: %d not in [-%d, %d]", domain.ErrQuantityDeltaInvalid, req.Delta, maxQuantityDelta, maxQuantityDelta)
		return nil, s.fail(ctx, "UpdateQuantity", err)
	}

	sync, err := s.session(ctx)
	if err != nil {
		return nil, s.fail(ctx, "UpdateQuantity", err)
	}
	if err := sync.UpdateQuantity(ctx, req.LineID, req.Delta); err != nil {
		s.refreshOnConflict(ctx, sync, err)
		return nil, s.fail(ctx, "UpdateQuantity", err)
	}
	return s.cart(sync.Snapshot()), nil
}

func (s *StorefrontService) RemoveFromCart(ctx context.Context, req *RemoveFromCartRequest) (*Cart, error) {
	sync, err := s.session(ctx)
	if err != nil {
		return nil, s.fail(ctx, "RemoveFromCart", err)
	}
	if err := sync.RemoveLine(ctx, req.LineID); err != nil {
		return nil, s.fail(ctx, "RemoveFromCart", err)
	}
	return s.cart(sync.Snapshot()), nil
}

// SignOut закрывает сессию корзины. Без токена вызов ничего не делает.
func (s *StorefrontService) SignOut(ctx context.Context, _ *Empty) (*Empty, error) {
	identity := auth.IdentityFrom(ctx)
	if err := s.sessions.Release(ctx, identity); err != nil {
		return nil, s.fail(ctx, "SignOut", err)
	}
	return &Empty{}, nil
}

// PlaceOrder оформляет подтверждённое содержимое корзины пользователя.
func (s *StorefrontService) PlaceOrder(ctx context.Context, req *PlaceOrderRequest) (*Order, error) {
	identity, err := requireIdentity(ctx)
	if err != nil {
		return nil, toStatus(err)
	}
	sync, err := s.sessions.Acquire(ctx, identity)
	if err != nil {
		return nil, s.fail(ctx, "PlaceOrder", err)
	}

	snap := sync.Snapshot()
	totals := snap.Totals
	if req.ExpectedSubtotal != nil {
		totals = domain.Totals{Count: req.ExpectedCount, Price: *req.ExpectedSubtotal}
	}

	order, err := s.checkout.PlaceOrder(ctx, snap.Identity, snap.Lines, totals, fromShipping(req.Shipping))
	if err != nil {
		return nil, s.fail(ctx, "PlaceOrder", err)
	}
	out := toOrder(order)
	return &out, nil
}

func (s *StorefrontService) ListOrders(ctx context.Context, req *ListOrdersRequest) (*ListOrdersResponse, error) {
	if _, err := s.requireAdmin(ctx); err != nil {
		return nil, toStatus(err)
	}

	orders, err := s.checkout.ListOrders(ctx, domain.OrderStatus(strings.TrimSpace(req.Status)))
	if err != nil {
		return nil, s.fail(ctx, "ListOrders", err)
	}
	return &ListOrdersResponse{Orders: toOrders(orders)}, nil
}

func (s *StorefrontService) ListMyOrders(ctx context.Context, _ *Empty) (*ListOrdersResponse, error) {
	identity, err := requireIdentity(ctx)
	if err != nil {
		return nil, toStatus(err)
	}

	orders, err := s.checkout.ListMyOrders(ctx, identity)
	if err != nil {
		return nil, s.fail(ctx, "ListMyOrders", err)
	}
	return &ListOrdersResponse{Orders: toOrders(orders)}, nil
}

func (s *StorefrontService) UpdateOrderStatus(ctx context.Context, req *UpdateOrderStatusRequest) (*Order, error) {
	if _, err := s.requireAdmin(ctx); err != nil {
		return nil, toStatus(err)
	}

	order, err := s.checkout.UpdateStatus(ctx, req.OrderID, domain.OrderStatus(strings.TrimSpace(req.Status)))
	if err != nil {
		return nil, s.fail(ctx, "UpdateOrderStatus", err)
	}
	out := toOrder(order)
	return &out, nil
}

func (s *StorefrontService) session(ctx context.Context) (*cart.Synchronizer, error) {
	identity, err := requireIdentity(ctx)
	if err != nil {
		return nil, err
	}
	return s.sessions.Acquire(ctx, identity)
}

// refreshOnConflict перечитывает зеркало, когда ошибка мутации означает
// расхождение с удалённой коллекцией: позицию изменил другой писатель.
// Мутация не повторяется, клиент получает исходную ошибку.
func (s *StorefrontService) refreshOnConflict(ctx context.Context, sync *cart.Synchronizer, err error) {
	if !domain.IsStale(err) && !errors.Is(err, domain.ErrLineAlreadyExists) {
		return
	}
	if rerr := sync.Reload(ctx); rerr != nil {
		s.logger.WithError(rerr).WithField("user", sync.Identity().Key()).Warn("cart refresh failed")
	}
}

func (s *StorefrontService) cart(snap cart.Snapshot) *Cart {
	delivery := s.checkout.DeliveryCharge()
	return &Cart{
		Owner:          snap.Identity.Key(),
		Generation:     snap.Generation,
		Lines:          toCartLines(snap.Lines),
		Count:          snap.Totals.Count,
		Subtotal:       snap.Totals.Price,
		DeliveryCharge: delivery,
		Total:          snap.Totals.Price.Add(delivery),
	}
}

func (s *StorefrontService) requireAdmin(ctx context.Context) (domain.Identity, error) {
	identity, err := requireIdentity(ctx)
	if err != nil {
		return domain.Identity{}, err
	}
	if !s.admins.IsAdmin(identity) {
		return domain.Identity{}, auth.ErrForbidden
	}
	return identity, nil
}

func requireIdentity(ctx context.Context) (domain.Identity, error) {
	identity := auth.IdentityFrom(ctx)
	if identity.IsZero() {
		return domain.Identity{}, domain.ErrNotAuthenticated
	}
	return identity, nil
}

// fail логирует ошибку вызова и возвращает её gRPC status.
func (s *StorefrontService) fail(ctx context.Context, method string, err error) error {
	st := toStatus(err)
	entry := s.logger.WithError(err).WithFields(log.Fields{
		"method": method,
		"user":   auth.IdentityFrom(ctx).Key(),
	})
	if codeOf(err) == codes.Internal || domain.IsRemoteFailure(err) {
		entry.Error("request failed")
	} else {
		entry.Debug("request rejected")
	}
	return st
}

var _ StorefrontServiceServer = (*StorefrontService)(nil)
