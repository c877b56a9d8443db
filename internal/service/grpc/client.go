package grpcsvc

import (
	"context"

	"google.golang.org/grpc"
)

// StorefrontClient: клиентская заглушка API витрины поверх JSON-кодека.
type StorefrontClient struct {
	cc grpc.ClientConnInterface
}

// NewStorefrontClient создаёт клиента поверх соединения.
func NewStorefrontClient(cc grpc.ClientConnInterface) *StorefrontClient {
	return &StorefrontClient{cc: cc}
}

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, in any, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := cc.Invoke(ctx, FullMethod(method), in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *StorefrontClient) ListProducts(ctx context.Context, in *ListProductsRequest, opts ...grpc.CallOption) (*ListProductsResponse, error) {
	return invoke[ListProductsResponse](ctx, c.cc, "ListProducts", in, opts)
}

func (c *StorefrontClient) GetProduct(ctx context.Context, in *ProductRequest, opts ...grpc.CallOption) (*Product, error) {
	return invoke[Product](ctx, c.cc, "GetProduct", in, opts)
}

func (c *StorefrontClient) CreateProduct(ctx context.Context, in *Product, opts ...grpc.CallOption) (*Product, error) {
	return invoke[Product](ctx, c.cc, "CreateProduct", in, opts)
}

func (c *StorefrontClient) UpdateProduct(ctx context.Context, in *Product, opts ...grpc.CallOption) (*Product, error) {
	return invoke[Product](ctx, c.cc, "UpdateProduct", in, opts)
}

func (c *StorefrontClient) DeleteProduct(ctx context.Context, in *ProductRequest, opts ...grpc.CallOption) (*Empty, error) {
	return invoke[Empty](ctx, c.cc, "DeleteProduct", in, opts)
}

func (c *StorefrontClient) GetCart(ctx context.Context, opts ...grpc.CallOption) (*Cart, error) {
	return invoke[Cart](ctx, c.cc, "GetCart", &Empty{}, opts)
}

func (c *StorefrontClient) AddToCart(ctx context.Context, in *AddToCartRequest, opts ...grpc.CallOption) (*Cart, error) {
	return invoke[Cart](ctx, c.cc, "AddToCart", in, opts)
}

func (c *StorefrontClient) UpdateQuantity(ctx context.Context, in *UpdateQuantityRequest, opts ...grpc.CallOption) (*Cart, error) {
	return invoke[Cart](ctx, c.cc, "UpdateQuantity", in, opts)
}

func (c *StorefrontClient) RemoveFromCart(ctx context.Context, in *RemoveFromCartRequest, opts ...grpc.CallOption) (*Cart, error) {
	return invoke[Cart](ctx, c.cc, "RemoveFromCart", in, opts)
}

func (c *StorefrontClient) SignOut(ctx context.Context, opts ...grpc.CallOption) (*Empty, error) {
	return invoke[Empty](ctx, c.cc, "SignOut", &Empty{}, opts)
}

func (c *StorefrontClient) PlaceOrder(ctx context.Context, in *PlaceOrderRequest, opts ...grpc.CallOption) (*Order, error) {
	return invoke[Order](ctx, c.cc, "PlaceOrder", in, opts)
}

func (c *StorefrontClient) ListOrders(ctx context.Context, in *ListOrdersRequest, opts ...grpc.CallOption) (*ListOrdersResponse, error) {
	return invoke[ListOrdersResponse](ctx, c.cc, "ListOrders", in, opts)
}

func (c *StorefrontClient) ListMyOrders(ctx context.Context, opts ...grpc.CallOption) (*ListOrdersResponse, error) {
	return invoke[ListOrdersResponse](ctx, c.cc, "ListMyOrders", &Empty{}, opts)
}

func (c *StorefrontClient) UpdateOrderStatus(ctx context.Context, in *UpdateOrderStatusRequest, opts ...grpc.CallOption) (*Order, error) {
	return invoke[Order](ctx, c.cc, "UpdateOrderStatus", in, opts)
}
