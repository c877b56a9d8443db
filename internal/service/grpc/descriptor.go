package grpcsvc

import (
	"context"

	"google.golang.org/grpc"
)

// ServiceName: полное имя gRPC-сервиса витрины.
const ServiceName = "storefront.v1.StorefrontService"

// StorefrontServiceServer: серверная сторона API витрины.
type StorefrontServiceServer interface {
	ListProducts(context.Context, *ListProductsRequest) (*ListProductsResponse, error)
	GetProduct(context.Context, *ProductRequest) (*Product, error)
	CreateProduct(context.Context, *Product) (*Product, error)
	UpdateProduct(context.Context, *Product) (*Product, error)
	DeleteProduct(context.Context, *ProductRequest) (*Empty, error)

	GetCart(context.Context, *Empty) (*Cart, error)
	AddToCart(context.Context, *AddToCartRequest) (*Cart, error)
	UpdateQuantity(context.Context, *UpdateQuantityRequest) (*Cart, error)
	RemoveFromCart(context.Context, *RemoveFromCartRequest) (*Cart, error)
	SignOut(context.Context, *Empty) (*Empty, error)

	PlaceOrder(context.Context, *PlaceOrderRequest) (*Order, error)
	ListOrders(context.Context, *ListOrdersRequest) (*ListOrdersResponse, error)
	ListMyOrders(context.Context, *Empty) (*ListOrdersResponse, error)
	UpdateOrderStatus(context.Context, *UpdateOrderStatusRequest) (*Order, error)
}

// FullMethod возвращает полное имя метода для interceptors и Invoke.
func FullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

// ServiceDesc описывает сервис для grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*StorefrontServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("ListProducts", StorefrontServiceServer.ListProducts),
		unary("GetProduct", StorefrontServiceServer.GetProduct),
		unary("CreateProduct", StorefrontServiceServer.CreateProduct),
		unary("UpdateProduct", StorefrontServiceServer.UpdateProduct),
		unary("DeleteProduct", StorefrontServiceServer.DeleteProduct),
		unary("GetCart", StorefrontServiceServer.GetCart),
		unary("AddToCart", StorefrontServiceServer.AddToCart),
		unary("UpdateQuantity", StorefrontServiceServer.UpdateQuantity),
		unary("RemoveFromCart", StorefrontServiceServer.RemoveFromCart),
		unary("SignOut", StorefrontServiceServer.SignOut),
		unary("PlaceOrder", StorefrontServiceServer.PlaceOrder),
		unary("ListOrders", StorefrontServiceServer.ListOrders),
		unary("ListMyOrders", StorefrontServiceServer.ListMyOrders),
		unary("UpdateOrderStatus", StorefrontServiceServer.UpdateOrderStatus),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "storefront/v1/storefront.json",
}

// RegisterStorefrontServiceServer регистрирует реализацию на сервере.
func RegisterStorefrontServiceServer(registrar grpc.ServiceRegistrar, srv StorefrontServiceServer) {
	registrar.RegisterService(&ServiceDesc, srv)
}

func unary[Req, Resp any](name string, call func(StorefrontServiceServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			server := srv.(StorefrontServiceServer)
			if interceptor == nil {
				return call(server, ctx, in)
			}

			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethod(name)}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(server, ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}
