package grpcsvc

import (
	"context"

	"google.golang.org/grpc"
)

// ServiceName: полное имя gRPC-сервиса заказов.
const ServiceName = "storefront.v1.OrderService"

const (
	methodPlaceOrder        = "PlaceOrder"
	methodGetOrder          = "GetOrder"
	methodUpdateOrderStatus = "UpdateOrderStatus"
	methodCancelOrder       = "CancelOrder"
	methodListOrders        = "ListOrders"
)

// OrderServiceServer: серверная часть storefront.v1.OrderService.
type OrderServiceServer interface {
	PlaceOrder(context.Context, *PlaceOrderRequest) (*OrderResponse, error)
	GetOrder(context.Context, *GetOrderRequest) (*GetOrderResponse, error)
	UpdateOrderStatus(context.Context, *UpdateOrderStatusRequest) (*OrderResponse, error)
	CancelOrder(context.Context, *CancelOrderRequest) (*OrderResponse, error)
	ListOrders(context.Context, *ListOrdersRequest) (*ListOrdersResponse, error)
}

// OrderServiceDesc описывает сервис без сгенерированного protobuf-кода; сообщения идут через JSON-кодек.
var OrderServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*OrderServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: methodPlaceOrder, Handler: unaryHandler(methodPlaceOrder, OrderServiceServer.PlaceOrder)},
		{MethodName: methodGetOrder, Handler: unaryHandler(methodGetOrder, OrderServiceServer.GetOrder)},
		{MethodName: methodUpdateOrderStatus, Handler: unaryHandler(methodUpdateOrderStatus, OrderServiceServer.UpdateOrderStatus)},
		{MethodName: methodCancelOrder, Handler: unaryHandler(methodCancelOrder, OrderServiceServer.CancelOrder)},
		{MethodName: methodListOrders, Handler: unaryHandler(methodListOrders, OrderServiceServer.ListOrders)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "storefront/v1/order_service.json",
}

// RegisterOrderServiceServer регистрирует реализацию на gRPC-сервере.
func RegisterOrderServiceServer(s grpc.ServiceRegistrar, srv OrderServiceServer) {
	s.RegisterService(&OrderServiceDesc, srv)
}

func fullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

func unaryHandler[Req, Resp any](
	method string,
	call func(OrderServiceServer, context.Context, *Req) (*Resp, error),
) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(OrderServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(method)}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(OrderServiceServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}
