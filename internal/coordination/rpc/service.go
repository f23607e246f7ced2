// Package rpc carries register operations between registers over gRPC.
//
// Messages are the register's own JSON-tagged types sent with a JSON codec
// under a hand-written service descriptor, so there is no generated code.
// Every method except Handshake requires a token signed with the key
// derived from the shared secret.
package rpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
)

const ServiceName = "pos.coordination.v1.RegisterCoordination"

const (
	methodHandshake      = "Handshake"
	methodPing           = "Ping"
	methodGetBasket      = "GetBasket"
	methodAddItem        = "AddItem"
	methodUpdateQuantity = "UpdateQuantity"
	methodRemoveItem     = "RemoveItem"
	methodSetCustomer    = "SetCustomer"
	methodApplyDiscount  = "ApplyDiscount"
	methodSetNote        = "SetNote"
	methodClearBasket    = "ClearBasket"
	methodCheckout       = "Checkout"
	methodRetryPayment   = "RetryPayment"
	methodCancelOrder    = "CancelOrder"
	methodGetOrder       = "GetOrder"
	methodFindOrders     = "FindOrders"
	methodSyncOne        = "SyncOne"
	methodSyncAll        = "SyncAll"
	methodResetRetries   = "ResetRetries"
	methodPendingCount   = "PendingCount"
	methodFailures       = "Failures"
)

func fullMethod(name string) string { return "/" + ServiceName + "/" + name }

// handshaker is the handler type the descriptor is registered against.
type handshaker interface {
	Handshake(ctx context.Context, _ *emptypb.Empty) (*HandshakeResponse, error)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*handshaker)(nil),
	Methods: []grpc.MethodDesc{
		unary(methodHandshake, (*Server).Handshake),
		unary(methodPing, (*Server).ping),
		unary(methodGetBasket, (*Server).getBasket),
		unary(methodAddItem, (*Server).addItem),
		unary(methodUpdateQuantity, (*Server).updateQuantity),
		unary(methodRemoveItem, (*Server).removeItem),
		unary(methodSetCustomer, (*Server).setCustomer),
		unary(methodApplyDiscount, (*Server).applyDiscount),
		unary(methodSetNote, (*Server).setNote),
		unary(methodClearBasket, (*Server).clearBasket),
		unary(methodCheckout, (*Server).checkout),
		unary(methodRetryPayment, (*Server).retryPayment),
		unary(methodCancelOrder, (*Server).cancelOrder),
		unary(methodGetOrder, (*Server).getOrder),
		unary(methodFindOrders, (*Server).findOrders),
		unary(methodSyncOne, (*Server).syncOne),
		unary(methodSyncAll, (*Server).syncAll),
		unary(methodResetRetries, (*Server).resetRetries),
		unary(methodPendingCount, (*Server).pendingCount),
		unary(methodFailures, (*Server).failures),
	},
	Metadata: "lanpos/coordination.json",
}

// unary adapts a typed server method to grpc.MethodDesc.
func unary[Req, Resp any](name string, call func(*Server, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			s := srv.(*Server)
			if interceptor == nil {
				return call(s, ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(name)}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(s, ctx, req.(*Req))
			})
		},
	}
}

// Handshake is the unauthenticated discovery probe.
func Handshake(ctx context.Context, cc grpc.ClientConnInterface) (*HandshakeResponse, error) {
	resp := &HandshakeResponse{}
	if err := cc.Invoke(ctx, fullMethod(methodHandshake), &emptypb.Empty{}, resp, grpc.CallContentSubtype(CodecName)); err != nil {
		return nil, mapError(err)
	}
	return resp, nil
}
