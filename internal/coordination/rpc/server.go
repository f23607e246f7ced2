package rpc

import (
	"context"
	"errors"
	"net"

	"github.com/dmitrijs2005/lanpos/internal/checkout"
	"github.com/dmitrijs2005/lanpos/internal/common"
	"github.com/dmitrijs2005/lanpos/internal/coordination/auth"
	"github.com/dmitrijs2005/lanpos/internal/logging"
	"github.com/dmitrijs2005/lanpos/internal/models"
	"github.com/dmitrijs2005/lanpos/internal/register"
	"github.com/dmitrijs2005/lanpos/internal/syncqueue"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
)

type ctxKey string

const callerKey ctxKey = "caller"

// CallerFromContext returns the authenticated peer register of a call.
func CallerFromContext(ctx context.Context) (*auth.Claims, bool) {
	c, ok := ctx.Value(callerKey).(*auth.Claims)
	return c, ok
}

// Identity is what this register advertises in a handshake.
type Identity struct {
	RegisterName string
	RegisterID   string
}

// Server answers peer registers from this register's local operations.
// Concurrent calls are fine: the store serializes per order.
type Server struct {
	ops      register.Operations
	verifier *auth.Verifier
	identity Identity
	logger   logging.Logger
	grpc     *grpc.Server
}

func NewServer(ops register.Operations, verifier *auth.Verifier, id Identity, l logging.Logger, opts ...grpc.ServerOption) *Server {
	s := &Server{
		ops:      ops,
		verifier: verifier,
		identity: id,
		logger:   l.With("module", "coordination_server"),
	}
	opts = append(opts, grpc.ChainUnaryInterceptor(s.authInterceptor, s.errorInterceptor))
	s.grpc = grpc.NewServer(opts...)
	s.grpc.RegisterService(&serviceDesc, s)
	return s
}

// Serve blocks until lis fails or Stop is called.
func (s *Server) Serve(lis net.Listener) error {
	s.logger.Info(context.Background(), "Starting coordination server", "address", lis.Addr().String())
	if err := s.grpc.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return err
	}
	return nil
}

// Run listens on address until ctx is done.
func (s *Server) Run(ctx context.Context, address string) error {
	lis, err := net.Listen("tcp", address)
	if err != nil {
		return err
	}

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	return s.Serve(lis)
}

func (s *Server) Stop() {
	s.logger.Info(context.Background(), "Stopping coordination server...")
	s.grpc.GracefulStop()
}

func (s *Server) authInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	if info.FullMethod == fullMethod(methodHandshake) {
		return handler(ctx, req)
	}

	var token string
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if values := md.Get(common.AuthTokenHeaderName); len(values) > 0 {
			token = values[0]
		}
	}
	if token == "" {
		return nil, status.Error(codes.Unauthenticated, "missing token")
	}

	claims, err := s.verifier.Verify(token)
	if err != nil {
		s.logger.Warn(ctx, "rejected peer request", "method", info.FullMethod, "error", err)
		return nil, toStatus(err)
	}

	return handler(context.WithValue(ctx, callerKey, claims), req)
}

func (s *Server) errorInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	resp, err := handler(ctx, req)
	if err != nil {
		st := toStatus(err)
		if status.Code(st) == codes.Internal {
			s.logger.Error(ctx, "peer request failed", "method", info.FullMethod, "error", err)
		}
		return nil, st
	}
	return resp, nil
}

func (s *Server) Handshake(ctx context.Context, _ *emptypb.Empty) (*HandshakeResponse, error) {
	return &HandshakeResponse{
		RegisterName:    s.identity.RegisterName,
		RegisterID:      s.identity.RegisterID,
		ProtocolVersion: common.ProtocolVersion,
	}, nil
}

func (s *Server) ping(ctx context.Context, _ *emptypb.Empty) (*emptypb.Empty, error) {
	if c, ok := CallerFromContext(ctx); ok {
		s.logger.Info(ctx, "peer connected", "register_id", c.RegisterID, "register_name", c.RegisterName)
	}
	return &emptypb.Empty{}, nil
}

func (s *Server) getBasket(ctx context.Context, req *BasketRequest) (*BasketResponse, error) {
	return basketResult(s.ops.GetBasket(ctx, req.Session))
}

func (s *Server) addItem(ctx context.Context, req *BasketRequest) (*BasketResponse, error) {
	if req.Item == nil {
		return nil, common.NewValidationError("item", "is required")
	}
	return basketResult(s.ops.AddItem(ctx, req.Session, *req.Item))
}

func (s *Server) updateQuantity(ctx context.Context, req *BasketRequest) (*BasketResponse, error) {
	return basketResult(s.ops.UpdateQuantity(ctx, req.Session, req.ProductID, req.Quantity))
}

func (s *Server) removeItem(ctx context.Context, req *BasketRequest) (*BasketResponse, error) {
	return basketResult(s.ops.RemoveItem(ctx, req.Session, req.ProductID))
}

func (s *Server) setCustomer(ctx context.Context, req *BasketRequest) (*BasketResponse, error) {
	return basketResult(s.ops.SetCustomer(ctx, req.Session, req.CustomerRef))
}

func (s *Server) applyDiscount(ctx context.Context, req *BasketRequest) (*BasketResponse, error) {
	return basketResult(s.ops.ApplyDiscount(ctx, req.Session, req.DiscountCode, req.Amount))
}

func (s *Server) setNote(ctx context.Context, req *BasketRequest) (*BasketResponse, error) {
	return basketResult(s.ops.SetNote(ctx, req.Session, req.Note))
}

func (s *Server) clearBasket(ctx context.Context, req *BasketRequest) (*emptypb.Empty, error) {
	if err := s.ops.ClearBasket(ctx, req.Session); err != nil {
		return nil, err
	}
	return &emptypb.Empty{}, nil
}

func (s *Server) checkout(ctx context.Context, req *CheckoutRequest) (*checkout.Outcome, error) {
	return s.ops.Checkout(ctx, req.Session, req.Method, req.Tendered)
}

func (s *Server) retryPayment(ctx context.Context, req *CheckoutRequest) (*checkout.Outcome, error) {
	return s.ops.RetryPayment(ctx, req.OrderID, req.Method, req.Tendered)
}

func (s *Server) cancelOrder(ctx context.Context, req *OrderRequest) (*OrderResponse, error) {
	o, err := s.ops.CancelOrder(ctx, req.OrderID)
	if err != nil {
		return nil, err
	}
	return &OrderResponse{Order: o}, nil
}

func (s *Server) getOrder(ctx context.Context, req *OrderRequest) (*OrderResponse, error) {
	o, err := s.ops.GetOrder(ctx, req.OrderID)
	if err != nil {
		return nil, err
	}
	return &OrderResponse{Order: o}, nil
}

func (s *Server) findOrders(ctx context.Context, req *FindOrdersRequest) (*OrdersResponse, error) {
	orders, err := s.ops.FindOrders(ctx, req.From, req.To, req.UserID)
	if err != nil {
		return nil, err
	}
	return &OrdersResponse{Orders: orders}, nil
}

func (s *Server) syncOne(ctx context.Context, req *OrderRequest) (*SyncOneResponse, error) {
	res, err := s.ops.SyncOne(ctx, req.OrderID)
	if err != nil {
		return nil, err
	}
	resp := &SyncOneResponse{Result: res}
	resp.ErrReason, resp.ErrKind, resp.Err = flatten(res.Err)
	return resp, nil
}

func (s *Server) syncAll(ctx context.Context, _ *emptypb.Empty) (*syncqueue.Summary, error) {
	sum, err := s.ops.SyncAll(ctx)
	if err != nil {
		return nil, err
	}
	return &sum, nil
}

func (s *Server) resetRetries(ctx context.Context, req *OrderRequest) (*OrderResponse, error) {
	o, err := s.ops.ResetRetries(ctx, req.OrderID)
	if err != nil {
		return nil, err
	}
	return &OrderResponse{Order: o}, nil
}

func (s *Server) pendingCount(ctx context.Context, _ *emptypb.Empty) (*CountResponse, error) {
	n, err := s.ops.PendingCount(ctx)
	if err != nil {
		return nil, err
	}
	return &CountResponse{Count: n}, nil
}

func (s *Server) failures(ctx context.Context, _ *emptypb.Empty) (*OrdersResponse, error) {
	orders, err := s.ops.Failures(ctx)
	if err != nil {
		return nil, err
	}
	return &OrdersResponse{Orders: orders}, nil
}

func basketResult(b *models.Basket, err error) (*BasketResponse, error) {
	if err != nil {
		return nil, err
	}
	return &BasketResponse{Basket: b}, nil
}
