package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/dmitrijs2005/lanpos/internal/checkout"
	"github.com/dmitrijs2005/lanpos/internal/common"
	"github.com/dmitrijs2005/lanpos/internal/coordination/auth"
	"github.com/dmitrijs2005/lanpos/internal/logging"
	"github.com/dmitrijs2005/lanpos/internal/models"
	"github.com/dmitrijs2005/lanpos/internal/register"
	"github.com/dmitrijs2005/lanpos/internal/syncqueue"
	"github.com/shopspring/decimal"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/emptypb"
)

const (
	DefaultTimeout = 30 * time.Second
	maxCached      = 256
)

type BridgeConfig struct {
	// Address is host:port of the server register.
	Address     string
	Timeout     time.Duration
	Credentials credentials.TransportCredentials
	DialOptions []grpc.DialOption
}

// Bridge forwards register operations to a server register.
//
// When the server cannot be reached the bridge is degraded: reads return
// the last result seen for the same request together with an error
// matching common.ErrDegraded, writes fail with common.ErrDegraded and are
// not applied anywhere. The first successful call clears the state.
type Bridge struct {
	address string
	conn    *grpc.ClientConn
	signer  *auth.Signer
	timeout time.Duration
	logger  logging.Logger

	mu         sync.Mutex
	degraded   bool
	cache      map[string][]byte
	onDegraded func(bool)
}

var _ register.Operations = (*Bridge)(nil)

type BridgeOption func(*Bridge)

// WithDegradedHook is called on every change of the degraded state.
func WithDegradedHook(fn func(degraded bool)) BridgeOption {
	return func(b *Bridge) { b.onDegraded = fn }
}

func NewBridge(cfg BridgeConfig, signer *auth.Signer, l logging.Logger, opts ...BridgeOption) (*Bridge, error) {
	if cfg.Credentials == nil {
		return nil, &common.ConfigurationError{Reason: "no transport credentials"}
	}
	b := &Bridge{
		address: cfg.Address,
		signer:  signer,
		timeout: cfg.Timeout,
		logger:  l.With("module", "coordination_bridge"),
		cache:   make(map[string][]byte),
	}
	if b.timeout <= 0 {
		b.timeout = DefaultTimeout
	}
	for _, o := range opts {
		o(b)
	}

	dialOpts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(cfg.Credentials),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(CodecName)),
		grpc.WithUnaryInterceptor(b.tokenInterceptor),
	}, cfg.DialOptions...)

	conn, err := grpc.NewClient(cfg.Address, dialOpts...)
	if err != nil {
		return nil, err
	}
	b.conn = conn
	return b, nil
}

func (b *Bridge) Close() error {
	return b.conn.Close()
}

func (b *Bridge) Degraded() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.degraded
}

// tokenInterceptor signs every call with a fresh token.
func (b *Bridge) tokenInterceptor(ctx context.Context, method string, req, reply any,
	cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {

	token, err := b.signer.Token()
	if err != nil {
		return err
	}
	ctx = metadata.AppendToOutgoingContext(ctx, common.AuthTokenHeaderName, token)
	return invoker(ctx, method, req, reply, cc, opts...)
}

// TestConnection checks reachability, protocol version and the shared
// secret without touching any register state.
func (b *Bridge) TestConnection(ctx context.Context) (*models.RegisterPeer, error) {
	hs := &HandshakeResponse{}
	if err := b.call(ctx, methodHandshake, &emptypb.Empty{}, hs); err != nil {
		return nil, err
	}
	if hs.ProtocolVersion != common.ProtocolVersion {
		return nil, &common.ConfigurationError{
			Reason: fmt.Sprintf("server speaks protocol %d, this register %d", hs.ProtocolVersion, common.ProtocolVersion),
		}
	}
	if err := b.call(ctx, methodPing, &emptypb.Empty{}, &emptypb.Empty{}); err != nil {
		return nil, err
	}
	peer := &models.RegisterPeer{
		Address:         b.address,
		Name:            hs.RegisterName,
		RegisterID:      hs.RegisterID,
		ProtocolVersion: hs.ProtocolVersion,
	}
	if host, port, err := net.SplitHostPort(b.address); err == nil {
		if p, err := strconv.Atoi(port); err == nil {
			peer.Address, peer.Port = host, p
		}
	}
	return peer, nil
}

func (b *Bridge) call(ctx context.Context, method string, req, resp any) error {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	err := mapError(b.conn.Invoke(ctx, fullMethod(method), req, resp))
	switch {
	case err == nil:
		b.setDegraded(ctx, false)
	case transportFailure(err):
		b.setDegraded(ctx, true)
	case errors.Is(err, context.Canceled):
	default:
		// the server answered
		b.setDegraded(ctx, false)
	}
	return err
}

func (b *Bridge) setDegraded(ctx context.Context, v bool) {
	b.mu.Lock()
	changed := b.degraded != v
	b.degraded = v
	hook := b.onDegraded
	b.mu.Unlock()

	if !changed {
		return
	}
	if v {
		b.logger.Warn(ctx, "server unreachable, bridge degraded", "address", b.address)
	} else {
		b.logger.Info(ctx, "server reachable again", "address", b.address)
	}
	if hook != nil {
		hook(v)
	}
}

func (b *Bridge) read(ctx context.Context, method string, req, resp any) error {
	err := b.call(ctx, method, req, resp)
	if err == nil {
		b.remember(method, req, resp)
		return nil
	}
	if !transportFailure(err) {
		return err
	}
	if b.recall(method, req, resp) {
		return fmt.Errorf("%w: cached result: %w", common.ErrDegraded, err)
	}
	return fmt.Errorf("%w: %w", common.ErrDegraded, err)
}

func (b *Bridge) write(ctx context.Context, method string, req, resp any) error {
	err := b.call(ctx, method, req, resp)
	if err != nil && transportFailure(err) {
		return fmt.Errorf("%w: not applied: %w", common.ErrDegraded, err)
	}
	return err
}

func cacheKey(method string, req any) (string, bool) {
	raw, err := json.Marshal(req)
	if err != nil {
		return "", false
	}
	return method + " " + string(raw), true
}

func (b *Bridge) remember(method string, req, resp any) {
	key, ok := cacheKey(method, req)
	if !ok {
		return
	}
	raw, err := json.Marshal(resp)
	if err != nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, exists := b.cache[key]; !exists && len(b.cache) >= maxCached {
		for k := range b.cache {
			delete(b.cache, k)
			break
		}
	}
	b.cache[key] = raw
}

func (b *Bridge) recall(method string, req, resp any) bool {
	key, ok := cacheKey(method, req)
	if !ok {
		return false
	}
	b.mu.Lock()
	raw, ok := b.cache[key]
	b.mu.Unlock()
	return ok && json.Unmarshal(raw, resp) == nil
}

func (b *Bridge) GetBasket(ctx context.Context, sess models.Session) (*models.Basket, error) {
	resp := &BasketResponse{}
	err := b.read(ctx, methodGetBasket, &BasketRequest{Session: sess}, resp)
	return resp.Basket, err
}

// basketWrite also refreshes the cached GetBasket result for the session.
func (b *Bridge) basketWrite(ctx context.Context, method string, req *BasketRequest) (*models.Basket, error) {
	resp := &BasketResponse{}
	if err := b.write(ctx, method, req, resp); err != nil {
		return nil, err
	}
	b.remember(methodGetBasket, &BasketRequest{Session: req.Session}, resp)
	return resp.Basket, nil
}

func (b *Bridge) AddItem(ctx context.Context, sess models.Session, li models.LineItem) (*models.Basket, error) {
	return b.basketWrite(ctx, methodAddItem, &BasketRequest{Session: sess, Item: &li})
}

func (b *Bridge) UpdateQuantity(ctx context.Context, sess models.Session, productID string, qty int) (*models.Basket, error) {
	return b.basketWrite(ctx, methodUpdateQuantity, &BasketRequest{Session: sess, ProductID: productID, Quantity: qty})
}

func (b *Bridge) RemoveItem(ctx context.Context, sess models.Session, productID string) (*models.Basket, error) {
	return b.basketWrite(ctx, methodRemoveItem, &BasketRequest{Session: sess, ProductID: productID})
}

func (b *Bridge) SetCustomer(ctx context.Context, sess models.Session, customerRef string) (*models.Basket, error) {
	return b.basketWrite(ctx, methodSetCustomer, &BasketRequest{Session: sess, CustomerRef: customerRef})
}

func (b *Bridge) ApplyDiscount(ctx context.Context, sess models.Session, code string, amount decimal.Decimal) (*models.Basket, error) {
	return b.basketWrite(ctx, methodApplyDiscount, &BasketRequest{Session: sess, DiscountCode: code, Amount: amount})
}

func (b *Bridge) SetNote(ctx context.Context, sess models.Session, note string) (*models.Basket, error) {
	return b.basketWrite(ctx, methodSetNote, &BasketRequest{Session: sess, Note: note})
}

func (b *Bridge) ClearBasket(ctx context.Context, sess models.Session) error {
	req := &BasketRequest{Session: sess}
	if err := b.write(ctx, methodClearBasket, req, &emptypb.Empty{}); err != nil {
		return err
	}
	b.remember(methodGetBasket, req, &BasketResponse{Basket: models.NewBasket(sess)})
	return nil
}

func (b *Bridge) Checkout(ctx context.Context, sess models.Session, method string, tendered decimal.Decimal) (*checkout.Outcome, error) {
	out := &checkout.Outcome{}
	if err := b.write(ctx, methodCheckout, &CheckoutRequest{Session: sess, Method: method, Tendered: tendered}, out); err != nil {
		return nil, err
	}
	b.remember(methodGetBasket, &BasketRequest{Session: sess}, &BasketResponse{Basket: models.NewBasket(sess)})
	return out, nil
}

func (b *Bridge) RetryPayment(ctx context.Context, orderID, method string, tendered decimal.Decimal) (*checkout.Outcome, error) {
	out := &checkout.Outcome{}
	if err := b.write(ctx, methodRetryPayment, &CheckoutRequest{OrderID: orderID, Method: method, Tendered: tendered}, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (b *Bridge) CancelOrder(ctx context.Context, orderID string) (*models.Order, error) {
	resp := &OrderResponse{}
	if err := b.write(ctx, methodCancelOrder, &OrderRequest{OrderID: orderID}, resp); err != nil {
		return nil, err
	}
	return resp.Order, nil
}

func (b *Bridge) GetOrder(ctx context.Context, orderID string) (*models.Order, error) {
	resp := &OrderResponse{}
	err := b.read(ctx, methodGetOrder, &OrderRequest{OrderID: orderID}, resp)
	return resp.Order, err
}

func (b *Bridge) FindOrders(ctx context.Context, from, to time.Time, userID string) ([]*models.Order, error) {
	resp := &OrdersResponse{}
	err := b.read(ctx, methodFindOrders, &FindOrdersRequest{From: from, To: to, UserID: userID}, resp)
	return resp.Orders, err
}

func (b *Bridge) SyncOne(ctx context.Context, orderID string) (syncqueue.Result, error) {
	resp := &SyncOneResponse{}
	if err := b.write(ctx, methodSyncOne, &OrderRequest{OrderID: orderID}, resp); err != nil {
		return syncqueue.Result{OrderID: orderID}, err
	}
	res := resp.Result
	res.Err = rebuild(resp.ErrReason, resp.ErrKind, resp.Err)
	return res, nil
}

func (b *Bridge) SyncAll(ctx context.Context) (syncqueue.Summary, error) {
	sum := syncqueue.Summary{}
	err := b.write(ctx, methodSyncAll, &emptypb.Empty{}, &sum)
	return sum, err
}

func (b *Bridge) ResetRetries(ctx context.Context, orderID string) (*models.Order, error) {
	resp := &OrderResponse{}
	if err := b.write(ctx, methodResetRetries, &OrderRequest{OrderID: orderID}, resp); err != nil {
		return nil, err
	}
	return resp.Order, nil
}

func (b *Bridge) PendingCount(ctx context.Context) (int, error) {
	resp := &CountResponse{}
	err := b.read(ctx, methodPendingCount, &emptypb.Empty{}, resp)
	return resp.Count, err
}

func (b *Bridge) Failures(ctx context.Context) ([]*models.Order, error) {
	resp := &OrdersResponse{}
	err := b.read(ctx, methodFailures, &emptypb.Empty{}, resp)
	return resp.Orders, err
}
