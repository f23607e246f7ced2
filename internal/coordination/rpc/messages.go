package rpc

import (
	"time"

	"github.com/dmitrijs2005/lanpos/internal/models"
	"github.com/dmitrijs2005/lanpos/internal/syncqueue"
	"github.com/shopspring/decimal"
)

// HandshakeResponse is all an unauthenticated caller learns about a server.
type HandshakeResponse struct {
	RegisterName    string `json:"register_name"`
	RegisterID      string `json:"register_id"`
	ProtocolVersion int    `json:"protocol_version"`
}

// BasketRequest covers every basket call; each reads the fields it needs.
type BasketRequest struct {
	Session      models.Session   `json:"session"`
	Item         *models.LineItem `json:"item,omitempty"`
	ProductID    string           `json:"product_id,omitempty"`
	Quantity     int              `json:"quantity,omitempty"`
	CustomerRef  string           `json:"customer_ref,omitempty"`
	DiscountCode string           `json:"discount_code,omitempty"`
	Amount       decimal.Decimal  `json:"amount"`
	Note         string           `json:"note,omitempty"`
}

type BasketResponse struct {
	Basket *models.Basket `json:"basket"`
}

type CheckoutRequest struct {
	Session  models.Session  `json:"session"`
	OrderID  string          `json:"order_id,omitempty"`
	Method   string          `json:"method"`
	Tendered decimal.Decimal `json:"tendered"`
}

type OrderRequest struct {
	OrderID string `json:"order_id"`
}

type OrderResponse struct {
	Order *models.Order `json:"order"`
}

type FindOrdersRequest struct {
	From   time.Time `json:"from"`
	To     time.Time `json:"to"`
	UserID string    `json:"user_id,omitempty"`
}

type OrdersResponse struct {
	Orders []*models.Order `json:"orders"`
}

// SyncOneResponse carries the Result with its error flattened; the client
// rebuilds an error matching the same sentinels.
type SyncOneResponse struct {
	Result    syncqueue.Result `json:"result"`
	ErrReason string           `json:"err_reason,omitempty"`
	ErrKind   string           `json:"err_kind,omitempty"`
	Err       string           `json:"err,omitempty"`
}

type CountResponse struct {
	Count int `json:"count"`
}
