// Package models holds the register's domain types: orders and their state
// machine, baskets, shifts, coordination settings, peers and reports.
package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/lanpos/internal/common"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// LineItem is one product line. UnitPrice is tax inclusive; TaxRate is a
// fraction (0.21 for 21%) and zero when the product is untaxed.
type LineItem struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name,omitempty"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	TaxRate   decimal.Decimal `json:"tax_rate"`
}

// Subtotal is UnitPrice x Quantity.
func (li LineItem) Subtotal() decimal.Decimal {
	return li.UnitPrice.Mul(decimal.NewFromInt(int64(li.Quantity)))
}

// Tax is the tax contained in the line subtotal, rounded to cents.
func (li LineItem) Tax() decimal.Decimal {
	if !li.TaxRate.IsPositive() {
		return decimal.Zero
	}
	sub := li.Subtotal()
	net := sub.Div(decimal.NewFromInt(1).Add(li.TaxRate))
	return sub.Sub(net).Round(2)
}

// Validate checks a single line.
func (li LineItem) Validate() error {
	switch {
	case strings.TrimSpace(li.ProductID) == "":
		return common.NewValidationError("product_id", "is required")
	case li.Quantity <= 0:
		return common.NewValidationError("quantity", "must be positive")
	case li.UnitPrice.IsNegative():
		return common.NewValidationError("unit_price", "must not be negative")
	case li.TaxRate.IsNegative():
		return common.NewValidationError("tax_rate", "must not be negative")
	}
	return nil
}

// SyncMeta is what the sync engine records on an order.
type SyncMeta struct {
	RemoteID      string    `json:"remote_id,omitempty"`
	LastError     string    `json:"last_error,omitempty"`
	ErrorKind     string    `json:"error_kind,omitempty"`
	RetryCount    int       `json:"retry_count"`
	NextAttemptAt time.Time `json:"next_attempt_at,omitempty"`
	SyncedAt      time.Time `json:"synced_at,omitempty"`
}

// Order is an immutable-content snapshot of a basket taken at checkout.
// Only Status, payment and sync fields change afterwards.
type Order struct {
	ID            string          `json:"id"`
	RegisterID    string          `json:"register_id"`
	SessionID     string          `json:"session_id,omitempty"`
	Items         []LineItem      `json:"items"`
	CustomerRef   string          `json:"customer_ref,omitempty"`
	DiscountCode  string          `json:"discount_code,omitempty"`
	Discount      decimal.Decimal `json:"discount"`
	Note          string          `json:"note,omitempty"`
	CashierID     string          `json:"cashier_id"`
	CashierName   string          `json:"cashier_name,omitempty"`
	Status        Status          `json:"status"`
	PaymentMethod string          `json:"payment_method,omitempty"`
	PaymentRef    string          `json:"payment_ref,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
	Sync          SyncMeta        `json:"sync"`
}

// Subtotal is the sum of line subtotals.
func (o *Order) Subtotal() decimal.Decimal {
	return sumItems(o.Items)
}

// Total is Subtotal minus Discount. It is always derived, never cached.
func (o *Order) Total() decimal.Decimal {
	return o.Subtotal().Sub(o.Discount)
}

// Tax is the tax contained in the order's lines.
func (o *Order) Tax() decimal.Decimal {
	t := decimal.Zero
	for _, li := range o.Items {
		t = t.Add(li.Tax())
	}
	return t
}

// Clone returns a deep copy so callers can mutate without aliasing items.
func (o *Order) Clone() *Order {
	c := *o
	c.Items = append([]LineItem(nil), o.Items...)
	return &c
}

func (o *Order) String() string {
	return fmt.Sprintf("order %s [%s] total=%s", o.ID, o.Status, o.Total().StringFixed(2))
}

func sumItems(items []LineItem) decimal.Decimal {
	s := decimal.Zero
	for _, li := range items {
		s = s.Add(li.Subtotal())
	}
	return s
}

// Cents formats an amount with two decimals.
func Cents(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// FromCents builds an amount from an integer number of cents.
func FromCents(c int64) decimal.Decimal {
	return decimal.NewFromInt(c).Div(hundred)
}
