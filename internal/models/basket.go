package models

import (
	"time"

	"github.com/dmitrijs2005/lanpos/internal/common"
	"github.com/shopspring/decimal"
)

// Session identifies the signed-in cashier on a register.
type Session struct {
	ID       string `json:"id"`
	UserID   string `json:"user_id"`
	UserName string `json:"user_name,omitempty"`
}

// Basket is the single mutable pre-checkout order of a session.
type Basket struct {
	SessionID    string          `json:"session_id"`
	CashierID    string          `json:"cashier_id"`
	CashierName  string          `json:"cashier_name,omitempty"`
	Items        []LineItem      `json:"items"`
	CustomerRef  string          `json:"customer_ref,omitempty"`
	DiscountCode string          `json:"discount_code,omitempty"`
	Discount     decimal.Decimal `json:"discount"`
	Note         string          `json:"note,omitempty"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// NewBasket returns an empty basket bound to s.
func NewBasket(s Session) *Basket {
	return &Basket{SessionID: s.ID, CashierID: s.UserID, CashierName: s.UserName}
}

func (b *Basket) Subtotal() decimal.Decimal { return sumItems(b.Items) }

func (b *Basket) Total() decimal.Decimal { return b.Subtotal().Sub(b.Discount) }

func (b *Basket) Empty() bool { return len(b.Items) == 0 }

// AddItem appends li, merging quantities when the product is already in
// the basket. The unit price of the existing line is kept.
func (b *Basket) AddItem(li LineItem) error {
	if err := li.Validate(); err != nil {
		return err
	}
	for i := range b.Items {
		if b.Items[i].ProductID == li.ProductID {
			b.Items[i].Quantity += li.Quantity
			return nil
		}
	}
	b.Items = append(b.Items, li)
	return nil
}

// UpdateQuantity sets the quantity of a line; zero removes it.
func (b *Basket) UpdateQuantity(productID string, qty int) error {
	if qty < 0 {
		return common.NewValidationError("quantity", "must not be negative")
	}
	for i := range b.Items {
		if b.Items[i].ProductID != productID {
			continue
		}
		if qty == 0 {
			b.Items = append(b.Items[:i], b.Items[i+1:]...)
		} else {
			b.Items[i].Quantity = qty
		}
		b.clampDiscount()
		return nil
	}
	return common.NewValidationError("product_id", "not in basket")
}

func (b *Basket) RemoveItem(productID string) error {
	return b.UpdateQuantity(productID, 0)
}

// ApplyDiscount sets a discount that must not exceed the subtotal.
func (b *Basket) ApplyDiscount(code string, amount decimal.Decimal) error {
	if amount.IsNegative() {
		return common.NewValidationError("discount", "must not be negative")
	}
	if amount.GreaterThan(b.Subtotal()) {
		return common.NewValidationError("discount", "exceeds subtotal")
	}
	b.DiscountCode = code
	b.Discount = amount
	return nil
}

// clampDiscount drops a discount that no longer fits after lines shrank.
func (b *Basket) clampDiscount() {
	if b.Discount.GreaterThan(b.Subtotal()) {
		b.Discount = decimal.Zero
		b.DiscountCode = ""
	}
}

// Clear empties the basket but keeps its session binding.
func (b *Basket) Clear() {
	*b = Basket{SessionID: b.SessionID, CashierID: b.CashierID, CashierName: b.CashierName}
}
