package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// MethodTotal is one row of the payment method breakdown.
type MethodTotal struct {
	Method string          `json:"method"`
	Count  int             `json:"count"`
	Total  decimal.Decimal `json:"total"`
}

// CashierTotal is one row of the per-cashier breakdown.
type CashierTotal struct {
	CashierID   string          `json:"cashier_id"`
	CashierName string          `json:"cashier_name,omitempty"`
	Count       int             `json:"count"`
	Total       decimal.Decimal `json:"total"`
}

// DailyReport aggregates completed orders. Gross is before discount, Net
// after. Cash fields are only set when the report covers a shift.
type DailyReport struct {
	RegisterID     string          `json:"register_id,omitempty"`
	ShiftID        string          `json:"shift_id,omitempty"`
	From           time.Time       `json:"from"`
	To             time.Time       `json:"to"`
	OrderCount     int             `json:"order_count"`
	CancelledCount int             `json:"cancelled_count"`
	Gross          decimal.Decimal `json:"gross"`
	Tax            decimal.Decimal `json:"tax"`
	Discount       decimal.Decimal `json:"discount"`
	Net            decimal.Decimal `json:"net"`
	PaymentMethods []MethodTotal   `json:"payment_methods"`
	Cashiers       []CashierTotal  `json:"cashiers"`

	OpeningCash  decimal.NullDecimal `json:"opening_cash"`
	ExpectedCash decimal.NullDecimal `json:"expected_cash"`
	ClosingCash  decimal.NullDecimal `json:"closing_cash"`
	CashVariance decimal.NullDecimal `json:"cash_variance"`
}
