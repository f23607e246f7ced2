package models

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/dmitrijs2005/lanpos/internal/common"
	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestOrderTotal_SubtotalMinusDiscount(t *testing.T) {
	o := &Order{
		Items: []LineItem{
			{ProductID: "p1", Quantity: 2, UnitPrice: dec("10")},
			{ProductID: "p2", Quantity: 1, UnitPrice: dec("5")},
		},
		Discount: dec("5"),
	}
	assert.Equal(t, "25.00", Cents(o.Subtotal()))
	assert.Equal(t, "20.00", Cents(o.Total()))

	o.Items[0].Quantity = 3
	assert.Equal(t, "30.00", Cents(o.Total()), "total follows the lines")
}

func TestLineItemTax_Inclusive(t *testing.T) {
	li := LineItem{ProductID: "p", Quantity: 1, UnitPrice: dec("12.10"), TaxRate: dec("0.21")}
	assert.Equal(t, "2.10", Cents(li.Tax()))

	li.TaxRate = decimal.Zero
	assert.True(t, li.Tax().IsZero())
}

func TestLineItemValidate(t *testing.T) {
	tests := []struct {
		name  string
		li    LineItem
		field string
	}{
		{"missing product", LineItem{Quantity: 1, UnitPrice: dec("1")}, "product_id"},
		{"zero qty", LineItem{ProductID: "p", UnitPrice: dec("1")}, "quantity"},
		{"negative price", LineItem{ProductID: "p", Quantity: 1, UnitPrice: dec("-1")}, "unit_price"},
		{"negative tax", LineItem{ProductID: "p", Quantity: 1, UnitPrice: dec("1"), TaxRate: dec("-0.1")}, "tax_rate"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.li.Validate()
			require.ErrorIs(t, err, common.ErrValidation)
			var ve *common.ValidationError
			require.True(t, errors.As(err, &ve))
			assert.Equal(t, tt.field, ve.Field)
		})
	}
	assert.NoError(t, LineItem{ProductID: "p", Quantity: 1, UnitPrice: dec("0")}.Validate())
}

func TestOrderClone_DoesNotAliasItems(t *testing.T) {
	o := &Order{ID: "o1", Items: []LineItem{{ProductID: "p", Quantity: 1, UnitPrice: dec("1")}}}
	c := o.Clone()
	c.Items[0].Quantity = 9
	assert.Equal(t, 1, o.Items[0].Quantity)
}

func TestOrderJSONRoundTrip(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	o := Order{
		ID: "o1", Status: StatusPendingSync, CreatedAt: now, UpdatedAt: now,
		Items:    []LineItem{{ProductID: "p", Quantity: 2, UnitPrice: dec("1.50"), TaxRate: dec("0.1")}},
		Discount: dec("0.5"),
		Sync:     SyncMeta{RetryCount: 1, LastError: "timeout"},
	}
	b, err := json.Marshal(o)
	require.NoError(t, err)

	var back Order
	require.NoError(t, json.Unmarshal(b, &back))
	opt := cmp.Comparer(func(a, b decimal.Decimal) bool { return a.Equal(b) })
	if diff := cmp.Diff(o, back, opt); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestFromCents(t *testing.T) {
	assert.Equal(t, "12.34", Cents(FromCents(1234)))
}
