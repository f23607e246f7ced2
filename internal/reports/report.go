// Package reports aggregates orders into a DailyReport. Generate is pure:
// the same inputs always produce the same report.
package reports

import (
	"sort"
	"time"

	"github.com/dmitrijs2005/lanpos/internal/models"
	"github.com/dmitrijs2005/lanpos/internal/payment"
	"github.com/shopspring/decimal"
)

// counted reports whether an order's money was actually taken.
func counted(s models.Status) bool {
	switch s {
	case models.StatusPaid, models.StatusPendingSync, models.StatusSynced, models.StatusSyncFailed:
		return true
	}
	return false
}

// Generate aggregates orders. With a shift, only orders created inside the
// shift window are included and the cash drawer is reconciled; without one
// every order passed in is considered.
func Generate(orders []*models.Order, shift *models.Shift) models.DailyReport {
	r := models.DailyReport{
		Gross:          decimal.Zero,
		Tax:            decimal.Zero,
		Discount:       decimal.Zero,
		Net:            decimal.Zero,
		PaymentMethods: []models.MethodTotal{},
		Cashiers:       []models.CashierTotal{},
	}

	methods := map[string]*models.MethodTotal{}
	cashiers := map[string]*models.CashierTotal{}
	cashNet := decimal.Zero

	for _, o := range orders {
		if shift != nil && !shift.Contains(o.CreatedAt) {
			continue
		}
		if o.Status == models.StatusCancelled {
			r.CancelledCount++
			continue
		}
		if !counted(o.Status) {
			continue
		}

		total := o.Total()
		r.OrderCount++
		r.Gross = r.Gross.Add(o.Subtotal())
		r.Tax = r.Tax.Add(o.Tax())
		r.Discount = r.Discount.Add(o.Discount)
		r.Net = r.Net.Add(total)

		if r.RegisterID == "" {
			r.RegisterID = o.RegisterID
		}
		if shift == nil {
			if r.From.IsZero() || o.CreatedAt.Before(r.From) {
				r.From = o.CreatedAt
			}
			if o.CreatedAt.After(r.To) {
				r.To = o.CreatedAt
			}
		}

		m := methods[o.PaymentMethod]
		if m == nil {
			m = &models.MethodTotal{Method: o.PaymentMethod, Total: decimal.Zero}
			methods[o.PaymentMethod] = m
		}
		m.Count++
		m.Total = m.Total.Add(total)

		c := cashiers[o.CashierID]
		if c == nil {
			c = &models.CashierTotal{CashierID: o.CashierID, CashierName: o.CashierName, Total: decimal.Zero}
			cashiers[o.CashierID] = c
		}
		c.Count++
		c.Total = c.Total.Add(total)

		if o.PaymentMethod == payment.MethodCash {
			cashNet = cashNet.Add(total)
		}
	}

	for _, m := range methods {
		r.PaymentMethods = append(r.PaymentMethods, *m)
	}
	sort.Slice(r.PaymentMethods, func(i, j int) bool { return r.PaymentMethods[i].Method < r.PaymentMethods[j].Method })
	for _, c := range cashiers {
		r.Cashiers = append(r.Cashiers, *c)
	}
	sort.Slice(r.Cashiers, func(i, j int) bool { return r.Cashiers[i].CashierID < r.Cashiers[j].CashierID })

	if shift != nil {
		reconcile(&r, shift, cashNet)
	}
	return r
}

func reconcile(r *models.DailyReport, s *models.Shift, cashNet decimal.Decimal) {
	r.ShiftID = s.ID
	r.RegisterID = s.RegisterID
	r.From = s.OpenedAt
	r.To = time.Time{}
	if s.ClosedAt != nil {
		r.To = *s.ClosedAt
	}

	expected := s.OpeningCash.Add(cashNet)
	r.OpeningCash = decimal.NewNullDecimal(s.OpeningCash)
	r.ExpectedCash = decimal.NewNullDecimal(expected)
	if s.ClosingCash.Valid {
		r.ClosingCash = s.ClosingCash
		r.CashVariance = decimal.NewNullDecimal(s.ClosingCash.Decimal.Sub(expected))
	}
}
