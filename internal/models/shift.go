package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Shift is a cash-drawer accounting period. ClosingCash and ClosedAt are
// unset while the shift is open.
type Shift struct {
	ID           string              `json:"id"`
	RegisterID   string              `json:"register_id"`
	OpenedBy     string              `json:"opened_by"`
	OpenedByName string              `json:"opened_by_name,omitempty"`
	OpenedAt     time.Time           `json:"opened_at"`
	OpeningCash  decimal.Decimal     `json:"opening_cash"`
	ClosingCash  decimal.NullDecimal `json:"closing_cash"`
	ClosedAt     *time.Time          `json:"closed_at,omitempty"`
}

func (s *Shift) IsOpen() bool { return s.ClosedAt == nil }

// Contains reports whether t falls in the shift window. Open shifts have no
// upper bound; the close instant itself is included.
func (s *Shift) Contains(t time.Time) bool {
	if t.Before(s.OpenedAt) {
		return false
	}
	return s.ClosedAt == nil || !t.After(*s.ClosedAt)
}
