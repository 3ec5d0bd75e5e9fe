package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Quote is an ephemeral price observation. The engine never persists it;
// each valuation fetches a fresh one. Stale marks a quote served from the
// last-known cache after a live fetch failed.
type Quote struct {
	Symbol     string          `json:"symbol"`
	Price      decimal.Decimal `json:"price"`
	PrevClose  decimal.Decimal `json:"prev_close"` // Zero when the provider does not report it
	ObservedAt time.Time       `json:"observed_at"`
	Stale      bool            `json:"stale,omitempty"`
}

// DayChangePercent returns 100 * (price - prev_close) / prev_close,
// or zero when the previous close is unknown.
func (q Quote) DayChangePercent() decimal.Decimal {
	if q.PrevClose.IsZero() {
		return decimal.Zero
	}
	return q.Price.Sub(q.PrevClose).Div(q.PrevClose).Mul(decimal.NewFromInt(100))
}
