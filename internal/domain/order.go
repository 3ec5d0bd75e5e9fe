package domain

import "github.com/shopspring/decimal"

// OrderRequest is an immediate market execution instruction against a live
// quote. LimitPrice, when set, is used as the fill price instead of the
// quote. RequestID is an optional client-generated idempotency key; a
// replayed request with the same id returns the original transaction.
type OrderRequest struct {
	AccountID  string           `json:"account_id"`
	Symbol     string           `json:"symbol"`
	Side       string           `json:"side"` // "buy", "sell"
	Quantity   decimal.Decimal  `json:"quantity"`
	LimitPrice *decimal.Decimal `json:"limit_price,omitempty"`
	RequestID  string           `json:"request_id,omitempty"`
}
