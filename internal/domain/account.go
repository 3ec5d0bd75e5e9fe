package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account owns exactly one cash balance. It is mutated only by the order
// executor; Version is the optimistic-concurrency token checked by the
// ledger store on every commit.
type Account struct {
	ID           string          `gorm:"primaryKey" json:"id"`
	CashBalance  decimal.Decimal `gorm:"type:decimal(20,8)" json:"cash_balance"`
	Active       bool            `gorm:"index" json:"active"`
	Version      uint64          `json:"-"`
	LastSequence uint64          `json:"-"` // Highest transaction sequence number issued
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// CanAfford reports whether the account can pay the given amount in cash.
func (a *Account) CanAfford(amount decimal.Decimal) bool {
	return amount.LessThanOrEqual(a.CashBalance)
}

// Holding is a position in one symbol within one account.
// Invariant: Quantity > 0 implies AverageCost > 0. A holding whose quantity
// returns to zero is deleted, never stored zeroed.
type Holding struct {
	AccountID   string          `gorm:"primaryKey" json:"account_id"`
	Symbol      string          `gorm:"primaryKey" json:"symbol"`
	Quantity    decimal.Decimal `gorm:"type:decimal(20,8)" json:"quantity"`
	AverageCost decimal.Decimal `gorm:"type:decimal(20,8)" json:"average_cost"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// CostBasis returns quantity * average cost.
func (h *Holding) CostBasis() decimal.Decimal {
	return h.Quantity.Mul(h.AverageCost)
}

// ApplyBuy folds a fill into the position using the quantity-weighted
// average: (old_qty*old_avg + fill_qty*price) / (old_qty + fill_qty).
func (h *Holding) ApplyBuy(quantity, price decimal.Decimal) {
	totalQty := h.Quantity.Add(quantity)
	invested := h.CostBasis().Add(quantity.Mul(price))
	h.AverageCost = invested.DivRound(totalQty, 8)
	h.Quantity = totalQty
}

// ApplySell reduces the position. Average cost is left unchanged; the
// realized result lives on the transaction record, not the position.
func (h *Holding) ApplySell(quantity decimal.Decimal) {
	h.Quantity = h.Quantity.Sub(quantity)
}

// Transaction is the immutable record of one executed order. Append-only;
// SequenceNumber is strictly increasing per account.
type Transaction struct {
	ID             string          `gorm:"primaryKey" json:"id"`
	AccountID      string          `gorm:"index;uniqueIndex:idx_account_seq;uniqueIndex:idx_account_req" json:"account_id"`
	SequenceNumber uint64          `gorm:"uniqueIndex:idx_account_seq" json:"sequence_number"`
	Symbol         string          `gorm:"index" json:"symbol"`
	Side           string          `json:"side"` // "buy", "sell"
	Quantity       decimal.Decimal `gorm:"type:decimal(20,8)" json:"quantity"`
	Price          decimal.Decimal `gorm:"type:decimal(20,8)" json:"price"`
	TotalAmount    decimal.Decimal `gorm:"type:decimal(20,8)" json:"total_amount"`
	GainLoss       decimal.Decimal `gorm:"type:decimal(20,8)" json:"gain_loss"` // Realized, sells only
	RequestID      *string         `gorm:"uniqueIndex:idx_account_req" json:"request_id,omitempty"` // Client idempotency key, unique per account
	ExecutedAt     time.Time       `json:"executed_at"`
}

const (
	SideBuy  = "buy"
	SideSell = "sell"
)

// ValidSide reports whether s is a recognized order side.
func ValidSide(s string) bool {
	return s == SideBuy || s == SideSell
}
