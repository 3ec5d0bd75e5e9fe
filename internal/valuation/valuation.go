// Package valuation computes market value, cost basis and gain/loss figures
// for holdings and portfolios. All functions are pure and assume validated
// inputs; a zero cost basis reports 0%, never an error.
package valuation

import (
	"aigotrade/internal/domain"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// HoldingValuation is the per-position result of valuing a holding against
// one price observation.
type HoldingValuation struct {
	MarketValue      decimal.Decimal `json:"market_value"`
	CostBasis        decimal.Decimal `json:"cost_basis"`
	GainLoss         decimal.Decimal `json:"gain_loss"`
	GainLossPercent  decimal.Decimal `json:"gain_loss_percent"`
	DayChange        decimal.Decimal `json:"day_change"`
	DayChangePercent decimal.Decimal `json:"day_change_percent"`
}

// PortfolioTotals aggregates one account's positions under a price snapshot.
type PortfolioTotals struct {
	TotalValue           decimal.Decimal `json:"total_value"` // Cash + sum of market values
	TotalCost            decimal.Decimal `json:"total_cost"`
	TotalGainLoss        decimal.Decimal `json:"total_gain_loss"`
	TotalGainLossPercent decimal.Decimal `json:"total_gain_loss_percent"`
	HoldingsCount        int             `json:"holdings_count"`
}

// ValueHolding values one holding against one quote.
func ValueHolding(h domain.Holding, q domain.Quote) HoldingValuation {
	marketValue := h.Quantity.Mul(q.Price)
	costBasis := h.Quantity.Mul(h.AverageCost)
	gainLoss := marketValue.Sub(costBasis)

	v := HoldingValuation{
		MarketValue: marketValue,
		CostBasis:   costBasis,
		GainLoss:    gainLoss,
	}
	if costBasis.IsPositive() {
		v.GainLossPercent = gainLoss.Div(costBasis).Mul(hundred)
	}
	if !q.PrevClose.IsZero() {
		v.DayChange = q.Price.Sub(q.PrevClose).Mul(h.Quantity)
		v.DayChangePercent = q.DayChangePercent()
	}
	return v
}

// ValuePortfolio aggregates totals for an account. Holdings whose symbol is
// missing from the quote map are valued at their average cost, which keeps
// the totals defined while the read path flags the position as stale.
func ValuePortfolio(cashBalance decimal.Decimal, holdings []domain.Holding, quotes map[string]domain.Quote) PortfolioTotals {
	totals := PortfolioTotals{
		TotalValue:    cashBalance,
		TotalCost:     decimal.Zero,
		TotalGainLoss: decimal.Zero,
		HoldingsCount: len(holdings),
	}

	for _, h := range holdings {
		q, ok := quotes[h.Symbol]
		if !ok {
			q = domain.Quote{Symbol: h.Symbol, Price: h.AverageCost}
		}
		v := ValueHolding(h, q)
		totals.TotalValue = totals.TotalValue.Add(v.MarketValue)
		totals.TotalCost = totals.TotalCost.Add(v.CostBasis)
		totals.TotalGainLoss = totals.TotalGainLoss.Add(v.GainLoss)
	}

	if totals.TotalCost.IsPositive() {
		totals.TotalGainLossPercent = totals.TotalGainLoss.Div(totals.TotalCost).Mul(hundred)
	}
	return totals
}
