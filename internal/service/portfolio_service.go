// Package service assembles read-only views over the ledger: portfolio
// snapshots, holding detail and transaction history. It never mutates state.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"aigotrade/internal/domain"
	"aigotrade/internal/valuation"

	"github.com/shopspring/decimal"
)

// HoldingView is one valued position inside a portfolio snapshot.
type HoldingView struct {
	Symbol           string          `json:"symbol"`
	Quantity         decimal.Decimal `json:"quantity"`
	AverageCost      decimal.Decimal `json:"average_cost"`
	CurrentPrice     decimal.Decimal `json:"current_price"`
	MarketValue      decimal.Decimal `json:"market_value"`
	CostBasis        decimal.Decimal `json:"cost_basis"`
	GainLoss         decimal.Decimal `json:"gain_loss"`
	GainLossPercent  decimal.Decimal `json:"gain_loss_percent"`
	DayChange        decimal.Decimal `json:"day_change"`
	DayChangePercent decimal.Decimal `json:"day_change_percent"`
	Stale            bool            `json:"stale,omitempty"`
}

// PortfolioSnapshot is the full read-model of one account at a point in
// time: internally consistent at committed-transaction granularity, possibly
// slightly behind in-flight writes.
type PortfolioSnapshot struct {
	AccountID            string          `json:"account_id"`
	CashBalance          decimal.Decimal `json:"cash_balance"`
	TotalValue           decimal.Decimal `json:"total_value"`
	TotalCost            decimal.Decimal `json:"total_cost"`
	TotalGainLoss        decimal.Decimal `json:"total_gain_loss"`
	TotalGainLossPercent decimal.Decimal `json:"total_gain_loss_percent"`
	Holdings             []HoldingView   `json:"holdings"`
	HoldingsCount        int             `json:"holdings_count"`
	GeneratedAt          time.Time       `json:"generated_at"`
}

// PortfolioService combines stored holdings with fresh quotes.
type PortfolioService struct {
	store  domain.LedgerStore
	quotes domain.QuoteProvider
}

// NewPortfolioService creates a portfolio query service.
func NewPortfolioService(store domain.LedgerStore, quotes domain.QuoteProvider) *PortfolioService {
	return &PortfolioService{store: store, quotes: quotes}
}

// GetPortfolio builds a snapshot of one account. A failed quote degrades
// only its own holding (last-known price, stale flag, or the average cost
// when nothing is cached); the call fails only when the ledger itself
// cannot be read.
func (s *PortfolioService) GetPortfolio(ctx context.Context, accountID string) (*PortfolioSnapshot, error) {
	account, err := s.store.ReadAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrAccountNotFound, accountID)
	}

	holdings, err := s.store.ListHoldings(ctx, accountID)
	if err != nil {
		return nil, err
	}

	symbols := make([]string, len(holdings))
	for i, h := range holdings {
		symbols[i] = h.Symbol
	}

	quotes, err := s.quotes.GetQuotes(ctx, symbols)
	if err != nil {
		// Only context cancellation aborts a batched fetch.
		return nil, err
	}

	views := make([]HoldingView, 0, len(holdings))
	for _, h := range holdings {
		q, ok := quotes[h.Symbol]
		if !ok {
			q = domain.Quote{Symbol: h.Symbol, Price: h.AverageCost, Stale: true}
			quotes[h.Symbol] = q
		}
		views = append(views, holdingView(h, q))
	}

	totals := valuation.ValuePortfolio(account.CashBalance, holdings, quotes)

	return &PortfolioSnapshot{
		AccountID:            accountID,
		CashBalance:          account.CashBalance,
		TotalValue:           totals.TotalValue,
		TotalCost:            totals.TotalCost,
		TotalGainLoss:        totals.TotalGainLoss,
		TotalGainLossPercent: totals.TotalGainLossPercent,
		Holdings:             views,
		HoldingsCount:        totals.HoldingsCount,
		GeneratedAt:          time.Now().UTC(),
	}, nil
}

// GetHolding returns one valued position.
func (s *PortfolioService) GetHolding(ctx context.Context, accountID, symbol string) (*HoldingView, error) {
	holding, err := s.store.ReadHolding(ctx, accountID, symbol)
	if err != nil {
		return nil, err
	}
	if holding == nil {
		return nil, fmt.Errorf("%w: %s/%s", domain.ErrHoldingNotFound, accountID, symbol)
	}

	q, err := s.quotes.GetQuote(ctx, symbol)
	if err != nil {
		if !errors.Is(err, domain.ErrQuoteUnavailable) {
			return nil, err
		}
		q = domain.Quote{Symbol: symbol, Price: holding.AverageCost, Stale: true}
	}

	view := holdingView(*holding, q)
	return &view, nil
}

// GetTransactions lists an account's newest transactions, newest first.
func (s *PortfolioService) GetTransactions(ctx context.Context, accountID string, limit int) ([]domain.Transaction, error) {
	account, err := s.store.ReadAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrAccountNotFound, accountID)
	}
	return s.store.ListTransactions(ctx, accountID, limit)
}

func holdingView(h domain.Holding, q domain.Quote) HoldingView {
	v := valuation.ValueHolding(h, q)
	return HoldingView{
		Symbol:           h.Symbol,
		Quantity:         h.Quantity,
		AverageCost:      h.AverageCost,
		CurrentPrice:     q.Price,
		MarketValue:      v.MarketValue,
		CostBasis:        v.CostBasis,
		GainLoss:         v.GainLoss,
		GainLossPercent:  v.GainLossPercent,
		DayChange:        v.DayChange,
		DayChangePercent: v.DayChangePercent,
		Stale:            q.Stale,
	}
}
