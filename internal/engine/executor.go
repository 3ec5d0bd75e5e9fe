// Package engine is the state-mutating core: it validates orders, serializes
// them per account, applies the cash/holding delta and appends the
// transaction record in one atomic store write.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"aigotrade/internal/domain"
	"aigotrade/internal/infra"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const defaultMaxAttempts = 3

// Executor executes buy/sell orders against the ledger store. Two layers
// guard the read-modify-write: an in-process per-account mutex admits one
// in-flight mutation at a time, and the store checks the account version on
// commit so an external writer still maps to a bounded conflict retry.
type Executor struct {
	store       domain.LedgerStore
	quotes      domain.QuoteProvider
	locks       *accountLocks
	initialCash decimal.Decimal
	maxAttempts int
}

// NewExecutor creates an order executor. initialCash is the balance granted
// to newly opened accounts.
func NewExecutor(store domain.LedgerStore, quotes domain.QuoteProvider, initialCash decimal.Decimal) *Executor {
	return &Executor{
		store:       store,
		quotes:      quotes,
		locks:       newAccountLocks(),
		initialCash: initialCash,
		maxAttempts: defaultMaxAttempts,
	}
}

// OpenAccount creates the account with the configured initial cash balance.
// Opening an already existing account returns it unchanged.
func (e *Executor) OpenAccount(ctx context.Context, accountID string) (*domain.Account, error) {
	release := e.locks.Acquire(accountID)
	defer release()

	existing, err := e.store.ReadAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	account := &domain.Account{
		ID:          accountID,
		CashBalance: e.initialCash,
		Active:      true,
		Version:     1,
	}
	if err := e.store.CreateAccount(ctx, account); err != nil {
		return nil, err
	}
	slog.Info("Account opened",
		slog.String("account", accountID),
		slog.String("initial_cash", e.initialCash.String()))
	return account, nil
}

// ExecuteOrder validates and executes one order. Preconditions are checked
// in order, first failure wins: positive quantity, price availability,
// sufficient funds (buy) or shares (sell). On success the committed
// transaction is returned; all failures leave prior state untouched.
func (e *Executor) ExecuteOrder(ctx context.Context, req domain.OrderRequest) (*domain.Transaction, error) {
	started := time.Now()
	infra.GlobalMetrics.IncrementInflight()
	defer infra.GlobalMetrics.DecrementInflight()

	if !domain.ValidSide(req.Side) {
		infra.GlobalMetrics.RecordOrderRejected()
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidSide, req.Side)
	}
	if !req.Quantity.IsPositive() {
		infra.GlobalMetrics.RecordOrderRejected()
		return nil, domain.ErrInvalidQuantity
	}

	// One in-flight mutation per account.
	release := e.locks.Acquire(req.AccountID)
	defer release()

	// A retried request that already committed returns the original
	// transaction instead of a second fill.
	if req.RequestID != "" {
		prior, err := e.store.FindTransactionByRequestID(ctx, req.AccountID, req.RequestID)
		if err != nil {
			return nil, err
		}
		if prior != nil {
			slog.Info("Replayed order resolved to prior transaction",
				slog.String("account", req.AccountID),
				slog.String("request_id", req.RequestID))
			return prior, nil
		}
	}

	price, err := e.fillPrice(ctx, req)
	if err != nil {
		if errors.Is(err, domain.ErrQuoteUnavailable) {
			infra.GlobalMetrics.RecordQuoteFailure()
		}
		infra.GlobalMetrics.RecordOrderRejected()
		return nil, err
	}

	for attempt := 1; ; attempt++ {
		tx, err := e.tryCommit(ctx, req, price)
		if err == nil {
			infra.GlobalMetrics.RecordOrderExecuted(time.Since(started).Nanoseconds())
			slog.Info("Order executed",
				slog.String("account", req.AccountID),
				slog.String("symbol", req.Symbol),
				slog.String("side", req.Side),
				slog.String("quantity", req.Quantity.String()),
				slog.String("price", price.String()),
				slog.Uint64("seq", tx.SequenceNumber))
			return tx, nil
		}

		if errors.Is(err, domain.ErrDuplicateRequest) && req.RequestID != "" {
			prior, lookupErr := e.store.FindTransactionByRequestID(ctx, req.AccountID, req.RequestID)
			if lookupErr == nil && prior != nil {
				return prior, nil
			}
			return nil, err
		}

		if !errors.Is(err, domain.ErrConflict) {
			if isValidationFailure(err) {
				infra.GlobalMetrics.RecordOrderRejected()
			}
			return nil, err
		}

		// Version conflict: another writer committed between our read and
		// write. Re-read and retry, bounded.
		infra.GlobalMetrics.RecordConflict()
		if attempt >= e.maxAttempts {
			return nil, fmt.Errorf("%w: %d conflicting commits on account %s",
				domain.ErrPersistenceFailure, attempt, req.AccountID)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
	}
}

// fillPrice resolves the execution price: the caller-supplied limit price
// when present, otherwise a fresh quote.
func (e *Executor) fillPrice(ctx context.Context, req domain.OrderRequest) (decimal.Decimal, error) {
	if req.LimitPrice != nil {
		if !req.LimitPrice.IsPositive() {
			return decimal.Zero, fmt.Errorf("%w: limit %s", domain.ErrInvalidPrice, req.LimitPrice)
		}
		return *req.LimitPrice, nil
	}

	quote, err := e.quotes.GetQuote(ctx, req.Symbol)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %s: %v", domain.ErrQuoteUnavailable, req.Symbol, err)
	}
	return quote.Price, nil
}

// tryCommit performs one read-compute-commit round. A version mismatch at
// the store surfaces as ErrConflict and is retried by the caller.
func (e *Executor) tryCommit(ctx context.Context, req domain.OrderRequest, price decimal.Decimal) (*domain.Transaction, error) {
	account, err := e.store.ReadAccount(ctx, req.AccountID)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrAccountNotFound, req.AccountID)
	}
	if !account.Active {
		return nil, fmt.Errorf("%w: %s", domain.ErrAccountInactive, req.AccountID)
	}

	now := time.Now().UTC()
	total := req.Quantity.Mul(price)

	record := &domain.Transaction{
		ID:             uuid.NewString(),
		AccountID:      req.AccountID,
		SequenceNumber: account.LastSequence + 1,
		Symbol:         req.Symbol,
		Side:           req.Side,
		Quantity:       req.Quantity,
		Price:          price,
		TotalAmount:    total,
		ExecutedAt:     now,
	}
	if req.RequestID != "" {
		rid := req.RequestID
		record.RequestID = &rid
	}

	commit := domain.OrderCommit{
		AccountID:       account.ID,
		ExpectedVersion: account.Version,
		NewSequence:     record.SequenceNumber,
		Transaction:     record,
	}

	holding, err := e.store.ReadHolding(ctx, req.AccountID, req.Symbol)
	if err != nil {
		return nil, err
	}

	switch req.Side {
	case domain.SideBuy:
		if !account.CanAfford(total) {
			return nil, fmt.Errorf("%w: need %s, have %s",
				domain.ErrInsufficientFunds, total.String(), account.CashBalance.String())
		}
		commit.NewCashBalance = account.CashBalance.Sub(total)
		if holding == nil {
			holding = &domain.Holding{
				AccountID:   req.AccountID,
				Symbol:      req.Symbol,
				Quantity:    req.Quantity,
				AverageCost: price,
				CreatedAt:   now,
			}
		} else {
			holding.ApplyBuy(req.Quantity, price)
		}

	case domain.SideSell:
		if holding == nil || holding.Quantity.LessThan(req.Quantity) {
			held := decimal.Zero
			if holding != nil {
				held = holding.Quantity
			}
			return nil, fmt.Errorf("%w: have %s, selling %s",
				domain.ErrInsufficientShares, held.String(), req.Quantity.String())
		}
		commit.NewCashBalance = account.CashBalance.Add(total)
		record.GainLoss = price.Sub(holding.AverageCost).Mul(req.Quantity)
		holding.ApplySell(req.Quantity)
		if holding.Quantity.IsZero() {
			// Full exit: purge the row so a later buy starts a fresh basis.
			commit.RemoveHolding = true
		}
	}

	holding.UpdatedAt = now
	commit.Holding = holding

	// A caller that disconnected before the write must not commit.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := e.store.CommitOrder(ctx, commit); err != nil {
		return nil, err
	}
	return record, nil
}

func isValidationFailure(err error) bool {
	return errors.Is(err, domain.ErrInsufficientFunds) ||
		errors.Is(err, domain.ErrInsufficientShares) ||
		errors.Is(err, domain.ErrInvalidQuantity)
}
