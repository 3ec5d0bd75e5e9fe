package domain

import (
	"context"

	"github.com/shopspring/decimal"
)

// QuoteProvider defines the interface for live price sources. GetQuotes is
// the batched form used by read paths; symbols that could not be priced are
// simply absent from the result.
type QuoteProvider interface {
	GetQuote(ctx context.Context, symbol string) (Quote, error)
	GetQuotes(ctx context.Context, symbols []string) (map[string]Quote, error)
}

// OrderCommit is the single atomic write point of the engine: cash, holding
// and transaction are durably updated together or not at all. ExpectedVersion
// carries the optimistic-concurrency check; a mismatch yields ErrConflict.
type OrderCommit struct {
	AccountID       string
	ExpectedVersion uint64
	NewCashBalance  decimal.Decimal
	NewSequence     uint64
	Holding         *Holding // Post-trade position; nil when untouched
	RemoveHolding   bool     // Quantity returned to zero; purge the row
	Transaction     *Transaction
}

// LedgerStore defines durable keyed storage for accounts, holdings and
// transactions with per-account read-modify-write atomicity.
type LedgerStore interface {
	CreateAccount(ctx context.Context, account *Account) error
	ReadAccount(ctx context.Context, id string) (*Account, error)
	ReadHolding(ctx context.Context, accountID, symbol string) (*Holding, error)
	ListHoldings(ctx context.Context, accountID string) ([]Holding, error)
	ListTransactions(ctx context.Context, accountID string, limit int) ([]Transaction, error)
	FindTransactionByRequestID(ctx context.Context, accountID, requestID string) (*Transaction, error)
	CommitOrder(ctx context.Context, commit OrderCommit) error
}
