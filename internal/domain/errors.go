package domain

import "errors"

// RetriableError defines an interface for errors that can be retried
type RetriableError interface {
	error
	IsRetriable() bool
}

// IsRetriable checks if an error may be retried by the caller. Validation
// failures are never retriable without changing the request; quote and
// persistence failures are transient.
func IsRetriable(err error) bool {
	var re RetriableError
	if errors.As(err, &re) {
		return re.IsRetriable()
	}
	return errors.Is(err, ErrQuoteUnavailable) || errors.Is(err, ErrPersistenceFailure)
}

// StoreError wraps a ledger store failure with the operation that produced it.
type StoreError struct {
	Op  string // Operation that failed (e.g., "commit", "read_account")
	Err error
}

func (e *StoreError) Error() string {
	return "store " + e.Op + ": " + e.Err.Error()
}

func (e *StoreError) IsRetriable() bool {
	return true
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

var (
	// ErrInvalidQuantity is returned when an order quantity is not positive.
	ErrInvalidQuantity = errors.New("quantity must be positive")

	// ErrInvalidSide is returned when an order side is neither buy nor sell.
	ErrInvalidSide = errors.New("invalid order side")

	// ErrInvalidPrice is returned when a client-supplied limit price is not
	// positive.
	ErrInvalidPrice = errors.New("price must be positive")

	// ErrQuoteUnavailable is returned when no fresh price could be obtained
	// for a symbol. Transient; callers may retry with backoff.
	ErrQuoteUnavailable = errors.New("quote unavailable")

	// ErrInsufficientFunds is returned when a buy costs more than the
	// account's cash balance.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrInsufficientShares is returned when a sell exceeds the held quantity.
	ErrInsufficientShares = errors.New("insufficient shares")

	// ErrPersistenceFailure is returned when the atomic ledger write could
	// not be completed. Prior state is untouched; the whole order may be
	// retried by the caller.
	ErrPersistenceFailure = errors.New("persistence failure")

	// ErrConflict signals an optimistic-concurrency version mismatch. It is
	// retried inside the executor and never surfaced past it.
	ErrConflict = errors.New("version conflict")

	// ErrDuplicateRequest signals that a transaction with the same request id
	// was already committed. Internal; the executor resolves it to the
	// original transaction.
	ErrDuplicateRequest = errors.New("duplicate request id")

	// ErrAccountNotFound is returned when the account does not exist.
	ErrAccountNotFound = errors.New("account not found")

	// ErrAccountInactive is returned when the account has been deactivated.
	ErrAccountInactive = errors.New("account inactive")

	// ErrHoldingNotFound is returned when no position exists for a symbol.
	ErrHoldingNotFound = errors.New("holding not found")
)
