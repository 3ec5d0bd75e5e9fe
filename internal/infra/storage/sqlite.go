// Package storage is the durable ledger behind the order executor: accounts,
// holdings and transactions in SQLite via GORM (pure Go driver).
package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"aigotrade/internal/domain"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Storage implements domain.LedgerStore on SQLite.
type Storage struct {
	db *gorm.DB
}

// NewStorage opens (or creates) the ledger database at path.
func NewStorage(path string) (*Storage, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create DB directory: %w", err)
		}
	}

	// Connect to SQLite (Pure Go)
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Warn),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Auto Migration
	if err := db.AutoMigrate(&domain.Account{}, &domain.Holding{}, &domain.Transaction{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Storage{db: db}, nil
}

// CreateAccount inserts a new account row.
func (s *Storage) CreateAccount(ctx context.Context, account *domain.Account) error {
	if err := s.db.WithContext(ctx).Create(account).Error; err != nil {
		return storeErr("create_account", err)
	}
	return nil
}

// ReadAccount retrieves an account by id. Not found is not an error; nil is
// returned.
func (s *Storage) ReadAccount(ctx context.Context, id string) (*domain.Account, error) {
	var account domain.Account
	err := s.db.WithContext(ctx).First(&account, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, storeErr("read_account", err)
	}
	return &account, nil
}

// ReadHolding retrieves one position. Not found returns nil.
func (s *Storage) ReadHolding(ctx context.Context, accountID, symbol string) (*domain.Holding, error) {
	var holding domain.Holding
	err := s.db.WithContext(ctx).
		First(&holding, "account_id = ? AND symbol = ?", accountID, symbol).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, storeErr("read_holding", err)
	}
	return &holding, nil
}

// ListHoldings retrieves all positions of an account ordered by symbol.
func (s *Storage) ListHoldings(ctx context.Context, accountID string) ([]domain.Holding, error) {
	var holdings []domain.Holding
	err := s.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("symbol").
		Find(&holdings).Error
	if err != nil {
		return nil, storeErr("list_holdings", err)
	}
	return holdings, nil
}

// ListTransactions retrieves the newest transactions of an account, newest
// first, capped at limit (0 means no cap).
func (s *Storage) ListTransactions(ctx context.Context, accountID string, limit int) ([]domain.Transaction, error) {
	var txs []domain.Transaction
	q := s.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("sequence_number DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&txs).Error; err != nil {
		return nil, storeErr("list_transactions", err)
	}
	return txs, nil
}

// FindTransactionByRequestID looks up a previously committed transaction by
// its client idempotency key. Not found returns nil.
func (s *Storage) FindTransactionByRequestID(ctx context.Context, accountID, requestID string) (*domain.Transaction, error) {
	var tx domain.Transaction
	err := s.db.WithContext(ctx).
		First(&tx, "account_id = ? AND request_id = ?", accountID, requestID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, storeErr("find_transaction", err)
	}
	return &tx, nil
}

// CommitOrder applies one executed order as a single database transaction:
// cash + sequence on the account (guarded by the version check), the holding
// upsert or purge, and the transaction append. Either every row is durably
// updated or none is.
func (s *Storage) CommitOrder(ctx context.Context, commit domain.OrderCommit) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&domain.Account{}).
			Where("id = ? AND version = ?", commit.AccountID, commit.ExpectedVersion).
			Updates(map[string]interface{}{
				"cash_balance":  commit.NewCashBalance,
				"last_sequence": commit.NewSequence,
				"version":       commit.ExpectedVersion + 1,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// Another writer advanced the version since our read.
			return domain.ErrConflict
		}

		if commit.RemoveHolding {
			if err := tx.
				Where("account_id = ? AND symbol = ?", commit.AccountID, commit.Holding.Symbol).
				Delete(&domain.Holding{}).Error; err != nil {
				return err
			}
		} else if commit.Holding != nil {
			if err := tx.Save(commit.Holding).Error; err != nil {
				return err
			}
		}

		if err := tx.Create(commit.Transaction).Error; err != nil {
			if isDuplicateKey(err) {
				return domain.ErrDuplicateRequest
			}
			return err
		}
		return nil
	})

	if err == nil {
		return nil
	}
	if errors.Is(err, domain.ErrConflict) || errors.Is(err, domain.ErrDuplicateRequest) {
		return err
	}
	return storeErr("commit_order", err)
}

func isDuplicateKey(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey) ||
		strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func storeErr(op string, err error) error {
	return fmt.Errorf("%w: %w", domain.ErrPersistenceFailure, &domain.StoreError{Op: op, Err: err})
}
