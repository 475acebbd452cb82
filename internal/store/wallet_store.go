package store

import (
	"context"
	"errors"
	"fmt"

	"lottery_system/internal/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// WalletStore owns the wallets and wallet_txns tables
type WalletStore struct {
	db *gorm.DB
}

// NewWalletStore creates a WalletStore
func NewWalletStore(db *gorm.DB) *WalletStore {
	return &WalletStore{db: db}
}

func ensureWallet(tx *gorm.DB, userID uint) error {
	return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&domain.Wallet{UserID: userID}).Error
}

// GetOrCreate returns the user's wallet, creating it with a zero balance on first touch
func (s *WalletStore) GetOrCreate(ctx context.Context, userID uint) (*domain.Wallet, error) {
	db := s.db.WithContext(ctx)
	if err := ensureWallet(db, userID); err != nil {
		return nil, fmt.Errorf("create wallet for user %d: %w", userID, err)
	}
	var w domain.Wallet
	if err := db.Where("user_id = ?", userID).First(&w).Error; err != nil {
		return nil, fmt.Errorf("load wallet for user %d: %w", userID, err)
	}
	return &w, nil
}

// ApplyDelta adds txn.Amount to the user's balance and appends txn in one
// database transaction. The increment is conditional on the result staying
// non-negative, so concurrent writers can never drive the balance below zero.
// txn.BalanceAfter and txn.ID are filled in on success.
func (s *WalletStore) ApplyDelta(ctx context.Context, txn *domain.WalletTxn) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureWallet(tx, txn.UserID); err != nil {
			return fmt.Errorf("create wallet: %w", err)
		}
		res := tx.Model(&domain.Wallet{}).
			Where("user_id = ? AND balance + ? >= 0", txn.UserID, txn.Amount).
			Update("balance", gorm.Expr("balance + ?", txn.Amount))
		if res.Error != nil {
			return fmt.Errorf("increment balance: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return domain.ErrInsufficientFunds
		}
		var w domain.Wallet
		if err := tx.Where("user_id = ?", txn.UserID).First(&w).Error; err != nil {
			return fmt.Errorf("read balance: %w", err)
		}
		txn.BalanceAfter = w.Balance
		if err := tx.Create(txn).Error; err != nil {
			err = translate(err)
			if errors.Is(err, ErrDuplicate) && txn.PayoutBetID != nil {
				return domain.ErrAlreadyPaid
			}
			return fmt.Errorf("append ledger row: %w", err)
		}
		return nil
	})
}

// ListTxns returns a page of the user's ledger, newest first, with the total row count
func (s *WalletStore) ListTxns(ctx context.Context, userID uint, offset, limit int) ([]domain.WalletTxn, int64, error) {
	q := s.db.WithContext(ctx).Model(&domain.WalletTxn{}).Where("user_id = ?", userID)
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var txns []domain.WalletTxn
	if err := q.Order("id desc").Offset(offset).Limit(limit).Find(&txns).Error; err != nil {
		return nil, 0, err
	}
	return txns, total, nil
}

// SumDeltas folds the user's whole ledger into a balance
func (s *WalletStore) SumDeltas(ctx context.Context, userID uint) (int64, error) {
	var sum int64
	err := s.db.WithContext(ctx).Model(&domain.WalletTxn{}).
		Where("user_id = ?", userID).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&sum).Error
	return sum, err
}

// HasNotePrefix reports whether any ledger row's note starts with prefix
func (s *WalletStore) HasNotePrefix(ctx context.Context, prefix string) (bool, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&domain.WalletTxn{}).
		Where("note LIKE ?", prefix+"%").
		Count(&n).Error
	return n > 0, err
}

// PayoutExists reports whether a win row was already written for the bet
func (s *WalletStore) PayoutExists(ctx context.Context, betID uint) (bool, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&domain.WalletTxn{}).
		Where("payout_bet_id = ?", betID).
		Count(&n).Error
	return n > 0, err
}
