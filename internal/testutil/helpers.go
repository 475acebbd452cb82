// Package testutil provides shared fixtures for package tests.
package testutil

import (
	"context"
	"testing"
	"time"

	"lottery_system/internal/config"
	dbpkg "lottery_system/internal/db"
	"lottery_system/internal/domain"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Epoch is a fixed instant the tests start their clocks at: Tuesday 2026-03-10 08:00 UTC.
var Epoch = time.Date(2026, time.March, 10, 8, 0, 0, 0, time.UTC)

// NewDB returns a migrated in-memory database private to the test.
// A single connection keeps the memory database alive and serialises writers.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()
	cfg := dbpkg.GormConfig()
	cfg.Logger = logger.Default.LogMode(logger.Silent)
	db, err := gorm.Open(sqlite.Open(":memory:"), cfg)
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, dbpkg.AutoMigrate(db))
	return db
}

// Lottery returns the default rules in UTC
func Lottery() config.Lottery {
	return config.DefaultLottery()
}

// InsertDraw writes a draw row directly, bypassing the state machine
func InsertDraw(t *testing.T, db *gorm.DB, group domain.Group, status domain.DrawStatus, scheduledAt time.Time) *domain.Draw {
	t.Helper()
	d := &domain.Draw{GroupCode: group, Status: status, ScheduledAt: scheduledAt.UTC()}
	if status != domain.DrawScheduled {
		opened := scheduledAt.Add(-time.Hour).UTC()
		d.OpenedAt = &opened
	}
	require.NoError(t, db.Create(d).Error)
	return d
}

// Balance reads a wallet balance, zero when the wallet does not exist
func Balance(t *testing.T, db *gorm.DB, userID uint) int64 {
	t.Helper()
	var w domain.Wallet
	err := db.Where("user_id = ?", userID).Limit(1).Find(&w).Error
	require.NoError(t, err)
	return w.Balance
}

// Txns returns the user's ledger in append order
func Txns(t *testing.T, db *gorm.DB, userID uint) []domain.WalletTxn {
	t.Helper()
	var txns []domain.WalletTxn
	require.NoError(t, db.Where("user_id = ?", userID).Order("id asc").Find(&txns).Error)
	return txns
}

// RequireLedgerConsistent asserts the balance equals the sum of the user's ledger deltas
func RequireLedgerConsistent(t *testing.T, db *gorm.DB, userID uint) {
	t.Helper()
	var sum int64
	for _, txn := range Txns(t, db, userID) {
		sum += txn.Amount
	}
	require.Equal(t, sum, Balance(t, db, userID), "balance of user %d drifted from its ledger", userID)
}

// Fund credits a user through the wallet table and ledger in one step
func Fund(t *testing.T, db *gorm.DB, userID uint, amount int64) {
	t.Helper()
	ctx := context.Background()
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		w := domain.Wallet{UserID: userID}
		if err := tx.Where("user_id = ?", userID).FirstOrCreate(&w).Error; err != nil {
			return err
		}
		w.Balance += amount
		if err := tx.Model(&w).Update("balance", w.Balance).Error; err != nil {
			return err
		}
		return tx.Create(&domain.WalletTxn{
			UserID: userID, Type: domain.TxnCredit, Amount: amount,
			BalanceAfter: w.Balance, Note: "test:fund",
		}).Error
	})
	require.NoError(t, err)
}
