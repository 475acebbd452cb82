package domain

import "time" // Timestamps

// Wallet Model
type Wallet struct {
	ID        uint      `gorm:"primaryKey" json:"id"`              // Primary key
	UserID    uint      `gorm:"uniqueIndex" json:"user_id"`        // One wallet per user
	Balance   int64     `gorm:"not null;default:0" json:"balance"` // Points, never negative
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`  // Last balance change
}

// Transaction types recorded in the wallet ledger
const (
	TxnCredit      = "credit"       // Positive adjustment (admin top-up, refunds)
	TxnDebit       = "debit"        // Negative adjustment
	TxnBet         = "bet"          // Stake taken for a wager
	TxnBetRollback = "bet_rollback" // Compensating credit for a wager that failed to persist
	TxnWin         = "win"          // Payout on a winning bet
)

// WalletTxn Model, one append-only ledger row per balance change
type WalletTxn struct {
	ID           uint      `gorm:"primaryKey" json:"id"`                       // Primary key
	UserID       uint      `gorm:"index;not null" json:"user_id"`              // Owner of the wallet
	Type         string    `gorm:"size:16;not null" json:"type"`               // credit, debit, bet, bet_rollback, win
	Amount       int64     `gorm:"not null" json:"amount"`                     // Signed delta applied to the balance
	BalanceAfter int64     `gorm:"not null" json:"balance_after"`              // Balance right after this row
	Note         string    `gorm:"size:191;index" json:"note"`                 // Correlation tag (group/draw/figure)
	PayoutBetID  *uint     `gorm:"uniqueIndex" json:"payout_bet_id,omitempty"` // Set on win rows only
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`           // Append time
}

// TableName keeps the ledger table name stable
func (WalletTxn) TableName() string { return "wallet_txns" }
