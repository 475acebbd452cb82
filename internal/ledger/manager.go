// Package ledger adjusts wallet balances. Every applied adjustment is paired
// with exactly one append-only wallet_txns row, so the ledger alone can
// rebuild any balance. Effects are undone by a second adjustment with the
// inverse delta and a _rollback note, never by editing history.
package ledger

import (
	"context"
	"fmt"
	"strings"

	"lottery_system/internal/domain"
	"lottery_system/internal/metrics"

	"github.com/sirupsen/logrus"
)

// Store is the storage primitive the manager relies on
type Store interface {
	GetOrCreate(ctx context.Context, userID uint) (*domain.Wallet, error)
	ApplyDelta(ctx context.Context, txn *domain.WalletTxn) error
	ListTxns(ctx context.Context, userID uint, offset, limit int) ([]domain.WalletTxn, int64, error)
	SumDeltas(ctx context.Context, userID uint) (int64, error)
}

// BalanceCache is told whenever a user's balance changes
type BalanceCache interface {
	InvalidateBalance(ctx context.Context, userID uint) error
}

// Entry is one balance adjustment request
type Entry struct {
	UserID      uint
	Delta       int64
	Note        string
	PayoutBetID *uint // set for win credits, unique per bet
}

// Manager is the only writer of wallet balances
type Manager struct {
	store Store
	cache BalanceCache
}

// NewManager creates a Manager. cache may be nil.
func NewManager(store Store, cache BalanceCache) *Manager {
	return &Manager{store: store, cache: cache}
}

// TxnType infers the ledger row type from the note tag and the sign of delta
func TxnType(delta int64, note string) string {
	switch {
	case strings.HasPrefix(note, domain.TxnBetRollback+":"):
		return domain.TxnBetRollback
	case strings.HasPrefix(note, domain.TxnBet+":"):
		return domain.TxnBet
	case strings.HasPrefix(note, domain.TxnWin+":"):
		return domain.TxnWin
	case delta < 0:
		return domain.TxnDebit
	default:
		return domain.TxnCredit
	}
}

// AdjustBalance applies delta to the user's balance and returns the new balance.
// It fails with ErrInsufficientFunds when the balance would go negative and
// with ErrLedgerWrite when the store rejects the write.
func (m *Manager) AdjustBalance(ctx context.Context, userID uint, delta int64, note string) (int64, error) {
	txn, err := m.Adjust(ctx, Entry{UserID: userID, Delta: delta, Note: note})
	if err != nil {
		return 0, err
	}
	return txn.BalanceAfter, nil
}

// Adjust applies e and returns the appended ledger row
func (m *Manager) Adjust(ctx context.Context, e Entry) (*domain.WalletTxn, error) {
	if e.Delta == 0 || (e.PayoutBetID != nil && e.Delta < 0) {
		return nil, domain.ErrInvalidAmount
	}
	if strings.TrimSpace(e.Note) == "" {
		return nil, domain.ErrInvalidNote
	}
	txn := &domain.WalletTxn{
		UserID:      e.UserID,
		Type:        TxnType(e.Delta, e.Note),
		Amount:      e.Delta,
		Note:        e.Note,
		PayoutBetID: e.PayoutBetID,
	}
	if err := m.store.ApplyDelta(ctx, txn); err != nil {
		if _, ok := domain.AsError(err); ok {
			return nil, err
		}
		logrus.WithFields(logrus.Fields{
			"user_id": e.UserID,
			"delta":   e.Delta,
			"note":    e.Note,
			"error":   err.Error(),
		}).Error("Ledger write failed")
		return nil, fmt.Errorf("%w: %w", domain.ErrLedgerWrite, err)
	}
	metrics.LedgerEntries.WithLabelValues(txn.Type).Inc()
	if m.cache != nil {
		if err := m.cache.InvalidateBalance(ctx, e.UserID); err != nil {
			logrus.WithFields(logrus.Fields{
				"user_id": e.UserID,
				"error":   err.Error(),
			}).Warn("Balance cache invalidation failed")
		}
	}
	logrus.WithFields(logrus.Fields{
		"user_id":       e.UserID,
		"type":          txn.Type,
		"delta":         e.Delta,
		"balance_after": txn.BalanceAfter,
		"note":          e.Note,
	}).Info("Ledger entry appended")
	return txn, nil
}

// Balance returns the user's current balance, creating an empty wallet on first touch
func (m *Manager) Balance(ctx context.Context, userID uint) (int64, error) {
	w, err := m.store.GetOrCreate(ctx, userID)
	if err != nil {
		return 0, err
	}
	return w.Balance, nil
}

// History returns a page of the user's ledger, newest first
func (m *Manager) History(ctx context.Context, userID uint, page, pageSize int) ([]domain.WalletTxn, int64, error) {
	if page < 1 {
		page = 1
	}
	return m.store.ListTxns(ctx, userID, (page-1)*pageSize, pageSize)
}

// Reconciliation compares a stored balance with its ledger
type Reconciliation struct {
	UserID    uint  `json:"user_id"`
	Balance   int64 `json:"balance"`
	LedgerSum int64 `json:"ledger_sum"`
	Drift     int64 `json:"drift"`
}

// Consistent reports whether the balance equals the ledger sum
func (r Reconciliation) Consistent() bool { return r.Drift == 0 }

// Reconcile folds the user's ledger and compares it with the stored balance
func (m *Manager) Reconcile(ctx context.Context, userID uint) (*Reconciliation, error) {
	w, err := m.store.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}
	sum, err := m.store.SumDeltas(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("sum ledger for user %d: %w", userID, err)
	}
	r := &Reconciliation{UserID: userID, Balance: w.Balance, LedgerSum: sum, Drift: w.Balance - sum}
	if !r.Consistent() {
		logrus.WithFields(logrus.Fields{
			"user_id":    userID,
			"balance":    w.Balance,
			"ledger_sum": sum,
		}).Error("Wallet balance drifted from ledger")
	}
	return r, nil
}
