package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"

	"lottery_system/internal/domain"
	"lottery_system/internal/store"
	"lottery_system/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingCache struct {
	mu    sync.Mutex
	users []uint
}

func (c *recordingCache) InvalidateBalance(_ context.Context, userID uint) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.users = append(c.users, userID)
	return nil
}

func TestTxnType(t *testing.T) {
	tests := []struct {
		delta int64
		note  string
		want  string
	}{
		{100, "admin:topup", domain.TxnCredit},
		{-5, "admin:correction", domain.TxnDebit},
		{-40, "bet:A:1:5", domain.TxnBet},
		{40, "bet_rollback:A:1:5", domain.TxnBetRollback},
		{1320, "win:1:5", domain.TxnWin},
		{10, "betting bonus", domain.TxnCredit},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, TxnType(tt.delta, tt.note), "delta=%d note=%q", tt.delta, tt.note)
	}
}

func TestAdjustBalance_CreatesWalletLazily(t *testing.T) {
	db := testutil.NewDB(t)
	cache := &recordingCache{}
	m := NewManager(store.NewWalletStore(db), cache)
	ctx := context.Background()

	bal, err := m.AdjustBalance(ctx, 7, 100, "admin:topup")
	require.NoError(t, err)
	assert.Equal(t, int64(100), bal)

	txns := testutil.Txns(t, db, 7)
	require.Len(t, txns, 1)
	assert.Equal(t, domain.TxnCredit, txns[0].Type)
	assert.Equal(t, int64(100), txns[0].BalanceAfter)
	assert.Equal(t, []uint{7}, cache.users)
}

func TestAdjustBalance_InsufficientFunds(t *testing.T) {
	db := testutil.NewDB(t)
	m := NewManager(store.NewWalletStore(db), nil)
	ctx := context.Background()

	_, err := m.AdjustBalance(ctx, 1, 50, "admin:topup")
	require.NoError(t, err)

	_, err = m.AdjustBalance(ctx, 1, -51, "admin:correction")
	assert.ErrorIs(t, err, domain.ErrInsufficientFunds)
	assert.Equal(t, int64(50), testutil.Balance(t, db, 1))
	assert.Len(t, testutil.Txns(t, db, 1), 1, "rejected adjustment must not append a row")

	bal, err := m.AdjustBalance(ctx, 1, -50, "admin:correction")
	require.NoError(t, err)
	assert.Zero(t, bal)
}

func TestAdjustBalance_Validation(t *testing.T) {
	m := NewManager(store.NewWalletStore(testutil.NewDB(t)), nil)
	ctx := context.Background()

	_, err := m.AdjustBalance(ctx, 1, 0, "noop")
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)

	_, err = m.AdjustBalance(ctx, 1, 10, "  ")
	assert.ErrorIs(t, err, domain.ErrInvalidNote)

	betID := uint(7)
	_, err = m.Adjust(ctx, Entry{UserID: 1, Delta: -330, Note: "win:1:4", PayoutBetID: &betID})
	assert.ErrorIs(t, err, domain.ErrInvalidAmount, "a payout never debits")
}

func TestAdjust_PayoutIsUniquePerBet(t *testing.T) {
	db := testutil.NewDB(t)
	m := NewManager(store.NewWalletStore(db), nil)
	ctx := context.Background()
	betID := uint(42)

	_, err := m.Adjust(ctx, Entry{UserID: 3, Delta: 330, Note: "win:9:4", PayoutBetID: &betID})
	require.NoError(t, err)

	_, err = m.Adjust(ctx, Entry{UserID: 3, Delta: 330, Note: "win:9:4", PayoutBetID: &betID})
	assert.ErrorIs(t, err, domain.ErrAlreadyPaid)
	assert.Equal(t, int64(330), testutil.Balance(t, db, 3), "duplicate payout must roll back its increment")
	testutil.RequireLedgerConsistent(t, db, 3)
}

func TestAdjustBalance_ConcurrentWritersKeepLedgerConsistent(t *testing.T) {
	db := testutil.NewDB(t)
	m := NewManager(store.NewWalletStore(db), nil)
	ctx := context.Background()

	_, err := m.AdjustBalance(ctx, 5, 100, "admin:topup")
	require.NoError(t, err)

	var wg sync.WaitGroup
	var mu sync.Mutex
	rejected := 0
	for i := 0; i < 30; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := m.AdjustBalance(ctx, 5, -10, "bet:A:1:1")
			if errors.Is(err, domain.ErrInsufficientFunds) {
				mu.Lock()
				rejected++
				mu.Unlock()
				return
			}
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 20, rejected)
	assert.Zero(t, testutil.Balance(t, db, 5))
	testutil.RequireLedgerConsistent(t, db, 5)
}

func TestReconcile(t *testing.T) {
	db := testutil.NewDB(t)
	m := NewManager(store.NewWalletStore(db), nil)
	ctx := context.Background()

	_, err := m.AdjustBalance(ctx, 2, 90, "admin:topup")
	require.NoError(t, err)
	_, err = m.AdjustBalance(ctx, 2, -30, "bet:B:4:12")
	require.NoError(t, err)

	r, err := m.Reconcile(ctx, 2)
	require.NoError(t, err)
	assert.True(t, r.Consistent())
	assert.Equal(t, int64(60), r.LedgerSum)

	// Simulate an out-of-band balance edit
	require.NoError(t, db.Model(&domain.Wallet{}).Where("user_id = ?", 2).Update("balance", 75).Error)
	r, err = m.Reconcile(ctx, 2)
	require.NoError(t, err)
	assert.False(t, r.Consistent())
	assert.Equal(t, int64(15), r.Drift)
}

func TestHistory_NewestFirst(t *testing.T) {
	db := testutil.NewDB(t)
	m := NewManager(store.NewWalletStore(db), nil)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		_, err := m.AdjustBalance(ctx, 8, int64(i*10), "admin:topup")
		require.NoError(t, err)
	}

	txns, total, err := m.History(ctx, 8, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, txns, 2)
	assert.Equal(t, int64(30), txns[0].Amount)
	assert.Equal(t, int64(60), txns[0].BalanceAfter)
}
