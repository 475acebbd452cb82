package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"lottery_system/internal/domain"
	"lottery_system/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestTranslate(t *testing.T) {
	assert.NoError(t, translate(nil))
	assert.ErrorIs(t, translate(gorm.ErrDuplicatedKey), ErrDuplicate)
	assert.ErrorIs(t, translate(errors.New("UNIQUE constraint failed: draws.group_code")), ErrDuplicate)
	assert.ErrorIs(t, translate(errors.New("Error 1062: Duplicate entry 'A-2026' for key 'idx_draw_slot'")), ErrDuplicate)
	other := errors.New("connection reset")
	assert.Equal(t, other, translate(other))
}

func TestDrawStore_CreateCollapsesSameSlot(t *testing.T) {
	s := NewDrawStore(testutil.NewDB(t))
	ctx := context.Background()
	slot := testutil.Epoch.Add(2 * time.Hour)

	created, err := s.Create(ctx, &domain.Draw{GroupCode: domain.GroupA, Status: domain.DrawScheduled, ScheduledAt: slot})
	require.NoError(t, err)
	assert.True(t, created)

	created, err = s.Create(ctx, &domain.Draw{GroupCode: domain.GroupA, Status: domain.DrawScheduled, ScheduledAt: slot})
	require.NoError(t, err)
	assert.False(t, created)

	created, err = s.Create(ctx, &domain.Draw{GroupCode: domain.GroupB, Status: domain.DrawScheduled, ScheduledAt: slot})
	require.NoError(t, err)
	assert.True(t, created, "other groups may share the instant")
}

func TestDrawStore_TransitionIsGuarded(t *testing.T) {
	db := testutil.NewDB(t)
	s := NewDrawStore(db)
	ctx := context.Background()
	d := testutil.InsertDraw(t, db, domain.GroupC, domain.DrawOpen, testutil.Epoch)

	applied, err := s.Transition(ctx, d.ID, domain.DrawOpen, map[string]any{"status": domain.DrawClosed, "closed_at": testutil.Epoch})
	require.NoError(t, err)
	assert.True(t, applied)

	applied, err = s.Transition(ctx, d.ID, domain.DrawOpen, map[string]any{"status": domain.DrawClosed, "closed_at": testutil.Epoch})
	require.NoError(t, err)
	assert.False(t, applied)

	_, err = s.Get(ctx, 12345)
	assert.ErrorIs(t, err, domain.ErrDrawNotFound)
}

func TestDrawStore_MarkPayoutsAppliedOnce(t *testing.T) {
	db := testutil.NewDB(t)
	s := NewDrawStore(db)
	ctx := context.Background()
	d := testutil.InsertDraw(t, db, domain.GroupD, domain.DrawExecuted, testutil.Epoch)

	flipped, err := s.MarkPayoutsApplied(ctx, d.ID)
	require.NoError(t, err)
	assert.True(t, flipped)

	flipped, err = s.MarkPayoutsApplied(ctx, d.ID)
	require.NoError(t, err)
	assert.False(t, flipped)

	pending, err := s.PendingPayouts(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestDrawStore_DueQueries(t *testing.T) {
	db := testutil.NewDB(t)
	s := NewDrawStore(db)
	ctx := context.Background()
	now := testutil.Epoch

	testutil.InsertDraw(t, db, domain.GroupA, domain.DrawOpen, now.Add(30*time.Second))
	testutil.InsertDraw(t, db, domain.GroupB, domain.DrawOpen, now.Add(time.Hour))
	testutil.InsertDraw(t, db, domain.GroupC, domain.DrawScheduled, now.Add(10*time.Hour))
	testutil.InsertDraw(t, db, domain.GroupD, domain.DrawScheduled, now.Add(48*time.Hour))

	due, err := s.DueToClose(ctx, now.Add(time.Minute))
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, domain.GroupA, due[0].GroupCode)

	toOpen, err := s.DueToOpen(ctx, now.Add(24*time.Hour))
	require.NoError(t, err)
	require.Len(t, toOpen, 1)
	assert.Equal(t, domain.GroupC, toOpen[0].GroupCode)

	pending, err := s.FindPending(ctx, domain.GroupD, now)
	require.NoError(t, err)
	require.NotNil(t, pending)

	none, err := s.LatestOpen(ctx, domain.GroupD)
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestWalletStore_ApplyDelta(t *testing.T) {
	db := testutil.NewDB(t)
	s := NewWalletStore(db)
	ctx := context.Background()

	txn := &domain.WalletTxn{UserID: 9, Type: domain.TxnCredit, Amount: 25, Note: "admin:1:seed"}
	require.NoError(t, s.ApplyDelta(ctx, txn))
	assert.Equal(t, int64(25), txn.BalanceAfter)
	assert.NotZero(t, txn.ID)

	err := s.ApplyDelta(ctx, &domain.WalletTxn{UserID: 9, Type: domain.TxnBet, Amount: -26, Note: "bet:A:1:1"})
	assert.ErrorIs(t, err, domain.ErrInsufficientFunds)

	betID := uint(3)
	require.NoError(t, s.ApplyDelta(ctx, &domain.WalletTxn{UserID: 9, Type: domain.TxnWin, Amount: 33, Note: "win:1:1", PayoutBetID: &betID}))
	err = s.ApplyDelta(ctx, &domain.WalletTxn{UserID: 9, Type: domain.TxnWin, Amount: 33, Note: "win:1:1", PayoutBetID: &betID})
	assert.ErrorIs(t, err, domain.ErrAlreadyPaid)

	paid, err := s.PayoutExists(ctx, betID)
	require.NoError(t, err)
	assert.True(t, paid)

	found, err := s.HasNotePrefix(ctx, "win:1:")
	require.NoError(t, err)
	assert.True(t, found)
	found, err = s.HasNotePrefix(ctx, "win:2:")
	require.NoError(t, err)
	assert.False(t, found)

	sum, err := s.SumDeltas(ctx, 9)
	require.NoError(t, err)
	assert.Equal(t, int64(58), sum)
	assert.Equal(t, int64(58), testutil.Balance(t, db, 9))

	txns, total, err := s.ListTxns(ctx, 9, 0, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, txns, 1)
	assert.Equal(t, domain.TxnWin, txns[0].Type)
}
