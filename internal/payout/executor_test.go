package payout

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"lottery_system/internal/config"
	"lottery_system/internal/domain"
	"lottery_system/internal/ledger"
	"lottery_system/internal/store"
	"lottery_system/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// failingCrediter rejects credits for one user
type failingCrediter struct {
	next   Crediter
	failOn uint
}

func (f *failingCrediter) Adjust(ctx context.Context, e ledger.Entry) (*domain.WalletTxn, error) {
	if e.UserID == f.failOn {
		return nil, fmt.Errorf("%w: deadlock found", domain.ErrLedgerWrite)
	}
	return f.next.Adjust(ctx, e)
}

type fixture struct {
	db       *gorm.DB
	exec     *Executor
	crediter *failingCrediter
}

func newFixture(t *testing.T, rules config.Lottery) *fixture {
	t.Helper()
	db := testutil.NewDB(t)
	wallets := store.NewWalletStore(db)
	crediter := &failingCrediter{next: ledger.NewManager(wallets, nil)}
	exec := NewExecutor(store.NewDrawStore(db), store.NewBetStore(db), wallets, crediter, rules)
	return &fixture{db: db, exec: exec, crediter: crediter}
}

func (f *fixture) executedDraw(t *testing.T, figure int) *domain.Draw {
	t.Helper()
	d := testutil.InsertDraw(t, f.db, domain.GroupA, domain.DrawExecuted, testutil.Epoch.Add(-time.Hour))
	require.NoError(t, f.db.Model(d).Updates(map[string]any{
		"winning_figure": figure,
		"executed_at":    testutil.Epoch,
	}).Error)
	return d
}

func (f *fixture) bet(t *testing.T, userID, drawID uint, figure int, amount int64) {
	t.Helper()
	require.NoError(t, f.db.Create(&domain.Bet{
		UserID: userID, DrawID: drawID, GroupCode: domain.GroupA, Figure: figure, Amount: amount,
	}).Error)
}

func (f *fixture) paid(t *testing.T, drawID uint) bool {
	t.Helper()
	var d domain.Draw
	require.NoError(t, f.db.First(&d, drawID).Error)
	return d.PayoutsApplied
}

func TestExecutePayouts_SingleWinner(t *testing.T) {
	f := newFixture(t, testutil.Lottery())
	d := f.executedDraw(t, 5)
	f.bet(t, 1, d.ID, 5, 40)
	f.bet(t, 2, d.ID, 6, 40)

	sum, err := f.exec.ExecutePayouts(context.Background(), d.ID)
	require.NoError(t, err)
	require.NoError(t, sum.Err())

	assert.Equal(t, 1, sum.WinnersCount)
	assert.Equal(t, int64(1320), sum.TotalApplied)
	assert.True(t, sum.PayoutsApplied)
	assert.True(t, f.paid(t, d.ID))

	txns := testutil.Txns(t, f.db, 1)
	require.Len(t, txns, 1)
	assert.Equal(t, domain.TxnWin, txns[0].Type)
	assert.Equal(t, int64(1320), txns[0].Amount)
	assert.Equal(t, fmt.Sprintf("win:%d:5", d.ID), txns[0].Note)
	assert.Equal(t, int64(1320), testutil.Balance(t, f.db, 1))
	assert.Empty(t, testutil.Txns(t, f.db, 2))
}

func TestExecutePayouts_SecondCallIsNoOp(t *testing.T) {
	f := newFixture(t, testutil.Lottery())
	d := f.executedDraw(t, 12)
	f.bet(t, 1, d.ID, 12, 10)
	f.bet(t, 3, d.ID, 12, 5)
	ctx := context.Background()

	first, err := f.exec.ExecutePayouts(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, first.WinnersCount)

	second, err := f.exec.ExecutePayouts(ctx, d.ID)
	require.NoError(t, err)
	assert.Zero(t, second.WinnersCount)
	assert.True(t, second.NoOp)

	assert.Len(t, testutil.Txns(t, f.db, 1), 1)
	assert.Len(t, testutil.Txns(t, f.db, 3), 1)
	assert.Equal(t, int64(330), testutil.Balance(t, f.db, 1))
	assert.Equal(t, int64(165), testutil.Balance(t, f.db, 3))
}

func TestExecutePayouts_PartialFailure(t *testing.T) {
	f := newFixture(t, testutil.Lottery())
	d := f.executedDraw(t, 7)
	f.bet(t, 1, d.ID, 7, 10)
	f.bet(t, 2, d.ID, 7, 10)
	f.bet(t, 3, d.ID, 7, 10)
	f.crediter.failOn = 2

	sum, err := f.exec.ExecutePayouts(context.Background(), d.ID)
	require.NoError(t, err, "an individual credit failure does not fail the run")
	assert.Equal(t, 3, sum.Attempted)
	assert.Equal(t, 2, sum.WinnersCount)
	assert.Equal(t, 1, sum.Failed)
	assert.Equal(t, int64(660), sum.TotalApplied)
	assert.True(t, f.paid(t, d.ID))
	assert.ErrorIs(t, sum.Err(), domain.ErrPayoutPartial)
	assert.Zero(t, testutil.Balance(t, f.db, 2))
}

func TestExecutePayouts_RetryAfterFlagWithoutRows(t *testing.T) {
	f := newFixture(t, testutil.Lottery())
	d := f.executedDraw(t, 3)
	f.bet(t, 4, d.ID, 3, 2)
	// Flag set but no win rows: a previous run died between credits and the flag
	require.NoError(t, f.db.Model(d).Update("payouts_applied", true).Error)

	sum, err := f.exec.ExecutePayouts(context.Background(), d.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.WinnersCount)
	assert.Equal(t, int64(66), testutil.Balance(t, f.db, 4))
}

func TestExecutePayouts_SkipsBetsAlreadyPaid(t *testing.T) {
	f := newFixture(t, testutil.Lottery())
	d := f.executedDraw(t, 9)
	f.bet(t, 1, d.ID, 9, 10)
	f.bet(t, 2, d.ID, 9, 10)
	f.crediter.failOn = 2
	ctx := context.Background()

	_, err := f.exec.ExecutePayouts(ctx, d.ID)
	require.NoError(t, err)

	// Simulate the run being retried before the flag landed
	require.NoError(t, f.db.Model(d).Update("payouts_applied", false).Error)
	f.crediter.failOn = 0

	sum, err := f.exec.ExecutePayouts(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.WinnersCount)
	assert.Equal(t, 1, sum.Skipped)
	assert.Equal(t, int64(330), testutil.Balance(t, f.db, 1), "first winner is not paid twice")
	assert.Equal(t, int64(330), testutil.Balance(t, f.db, 2))
}

func TestRetryFailed_PaysWinnerLeftByFailedCredit(t *testing.T) {
	f := newFixture(t, testutil.Lottery())
	d := f.executedDraw(t, 14)
	f.bet(t, 1, d.ID, 14, 10)
	f.bet(t, 2, d.ID, 14, 10)
	f.crediter.failOn = 2
	ctx := context.Background()

	first, err := f.exec.ExecutePayouts(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Failed)
	assert.True(t, f.paid(t, d.ID))
	f.crediter.failOn = 0

	// A plain rerun of a paid draw stays a no-op
	again, err := f.exec.ExecutePayouts(ctx, d.ID)
	require.NoError(t, err)
	assert.True(t, again.NoOp)
	assert.Zero(t, testutil.Balance(t, f.db, 2))

	sum, err := f.exec.RetryFailed(ctx, d.ID)
	require.NoError(t, err)
	require.NoError(t, sum.Err())
	assert.Equal(t, 1, sum.WinnersCount)
	assert.Equal(t, 1, sum.Skipped)
	assert.Equal(t, int64(330), sum.TotalApplied)
	assert.Equal(t, int64(330), testutil.Balance(t, f.db, 1))
	assert.Equal(t, int64(330), testutil.Balance(t, f.db, 2))

	sum, err = f.exec.RetryFailed(ctx, d.ID)
	require.NoError(t, err)
	assert.Zero(t, sum.WinnersCount)
	assert.Equal(t, 2, sum.Skipped)
	assert.Len(t, testutil.Txns(t, f.db, 2), 1)
	testutil.RequireLedgerConsistent(t, f.db, 1)
	testutil.RequireLedgerConsistent(t, f.db, 2)
}

func TestRetryFailed_RequiresExecutedDraw(t *testing.T) {
	f := newFixture(t, testutil.Lottery())
	d := testutil.InsertDraw(t, f.db, domain.GroupC, domain.DrawOpen, testutil.Epoch)

	_, err := f.exec.RetryFailed(context.Background(), d.ID)
	assert.ErrorIs(t, err, domain.ErrDrawState)
}

func TestExecutePayouts_StakeBeyondPayoutRange(t *testing.T) {
	rules := testutil.Lottery()
	f := newFixture(t, rules)
	d := f.executedDraw(t, 2)
	f.bet(t, 1, d.ID, 2, rules.MaxStake()+1)
	f.bet(t, 2, d.ID, 2, 10)
	testutil.Fund(t, f.db, 1, 1000)

	sum, err := f.exec.ExecutePayouts(context.Background(), d.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.WinnersCount)
	assert.Equal(t, 1, sum.Failed)
	assert.Equal(t, int64(330), sum.TotalApplied)
	assert.Equal(t, int64(1000), testutil.Balance(t, f.db, 1), "an out of range stake never moves the wallet")
	assert.Len(t, testutil.Txns(t, f.db, 1), 1)
}

func TestExecutePayouts_ParallelWorkers(t *testing.T) {
	rules := testutil.Lottery()
	rules.PayoutWorkers = 4
	f := newFixture(t, rules)
	d := f.executedDraw(t, 1)
	for u := uint(1); u <= 12; u++ {
		f.bet(t, u, d.ID, 1, int64(u))
	}

	sum, err := f.exec.ExecutePayouts(context.Background(), d.ID)
	require.NoError(t, err)
	assert.Equal(t, 12, sum.WinnersCount)
	assert.Equal(t, int64(78*33), sum.TotalApplied)
	for u := uint(1); u <= 12; u++ {
		testutil.RequireLedgerConsistent(t, f.db, u)
	}
}

func TestExecutePayouts_NoWinners(t *testing.T) {
	f := newFixture(t, testutil.Lottery())
	d := f.executedDraw(t, 36)
	f.bet(t, 1, d.ID, 35, 10)

	sum, err := f.exec.ExecutePayouts(context.Background(), d.ID)
	require.NoError(t, err)
	assert.Zero(t, sum.WinnersCount)
	assert.True(t, f.paid(t, d.ID))
}

func TestExecutePayouts_RequiresExecutedDraw(t *testing.T) {
	f := newFixture(t, testutil.Lottery())
	d := testutil.InsertDraw(t, f.db, domain.GroupB, domain.DrawClosed, testutil.Epoch)

	_, err := f.exec.ExecutePayouts(context.Background(), d.ID)
	assert.ErrorIs(t, err, domain.ErrDrawState)

	_, err = f.exec.ExecutePayouts(context.Background(), 404)
	assert.True(t, errors.Is(err, domain.ErrDrawNotFound))
}
