package draw

import (
	"context"
	"testing"
	"time"

	"lottery_system/internal/domain"
	"lottery_system/internal/store"
	"lottery_system/internal/testutil"
	"lottery_system/internal/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newMachine(t *testing.T) (*Machine, *utils.ManualClock, *gorm.DB) {
	t.Helper()
	db := testutil.NewDB(t)
	clock := utils.NewManualClock(testutil.Epoch)
	m := NewMachine(store.NewDrawStore(db), testutil.Lottery(), clock,
		WithFigurePicker(func() (int, error) { return 17, nil }))
	return m, clock, db
}

func TestSeed_CreatesOnePendingDrawPerGroup(t *testing.T) {
	m, _, db := newMachine(t)
	ctx := context.Background()

	d, created, err := m.Seed(ctx, domain.GroupB)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, domain.DrawScheduled, d.Status)
	assert.Equal(t, time.Date(2026, time.March, 10, 14, 0, 0, 0, time.UTC), d.ScheduledAt.UTC())

	again, created, err := m.Seed(ctx, domain.GroupB)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, d.ID, again.ID)

	var n int64
	require.NoError(t, db.Model(&domain.Draw{}).Where("group_code = ?", domain.GroupB).Count(&n).Error)
	assert.Equal(t, int64(1), n)
}

func TestSeed_DuplicateSlotCollapses(t *testing.T) {
	m, _, db := newMachine(t)
	ctx := context.Background()

	// A row for the same slot already exists but is closed, so FindPending misses it
	slot := time.Date(2026, time.March, 10, 10, 0, 0, 0, time.UTC)
	testutil.InsertDraw(t, db, domain.GroupA, domain.DrawClosed, slot)

	_, created, err := m.Seed(ctx, domain.GroupA)
	require.NoError(t, err)
	assert.False(t, created)
}

func TestLifecycle_TimeGates(t *testing.T) {
	m, clock, _ := newMachine(t)
	ctx := context.Background()

	d, _, err := m.Seed(ctx, domain.GroupA) // slot 10:00, now 08:00
	require.NoError(t, err)

	d, applied, err := m.Open(ctx, d.ID)
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, domain.DrawOpen, d.Status)
	require.NotNil(t, d.OpenedAt)

	_, _, err = m.Close(ctx, d.ID)
	assert.ErrorIs(t, err, domain.ErrDrawState, "cannot close before the lead window")

	clock.Set(time.Date(2026, time.March, 10, 9, 59, 0, 0, time.UTC))
	d, applied, err = m.Close(ctx, d.ID)
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, domain.DrawClosed, d.Status)
	assert.Nil(t, d.WinningFigure)

	_, _, err = m.Execute(ctx, d.ID, nil)
	assert.ErrorIs(t, err, domain.ErrDrawState, "cannot execute before the execution lag")

	clock.Advance(15 * time.Minute)
	d, applied, err = m.Execute(ctx, d.ID, nil)
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, domain.DrawExecuted, d.Status)
	require.NotNil(t, d.WinningFigure)
	assert.Equal(t, 17, *d.WinningFigure)
	assert.False(t, d.PayoutsApplied)
}

func TestTransitions_AreIdempotent(t *testing.T) {
	m, clock, db := newMachine(t)
	ctx := context.Background()
	d := testutil.InsertDraw(t, db, domain.GroupC, domain.DrawOpen, testutil.Epoch.Add(time.Minute))

	_, applied, err := m.Close(ctx, d.ID)
	require.NoError(t, err)
	assert.True(t, applied)

	again, applied, err := m.Close(ctx, d.ID)
	require.NoError(t, err)
	assert.False(t, applied)
	assert.Equal(t, domain.DrawClosed, again.Status)

	clock.Advance(time.Hour)
	first, applied, err := m.Execute(ctx, d.ID, nil)
	require.NoError(t, err)
	assert.True(t, applied)

	second, applied, err := m.Execute(ctx, d.ID, nil)
	require.NoError(t, err)
	assert.False(t, applied)
	assert.Equal(t, *first.WinningFigure, *second.WinningFigure)
	assert.Equal(t, first.ExecutedAt.UTC(), second.ExecutedAt.UTC())
}

func TestExecute_ForcedFigure(t *testing.T) {
	m, _, db := newMachine(t)
	ctx := context.Background()
	d := testutil.InsertDraw(t, db, domain.GroupD, domain.DrawOpen, testutil.Epoch.Add(3*time.Hour))

	five := 5
	got, applied, err := m.ForceExecute(ctx, d.ID, &five)
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, domain.DrawExecuted, got.Status)
	assert.Equal(t, 5, *got.WinningFigure)
	assert.NotNil(t, got.ClosedAt)

	_, applied, err = m.ForceExecute(ctx, d.ID, &five)
	require.NoError(t, err)
	assert.False(t, applied)

	six := 6
	_, _, err = m.ForceExecute(ctx, d.ID, &six)
	assert.ErrorIs(t, err, domain.ErrFigureConflict, "winning figure is assigned exactly once")

	bad := 37
	_, _, err = m.ForceExecute(ctx, d.ID, &bad)
	assert.ErrorIs(t, err, domain.ErrInvalidFigure)
}

func TestForceClose_OpensScheduledDrawFirst(t *testing.T) {
	m, _, db := newMachine(t)
	d := testutil.InsertDraw(t, db, domain.GroupA, domain.DrawScheduled, testutil.Epoch.Add(48*time.Hour))

	got, applied, err := m.ForceClose(context.Background(), d.ID)
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, domain.DrawClosed, got.Status)
	assert.NotNil(t, got.OpenedAt)
}

func TestOpen_RespectsOpenWindow(t *testing.T) {
	m, _, db := newMachine(t)
	d := testutil.InsertDraw(t, db, domain.GroupA, domain.DrawScheduled, testutil.Epoch.Add(48*time.Hour))

	_, _, err := m.Open(context.Background(), d.ID)
	assert.ErrorIs(t, err, domain.ErrDrawState)
}

func TestGet_NotFound(t *testing.T) {
	m, _, _ := newMachine(t)
	_, _, err := m.Close(context.Background(), 999)
	assert.ErrorIs(t, err, domain.ErrDrawNotFound)
}
