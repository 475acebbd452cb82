// Package draw drives draws through scheduled -> open -> closed -> executed.
//
// Every transition is a conditional write guarded by the current status, so
// concurrent or repeated callers (retried scheduler ticks, an admin racing
// the scheduler) apply each transition at most once. A call that finds the
// work already done reports applied=false instead of failing.
package draw

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"lottery_system/internal/config"
	"lottery_system/internal/domain"
	"lottery_system/internal/metrics"
	"lottery_system/internal/utils"

	"github.com/sirupsen/logrus"
)

// Store persists draws
type Store interface {
	Create(ctx context.Context, d *domain.Draw) (bool, error)
	Get(ctx context.Context, id uint) (*domain.Draw, error)
	FindPending(ctx context.Context, group domain.Group, after time.Time) (*domain.Draw, error)
	LatestWithStatus(ctx context.Context, group domain.Group, status domain.DrawStatus) (*domain.Draw, error)
	Transition(ctx context.Context, id uint, from domain.DrawStatus, updates map[string]any) (bool, error)
}

// Machine applies draw transitions
type Machine struct {
	store Store
	rules config.Lottery
	clock utils.Clock
	pick  func() (int, error)
}

// Option customises a Machine
type Option func(*Machine)

// WithFigurePicker replaces the random winning figure source
func WithFigurePicker(pick func() (int, error)) Option {
	return func(m *Machine) { m.pick = pick }
}

// NewMachine creates a Machine
func NewMachine(store Store, rules config.Lottery, clock utils.Clock, opts ...Option) *Machine {
	m := &Machine{store: store, rules: rules, clock: clock, pick: randomFigure}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func randomFigure() (int, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(domain.MaxFigure))
	if err != nil {
		return 0, err
	}
	return int(n.Int64()) + domain.MinFigure, nil
}

// Get loads a draw
func (m *Machine) Get(ctx context.Context, id uint) (*domain.Draw, error) {
	return m.store.Get(ctx, id)
}

// Current returns the group's latest draw in status, or nil
func (m *Machine) Current(ctx context.Context, group domain.Group, status domain.DrawStatus) (*domain.Draw, error) {
	return m.store.LatestWithStatus(ctx, group, status)
}

// Seed makes sure the group has a pending draw with a future slot. It returns
// the pending draw and whether this call created it.
func (m *Machine) Seed(ctx context.Context, group domain.Group) (*domain.Draw, bool, error) {
	now := m.clock.Now()
	pending, err := m.store.FindPending(ctx, group, now)
	if err != nil {
		return nil, false, fmt.Errorf("seed %s: find pending: %w", group, err)
	}
	if pending != nil {
		return pending, false, nil
	}
	at, err := NextSlot(now, group, m.rules)
	if err != nil {
		return nil, false, err
	}
	d := &domain.Draw{GroupCode: group, Status: domain.DrawScheduled, ScheduledAt: at}
	created, err := m.store.Create(ctx, d)
	if err != nil {
		return nil, false, fmt.Errorf("seed %s: %w", group, err)
	}
	if !created {
		// Another tick seeded the same slot first
		pending, err = m.store.FindPending(ctx, group, now)
		if err != nil {
			return nil, false, fmt.Errorf("seed %s: reload: %w", group, err)
		}
		return pending, false, nil
	}
	metrics.DrawTransitions.WithLabelValues(string(domain.DrawScheduled)).Inc()
	logrus.WithFields(logrus.Fields{
		"draw_id":      d.ID,
		"group":        group,
		"scheduled_at": at.Format(time.RFC3339),
	}).Info("Draw seeded")
	return d, true, nil
}

// Open moves a scheduled draw to open once its slot is within the open window
func (m *Machine) Open(ctx context.Context, id uint) (*domain.Draw, bool, error) {
	return m.open(ctx, id, true)
}

func (m *Machine) open(ctx context.Context, id uint, gated bool) (*domain.Draw, bool, error) {
	d, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, false, err
	}
	if d.Status != domain.DrawScheduled {
		return d, false, nil
	}
	now := m.clock.Now()
	if opensAt := d.ScheduledAt.Add(-m.rules.OpenWindow); gated && now.Before(opensAt) {
		return d, false, fmt.Errorf("%w: draw %d opens at %s", domain.ErrDrawState, id, opensAt.Format(time.RFC3339))
	}
	return m.transition(ctx, d, domain.DrawOpen, map[string]any{"opened_at": now})
}

// Close moves an open draw to closed once its betting cutoff has passed
func (m *Machine) Close(ctx context.Context, id uint) (*domain.Draw, bool, error) {
	return m.close(ctx, id, true)
}

// ForceClose closes a draw regardless of its cutoff, opening it first when still scheduled
func (m *Machine) ForceClose(ctx context.Context, id uint) (*domain.Draw, bool, error) {
	return m.close(ctx, id, false)
}

func (m *Machine) close(ctx context.Context, id uint, gated bool) (*domain.Draw, bool, error) {
	d, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, false, err
	}
	if d.Status == domain.DrawScheduled {
		if gated {
			return d, false, fmt.Errorf("%w: draw %d is not open", domain.ErrDrawState, id)
		}
		if d, _, err = m.open(ctx, id, false); err != nil {
			return nil, false, err
		}
	}
	if d.Status != domain.DrawOpen {
		return d, false, nil
	}
	now := m.clock.Now()
	if cutoff := d.CutoffAt(m.rules.LeadWindow); gated && now.Before(cutoff) {
		return d, false, fmt.Errorf("%w: draw %d closes at %s", domain.ErrDrawState, id, cutoff.Format(time.RFC3339))
	}
	return m.transition(ctx, d, domain.DrawClosed, map[string]any{"closed_at": now})
}

// Execute moves a closed draw to executed once the execution lag has passed,
// assigning its winning figure in the same write. forced, when set, overrides
// the random figure.
func (m *Machine) Execute(ctx context.Context, id uint, forced *int) (*domain.Draw, bool, error) {
	return m.execute(ctx, id, forced, true)
}

// ForceExecute executes a draw immediately, closing it first when needed
func (m *Machine) ForceExecute(ctx context.Context, id uint, forced *int) (*domain.Draw, bool, error) {
	return m.execute(ctx, id, forced, false)
}

func (m *Machine) execute(ctx context.Context, id uint, forced *int, gated bool) (*domain.Draw, bool, error) {
	if forced != nil && !domain.ValidFigure(*forced) {
		return nil, false, domain.ErrInvalidFigure
	}
	d, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, false, err
	}
	if d.Status == domain.DrawScheduled || d.Status == domain.DrawOpen {
		if gated {
			return d, false, fmt.Errorf("%w: draw %d is not closed", domain.ErrDrawState, id)
		}
		if d, _, err = m.close(ctx, id, false); err != nil {
			return nil, false, err
		}
	}
	if d.Status == domain.DrawExecuted {
		return d, false, figureConflict(d, forced)
	}
	now := m.clock.Now()
	if d.ClosedAt != nil && gated {
		if due := d.ClosedAt.Add(m.rules.ExecutionLag); now.Before(due) {
			return d, false, fmt.Errorf("%w: draw %d executes at %s", domain.ErrDrawState, id, due.Format(time.RFC3339))
		}
	}
	figure, err := m.winningFigure(forced)
	if err != nil {
		return nil, false, fmt.Errorf("pick winning figure for draw %d: %w", id, err)
	}
	d, applied, err := m.transition(ctx, d, domain.DrawExecuted, map[string]any{
		"executed_at":    now,
		"winning_figure": figure,
	})
	if err != nil {
		return nil, false, err
	}
	if !applied {
		return d, false, figureConflict(d, forced)
	}
	return d, true, nil
}

func (m *Machine) winningFigure(forced *int) (int, error) {
	if forced != nil {
		return *forced, nil
	}
	if m.rules.ForcedFigure != 0 {
		return m.rules.ForcedFigure, nil
	}
	return m.pick()
}

func figureConflict(d *domain.Draw, forced *int) error {
	if forced != nil && d.WinningFigure != nil && *d.WinningFigure != *forced {
		return fmt.Errorf("%w: draw %d drew %d", domain.ErrFigureConflict, d.ID, *d.WinningFigure)
	}
	return nil
}

func (m *Machine) transition(ctx context.Context, d *domain.Draw, to domain.DrawStatus, updates map[string]any) (*domain.Draw, bool, error) {
	from := d.Status
	updates["status"] = to
	applied, err := m.store.Transition(ctx, d.ID, from, updates)
	if err != nil {
		return nil, false, err
	}
	fresh, err := m.store.Get(ctx, d.ID)
	if err != nil {
		return nil, false, err
	}
	if applied {
		metrics.DrawTransitions.WithLabelValues(string(to)).Inc()
		fields := logrus.Fields{
			"draw_id": d.ID,
			"group":   d.GroupCode,
			"from":    from,
			"to":      to,
		}
		if fresh.WinningFigure != nil {
			fields["winning_figure"] = *fresh.WinningFigure
		}
		logrus.WithFields(fields).Info("Draw transitioned")
	}
	return fresh, applied, nil
}
