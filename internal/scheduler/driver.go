// Package scheduler advances every draw on a periodic, stateless tick.
package scheduler

import (
	"context"
	"errors"
	"time"

	"lottery_system/internal/config"
	"lottery_system/internal/domain"
	"lottery_system/internal/metrics"
	"lottery_system/internal/payout"
	"lottery_system/internal/utils"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// DrawQueries finds draws that are due for a transition
type DrawQueries interface {
	DueToOpen(ctx context.Context, deadline time.Time) ([]domain.Draw, error)
	DueToClose(ctx context.Context, deadline time.Time) ([]domain.Draw, error)
	DueToExecute(ctx context.Context, closedBy time.Time, limit int) ([]domain.Draw, error)
	PendingPayouts(ctx context.Context, limit int) ([]domain.Draw, error)
}

// Machine applies draw transitions
type Machine interface {
	Seed(ctx context.Context, group domain.Group) (*domain.Draw, bool, error)
	Open(ctx context.Context, id uint) (*domain.Draw, bool, error)
	Close(ctx context.Context, id uint) (*domain.Draw, bool, error)
	Execute(ctx context.Context, id uint, forced *int) (*domain.Draw, bool, error)
}

// Payer runs payouts for an executed draw
type Payer interface {
	ExecutePayouts(ctx context.Context, drawID uint) (*payout.Summary, error)
}

// ExecutedDraw reports a draw executed or paid by a tick
type ExecutedDraw struct {
	DrawID        uint         `json:"draw_id"`
	Group         domain.Group `json:"group"`
	WinningFigure int          `json:"winning_figure"`
	WinnersCount  int          `json:"winners_count"`
	FailedCredits int          `json:"failed_credits"`
	TotalApplied  int64        `json:"total_applied"`
}

// TickResult reports what one tick changed
type TickResult struct {
	TickID        string         `json:"tick_id"`
	ClosedCount   int            `json:"closed_count"`
	OpenedCount   int            `json:"opened_count"`
	SeededDraws   []domain.Draw  `json:"seeded_draws"`
	ExecutedDraws []ExecutedDraw `json:"executed_draws"`
	Errors        int            `json:"errors"`
}

// Driver runs ticks. It keeps no state between them.
type Driver struct {
	draws   DrawQueries
	machine Machine
	payer   Payer
	rules   config.Lottery
	clock   utils.Clock
}

// NewDriver creates a Driver
func NewDriver(draws DrawQueries, machine Machine, payer Payer, rules config.Lottery, clock utils.Clock) *Driver {
	return &Driver{draws: draws, machine: machine, payer: payer, rules: rules, clock: clock}
}

// Tick closes draws that reached their cutoff, seeds one pending draw per
// group, opens draws inside their open window, then executes and pays a
// bounded number of overdue draws. Running the same tick twice changes
// nothing the first run did not already change. A failure on one draw is
// logged and counted; the tick carries on with the others.
func (d *Driver) Tick(ctx context.Context) (*TickResult, error) {
	started := time.Now()
	res := &TickResult{TickID: uuid.NewString(), SeededDraws: []domain.Draw{}, ExecutedDraws: []ExecutedDraw{}}
	log := logrus.WithField("tick_id", res.TickID)
	now := d.clock.Now()

	fail := func(err error, msg string, fields logrus.Fields) {
		res.Errors++
		log.WithFields(fields).WithError(err).Error(msg)
	}

	due, err := d.draws.DueToClose(ctx, now.Add(d.rules.LeadWindow))
	if err != nil {
		return d.finish(res, started, err)
	}
	for _, dr := range due {
		_, applied, err := d.machine.Close(ctx, dr.ID)
		if err != nil {
			fail(err, "Close failed", logrus.Fields{"draw_id": dr.ID})
			continue
		}
		if applied {
			res.ClosedCount++
		}
	}

	for _, g := range domain.Groups {
		dr, created, err := d.machine.Seed(ctx, g)
		if err != nil {
			fail(err, "Seed failed", logrus.Fields{"group": g})
			continue
		}
		if created {
			res.SeededDraws = append(res.SeededDraws, *dr)
		}
	}

	toOpen, err := d.draws.DueToOpen(ctx, now.Add(d.rules.OpenWindow))
	if err != nil {
		return d.finish(res, started, err)
	}
	for _, dr := range toOpen {
		_, applied, err := d.machine.Open(ctx, dr.ID)
		if err != nil {
			fail(err, "Open failed", logrus.Fields{"draw_id": dr.ID})
			continue
		}
		if applied {
			res.OpenedCount++
		}
	}

	limit := d.rules.MaxExecutePerTick
	if limit <= 0 {
		limit = 1
	}
	overdue, err := d.draws.DueToExecute(ctx, now.Add(-d.rules.ExecutionLag), limit)
	if err != nil {
		return d.finish(res, started, err)
	}
	for _, dr := range overdue {
		if _, _, err := d.machine.Execute(ctx, dr.ID, nil); err != nil {
			fail(err, "Execute failed", logrus.Fields{"draw_id": dr.ID})
		}
	}

	// Includes the draws executed above and any left unpaid by an earlier tick
	unpaid, err := d.draws.PendingPayouts(ctx, limit)
	if err != nil {
		return d.finish(res, started, err)
	}
	for _, dr := range unpaid {
		sum, err := d.payer.ExecutePayouts(ctx, dr.ID)
		if err != nil {
			fail(err, "Payout run failed", logrus.Fields{"draw_id": dr.ID})
			continue
		}
		if sum.Failed > 0 {
			res.Errors++
		}
		res.ExecutedDraws = append(res.ExecutedDraws, ExecutedDraw{
			DrawID:        dr.ID,
			Group:         dr.GroupCode,
			WinningFigure: sum.WinningFigure,
			WinnersCount:  sum.WinnersCount,
			FailedCredits: sum.Failed,
			TotalApplied:  sum.TotalApplied,
		})
	}

	return d.finish(res, started, nil)
}

func (d *Driver) finish(res *TickResult, started time.Time, err error) (*TickResult, error) {
	metrics.TickDuration.Observe(time.Since(started).Seconds())
	log := logrus.WithFields(logrus.Fields{
		"tick_id":  res.TickID,
		"closed":   res.ClosedCount,
		"opened":   res.OpenedCount,
		"seeded":   len(res.SeededDraws),
		"executed": len(res.ExecutedDraws),
		"errors":   res.Errors,
	})
	if err != nil {
		metrics.SchedulerTicks.WithLabelValues("error").Inc()
		log.WithError(err).Error("Scheduler tick aborted")
		return res, err
	}
	if res.Errors > 0 {
		metrics.SchedulerTicks.WithLabelValues("partial").Inc()
		log.Warn("Scheduler tick finished with errors")
	} else {
		metrics.SchedulerTicks.WithLabelValues("ok").Inc()
		log.Info("Scheduler tick finished")
	}
	return res, nil
}

// Run ticks every interval until ctx is cancelled. Tick errors are logged and
// the loop keeps going; the next tick retries whatever was left undone.
func (d *Driver) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if _, err := d.Tick(ctx); err != nil && errors.Is(err, context.Canceled) {
			return nil
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
