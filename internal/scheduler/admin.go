package scheduler

import (
	"context"
	"fmt"

	"lottery_system/internal/domain"
	"lottery_system/internal/payout"

	"github.com/sirupsen/logrus"
)

// Manual draw operations
const (
	OpSeedNext   = "seed_next"
	OpCloseNow   = "close_now"
	OpExecuteNow = "execute_now"
)

// ForcingMachine is the machine surface admin operations need
type ForcingMachine interface {
	Machine
	Get(ctx context.Context, id uint) (*domain.Draw, error)
	Current(ctx context.Context, group domain.Group, status domain.DrawStatus) (*domain.Draw, error)
	ForceClose(ctx context.Context, id uint) (*domain.Draw, bool, error)
	ForceExecute(ctx context.Context, id uint, forced *int) (*domain.Draw, bool, error)
}

// Repayer pays draws and recovers winners a failed credit left unpaid
type Repayer interface {
	Payer
	RetryFailed(ctx context.Context, drawID uint) (*payout.Summary, error)
}

// OpResult reports a manual operation
type OpResult struct {
	Draw    *domain.Draw    `json:"draw"`
	Applied bool            `json:"applied"`
	Payout  *payout.Summary `json:"payout,omitempty"`
}

// Operator runs admin draw operations outside the tick, skipping time gates
type Operator struct {
	machine ForcingMachine
	payer   Repayer
}

// NewOperator creates an Operator
func NewOperator(machine ForcingMachine, payer Repayer) *Operator {
	return &Operator{machine: machine, payer: payer}
}

// Run applies op to the group's current draw
func (o *Operator) Run(ctx context.Context, group domain.Group, op string) (*OpResult, error) {
	log := logrus.WithFields(logrus.Fields{"group": group, "op": op})
	var (
		res *OpResult
		err error
	)
	switch op {
	case OpSeedNext:
		var d *domain.Draw
		var created bool
		if d, created, err = o.machine.Seed(ctx, group); err == nil {
			res = &OpResult{Draw: d, Applied: created}
		}
	case OpCloseNow:
		res, err = o.closeNow(ctx, group)
	case OpExecuteNow:
		res, err = o.executeNow(ctx, group)
	default:
		return nil, domain.ErrInvalidOperation
	}
	if err != nil {
		log.WithError(err).Warn("Admin draw operation failed")
		return nil, err
	}
	log.WithFields(logrus.Fields{"draw_id": res.Draw.ID, "applied": res.Applied}).Info("Admin draw operation")
	return res, nil
}

func (o *Operator) closeNow(ctx context.Context, group domain.Group) (*OpResult, error) {
	target, err := o.current(ctx, group, domain.DrawOpen, domain.DrawScheduled)
	if err != nil {
		return nil, err
	}
	d, applied, err := o.machine.ForceClose(ctx, target.ID)
	if err != nil {
		return nil, err
	}
	return &OpResult{Draw: d, Applied: applied}, nil
}

func (o *Operator) executeNow(ctx context.Context, group domain.Group) (*OpResult, error) {
	target, err := o.current(ctx, group, domain.DrawClosed, domain.DrawOpen, domain.DrawScheduled)
	if err != nil {
		return nil, err
	}
	return o.execute(ctx, target.ID, nil)
}

// PostResult executes the draw with a chosen winning figure and pays it out.
// Posting the same figure again only retries unfinished payouts.
func (o *Operator) PostResult(ctx context.Context, drawID uint, figure int) (*OpResult, error) {
	if !domain.ValidFigure(figure) {
		return nil, domain.ErrInvalidFigure
	}
	res, err := o.execute(ctx, drawID, &figure)
	if err != nil {
		logrus.WithFields(logrus.Fields{"draw_id": drawID, "figure": figure}).WithError(err).Warn("Posting draw result failed")
		return nil, err
	}
	return res, nil
}

// Repay credits the winners of an executed draw that still have no win row,
// even when the draw is already flagged paid.
func (o *Operator) Repay(ctx context.Context, drawID uint) (*OpResult, error) {
	log := logrus.WithField("draw_id", drawID)
	sum, err := o.payer.RetryFailed(ctx, drawID)
	if err != nil {
		log.WithError(err).Warn("Repaying draw failed")
		return nil, err
	}
	d, err := o.machine.Get(ctx, drawID)
	if err != nil {
		return nil, err
	}
	log.WithFields(logrus.Fields{"credited": sum.WinnersCount, "failed": sum.Failed}).Info("Draw repaid")
	return &OpResult{Draw: d, Applied: sum.WinnersCount > 0, Payout: sum}, nil
}

func (o *Operator) execute(ctx context.Context, id uint, forced *int) (*OpResult, error) {
	d, applied, err := o.machine.ForceExecute(ctx, id, forced)
	if err != nil {
		return nil, err
	}
	sum, err := o.payer.ExecutePayouts(ctx, d.ID)
	if err != nil {
		return nil, fmt.Errorf("pay draw %d: %w", d.ID, err)
	}
	d.PayoutsApplied = sum.PayoutsApplied
	return &OpResult{Draw: d, Applied: applied, Payout: sum}, nil
}

// current picks the group's latest draw in the first status that has one
func (o *Operator) current(ctx context.Context, group domain.Group, statuses ...domain.DrawStatus) (*domain.Draw, error) {
	for _, s := range statuses {
		d, err := o.machine.Current(ctx, group, s)
		if err != nil {
			return nil, err
		}
		if d != nil {
			return d, nil
		}
	}
	return nil, domain.ErrNoDraw
}
