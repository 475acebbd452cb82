// Package betting places wager batches against draws.
//
// A batch is checked in full before anything is written: every wager is
// validated, every target draw resolved and the total stake compared with the
// balance, so validation, state and balance failures leave no trace. Wagers
// are then applied one at a time in request order. A wager whose bet row
// cannot be stored is refunded with a bet_rollback credit and the rest of the
// batch is abandoned; wagers applied before it stay applied and are reported
// back to the caller.
package betting

import (
	"context"
	"errors"
	"fmt"
	"time"

	"lottery_system/internal/config"
	"lottery_system/internal/domain"
	"lottery_system/internal/metrics"
	"lottery_system/internal/utils"

	"github.com/sirupsen/logrus"
)

// DrawFinder resolves target draws
type DrawFinder interface {
	Get(ctx context.Context, id uint) (*domain.Draw, error)
	LatestOpen(ctx context.Context, group domain.Group) (*domain.Draw, error)
	NearestScheduled(ctx context.Context, group domain.Group, after time.Time) (*domain.Draw, error)
}

// BetWriter persists bets
type BetWriter interface {
	Create(ctx context.Context, b *domain.Bet) error
}

// Ledger moves stakes in and out of wallets
type Ledger interface {
	AdjustBalance(ctx context.Context, userID uint, delta int64, note string) (int64, error)
	Balance(ctx context.Context, userID uint) (int64, error)
}

// Wager is one requested bet
type Wager struct {
	Group  string `json:"group"`
	Figure int    `json:"figure"`
	Amount int64  `json:"amount"`
}

// Result describes an applied batch
type Result struct {
	Bets         []domain.Bet `json:"bets"`
	BalanceAfter int64        `json:"balance"`
	DrawsUsed    []uint       `json:"draws_used"`
}

// Engine places bets
type Engine struct {
	draws  DrawFinder
	bets   BetWriter
	ledger Ledger
	rules  config.Lottery
	clock  utils.Clock
}

// NewEngine creates an Engine
func NewEngine(draws DrawFinder, bets BetWriter, ledger Ledger, rules config.Lottery, clock utils.Clock) *Engine {
	return &Engine{draws: draws, bets: bets, ledger: ledger, rules: rules, clock: clock}
}

type plannedBet struct {
	group  domain.Group
	figure int
	amount int64
	draw   *domain.Draw
}

func (p plannedBet) tag() string {
	return fmt.Sprintf("%s:%d:%d", p.group, p.draw.ID, p.figure)
}

// PlaceBets applies wagers for the user. drawID, when non-nil, pins every
// wager to that draw; otherwise each group's open draw is used, falling back
// to its next scheduled draw.
func (e *Engine) PlaceBets(ctx context.Context, userID uint, wagers []Wager, drawID *uint) (*Result, error) {
	plan, balance, err := e.plan(ctx, userID, wagers, drawID)
	if err != nil {
		e.reject(userID, err)
		return nil, err
	}

	res := &Result{BalanceAfter: balance}
	seen := map[uint]bool{}
	for i, p := range plan {
		balance, err := e.ledger.AdjustBalance(ctx, userID, -p.amount, domain.TxnBet+":"+p.tag())
		if err != nil {
			return nil, e.abort(userID, i, err, res)
		}
		res.BalanceAfter = balance

		bet := &domain.Bet{
			UserID:    userID,
			DrawID:    p.draw.ID,
			GroupCode: p.group,
			Figure:    p.figure,
			Amount:    p.amount,
		}
		if err := e.bets.Create(ctx, bet); err != nil {
			cause := fmt.Errorf("%w: %w", domain.ErrBetPersist, err)
			refunded, rbErr := e.ledger.AdjustBalance(ctx, userID, p.amount, domain.TxnBetRollback+":"+p.tag())
			if rbErr != nil {
				logrus.WithFields(logrus.Fields{
					"user_id": userID,
					"draw_id": p.draw.ID,
					"amount":  p.amount,
					"error":   rbErr.Error(),
				}).Error("Bet rollback credit failed, wallet needs manual reconciliation")
				cause = fmt.Errorf("%w (rollback failed: %v)", cause, rbErr)
			} else {
				res.BalanceAfter = refunded
			}
			return nil, e.abort(userID, i, cause, res)
		}

		res.Bets = append(res.Bets, *bet)
		if !seen[p.draw.ID] {
			seen[p.draw.ID] = true
			res.DrawsUsed = append(res.DrawsUsed, p.draw.ID)
		}
		metrics.BetsPlaced.WithLabelValues(string(p.group)).Inc()
		metrics.BetPoints.WithLabelValues(string(p.group)).Add(float64(p.amount))
		logrus.WithFields(logrus.Fields{
			"user_id": userID,
			"bet_id":  bet.ID,
			"draw_id": p.draw.ID,
			"group":   p.group,
			"figure":  p.figure,
			"amount":  p.amount,
			"balance": balance,
		}).Info("Bet placed")
	}
	return res, nil
}

// plan validates the batch and resolves draws without touching any wallet
func (e *Engine) plan(ctx context.Context, userID uint, wagers []Wager, drawID *uint) ([]plannedBet, int64, error) {
	if len(wagers) == 0 {
		return nil, 0, domain.ErrEmptyBatch
	}
	if e.rules.MaxBetsPerBatch > 0 && len(wagers) > e.rules.MaxBetsPerBatch {
		return nil, 0, domain.ErrBatchTooLarge
	}

	plan := make([]plannedBet, len(wagers))
	var total int64
	for i, w := range wagers {
		group, err := domain.ParseGroup(w.Group)
		if err != nil {
			return nil, 0, fmt.Errorf("wager %d: %w", i, err)
		}
		if !domain.ValidFigure(w.Figure) {
			return nil, 0, fmt.Errorf("wager %d: %w", i, domain.ErrInvalidFigure)
		}
		if w.Amount <= 0 || w.Amount > e.rules.MaxStake() {
			return nil, 0, fmt.Errorf("wager %d: %w", i, domain.ErrInvalidAmount)
		}
		total += w.Amount
		if total <= 0 {
			return nil, 0, fmt.Errorf("wager %d: %w", i, domain.ErrInvalidAmount)
		}
		plan[i] = plannedBet{group: group, figure: w.Figure, amount: w.Amount}
	}

	resolved := map[domain.Group]*domain.Draw{}
	for i := range plan {
		d, ok := resolved[plan[i].group]
		if !ok {
			var err error
			if d, err = e.resolve(ctx, plan[i].group, drawID); err != nil {
				return nil, 0, fmt.Errorf("wager %d: %w", i, err)
			}
			resolved[plan[i].group] = d
		}
		plan[i].draw = d
	}

	balance, err := e.ledger.Balance(ctx, userID)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %w", domain.ErrLedgerWrite, err)
	}
	if total > balance {
		return nil, 0, domain.ErrInsufficientFunds
	}
	return plan, balance, nil
}

// resolve picks the draw a wager on group lands on
func (e *Engine) resolve(ctx context.Context, group domain.Group, drawID *uint) (*domain.Draw, error) {
	now := e.clock.Now()
	if drawID != nil {
		d, err := e.draws.Get(ctx, *drawID)
		if err != nil {
			return nil, err
		}
		if d.GroupCode != group {
			return nil, domain.ErrDrawGroupMismatch
		}
		if !d.AcceptsBets(now, e.rules.LeadWindow) {
			return nil, fmt.Errorf("%w: draw %d is %s", domain.ErrDrawClosed, d.ID, d.Status)
		}
		return d, nil
	}

	open, err := e.draws.LatestOpen(ctx, group)
	if err != nil {
		return nil, fmt.Errorf("find open draw: %w", err)
	}
	if open != nil && open.AcceptsBets(now, e.rules.LeadWindow) {
		return open, nil
	}
	// Advance bet on the next draw that has not opened yet
	next, err := e.draws.NearestScheduled(ctx, group, now.Add(e.rules.LeadWindow))
	if err != nil {
		return nil, fmt.Errorf("find scheduled draw: %w", err)
	}
	if next == nil {
		return nil, domain.ErrNoDraw
	}
	return next, nil
}

func (e *Engine) abort(userID uint, index int, cause error, res *Result) error {
	if errors.Is(cause, domain.ErrInsufficientFunds) {
		// Balance moved under us after the up-front check
		cause = domain.ErrInsufficientFunds
	}
	batchErr := &domain.BatchError{
		Cause:        cause,
		Index:        index,
		Applied:      res.Bets,
		BalanceAfter: res.BalanceAfter,
	}
	e.reject(userID, batchErr)
	return batchErr
}

func (e *Engine) reject(userID uint, err error) {
	code := "UNKNOWN"
	if de, ok := domain.AsError(err); ok {
		code = de.Code
	}
	metrics.BetRejections.WithLabelValues(code).Inc()
	fields := logrus.Fields{
		"user_id": userID,
		"code":    code,
		"error":   err.Error(),
	}
	var batchErr *domain.BatchError
	if errors.As(err, &batchErr) {
		fields["applied"] = len(batchErr.Applied)
		fields["index"] = batchErr.Index
		logrus.WithFields(fields).Error("Bet batch aborted")
		return
	}
	logrus.WithFields(fields).Warn("Bet batch rejected")
}
