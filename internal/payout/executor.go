// Package payout credits the winners of executed draws.
package payout

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"lottery_system/internal/config"
	"lottery_system/internal/domain"
	"lottery_system/internal/ledger"
	"lottery_system/internal/metrics"

	"github.com/sirupsen/logrus"
)

// DrawStore reads draws and flags them paid
type DrawStore interface {
	Get(ctx context.Context, id uint) (*domain.Draw, error)
	MarkPayoutsApplied(ctx context.Context, id uint) (bool, error)
}

// BetReader lists winning bets
type BetReader interface {
	Winners(ctx context.Context, drawID uint, figure int) ([]domain.Bet, error)
}

// History answers idempotency questions against the wallet ledger
type History interface {
	HasNotePrefix(ctx context.Context, prefix string) (bool, error)
	PayoutExists(ctx context.Context, betID uint) (bool, error)
}

// Crediter writes win rows
type Crediter interface {
	Adjust(ctx context.Context, e ledger.Entry) (*domain.WalletTxn, error)
}

// Summary reports one payout run
type Summary struct {
	DrawID         uint  `json:"draw_id"`
	WinningFigure  int   `json:"winning_figure"`
	Attempted      int   `json:"attempted"`
	WinnersCount   int   `json:"winners_count"`
	Skipped        int   `json:"skipped"`
	Failed         int   `json:"failed"`
	TotalApplied   int64 `json:"total_applied"`
	PayoutsApplied bool  `json:"payouts_applied"`
	NoOp           bool  `json:"no_op"`
}

// Err returns ErrPayoutPartial when some winners could not be credited
func (s *Summary) Err() error {
	if s.Failed > 0 {
		return fmt.Errorf("%w: %d of %d credits failed on draw %d", domain.ErrPayoutPartial, s.Failed, s.Attempted, s.DrawID)
	}
	return nil
}

// Executor pays out executed draws
type Executor struct {
	draws   DrawStore
	bets    BetReader
	history History
	credit  Crediter
	rules   config.Lottery
}

// NewExecutor creates an Executor
func NewExecutor(draws DrawStore, bets BetReader, history History, credit Crediter, rules config.Lottery) *Executor {
	return &Executor{draws: draws, bets: bets, history: history, credit: credit, rules: rules}
}

// WinNotePrefix is the note prefix shared by every win row of a draw
func WinNotePrefix(drawID uint) string {
	return fmt.Sprintf("%s:%d:", domain.TxnWin, drawID)
}

// ExecutePayouts credits every winning bet of an executed draw and flags the
// draw paid. It is safe to call repeatedly: a paid draw with win rows is a
// no-op, and a bet that already has a win row is never credited again.
// A failed credit is logged and skipped; the summary counts it in Failed.
// Winners left unpaid by a failed credit are recovered with RetryFailed.
func (x *Executor) ExecutePayouts(ctx context.Context, drawID uint) (*Summary, error) {
	d, err := x.executed(ctx, drawID)
	if err != nil {
		return nil, err
	}
	sum := &Summary{DrawID: d.ID, WinningFigure: *d.WinningFigure}

	if d.PayoutsApplied {
		paid, err := x.history.HasNotePrefix(ctx, WinNotePrefix(d.ID))
		if err != nil {
			return nil, fmt.Errorf("check payouts of draw %d: %w", d.ID, err)
		}
		if paid {
			sum.PayoutsApplied = true
			sum.NoOp = true
			return sum, nil
		}
		logrus.WithField("draw_id", d.ID).Warn("Draw flagged paid without win rows, running payouts again")
	}
	return x.pay(ctx, d, sum)
}

// RetryFailed credits the winning bets of an executed draw that still have no
// win row, whether or not the draw is flagged paid. Bets already paid are
// skipped on their payout key.
func (x *Executor) RetryFailed(ctx context.Context, drawID uint) (*Summary, error) {
	d, err := x.executed(ctx, drawID)
	if err != nil {
		return nil, err
	}
	logrus.WithField("draw_id", d.ID).Info("Retrying unpaid winners")
	return x.pay(ctx, d, &Summary{DrawID: d.ID, WinningFigure: *d.WinningFigure})
}

func (x *Executor) executed(ctx context.Context, drawID uint) (*domain.Draw, error) {
	d, err := x.draws.Get(ctx, drawID)
	if err != nil {
		return nil, err
	}
	if d.Status != domain.DrawExecuted || d.WinningFigure == nil {
		return nil, fmt.Errorf("%w: draw %d is %s", domain.ErrDrawState, d.ID, d.Status)
	}
	return d, nil
}

func (x *Executor) pay(ctx context.Context, d *domain.Draw, sum *Summary) (*Summary, error) {
	winners, err := x.bets.Winners(ctx, d.ID, sum.WinningFigure)
	if err != nil {
		return nil, fmt.Errorf("list winners of draw %d: %w", d.ID, err)
	}
	sum.Attempted = len(winners)
	x.creditAll(ctx, d, winners, sum)

	if _, err := x.draws.MarkPayoutsApplied(ctx, d.ID); err != nil {
		return nil, err
	}
	sum.PayoutsApplied = true

	fields := logrus.Fields{
		"draw_id":        d.ID,
		"group":          d.GroupCode,
		"winning_figure": sum.WinningFigure,
		"attempted":      sum.Attempted,
		"winners":        sum.WinnersCount,
		"skipped":        sum.Skipped,
		"failed":         sum.Failed,
		"total_applied":  sum.TotalApplied,
	}
	if sum.Failed > 0 {
		logrus.WithFields(fields).Warn("Payouts partially applied")
	} else {
		logrus.WithFields(fields).Info("Payouts applied")
	}
	return sum, nil
}

// creditAll feeds winners to a bounded pool of workers. With one worker the
// bets are credited sequentially in placement order.
func (x *Executor) creditAll(ctx context.Context, d *domain.Draw, winners []domain.Bet, sum *Summary) {
	workers := x.rules.PayoutWorkers
	if workers < 1 {
		workers = 1
	}
	jobs := make(chan domain.Bet)
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for bet := range jobs {
				amount, outcome := x.creditOne(ctx, d, bet)
				mu.Lock()
				switch outcome {
				case credited:
					sum.WinnersCount++
					sum.TotalApplied += amount
				case skipped:
					sum.Skipped++
				case failed:
					sum.Failed++
				}
				mu.Unlock()
			}
		}()
	}
	for _, bet := range winners {
		jobs <- bet
	}
	close(jobs)
	wg.Wait()
}

type outcome int

const (
	credited outcome = iota
	skipped
	failed
)

func (x *Executor) creditOne(ctx context.Context, d *domain.Draw, bet domain.Bet) (int64, outcome) {
	fields := logrus.Fields{"draw_id": d.ID, "bet_id": bet.ID, "user_id": bet.UserID}
	exists, err := x.history.PayoutExists(ctx, bet.ID)
	if err != nil {
		metrics.PayoutFailures.Inc()
		logrus.WithFields(fields).WithError(err).Error("Payout lookup failed")
		return 0, failed
	}
	if exists {
		return 0, skipped
	}
	if bet.Amount <= 0 || bet.Amount > x.rules.MaxStake() {
		metrics.PayoutFailures.Inc()
		logrus.WithFields(fields).WithField("amount", bet.Amount).Error("Payout amount out of range")
		return 0, failed
	}
	amount := bet.Amount * x.rules.Multiplier
	betID := bet.ID
	_, err = x.credit.Adjust(ctx, ledger.Entry{
		UserID:      bet.UserID,
		Delta:       amount,
		Note:        fmt.Sprintf("%s:%d:%d", domain.TxnWin, d.ID, *d.WinningFigure),
		PayoutBetID: &betID,
	})
	if errors.Is(err, domain.ErrAlreadyPaid) {
		return 0, skipped
	}
	if err != nil {
		metrics.PayoutFailures.Inc()
		logrus.WithFields(fields).WithError(err).Error("Payout credit failed")
		return 0, failed
	}
	metrics.PayoutCredits.Inc()
	metrics.PayoutPoints.Add(float64(amount))
	return amount, credited
}
