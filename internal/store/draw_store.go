package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"lottery_system/internal/domain"

	"gorm.io/gorm"
)

// DrawStore owns the draws table
type DrawStore struct {
	db *gorm.DB
}

// NewDrawStore creates a DrawStore
func NewDrawStore(db *gorm.DB) *DrawStore {
	return &DrawStore{db: db}
}

// Create inserts a draw. It returns false without error when the group
// already has a draw at the same slot.
func (s *DrawStore) Create(ctx context.Context, d *domain.Draw) (bool, error) {
	err := s.db.WithContext(ctx).Create(d).Error
	if err == nil {
		return true, nil
	}
	if errors.Is(translate(err), ErrDuplicate) {
		return false, nil
	}
	return false, fmt.Errorf("insert draw: %w", err)
}

// Get loads a draw by id
func (s *DrawStore) Get(ctx context.Context, id uint) (*domain.Draw, error) {
	var d domain.Draw
	err := s.db.WithContext(ctx).First(&d, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrDrawNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load draw %d: %w", id, err)
	}
	return &d, nil
}

func (s *DrawStore) first(q *gorm.DB) (*domain.Draw, error) {
	var d domain.Draw
	err := q.First(&d).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *DrawStore) find(q *gorm.DB) ([]domain.Draw, error) {
	var draws []domain.Draw
	if err := q.Find(&draws).Error; err != nil {
		return nil, err
	}
	return draws, nil
}

// FindPending returns the earliest scheduled or open draw of the group whose
// slot is after t, or nil.
func (s *DrawStore) FindPending(ctx context.Context, group domain.Group, after time.Time) (*domain.Draw, error) {
	return s.first(s.db.WithContext(ctx).
		Where("group_code = ? AND status IN ? AND scheduled_at > ?", group,
			[]domain.DrawStatus{domain.DrawScheduled, domain.DrawOpen}, after).
		Order("scheduled_at asc"))
}

// LatestOpen returns the open draw of the group with the latest slot, or nil
func (s *DrawStore) LatestOpen(ctx context.Context, group domain.Group) (*domain.Draw, error) {
	return s.LatestWithStatus(ctx, group, domain.DrawOpen)
}

// LatestWithStatus returns the draw of the group in status with the latest slot, or nil
func (s *DrawStore) LatestWithStatus(ctx context.Context, group domain.Group, status domain.DrawStatus) (*domain.Draw, error) {
	return s.first(s.db.WithContext(ctx).
		Where("group_code = ? AND status = ?", group, status).
		Order("scheduled_at desc"))
}

// NearestScheduled returns the scheduled draw of the group with the earliest slot after t, or nil
func (s *DrawStore) NearestScheduled(ctx context.Context, group domain.Group, after time.Time) (*domain.Draw, error) {
	return s.first(s.db.WithContext(ctx).
		Where("group_code = ? AND status = ? AND scheduled_at > ?", group, domain.DrawScheduled, after).
		Order("scheduled_at asc"))
}

// DueToOpen lists scheduled draws whose slot is at or before deadline
func (s *DrawStore) DueToOpen(ctx context.Context, deadline time.Time) ([]domain.Draw, error) {
	return s.find(s.db.WithContext(ctx).
		Where("status = ? AND scheduled_at <= ?", domain.DrawScheduled, deadline).
		Order("scheduled_at asc"))
}

// DueToClose lists open draws whose slot is at or before deadline
func (s *DrawStore) DueToClose(ctx context.Context, deadline time.Time) ([]domain.Draw, error) {
	return s.find(s.db.WithContext(ctx).
		Where("status = ? AND scheduled_at <= ?", domain.DrawOpen, deadline).
		Order("scheduled_at asc"))
}

// DueToExecute lists up to limit closed draws that closed at or before closedBy
func (s *DrawStore) DueToExecute(ctx context.Context, closedBy time.Time, limit int) ([]domain.Draw, error) {
	return s.find(s.db.WithContext(ctx).
		Where("status = ? AND closed_at <= ?", domain.DrawClosed, closedBy).
		Order("closed_at asc").
		Limit(limit))
}

// PendingPayouts lists up to limit executed draws still waiting for payouts
func (s *DrawStore) PendingPayouts(ctx context.Context, limit int) ([]domain.Draw, error) {
	return s.find(s.db.WithContext(ctx).
		Where("status = ? AND payouts_applied = ?", domain.DrawExecuted, false).
		Order("executed_at asc").
		Limit(limit))
}

// List returns the latest draws, optionally for a single group
func (s *DrawStore) List(ctx context.Context, group domain.Group, limit int) ([]domain.Draw, error) {
	q := s.db.WithContext(ctx).Order("scheduled_at desc").Limit(limit)
	if group != "" {
		q = q.Where("group_code = ?", group)
	}
	return s.find(q)
}

// Transition applies updates only while the draw is still in status from.
// It reports whether this call moved the draw.
func (s *DrawStore) Transition(ctx context.Context, id uint, from domain.DrawStatus, updates map[string]any) (bool, error) {
	res := s.db.WithContext(ctx).Model(&domain.Draw{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return false, fmt.Errorf("transition draw %d from %s: %w", id, from, res.Error)
	}
	return res.RowsAffected == 1, nil
}

// MarkPayoutsApplied flips payouts_applied once. It reports whether this call flipped it.
func (s *DrawStore) MarkPayoutsApplied(ctx context.Context, id uint) (bool, error) {
	res := s.db.WithContext(ctx).Model(&domain.Draw{}).
		Where("id = ? AND status = ? AND payouts_applied = ?", id, domain.DrawExecuted, false).
		Update("payouts_applied", true)
	if res.Error != nil {
		return false, fmt.Errorf("mark payouts applied on draw %d: %w", id, res.Error)
	}
	return res.RowsAffected == 1, nil
}
