package store

import (
	"context"

	"lottery_system/internal/domain"

	"gorm.io/gorm"
)

// BetStore owns the bets table
type BetStore struct {
	db *gorm.DB
}

// NewBetStore creates a BetStore
func NewBetStore(db *gorm.DB) *BetStore {
	return &BetStore{db: db}
}

// Create inserts a bet
func (s *BetStore) Create(ctx context.Context, b *domain.Bet) error {
	return s.db.WithContext(ctx).Create(b).Error
}

// Winners returns the bets on the draw that picked figure, in placement order
func (s *BetStore) Winners(ctx context.Context, drawID uint, figure int) ([]domain.Bet, error) {
	var bets []domain.Bet
	err := s.db.WithContext(ctx).
		Where("draw_id = ? AND figure = ?", drawID, figure).
		Order("id asc").
		Find(&bets).Error
	return bets, err
}

// ListByUser returns the user's latest bets
func (s *BetStore) ListByUser(ctx context.Context, userID uint, limit int) ([]domain.Bet, error) {
	var bets []domain.Bet
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("id desc").
		Limit(limit).
		Find(&bets).Error
	return bets, err
}
