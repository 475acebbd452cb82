package domain

import "time" // Timestamps

// Bet Model, immutable once inserted
type Bet struct {
	ID        uint      `gorm:"primaryKey" json:"id"`                              // Primary key
	UserID    uint      `gorm:"index;not null" json:"user_id"`                     // Bettor
	DrawID    uint      `gorm:"index:idx_bet_draw_figure;not null" json:"draw_id"` // Target draw
	GroupCode Group     `gorm:"size:1;not null" json:"group_code"`                 // Group of the draw
	Figure    int       `gorm:"index:idx_bet_draw_figure;not null" json:"figure"`  // 1..36
	Amount    int64     `gorm:"not null" json:"amount"`                            // Stake in points
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`                  // Placement time
}
