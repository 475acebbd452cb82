package domain

import "time" // Timestamps

// Group identifies one of the four parallel lottery tracks
type Group string

// Lottery groups, each with its own daily slot
const (
	GroupA Group = "A"
	GroupB Group = "B"
	GroupC Group = "C"
	GroupD Group = "D"
)

// Groups lists every group in schedule order
var Groups = []Group{GroupA, GroupB, GroupC, GroupD}

// ParseGroup validates a group code
func ParseGroup(s string) (Group, error) {
	switch g := Group(s); g {
	case GroupA, GroupB, GroupC, GroupD:
		return g, nil
	}
	return "", ErrInvalidGroup
}

// DrawStatus is the lifecycle phase of a draw
type DrawStatus string

// Draw phases; transitions only move forward
const (
	DrawScheduled DrawStatus = "scheduled"
	DrawOpen      DrawStatus = "open"
	DrawClosed    DrawStatus = "closed"
	DrawExecuted  DrawStatus = "executed"
)

// Figure bounds
const (
	MinFigure = 1
	MaxFigure = 36
)

// ValidFigure reports whether f can be wagered on or drawn
func ValidFigure(f int) bool {
	return f >= MinFigure && f <= MaxFigure
}

// Draw Model, one row per draw instance per group per slot
type Draw struct {
	ID             uint       `gorm:"primaryKey" json:"id"`                                                                    // Primary key
	GroupCode      Group      `gorm:"size:1;not null;uniqueIndex:idx_draw_slot;index:idx_draw_group_status" json:"group_code"` // Group A-D
	Status         DrawStatus `gorm:"size:16;not null;index:idx_draw_group_status" json:"status"`                              // Lifecycle phase
	ScheduledAt    time.Time  `gorm:"not null;uniqueIndex:idx_draw_slot" json:"scheduled_at"`                                  // Slot time (UTC)
	OpenedAt       *time.Time `json:"opened_at,omitempty"`                                                                     // scheduled -> open
	ClosedAt       *time.Time `json:"closed_at,omitempty"`                                                                     // open -> closed
	ExecutedAt     *time.Time `json:"executed_at,omitempty"`                                                                   // closed -> executed
	WinningFigure  *int       `json:"winning_figure,omitempty"`                                                                // Assigned once on execution
	PayoutsApplied bool       `gorm:"not null;default:false" json:"payouts_applied"`                                           // Flips false -> true once
	CreatedAt      time.Time  `gorm:"autoCreateTime" json:"created_at"`                                                        // Seed time
}

// CutoffAt is the moment betting stops for the draw
func (d *Draw) CutoffAt(lead time.Duration) time.Time {
	return d.ScheduledAt.Add(-lead)
}

// AcceptsBets reports whether a wager can still target the draw at now
func (d *Draw) AcceptsBets(now time.Time, lead time.Duration) bool {
	if d.Status != DrawOpen && d.Status != DrawScheduled {
		return false
	}
	return now.Before(d.CutoffAt(lead))
}
