package draw

import (
	"time"

	"lottery_system/internal/config"
	"lottery_system/internal/domain"
)

// NextSlot returns, in UTC, the first daily slot of group that falls strictly
// after now plus the lead window, so a draw seeded for it can still take bets.
// Slots are civil times in rules.Location; the host time zone is never consulted.
func NextSlot(now time.Time, group domain.Group, rules config.Lottery) (time.Time, error) {
	slot, ok := rules.Slots[group]
	if !ok {
		return time.Time{}, domain.ErrInvalidGroup
	}
	loc := rules.Location
	if loc == nil {
		loc = time.UTC
	}
	earliest := now.Add(rules.LeadWindow)
	local := earliest.In(loc)
	y, m, d := local.Date()
	candidate := time.Date(y, m, d, slot.Hour, slot.Minute, 0, 0, loc)
	for i := 1; !candidate.After(earliest); i++ {
		candidate = time.Date(y, m, d+i, slot.Hour, slot.Minute, 0, 0, loc)
	}
	return candidate.UTC(), nil
}
