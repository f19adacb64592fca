package record

import (
	"time"

	"github.com/fatflowers/subtrack/internal/models"
	"github.com/fatflowers/subtrack/pkg/types"
)

// upcomingWindowDays is how close an end date must be before a chain counts
// as upcoming rather than active.
const upcomingWindowDays = 7

// StatusView is the lifecycle reading of a chain representative at a given
// day. Exactly one of the day counters is meaningful per status.
type StatusView struct {
	Status          types.ChainStatus `json:"status"`
	DaysUntilExpiry int               `json:"days_until_expiry"`
	DaysSinceExpiry int               `json:"days_since_expiry"`
}

// Classify derives the status of a record from its end date. No end date
// means an open-ended, active subscription. Arithmetic is on truncated days
// so time-of-day never shifts a boundary.
func Classify(rec *models.SubscriptionRecord, today time.Time) StatusView {
	if rec.EndDate == nil {
		return StatusView{Status: types.ChainStatusActive}
	}

	end := truncateDay(*rec.EndDate)
	day := truncateDay(today)
	days := int(end.Sub(day) / (24 * time.Hour))

	switch {
	case end.Before(day):
		return StatusView{Status: types.ChainStatusExpired, DaysSinceExpiry: -days}
	case days <= upcomingWindowDays:
		return StatusView{Status: types.ChainStatusUpcoming, DaysUntilExpiry: days}
	default:
		return StatusView{Status: types.ChainStatusActive, DaysUntilExpiry: days}
	}
}
