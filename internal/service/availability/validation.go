package availability

import (
	"time"

	"github.com/Alijeyrad/simorq_booking/internal/repo"
)

// validateWindow enforces the shape rules every stored window satisfies.
func validateWindow(w *repo.AvailabilityWindow) error {
	start, err := repo.ParseClock(w.StartTime)
	if err != nil {
		return ErrInvalidTimeFormat.With("field", "start_time")
	}
	end, err := repo.ParseClock(w.EndTime)
	if err != nil {
		return ErrInvalidTimeFormat.With("field", "end_time")
	}
	if start >= end {
		return ErrInvalidTimeRange
	}

	switch {
	case w.WindowType == repo.WindowRecurring:
		if w.DayOfWeek == nil || *w.DayOfWeek < 0 || *w.DayOfWeek > 6 || w.SpecificDate != nil {
			return ErrDayOfWeekRequired
		}
		if w.ValidFrom != nil && w.ValidUntil != nil && w.ValidUntil.Before(*w.ValidFrom) {
			return ErrInvalidValidity
		}
	case w.WindowType.Dated():
		if w.SpecificDate == nil || !w.SpecificDate.IsValid() || w.DayOfWeek != nil {
			return ErrDateRequired
		}
		if w.ValidFrom != nil || w.ValidUntil != nil {
			return ErrInvalidValidity
		}
	default:
		return ErrInvalidTimeFormat.With("field", "window_type")
	}

	if w.Timezone != "" {
		if _, err := time.LoadLocation(w.Timezone); err != nil {
			return ErrInvalidTimezone.With("timezone", w.Timezone)
		}
	}
	return nil
}
