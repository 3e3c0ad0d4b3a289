package availability

import "github.com/Alijeyrad/simorq_booking/pkg/apperr"

var (
	ErrWindowNotFound    = apperr.New(apperr.KindNotFound, "availability window not found")
	ErrBlockedNotFound   = apperr.New(apperr.KindNotFound, "blocked date not found")
	ErrNotPermitted      = apperr.New(apperr.KindAuthorization, "not permitted to manage this therapist's availability")
	ErrInvalidTimeRange  = apperr.New(apperr.KindValidation, "start_time must be before end_time")
	ErrInvalidTimeFormat = apperr.New(apperr.KindValidation, "time must be HH:MM between 00:00 and 23:59")
	ErrDayOfWeekRequired = apperr.New(apperr.KindValidation, "recurring windows require day_of_week in 0..6 and no specific_date")
	ErrDateRequired      = apperr.New(apperr.KindValidation, "one-time and exception windows require specific_date and no day_of_week")
	ErrInvalidValidity   = apperr.New(apperr.KindValidation, "valid_from/valid_until apply to recurring windows and must be ordered")
	ErrInvalidTimezone   = apperr.New(apperr.KindValidation, "unknown timezone")
	ErrInvalidDate       = apperr.New(apperr.KindValidation, "invalid date")
	ErrWindowOverlap     = apperr.New(apperr.KindConflict, "window overlaps an active window of the same type on the same day")
	ErrStrandsSessions   = apperr.New(apperr.KindConflict, "change would leave booked sessions outside the window")
	ErrAlreadyBlocked    = apperr.New(apperr.KindConflict, "date is already blocked")
	ErrAlreadyActive     = apperr.New(apperr.KindConflict, "window is already active")
)
