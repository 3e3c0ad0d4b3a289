package repo

import (
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
)

// WindowType discriminates the availability window variants.
type WindowType string

const (
	WindowRecurring WindowType = "recurring"
	WindowOneTime   WindowType = "one_time"
	WindowException WindowType = "exception"
)

// WindowTypes lists every variant in display order.
var WindowTypes = []WindowType{WindowRecurring, WindowOneTime, WindowException}

func (t WindowType) Valid() bool {
	switch t {
	case WindowRecurring, WindowOneTime, WindowException:
		return true
	}
	return false
}

// Dated reports whether windows of this type are pinned to a calendar date.
func (t WindowType) Dated() bool {
	return t == WindowOneTime || t == WindowException
}

// AvailabilityWindow is a declared interval during which a therapist can be booked.
type AvailabilityWindow struct {
	ID          uuid.UUID  `json:"id"`
	TherapistID uuid.UUID  `json:"therapist_id"`
	WindowType  WindowType `json:"window_type"`

	// DayOfWeek is set for recurring windows (0=Sunday … 6=Saturday).
	DayOfWeek *int `json:"day_of_week,omitempty"`
	// SpecificDate is set for one-time and exception windows.
	SpecificDate *civil.Date `json:"specific_date,omitempty"`

	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`

	Title               string   `json:"title,omitempty"`
	Notes               string   `json:"notes,omitempty"`
	AllowedSessionTypes []string `json:"allowed_session_types,omitempty"`
	MaxConcurrent       int      `json:"max_concurrent"`

	// ValidFrom and ValidUntil bound a recurring window; nil means unbounded.
	ValidFrom  *civil.Date `json:"valid_from,omitempty"`
	ValidUntil *civil.Date `json:"valid_until,omitempty"`

	Timezone        string `json:"timezone,omitempty"`
	BufferMinutes   int    `json:"buffer_minutes"`
	MinAdvanceHours int    `json:"min_advance_hours"`
	MaxAdvanceDays  int    `json:"max_advance_days"`

	IsActive           bool   `json:"is_active"`
	DeactivationReason string `json:"deactivation_reason,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Clone returns a deep copy.
func (w *AvailabilityWindow) Clone() *AvailabilityWindow {
	if w == nil {
		return nil
	}
	c := *w
	c.DayOfWeek = clonePtr(w.DayOfWeek)
	c.SpecificDate = clonePtr(w.SpecificDate)
	c.ValidFrom = clonePtr(w.ValidFrom)
	c.ValidUntil = clonePtr(w.ValidUntil)
	if w.AllowedSessionTypes != nil {
		c.AllowedSessionTypes = append([]string(nil), w.AllowedSessionTypes...)
	}
	return &c
}

// MinuteRange returns the window's [start, end) in minutes since midnight.
// Stored windows are validated, so parse errors yield an empty range.
func (w *AvailabilityWindow) MinuteRange() (start, end int) {
	s, err1 := ParseClock(w.StartTime)
	e, err2 := ParseClock(w.EndTime)
	if err1 != nil || err2 != nil {
		return 0, 0
	}
	return s, e
}

// SameDay reports whether both windows are of the same type and pinned to the
// same weekday or date, the scope inside which active windows may not overlap.
func (w *AvailabilityWindow) SameDay(o *AvailabilityWindow) bool {
	if w.TherapistID != o.TherapistID || w.WindowType != o.WindowType {
		return false
	}
	if w.WindowType == WindowRecurring {
		return w.DayOfWeek != nil && o.DayOfWeek != nil && *w.DayOfWeek == *o.DayOfWeek
	}
	return w.SpecificDate != nil && o.SpecificDate != nil && *w.SpecificDate == *o.SpecificDate
}

// OverlapsWindow applies the same-day scope and the minute overlap test.
func (w *AvailabilityWindow) OverlapsWindow(o *AvailabilityWindow) bool {
	if !w.SameDay(o) {
		return false
	}
	s1, e1 := w.MinuteRange()
	s2, e2 := o.MinuteRange()
	return MinuteRangesOverlap(s1, e1, s2, e2)
}

// AllowsSessionType reports whether sessionType may be booked in the window.
// An empty allow-list admits every type.
func (w *AvailabilityWindow) AllowsSessionType(sessionType string) bool {
	if sessionType == "" || len(w.AllowedSessionTypes) == 0 {
		return true
	}
	for _, t := range w.AllowedSessionTypes {
		if t == sessionType {
			return true
		}
	}
	return false
}

// Location resolves the window's timezone, falling back to def.
func (w *AvailabilityWindow) Location(def *time.Location) *time.Location {
	if w.Timezone != "" {
		if loc, err := time.LoadLocation(w.Timezone); err == nil {
			return loc
		}
	}
	if def == nil {
		return time.UTC
	}
	return def
}

// Recurrence returns the variant-specific date matcher of the window.
func (w *AvailabilityWindow) Recurrence() Recurrence {
	if w.WindowType == WindowRecurring {
		r := WeeklyRecurrence{From: w.ValidFrom, Until: w.ValidUntil}
		if w.DayOfWeek != nil {
			r.Weekday = time.Weekday(*w.DayOfWeek)
		} else {
			r.Weekday = -1
		}
		return r
	}
	if w.SpecificDate == nil {
		return DatedOccurrence{}
	}
	return DatedOccurrence{Date: *w.SpecificDate}
}

// Recurrence decides on which calendar dates a window applies.
type Recurrence interface {
	MatchesDate(d civil.Date) bool
}

// WeeklyRecurrence matches one weekday, optionally bounded by a validity range.
type WeeklyRecurrence struct {
	Weekday time.Weekday
	From    *civil.Date
	Until   *civil.Date
}

func (r WeeklyRecurrence) MatchesDate(d civil.Date) bool {
	if !d.IsValid() || Weekday(d) != r.Weekday {
		return false
	}
	if r.From != nil && d.Before(*r.From) {
		return false
	}
	if r.Until != nil && d.After(*r.Until) {
		return false
	}
	return true
}

// DatedOccurrence matches exactly one calendar date.
type DatedOccurrence struct {
	Date civil.Date
}

func (r DatedOccurrence) MatchesDate(d civil.Date) bool {
	return r.Date.IsValid() && d == r.Date
}

// Weekday returns the day of the week of d.
func Weekday(d civil.Date) time.Weekday {
	return d.In(time.UTC).Weekday()
}

// BlockedDate is a calendar day on which a therapist accepts no bookings.
type BlockedDate struct {
	ID          uuid.UUID  `json:"id"`
	TherapistID uuid.UUID  `json:"therapist_id"`
	Date        civil.Date `json:"date"`
	Reason      string     `json:"reason,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
