package availability

import (
	"cloud.google.com/go/civil"
	"github.com/google/uuid"

	"github.com/Alijeyrad/simorq_booking/internal/repo"
)

// ---------------------------------------------------------------------------
// DTOs
// ---------------------------------------------------------------------------

type CreateWindowRequest struct {
	TherapistID uuid.UUID       `json:"therapist_id" validate:"required"`
	WindowType  repo.WindowType `json:"window_type" validate:"required,window_type"`

	DayOfWeek    *int        `json:"day_of_week" validate:"omitempty,min=0,max=6"`
	SpecificDate *civil.Date `json:"specific_date"`

	StartTime string `json:"start_time" validate:"required,hhmm"`
	EndTime   string `json:"end_time" validate:"required,hhmm"`

	Title               string   `json:"title" validate:"max=200"`
	Notes               string   `json:"notes" validate:"max=2000"`
	AllowedSessionTypes []string `json:"allowed_session_types" validate:"omitempty,dive,required,max=50"`
	MaxConcurrent       int      `json:"max_concurrent" validate:"min=0,max=20"`

	ValidFrom  *civil.Date `json:"valid_from"`
	ValidUntil *civil.Date `json:"valid_until"`

	Timezone        string `json:"timezone" validate:"omitempty,timezone"`
	BufferMinutes   int    `json:"buffer_minutes" validate:"min=0,max=240"`
	MinAdvanceHours int    `json:"min_advance_hours" validate:"min=0,max=8760"`
	MaxAdvanceDays  int    `json:"max_advance_days" validate:"min=0,max=365"`
}

// UpdateWindowRequest is a patch: nil fields are left unchanged. The window
// type and owner are immutable.
type UpdateWindowRequest struct {
	DayOfWeek    *int        `json:"day_of_week" validate:"omitempty,min=0,max=6"`
	SpecificDate *civil.Date `json:"specific_date"`

	StartTime *string `json:"start_time" validate:"omitempty,hhmm"`
	EndTime   *string `json:"end_time" validate:"omitempty,hhmm"`

	Title               *string   `json:"title" validate:"omitempty,max=200"`
	Notes               *string   `json:"notes" validate:"omitempty,max=2000"`
	AllowedSessionTypes *[]string `json:"allowed_session_types" validate:"omitempty,dive,required,max=50"`
	MaxConcurrent       *int      `json:"max_concurrent" validate:"omitempty,min=0,max=20"`

	ValidFrom  *civil.Date `json:"valid_from"`
	ValidUntil *civil.Date `json:"valid_until"`

	Timezone        *string `json:"timezone" validate:"omitempty,timezone"`
	BufferMinutes   *int    `json:"buffer_minutes" validate:"omitempty,min=0,max=240"`
	MinAdvanceHours *int    `json:"min_advance_hours" validate:"omitempty,min=0,max=8760"`
	MaxAdvanceDays  *int    `json:"max_advance_days" validate:"omitempty,min=0,max=365"`
}

// ListFilter narrows ListWindows.
type ListFilter struct {
	ActiveOnly     bool
	Type           repo.WindowType
	ExcludeExpired bool
}

// GroupedWindows is the ListWindows result, one list per window type.
type GroupedWindows struct {
	Recurring []*repo.AvailabilityWindow `json:"recurring"`
	OneTime   []*repo.AvailabilityWindow `json:"one_time"`
	Exception []*repo.AvailabilityWindow `json:"exception"`
}

// Total is the number of windows across all groups.
func (g *GroupedWindows) Total() int {
	return len(g.Recurring) + len(g.OneTime) + len(g.Exception)
}

func (g *GroupedWindows) add(w *repo.AvailabilityWindow) {
	switch w.WindowType {
	case repo.WindowRecurring:
		g.Recurring = append(g.Recurring, w)
	case repo.WindowOneTime:
		g.OneTime = append(g.OneTime, w)
	case repo.WindowException:
		g.Exception = append(g.Exception, w)
	}
}

// apply copies the non-nil patch fields onto w.
func (p UpdateWindowRequest) apply(w *repo.AvailabilityWindow) {
	if p.DayOfWeek != nil {
		d := *p.DayOfWeek
		w.DayOfWeek = &d
	}
	if p.SpecificDate != nil {
		d := *p.SpecificDate
		w.SpecificDate = &d
	}
	if p.StartTime != nil {
		w.StartTime = *p.StartTime
	}
	if p.EndTime != nil {
		w.EndTime = *p.EndTime
	}
	if p.Title != nil {
		w.Title = *p.Title
	}
	if p.Notes != nil {
		w.Notes = *p.Notes
	}
	if p.AllowedSessionTypes != nil {
		w.AllowedSessionTypes = append([]string(nil), (*p.AllowedSessionTypes)...)
	}
	if p.MaxConcurrent != nil {
		w.MaxConcurrent = *p.MaxConcurrent
	}
	if p.ValidFrom != nil {
		d := *p.ValidFrom
		w.ValidFrom = &d
	}
	if p.ValidUntil != nil {
		d := *p.ValidUntil
		w.ValidUntil = &d
	}
	if p.Timezone != nil {
		w.Timezone = *p.Timezone
	}
	if p.BufferMinutes != nil {
		w.BufferMinutes = *p.BufferMinutes
	}
	if p.MinAdvanceHours != nil {
		w.MinAdvanceHours = *p.MinAdvanceHours
	}
	if p.MaxAdvanceDays != nil {
		w.MaxAdvanceDays = *p.MaxAdvanceDays
	}
}
