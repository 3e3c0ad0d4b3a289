package slots

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Alijeyrad/simorq_booking/internal/repo"
	"github.com/Alijeyrad/simorq_booking/pkg/observability"
)

const (
	DefaultMinDuration = 15
	DefaultMaxDuration = 240

	// sessions may start up to a day before the first slot and still reach it
	sessionLookback = 24 * time.Hour
)

// Slot is one bookable interval.
type Slot struct {
	StartTime string    `json:"start_time"`
	EndTime   string    `json:"end_time"`
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	WindowID  uuid.UUID `json:"window_id"`
}

// Query is the input of ComputeSlots.
type Query struct {
	TherapistID     uuid.UUID
	Date            civil.Date
	DurationMinutes int
	// SessionType restricts candidates to windows that admit it. Empty
	// admits every window.
	SessionType string
}

// ---------------------------------------------------------------------------
// Interface
// ---------------------------------------------------------------------------

type Service interface {
	ComputeSlots(ctx context.Context, q Query) ([]Slot, error)
}

// Store is the read access slot computation needs.
type Store interface {
	ListWindows(ctx context.Context, f repo.WindowFilter) ([]*repo.AvailabilityWindow, error)
	IsDateBlocked(ctx context.Context, therapistID uuid.UUID, date civil.Date) (bool, error)
	ListSessions(ctx context.Context, f repo.SessionFilter) ([]*repo.Session, error)
}

type Config struct {
	DefaultLocation *time.Location
	MinDuration     int
	MaxDuration     int
	// DropPast removes slots that start before Now.
	DropPast bool
	Now      func() time.Time
	Metrics  *observability.BookingMetrics
}

// ---------------------------------------------------------------------------
// Implementation
// ---------------------------------------------------------------------------

type slotService struct {
	store  Store
	logger *slog.Logger
	cfg    Config
}

func New(store Store, logger *slog.Logger, cfg Config) Service {
	if cfg.DefaultLocation == nil {
		cfg.DefaultLocation = time.UTC
	}
	if cfg.MinDuration <= 0 {
		cfg.MinDuration = DefaultMinDuration
	}
	if cfg.MaxDuration <= 0 {
		cfg.MaxDuration = DefaultMaxDuration
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &slotService{store: store, logger: logger, cfg: cfg}
}

func (s *slotService) ComputeSlots(ctx context.Context, q Query) ([]Slot, error) {
	if q.TherapistID == uuid.Nil {
		return nil, ErrInvalidTherapist
	}
	if !q.Date.IsValid() {
		return nil, ErrInvalidDate
	}
	if q.DurationMinutes < s.cfg.MinDuration || q.DurationMinutes > s.cfg.MaxDuration {
		return nil, ErrInvalidDuration.
			With("min", s.cfg.MinDuration).
			With("max", s.cfg.MaxDuration)
	}

	if m := s.cfg.Metrics; m != nil {
		var span trace.Span
		ctx, span = m.StartSpan(ctx, "slots.compute",
			attribute.String("therapist_id", q.TherapistID.String()),
			attribute.String("date", q.Date.String()),
		)
		defer span.End()
	}
	began := time.Now()

	out, err := s.compute(ctx, q)
	if err != nil {
		return nil, err
	}

	if s.cfg.Metrics != nil {
		s.cfg.Metrics.SlotsComputed(ctx, time.Since(began), len(out))
	}
	return out, nil
}

func (s *slotService) compute(ctx context.Context, q Query) ([]Slot, error) {
	blocked, err := s.store.IsDateBlocked(ctx, q.TherapistID, q.Date)
	if err != nil {
		return nil, fmt.Errorf("check blocked date: %w", err)
	}
	if blocked {
		return []Slot{}, nil
	}

	windows, err := s.store.ListWindows(ctx, repo.WindowFilter{
		TherapistID: q.TherapistID,
		ActiveOnly:  true,
	})
	if err != nil {
		return nil, fmt.Errorf("list windows: %w", err)
	}

	now := s.cfg.Now()
	candidates := generate(windows, q, s.cfg.DefaultLocation, now)
	if len(candidates) == 0 {
		return []Slot{}, nil
	}

	sessions, err := s.store.ListSessions(ctx, repo.SessionFilter{
		TherapistID:     q.TherapistID,
		From:            candidates[0].Start.Add(-sessionLookback),
		To:              candidates[len(candidates)-1].End,
		ExcludeStatuses: repo.ReleasedStatuses,
	})
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}

	out := make([]Slot, 0, len(candidates))
	for _, c := range candidates {
		if s.cfg.DropPast && c.Start.Before(now) {
			continue
		}
		if taken(c, sessions) {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

// generate expands the windows that apply on q.Date into sorted, de-duplicated
// slots. Each window's advance-booking bounds are applied against now.
func generate(windows []*repo.AvailabilityWindow, q Query, def *time.Location, now time.Time) []Slot {
	var out []Slot
	seen := make(map[[2]int64]struct{})
	length := time.Duration(q.DurationMinutes) * time.Minute

	for _, w := range windows {
		if !w.IsActive || !w.Recurrence().MatchesDate(q.Date) || !w.AllowsSessionType(q.SessionType) {
			continue
		}
		loc := w.Location(def)
		from, to := w.MinuteRange()
		step := q.DurationMinutes + w.BufferMinutes
		earliest, latest := advanceBounds(w, now)

		for start := from; start+q.DurationMinutes <= to; start += step {
			end := start + q.DurationMinutes
			slot := Slot{
				StartTime: repo.FormatClock(start),
				EndTime:   repo.FormatClock(end),
				Start:     repo.AtClock(q.Date, start, loc),
				End:       repo.AtClock(q.Date, end, loc),
				WindowID:  w.ID,
			}
			// Wall-clock times skipped or repeated by a DST shift do not
			// map to a slot of the requested length.
			if slot.End.Sub(slot.Start) != length || !onClock(slot.Start, start, loc) || !onClock(slot.End, end, loc) {
				continue
			}
			if slot.Start.Before(earliest) || (!latest.IsZero() && slot.Start.After(latest)) {
				continue
			}
			key := [2]int64{slot.Start.UnixNano(), slot.End.UnixNano()}
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, slot)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Start.Equal(out[j].Start) {
			return out[i].Start.Before(out[j].Start)
		}
		return out[i].End.Before(out[j].End)
	})
	return out
}

// advanceBounds returns the earliest and latest start a window accepts when
// booked at now. A zero value means that side is unbounded.
func advanceBounds(w *repo.AvailabilityWindow, now time.Time) (earliest, latest time.Time) {
	if w.MinAdvanceHours > 0 {
		earliest = now.Add(time.Duration(w.MinAdvanceHours) * time.Hour)
	}
	if w.MaxAdvanceDays > 0 {
		latest = now.AddDate(0, 0, w.MaxAdvanceDays)
	}
	return earliest, latest
}

// onClock reports whether t reads minutes past midnight on the wall clock of loc.
func onClock(t time.Time, minutes int, loc *time.Location) bool {
	lt := t.In(loc)
	return lt.Hour()*60+lt.Minute() == minutes%repo.MinutesPerDay
}

func taken(slot Slot, sessions []*repo.Session) bool {
	iv := repo.Interval{Start: slot.Start, End: slot.End}
	for _, sess := range sessions {
		if sess.Status.HoldsSlot() && iv.Overlaps(sess.Interval()) {
			return true
		}
	}
	return false
}
