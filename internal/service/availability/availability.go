package availability

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"

	"github.com/Alijeyrad/simorq_booking/internal/repo"
	"github.com/Alijeyrad/simorq_booking/internal/service/audit"
	"github.com/Alijeyrad/simorq_booking/internal/service/lock"
	"github.com/Alijeyrad/simorq_booking/pkg/authorize"
	"github.com/Alijeyrad/simorq_booking/pkg/observability"
	"github.com/Alijeyrad/simorq_booking/pkg/validate"
)

// strandableStatuses are the statuses of sessions a window change must not
// leave uncovered.
var strandableStatuses = []repo.SessionStatus{
	repo.StatusApproved,
	repo.StatusPaymentSubmitted,
	repo.StatusConfirmed,
}

// ---------------------------------------------------------------------------
// Interface
// ---------------------------------------------------------------------------

type Service interface {
	// Windows
	CreateWindow(ctx context.Context, actor authorize.Actor, req CreateWindowRequest) (*repo.AvailabilityWindow, error)
	UpdateWindow(ctx context.Context, actor authorize.Actor, id uuid.UUID, patch UpdateWindowRequest) (*repo.AvailabilityWindow, error)
	DeactivateWindow(ctx context.Context, actor authorize.Actor, id uuid.UUID, reason string) (*repo.AvailabilityWindow, error)
	ReactivateWindow(ctx context.Context, actor authorize.Actor, id uuid.UUID) (*repo.AvailabilityWindow, error)
	GetWindow(ctx context.Context, id uuid.UUID) (*repo.AvailabilityWindow, error)
	ListWindows(ctx context.Context, therapistID uuid.UUID, f ListFilter) (*GroupedWindows, error)

	// Blocked dates
	BlockDate(ctx context.Context, actor authorize.Actor, therapistID uuid.UUID, date civil.Date, reason string) (*repo.BlockedDate, error)
	UnblockDate(ctx context.Context, actor authorize.Actor, therapistID uuid.UUID, date civil.Date) error
	ListBlockedDates(ctx context.Context, therapistID uuid.UUID, from, to civil.Date) ([]*repo.BlockedDate, error)
}

// Store is the persistence the service needs: windows plus read access to
// sessions for the stranding check.
type Store interface {
	repo.AvailabilityStore
	ListSessions(ctx context.Context, f repo.SessionFilter) ([]*repo.Session, error)
}

// Config carries the service's tunables.
type Config struct {
	DefaultLocation *time.Location
	Now             func() time.Time
	Metrics         *observability.BookingMetrics
}

// ---------------------------------------------------------------------------
// Implementation
// ---------------------------------------------------------------------------

type availabilityService struct {
	store   Store
	audit   audit.Recorder
	locker  lock.Locker
	logger  *slog.Logger
	loc     *time.Location
	now     func() time.Time
	metrics *observability.BookingMetrics
}

func New(store Store, rec audit.Recorder, locker lock.Locker, logger *slog.Logger, cfg Config) Service {
	s := &availabilityService{
		store:   store,
		audit:   rec,
		locker:  locker,
		logger:  logger,
		loc:     cfg.DefaultLocation,
		now:     cfg.Now,
		metrics: cfg.Metrics,
	}
	if s.loc == nil {
		s.loc = time.UTC
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.locker == nil {
		s.locker = lock.NewLocal()
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

func canManage(actor authorize.Actor, therapistID uuid.UUID) bool {
	if actor.IsAdmin() {
		return true
	}
	return actor.Role == authorize.ActorTherapist && actor.Is(therapistID)
}

func (s *availabilityService) lockTherapist(ctx context.Context, therapistID uuid.UUID) (func(), error) {
	unlock, err := s.locker.Lock(ctx, lock.TherapistKey(therapistID))
	if err != nil {
		return nil, fmt.Errorf("lock therapist calendar: %w", err)
	}
	return unlock, nil
}

// ---------------------------------------------------------------------------
// Windows
// ---------------------------------------------------------------------------

func (s *availabilityService) CreateWindow(ctx context.Context, actor authorize.Actor, req CreateWindowRequest) (*repo.AvailabilityWindow, error) {
	if !canManage(actor, req.TherapistID) {
		return nil, ErrNotPermitted
	}
	if err := validate.Struct(req); err != nil {
		return nil, err
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("window id: %w", err)
	}
	now := s.now()
	w := &repo.AvailabilityWindow{
		ID:                  id,
		TherapistID:         req.TherapistID,
		WindowType:          req.WindowType,
		DayOfWeek:           req.DayOfWeek,
		SpecificDate:        req.SpecificDate,
		StartTime:           req.StartTime,
		EndTime:             req.EndTime,
		Title:               req.Title,
		Notes:               req.Notes,
		AllowedSessionTypes: req.AllowedSessionTypes,
		MaxConcurrent:       req.MaxConcurrent,
		ValidFrom:           req.ValidFrom,
		ValidUntil:          req.ValidUntil,
		Timezone:            req.Timezone,
		BufferMinutes:       req.BufferMinutes,
		MinAdvanceHours:     req.MinAdvanceHours,
		MaxAdvanceDays:      req.MaxAdvanceDays,
		IsActive:            true,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if w.MaxConcurrent == 0 {
		w.MaxConcurrent = 1
	}
	if err := validateWindow(w); err != nil {
		return nil, err
	}

	unlock, err := s.lockTherapist(ctx, w.TherapistID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if err := s.checkOverlap(ctx, w); err != nil {
		return nil, err
	}
	if err := s.store.CreateWindow(ctx, w); err != nil {
		return nil, fmt.Errorf("create window: %w", err)
	}

	s.logger.InfoContext(ctx, "availability window created",
		"window_id", w.ID, "therapist_id", w.TherapistID, "type", w.WindowType)
	s.audit.Record(ctx, audit.Event{
		Action:     audit.ActionAvailabilityCreated,
		Actor:      actor,
		TargetType: audit.TargetAvailabilityWindow,
		TargetID:   w.ID,
		New:        w,
	})
	return w, nil
}

func (s *availabilityService) UpdateWindow(ctx context.Context, actor authorize.Actor, id uuid.UUID, patch UpdateWindowRequest) (*repo.AvailabilityWindow, error) {
	old, err := s.GetWindow(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canManage(actor, old.TherapistID) {
		return nil, ErrNotPermitted
	}
	if err := validate.Struct(patch); err != nil {
		return nil, err
	}

	unlock, err := s.lockTherapist(ctx, old.TherapistID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	// reload under the lock so the patch applies to the latest version
	if old, err = s.GetWindow(ctx, id); err != nil {
		return nil, err
	}

	next := old.Clone()
	patch.apply(next)
	next.UpdatedAt = s.now()
	if err := validateWindow(next); err != nil {
		return nil, err
	}

	if next.IsActive {
		if err := s.checkOverlap(ctx, next); err != nil {
			return nil, err
		}
	}
	if old.IsActive {
		if err := s.checkStranded(ctx, old, next); err != nil {
			return nil, err
		}
	}

	if err := s.store.UpdateWindow(ctx, next); err != nil {
		return nil, fmt.Errorf("update window: %w", err)
	}

	s.audit.Record(ctx, audit.Event{
		Action:     audit.ActionAvailabilityUpdated,
		Actor:      actor,
		TargetType: audit.TargetAvailabilityWindow,
		TargetID:   next.ID,
		Previous:   old,
		New:        next,
	})
	return next, nil
}

func (s *availabilityService) DeactivateWindow(ctx context.Context, actor authorize.Actor, id uuid.UUID, reason string) (*repo.AvailabilityWindow, error) {
	return s.toggle(ctx, actor, id, false, reason)
}

func (s *availabilityService) ReactivateWindow(ctx context.Context, actor authorize.Actor, id uuid.UUID) (*repo.AvailabilityWindow, error) {
	return s.toggle(ctx, actor, id, true, "")
}

func (s *availabilityService) toggle(ctx context.Context, actor authorize.Actor, id uuid.UUID, active bool, reason string) (*repo.AvailabilityWindow, error) {
	w, err := s.GetWindow(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canManage(actor, w.TherapistID) {
		return nil, ErrNotPermitted
	}

	unlock, err := s.lockTherapist(ctx, w.TherapistID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if w, err = s.GetWindow(ctx, id); err != nil {
		return nil, err
	}
	if w.IsActive == active {
		// already in the requested state; nothing to write or audit
		if active {
			return nil, ErrAlreadyActive
		}
		return w, nil
	}

	next := w.Clone()
	next.IsActive = active
	next.DeactivationReason = reason
	next.UpdatedAt = s.now()

	action := audit.ActionAvailabilityDeactivated
	if active {
		action = audit.ActionAvailabilityReactivated
		if err := s.checkOverlap(ctx, next); err != nil {
			return nil, err
		}
	}

	if err := s.store.UpdateWindow(ctx, next); err != nil {
		return nil, fmt.Errorf("toggle window: %w", err)
	}

	s.audit.Record(ctx, audit.Event{
		Action:     action,
		Actor:      actor,
		TargetType: audit.TargetAvailabilityWindow,
		TargetID:   next.ID,
		Previous:   map[string]any{"is_active": w.IsActive},
		New:        map[string]any{"is_active": next.IsActive, "reason": reason},
	})
	return next, nil
}

func (s *availabilityService) GetWindow(ctx context.Context, id uuid.UUID) (*repo.AvailabilityWindow, error) {
	w, err := s.store.GetWindow(ctx, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrWindowNotFound
		}
		return nil, fmt.Errorf("get window: %w", err)
	}
	return w, nil
}

func (s *availabilityService) ListWindows(ctx context.Context, therapistID uuid.UUID, f ListFilter) (*GroupedWindows, error) {
	if f.Type != "" && !f.Type.Valid() {
		return nil, validate.ErrInvalidInput.With("fields", map[string]string{"type": "window_type"})
	}

	windows, err := s.store.ListWindows(ctx, repo.WindowFilter{
		TherapistID: therapistID,
		Type:        f.Type,
		ActiveOnly:  f.ActiveOnly,
	})
	if err != nil {
		return nil, fmt.Errorf("list windows: %w", err)
	}

	out := &GroupedWindows{
		Recurring: []*repo.AvailabilityWindow{},
		OneTime:   []*repo.AvailabilityWindow{},
		Exception: []*repo.AvailabilityWindow{},
	}
	now := s.now()
	for _, w := range windows {
		if f.ExcludeExpired && s.expired(w, now) {
			continue
		}
		out.add(w)
	}
	return out, nil
}

// expired reports whether a dated window's day is over in its own timezone,
// or a recurring window's validity has ended.
func (s *availabilityService) expired(w *repo.AvailabilityWindow, now time.Time) bool {
	today := civil.DateOf(now.In(w.Location(s.loc)))
	if w.WindowType.Dated() {
		return w.SpecificDate != nil && w.SpecificDate.Before(today)
	}
	return w.ValidUntil != nil && w.ValidUntil.Before(today)
}

// checkOverlap rejects w when it overlaps another active window of the same
// therapist, type and day. w itself is excluded by id.
func (s *availabilityService) checkOverlap(ctx context.Context, w *repo.AvailabilityWindow) error {
	others, err := s.store.ListWindows(ctx, repo.WindowFilter{
		TherapistID: w.TherapistID,
		Type:        w.WindowType,
		ActiveOnly:  true,
	})
	if err != nil {
		return fmt.Errorf("list windows: %w", err)
	}

	for _, other := range others {
		if other.ID == w.ID {
			continue
		}
		if w.OverlapsWindow(other) {
			if s.metrics != nil {
				s.metrics.Conflict(ctx, "window")
			}
			return ErrWindowOverlap.
				With("conflicting_window_id", other.ID.String()).
				With("conflicting_range", other.StartTime+"-"+other.EndTime)
		}
	}
	return nil
}

// checkStranded rejects a change that would leave an upcoming booked session
// covered by the old window outside the new one.
func (s *availabilityService) checkStranded(ctx context.Context, old, next *repo.AvailabilityWindow) error {
	sessions, err := s.store.ListSessions(ctx, repo.SessionFilter{
		TherapistID: old.TherapistID,
		From:        s.now(),
		Statuses:    strandableStatuses,
	})
	if err != nil {
		return fmt.Errorf("list sessions: %w", err)
	}

	var stranded []string
	for _, sess := range sessions {
		if covers(old, sess, s.loc) && !covers(next, sess, s.loc) {
			stranded = append(stranded, sess.ID.String())
		}
	}
	if len(stranded) > 0 {
		if s.metrics != nil {
			s.metrics.Conflict(ctx, "stranded_session")
		}
		return ErrStrandsSessions.With("session_ids", stranded)
	}
	return nil
}

// covers reports whether the session's local wall-clock interval lies inside
// the window on a date the window applies to.
func covers(w *repo.AvailabilityWindow, sess *repo.Session, def *time.Location) bool {
	loc := w.Location(def)
	start := sess.SessionDate.In(loc)
	date := civil.DateOf(start)
	if !w.Recurrence().MatchesDate(date) {
		return false
	}

	from, to := w.MinuteRange()
	window := repo.Interval{Start: repo.AtClock(date, from, loc), End: repo.AtClock(date, to, loc)}
	return window.Contains(sess.Interval())
}

// ---------------------------------------------------------------------------
// Blocked dates
// ---------------------------------------------------------------------------

func (s *availabilityService) BlockDate(ctx context.Context, actor authorize.Actor, therapistID uuid.UUID, date civil.Date, reason string) (*repo.BlockedDate, error) {
	if !canManage(actor, therapistID) {
		return nil, ErrNotPermitted
	}
	if !date.IsValid() {
		return nil, ErrInvalidDate
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("blocked date id: %w", err)
	}
	b := &repo.BlockedDate{
		ID:          id,
		TherapistID: therapistID,
		Date:        date,
		Reason:      reason,
		CreatedAt:   s.now(),
	}

	if err := s.store.CreateBlockedDate(ctx, b); err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			return nil, ErrAlreadyBlocked.With("date", date.String())
		}
		return nil, fmt.Errorf("block date: %w", err)
	}

	s.audit.Record(ctx, audit.Event{
		Action:     audit.ActionDateBlocked,
		Actor:      actor,
		TargetType: audit.TargetBlockedDate,
		TargetID:   b.ID,
		New:        b,
	})
	return b, nil
}

func (s *availabilityService) UnblockDate(ctx context.Context, actor authorize.Actor, therapistID uuid.UUID, date civil.Date) error {
	if !canManage(actor, therapistID) {
		return ErrNotPermitted
	}

	existing, err := s.store.ListBlockedDates(ctx, therapistID, date, date)
	if err != nil {
		return fmt.Errorf("find blocked date: %w", err)
	}
	if len(existing) == 0 {
		return ErrBlockedNotFound
	}

	if err := s.store.DeleteBlockedDate(ctx, therapistID, date); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrBlockedNotFound
		}
		return fmt.Errorf("unblock date: %w", err)
	}

	s.audit.Record(ctx, audit.Event{
		Action:     audit.ActionDateUnblocked,
		Actor:      actor,
		TargetType: audit.TargetBlockedDate,
		TargetID:   existing[0].ID,
		Previous:   existing[0],
	})
	return nil
}

func (s *availabilityService) ListBlockedDates(ctx context.Context, therapistID uuid.UUID, from, to civil.Date) ([]*repo.BlockedDate, error) {
	dates, err := s.store.ListBlockedDates(ctx, therapistID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list blocked dates: %w", err)
	}
	return dates, nil
}
