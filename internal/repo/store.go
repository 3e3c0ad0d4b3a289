package repo

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"

	"github.com/Alijeyrad/simorq_booking/pkg/apperr"
)

var (
	ErrNotFound       = apperr.New(apperr.KindNotFound, "record not found")
	ErrDuplicate      = apperr.New(apperr.KindConflict, "record already exists")
	ErrOverlap        = apperr.New(apperr.KindConflict, "session overlaps an active session")
	ErrStatusMismatch = apperr.New(apperr.KindInvalidStateTransition, "session status changed concurrently")
	ErrTailMoved      = apperr.New(apperr.KindConflict, "audit chain tail moved")
)

// OverlapError names the active session a rejected insert collided with.
// Existing may be nil when only the storage constraint reported the clash.
type OverlapError struct {
	Existing *Session
}

func (e *OverlapError) Error() string {
	if e.Existing == nil {
		return ErrOverlap.Error()
	}
	return fmt.Sprintf("%s: %s at %s", ErrOverlap.Error(), e.Existing.ID, e.Existing.SessionDate.Format(time.RFC3339))
}

func (e *OverlapError) Unwrap() error { return ErrOverlap }

// WindowFilter selects availability windows of one therapist.
type WindowFilter struct {
	TherapistID uuid.UUID
	Type        WindowType
	ActiveOnly  bool
}

// SessionFilter selects sessions. Zero fields do not filter.
type SessionFilter struct {
	TherapistID     uuid.UUID
	ClientID        uuid.UUID
	From            time.Time // session_date >= From
	To              time.Time // session_date <= To
	Statuses        []SessionStatus
	ExcludeStatuses []SessionStatus
	Limit           int
	Offset          int
}

// Matches applies the filter to a single session.
func (f SessionFilter) Matches(s *Session) bool {
	if f.TherapistID != uuid.Nil && s.TherapistID != f.TherapistID {
		return false
	}
	if f.ClientID != uuid.Nil && s.ClientID != f.ClientID {
		return false
	}
	if !f.From.IsZero() && s.SessionDate.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && s.SessionDate.After(f.To) {
		return false
	}
	if len(f.Statuses) > 0 && !containsStatus(f.Statuses, s.Status) {
		return false
	}
	if containsStatus(f.ExcludeStatuses, s.Status) {
		return false
	}
	return true
}

func containsStatus(list []SessionStatus, s SessionStatus) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// AuditFilter selects audit entries in chain order.
type AuditFilter struct {
	TargetType    string
	TargetID      uuid.UUID
	AfterSequence int64
	Limit         int
}

// AvailabilityStore persists windows and blocked dates.
type AvailabilityStore interface {
	CreateWindow(ctx context.Context, w *AvailabilityWindow) error
	UpdateWindow(ctx context.Context, w *AvailabilityWindow) error
	GetWindow(ctx context.Context, id uuid.UUID) (*AvailabilityWindow, error)
	ListWindows(ctx context.Context, f WindowFilter) ([]*AvailabilityWindow, error)

	// CreateBlockedDate fails with ErrDuplicate when the date is already blocked.
	CreateBlockedDate(ctx context.Context, b *BlockedDate) error
	DeleteBlockedDate(ctx context.Context, therapistID uuid.UUID, date civil.Date) error
	ListBlockedDates(ctx context.Context, therapistID uuid.UUID, from, to civil.Date) ([]*BlockedDate, error)
	IsDateBlocked(ctx context.Context, therapistID uuid.UUID, date civil.Date) (bool, error)
}

// SessionStore persists sessions. Sessions are never deleted.
type SessionStore interface {
	// CreateSessionIfNoOverlap inserts s unless another session of the same
	// therapist that holds its slot overlaps it, in which case it returns an
	// *OverlapError. The check and the insert are atomic.
	CreateSessionIfNoOverlap(ctx context.Context, s *Session) error
	GetSession(ctx context.Context, id uuid.UUID) (*Session, error)
	// UpdateSessionIfStatus writes s only if the stored status still equals
	// expected, otherwise it returns ErrStatusMismatch.
	UpdateSessionIfStatus(ctx context.Context, s *Session, expected SessionStatus) error
	ListSessions(ctx context.Context, f SessionFilter) ([]*Session, error)
}

// AuditStore persists the audit chain.
type AuditStore interface {
	// AppendAuditEntry stores e and assigns its Sequence. It fails with
	// ErrTailMoved when e.PreviousHash is not the current tail's LogHash.
	AppendAuditEntry(ctx context.Context, e *AuditLogEntry) error
	// LastAuditEntry returns the tail, or ErrNotFound for an empty chain.
	LastAuditEntry(ctx context.Context) (*AuditLogEntry, error)
	ListAuditEntries(ctx context.Context, f AuditFilter) ([]*AuditLogEntry, error)
}

// Store is the full persistence surface of the booking core.
type Store interface {
	AvailabilityStore
	SessionStore
	AuditStore
	Close() error
}
