// Package conflict decides whether a requested session start collides with
// a session the therapist already holds.
package conflict

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Alijeyrad/simorq_booking/internal/repo"
)

// Result is the outcome of a check. ConflictingSession is set iff IsConflict.
type Result struct {
	IsConflict         bool          `json:"is_conflict"`
	ConflictingSession *repo.Session `json:"conflicting_session,omitempty"`
}

type Detector interface {
	Check(ctx context.Context, therapistID uuid.UUID, requestedStart time.Time) (Result, error)
}

// SessionLister is the read side of the session store.
type SessionLister interface {
	ListSessions(ctx context.Context, f repo.SessionFilter) ([]*repo.Session, error)
}

type detector struct {
	sessions SessionLister
}

func New(sessions SessionLister) Detector {
	return &detector{sessions: sessions}
}

// Check looks at sessions starting within one session length either side of
// requestedStart and reports the first whose interval intersects the
// requested one. It is a read and does not reserve anything.
func (d *detector) Check(ctx context.Context, therapistID uuid.UUID, requestedStart time.Time) (Result, error) {
	candidates, err := d.sessions.ListSessions(ctx, repo.SessionFilter{
		TherapistID:     therapistID,
		From:            requestedStart.Add(-repo.SessionDuration),
		To:              requestedStart.Add(repo.SessionDuration),
		ExcludeStatuses: repo.ReleasedStatuses,
	})
	if err != nil {
		return Result{}, fmt.Errorf("list candidate sessions: %w", err)
	}

	requested := repo.Interval{Start: requestedStart, End: requestedStart.Add(repo.SessionDuration)}
	for _, s := range candidates {
		if !s.Status.HoldsSlot() {
			continue
		}
		existing := repo.Interval{Start: s.SessionDate, End: s.SessionDate.Add(repo.SessionDuration)}
		if requested.Overlaps(existing) {
			return Result{IsConflict: true, ConflictingSession: s}, nil
		}
	}
	return Result{}, nil
}
