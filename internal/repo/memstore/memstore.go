// Package memstore is an in-process implementation of repo.Store. It backs
// the test suites and the "memory" booking store driver.
package memstore

import (
	"context"
	"sort"
	"sync"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"

	"github.com/Alijeyrad/simorq_booking/internal/repo"
)

type blockedKey struct {
	therapist uuid.UUID
	date      civil.Date
}

// Store keeps every record in maps guarded by a single mutex, which makes
// the conditional writes trivially atomic.
type Store struct {
	mu sync.RWMutex

	windows  map[uuid.UUID]*repo.AvailabilityWindow
	blocked  map[blockedKey]*repo.BlockedDate
	sessions map[uuid.UUID]*repo.Session
	audit    []*repo.AuditLogEntry
}

var _ repo.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		windows:  make(map[uuid.UUID]*repo.AvailabilityWindow),
		blocked:  make(map[blockedKey]*repo.BlockedDate),
		sessions: make(map[uuid.UUID]*repo.Session),
	}
}

func (s *Store) Close() error { return nil }

// ----------------------------
// Availability
// ----------------------------

func (s *Store) CreateWindow(_ context.Context, w *repo.AvailabilityWindow) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.windows[w.ID]; ok {
		return repo.ErrDuplicate
	}
	s.windows[w.ID] = w.Clone()
	return nil
}

func (s *Store) UpdateWindow(_ context.Context, w *repo.AvailabilityWindow) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.windows[w.ID]; !ok {
		return repo.ErrNotFound
	}
	s.windows[w.ID] = w.Clone()
	return nil
}

func (s *Store) GetWindow(_ context.Context, id uuid.UUID) (*repo.AvailabilityWindow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	w, ok := s.windows[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return w.Clone(), nil
}

func (s *Store) ListWindows(_ context.Context, f repo.WindowFilter) ([]*repo.AvailabilityWindow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*repo.AvailabilityWindow
	for _, w := range s.windows {
		if f.TherapistID != uuid.Nil && w.TherapistID != f.TherapistID {
			continue
		}
		if f.Type != "" && w.WindowType != f.Type {
			continue
		}
		if f.ActiveOnly && !w.IsActive {
			continue
		}
		out = append(out, w.Clone())
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

func (s *Store) CreateBlockedDate(_ context.Context, b *repo.BlockedDate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := blockedKey{b.TherapistID, b.Date}
	if _, ok := s.blocked[k]; ok {
		return repo.ErrDuplicate
	}
	c := *b
	s.blocked[k] = &c
	return nil
}

func (s *Store) DeleteBlockedDate(_ context.Context, therapistID uuid.UUID, date civil.Date) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := blockedKey{therapistID, date}
	if _, ok := s.blocked[k]; !ok {
		return repo.ErrNotFound
	}
	delete(s.blocked, k)
	return nil
}

func (s *Store) ListBlockedDates(_ context.Context, therapistID uuid.UUID, from, to civil.Date) ([]*repo.BlockedDate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*repo.BlockedDate
	for k, b := range s.blocked {
		if k.therapist != therapistID {
			continue
		}
		if from.IsValid() && k.date.Before(from) {
			continue
		}
		if to.IsValid() && k.date.After(to) {
			continue
		}
		c := *b
		out = append(out, &c)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (s *Store) IsDateBlocked(_ context.Context, therapistID uuid.UUID, date civil.Date) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.blocked[blockedKey{therapistID, date}]
	return ok, nil
}

// ----------------------------
// Sessions
// ----------------------------

func (s *Store) CreateSessionIfNoOverlap(_ context.Context, sess *repo.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[sess.ID]; ok {
		return repo.ErrDuplicate
	}
	if sess.BookingReference != "" {
		for _, other := range s.sessions {
			if other.BookingReference == sess.BookingReference {
				return repo.ErrDuplicate
			}
		}
	}

	if sess.Status.HoldsSlot() {
		iv := sess.Interval()
		for _, other := range s.sessions {
			if other.TherapistID != sess.TherapistID || !other.Status.HoldsSlot() {
				continue
			}
			if other.Interval().Overlaps(iv) {
				return &repo.OverlapError{Existing: other.Clone()}
			}
		}
	}

	s.sessions[sess.ID] = sess.Clone()
	return nil
}

func (s *Store) GetSession(_ context.Context, id uuid.UUID) (*repo.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return sess.Clone(), nil
}

func (s *Store) UpdateSessionIfStatus(_ context.Context, sess *repo.Session, expected repo.SessionStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.sessions[sess.ID]
	if !ok {
		return repo.ErrNotFound
	}
	if cur.Status != expected {
		return repo.ErrStatusMismatch
	}
	s.sessions[sess.ID] = sess.Clone()
	return nil
}

func (s *Store) ListSessions(_ context.Context, f repo.SessionFilter) ([]*repo.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*repo.Session
	for _, sess := range s.sessions {
		if f.Matches(sess) {
			out = append(out, sess.Clone())
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].SessionDate.Equal(out[j].SessionDate) {
			return out[i].SessionDate.Before(out[j].SessionDate)
		}
		return out[i].ID.String() < out[j].ID.String()
	})

	return paginate(out, f.Offset, f.Limit), nil
}

// ----------------------------
// Audit
// ----------------------------

func (s *Store) AppendAuditEntry(_ context.Context, e *repo.AuditLogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tail := ""
	if n := len(s.audit); n > 0 {
		tail = s.audit[n-1].LogHash
	}
	if e.PrevHash() != tail {
		return repo.ErrTailMoved
	}

	e.Sequence = int64(len(s.audit) + 1)
	s.audit = append(s.audit, e.Clone())
	return nil
}

func (s *Store) LastAuditEntry(_ context.Context) (*repo.AuditLogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.audit) == 0 {
		return nil, repo.ErrNotFound
	}
	return s.audit[len(s.audit)-1].Clone(), nil
}

func (s *Store) ListAuditEntries(_ context.Context, f repo.AuditFilter) ([]*repo.AuditLogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*repo.AuditLogEntry
	for _, e := range s.audit {
		if e.Sequence <= f.AfterSequence {
			continue
		}
		if f.TargetType != "" && e.TargetType != f.TargetType {
			continue
		}
		if f.TargetID != uuid.Nil && e.TargetID != f.TargetID {
			continue
		}
		out = append(out, e.Clone())
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	return out, nil
}

func paginate[T any](items []T, offset, limit int) []T {
	if offset > 0 {
		if offset >= len(items) {
			return nil
		}
		items = items[offset:]
	}
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}
