package pgstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/Alijeyrad/simorq_booking/internal/repo"
)

// CreateSessionIfNoOverlap serializes inserts per therapist with a
// transaction-scoped advisory lock, re-checks overlap inside the transaction
// and leaves the sessions_no_overlap exclusion constraint as the final guard.
func (s *Store) CreateSessionIfNoOverlap(ctx context.Context, sess *repo.Session) error {
	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, sess.TherapistID.String()); err != nil {
			return fmt.Errorf("lock therapist: %w", err)
		}

		if sess.Status.HoldsSlot() {
			existing, err := overlappingSession(ctx, tx, sess)
			if err != nil {
				return err
			}
			if existing != nil {
				return &repo.OverlapError{Existing: existing}
			}
		}

		query, args := builder().Insert(tableSessions).
			Columns(sessionColumns...).
			Values(sessionValues(sess)...).
			Query()
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("insert session: %w", translate(err))
		}
		return nil
	})
}

// overlappingSession finds an active session of the same therapist whose
// interval intersects sess. Sessions have a fixed length, so candidates start
// less than one session length before sess and before its end.
func overlappingSession(ctx context.Context, q sqlx.QueryerContext, sess *repo.Session) (*repo.Session, error) {
	iv := sess.Interval()
	query, args := builder().Select(sessionColumns...).
		From(entsql.Table(tableSessions)).
		Where(entsql.And(
			entsql.EQ("therapist_id", sess.TherapistID),
			entsql.NotIn("status", statusArgs(repo.ReleasedStatuses)...),
			entsql.GT("session_date", iv.Start.Add(-repo.SessionDuration)),
			entsql.LT("session_date", iv.End),
		)).
		OrderBy("session_date").
		Query()

	var rows []sessionRow
	if err := sqlx.SelectContext(ctx, q, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("check overlap: %w", err)
	}
	for _, r := range rows {
		other := r.toEntity()
		if other.Interval().Overlaps(iv) {
			return other, nil
		}
	}
	return nil, nil
}

func (s *Store) GetSession(ctx context.Context, id uuid.UUID) (*repo.Session, error) {
	query, args := builder().Select(sessionColumns...).
		From(entsql.Table(tableSessions)).
		Where(entsql.EQ("id", id)).
		Query()

	var row sessionRow
	if err := s.db.GetContext(ctx, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repo.ErrNotFound
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	return row.toEntity(), nil
}

// UpdateSessionIfStatus is a compare-and-swap on the status column.
func (s *Store) UpdateSessionIfStatus(ctx context.Context, sess *repo.Session, expected repo.SessionStatus) error {
	upd := builder().Update(tableSessions)
	values := sessionValues(sess)
	for i, col := range sessionColumns {
		switch col {
		case "id", "booking_reference", "client_id", "therapist_id", "created_at":
			continue
		}
		upd.Set(col, values[i])
	}
	query, args := upd.Where(entsql.And(
		entsql.EQ("id", sess.ID),
		entsql.EQ("status", string(expected)),
	)).Query()

	n, err := execAffected(ctx, s.db, query, args...)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	if n > 0 {
		return nil
	}

	if _, err := s.GetSession(ctx, sess.ID); err != nil {
		return err
	}
	return repo.ErrStatusMismatch
}

func (s *Store) ListSessions(ctx context.Context, f repo.SessionFilter) ([]*repo.Session, error) {
	sel := builder().Select(sessionColumns...).From(entsql.Table(tableSessions))
	if f.TherapistID != uuid.Nil {
		sel.Where(entsql.EQ("therapist_id", f.TherapistID))
	}
	if f.ClientID != uuid.Nil {
		sel.Where(entsql.EQ("client_id", f.ClientID))
	}
	if !f.From.IsZero() {
		sel.Where(entsql.GTE("session_date", f.From))
	}
	if !f.To.IsZero() {
		sel.Where(entsql.LTE("session_date", f.To))
	}
	if len(f.Statuses) > 0 {
		sel.Where(entsql.In("status", statusArgs(f.Statuses)...))
	}
	if len(f.ExcludeStatuses) > 0 {
		sel.Where(entsql.NotIn("status", statusArgs(f.ExcludeStatuses)...))
	}
	sel.OrderBy("session_date", "id")
	if f.Limit > 0 {
		sel.Limit(f.Limit)
	}
	if f.Offset > 0 {
		sel.Offset(f.Offset)
	}
	query, args := sel.Query()

	var rows []sessionRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	out := make([]*repo.Session, len(rows))
	for i, r := range rows {
		out[i] = r.toEntity()
	}
	return out, nil
}
