package pgstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"cloud.google.com/go/civil"
	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/Alijeyrad/simorq_booking/internal/repo"
)

func (s *Store) CreateWindow(ctx context.Context, w *repo.AvailabilityWindow) error {
	query, args := builder().Insert(tableWindows).
		Columns(windowColumns...).
		Values(windowValues(w)...).
		Query()
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert window: %w", translate(err))
	}
	return nil
}

func (s *Store) UpdateWindow(ctx context.Context, w *repo.AvailabilityWindow) error {
	upd := builder().Update(tableWindows)
	values := windowValues(w)
	// id and created_at are immutable
	for i, col := range windowColumns {
		if col == "id" || col == "created_at" {
			continue
		}
		upd.Set(col, values[i])
	}
	query, args := upd.Where(entsql.EQ("id", w.ID)).Query()

	n, err := execAffected(ctx, s.db, query, args...)
	if err != nil {
		return fmt.Errorf("update window: %w", err)
	}
	if n == 0 {
		return repo.ErrNotFound
	}
	return nil
}

func (s *Store) GetWindow(ctx context.Context, id uuid.UUID) (*repo.AvailabilityWindow, error) {
	query, args := builder().Select(windowColumns...).
		From(entsql.Table(tableWindows)).
		Where(entsql.EQ("id", id)).
		Query()

	var row windowRow
	if err := s.db.GetContext(ctx, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repo.ErrNotFound
		}
		return nil, fmt.Errorf("get window: %w", err)
	}
	return row.toEntity(), nil
}

func (s *Store) ListWindows(ctx context.Context, f repo.WindowFilter) ([]*repo.AvailabilityWindow, error) {
	sel := builder().Select(windowColumns...).From(entsql.Table(tableWindows))
	if f.TherapistID != uuid.Nil {
		sel.Where(entsql.EQ("therapist_id", f.TherapistID))
	}
	if f.Type != "" {
		sel.Where(entsql.EQ("window_type", string(f.Type)))
	}
	if f.ActiveOnly {
		sel.Where(entsql.EQ("is_active", true))
	}
	query, args := sel.OrderBy("created_at", "id").Query()

	var rows []windowRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list windows: %w", err)
	}
	out := make([]*repo.AvailabilityWindow, len(rows))
	for i, r := range rows {
		out[i] = r.toEntity()
	}
	return out, nil
}

func (s *Store) CreateBlockedDate(ctx context.Context, b *repo.BlockedDate) error {
	query, args := builder().Insert(tableBlocked).
		Columns("id", "therapist_id", "date", "reason", "created_at").
		Values(b.ID, b.TherapistID, b.Date.String(), b.Reason, b.CreatedAt).
		Query()
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert blocked date: %w", translate(err))
	}
	return nil
}

func (s *Store) DeleteBlockedDate(ctx context.Context, therapistID uuid.UUID, date civil.Date) error {
	query, args := builder().Delete(tableBlocked).
		Where(entsql.And(
			entsql.EQ("therapist_id", therapistID),
			entsql.EQ("date", date.String()),
		)).
		Query()

	n, err := execAffected(ctx, s.db, query, args...)
	if err != nil {
		return fmt.Errorf("delete blocked date: %w", err)
	}
	if n == 0 {
		return repo.ErrNotFound
	}
	return nil
}

func (s *Store) ListBlockedDates(ctx context.Context, therapistID uuid.UUID, from, to civil.Date) ([]*repo.BlockedDate, error) {
	sel := builder().Select("id", "therapist_id", "date", "reason", "created_at").
		From(entsql.Table(tableBlocked)).
		Where(entsql.EQ("therapist_id", therapistID))
	if from.IsValid() {
		sel.Where(entsql.GTE("date", from.String()))
	}
	if to.IsValid() {
		sel.Where(entsql.LTE("date", to.String()))
	}
	query, args := sel.OrderBy("date").Query()

	var rows []blockedRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list blocked dates: %w", err)
	}
	out := make([]*repo.BlockedDate, len(rows))
	for i, r := range rows {
		out[i] = r.toEntity()
	}
	return out, nil
}

func (s *Store) IsDateBlocked(ctx context.Context, therapistID uuid.UUID, date civil.Date) (bool, error) {
	query, args := builder().Select("id").
		From(entsql.Table(tableBlocked)).
		Where(entsql.And(
			entsql.EQ("therapist_id", therapistID),
			entsql.EQ("date", date.String()),
		)).
		Limit(1).
		Query()

	var id uuid.UUID
	err := s.db.GetContext(ctx, &id, query, args...)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("check blocked date: %w", err)
	}
	return true, nil
}
