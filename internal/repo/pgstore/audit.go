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

// AppendAuditEntry takes the chain lock, compares the stored tail with
// e.PreviousHash and inserts. The unique index on previous_hash rejects a
// fork even if two writers slipped past the comparison.
func (s *Store) AppendAuditEntry(ctx context.Context, e *repo.AuditLogEntry) error {
	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, auditChainLockKey); err != nil {
			return fmt.Errorf("lock audit chain: %w", err)
		}

		tail, err := lastAuditEntry(ctx, tx)
		switch {
		case errors.Is(err, repo.ErrNotFound):
			if e.PreviousHash != nil {
				return repo.ErrTailMoved
			}
		case err != nil:
			return err
		default:
			if e.PrevHash() != tail.LogHash {
				return repo.ErrTailMoved
			}
		}

		query, args := builder().Insert(tableAudit).
			Columns(auditColumns...).
			Values(auditValues(e)...).
			Returning("sequence").
			Query()

		var seq int64
		if err := tx.QueryRowxContext(ctx, query, args...).Scan(&seq); err != nil {
			if isCode(err, codeUniqueViolation) {
				return repo.ErrTailMoved
			}
			return fmt.Errorf("insert audit entry: %w", err)
		}
		e.Sequence = seq
		return nil
	})
}

func (s *Store) LastAuditEntry(ctx context.Context) (*repo.AuditLogEntry, error) {
	return lastAuditEntry(ctx, s.db)
}

func lastAuditEntry(ctx context.Context, q sqlx.QueryerContext) (*repo.AuditLogEntry, error) {
	query, args := builder().Select(append([]string{"sequence"}, auditColumns...)...).
		From(entsql.Table(tableAudit)).
		OrderBy(entsql.Desc("sequence")).
		Limit(1).
		Query()

	var row auditRow
	if err := sqlx.GetContext(ctx, q, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repo.ErrNotFound
		}
		return nil, fmt.Errorf("last audit entry: %w", err)
	}
	return row.toEntity(), nil
}

func (s *Store) ListAuditEntries(ctx context.Context, f repo.AuditFilter) ([]*repo.AuditLogEntry, error) {
	sel := builder().Select(append([]string{"sequence"}, auditColumns...)...).
		From(entsql.Table(tableAudit))
	if f.AfterSequence > 0 {
		sel.Where(entsql.GT("sequence", f.AfterSequence))
	}
	if f.TargetType != "" {
		sel.Where(entsql.EQ("target_type", f.TargetType))
	}
	if f.TargetID != uuid.Nil {
		sel.Where(entsql.EQ("target_id", f.TargetID))
	}
	sel.OrderBy("sequence")
	if f.Limit > 0 {
		sel.Limit(f.Limit)
	}
	query, args := sel.Query()

	var rows []auditRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	out := make([]*repo.AuditLogEntry, len(rows))
	for i, r := range rows {
		out[i] = r.toEntity()
	}
	return out, nil
}
