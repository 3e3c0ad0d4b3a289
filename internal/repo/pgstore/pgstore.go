// Package pgstore implements repo.Store on PostgreSQL through sqlx, with
// queries assembled by the ent SQL builder.
package pgstore

import (
	"context"
	"errors"
	"fmt"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/Alijeyrad/simorq_booking/internal/repo"
)

const (
	tableWindows  = "availability_windows"
	tableBlocked  = "blocked_dates"
	tableSessions = "sessions"
	tableAudit    = "audit_log"

	// auditChainLockKey serializes audit appends across processes.
	auditChainLockKey int64 = 0x73696d6f7271 // "simorq"
)

// Postgres error codes the store translates.
const (
	codeUniqueViolation    = "23505"
	codeExclusionViolation = "23P01"
)

// Store is a repo.Store backed by PostgreSQL.
type Store struct {
	db *sqlx.DB
}

var _ repo.Store = (*Store)(nil)

func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Close() error { return s.db.Close() }

func builder() *entsql.DialectBuilder {
	return entsql.Dialect(dialect.Postgres)
}

// inTx runs fn in a transaction, rolling back on error.
func (s *Store) inTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", translate(err))
	}
	return nil
}

// translate maps Postgres constraint violations onto repo errors.
func translate(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return err
	}
	switch pqErr.Code {
	case codeExclusionViolation:
		return &repo.OverlapError{}
	case codeUniqueViolation:
		return repo.ErrDuplicate.Wrapf(err)
	}
	return err
}

func isCode(err error, code pq.ErrorCode) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == code
}

func statusArgs(list []repo.SessionStatus) []any {
	out := make([]any, len(list))
	for i, s := range list {
		out[i] = string(s)
	}
	return out
}

func execAffected(ctx context.Context, ext sqlx.ExtContext, query string, args ...any) (int64, error) {
	res, err := ext.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, translate(err)
	}
	return res.RowsAffected()
}
