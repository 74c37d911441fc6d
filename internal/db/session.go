package db

import (
	"context"
	"database/sql"
	"errors"
)

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Session is a unit of work. Mutating operations run in their own
// transaction, committed before they return successfully and rolled back on
// any failure. Reads outside a mutation go straight to the pool.
//
// A Session is meant for a single request and is not safe for concurrent use.
type Session struct {
	m  *Manager
	tx *sql.Tx
}

// Close rolls back a transaction left open by an interrupted operation.
func (s *Session) Close() error {
	if s.tx == nil {
		return nil
	}
	tx := s.tx
	s.tx = nil
	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return &StorageError{Op: "close session", Err: err}
	}
	return nil
}

func (s *Session) q() querier {
	if s.tx != nil {
		return s.tx
	}
	return s.m.db
}

func (s *Session) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return s.q().ExecContext(ctx, s.m.dialect.rebind(query), args...)
}

func (s *Session) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return s.q().QueryContext(ctx, s.m.dialect.rebind(query), args...)
}

func (s *Session) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return s.q().QueryRowContext(ctx, s.m.dialect.rebind(query), args...)
}

// write runs fn in a fresh transaction. fn reports whether it changed
// anything; unchanged work is rolled back instead of committed. Errors from
// fn roll the transaction back and leave the package as domain errors.
func (s *Session) write(ctx context.Context, op string, fn func() (bool, error)) error {
	if s.tx != nil {
		// A previous operation was interrupted before it could finish.
		_ = s.Close()
	}

	tx, err := s.m.db.BeginTx(ctx, nil)
	if err != nil {
		return &StorageError{Op: op, Err: err}
	}
	s.tx = tx

	changed, err := fn()
	if err != nil {
		s.rollback(op)
		return storageErr(op, err)
	}
	if !changed {
		s.rollback(op)
		return nil
	}

	s.tx = nil
	if err := tx.Commit(); err != nil {
		return &StorageError{Op: op, Err: err}
	}
	return nil
}

func (s *Session) rollback(op string) {
	if s.tx == nil {
		return
	}
	tx := s.tx
	s.tx = nil
	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		s.m.logger.Warn("rollback failed", "op", op, "error", err)
	}
}

// uniqueViolation reports whether err is a unique violation that mentions
// column.
func (s *Session) uniqueViolation(err error, column string) bool {
	v, ok := s.m.dialect.classify(err)
	return ok && v.kind == violationUnique && v.mentions(column)
}

func nullInt64(p *int64) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *p, Valid: true}
}
