// Package repository provides the transactional data-access layer shared
// by every store in the vault, adapted from the teacher's
// shared/repository.BaseRepository (sqlx + lib/pq, NamedExecContext /
// GetContext / SelectContext, one Transaction helper used by every
// multi-statement mutation).
package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/zeromicro/go-zero/core/logx"

	"github.com/suleymanmyradov/agentkey/shared/apperr"
)

// BaseRepository wraps a *sqlx.DB with the handful of operations every
// store composes: named create/update, get-by-id, list, and the one
// Transaction helper that every spec.md multi-statement mutation
// (registration, agent+key creation, credential create/rotate) runs
// inside.
type BaseRepository struct {
	DB *sqlx.DB
}

func NewBaseRepository(db *sqlx.DB) *BaseRepository {
	return &BaseRepository{DB: db}
}

// Exec runs a named, non-transactional statement (inserts/updates that
// don't need to share a transaction with anything else).
func (r *BaseRepository) Exec(ctx context.Context, query string, arg interface{}) error {
	if _, err := r.DB.NamedExecContext(ctx, query, arg); err != nil {
		logx.WithContext(ctx).Errorf("repository exec failed: %v", err)
		return apperr.Wrap(apperr.DatabaseError, "exec failed", err)
	}
	return nil
}

// Get fetches a single row into dest. sql.ErrNoRows is reclassified as
// apperr.NotFound so callers never have to special-case the driver error.
func (r *BaseRepository) Get(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	if err := r.DB.GetContext(ctx, dest, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return apperr.New(apperr.NotFound, "record not found")
		}
		logx.WithContext(ctx).Errorf("repository get failed: %v", err)
		return apperr.Wrap(apperr.DatabaseError, "get failed", err)
	}
	return nil
}

// Select fetches multiple rows into dest (a pointer to a slice).
func (r *BaseRepository) Select(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	if err := r.DB.SelectContext(ctx, dest, query, args...); err != nil {
		logx.WithContext(ctx).Errorf("repository select failed: %v", err)
		return apperr.Wrap(apperr.DatabaseError, "select failed", err)
	}
	return nil
}

// ExecRaw runs a positional, non-named statement (deletes, counters,
// updates keyed by plain arguments rather than a struct).
func (r *BaseRepository) ExecRaw(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	res, err := r.DB.ExecContext(ctx, query, args...)
	if err != nil {
		logx.WithContext(ctx).Errorf("repository exec-raw failed: %v", err)
		return nil, apperr.Wrap(apperr.DatabaseError, "exec failed", err)
	}
	return res, nil
}

// Transaction runs fn inside a single *sqlx.Tx, committing on success and
// rolling back on error or panic. Every spec.md mutation that spans more
// than one statement — tenant+user+owner-update, agent+api-key+quota-row,
// credential create/rotate — goes through this helper.
func (r *BaseRepository) Transaction(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := r.DB.BeginTxx(ctx, nil)
	if err != nil {
		logx.WithContext(ctx).Errorf("failed to begin transaction: %v", err)
		return apperr.Wrap(apperr.DatabaseError, "failed to begin transaction", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			logx.WithContext(ctx).Errorf("rollback failed: %v", rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		logx.WithContext(ctx).Errorf("commit failed: %v", err)
		return apperr.Wrap(apperr.DatabaseError, "commit failed", err)
	}
	return nil
}

// IsUniqueViolation reports whether err is a Postgres unique-constraint
// violation (SQLSTATE 23505), the signal every store maps to
// apperr.Conflict.
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}
