// Package postgres implements the storage interfaces on top of
// database/sql, normally backed by a pgx pool through pg.OpenDB.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrymomot/tiergate/pkg/pg"
)

// Store persists users, subscriptions, payments, usage metrics and audit
// entries.
type Store struct {
	db      *sql.DB
	now     func() time.Time
	retries int
}

// Option configures Store.
type Option func(*Store)

// WithClock overrides the time source used for created/updated columns.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithTxRetries sets how many times a transaction is retried after a
// serialization failure or deadlock.
func WithTxRetries(n int) Option {
	return func(s *Store) {
		if n >= 0 {
			s.retries = n
		}
	}
}

// New panics if db is nil.
func New(db *sql.DB, opts ...Option) *Store {
	if db == nil {
		panic("postgres: db is required")
	}
	s := &Store{db: db, now: time.Now, retries: 2}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// inTx runs fn in a transaction, retrying from the top on conflicts.
func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	var err error
	for attempt := 0; attempt <= s.retries; attempt++ {
		err = s.runTx(ctx, fn)
		if err == nil || !pg.IsRetryableError(err) || ctx.Err() != nil {
			return err
		}
	}
	return err
}

func (s *Store) runTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return errors.Join(err, rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func nullTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time.UTC()
	return &v
}

func toNullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func toNullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
