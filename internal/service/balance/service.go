// Package balance implements the ledger propagation engine: asserting a
// balance for a day rewrites every later day of the same calendar year to
// carry the asserted amount, inside one transaction.
package balance

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/openhms/ledger/internal/date"
	"github.com/openhms/ledger/internal/errs"
	"github.com/openhms/ledger/internal/ledger"
)

// Store defines the keyed record primitives the engine needs. All methods
// participate in the transaction scope carried by ctx (see TxRunner).
type Store[K ledger.Key] interface {
	// Find returns the record at (key, d) or errs.ErrNotFound.
	Find(ctx context.Context, key K, d date.Date) (ledger.Record[K], error)
	// Upsert creates the record or overwrites amount/year/month for its key.
	Upsert(ctx context.Context, rec ledger.Record[K]) error
	// Delete removes the record at (key, d); false when nothing existed.
	Delete(ctx context.Context, key K, d date.Date) (bool, error)
	// List returns matching records ordered by date descending.
	List(ctx context.Context, f ledger.Filter[K]) ([]ledger.Record[K], error)
}

// TxRunner executes fn inside one atomic unit of work. The ctx passed to
// fn carries the transaction; every store call made with it either commits
// as a whole or rolls back as a whole.
type TxRunner interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Result summarizes one assertion.
type Result struct {
	// DatesTouched counts the asserted day plus every cascaded day.
	DatesTouched int
	// Cascaded is true when at least one later date was rewritten.
	Cascaded bool
}

// Service is the propagation engine for one ledger kind, parameterized by
// its account key type. Assertions on the same key are serialized by an
// in-process lock; assertions on different keys proceed concurrently.
type Service[K ledger.Key] struct {
	store    Store[K]
	tx       TxRunner
	locks    keyLocks[K]
	checkKey func(K) error
}

// New constructs the engine. checkKey validates the account dimension
// before any write; pass nil for ledgers without one.
func New[K ledger.Key](store Store[K], tx TxRunner, checkKey func(K) error) *Service[K] {
	if checkKey == nil {
		checkKey = func(K) error { return nil }
	}
	return &Service[K]{store: store, tx: tx, checkKey: checkKey, locks: newKeyLocks[K]()}
}

// RequireCode is the key check for string-coded ledgers (bank, drug).
func RequireCode(code string) error {
	if strings.TrimSpace(code) == "" {
		return fmt.Errorf("%w: account code is required", errs.ErrInvalid)
	}
	return nil
}

// Assert records amount as the balance of (key, d) and rewrites every
// later day of d's year to the same amount, creating days that do not
// exist yet. The whole walk is one transaction.
func (s *Service[K]) Assert(ctx context.Context, key K, d date.Date, amount decimal.Decimal) (Result, error) {
	if err := s.validate(key, d); err != nil {
		return Result{}, err
	}
	unlock := s.locks.lock(key)
	defer unlock()

	var res Result
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		return s.cascade(ctx, key, d, amount, &res)
	})
	if err != nil {
		return Result{}, err
	}
	return res, nil
}

// Reassert is the correction variant of Assert: the same cascade, but it
// fails with errs.ErrNotFound when no record exists at (key, d) yet.
func (s *Service[K]) Reassert(ctx context.Context, key K, d date.Date, amount decimal.Decimal) (Result, error) {
	if err := s.validate(key, d); err != nil {
		return Result{}, err
	}
	unlock := s.locks.lock(key)
	defer unlock()

	var res Result
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := s.store.Find(ctx, key, d); err != nil {
			if errors.Is(err, errs.ErrNoTable) {
				return errs.ErrNotFound
			}
			return err
		}
		return s.cascade(ctx, key, d, amount, &res)
	})
	if err != nil {
		return Result{}, err
	}
	return res, nil
}

// cascade walks day by day from d through December 31 of d's year,
// upserting the same amount with year/month rederived per day. Later days
// are overwritten unconditionally: an assertion states "this is the true
// balance from this day forward".
func (s *Service[K]) cascade(ctx context.Context, key K, d date.Date, amount decimal.Decimal, res *Result) error {
	boundary := d.YearEnd()
	for cur := d; !cur.After(boundary); cur = cur.Add(1) {
		if err := s.store.Upsert(ctx, ledger.NewRecord(key, cur, amount)); err != nil {
			return fmt.Errorf("upsert %s: %w", cur, err)
		}
		res.DatesTouched++
	}
	res.Cascaded = res.DatesTouched > 1
	return nil
}

// Delete removes the single record at (key, d). No cascade and no
// recomputation of forward dates.
func (s *Service[K]) Delete(ctx context.Context, key K, d date.Date) (bool, error) {
	if err := s.validate(key, d); err != nil {
		return false, err
	}
	unlock := s.locks.lock(key)
	defer unlock()

	var deleted bool
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		deleted, err = s.store.Delete(ctx, key, d)
		return err
	})
	if err != nil {
		if errors.Is(err, errs.ErrNoTable) {
			return false, errs.ErrNotFound
		}
		return false, err
	}
	return deleted, nil
}

// Get returns the record at (key, d). A missing backing relation reads as
// a missing record.
func (s *Service[K]) Get(ctx context.Context, key K, d date.Date) (ledger.Record[K], error) {
	if err := s.validate(key, d); err != nil {
		return ledger.Record[K]{}, err
	}
	rec, err := s.store.Find(ctx, key, d)
	if errors.Is(err, errs.ErrNoTable) {
		return ledger.Record[K]{}, errs.ErrNotFound
	}
	return rec, err
}

// List returns records matching f ordered by date descending. A missing
// backing relation degrades to an empty result.
func (s *Service[K]) List(ctx context.Context, f ledger.Filter[K]) ([]ledger.Record[K], error) {
	recs, err := s.store.List(ctx, f)
	if errors.Is(err, errs.ErrNoTable) {
		return []ledger.Record[K]{}, nil
	}
	return recs, err
}

func (s *Service[K]) validate(key K, d date.Date) error {
	if d.IsZero() {
		return fmt.Errorf("%w: date is required", errs.ErrInvalid)
	}
	if err := s.checkKey(key); err != nil {
		return err
	}
	return nil
}
