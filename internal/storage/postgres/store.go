package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/openhms/ledger/internal/date"
	"github.com/openhms/ledger/internal/errs"
	"github.com/openhms/ledger/internal/ledger"
)

// The per-kind relations share one logical shape: primary key
// (balance_date[, code]) with a fixed-point amount and the year/month
// denormalized from the date. Writes provision the relation lazily; reads
// against an absent relation surface errs.ErrNoTable so callers can
// degrade to empty results.

const cashDDL = `
create table if not exists cash_balances (
    balance_date date primary key,
    amount       numeric(14,2) not null default 0,
    year         int not null,
    month        int not null
)`

const codedDDLFmt = `
create table if not exists %s (
    balance_date date not null,
    %s           text not null,
    amount       numeric(14,2) not null default 0,
    year         int not null,
    month        int not null,
    primary key (balance_date, %s)
)`

// CashStore persists the singleton cash ledger.
type CashStore struct {
	db     *DB
	ensure sync.Once
}

// NewCashStore returns the store for the cash_balances relation.
func NewCashStore(db *DB) *CashStore { return &CashStore{db: db} }

func (s *CashStore) provision(ctx context.Context) error {
	var err error
	s.ensure.Do(func() {
		// Runs on the pool so the DDL commits independently of any
		// surrounding transaction.
		_, err = s.db.pool.Exec(ctx, cashDDL)
	})
	return err
}

// Find implements balance.Store for the cash ledger.
func (s *CashStore) Find(ctx context.Context, _ ledger.CashKey, d date.Date) (ledger.Record[ledger.CashKey], error) {
	var rec ledger.Record[ledger.CashKey]
	var day time.Time
	err := s.db.conn(ctx).QueryRow(ctx, `
        select balance_date, amount, year, month
        from cash_balances
        where balance_date = $1
    `, d.Time()).Scan(&day, &rec.Amount, &rec.Year, &rec.Month)
	if errors.Is(err, pgx.ErrNoRows) {
		return ledger.Record[ledger.CashKey]{}, errs.ErrNotFound
	}
	if isUndefinedTable(err) {
		return ledger.Record[ledger.CashKey]{}, errs.ErrNoTable
	}
	if err != nil {
		return ledger.Record[ledger.CashKey]{}, err
	}
	rec.Date = date.FromTime(day)
	return rec, nil
}

// Upsert implements balance.Store for the cash ledger.
func (s *CashStore) Upsert(ctx context.Context, rec ledger.Record[ledger.CashKey]) error {
	if err := s.provision(ctx); err != nil {
		return err
	}
	_, err := s.db.conn(ctx).Exec(ctx, `
        insert into cash_balances (balance_date, amount, year, month)
        values ($1,$2,$3,$4)
        on conflict (balance_date) do update
        set amount = excluded.amount, year = excluded.year, month = excluded.month
    `, rec.Date.Time(), rec.Amount, rec.Year, rec.Month)
	return err
}

// Delete implements balance.Store for the cash ledger.
func (s *CashStore) Delete(ctx context.Context, _ ledger.CashKey, d date.Date) (bool, error) {
	ct, err := s.db.conn(ctx).Exec(ctx, `
        delete from cash_balances where balance_date = $1
    `, d.Time())
	if isUndefinedTable(err) {
		return false, errs.ErrNoTable
	}
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() > 0, nil
}

// List implements balance.Store for the cash ledger.
func (s *CashStore) List(ctx context.Context, f ledger.Filter[ledger.CashKey]) ([]ledger.Record[ledger.CashKey], error) {
	where, args := dateClauses(f.From, f.To, f.Year, f.Month)
	q := `select balance_date, amount, year, month from cash_balances`
	if len(where) > 0 {
		q += " where " + strings.Join(where, " and ")
	}
	q += " order by balance_date desc"
	rows, err := s.db.conn(ctx).Query(ctx, q, args...)
	if isUndefinedTable(err) {
		return nil, errs.ErrNoTable
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]ledger.Record[ledger.CashKey], 0)
	for rows.Next() {
		var rec ledger.Record[ledger.CashKey]
		var day time.Time
		if err := rows.Scan(&day, &rec.Amount, &rec.Year, &rec.Month); err != nil {
			return nil, err
		}
		rec.Date = date.FromTime(day)
		out = append(out, rec)
	}
	// pgx may defer query execution errors to rows.Err().
	if err := rows.Err(); isUndefinedTable(err) {
		return nil, errs.ErrNoTable
	} else if err != nil {
		return nil, err
	}
	return out, nil
}

// CodeStore persists a string-coded ledger (bank accounts, drug stock).
// The table and key column names are fixed at construction.
type CodeStore struct {
	db     *DB
	table  string
	keyCol string
	ensure sync.Once
}

// NewBankStore returns the store for the bank_balances relation.
func NewBankStore(db *DB) *CodeStore {
	return &CodeStore{db: db, table: "bank_balances", keyCol: "account_code"}
}

// NewDrugStore returns the store for the drug_balances relation.
func NewDrugStore(db *DB) *CodeStore {
	return &CodeStore{db: db, table: "drug_balances", keyCol: "drug_code"}
}

func (s *CodeStore) provision(ctx context.Context) error {
	var err error
	s.ensure.Do(func() {
		_, err = s.db.pool.Exec(ctx, fmt.Sprintf(codedDDLFmt, s.table, s.keyCol, s.keyCol))
	})
	return err
}

// Find implements balance.Store for a coded ledger.
func (s *CodeStore) Find(ctx context.Context, code string, d date.Date) (ledger.Record[string], error) {
	var rec ledger.Record[string]
	var day time.Time
	q := fmt.Sprintf(`
        select balance_date, %s, amount, year, month
        from %s
        where balance_date = $1 and %s = $2
    `, s.keyCol, s.table, s.keyCol)
	err := s.db.conn(ctx).QueryRow(ctx, q, d.Time(), code).
		Scan(&day, &rec.Account, &rec.Amount, &rec.Year, &rec.Month)
	if errors.Is(err, pgx.ErrNoRows) {
		return ledger.Record[string]{}, errs.ErrNotFound
	}
	if isUndefinedTable(err) {
		return ledger.Record[string]{}, errs.ErrNoTable
	}
	if err != nil {
		return ledger.Record[string]{}, err
	}
	rec.Date = date.FromTime(day)
	return rec, nil
}

// Upsert implements balance.Store for a coded ledger.
func (s *CodeStore) Upsert(ctx context.Context, rec ledger.Record[string]) error {
	if err := s.provision(ctx); err != nil {
		return err
	}
	q := fmt.Sprintf(`
        insert into %s (balance_date, %s, amount, year, month)
        values ($1,$2,$3,$4,$5)
        on conflict (balance_date, %s) do update
        set amount = excluded.amount, year = excluded.year, month = excluded.month
    `, s.table, s.keyCol, s.keyCol)
	_, err := s.db.conn(ctx).Exec(ctx, q, rec.Date.Time(), rec.Account, rec.Amount, rec.Year, rec.Month)
	return err
}

// Delete implements balance.Store for a coded ledger.
func (s *CodeStore) Delete(ctx context.Context, code string, d date.Date) (bool, error) {
	q := fmt.Sprintf(`delete from %s where balance_date = $1 and %s = $2`, s.table, s.keyCol)
	ct, err := s.db.conn(ctx).Exec(ctx, q, d.Time(), code)
	if isUndefinedTable(err) {
		return false, errs.ErrNoTable
	}
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() > 0, nil
}

// List implements balance.Store for a coded ledger: date descending, code
// ascending within a date.
func (s *CodeStore) List(ctx context.Context, f ledger.Filter[string]) ([]ledger.Record[string], error) {
	where, args := dateClauses(f.From, f.To, f.Year, f.Month)
	if f.Account != nil {
		args = append(args, *f.Account)
		where = append(where, fmt.Sprintf("%s = $%d", s.keyCol, len(args)))
	}
	q := fmt.Sprintf(`select balance_date, %s, amount, year, month from %s`, s.keyCol, s.table)
	if len(where) > 0 {
		q += " where " + strings.Join(where, " and ")
	}
	q += fmt.Sprintf(" order by balance_date desc, %s asc", s.keyCol)
	rows, err := s.db.conn(ctx).Query(ctx, q, args...)
	if isUndefinedTable(err) {
		return nil, errs.ErrNoTable
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]ledger.Record[string], 0)
	for rows.Next() {
		var rec ledger.Record[string]
		var day time.Time
		if err := rows.Scan(&day, &rec.Account, &rec.Amount, &rec.Year, &rec.Month); err != nil {
			return nil, err
		}
		rec.Date = date.FromTime(day)
		out = append(out, rec)
	}
	if err := rows.Err(); isUndefinedTable(err) {
		return nil, errs.ErrNoTable
	} else if err != nil {
		return nil, err
	}
	return out, nil
}

// dateClauses builds the shared temporal filter predicates.
func dateClauses(from, to *date.Date, year, month *int) ([]string, []any) {
	where := make([]string, 0, 4)
	args := make([]any, 0, 4)
	if from != nil {
		args = append(args, from.Time())
		where = append(where, fmt.Sprintf("balance_date >= $%d", len(args)))
	}
	if to != nil {
		args = append(args, to.Time())
		where = append(where, fmt.Sprintf("balance_date <= $%d", len(args)))
	}
	if year != nil {
		args = append(args, *year)
		where = append(where, fmt.Sprintf("year = $%d", len(args)))
	}
	if month != nil {
		args = append(args, *month)
		where = append(where, fmt.Sprintf("month = $%d", len(args)))
	}
	return where, args
}
