// Package ledger defines the domain model of the per-day balance ledgers:
// a record keyed by (date, account key) carrying the balance brought
// forward as of that day.
package ledger

import (
	"github.com/shopspring/decimal"

	"github.com/openhms/ledger/internal/date"
)

// Kind identifies a balance ledger variant.
type Kind string

const (
	// KindCash is the singleton cash ledger; it has no account dimension.
	KindCash Kind = "cash"
	// KindBank tracks per-bank-account balances keyed by account code.
	KindBank Kind = "bank"
	// KindDrug tracks per-drug stock balances keyed by drug code.
	KindDrug Kind = "drug"
)

// Key constrains the non-temporal dimension of a ledger record.
// The cash ledger uses CashKey; bank and drug ledgers use a string code.
type Key interface {
	comparable
}

// CashKey is the unit account key of the singleton cash ledger.
type CashKey struct{}

// Record is one day's balance for an account dimension. Year and Month are
// denormalized from Date for reporting filters; they are never accepted
// independently of Date.
type Record[K Key] struct {
	Date    date.Date
	Account K
	Amount  decimal.Decimal
	Year    int
	Month   int
}

// NewRecord builds a record with Year and Month derived from d.
func NewRecord[K Key](key K, d date.Date, amount decimal.Decimal) Record[K] {
	return Record[K]{
		Date:    d,
		Account: key,
		Amount:  amount,
		Year:    d.Year(),
		Month:   int(d.Month()),
	}
}

// Filter narrows a ledger listing. Nil fields are ignored.
type Filter[K Key] struct {
	From    *date.Date
	To      *date.Date
	Year    *int
	Month   *int
	Account *K
}

// Match reports whether r satisfies every set field of the filter.
func (f Filter[K]) Match(r Record[K]) bool {
	if f.From != nil && r.Date.Before(*f.From) {
		return false
	}
	if f.To != nil && r.Date.After(*f.To) {
		return false
	}
	if f.Year != nil && r.Year != *f.Year {
		return false
	}
	if f.Month != nil && r.Month != *f.Month {
		return false
	}
	if f.Account != nil && r.Account != *f.Account {
		return false
	}
	return true
}
