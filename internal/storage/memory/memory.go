// Package memory provides an in-memory ledger store used for development
// and tests. It keeps code paths easy to follow while allowing the
// Postgres store to be plugged in unchanged.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/openhms/ledger/internal/date"
	"github.com/openhms/ledger/internal/errs"
	"github.com/openhms/ledger/internal/ledger"
)

type recordKey[K ledger.Key] struct {
	date    date.Date
	account K
}

// Store is an in-memory implementation of the balance store and
// transaction runner for one ledger kind. It is guarded by an RWMutex for
// concurrent reads/writes.
type Store[K ledger.Key] struct {
	mu   sync.RWMutex
	txMu sync.Mutex
	recs map[recordKey[K]]ledger.Record[K]
	// keyLess orders equal-date records in listings (account code
	// ascending for keyed ledgers); nil for the singleton cash ledger.
	keyLess func(a, b K) bool
}

// New constructs an empty store. keyLess may be nil when the key type has
// no meaningful order (cash).
func New[K ledger.Key](keyLess func(a, b K) bool) *Store[K] {
	return &Store[K]{recs: make(map[recordKey[K]]ledger.Record[K]), keyLess: keyLess}
}

// CodeLess orders string-coded accounts ascending.
func CodeLess(a, b string) bool { return a < b }

// WithinTx runs fn against a snapshot-protected store: when fn fails, the
// record set is restored so no partial cascade is observable. Transactions
// are serialized, which matches the dev/test role of this store.
func (s *Store[K]) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	snapshot := make(map[recordKey[K]]ledger.Record[K], len(s.recs))
	for k, v := range s.recs {
		snapshot[k] = v
	}
	s.mu.RUnlock()

	if err := fn(ctx); err != nil {
		s.mu.Lock()
		s.recs = snapshot
		s.mu.Unlock()
		return err
	}
	return nil
}

// Find implements balance.Store.
func (s *Store[K]) Find(_ context.Context, key K, d date.Date) (ledger.Record[K], error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.recs[recordKey[K]{date: d, account: key}]
	if !ok {
		return ledger.Record[K]{}, errs.ErrNotFound
	}
	return rec, nil
}

// Upsert implements balance.Store.
func (s *Store[K]) Upsert(_ context.Context, rec ledger.Record[K]) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recs[recordKey[K]{date: rec.Date, account: rec.Account}] = rec
	return nil
}

// Delete implements balance.Store.
func (s *Store[K]) Delete(_ context.Context, key K, d date.Date) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := recordKey[K]{date: d, account: key}
	if _, ok := s.recs[k]; !ok {
		return false, nil
	}
	delete(s.recs, k)
	return true, nil
}

// List implements balance.Store: date descending, then account ascending
// within a date when keyLess is set.
func (s *Store[K]) List(_ context.Context, f ledger.Filter[K]) ([]ledger.Record[K], error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ledger.Record[K], 0)
	for _, rec := range s.recs {
		if f.Match(rec) {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[j].Date.Before(out[i].Date)
		}
		if s.keyLess != nil {
			return s.keyLess(out[i].Account, out[j].Account)
		}
		return false
	})
	return out, nil
}

// Len reports the number of stored records. Test helper.
func (s *Store[K]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.recs)
}
