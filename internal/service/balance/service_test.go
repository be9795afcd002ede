package balance_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/openhms/ledger/internal/date"
	"github.com/openhms/ledger/internal/errs"
	"github.com/openhms/ledger/internal/ledger"
	"github.com/openhms/ledger/internal/service/balance"
	"github.com/openhms/ledger/internal/storage/memory"
)

func newBankService() (*memory.Store[string], *balance.Service[string]) {
	store := memory.New[string](memory.CodeLess)
	return store, balance.New[string](store, store, balance.RequireCode)
}

func newCashService() (*memory.Store[ledger.CashKey], *balance.Service[ledger.CashKey]) {
	store := memory.New[ledger.CashKey](nil)
	return store, balance.New[ledger.CashKey](store, store, nil)
}

func amt(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestAssertCascadesToYearEnd(t *testing.T) {
	store, svc := newBankService()
	ctx := context.Background()

	res, err := svc.Assert(ctx, "BANK01", date.MustParse("2025-06-10"), amt("1000.00"))
	if err != nil {
		t.Fatalf("assert: %v", err)
	}
	// 2025-06-10 .. 2025-12-31 inclusive
	if res.DatesTouched != 205 {
		t.Fatalf("dates touched = %d, want 205", res.DatesTouched)
	}
	if !res.Cascaded {
		t.Fatal("expected cascaded")
	}
	if store.Len() != 205 {
		t.Fatalf("stored records = %d, want 205", store.Len())
	}

	for _, day := range []string{"2025-06-10", "2025-08-15", "2025-12-31"} {
		rec, err := svc.Get(ctx, "BANK01", date.MustParse(day))
		if err != nil {
			t.Fatalf("get %s: %v", day, err)
		}
		if !rec.Amount.Equal(amt("1000.00")) {
			t.Fatalf("%s amount = %s, want 1000", day, rec.Amount)
		}
	}
	// Nothing before the asserted date.
	if _, err := svc.Get(ctx, "BANK01", date.MustParse("2025-06-09")); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("expected not found before asserted date, got %v", err)
	}
	// Nothing in the next year.
	if _, err := svc.Get(ctx, "BANK01", date.MustParse("2026-01-01")); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("expected not found past year boundary, got %v", err)
	}
}

func TestLaterAssertLeavesEarlierTailUntouched(t *testing.T) {
	_, svc := newBankService()
	ctx := context.Background()

	if _, err := svc.Assert(ctx, "BANK01", date.MustParse("2025-06-10"), amt("1000.00")); err != nil {
		t.Fatalf("first assert: %v", err)
	}
	res, err := svc.Assert(ctx, "BANK01", date.MustParse("2025-09-01"), amt("500.00"))
	if err != nil {
		t.Fatalf("second assert: %v", err)
	}
	// 2025-09-01 .. 2025-12-31 inclusive
	if res.DatesTouched != 122 {
		t.Fatalf("dates touched = %d, want 122", res.DatesTouched)
	}

	checks := map[string]string{
		"2025-06-10": "1000.00",
		"2025-08-31": "1000.00",
		"2025-09-01": "500.00",
		"2025-12-31": "500.00",
	}
	for day, want := range checks {
		rec, err := svc.Get(ctx, "BANK01", date.MustParse(day))
		if err != nil {
			t.Fatalf("get %s: %v", day, err)
		}
		if !rec.Amount.Equal(amt(want)) {
			t.Fatalf("%s amount = %s, want %s", day, rec.Amount, want)
		}
	}
}

func TestAssertIsIdempotent(t *testing.T) {
	store, svc := newBankService()
	ctx := context.Background()
	d := date.MustParse("2025-03-15")

	if _, err := svc.Assert(ctx, "BANK01", d, amt("42.50")); err != nil {
		t.Fatalf("assert: %v", err)
	}
	first, err := svc.List(ctx, ledger.Filter[string]{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if _, err := svc.Assert(ctx, "BANK01", d, amt("42.50")); err != nil {
		t.Fatalf("re-assert: %v", err)
	}
	second, err := svc.List(ctx, ledger.Filter[string]{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if store.Len() != len(first) || len(first) != len(second) {
		t.Fatalf("record count changed: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].Date != second[i].Date || !first[i].Amount.Equal(second[i].Amount) {
			t.Fatalf("record %d changed: %+v vs %+v", i, first[i], second[i])
		}
	}
}

func TestYearBoundary(t *testing.T) {
	_, svc := newCashService()
	ctx := context.Background()

	res, err := svc.Assert(ctx, ledger.CashKey{}, date.MustParse("2025-12-31"), amt("9.99"))
	if err != nil {
		t.Fatalf("assert: %v", err)
	}
	if res.DatesTouched != 1 || res.Cascaded {
		t.Fatalf("Dec 31 result = %+v, want exactly one date and no cascade", res)
	}

	res, err = svc.Assert(ctx, ledger.CashKey{}, date.MustParse("2025-01-01"), amt("1"))
	if err != nil {
		t.Fatalf("assert: %v", err)
	}
	if res.DatesTouched != 365 {
		t.Fatalf("Jan 1 2025 touched %d dates, want 365", res.DatesTouched)
	}

	_, svcLeap := newCashService()
	res, err = svcLeap.Assert(ctx, ledger.CashKey{}, date.MustParse("2024-01-01"), amt("1"))
	if err != nil {
		t.Fatalf("assert: %v", err)
	}
	if res.DatesTouched != 366 {
		t.Fatalf("Jan 1 2024 touched %d dates, want 366 (leap year)", res.DatesTouched)
	}
}

func TestDerivedFieldsMatchDate(t *testing.T) {
	_, svc := newBankService()
	ctx := context.Background()

	if _, err := svc.Assert(ctx, "BANK01", date.MustParse("2025-11-28"), amt("7")); err != nil {
		t.Fatalf("assert: %v", err)
	}
	recs, err := svc.List(ctx, ledger.Filter[string]{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	for _, rec := range recs {
		if rec.Year != rec.Date.Year() || rec.Month != int(rec.Date.Month()) {
			t.Fatalf("derived fields diverge from date: %+v", rec)
		}
	}
	novs := 0
	for _, rec := range recs {
		if rec.Month == int(time.November) {
			novs++
		}
	}
	if novs != 3 { // Nov 28, 29, 30
		t.Fatalf("november records = %d, want 3", novs)
	}
}

func TestAccountsDoNotInterfere(t *testing.T) {
	_, svc := newBankService()
	ctx := context.Background()

	if _, err := svc.Assert(ctx, "A", date.MustParse("2025-06-10"), amt("100")); err != nil {
		t.Fatalf("assert: %v", err)
	}
	other := "B"
	recs, err := svc.List(ctx, ledger.Filter[string]{Account: &other})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(recs) != 0 {
		t.Fatalf("account B has %d records, want 0", len(recs))
	}
}

func TestReassertRequiresExistingRecord(t *testing.T) {
	store, svc := newBankService()
	ctx := context.Background()
	d := date.MustParse("2025-10-01")

	if _, err := svc.Reassert(ctx, "BANK01", d, amt("5")); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if store.Len() != 0 {
		t.Fatalf("failed reassert left %d records", store.Len())
	}

	if _, err := svc.Assert(ctx, "BANK01", d, amt("5")); err != nil {
		t.Fatalf("assert: %v", err)
	}
	res, err := svc.Reassert(ctx, "BANK01", d, amt("6"))
	if err != nil {
		t.Fatalf("reassert: %v", err)
	}
	if res.DatesTouched != 92 { // Oct 1 .. Dec 31
		t.Fatalf("dates touched = %d, want 92", res.DatesTouched)
	}
	rec, err := svc.Get(ctx, "BANK01", date.MustParse("2025-12-31"))
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !rec.Amount.Equal(amt("6")) {
		t.Fatalf("tail amount = %s, want 6", rec.Amount)
	}
}

func TestDeleteIsLocal(t *testing.T) {
	_, svc := newBankService()
	ctx := context.Background()

	if _, err := svc.Assert(ctx, "BANK01", date.MustParse("2025-12-20"), amt("3")); err != nil {
		t.Fatalf("assert: %v", err)
	}
	deleted, err := svc.Delete(ctx, "BANK01", date.MustParse("2025-12-25"))
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if !deleted {
		t.Fatal("expected delete to report true")
	}
	// Neighbors keep whatever the cascade last wrote.
	for _, day := range []string{"2025-12-24", "2025-12-26"} {
		rec, err := svc.Get(ctx, "BANK01", date.MustParse(day))
		if err != nil {
			t.Fatalf("get %s: %v", day, err)
		}
		if !rec.Amount.Equal(amt("3")) {
			t.Fatalf("%s amount = %s, want 3", day, rec.Amount)
		}
	}
	if _, err := svc.Get(ctx, "BANK01", date.MustParse("2025-12-25")); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("expected deleted day to be gone, got %v", err)
	}
	deleted, err = svc.Delete(ctx, "BANK01", date.MustParse("2025-12-25"))
	if err != nil {
		t.Fatalf("second delete: %v", err)
	}
	if deleted {
		t.Fatal("second delete should report false")
	}
}

func TestValidationRejectsBeforeWrite(t *testing.T) {
	store, svc := newBankService()
	ctx := context.Background()

	if _, err := svc.Assert(ctx, "BANK01", date.Date{}, amt("1")); !errors.Is(err, errs.ErrInvalid) {
		t.Fatalf("zero date: got %v", err)
	}
	if _, err := svc.Assert(ctx, "  ", date.MustParse("2025-01-01"), amt("1")); !errors.Is(err, errs.ErrInvalid) {
		t.Fatalf("blank code: got %v", err)
	}
	if store.Len() != 0 {
		t.Fatalf("validation failures wrote %d records", store.Len())
	}
}

// flakyStore fails upserts after a fixed number of calls to simulate a
// write error partway through a cascade.
type flakyStore struct {
	*memory.Store[string]
	failAfter int
	calls     int
}

func (f *flakyStore) Upsert(ctx context.Context, rec ledger.Record[string]) error {
	f.calls++
	if f.calls > f.failAfter {
		return errors.New("write failed")
	}
	return f.Store.Upsert(ctx, rec)
}

func TestFailedCascadeRollsBackCompletely(t *testing.T) {
	inner := memory.New[string](memory.CodeLess)
	store := &flakyStore{Store: inner, failAfter: 10}
	svc := balance.New[string](store, inner, balance.RequireCode)

	_, err := svc.Assert(context.Background(), "BANK01", date.MustParse("2025-06-10"), amt("1000"))
	if err == nil {
		t.Fatal("expected assert to fail")
	}
	if inner.Len() != 0 {
		t.Fatalf("rollback left %d records", inner.Len())
	}
}

func TestListOrdering(t *testing.T) {
	_, svc := newBankService()
	ctx := context.Background()

	if _, err := svc.Assert(ctx, "B", date.MustParse("2025-12-30"), amt("2")); err != nil {
		t.Fatalf("assert: %v", err)
	}
	if _, err := svc.Assert(ctx, "A", date.MustParse("2025-12-30"), amt("1")); err != nil {
		t.Fatalf("assert: %v", err)
	}
	recs, err := svc.List(ctx, ledger.Filter[string]{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(recs) != 4 {
		t.Fatalf("records = %d, want 4", len(recs))
	}
	// Date descending, account code ascending within a date.
	want := []struct {
		day  string
		code string
	}{
		{"2025-12-31", "A"}, {"2025-12-31", "B"},
		{"2025-12-30", "A"}, {"2025-12-30", "B"},
	}
	for i, w := range want {
		if recs[i].Date != date.MustParse(w.day) || recs[i].Account != w.code {
			t.Fatalf("recs[%d] = %s/%s, want %s/%s", i, recs[i].Date, recs[i].Account, w.day, w.code)
		}
	}
}

func TestListFilters(t *testing.T) {
	_, svc := newBankService()
	ctx := context.Background()

	if _, err := svc.Assert(ctx, "BANK01", date.MustParse("2025-11-15"), amt("8")); err != nil {
		t.Fatalf("assert: %v", err)
	}
	month := int(time.December)
	recs, err := svc.List(ctx, ledger.Filter[string]{Month: &month})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(recs) != 31 {
		t.Fatalf("december records = %d, want 31", len(recs))
	}
	from, to := date.MustParse("2025-11-20"), date.MustParse("2025-11-22")
	recs, err = svc.List(ctx, ledger.Filter[string]{From: &from, To: &to})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(recs) != 3 {
		t.Fatalf("range records = %d, want 3", len(recs))
	}
}

func TestConcurrentAssertionsOnDistinctAccounts(t *testing.T) {
	store, svc := newBankService()
	ctx := context.Background()

	codes := []string{"A", "B", "C", "D"}
	var wg sync.WaitGroup
	for _, code := range codes {
		wg.Add(1)
		go func(code string) {
			defer wg.Done()
			if _, err := svc.Assert(ctx, code, date.MustParse("2025-12-01"), amt("1")); err != nil {
				t.Errorf("assert %s: %v", code, err)
			}
		}(code)
	}
	wg.Wait()
	if store.Len() != 31*len(codes) {
		t.Fatalf("records = %d, want %d", store.Len(), 31*len(codes))
	}
}
