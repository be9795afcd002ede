package v1

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/openhms/ledger/internal/date"
	"github.com/openhms/ledger/internal/ledger"
	"github.com/openhms/ledger/internal/service/balance"
)

// BalanceService abstracts the propagation engine for one ledger kind.
type BalanceService[K ledger.Key] interface {
	// Assert upserts (key, d) and cascades the amount to year end.
	Assert(ctx context.Context, key K, d date.Date, amount decimal.Decimal) (balance.Result, error)
	// Reassert is Assert for an existing record; ErrNotFound otherwise.
	Reassert(ctx context.Context, key K, d date.Date, amount decimal.Decimal) (balance.Result, error)
	// Delete removes the single record at (key, d) without cascading.
	Delete(ctx context.Context, key K, d date.Date) (bool, error)
	// Get returns the record at (key, d).
	Get(ctx context.Context, key K, d date.Date) (ledger.Record[K], error)
	// List returns matching records ordered by date descending.
	List(ctx context.Context, f ledger.Filter[K]) ([]ledger.Record[K], error)
}

// ReadyChecker is optionally implemented by stores to indicate readiness.
type ReadyChecker interface {
	Ready(ctx context.Context) error
}
