// Package store implements the Bar Store: a durable
// (symbol, timeframe, open_time) -> Bar mapping backed by either an
// embedded SQLite file or a networked PostgreSQL database, behind one
// interface so the rest of the node never branches on backend.
package store

import (
	"context"

	"github.com/sawpanic/klinenode/internal/model"
)

// QueryParams narrows a Query call. Unbounded fields are nil/zero.
type QueryParams struct {
	Symbol    string
	Timeframe model.Timeframe
	StartMs   *int64
	EndMs     *int64
	Limit     int
	OnlyFinal bool
}

// Store is the capability set every backend implements.
type Store interface {
	// Connect opens the pooled connection and ensures schema. Idempotent.
	Connect(ctx context.Context) error

	// Close releases the pool. Safe to call once during shutdown.
	Close() error

	// Upsert inserts or replaces bars. All bars must share one timeframe.
	// The whole batch is applied atomically; empty input is a no-op.
	Upsert(ctx context.Context, bars []model.Bar) error

	// Query returns at most Limit bars in [StartMs, EndMs] ascending by
	// OpenTime. OnlyFinal excludes non-final bars (in practice none are
	// ever stored non-final).
	Query(ctx context.Context, p QueryParams) ([]model.Bar, error)

	// MaxOpenTime returns the greatest OpenTime stored for tf across all
	// symbols, or (0, false) if the table is empty.
	MaxOpenTime(ctx context.Context, tf model.Timeframe) (int64, bool, error)

	// MinOpenTime returns the least OpenTime stored for tf across all
	// symbols, or (0, false) if the table is empty.
	MinOpenTime(ctx context.Context, tf model.Timeframe) (int64, bool, error)
}

// MaxQueryLimit bounds Query calls made on behalf of external API callers;
// internal aggregation windows may ask for far more.
const MaxQueryLimit = 1500

// MaxInternalQueryLimit is the ceiling used by the aggregator's own windowed
// reads of the 1m table.
const MaxInternalQueryLimit = 500_000
