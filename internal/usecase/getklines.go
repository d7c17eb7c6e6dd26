// Package usecase orchestrates the Response Cache, Bar Store, and
// Serializer into the node's one read path.
package usecase

import (
	"context"
	"fmt"
	"strconv"

	"github.com/sawpanic/klinenode/internal/cache"
	"github.com/sawpanic/klinenode/internal/metrics"
	"github.com/sawpanic/klinenode/internal/model"
	"github.com/sawpanic/klinenode/internal/serialize"
	"github.com/sawpanic/klinenode/internal/store"
)

// GetKlinesParams is the caller's request, already validated.
type GetKlinesParams struct {
	Symbol         string
	Timeframe      model.Timeframe
	StartMs        *int64
	EndMs          *int64
	Limit          int
	IncludeCurrent bool
}

// GetKlines is the Read Use-Case: cache hit, or store query + serialize +
// cache insert.
type GetKlines struct {
	store      store.Store
	cache      cache.Cache
	ttlSeconds int
	metrics    *metrics.Registry
}

// NewGetKlines builds the use-case against st and c, with ttlSeconds from
// CACHE_TTL_SEC_KLINES.
func NewGetKlines(st store.Store, c cache.Cache, ttlSeconds int) *GetKlines {
	return &GetKlines{store: st, cache: c, ttlSeconds: ttlSeconds}
}

// SetMetrics attaches the registry cache hit/miss counters report into.
// Nil by default; instrumentation is skipped when unset.
func (g *GetKlines) SetMetrics(m *metrics.Registry) { g.metrics = m }

// Run executes the use-case, returning serialized JSON bytes.
func (g *GetKlines) Run(ctx context.Context, p GetKlinesParams) ([]byte, error) {
	onlyFinal := !p.IncludeCurrent
	key := CacheKey(p.Symbol, p.Timeframe, p.StartMs, p.EndMs, p.Limit, onlyFinal)

	if g.cache != nil {
		data, ok, err := g.cache.Get(ctx, key)
		if err != nil {
			return nil, err
		}
		if ok {
			if g.metrics != nil {
				g.metrics.CacheHits.WithLabelValues("klines").Inc()
			}
			return data, nil
		}
		if g.metrics != nil {
			g.metrics.CacheMisses.WithLabelValues("klines").Inc()
		}
	}

	bars, err := g.store.Query(ctx, store.QueryParams{
		Symbol: p.Symbol, Timeframe: p.Timeframe,
		StartMs: p.StartMs, EndMs: p.EndMs,
		Limit: p.Limit, OnlyFinal: onlyFinal,
	})
	if err != nil {
		return nil, err
	}

	data := serialize.Klines(bars)

	if g.cache != nil {
		ttl := g.ttlSeconds
		if ttl < 1 {
			ttl = 1
		}
		if err := g.cache.Set(ctx, key, data, ttl); err != nil {
			return nil, err
		}
	}
	return data, nil
}

// CacheKey builds the deterministic fingerprint:
// k:{symbol}:{timeframe}:{end_or_empty}:{limit}:{only_final}:{start_or_0}.
func CacheKey(symbol string, tf model.Timeframe, startMs, endMs *int64, limit int, onlyFinal bool) string {
	end := ""
	if endMs != nil {
		end = strconv.FormatInt(*endMs, 10)
	}
	start := "0"
	if startMs != nil {
		start = strconv.FormatInt(*startMs, 10)
	}
	finalFlag := "0"
	if onlyFinal {
		finalFlag = "1"
	}
	return fmt.Sprintf("k:%s:%s:%s:%d:%s:%s", symbol, tf.String(), end, limit, finalFlag, start)
}
