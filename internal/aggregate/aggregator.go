// Package aggregate derives higher timeframes from stored 1m bars by
// deterministic bucketing, resuming incrementally from the last aggregated
// bucket.
package aggregate

import (
	"context"
	"fmt"
	"sort"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/sawpanic/klinenode/internal/klerrors"
	"github.com/sawpanic/klinenode/internal/metrics"
	"github.com/sawpanic/klinenode/internal/model"
	"github.com/sawpanic/klinenode/internal/ring"
	"github.com/sawpanic/klinenode/internal/store"
)

const (
	windowDays  = 3
	windowMs    = windowDays * int64(model.TF1d.DurationMs())
	flushAtBars = 5000
	ringTail    = 5
)

// symbolConcurrency bounds how many symbols AggregateAllSymbols processes
// at once.
const symbolConcurrency = 5

// Aggregator rolls 1m bars up into the six derived timeframes.
type Aggregator struct {
	store   store.Store
	ring    ring.Ring
	nowFn   func() time.Time
	metrics *metrics.Registry
}

// New builds an Aggregator against st, appending ring-buffer tails to r.
func New(st store.Store, r ring.Ring) *Aggregator {
	return &Aggregator{store: st, ring: r, nowFn: time.Now}
}

// SetMetrics attaches the registry aggregate duration/error counters
// report into. Nil by default; instrumentation is skipped when unset.
func (a *Aggregator) SetMetrics(m *metrics.Registry) { a.metrics = m }

// AggregateSymbol runs aggregateOne for every derived timeframe, in the
// fixed order 3m, 5m, 15m, 1h, 4h, 1d.
func (a *Aggregator) AggregateSymbol(ctx context.Context, symbol string) error {
	start := time.Now()
	var err error
	for _, tf := range model.DerivedTimeframes {
		if err = a.aggregateOne(ctx, symbol, tf); err != nil {
			break
		}
	}
	if a.metrics != nil {
		a.metrics.ObserveAggregate(symbol, time.Since(start), err)
	}
	return err
}

// AggregateAllSymbols runs AggregateSymbol for every symbol, bounded by a
// symbol-level semaphore of capacity 5.
func (a *Aggregator) AggregateAllSymbols(ctx context.Context, symbols []string) error {
	sem := semaphore.NewWeighted(symbolConcurrency)
	errCh := make(chan error, len(symbols))
	for _, sym := range symbols {
		sym := sym
		if err := sem.Acquire(ctx, 1); err != nil {
			return fmt.Errorf("%w: acquire aggregate slot: %v", klerrors.ErrStore, err)
		}
		go func() {
			defer sem.Release(1)
			errCh <- a.AggregateSymbol(ctx, sym)
		}()
	}
	var firstErr error
	for range symbols {
		if err := <-errCh; err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (a *Aggregator) aggregateOne(ctx context.Context, symbol string, target model.Timeframe) error {
	itvMs := target.DurationMs()

	lastT, haveLast, err := a.store.MaxOpenTime(ctx, target)
	if err != nil {
		return err
	}
	min1m, have1m, err := a.store.MinOpenTime(ctx, model.TF1m)
	if err != nil {
		return err
	}
	if !have1m {
		return nil
	}

	var start int64
	if haveLast {
		start = target.BucketStart(lastT + itvMs)
	} else {
		start = target.BucketStart(min1m)
	}

	nowMs := a.nowFn().UnixMilli()
	endBucket := target.BucketStart(nowMs - 1)

	curStart := start
	var pending []model.Bar
	for curStart <= endBucket {
		curEnd := min64(endBucket+itvMs-1, curStart+windowMs-1)

		srcStart, srcEnd := curStart, curEnd
		srcBars, err := a.store.Query(ctx, store.QueryParams{
			Symbol: symbol, Timeframe: model.TF1m,
			StartMs: &srcStart, EndMs: &srcEnd,
			Limit: store.MaxInternalQueryLimit, OnlyFinal: true,
		})
		if err != nil {
			return err
		}
		if len(srcBars) == 0 {
			curStart = curEnd + 1
			continue
		}

		for _, bucket := range bucketize(srcBars, symbol, target, itvMs) {
			pending = append(pending, bucket)
		}

		if len(pending) >= flushAtBars {
			if err := a.flush(ctx, pending); err != nil {
				return err
			}
			pending = pending[:0]
		}
		curStart = curEnd + 1
	}

	if len(pending) > 0 {
		if err := a.flush(ctx, pending); err != nil {
			return err
		}
	}
	return nil
}

// bucketize groups ascending 1m bars into target-timeframe candles.
func bucketize(src []model.Bar, symbol string, target model.Timeframe, itvMs int64) []model.Bar {
	groups := make(map[int64][]model.Bar)
	var order []int64
	for _, b := range src {
		bs := target.BucketStart(b.OpenTime)
		if _, ok := groups[bs]; !ok {
			order = append(order, bs)
		}
		groups[bs] = append(groups[bs], b)
	}
	sort.Slice(order, func(i, j int) bool { return order[i] < order[j] })

	out := make([]model.Bar, 0, len(order))
	for _, bs := range order {
		bars := groups[bs]
		out = append(out, deriveBar(symbol, target, bs, itvMs, bars))
	}
	return out
}

func deriveBar(symbol string, target model.Timeframe, bucketStart, itvMs int64, bars []model.Bar) model.Bar {
	b := model.Bar{
		Symbol: symbol, Timeframe: target,
		OpenTime:  bucketStart,
		CloseTime: bucketStart + itvMs - 1,
		Open:      bars[0].Open,
		Close:     bars[len(bars)-1].Close,
		IsFinal:   true,
	}
	high, low := bars[0].High, bars[0].Low
	for _, x := range bars {
		if x.High > high {
			high = x.High
		}
		if x.Low < low {
			low = x.Low
		}
		b.Volume += x.Volume
		b.QuoteVolume += x.QuoteVolume
		b.Trades += x.Trades
		b.TakerBuyBase += x.TakerBuyBase
		b.TakerBuyQuote += x.TakerBuyQuote
	}
	b.High, b.Low = high, low
	return b
}

func (a *Aggregator) flush(ctx context.Context, bars []model.Bar) error {
	if err := a.store.Upsert(ctx, bars); err != nil {
		return err
	}
	if a.metrics != nil && len(bars) > 0 {
		a.metrics.BarsUpserted.WithLabelValues(bars[0].Timeframe.String()).Add(float64(len(bars)))
	}
	if a.ring == nil {
		return nil
	}
	tail := bars
	if len(tail) > ringTail {
		tail = tail[len(tail)-ringTail:]
	}
	for _, b := range tail {
		if err := ring.PutBar(ctx, a.ring, b); err != nil {
			return err
		}
	}
	return nil
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
