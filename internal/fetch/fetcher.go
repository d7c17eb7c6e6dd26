// Package fetch drives the Upstream Client to fill the Bar Store: an
// initial backfill per symbol at startup, and a small incremental pull on
// every subsequent tick.
package fetch

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/sawpanic/klinenode/internal/config"
	"github.com/sawpanic/klinenode/internal/klerrors"
	"github.com/sawpanic/klinenode/internal/metrics"
	"github.com/sawpanic/klinenode/internal/model"
	"github.com/sawpanic/klinenode/internal/store"
	"github.com/sawpanic/klinenode/internal/upstream"
)

const pageStep = 1500

// barsPerDay maps a timeframe to how many of its bars fit in one day; only
// 1m and 4h are ever fetched directly from upstream.
var barsPerDay = map[model.Timeframe]int{
	model.TF1m: 1440,
	model.TF4h: 6,
}

// Fetcher owns one Upstream Client and fans out per-symbol work behind a
// bounded semaphore sized by FETCH_CONCURRENCY.
type Fetcher struct {
	cfg     *config.Config
	client  upstream.Client
	store   store.Store
	sem     *semaphore.Weighted
	nowFn   func() time.Time
	metrics *metrics.Registry
}

// New builds a Fetcher. nowFn defaults to time.Now; tests may override it.
func New(cfg *config.Config, client upstream.Client, st store.Store) *Fetcher {
	return &Fetcher{
		cfg:    cfg,
		client: client,
		store:  st,
		sem:    semaphore.NewWeighted(int64(cfg.FetchConcurrency)),
		nowFn:  time.Now,
	}
}

// SetMetrics attaches the registry fetch duration/error counters report
// into. Nil by default; instrumentation is skipped when unset.
func (f *Fetcher) SetMetrics(m *metrics.Registry) { f.metrics = m }

// InitialFetchAll runs InitialFetchSymbol for every configured symbol,
// bounded by FETCH_CONCURRENCY concurrent symbols at a time.
func (f *Fetcher) InitialFetchAll(ctx context.Context, symbols []string) error {
	return f.forEachSymbol(ctx, symbols, "initial", f.InitialFetchSymbol)
}

// IncrementalFetchAll runs IncrementalFetchSymbol for every configured
// symbol, bounded the same way.
func (f *Fetcher) IncrementalFetchAll(ctx context.Context, symbols []string) error {
	return f.forEachSymbol(ctx, symbols, "incremental", f.IncrementalFetchSymbol)
}

func (f *Fetcher) forEachSymbol(ctx context.Context, symbols []string, mode string, fn func(context.Context, string) error) error {
	errCh := make(chan error, len(symbols))
	for _, sym := range symbols {
		sym := sym
		if err := f.sem.Acquire(ctx, 1); err != nil {
			return fmt.Errorf("%w: acquire fetch slot: %v", klerrors.ErrStore, err)
		}
		go func() {
			defer f.sem.Release(1)
			start := time.Now()
			err := fn(ctx, sym)
			if f.metrics != nil {
				f.metrics.ObserveFetch(sym, mode, time.Since(start), err)
			}
			errCh <- err
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

// InitialFetchSymbol ensures one symbol's 1m (and, if configured, 4h)
// coverage reaches back far enough, then forward to now.
func (f *Fetcher) InitialFetchSymbol(ctx context.Context, symbol string) error {
	days := f.cfg.InitBackfillDays
	if days > 0 {
		if err := f.ensureCoverage(ctx, symbol, model.TF1m, barsPerDay[model.TF1m]*days); err != nil {
			return err
		}
		if f.cfg.BackfillPull4h {
			if err := f.ensureCoverage(ctx, symbol, model.TF4h, barsPerDay[model.TF4h]*days); err != nil {
				return err
			}
		}
		return nil
	}
	if f.cfg.InitPull4h != nil && *f.cfg.InitPull4h > 0 {
		if err := f.ensureCoverage(ctx, symbol, model.TF4h, *f.cfg.InitPull4h); err != nil {
			return err
		}
	}
	if f.cfg.InitPull1m != nil && *f.cfg.InitPull1m > 0 {
		if err := f.ensureCoverage(ctx, symbol, model.TF1m, *f.cfg.InitPull1m); err != nil {
			return err
		}
	}
	return nil
}

// IncrementalFetchSymbol pulls the latest two 1m bars for symbol: one to
// confirm the previous tick finalized, one in progress.
func (f *Fetcher) IncrementalFetchSymbol(ctx context.Context, symbol string) error {
	bars, err := f.client.FetchKlines(ctx, symbol, model.TF1m, nil, nil, 2)
	if err != nil {
		return err
	}
	return f.upsert(ctx, bars)
}

// upsert writes bars to the store and, if attached, records them against
// the matching timeframe counter.
func (f *Fetcher) upsert(ctx context.Context, bars []model.Bar) error {
	if err := f.store.Upsert(ctx, bars); err != nil {
		return err
	}
	if f.metrics != nil && len(bars) > 0 {
		f.metrics.BarsUpserted.WithLabelValues(bars[0].Timeframe.String()).Add(float64(len(bars)))
	}
	return nil
}

func (f *Fetcher) ensureCoverage(ctx context.Context, symbol string, tf model.Timeframe, coverageBars int) error {
	intervalMs := tf.DurationMs()
	nowMs := f.nowFn().UnixMilli()
	targetStart := nowMs - int64(coverageBars)*intervalMs

	lastOpen, ok, err := f.store.MaxOpenTime(ctx, tf)
	if err != nil {
		return err
	}
	if !ok {
		return f.pageForward(ctx, symbol, tf, targetStart, nowMs)
	}

	if err := f.pageBackward(ctx, symbol, tf, lastOpen, targetStart); err != nil {
		return err
	}
	return f.pageForward(ctx, symbol, tf, lastOpen+intervalMs, nowMs)
}

func (f *Fetcher) pageForward(ctx context.Context, symbol string, tf model.Timeframe, startMs, untilMs int64) error {
	intervalMs := tf.DurationMs()
	cur := startMs
	for cur <= untilMs {
		start := cur
		bars, err := f.client.FetchKlines(ctx, symbol, tf, &start, nil, pageStep)
		if err != nil {
			return err
		}
		if len(bars) == 0 {
			break
		}
		if err := f.upsert(ctx, bars); err != nil {
			return err
		}
		lastOpen := bars[len(bars)-1].OpenTime
		if len(bars) < pageStep && lastOpen+intervalMs > untilMs {
			break
		}
		cur = lastOpen + intervalMs
	}
	return nil
}

func (f *Fetcher) pageBackward(ctx context.Context, symbol string, tf model.Timeframe, endMs, untilMs int64) error {
	cur := endMs
	for cur > untilMs {
		end := cur
		bars, err := f.client.FetchKlines(ctx, symbol, tf, nil, &end, pageStep)
		if err != nil {
			return err
		}
		if len(bars) == 0 {
			break
		}
		if err := f.upsert(ctx, bars); err != nil {
			return err
		}
		firstOpen := bars[0].OpenTime
		if firstOpen <= untilMs {
			break
		}
		cur = firstOpen - 1
	}
	return nil
}
