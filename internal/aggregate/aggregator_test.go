package aggregate

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/klinenode/internal/model"
	"github.com/sawpanic/klinenode/internal/ring"
	"github.com/sawpanic/klinenode/internal/store"
)

type memStore struct {
	mu    sync.Mutex
	bars  map[model.Timeframe][]model.Bar
	delay time.Duration
}

func newMemStore() *memStore { return &memStore{bars: make(map[model.Timeframe][]model.Bar)} }

func (s *memStore) Connect(ctx context.Context) error { return nil }
func (s *memStore) Close() error                      { return nil }

func (s *memStore) Upsert(ctx context.Context, bars []model.Bar) error {
	time.Sleep(s.delay)
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(bars) == 0 {
		return nil
	}
	tf := bars[0].Timeframe
	byOpen := make(map[int64]model.Bar)
	for _, b := range s.bars[tf] {
		byOpen[b.OpenTime] = b
	}
	for _, b := range bars {
		byOpen[b.OpenTime] = b
	}
	var out []model.Bar
	for _, b := range byOpen {
		out = append(out, b)
	}
	sortBars(out)
	s.bars[tf] = out
	return nil
}

func (s *memStore) Query(ctx context.Context, p store.QueryParams) ([]model.Bar, error) {
	time.Sleep(s.delay)
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Bar
	for _, b := range s.bars[p.Timeframe] {
		if b.Symbol != p.Symbol {
			continue
		}
		if p.StartMs != nil && b.OpenTime < *p.StartMs {
			continue
		}
		if p.EndMs != nil && b.OpenTime > *p.EndMs {
			continue
		}
		out = append(out, b)
	}
	if len(out) > p.Limit {
		out = out[:p.Limit]
	}
	return out, nil
}

func (s *memStore) MaxOpenTime(ctx context.Context, tf model.Timeframe) (int64, bool, error) {
	time.Sleep(s.delay)
	s.mu.Lock()
	defer s.mu.Unlock()
	bars := s.bars[tf]
	if len(bars) == 0 {
		return 0, false, nil
	}
	max := bars[0].OpenTime
	for _, b := range bars {
		if b.OpenTime > max {
			max = b.OpenTime
		}
	}
	return max, true, nil
}

func (s *memStore) MinOpenTime(ctx context.Context, tf model.Timeframe) (int64, bool, error) {
	time.Sleep(s.delay)
	s.mu.Lock()
	defer s.mu.Unlock()
	bars := s.bars[tf]
	if len(bars) == 0 {
		return 0, false, nil
	}
	min := bars[0].OpenTime
	for _, b := range bars {
		if b.OpenTime < min {
			min = b.OpenTime
		}
	}
	return min, true, nil
}

func sortBars(bars []model.Bar) {
	for i := 1; i < len(bars); i++ {
		for j := i; j > 0 && bars[j-1].OpenTime > bars[j].OpenTime; j-- {
			bars[j-1], bars[j] = bars[j], bars[j-1]
		}
	}
}

func TestAggregator_5mRollup(t *testing.T) {
	st := newMemStore()
	ctx := context.Background()

	const t0 = int64(1_699_999_800_000) // multiple of 300_000: aligns to a 5m bucket start
	var bars []model.Bar
	for i := int64(0); i < 10; i++ {
		open := t0 + i*60_000
		bars = append(bars, model.Bar{
			Symbol: "BTCUSDT", Timeframe: model.TF1m,
			OpenTime: open, CloseTime: open + 60_000 - 1,
			Open: 1, High: 1, Low: 1, Close: 1, Volume: 1, IsFinal: true,
		})
	}
	require.NoError(t, st.Upsert(ctx, bars))

	a := New(st, ring.NewMemoryRing(5))
	a.nowFn = func() time.Time { return time.UnixMilli(t0 + 10*60_000 + 1) }

	require.NoError(t, a.aggregateOne(ctx, "BTCUSDT", model.TF5m))

	got, err := st.Query(ctx, store.QueryParams{Symbol: "BTCUSDT", Timeframe: model.TF5m, Limit: 10})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, t0, got[0].OpenTime)
	assert.Equal(t, t0+300_000, got[1].OpenTime)
	assert.Equal(t, 5.0, got[0].Volume)
	assert.Equal(t, 1.0, got[0].Open)
	assert.Equal(t, 1.0, got[0].Close)
}

func TestAggregator_NoOpOnEmpty1m(t *testing.T) {
	st := newMemStore()
	a := New(st, ring.NewMemoryRing(5))
	require.NoError(t, a.AggregateSymbol(context.Background(), "BTCUSDT"))
	assert.Empty(t, st.bars[model.TF3m])
}

// TestAggregator_AggregateAllSymbols_ConcurrencySpeedsUpSymbols grounds on
// original_source/biance-main/tests/test_aggregator_concurrency.py's
// test_aggregate_all_concurrent: aggregating symbolConcurrency symbols in
// parallel against an artificially slow store must beat running them one
// at a time.
func TestAggregator_AggregateAllSymbols_ConcurrencySpeedsUpSymbols(t *testing.T) {
	symbols := []string{"AAA", "BBB", "CCC", "DDD", "EEE"}
	const delay = 20 * time.Millisecond
	const t0 = int64(1_699_999_800_000)

	seed := func() *memStore {
		st := newMemStore()
		ctx := context.Background()
		for _, sym := range symbols {
			var bars []model.Bar
			for i := int64(0); i < 10; i++ {
				open := t0 + i*60_000
				bars = append(bars, model.Bar{
					Symbol: sym, Timeframe: model.TF1m,
					OpenTime: open, CloseTime: open + 60_000 - 1,
					Open: 1, High: 1, Low: 1, Close: 1, Volume: 1, IsFinal: true,
				})
			}
			require.NoError(t, st.Upsert(ctx, bars))
		}
		st.delay = delay
		return st
	}

	ctx := context.Background()
	nowFn := func() time.Time { return time.UnixMilli(t0 + 10*60_000 + 1) }

	seqStore := seed()
	seqAgg := New(seqStore, ring.NewMemoryRing(5))
	seqAgg.nowFn = nowFn
	seqStart := time.Now()
	for _, sym := range symbols {
		require.NoError(t, seqAgg.AggregateSymbol(ctx, sym))
	}
	seqDuration := time.Since(seqStart)

	parStore := seed()
	parAgg := New(parStore, ring.NewMemoryRing(5))
	parAgg.nowFn = nowFn
	parStart := time.Now()
	require.NoError(t, parAgg.AggregateAllSymbols(ctx, symbols))
	parDuration := time.Since(parStart)

	assert.Less(t, parDuration, seqDuration)
}
