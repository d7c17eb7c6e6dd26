package fetch

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/klinenode/internal/config"
	"github.com/sawpanic/klinenode/internal/model"
	"github.com/sawpanic/klinenode/internal/store"
)

type fakeClient struct {
	mu    sync.Mutex
	pages map[string][]model.Bar // key: symbol+direction; not used by these tests
	calls int
}

func (f *fakeClient) FetchKlines(ctx context.Context, symbol string, tf model.Timeframe, startMs, endMs *int64, limit int) ([]model.Bar, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	// Single page, then empty, simulating a short backfill window.
	if f.calls > 1 {
		return nil, nil
	}
	start := int64(0)
	if startMs != nil {
		start = *startMs
	}
	return []model.Bar{{
		Symbol: symbol, Timeframe: tf, OpenTime: start, CloseTime: start + tf.DurationMs() - 1,
		Open: 1, High: 1, Low: 1, Close: 1, IsFinal: true,
	}}, nil
}

type fakeStore struct {
	mu   sync.Mutex
	bars []model.Bar
}

func (s *fakeStore) Connect(ctx context.Context) error { return nil }
func (s *fakeStore) Close() error                      { return nil }
func (s *fakeStore) Upsert(ctx context.Context, bars []model.Bar) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bars = append(s.bars, bars...)
	return nil
}
func (s *fakeStore) Query(ctx context.Context, p store.QueryParams) ([]model.Bar, error) {
	return nil, nil
}
func (s *fakeStore) MaxOpenTime(ctx context.Context, tf model.Timeframe) (int64, bool, error) {
	return 0, false, nil
}
func (s *fakeStore) MinOpenTime(ctx context.Context, tf model.Timeframe) (int64, bool, error) {
	return 0, false, nil
}

func TestFetcher_IncrementalFetchSymbol(t *testing.T) {
	cfg := &config.Config{FetchConcurrency: 2}
	client := &fakeClient{}
	st := &fakeStore{}
	f := New(cfg, client, st)

	require.NoError(t, f.IncrementalFetchSymbol(context.Background(), "BTCUSDT"))
	assert.Len(t, st.bars, 1)
}

func TestFetcher_InitialFetchAll_SingleSlotStoresBars(t *testing.T) {
	cfg := &config.Config{FetchConcurrency: 1, InitBackfillDays: 1}
	client := &fakeClient{}
	st := &fakeStore{}
	f := New(cfg, client, st)
	f.nowFn = func() time.Time { return time.UnixMilli(10_000_000) }

	err := f.InitialFetchAll(context.Background(), []string{"BTCUSDT", "ETHUSDT"})
	require.NoError(t, err)
	assert.NotEmpty(t, st.bars)
}

// delayedClient simulates network latency per request, grounded on
// original_source/biance-main/tests/test_initial_fetch_concurrency.py's
// DummyFetcher.initial_fetch_symbol sleep.
type delayedClient struct {
	delay time.Duration
}

func (c *delayedClient) FetchKlines(ctx context.Context, symbol string, tf model.Timeframe, startMs, endMs *int64, limit int) ([]model.Bar, error) {
	time.Sleep(c.delay)
	return []model.Bar{{
		Symbol: symbol, Timeframe: tf, OpenTime: 0, CloseTime: tf.DurationMs() - 1,
		Open: 1, High: 1, Low: 1, Close: 1, IsFinal: true,
	}}, nil
}

func TestFetcher_IncrementalFetchAll_ConcurrencySpeedsUpSymbols(t *testing.T) {
	symbols := []string{"AAA", "BBB", "CCC", "DDD", "EEE"}
	const delay = 20 * time.Millisecond

	run := func(concurrency int) time.Duration {
		cfg := &config.Config{FetchConcurrency: concurrency}
		f := New(cfg, &delayedClient{delay: delay}, &fakeStore{})

		start := time.Now()
		require.NoError(t, f.IncrementalFetchAll(context.Background(), symbols))
		return time.Since(start)
	}

	seq := run(1)
	par := run(len(symbols))

	assert.Less(t, par, seq)
}
