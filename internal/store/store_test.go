package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/klinenode/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "klines.db")
	s := NewSQLiteStore(path)
	require.NoError(t, s.Connect(context.Background()))
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleBar(symbol string, openTime int64) model.Bar {
	return model.Bar{
		Symbol:    symbol,
		Timeframe: model.TF1m,
		OpenTime:  openTime,
		CloseTime: openTime + model.TF1m.DurationMs() - 1,
		Open:      100, High: 105, Low: 99, Close: 102,
		Volume:        10,
		QuoteVolume:   1000,
		Trades:        5,
		TakerBuyBase:  4,
		TakerBuyQuote: 400,
		IsFinal:       true,
	}
}

func TestSQLiteStore_UpsertAndQuery(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	bars := []model.Bar{
		sampleBar("BTCUSDT", 60_000),
		sampleBar("BTCUSDT", 120_000),
		sampleBar("BTCUSDT", 180_000),
	}
	require.NoError(t, s.Upsert(ctx, bars))

	got, err := s.Query(ctx, QueryParams{Symbol: "BTCUSDT", Timeframe: model.TF1m, Limit: 10})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, int64(60_000), got[0].OpenTime)
	assert.Equal(t, int64(180_000), got[2].OpenTime)
}

func TestSQLiteStore_UpsertIsIdempotent(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	b := sampleBar("ETHUSDT", 60_000)
	require.NoError(t, s.Upsert(ctx, []model.Bar{b}))
	b.Close = 999
	require.NoError(t, s.Upsert(ctx, []model.Bar{b}))

	got, err := s.Query(ctx, QueryParams{Symbol: "ETHUSDT", Timeframe: model.TF1m, Limit: 10})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 999.0, got[0].Close)
}

func TestSQLiteStore_QueryRespectsRangeAndLimit(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	var bars []model.Bar
	for i := int64(0); i < 5; i++ {
		bars = append(bars, sampleBar("BTCUSDT", 60_000*(i+1)))
	}
	require.NoError(t, s.Upsert(ctx, bars))

	start := int64(120_000)
	end := int64(240_000)
	got, err := s.Query(ctx, QueryParams{
		Symbol: "BTCUSDT", Timeframe: model.TF1m, StartMs: &start, EndMs: &end, Limit: 2,
	})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, int64(180_000), got[0].OpenTime)
	assert.Equal(t, int64(240_000), got[1].OpenTime)
}

func TestSQLiteStore_MaxMinOpenTimeEmpty(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	_, ok, err := s.MaxOpenTime(ctx, model.TF1h)
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = s.MinOpenTime(ctx, model.TF1h)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSQLiteStore_MaxMinOpenTime(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, []model.Bar{
		sampleBar("BTCUSDT", 60_000),
		sampleBar("BTCUSDT", 600_000),
	}))

	maxT, ok, err := s.MaxOpenTime(ctx, model.TF1m)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(600_000), maxT)

	minT, ok, err := s.MinOpenTime(ctx, model.TF1m)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(60_000), minT)
}

func TestSQLiteStore_UpsertRejectsMixedTimeframes(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	b1 := sampleBar("BTCUSDT", 60_000)
	b2 := sampleBar("BTCUSDT", 3*60_000)
	b2.Timeframe = model.TF3m

	err := s.Upsert(ctx, []model.Bar{b1, b2})
	assert.Error(t, err)
}
