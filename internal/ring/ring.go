// Package ring implements the Recent-Bucket Ring: a fixed-capacity FIFO of
// summarized recent aggregates per (symbol, timeframe). The aggregator
// writes to it; no component of the node reads it back.
package ring

import (
	"context"

	"github.com/sawpanic/klinenode/internal/model"
)

// DefaultCapacity is the ring's fixed depth per (symbol, timeframe).
const DefaultCapacity = 5

// Bucket is the summarized form of one aggregated bar kept in the ring.
type Bucket struct {
	OpenTime  int64
	CloseTime int64
	Open      float64
	High      float64
	Low       float64
	Close     float64
}

func bucketOf(b model.Bar) Bucket {
	return Bucket{OpenTime: b.OpenTime, CloseTime: b.CloseTime, Open: b.Open, High: b.High, Low: b.Low, Close: b.Close}
}

// Ring is the capability set both backends implement.
type Ring interface {
	// Put appends bucket to the (symbol, tf) ring, evicting the oldest
	// entry once capacity is exceeded.
	Put(ctx context.Context, symbol string, tf model.Timeframe, bucket Bucket) error

	// GetAll returns the ring's contents oldest-first.
	GetAll(ctx context.Context, symbol string, tf model.Timeframe) ([]Bucket, error)
}

// PutBar is a convenience wrapper used by the aggregator, which has whole
// Bars rather than pre-built Buckets.
func PutBar(ctx context.Context, r Ring, b model.Bar) error {
	return r.Put(ctx, b.Symbol, b.Timeframe, bucketOf(b))
}
