// Package model holds the bar/timeframe domain types shared across the
// store, fetcher, aggregator and serializer.
package model

import "fmt"

// Timeframe is a closed enumeration of the candle durations this node
// understands. It is never represented as a bare string past the API
// boundary; ParseTimeframe is the only place a string becomes one.
type Timeframe int

const (
	TF1m Timeframe = iota
	TF3m
	TF5m
	TF15m
	TF1h
	TF4h
	TF1d
)

// AllTimeframes lists every supported timeframe, 1m first, coarsest last.
var AllTimeframes = []Timeframe{TF1m, TF3m, TF5m, TF15m, TF1h, TF4h, TF1d}

// DerivedTimeframes lists every timeframe the Aggregator produces, finer
// before coarser. Each is built from 1m bars directly, not from each other;
// the ordering only controls the sequence AggregateSymbol runs in.
var DerivedTimeframes = []Timeframe{TF3m, TF5m, TF15m, TF1h, TF4h, TF1d}

func (tf Timeframe) String() string {
	switch tf {
	case TF1m:
		return "1m"
	case TF3m:
		return "3m"
	case TF5m:
		return "5m"
	case TF15m:
		return "15m"
	case TF1h:
		return "1h"
	case TF4h:
		return "4h"
	case TF1d:
		return "1d"
	default:
		return "unknown"
	}
}

// DurationMs returns the timeframe's fixed bucket width in milliseconds.
func (tf Timeframe) DurationMs() int64 {
	switch tf {
	case TF1m:
		return 60_000
	case TF3m:
		return 180_000
	case TF5m:
		return 300_000
	case TF15m:
		return 900_000
	case TF1h:
		return 3_600_000
	case TF4h:
		return 14_400_000
	case TF1d:
		return 86_400_000
	default:
		return 0
	}
}

// Table returns the storage table name for the timeframe.
func (tf Timeframe) Table() string {
	return "kline_" + tf.String()
}

// BucketStart aligns a millisecond timestamp down to the timeframe's grid.
func (tf Timeframe) BucketStart(tsMs int64) int64 {
	d := tf.DurationMs()
	if d <= 0 {
		return tsMs
	}
	return (tsMs / d) * d
}

// IsDirect reports whether this timeframe is fetched from upstream
// directly (1m, 4h) rather than derived by aggregation.
func (tf Timeframe) IsDirect() bool {
	return tf == TF1m || tf == TF4h
}

// ParseTimeframe parses an interval string (as accepted by the served and
// upstream HTTP APIs) into a Timeframe. It is the single point where a
// bare string enters the domain.
func ParseTimeframe(s string) (Timeframe, error) {
	for _, tf := range AllTimeframes {
		if tf.String() == s {
			return tf, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidTimeframe, s)
}
