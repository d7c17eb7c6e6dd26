package usecase

import (
	"context"
	"time"

	"github.com/sawpanic/klinenode/internal/model"
	"github.com/sawpanic/klinenode/internal/store"
)

// HealthSnapshot is the payload behind GET /v1/health.
type HealthSnapshot struct {
	Status     string         `json:"status"`
	NowMs      int64          `json:"now"`
	LagSec1m   *int64         `json:"lag_sec_1m"`
	LagSecAgg  map[string]*int64 `json:"lag_sec_agg"`
	Version    string         `json:"version"`
}

// Health computes HealthSnapshot from the store's per-timeframe freshness.
type Health struct {
	store   store.Store
	version string
	nowFn   func() time.Time
}

// NewHealth builds the use-case, stamping version into every snapshot.
func NewHealth(st store.Store, version string) *Health {
	return &Health{store: st, version: version, nowFn: time.Now}
}

func (h *Health) Run(ctx context.Context) (HealthSnapshot, error) {
	nowMs := h.nowFn().UnixMilli()
	snap := HealthSnapshot{Status: "ok", NowMs: nowMs, Version: h.version, LagSecAgg: map[string]*int64{}}

	for _, tf := range model.AllTimeframes {
		maxT, ok, err := h.store.MaxOpenTime(ctx, tf)
		if err != nil {
			return HealthSnapshot{}, err
		}
		lag := lagSeconds(nowMs, maxT, ok)
		if tf == model.TF1m {
			snap.LagSec1m = lag
		} else {
			snap.LagSecAgg[tf.String()] = lag
		}
	}
	return snap, nil
}

func lagSeconds(nowMs, maxOpenTime int64, ok bool) *int64 {
	if !ok {
		return nil
	}
	v := (nowMs - maxOpenTime) / 1000
	if v < 0 {
		v = 0
	}
	return &v
}
