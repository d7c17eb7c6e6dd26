package ring

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/sawpanic/klinenode/internal/klerrors"
	"github.com/sawpanic/klinenode/internal/model"
)

// RedisRing is a distributed Ring backed by an RPUSH/LTRIM list per
// (symbol, timeframe) key (grounded on original_source's RedisRingBuffer).
type RedisRing struct {
	rdb      *redis.Client
	capacity int64
}

// NewRedisRing builds a Ring against a redis:// URL.
func NewRedisRing(url string, capacity int) (*RedisRing, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("%w: parse CACHE_URL: %v", klerrors.ErrConfig, err)
	}
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &RedisRing{rdb: redis.NewClient(opt), capacity: int64(capacity)}, nil
}

func ringKeyString(symbol string, tf model.Timeframe) string {
	return fmt.Sprintf("agg:%s:%s", symbol, tf.String())
}

func (r *RedisRing) Put(ctx context.Context, symbol string, tf model.Timeframe, bucket Bucket) error {
	val, err := json.Marshal(bucket)
	if err != nil {
		return fmt.Errorf("%w: marshal ring bucket: %v", klerrors.ErrStore, err)
	}
	key := ringKeyString(symbol, tf)
	_, err = r.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, key, val)
		pipe.LTrim(ctx, key, -r.capacity, -1)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: redis ring put: %v", klerrors.ErrStore, err)
	}
	return nil
}

func (r *RedisRing) GetAll(ctx context.Context, symbol string, tf model.Timeframe) ([]Bucket, error) {
	raws, err := r.rdb.LRange(ctx, ringKeyString(symbol, tf), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: redis ring get: %v", klerrors.ErrStore, err)
	}
	out := make([]Bucket, 0, len(raws))
	for _, raw := range raws {
		var b Bucket
		if err := json.Unmarshal([]byte(raw), &b); err != nil {
			return nil, fmt.Errorf("%w: unmarshal ring bucket: %v", klerrors.ErrStore, err)
		}
		out = append(out, b)
	}
	return out, nil
}

func (r *RedisRing) Close() error { return r.rdb.Close() }
