package ring

import (
	"container/list"
	"context"
	"sync"

	"github.com/sawpanic/klinenode/internal/model"
)

type ringKey struct {
	symbol string
	tf     model.Timeframe
}

// MemoryRing is an in-process deque-based Ring (grounded on
// original_source's RingBuffer, a dict of collections.deque(maxlen=N)).
type MemoryRing struct {
	mu       sync.Mutex
	capacity int
	bufs     map[ringKey]*list.List
}

// NewMemoryRing builds a Ring with the given per-key capacity.
func NewMemoryRing(capacity int) *MemoryRing {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &MemoryRing{capacity: capacity, bufs: make(map[ringKey]*list.List)}
}

func (r *MemoryRing) Put(_ context.Context, symbol string, tf model.Timeframe, bucket Bucket) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := ringKey{symbol, tf}
	dq, ok := r.bufs[key]
	if !ok {
		dq = list.New()
		r.bufs[key] = dq
	}
	dq.PushBack(bucket)
	for dq.Len() > r.capacity {
		dq.Remove(dq.Front())
	}
	return nil
}

func (r *MemoryRing) GetAll(_ context.Context, symbol string, tf model.Timeframe) ([]Bucket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	dq, ok := r.bufs[ringKey{symbol, tf}]
	if !ok {
		return nil, nil
	}
	out := make([]Bucket, 0, dq.Len())
	for e := dq.Front(); e != nil; e = e.Next() {
		out = append(out, e.Value.(Bucket))
	}
	return out, nil
}
