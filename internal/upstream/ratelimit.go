package upstream

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// hostLimiter hands out one token-bucket limiter per upstream host
// (grounded on sawpanic-cryptorun's internal/net/ratelimit.Limiter).
type hostLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rps      float64
	burst    int
}

func newHostLimiter(rps float64, burst int) *hostLimiter {
	return &hostLimiter{limiters: make(map[string]*rate.Limiter), rps: rps, burst: burst}
}

func (h *hostLimiter) wait(ctx context.Context, host string) error {
	h.mu.Lock()
	l, ok := h.limiters[host]
	if !ok {
		l = rate.NewLimiter(rate.Limit(h.rps), h.burst)
		h.limiters[host] = l
	}
	h.mu.Unlock()
	return l.Wait(ctx)
}
