package upstream

import (
	"time"

	"github.com/sony/gobreaker"
)

// newBreaker wraps a per-host circuit breaker with the same trip policy as
// sawpanic-cryptorun's infra/breakers.Breaker: trip on 3 consecutive
// failures, or above a 5% failure rate once at least 20 requests have run.
func newBreaker(name string) *gobreaker.CircuitBreaker {
	st := gobreaker.Settings{
		Name:     name,
		Interval: 60 * time.Second,
		Timeout:  60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.ConsecutiveFailures >= 3 {
				return true
			}
			if counts.Requests < 20 {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) > 0.05
		},
	}
	return gobreaker.NewCircuitBreaker(st)
}
