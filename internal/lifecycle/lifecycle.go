// Package lifecycle runs the node's two periodic loops, fetch and
// aggregate, each supervised with exponential backoff and restart.
package lifecycle

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/sawpanic/klinenode/internal/metrics"
)

const (
	fetchPeriod        = 55 * time.Second
	aggregatePeriod    = 60 * time.Second
	escalateAfterFails = 6
	supervisorRestart  = 5 * time.Second
	maxBackoff         = 60 * time.Second
)

// Supervisor runs a named periodic task forever, restarting it with a
// fixed delay whenever it escalates after repeated consecutive failures.
// RestartDelay and Backoff default to supervisorRestart/backoffFor when
// zero/nil; tests shrink them to keep cases fast.
type Supervisor struct {
	Name         string
	Period       time.Duration
	Task         func(ctx context.Context) error
	Log          zerolog.Logger
	RestartDelay time.Duration
	Backoff      func(attempt int) time.Duration
	Metrics      *metrics.Registry
}

// Run blocks until ctx is cancelled, supervising Task's periodic loop.
func (s *Supervisor) Run(ctx context.Context) {
	restartDelay := s.RestartDelay
	if restartDelay <= 0 {
		restartDelay = supervisorRestart
	}
	for {
		err := s.runLoop(ctx)
		if ctx.Err() != nil {
			return
		}
		s.Log.Error().Err(err).Str("loop", s.Name).Msg("loop escalated; restarting after backoff")

		select {
		case <-ctx.Done():
			return
		case <-time.After(restartDelay):
		}
	}
}

// runLoop ticks Task every Period, backing off exponentially on error and
// returning once escalateAfterFails consecutive failures accrue.
func (s *Supervisor) runLoop(ctx context.Context) error {
	backoffFn := s.Backoff
	if backoffFn == nil {
		backoffFn = backoffFor
	}
	ticker := time.NewTicker(s.Period)
	defer ticker.Stop()

	consecutiveFails := 0
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := s.Task(ctx); err != nil {
				consecutiveFails++
				s.Log.Warn().Err(err).Str("loop", s.Name).Int("consecutive_fails", consecutiveFails).Msg("loop tick failed")
				s.reportConsecutiveFails(consecutiveFails)
				if consecutiveFails >= escalateAfterFails {
					return err
				}
				backoff := backoffFn(consecutiveFails)
				select {
				case <-ctx.Done():
					return nil
				case <-time.After(backoff):
				}
				continue
			}
			consecutiveFails = 0
			s.reportConsecutiveFails(0)
		}
	}
}

func (s *Supervisor) reportConsecutiveFails(n int) {
	if s.Metrics != nil {
		s.Metrics.LoopConsecutiveFailures.WithLabelValues(s.Name).Set(float64(n))
	}
}

func backoffFor(attempt int) time.Duration {
	d := time.Duration(1<<uint(attempt)) * time.Second
	if d > maxBackoff {
		return maxBackoff
	}
	return d
}
