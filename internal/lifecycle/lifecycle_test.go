package lifecycle

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestSupervisor_RunsTaskPeriodically(t *testing.T) {
	var calls int32
	s := &Supervisor{
		Name:   "test",
		Period: 5 * time.Millisecond,
		Task: func(ctx context.Context) error {
			atomic.AddInt32(&calls, 1)
			return nil
		},
		Log: zerolog.Nop(),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 40*time.Millisecond)
	defer cancel()
	s.Run(ctx)

	assert.GreaterOrEqual(t, int(atomic.LoadInt32(&calls)), 2)
}

func TestSupervisor_StopsOnContextCancel(t *testing.T) {
	s := &Supervisor{
		Name:   "test",
		Period: time.Millisecond,
		Task:   func(ctx context.Context) error { return nil },
		Log:    zerolog.Nop(),
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("supervisor did not stop after cancel")
	}
}

func TestSupervisor_RestartsAfterEscalation(t *testing.T) {
	var calls int32
	s := &Supervisor{
		Name:   "test",
		Period: time.Millisecond,
		Task: func(ctx context.Context) error {
			atomic.AddInt32(&calls, 1)
			return errors.New("boom")
		},
		Log:          zerolog.Nop(),
		RestartDelay: time.Millisecond,
		Backoff:      func(attempt int) time.Duration { return time.Millisecond },
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	s.Run(ctx)

	assert.Greater(t, int(atomic.LoadInt32(&calls)), escalateAfterFails)
}
