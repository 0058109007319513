package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestEvery_RunsUntilCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var calls int32

	done := make(chan struct{})
	go func() {
		defer close(done)
		Every(ctx, 5*time.Millisecond, "check", true, zerolog.Nop(), func(ctx context.Context) error {
			if atomic.AddInt32(&calls, 1) == 3 {
				cancel()
			}
			return errors.New("keep going")
		})
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop after cancellation")
	}
	if n := atomic.LoadInt32(&calls); n < 3 {
		t.Fatalf("expected at least 3 runs, got %d", n)
	}
}

func TestEvery_WaitsForFirstTickWithoutRunNow(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	var calls int32
	Every(ctx, time.Hour, "check", false, zerolog.Nop(), func(ctx context.Context) error {
		atomic.AddInt32(&calls, 1)
		return nil
	})
	if n := atomic.LoadInt32(&calls); n != 0 {
		t.Fatalf("expected no runs before the first tick, got %d", n)
	}
}
