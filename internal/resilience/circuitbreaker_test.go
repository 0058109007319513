package resilience

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sisu-notifier/internal/errors"
	"sisu-notifier/internal/models"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newTestBreaker(threshold int, cooldown time.Duration) (*CircuitBreaker, *fakeClock) {
	clock := &fakeClock{t: time.Date(2025, 11, 28, 9, 0, 0, 0, time.UTC)}
	cb := NewCircuitBreaker("sisu", CircuitBreakerConfig{FailureThreshold: threshold, Cooldown: cooldown}, zerolog.Nop())
	cb.now = clock.Now
	return cb, clock
}

var errUpstream = errors.New("upstream down")

func call(cb *CircuitBreaker, err error) error {
	if allowErr := cb.Allow(); allowErr != nil {
		return allowErr
	}
	cb.Record(err)
	return err
}

func TestCircuitOpensAfterThreshold(t *testing.T) {
	cb, _ := newTestBreaker(3, time.Minute)

	for i := 0; i < 2; i++ {
		assert.ErrorIs(t, call(cb, errUpstream), errUpstream)
		assert.Equal(t, CircuitClosed, cb.State())
	}
	assert.ErrorIs(t, call(cb, errUpstream), errUpstream)
	assert.Equal(t, CircuitOpen, cb.State())

	assert.ErrorIs(t, call(cb, nil), ErrCircuitOpen)
	assert.Equal(t, int64(1), cb.Rejected())
}

func TestSuccessResetsFailureCount(t *testing.T) {
	cb, _ := newTestBreaker(2, time.Minute)

	_ = call(cb, errUpstream)
	require.NoError(t, call(cb, nil))
	_ = call(cb, errUpstream)
	assert.Equal(t, CircuitClosed, cb.State())
}

func TestHalfOpenProbe(t *testing.T) {
	cb, clock := newTestBreaker(1, time.Minute)
	_ = call(cb, errUpstream)
	require.Equal(t, CircuitOpen, cb.State())

	clock.Advance(30 * time.Second)
	assert.ErrorIs(t, cb.Allow(), ErrCircuitOpen)

	clock.Advance(31 * time.Second)
	require.NoError(t, cb.Allow())
	assert.Equal(t, CircuitHalfOpen, cb.State())

	// only one probe at a time
	assert.ErrorIs(t, cb.Allow(), ErrCircuitOpen)

	t.Run("failed probe reopens", func(t *testing.T) {
		cb.Record(errUpstream)
		assert.Equal(t, CircuitOpen, cb.State())
		assert.ErrorIs(t, cb.Allow(), ErrCircuitOpen)
	})

	t.Run("successful probe closes", func(t *testing.T) {
		clock.Advance(2 * time.Minute)
		require.NoError(t, cb.Allow())
		cb.Record(nil)
		assert.Equal(t, CircuitClosed, cb.State())
		require.NoError(t, cb.Allow())
	})
}

func TestZeroThresholdDisables(t *testing.T) {
	cb, _ := newTestBreaker(0, time.Minute)
	for i := 0; i < 10; i++ {
		assert.ErrorIs(t, call(cb, errUpstream), errUpstream)
	}
	assert.Equal(t, CircuitClosed, cb.State())
}

type stubFetcher struct {
	calls int
	err   error
}

func (s *stubFetcher) FetchActiveRecords(ctx context.Context) ([]models.ClientRecord, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return []models.ClientRecord{{ClientID: 1}}, nil
}

func TestGuardedFetcher(t *testing.T) {
	cb, _ := newTestBreaker(2, time.Minute)
	stub := &stubFetcher{err: errors.NewRemoteFetchError("client/list", 503, "", nil)}
	g := Guard(stub, cb)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := g.FetchActiveRecords(ctx)
		require.Error(t, err)
	}
	assert.Equal(t, CircuitOpen, g.State())

	_, err := g.FetchActiveRecords(ctx)
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.ErrorIs(t, err, errors.ErrRemoteFetch)
	assert.Equal(t, 2, stub.calls, "open circuit must not reach upstream")
}

func TestGuardedFetcherIgnoresCancellation(t *testing.T) {
	cb, _ := newTestBreaker(1, time.Minute)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	g := Guard(&stubFetcher{err: context.Canceled}, cb)
	_, err := g.FetchActiveRecords(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, CircuitClosed, g.State())
}
