package resilience

import (
	"context"

	"sisu-notifier/internal/errors"
	"sisu-notifier/internal/models"
	"sisu-notifier/internal/pipeline"
)

// GuardedFetcher wraps a pipeline.Fetcher with a circuit breaker.
type GuardedFetcher struct {
	next    pipeline.Fetcher
	breaker *CircuitBreaker
}

// Guard returns next protected by breaker.
func Guard(next pipeline.Fetcher, breaker *CircuitBreaker) *GuardedFetcher {
	return &GuardedFetcher{next: next, breaker: breaker}
}

// FetchActiveRecords forwards to the wrapped fetcher unless the circuit is open.
// A cancelled caller does not count as an upstream failure.
func (g *GuardedFetcher) FetchActiveRecords(ctx context.Context) ([]models.ClientRecord, error) {
	if err := g.breaker.Allow(); err != nil {
		return nil, errors.NewRemoteFetchError("client/list", 0, "", err)
	}

	records, err := g.next.FetchActiveRecords(ctx)
	if err != nil && ctx.Err() != nil {
		g.breaker.Release()
		return nil, err
	}
	g.breaker.Record(err)
	return records, err
}

// State returns the state of the guarding circuit.
func (g *GuardedFetcher) State() CircuitState {
	return g.breaker.State()
}
