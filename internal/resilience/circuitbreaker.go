// Package resilience guards the SISU fetch with a circuit breaker so that a
// long-running server stops hammering an upstream that keeps failing.
package resilience

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"sisu-notifier/internal/errors"
)

// CircuitState represents the state of a circuit breaker.
type CircuitState string

const (
	CircuitClosed   CircuitState = "closed"    // Normal operation
	CircuitOpen     CircuitState = "open"      // Failing, rejecting calls
	CircuitHalfOpen CircuitState = "half_open" // Letting one probe through
)

// ErrCircuitOpen is returned while the circuit is open.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// CircuitBreakerConfig holds circuit breaker configuration.
type CircuitBreakerConfig struct {
	// FailureThreshold is the number of consecutive failures that opens the circuit.
	// Zero disables the breaker.
	FailureThreshold int
	// Cooldown is how long the circuit stays open before a probe is allowed.
	Cooldown time.Duration
}

// DefaultCircuitBreakerConfig returns the default configuration.
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		FailureThreshold: 3,
		Cooldown:         5 * time.Minute,
	}
}

// CircuitBreaker counts consecutive failures of a call and rejects further
// calls for a cooldown once the threshold is reached.
type CircuitBreaker struct {
	name   string
	config CircuitBreakerConfig
	now    func() time.Time
	logger zerolog.Logger

	mu       sync.Mutex
	state    CircuitState
	failures int
	openedAt time.Time
	probing  bool

	totalRejected int64
}

// NewCircuitBreaker creates a new circuit breaker.
func NewCircuitBreaker(name string, config CircuitBreakerConfig, logger zerolog.Logger) *CircuitBreaker {
	return &CircuitBreaker{
		name:   name,
		config: config,
		now:    time.Now,
		logger: logger.With().Str("component", "circuit").Str("circuit", name).Logger(),
		state:  CircuitClosed,
	}
}

// Allow reports whether a call may proceed. Every allowed call must be
// followed by exactly one Record.
func (cb *CircuitBreaker) Allow() error {
	if cb.config.FailureThreshold <= 0 {
		return nil
	}

	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case CircuitOpen:
		if cb.now().Sub(cb.openedAt) < cb.config.Cooldown {
			cb.totalRejected++
			return ErrCircuitOpen
		}
		cb.transitionTo(CircuitHalfOpen)
		cb.probing = true
		return nil
	case CircuitHalfOpen:
		if cb.probing {
			cb.totalRejected++
			return ErrCircuitOpen
		}
		cb.probing = true
	}
	return nil
}

// Record reports the outcome of an allowed call.
func (cb *CircuitBreaker) Record(err error) {
	if cb.config.FailureThreshold <= 0 {
		return
	}

	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.probing = false
	if err == nil {
		if cb.state != CircuitClosed {
			cb.transitionTo(CircuitClosed)
		}
		cb.failures = 0
		return
	}

	switch cb.state {
	case CircuitClosed:
		cb.failures++
		if cb.failures >= cb.config.FailureThreshold {
			cb.transitionTo(CircuitOpen)
		}
	case CircuitHalfOpen:
		// a failed probe reopens for a full cooldown
		cb.transitionTo(CircuitOpen)
	}
}

// Release ends an allowed call without an outcome, e.g. when the caller went away.
func (cb *CircuitBreaker) Release() {
	cb.mu.Lock()
	cb.probing = false
	cb.mu.Unlock()
}

func (cb *CircuitBreaker) transitionTo(state CircuitState) {
	from := cb.state
	cb.state = state
	cb.failures = 0
	if state == CircuitOpen {
		cb.openedAt = cb.now()
	}

	ev := cb.logger.Info()
	if state == CircuitOpen {
		ev = cb.logger.Warn().Dur("cooldown", cb.config.Cooldown)
	}
	ev.Str("from", string(from)).Str("to", string(state)).Msg("Circuit state changed")
}

// State returns the current circuit state.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Name returns the circuit breaker name.
func (cb *CircuitBreaker) Name() string {
	return cb.name
}

// Rejected returns how many calls were turned away while open.
func (cb *CircuitBreaker) Rejected() int64 {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.totalRejected
}
