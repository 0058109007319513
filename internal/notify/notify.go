// Package notify delivers the consolidated closing report.
package notify

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"sisu-notifier/internal/errors"
	"sisu-notifier/internal/report"
)

// Outcome is the result of a dispatch attempt.
type Outcome string

const (
	// OutcomeDelivered means at least one channel accepted the report.
	OutcomeDelivered Outcome = "delivered"
	// OutcomeSkipped means no channel was configured or the report was empty.
	OutcomeSkipped Outcome = "skipped"
)

// Dispatcher defines the interface for delivering a report.
type Dispatcher interface {
	Dispatch(ctx context.Context, r report.Report) (Outcome, error)
}

// Channel defines the interface for a notification channel.
type Channel interface {
	Name() string
	IsEnabled() bool
	Send(ctx context.Context, r report.Report) error
}

// MultiNotifier sends reports to multiple channels.
type MultiNotifier struct {
	channels []Channel
	logger   zerolog.Logger
	mu       sync.RWMutex
}

// NewMultiNotifier creates a MultiNotifier over the given channels.
func NewMultiNotifier(logger zerolog.Logger, channels ...Channel) *MultiNotifier {
	return &MultiNotifier{
		channels: channels,
		logger:   logger.With().Str("component", "notify").Logger(),
	}
}

// AddChannel adds a notification channel.
func (mn *MultiNotifier) AddChannel(ch Channel) {
	mn.mu.Lock()
	defer mn.mu.Unlock()
	mn.channels = append(mn.channels, ch)
}

// Channels returns the names of the enabled channels.
func (mn *MultiNotifier) Channels() []string {
	mn.mu.RLock()
	defer mn.mu.RUnlock()

	var names []string
	for _, ch := range mn.channels {
		if ch.IsEnabled() {
			names = append(names, ch.Name())
		}
	}
	return names
}

// Dispatch sends the report to every enabled channel. Failed channels are
// reported as joined *errors.DeliveryError values.
func (mn *MultiNotifier) Dispatch(ctx context.Context, r report.Report) (Outcome, error) {
	if r.Empty() {
		return OutcomeSkipped, nil
	}

	mn.mu.RLock()
	channels := mn.channels
	mn.mu.RUnlock()

	delivered := 0
	var errs []error
	for _, ch := range channels {
		if !ch.IsEnabled() {
			mn.logger.Warn().Str("channel", ch.Name()).Msg("Channel not configured, skipping")
			continue
		}
		if err := ch.Send(ctx, r); err != nil {
			mn.logger.Error().Err(err).Str("channel", ch.Name()).Msg("Delivery failed")
			errs = append(errs, errors.NewDeliveryError(ch.Name(), err))
			continue
		}
		delivered++
		mn.logger.Info().
			Str("channel", ch.Name()).
			Int("matches", len(r.Matches)).
			Str("subject", r.Subject).
			Msg("Report delivered")
	}

	outcome := OutcomeSkipped
	if delivered > 0 {
		outcome = OutcomeDelivered
	}
	if len(errs) > 0 {
		return outcome, errors.Join(errs...)
	}
	if delivered == 0 {
		mn.logger.Warn().Msg("No notification channel configured, report not sent")
	}
	return outcome, nil
}

// NoOpNotifier is a dispatcher that does nothing (for dry runs and tests).
type NoOpNotifier struct{}

// NewNoOpNotifier creates a new NoOpNotifier.
func NewNoOpNotifier() *NoOpNotifier {
	return &NoOpNotifier{}
}

// Dispatch does nothing.
func (n *NoOpNotifier) Dispatch(ctx context.Context, r report.Report) (Outcome, error) {
	return OutcomeSkipped, nil
}
