// Package pipeline runs one closing check: fetch the records, select the
// matches, build the consolidated report and dispatch it.
package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"sisu-notifier/internal/closing"
	"sisu-notifier/internal/logging"
	"sisu-notifier/internal/models"
	"sisu-notifier/internal/notify"
	"sisu-notifier/internal/report"
)

// Fetcher provides the active client records.
type Fetcher interface {
	FetchActiveRecords(ctx context.Context) ([]models.ClientRecord, error)
}

// Recorder stores a finished run. It is only written to, never read back by the pipeline.
type Recorder interface {
	RecordRun(ctx context.Context, res Result) error
}

// Delivery describes what happened to the report of a run.
type Delivery string

const (
	DeliveryDelivered Delivery = "delivered"
	DeliverySkipped   Delivery = "skipped"
	DeliveryNone      Delivery = "none" // nothing to send, or the run failed before dispatch
)

// Result is the outcome of one run.
type Result struct {
	RunID             string                `json:"runId"`
	StartedAt         time.Time             `json:"startedAt"`
	FinishedAt        time.Time             `json:"finishedAt"`
	Success           bool                  `json:"success"`
	ClientsChecked    int                   `json:"clientsChecked"`
	NotificationsSent int                   `json:"notificationsSent"`
	Delivery          Delivery              `json:"delivery"`
	Subject           string                `json:"subject,omitempty"`
	Matches           []models.ClosingMatch `json:"matches"`
	Error             string                `json:"error,omitempty"`

	Report report.Report `json:"-"`
}

// Options configures a Service.
type Options struct {
	WindowDays   int
	GreetingName string
	SenderName   string
	Evaluator    closing.Evaluator
	Recorder     Recorder
}

// Service wires the fetcher, selector, builder and dispatcher together.
// A Service holds no per-run state, so concurrent runs are independent.
type Service struct {
	fetcher    Fetcher
	dispatcher notify.Dispatcher
	evaluator  closing.Evaluator
	recorder   Recorder
	opts       Options
	logger     zerolog.Logger
}

// NewService creates a new Service.
func NewService(fetcher Fetcher, dispatcher notify.Dispatcher, opts Options, logger zerolog.Logger) *Service {
	if dispatcher == nil {
		dispatcher = notify.NewNoOpNotifier()
	}
	return &Service{
		fetcher:    fetcher,
		dispatcher: dispatcher,
		evaluator:  opts.Evaluator,
		recorder:   opts.Recorder,
		opts:       opts,
		logger:     logging.WithComponent(logger, "pipeline"),
	}
}

// WindowDays returns the configured lookahead window.
func (s *Service) WindowDays() int {
	return s.opts.WindowDays
}

// Run executes one check. A fetch or delivery failure is returned as the error
// and also reflected in the result with Success set to false.
func (s *Service) Run(ctx context.Context) (Result, error) {
	res := Result{
		RunID:     uuid.NewString(),
		StartedAt: time.Now().UTC(),
		Delivery:  DeliveryNone,
		Matches:   []models.ClosingMatch{},
	}
	logger := logging.WithRun(s.logger, res.RunID)
	ctx = logging.WithLogger(ctx, logger)

	logger.Info().Int("window_days", s.opts.WindowDays).Msg("Starting closing check")

	records, err := s.fetcher.FetchActiveRecords(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("Closing check failed")
		return s.finish(ctx, logger, res, err)
	}
	res.ClientsChecked = len(records)

	matches := s.evaluator.SelectMatches(records, s.opts.WindowDays)
	for _, m := range matches {
		logger.Info().
			Str("buyer", m.BuyerName).
			Str("closing_date", m.ClosingDate).
			Int("days_until", m.DaysUntil).
			Msg("Match found")
	}

	rep := report.Build(matches, report.Options{
		WindowDays:   s.opts.WindowDays,
		GreetingName: s.opts.GreetingName,
		SenderName:   s.opts.SenderName,
	})
	res.Report = rep
	if rep.Empty() {
		logger.Info().Int("clients", res.ClientsChecked).Msg("No closings within the window")
		return s.finish(ctx, logger, res, nil)
	}
	res.Matches = rep.Matches
	res.Subject = rep.Subject

	outcome, err := s.dispatcher.Dispatch(ctx, rep)
	switch outcome {
	case notify.OutcomeDelivered:
		res.Delivery = DeliveryDelivered
		res.NotificationsSent = 1
	default:
		res.Delivery = DeliverySkipped
	}
	if err != nil {
		logger.Error().Err(err).Msg("Report delivery failed")
	}
	return s.finish(ctx, logger, res, err)
}

func (s *Service) finish(ctx context.Context, logger zerolog.Logger, res Result, runErr error) (Result, error) {
	res.FinishedAt = time.Now().UTC()
	res.Success = runErr == nil
	if runErr != nil {
		res.Error = runErr.Error()
	}

	logger.Info().
		Bool("success", res.Success).
		Int("clients_checked", res.ClientsChecked).
		Int("matches", len(res.Matches)).
		Int("notifications_sent", res.NotificationsSent).
		Str("delivery", string(res.Delivery)).
		Dur("duration", res.FinishedAt.Sub(res.StartedAt)).
		Msg("Closing check finished")

	if s.recorder != nil {
		// journal failures are logged only
		if err := s.recorder.RecordRun(context.WithoutCancel(ctx), res); err != nil {
			logger.Warn().Err(err).Msg("Failed to record run")
		}
	}
	return res, runErr
}
