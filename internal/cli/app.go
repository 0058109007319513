package cli

import (
	"io"
	"time"

	"sisu-notifier/internal/closing"
	"sisu-notifier/internal/config"
	"sisu-notifier/internal/errors"
	"sisu-notifier/internal/notify"
	"sisu-notifier/internal/pipeline"
	"sisu-notifier/internal/resilience"
	"sisu-notifier/internal/sisu"
	"sisu-notifier/internal/store"
	"sisu-notifier/pkg/utils"
)

// wiring is everything a run needs, built from the loaded config.
type wiring struct {
	service  *pipeline.Service
	store    store.RunStore // nil when the journal is disabled
	upstream *resilience.GuardedFetcher
}

func (r *wiring) Close() error {
	if r.store == nil {
		return nil
	}
	return r.store.Close()
}

type wireOptions struct {
	dryRun  bool // dispatch nothing, record nothing
	guard   bool // put the SISU client behind a circuit breaker
	console io.Writer
}

// wire builds the SISU client, the notification channels and the run journal.
func (a *App) wire(o wireOptions) (*wiring, error) {
	cfg := a.Config

	loc, err := cfg.Location()
	if err != nil {
		return nil, errors.NewValidationError("closing.timezone", cfg.Closing.Timezone, err.Error())
	}

	var fetcher pipeline.Fetcher = a.newSISUClient()
	rt := &wiring{}
	if o.guard {
		guarded := resilience.Guard(fetcher, resilience.NewCircuitBreaker("sisu", breakerConfig(cfg.SISU), a.Logger))
		rt.upstream = guarded
		fetcher = guarded
	}

	opts := pipeline.Options{
		WindowDays:   cfg.Closing.WindowDays,
		GreetingName: cfg.Notifications.GreetingName,
		SenderName:   cfg.Notifications.SenderName,
		Evaluator:    closing.NewEvaluator(time.Now, loc),
	}

	var dispatcher notify.Dispatcher = notify.NewNoOpNotifier()
	if !o.dryRun {
		dispatcher = a.newDispatcher(o.console)

		if cfg.Store.Enabled {
			st, err := store.NewSQLiteStore(cfg.Store.Path)
			if err != nil {
				return nil, errors.Wrap(err, "opening run journal")
			}
			rt.store = st
			opts.Recorder = st
		}
	}

	rt.service = pipeline.NewService(fetcher, dispatcher, opts, a.Logger)
	return rt, nil
}

// breakerConfig maps the SISU settings onto the breaker. A zero threshold
// disables it; a missing cooldown keeps the default.
func breakerConfig(s config.SISUConfig) resilience.CircuitBreakerConfig {
	bc := resilience.DefaultCircuitBreakerConfig()
	bc.FailureThreshold = s.CircuitThreshold
	if s.CircuitCooldown > 0 {
		bc.Cooldown = s.CircuitCooldown
	}
	return bc
}

func (a *App) newSISUClient() *sisu.Client {
	s := a.Config.SISU

	retry := utils.DefaultRetryConfig()
	if s.RetryAttempts > 0 {
		retry.MaxAttempts = s.RetryAttempts
	}

	return sisu.NewClient(sisu.Config{
		BaseURL:          s.BaseURL,
		AuthHeader:       s.AuthHeader,
		MarketID:         s.MarketID,
		Context:          s.Context,
		ContextID:        a.Config.ContextID(),
		ColumnFilter:     s.ColumnFilter,
		Limit:            s.Limit,
		AddReturnColumns: s.AddReturnColumns,
		BatchSize:        s.BatchSize,
		RequestTimeout:   s.RequestTimeout,
		RateLimit:        s.RateLimit,
		Retry:            retry,
	}, sisu.WithLogger(a.Logger))
}

func (a *App) newDispatcher(console io.Writer) *notify.MultiNotifier {
	n := a.Config.Notifications

	mn := notify.NewMultiNotifier(a.Logger)
	mn.AddChannel(notify.NewEmailNotifier(notify.EmailConfig{
		Host:     n.Email.SMTPHost,
		Port:     n.Email.SMTPPort,
		Username: n.Email.Username,
		Password: n.Email.Password,
		From:     n.Email.From,
		FromName: n.SenderName,
		To:       n.Recipients,
	}))
	if n.Webhook.URL != "" {
		mn.AddChannel(notify.NewWebhookNotifier(n.Webhook.URL, n.Webhook.Timeout))
	}
	if n.Console {
		mn.AddChannel(notify.NewConsoleNotifier(console, true))
	}
	return mn
}

// openStore opens the run journal for reading.
func (a *App) openStore() (store.RunStore, error) {
	if !a.Config.Store.Enabled {
		return nil, errors.NewValidationError("store.enabled", false, "the run journal is disabled")
	}
	return store.NewSQLiteStore(a.Config.Store.Path)
}
