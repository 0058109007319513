package cli

import (
	"context"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"sisu-notifier/internal/httpapi"
	"sisu-notifier/internal/scheduler"
)

func newServeCmd(app *App) *cobra.Command {
	var (
		listen   string
		schedule bool
		interval time.Duration
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the cron trigger endpoint",
		Long: `Start the HTTP server. Every GET or POST to /api/cron runs one closing
check and answers with its result. /health reports liveness and /api/runs
lists the run journal.

With --schedule (or schedule.enabled) the check also runs in-process on a
fixed interval.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := app.Config
			if listen == "" {
				listen = cfg.Server.ListenAddr
			}
			if !cmd.Flags().Changed("schedule") {
				schedule = cfg.Schedule.Enabled
			}
			if interval <= 0 {
				interval = cfg.Schedule.Interval
			}

			rt, err := app.wire(wireOptions{guard: true, console: cmd.OutOrStdout()})
			if err != nil {
				return err
			}
			defer rt.Close()

			upstream := func() string { return string(rt.upstream.State()) }
			router := httpapi.NewRouter(httpapi.Deps{
				Runner:   rt.service,
				Runs:     rt.store,
				Logger:   app.Logger,
				Version:  Version,
				Upstream: upstream,
			})

			g, ctx := errgroup.WithContext(cmd.Context())
			g.Go(func() error {
				return httpapi.Serve(ctx, listen, router, cfg.Server.ShutdownTimeout, app.Logger)
			})
			if schedule && interval > 0 {
				g.Go(func() error {
					scheduler.Every(ctx, interval, "closing-check", cfg.Schedule.RunOnStart, app.Logger,
						func(ctx context.Context) error {
							_, err := rt.service.Run(ctx)
							return err
						})
					return nil
				})
			}

			app.Logger.Info().
				Str("listen", listen).
				Bool("schedule", schedule).
				Int("window_days", rt.service.WindowDays()).
				Msg("Notifier started")
			return g.Wait()
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "", "listen address (default: server.listen_addr)")
	cmd.Flags().BoolVar(&schedule, "schedule", false, "also run the check on a fixed interval")
	cmd.Flags().DurationVar(&interval, "interval", 0, "schedule interval (default: schedule.interval)")
	return cmd
}
