// Command sisu-notifier emails a daily digest of SISU transactions closing soon.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"sisu-notifier/internal/cli"
	"sisu-notifier/internal/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := logging.NewLogger()

	root := cli.NewRootCmd(logger)
	if err := root.ExecuteContext(ctx); err != nil {
		logger.Error().Err(err).Msg("Command failed")
		stop()
		os.Exit(1)
	}
}
