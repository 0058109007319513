// Package cli provides the command-line interface for the closing notifier.
package cli

import (
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"sisu-notifier/internal/config"
	"sisu-notifier/internal/logging"
	"sisu-notifier/internal/secrets"
)

// Version information, overridden at build time with -ldflags.
var (
	Version   = "0.1.0"
	BuildDate = "unknown"
)

const skipConfigAnnotation = "skip-config"

// App holds the application dependencies.
type App struct {
	ConfigDir string
	Config    *config.Config
	Logger    zerolog.Logger
	Secrets   config.SecretSource
	LogOut    io.Writer
}

// NewRootCmd creates the root command for the CLI.
func NewRootCmd(logger zerolog.Logger) *cobra.Command {
	return newRootCmd(&App{
		Logger:  logger,
		Secrets: secrets.NewKeyring(),
		LogOut:  os.Stderr,
	})
}

func newRootCmd(app *App) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "sisu-notifier",
		Short: "SISU closing notifier - emails upcoming transaction closings",
		Long: `SISU closing notifier polls SISU for client transactions and sends one
consolidated email listing every transaction forecasted to close within
the configured window.

Run it once with 'sisu-notifier check', or keep it running with
'sisu-notifier serve' and trigger runs through GET /api/cron.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("config")
			app.ConfigDir = dir
			if app.ConfigDir == "" {
				app.ConfigDir = config.DefaultConfigDir()
			}

			if skipsConfig(cmd) {
				return applyDebug(cmd, app)
			}

			cfg, err := config.Load(app.ConfigDir, app.Secrets)
			if err != nil {
				return err
			}
			app.Config = cfg
			app.Logger = logging.NewLoggerWithConfig(logging.LogConfig{
				Level:      cfg.Logging.Level,
				Console:    true,
				JSON:       cfg.Logging.JSON,
				File:       cfg.Logging.File,
				FilePath:   logFilePath(app.ConfigDir, cfg.Logging.FilePath),
				MaxSize:    50,
				MaxBackups: 7,
				MaxAge:     30,
				Out:        app.LogOut,
			})
			return applyDebug(cmd, app)
		},
	}

	// Global flags
	rootCmd.PersistentFlags().String("config", "", "config directory (default: ~/.config/sisu-notifier)")
	rootCmd.PersistentFlags().Bool("json", false, "output in JSON format")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newConfigCmd(app))
	rootCmd.AddCommand(newSecretsCmd(app))
	rootCmd.AddCommand(newCheckCmd(app))
	rootCmd.AddCommand(newServeCmd(app))
	rootCmd.AddCommand(newHistoryCmd(app))

	return rootCmd
}

func applyDebug(cmd *cobra.Command, app *App) error {
	debug, _ := cmd.Flags().GetBool("debug")
	if debug {
		app.Logger = app.Logger.Level(zerolog.DebugLevel)
	}
	return nil
}

// skipsConfig reports whether cmd or one of its parents runs without a loaded config.
func skipsConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		switch c.Name() {
		case "help", "completion", cobra.ShellCompRequestCmd, cobra.ShellCompNoDescRequestCmd:
			return true
		}
		if c.Annotations[skipConfigAnnotation] == "true" {
			return true
		}
	}
	return false
}

func noConfig() map[string]string {
	return map[string]string{skipConfigAnnotation: "true"}
}

func logFilePath(configDir, configured string) string {
	if configured != "" {
		return configured
	}
	return filepath.Join(configDir, "logs", "notifier.log")
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:         "version",
		Short:       "Print version information",
		Annotations: noConfig(),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(map[string]string{
					"version":    Version,
					"build_date": BuildDate,
				})
			}
			output.Printf("SISU Notifier v%s\n", Version)
			output.Dim("Build date: %s", BuildDate)
			return nil
		},
	}
}
