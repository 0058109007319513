package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"sisu-notifier/internal/notify"
	"sisu-notifier/internal/pipeline"
	"sisu-notifier/internal/report"
)

func newCheckCmd(app *App) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Run one closing check and send the report",
		Long: `Fetch active clients from SISU, select transactions closing within the
window and send one consolidated notification.

With --dry-run the report is printed instead of sent and the run is not
recorded in the journal.`,
		Example: `  sisu-notifier check
  sisu-notifier check --dry-run
  sisu-notifier check --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			rt, err := app.wire(wireOptions{dryRun: dryRun, console: cmd.OutOrStdout()})
			if err != nil {
				return err
			}
			defer rt.Close()

			res, runErr := rt.service.Run(cmd.Context())
			if output.IsJSON() {
				if err := output.JSON(res); err != nil {
					return err
				}
				return runErr
			}

			printResult(output, res, rt.service.WindowDays())
			if dryRun && !res.Report.Empty() {
				output.Println()
				output.Print("%s", notify.FormatPreview(res.Report))
			}
			return runErr
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the report instead of sending it")
	return cmd
}

func printResult(output *Output, res pipeline.Result, windowDays int) {
	status := output.Green("ok")
	if !res.Success {
		status = output.Red("failed")
	}

	output.Box("Closing check", []string{
		fmt.Sprintf("Run:       %s", res.RunID),
		fmt.Sprintf("Status:    %s", status),
		fmt.Sprintf("Window:    %d days", windowDays),
		fmt.Sprintf("Checked:   %d clients", res.ClientsChecked),
		fmt.Sprintf("Matches:   %d", len(res.Matches)),
		fmt.Sprintf("Delivery:  %s", res.Delivery),
	})

	if res.Error != "" {
		output.Error("Error: %s", res.Error)
	}
	if len(res.Matches) == 0 {
		if res.Success {
			output.Info("No closings within the next %d days.", windowDays)
		}
		return
	}

	output.Println()
	table := NewTable(output, "BUYER", "EMAIL", "CLOSING", "DAYS")
	for _, m := range res.Matches {
		days := output.urgencyText(report.UrgencyFor(m.DaysUntil), strconv.Itoa(m.DaysUntil))
		table.AddRow(m.BuyerName, m.EmailOr(report.MissingEmail), m.ClosingDate, days)
	}
	table.Render()
}
