package cli

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"sisu-notifier/internal/report"
	"sisu-notifier/internal/store"
)

func newHistoryCmd(app *App) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "Show recorded runs",
		Long:  "List recent runs from the journal, or show the matches of a single run.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			st, err := app.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			if len(args) == 1 {
				run, err := st.GetRun(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if run == nil {
					return fmt.Errorf("run %s not found", args[0])
				}
				if output.IsJSON() {
					return output.JSON(run)
				}
				printRun(output, *run)
				return nil
			}

			runs, err := st.ListRuns(cmd.Context(), store.ClampLimit(limit))
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(runs)
			}
			if len(runs) == 0 {
				output.Info("No runs recorded yet.")
				return nil
			}

			table := NewTable(output, "STARTED", "STATUS", "CLIENTS", "MATCHES", "SENT", "DURATION", "ID")
			for _, r := range runs {
				table.AddRow(
					r.StartedAt.Local().Format("2006-01-02 15:04:05"),
					runStatus(output, r),
					strconv.Itoa(r.ClientsChecked),
					strconv.Itoa(r.MatchCount),
					strconv.Itoa(r.NotificationsSent),
					r.Duration().Round(time.Millisecond).String(),
					r.ID,
				)
			}
			table.Render()
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", store.DefaultListLimit, "number of runs to show")
	return cmd
}

func runStatus(output *Output, r store.Run) string {
	if r.Success {
		return output.Green("ok")
	}
	return output.Red("failed")
}

func printRun(output *Output, r store.Run) {
	lines := []string{
		fmt.Sprintf("Started:   %s", r.StartedAt.Local().Format("2006-01-02 15:04:05")),
		fmt.Sprintf("Status:    %s", runStatus(output, r)),
		fmt.Sprintf("Checked:   %d clients", r.ClientsChecked),
		fmt.Sprintf("Delivery:  %s", r.Delivery),
	}
	if r.Subject != "" {
		lines = append(lines, fmt.Sprintf("Subject:   %s", r.Subject))
	}
	output.Box("Run "+r.ID, lines)
	if r.Error != "" {
		output.Error("Error: %s", r.Error)
	}
	if len(r.Matches) == 0 {
		return
	}
	output.Println()
	table := NewTable(output, "BUYER", "EMAIL", "CLOSING", "DAYS")
	for _, m := range r.Matches {
		table.AddRow(m.BuyerName, m.EmailOr(report.MissingEmail), m.ClosingDate, strconv.Itoa(m.DaysUntil))
	}
	table.Render()
}
