package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func statsCmd(app *App) *cobra.Command {
	var (
		days     int
		expected int64
	)

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show completion statistics",
		Long: `Show today's completions, the current streak, the last five completed
tasks, a seven day overview and the cumulative expected vs actual progress.
`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if days < 1 || expected < 1 {
				return fmt.Errorf("--days and --expected must be at least 1")
			}
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			ov, err := app.Stats.Overview(ctx)
			if err != nil {
				return err
			}

			fmt.Fprintf(out, "Today (%s): %d completed\n", ov.Today, ov.DoneToday)
			fmt.Fprintf(out, "Current streak: %d day(s)\n", ov.Streak)
			fmt.Fprintf(out, "Last 30 days: %d completed\n", ov.Last30Days)
			fmt.Fprintf(out, "All time: %d done, %d not done\n", ov.Done, ov.Pending)

			fmt.Fprintln(out, "\nLast 5 completed:")
			if err := writeTasks(out, ov.LastFive); err != nil {
				return err
			}

			fmt.Fprintln(out, "\nLast 7 days:")
			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			for _, dc := range ov.LastSevenDays {
				fmt.Fprintf(tw, "%s\t%d\n", dc.Date.Format("Mon Jan 02"), dc.Count)
			}
			if err := tw.Flush(); err != nil {
				return err
			}

			points, err := app.Stats.Progress(ctx, days, expected)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "\nProgress (last %d days, %d expected per day):\n", days, expected)
			tw = tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "DATE\tEXPECTED\tACTUAL")
			for _, p := range points {
				fmt.Fprintf(tw, "%s\t%d\t%d\n", p.Date, p.Expected, p.Actual)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().IntVar(&days, "days", 30, "days covered by the progress table")
	cmd.Flags().Int64Var(&expected, "expected", 1, "expected completions per day")
	return cmd
}
