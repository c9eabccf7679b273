// Package cli is the command-line front end of the tracker.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"dailies/internal/model"
	"dailies/internal/service"
)

// App carries the services the commands call into.
type App struct {
	Tasks   *service.TaskService
	Stats   *service.StatsService
	Summary *service.SummaryService
	// RunBot starts the Telegram front end and blocks until ctx is done.
	// The bot command reports an error when it is nil.
	RunBot func(ctx context.Context) error
}

// NewRootCmd builds the dailies command tree.
func NewRootCmd(app *App) *cobra.Command {
	root := &cobra.Command{
		Use:   "dailies",
		Short: "Dailies - a personal habit and task tracker",
		Long: `Dailies tracks one-off goals and non-negotiable daily habits.

Completing a non-negotiable task schedules a fresh copy for tomorrow, and
"dailies stats" shows how many days in a row you have completed something.`,
		SilenceUsage: true,
	}

	root.AddCommand(
		addCmd(app),
		listCmd(app),
		namesCmd(app),
		editCmd(app),
		doneCmd(app),
		undoCmd(app),
		rmCmd(app),
		purgeCmd(app),
		resetCmd(app),
		statsCmd(app),
		botCmd(app),
	)
	return root
}

func botCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "bot",
		Short: "Run the Telegram bot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if app.RunBot == nil {
				return errors.New("telegram bot is not configured")
			}
			return app.RunBot(cmd.Context())
		},
	}
}

func parseID(raw string) (uint, error) {
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid task ID: %s", raw)
	}
	return uint(id), nil
}

func writeTasks(w io.Writer, tasks []model.Task) error {
	if len(tasks) == 0 {
		_, err := fmt.Fprintln(w, "No tasks.")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTASK\tTYPE\tDONE\tSTART\tFINISHED")
	for _, task := range tasks {
		done := "no"
		if task.Done() {
			done = "yes"
		}
		end := "-"
		if task.EndDate != nil {
			end = task.EndDate.String()
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n", task.ID, task.Name, task.Type, done, task.StartDate, end)
	}
	return tw.Flush()
}
