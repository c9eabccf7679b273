package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"dailies/internal/model"
	"dailies/internal/service"
)

func addCmd(app *App) *cobra.Command {
	var (
		taskType string
		start    string
	)

	cmd := &cobra.Command{
		Use:   "add <task>",
		Short: "Add a task",
		Long: `Add a pending task.

Examples:
  dailies add "Ship feature"
  dailies add Meditate --type non-negotiable --start 2024-01-01
`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			input := service.TaskInput{
				Name: strings.Join(args, " "),
				Type: taskType,
			}
			if start != "" {
				d, err := model.ParseDate(start)
				if err != nil {
					return err
				}
				input.StartDate = d
			}

			task, err := app.Tasks.Create(cmd.Context(), input)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Added task %d: %s (%s)\n", task.ID, task.Name, task.Type)
			return err
		},
	}

	cmd.Flags().StringVarP(&taskType, "type", "t", string(model.TaskTypeGoal), "goal or non-negotiable")
	cmd.Flags().StringVarP(&start, "start", "s", "", "start date (YYYY-MM-DD), defaults to today")
	return cmd
}

func listCmd(app *App) *cobra.Command {
	var (
		pending bool
		name    string
	)

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List tasks",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			var (
				tasks []model.Task
				err   error
			)
			switch {
			case name != "":
				tasks, err = app.Tasks.FindByName(ctx, name)
			case pending:
				tasks, err = app.Tasks.ListPending(ctx)
			default:
				tasks, err = app.Tasks.List(ctx)
			}
			if err != nil {
				return err
			}
			if name != "" && pending {
				tasks = onlyPending(tasks)
			}
			return writeTasks(cmd.OutOrStdout(), tasks)
		},
	}

	cmd.Flags().BoolVarP(&pending, "pending", "p", false, "only tasks that are not done")
	cmd.Flags().StringVarP(&name, "name", "n", "", "only tasks with exactly this name")
	return cmd
}

func onlyPending(tasks []model.Task) []model.Task {
	out := tasks[:0]
	for _, task := range tasks {
		if !task.Done() {
			out = append(out, task)
		}
	}
	return out
}

func namesCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "names",
		Short: "List distinct task names",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			names, err := app.Tasks.Names(cmd.Context())
			if err != nil {
				return err
			}
			for _, name := range names {
				if _, err := fmt.Fprintln(cmd.OutOrStdout(), name); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func editCmd(app *App) *cobra.Command {
	var (
		name     string
		taskType string
		start    string
		status   bool
	)

	cmd := &cobra.Command{
		Use:   "edit <task_id>",
		Short: "Edit a task's name, type, start date or status",
		Long: `Edit one task by ID. Only the flags you pass are changed.

Changing --status goes through the same rules as done/undo, so completing a
non-negotiable task here also schedules tomorrow's copy.

Examples:
  dailies edit 3 --name "Meditate 20 min"
  dailies edit 3 --type goal --start 2024-02-01
`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			var edit model.TaskEdit
			flags := cmd.Flags()
			if flags.Changed("name") {
				edit.Name = &name
			}
			if flags.Changed("type") {
				typ := model.TaskType(taskType)
				edit.Type = &typ
			}
			if flags.Changed("start") {
				d, err := model.ParseDate(start)
				if err != nil {
					return err
				}
				edit.StartDate = &d
			}
			if flags.Changed("status") {
				edit.Status = &status
			}

			found, err := app.Tasks.Edit(cmd.Context(), id, edit)
			if err != nil {
				return err
			}
			if !found {
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "Task %d not found, nothing changed\n", id)
				return err
			}

			task, err := app.Tasks.Get(cmd.Context(), id)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Updated %s\n", service.FormatTaskLine(*task))
			return err
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "new task name")
	cmd.Flags().StringVar(&taskType, "type", "", "goal or non-negotiable")
	cmd.Flags().StringVar(&start, "start", "", "new start date (YYYY-MM-DD)")
	cmd.Flags().BoolVar(&status, "status", false, "completion status")
	return cmd
}

func doneCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "done <task_id>",
		Short: "Mark a task as completed",
		Long: `Mark a task as completed today.

Completing a non-negotiable task creates its copy for tomorrow. Completing a
task that is already done changes nothing.
`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSetStatus(cmd, app, args[0], true)
		},
	}
}

func undoCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "undo <task_id>",
		Short: "Mark a task as not completed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSetStatus(cmd, app, args[0], false)
		},
	}
}

func runSetStatus(cmd *cobra.Command, app *App, rawID string, done bool) error {
	id, err := parseID(rawID)
	if err != nil {
		return err
	}

	res, err := app.Tasks.SetStatus(cmd.Context(), id, done)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("task %d not found", id)
		}
		return err
	}

	out := cmd.OutOrStdout()
	switch {
	case !res.Changed && done:
		_, err = fmt.Fprintf(out, "Task %d is already completed\n", id)
	case !res.Changed:
		_, err = fmt.Fprintf(out, "Task %d is already pending\n", id)
	case done:
		_, err = fmt.Fprintf(out, "Completed %s\n", service.FormatTaskLine(res.Task))
	default:
		_, err = fmt.Fprintf(out, "Reopened %s\n", service.FormatTaskLine(res.Task))
	}
	if err != nil {
		return err
	}

	if res.Successor != nil {
		_, err = fmt.Fprintf(out, "Scheduled %s\n", service.FormatTaskLine(*res.Successor))
	}
	return err
}

func rmCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:     "rm <task_id>",
		Aliases: []string{"delete"},
		Short:   "Delete one task",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			found, err := app.Tasks.Delete(cmd.Context(), id)
			if err != nil {
				return err
			}
			if !found {
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "Task %d not found, nothing deleted\n", id)
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Deleted task %d\n", id)
			return err
		},
	}
}

func purgeCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "purge <task name>",
		Short: "Delete every instance of a task name (bulk)",
		Long: `Delete every row that shares the given name, including the completed
history of a non-negotiable task. Use "rm" to delete a single row.
`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := strings.Join(args, " ")
			n, err := app.Tasks.DeleteByName(cmd.Context(), name)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d task(s) named %q\n", n, name)
			return err
		},
	}
}

func resetCmd(app *App) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete all tasks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes {
				return errors.New("refusing to delete all tasks without --yes")
			}
			n, err := app.Tasks.Reset(cmd.Context())
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d task(s)\n", n)
			return err
		},
	}

	cmd.Flags().BoolVar(&yes, "yes", false, "confirm deleting every task")
	return cmd
}
