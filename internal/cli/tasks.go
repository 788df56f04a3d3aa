package cli

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"advisor/internal/models"
	"advisor/internal/session"
)

func newTasksCmd(opts *rootOptions) *cobra.Command {
	var (
		statusFilter string
		taskID       int64
	)

	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "List background tasks",
		Long:  "List the background tasks the assistant scheduled, such as drafts waiting to send or inbox watches.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			if statusFilter != "" {
				if err := validateTaskStatus(statusFilter); err != nil {
					return err
				}
			}

			sess, cleanup, err := requireLogin(ctx, opts.cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			if taskID > 0 {
				return showTask(ctx, cmd, sess, taskID)
			}

			tasks, err := sess.Client().Tasks(ctx, statusFilter)
			if err != nil {
				return fmt.Errorf("failed to list tasks: %w", err)
			}

			if len(tasks) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No tasks found.")
				return nil
			}

			writer := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 8, 2, ' ', 0)
			fmt.Fprintln(writer, "ID\tTYPE\tSTATUS\tAGE\tDESCRIPTION")
			for _, task := range tasks {
				fmt.Fprintf(writer, "%d\t%s\t%s\t%s\t%s\n",
					task.ID,
					task.Type,
					task.Status,
					formatAge(task.CreatedAt),
					truncate(task.Description, 60),
				)
			}
			return writer.Flush()
		},
	}

	cmd.Flags().StringVar(&statusFilter, "status", "", "filter by status (pending, in_progress, completed, failed)")
	cmd.Flags().Int64Var(&taskID, "id", 0, "show one task in detail")

	return cmd
}

func showTask(ctx context.Context, cmd *cobra.Command, sess *session.Session, id int64) error {
	task, err := sess.Client().Task(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to fetch task %d: %w", id, err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Task #%d (%s)\n", task.ID, task.Type)
	fmt.Fprintf(out, "  status:  %s\n", task.Status)
	fmt.Fprintf(out, "  created: %s\n", task.CreatedAt.Local().Format("Jan 2 15:04"))
	if task.CompletedAt != nil {
		fmt.Fprintf(out, "  done:    %s\n", task.CompletedAt.Local().Format("Jan 2 15:04"))
	}
	fmt.Fprintf(out, "  %s\n", task.Description)
	if len(task.Result) > 0 {
		fmt.Fprintf(out, "  result:  %s\n", string(task.Result))
	}
	return nil
}

func validateTaskStatus(value string) error {
	switch models.TaskStatus(strings.ToLower(value)) {
	case models.TaskStatusPending, models.TaskStatusInProgress,
		models.TaskStatusCompleted, models.TaskStatusFailed:
		return nil
	default:
		return fmt.Errorf("unknown status %q (pending, in_progress, completed, failed)", value)
	}
}

func truncate(value string, max int) string {
	value = strings.ReplaceAll(value, "\n", " ")
	if len(value) <= max {
		return value
	}
	return value[:max-3] + "..."
}
