package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"sift/internal/api"
	"sift/internal/queue"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and manage the job queue",
	}
	queueCmd.AddCommand(newQueueListCommand(ctx))
	queueCmd.AddCommand(newQueueClearCommand(ctx))
	return queueCmd
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	var statusFilters []string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs, optionally filtered by status",
		RunE: func(cmd *cobra.Command, args []string) error {
			statuses := make([]queue.Status, 0, len(statusFilters))
			for _, raw := range statusFilters {
				status, ok := queue.ParseStatus(raw)
				if !ok {
					return fmt.Errorf("unknown status %q", raw)
				}
				statuses = append(statuses, status)
			}

			client, err := ctx.client()
			if err != nil {
				return err
			}
			jobs, err := client.Jobs(cmd.Context(), statuses...)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(jobs) == 0 {
				fmt.Fprintln(out, "Queue is empty")
				return nil
			}
			fmt.Fprintln(out, renderJobTable(jobs))
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&statusFilters, "status", nil, "Filter by status (repeatable)")
	return cmd
}

func newQueueClearCommand(ctx *commandContext) *cobra.Command {
	var completed, failed bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove jobs from the queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			if completed && failed {
				return fmt.Errorf("--completed and --failed are mutually exclusive")
			}
			scope := "all"
			if completed {
				scope = "completed"
			}
			if failed {
				scope = "failed"
			}

			client, err := ctx.client()
			if err != nil {
				return err
			}
			removed, err := client.Clear(cmd.Context(), scope)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d job(s)\n", removed)
			return nil
		},
	}
	cmd.Flags().BoolVar(&completed, "completed", false, "Remove only completed jobs")
	cmd.Flags().BoolVar(&failed, "failed", false, "Remove only failed jobs")
	return cmd
}

func renderJobTable(jobs []api.Job) string {
	rows := make([][]string, 0, len(jobs))
	for _, job := range jobs {
		title := job.Title
		if title == "" {
			title = job.SourcePath
		}
		progress := fmt.Sprintf("%.0f%%", job.Progress.Percent)
		note := job.Progress.Message
		if job.ErrorMessage != "" {
			note = job.ErrorMessage
		}
		if job.Paused {
			note = "paused"
		}
		rows = append(rows, []string{
			fmt.Sprintf("%d", job.ID),
			title,
			job.Status,
			progress,
			note,
		})
	}
	return renderTable(
		[]string{"ID", "Title", "Status", "Progress", "Note"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignLeft},
	)
}
