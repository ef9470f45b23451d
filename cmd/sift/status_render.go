package main

import (
	"fmt"
	"sort"
	"strings"

	"sift/internal/api"
)

func renderJobDetail(job api.Job) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Job %d", job.ID)
	if job.Title != "" {
		fmt.Fprintf(&b, " — %s", job.Title)
	}
	b.WriteString("\n")

	rows := [][]string{
		{"Status", job.Status},
		{"Source", job.SourcePath},
	}
	if job.DurationSeconds > 0 {
		rows = append(rows, []string{"Duration", formatDuration(job.DurationSeconds)})
	}
	progress := fmt.Sprintf("%.0f%%", job.Progress.Percent)
	if job.Progress.TotalItems > 0 {
		progress = fmt.Sprintf("%.0f%% (%d/%d)", job.Progress.Percent, job.Progress.ItemsProcessed, job.Progress.TotalItems)
	}
	rows = append(rows, []string{"Progress", progress})
	if job.Progress.Message != "" {
		rows = append(rows, []string{"Message", job.Progress.Message})
	}
	if job.Paused {
		rows = append(rows, []string{"Paused", "yes"})
	}
	if job.ErrorMessage != "" {
		rows = append(rows, []string{"Error", job.ErrorMessage})
	}
	if job.ResultRef != "" {
		rows = append(rows, []string{"Result", job.ResultRef})
	}
	if job.UpdatedAt != "" {
		rows = append(rows, []string{"Updated", job.UpdatedAt})
	}
	b.WriteString(renderTable([]string{"Field", "Value"}, rows, nil))
	return b.String()
}

func renderDaemonStatus(status api.DaemonStatus) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Daemon running: %s (pid %d)\n", yesNo(status.Running), status.PID)
	fmt.Fprintf(&b, "Workflow running: %s\n", yesNo(status.Workflow.Running))
	if status.Workflow.LastError != "" {
		fmt.Fprintf(&b, "Last error: %s\n", status.Workflow.LastError)
	}

	if len(status.Workflow.QueueStats) > 0 {
		statuses := make([]string, 0, len(status.Workflow.QueueStats))
		for name := range status.Workflow.QueueStats {
			statuses = append(statuses, name)
		}
		sort.Strings(statuses)
		rows := make([][]string, 0, len(statuses))
		for _, name := range statuses {
			rows = append(rows, []string{name, fmt.Sprintf("%d", status.Workflow.QueueStats[name])})
		}
		b.WriteString(renderTable([]string{"Status", "Jobs"}, rows, []columnAlignment{alignLeft, alignRight}))
		b.WriteString("\n")
	}

	if len(status.Workflow.StageHealth) > 0 {
		rows := make([][]string, 0, len(status.Workflow.StageHealth))
		for _, stage := range status.Workflow.StageHealth {
			detail := stage.Detail
			if detail == "" && stage.Ready {
				detail = "ok"
			}
			rows = append(rows, []string{stage.Name, yesNo(stage.Ready), detail})
		}
		b.WriteString(renderTable([]string{"Stage", "Ready", "Detail"}, rows, nil))
	}
	return b.String()
}

func formatDuration(seconds float64) string {
	total := int(seconds)
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	if h > 0 {
		return fmt.Sprintf("%dh%02dm%02ds", h, m, s)
	}
	return fmt.Sprintf("%dm%02ds", m, s)
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
