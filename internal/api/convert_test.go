package api

import (
	"testing"
	"time"

	"sift/internal/queue"
	"sift/internal/stage"
	"sift/internal/workflow"
)

func TestFromJobMapsFields(t *testing.T) {
	created := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	job := &queue.Job{
		ID:              7,
		ExecutionID:     "exec-7",
		Title:           "Factory Walkthrough",
		SourcePath:      "/videos/factory.mp4",
		Status:          queue.StatusExtracting,
		DurationSeconds: 1823.5,
		ProgressStage:   "Extracting",
		ProgressPercent: 42,
		ProgressMessage: "Annotating batch 3 of 7",
		ItemsProcessed:  24,
		TotalItems:      61,
		Paused:          false,
		CreatedAt:       created,
		UpdatedAt:       created.Add(5 * time.Minute),
	}

	dto := FromJob(job)
	if dto.ID != 7 || dto.ExecutionID != "exec-7" {
		t.Fatalf("identity fields lost: %+v", dto)
	}
	if dto.Status != "extracting" || dto.Stage != "extracting" {
		t.Fatalf("status mapping wrong: %q / %q", dto.Status, dto.Stage)
	}
	if dto.Progress.Percent != 42 || dto.Progress.ItemsProcessed != 24 || dto.Progress.TotalItems != 61 {
		t.Fatalf("progress mapping wrong: %+v", dto.Progress)
	}
	if dto.CreatedAt == "" || dto.UpdatedAt == "" {
		t.Fatal("timestamps missing")
	}
}

func TestFromJobNil(t *testing.T) {
	if dto := FromJob(nil); dto.ID != 0 {
		t.Fatalf("expected zero value, got %+v", dto)
	}
	if out := FromJobs(nil); out != nil {
		t.Fatalf("expected nil slice, got %v", out)
	}
}

func TestFromStatusSummary(t *testing.T) {
	summary := workflow.StatusSummary{
		Running:   true,
		LastError: "extract: annotate frames failed",
		LastJob:   &queue.Job{ID: 3, Status: queue.StatusFailed},
		QueueStats: map[queue.Status]int{
			queue.StatusPending:   2,
			queue.StatusCompleted: 5,
		},
		StageHealth: map[string]stage.Health{
			"ingest":      stage.Healthy("ingest"),
			"frameselect": stage.Unhealthy("frameselect", "ffmpeg not found"),
		},
	}

	wf := FromStatusSummary(summary)
	if !wf.Running || wf.LastError == "" || wf.LastJob == nil {
		t.Fatalf("summary mapping wrong: %+v", wf)
	}
	if wf.QueueStats["pending"] != 2 || wf.QueueStats["completed"] != 5 {
		t.Fatalf("stats mapping wrong: %v", wf.QueueStats)
	}
	// Health entries are sorted by stage name for stable output.
	if len(wf.StageHealth) != 2 || wf.StageHealth[0].Name != "frameselect" || wf.StageHealth[1].Name != "ingest" {
		t.Fatalf("stage health ordering wrong: %+v", wf.StageHealth)
	}
	if wf.StageHealth[0].Ready || wf.StageHealth[0].Detail != "ffmpeg not found" {
		t.Fatalf("unhealthy stage lost detail: %+v", wf.StageHealth[0])
	}
}
