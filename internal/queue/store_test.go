package queue

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := OpenPath(filepath.Join(t.TempDir(), "jobs.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestNewJobDefaults(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	job, err := store.NewJob(ctx, "/videos/setup_walkthrough.mp4")
	if err != nil {
		t.Fatalf("NewJob: %v", err)
	}
	if job.Status != StatusPending {
		t.Fatalf("status = %s, want pending", job.Status)
	}
	if job.ExecutionID == "" {
		t.Fatal("execution id must be assigned on enqueue")
	}
	if job.Title != "setup walkthrough" {
		t.Fatalf("title = %q", job.Title)
	}
	if job.Paused || job.CancelRequested {
		t.Fatal("control flags must start clear")
	}

	second, err := store.NewJob(ctx, "/videos/setup_walkthrough.mp4")
	if err != nil {
		t.Fatalf("NewJob: %v", err)
	}
	if second.ExecutionID == job.ExecutionID {
		t.Fatal("re-submitting a path must mint a fresh execution id")
	}
}

func TestUpdateRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	job, err := store.NewJob(ctx, "/videos/demo.mkv")
	if err != nil {
		t.Fatalf("NewJob: %v", err)
	}

	job.Status = StatusFramesFiltered
	job.DurationSeconds = 914.5
	job.ScenesJSON = `[12.4,88.0]`
	job.GroupsJSON = `[{"representative":12.4}]`
	job.TranscriptRef = "s3://sift-artifacts/demo/transcript.json"
	job.ResultRef = "/work/demo/result.json"
	job.ItemsProcessed = 42
	job.TotalItems = 96
	heartbeat := time.Now().UTC()
	job.LastHeartbeat = &heartbeat

	if err := store.Update(ctx, job); err != nil {
		t.Fatalf("Update: %v", err)
	}

	got, err := store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Status != StatusFramesFiltered {
		t.Fatalf("status = %s", got.Status)
	}
	if got.DurationSeconds != 914.5 {
		t.Fatalf("duration = %v", got.DurationSeconds)
	}
	if got.TranscriptRef != job.TranscriptRef || got.ResultRef != job.ResultRef {
		t.Fatalf("refs lost: %+v", got)
	}
	if got.ItemsProcessed != 42 || got.TotalItems != 96 {
		t.Fatalf("progress counters lost: %+v", got)
	}
	if got.LastHeartbeat == nil {
		t.Fatal("heartbeat lost")
	}

	byExec, err := store.GetByExecutionID(ctx, job.ExecutionID)
	if err != nil {
		t.Fatalf("GetByExecutionID: %v", err)
	}
	if byExec == nil || byExec.ID != job.ID {
		t.Fatalf("execution id lookup returned %+v", byExec)
	}
}

func TestNextForStatusesSkipsPaused(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first, err := store.NewJob(ctx, "/videos/a.mp4")
	if err != nil {
		t.Fatalf("NewJob: %v", err)
	}
	second, err := store.NewJob(ctx, "/videos/b.mp4")
	if err != nil {
		t.Fatalf("NewJob: %v", err)
	}

	if ok, err := store.RequestPause(ctx, first.ID); err != nil || !ok {
		t.Fatalf("RequestPause: ok=%v err=%v", ok, err)
	}

	next, err := store.NextForStatuses(ctx, StatusPending)
	if err != nil {
		t.Fatalf("NextForStatuses: %v", err)
	}
	if next == nil || next.ID != second.ID {
		t.Fatalf("expected unpaused job %d, got %+v", second.ID, next)
	}

	if ok, err := store.Resume(ctx, first.ID); err != nil || !ok {
		t.Fatalf("Resume: ok=%v err=%v", ok, err)
	}
	next, err = store.NextForStatuses(ctx, StatusPending)
	if err != nil {
		t.Fatalf("NextForStatuses: %v", err)
	}
	if next == nil || next.ID != first.ID {
		t.Fatalf("expected resumed job %d first, got %+v", first.ID, next)
	}
}

func TestRequestCancelPendingIsImmediate(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	job, err := store.NewJob(ctx, "/videos/a.mp4")
	if err != nil {
		t.Fatalf("NewJob: %v", err)
	}
	if ok, err := store.RequestCancel(ctx, job.ID); err != nil || !ok {
		t.Fatalf("RequestCancel: ok=%v err=%v", ok, err)
	}
	got, err := store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Status != StatusCancelled {
		t.Fatalf("pending job should cancel immediately, got %s", got.Status)
	}
	if got.ErrorMessage != UserCancelReason {
		t.Fatalf("error message = %q", got.ErrorMessage)
	}
}

func TestRequestCancelInFlightSetsFlag(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	job, err := store.NewJob(ctx, "/videos/a.mp4")
	if err != nil {
		t.Fatalf("NewJob: %v", err)
	}
	job.Status = StatusFilteringFrames
	if err := store.Update(ctx, job); err != nil {
		t.Fatalf("Update: %v", err)
	}

	if ok, err := store.RequestCancel(ctx, job.ID); err != nil || !ok {
		t.Fatalf("RequestCancel: ok=%v err=%v", ok, err)
	}
	control, err := store.Control(ctx, job.ID)
	if err != nil {
		t.Fatalf("Control: %v", err)
	}
	if !control.CancelRequested {
		t.Fatal("in-flight cancel must set the cooperative flag")
	}
	got, err := store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Status != StatusFilteringFrames {
		t.Fatalf("in-flight job must keep its status until the stage observes the flag, got %s", got.Status)
	}
}

func TestRequestCancelTerminalIsNoOp(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	job, err := store.NewJob(ctx, "/videos/a.mp4")
	if err != nil {
		t.Fatalf("NewJob: %v", err)
	}
	job.Status = StatusCompleted
	if err := store.Update(ctx, job); err != nil {
		t.Fatalf("Update: %v", err)
	}
	ok, err := store.RequestCancel(ctx, job.ID)
	if err != nil {
		t.Fatalf("RequestCancel: %v", err)
	}
	if ok {
		t.Fatal("cancelling a completed job must be a no-op")
	}
}

func TestReclaimStaleProcessingRollsBackToStageBoundary(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	job, err := store.NewJob(ctx, "/videos/a.mp4")
	if err != nil {
		t.Fatalf("NewJob: %v", err)
	}
	job.Status = StatusExtracting
	stale := time.Now().UTC().Add(-10 * time.Minute)
	job.LastHeartbeat = &stale
	if err := store.Update(ctx, job); err != nil {
		t.Fatalf("Update: %v", err)
	}

	fresh, err := store.NewJob(ctx, "/videos/b.mp4")
	if err != nil {
		t.Fatalf("NewJob: %v", err)
	}
	fresh.Status = StatusAssembling
	now := time.Now().UTC()
	fresh.LastHeartbeat = &now
	if err := store.Update(ctx, fresh); err != nil {
		t.Fatalf("Update: %v", err)
	}

	reclaimed, err := store.ReclaimStaleProcessing(ctx, time.Now().Add(-2*time.Minute))
	if err != nil {
		t.Fatalf("ReclaimStaleProcessing: %v", err)
	}
	if reclaimed != 1 {
		t.Fatalf("reclaimed = %d, want 1", reclaimed)
	}

	got, err := store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Status != StatusFramesFiltered {
		t.Fatalf("stale extracting job must roll back to frames_filtered, got %s", got.Status)
	}
	if got.LastHeartbeat != nil {
		t.Fatal("reclaim must clear the heartbeat")
	}

	untouched, err := store.GetByID(ctx, fresh.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if untouched.Status != StatusAssembling {
		t.Fatalf("fresh job must not be reclaimed, got %s", untouched.Status)
	}
}

func TestResetStuckProcessing(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	job, err := store.NewJob(ctx, "/videos/a.mp4")
	if err != nil {
		t.Fatalf("NewJob: %v", err)
	}
	job.Status = StatusIngesting
	if err := store.Update(ctx, job); err != nil {
		t.Fatalf("Update: %v", err)
	}

	reset, err := store.ResetStuckProcessing(ctx)
	if err != nil {
		t.Fatalf("ResetStuckProcessing: %v", err)
	}
	if reset != 1 {
		t.Fatalf("reset = %d, want 1", reset)
	}
	got, err := store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Status != StatusPending {
		t.Fatalf("interrupted ingest must return to pending, got %s", got.Status)
	}
}

func TestRetryFailed(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	job, err := store.NewJob(ctx, "/videos/a.mp4")
	if err != nil {
		t.Fatalf("NewJob: %v", err)
	}
	job.SetFailed("annotation service unreachable")
	if err := store.Update(ctx, job); err != nil {
		t.Fatalf("Update: %v", err)
	}

	retried, err := store.RetryFailed(ctx, job.ID)
	if err != nil {
		t.Fatalf("RetryFailed: %v", err)
	}
	if retried != 1 {
		t.Fatalf("retried = %d, want 1", retried)
	}
	got, err := store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Status != StatusPending || got.ErrorMessage != "" {
		t.Fatalf("retry must reset status and error, got %+v", got)
	}
}

func TestStatsAndHealth(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, status := range []Status{StatusPending, StatusFilteringFrames, StatusCompleted, StatusFailed, StatusCancelled} {
		job, err := store.NewJob(ctx, "/videos/"+string(status)+".mp4")
		if err != nil {
			t.Fatalf("NewJob: %v", err)
		}
		job.Status = status
		if err := store.Update(ctx, job); err != nil {
			t.Fatalf("Update: %v", err)
		}
	}

	health, err := store.Health(ctx)
	if err != nil {
		t.Fatalf("Health: %v", err)
	}
	want := HealthSummary{Total: 5, Pending: 1, Processing: 1, Failed: 1, Completed: 1, Cancelled: 1}
	if health != want {
		t.Fatalf("health = %+v, want %+v", health, want)
	}

	db, err := store.CheckHealth(ctx)
	if err != nil {
		t.Fatalf("CheckHealth: %v", err)
	}
	if !db.DatabaseExists || !db.DatabaseReadable || !db.TableExists || !db.IntegrityCheck {
		t.Fatalf("database health = %+v", db)
	}
	if db.TotalJobs != 5 {
		t.Fatalf("total jobs = %d", db.TotalJobs)
	}
}

func TestListFiltersByStatus(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := store.NewJob(ctx, "/videos/a.mp4"); err != nil {
			t.Fatalf("NewJob: %v", err)
		}
	}
	done, err := store.NewJob(ctx, "/videos/done.mp4")
	if err != nil {
		t.Fatalf("NewJob: %v", err)
	}
	done.Status = StatusCompleted
	if err := store.Update(ctx, done); err != nil {
		t.Fatalf("Update: %v", err)
	}

	pending, err := store.List(ctx, StatusPending)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(pending) != 3 {
		t.Fatalf("pending = %d, want 3", len(pending))
	}

	all, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 4 {
		t.Fatalf("all = %d, want 4", len(all))
	}

	cleared, err := store.ClearCompleted(ctx)
	if err != nil {
		t.Fatalf("ClearCompleted: %v", err)
	}
	if cleared != 1 {
		t.Fatalf("cleared = %d, want 1", cleared)
	}
}

func TestParseStatus(t *testing.T) {
	if status, ok := ParseStatus("  Filtering_Frames "); !ok || status != StatusFilteringFrames {
		t.Fatalf("ParseStatus = %q, %v", status, ok)
	}
	if _, ok := ParseStatus("ripping"); ok {
		t.Fatal("unknown status must not parse")
	}
	if _, ok := ParseStatus(""); ok {
		t.Fatal("empty status must not parse")
	}
}

func TestSchemaVersionMismatch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "jobs.db")
	store, err := OpenPath(path)
	if err != nil {
		t.Fatalf("OpenPath: %v", err)
	}
	if _, err := store.db.Exec("UPDATE schema_version SET version = 99"); err != nil {
		t.Fatalf("bump version: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if _, err := OpenPath(path); err == nil {
		t.Fatal("expected schema mismatch error")
	}
}
