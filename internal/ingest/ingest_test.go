package ingest

import (
	"context"
	"errors"
	"image"
	"os"
	"path/filepath"
	"testing"

	"sift/internal/config"
	"sift/internal/media"
	"sift/internal/queue"
	"sift/internal/services"
)

type fakeSource struct {
	duration float64
	err      error
}

func (f *fakeSource) Duration(context.Context) (float64, error) { return f.duration, f.err }

func (f *fakeSource) FrameAt(context.Context, float64, media.Resolution) (image.Image, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeSource) FrameJPEG(context.Context, float64, media.Resolution) ([]byte, error) {
	return nil, errors.New("not implemented")
}

func newFixture(t *testing.T, duration float64, probeErr error) (*Ingester, *queue.Job) {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Paths.WorkDir = dir

	store, err := queue.OpenPath(filepath.Join(dir, "jobs.db"))
	if err != nil {
		t.Fatalf("OpenPath: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	mediaPath := filepath.Join(dir, "office_tour.mp4")
	if err := os.WriteFile(mediaPath, []byte("container"), 0o644); err != nil {
		t.Fatalf("write media: %v", err)
	}
	job, err := store.NewJob(context.Background(), mediaPath)
	if err != nil {
		t.Fatalf("NewJob: %v", err)
	}

	ingester := NewIngester(&cfg, store, nil).WithSourceFactory(func(string) media.Source {
		return &fakeSource{duration: duration, err: probeErr}
	})
	return ingester, job
}

func TestExecuteRecordsDuration(t *testing.T) {
	ingester, job := newFixture(t, 93.5, nil)
	ctx := context.Background()
	if err := ingester.Prepare(ctx, job); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if err := ingester.Execute(ctx, job); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if job.DurationSeconds != 93.5 {
		t.Fatalf("duration = %v", job.DurationSeconds)
	}
	if job.Title == "" {
		t.Fatal("title must be populated")
	}
	if job.ProgressPercent != 100 {
		t.Fatalf("progress = %v", job.ProgressPercent)
	}
}

func TestPrepareRejectsMissingSource(t *testing.T) {
	ingester, job := newFixture(t, 10, nil)
	job.SourcePath = filepath.Join(t.TempDir(), "gone.mp4")
	err := ingester.Prepare(context.Background(), job)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("err = %v, want validation", err)
	}
}

func TestExecuteWrapsProbeFailure(t *testing.T) {
	ingester, job := newFixture(t, 0, errors.New("moov atom not found"))
	err := ingester.Execute(context.Background(), job)
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("err = %v, want external tool", err)
	}
}

func TestExecuteRejectsZeroDuration(t *testing.T) {
	ingester, job := newFixture(t, 0, nil)
	err := ingester.Execute(context.Background(), job)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("err = %v, want validation", err)
	}
}
