package persist

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"sift/internal/analysis"
	"sift/internal/blobstore"
	"sift/internal/config"
	"sift/internal/ledger"
	"sift/internal/queue"
	"sift/internal/services"
)

func newFixture(t *testing.T) (*Persister, blobstore.Store, *queue.Job) {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Paths.WorkDir = dir

	store, err := queue.OpenPath(filepath.Join(dir, "jobs.db"))
	if err != nil {
		t.Fatalf("OpenPath: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	blobs, err := blobstore.NewLocalStore(filepath.Join(dir, "blobs"))
	if err != nil {
		t.Fatalf("NewLocalStore: %v", err)
	}
	led, err := ledger.Open(filepath.Join(dir, "ledger.db"), 24*time.Hour)
	if err != nil {
		t.Fatalf("ledger.Open: %v", err)
	}
	t.Cleanup(func() { _ = led.Close() })

	job, err := store.NewJob(context.Background(), "/videos/demo.mp4")
	if err != nil {
		t.Fatalf("NewJob: %v", err)
	}
	return NewPersister(&cfg, store, blobs, led, nil), blobs, job
}

func stageDocument(t *testing.T, blobs blobstore.Store, job *queue.Job) analysis.Document {
	t.Helper()
	document := analysis.Document{
		SourcePath:      job.SourcePath,
		DurationSeconds: 42,
		Results:         []analysis.Result{{Timestamp: 0, Annotation: json.RawMessage(`{"description":"start"}`)}},
		FrameCount:      1,
	}
	payload, err := json.Marshal(document)
	if err != nil {
		t.Fatalf("marshal document: %v", err)
	}
	ref, err := blobs.Put(context.Background(), job.ExecutionID+"/document.json", payload)
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	job.ResultRef = ref.String()
	return document
}

func TestExecutePublishesFinalDocument(t *testing.T) {
	persister, blobs, job := newFixture(t)
	stageDocument(t, blobs, job)
	assembledRef := job.ResultRef

	ctx := context.Background()
	if err := persister.Prepare(ctx, job); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if err := persister.Execute(ctx, job); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if job.ResultRef == assembledRef {
		t.Fatal("final reference must differ from the working document reference")
	}
	if !strings.Contains(job.ResultRef, "results/") {
		t.Fatalf("final ref = %q, want results/ location", job.ResultRef)
	}
	ref, err := blobstore.Parse(job.ResultRef)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	payload, err := blobs.Get(ctx, ref)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	var published analysis.Document
	if err := json.Unmarshal(payload, &published); err != nil {
		t.Fatalf("decode published document: %v", err)
	}
	if published.FrameCount != 1 || published.DurationSeconds != 42 {
		t.Fatalf("published = %+v", published)
	}
	if job.Status != queue.StatusCompleted {
		t.Fatalf("status = %s", job.Status)
	}
	if job.ProgressPercent != 100 {
		t.Fatalf("progress = %v", job.ProgressPercent)
	}
}

func TestPrepareRequiresAssembledDocument(t *testing.T) {
	persister, _, job := newFixture(t)
	if err := persister.Prepare(context.Background(), job); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("err = %v, want validation", err)
	}
}

func TestExecuteRejectsCorruptDocument(t *testing.T) {
	persister, blobs, job := newFixture(t)
	ref, err := blobs.Put(context.Background(), job.ExecutionID+"/document.json", []byte("{"))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	job.ResultRef = ref.String()
	if err := persister.Execute(context.Background(), job); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("err = %v, want validation", err)
	}
}
