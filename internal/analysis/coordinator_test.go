package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"sift/internal/blobstore"
	"sift/internal/ledger"
	"sift/internal/retry"
	"sift/internal/services"
	"sift/internal/services/annotate"
	"sift/internal/services/transcribe"
)

// stubAnnotator counts calls and fails timestamps on demand.
type stubAnnotator struct {
	mu       sync.Mutex
	calls    int64
	failAt   map[float64]error
	overload int32 // remaining overload responses before success
}

func (s *stubAnnotator) AnnotateFrame(_ context.Context, req annotate.FrameRequest) (string, error) {
	atomic.AddInt64(&s.calls, 1)
	if atomic.LoadInt32(&s.overload) > 0 {
		atomic.AddInt32(&s.overload, -1)
		return "", services.Wrap(services.ErrOverloaded, "annotate", "request", "overloaded", nil)
	}
	s.mu.Lock()
	err := s.failAt[req.Timestamp]
	s.mu.Unlock()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(`{"description":"frame at %.2f"}`, req.Timestamp), nil
}

func (s *stubAnnotator) callCount() int64 {
	return atomic.LoadInt64(&s.calls)
}

func newTestFixtures(t *testing.T) (blobstore.Store, *ledger.Store) {
	t.Helper()
	dir := t.TempDir()
	store, err := blobstore.NewLocalStore(filepath.Join(dir, "blobs"))
	if err != nil {
		t.Fatalf("NewLocalStore: %v", err)
	}
	led, err := ledger.Open(filepath.Join(dir, "ledger.db"), 24*time.Hour)
	if err != nil {
		t.Fatalf("ledger.Open: %v", err)
	}
	t.Cleanup(func() { _ = led.Close() })
	return store, led
}

func putFrames(t *testing.T, store blobstore.Store, timestamps []float64) []Frame {
	t.Helper()
	ctx := context.Background()
	out := make([]Frame, 0, len(timestamps))
	for _, ts := range timestamps {
		ref, err := store.Put(ctx, fmt.Sprintf("frames/%.2f.jpg", ts), []byte("jpeg-bytes"))
		if err != nil {
			t.Fatalf("Put: %v", err)
		}
		out = append(out, Frame{Timestamp: ts, Ref: ref.String()})
	}
	return out
}

func TestPartitionBatches(t *testing.T) {
	frames := make([]Frame, 25)
	for i := range frames {
		frames[i] = Frame{Timestamp: float64(i)}
	}
	batches := PartitionBatches(frames, 10)
	if len(batches) != 3 {
		t.Fatalf("batches = %d, want 3", len(batches))
	}
	if len(batches[0].Frames) != 10 || len(batches[2].Frames) != 5 {
		t.Fatalf("unexpected batch sizes %d/%d", len(batches[0].Frames), len(batches[2].Frames))
	}
	for i, batch := range batches {
		if batch.Index != i {
			t.Fatalf("batch %d has index %d", i, batch.Index)
		}
	}
}

func TestAnalyzeBatchStoresResultsBehindReference(t *testing.T) {
	store, led := newTestFixtures(t)
	annotator := &stubAnnotator{}
	coordinator := NewCoordinator(store, led, annotator, Config{Parallelism: 2}, nil)

	batch := Batch{Index: 0, Frames: putFrames(t, store, []float64{0, 1, 2})}
	result, err := coordinator.AnalyzeBatch(context.Background(), "exec-1", batch, nil)
	if err != nil {
		t.Fatalf("AnalyzeBatch: %v", err)
	}
	if result.FrameCount != 3 || len(result.Errors) != 0 {
		t.Fatalf("result = %+v", result)
	}
	if result.OutputRef == "" {
		t.Fatal("batch result must carry a claim-check reference")
	}

	ref, err := blobstore.Parse(result.OutputRef)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	payload, err := store.Get(context.Background(), ref)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	var stored []Result
	if err := json.Unmarshal(payload, &stored); err != nil {
		t.Fatalf("decode stored results: %v", err)
	}
	if len(stored) != 3 {
		t.Fatalf("stored %d results", len(stored))
	}
	for i := 1; i < len(stored); i++ {
		if stored[i].Timestamp < stored[i-1].Timestamp {
			t.Fatalf("stored results out of order: %+v", stored)
		}
	}
}

func TestAnalyzeBatchPartialSuccess(t *testing.T) {
	store, led := newTestFixtures(t)
	annotator := &stubAnnotator{failAt: map[float64]error{
		2: fmt.Errorf("decode failure"),
	}}
	coordinator := NewCoordinator(store, led, annotator, Config{Parallelism: 2}, nil)

	batch := Batch{Index: 0, Frames: putFrames(t, store, []float64{0, 1, 2, 3, 4})}
	result, err := coordinator.AnalyzeBatch(context.Background(), "exec-1", batch, nil)
	if err != nil {
		t.Fatalf("a per-frame failure must not fail the batch: %v", err)
	}
	if result.FrameCount != 4 {
		t.Fatalf("frame count = %d, want 4", result.FrameCount)
	}
	if len(result.Errors) != 1 || !strings.Contains(result.Errors[0], "2.00") {
		t.Fatalf("errors = %v", result.Errors)
	}
}

func TestAnalyzeBatchReplaysFromLedger(t *testing.T) {
	store, led := newTestFixtures(t)
	annotator := &stubAnnotator{}
	coordinator := NewCoordinator(store, led, annotator, Config{Parallelism: 2}, nil)

	batch := Batch{Index: 3, Frames: putFrames(t, store, []float64{10, 11})}
	first, err := coordinator.AnalyzeBatch(context.Background(), "exec-1", batch, nil)
	if err != nil {
		t.Fatalf("AnalyzeBatch: %v", err)
	}
	callsAfterFirst := annotator.callCount()

	second, err := coordinator.AnalyzeBatch(context.Background(), "exec-1", batch, nil)
	if err != nil {
		t.Fatalf("AnalyzeBatch replay: %v", err)
	}
	if annotator.callCount() != callsAfterFirst {
		t.Fatalf("replay must not re-invoke the annotator: %d calls after, %d before",
			annotator.callCount(), callsAfterFirst)
	}
	if second.OutputRef != first.OutputRef || second.FrameCount != first.FrameCount {
		t.Fatalf("replayed result differs: %+v vs %+v", second, first)
	}

	// A different execution must not observe the cached batch.
	if _, err := coordinator.AnalyzeBatch(context.Background(), "exec-2", batch, nil); err != nil {
		t.Fatalf("AnalyzeBatch other execution: %v", err)
	}
	if annotator.callCount() == callsAfterFirst {
		t.Fatal("a different execution id must re-run the batch")
	}
}

func TestAnalyzeBatchOverloadRetriesWithFixedPolicy(t *testing.T) {
	store, led := newTestFixtures(t)
	annotator := &stubAnnotator{overload: 2}

	var sleeps []time.Duration
	coordinator := NewCoordinator(store, led, annotator, Config{
		Parallelism: 1,
		Overload:    retry.Fixed(6, 5*time.Minute, services.IsOverloaded),
	}, nil).WithSleeper(func(_ context.Context, d time.Duration) error {
		sleeps = append(sleeps, d)
		return nil
	})

	batch := Batch{Index: 0, Frames: putFrames(t, store, []float64{0})}
	result, err := coordinator.AnalyzeBatch(context.Background(), "exec-1", batch, nil)
	if err != nil {
		t.Fatalf("AnalyzeBatch: %v", err)
	}
	if result.FrameCount != 1 {
		t.Fatalf("result = %+v", result)
	}
	if len(sleeps) != 2 {
		t.Fatalf("expected 2 overload waits, got %v", sleeps)
	}
	for _, d := range sleeps {
		if d != 5*time.Minute {
			t.Fatalf("overload policy must use a fixed 5m interval, got %v", d)
		}
	}
}

func TestAnalyzeBatchThreadsTranscriptContext(t *testing.T) {
	store, led := newTestFixtures(t)

	var mu sync.Mutex
	var contexts []string
	annotator := annotatorFunc(func(_ context.Context, req annotate.FrameRequest) (string, error) {
		mu.Lock()
		contexts = append(contexts, req.Context)
		mu.Unlock()
		return `{"description":"ok"}`, nil
	})
	coordinator := NewCoordinator(store, led, annotator, Config{Parallelism: 1}, nil)

	transcript := &transcribe.Transcript{Segments: []transcribe.Segment{
		{Start: 0, End: 4, Text: "open the menu"},
	}}
	batch := Batch{Index: 0, Frames: putFrames(t, store, []float64{2})}
	if _, err := coordinator.AnalyzeBatch(context.Background(), "exec-1", batch, transcript); err != nil {
		t.Fatalf("AnalyzeBatch: %v", err)
	}
	if len(contexts) != 1 || !strings.Contains(contexts[0], "open the menu") {
		t.Fatalf("contexts = %v", contexts)
	}
}

type annotatorFunc func(ctx context.Context, req annotate.FrameRequest) (string, error)

func (f annotatorFunc) AnnotateFrame(ctx context.Context, req annotate.FrameRequest) (string, error) {
	return f(ctx, req)
}

func TestAnalyzeAllReportsProgressAndProbesControl(t *testing.T) {
	store, led := newTestFixtures(t)
	annotator := &stubAnnotator{}
	coordinator := NewCoordinator(store, led, annotator, Config{Parallelism: 2}, nil)

	frames := putFrames(t, store, []float64{0, 1, 2, 3, 4})
	batches := PartitionBatches(frames, 2)

	var progress [][2]int
	var probes int
	results, err := coordinator.AnalyzeAll(
		context.Background(), "exec-1", batches, nil,
		func(done, total int) { progress = append(progress, [2]int{done, total}) },
		func(context.Context) error { probes++; return nil },
	)
	if err != nil {
		t.Fatalf("AnalyzeAll: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("results = %d", len(results))
	}
	if probes != 3 {
		t.Fatalf("control probes = %d, want one per batch", probes)
	}
	if len(progress) != 3 || progress[2] != [2]int{3, 3} {
		t.Fatalf("progress = %v", progress)
	}
}

func TestAnalyzeAllStopsOnControlError(t *testing.T) {
	store, led := newTestFixtures(t)
	annotator := &stubAnnotator{}
	coordinator := NewCoordinator(store, led, annotator, Config{Parallelism: 1}, nil)

	batches := PartitionBatches(putFrames(t, store, []float64{0, 1}), 1)
	sentinel := fmt.Errorf("cancel requested")
	var seen int
	results, err := coordinator.AnalyzeAll(
		context.Background(), "exec-1", batches, nil, nil,
		func(context.Context) error {
			seen++
			if seen > 1 {
				return sentinel
			}
			return nil
		},
	)
	if err != sentinel {
		t.Fatalf("err = %v, want sentinel", err)
	}
	if len(results) != 1 {
		t.Fatalf("completed results before stop = %d, want 1", len(results))
	}
}
