package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"testing"

	"sift/internal/blobstore"
	"sift/internal/frames"
	"sift/internal/services/transcribe"
)

func putBatchBlob(t *testing.T, store blobstore.Store, index int, results []Result) BatchResult {
	t.Helper()
	payload, err := json.Marshal(results)
	if err != nil {
		t.Fatalf("marshal batch: %v", err)
	}
	ref, err := store.Put(context.Background(), fmt.Sprintf("exec/batches/batch_%04d.json", index), payload)
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	return BatchResult{Index: index, OutputRef: ref.String(), FrameCount: len(results)}
}

func annotated(ts float64) Result {
	return Result{
		Timestamp:  ts,
		FrameRef:   fmt.Sprintf("/frames/%.2f.jpg", ts),
		Annotation: json.RawMessage(fmt.Sprintf(`{"description":"frame %.2f"}`, ts)),
	}
}

func TestAssembleOrdersAcrossBatchCompletionOrder(t *testing.T) {
	store, err := blobstore.NewLocalStore(filepath.Join(t.TempDir(), "blobs"))
	if err != nil {
		t.Fatalf("NewLocalStore: %v", err)
	}

	// Batch results arrive out of submission order.
	late := putBatchBlob(t, store, 1, []Result{annotated(30), annotated(40)})
	early := putBatchBlob(t, store, 0, []Result{annotated(0), annotated(10)})

	results, err := Assemble(context.Background(), store, []BatchResult{late, early}, nil, 2)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if len(results) != 4 {
		t.Fatalf("results = %d", len(results))
	}
	for i := 1; i < len(results); i++ {
		if results[i].Timestamp < results[i-1].Timestamp {
			t.Fatalf("assembled stream not sorted: %+v", results)
		}
	}
}

func TestAssembleExpandsDuplicateGroups(t *testing.T) {
	store, err := blobstore.NewLocalStore(filepath.Join(t.TempDir(), "blobs"))
	if err != nil {
		t.Fatalf("NewLocalStore: %v", err)
	}
	batch := putBatchBlob(t, store, 0, []Result{annotated(0), annotated(5)})
	dupMap := frames.DuplicateMap{1: 0, 2: 0, 3: 0, 4: 0}

	results, err := Assemble(context.Background(), store, []BatchResult{batch}, dupMap, 2)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if len(results) != 6 {
		t.Fatalf("results = %d, want 6", len(results))
	}

	for _, result := range results {
		switch result.Timestamp {
		case 0, 5:
			if result.IsDuplicate {
				t.Fatalf("representative %v marked duplicate", result.Timestamp)
			}
			if result.CopiedFrom != nil {
				t.Fatalf("representative %v has copied_from", result.Timestamp)
			}
		default:
			if !result.IsDuplicate {
				t.Fatalf("duplicate %v not marked", result.Timestamp)
			}
			if result.CopiedFrom == nil || *result.CopiedFrom != 0 {
				t.Fatalf("duplicate %v copied_from = %v", result.Timestamp, result.CopiedFrom)
			}
			if string(result.Annotation) != `{"description":"frame 0.00"}` {
				t.Fatalf("duplicate %v annotation not copied: %s", result.Timestamp, result.Annotation)
			}
		}
	}
}

func TestAssembleSkipsDuplicatesOfFailedRepresentative(t *testing.T) {
	store, err := blobstore.NewLocalStore(filepath.Join(t.TempDir(), "blobs"))
	if err != nil {
		t.Fatalf("NewLocalStore: %v", err)
	}
	// Representative at 10 failed annotation and is absent from the batch.
	batch := putBatchBlob(t, store, 0, []Result{annotated(0)})
	dupMap := frames.DuplicateMap{11: 10}

	results, err := Assemble(context.Background(), store, []BatchResult{batch}, dupMap, 2)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if len(results) != 1 || results[0].Timestamp != 0 {
		t.Fatalf("results = %+v", results)
	}
}

func TestAssembleFailsOnMissingBatch(t *testing.T) {
	store, err := blobstore.NewLocalStore(filepath.Join(t.TempDir(), "blobs"))
	if err != nil {
		t.Fatalf("NewLocalStore: %v", err)
	}
	missing := BatchResult{Index: 0, OutputRef: filepath.Join(t.TempDir(), "gone.json")}
	if _, err := Assemble(context.Background(), store, []BatchResult{missing}, nil, 2); err == nil {
		t.Fatal("expected error for unreadable batch blob")
	}
}

func TestBuildDocument(t *testing.T) {
	copied := 0.0
	results := []Result{
		annotated(0),
		{Timestamp: 1, IsDuplicate: true, CopiedFrom: &copied},
		annotated(5),
	}
	transcript := transcribe.Transcript{
		Language: "en",
		Segments: []transcribe.Segment{{Start: 0, End: 2, Text: "hello"}},
	}
	doc := BuildDocument("/videos/demo.mp4", 120, transcript, results)
	if doc.FrameCount != 3 || doc.DuplicateCount != 1 {
		t.Fatalf("document counts = %d/%d", doc.FrameCount, doc.DuplicateCount)
	}
	if doc.Language != "en" || doc.SourcePath != "/videos/demo.mp4" {
		t.Fatalf("document = %+v", doc)
	}
}
