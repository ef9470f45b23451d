package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"sift/internal/blobstore"
	"sift/internal/frames"
	"sift/internal/services/transcribe"
)

// Assemble downloads every batch result blob, merges the annotation stream,
// re-sorts by timestamp (batches complete in any order), and expands each
// duplicate group by copying the representative's annotation to its members.
// Every batch blob must resolve; a missing batch would silently drop analyzed
// frames, so assembly fails instead.
func Assemble(ctx context.Context, store blobstore.Store, batchResults []BatchResult, dupMap frames.DuplicateMap, parallelism int) ([]Result, error) {
	refs := make([]blobstore.Reference, len(batchResults))
	for i, batch := range batchResults {
		ref, err := blobstore.Parse(batch.OutputRef)
		if err != nil {
			return nil, fmt.Errorf("assemble: batch %d ref: %w", batch.Index, err)
		}
		refs[i] = ref
	}

	downloads := blobstore.GetAll(ctx, store, refs, parallelism)
	merged := make([]Result, 0, len(batchResults)*8)
	for i, download := range downloads {
		if download.Err != nil {
			return nil, fmt.Errorf("assemble: fetch batch %d: %w", batchResults[i].Index, download.Err)
		}
		var results []Result
		if err := json.Unmarshal(download.Payload, &results); err != nil {
			return nil, fmt.Errorf("assemble: decode batch %d: %w", batchResults[i].Index, err)
		}
		merged = append(merged, results...)
	}

	byTimestamp := make(map[float64]*Result, len(merged))
	for i := range merged {
		byTimestamp[merged[i].Timestamp] = &merged[i]
	}

	// Duplicate expansion. A duplicate whose representative failed annotation
	// has nothing to copy and is skipped, matching the partial-success policy.
	expanded := make([]Result, 0, len(merged)+len(dupMap))
	expanded = append(expanded, merged...)
	for dup, rep := range dupMap {
		source, ok := byTimestamp[rep]
		if !ok {
			continue
		}
		repTS := rep
		expanded = append(expanded, Result{
			Timestamp:   dup,
			FrameRef:    source.FrameRef,
			Annotation:  source.Annotation,
			IsDuplicate: true,
			CopiedFrom:  &repTS,
		})
	}

	sort.Slice(expanded, func(i, j int) bool { return expanded[i].Timestamp < expanded[j].Timestamp })
	return expanded, nil
}

// BuildDocument composes the persistable artifact from the assembled stream.
func BuildDocument(sourcePath string, duration float64, transcript transcribe.Transcript, results []Result) Document {
	duplicates := 0
	for _, result := range results {
		if result.IsDuplicate {
			duplicates++
		}
	}
	return Document{
		SourcePath:      sourcePath,
		DurationSeconds: duration,
		Language:        transcript.Language,
		Transcript:      transcript,
		Results:         results,
		FrameCount:      len(results),
		DuplicateCount:  duplicates,
	}
}
