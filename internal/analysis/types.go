package analysis

import (
	"encoding/json"

	"sift/internal/services/transcribe"
)

// Result is the structured annotation of one frame. For duplicates the
// annotation is copied verbatim from the group representative rather than
// recomputed; CopiedFrom then carries the representative's timestamp.
type Result struct {
	Timestamp   float64         `json:"timestamp"`
	FrameRef    string          `json:"frame_ref,omitempty"`
	Annotation  json.RawMessage `json:"annotation,omitempty"`
	IsDuplicate bool            `json:"is_duplicate"`
	CopiedFrom  *float64        `json:"copied_from,omitempty"`
}

// Frame pairs a representative timestamp with its stored frame payload.
type Frame struct {
	Timestamp float64 `json:"timestamp"`
	Ref       string  `json:"ref"`
}

// Batch is one unit of parallel annotation work. Batches are value objects:
// workers may live in different processes, so batches travel as serialized
// messages, never shared memory.
type Batch struct {
	Index  int     `json:"index"`
	Frames []Frame `json:"frames"`
}

// BatchResult is the claim-check outcome of one analyzed batch: the merged
// payload lives behind OutputRef, never inline.
type BatchResult struct {
	Index      int      `json:"index"`
	OutputRef  string   `json:"output_ref"`
	FrameCount int      `json:"frame_count"`
	Errors     []string `json:"errors,omitempty"`
}

// Document is the assembled knowledge artifact the persist stage writes: the
// temporally ordered annotation stream plus the transcript.
type Document struct {
	SourcePath      string                `json:"source_path"`
	DurationSeconds float64               `json:"duration_seconds"`
	Language        string                `json:"language,omitempty"`
	Transcript      transcribe.Transcript `json:"transcript"`
	Results         []Result              `json:"results"`
	FrameCount      int                   `json:"frame_count"`
	DuplicateCount  int                   `json:"duplicate_count"`
}

// PartitionBatches splits frames into batches of at most batchSize, indexed in
// ascending submission order. Small batches keep one failure's blast radius
// small and allow fine-grained retry.
func PartitionBatches(frames []Frame, batchSize int) []Batch {
	if batchSize <= 0 {
		batchSize = 10
	}
	batches := make([]Batch, 0, (len(frames)+batchSize-1)/batchSize)
	for start := 0; start < len(frames); start += batchSize {
		end := min(start+batchSize, len(frames))
		chunk := make([]Frame, end-start)
		copy(chunk, frames[start:end])
		batches = append(batches, Batch{Index: len(batches), Frames: chunk})
	}
	return batches
}
