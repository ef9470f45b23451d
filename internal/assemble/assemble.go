package assemble

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"sift/internal/analysis"
	"sift/internal/blobstore"
	"sift/internal/config"
	"sift/internal/frames"
	"sift/internal/frameselect"
	"sift/internal/logging"
	"sift/internal/queue"
	"sift/internal/services"
	"sift/internal/services/transcribe"
	"sift/internal/stage"
)

// Assembler merges every batch result into one temporally ordered annotation
// stream, expands duplicate groups, and persists the composed document behind
// a claim-check reference.
type Assembler struct {
	cfg    *config.Config
	store  *queue.Store
	blobs  blobstore.Store
	logger *slog.Logger
}

// NewAssembler constructs the assembly stage handler.
func NewAssembler(cfg *config.Config, store *queue.Store, blobs blobstore.Store, logger *slog.Logger) *Assembler {
	if logger != nil {
		logger = logger.With(logging.String("component", "assemble"))
	}
	return &Assembler{cfg: cfg, store: store, blobs: blobs, logger: logger}
}

// SetLogger installs the request-scoped logger for the current run.
func (a *Assembler) SetLogger(logger *slog.Logger) {
	if logger != nil {
		a.logger = logger
	}
}

func (a *Assembler) Prepare(_ context.Context, job *queue.Job) error {
	job.InitProgress("Assembling", "Merging batch results")
	if job.AnalysisRefsJSON == "" {
		return services.Wrap(services.ErrValidation, "assemble", "validate inputs",
			"Job has no batch results; extraction must run first", nil)
	}
	return nil
}

func (a *Assembler) Execute(ctx context.Context, job *queue.Job) error {
	logger := logging.WithContext(ctx, a.logger)

	var batchResults []analysis.BatchResult
	if err := json.Unmarshal([]byte(job.AnalysisRefsJSON), &batchResults); err != nil {
		return services.Wrap(services.ErrValidation, "assemble", "decode batch refs", "Batch references unreadable", err)
	}

	selection, err := frameselect.DecodeSelection(job.GroupsJSON)
	if err != nil {
		return services.Wrap(services.ErrValidation, "assemble", "decode selection", "Frame selection unreadable", err)
	}
	dupMap := frames.BuildDuplicateMap(selection.Groups)

	results, err := analysis.Assemble(ctx, a.blobs, batchResults, dupMap, a.cfg.Pipeline.BatchParallelism)
	if err != nil {
		return services.Wrap(services.ErrTransient, "assemble", "merge batches", "Failed to assemble batch results", err)
	}

	transcript, err := a.loadTranscript(ctx, job.TranscriptRef)
	if err != nil {
		return err
	}

	document := analysis.BuildDocument(job.SourcePath, job.DurationSeconds, transcript, results)
	payload, err := json.Marshal(document)
	if err != nil {
		return services.Wrap(services.ErrTransient, "assemble", "encode document", "Failed to encode assembled document", err)
	}
	ref, err := a.blobs.Put(ctx, fmt.Sprintf("%s/document.json", job.ExecutionID), payload)
	if err != nil {
		return services.Wrap(services.ErrTransient, "assemble", "store document", "Failed to store assembled document", err)
	}
	job.ResultRef = ref.String()
	job.SetProgressComplete("Assembling",
		fmt.Sprintf("Assembled %d annotations (%d copied)", document.FrameCount, document.DuplicateCount))

	logger.Info("assembly completed",
		logging.Int("annotations", document.FrameCount),
		logging.Int("duplicates", document.DuplicateCount),
	)
	return nil
}

func (a *Assembler) loadTranscript(ctx context.Context, transcriptRef string) (transcribe.Transcript, error) {
	var transcript transcribe.Transcript
	if transcriptRef == "" {
		return transcript, nil
	}
	ref, err := blobstore.Parse(transcriptRef)
	if err != nil {
		return transcript, services.Wrap(services.ErrValidation, "assemble", "parse transcript ref", "Transcript reference unreadable", err)
	}
	payload, err := a.blobs.Get(ctx, ref)
	if err != nil {
		return transcript, services.Wrap(services.ErrTransient, "assemble", "load transcript", "Failed to load transcript", err)
	}
	if err := json.Unmarshal(payload, &transcript); err != nil {
		return transcript, services.Wrap(services.ErrTransient, "assemble", "decode transcript", "Transcript payload unreadable", err)
	}
	return transcript, nil
}

// HealthCheck verifies the blob backend is available for downloads.
func (a *Assembler) HealthCheck(_ context.Context) stage.Health {
	const name = "assemble"
	if a.cfg == nil {
		return stage.Unhealthy(name, "configuration unavailable")
	}
	if a.blobs == nil {
		return stage.Unhealthy(name, "blob store unavailable")
	}
	return stage.Healthy(name)
}
