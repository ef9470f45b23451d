package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"sift/internal/analysis"
	"sift/internal/blobstore"
	"sift/internal/config"
	"sift/internal/frameselect"
	"sift/internal/ledger"
	"sift/internal/logging"
	"sift/internal/queue"
	"sift/internal/retry"
	"sift/internal/services"
	"sift/internal/services/transcribe"
	"sift/internal/stage"
)

// Transcriber is the narrow surface needed from the speech-to-text service.
type Transcriber interface {
	Transcribe(ctx context.Context, source, workDir string) (transcribe.Transcript, error)
}

// Extractor drives the parallel extraction phase: audio transcription and
// batched frame annotation run concurrently; the tracks have no data
// dependency until assembly.
type Extractor struct {
	cfg         *config.Config
	store       *queue.Store
	blobs       blobstore.Store
	ledger      *ledger.Store
	annotator   analysis.Annotator
	transcriber Transcriber
	logger      *slog.Logger

	mu sync.Mutex
}

// NewExtractor constructs the extraction stage handler.
func NewExtractor(cfg *config.Config, store *queue.Store, blobs blobstore.Store, led *ledger.Store, annotator analysis.Annotator, transcriber Transcriber, logger *slog.Logger) *Extractor {
	if logger != nil {
		logger = logger.With(logging.String("component", "extract"))
	}
	return &Extractor{
		cfg:         cfg,
		store:       store,
		blobs:       blobs,
		ledger:      led,
		annotator:   annotator,
		transcriber: transcriber,
		logger:      logger,
	}
}

// SetLogger installs the request-scoped logger for the current run.
func (e *Extractor) SetLogger(logger *slog.Logger) {
	if logger != nil {
		e.logger = logger
	}
}

func (e *Extractor) Prepare(_ context.Context, job *queue.Job) error {
	job.InitProgress("Extracting", "Annotating frames and transcribing audio")
	if job.GroupsJSON == "" {
		return services.Wrap(services.ErrValidation, "extract", "validate inputs",
			"Job has no frame selection; filtering must run first", nil)
	}
	return nil
}

func (e *Extractor) Execute(ctx context.Context, job *queue.Job) error {
	logger := logging.WithContext(ctx, e.logger)

	selection, err := frameselect.DecodeSelection(job.GroupsJSON)
	if err != nil {
		return services.Wrap(services.ErrValidation, "extract", "decode selection", "Frame selection unreadable", err)
	}

	batches := analysis.PartitionBatches(selection.Frames, e.cfg.Pipeline.BatchSize)
	e.setTotals(ctx, job, len(batches))

	coordinator := analysis.NewCoordinator(e.blobs, e.ledger, e.annotator, analysis.Config{
		Parallelism: e.cfg.Pipeline.BatchParallelism,
		PresignTTL:  time.Duration(e.cfg.Storage.PresignTTLMinutes) * time.Minute,
		Overload: retry.Fixed(
			e.cfg.Annotation.OverloadRetryAttempts,
			time.Duration(e.cfg.Annotation.OverloadRetryDelaySec)*time.Second,
			services.IsOverloaded,
		),
	}, logger)

	// Transcription publishes here when it finishes; annotation batches that
	// start afterwards pick up narration context.
	var transcript atomic.Pointer[transcribe.Transcript]

	var batchResults []analysis.BatchResult
	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return e.runTranscription(groupCtx, job, &transcript)
	})
	group.Go(func() error {
		results, err := coordinator.AnalyzeAll(
			groupCtx, job.ExecutionID, batches, transcript.Load,
			func(done, total int) { e.reportBatchProgress(groupCtx, job, done, total) },
			stage.ControlProbe(e.store, job.ID),
		)
		if err != nil {
			return err
		}
		batchResults = results
		return nil
	})
	if err := group.Wait(); err != nil {
		return err
	}

	encoded, err := json.Marshal(batchResults)
	if err != nil {
		return services.Wrap(services.ErrTransient, "extract", "encode batch refs", "Failed to encode batch references", err)
	}
	e.mu.Lock()
	job.AnalysisRefsJSON = string(encoded)
	job.SetProgressComplete("Extracting", fmt.Sprintf("Annotated %d batches", len(batchResults)))
	e.mu.Unlock()

	logger.Info("extraction completed",
		logging.Int("batches", len(batchResults)),
		logging.Bool("transcribed", job.TranscriptRef != ""),
	)
	return nil
}

func (e *Extractor) runTranscription(ctx context.Context, job *queue.Job, out *atomic.Pointer[transcribe.Transcript]) error {
	logger := logging.WithContext(ctx, e.logger)
	if !e.cfg.Transcription.Enabled || e.transcriber == nil {
		logger.Debug("transcription disabled, analyzing without narration context")
		return nil
	}

	// A prior run of this stage already stored the transcript; replay it
	// instead of re-invoking speech-to-text.
	if job.TranscriptRef != "" {
		if stored, ok := e.replayTranscript(ctx, job.TranscriptRef); ok {
			out.Store(stored)
			logger.Debug("transcript replayed from blob store",
				logging.Int("segments", len(stored.Segments)))
			return nil
		}
		logger.Warn("stored transcript unreadable, transcribing again",
			logging.String("ref", job.TranscriptRef))
	}

	if timeout := e.cfg.Transcription.TimeoutSeconds; timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(timeout)*time.Second)
		defer cancel()
	}

	workDir := filepath.Join(e.cfg.Paths.WorkDir, job.ExecutionID)
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return services.Wrap(services.ErrConfiguration, "extract", "prepare work dir", "Failed to create transcription work directory", err)
	}

	transcript, err := e.transcriber.Transcribe(ctx, job.SourcePath, workDir)
	if err != nil {
		return services.Wrap(services.ErrExternalTool, "extract", "transcribe audio", "Speech-to-text failed", err)
	}
	out.Store(&transcript)

	payload, err := json.Marshal(transcript)
	if err != nil {
		return services.Wrap(services.ErrTransient, "extract", "encode transcript", "Failed to encode transcript", err)
	}
	ref, err := e.blobs.Put(ctx, fmt.Sprintf("%s/transcript.json", job.ExecutionID), payload)
	if err != nil {
		return services.Wrap(services.ErrTransient, "extract", "store transcript", "Failed to store transcript", err)
	}

	e.mu.Lock()
	job.TranscriptRef = ref.String()
	e.persistLocked(ctx, job)
	e.mu.Unlock()

	logger.Info("transcription completed",
		logging.Int("segments", len(transcript.Segments)),
		logging.String("language", transcript.Language),
	)
	return nil
}

func (e *Extractor) replayTranscript(ctx context.Context, rawRef string) (*transcribe.Transcript, bool) {
	ref, err := blobstore.Parse(rawRef)
	if err != nil {
		return nil, false
	}
	payload, err := e.blobs.Get(ctx, ref)
	if err != nil {
		return nil, false
	}
	var transcript transcribe.Transcript
	if err := json.Unmarshal(payload, &transcript); err != nil {
		return nil, false
	}
	return &transcript, true
}

func (e *Extractor) setTotals(ctx context.Context, job *queue.Job, total int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	job.TotalItems = int64(total)
	// A resumed run keeps its counter; the replay climbs from where it was.
	if job.ItemsProcessed > job.TotalItems {
		job.ItemsProcessed = job.TotalItems
	}
	e.persistLocked(ctx, job)
}

func (e *Extractor) reportBatchProgress(ctx context.Context, job *queue.Job, done, total int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	// Items processed never regress, even when a resumed run replays.
	if int64(done) > job.ItemsProcessed {
		job.ItemsProcessed = int64(done)
	}
	job.TotalItems = int64(total)
	if total > 0 {
		job.ProgressPercent = float64(done) / float64(total) * 100
	}
	job.ProgressMessage = fmt.Sprintf("Annotated batch %d of %d", done, total)
	e.persistLocked(ctx, job)
}

func (e *Extractor) persistLocked(ctx context.Context, job *queue.Job) {
	copy := *job
	if err := e.store.Update(ctx, &copy); err != nil {
		logging.WithContext(ctx, e.logger).Warn("failed to persist extraction progress", logging.Error(err))
		return
	}
	*job = copy
}

// HealthCheck verifies the extraction collaborators are wired.
func (e *Extractor) HealthCheck(_ context.Context) stage.Health {
	const name = "extract"
	if e.cfg == nil {
		return stage.Unhealthy(name, "configuration unavailable")
	}
	if e.annotator == nil {
		return stage.Unhealthy(name, "annotation client unavailable")
	}
	if e.blobs == nil {
		return stage.Unhealthy(name, "blob store unavailable")
	}
	if e.ledger == nil {
		return stage.Unhealthy(name, "idempotency ledger unavailable")
	}
	if e.cfg.Transcription.Enabled && e.transcriber == nil {
		return stage.Unhealthy(name, "transcription enabled but service unavailable")
	}
	return stage.Healthy(name)
}
