package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"sift/internal/blobstore"
	"sift/internal/ledger"
	"sift/internal/logging"
	"sift/internal/retry"
	"sift/internal/services"
	"sift/internal/services/annotate"
	"sift/internal/services/transcribe"
)

// ledgerStepAnalyzeBatch keys per-batch idempotency records.
const ledgerStepAnalyzeBatch = "analyze_batch"

// Annotator is the narrow surface the coordinator needs from the vision
// client.
type Annotator interface {
	AnnotateFrame(ctx context.Context, req annotate.FrameRequest) (string, error)
}

// Config tunes the coordinator.
type Config struct {
	// Parallelism caps concurrent annotation calls within one batch.
	Parallelism int
	// PresignTTL bounds time-boxed access for remote frame references.
	PresignTTL time.Duration
	// Overload is the long-horizon retry applied only to overload errors
	// (default 6 attempts, 5 minute fixed interval). Generic transient
	// failures stay with the stage-level envelope.
	Overload retry.Policy
	// TranscriptWindow is the narration window threaded into prompts.
	TranscriptWindow float64
}

// Coordinator drives batched frame annotation with per-batch idempotency and
// per-frame partial-success semantics.
type Coordinator struct {
	store     blobstore.Store
	ledger    *ledger.Store
	annotator Annotator
	cfg       Config
	logger    *slog.Logger
	sleeper   retry.Sleeper
}

// NewCoordinator wires the coordinator's collaborators.
func NewCoordinator(store blobstore.Store, led *ledger.Store, annotator Annotator, cfg Config, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = logging.NewNop()
	}
	if cfg.Parallelism <= 0 {
		cfg.Parallelism = 4
	}
	if cfg.Overload.MaxAttempts == 0 {
		cfg.Overload = retry.Fixed(6, 5*time.Minute, services.IsOverloaded)
	}
	if cfg.TranscriptWindow <= 0 {
		cfg.TranscriptWindow = 5
	}
	return &Coordinator{store: store, ledger: led, annotator: annotator, cfg: cfg, logger: logger}
}

// WithSleeper overrides the overload retry sleeper (for tests).
func (c *Coordinator) WithSleeper(sleeper retry.Sleeper) *Coordinator {
	c.sleeper = sleeper
	return c
}

// batchLedgerInput is the canonical idempotency input for one batch. It holds
// only stable identity (index, timestamps, refs) so a resumed run observes a
// byte-identical canonical form.
type batchLedgerInput struct {
	Index  int     `json:"index"`
	Frames []Frame `json:"frames"`
}

// AnalyzeBatch annotates every frame of one batch concurrently, writes the
// successful results as a single JSON blob, and returns its claim-check.
// Replays the recorded outcome when the ledger already holds a successful run
// of the same canonical input.
func (c *Coordinator) AnalyzeBatch(ctx context.Context, executionID string, batch Batch, transcript *transcribe.Transcript) (BatchResult, error) {
	var result BatchResult
	input := batchLedgerInput{Index: batch.Index, Frames: batch.Frames}

	if cached, ok, err := c.ledger.CheckCached(ctx, executionID, ledgerStepAnalyzeBatch, input); err != nil {
		return result, fmt.Errorf("analyze batch %d: ledger lookup: %w", batch.Index, err)
	} else if ok {
		if err := json.Unmarshal(cached, &result); err != nil {
			return result, fmt.Errorf("analyze batch %d: decode cached result: %w", batch.Index, err)
		}
		c.logger.Info("batch replayed from ledger",
			logging.Int("batch", batch.Index),
			logging.Int("frames", result.FrameCount),
		)
		return result, nil
	}

	results, failures := c.annotateFrames(ctx, batch, transcript)
	if err := ctx.Err(); err != nil {
		return result, err
	}

	payload, err := json.Marshal(results)
	if err != nil {
		return result, fmt.Errorf("analyze batch %d: encode results: %w", batch.Index, err)
	}
	key := fmt.Sprintf("%s/batches/batch_%04d.json", executionID, batch.Index)
	ref, err := c.store.Put(ctx, key, payload)
	if err != nil {
		return result, fmt.Errorf("analyze batch %d: store results: %w", batch.Index, err)
	}

	result = BatchResult{
		Index:      batch.Index,
		OutputRef:  ref.String(),
		FrameCount: len(results),
		Errors:     failures,
	}
	if err := c.ledger.Record(ctx, executionID, ledgerStepAnalyzeBatch, input, result, true); err != nil {
		return result, fmt.Errorf("analyze batch %d: record ledger: %w", batch.Index, err)
	}

	c.logger.Info("batch analyzed",
		logging.Int("batch", batch.Index),
		logging.Int("frames", result.FrameCount),
		logging.Int("failures", len(failures)),
	)
	return result, nil
}

// annotateFrames runs the per-frame annotation fan-out. A failed frame is
// excluded and reported, never fatal to the batch.
func (c *Coordinator) annotateFrames(ctx context.Context, batch Batch, transcript *transcribe.Transcript) ([]Result, []string) {
	var mu sync.Mutex
	results := make([]Result, 0, len(batch.Frames))
	var failures []string

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(c.cfg.Parallelism)
	for _, frame := range batch.Frames {
		group.Go(func() error {
			annotation, err := c.annotateOne(groupCtx, frame, transcript)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				c.logger.Warn("frame annotation failed",
					logging.Float64("timestamp", frame.Timestamp),
					logging.Error(err),
				)
				failures = append(failures, fmt.Sprintf("%.2f: %v", frame.Timestamp, err))
				return nil
			}
			results = append(results, Result{
				Timestamp:  frame.Timestamp,
				FrameRef:   frame.Ref,
				Annotation: json.RawMessage(annotation),
			})
			return nil
		})
	}
	_ = group.Wait()

	sort.Slice(results, func(i, j int) bool { return results[i].Timestamp < results[j].Timestamp })
	sort.Strings(failures)
	return results, failures
}

func (c *Coordinator) annotateOne(ctx context.Context, frame Frame, transcript *transcribe.Transcript) (string, error) {
	ref, err := blobstore.Parse(frame.Ref)
	if err != nil {
		return "", fmt.Errorf("parse frame ref: %w", err)
	}

	req := annotate.FrameRequest{Timestamp: frame.Timestamp}
	if transcript != nil {
		req.Context = transcript.ContextAround(frame.Timestamp, c.cfg.TranscriptWindow)
	}

	// Remote frames travel as presigned URLs so the pixels skip the request
	// body; local frames are read and inlined.
	if ref.Backend == blobstore.BackendS3 {
		url, err := c.store.Presign(ctx, ref, c.cfg.PresignTTL)
		if err != nil {
			return "", fmt.Errorf("presign frame: %w", err)
		}
		req.ImageURL = url
	} else {
		payload, err := c.store.Get(ctx, ref)
		if err != nil {
			return "", fmt.Errorf("load frame: %w", err)
		}
		req.ImageData = payload
		req.MimeType = "image/jpeg"
	}

	var annotation string
	err = retry.DoWithSleeper(ctx, c.cfg.Overload, c.sleeper, func(ctx context.Context) error {
		var callErr error
		annotation, callErr = c.annotator.AnnotateFrame(ctx, req)
		return callErr
	})
	if err != nil {
		return "", err
	}
	return annotation, nil
}

// AnalyzeAll drives every batch in ascending index order, invoking progress
// after each batch completes. Control is probed between batches so pause and
// cancel latency stays bounded even mid-phase. The transcript provider is
// consulted per batch; transcription runs concurrently with analysis, so
// batches started after it completes pick up narration context and earlier
// ones proceed without it.
func (c *Coordinator) AnalyzeAll(
	ctx context.Context,
	executionID string,
	batches []Batch,
	transcript func() *transcribe.Transcript,
	progress func(done, total int),
	control func(context.Context) error,
) ([]BatchResult, error) {
	results := make([]BatchResult, 0, len(batches))
	for i, batch := range batches {
		if control != nil {
			if err := control(ctx); err != nil {
				return results, err
			}
		}
		var narration *transcribe.Transcript
		if transcript != nil {
			narration = transcript()
		}
		result, err := c.AnalyzeBatch(ctx, executionID, batch, narration)
		if err != nil {
			return results, err
		}
		results = append(results, result)
		if progress != nil {
			progress(i+1, len(batches))
		}
	}
	return results, nil
}
