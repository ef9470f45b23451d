package persist

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"sift/internal/analysis"
	"sift/internal/blobstore"
	"sift/internal/config"
	"sift/internal/ledger"
	"sift/internal/logging"
	"sift/internal/queue"
	"sift/internal/services"
	"sift/internal/stage"
)

// Persister publishes the assembled document to its durable location and
// finishes the job. The downstream knowledge layer consumes the final
// reference; this stage only hands the document over.
type Persister struct {
	cfg    *config.Config
	store  *queue.Store
	blobs  blobstore.Store
	ledger *ledger.Store
	logger *slog.Logger
}

// NewPersister constructs the persist stage handler.
func NewPersister(cfg *config.Config, store *queue.Store, blobs blobstore.Store, led *ledger.Store, logger *slog.Logger) *Persister {
	if logger != nil {
		logger = logger.With(logging.String("component", "persist"))
	}
	return &Persister{cfg: cfg, store: store, blobs: blobs, ledger: led, logger: logger}
}

// SetLogger installs the request-scoped logger for the current run.
func (p *Persister) SetLogger(logger *slog.Logger) {
	if logger != nil {
		p.logger = logger
	}
}

func (p *Persister) Prepare(_ context.Context, job *queue.Job) error {
	job.InitProgress("Persisting", "Publishing assembled document")
	if job.ResultRef == "" {
		return services.Wrap(services.ErrValidation, "persist", "validate inputs",
			"Job has no assembled document; assembly must run first", nil)
	}
	return nil
}

func (p *Persister) Execute(ctx context.Context, job *queue.Job) error {
	logger := logging.WithContext(ctx, p.logger)

	ref, err := blobstore.Parse(job.ResultRef)
	if err != nil {
		return services.Wrap(services.ErrValidation, "persist", "parse result ref", "Assembled document reference unreadable", err)
	}
	payload, err := p.blobs.Get(ctx, ref)
	if err != nil {
		return services.Wrap(services.ErrTransient, "persist", "load document", "Failed to load assembled document", err)
	}
	var document analysis.Document
	if err := json.Unmarshal(payload, &document); err != nil {
		return services.Wrap(services.ErrValidation, "persist", "decode document", "Assembled document payload unreadable", err)
	}

	// Final documents live outside the per-execution prefix so they survive
	// working artifact cleanup and are addressable by job alone.
	finalRef, err := p.blobs.Put(ctx, fmt.Sprintf("results/job_%d.json", job.ID), payload)
	if err != nil {
		return services.Wrap(services.ErrTransient, "persist", "publish document", "Failed to publish final document", err)
	}
	job.ResultRef = finalRef.String()

	if p.ledger != nil {
		if pruned, err := p.ledger.PruneExpired(ctx); err != nil {
			logger.Warn("ledger prune failed", logging.Error(err))
		} else if pruned > 0 {
			logger.Debug("pruned expired ledger records", logging.Int64("pruned", pruned))
		}
	}

	job.Status = queue.StatusCompleted
	job.SetProgressComplete("Completed",
		fmt.Sprintf("Published %d annotations from %.1fs of media", document.FrameCount, document.DurationSeconds))

	logger.Info("persist completed",
		logging.String("result_ref", job.ResultRef),
		logging.Int("annotations", document.FrameCount),
	)
	return nil
}

// HealthCheck verifies the blob backend is writable configuration-wise.
func (p *Persister) HealthCheck(_ context.Context) stage.Health {
	const name = "persist"
	if p.cfg == nil {
		return stage.Unhealthy(name, "configuration unavailable")
	}
	if p.blobs == nil {
		return stage.Unhealthy(name, "blob store unavailable")
	}
	return stage.Healthy(name)
}
