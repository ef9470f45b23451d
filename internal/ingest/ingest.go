package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"sift/internal/config"
	"sift/internal/logging"
	"sift/internal/media"
	"sift/internal/queue"
	"sift/internal/services"
	"sift/internal/stage"
)

// Ingester validates the submitted media file and probes its metadata.
type Ingester struct {
	cfg       *config.Config
	store     *queue.Store
	logger    *slog.Logger
	newSource func(path string) media.Source
}

// NewIngester constructs the ingest stage handler.
func NewIngester(cfg *config.Config, store *queue.Store, logger *slog.Logger) *Ingester {
	if logger != nil {
		logger = logger.With(logging.String("component", "ingest"))
	}
	return &Ingester{
		cfg:    cfg,
		store:  store,
		logger: logger,
		newSource: func(path string) media.Source {
			return media.NewFFmpegSource(path, cfg.FFmpegBinary(), cfg.FFprobeBinary())
		},
	}
}

// WithSourceFactory overrides media source construction (used in tests).
func (i *Ingester) WithSourceFactory(factory func(path string) media.Source) *Ingester {
	i.newSource = factory
	return i
}

// SetLogger installs the request-scoped logger for the current run.
func (i *Ingester) SetLogger(logger *slog.Logger) {
	if logger != nil {
		i.logger = logger
	}
}

func (i *Ingester) Prepare(ctx context.Context, job *queue.Job) error {
	logger := logging.WithContext(ctx, i.logger)
	job.InitProgress("Ingesting", "Validating source media")

	source := strings.TrimSpace(job.SourcePath)
	if source == "" {
		return services.Wrap(services.ErrValidation, "ingest", "validate inputs", "Job has no source path", nil)
	}
	info, err := os.Stat(source)
	if err != nil {
		return services.Wrap(services.ErrValidation, "ingest", "validate inputs",
			fmt.Sprintf("Source media not readable: %s", source), err)
	}
	if info.IsDir() {
		return services.Wrap(services.ErrValidation, "ingest", "validate inputs",
			fmt.Sprintf("Source path is a directory: %s", source), nil)
	}
	logger.Info("source validated",
		logging.String("source_file", source),
		logging.Int64("size_bytes", info.Size()),
	)
	return nil
}

func (i *Ingester) Execute(ctx context.Context, job *queue.Job) error {
	logger := logging.WithContext(ctx, i.logger)

	source := i.newSource(job.SourcePath)
	duration, err := source.Duration(ctx)
	if err != nil {
		return services.Wrap(services.ErrExternalTool, "ingest", "probe duration",
			"ffprobe could not read the media container", err)
	}
	if duration <= 0 {
		return services.Wrap(services.ErrValidation, "ingest", "probe duration",
			fmt.Sprintf("Media reports non-positive duration %.3fs", duration), nil)
	}

	job.DurationSeconds = duration
	if strings.TrimSpace(job.Title) == "" {
		base := filepath.Base(job.SourcePath)
		job.Title = strings.TrimSuffix(base, filepath.Ext(base))
	}
	job.SetProgressComplete("Ingesting", fmt.Sprintf("Probed %.1fs of media", duration))

	logger.Info("ingest completed",
		logging.String("title", job.Title),
		logging.Float64("duration_seconds", duration),
	)
	return nil
}

// HealthCheck verifies the probing toolchain is reachable.
func (i *Ingester) HealthCheck(_ context.Context) stage.Health {
	const name = "ingest"
	if i.cfg == nil {
		return stage.Unhealthy(name, "configuration unavailable")
	}
	if _, err := exec.LookPath(i.cfg.FFprobeBinary()); err != nil {
		return stage.Unhealthy(name, fmt.Sprintf("%s not found in PATH", i.cfg.FFprobeBinary()))
	}
	return stage.Healthy(name)
}
