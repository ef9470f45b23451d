package scenedetect

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os/exec"

	"sift/internal/config"
	"sift/internal/logging"
	"sift/internal/queue"
	"sift/internal/scenes"
	"sift/internal/services"
	"sift/internal/stage"
)

// Handler runs sparse scene-cut detection over the source media and records
// the cut timestamps on the job for the frame selection stage.
type Handler struct {
	cfg      *config.Config
	store    *queue.Store
	logger   *slog.Logger
	detector *scenes.Detector
}

// NewHandler constructs the scene detection stage handler.
func NewHandler(cfg *config.Config, store *queue.Store, logger *slog.Logger) *Handler {
	if logger != nil {
		logger = logger.With(logging.String("component", "scenedetect"))
	}
	return &Handler{
		cfg:      cfg,
		store:    store,
		logger:   logger,
		detector: scenes.NewDetector(cfg.FFmpegBinary(), cfg.Pipeline.SceneScoreThreshold),
	}
}

// WithDetector overrides the detector (used in tests).
func (h *Handler) WithDetector(detector *scenes.Detector) *Handler {
	h.detector = detector
	return h
}

// SetLogger installs the request-scoped logger for the current run.
func (h *Handler) SetLogger(logger *slog.Logger) {
	if logger != nil {
		h.logger = logger
	}
}

func (h *Handler) Prepare(_ context.Context, job *queue.Job) error {
	job.InitProgress("Detecting scenes", "Scanning for scene cuts")
	if job.DurationSeconds <= 0 {
		return services.Wrap(services.ErrValidation, "scenedetect", "validate inputs",
			"Job has no probed duration; ingest must run first", nil)
	}
	return nil
}

func (h *Handler) Execute(ctx context.Context, job *queue.Job) error {
	logger := logging.WithContext(ctx, h.logger)

	cuts, err := h.detector.Detect(ctx, job.SourcePath)
	if err != nil {
		return services.Wrap(services.ErrExternalTool, "scenedetect", "detect cuts",
			"ffmpeg scene detection failed", err)
	}

	encoded, err := json.Marshal(cuts)
	if err != nil {
		return services.Wrap(services.ErrTransient, "scenedetect", "encode cuts",
			"Failed to encode scene timestamps", err)
	}
	job.ScenesJSON = string(encoded)
	job.SetProgressComplete("Detecting scenes", fmt.Sprintf("Found %d scene cuts", len(cuts)))

	logger.Info("scene detection completed",
		logging.Int("cuts", len(cuts)),
		logging.Float64("duration_seconds", job.DurationSeconds),
	)
	return nil
}

// HealthCheck verifies ffmpeg is reachable for the detection filter graph.
func (h *Handler) HealthCheck(_ context.Context) stage.Health {
	const name = "scenedetect"
	if h.cfg == nil {
		return stage.Unhealthy(name, "configuration unavailable")
	}
	if _, err := exec.LookPath(h.cfg.FFmpegBinary()); err != nil {
		return stage.Unhealthy(name, fmt.Sprintf("%s not found in PATH", h.cfg.FFmpegBinary()))
	}
	return stage.Healthy(name)
}

// DecodeCuts parses the persisted scene timestamps from a job.
func DecodeCuts(scenesJSON string) ([]float64, error) {
	if scenesJSON == "" {
		return nil, nil
	}
	var cuts []float64
	if err := json.Unmarshal([]byte(scenesJSON), &cuts); err != nil {
		return nil, fmt.Errorf("decode scene cuts: %w", err)
	}
	return cuts, nil
}
