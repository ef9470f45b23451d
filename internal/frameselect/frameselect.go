package frameselect

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os/exec"
	"sort"

	"sift/internal/analysis"
	"sift/internal/blobstore"
	"sift/internal/config"
	"sift/internal/frames"
	"sift/internal/logging"
	"sift/internal/media"
	"sift/internal/queue"
	"sift/internal/scenedetect"
	"sift/internal/services"
	"sift/internal/stage"
)

// controlProbeStride bounds how many frame extractions run between pause and
// cancel checks inside the upload loop.
const controlProbeStride = 100

// Selection is the frame-selection artifact persisted on the job: the
// duplicate groups from Pass 2 plus the uploaded representative references
// the analysis stage consumes.
type Selection struct {
	Groups []frames.Group   `json:"groups"`
	Frames []analysis.Frame `json:"frames"`
}

// DecodeSelection parses the persisted selection from a job.
func DecodeSelection(groupsJSON string) (Selection, error) {
	var selection Selection
	if groupsJSON == "" {
		return selection, fmt.Errorf("job carries no frame selection")
	}
	if err := json.Unmarshal([]byte(groupsJSON), &selection); err != nil {
		return selection, fmt.Errorf("decode frame selection: %w", err)
	}
	return selection, nil
}

// Selector runs both filtering passes and uploads the surviving
// representative frames through the claim-check store.
type Selector struct {
	cfg       *config.Config
	store     *queue.Store
	blobs     blobstore.Store
	logger    *slog.Logger
	newSource func(path string) media.Source
}

// NewSelector constructs the frame selection stage handler.
func NewSelector(cfg *config.Config, store *queue.Store, blobs blobstore.Store, logger *slog.Logger) *Selector {
	if logger != nil {
		logger = logger.With(logging.String("component", "frameselect"))
	}
	return &Selector{
		cfg:    cfg,
		store:  store,
		blobs:  blobs,
		logger: logger,
		newSource: func(path string) media.Source {
			return media.NewFFmpegSource(path, cfg.FFmpegBinary(), cfg.FFprobeBinary())
		},
	}
}

// WithSourceFactory overrides media source construction (used in tests).
func (s *Selector) WithSourceFactory(factory func(path string) media.Source) *Selector {
	s.newSource = factory
	return s
}

// SetLogger installs the request-scoped logger for the current run.
func (s *Selector) SetLogger(logger *slog.Logger) {
	if logger != nil {
		s.logger = logger
	}
}

func (s *Selector) Prepare(_ context.Context, job *queue.Job) error {
	job.InitProgress("Filtering frames", "Scanning for visual change")
	if job.DurationSeconds <= 0 {
		return services.Wrap(services.ErrValidation, "frameselect", "validate inputs",
			"Job has no probed duration; ingest must run first", nil)
	}
	return nil
}

func (s *Selector) Execute(ctx context.Context, job *queue.Job) error {
	logger := logging.WithContext(ctx, s.logger)

	cuts, err := scenedetect.DecodeCuts(job.ScenesJSON)
	if err != nil {
		return services.Wrap(services.ErrValidation, "frameselect", "decode scenes", "Scene stage output unreadable", err)
	}

	source := s.newSource(job.SourcePath)
	proxy := media.Resolution{Width: s.cfg.Pipeline.ProxyWidth, Height: s.cfg.Pipeline.ProxyHeight}

	candidates, err := frames.FilterMotion(ctx, source, job.DurationSeconds, cuts, frames.MotionConfig{
		SampleInterval:      s.cfg.Pipeline.SampleIntervalSeconds,
		Proxy:               proxy,
		DiffThresholdPct:    s.cfg.Pipeline.DiffThresholdPct,
		PixelDeltaThreshold: s.cfg.Pipeline.PixelDeltaThreshold,
		Cooldown:            s.cfg.Pipeline.PromotionCooldown,
	}, logger)
	if err != nil {
		return services.Wrap(services.ErrTransient, "frameselect", "motion pass", "Coarse motion pass aborted", err)
	}

	encodedCandidates, err := json.Marshal(candidates)
	if err != nil {
		return services.Wrap(services.ErrTransient, "frameselect", "encode candidates", "Failed to encode candidates", err)
	}
	job.CandidatesJSON = string(encodedCandidates)

	timestamps := make([]float64, 0, len(candidates))
	for _, candidate := range candidates {
		timestamps = append(timestamps, candidate.Timestamp)
	}
	// Coverage fallback: an empty or sparse Pass 1 result degrades to at
	// least one frame per MinCoverageSeconds instead of failing.
	covered := frames.EnsureCoverage(timestamps, job.DurationSeconds, s.cfg.Pipeline.MinCoverageSeconds)
	logger.Info("motion pass completed",
		logging.Int("promoted", len(candidates)),
		logging.Int("after_coverage", len(covered)),
		logging.Int("scene_cuts", len(cuts)),
	)

	s.updateProgress(ctx, job, fmt.Sprintf("Deduplicating %d candidates", len(covered)), 40)
	groups, _, err := frames.Deduplicate(ctx, source, covered, frames.DedupeConfig{
		SimilarityThreshold: s.cfg.Pipeline.SimilarityThreshold,
		Proxy:               proxy,
	}, logger)
	if err != nil {
		return services.Wrap(services.ErrTransient, "frameselect", "similarity pass", "Similarity pass aborted", err)
	}

	s.updateProgress(ctx, job, fmt.Sprintf("Uploading %d representative frames", len(groups)), 70)
	selected, err := s.uploadRepresentatives(ctx, job, source, groups, logger)
	if err != nil {
		return err
	}

	selection := Selection{Groups: groups, Frames: selected}
	encodedSelection, err := json.Marshal(selection)
	if err != nil {
		return services.Wrap(services.ErrTransient, "frameselect", "encode selection", "Failed to encode frame selection", err)
	}
	job.GroupsJSON = string(encodedSelection)
	job.SetProgressComplete("Filtering frames",
		fmt.Sprintf("Selected %d of %d candidates", len(selected), len(covered)))

	logger.Info("frame selection completed",
		logging.Int("groups", len(groups)),
		logging.Int("uploaded", len(selected)),
	)
	return nil
}

// uploadRepresentatives decodes each group representative at source resolution
// and stores the JPEGs through the claim-check store. A representative that
// fails to decode is skipped with a warning; its group simply goes
// unannotated, matching the partial-success policy downstream.
func (s *Selector) uploadRepresentatives(ctx context.Context, job *queue.Job, source media.Source, groups []frames.Group, logger *slog.Logger) ([]analysis.Frame, error) {
	probe := stage.ControlProbe(s.store, job.ID)

	items := make([]blobstore.PutItem, 0, len(groups))
	kept := make([]float64, 0, len(groups))
	for i, group := range groups {
		if i%controlProbeStride == 0 {
			if err := probe(ctx); err != nil {
				return nil, err
			}
		}
		payload, err := source.FrameJPEG(ctx, group.Representative, media.Resolution{})
		if err != nil {
			logger.Warn("representative decode failed, skipping group",
				logging.Float64("timestamp", group.Representative),
				logging.Error(err),
			)
			continue
		}
		items = append(items, blobstore.PutItem{
			Key:     fmt.Sprintf("%s/frames/frame_%09.3f.jpg", job.ExecutionID, group.Representative),
			Payload: payload,
		})
		kept = append(kept, group.Representative)
	}

	results := blobstore.PutAll(ctx, s.blobs, items, s.cfg.Pipeline.BatchParallelism)
	selected := make([]analysis.Frame, 0, len(results))
	for i, result := range results {
		if result.Err != nil {
			return nil, services.Wrap(services.ErrTransient, "frameselect", "upload frame",
				fmt.Sprintf("Failed to store frame at %.3fs", kept[i]), result.Err)
		}
		selected = append(selected, analysis.Frame{Timestamp: kept[i], Ref: result.Ref.String()})
	}
	sort.Slice(selected, func(i, j int) bool { return selected[i].Timestamp < selected[j].Timestamp })
	return selected, nil
}

func (s *Selector) updateProgress(ctx context.Context, job *queue.Job, message string, percent float64) {
	logger := logging.WithContext(ctx, s.logger)
	copy := *job
	copy.ProgressMessage = message
	copy.ProgressPercent = percent
	if err := s.store.Update(ctx, &copy); err != nil {
		logger.Warn("failed to persist frame selection progress", logging.Error(err))
		return
	}
	*job = copy
}

// HealthCheck verifies the decode toolchain and blob backend are available.
func (s *Selector) HealthCheck(_ context.Context) stage.Health {
	const name = "frameselect"
	if s.cfg == nil {
		return stage.Unhealthy(name, "configuration unavailable")
	}
	if _, err := exec.LookPath(s.cfg.FFmpegBinary()); err != nil {
		return stage.Unhealthy(name, fmt.Sprintf("%s not found in PATH", s.cfg.FFmpegBinary()))
	}
	if s.blobs == nil {
		return stage.Unhealthy(name, "blob store unavailable")
	}
	return stage.Healthy(name)
}
