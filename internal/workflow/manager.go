package workflow

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"sift/internal/config"
	"sift/internal/queue"
	"sift/internal/stage"
)

// Manager coordinates queue processing using registered stage handlers. One
// manager runs the whole phase sequence; multiple daemon processes can share
// the same queue because every claim goes through the store and stale claims
// are reclaimed by heartbeat expiry.
type Manager struct {
	cfg          *config.Config
	store        *queue.Store
	logger       *slog.Logger
	pollInterval time.Duration

	heartbeat *HeartbeatMonitor

	stages             []pipelineStage
	stageByStart       map[queue.Status]pipelineStage
	startStatuses      []queue.Status
	processingStatuses []queue.Status

	mu      sync.RWMutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	lastErr error
	lastJob *queue.Job
}

// StageSet bundles the concrete handlers the manager orchestrates, in phase
// order.
type StageSet struct {
	Ingester      stage.Handler
	SceneDetector stage.Handler
	FrameSelector stage.Handler
	Extractor     stage.Handler
	Assembler     stage.Handler
	Persister     stage.Handler
}

type pipelineStage struct {
	name             string
	handler          stage.Handler
	startStatus      queue.Status
	processingStatus queue.Status
	doneStatus       queue.Status
}

// NewManager constructs a workflow manager.
func NewManager(cfg *config.Config, store *queue.Store, logger *slog.Logger) *Manager {
	return &Manager{
		cfg:          cfg,
		store:        store,
		logger:       logger,
		pollInterval: time.Duration(cfg.Workflow.QueuePollInterval) * time.Second,
		heartbeat: NewHeartbeatMonitor(
			store,
			logger,
			time.Duration(cfg.Workflow.HeartbeatInterval)*time.Second,
			time.Duration(cfg.Workflow.HeartbeatTimeout)*time.Second,
		),
	}
}

// ConfigureStages registers the concrete stage handlers the workflow will run.
func (m *Manager) ConfigureStages(set StageSet) {
	definitions := []struct {
		name       string
		handler    stage.Handler
		start      queue.Status
		processing queue.Status
		done       queue.Status
	}{
		{"ingest", set.Ingester, queue.StatusPending, queue.StatusIngesting, queue.StatusIngested},
		{"scenedetect", set.SceneDetector, queue.StatusIngested, queue.StatusDetectingScenes, queue.StatusScenesDetected},
		{"frameselect", set.FrameSelector, queue.StatusScenesDetected, queue.StatusFilteringFrames, queue.StatusFramesFiltered},
		{"extract", set.Extractor, queue.StatusFramesFiltered, queue.StatusExtracting, queue.StatusExtracted},
		{"assemble", set.Assembler, queue.StatusExtracted, queue.StatusAssembling, queue.StatusAssembled},
		{"persist", set.Persister, queue.StatusAssembled, queue.StatusPersisting, queue.StatusCompleted},
	}

	stages := make([]pipelineStage, 0, len(definitions))
	byStart := make(map[queue.Status]pipelineStage, len(definitions))
	starts := make([]queue.Status, 0, len(definitions))
	processing := make([]queue.Status, 0, len(definitions))
	for _, def := range definitions {
		if def.handler == nil {
			continue
		}
		stg := pipelineStage{
			name:             def.name,
			handler:          def.handler,
			startStatus:      def.start,
			processingStatus: def.processing,
			doneStatus:       def.done,
		}
		stages = append(stages, stg)
		byStart[stg.startStatus] = stg
		starts = append(starts, stg.startStatus)
		processing = append(processing, stg.processingStatus)
	}

	m.mu.Lock()
	m.stages = stages
	m.stageByStart = byStart
	m.startStatuses = starts
	m.processingStatuses = processing
	m.mu.Unlock()
}
