package queue

import (
	"strings"
	"time"
)

// Status represents the lifecycle phase of an ingestion job.
type Status string

const (
	StatusPending         Status = "pending"
	StatusIngesting       Status = "ingesting"
	StatusIngested        Status = "ingested"
	StatusDetectingScenes Status = "detecting_scenes"
	StatusScenesDetected  Status = "scenes_detected"
	StatusFilteringFrames Status = "filtering_frames"
	StatusFramesFiltered  Status = "frames_filtered"
	StatusExtracting      Status = "extracting"
	StatusExtracted       Status = "extracted"
	StatusAssembling      Status = "assembling"
	StatusAssembled       Status = "assembled"
	StatusPersisting      Status = "persisting"
	StatusCompleted       Status = "completed"
	StatusFailed          Status = "failed"
	StatusCancelled       Status = "cancelled"
)

// UserCancelReason is the error message recorded when a user cancels a job.
const UserCancelReason = "Cancelled by user"

// DaemonStopReason is the error message set when jobs are failed due to daemon shutdown.
const DaemonStopReason = "Daemon stopped"

var allStatuses = []Status{
	StatusPending,
	StatusIngesting,
	StatusIngested,
	StatusDetectingScenes,
	StatusScenesDetected,
	StatusFilteringFrames,
	StatusFramesFiltered,
	StatusExtracting,
	StatusExtracted,
	StatusAssembling,
	StatusAssembled,
	StatusPersisting,
	StatusCompleted,
	StatusFailed,
	StatusCancelled,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

var processingStatuses = map[Status]struct{}{
	StatusIngesting:       {},
	StatusDetectingScenes: {},
	StatusFilteringFrames: {},
	StatusExtracting:      {},
	StatusAssembling:      {},
	StatusPersisting:      {},
}

type statusTransition struct {
	from Status
	to   Status
}

// stageRollbackTransitions map each in-flight phase back to the phase boundary
// it entered from. A reclaimed or interrupted job restarts its current stage,
// never the whole pipeline; completed stages stay completed.
var stageRollbackTransitions = []statusTransition{
	{from: StatusIngesting, to: StatusPending},
	{from: StatusDetectingScenes, to: StatusIngested},
	{from: StatusFilteringFrames, to: StatusScenesDetected},
	{from: StatusExtracting, to: StatusFramesFiltered},
	{from: StatusAssembling, to: StatusExtracted},
	{from: StatusPersisting, to: StatusAssembled},
}

// RollbackStatus maps an in-flight status to the stage boundary it entered
// from. Reports false for statuses that are not in-flight.
func RollbackStatus(status Status) (Status, bool) {
	for _, t := range stageRollbackTransitions {
		if t.from == status {
			return t.to, true
		}
	}
	return status, false
}

// TerminalStatuses are states the workflow never leaves on its own.
var TerminalStatuses = []Status{StatusCompleted, StatusFailed, StatusCancelled}

// HealthSummary describes aggregated queue counts per key lifecycle states.
type HealthSummary struct {
	Total      int
	Pending    int
	Processing int
	Failed     int
	Completed  int
	Cancelled  int
}

// DatabaseHealth captures diagnostic information about the queue database.
type DatabaseHealth struct {
	DBPath           string
	DatabaseExists   bool
	DatabaseReadable bool
	TableExists      bool
	IntegrityCheck   bool
	TotalJobs        int
	Error            string
}

// Job represents one video ingestion run persisted in SQLite. Large artifacts
// (frames, transcripts, analysis batches) live in the blob store; the row
// carries only references and the JSON-encoded stage outputs small enough to
// inline.
type Job struct {
	ID               int64
	ExecutionID      string
	SourcePath       string
	Title            string
	Status           Status
	DurationSeconds  float64
	ScenesJSON       string
	CandidatesJSON   string
	GroupsJSON       string
	TranscriptRef    string
	AnalysisRefsJSON string
	ResultRef        string
	ErrorMessage     string
	ProgressStage    string
	ProgressPercent  float64
	ProgressMessage  string
	ItemsProcessed   int64
	TotalItems       int64
	Paused           bool
	CancelRequested  bool
	JobLogPath       string
	LastHeartbeat    *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// IsProcessing returns true when the status reflects an in-flight stage.
func (j Job) IsProcessing() bool {
	return IsProcessingStatus(j.Status)
}

// IsProcessingStatus reports whether a status reflects an in-flight stage.
func IsProcessingStatus(status Status) bool {
	_, ok := processingStatuses[status]
	return ok
}

// IsTerminal reports whether the job reached a final state.
func (j Job) IsTerminal() bool {
	return IsTerminalStatus(j.Status)
}

// IsTerminalStatus reports whether a status is final.
func IsTerminalStatus(status Status) bool {
	switch status {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// InitProgress resets progress fields for a new stage. If ProgressStage is
// currently empty it is set to the provided stage value; otherwise the
// existing stage is preserved to support resume scenarios.
func (j *Job) InitProgress(stage, message string) {
	if j.ProgressStage == "" {
		j.ProgressStage = stage
	}
	j.ProgressMessage = message
	j.ProgressPercent = 0
	j.ErrorMessage = ""
}

// SetProgress updates all three progress fields atomically.
func (j *Job) SetProgress(stage, message string, percent float64) {
	j.ProgressStage = stage
	j.ProgressMessage = message
	j.ProgressPercent = percent
}

// SetProgressComplete sets progress to 100% with the given stage and message.
func (j *Job) SetProgressComplete(stage, message string) {
	j.SetProgress(stage, message, 100)
}

// SetFailed marks the job as failed with the given error message.
func (j *Job) SetFailed(message string) {
	j.Status = StatusFailed
	j.ErrorMessage = message
	j.ProgressPercent = 0
	j.ProgressMessage = message
	j.ProgressStage = "Failed"
	j.LastHeartbeat = nil
}

// SetCancelled marks the job as cancelled and clears in-flight state.
func (j *Job) SetCancelled(reason string) {
	j.Status = StatusCancelled
	if reason == "" {
		reason = UserCancelReason
	}
	j.ErrorMessage = reason
	j.ProgressMessage = reason
	j.ProgressStage = "Cancelled"
	j.CancelRequested = false
	j.Paused = false
	j.LastHeartbeat = nil
}

// StageKey returns the normalized stage identifier used in API/CLI presentation.
func (s Status) StageKey() string {
	switch s {
	case "":
		return ""
	case StatusPending:
		return "queued"
	case StatusCompleted:
		return "final"
	default:
		if _, ok := statusSet[s]; ok {
			return string(s)
		}
		return ""
	}
}
