package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Job describes a queue entry in a transport-friendly format.
type Job struct {
	ID              int64       `json:"id"`
	ExecutionID     string      `json:"executionId"`
	Title           string      `json:"title"`
	SourcePath      string      `json:"sourcePath"`
	Status          string      `json:"status"`
	Stage           string      `json:"stage"`
	DurationSeconds float64     `json:"durationSeconds,omitempty"`
	Progress        JobProgress `json:"progress"`
	ErrorMessage    string      `json:"errorMessage,omitempty"`
	Paused          bool        `json:"paused"`
	ResultRef       string      `json:"resultRef,omitempty"`
	TranscriptRef   string      `json:"transcriptRef,omitempty"`
	CreatedAt       string      `json:"createdAt,omitempty"`
	UpdatedAt       string      `json:"updatedAt,omitempty"`
}

// JobProgress captures stage progress information for a job.
type JobProgress struct {
	Stage          string  `json:"stage"`
	Percent        float64 `json:"percent"`
	Message        string  `json:"message"`
	ItemsProcessed int64   `json:"itemsProcessed,omitempty"`
	TotalItems     int64   `json:"totalItems,omitempty"`
}

// WorkflowStatus summarizes workflow execution state.
type WorkflowStatus struct {
	Running     bool           `json:"running"`
	QueueStats  map[string]int `json:"queueStats"`
	LastError   string         `json:"lastError,omitempty"`
	LastJob     *Job           `json:"lastJob,omitempty"`
	StageHealth []StageHealth  `json:"stageHealth"`
}

// StageHealth mirrors readiness reporting for workflow stages.
type StageHealth struct {
	Name   string `json:"name"`
	Ready  bool   `json:"ready"`
	Detail string `json:"detail,omitempty"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running      bool           `json:"running"`
	PID          int            `json:"pid"`
	QueueDBPath  string         `json:"queueDbPath"`
	LockFilePath string         `json:"lockFilePath"`
	Workflow     WorkflowStatus `json:"workflow"`
}

// HealthResponse reports per-stage readiness for the health endpoint.
type HealthResponse struct {
	Ready  bool          `json:"ready"`
	Stages []StageHealth `json:"stages"`
}

// SubmitRequest enqueues a media file for processing.
type SubmitRequest struct {
	SourcePath string `json:"sourcePath"`
}

// JobResponse wraps a single job.
type JobResponse struct {
	Job Job `json:"job"`
}

// JobListResponse wraps a collection of jobs for API responses.
type JobListResponse struct {
	Jobs []Job `json:"jobs"`
}

// ControlResponse reports the outcome of a pause/resume/cancel request.
type ControlResponse struct {
	ID      int64  `json:"id"`
	Action  string `json:"action"`
	Applied bool   `json:"applied"`
}

// ClearResponse reports how many jobs a bulk clear removed.
type ClearResponse struct {
	Removed int64 `json:"removed"`
}

// ErrorResponse is the uniform error payload.
type ErrorResponse struct {
	Error string `json:"error"`
}
