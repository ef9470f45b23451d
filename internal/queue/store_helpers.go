package queue

import (
	"database/sql"
	"errors"
	"path/filepath"
	"strings"
	"time"
)

const jobColumns = "id, execution_id, source_path, title, status, duration_seconds, scenes_json, candidates_json, groups_json, transcript_ref, analysis_refs_json, result_ref, error_message, progress_stage, progress_percent, progress_message, items_processed, total_items, paused, cancel_requested, job_log_path, last_heartbeat, created_at, updated_at"

func scanJob(scanner interface{ Scan(dest ...any) error }) (*Job, error) {
	var (
		id               int64
		executionID      string
		sourcePath       string
		title            sql.NullString
		statusStr        string
		duration         sql.NullFloat64
		scenes           sql.NullString
		candidates       sql.NullString
		groups           sql.NullString
		transcriptRef    sql.NullString
		analysisRefs     sql.NullString
		resultRef        sql.NullString
		errorMessage     sql.NullString
		progressStage    sql.NullString
		progressPercent  sql.NullFloat64
		progressMessage  sql.NullString
		itemsProcessed   sql.NullInt64
		totalItems       sql.NullInt64
		paused           sql.NullInt64
		cancelRequested  sql.NullInt64
		jobLogPath       sql.NullString
		lastHeartbeatRaw sql.NullString
		createdRaw       sql.NullString
		updatedRaw       sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&executionID,
		&sourcePath,
		&title,
		&statusStr,
		&duration,
		&scenes,
		&candidates,
		&groups,
		&transcriptRef,
		&analysisRefs,
		&resultRef,
		&errorMessage,
		&progressStage,
		&progressPercent,
		&progressMessage,
		&itemsProcessed,
		&totalItems,
		&paused,
		&cancelRequested,
		&jobLogPath,
		&lastHeartbeatRaw,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	job := &Job{
		ID:               id,
		ExecutionID:      executionID,
		SourcePath:       sourcePath,
		Title:            title.String,
		Status:           Status(statusStr),
		DurationSeconds:  duration.Float64,
		ScenesJSON:       scenes.String,
		CandidatesJSON:   candidates.String,
		GroupsJSON:       groups.String,
		TranscriptRef:    transcriptRef.String,
		AnalysisRefsJSON: analysisRefs.String,
		ResultRef:        resultRef.String,
		ErrorMessage:     errorMessage.String,
		ProgressStage:    progressStage.String,
		ProgressPercent:  progressPercent.Float64,
		ProgressMessage:  progressMessage.String,
		ItemsProcessed:   itemsProcessed.Int64,
		TotalItems:       totalItems.Int64,
		Paused:           paused.Int64 != 0,
		CancelRequested:  cancelRequested.Int64 != 0,
		JobLogPath:       jobLogPath.String,
	}

	if created, err := parseTimeString(createdRaw.String); err == nil {
		job.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		job.UpdatedAt = updated
	}
	if lastHeartbeatRaw.Valid {
		if heartbeat, err := parseTimeString(lastHeartbeatRaw.String); err == nil {
			job.LastHeartbeat = &heartbeat
		}
	}
	return job, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	return value.UTC().Format(time.RFC3339Nano)
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}

func inferTitleFromPath(path string) string {
	base := filepath.Base(path)
	if ext := filepath.Ext(base); ext != "" {
		base = strings.TrimSuffix(base, ext)
	}
	base = strings.ReplaceAll(base, "_", " ")
	base = strings.ReplaceAll(base, ".", " ")
	return strings.TrimSpace(base)
}
