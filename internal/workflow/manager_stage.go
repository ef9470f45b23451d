package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/google/uuid"

	"sift/internal/logging"
	"sift/internal/queue"
	"sift/internal/retry"
	"sift/internal/services"
	"sift/internal/stage"
)

func (m *Manager) processJob(ctx context.Context, logger *slog.Logger, job *queue.Job) error {
	m.mu.RLock()
	stg, ok := m.stageByStart[job.Status]
	m.mu.RUnlock()
	if !ok {
		logger.Warn("no stage configured for status", logging.String("status", string(job.Status)))
		m.waitForJobOrShutdown(ctx)
		return nil
	}

	// Control flags may have changed since the claim query.
	state, err := m.store.Control(ctx, job.ID)
	if err != nil {
		m.setLastError(err)
		return err
	}
	if state.CancelRequested {
		return m.resolveCancel(ctx, logger, job)
	}
	if state.Paused {
		return nil
	}

	requestID := uuid.NewString()
	stageCtx := logging.WithStage(ctx, stg.name)
	stageLogger := logging.WithContext(stageCtx, logger).With(
		logging.String("stage", stg.name),
		logging.Int64("job_id", job.ID),
		logging.String("request_id", requestID),
	)
	if aware, ok := stg.handler.(stage.LoggerAware); ok {
		aware.SetLogger(stageLogger)
	}

	if err := m.transitionToProcessing(stageCtx, stg, job); err != nil {
		stageLogger.Error("failed to transition job to processing", logging.Error(err))
		m.setLastError(err)
		return err
	}

	return m.executeStage(stageCtx, stageLogger, stg, job)
}

func (m *Manager) executeStage(ctx context.Context, stageLogger *slog.Logger, stg pipelineStage, job *queue.Job) error {
	stageStart := time.Now()
	stageLogger.Info("stage started",
		logging.String("processing_status", string(stg.processingStatus)),
		logging.String("source_file", strings.TrimSpace(job.SourcePath)),
	)

	if err := stg.handler.Prepare(ctx, job); err != nil {
		return m.resolveStageError(ctx, stageLogger, stg, job, err)
	}
	if err := m.store.Update(ctx, job); err != nil {
		wrapped := fmt.Errorf("persist stage preparation: %w", err)
		stageLogger.Error("failed to persist stage preparation", logging.Error(wrapped))
		m.setLastError(wrapped)
		return wrapped
	}

	execErr := m.executeWithRetry(ctx, stg, job)
	if execErr != nil {
		return m.resolveStageError(ctx, stageLogger, stg, job, execErr)
	}

	if job.Status == stg.processingStatus || job.Status == "" {
		job.Status = stg.doneStatus
	}
	job.LastHeartbeat = nil
	if job.Status == queue.StatusCompleted && job.ProgressPercent < 100 {
		job.ProgressPercent = 100
	}
	if err := m.store.Update(ctx, job); err != nil {
		wrapped := fmt.Errorf("persist stage result: %w", err)
		stageLogger.Error("failed to persist stage result", logging.Error(wrapped))
		m.setLastError(wrapped)
		return wrapped
	}

	stageLogger.Info("stage completed",
		logging.String("next_status", string(job.Status)),
		logging.Duration("stage_duration", time.Since(stageStart)),
	)
	m.setLastJob(job)
	return nil
}

// executeWithRetry runs the stage body under the generic retry envelope and a
// heartbeat loop that marks the claim live. The stage timeout bounds each
// attempt separately, so a timed-out attempt is retried under the backoff
// policy rather than failing the job outright.
func (m *Manager) executeWithRetry(ctx context.Context, stg pipelineStage, job *queue.Job) error {
	policy := retry.Exponential(
		m.cfg.Workflow.RetryMaxAttempts,
		time.Duration(m.cfg.Workflow.RetryInitialDelay)*time.Second,
		time.Duration(m.cfg.Workflow.RetryMaxDelay)*time.Second,
		stageRetryable,
	)
	return retry.Do(ctx, policy, func(attemptCtx context.Context) error {
		if timeout := m.cfg.Workflow.StageTimeout; timeout > 0 {
			var cancel context.CancelFunc
			attemptCtx, cancel = context.WithTimeout(attemptCtx, time.Duration(timeout)*time.Second)
			defer cancel()
		}
		err := m.executeWithHeartbeat(attemptCtx, stg.handler, job)
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			err = services.Wrap(services.ErrTimeout, stg.name, "execute",
				fmt.Sprintf("Stage attempt exceeded its %ds timeout", m.cfg.Workflow.StageTimeout), err)
		}
		return err
	})
}

func (m *Manager) executeWithHeartbeat(ctx context.Context, handler stage.Handler, job *queue.Job) error {
	hbCtx, hbCancel := context.WithCancel(ctx)
	var hbWG sync.WaitGroup
	hbWG.Add(1)
	go m.heartbeat.StartLoop(hbCtx, &hbWG, job.ID)

	execErr := handler.Execute(ctx, job)
	hbCancel()
	hbWG.Wait()
	return execErr
}

// stageRetryable keeps pause and cancel requests out of the retry envelope;
// they are control flow, not failures.
func stageRetryable(err error) bool {
	if errors.Is(err, stage.ErrPauseRequested) || errors.Is(err, stage.ErrCancelRequested) {
		return false
	}
	return services.IsRetryable(err)
}

// resolveStageError translates a stage outcome into the job's next state:
// cancel and pause sentinels resolve to their control transitions, shutdown
// leaves the claim for reclamation, anything else fails the job.
func (m *Manager) resolveStageError(ctx context.Context, stageLogger *slog.Logger, stg pipelineStage, job *queue.Job, execErr error) error {
	switch {
	case errors.Is(execErr, stage.ErrCancelRequested):
		return m.resolveCancel(ctx, stageLogger, job)
	case errors.Is(execErr, stage.ErrPauseRequested):
		return m.resolvePause(ctx, stageLogger, job)
	case errors.Is(execErr, context.Canceled) && ctx.Err() != nil:
		stageLogger.Debug("stage interrupted by shutdown")
		return execErr
	}
	m.handleStageFailure(ctx, stg.name, job, execErr)
	m.setLastError(execErr)
	return execErr
}

func (m *Manager) resolveCancel(ctx context.Context, logger *slog.Logger, job *queue.Job) error {
	job.SetCancelled(queue.UserCancelReason)
	if err := m.store.Update(ctx, job); err != nil {
		logger.Error("failed to persist cancellation", logging.Error(err))
		m.setLastError(err)
		return err
	}
	logger.Info("job cancelled", logging.Int64("job_id", job.ID))
	m.setLastJob(job)
	return nil
}

// resolvePause rolls the job back to the boundary of its current stage and
// parks it; the claim query skips paused jobs until resume. The ledger keeps
// completed batch work, so the re-run after resume replays instead of
// recomputing.
func (m *Manager) resolvePause(ctx context.Context, logger *slog.Logger, job *queue.Job) error {
	if rolledBack, ok := queue.RollbackStatus(job.Status); ok {
		job.Status = rolledBack
	}
	job.Paused = true
	job.LastHeartbeat = nil
	job.ProgressMessage = "Paused"
	if err := m.store.Update(ctx, job); err != nil {
		logger.Error("failed to persist pause", logging.Error(err))
		m.setLastError(err)
		return err
	}
	logger.Info("job paused at stage boundary",
		logging.Int64("job_id", job.ID),
		logging.String("status", string(job.Status)),
	)
	m.setLastJob(job)
	return nil
}

func (m *Manager) transitionToProcessing(ctx context.Context, stg pipelineStage, job *queue.Job) error {
	now := time.Now().UTC()
	job.Status = stg.processingStatus
	if job.ProgressStage == "" {
		job.ProgressStage = deriveStageLabel(stg.processingStatus)
	}
	if job.ProgressMessage == "" {
		job.ProgressMessage = fmt.Sprintf("%s started", deriveStageLabel(stg.processingStatus))
	}
	job.ProgressPercent = 0
	job.ErrorMessage = ""
	job.LastHeartbeat = &now
	if err := m.store.Update(ctx, job); err != nil {
		return fmt.Errorf("persist processing transition: %w", err)
	}
	m.setLastJob(job)
	return nil
}

func deriveStageLabel(status queue.Status) string {
	if status == "" {
		return ""
	}
	parts := strings.Fields(strings.ReplaceAll(string(status), "_", " "))
	for i, part := range parts {
		runes := []rune(strings.ToLower(part))
		runes[0] = unicode.ToUpper(runes[0])
		parts[i] = string(runes)
	}
	return strings.Join(parts, " ")
}
