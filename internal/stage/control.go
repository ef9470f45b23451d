package stage

import (
	"context"
	"errors"

	"sift/internal/queue"
)

// ErrCancelRequested is returned by a control probe when the job's cancel flag
// is set. The manager resolves it to the cancelled status rather than failed.
var ErrCancelRequested = errors.New("cancel requested")

// ErrPauseRequested is returned by a control probe when the job's pause flag
// is set. The manager rolls the job back to its stage boundary and parks it.
var ErrPauseRequested = errors.New("pause requested")

// ControlFunc is polled by long-running stages between units of work so pause
// and cancel latency stays bounded even mid-stage.
type ControlFunc func(context.Context) error

// ControlProbe builds a ControlFunc backed by the queue's control flags.
// Cancel wins over pause when both are set.
func ControlProbe(store *queue.Store, jobID int64) ControlFunc {
	return func(ctx context.Context) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		state, err := store.Control(ctx, jobID)
		if err != nil {
			return err
		}
		if state.CancelRequested {
			return ErrCancelRequested
		}
		if state.Paused {
			return ErrPauseRequested
		}
		return nil
	}
}
