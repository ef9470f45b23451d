package stage

import (
	"context"
	"log/slog"

	"sift/internal/queue"
)

// Handler describes the contract the workflow manager needs from each stage.
type Handler interface {
	Prepare(context.Context, *queue.Job) error
	Execute(context.Context, *queue.Job) error
	HealthCheck(context.Context) Health
}

// LoggerAware lets the manager push a request-scoped logger into a handler
// before each run.
type LoggerAware interface {
	SetLogger(*slog.Logger)
}

// Health reports whether a stage's collaborators are reachable and
// configured. The daemon aggregates one record per stage for its readiness
// endpoint.
type Health struct {
	Name   string
	Ready  bool
	Detail string
}

// Healthy marks a stage ready.
func Healthy(name string) Health {
	return Health{Name: name, Ready: true}
}

// Unhealthy marks a stage not ready, with the reason probes should surface.
func Unhealthy(name, detail string) Health {
	return Health{Name: name, Ready: false, Detail: detail}
}
