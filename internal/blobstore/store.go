package blobstore

import (
	"context"
	"fmt"
	"time"

	"sift/internal/config"
)

// Store is the claim-check abstraction over payload storage. Once Put returns,
// the payload is durably retrievable via the reference until retention expires
// (job working directory lifetime for local, presign TTL for remote access).
type Store interface {
	// Put stores payload under key and returns its reference.
	Put(ctx context.Context, key string, payload []byte) (Reference, error)
	// Get resolves a reference back to payload bytes.
	Get(ctx context.Context, ref Reference) ([]byte, error)
	// Presign returns a time-boxed externally usable locator for the payload.
	Presign(ctx context.Context, ref Reference, ttl time.Duration) (string, error)
}

// NewFromConfig selects the backend from configuration. Callers receive the
// Store interface and never learn which backend is active.
func NewFromConfig(ctx context.Context, cfg *config.Config) (Store, error) {
	switch cfg.Storage.Backend {
	case "local":
		return NewLocalStore(cfg.Paths.WorkDir)
	case "s3":
		return NewS3Store(ctx, cfg.Storage)
	default:
		return nil, fmt.Errorf("blobstore: unsupported backend %q", cfg.Storage.Backend)
	}
}
