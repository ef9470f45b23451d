package blobstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// LocalStore keeps payloads under a root directory on the worker's disk.
// Suitable for single-worker deployments where every stage shares one machine.
type LocalStore struct {
	root string
}

// NewLocalStore creates the root directory if needed.
func NewLocalStore(root string) (*LocalStore, error) {
	if strings.TrimSpace(root) == "" {
		return nil, fmt.Errorf("local blobstore: root directory is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("local blobstore: create root: %w", err)
	}
	return &LocalStore{root: root}, nil
}

func (s *LocalStore) Put(ctx context.Context, key string, payload []byte) (Reference, error) {
	if err := ctx.Err(); err != nil {
		return Reference{}, err
	}
	path := filepath.Join(s.root, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return Reference{}, fmt.Errorf("local blobstore: create key directory: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, payload, 0o644); err != nil {
		return Reference{}, fmt.Errorf("local blobstore: write %q: %w", key, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return Reference{}, fmt.Errorf("local blobstore: finalize %q: %w", key, err)
	}
	return NewLocal(path), nil
}

func (s *LocalStore) Get(ctx context.Context, ref Reference) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if ref.Backend != BackendLocal {
		return nil, fmt.Errorf("local blobstore: cannot resolve %s reference", ref.Backend)
	}
	payload, err := os.ReadFile(ref.Path)
	if err != nil {
		return nil, fmt.Errorf("local blobstore: read %q: %w", ref.Path, err)
	}
	return payload, nil
}

// Presign for local payloads is the path itself; retention is the working
// directory lifetime, so the TTL carries no meaning here.
func (s *LocalStore) Presign(_ context.Context, ref Reference, _ time.Duration) (string, error) {
	if ref.Backend != BackendLocal {
		return "", fmt.Errorf("local blobstore: cannot presign %s reference", ref.Backend)
	}
	return ref.Path, nil
}
