package blobstore

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// PutItem is one payload in a batch upload.
type PutItem struct {
	Key     string
	Payload []byte
}

// PutResult mirrors the input slice position. A failed upload records its
// error and leaves Ref zero; the batch itself never fails on one bad item.
type PutResult struct {
	Ref Reference
	Err error
}

// GetResult mirrors the input slice position. A failed download records its
// error and leaves Payload nil.
type GetResult struct {
	Payload []byte
	Err     error
}

// PutAll uploads items concurrently, bounded by parallelism, preserving input
// order in the result slice.
func PutAll(ctx context.Context, store Store, items []PutItem, parallelism int) []PutResult {
	results := make([]PutResult, len(items))
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(normalizeLimit(parallelism))
	for i, item := range items {
		group.Go(func() error {
			ref, err := store.Put(groupCtx, item.Key, item.Payload)
			results[i] = PutResult{Ref: ref, Err: err}
			return nil
		})
	}
	_ = group.Wait()
	return results
}

// GetAll downloads references concurrently, bounded by parallelism, preserving
// input order in the result slice.
func GetAll(ctx context.Context, store Store, refs []Reference, parallelism int) []GetResult {
	results := make([]GetResult, len(refs))
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(normalizeLimit(parallelism))
	for i, ref := range refs {
		group.Go(func() error {
			payload, err := store.Get(groupCtx, ref)
			results[i] = GetResult{Payload: payload, Err: err}
			return nil
		})
	}
	_ = group.Wait()
	return results
}

func normalizeLimit(parallelism int) int {
	if parallelism <= 0 {
		return 4
	}
	return parallelism
}
