// Package blobstore implements the claim-check pattern for sift: large binary
// payloads (frames, batch result documents) live behind opaque references so
// orchestration state stays small enough to persist and replay cheaply.
//
// Two backends satisfy the same Store interface: a local-disk store for
// single-worker runs and an S3 object store for distributed workers. The
// backend is chosen once from configuration; nothing above this package
// inspects which one is active.
package blobstore
