// Package extract drives the parallel extraction phase: speech-to-text over
// the audio track and batched vision annotation over the selected frames,
// with per-batch idempotency so resumed runs skip completed work.
package extract
