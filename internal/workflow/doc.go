// Package workflow sequences the ingestion pipeline: it claims jobs from the
// queue, runs each stage handler under the retry envelope with heartbeats and
// a per-stage timeout, and resolves pause, cancel, failure, and completion
// transitions. Crashed workers are recovered by heartbeat-based reclamation.
package workflow
