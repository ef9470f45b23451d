// Package queue persists ingestion jobs in SQLite and owns every status
// transition in the pipeline. The daemon, CLI, and HTTP API all act on jobs
// exclusively through the Store, so the database is the single source of
// truth for job state, pause and cancel flags, and heartbeats.
package queue
