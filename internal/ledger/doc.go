// Package ledger implements the idempotency log that makes retried pipeline
// steps side-effect free: a step re-invoked with byte-identical canonical
// input replays its recorded output instead of re-running uploads, paid
// inference calls, or document writes.
package ledger
