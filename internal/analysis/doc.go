// Package analysis partitions representative frames into bounded batches,
// drives parallel annotation calls with per-frame partial success, persists
// each batch's results behind a blob reference, and assembles the final
// temporally ordered annotation stream with duplicate groups expanded by
// copy. Per-batch idempotency records make resumed runs skip completed work.
package analysis
