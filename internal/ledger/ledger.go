package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// DefaultTTL bounds how long a recorded step outcome stays replayable.
const DefaultTTL = 30 * 24 * time.Hour

// Store is the durable idempotency log. Workers share it (sqlite WAL tolerates
// concurrent writers via upsert-by-key); it is one of only two pieces of state
// shared across workers, the blob store being the other.
type Store struct {
	db  *sql.DB
	ttl time.Duration
	now func() time.Time
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS idempotency_records (
    record_key   TEXT PRIMARY KEY,
    execution_id TEXT NOT NULL,
    step_name    TEXT NOT NULL,
    input_hash   TEXT NOT NULL,
    output       TEXT NOT NULL,
    success      INTEGER NOT NULL,
    created_at   TEXT NOT NULL,
    expires_at   TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_idempotency_expiry ON idempotency_records (expires_at);
`

// Open connects to the ledger database, applying pragmas and schema.
func Open(dbPath string, ttl time.Duration) (*Store, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open ledger db: %w", err)
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create ledger schema: %w", err)
	}
	return &Store{db: db, ttl: ttl, now: time.Now}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// WithClock overrides the time source (tests).
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

func recordKey(executionID, stepName, inputHash string) string {
	return executionID + ":" + stepName + ":" + inputHash
}

// CheckCached looks up a prior successful execution of (executionID, stepName)
// with identical canonical input. On a hit the stored output is returned and
// the step must not re-run its side effects.
func (s *Store) CheckCached(ctx context.Context, executionID, stepName string, input any) (json.RawMessage, bool, error) {
	hash, err := CanonicalHash(input)
	if err != nil {
		return nil, false, err
	}
	key := recordKey(executionID, stepName, hash)

	var output string
	var expiresAt string
	err = s.db.QueryRowContext(ctx,
		`SELECT output, expires_at FROM idempotency_records WHERE record_key = ? AND success = 1`,
		key,
	).Scan(&output, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("ledger lookup: %w", err)
	}

	expiry, err := time.Parse(time.RFC3339Nano, expiresAt)
	if err != nil {
		return nil, false, fmt.Errorf("ledger lookup: parse expiry: %w", err)
	}
	if !s.now().Before(expiry) {
		return nil, false, nil
	}
	return json.RawMessage(output), true, nil
}

// Record upserts the outcome of a step execution. Only successful outcomes are
// replayed by CheckCached, but failures are recorded too for diagnostics.
func (s *Store) Record(ctx context.Context, executionID, stepName string, input, output any, success bool) error {
	hash, err := CanonicalHash(input)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(output)
	if err != nil {
		return fmt.Errorf("ledger record: serialize output: %w", err)
	}

	now := s.now().UTC()
	key := recordKey(executionID, stepName, hash)
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO idempotency_records (record_key, execution_id, step_name, input_hash, output, success, created_at, expires_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?)
         ON CONFLICT(record_key) DO UPDATE SET
             output = excluded.output,
             success = excluded.success,
             created_at = excluded.created_at,
             expires_at = excluded.expires_at`,
		key,
		executionID,
		stepName,
		hash,
		string(payload),
		boolToInt(success),
		now.Format(time.RFC3339Nano),
		now.Add(s.ttl).Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("ledger record: %w", err)
	}
	return nil
}

// PruneExpired deletes records past their TTL and returns the count removed.
func (s *Store) PruneExpired(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM idempotency_records WHERE expires_at <= ?`,
		s.now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("ledger prune: %w", err)
	}
	return res.RowsAffected()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
