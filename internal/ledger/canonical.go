package ledger

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// CanonicalHash produces a stable hex digest of an arbitrary step input.
//
// The input is serialized, decoded into generic values, and re-serialized so
// map keys come out sorted regardless of insertion order. Callers must keep
// wall-clock and random state out of the input; the key must be derivable from
// execution id, step name, and payload alone or idempotency silently breaks.
func CanonicalHash(input any) (string, error) {
	canonical, err := CanonicalBytes(input)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

// CanonicalBytes returns the deterministic serialized form used for hashing.
func CanonicalBytes(input any) ([]byte, error) {
	raw, err := json.Marshal(input)
	if err != nil {
		return nil, fmt.Errorf("canonicalize input: %w", err)
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, fmt.Errorf("canonicalize input: %w", err)
	}
	canonical, err := json.Marshal(generic)
	if err != nil {
		return nil, fmt.Errorf("canonicalize input: %w", err)
	}
	return canonical, nil
}
