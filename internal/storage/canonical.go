// Package storage implements the persisted Recording blob format and the
// relational index described in spec.md §4.7/§6: a content-addressed,
// optionally-encrypted blob store plus a SQLite index of metadata.
package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// Canonicalize produces the deterministic byte form spec.md §6 calls for:
// a UTF-8 JSON document with object keys in sorted order. encoding/json
// already sorts map[string]any keys when marshaling, so round-tripping
// through a generic map gives us canonical form without a bespoke encoder.
func Canonicalize(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, err
	}
	return json.Marshal(generic)
}

// Hash returns the hex-encoded SHA-256 digest of canonical bytes.
func Hash(canonical []byte) string {
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:])
}
