package domain

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"golang.org/x/crypto/blake2b"
)

// Fingerprint is the hex-encoded blake2b-256 digest of an event's canonical
// JSON encoding.
type Fingerprint string

// FingerprintOf hashes fields independently of key order. Two payloads that
// differ in any value, including the textual form of a number, hash
// differently.
func FingerprintOf(fields map[string]any) (Fingerprint, error) {
	canonical, err := CanonicalJSON(fields)
	if err != nil {
		return "", fmt.Errorf("canonicalise event: %w", err)
	}
	sum := blake2b.Sum256(canonical)
	return Fingerprint(hex.EncodeToString(sum[:])), nil
}

// CanonicalJSON encodes v with recursively sorted object keys and without
// HTML escaping.
func CanonicalJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
