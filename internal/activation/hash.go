package activation

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// CanonicalJSON serializes a plan (or any value with fixed field order and no
// bare maps) deterministically. Plan slices are already sorted by the
// resolver, so encoding/json's fixed struct-field order is sufficient.
func CanonicalJSON(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("canonical json: %w", err)
	}
	return string(b), nil
}

// HashOf returns the sha256 hex digest of a serialized value.
func HashOf(serialized string) string {
	sum := sha256.Sum256([]byte(serialized))
	return hex.EncodeToString(sum[:])
}

// HashBytes returns the sha256 hex digest of raw content.
func HashBytes(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
