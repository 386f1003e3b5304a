// Package canonicalize produces RFC 8785 (JSON Canonicalization Scheme)
// encodings for deterministic hashing. Proof hashes, applied-set keys, and
// consensus history keys all derive from these bytes, so two structurally
// equal proofs must canonicalize identically regardless of field order or
// marshal quirks.
package canonicalize

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/gowebpki/jcs"
)

// JCS returns the RFC 8785 canonical JSON encoding of v. v is first
// marshaled with encoding/json so struct tags apply, then transformed.
func JCS(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("canonicalize: marshal: %w", err)
	}
	out, err := jcs.Transform(raw)
	if err != nil {
		return nil, fmt.Errorf("canonicalize: transform: %w", err)
	}
	return out, nil
}

// CanonicalHash returns the lowercase hex SHA-256 of the canonical encoding
// of v.
func CanonicalHash(v any) (string, error) {
	b, err := JCS(v)
	if err != nil {
		return "", err
	}
	return HashBytes(b), nil
}

// HashBytes returns the lowercase hex SHA-256 of raw bytes.
func HashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
