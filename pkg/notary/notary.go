// Package notary hashes mutation payloads and produces/verifies detached
// Ed25519 signatures over those hashes. Signing the 32-byte digest rather
// than the raw payload bounds verification cost regardless of mutation
// size. The notary holds no state; key custody belongs to the caller.
package notary

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Hash returns the SHA-256 digest of payload.
func Hash(payload []byte) [32]byte {
	return sha256.Sum256(payload)
}

// HashHex returns the lowercase hex form of Hash.
func HashHex(payload []byte) string {
	sum := Hash(payload)
	return hex.EncodeToString(sum[:])
}

// Sign produces a detached signature over Hash(payload), hex-encoded.
func Sign(payload []byte, priv ed25519.PrivateKey) string {
	digest := Hash(payload)
	return hex.EncodeToString(ed25519.Sign(priv, digest[:]))
}

// Verify reports whether sigHex is a valid signature over Hash(payload)
// under pub. Malformed hex or a wrong-sized key verify as false.
func Verify(payload []byte, sigHex string, pub ed25519.PublicKey) bool {
	if len(pub) != ed25519.PublicKeySize {
		return false
	}
	sig, err := hex.DecodeString(sigHex)
	if err != nil || len(sig) != ed25519.SignatureSize {
		return false
	}
	digest := Hash(payload)
	return ed25519.Verify(pub, digest[:], sig)
}

// Keypair generates a fresh Ed25519 pair.
func Keypair() (ed25519.PublicKey, ed25519.PrivateKey, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, nil, fmt.Errorf("key generation failed: %w", err)
	}
	return pub, priv, nil
}

// ParsePublicKey decodes a hex-encoded Ed25519 public key.
func ParsePublicKey(hexKey string) (ed25519.PublicKey, error) {
	raw, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("invalid public key hex: %w", err)
	}
	if len(raw) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("invalid public key size: %d", len(raw))
	}
	return ed25519.PublicKey(raw), nil
}

// ParsePrivateKey decodes a hex-encoded Ed25519 private key, accepting
// either the 32-byte seed or the full 64-byte key.
func ParsePrivateKey(hexKey string) (ed25519.PrivateKey, error) {
	raw, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("invalid private key hex: %w", err)
	}
	switch len(raw) {
	case ed25519.SeedSize:
		return ed25519.NewKeyFromSeed(raw), nil
	case ed25519.PrivateKeySize:
		return ed25519.PrivateKey(raw), nil
	default:
		return nil, fmt.Errorf("invalid private key size: %d", len(raw))
	}
}
