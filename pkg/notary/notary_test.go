package notary

import (
	"crypto/ed25519"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignVerifyRoundtrip(t *testing.T) {
	pub, priv, err := Keypair()
	require.NoError(t, err)

	payload := []byte("return 42;")
	sig := Sign(payload, priv)
	assert.Equal(t, strings.ToLower(sig), sig, "signatures are lowercase hex")
	assert.Len(t, sig, ed25519.SignatureSize*2)

	assert.True(t, Verify(payload, sig, pub))
	assert.False(t, Verify([]byte("return 43;"), sig, pub), "tampered payload must fail")
}

func TestVerifyRejectsWrongKey(t *testing.T) {
	pub1, priv1, err := Keypair()
	require.NoError(t, err)
	pub2, _, err := Keypair()
	require.NoError(t, err)

	payload := []byte("x=1")
	sig := Sign(payload, priv1)
	assert.True(t, Verify(payload, sig, pub1))
	assert.False(t, Verify(payload, sig, pub2))
}

func TestVerifyRejectsGarbage(t *testing.T) {
	pub, _, err := Keypair()
	require.NoError(t, err)

	assert.False(t, Verify([]byte("p"), "not-hex", pub))
	assert.False(t, Verify([]byte("p"), "deadbeef", pub), "wrong length")
	assert.False(t, Verify([]byte("p"), strings.Repeat("ab", ed25519.SignatureSize), ed25519.PublicKey("short")))
}

func TestHashHexIsStable(t *testing.T) {
	h := HashHex([]byte("payload"))
	assert.Len(t, h, 64)
	assert.Equal(t, h, HashHex([]byte("payload")))
	assert.NotEqual(t, h, HashHex([]byte("payloaD")))
}

func TestParseKeys(t *testing.T) {
	pub, priv, err := Keypair()
	require.NoError(t, err)

	gotPub, err := ParsePublicKey(hex.EncodeToString(pub))
	require.NoError(t, err)
	assert.Equal(t, pub, gotPub)

	// full key and seed both parse to a key that signs identically
	gotPriv, err := ParsePrivateKey(hex.EncodeToString(priv))
	require.NoError(t, err)
	fromSeed, err := ParsePrivateKey(hex.EncodeToString(priv.Seed()))
	require.NoError(t, err)
	payload := []byte("same")
	assert.Equal(t, Sign(payload, gotPriv), Sign(payload, fromSeed))

	_, err = ParsePublicKey("zz")
	assert.Error(t, err)
	_, err = ParsePublicKey("abcd")
	assert.Error(t, err)
	_, err = ParsePrivateKey("abcd")
	assert.Error(t, err)
}
