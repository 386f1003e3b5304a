//go:build property
// +build property

package notary

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestSignatureCompleteness checks the signature law: every payload signed
// under a keypair verifies under its public key, and any different payload
// fails under the same signature.
func TestSignatureCompleteness(t *testing.T) {
	pub, priv, err := Keypair()
	if err != nil {
		t.Fatal(err)
	}

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("verify(p, sign(p)) holds", prop.ForAll(
		func(payload string) bool {
			return Verify([]byte(payload), Sign([]byte(payload), priv), pub)
		},
		gen.AnyString(),
	))

	properties.Property("verify(p', sign(p)) fails for p' != p", prop.ForAll(
		func(payload, other string) bool {
			if payload == other {
				return true
			}
			return !Verify([]byte(other), Sign([]byte(payload), priv), pub)
		},
		gen.AnyString(),
		gen.AnyString(),
	))

	properties.TestingRun(t)
}
