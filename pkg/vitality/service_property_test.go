//go:build property
// +build property

package vitality

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/QAntum-Fortres/QAntum-Mind-Engine-Self-Healing-sub000/pkg/clock"
	"github.com/QAntum-Fortres/QAntum-Mind-Engine-Self-Healing-sub000/pkg/contracts"
)

// TestTokenAuthenticityWindow checks the token law: any token verified
// within the freshness window succeeds, and fails once the window passes
// or the expected module differs.
func TestTokenAuthenticityWindow(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	statuses := []contracts.VitalityStatus{
		contracts.StatusHealthy, contracts.StatusRecovering, contracts.StatusCritical,
	}

	properties.Property("fresh tokens verify, stale tokens expire", prop.ForAll(
		func(module string, statusIdx int, ageMs int64) bool {
			if module == "" {
				return true
			}
			clk := clock.NewManual(time.Unix(1_750_000_000, 0))
			s, err := New([]byte("prop-secret"), clk)
			if err != nil {
				return false
			}
			tok, err := s.Issue(module, statuses[statusIdx%len(statuses)])
			if err != nil {
				return false
			}
			clk.Advance(time.Duration(ageMs) * time.Millisecond)
			res := s.Verify(tok, module)
			if ageMs <= DefaultMaxAge.Milliseconds() {
				return res.OK
			}
			return !res.OK && res.Reason == ReasonExpired
		},
		gen.Identifier(),
		gen.IntRange(0, 2),
		gen.Int64Range(0, 2*DefaultMaxAge.Milliseconds()),
	))

	properties.Property("verification is bound to the module id", prop.ForAll(
		func(module, other string) bool {
			if module == "" || other == "" || module == other {
				return true
			}
			clk := clock.NewManual(time.Unix(1_750_000_000, 0))
			s, err := New([]byte("prop-secret"), clk)
			if err != nil {
				return false
			}
			tok, err := s.Issue(module, contracts.StatusHealthy)
			if err != nil {
				return false
			}
			return !s.Verify(tok, other).OK
		},
		gen.Identifier(),
		gen.Identifier(),
	))

	properties.Property("tokens not minted with the secret are rejected", prop.ForAll(
		func(candidate string) bool {
			clk := clock.NewManual(time.Unix(1_750_000_000, 0))
			s, err := New([]byte("prop-secret"), clk)
			if err != nil {
				return false
			}
			return !s.Verify(candidate, "moduleA").OK
		},
		gen.AnyString(),
	))

	properties.TestingRun(t)
}
