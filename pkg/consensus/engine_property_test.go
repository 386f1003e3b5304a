//go:build property
// +build property

package consensus

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/QAntum-Fortres/QAntum-Mind-Engine-Self-Healing-sub000/pkg/clock"
	"github.com/QAntum-Fortres/QAntum-Mind-Engine-Self-Healing-sub000/pkg/contracts"
	"github.com/QAntum-Fortres/QAntum-Mind-Engine-Self-Healing-sub000/pkg/store"
)

// TestConsensusDeterminism checks the determinism law: the same proposal
// judged by two freshly built validator pools reaches the same outcome and
// proof hash.
func TestConsensusDeterminism(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	judge := func(payload, conclusion string) contracts.ConsensusResult {
		history := NewHistory(store.NewMemoryKV(), 0)
		twins := []Validator{
			NewLocalTwin("twin-0", history),
			NewLocalTwin("twin-1", history),
			NewLocalTwin("twin-2", history),
		}
		clk := clock.NewManual(time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC))
		e := NewEngine(twins, history, nil, clk)
		result, err := e.Verify(context.Background(), contracts.Proposal{
			ProposalID: "prop-det",
			Mutation:   contracts.Mutation{TargetID: "m", Payload: []byte(payload)},
			Proof: contracts.FormalProof{
				Axioms:     []string{"sandboxed execution completed within limits"},
				Conclusion: conclusion,
			},
		})
		if err != nil {
			t.Fatalf("verify: %v", err)
		}
		return result
	}

	properties.Property("same proposal, same outcome", prop.ForAll(
		func(payload string, n int) bool {
			conclusion := fmt.Sprintf("mutation %d is safe to apply", n)
			a := judge(payload, conclusion)
			b := judge(payload, conclusion)
			return a.Achieved == b.Achieved &&
				a.Method == b.Method &&
				a.Rounds == b.Rounds &&
				a.ProofHash == b.ProofHash
		},
		gen.AnyString(),
		gen.IntRange(0, 1<<20),
	))

	properties.TestingRun(t)
}
