package consensus

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/QAntum-Fortres/QAntum-Mind-Engine-Self-Healing-sub000/pkg/clock"
	"github.com/QAntum-Fortres/QAntum-Mind-Engine-Self-Healing-sub000/pkg/contracts"
	"github.com/QAntum-Fortres/QAntum-Mind-Engine-Self-Healing-sub000/pkg/events"
	"github.com/QAntum-Fortres/QAntum-Mind-Engine-Self-Healing-sub000/pkg/store"
)

var c0 = time.Date(2026, 4, 10, 14, 0, 0, 0, time.UTC)

func cleanProposal(id string) contracts.Proposal {
	return contracts.Proposal{
		ProposalID: id,
		Mutation: contracts.Mutation{
			TargetID: "moduleA",
			Payload:  []byte("function add(a, b) { return a + b; }"),
		},
		Proof: contracts.FormalProof{
			Axioms:      []string{"inputs are finite numbers"},
			Derivations: []string{"addition over finite numbers is total"},
			Conclusion:  "add terminates for all inputs",
		},
	}
}

func twinPool(n int, history *History) []Validator {
	pool := make([]Validator, n)
	for i := range pool {
		pool[i] = NewLocalTwin(fmt.Sprintf("twin-%d", i), history)
	}
	return pool
}

func TestUnanimousAcceptIsImmediate(t *testing.T) {
	history := NewHistory(store.NewMemoryKV(), 0)
	rec := &events.Recorder{}
	e := NewEngine(twinPool(3, history), history, rec, clock.NewManual(c0))

	res, err := e.Verify(context.Background(), cleanProposal("p-1"))
	require.NoError(t, err)

	assert.True(t, res.Achieved)
	assert.Equal(t, contracts.MethodImmediate, res.Method)
	assert.Equal(t, 1, res.Rounds)
	assert.Equal(t, "p-1", res.ProposalID)
	assert.Len(t, res.ProofHash, 64)
	assert.Equal(t, c0, res.DecidedAt)

	assert.Equal(t, 1, history.Len())
	require.Len(t, rec.ByTopic(contracts.TopicConsensusComplete), 1)
}

func TestDestructivePayloadIsVetoed(t *testing.T) {
	history := NewHistory(nil, 0)
	e := NewEngine(twinPool(3, history), history, events.Nop{}, clock.NewManual(c0))

	p := cleanProposal("p-drop")
	p.Mutation.Payload = []byte(`db.exec("DROP TABLE users;")`)

	res, err := e.Verify(context.Background(), p)
	require.NoError(t, err)

	assert.False(t, res.Achieved)
	assert.Equal(t, contracts.MethodVeto, res.Method)
	// round 1 refines against the counterexample, round 2 sees the same
	// payload and has nothing new to refute
	assert.Equal(t, 2, res.Rounds)
}

func TestDialecticConvergesOnRefutation(t *testing.T) {
	// challenges until the proposal explicitly negates the counterexample
	stubborn := ValidatorFunc{
		Name: "stubborn",
		Fn: func(_ context.Context, p contracts.Proposal) (contracts.TwinResponse, error) {
			for _, ax := range p.Proof.Axioms {
				if ax == "NOT(x may be negative)" {
					return contracts.TwinResponse{ProposalID: p.ProposalID, Verdict: contracts.VerdictAccept, Confidence: 1}, nil
				}
			}
			return contracts.TwinResponse{
				ProposalID:     p.ProposalID,
				Verdict:        contracts.VerdictChallenge,
				Confidence:     0.5,
				Counterexample: "x may be negative",
			}, nil
		},
	}
	history := NewHistory(nil, 0)
	e := NewEngine([]Validator{NewLocalTwin("twin-0", history), stubborn}, history, events.Nop{}, clock.NewManual(c0))

	res, err := e.Verify(context.Background(), cleanProposal("p-2"))
	require.NoError(t, err)

	assert.True(t, res.Achieved)
	assert.Equal(t, contracts.MethodDialectic, res.Method)
	assert.Equal(t, 2, res.Rounds)
}

func TestSoftDissentQuorumIsArbiter(t *testing.T) {
	unsure := ValidatorFunc{
		Name: "unsure",
		Fn: func(_ context.Context, p contracts.Proposal) (contracts.TwinResponse, error) {
			// dissent without a counterexample never forces dialectic
			return contracts.TwinResponse{ProposalID: p.ProposalID, Verdict: contracts.VerdictChallenge, Confidence: 0.5}, nil
		},
	}
	history := NewHistory(nil, 0)
	pool := append(twinPool(3, history), unsure)
	e := NewEngine(pool, history, events.Nop{}, clock.NewManual(c0))

	res, err := e.Verify(context.Background(), cleanProposal("p-3"))
	require.NoError(t, err)

	assert.True(t, res.Achieved)
	assert.Equal(t, contracts.MethodArbiter, res.Method)
	assert.Equal(t, 1, res.Rounds)
}

func TestUnreachableValidatorCountsAsDissent(t *testing.T) {
	dead := ValidatorFunc{
		Name: "dead",
		Fn: func(context.Context, contracts.Proposal) (contracts.TwinResponse, error) {
			return contracts.TwinResponse{}, errors.New("dial tcp: connection refused")
		},
	}
	history := NewHistory(nil, 0)

	// two healthy twins plus a dead peer: 2/3 agreement clears a 0.6 bar
	pool := append(twinPool(2, history), dead)
	e := NewEngine(pool, history, events.Nop{}, clock.NewManual(c0), WithMinAgree(0.6))

	res, err := e.Verify(context.Background(), cleanProposal("p-4"))
	require.NoError(t, err)
	assert.True(t, res.Achieved)
	assert.Equal(t, contracts.MethodArbiter, res.Method)

	// but 1/2 against the default 0.7 bar does not
	e2 := NewEngine([]Validator{NewLocalTwin("twin-0", history), dead}, NewHistory(nil, 0), events.Nop{}, clock.NewManual(c0))
	res, err = e2.Verify(context.Background(), cleanProposal("p-5"))
	require.NoError(t, err)
	assert.False(t, res.Achieved)
	assert.Equal(t, contracts.MethodVeto, res.Method)
}

func TestDialecticRoundBound(t *testing.T) {
	round := 0
	contrarian := ValidatorFunc{
		Name: "contrarian",
		Fn: func(_ context.Context, p contracts.Proposal) (contracts.TwinResponse, error) {
			round++
			return contracts.TwinResponse{
				ProposalID:     p.ProposalID,
				Verdict:        contracts.VerdictReject,
				Confidence:     1,
				Counterexample: fmt.Sprintf("objection %d", round),
			}, nil
		},
	}
	history := NewHistory(nil, 0)
	e := NewEngine([]Validator{contrarian}, history, events.Nop{}, clock.NewManual(c0))

	res, err := e.Verify(context.Background(), cleanProposal("p-6"))
	require.NoError(t, err)

	assert.False(t, res.Achieved)
	assert.Equal(t, contracts.MethodVeto, res.Method)
	assert.Equal(t, DefaultMaxRounds, res.Rounds)
}

func TestReplayedProofFailsConsistency(t *testing.T) {
	history := NewHistory(store.NewMemoryKV(), 0)
	e := NewEngine(twinPool(3, history), history, events.Nop{}, clock.NewManual(c0))

	first, err := e.Verify(context.Background(), cleanProposal("p-7"))
	require.NoError(t, err)
	require.True(t, first.Achieved)

	// identical proof again: every twin now finds it in the window
	second, err := e.Verify(context.Background(), cleanProposal("p-7-bis"))
	require.NoError(t, err)
	assert.False(t, second.Achieved)
	assert.Equal(t, contracts.MethodVeto, second.Method)
}

func TestDegradedLocalFallback(t *testing.T) {
	history := NewHistory(nil, 0)
	e := NewEngine(nil, history, events.Nop{}, clock.NewManual(c0))

	res, err := e.Verify(context.Background(), cleanProposal("p-8"))
	require.NoError(t, err)
	assert.True(t, res.Achieved)
	assert.Equal(t, contracts.MethodArbiter, res.Method)
	assert.Equal(t, 1, res.Rounds)

	// an oversized payload fails two checks and cannot reach the 3-of-4 bar
	big := cleanProposal("p-9")
	big.Mutation.Payload = append(make([]byte, MaxProposalBytes), []byte(" eval(x)")...)
	res, err = e.Verify(context.Background(), big)
	require.NoError(t, err)
	assert.False(t, res.Achieved)
	assert.Equal(t, contracts.MethodVeto, res.Method)
}

func TestHistorySurvivesRestart(t *testing.T) {
	kv := store.NewMemoryKV()
	ctx := context.Background()

	h1 := NewHistory(kv, 0)
	require.NoError(t, h1.Append(ctx, HistoryEntry{
		ProofHash: "abc123",
		Achieved:  true,
		Method:    contracts.MethodImmediate,
		Rounds:    1,
		Timestamp: c0,
	}))

	h2 := NewHistory(kv, 0)
	require.NoError(t, h2.Load(ctx))
	assert.Equal(t, 1, h2.Len())
	assert.True(t, h2.Contains("abc123"))
}

func TestHistoryRestartEvictsChronologically(t *testing.T) {
	kv := store.NewMemoryKV()
	ctx := context.Background()

	// hashes chosen so KV scan order (lexicographic) inverts append order
	h1 := NewHistory(kv, 2)
	require.NoError(t, h1.Append(ctx, HistoryEntry{ProofHash: "cc-oldest", Timestamp: c0}))
	require.NoError(t, h1.Append(ctx, HistoryEntry{ProofHash: "aa-middle", Timestamp: c0.Add(time.Minute)}))
	require.NoError(t, h1.Append(ctx, HistoryEntry{ProofHash: "bb-newest", Timestamp: c0.Add(2 * time.Minute)}))

	h2 := NewHistory(kv, 2)
	require.NoError(t, h2.Load(ctx))
	assert.Equal(t, 2, h2.Len())
	assert.False(t, h2.Contains("cc-oldest"), "the oldest entry falls out of the window")
	assert.True(t, h2.Contains("aa-middle"))
	assert.True(t, h2.Contains("bb-newest"))
}

func TestHistoryWindowEvicts(t *testing.T) {
	h := NewHistory(nil, 3)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		require.NoError(t, h.Append(ctx, HistoryEntry{ProofHash: fmt.Sprintf("h%d", i)}))
	}
	assert.Equal(t, 3, h.Len())
	assert.False(t, h.Contains("h0"))
	assert.False(t, h.Contains("h1"))
	assert.True(t, h.Contains("h4"))
}
