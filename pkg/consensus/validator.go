package consensus

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/QAntum-Fortres/QAntum-Mind-Engine-Self-Healing-sub000/pkg/canonicalize"
	"github.com/QAntum-Fortres/QAntum-Mind-Engine-Self-Healing-sub000/pkg/contracts"
)

// MaxProposalBytes caps the mutation payload a validator will consider.
const MaxProposalBytes = 1 << 20

// Validator judges proposals. Implementations must be deterministic for a
// given proposal and history state; the engine broadcasts concurrently.
type Validator interface {
	ID() string
	Evaluate(ctx context.Context, p contracts.Proposal) (contracts.TwinResponse, error)
}

// ValidatorFunc adapts a function to the Validator interface.
type ValidatorFunc struct {
	Name string
	Fn   func(ctx context.Context, p contracts.Proposal) (contracts.TwinResponse, error)
}

func (v ValidatorFunc) ID() string { return v.Name }

func (v ValidatorFunc) Evaluate(ctx context.Context, p contracts.Proposal) (contracts.TwinResponse, error) {
	return v.Fn(ctx, p)
}

// dangerRe catches payload constructs no proof can argue away: unbounded
// loops, destructive storage verbs, process termination, dynamic eval.
var dangerRe = regexp.MustCompile(`(?i)while\s*\(\s*(?:true|1)\s*\)|for\s*\(\s*;\s*;\s*\)|DROP\s+TABLE|DELETE\s+FROM|TRUNCATE\s+TABLE|rm\s+-rf|process\.(?:exit|kill)|\beval\s*\(`)

// LocalTwin is the in-process adversarial validator. It runs four
// independent checks and votes from the pass ratio: all four pass is
// ACCEPT, at least half is CHALLENGE, anything less is REJECT. A failed
// counterexample search attaches the offending fragment so the dialectic
// loop has something concrete to refute.
type LocalTwin struct {
	id      string
	history *History
}

// NewLocalTwin creates a twin. history may be nil, which disables the
// consistency check (it then always passes).
func NewLocalTwin(id string, history *History) *LocalTwin {
	return &LocalTwin{id: id, history: history}
}

func (t *LocalTwin) ID() string { return t.id }

// Evaluate runs the four checks. It never returns an error: a local twin
// is always reachable.
func (t *LocalTwin) Evaluate(_ context.Context, p contracts.Proposal) (contracts.TwinResponse, error) {
	var (
		trace          []string
		passed         int
		counterexample string
	)

	if ok, detail := checkCircularity(p.Proof); ok {
		passed++
		trace = append(trace, "axiom independence: pass")
	} else {
		trace = append(trace, "axiom independence: fail: "+detail)
	}

	if loc := dangerRe.Find(p.Mutation.Payload); loc == nil {
		passed++
		trace = append(trace, "counterexample search: pass")
	} else {
		counterexample = string(loc)
		trace = append(trace, fmt.Sprintf("counterexample search: fail: found %q", counterexample))
	}

	if t.history == nil || !t.history.Contains(ProofHash(p.Proof)) {
		passed++
		trace = append(trace, "historical consistency: pass")
	} else {
		trace = append(trace, "historical consistency: fail: proof already judged in recent window")
	}

	if len(p.Mutation.Payload) <= MaxProposalBytes {
		passed++
		trace = append(trace, "resource bound: pass")
	} else {
		trace = append(trace, fmt.Sprintf("resource bound: fail: payload %d bytes exceeds cap", len(p.Mutation.Payload)))
	}

	verdict := contracts.VerdictReject
	switch {
	case passed == 4:
		verdict = contracts.VerdictAccept
	case passed >= 2:
		verdict = contracts.VerdictChallenge
	}

	return contracts.TwinResponse{
		ResponseID:     t.id + ":" + p.ProposalID,
		ProposalID:     p.ProposalID,
		Verdict:        verdict,
		Confidence:     float64(passed) / 4,
		Counterexample: counterexample,
		ReasoningTrace: trace,
	}, nil
}

// checkCircularity enforces axiom independence: a proof may not assume
// what it claims to establish. An axiom fails when it restates the
// conclusion outright, or when it recurs inside a derivation and surfaces
// in the conclusion again. An axiom that merely overlaps the conclusion
// without being leaned on by any derivation is fine.
func checkCircularity(proof contracts.FormalProof) (bool, string) {
	conclusion := normalizeClause(proof.Conclusion)
	if conclusion == "" {
		return true, ""
	}
	for _, ax := range proof.Axioms {
		axiom := normalizeClause(ax)
		if axiom == "" {
			continue
		}
		if axiom == conclusion {
			return false, fmt.Sprintf("axiom %q restates the conclusion", ax)
		}
		if !strings.Contains(conclusion, axiom) {
			continue
		}
		for _, d := range proof.Derivations {
			if strings.Contains(normalizeClause(d), axiom) {
				return false, fmt.Sprintf("axiom %q recurs in a derivation and the conclusion", ax)
			}
		}
	}
	return true, ""
}

func normalizeClause(s string) string {
	return strings.TrimSpace(strings.ToLower(s))
}

// ProofHash is the lowercase hex SHA-256 of the canonical (RFC 8785)
// encoding of the proof.
func ProofHash(proof contracts.FormalProof) string {
	h, err := canonicalize.CanonicalHash(proof)
	if err != nil {
		// FormalProof is plain strings; canonicalization cannot fail on it.
		panic(fmt.Sprintf("canonicalize proof: %v", err))
	}
	return h
}
