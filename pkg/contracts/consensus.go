package contracts

import "time"

// Verdict is a validator's judgement on a proposal.
type Verdict string

const (
	VerdictAccept    Verdict = "ACCEPT"
	VerdictReject    Verdict = "REJECT"
	VerdictChallenge Verdict = "CHALLENGE"
)

// TwinResponse is one validator's answer. Counterexample is empty unless the
// validator found a concrete refutation; a CHALLENGE without one is treated
// as soft dissent.
//
//nolint:govet // fieldalignment: struct layout is human-readable
type TwinResponse struct {
	ResponseID     string   `json:"response_id"`
	ProposalID     string   `json:"proposal_id"`
	Verdict        Verdict  `json:"verdict"`
	Confidence     float64  `json:"confidence"`
	Counterexample string   `json:"counterexample,omitempty"`
	ReasoningTrace []string `json:"reasoning_trace,omitempty"`
}

// ConsensusMethod records how a consensus outcome was reached.
type ConsensusMethod string

const (
	// MethodImmediate: unanimous acceptance on the first broadcast.
	MethodImmediate ConsensusMethod = "IMMEDIATE"
	// MethodDialectic: acceptance after one or more refinement rounds.
	MethodDialectic ConsensusMethod = "DIALECTIC"
	// MethodArbiter: quorum acceptance without unanimity, or the degraded
	// zero-validator local check.
	MethodArbiter ConsensusMethod = "ARBITER"
	// MethodVeto: the proposal was refused.
	MethodVeto ConsensusMethod = "VETO"
)

// ConsensusResult is the terminal outcome for one proposal. ProofHash is the
// lowercase hex SHA-256 of the canonical (RFC 8785) encoding of the proof
// that was ultimately judged, and keys both the applied-set and history.
//
//nolint:govet // fieldalignment: struct layout is human-readable
type ConsensusResult struct {
	ProposalID string          `json:"proposal_id"`
	Achieved   bool            `json:"achieved"`
	Method     ConsensusMethod `json:"method"`
	Rounds     int             `json:"rounds"`
	ProofHash  string          `json:"proof_hash"`
	DecidedAt  time.Time       `json:"decided_at"`
}
