// Package contracts defines the shared data contracts of the evolution core:
// mutations, proposals, consensus verdicts, workflow state, and the code
// entity registry shapes. Everything here is plain data with stable JSON
// encodings; behavior lives in the packages that own each lifecycle.
package contracts

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// Mutation is a proposed code change. It is immutable once created: every
// stage of the pipeline sees the same payload bytes, and the payload hash is
// the identity used for idempotent commits.
//
//nolint:govet // fieldalignment: struct layout is human-readable
type Mutation struct {
	TargetID  string    `json:"target_id"`
	Payload   []byte    `json:"payload"`
	RiskScore float64   `json:"risk_score"`
	CreatedAt time.Time `json:"created_at"`
}

// PayloadHash returns the lowercase hex SHA-256 of the payload bytes.
func (m Mutation) PayloadHash() string {
	sum := sha256.Sum256(m.Payload)
	return hex.EncodeToString(sum[:])
}

// ShortHash is the 8-char prefix of PayloadHash, used in notifications and
// proof conclusions where the full digest is noise.
func (m Mutation) ShortHash() string {
	return m.PayloadHash()[:8]
}

// FormalProof is the machine-checkable argument attached to a proposal.
// Axioms and derivations are ordered; refinement rounds append to Axioms.
type FormalProof struct {
	Axioms      []string `json:"axioms"`
	Derivations []string `json:"derivations"`
	Conclusion  string   `json:"conclusion"`
}

// Proposal is a mutation plus its proof, as broadcast to validators.
// Refined proposals derive their id from the parent via RefinedID.
type Proposal struct {
	ProposalID string      `json:"proposal_id"`
	Mutation   Mutation    `json:"mutation"`
	Proof      FormalProof `json:"proof"`
}

// RefinedID derives the proposal id for dialectic round k.
func (p Proposal) RefinedID(round int) string {
	return fmt.Sprintf("%s-refined-%d", p.ProposalID, round)
}
