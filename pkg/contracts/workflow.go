package contracts

import "time"

// WorkflowStage is the durable position of an evolution workflow. Instances
// are persisted before each stage's action runs, so a restart resumes from
// the recorded stage rather than replaying completed work.
type WorkflowStage string

const (
	StageNew              WorkflowStage = "NEW"
	StageValidating       WorkflowStage = "VALIDATING"
	StageHealing          WorkflowStage = "HEALING"
	StageConsensus        WorkflowStage = "CONSENSUS"
	StageAwaitingApproval WorkflowStage = "AWAITING_APPROVAL"
	StageCommitting       WorkflowStage = "COMMITTING"
	StageDone             WorkflowStage = "DONE"
	StageFailed           WorkflowStage = "FAILED"
)

// Terminal reports whether the stage admits no further transitions.
func (s WorkflowStage) Terminal() bool {
	return s == StageDone || s == StageFailed
}

// FailureReason is the stable, machine-readable cause attached to a FAILED
// workflow. Raw error text goes to logs, never into the persisted reason.
type FailureReason string

const (
	ReasonStaticForbidden   FailureReason = "STATIC_FORBIDDEN"
	ReasonSandboxTimeout    FailureReason = "SANDBOX_TIMEOUT"
	ReasonSandboxCrash      FailureReason = "SANDBOX_CRASH"
	ReasonHealExhausted     FailureReason = "HEAL_EXHAUSTED"
	ReasonConsensusVeto     FailureReason = "CONSENSUS_VETO"
	ReasonGovernanceTimeout FailureReason = "GOVERNANCE_TIMEOUT"
	ReasonSignatureInvalid  FailureReason = "SIGNATURE_INVALID"
	ReasonCancelled         FailureReason = "CANCELLED"
	ReasonPersistenceIO     FailureReason = "PERSISTENCE_IO"
)

// StageRecord is one entry in a workflow's append-only history.
type StageRecord struct {
	Stage     WorkflowStage `json:"stage"`
	Outcome   string        `json:"outcome"`
	Timestamp time.Time     `json:"timestamp"`
}

// WorkflowInstance is the persisted state of one evolution workflow.
//
// PendingSignature holds the admin signature delivered while the instance
// awaits approval; ProofHash is set once consensus is achieved and guards
// the commit against replay. HealAttempted bounds the heal-and-retry edge
// to a single traversal.
//
//nolint:govet // fieldalignment: struct layout is human-readable
type WorkflowInstance struct {
	WorkflowID       string        `json:"workflow_id"`
	Stage            WorkflowStage `json:"stage"`
	Mutation         Mutation      `json:"mutation"`
	RiskScore        float64       `json:"risk_score"`
	HealAttempted    bool          `json:"heal_attempted"`
	PendingSignature string        `json:"pending_signature,omitempty"`
	ProofHash        string        `json:"proof_hash,omitempty"`
	FailureReason    FailureReason `json:"failure_reason,omitempty"`
	ApprovalDeadline time.Time     `json:"approval_deadline"`
	History          []StageRecord `json:"history"`
	CreatedAt        time.Time     `json:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at"`
}

// Clone returns a deep copy safe to hand across the engine boundary.
func (w *WorkflowInstance) Clone() *WorkflowInstance {
	cp := *w
	cp.Mutation.Payload = append([]byte(nil), w.Mutation.Payload...)
	cp.History = append([]StageRecord(nil), w.History...)
	return &cp
}

// Record appends a history entry. The engine calls this exactly once per
// transition, before persisting.
func (w *WorkflowInstance) Record(stage WorkflowStage, outcome string, at time.Time) {
	w.History = append(w.History, StageRecord{Stage: stage, Outcome: outcome, Timestamp: at})
	w.UpdatedAt = at
}
