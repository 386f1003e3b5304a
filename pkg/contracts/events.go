package contracts

// Event topics published on the core bus. Consumers subscribe by topic;
// payload shapes are fixed per topic.
const (
	TopicHealingSuccess     = "healing:success"
	TopicHealingFailure     = "healing:failure"
	TopicVitalityRegistered = "vitality:registered"
	TopicVitalityRejected   = "vitality:rejected"
	TopicConsensusComplete  = "consensus:complete"
	TopicWorkflowTransition = "workflow:transition"
	TopicReaperMilestone    = "reaper:milestone"
	TopicReaperReport       = "reaper:report"
)

// HealingEvent is the payload for healing:success and healing:failure.
//
//nolint:govet // fieldalignment: struct layout is human-readable
type HealingEvent struct {
	Domain     HealingDomain `json:"domain"`
	Strategy   StrategyName  `json:"strategy,omitempty"`
	TargetID   string        `json:"target_id"`
	DurationMS int64         `json:"duration_ms"`
	Error      string        `json:"error,omitempty"`
}

// VitalityEvent is the payload for vitality:registered and vitality:rejected.
type VitalityEvent struct {
	ModuleID string         `json:"module_id"`
	Status   VitalityStatus `json:"status,omitempty"`
	Reason   string         `json:"reason,omitempty"`
}

// WorkflowEvent is the payload for workflow:transition.
//
//nolint:govet // fieldalignment: struct layout is human-readable
type WorkflowEvent struct {
	WorkflowID string        `json:"workflow_id"`
	From       WorkflowStage `json:"from"`
	To         WorkflowStage `json:"to"`
	Reason     FailureReason `json:"reason,omitempty"`
}

// ReaperEvent is the payload for reaper:milestone.
type ReaperEvent struct {
	Cycle    uint64 `json:"cycle"`
	Entities int    `json:"entities"`
}
