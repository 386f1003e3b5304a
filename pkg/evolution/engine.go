// Package evolution drives mutations through the durable validation
// workflow: sandbox validation, a single heal-and-retry traversal,
// adversarial consensus, an optional human approval gate for high-risk
// changes, and an idempotent commit. Every transition persists before the
// stage's action runs, so a restart resumes from the recorded stage.
package evolution

import (
	"context"
	"crypto/ed25519"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/QAntum-Fortres/QAntum-Mind-Engine-Self-Healing-sub000/pkg/clock"
	"github.com/QAntum-Fortres/QAntum-Mind-Engine-Self-Healing-sub000/pkg/contracts"
	"github.com/QAntum-Fortres/QAntum-Mind-Engine-Self-Healing-sub000/pkg/events"
	"github.com/QAntum-Fortres/QAntum-Mind-Engine-Self-Healing-sub000/pkg/healing"
	"github.com/QAntum-Fortres/QAntum-Mind-Engine-Self-Healing-sub000/pkg/notary"
	"github.com/QAntum-Fortres/QAntum-Mind-Engine-Self-Healing-sub000/pkg/sandbox"
	"github.com/QAntum-Fortres/QAntum-Mind-Engine-Self-Healing-sub000/pkg/store"
)

const (
	// DefaultHighRiskThreshold routes mutations above it to human approval.
	DefaultHighRiskThreshold = 0.8
	// DefaultApprovalTimeout bounds the approval wait.
	DefaultApprovalTimeout = 24 * time.Hour

	workflowKeyPrefix = "wf/"
	appliedKeyPrefix  = "applied/"
	moduleKeyPrefix   = "module/"
)

var (
	// ErrWorkflowNotFound: no persisted instance under the given id.
	ErrWorkflowNotFound = errors.New("evolution: workflow not found")
	// ErrNotAwaitingApproval: Approve called outside the approval gate.
	ErrNotAwaitingApproval = errors.New("evolution: workflow is not awaiting approval")
	// ErrSignatureInvalid: the admin signature did not verify.
	ErrSignatureInvalid = errors.New("evolution: signature invalid")
	// ErrGovernanceTimeout: the approval deadline expired.
	ErrGovernanceTimeout = errors.New("evolution: approval deadline expired")
)

// Verifier is the consensus dependency. Satisfied by *consensus.Engine.
type Verifier interface {
	Verify(ctx context.Context, p contracts.Proposal) (contracts.ConsensusResult, error)
}

// Healer is the repair dependency. Satisfied by *healing.Dispatcher.
type Healer interface {
	Heal(ctx context.Context, req healing.Request) (healing.Result, error)
}

// TokenIssuer mints vitality tokens on successful commits. Satisfied by
// *vitality.Service.
type TokenIssuer interface {
	Issue(moduleID string, status contracts.VitalityStatus) (string, error)
}

// Registrar receives the freshly minted token of a committed module.
// Satisfied by *reaper.Reaper; nil disables registration.
type Registrar interface {
	RegisterVitality(moduleID, token string) error
}

// Notifier alerts the admin channel when a workflow suspends for approval.
type Notifier interface {
	Notify(ctx context.Context, subject, body string) error
}

// ModuleRecord is what a commit writes under module/<target_id>.
//
//nolint:govet // fieldalignment: struct layout is human-readable
type ModuleRecord struct {
	TargetID   string    `json:"target_id"`
	Payload    []byte    `json:"payload"`
	ProofHash  string    `json:"proof_hash"`
	WorkflowID string    `json:"workflow_id"`
	AppliedAt  time.Time `json:"applied_at"`
}

// Engine is the workflow state machine. Instances are independent; the
// engine itself only shares the store, the commit locks, and the running
// set, each guarded separately.
type Engine struct {
	kv        store.KV
	exec      sandbox.Executor
	verifier  Verifier
	healer    Healer
	tokens    TokenIssuer
	registrar Registrar
	notifier  Notifier
	emitter   events.Emitter
	clk       clock.Clock
	log       *slog.Logger

	adminKey        ed25519.PublicKey
	highRisk        float64
	approvalTimeout time.Duration
	sandboxDeadline time.Duration

	commitLocks *keyedMutex

	mu      sync.Mutex
	running map[string]context.CancelFunc
}

// Option configures an Engine.
type Option func(*Engine)

// WithHighRiskThreshold overrides the approval-gate threshold.
func WithHighRiskThreshold(v float64) Option {
	return func(e *Engine) { e.highRisk = v }
}

// WithApprovalTimeout overrides the approval deadline.
func WithApprovalTimeout(d time.Duration) Option {
	return func(e *Engine) { e.approvalTimeout = d }
}

// WithSandboxDeadline overrides the per-execution deadline.
func WithSandboxDeadline(d time.Duration) Option {
	return func(e *Engine) { e.sandboxDeadline = d }
}

// WithRegistrar wires the vitality registrar called after DONE.
func WithRegistrar(r Registrar) Option {
	return func(e *Engine) { e.registrar = r }
}

// WithNotifier wires the approval-gate notifier.
func WithNotifier(n Notifier) Option {
	return func(e *Engine) { e.notifier = n }
}

// NewEngine wires the workflow engine. kv, exec and verifier are required;
// healer and tokens may be nil (healing then exhausts immediately, DONE
// mints no token).
func NewEngine(kv store.KV, exec sandbox.Executor, verifier Verifier, healer Healer, tokens TokenIssuer, adminKey ed25519.PublicKey, emitter events.Emitter, clk clock.Clock, opts ...Option) *Engine {
	if emitter == nil {
		emitter = events.Nop{}
	}
	if clk == nil {
		clk = clock.Wall()
	}
	e := &Engine{
		kv:              kv,
		exec:            exec,
		verifier:        verifier,
		healer:          healer,
		tokens:          tokens,
		emitter:         emitter,
		clk:             clk,
		log:             slog.Default().With("component", "evolution"),
		adminKey:        adminKey,
		highRisk:        DefaultHighRiskThreshold,
		approvalTimeout: DefaultApprovalTimeout,
		sandboxDeadline: sandbox.DefaultLimits().Deadline,
		commitLocks:     newKeyedMutex(),
		running:         make(map[string]context.CancelFunc),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Propose creates a workflow for the mutation and drives it until it
// reaches a terminal stage or suspends at the approval gate. The returned
// instance is a snapshot; consult Stage and FailureReason for the outcome.
func (e *Engine) Propose(ctx context.Context, m contracts.Mutation) (*contracts.WorkflowInstance, error) {
	now := e.clk.Now().UTC()
	inst := &contracts.WorkflowInstance{
		WorkflowID: "wf-" + uuid.NewString(),
		Stage:      contracts.StageNew,
		Mutation:   m,
		RiskScore:  m.RiskScore,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	inst.Record(contracts.StageNew, "created", now)
	if err := e.persist(ctx, inst); err != nil {
		return nil, err
	}
	e.log.Info("workflow created", "workflow_id", inst.WorkflowID, "target", m.TargetID, "risk", m.RiskScore)
	return e.drive(ctx, inst)
}

// Get returns a snapshot of the persisted instance.
func (e *Engine) Get(ctx context.Context, id string) (*contracts.WorkflowInstance, error) {
	raw, err := e.kv.Get(ctx, workflowKeyPrefix+id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrWorkflowNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("load workflow %s: %w", id, err)
	}
	var inst contracts.WorkflowInstance
	if err := json.Unmarshal(raw, &inst); err != nil {
		return nil, fmt.Errorf("decode workflow %s: %w", id, err)
	}
	return &inst, nil
}

// List returns all persisted instances.
func (e *Engine) List(ctx context.Context) ([]*contracts.WorkflowInstance, error) {
	entries, err := e.kv.Scan(ctx, workflowKeyPrefix)
	if err != nil {
		return nil, fmt.Errorf("scan workflows: %w", err)
	}
	out := make([]*contracts.WorkflowInstance, 0, len(entries))
	for _, entry := range entries {
		var inst contracts.WorkflowInstance
		if err := json.Unmarshal(entry.Value, &inst); err != nil {
			e.log.Warn("skipping undecodable workflow record", "key", entry.Key, "error", err)
			continue
		}
		out = append(out, &inst)
	}
	return out, nil
}

// Approve delivers the admin signature to a suspended workflow. A valid
// signature resumes the workflow through commit; an expired deadline fails
// it with GOVERNANCE_TIMEOUT, a bad signature with SIGNATURE_INVALID.
func (e *Engine) Approve(ctx context.Context, id, sigHex string) (*contracts.WorkflowInstance, error) {
	inst, err := e.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if inst.Stage != contracts.StageAwaitingApproval {
		return inst, fmt.Errorf("%w: stage is %s", ErrNotAwaitingApproval, inst.Stage)
	}
	if e.clk.Now().After(inst.ApprovalDeadline) {
		if err := e.fail(ctx, inst, contracts.ReasonGovernanceTimeout, "approval deadline expired"); err != nil {
			return nil, err
		}
		return inst, ErrGovernanceTimeout
	}
	if len(e.adminKey) == 0 || !notary.Verify(inst.Mutation.Payload, sigHex, e.adminKey) {
		if err := e.fail(ctx, inst, contracts.ReasonSignatureInvalid, "admin signature rejected"); err != nil {
			return nil, err
		}
		return inst, ErrSignatureInvalid
	}
	inst.PendingSignature = sigHex
	if err := e.transition(ctx, inst, contracts.StageCommitting, "signature verified"); err != nil {
		return nil, err
	}
	return e.drive(ctx, inst)
}

// Cancel aborts a workflow. VALIDATING, HEALING, CONSENSUS and
// AWAITING_APPROVAL fail with CANCELLED; COMMITTING and terminal stages
// are left untouched.
func (e *Engine) Cancel(ctx context.Context, id string) (*contracts.WorkflowInstance, error) {
	e.mu.Lock()
	cancel, active := e.running[id]
	e.mu.Unlock()
	if active {
		// the drive loop observes the cancellation and records CANCELLED
		cancel()
		return e.Get(ctx, id)
	}

	inst, err := e.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	switch inst.Stage {
	case contracts.StageCommitting, contracts.StageDone, contracts.StageFailed:
		return inst, nil
	}
	if err := e.fail(ctx, inst, contracts.ReasonCancelled, "cancelled by operator"); err != nil {
		return nil, err
	}
	return inst, nil
}

// ExpireApprovals fails every suspended workflow whose deadline passed.
// The maintenance daemon calls this on a tick.
func (e *Engine) ExpireApprovals(ctx context.Context) (int, error) {
	instances, err := e.List(ctx)
	if err != nil {
		return 0, err
	}
	expired := 0
	now := e.clk.Now()
	for _, inst := range instances {
		if inst.Stage != contracts.StageAwaitingApproval || !now.After(inst.ApprovalDeadline) {
			continue
		}
		if err := e.fail(ctx, inst, contracts.ReasonGovernanceTimeout, "approval deadline expired"); err != nil {
			return expired, err
		}
		expired++
	}
	return expired, nil
}

// Resume re-drives every non-terminal workflow from its persisted stage.
// Suspended instances only have their deadline checked.
func (e *Engine) Resume(ctx context.Context) error {
	instances, err := e.List(ctx)
	if err != nil {
		return err
	}
	for _, inst := range instances {
		if inst.Stage.Terminal() {
			continue
		}
		if inst.Stage == contracts.StageAwaitingApproval {
			if e.clk.Now().After(inst.ApprovalDeadline) {
				if err := e.fail(ctx, inst, contracts.ReasonGovernanceTimeout, "approval deadline expired"); err != nil {
					return err
				}
			}
			continue
		}
		e.log.Info("resuming workflow", "workflow_id", inst.WorkflowID, "stage", inst.Stage)
		if _, err := e.drive(ctx, inst); err != nil {
			e.log.Error("resume failed", "workflow_id", inst.WorkflowID, "error", err)
		}
	}
	return nil
}

// Applied reports whether a proof hash is in the applied set.
func (e *Engine) Applied(ctx context.Context, proofHash string) (bool, error) {
	_, err := e.kv.Get(ctx, appliedKeyPrefix+proofHash)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// --- state machine ---

// drive advances the instance until it is terminal or suspends at the
// approval gate. The per-workflow context lets Cancel abort stage I/O.
func (e *Engine) drive(parent context.Context, inst *contracts.WorkflowInstance) (*contracts.WorkflowInstance, error) {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()
	e.mu.Lock()
	e.running[inst.WorkflowID] = cancel
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		delete(e.running, inst.WorkflowID)
		e.mu.Unlock()
	}()

	for !inst.Stage.Terminal() {
		if ctx.Err() != nil {
			if err := e.fail(parent, inst, contracts.ReasonCancelled, "cancelled by operator"); err != nil {
				return nil, err
			}
			break
		}

		var err error
		switch inst.Stage {
		case contracts.StageNew:
			err = e.transition(ctx, inst, contracts.StageValidating, "queued for validation")
		case contracts.StageValidating:
			err = e.validate(ctx, inst)
		case contracts.StageHealing:
			err = e.heal(ctx, inst)
		case contracts.StageConsensus:
			err = e.consensus(ctx, inst)
		case contracts.StageAwaitingApproval:
			// suspended: pure persisted state until Approve or expiry
			return inst.Clone(), nil
		case contracts.StageCommitting:
			err = e.commit(ctx, inst)
		default:
			return nil, fmt.Errorf("evolution: corrupt stage %q for %s", inst.Stage, inst.WorkflowID)
		}
		if err != nil {
			return nil, err
		}
	}
	return inst.Clone(), nil
}

// validate runs the static denylist and the sandboxed execution. A static
// hit is fatal; a recoverable execution failure routes to healing exactly
// once.
func (e *Engine) validate(ctx context.Context, inst *contracts.WorkflowInstance) error {
	if verdict := sandbox.Validate(inst.Mutation); !verdict.Safe {
		return e.fail(ctx, inst, contracts.ReasonStaticForbidden, verdict.Reason)
	}

	res, err := e.exec.Execute(ctx, inst.Mutation, e.sandboxDeadline)
	switch {
	case err == nil && res.OK:
		return e.transition(ctx, inst, contracts.StageConsensus, "validation passed")
	case errors.Is(err, context.Canceled):
		return e.fail(ctx, inst, contracts.ReasonCancelled, "cancelled during validation")
	case errors.Is(err, sandbox.ErrTimeout):
		return e.routeRecoverable(ctx, inst, contracts.ReasonSandboxTimeout, res.Error)
	case errors.Is(err, sandbox.ErrCrash):
		return e.routeRecoverable(ctx, inst, contracts.ReasonSandboxCrash, res.Error)
	case err != nil:
		return fmt.Errorf("sandbox execution for %s: %w", inst.WorkflowID, err)
	default:
		// OK=false without a classified error: treat as a crash
		return e.routeRecoverable(ctx, inst, contracts.ReasonSandboxCrash, res.Error)
	}
}

// routeRecoverable sends the first recoverable failure to healing; a
// second one fails the workflow with the sandbox reason.
func (e *Engine) routeRecoverable(ctx context.Context, inst *contracts.WorkflowInstance, reason contracts.FailureReason, detail string) error {
	if inst.HealAttempted {
		return e.fail(ctx, inst, reason, detail)
	}
	inst.HealAttempted = true
	// the healing stage reads the failure detail back from this record
	return e.transition(ctx, inst, contracts.StageHealing, detail)
}

// heal asks the dispatcher for a patched payload and loops back to
// validation with it.
func (e *Engine) heal(ctx context.Context, inst *contracts.WorkflowInstance) error {
	if e.healer == nil {
		return e.fail(ctx, inst, contracts.ReasonHealExhausted, "no healer configured")
	}
	res, err := e.healer.Heal(ctx, healing.Request{
		Domain:       contracts.DomainLogic,
		TargetID:     inst.Mutation.TargetID,
		Payload:      inst.Mutation.Payload,
		ErrorMessage: e.lastOutcome(inst, contracts.StageHealing),
		FromRetry:    true,
	})
	switch {
	case err != nil && ctx.Err() != nil:
		return e.fail(ctx, inst, contracts.ReasonCancelled, "cancelled during healing")
	case err != nil:
		return e.fail(ctx, inst, contracts.ReasonHealExhausted, err.Error())
	}
	inst.Mutation.Payload = res.Artifact.Payload
	return e.transition(ctx, inst, contracts.StageValidating, fmt.Sprintf("healed via %s", res.Artifact.Strategy))
}

// lastOutcome returns the outcome recorded with the most recent entry for
// stage, empty when absent.
func (e *Engine) lastOutcome(inst *contracts.WorkflowInstance, stage contracts.WorkflowStage) string {
	for i := len(inst.History) - 1; i >= 0; i-- {
		if inst.History[i].Stage == stage {
			return inst.History[i].Outcome
		}
	}
	return ""
}

// consensus submits the mutation to the validator pool and routes the
// outcome: veto fails, high risk suspends for approval, the rest commits.
func (e *Engine) consensus(ctx context.Context, inst *contracts.WorkflowInstance) error {
	result, err := e.verifier.Verify(ctx, e.proposal(inst))
	if errors.Is(err, context.Canceled) {
		return e.fail(ctx, inst, contracts.ReasonCancelled, "cancelled during consensus")
	}
	if err != nil {
		return fmt.Errorf("consensus for %s: %w", inst.WorkflowID, err)
	}
	if !result.Achieved {
		return e.fail(ctx, inst, contracts.ReasonConsensusVeto,
			fmt.Sprintf("vetoed after %d round(s)", result.Rounds))
	}
	inst.ProofHash = result.ProofHash

	if inst.RiskScore > e.highRisk {
		inst.ApprovalDeadline = e.clk.Now().Add(e.approvalTimeout).UTC()
		if err := e.transition(ctx, inst, contracts.StageAwaitingApproval,
			fmt.Sprintf("consensus %s, high risk %.2f", result.Method, inst.RiskScore)); err != nil {
			return err
		}
		e.notifyApproval(ctx, inst)
		return nil
	}
	return e.transition(ctx, inst, contracts.StageCommitting, fmt.Sprintf("consensus %s", result.Method))
}

func (e *Engine) notifyApproval(ctx context.Context, inst *contracts.WorkflowInstance) {
	if e.notifier == nil {
		return
	}
	subject := fmt.Sprintf("approval required: %s", inst.WorkflowID)
	body := fmt.Sprintf("mutation %s of %s (risk %.2f) awaits signature until %s",
		inst.Mutation.ShortHash(), inst.Mutation.TargetID, inst.RiskScore,
		inst.ApprovalDeadline.Format(time.RFC3339))
	if err := e.notifier.Notify(ctx, subject, body); err != nil {
		e.log.Warn("approval notification failed", "workflow_id", inst.WorkflowID, "error", err)
	}
}

// commit applies the mutation exactly once per proof hash. A proof already
// in the applied set completes the workflow without rewriting the module.
func (e *Engine) commit(ctx context.Context, inst *contracts.WorkflowInstance) error {
	if inst.ProofHash == "" {
		return fmt.Errorf("evolution: committing %s without a proof hash", inst.WorkflowID)
	}
	unlock := e.commitLocks.Lock(inst.ProofHash)
	defer unlock()

	applied, err := e.Applied(ctx, inst.ProofHash)
	if err != nil {
		return fmt.Errorf("applied-set check for %s: %w", inst.WorkflowID, err)
	}
	if applied {
		return e.done(ctx, inst, "proof already applied")
	}

	record := ModuleRecord{
		TargetID:   inst.Mutation.TargetID,
		Payload:    inst.Mutation.Payload,
		ProofHash:  inst.ProofHash,
		WorkflowID: inst.WorkflowID,
		AppliedAt:  e.clk.Now().UTC(),
	}
	raw, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode module record for %s: %w", inst.WorkflowID, err)
	}
	// Module record first, applied marker last: the marker is the commit
	// point. A crash between the two leaves the module written but
	// unacknowledged; a retry under the same proof hash rewrites the
	// identical record and then sets the marker, so replays converge.
	// Marker-first would invert that: a crash would acknowledge a module
	// that was never written, and the applied-set check above would then
	// skip the write forever.
	if err := e.kv.Put(ctx, moduleKeyPrefix+inst.Mutation.TargetID, raw); err != nil {
		return e.fail(ctx, inst, contracts.ReasonPersistenceIO, "module write failed")
	}
	if err := e.kv.Put(ctx, appliedKeyPrefix+inst.ProofHash, []byte(inst.WorkflowID)); err != nil {
		return e.fail(ctx, inst, contracts.ReasonPersistenceIO, "applied marker write failed")
	}
	return e.done(ctx, inst, "committed")
}

// done finishes the workflow and hands a fresh HEALTHY token to the
// reaper. Token failures are logged, never fatal: the commit already
// happened.
func (e *Engine) done(ctx context.Context, inst *contracts.WorkflowInstance, outcome string) error {
	if err := e.transition(ctx, inst, contracts.StageDone, outcome); err != nil {
		return err
	}
	if e.tokens == nil {
		return nil
	}
	token, err := e.tokens.Issue(inst.Mutation.TargetID, contracts.StatusHealthy)
	if err != nil {
		e.log.Warn("token mint after commit failed", "workflow_id", inst.WorkflowID, "error", err)
		return nil
	}
	if e.registrar != nil {
		if err := e.registrar.RegisterVitality(inst.Mutation.TargetID, token); err != nil {
			e.log.Warn("vitality registration failed", "workflow_id", inst.WorkflowID, "error", err)
		}
	}
	return nil
}

// --- persistence ---

// transition records the stage change, persists it, then emits the event.
// The persisted record is the durability point: the next stage's action
// must not start before it lands.
func (e *Engine) transition(ctx context.Context, inst *contracts.WorkflowInstance, to contracts.WorkflowStage, outcome string) error {
	from := inst.Stage
	inst.Stage = to
	inst.Record(to, outcome, e.clk.Now().UTC())
	if err := e.persist(ctx, inst); err != nil {
		return err
	}
	e.emitter.Emit(contracts.TopicWorkflowTransition, inst.WorkflowID, contracts.WorkflowEvent{
		WorkflowID: inst.WorkflowID,
		From:       from,
		To:         to,
		Reason:     inst.FailureReason,
	})
	e.log.Debug("workflow transition", "workflow_id", inst.WorkflowID, "from", from, "to", to, "outcome", outcome)
	return nil
}

func (e *Engine) fail(ctx context.Context, inst *contracts.WorkflowInstance, reason contracts.FailureReason, detail string) error {
	// the failure record must land even when the workflow context is the
	// thing that was cancelled
	ctx = context.WithoutCancel(ctx)
	inst.FailureReason = reason
	e.log.Info("workflow failed", "workflow_id", inst.WorkflowID, "reason", reason, "detail", detail)
	outcome := string(reason)
	if detail != "" {
		outcome = fmt.Sprintf("%s: %s", reason, strings.TrimSpace(detail))
	}
	return e.transition(ctx, inst, contracts.StageFailed, outcome)
}

func (e *Engine) persist(ctx context.Context, inst *contracts.WorkflowInstance) error {
	raw, err := json.Marshal(inst)
	if err != nil {
		return fmt.Errorf("encode workflow %s: %w", inst.WorkflowID, err)
	}
	if err := e.kv.Put(ctx, workflowKeyPrefix+inst.WorkflowID, raw); err != nil {
		return fmt.Errorf("persist workflow %s: %w", inst.WorkflowID, err)
	}
	return nil
}

// proposal synthesizes the formal proof broadcast to validators. The
// axioms restate what validation established; the conclusion names the
// exact payload via its digest so refined descendants stay distinct.
func (e *Engine) proposal(inst *contracts.WorkflowInstance) contracts.Proposal {
	return contracts.Proposal{
		ProposalID: inst.WorkflowID,
		Mutation:   inst.Mutation,
		Proof: contracts.FormalProof{
			Axioms: []string{
				"static analysis found no forbidden construct",
				"sandboxed execution completed within limits",
			},
			Derivations: []string{
				fmt.Sprintf("payload %s preserves the contract of %s", inst.Mutation.ShortHash(), inst.Mutation.TargetID),
			},
			Conclusion: fmt.Sprintf("mutation %s of %s is safe to apply", inst.Mutation.ShortHash(), inst.Mutation.TargetID),
		},
	}
}
