package evolution

import (
	"context"
	"crypto/ed25519"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/QAntum-Fortres/QAntum-Mind-Engine-Self-Healing-sub000/pkg/clock"
	"github.com/QAntum-Fortres/QAntum-Mind-Engine-Self-Healing-sub000/pkg/consensus"
	"github.com/QAntum-Fortres/QAntum-Mind-Engine-Self-Healing-sub000/pkg/contracts"
	"github.com/QAntum-Fortres/QAntum-Mind-Engine-Self-Healing-sub000/pkg/events"
	"github.com/QAntum-Fortres/QAntum-Mind-Engine-Self-Healing-sub000/pkg/healing"
	"github.com/QAntum-Fortres/QAntum-Mind-Engine-Self-Healing-sub000/pkg/notary"
	"github.com/QAntum-Fortres/QAntum-Mind-Engine-Self-Healing-sub000/pkg/sandbox"
	"github.com/QAntum-Fortres/QAntum-Mind-Engine-Self-Healing-sub000/pkg/store"
	"github.com/QAntum-Fortres/QAntum-Mind-Engine-Self-Healing-sub000/pkg/vitality"
)

var e0 = time.Date(2026, 5, 2, 8, 30, 0, 0, time.UTC)

type fakeRegistrar struct {
	tokens map[string]string
}

func (f *fakeRegistrar) RegisterVitality(moduleID, token string) error {
	if f.tokens == nil {
		f.tokens = map[string]string{}
	}
	f.tokens[moduleID] = token
	return nil
}

type fakeNotifier struct {
	subjects []string
}

func (f *fakeNotifier) Notify(_ context.Context, subject, _ string) error {
	f.subjects = append(f.subjects, subject)
	return nil
}

type testRig struct {
	engine    *Engine
	kv        store.KV
	clk       *clock.Manual
	tokens    *vitality.Service
	registrar *fakeRegistrar
	notifier  *fakeNotifier
	rec       *events.Recorder
	pub       ed25519.PublicKey
	priv      ed25519.PrivateKey
}

func newRig(t *testing.T, opts ...Option) *testRig {
	t.Helper()
	clk := clock.NewManual(e0)
	kv := store.NewMemoryKV()
	tokens, err := vitality.New([]byte("rig-secret"), clk)
	require.NoError(t, err)
	pub, priv, err := notary.Keypair()
	require.NoError(t, err)

	history := consensus.NewHistory(kv, 0)
	verifier := consensus.NewEngine([]consensus.Validator{
		consensus.NewLocalTwin("twin-0", history),
		consensus.NewLocalTwin("twin-1", history),
		consensus.NewLocalTwin("twin-2", history),
	}, history, events.Nop{}, clk)

	healer := healing.NewDispatcher(nil, nil, tokens, nil, clk).WithSleep(func(time.Duration) {})
	exec := sandbox.NewInterpExecutor(sandbox.DefaultLimits())
	registrar := &fakeRegistrar{}
	notifier := &fakeNotifier{}
	rec := &events.Recorder{}

	base := []Option{
		WithRegistrar(registrar),
		WithNotifier(notifier),
		WithSandboxDeadline(10 * time.Millisecond),
	}
	engine := NewEngine(kv, exec, verifier, healer, tokens, pub, rec, clk, append(base, opts...)...)
	return &testRig{
		engine: engine, kv: kv, clk: clk, tokens: tokens,
		registrar: registrar, notifier: notifier, rec: rec, pub: pub, priv: priv,
	}
}

func mutation(payload string, risk float64) contracts.Mutation {
	return contracts.Mutation{
		TargetID:  "moduleA",
		Payload:   []byte(payload),
		RiskScore: risk,
		CreatedAt: e0,
	}
}

func stages(inst *contracts.WorkflowInstance) []contracts.WorkflowStage {
	out := make([]contracts.WorkflowStage, 0, len(inst.History))
	for _, rec := range inst.History {
		out = append(out, rec.Stage)
	}
	return out
}

func TestCleanMutationRunsToDone(t *testing.T) {
	rig := newRig(t)
	ctx := context.Background()

	inst, err := rig.engine.Propose(ctx, mutation("function add(a, b) { return a + b; }", 0.2))
	require.NoError(t, err)

	assert.Equal(t, contracts.StageDone, inst.Stage)
	assert.Empty(t, inst.FailureReason)
	assert.Equal(t, []contracts.WorkflowStage{
		contracts.StageNew,
		contracts.StageValidating,
		contracts.StageConsensus,
		contracts.StageCommitting,
		contracts.StageDone,
	}, stages(inst))

	// committed module record
	raw, err := rig.kv.Get(ctx, "module/moduleA")
	require.NoError(t, err)
	var record ModuleRecord
	require.NoError(t, json.Unmarshal(raw, &record))
	assert.Equal(t, inst.WorkflowID, record.WorkflowID)
	assert.Equal(t, inst.ProofHash, record.ProofHash)

	applied, err := rig.engine.Applied(ctx, inst.ProofHash)
	require.NoError(t, err)
	assert.True(t, applied)

	// the minted token registered with the reaper and verifies as HEALTHY
	token := rig.registrar.tokens["moduleA"]
	require.NotEmpty(t, token)
	v := rig.tokens.Verify(token, "moduleA")
	require.True(t, v.OK, v.Reason)
	assert.Equal(t, contracts.StatusHealthy, v.Status)
}

func TestStaticHitIsFatal(t *testing.T) {
	rig := newRig(t)

	inst, err := rig.engine.Propose(context.Background(),
		mutation(`require('fs'); fs.unlink('/etc/passwd')`, 0.1))
	require.NoError(t, err)

	assert.Equal(t, contracts.StageFailed, inst.Stage)
	assert.Equal(t, contracts.ReasonStaticForbidden, inst.FailureReason)
	assert.False(t, inst.HealAttempted, "static hits never route to healing")
}

func TestSyntaxCrashHealsOnceThenCommits(t *testing.T) {
	rig := newRig(t)
	ctx := context.Background()

	inst, err := rig.engine.Propose(ctx, mutation("function broken() { return 1; }}", 0.3))
	require.NoError(t, err)

	assert.Equal(t, contracts.StageDone, inst.Stage)
	assert.True(t, inst.HealAttempted)
	assert.Contains(t, stages(inst), contracts.StageHealing)
	assert.Equal(t, "function broken() { return 1; }", string(inst.Mutation.Payload))

	raw, err := rig.kv.Get(ctx, "module/moduleA")
	require.NoError(t, err)
	var record ModuleRecord
	require.NoError(t, json.Unmarshal(raw, &record))
	assert.Equal(t, inst.Mutation.Payload, record.Payload)
}

func TestRunawayLoopHealsViaLoopBound(t *testing.T) {
	rig := newRig(t)

	inst, err := rig.engine.Propose(context.Background(),
		mutation("while(true) { spin(); }", 0.3))
	require.NoError(t, err)

	assert.Equal(t, contracts.StageDone, inst.Stage)
	assert.NotContains(t, string(inst.Mutation.Payload), "while(true)")
}

func TestUnhealableCrashExhausts(t *testing.T) {
	rig := newRig(t)

	inst, err := rig.engine.Propose(context.Background(),
		mutation(`throw new Error("boom")`, 0.3))
	require.NoError(t, err)

	assert.Equal(t, contracts.StageFailed, inst.Stage)
	assert.Equal(t, contracts.ReasonHealExhausted, inst.FailureReason)
}

type stubHealer struct {
	payload []byte
}

func (s stubHealer) Heal(context.Context, healing.Request) (healing.Result, error) {
	return healing.Result{Artifact: healing.Artifact{
		Strategy: contracts.StrategyHeuristicPatch,
		Payload:  s.payload,
	}}, nil
}

func TestSecondRecoverableFailureIsFatal(t *testing.T) {
	rig := newRig(t)
	// the "repair" still crashes: the single heal traversal is spent
	rig.engine.healer = stubHealer{payload: []byte(`throw "still broken"`)}

	inst, err := rig.engine.Propose(context.Background(),
		mutation("function broken() { return 1; }}", 0.3))
	require.NoError(t, err)

	assert.Equal(t, contracts.StageFailed, inst.Stage)
	assert.Equal(t, contracts.ReasonSandboxCrash, inst.FailureReason)
	assert.True(t, inst.HealAttempted)
}

func TestDestructivePayloadVetoedByConsensus(t *testing.T) {
	rig := newRig(t)

	inst, err := rig.engine.Propose(context.Background(),
		mutation(`db.exec("DROP TABLE users;")`, 0.3))
	require.NoError(t, err)

	assert.Equal(t, contracts.StageFailed, inst.Stage)
	assert.Equal(t, contracts.ReasonConsensusVeto, inst.FailureReason)
}

func TestHighRiskSuspendsThenApproves(t *testing.T) {
	rig := newRig(t)
	ctx := context.Background()

	m := mutation("function payout() { return 42; }", 0.95)
	inst, err := rig.engine.Propose(ctx, m)
	require.NoError(t, err)

	assert.Equal(t, contracts.StageAwaitingApproval, inst.Stage)
	assert.Equal(t, e0.Add(DefaultApprovalTimeout), inst.ApprovalDeadline)
	require.Len(t, rig.notifier.subjects, 1)
	assert.Contains(t, rig.notifier.subjects[0], inst.WorkflowID)

	sig := notary.Sign(m.Payload, rig.priv)
	inst, err = rig.engine.Approve(ctx, inst.WorkflowID, sig)
	require.NoError(t, err)
	assert.Equal(t, contracts.StageDone, inst.Stage)
	assert.Equal(t, sig, inst.PendingSignature)
}

func TestApproveRejectsBadSignature(t *testing.T) {
	rig := newRig(t)
	ctx := context.Background()

	inst, err := rig.engine.Propose(ctx, mutation("function a() { return 1; }", 0.9))
	require.NoError(t, err)
	require.Equal(t, contracts.StageAwaitingApproval, inst.Stage)

	_, otherPriv, err := notary.Keypair()
	require.NoError(t, err)
	badSig := notary.Sign(inst.Mutation.Payload, otherPriv)

	inst, err = rig.engine.Approve(ctx, inst.WorkflowID, badSig)
	assert.ErrorIs(t, err, ErrSignatureInvalid)
	assert.Equal(t, contracts.StageFailed, inst.Stage)
	assert.Equal(t, contracts.ReasonSignatureInvalid, inst.FailureReason)
}

func TestApprovalDeadlineExpiry(t *testing.T) {
	rig := newRig(t)
	ctx := context.Background()

	inst, err := rig.engine.Propose(ctx, mutation("function b() { return 2; }", 0.9))
	require.NoError(t, err)
	require.Equal(t, contracts.StageAwaitingApproval, inst.Stage)

	rig.clk.Advance(DefaultApprovalTimeout + time.Minute)
	sig := notary.Sign(inst.Mutation.Payload, rig.priv)
	inst, err = rig.engine.Approve(ctx, inst.WorkflowID, sig)
	assert.ErrorIs(t, err, ErrGovernanceTimeout)
	assert.Equal(t, contracts.ReasonGovernanceTimeout, inst.FailureReason)
}

func TestExpireApprovalsWatcher(t *testing.T) {
	rig := newRig(t)
	ctx := context.Background()

	inst, err := rig.engine.Propose(ctx, mutation("function c() { return 3; }", 0.9))
	require.NoError(t, err)

	expired, err := rig.engine.ExpireApprovals(ctx)
	require.NoError(t, err)
	assert.Zero(t, expired, "deadline not reached yet")

	rig.clk.Advance(DefaultApprovalTimeout + time.Minute)
	expired, err = rig.engine.ExpireApprovals(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, expired)

	got, err := rig.engine.Get(ctx, inst.WorkflowID)
	require.NoError(t, err)
	assert.Equal(t, contracts.ReasonGovernanceTimeout, got.FailureReason)
}

type fixedVerifier struct {
	result contracts.ConsensusResult
}

func (f fixedVerifier) Verify(_ context.Context, p contracts.Proposal) (contracts.ConsensusResult, error) {
	r := f.result
	r.ProposalID = p.ProposalID
	return r, nil
}

func TestCommitIsIdempotentPerProof(t *testing.T) {
	rig := newRig(t)
	rig.engine.verifier = fixedVerifier{result: contracts.ConsensusResult{
		Achieved: true, Method: contracts.MethodImmediate, Rounds: 1, ProofHash: "deadbeef",
	}}
	ctx := context.Background()

	first, err := rig.engine.Propose(ctx, mutation("function d() { return 4; }", 0.1))
	require.NoError(t, err)
	require.Equal(t, contracts.StageDone, first.Stage)

	second, err := rig.engine.Propose(ctx, mutation("function d() { return 4; }", 0.1))
	require.NoError(t, err)
	assert.Equal(t, contracts.StageDone, second.Stage)
	assert.Equal(t, "proof already applied", second.History[len(second.History)-1].Outcome)

	// the module record still belongs to the first commit
	raw, err := rig.kv.Get(ctx, "module/moduleA")
	require.NoError(t, err)
	var record ModuleRecord
	require.NoError(t, json.Unmarshal(raw, &record))
	assert.Equal(t, first.WorkflowID, record.WorkflowID)
}

func TestResumeDrivesPersistedStage(t *testing.T) {
	rig := newRig(t)
	ctx := context.Background()

	// a workflow frozen mid-pipeline, as after a crash between stages
	inst := &contracts.WorkflowInstance{
		WorkflowID: "wf-frozen",
		Stage:      contracts.StageConsensus,
		Mutation:   mutation("function e() { return 5; }", 0.1),
		RiskScore:  0.1,
		CreatedAt:  e0,
		UpdatedAt:  e0,
	}
	raw, err := json.Marshal(inst)
	require.NoError(t, err)
	require.NoError(t, rig.kv.Put(ctx, "wf/wf-frozen", raw))

	require.NoError(t, rig.engine.Resume(ctx))

	got, err := rig.engine.Get(ctx, "wf-frozen")
	require.NoError(t, err)
	assert.Equal(t, contracts.StageDone, got.Stage)
}

func TestCommitResumesAcrossTornMarkerWrite(t *testing.T) {
	rig := newRig(t)
	ctx := context.Background()

	m := mutation("function g() { return 7; }", 0.1)
	record := ModuleRecord{
		TargetID:   m.TargetID,
		Payload:    m.Payload,
		ProofHash:  "feedface",
		WorkflowID: "wf-torn",
		AppliedAt:  e0,
	}
	rawRecord, err := json.Marshal(record)
	require.NoError(t, err)
	require.NoError(t, rig.kv.Put(ctx, "module/moduleA", rawRecord))

	// frozen at COMMITTING with the module record written but the applied
	// marker missing, as after a crash between the two puts
	inst := &contracts.WorkflowInstance{
		WorkflowID: "wf-torn",
		Stage:      contracts.StageCommitting,
		Mutation:   m,
		RiskScore:  0.1,
		ProofHash:  "feedface",
		CreatedAt:  e0,
		UpdatedAt:  e0,
	}
	raw, err := json.Marshal(inst)
	require.NoError(t, err)
	require.NoError(t, rig.kv.Put(ctx, "wf/wf-torn", raw))

	require.NoError(t, rig.engine.Resume(ctx))

	got, err := rig.engine.Get(ctx, "wf-torn")
	require.NoError(t, err)
	assert.Equal(t, contracts.StageDone, got.Stage)

	applied, err := rig.engine.Applied(ctx, "feedface")
	require.NoError(t, err)
	assert.True(t, applied, "the marker lands on replay")

	v, err := rig.kv.Get(ctx, "module/moduleA")
	require.NoError(t, err)
	var gotRecord ModuleRecord
	require.NoError(t, json.Unmarshal(v, &gotRecord))
	assert.Equal(t, m.Payload, gotRecord.Payload)
	assert.Equal(t, "wf-torn", gotRecord.WorkflowID)
}

func TestCancelSuspendedWorkflow(t *testing.T) {
	rig := newRig(t)
	ctx := context.Background()

	inst, err := rig.engine.Propose(ctx, mutation("function f() { return 6; }", 0.9))
	require.NoError(t, err)
	require.Equal(t, contracts.StageAwaitingApproval, inst.Stage)

	got, err := rig.engine.Cancel(ctx, inst.WorkflowID)
	require.NoError(t, err)
	assert.Equal(t, contracts.StageFailed, got.Stage)
	assert.Equal(t, contracts.ReasonCancelled, got.FailureReason)
}

func TestCancelTerminalIsNoop(t *testing.T) {
	rig := newRig(t)
	ctx := context.Background()

	inst, err := rig.engine.Propose(ctx, mutation("function g() { return 7; }", 0.1))
	require.NoError(t, err)
	require.Equal(t, contracts.StageDone, inst.Stage)

	got, err := rig.engine.Cancel(ctx, inst.WorkflowID)
	require.NoError(t, err)
	assert.Equal(t, contracts.StageDone, got.Stage)
	assert.Empty(t, got.FailureReason)
}

func TestGetUnknownWorkflow(t *testing.T) {
	rig := newRig(t)
	_, err := rig.engine.Get(context.Background(), "wf-nope")
	assert.ErrorIs(t, err, ErrWorkflowNotFound)
}

func TestTransitionEventsEmitted(t *testing.T) {
	rig := newRig(t)

	_, err := rig.engine.Propose(context.Background(), mutation("function h() { return 8; }", 0.1))
	require.NoError(t, err)

	evs := rig.rec.ByTopic(contracts.TopicWorkflowTransition)
	require.NotEmpty(t, evs)
	last := evs[len(evs)-1].Payload.(contracts.WorkflowEvent)
	assert.Equal(t, contracts.StageDone, last.To)
}
