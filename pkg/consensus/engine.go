// Package consensus runs adversarial validation of mutation proposals.
// Proposals broadcast to a pool of validators; dissent with concrete
// counterexamples drives a bounded dialectic refinement loop, soft dissent
// falls to an arbiter quorum, and every terminal outcome lands in the
// persisted history that feeds the validators' consistency check.
package consensus

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/QAntum-Fortres/QAntum-Mind-Engine-Self-Healing-sub000/pkg/clock"
	"github.com/QAntum-Fortres/QAntum-Mind-Engine-Self-Healing-sub000/pkg/contracts"
	"github.com/QAntum-Fortres/QAntum-Mind-Engine-Self-Healing-sub000/pkg/events"
)

const (
	// DefaultMinAgree is the acceptance ratio the arbiter path requires.
	DefaultMinAgree = 0.7
	// DefaultMaxRounds bounds the dialectic refinement loop.
	DefaultMaxRounds = 5
	// DefaultCallTimeout bounds each validator call during a broadcast.
	DefaultCallTimeout = 30 * time.Second

	// unreachableConfidence is assigned to the synthesized CHALLENGE a
	// silent validator contributes. Low enough to register as dissent,
	// too weak to carry a veto on its own.
	unreachableConfidence = 0.3
)

// Engine coordinates one consensus decision at a time per proposal. It is
// safe for concurrent use.
type Engine struct {
	validators  []Validator
	history     *History
	emitter     events.Emitter
	clk         clock.Clock
	log         *slog.Logger
	minAgree    float64
	maxRounds   int
	callTimeout time.Duration
}

// Option configures an Engine.
type Option func(*Engine)

// WithMinAgree overrides the arbiter acceptance ratio.
func WithMinAgree(ratio float64) Option {
	return func(e *Engine) { e.minAgree = ratio }
}

// WithMaxRounds overrides the dialectic round bound.
func WithMaxRounds(n int) Option {
	return func(e *Engine) { e.maxRounds = n }
}

// WithCallTimeout overrides the per-validator broadcast timeout.
func WithCallTimeout(d time.Duration) Option {
	return func(e *Engine) { e.callTimeout = d }
}

// NewEngine builds an engine over the given validator pool. history must
// not be nil; emitter may be.
func NewEngine(validators []Validator, history *History, emitter events.Emitter, clk clock.Clock, opts ...Option) *Engine {
	if emitter == nil {
		emitter = events.Nop{}
	}
	if clk == nil {
		clk = clock.Wall()
	}
	e := &Engine{
		validators:  validators,
		history:     history,
		emitter:     emitter,
		clk:         clk,
		log:         slog.Default().With("component", "consensus"),
		minAgree:    DefaultMinAgree,
		maxRounds:   DefaultMaxRounds,
		callTimeout: DefaultCallTimeout,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Verify drives a proposal to a terminal consensus result. The result is
// recorded in history before it returns.
func (e *Engine) Verify(ctx context.Context, p contracts.Proposal) (contracts.ConsensusResult, error) {
	var result contracts.ConsensusResult
	if len(e.validators) == 0 {
		result = e.degradedVerify(p)
	} else {
		result = e.fullVerify(ctx, p)
	}

	entry := HistoryEntry{
		ProofHash: result.ProofHash,
		Achieved:  result.Achieved,
		Method:    result.Method,
		Rounds:    result.Rounds,
		Timestamp: result.DecidedAt,
	}
	if err := e.history.Append(ctx, entry); err != nil {
		return contracts.ConsensusResult{}, fmt.Errorf("record consensus outcome: %w", err)
	}
	e.emitter.Emit(contracts.TopicConsensusComplete, result.ProposalID, result)
	e.log.Info("consensus decided",
		"proposal_id", result.ProposalID,
		"achieved", result.Achieved,
		"method", result.Method,
		"rounds", result.Rounds)
	return result, nil
}

// degradedVerify is the zero-validator fallback: a single ephemeral local
// twin runs the four checks directly, and three of four is good enough
// for a degraded ARBITER acceptance.
func (e *Engine) degradedVerify(p contracts.Proposal) contracts.ConsensusResult {
	e.log.Warn("no validators configured, running degraded local check", "proposal_id", p.ProposalID)
	twin := NewLocalTwin("local-fallback", e.history)
	resp, _ := twin.Evaluate(context.Background(), p)

	result := contracts.ConsensusResult{
		ProposalID: p.ProposalID,
		Method:     contracts.MethodVeto,
		Rounds:     1,
		ProofHash:  ProofHash(p.Proof),
		DecidedAt:  e.clk.Now().UTC(),
	}
	if resp.Confidence >= 0.75 {
		result.Achieved = true
		result.Method = contracts.MethodArbiter
	}
	return result
}

func (e *Engine) fullVerify(ctx context.Context, p contracts.Proposal) contracts.ConsensusResult {
	current := p
	for round := 1; ; round++ {
		responses := e.broadcast(ctx, current)

		accepts := 0
		var challenges []contracts.TwinResponse
		hardDissent := false
		for _, r := range responses {
			switch r.Verdict {
			case contracts.VerdictAccept:
				accepts++
			case contracts.VerdictReject:
				hardDissent = true
				challenges = append(challenges, r)
			case contracts.VerdictChallenge:
				if r.Counterexample != "" {
					hardDissent = true
				}
				challenges = append(challenges, r)
			}
		}
		ratio := float64(accepts) / float64(len(responses))

		done := func(achieved bool, method contracts.ConsensusMethod) contracts.ConsensusResult {
			return contracts.ConsensusResult{
				ProposalID: current.ProposalID,
				Achieved:   achieved,
				Method:     method,
				Rounds:     round,
				ProofHash:  ProofHash(current.Proof),
				DecidedAt:  e.clk.Now().UTC(),
			}
		}

		switch {
		case accepts == len(responses):
			if round == 1 {
				return done(true, contracts.MethodImmediate)
			}
			return done(true, contracts.MethodDialectic)
		case !hardDissent && ratio >= e.minAgree:
			// soft dissent only: quorum carries it
			return done(true, contracts.MethodArbiter)
		}

		if round >= e.maxRounds {
			return done(false, contracts.MethodVeto)
		}

		refined, changed := refine(current, challenges, round)
		if !changed {
			// nothing concrete to refute: further rounds would replay
			// the same broadcast verbatim
			return done(false, contracts.MethodVeto)
		}
		e.log.Debug("dialectic refinement",
			"proposal_id", current.ProposalID,
			"round", round,
			"refined_id", refined.ProposalID)
		current = refined
	}
}

// broadcast fans the proposal out to every validator concurrently. A
// validator that errors or outlives the call timeout contributes a
// synthesized low-confidence CHALLENGE instead of being skipped, so a
// flaky pool degrades toward dissent rather than toward false quorum.
func (e *Engine) broadcast(ctx context.Context, p contracts.Proposal) []contracts.TwinResponse {
	responses := make([]contracts.TwinResponse, len(e.validators))
	var wg sync.WaitGroup
	for i, v := range e.validators {
		wg.Add(1)
		go func(i int, v Validator) {
			defer wg.Done()
			callCtx, cancel := context.WithTimeout(ctx, e.callTimeout)
			defer cancel()
			resp, err := v.Evaluate(callCtx, p)
			if err != nil {
				e.log.Warn("validator unreachable", "validator", v.ID(), "error", err)
				resp = contracts.TwinResponse{
					ResponseID:     v.ID() + ":" + p.ProposalID,
					ProposalID:     p.ProposalID,
					Verdict:        contracts.VerdictChallenge,
					Confidence:     unreachableConfidence,
					ReasoningTrace: []string{"unreachable"},
				}
			}
			responses[i] = resp
		}(i, v)
	}
	wg.Wait()
	return responses
}

// refine builds the next-round proposal by negating every distinct
// counterexample the challengers produced. Axioms already present are not
// re-added; changed is false when no challenge carried a counterexample.
func refine(p contracts.Proposal, challenges []contracts.TwinResponse, round int) (contracts.Proposal, bool) {
	existing := make(map[string]bool, len(p.Proof.Axioms))
	for _, ax := range p.Proof.Axioms {
		existing[ax] = true
	}

	refined := p
	refined.ProposalID = p.RefinedID(round)
	refined.Proof.Axioms = append([]string(nil), p.Proof.Axioms...)

	changed := false
	for _, ch := range challenges {
		if ch.Counterexample == "" {
			continue
		}
		axiom := fmt.Sprintf("NOT(%s)", ch.Counterexample)
		if existing[axiom] {
			continue
		}
		existing[axiom] = true
		refined.Proof.Axioms = append(refined.Proof.Axioms, axiom)
		changed = true
	}
	return refined, changed
}
