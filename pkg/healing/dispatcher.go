// Package healing is the self-repair dispatcher. Given a failure domain
// and its context it walks a per-domain strategy chain until one produces
// a repair artifact, governs network strategies with per-node circuit
// breakers, and mints a vitality token for the healed module on success.
package healing

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/QAntum-Fortres/QAntum-Mind-Engine-Self-Healing-sub000/pkg/clock"
	"github.com/QAntum-Fortres/QAntum-Mind-Engine-Self-Healing-sub000/pkg/contracts"
	"github.com/QAntum-Fortres/QAntum-Mind-Engine-Self-Healing-sub000/pkg/events"
)

var (
	// ErrHealExhausted: every strategy in the domain's chain failed.
	ErrHealExhausted = errors.New("healing: strategies exhausted")
	// ErrNotImplemented: the DATABASE domain is reserved.
	ErrNotImplemented = errors.New("healing: domain not implemented")
)

// TokenIssuer mints vitality tokens for healed modules. Satisfied by
// *vitality.Service.
type TokenIssuer interface {
	Issue(moduleID string, status contracts.VitalityStatus) (string, error)
}

// Request describes one failure to repair. FromRetry marks the
// heal-and-retry path, which downgrades the minted token to RECOVERING.
type Request struct {
	Domain       contracts.HealingDomain
	TargetID     string
	Payload      []byte
	ErrorMessage string
	FromRetry    bool
}

// Artifact is a successful repair: the strategy that produced it and its
// output bytes (a patched payload, a relocation plan, a stub).
type Artifact struct {
	Strategy contracts.StrategyName `json:"strategy"`
	Payload  []byte                 `json:"payload"`
	Node     string                 `json:"node,omitempty"`
}

// Result pairs the artifact with the vitality token minted for the target.
type Result struct {
	Artifact Artifact
	Token    string
	Duration time.Duration
}

// DomainStats are the per-domain counters the dispatcher keeps.
type DomainStats struct {
	Attempts  uint64 `json:"attempts"`
	Successes uint64 `json:"successes"`
	Failures  uint64 `json:"failures"`
}

type strategyFn func(ctx context.Context, req Request) (Artifact, error)

type strategyEntry struct {
	name contracts.StrategyName
	fn   strategyFn
}

// Dispatcher routes failures to domain strategy chains.
type Dispatcher struct {
	nodes     *NodeRegistry
	predictor Predictor
	tokens    TokenIssuer
	emit      events.Emitter
	clk       clock.Clock
	sleep     func(time.Duration)
	log       *slog.Logger

	table map[contracts.HealingDomain][]strategyEntry

	mu    sync.Mutex
	stats map[contracts.HealingDomain]*DomainStats
}

// NewDispatcher wires the dispatcher. predictor may be nil (pure default
// order); emit may be nil (no events).
func NewDispatcher(nodes *NodeRegistry, predictor Predictor, tokens TokenIssuer, emit events.Emitter, clk clock.Clock) *Dispatcher {
	if clk == nil {
		clk = clock.Wall()
	}
	if emit == nil {
		emit = events.Nop{}
	}
	d := &Dispatcher{
		nodes:     nodes,
		predictor: predictor,
		tokens:    tokens,
		emit:      emit,
		clk:       clk,
		sleep:     time.Sleep,
		log:       slog.Default().With("component", "healing"),
		stats:     make(map[contracts.HealingDomain]*DomainStats),
	}
	d.table = map[contracts.HealingDomain][]strategyEntry{
		contracts.DomainUI: {
			{contracts.StrategyNeuralMapRelocate, d.neuralMapRelocate},
			{contracts.StrategySemanticReconstruct, d.semanticReconstruct},
		},
		contracts.DomainNetwork: {
			{contracts.StrategyResurrectNode, d.resurrectNode},
			{contracts.StrategyRotateNode, d.rotateNode},
			{contracts.StrategyFallbackStub, d.fallbackStub},
		},
		contracts.DomainLogic: {
			{contracts.StrategyHeuristicPatch, d.heuristicPatch},
		},
	}
	return d
}

// WithSleep overrides the inter-attempt sleep for tests.
func (d *Dispatcher) WithSleep(sleep func(time.Duration)) *Dispatcher {
	d.sleep = sleep
	return d
}

// Stats returns a copy of the per-domain counters.
func (d *Dispatcher) Stats() map[contracts.HealingDomain]DomainStats {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make(map[contracts.HealingDomain]DomainStats, len(d.stats))
	for k, v := range d.stats {
		out[k] = *v
	}
	return out
}

func (d *Dispatcher) bump(domain contracts.HealingDomain, f func(*DomainStats)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	s := d.stats[domain]
	if s == nil {
		s = &DomainStats{}
		d.stats[domain] = s
	}
	f(s)
}

// attemptBackoff spaces strategy attempts with deterministic jitter so a
// replayed failure schedules identically.
func attemptBackoff(domain contracts.HealingDomain, attempt int) time.Duration {
	base := time.Duration(25<<attempt) * time.Millisecond
	seed := sha256.Sum256([]byte(fmt.Sprintf("%s:%d", domain, attempt)))
	jitter := time.Duration(binary.BigEndian.Uint64(seed[:8])%25) * time.Millisecond
	return base + jitter
}

// chain returns the strategy order for the request, predictor-first.
func (d *Dispatcher) chain(req Request) []strategyEntry {
	defaults := d.table[req.Domain]
	if d.predictor == nil {
		return defaults
	}
	suggested, err := d.predictor.Suggest(req.Domain, Classify(req.ErrorMessage))
	if err != nil {
		return defaults
	}
	var hit *strategyEntry
	for i := range defaults {
		if defaults[i].name == suggested {
			hit = &defaults[i]
			break
		}
	}
	if hit == nil {
		// predictor suggested a strategy outside this domain's table
		return defaults
	}
	out := []strategyEntry{*hit}
	for _, e := range defaults {
		if e.name != hit.name {
			out = append(out, e)
		}
	}
	return out
}

// Heal walks the domain's strategy chain and returns the first artifact
// produced, alongside a vitality token for the target module.
func (d *Dispatcher) Heal(ctx context.Context, req Request) (Result, error) {
	if req.Domain == contracts.DomainDatabase {
		return Result{}, fmt.Errorf("%w: %s", ErrNotImplemented, req.Domain)
	}
	if _, ok := d.table[req.Domain]; !ok {
		return Result{}, fmt.Errorf("healing: unknown domain %q", req.Domain)
	}

	start := d.clk.Now()
	sig := Classify(req.ErrorMessage)
	d.bump(req.Domain, func(s *DomainStats) { s.Attempts++ })

	var lastErr error
	for i, entry := range d.chain(req) {
		if i > 0 {
			d.sleep(attemptBackoff(req.Domain, i-1))
		}
		if ctx.Err() != nil {
			lastErr = ctx.Err()
			break
		}

		artifact, err := entry.fn(ctx, req)
		if err != nil {
			d.log.Debug("strategy failed", "domain", req.Domain, "strategy", entry.name, "error", err)
			lastErr = err
			continue
		}

		duration := d.clk.Now().Sub(start)
		d.bump(req.Domain, func(s *DomainStats) { s.Successes++ })
		if hp, ok := d.predictor.(*HistoryPredictor); ok && hp != nil {
			hp.RecordSuccess(req.Domain, sig, entry.name)
		}

		status := contracts.StatusHealthy
		if req.FromRetry {
			status = contracts.StatusRecovering
		}
		var token string
		if d.tokens != nil && req.TargetID != "" {
			token, err = d.tokens.Issue(req.TargetID, status)
			if err != nil {
				d.log.Warn("token mint failed after heal", "target", req.TargetID, "error", err)
			}
		}

		d.emit.Emit(contracts.TopicHealingSuccess, req.TargetID, contracts.HealingEvent{
			Domain:     req.Domain,
			Strategy:   entry.name,
			TargetID:   req.TargetID,
			DurationMS: duration.Milliseconds(),
		})
		return Result{Artifact: artifact, Token: token, Duration: duration}, nil
	}

	d.bump(req.Domain, func(s *DomainStats) { s.Failures++ })
	errMsg := ""
	if lastErr != nil {
		errMsg = lastErr.Error()
	}
	d.emit.Emit(contracts.TopicHealingFailure, req.TargetID, contracts.HealingEvent{
		Domain:     req.Domain,
		TargetID:   req.TargetID,
		DurationMS: d.clk.Now().Sub(start).Milliseconds(),
		Error:      errMsg,
	})
	if lastErr != nil {
		return Result{}, fmt.Errorf("%w: last strategy error: %v", ErrHealExhausted, lastErr)
	}
	return Result{}, ErrHealExhausted
}

// --- UI strategies ---

// neuralMapRelocate repositions a known UI element: it only applies to
// visually-classified failures where a relocation plan makes sense.
func (d *Dispatcher) neuralMapRelocate(_ context.Context, req Request) (Artifact, error) {
	if Classify(req.ErrorMessage) != contracts.SignatureVisual {
		return Artifact{}, fmt.Errorf("relocation inapplicable: error is not visual")
	}
	plan, _ := json.Marshal(map[string]string{
		"action": "relocate",
		"target": req.TargetID,
		"hint":   req.ErrorMessage,
	})
	return Artifact{Strategy: contracts.StrategyNeuralMapRelocate, Payload: plan}, nil
}

// semanticReconstruct rebuilds a minimal stand-in for the broken element.
func (d *Dispatcher) semanticReconstruct(_ context.Context, req Request) (Artifact, error) {
	stub, _ := json.Marshal(map[string]string{
		"action": "reconstruct",
		"target": req.TargetID,
	})
	return Artifact{Strategy: contracts.StrategySemanticReconstruct, Payload: stub}, nil
}

// --- NETWORK strategies ---

// resurrectNode revives a circuit-broken endpoint whose penalty elapsed.
func (d *Dispatcher) resurrectNode(_ context.Context, req Request) (Artifact, error) {
	if d.nodes == nil {
		return Artifact{}, fmt.Errorf("no node registry configured")
	}
	node := d.nodes.Revivable()
	if node == nil {
		return Artifact{}, fmt.Errorf("no revivable node")
	}
	d.nodes.RecordSuccess(node, 0)
	return Artifact{Strategy: contracts.StrategyResurrectNode, Payload: req.Payload, Node: node.NodeID}, nil
}

// rotateNode picks the next healthy node in round-robin order.
func (d *Dispatcher) rotateNode(_ context.Context, req Request) (Artifact, error) {
	if d.nodes == nil {
		return Artifact{}, fmt.Errorf("no node registry configured")
	}
	node, err := d.nodes.Next()
	if err != nil {
		return Artifact{}, err
	}
	d.nodes.RecordSuccess(node, 0)
	return Artifact{Strategy: contracts.StrategyRotateNode, Payload: req.Payload, Node: node.NodeID}, nil
}

// fallbackStub answers with a degraded static response when no endpoint
// is reachable.
func (d *Dispatcher) fallbackStub(_ context.Context, req Request) (Artifact, error) {
	stub, _ := json.Marshal(map[string]string{
		"action": "fallback",
		"target": req.TargetID,
		"mode":   "degraded",
	})
	return Artifact{Strategy: contracts.StrategyFallbackStub, Payload: stub}, nil
}

// --- LOGIC strategy ---

// heuristicPatch applies minimal rewrites for well-known failure classes.
// Unknown classes fail so the workflow surfaces HEAL_EXHAUSTED instead of
// committing an unpatched payload.
func (d *Dispatcher) heuristicPatch(_ context.Context, req Request) (Artifact, error) {
	switch Classify(req.ErrorMessage) {
	case contracts.SignatureSyntax:
		patched, changed := balanceBraces(req.Payload)
		if !changed {
			return Artifact{}, fmt.Errorf("no applicable syntax patch")
		}
		return Artifact{Strategy: contracts.StrategyHeuristicPatch, Payload: patched}, nil
	case contracts.SignatureTimeout:
		patched, changed := boundLoops(req.Payload)
		if !changed {
			return Artifact{}, fmt.Errorf("no applicable loop patch")
		}
		return Artifact{Strategy: contracts.StrategyHeuristicPatch, Payload: patched}, nil
	default:
		return Artifact{}, fmt.Errorf("no heuristic for %s", Classify(req.ErrorMessage))
	}
}
