package healing

import (
	"errors"
	"sync"
	"time"

	"github.com/QAntum-Fortres/QAntum-Mind-Engine-Self-Healing-sub000/pkg/clock"
)

// ErrCircuitOpen means every registered node is inside its penalty window.
// The dispatcher treats it as "try the next strategy", never surfacing it
// to the workflow.
var ErrCircuitOpen = errors.New("healing: all nodes circuit-open")

const (
	// DefaultFailureThreshold trips a node's breaker.
	DefaultFailureThreshold = 3
	// DefaultPenalty is how long a tripped node stays dead.
	DefaultPenalty = 5 * time.Minute
)

// CircuitNode tracks the breaker state of one network endpoint. Fields are
// guarded by the node's own mutex so breakers update independently.
type CircuitNode struct {
	mu                  sync.Mutex
	NodeID              string
	ConsecutiveFailures int
	DeadUntil           time.Time
	TotalLatency        time.Duration
	RequestCount        uint64
}

// NodeRegistry is the round-robin pool of endpoints NETWORK healing
// rotates across.
type NodeRegistry struct {
	mu        sync.Mutex
	nodes     []*CircuitNode
	cursor    int
	threshold int
	penalty   time.Duration
	clk       clock.Clock
}

// NewNodeRegistry creates a registry with the default breaker policy.
func NewNodeRegistry(clk clock.Clock, nodeIDs ...string) *NodeRegistry {
	if clk == nil {
		clk = clock.Wall()
	}
	r := &NodeRegistry{
		threshold: DefaultFailureThreshold,
		penalty:   DefaultPenalty,
		clk:       clk,
	}
	for _, id := range nodeIDs {
		r.nodes = append(r.nodes, &CircuitNode{NodeID: id})
	}
	return r
}

// WithPolicy overrides threshold and penalty.
func (r *NodeRegistry) WithPolicy(threshold int, penalty time.Duration) *NodeRegistry {
	r.threshold = threshold
	r.penalty = penalty
	return r
}

// Add registers an endpoint.
func (r *NodeRegistry) Add(nodeID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nodes = append(r.nodes, &CircuitNode{NodeID: nodeID})
}

// Len reports the pool size.
func (r *NodeRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.nodes)
}

func (n *CircuitNode) aliveAt(now time.Time) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return !n.DeadUntil.After(now)
}

// Next returns the next healthy node in round-robin order. Nodes whose
// penalty has elapsed are revived lazily here: selection is what clears
// DeadUntil, not a background timer.
func (r *NodeRegistry) Next() (*CircuitNode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clk.Now()
	for i := 0; i < len(r.nodes); i++ {
		node := r.nodes[r.cursor%len(r.nodes)]
		r.cursor++
		if node.aliveAt(now) {
			return node, nil
		}
	}
	return nil, ErrCircuitOpen
}

// Revivable returns the first dead node whose penalty has elapsed at the
// current time, used by the RESURRECT_NODE strategy.
func (r *NodeRegistry) Revivable() *CircuitNode {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clk.Now()
	for _, node := range r.nodes {
		node.mu.Lock()
		wasDead := !node.DeadUntil.IsZero() && node.ConsecutiveFailures >= r.threshold
		elapsed := !node.DeadUntil.After(now)
		node.mu.Unlock()
		if wasDead && elapsed {
			return node
		}
	}
	return nil
}

// RecordSuccess notes a successful call. The failure counter steps down by
// one rather than resetting, so a flapping node re-trips quickly.
func (r *NodeRegistry) RecordSuccess(node *CircuitNode, latency time.Duration) {
	node.mu.Lock()
	defer node.mu.Unlock()
	if node.ConsecutiveFailures > 0 {
		node.ConsecutiveFailures--
	}
	node.TotalLatency += latency
	node.RequestCount++
}

// RecordFailure notes a failed call and trips the breaker at threshold.
func (r *NodeRegistry) RecordFailure(node *CircuitNode) {
	node.mu.Lock()
	defer node.mu.Unlock()
	node.ConsecutiveFailures++
	node.RequestCount++
	if node.ConsecutiveFailures >= r.threshold {
		node.DeadUntil = r.clk.Now().Add(r.penalty)
	}
}

// Snapshot returns a copy of every node's counters for diagnostics.
func (r *NodeRegistry) Snapshot() []CircuitNode {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]CircuitNode, 0, len(r.nodes))
	for _, n := range r.nodes {
		n.mu.Lock()
		out = append(out, CircuitNode{
			NodeID:              n.NodeID,
			ConsecutiveFailures: n.ConsecutiveFailures,
			DeadUntil:           n.DeadUntil,
			TotalLatency:        n.TotalLatency,
			RequestCount:        n.RequestCount,
		})
		n.mu.Unlock()
	}
	return out
}
