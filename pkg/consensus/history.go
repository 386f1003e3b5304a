package consensus

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/QAntum-Fortres/QAntum-Mind-Engine-Self-Healing-sub000/pkg/contracts"
	"github.com/QAntum-Fortres/QAntum-Mind-Engine-Self-Healing-sub000/pkg/store"
)

// historyKeyPrefix is where terminal consensus results persist.
const historyKeyPrefix = "consensus/history/"

// DefaultWindow is how many recent entries the consistency check consults.
const DefaultWindow = 100

// HistoryEntry is one terminal consensus outcome.
type HistoryEntry struct {
	ProofHash string                    `json:"proof_hash"`
	Achieved  bool                      `json:"achieved"`
	Method    contracts.ConsensusMethod `json:"method"`
	Rounds    int                       `json:"rounds"`
	Timestamp time.Time                 `json:"timestamp"`
}

// History is the append-only log of consensus outcomes. The in-memory
// window backs the historical-consistency check; every entry also persists
// to the KV store so the window survives restarts.
type History struct {
	mu      sync.Mutex
	entries []HistoryEntry
	window  int
	kv      store.KV
}

// NewHistory creates a history with the given window size backed by kv
// (nil for memory-only).
func NewHistory(kv store.KV, window int) *History {
	if window <= 0 {
		window = DefaultWindow
	}
	return &History{window: window, kv: kv}
}

// Load restores the persisted entries into the window.
func (h *History) Load(ctx context.Context) error {
	if h.kv == nil {
		return nil
	}
	entries, err := h.kv.Scan(ctx, historyKeyPrefix)
	if err != nil {
		return fmt.Errorf("load consensus history: %w", err)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, e := range entries {
		var entry HistoryEntry
		if err := json.Unmarshal(e.Value, &entry); err != nil {
			continue
		}
		h.entries = append(h.entries, entry)
	}
	// the scan comes back in proof-hash order; eviction must stay
	// chronological across restarts
	sort.Slice(h.entries, func(i, j int) bool {
		return h.entries[i].Timestamp.Before(h.entries[j].Timestamp)
	})
	h.trimLocked()
	return nil
}

func (h *History) trimLocked() {
	if len(h.entries) > h.window {
		h.entries = h.entries[len(h.entries)-h.window:]
	}
}

// Contains reports whether proofHash appears in the recent window.
func (h *History) Contains(proofHash string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, e := range h.entries {
		if e.ProofHash == proofHash {
			return true
		}
	}
	return false
}

// Append records a terminal result and persists it.
func (h *History) Append(ctx context.Context, entry HistoryEntry) error {
	h.mu.Lock()
	h.entries = append(h.entries, entry)
	h.trimLocked()
	h.mu.Unlock()

	if h.kv == nil {
		return nil
	}
	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal history entry: %w", err)
	}
	if err := h.kv.Put(ctx, historyKeyPrefix+entry.ProofHash, raw); err != nil {
		return fmt.Errorf("persist history entry: %w", err)
	}
	return nil
}

// Len reports the current window population.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.entries)
}
