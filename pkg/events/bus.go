// Package events is the in-process pub/sub bus the core publishes lifecycle
// signals on: healing outcomes, vitality rejections, consensus completions,
// workflow transitions, reaper milestones.
//
// Publishing never blocks. A subscriber that stops draining loses events
// rather than stalling the pipeline that produced them.
package events

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/QAntum-Fortres/QAntum-Mind-Engine-Self-Healing-sub000/pkg/clock"
)

// Event is the envelope delivered to subscribers. Payload is one of the
// typed event structs from pkg/contracts, keyed by Topic.
//
//nolint:govet // fieldalignment: struct layout is human-readable
type Event struct {
	ID      string    `json:"id"`
	Topic   string    `json:"topic"`
	Subject string    `json:"subject,omitempty"`
	Time    time.Time `json:"time"`
	Payload any       `json:"payload"`
}

// Emitter is the publishing half of the bus. Components hold this interface
// so tests can capture emissions without a live bus.
type Emitter interface {
	Emit(topic, subject string, payload any)
}

// Bus is an in-process topic bus with buffered, drop-on-full delivery.
type Bus struct {
	mu         sync.RWMutex
	subs       map[string][]chan Event
	allSubs    []chan Event
	clk        clock.Clock
	log        *slog.Logger
	bufferSize int
	dropped    atomic.Uint64
}

// NewBus creates a bus with a 100-event buffer per subscriber.
func NewBus(clk clock.Clock) *Bus {
	if clk == nil {
		clk = clock.Wall()
	}
	return &Bus{
		subs:       make(map[string][]chan Event),
		clk:        clk,
		log:        slog.Default().With("component", "events"),
		bufferSize: 100,
	}
}

// Subscribe returns a channel receiving events for the given topics, or all
// events when no topic is given. The caller must Unsubscribe when done.
func (b *Bus) Subscribe(topics ...string) chan Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, b.bufferSize)
	if len(topics) == 0 {
		b.allSubs = append(b.allSubs, ch)
		return ch
	}
	for _, t := range topics {
		b.subs[t] = append(b.subs[t], ch)
	}
	return ch
}

// Unsubscribe detaches and closes ch.
func (b *Bus) Unsubscribe(ch chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for t, subs := range b.subs {
		b.subs[t] = without(subs, ch)
	}
	b.allSubs = without(b.allSubs, ch)
	close(ch)
}

func without(subs []chan Event, ch chan Event) []chan Event {
	out := subs[:0]
	for _, s := range subs {
		if s != ch {
			out = append(out, s)
		}
	}
	return out
}

// Emit builds an envelope and publishes it.
func (b *Bus) Emit(topic, subject string, payload any) {
	b.Publish(Event{
		ID:      uuid.NewString(),
		Topic:   topic,
		Subject: subject,
		Time:    b.clk.Now(),
		Payload: payload,
	})
}

// Publish delivers to every matching subscriber without blocking. Full
// subscriber buffers drop the event.
func (b *Bus) Publish(ev Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.subs[ev.Topic] {
		select {
		case ch <- ev:
		default:
			b.dropped.Add(1)
			b.log.Warn("subscriber buffer full, event dropped", "topic", ev.Topic)
		}
	}
	for _, ch := range b.allSubs {
		select {
		case ch <- ev:
		default:
			b.dropped.Add(1)
		}
	}
}

// Dropped reports how many events were discarded on full buffers.
func (b *Bus) Dropped() uint64 { return b.dropped.Load() }

// SubscriberCount reports active subscriptions, for diagnostics.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	n := len(b.allSubs)
	for _, subs := range b.subs {
		n += len(subs)
	}
	return n
}

// Nop is an Emitter that discards everything.
type Nop struct{}

func (Nop) Emit(string, string, any) {}

// Recorder captures emissions for tests.
type Recorder struct {
	mu     sync.Mutex
	Events []Event
}

func (r *Recorder) Emit(topic, subject string, payload any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Events = append(r.Events, Event{Topic: topic, Subject: subject, Payload: payload})
}

// ByTopic returns the captured events for one topic.
func (r *Recorder) ByTopic(topic string) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, ev := range r.Events {
		if ev.Topic == topic {
			out = append(out, ev)
		}
	}
	return out
}
