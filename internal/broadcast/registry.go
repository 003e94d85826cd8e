package broadcast

import (
	"sync"
	"time"

	"github.com/paddockai/apex/internal/telemetry"
)

// DefaultBufferSize is the replay window kept for late-joining feed clients.
const DefaultBufferSize = 120

// Event is the wire payload fanned out to live observers.
type Event struct {
	Type              string         `json:"type"`
	Agent             string         `json:"agent,omitempty"`
	Content           string         `json:"content,omitempty"`
	Round             int            `json:"round,omitempty"`
	DebateID          string         `json:"debate_id,omitempty"`
	Timestamp         time.Time      `json:"timestamp"`
	Verdict           string         `json:"verdict,omitempty"`
	VerdictConfidence float64        `json:"verdict_confidence,omitempty"`
	AgentScores       map[string]int `json:"agent_scores,omitempty"`
	Status            string         `json:"status,omitempty"`
	Topic             string         `json:"topic,omitempty"`
	Category          string         `json:"category,omitempty"`
	DebatesRun        int            `json:"debates_run,omitempty"`
	CooldownSeconds   int            `json:"cooldown_seconds,omitempty"`
}

// Subscriber receives published events. A Send error removes the subscriber
// from the registry; delivery is best-effort with no retry.
type Subscriber interface {
	Send(Event) error
}

// Registry fans events out to per-debate and global subscribers and keeps a
// bounded ring of recent events for replay. Safe for concurrent use.
type Registry struct {
	mu        sync.Mutex
	capacity  int
	buffer    []Event
	start     int
	count     int
	perDebate map[string][]Subscriber
	global    []Subscriber
}

// NewRegistry creates a registry with the given replay capacity.
func NewRegistry(capacity int) *Registry {
	if capacity <= 0 {
		capacity = DefaultBufferSize
	}
	return &Registry{
		capacity:  capacity,
		buffer:    make([]Event, capacity),
		perDebate: make(map[string][]Subscriber),
	}
}

// Publish appends the event to the replay buffer and delivers it to the
// event's debate subscribers plus all global subscribers. Subscribers whose
// Send fails are pruned.
func (r *Registry) Publish(ev Event) {
	telemetry.BroadcastEventsTotal.Inc()
	r.mu.Lock()
	r.push(ev)
	// snapshot before iterating so subscribe/unsubscribe during delivery is safe
	debateSubs := append([]Subscriber(nil), r.perDebate[ev.DebateID]...)
	globalSubs := append([]Subscriber(nil), r.global...)
	r.mu.Unlock()

	var deadDebate, deadGlobal []Subscriber
	for _, s := range debateSubs {
		if err := s.Send(ev); err != nil {
			deadDebate = append(deadDebate, s)
		}
	}
	for _, s := range globalSubs {
		if err := s.Send(ev); err != nil {
			deadGlobal = append(deadGlobal, s)
		}
	}

	if len(deadDebate) == 0 && len(deadGlobal) == 0 {
		return
	}
	r.mu.Lock()
	for _, s := range deadDebate {
		r.perDebate[ev.DebateID] = remove(r.perDebate[ev.DebateID], s)
		if len(r.perDebate[ev.DebateID]) == 0 {
			delete(r.perDebate, ev.DebateID)
		}
	}
	for _, s := range deadGlobal {
		r.global = remove(r.global, s)
	}
	r.mu.Unlock()
}

// Subscribe registers a subscriber for a single debate's events.
func (r *Registry) Subscribe(debateID string, s Subscriber) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.perDebate[debateID] = append(r.perDebate[debateID], s)
}

// Unsubscribe removes a debate subscriber.
func (r *Registry) Unsubscribe(debateID string, s Subscriber) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.perDebate[debateID] = remove(r.perDebate[debateID], s)
	if len(r.perDebate[debateID]) == 0 {
		delete(r.perDebate, debateID)
	}
}

// SubscribeGlobal registers a subscriber for all events.
func (r *Registry) SubscribeGlobal(s Subscriber) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.global = append(r.global, s)
}

// UnsubscribeGlobal removes a global subscriber.
func (r *Registry) UnsubscribeGlobal(s Subscriber) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.global = remove(r.global, s)
}

// Recent returns up to n of the most recent events in publish order.
func (r *Registry) Recent(n int) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n <= 0 || n > r.count {
		n = r.count
	}
	out := make([]Event, 0, n)
	for i := r.count - n; i < r.count; i++ {
		out = append(out, r.buffer[(r.start+i)%r.capacity])
	}
	return out
}

// push appends to the ring, evicting the oldest event at capacity.
// Caller holds r.mu.
func (r *Registry) push(ev Event) {
	if r.count < r.capacity {
		r.buffer[(r.start+r.count)%r.capacity] = ev
		r.count++
		return
	}
	r.buffer[r.start] = ev
	r.start = (r.start + 1) % r.capacity
}

func remove(subs []Subscriber, target Subscriber) []Subscriber {
	for i, s := range subs {
		if s == target {
			return append(subs[:i], subs[i+1:]...)
		}
	}
	return subs
}
