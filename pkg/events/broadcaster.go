// Package events fans out orchestrator lifecycle events to in-process
// subscribers and connected websocket clients. Publishing never blocks the
// conversation loop: slow subscribers drop events.
package events

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Event names emitted by the orchestrator.
const (
	EventSessionCreated     = "session.created"
	EventSessionStarted     = "session.started"
	EventSessionCompleted   = "session.completed"
	EventSessionFailed      = "session.failed"
	EventSessionTimeout     = "session.timeout"
	EventSessionCancelled   = "session.cancelled"
	EventTurnCompleted      = "turn.completed"
	EventEvaluationRecorded = "evaluation.recorded"
	EventLeaderboardUpdated = "leaderboard.updated"
	EventRunCompleted       = "run.completed"
)

// Event is one broadcast message. Seq is monotonically increasing per
// broadcaster so clients can detect drops.
type Event struct {
	Type      string      `json:"type"`
	Event     string      `json:"event"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp int64       `json:"timestamp"`
	Seq       int64       `json:"seq"`
}

// Broadcaster fans events out to every subscriber.
type Broadcaster struct {
	mu          sync.RWMutex
	subscribers map[int]chan Event
	nextID      int
	seq         uint64
	logger      zerolog.Logger
}

// NewBroadcaster creates an event broadcaster.
func NewBroadcaster(logger zerolog.Logger) *Broadcaster {
	return &Broadcaster{
		subscribers: make(map[int]chan Event),
		logger:      logger,
	}
}

// Subscribe registers a new subscriber and returns its channel plus an
// unsubscribe function. The channel is buffered; events are dropped rather
// than block the publisher when the buffer is full.
func (b *Broadcaster) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	ch := make(chan Event, 64)
	b.subscribers[id] = ch

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if sub, ok := b.subscribers[id]; ok {
			delete(b.subscribers, id)
			close(sub)
		}
	}
	return ch, cancel
}

// Publish sends an event to all subscribers.
func (b *Broadcaster) Publish(event string, data interface{}) {
	msg := Event{
		Type:      "event",
		Event:     event,
		Data:      data,
		Timestamp: time.Now().UnixMilli(),
		Seq:       int64(atomic.AddUint64(&b.seq, 1)),
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	dropped := 0
	for _, ch := range b.subscribers {
		select {
		case ch <- msg:
		default:
			dropped++
		}
	}

	if dropped > 0 {
		b.logger.Warn().
			Str("event", event).
			Int64("seq", msg.Seq).
			Int("dropped", dropped).
			Msg("Dropped event for slow subscribers")
	}
}

// SubscriberCount returns the current number of subscribers.
func (b *Broadcaster) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// Close unsubscribes everyone.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, ch := range b.subscribers {
		delete(b.subscribers, id)
		close(ch)
	}
}
