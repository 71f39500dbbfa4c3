// Package events implements a trimmed in-process pub/sub bus for session
// lifecycle notifications (session started/restarted/stopped/failed,
// segment failed), consumed by in-process subscribers such as the
// session-history writer in cmd/streamd; no HTTP endpoint exposes the
// bus. Grounded on
// the teacher's internal/events package (Event/EventType/EventBus
// interface, PublishAsync non-blocking dispatch, ring-buffer recent-event
// storage), narrowed from its full scanner/plugin/media event taxonomy to
// just the events this domain emits.
package events

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Type identifies a kind of session-lifecycle event.
type Type string

const (
	SessionStarted   Type = "session.started"
	SessionRestarted Type = "session.restarted"
	SessionStopped   Type = "session.stopped"
	SessionFailed    Type = "session.failed"
	SegmentFailed    Type = "segment.failed"
)

// Event is one published notification.
type Event struct {
	ID        string                 `json:"id"`
	Type      Type                   `json:"type"`
	SceneID   string                 `json:"sceneId"`
	Quality   string                 `json:"quality"`
	Message   string                 `json:"message"`
	Data      map[string]interface{} `json:"data,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// New constructs an Event with a generated ID and current timestamp.
func New(t Type, sceneID, quality, message string) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      t,
		SceneID:   sceneID,
		Quality:   quality,
		Message:   message,
		Timestamp: time.Now(),
	}
}

// Handler receives published events. Publish calls handlers synchronously
// on the publishing goroutine (PublishAsync moves the whole dispatch onto
// one new goroutine), so handlers must not block indefinitely — Bus does
// not enforce a timeout.
type Handler func(Event)

// Bus is an in-process, non-persistent pub/sub dispatcher with a bounded
// ring buffer of recent events, matching the teacher's SystemEventBus responsibilities narrowed
// to this domain (no storage backend, no metrics collector — see
// DESIGN.md).
type Bus struct {
	mu          sync.RWMutex
	subscribers map[string]Handler
	recent      []Event
	maxRecent   int
}

// NewBus constructs a Bus retaining up to maxRecent recent events.
func NewBus(maxRecent int) *Bus {
	if maxRecent <= 0 {
		maxRecent = 200
	}
	return &Bus{
		subscribers: make(map[string]Handler),
		maxRecent:   maxRecent,
	}
}

// Publish dispatches ev synchronously to every current subscriber and
// appends it to the recent-events ring buffer.
func (b *Bus) Publish(ev Event) {
	b.mu.Lock()
	b.recent = append(b.recent, ev)
	if len(b.recent) > b.maxRecent {
		b.recent = b.recent[len(b.recent)-b.maxRecent:]
	}
	handlers := make([]Handler, 0, len(b.subscribers))
	for _, h := range b.subscribers {
		handlers = append(handlers, h)
	}
	b.mu.Unlock()

	for _, h := range handlers {
		h(ev)
	}
}

// PublishAsync dispatches ev without blocking the caller.
func (b *Bus) PublishAsync(ev Event) {
	go b.Publish(ev)
}

// Subscribe registers a handler and returns a subscription ID for
// Unsubscribe.
func (b *Bus) Subscribe(h Handler) string {
	id := uuid.NewString()
	b.mu.Lock()
	b.subscribers[id] = h
	b.mu.Unlock()
	return id
}

// Unsubscribe removes a previously registered handler.
func (b *Bus) Unsubscribe(id string) {
	b.mu.Lock()
	delete(b.subscribers, id)
	b.mu.Unlock()
}

// Recent returns a copy of the most recently published events, oldest
// first.
func (b *Bus) Recent() []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]Event, len(b.recent))
	copy(out, b.recent)
	return out
}
