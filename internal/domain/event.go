package domain

import (
	"context"
	"encoding/json"
	"time"
)

// EventType identifies the kind of event being published.
type EventType string

const (
	// Editor lifecycle.
	EventEditorReady     EventType = "editor.ready"
	EventDocumentChanged EventType = "document.changed"

	// Patch lifecycle.
	EventPatchPreviewOpened EventType = "patch.preview.opened"
	EventPatchCancelled     EventType = "patch.cancelled"
	EventPatchApplied       EventType = "patch.applied"
	// EventPatchTracked carries a TrackedEditPayload for the
	// change-tracking collaborator, attributing the edit to the assistant.
	EventPatchTracked EventType = "patch.tracked"

	// Completion streaming.
	EventStreamStarted   EventType = "stream.started"
	EventStreamDelta     EventType = "stream.delta"
	EventStreamCompleted EventType = "stream.completed"
	EventStreamError     EventType = "stream.error"

	// Skill execution.
	EventSkillExecuted EventType = "skill.executed"
)

// Event is the envelope published on the event bus.
type Event struct {
	Type      EventType       `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	SessionID string          `json:"session_id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// EventHandler is a callback invoked when an event is received.
type EventHandler func(ctx context.Context, event Event)

// EventBus provides publish/subscribe for domain events. Observers register
// explicitly; there is no ambient broadcast.
type EventBus interface {
	// Publish sends an event to all matching subscribers.
	Publish(ctx context.Context, event Event)
	// Subscribe registers a handler for a specific event type and returns
	// an unsubscribe function.
	Subscribe(eventType EventType, handler EventHandler) func()
	// SubscribeAll registers a handler that receives every event.
	SubscribeAll(handler EventHandler) func()
	// Close drains in-flight handlers and prevents new publishes.
	Close()
}
