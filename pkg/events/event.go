package events

import (
	"context"
	"time"
)

const (
	TypeSessionCreated   = "session.created"
	TypeSessionExpired   = "session.expired"
	TypeDocumentIngested = "document.ingested"
)

// Event defines the contract for all system events.
type Event interface {
	// EventType returns the unique code for this event (e.g., "session.created").
	EventType() string

	// Payload returns the data associated with the event.
	Payload() map[string]interface{}

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// Publisher delivers events to whatever bus is configured.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// BaseEvent is the only Event implementation the service needs.
type BaseEvent struct {
	Type       string
	Data       map[string]interface{}
	OccurredAt time.Time
}

func (e BaseEvent) EventType() string {
	return e.Type
}

func (e BaseEvent) Payload() map[string]interface{} {
	return e.Data
}

func (e BaseEvent) Timestamp() time.Time {
	return e.OccurredAt
}

func SessionCreated(sessionID string) BaseEvent {
	return BaseEvent{
		Type:       TypeSessionCreated,
		Data:       map[string]interface{}{"session_id": sessionID},
		OccurredAt: time.Now().UTC(),
	}
}

func SessionExpired(sessionID string, removedMessages int) BaseEvent {
	return BaseEvent{
		Type: TypeSessionExpired,
		Data: map[string]interface{}{
			"session_id":       sessionID,
			"removed_messages": removedMessages,
		},
		OccurredAt: time.Now().UTC(),
	}
}

func DocumentIngested(source, index string, chunks int) BaseEvent {
	return BaseEvent{
		Type: TypeDocumentIngested,
		Data: map[string]interface{}{
			"source": source,
			"index":  index,
			"chunks": chunks,
		},
		OccurredAt: time.Now().UTC(),
	}
}

// NopPublisher drops every event. Used when no bus is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
