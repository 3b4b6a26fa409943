package telemetry

import (
	"context"
	"log"
	"time"

	"drawchat/internal/observability"
)

// Publisher is the broker surface the emitter depends on.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, event any) error
	Close() error
}

// Emitter publishes domain events (message_sent, chat_read, presence
// transitions) to the broker, best-effort.
type Emitter struct {
	publisher   Publisher
	service     string
	environment string
}

// Envelope is the wire format for published domain events.
type Envelope struct {
	SchemaVersion int    `json:"schema_version"`
	EventType     string `json:"event_type"`
	OccurredAt    string `json:"occurred_at"`
	Service       string `json:"service"`
	Environment   string `json:"environment"`
	UserID        int    `json:"user_id,omitempty"`
	Payload       any    `json:"payload,omitempty"`
}

// NewEmitter constructs an Emitter. A nil publisher yields a no-op emitter.
func NewEmitter(publisher Publisher, service, environment string) *Emitter {
	return &Emitter{publisher: publisher, service: service, environment: environment}
}

// Emit publishes one event. Failures are logged and counted, never surfaced:
// the durable store, not the broker, is the source of truth.
func (e *Emitter) Emit(ctx context.Context, eventType string, userID int, payload any) {
	if e == nil || e.publisher == nil {
		return
	}

	envelope := Envelope{
		SchemaVersion: 1,
		EventType:     eventType,
		OccurredAt:    time.Now().UTC().Format(time.RFC3339Nano),
		Service:       e.service,
		Environment:   e.environment,
		UserID:        userID,
		Payload:       payload,
	}

	if err := e.publisher.Publish(ctx, "drawchat."+eventType, envelope); err != nil {
		observability.IncAMQPPublishError()
		log.Printf("event publish failed type=%s: %v", eventType, err)
	}
}
