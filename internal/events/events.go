package events

import (
	"context"
	"encoding/json"
	"log"
	"time"
)

// Channel is the broker queue/topic all lifecycle events are published to.
const Channel = "taskdeck.events"

const publishTimeout = 5 * time.Second

// Kind identifies a lifecycle event type.
type Kind string

const (
	KindUserRegistered Kind = "user.registered"
	KindTaskCreated    Kind = "task.created"
	KindTaskUpdated    Kind = "task.updated"
	KindTaskCompleted  Kind = "task.completed"
	KindTaskDeleted    Kind = "task.deleted"
)

// Event is a lifecycle notification published to the configured broker.
type Event struct {
	Kind   Kind      `json:"kind"`
	UserID int       `json:"userId"`
	TaskID int       `json:"taskId,omitempty"`
	At     time.Time `json:"at"`
}

// Backend defines the broker-agnostic publish operation.
type Backend interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
	Close() error
}

// Publisher emits lifecycle events to a backend. A nil Publisher or a
// Publisher without a backend drops every event, so callers never need to
// check whether eventing is configured.
type Publisher struct {
	backend Backend
}

// NewPublisher constructs a Publisher for the provided backend.
// A nil backend yields a no-op publisher.
func NewPublisher(backend Backend) *Publisher {
	return &Publisher{backend: backend}
}

// Emit publishes the event in the background. Delivery is best-effort:
// failures are logged and never surfaced to the request that triggered them.
func (p *Publisher) Emit(event Event) {
	if p == nil || p.backend == nil {
		return
	}
	if event.At.IsZero() {
		event.At = time.Now()
	}

	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("events: marshal %s: %v", event.Kind, err)
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()

		attrs := map[string]string{"kind": string(event.Kind)}
		if _, err := p.backend.Publish(ctx, Channel, data, attrs); err != nil {
			log.Printf("events: publish %s: %v", event.Kind, err)
		}
	}()
}

// Close closes the underlying backend.
func (p *Publisher) Close() error {
	if p == nil || p.backend == nil {
		return nil
	}
	return p.backend.Close()
}
