// Package eventbus carries domain events between the API and the automation worker.
package eventbus

import (
	"context"

	"github.com/quasarerp/automations/pkg/events"
)

// Event is any payload from pkg/events.
type Event interface {
	GetType() events.EventType
}

// EventPublisher publishes events keyed by the entity they concern, a lead id
// for lead.approved, so that one partition orders a lead's events.
type EventPublisher interface {
	Publish(ctx context.Context, key string, event Event) error
}

// EventSubscriber dispatches decoded events to one handler per type.
// Handlers must be registered before Subscribe.
type EventSubscriber interface {
	Handle(eventType events.EventType, handler EventHandler) error
	Subscribe(ctx context.Context) error
}

// EventHandler receives a pointer to the concrete event type. A returned error
// causes redelivery.
type EventHandler func(ctx context.Context, event any) error

type EventBus interface {
	EventPublisher
	EventSubscriber
	Close() error
	GenerateID() string
}
