// Package events defines the domain event contract for the transactional outbox.
package events

import (
	"context"

	"stevedore/internal/core/id"
)

// Event types published by order services.
const (
	TypeOrderReceived     = "order.received"
	TypeShippingCompleted = "shipping.completed"
	TypeShippingShipped   = "shipping.shipped"
	TypeManifestClosed    = "manifest.closed"
)

// Event is a domain event destined for the outbox.
type Event struct {
	AggregateType string // e.g. "ReceivingOrder", "ShippingOrder", "Manifest"
	AggregateID   id.ID
	EventType     string
	Payload       any
}

// Publisher writes events to the transactional outbox.
// Implementations require an active transaction in context.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}
