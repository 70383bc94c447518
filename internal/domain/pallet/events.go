package pallet

import (
	"context"
	"time"

	"stevedore/internal/core/id"
)

// EventKind identifies the lifecycle action recorded by an event.
type EventKind string

const (
	EventCreated    EventKind = "created"
	EventPutAway    EventKind = "put_away"
	EventMoved      EventKind = "moved"
	EventPicked     EventKind = "picked"
	EventLoaded     EventKind = "loaded"
	EventUnloaded   EventKind = "unloaded"
	EventShipped    EventKind = "shipped"
	EventWrittenOff EventKind = "written_off"
	EventUndone     EventKind = "undone"
)

// Event is one append-only audit record. Every pallet mutation (including
// creation and undo) writes exactly one event in the same transaction.
type Event struct {
	ID         id.ID          `db:"id" json:"id"`
	PalletID   id.ID          `db:"pallet_id" json:"palletId"`
	Kind       EventKind      `db:"event" json:"event"`
	FromStatus *Status        `db:"from_status" json:"fromStatus,omitempty"`
	ToStatus   Status         `db:"to_status" json:"toStatus"`
	Reason     string         `db:"reason" json:"reason,omitempty"`
	Actor      string         `db:"actor" json:"actor,omitempty"`
	OccurredAt time.Time      `db:"occurred_at" json:"occurredAt"`
	Details    map[string]any `db:"details" json:"details,omitempty"`
}

// NewEvent builds an event for a transition that already happened on p.
// fromStatus is nil for creation events.
func NewEvent(p *Pallet, kind EventKind, fromStatus *Status, actor string) *Event {
	return &Event{
		ID:         id.New(),
		PalletID:   p.ID,
		Kind:       kind,
		FromStatus: fromStatus,
		ToStatus:   p.Status,
		Actor:      actor,
		OccurredAt: time.Now().UTC(),
	}
}

// WithReason attaches the operator-supplied reason (write-off, undo).
func (e *Event) WithReason(reason string) *Event {
	e.Reason = reason
	return e
}

// WithDetail attaches one detail field (e.g. from/to location on a move).
func (e *Event) WithDetail(key string, value any) *Event {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// EventStore persists pallet events. Implementations append within the
// caller's transaction; events are never updated or deleted.
type EventStore interface {
	Append(ctx context.Context, event *Event) error

	// ListByPallet returns events for one pallet, newest first.
	ListByPallet(ctx context.Context, palletID id.ID, limit, offset int) ([]Event, error)
}
