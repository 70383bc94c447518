package receiving

import (
	"context"
	"time"

	"stevedore/internal/core/id"
	"stevedore/internal/domain"
)

// Repository defines operations for receiving order documents.
type Repository interface {
	// CRUD operations
	Create(ctx context.Context, doc *Order) error
	GetByID(ctx context.Context, docID id.ID) (*Order, error)
	GetByNumber(ctx context.Context, number string) (*Order, error)
	Update(ctx context.Context, doc *Order) error
	Delete(ctx context.Context, docID id.ID) error

	// Line operations
	GetLines(ctx context.Context, docID id.ID) ([]Line, error)
	SaveLines(ctx context.Context, docID id.ID, lines []Line) error

	// LockLine takes a row lock on one order line. Every reserve-then-write
	// sequence against the (order, item) scope serializes on this lock.
	LockLine(ctx context.Context, orderID id.ID, itemID string) (*Line, error)

	// List operations
	List(ctx context.Context, filter ListFilter) (domain.ListResult[*Order], error)

	// Locking
	GetForUpdate(ctx context.Context, docID id.ID) (*Order, error)
}

// ListFilter for filtering receiving orders.
type ListFilter struct {
	domain.ListFilter

	WarehouseID *id.ID
	Status      *Status
	DateFrom    *time.Time
	DateTo      *time.Time
}
