package shipping

import (
	"context"
	"time"

	"stevedore/internal/core/id"
	"stevedore/internal/domain"
)

// ListFilter narrows shipping order listings.
type ListFilter struct {
	domain.ListFilter

	WarehouseID  *id.ID
	Status       *Status
	ShipmentType *ShipmentType
	DateFrom     *time.Time
	DateTo       *time.Time
}

// Repository is the persistence port for shipping orders.
type Repository interface {
	Create(ctx context.Context, order *Order) error
	GetByID(ctx context.Context, orderID id.ID) (*Order, error)
	GetByNumber(ctx context.Context, number string) (*Order, error)

	// GetForUpdate locks the order header row for the current transaction.
	GetForUpdate(ctx context.Context, orderID id.ID) (*Order, error)

	Update(ctx context.Context, order *Order) error
	Delete(ctx context.Context, orderID id.ID) error
	List(ctx context.Context, f ListFilter) (domain.ListResult[*Order], error)

	// GetLines loads the table part ordered by line number.
	GetLines(ctx context.Context, orderID id.ID) ([]Line, error)

	// SaveLines replaces the table part.
	SaveLines(ctx context.Context, orderID id.ID, lines []Line) error

	// LockLine takes a row-level lock on one order line. Every quantity
	// reservation against the line starts here so that concurrent commits
	// serialize on the row.
	LockLine(ctx context.Context, orderID id.ID, itemID string) (*Line, error)

	// FindCandidatesByItem returns orders in the given statuses that hold a
	// line for itemID, lines loaded, ordered by creation time ascending.
	FindCandidatesByItem(ctx context.Context, itemID string, statuses ...Status) ([]*Order, error)
}
