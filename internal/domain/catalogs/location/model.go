// Package location provides the storage Location catalog.
// A location is one addressable slot identified by warehouse, kind and the
// coordinate tuple (rack, level, position).
package location

import (
	"context"
	"fmt"

	"stevedore/internal/core/apperror"
	"stevedore/internal/core/entity"
	"stevedore/internal/core/id"
)

// Kind distinguishes rack cells from floor slots in an aisle.
type Kind string

const (
	KindRack  Kind = "RACK"
	KindAisle Kind = "AISLE"
)

// Location is one addressable storage slot.
type Location struct {
	entity.Catalog

	// WarehouseID anchors the location to a site
	WarehouseID id.ID `db:"warehouse_id" json:"warehouseId"`

	// Kind of slot
	Kind Kind `db:"kind" json:"kind"`

	// Coordinate tuple. Aisle slots use level 0.
	Rack     string `db:"rack" json:"rack"`
	Level    int32  `db:"level" json:"level"`
	Position int32  `db:"position" json:"position"`
}

// NewLocation creates a location for a coordinate tuple. The display name is
// derived from the coordinates (e.g. "A-02-05").
func NewLocation(warehouseID id.ID, kind Kind, rack string, level, position int32) *Location {
	loc := &Location{
		Catalog:     entity.NewCatalog("", CoordinateName(kind, rack, level, position)),
		WarehouseID: warehouseID,
		Kind:        kind,
		Rack:        rack,
		Level:       level,
		Position:    position,
	}
	return loc
}

// CoordinateName renders the canonical display name for a coordinate tuple.
func CoordinateName(kind Kind, rack string, level, position int32) string {
	if kind == KindAisle {
		return fmt.Sprintf("%s-%02d", rack, position)
	}
	return fmt.Sprintf("%s-%02d-%02d", rack, level, position)
}

// Validate implements entity.Validatable.
func (l *Location) Validate(ctx context.Context) error {
	if err := l.Catalog.Validate(ctx); err != nil {
		return err
	}

	if id.IsNil(l.WarehouseID) {
		return apperror.NewValidation("warehouse is required").
			WithDetail("field", "warehouseId")
	}

	switch l.Kind {
	case KindRack, KindAisle:
	default:
		return apperror.NewValidation("invalid location kind").
			WithDetail("field", "kind").
			WithDetail("value", string(l.Kind))
	}

	if l.Rack == "" {
		return apperror.NewValidation("rack is required").
			WithDetail("field", "rack")
	}

	if l.Kind == KindRack && l.Level < 1 {
		return apperror.NewValidation("rack locations require a level of at least 1").
			WithDetail("field", "level").
			WithDetail("value", l.Level)
	}

	if l.Position < 1 {
		return apperror.NewValidation("position must be at least 1").
			WithDetail("field", "position").
			WithDetail("value", l.Position)
	}

	return nil
}
