package dto

import (
	"stevedore/internal/core/entity"
	"stevedore/internal/core/id"
	"stevedore/internal/domain/catalogs/location"
)

// --- Request DTOs ---

// CreateLocationRequest is the request body for creating a single location.
// Bulk setup normally goes through resolve or generate-grid instead.
type CreateLocationRequest struct {
	Code        string            `json:"code"`
	WarehouseID string            `json:"warehouseId" binding:"required"`
	Kind        location.Kind     `json:"kind" binding:"required"`
	Rack        string            `json:"rack" binding:"required"`
	Level       int32             `json:"level"`
	Position    int32             `json:"position" binding:"required"`
	Attributes  entity.Attributes `json:"attributes"`
}

// ToEntity converts DTO to domain entity. The display name is derived from
// the coordinates.
func (r *CreateLocationRequest) ToEntity() *location.Location {
	warehouseID, _ := id.Parse(r.WarehouseID)
	loc := location.NewLocation(warehouseID, r.Kind, r.Rack, r.Level, r.Position)
	loc.Code = r.Code
	loc.Attributes = r.Attributes
	return loc
}

// UpdateLocationRequest is the request body for updating a location.
type UpdateLocationRequest struct {
	Code        string            `json:"code"`
	WarehouseID string            `json:"warehouseId" binding:"required"`
	Kind        location.Kind     `json:"kind" binding:"required"`
	Rack        string            `json:"rack" binding:"required"`
	Level       int32             `json:"level"`
	Position    int32             `json:"position" binding:"required"`
	Attributes  entity.Attributes `json:"attributes"`
	Version     int               `json:"version" binding:"required"`
}

// ApplyTo applies update DTO to existing entity, re-deriving the name when
// coordinates change.
func (r *UpdateLocationRequest) ApplyTo(loc *location.Location) {
	warehouseID, _ := id.Parse(r.WarehouseID)
	loc.Code = r.Code
	loc.WarehouseID = warehouseID
	loc.Kind = r.Kind
	loc.Rack = r.Rack
	loc.Level = r.Level
	loc.Position = r.Position
	loc.Name = location.CoordinateName(r.Kind, r.Rack, r.Level, r.Position)
	loc.Attributes = r.Attributes
	loc.Version = r.Version
}

// ResolveLocationRequest looks up a location by coordinates, creating it on
// first use.
type ResolveLocationRequest struct {
	WarehouseID string        `json:"warehouseId" binding:"required"`
	Kind        location.Kind `json:"kind" binding:"required"`
	Rack        string        `json:"rack" binding:"required"`
	Level       int32         `json:"level"`
	Position    int32         `json:"position" binding:"required"`
}

// ResolveLocationResponse reports the resolved location and whether it was
// created by this call.
type ResolveLocationResponse struct {
	Location *LocationResponse `json:"location"`
	Created  bool              `json:"created"`
}

// GenerateGridRequest creates the full rack-level-position grid for one rack.
type GenerateGridRequest struct {
	WarehouseID string        `json:"warehouseId" binding:"required"`
	Kind        location.Kind `json:"kind" binding:"required"`
	Rack        string        `json:"rack" binding:"required"`
	Levels      int32         `json:"levels"`
	Positions   int32         `json:"positions" binding:"required"`
}

// GenerateGridResponse lists the locations created by a grid generation.
type GenerateGridResponse struct {
	Created   int                 `json:"created"`
	Locations []*LocationResponse `json:"locations"`
}

// --- Response DTOs ---

// LocationResponse is the response body for a location.
type LocationResponse struct {
	ID           string            `json:"id"`
	Code         string            `json:"code"`
	Name         string            `json:"name"`
	WarehouseID  string            `json:"warehouseId"`
	Kind         location.Kind     `json:"kind"`
	Rack         string            `json:"rack"`
	Level        int32             `json:"level"`
	Position     int32             `json:"position"`
	DeletionMark bool              `json:"deletionMark"`
	Version      int               `json:"version"`
	Attributes   entity.Attributes `json:"attributes,omitempty"`
}

// FromLocation creates response DTO from domain entity.
func FromLocation(loc *location.Location) *LocationResponse {
	return &LocationResponse{
		ID:           loc.ID.String(),
		Code:         loc.Code,
		Name:         loc.Name,
		WarehouseID:  loc.WarehouseID.String(),
		Kind:         loc.Kind,
		Rack:         loc.Rack,
		Level:        loc.Level,
		Position:     loc.Position,
		DeletionMark: loc.DeletionMark,
		Version:      loc.Version,
		Attributes:   loc.Attributes,
	}
}
