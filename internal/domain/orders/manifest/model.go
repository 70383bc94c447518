// Package manifest provides the load manifest document. A manifest groups
// the pallets loaded onto one container or vehicle; closing it confirms the
// physical departure and advances the affected shipping orders.
package manifest

import (
	"context"

	"stevedore/internal/core/apperror"
	"stevedore/internal/core/entity"
	"stevedore/internal/domain/orders/shipping"
)

// Status is the manifest lifecycle state.
type Status string

const (
	StatusOpen      Status = "Open"
	StatusClosed    Status = "Closed"
	StatusCancelled Status = "Cancelled"
)

// Manifest represents one container or vehicle load.
type Manifest struct {
	entity.Document

	// ShipmentType mirrors the orders being loaded
	ShipmentType shipping.ShipmentType `db:"shipment_type" json:"shipmentType"`

	// VehicleRef identifies the container or truck
	VehicleRef string `db:"vehicle_ref" json:"vehicleRef,omitempty"`

	// Status is the manifest lifecycle state
	Status Status `db:"status" json:"status"`
}

// NewManifest creates an open manifest.
func NewManifest(vehicleRef string) *Manifest {
	return &Manifest{
		Document:     entity.NewDocument(),
		ShipmentType: shipping.ContainerLoading,
		VehicleRef:   vehicleRef,
		Status:       StatusOpen,
	}
}

// Validate implements entity.Validatable.
func (m *Manifest) Validate(ctx context.Context) error {
	if err := m.Document.Validate(ctx); err != nil {
		return err
	}

	if m.ShipmentType != shipping.ContainerLoading && m.ShipmentType != shipping.HandDelivery {
		return apperror.NewValidation("invalid shipment type").
			WithDetail("field", "shipmentType").
			WithDetail("value", string(m.ShipmentType))
	}

	switch m.Status {
	case StatusOpen, StatusClosed, StatusCancelled:
	default:
		return apperror.NewValidation("invalid manifest status").
			WithDetail("field", "status").
			WithDetail("value", string(m.Status))
	}

	return nil
}

// IsOpen reports whether pallets may still be toggled onto the manifest.
func (m *Manifest) IsOpen() bool {
	return m.Status == StatusOpen
}

// Close marks the load as departed.
func (m *Manifest) Close() error {
	if m.Status != StatusOpen {
		return m.rejectTransition(StatusClosed)
	}
	m.Status = StatusClosed
	return nil
}

// Cancel abandons an open manifest.
func (m *Manifest) Cancel() error {
	if m.Status != StatusOpen {
		return m.rejectTransition(StatusCancelled)
	}
	m.Status = StatusCancelled
	return nil
}

func (m *Manifest) rejectTransition(to Status) error {
	return apperror.NewBusinessRule("manifest cannot move to this status").
		WithDetail("manifest_id", m.ID).
		WithDetail("from", string(m.Status)).
		WithDetail("to", string(to))
}
