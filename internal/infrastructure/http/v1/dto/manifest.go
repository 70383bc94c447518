package dto

import (
	"time"

	"stevedore/internal/domain/orders/manifest"
	"stevedore/internal/domain/orders/shipping"
)

// --- Request DTOs ---

// CreateManifestRequest represents a request to create a load manifest.
type CreateManifestRequest struct {
	Number       string                 `json:"number,omitempty"`
	Date         *time.Time             `json:"date,omitempty"`
	ShipmentType *shipping.ShipmentType `json:"shipmentType,omitempty"`
	VehicleRef   string                 `json:"vehicleRef,omitempty"`
	Comment      string                 `json:"comment,omitempty"`
}

// ToEntity converts request to domain entity. Shipment type defaults to
// container loading.
func (r *CreateManifestRequest) ToEntity() *manifest.Manifest {
	doc := manifest.NewManifest(r.VehicleRef)
	doc.Number = r.Number
	if r.Date != nil {
		doc.Date = *r.Date
	}
	if r.ShipmentType != nil {
		doc.ShipmentType = *r.ShipmentType
	}
	doc.Comment = r.Comment
	return doc
}

// UpdateManifestRequest represents a request to update a manifest.
type UpdateManifestRequest struct {
	Number       *string                `json:"number,omitempty"`
	Date         *time.Time             `json:"date,omitempty"`
	ShipmentType *shipping.ShipmentType `json:"shipmentType,omitempty"`
	VehicleRef   *string                `json:"vehicleRef,omitempty"`
	Comment      *string                `json:"comment,omitempty"`
	Version      int                    `json:"version" binding:"required"`
}

// ApplyTo applies updates to an existing entity.
func (r *UpdateManifestRequest) ApplyTo(doc *manifest.Manifest) {
	if r.Number != nil {
		doc.Number = *r.Number
	}
	if r.Date != nil {
		doc.Date = *r.Date
	}
	if r.ShipmentType != nil {
		doc.ShipmentType = *r.ShipmentType
	}
	if r.VehicleRef != nil {
		doc.VehicleRef = *r.VehicleRef
	}
	if r.Comment != nil {
		doc.Comment = *r.Comment
	}

	doc.Version = r.Version
}

// --- Response DTOs ---

// ManifestResponse represents a manifest in API responses.
type ManifestResponse struct {
	ID           string                `json:"id"`
	Number       string                `json:"number"`
	Date         time.Time             `json:"date"`
	ShipmentType shipping.ShipmentType `json:"shipmentType"`
	VehicleRef   string                `json:"vehicleRef,omitempty"`
	Status       manifest.Status       `json:"status"`
	Comment      string                `json:"comment,omitempty"`
	DeletionMark bool                  `json:"deletionMark,omitempty"`
	Version      int                   `json:"version"`
	CreatedAt    time.Time             `json:"createdAt"`
	UpdatedAt    time.Time             `json:"updatedAt"`
	CreatedBy    string                `json:"createdBy,omitempty"`
	UpdatedBy    string                `json:"updatedBy,omitempty"`
}

// FromManifest converts domain entity to response DTO.
func FromManifest(doc *manifest.Manifest) *ManifestResponse {
	return &ManifestResponse{
		ID:           doc.ID.String(),
		Number:       doc.Number,
		Date:         doc.Date,
		ShipmentType: doc.ShipmentType,
		VehicleRef:   doc.VehicleRef,
		Status:       doc.Status,
		Comment:      doc.Comment,
		DeletionMark: doc.DeletionMark,
		Version:      doc.Version,
		CreatedAt:    doc.CreatedAt,
		UpdatedAt:    doc.UpdatedAt,
		CreatedBy:    doc.CreatedBy,
		UpdatedBy:    doc.UpdatedBy,
	}
}

// ManifestListResponse represents a list of manifests.
type ManifestListResponse struct {
	Items      []*ManifestResponse `json:"items"`
	TotalCount int64               `json:"totalCount"`
	Limit      int                 `json:"limit"`
	Offset     int                 `json:"offset"`
}
