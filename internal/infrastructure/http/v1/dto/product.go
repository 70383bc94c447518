package dto

import (
	"github.com/shopspring/decimal"

	"stevedore/internal/core/entity"
	"stevedore/internal/domain/catalogs/product"
)

// --- Request DTOs ---

// CreateProductRequest is the request body for creating a product.
type CreateProductRequest struct {
	Code            string            `json:"code"`
	Name            string            `json:"name" binding:"required"`
	ItemID          string            `json:"itemId"`
	UnitsPerPallet  int64             `json:"unitsPerPallet"`
	PalletPositions *int32            `json:"palletPositions"`
	Active          *bool             `json:"active"`
	UnitWeightKg    decimal.Decimal   `json:"unitWeightKg"`
	UnitVolumeM3    decimal.Decimal   `json:"unitVolumeM3"`
	Description     *string           `json:"description"`
	ParentID        *string           `json:"parentId"`
	IsFolder        bool              `json:"isFolder"`
	Attributes      entity.Attributes `json:"attributes"`
}

// ToEntity converts DTO to domain entity.
func (r *CreateProductRequest) ToEntity() *product.Product {
	p := product.NewProduct(r.Code, r.Name, r.ItemID, r.UnitsPerPallet)
	if r.PalletPositions != nil {
		p.PalletPositions = *r.PalletPositions
	}
	if r.Active != nil {
		p.Active = *r.Active
	}
	p.UnitWeightKg = r.UnitWeightKg
	p.UnitVolumeM3 = r.UnitVolumeM3
	p.Description = r.Description
	p.ParentID = r.ParentID
	p.IsFolder = r.IsFolder
	p.Attributes = r.Attributes
	return p
}

// UpdateProductRequest is the request body for updating a product.
type UpdateProductRequest struct {
	Code            string            `json:"code"`
	Name            string            `json:"name" binding:"required"`
	ItemID          string            `json:"itemId"`
	UnitsPerPallet  int64             `json:"unitsPerPallet"`
	PalletPositions int32             `json:"palletPositions"`
	Active          bool              `json:"active"`
	UnitWeightKg    decimal.Decimal   `json:"unitWeightKg"`
	UnitVolumeM3    decimal.Decimal   `json:"unitVolumeM3"`
	Description     *string           `json:"description,omitempty"`
	ParentID        *string           `json:"parentId,omitempty"`
	IsFolder        bool              `json:"isFolder"`
	Attributes      entity.Attributes `json:"attributes"`
	Version         int               `json:"version" binding:"required"`
}

// ApplyTo applies update DTO to existing entity.
func (r *UpdateProductRequest) ApplyTo(p *product.Product) {
	p.Code = r.Code
	p.Name = r.Name
	p.ItemID = r.ItemID
	p.UnitsPerPallet = r.UnitsPerPallet
	p.PalletPositions = r.PalletPositions
	p.Active = r.Active
	p.UnitWeightKg = r.UnitWeightKg
	p.UnitVolumeM3 = r.UnitVolumeM3
	p.Description = r.Description
	p.ParentID = r.ParentID
	p.IsFolder = r.IsFolder
	p.Attributes = r.Attributes
	p.Version = r.Version
}

// --- Response DTOs ---

// ProductResponse is the response body for a product.
type ProductResponse struct {
	ID              string            `json:"id"`
	Code            string            `json:"code"`
	Name            string            `json:"name"`
	ItemID          string            `json:"itemId"`
	UnitsPerPallet  int64             `json:"unitsPerPallet"`
	PalletPositions int32             `json:"palletPositions"`
	Active          bool              `json:"active"`
	UnitWeightKg    decimal.Decimal   `json:"unitWeightKg"`
	UnitVolumeM3    decimal.Decimal   `json:"unitVolumeM3"`
	Description     *string           `json:"description,omitempty"`
	ParentID        *string           `json:"parentId,omitempty"`
	IsFolder        bool              `json:"isFolder"`
	DeletionMark    bool              `json:"deletionMark"`
	Version         int               `json:"version"`
	Attributes      entity.Attributes `json:"attributes,omitempty"`
}

// FromProduct creates response DTO from domain entity.
func FromProduct(p *product.Product) *ProductResponse {
	return &ProductResponse{
		ID:              p.ID.String(),
		Code:            p.Code,
		Name:            p.Name,
		ItemID:          p.ItemID,
		UnitsPerPallet:  p.UnitsPerPallet,
		PalletPositions: p.PalletPositions,
		Active:          p.Active,
		UnitWeightKg:    p.UnitWeightKg,
		UnitVolumeM3:    p.UnitVolumeM3,
		Description:     p.Description,
		ParentID:        p.ParentID,
		IsFolder:        p.IsFolder,
		DeletionMark:    p.DeletionMark,
		Version:         p.Version,
		Attributes:      p.Attributes,
	}
}
