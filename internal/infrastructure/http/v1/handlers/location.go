package handlers

import (
	"github.com/gin-gonic/gin"

	"stevedore/internal/core/apperror"
	"stevedore/internal/core/id"
	"stevedore/internal/domain/catalogs/location"
	"stevedore/internal/infrastructure/http/v1/dto"
)

// LocationHandler extends the generic catalog handler with coordinate
// resolution and grid generation.
type LocationHandler struct {
	*CatalogHandler[*location.Location, dto.CreateLocationRequest, dto.UpdateLocationRequest]
	service *location.Service
}

// NewLocationHandler wires the location service into the generic handler.
func NewLocationHandler(
	base *BaseHandler,
	service *location.Service,
) *LocationHandler {

	config := CatalogHandlerConfig[
		*location.Location,
		dto.CreateLocationRequest,
		dto.UpdateLocationRequest,
	]{
		Service:    service.CatalogService,
		EntityName: "location",

		// Map Create Request
		MapCreateDTO: func(req dto.CreateLocationRequest) *location.Location {
			return req.ToEntity()
		},

		// Map Update Request
		MapUpdateDTO: func(req dto.UpdateLocationRequest, existing *location.Location) *location.Location {
			req.ApplyTo(existing)
			return existing
		},

		// Map Response
		MapToDTO: func(entity *location.Location) any {
			return dto.FromLocation(entity)
		},
	}

	return &LocationHandler{
		CatalogHandler: NewCatalogHandler(base, config),
		service:        service,
	}
}

// Resolve handles POST /catalog/locations/resolve - coordinate lookup with
// create-on-first-use. Scanners send coordinates, never location IDs.
func (h *LocationHandler) Resolve(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.ResolveLocationRequest
	if !h.BindJSON(c, &req) {
		return
	}

	warehouseID, err := id.Parse(req.WarehouseID)
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid warehouseId format"))
		return
	}

	loc, created, err := h.service.Resolve(ctx, warehouseID, req.Kind, req.Rack, req.Level, req.Position)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.ResolveLocationResponse{
		Location: dto.FromLocation(loc),
		Created:  created,
	})
}

// GenerateGrid handles POST /catalog/locations/generate-grid - bulk creation
// of a rack's full coordinate grid.
func (h *LocationHandler) GenerateGrid(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.GenerateGridRequest
	if !h.BindJSON(c, &req) {
		return
	}

	warehouseID, err := id.Parse(req.WarehouseID)
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid warehouseId format"))
		return
	}

	created, err := h.service.GenerateGrid(ctx, warehouseID, req.Kind, req.Rack, req.Levels, req.Positions)
	if err != nil {
		h.Error(c, err)
		return
	}

	locations := make([]*dto.LocationResponse, len(created))
	for i, loc := range created {
		locations[i] = dto.FromLocation(loc)
	}

	h.Created(c, dto.GenerateGridResponse{
		Created:   len(created),
		Locations: locations,
	})
}
