package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"stevedore/internal/core/apperror"
	"stevedore/internal/core/id"
	"stevedore/internal/domain"
	"stevedore/internal/domain/orders/shipping"
	"stevedore/internal/infrastructure/http/v1/dto"
)

// ShippingHandler handles HTTP requests for shipping orders.
type ShippingHandler struct {
	*DocumentHandler[*shipping.Order, dto.CreateShippingOrderRequest, dto.UpdateShippingOrderRequest]
	service *shipping.Service
}

// NewShippingHandler creates a new shipping order handler.
func NewShippingHandler(base *BaseHandler, service *shipping.Service) *ShippingHandler {
	cfg := DocumentHandlerConfig[*shipping.Order, dto.CreateShippingOrderRequest, dto.UpdateShippingOrderRequest]{
		Service:      service,
		DocumentName: "shipping-order",
		MapCreateDTO: func(req dto.CreateShippingOrderRequest) *shipping.Order {
			return req.ToEntity()
		},
		MapUpdateDTO: func(req dto.UpdateShippingOrderRequest, existing *shipping.Order) *shipping.Order {
			req.ApplyTo(existing)
			return existing
		},
		MapToDTO: func(doc *shipping.Order) any {
			return dto.FromShippingOrder(doc)
		},
	}

	return &ShippingHandler{
		DocumentHandler: NewDocumentHandler(base, cfg),
		service:         service,
	}
}

// List handles GET /orders/shipping - list with filtering.
func (h *ShippingHandler) List(c *gin.Context) {
	ctx := c.Request.Context()

	filter := shipping.ListFilter{
		ListFilter: domain.DefaultListFilter(),
	}
	filter.Search = c.Query("search")
	filter.Limit = h.ParseIntQuery(c, "limit", 50)
	filter.Offset = h.ParseIntQuery(c, "offset", 0)
	filter.OrderBy = c.Query("orderBy")
	filter.IncludeDeleted = c.Query("includeDeleted") == "true"

	// Parse optional filters
	if warehouseID := c.Query("warehouseId"); warehouseID != "" {
		parsed, err := id.Parse(warehouseID)
		if err == nil {
			filter.WarehouseID = &parsed
		}
	}

	if status := c.Query("status"); status != "" {
		val := shipping.Status(status)
		filter.Status = &val
	}

	if shipmentType := c.Query("shipmentType"); shipmentType != "" {
		val := shipping.ShipmentType(shipmentType)
		filter.ShipmentType = &val
	}

	if dateFrom := c.Query("dateFrom"); dateFrom != "" {
		if parsed, err := time.Parse(time.RFC3339, dateFrom); err == nil {
			filter.DateFrom = &parsed
		}
	}

	if dateTo := c.Query("dateTo"); dateTo != "" {
		if parsed, err := time.Parse(time.RFC3339, dateTo); err == nil {
			filter.DateTo = &parsed
		}
	}

	result, err := h.service.List(ctx, filter)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.respondList(c, result)
}

// FinishPicking handles POST /orders/shipping/:id/finish-picking.
func (h *ShippingHandler) FinishPicking(c *gin.Context) {
	h.transition(c, h.service.FinishPicking)
}

// FinalizeLoad handles POST /orders/shipping/:id/finalize-load.
func (h *ShippingHandler) FinalizeLoad(c *gin.Context) {
	h.transition(c, h.service.FinalizeLoad)
}

// Cancel handles POST /orders/shipping/:id/cancel.
func (h *ShippingHandler) Cancel(c *gin.Context) {
	h.transition(c, h.service.Cancel)
}

// Progress handles GET /orders/shipping/:id/progress - per-line allocation
// progress plus pallet status counts.
func (h *ShippingHandler) Progress(c *gin.Context) {
	ctx := c.Request.Context()

	docID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format"))
		return
	}

	progress, err := h.service.Progress(ctx, docID)
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, progress)
}

func (h *ShippingHandler) transition(c *gin.Context, op func(context.Context, id.ID) (*shipping.Order, error)) {
	ctx := c.Request.Context()

	docID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format"))
		return
	}

	doc, err := op(ctx, docID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromShippingOrder(doc))
}

func (h *ShippingHandler) respondList(c *gin.Context, result domain.ListResult[*shipping.Order]) {
	items := make([]*dto.ShippingOrderResponse, len(result.Items))
	for i, doc := range result.Items {
		items[i] = dto.FromShippingOrder(doc)
	}

	c.JSON(http.StatusOK, dto.ShippingOrderListResponse{
		Items:      items,
		TotalCount: result.TotalCount,
		Limit:      result.Limit,
		Offset:     result.Offset,
	})
}
