package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"stevedore/internal/core/apperror"
	"stevedore/internal/core/id"
	"stevedore/internal/domain"
	"stevedore/internal/domain/orders/receiving"
	"stevedore/internal/infrastructure/http/v1/dto"
)

// ReceivingHandler handles HTTP requests for receiving orders.
type ReceivingHandler struct {
	*DocumentHandler[*receiving.Order, dto.CreateReceivingOrderRequest, dto.UpdateReceivingOrderRequest]
	service *receiving.Service
}

// NewReceivingHandler creates a new receiving order handler.
func NewReceivingHandler(base *BaseHandler, service *receiving.Service) *ReceivingHandler {
	cfg := DocumentHandlerConfig[*receiving.Order, dto.CreateReceivingOrderRequest, dto.UpdateReceivingOrderRequest]{
		Service:      service,
		DocumentName: "receiving-order",
		MapCreateDTO: func(req dto.CreateReceivingOrderRequest) *receiving.Order {
			return req.ToEntity()
		},
		MapUpdateDTO: func(req dto.UpdateReceivingOrderRequest, existing *receiving.Order) *receiving.Order {
			req.ApplyTo(existing)
			return existing
		},
		MapToDTO: func(doc *receiving.Order) any {
			return dto.FromReceivingOrder(doc)
		},
	}

	return &ReceivingHandler{
		DocumentHandler: NewDocumentHandler(base, cfg),
		service:         service,
	}
}

// List handles GET /orders/receiving - list with filtering.
func (h *ReceivingHandler) List(c *gin.Context) {
	ctx := c.Request.Context()

	filter := receiving.ListFilter{
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
		val := receiving.Status(status)
		filter.Status = &val
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

// StartUnloading handles POST /orders/receiving/:id/start-unloading.
func (h *ReceivingHandler) StartUnloading(c *gin.Context) {
	h.transition(c, h.service.StartUnloading)
}

// FinishTally handles POST /orders/receiving/:id/finish-tally.
func (h *ReceivingHandler) FinishTally(c *gin.Context) {
	h.transition(c, h.service.FinishTally)
}

// Complete handles POST /orders/receiving/:id/complete.
func (h *ReceivingHandler) Complete(c *gin.Context) {
	h.transition(c, h.service.Complete)
}

// Tally handles GET /orders/receiving/:id/tally - per-line tally progress
// with planned pallet rows for the remainder.
func (h *ReceivingHandler) Tally(c *gin.Context) {
	ctx := c.Request.Context()

	docID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format"))
		return
	}

	progress, err := h.service.Tally(ctx, docID)
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, progress)
}

func (h *ReceivingHandler) transition(c *gin.Context, op func(context.Context, id.ID) (*receiving.Order, error)) {
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

	h.OK(c, dto.FromReceivingOrder(doc))
}

func (h *ReceivingHandler) respondList(c *gin.Context, result domain.ListResult[*receiving.Order]) {
	items := make([]*dto.ReceivingOrderResponse, len(result.Items))
	for i, doc := range result.Items {
		items[i] = dto.FromReceivingOrder(doc)
	}

	c.JSON(http.StatusOK, dto.ReceivingOrderListResponse{
		Items:      items,
		TotalCount: result.TotalCount,
		Limit:      result.Limit,
		Offset:     result.Offset,
	})
}
