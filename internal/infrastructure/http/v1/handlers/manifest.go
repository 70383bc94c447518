package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"stevedore/internal/core/apperror"
	"stevedore/internal/core/id"
	"stevedore/internal/domain"
	"stevedore/internal/domain/orders/manifest"
	"stevedore/internal/infrastructure/http/v1/dto"
)

// ManifestHandler handles HTTP requests for load manifests.
type ManifestHandler struct {
	*DocumentHandler[*manifest.Manifest, dto.CreateManifestRequest, dto.UpdateManifestRequest]
	service *manifest.Service
}

// NewManifestHandler creates a new manifest handler.
func NewManifestHandler(base *BaseHandler, service *manifest.Service) *ManifestHandler {
	cfg := DocumentHandlerConfig[*manifest.Manifest, dto.CreateManifestRequest, dto.UpdateManifestRequest]{
		Service:      service,
		DocumentName: "manifest",
		MapCreateDTO: func(req dto.CreateManifestRequest) *manifest.Manifest {
			return req.ToEntity()
		},
		MapUpdateDTO: func(req dto.UpdateManifestRequest, existing *manifest.Manifest) *manifest.Manifest {
			req.ApplyTo(existing)
			return existing
		},
		MapToDTO: func(doc *manifest.Manifest) any {
			return dto.FromManifest(doc)
		},
	}

	return &ManifestHandler{
		DocumentHandler: NewDocumentHandler(base, cfg),
		service:         service,
	}
}

// List handles GET /manifests - list with filtering.
func (h *ManifestHandler) List(c *gin.Context) {
	ctx := c.Request.Context()

	filter := manifest.ListFilter{
		ListFilter: domain.DefaultListFilter(),
	}
	filter.Search = c.Query("search")
	filter.Limit = h.ParseIntQuery(c, "limit", 50)
	filter.Offset = h.ParseIntQuery(c, "offset", 0)
	filter.OrderBy = c.Query("orderBy")
	filter.IncludeDeleted = c.Query("includeDeleted") == "true"

	// Parse optional filters
	if status := c.Query("status"); status != "" {
		val := manifest.Status(status)
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

// Close handles POST /manifests/:id/close - ship every loaded pallet and
// advance exhausted orders to Shipped.
func (h *ManifestHandler) Close(c *gin.Context) {
	h.transition(c, h.service.Close)
}

// Cancel handles POST /manifests/:id/cancel.
func (h *ManifestHandler) Cancel(c *gin.Context) {
	h.transition(c, h.service.Cancel)
}

func (h *ManifestHandler) transition(c *gin.Context, op func(context.Context, id.ID) (*manifest.Manifest, error)) {
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

	h.OK(c, dto.FromManifest(doc))
}

func (h *ManifestHandler) respondList(c *gin.Context, result domain.ListResult[*manifest.Manifest]) {
	items := make([]*dto.ManifestResponse, len(result.Items))
	for i, doc := range result.Items {
		items[i] = dto.FromManifest(doc)
	}

	c.JSON(http.StatusOK, dto.ManifestListResponse{
		Items:      items,
		TotalCount: result.TotalCount,
		Limit:      result.Limit,
		Offset:     result.Offset,
	})
}
