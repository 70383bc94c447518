package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"stevedore/internal/core/apperror"
	"stevedore/internal/core/entity"
	"stevedore/internal/core/id"
)

// DocumentService is the CRUD subset shared by all document services.
// Listing and status transitions are document-specific and live on the
// concrete services.
type DocumentService[T entity.Validatable] interface {
	GetByID(ctx context.Context, docID id.ID) (T, error)
	Create(ctx context.Context, doc T) error
	Update(ctx context.Context, doc T) error
	Delete(ctx context.Context, docID id.ID) error
}

// DocumentHandler provides generic CRUD handlers for document entities.
type DocumentHandler[T entity.Validatable, CreateDTO any, UpdateDTO any] struct {
	*BaseHandler
	service      DocumentService[T]
	documentName string

	// Mapper functions
	mapCreateDTO func(dto CreateDTO) T
	mapUpdateDTO func(dto UpdateDTO, existing T) T
	mapToDTO     func(doc T) any
}

// DocumentHandlerConfig configures the document handler.
type DocumentHandlerConfig[T entity.Validatable, CreateDTO any, UpdateDTO any] struct {
	Service      DocumentService[T]
	DocumentName string
	MapCreateDTO func(dto CreateDTO) T
	MapUpdateDTO func(dto UpdateDTO, existing T) T
	MapToDTO     func(doc T) any
}

// NewDocumentHandler creates a new document handler.
func NewDocumentHandler[T entity.Validatable, CreateDTO any, UpdateDTO any](
	base *BaseHandler,
	cfg DocumentHandlerConfig[T, CreateDTO, UpdateDTO],
) *DocumentHandler[T, CreateDTO, UpdateDTO] {
	return &DocumentHandler[T, CreateDTO, UpdateDTO]{
		BaseHandler:  base,
		service:      cfg.Service,
		documentName: cfg.DocumentName,
		mapCreateDTO: cfg.MapCreateDTO,
		mapUpdateDTO: cfg.MapUpdateDTO,
		mapToDTO:     cfg.MapToDTO,
	}
}

// Get handles GET /{document}/:id - get single document.
func (h *DocumentHandler[T, CreateDTO, UpdateDTO]) Get(c *gin.Context) {
	ctx := c.Request.Context()

	docID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format"))
		return
	}

	doc, err := h.service.GetByID(ctx, docID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, h.mapToDTO(doc))
}

// Create handles POST /{document} - create new document.
func (h *DocumentHandler[T, CreateDTO, UpdateDTO]) Create(c *gin.Context) {
	ctx := c.Request.Context()

	var req CreateDTO
	if !h.BindJSON(c, &req) {
		return
	}

	doc := h.mapCreateDTO(req)

	if err := h.service.Create(ctx, doc); err != nil {
		h.Error(c, err)
		return
	}

	h.Created(c, h.mapToDTO(doc))
}

// Update handles PUT /{document}/:id - update existing document.
func (h *DocumentHandler[T, CreateDTO, UpdateDTO]) Update(c *gin.Context) {
	ctx := c.Request.Context()

	docID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format"))
		return
	}

	var req UpdateDTO
	if !h.BindJSON(c, &req) {
		return
	}

	// Get existing document
	existing, err := h.service.GetByID(ctx, docID)
	if err != nil {
		h.Error(c, err)
		return
	}

	// Map update DTO onto existing document
	updated := h.mapUpdateDTO(req, existing)

	if err := h.service.Update(ctx, updated); err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, h.mapToDTO(updated))
}

// Delete handles DELETE /{document}/:id - soft delete document.
func (h *DocumentHandler[T, CreateDTO, UpdateDTO]) Delete(c *gin.Context) {
	ctx := c.Request.Context()

	docID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format"))
		return
	}

	if err := h.service.Delete(ctx, docID); err != nil {
		h.Error(c, err)
		return
	}

	h.NoContent(c)
}
