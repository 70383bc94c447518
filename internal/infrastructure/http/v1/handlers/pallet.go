package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"stevedore/internal/core/apperror"
	"stevedore/internal/core/id"
	"stevedore/internal/domain"
	"stevedore/internal/domain/orders/shipping"
	"stevedore/internal/domain/pallet"
	"stevedore/internal/infrastructure/http/v1/dto"
)

// PalletHandler handles HTTP requests for pallets. Order-scoped operations
// (pick, toggle-loaded) go through the shipping service because they commit
// quantity against a shipping order.
type PalletHandler struct {
	*BaseHandler
	pallets  *pallet.Service
	shipping *shipping.Service
}

// NewPalletHandler creates a new pallet handler.
func NewPalletHandler(base *BaseHandler, pallets *pallet.Service, shippingService *shipping.Service) *PalletHandler {
	return &PalletHandler{
		BaseHandler: base,
		pallets:     pallets,
		shipping:    shippingService,
	}
}

// List handles GET /pallets - list with filtering.
func (h *PalletHandler) List(c *gin.Context) {
	ctx := c.Request.Context()

	filter := pallet.ListFilter{
		ListFilter: domain.DefaultListFilter(),
	}
	filter.Search = c.Query("search")
	filter.Limit = h.ParseIntQuery(c, "limit", 50)
	filter.Offset = h.ParseIntQuery(c, "offset", 0)
	filter.OrderBy = c.Query("orderBy")
	filter.IncludeDeleted = c.Query("includeDeleted") == "true"

	// Parse optional filters
	if status := c.Query("status"); status != "" {
		val := pallet.Status(status)
		filter.Status = &val
	}

	if itemID := c.Query("itemId"); itemID != "" {
		filter.ItemID = &itemID
	}

	if v := c.Query("receivingOrderId"); v != "" {
		if parsed, err := id.Parse(v); err == nil {
			filter.ReceivingOrderID = &parsed
		}
	}

	if v := c.Query("shippingOrderId"); v != "" {
		if parsed, err := id.Parse(v); err == nil {
			filter.ShippingOrderID = &parsed
		}
	}

	if v := c.Query("manifestId"); v != "" {
		if parsed, err := id.Parse(v); err == nil {
			filter.ManifestID = &parsed
		}
	}

	if v := c.Query("locationId"); v != "" {
		if parsed, err := id.Parse(v); err == nil {
			filter.LocationID = &parsed
		}
	}

	if isCrossDock := c.Query("isCrossDock"); isCrossDock != "" {
		val := isCrossDock == "true"
		filter.IsCrossDock = &val
	}

	if createdFrom := c.Query("createdFrom"); createdFrom != "" {
		if parsed, err := time.Parse(time.RFC3339, createdFrom); err == nil {
			filter.CreatedFrom = &parsed
		}
	}

	if createdTo := c.Query("createdTo"); createdTo != "" {
		if parsed, err := time.Parse(time.RFC3339, createdTo); err == nil {
			filter.CreatedTo = &parsed
		}
	}

	result, err := h.pallets.List(ctx, filter)
	if err != nil {
		h.Error(c, err)
		return
	}

	items := make([]*dto.PalletResponse, len(result.Items))
	for i, p := range result.Items {
		items[i] = dto.FromPallet(p)
	}

	c.JSON(http.StatusOK, dto.PalletListResponse{
		Items:      items,
		TotalCount: result.TotalCount,
		Limit:      result.Limit,
		Offset:     result.Offset,
	})
}

// Get handles GET /pallets/:id - lookup by ID, falling back to label lookup
// when the path segment is not a UUID (scanners work with printed labels).
func (h *PalletHandler) Get(c *gin.Context) {
	ctx := c.Request.Context()
	param := c.Param("id")

	var (
		p   *pallet.Pallet
		err error
	)
	if palletID, parseErr := id.Parse(param); parseErr == nil {
		p, err = h.pallets.GetByID(ctx, palletID)
	} else {
		p, err = h.pallets.GetByLabel(ctx, param)
	}
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.FromPallet(p))
}

// Events handles GET /pallets/:id/events - lifecycle audit trail, newest first.
func (h *PalletHandler) Events(c *gin.Context) {
	ctx := c.Request.Context()

	palletID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format"))
		return
	}

	limit := h.ParseIntQuery(c, "limit", 100)
	offset := h.ParseIntQuery(c, "offset", 0)

	events, err := h.pallets.ListEvents(ctx, palletID, limit, offset)
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.PalletEventListResponse{
		Items:  events,
		Limit:  limit,
		Offset: offset,
	})
}

// PutAway handles POST /pallets/:id/put-away - first placement into storage.
func (h *PalletHandler) PutAway(c *gin.Context) {
	ctx := c.Request.Context()

	palletID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format"))
		return
	}

	var req dto.PutAwayRequest
	if !h.BindJSON(c, &req) {
		return
	}

	locationID, err := id.Parse(req.LocationID)
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid locationId format"))
		return
	}

	p, err := h.pallets.PutAway(ctx, palletID, locationID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromPallet(p))
}

// Move handles POST /pallets/:id/move - relocation within storage.
func (h *PalletHandler) Move(c *gin.Context) {
	ctx := c.Request.Context()

	palletID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format"))
		return
	}

	var req dto.MovePalletRequest
	if !h.BindJSON(c, &req) {
		return
	}

	locationID, err := id.Parse(req.LocationID)
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid locationId format"))
		return
	}

	p, err := h.pallets.Move(ctx, palletID, locationID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromPallet(p))
}

// Pick handles POST /pallets/:id/pick - commit a stored pallet to a shipping
// order.
func (h *PalletHandler) Pick(c *gin.Context) {
	ctx := c.Request.Context()

	palletID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format"))
		return
	}

	var req dto.PickPalletRequest
	if !h.BindJSON(c, &req) {
		return
	}

	orderID, err := id.Parse(req.ShippingOrderID)
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid shippingOrderId format"))
		return
	}

	p, err := h.shipping.PickPallet(ctx, palletID, orderID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromPallet(p))
}

// ToggleLoaded handles POST /pallets/:id/toggle-loaded - load a staged pallet
// onto a vehicle or take it back off.
func (h *PalletHandler) ToggleLoaded(c *gin.Context) {
	ctx := c.Request.Context()

	palletID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format"))
		return
	}

	var req dto.ToggleLoadedRequest
	if !h.BindJSON(c, &req) {
		return
	}

	var manifestID *id.ID
	if req.ManifestID != nil {
		parsed, err := id.Parse(*req.ManifestID)
		if err != nil {
			h.Error(c, apperror.NewValidation("invalid manifestId format"))
			return
		}
		manifestID = &parsed
	}

	p, err := h.shipping.ToggleLoaded(ctx, palletID, req.Loaded, manifestID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromPallet(p))
}

// WriteOff handles POST /pallets/:id/write-off - remove a pallet from
// circulation with a mandatory reason.
func (h *PalletHandler) WriteOff(c *gin.Context) {
	ctx := c.Request.Context()

	palletID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format"))
		return
	}

	var req dto.WriteOffRequest
	if !h.BindJSON(c, &req) {
		return
	}

	p, err := h.pallets.WriteOff(ctx, palletID, req.Reason)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromPallet(p))
}
