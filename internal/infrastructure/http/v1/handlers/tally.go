package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"stevedore/internal/core/apperror"
	"stevedore/internal/core/id"
	"stevedore/internal/domain/allocation"
	"stevedore/internal/infrastructure/http/v1/dto"
)

// TallyHandler handles HTTP requests for tally confirmation at the dock.
// Each confirmed pallet runs through the allocation engine, which decides
// between cross-dock and normal receipt.
type TallyHandler struct {
	*BaseHandler
	service *allocation.Service
}

// NewTallyHandler creates a new tally handler.
func NewTallyHandler(base *BaseHandler, service *allocation.Service) *TallyHandler {
	return &TallyHandler{
		BaseHandler: base,
		service:     service,
	}
}

// Confirm handles POST /tally/pallets - register one physical pallet counted
// during unloading.
func (h *TallyHandler) Confirm(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.ConfirmTallyPalletRequest
	if !h.BindJSON(c, &req) {
		return
	}

	orderID, err := id.Parse(req.ReceivingOrderID)
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid receivingOrderId format"))
		return
	}

	p, err := h.service.ConfirmTallyPallet(ctx, orderID, req.ItemID, req.Qty, req.ShipNow)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.Created(c, dto.FromPallet(p))
}

// Undo handles DELETE /tally/pallets/:id - revert a mistaken confirmation.
// Only pallets untouched since creation can be undone, and only while the
// receiving order is still unloading.
func (h *TallyHandler) Undo(c *gin.Context) {
	ctx := c.Request.Context()

	palletID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format"))
		return
	}

	if err := h.service.UndoTallyPallet(ctx, palletID); err != nil {
		h.Error(c, err)
		return
	}

	h.NoContent(c)
}

// Plan handles GET /tally/plan - preview the pallet row breakdown for an
// order line before any pallet is confirmed.
func (h *TallyHandler) Plan(c *gin.Context) {
	ctx := c.Request.Context()

	orderParam := c.Query("orderId")
	itemID := c.Query("itemId")
	if orderParam == "" || itemID == "" {
		h.Error(c, apperror.NewValidation("orderId and itemId query parameters are required"))
		return
	}

	orderID, err := id.Parse(orderParam)
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid orderId format"))
		return
	}

	rows, err := h.service.PlanRows(ctx, orderID, itemID)
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.TallyPlanResponse{
		ReceivingOrderID: orderID.String(),
		ItemID:           itemID,
		Rows:             rows,
	})
}
