package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"stevedore/internal/core/apperror"
	"stevedore/internal/domain/billing"
	"stevedore/internal/infrastructure/http/v1/dto"
)

// BillingHandler handles HTTP requests for billing metrics and statements.
type BillingHandler struct {
	*BaseHandler
	service *billing.Service
}

// NewBillingHandler creates a new billing handler.
func NewBillingHandler(base *BaseHandler, service *billing.Service) *BillingHandler {
	return &BillingHandler{
		BaseHandler: base,
		service:     service,
	}
}

// Metrics handles GET /billing/metrics - raw billable quantities for a period.
func (h *BillingHandler) Metrics(c *gin.Context) {
	ctx := c.Request.Context()

	from, to, ok := h.parsePeriod(c)
	if !ok {
		return
	}

	metrics, err := h.service.ComputeMetrics(ctx, from, to)
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, metrics)
}

// Statement handles POST /billing/statement - priced statement for a period.
// Tariffs come in the request body so finance can re-price past periods
// without a deploy.
func (h *BillingHandler) Statement(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.BuildStatementRequest
	if !h.BindJSON(c, &req) {
		return
	}

	statement, err := h.service.BuildStatement(ctx, req.From, req.To, req.Tariffs)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, statement)
}

func (h *BillingHandler) parsePeriod(c *gin.Context) (time.Time, time.Time, bool) {
	fromParam := c.Query("from")
	toParam := c.Query("to")
	if fromParam == "" || toParam == "" {
		h.Error(c, apperror.NewValidation("from and to query parameters are required"))
		return time.Time{}, time.Time{}, false
	}

	from, err := time.Parse(time.RFC3339, fromParam)
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid from format (RFC3339 expected)"))
		return time.Time{}, time.Time{}, false
	}

	to, err := time.Parse(time.RFC3339, toParam)
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid to format (RFC3339 expected)"))
		return time.Time{}, time.Time{}, false
	}

	return from, to, true
}
