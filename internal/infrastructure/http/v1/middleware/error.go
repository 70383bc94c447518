package middleware

import (
	"github.com/gin-gonic/gin"

	"stevedore/internal/core/apperror"
	"stevedore/internal/infrastructure/http/v1/dto"
	"stevedore/internal/infrastructure/storage/postgres"
	"stevedore/pkg/logger"
)

// ErrorHandler middleware transforms errors into the single JSON error shape
// {"error": {"code", "message", "details"}}. Hides internal errors from
// clients while logging full details.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		err := c.Errors.Last().Err

		// If response already written by handler, do not override it.
		if c.Writer.Written() {
			return
		}

		if appErr, ok := apperror.AsAppError(err); ok {
			// Log internal cause if present
			if appErr.Err != nil {
				logger.Error(c.Request.Context(), "request error",
					"code", appErr.Code,
					"cause", appErr.Err,
				)
			}

			body := dto.ErrorResponse{Error: dto.ErrorBody{
				Code:    appErr.Code,
				Message: appErr.Message,
				Details: appErr.Details,
			}}

			// Mark idempotency as failed with the exact response we return (best-effort).
			failIdempotency(c, appErr.HTTPStatus, body)

			c.JSON(appErr.HTTPStatus, body)
			return
		}

		// Unknown error - log and return generic message
		logger.Error(c.Request.Context(), "unhandled error",
			"error", err,
		)

		body := dto.ErrorResponse{Error: dto.ErrorBody{
			Code:    apperror.CodeInternal,
			Message: "Internal server error",
			Details: map[string]any{
				"request_id": c.GetString("request_id"),
			},
		}}

		failIdempotency(c, 500, body)

		c.JSON(500, body)
	}
}

func failIdempotency(c *gin.Context, status int, body any) {
	key, exists := c.Get("idempotency_key")
	if !exists {
		return
	}
	store, ok := c.Get("idempotency_store")
	if !ok {
		return
	}
	if s, ok := store.(*postgres.IdempotencyStore); ok && s != nil {
		_ = s.FailKey(c.Request.Context(), key.(string), status, "application/json", body)
	}
}
