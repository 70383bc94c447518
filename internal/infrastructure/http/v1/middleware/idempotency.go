package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"stevedore/internal/core/apperror"
	appctx "stevedore/internal/core/context"
	"stevedore/internal/infrastructure/storage/postgres"
)

// HeaderIdempotencyKey is the client-supplied key for exactly-once mutations.
const HeaderIdempotencyKey = "Idempotency-Key"

const maxIdempotencyBodyBytes = 1 << 20 // 1 MiB

// Idempotency middleware protects mutating requests against duplicate
// execution. The first request with a given key runs and its response is
// recorded; a retry with the same key and payload replays the recorded
// response without touching the handler. Requests without the header pass
// through untouched.
func Idempotency(store *postgres.IdempotencyStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		// DELETE is covered too: removing a tally pallet is a mutation
		// scanners retry on flaky networks.
		switch c.Request.Method {
		case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		default:
			c.Next()
			return
		}

		key := c.GetHeader(HeaderIdempotencyKey)
		if key == "" {
			c.Next()
			return
		}

		operatorID := appctx.GetOperatorID(c.Request.Context())

		// Hash request body for payload mismatch detection
		limited := io.LimitReader(c.Request.Body, maxIdempotencyBodyBytes+1)
		body, _ := io.ReadAll(limited)
		if len(body) > maxIdempotencyBodyBytes {
			appErr := apperror.NewValidation("request body too large for idempotency")
			appErr.HTTPStatus = http.StatusRequestEntityTooLarge
			_ = c.Error(appErr.WithDetail("max_bytes", maxIdempotencyBodyBytes))
			c.Abort()
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))
		hash := sha256.Sum256(body)
		requestHash := hex.EncodeToString(hash[:])

		operation := c.Request.Method + " " + c.FullPath()

		replay, err := store.AcquireKey(c.Request.Context(), key, operatorID, operation, requestHash)
		if err != nil {
			if appErr, ok := apperror.AsAppError(err); ok {
				_ = c.Error(appErr)
				c.Abort()
				return
			}
			_ = c.Error(apperror.NewInternal(err).WithDetail("component", "idempotency"))
			c.Abort()
			return
		}

		if replay != nil {
			c.Header("Idempotency-Replay", "true")
			c.Data(replay.StatusCode, replay.ContentType, replay.Body)
			c.Abort()
			return
		}

		// Handlers complete the key after a successful response; the error
		// middleware releases it on failure so a retry can run again.
		c.Set("idempotency_key", key)
		c.Set("idempotency_store", store)

		c.Next()
	}
}
