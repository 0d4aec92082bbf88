package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/permitflow/backend/internal/interfaces/http/dto"
	"go.uber.org/zap"
)

const (
	// IdempotencyHeaderKey carries a client-chosen key for a side-effecting request
	IdempotencyHeaderKey = "Idempotency-Key"

	// ErrCodeDuplicateRequest is returned when an Idempotency-Key was already used
	ErrCodeDuplicateRequest = "ERR_DUPLICATE_REQUEST"

	maxIdempotencyKeyLength = 255
)

// IdempotencyStore claims request keys for a limited time
type IdempotencyStore interface {
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

// Idempotency rejects a repeated request carrying the same Idempotency-Key
// within ttl. A request that fails (status >= 400) releases its key so the
// client can retry. Requests without the header pass through. A store error
// is logged and the request proceeds.
func Idempotency(store IdempotencyStore, ttl time.Duration, logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		clientKey := c.GetHeader(IdempotencyHeaderKey)
		if clientKey == "" {
			c.Next()
			return
		}
		if len(clientKey) > maxIdempotencyKeyLength {
			c.AbortWithStatusJSON(http.StatusBadRequest,
				dto.NewErrorResponseWithRequestID(dto.ErrCodeInvalidInput,
					"Idempotency-Key is too long", c.GetString(RequestIDKey)))
			return
		}

		key := GetTenantID(c) + ":" + c.Request.Method + ":" + c.FullPath() + ":" + c.Param("id") + ":" + clientKey
		ctx := c.Request.Context()

		claimed, err := store.Claim(ctx, key, ttl)
		if err != nil {
			logger.Warn("Idempotency store unavailable", zap.Error(err))
			c.Next()
			return
		}
		if !claimed {
			c.AbortWithStatusJSON(http.StatusConflict,
				dto.NewErrorResponseWithRequestID(ErrCodeDuplicateRequest,
					"A request with this Idempotency-Key was already processed", c.GetString(RequestIDKey)))
			return
		}

		c.Next()

		if c.Writer.Status() >= http.StatusBadRequest {
			if err := store.Release(context.WithoutCancel(ctx), key); err != nil {
				logger.Warn("Failed to release idempotency key", zap.Error(err))
			}
		}
	}
}
