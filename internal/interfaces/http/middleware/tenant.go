package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/permitflow/backend/internal/infrastructure/logger"
	"github.com/permitflow/backend/internal/interfaces/http/dto"
	"go.uber.org/zap"
)

// Context keys and headers for the acting organization and user
const (
	TenantIDKey     = "tenant_id"
	TenantHeaderKey = "X-Tenant-ID"
	ActorKey        = "actor"
	ActorHeaderKey  = "X-Actor"
)

// MaxActorLength bounds the actor name copied onto follow-ups and log entries
const MaxActorLength = 255

// TenantMiddlewareConfig holds configuration for tenant middleware
type TenantMiddlewareConfig struct {
	// SkipPaths are paths that don't require tenant context (e.g., health check)
	SkipPaths []string
	// Required rejects requests without an X-Tenant-ID header
	Required bool
	Logger   *zap.Logger
}

// DefaultTenantConfig returns default tenant middleware configuration
func DefaultTenantConfig() TenantMiddlewareConfig {
	return TenantMiddlewareConfig{
		SkipPaths: []string{"/health", "/healthz", "/ready", "/api/v1/health"},
		Required:  true,
	}
}

// TenantMiddleware extracts the tenant and actor from request headers
func TenantMiddleware() gin.HandlerFunc {
	return TenantMiddlewareWithConfig(DefaultTenantConfig())
}

// TenantMiddlewareWithConfig returns tenant middleware with custom configuration
func TenantMiddlewareWithConfig(cfg TenantMiddlewareConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		for _, skipPath := range cfg.SkipPaths {
			if path == skipPath || strings.HasPrefix(path, skipPath+"/") {
				c.Next()
				return
			}
		}

		tenantID := c.GetHeader(TenantHeaderKey)
		if tenantID != "" {
			if _, err := uuid.Parse(tenantID); err != nil {
				respondUnauthorized(c, "Invalid tenant ID format")
				return
			}
		}
		if tenantID == "" && cfg.Required {
			respondUnauthorized(c, "Tenant identification required")
			return
		}

		ctx := c.Request.Context()
		if tenantID != "" {
			c.Set(TenantIDKey, tenantID)
			ctx = logger.WithTenantID(ctx, tenantID)
		}

		if actor := strings.TrimSpace(c.GetHeader(ActorHeaderKey)); actor != "" {
			if len(actor) > MaxActorLength {
				actor = actor[:MaxActorLength]
			}
			c.Set(ActorKey, actor)
			ctx = logger.WithActor(ctx, actor)
		}
		c.Request = c.Request.WithContext(ctx)

		if cfg.Logger != nil && tenantID != "" {
			cfg.Logger.Debug("Tenant identified", zap.String("tenant_id", tenantID))
		}

		c.Next()
	}
}

func respondUnauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized,
		dto.NewErrorResponseWithRequestID(dto.ErrCodeUnauthorized, message, c.GetString(RequestIDKey)))
}

// GetTenantID retrieves the tenant ID from gin.Context
func GetTenantID(c *gin.Context) string {
	return c.GetString(TenantIDKey)
}

// GetTenantUUID retrieves the tenant ID as UUID from gin.Context
func GetTenantUUID(c *gin.Context) (uuid.UUID, error) {
	tenantID := GetTenantID(c)
	if tenantID == "" {
		return uuid.Nil, nil
	}
	return uuid.Parse(tenantID)
}

// GetActor retrieves the acting user's display name, or ""
func GetActor(c *gin.Context) string {
	return c.GetString(ActorKey)
}
