package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/permitflow/backend/internal/domain/shared"
	"github.com/permitflow/backend/internal/infrastructure/logger"
	"github.com/permitflow/backend/internal/interfaces/http/dto"
	"github.com/permitflow/backend/internal/interfaces/http/middleware"
	"go.uber.org/zap"
)

// RequestIDKey is the context key for request ID
const RequestIDKey = middleware.RequestIDKey

// DefaultTenantID is used when a request carries no tenant (single-office installs)
var DefaultTenantID = uuid.MustParse("00000000-0000-0000-0000-000000000001")

// BaseHandler provides common handler utilities
type BaseHandler struct{}

// getRequestID extracts the request ID from the context
func getRequestID(c *gin.Context) string {
	if id := c.GetString(RequestIDKey); id != "" {
		return id
	}
	return c.GetHeader(RequestIDKey)
}

// getTenantID returns the tenant set by the tenant middleware, falling back
// to the X-Tenant-ID header and then to DefaultTenantID
func getTenantID(c *gin.Context) (uuid.UUID, error) {
	tenantIDStr := middleware.GetTenantID(c)
	if tenantIDStr == "" {
		tenantIDStr = c.GetHeader(middleware.TenantHeaderKey)
	}
	if tenantIDStr == "" {
		return DefaultTenantID, nil
	}
	return uuid.Parse(tenantIDStr)
}

// getActor returns the acting user's name, preferring the request body value
func getActor(c *gin.Context, fromBody string) string {
	if fromBody != "" {
		return fromBody
	}
	if actor := middleware.GetActor(c); actor != "" {
		return actor
	}
	return c.GetHeader(middleware.ActorHeaderKey)
}

// parseIDParam parses a UUID path parameter, writing a 400 on failure
func (h *BaseHandler) parseIDParam(c *gin.Context, name, label string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		h.BadRequest(c, "Invalid "+label+" ID format")
		return uuid.Nil, false
	}
	return id, true
}

// tenant resolves the tenant, writing a 400 on failure
func (h *BaseHandler) tenant(c *gin.Context) (uuid.UUID, bool) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return uuid.Nil, false
	}
	return tenantID, true
}

// bindJSON binds the body into req, writing a 400 with field details on failure
func (h *BaseHandler) bindJSON(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		if details := middleware.ValidationDetails(err); len(details) > 0 {
			h.ValidationError(c, details)
		} else {
			h.Error(c, http.StatusBadRequest, dto.ErrCodeInvalidJSON, err.Error())
		}
		return false
	}
	return true
}

// Success sends a success response
func (h *BaseHandler) Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

// SuccessWithMeta sends a success response with pagination meta
func (h *BaseHandler) SuccessWithMeta(c *gin.Context, data any, total int64, page, pageSize int) {
	c.JSON(http.StatusOK, dto.NewSuccessResponseWithMeta(data, total, page, pageSize))
}

// Created sends a 201 created response
func (h *BaseHandler) Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, dto.NewSuccessResponse(data))
}

// Error sends an error response with the appropriate status code
func (h *BaseHandler) Error(c *gin.Context, statusCode int, code, message string) {
	c.JSON(statusCode, dto.NewErrorResponseWithRequestID(code, message, getRequestID(c)))
}

// BadRequest sends a 400 bad request response
func (h *BaseHandler) BadRequest(c *gin.Context, message string) {
	h.Error(c, http.StatusBadRequest, dto.ErrCodeBadRequest, message)
}

// NotFound sends a 404 not found response
func (h *BaseHandler) NotFound(c *gin.Context, message string) {
	h.Error(c, http.StatusNotFound, dto.ErrCodeNotFound, message)
}

// InternalError sends a 500 internal server error response
func (h *BaseHandler) InternalError(c *gin.Context, message string) {
	h.Error(c, http.StatusInternalServerError, dto.ErrCodeInternal, message)
}

// ValidationError sends a 400 validation error response with details
func (h *BaseHandler) ValidationError(c *gin.Context, details []dto.ValidationDetail) {
	c.JSON(http.StatusBadRequest, dto.NewValidationErrorResponse(
		"Request validation failed",
		getRequestID(c),
		details,
	))
}

// HandleError converts domain errors to HTTP responses. Anything that is not
// a DomainError is logged and reported as a 500 without its message.
func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}

	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		code := dto.NormalizeErrorCode(domainErr.Code)
		statusCode := dto.GetHTTPStatus(code)
		if statusCode >= http.StatusInternalServerError {
			logger.L(c.Request.Context()).Error("request failed", zap.Error(err))
		}
		_ = c.Error(err)
		c.JSON(statusCode, dto.NewErrorResponseWithRequestID(code, domainErr.Message, getRequestID(c)))
		return
	}

	logger.L(c.Request.Context()).Error("unexpected error", zap.Error(err))
	_ = c.Error(err)
	h.InternalError(c, "An unexpected error occurred")
}
