package handler

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/permitflow/backend/internal/interfaces/http/dto"
)

// HealthCheck checks one dependency. A nil error means healthy.
type HealthCheck func(ctx context.Context) error

// SystemHandler handles system-related API endpoints
type SystemHandler struct {
	BaseHandler
	name      string
	version   string
	startTime time.Time
	checks    map[string]HealthCheck
	timeout   time.Duration
}

// NewSystemHandler creates a new SystemHandler
func NewSystemHandler(name, version string) *SystemHandler {
	return &SystemHandler{
		name:      name,
		version:   version,
		startTime: time.Now(),
		checks:    make(map[string]HealthCheck),
		timeout:   2 * time.Second,
	}
}

// AddCheck registers a readiness check under name
func (h *SystemHandler) AddCheck(name string, check HealthCheck) *SystemHandler {
	h.checks[name] = check
	return h
}

// SystemInfoResponse represents the system information response
type SystemInfoResponse struct {
	Name      string `json:"name"`
	Version   string `json:"version"`
	GoVersion string `json:"go_version"`
	Uptime    string `json:"uptime"`
}

// HealthResponse reports liveness or readiness
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// GetSystemInfo serves GET /system/info: get system information
func (h *SystemHandler) GetSystemInfo(c *gin.Context) {
	info := SystemInfoResponse{
		Name:      h.name,
		Version:   h.version,
		GoVersion: runtime.Version(),
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
	}
	c.JSON(http.StatusOK, dto.NewSuccessResponse(info))
}

// Health serves GET /health: liveness check
func (h *SystemHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

// Ready serves GET /ready: readiness check
func (h *SystemHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	resp := HealthResponse{Status: "ok", Checks: make(map[string]string, len(h.checks))}
	status := http.StatusOK
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			resp.Checks[name] = err.Error()
			resp.Status = "unavailable"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[name] = "ok"
	}
	c.JSON(status, resp)
}
