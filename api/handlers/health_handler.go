package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yourusername/smart-extract-go/internal/app"
	"github.com/yourusername/smart-extract-go/internal/domain"
)

// Version is reported by the health endpoint
const Version = "1.0.0"

// HealthHandler handles health check and capability requests
type HealthHandler struct {
	downloadMgr *app.DownloadManager
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(downloadMgr *app.DownloadManager) *HealthHandler {
	return &HealthHandler{
		downloadMgr: downloadMgr,
	}
}

// HealthResponse represents a health check response
type HealthResponse struct {
	Status     string            `json:"status"`
	Version    string            `json:"version"`
	Busy       bool              `json:"busy"`
	Capability domain.Capability `json:"capability"`
}

// CapabilityResponse describes what the probed muxer allows
type CapabilityResponse struct {
	domain.Capability
	Format       string                   `json:"format"`
	MergeOptions []domain.MergePreference `json:"merge_options"`
}

// Health handles GET /health
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:     "ok",
		Version:    Version,
		Busy:       h.downloadMgr.Busy(),
		Capability: h.downloadMgr.Capability(),
	})
}

// Ready handles GET /ready
func (h *HealthHandler) Ready(c *gin.Context) {
	if err := h.downloadMgr.EnsureWorkDir(); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"reason": "work directory unavailable: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

// Capability handles GET /api/v1/capability
func (h *HealthHandler) Capability(c *gin.Context) {
	capability := h.downloadMgr.Capability()
	c.JSON(http.StatusOK, CapabilityResponse{
		Capability:   capability,
		Format:       capability.FormatSelector(),
		MergeOptions: capability.MergeOptions(),
	})
}
