package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/SanketKarpe/srujan/pkg/api/models"
	"github.com/SanketKarpe/srujan/pkg/storage"
)

var startTime = time.Now()

// HealthHandler handles health check requests
type HealthHandler struct {
	store  storage.Store
	dryRun bool
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(store storage.Store, dryRun bool) *HealthHandler {
	return &HealthHandler{
		store:  store,
		dryRun: dryRun,
	}
}

// GetHealth handles GET /api/v1/health
// Simple health check endpoint
func (h *HealthHandler) GetHealth(c *gin.Context) {
	response := models.HealthResponse{
		Status:  "ok",
		Message: "API server is healthy",
	}

	c.JSON(http.StatusOK, response)
}

// GetStatus handles GET /api/v1/status
// Detailed status endpoint with policy store information
func (h *HealthHandler) GetStatus(c *gin.Context) {
	// Probe the store with a real query
	policies, err := h.store.ListPolicies()

	storeStatus := models.StoreStatus{
		Status:  "available",
		Message: "Policy store is operational",
	}
	overallStatus := "ok"
	if err != nil {
		storeStatus.Status = "error"
		storeStatus.Message = err.Error()
		overallStatus = "degraded"
	}

	response := models.StatusResponse{
		Status:  overallStatus,
		Version: "0.1.0", // TODO: Get from build info
		Store:   storeStatus,
		API: models.APIStatus{
			Status:  "running",
			Message: "API server is operational",
		},
		PolicyCount: len(policies),
		DryRun:      h.dryRun,
		Uptime:      int64(time.Since(startTime).Seconds()),
	}

	c.JSON(http.StatusOK, response)
}
