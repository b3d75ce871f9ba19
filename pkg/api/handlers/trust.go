package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/SanketKarpe/srujan/pkg/api/models"
	"github.com/SanketKarpe/srujan/pkg/storage"
	"github.com/SanketKarpe/srujan/pkg/trust"
)

// TrustHandler handles trust score requests
type TrustHandler struct {
	store  storage.Store
	scorer *trust.Scorer
}

// NewTrustHandler creates a new trust handler
func NewTrustHandler(store storage.Store, scorer *trust.Scorer) *TrustHandler {
	return &TrustHandler{
		store:  store,
		scorer: scorer,
	}
}

// GetTrustScore handles GET /api/v1/trust/:device_id.
// With ?recalculate=true the cached record is discarded and the score
// recomputed from fresh signals.
func (h *TrustHandler) GetTrustScore(c *gin.Context) {
	deviceID := c.Param("device_id")

	var rec *trust.Record
	if c.Query("recalculate") == "true" {
		rec = h.scorer.Recalculate(deviceID)
	} else {
		rec = h.scorer.Calculate(deviceID)
	}

	h.persist(rec)
	c.JSON(http.StatusOK, rec)
}

// ListTrustScores handles GET /api/v1/trust
func (h *TrustHandler) ListTrustScores(c *gin.Context) {
	records, err := h.store.ListTrustScores()
	if err != nil {
		log.Errorf("Failed to list trust scores: %v", err)
		c.JSON(http.StatusInternalServerError, models.NewErrorResponse(
			http.StatusInternalServerError,
			"trust_error",
			"Failed to list trust scores",
			err.Error(),
		))
		return
	}

	if records == nil {
		records = []trust.Record{}
	}

	byLevel := make(map[string]int)
	total := 0
	for _, rec := range records {
		byLevel[string(rec.Level)]++
		total += rec.Score
	}
	average := 0.0
	if len(records) > 0 {
		average = float64(total) / float64(len(records))
	}

	c.JSON(http.StatusOK, models.TrustListResponse{
		Scores:       records,
		Total:        len(records),
		ByLevel:      byLevel,
		AverageScore: average,
	})
}

// OverrideTrustScore handles PUT /api/v1/trust/:device_id.
// The manual score is pinned until the next explicit recalculation.
func (h *TrustHandler) OverrideTrustScore(c *gin.Context) {
	deviceID := c.Param("device_id")

	var req models.TrustOverrideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.NewErrorResponse(
			http.StatusBadRequest,
			"validation_error",
			"Invalid request body",
			err.Error(),
		))
		return
	}

	rec := h.scorer.Override(deviceID, req.Score, req.Reason)
	h.persist(rec)
	c.JSON(http.StatusOK, rec)
}

// Recalculate handles POST /api/v1/trust/recalculate. An empty device
// list recalculates every device with a stored score.
func (h *TrustHandler) Recalculate(c *gin.Context) {
	var req models.RecalculateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.NewErrorResponse(
			http.StatusBadRequest,
			"validation_error",
			"Invalid request body",
			err.Error(),
		))
		return
	}

	devices := req.Devices
	if len(devices) == 0 {
		stored, err := h.store.ListTrustScores()
		if err != nil {
			log.Errorf("Failed to list trust scores: %v", err)
			c.JSON(http.StatusInternalServerError, models.NewErrorResponse(
				http.StatusInternalServerError,
				"trust_error",
				"Failed to list devices for recalculation",
				err.Error(),
			))
			return
		}
		for _, rec := range stored {
			devices = append(devices, rec.DeviceID)
		}
	}

	results := h.scorer.RecalculateAll(devices)
	for _, rec := range results {
		h.persist(rec)
	}

	c.JSON(http.StatusOK, models.RecalculateResponse{
		Status:       "completed",
		Recalculated: len(results),
		Summary:      h.scorer.Summarize(devices),
	})
}

// GetSummary handles GET /api/v1/trust/summary
func (h *TrustHandler) GetSummary(c *gin.Context) {
	stored, err := h.store.ListTrustScores()
	if err != nil {
		log.Errorf("Failed to list trust scores: %v", err)
		c.JSON(http.StatusInternalServerError, models.NewErrorResponse(
			http.StatusInternalServerError,
			"trust_error",
			"Failed to summarize trust scores",
			err.Error(),
		))
		return
	}

	devices := make([]string, 0, len(stored))
	for _, rec := range stored {
		devices = append(devices, rec.DeviceID)
	}

	c.JSON(http.StatusOK, h.scorer.Summarize(devices))
}

// persist saves a computed record; a store failure never blocks the
// response since the scorer cache stays authoritative.
func (h *TrustHandler) persist(rec *trust.Record) {
	if err := h.store.SaveTrustScore(rec); err != nil {
		log.Warnf("Failed to persist trust score for %s: %v", rec.DeviceID, err)
	}
}
