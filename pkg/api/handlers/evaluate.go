package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/SanketKarpe/srujan/pkg/api/models"
	"github.com/SanketKarpe/srujan/pkg/engine"
)

// EvaluateHandler handles connection evaluation requests
type EvaluateHandler struct {
	engine *engine.Engine
}

// NewEvaluateHandler creates a new evaluate handler
func NewEvaluateHandler(eng *engine.Engine) *EvaluateHandler {
	return &EvaluateHandler{engine: eng}
}

// Evaluate handles POST /api/v1/evaluate
func (h *EvaluateHandler) Evaluate(c *gin.Context) {
	var req models.EvaluateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.NewErrorResponse(
			http.StatusBadRequest,
			"validation_error",
			"Invalid request body",
			err.Error(),
		))
		return
	}

	action, matched := h.engine.EvaluateConnection(req.Source, req.Destination, req.Extras)

	response := models.EvaluateResponse{
		Action:  action,
		Matched: matched != nil,
	}
	if matched != nil {
		response.PolicyID = matched.ID
		response.PolicyName = matched.Name
	}

	c.JSON(http.StatusOK, response)
}
