package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/SanketKarpe/srujan/pkg/api/models"
	"github.com/SanketKarpe/srujan/pkg/engine"
	"github.com/SanketKarpe/srujan/pkg/policy"
	"github.com/SanketKarpe/srujan/pkg/storage"
)

// PolicyHandler handles policy management requests
type PolicyHandler struct {
	store  storage.Store
	engine *engine.Engine
}

// NewPolicyHandler creates a new policy handler
func NewPolicyHandler(store storage.Store, eng *engine.Engine) *PolicyHandler {
	return &PolicyHandler{
		store:  store,
		engine: eng,
	}
}

// CreatePolicy handles POST /api/v1/policies
func (h *PolicyHandler) CreatePolicy(c *gin.Context) {
	var req models.PolicyRequest

	// Bind and validate JSON request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.NewErrorResponse(
			http.StatusBadRequest,
			"validation_error",
			"Invalid request body",
			err.Error(),
		))
		return
	}

	// Convert to internal policy format and validate the full rule
	p := req.Policy()
	if err := p.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, models.NewErrorResponse(
			http.StatusBadRequest,
			"validation_error",
			"Invalid policy",
			err.Error(),
		))
		return
	}

	// Conflicts are advisory; the policy is created regardless
	conflicts := h.engine.DetectConflicts(p)

	if _, err := h.store.CreatePolicy(p); err != nil {
		if errors.Is(err, storage.ErrDuplicateName) {
			c.JSON(http.StatusConflict, models.NewErrorResponse(
				http.StatusConflict,
				"duplicate_name",
				fmt.Sprintf("Policy named %q already exists", p.Name),
				nil,
			))
			return
		}
		log.Errorf("Failed to create policy: %v", err)
		c.JSON(http.StatusInternalServerError, models.NewErrorResponse(
			http.StatusInternalServerError,
			"policy_error",
			"Failed to create policy",
			err.Error(),
		))
		return
	}

	h.reloadEngine()

	response := models.PolicyCreateResponse{
		Policy:    p,
		Conflicts: conflicts,
	}
	if len(conflicts) > 0 {
		response.Warning = fmt.Sprintf("Policy conflicts with %d existing policies", len(conflicts))
	}
	if conflicts == nil {
		response.Conflicts = []policy.Conflict{}
	}

	c.JSON(http.StatusCreated, response)
}

// ListPolicies handles GET /api/v1/policies
func (h *PolicyHandler) ListPolicies(c *gin.Context) {
	var (
		policies []policy.Policy
		err      error
	)
	if c.Query("enabled_only") == "true" {
		policies, err = h.store.ListEnabledPolicies()
	} else {
		policies, err = h.store.ListPolicies()
	}
	if err != nil {
		log.Errorf("Failed to list policies: %v", err)
		c.JSON(http.StatusInternalServerError, models.NewErrorResponse(
			http.StatusInternalServerError,
			"policy_error",
			"Failed to list policies",
			err.Error(),
		))
		return
	}

	if policies == nil {
		policies = []policy.Policy{}
	}
	c.JSON(http.StatusOK, models.PolicyListResponse{
		Policies: policies,
		Count:    len(policies),
	})
}

// GetPolicy handles GET /api/v1/policies/:id
func (h *PolicyHandler) GetPolicy(c *gin.Context) {
	id, ok := h.policyID(c)
	if !ok {
		return
	}

	p, err := h.store.GetPolicy(id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, models.NewErrorResponse(
				http.StatusNotFound,
				"not_found",
				fmt.Sprintf("Policy %d not found", id),
				nil,
			))
			return
		}
		log.Errorf("Failed to get policy %d: %v", id, err)
		c.JSON(http.StatusInternalServerError, models.NewErrorResponse(
			http.StatusInternalServerError,
			"policy_error",
			"Failed to retrieve policy",
			err.Error(),
		))
		return
	}

	c.JSON(http.StatusOK, p)
}

// UpdatePolicy handles PUT /api/v1/policies/:id
func (h *PolicyHandler) UpdatePolicy(c *gin.Context) {
	id, ok := h.policyID(c)
	if !ok {
		return
	}

	var req models.PolicyUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.NewErrorResponse(
			http.StatusBadRequest,
			"validation_error",
			"Invalid request body",
			err.Error(),
		))
		return
	}
	if req.Empty() {
		c.JSON(http.StatusBadRequest, models.NewErrorResponse(
			http.StatusBadRequest,
			"validation_error",
			"Update request carries no fields",
			nil,
		))
		return
	}

	update := storage.PolicyUpdate{
		Name:        req.Name,
		Description: req.Description,
		Source:      req.Source,
		Destination: req.Destination,
		Priority:    req.Priority,
		Enabled:     req.Enabled,
		Conditions:  req.Conditions,
	}
	if req.Action != nil {
		action, err := policy.ParseAction(*req.Action)
		if err != nil {
			c.JSON(http.StatusBadRequest, models.NewErrorResponse(
				http.StatusBadRequest,
				"validation_error",
				"Invalid action",
				err.Error(),
			))
			return
		}
		update.Action = &action
	}
	// Merge onto the stored policy and validate the result as a
	// whole, so a partial update cannot persist a policy that
	// creation would have rejected.
	current, err := h.store.GetPolicy(id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, models.NewErrorResponse(
				http.StatusNotFound,
				"not_found",
				fmt.Sprintf("Policy %d not found", id),
				nil,
			))
			return
		}
		log.Errorf("Failed to get policy %d: %v", id, err)
		c.JSON(http.StatusInternalServerError, models.NewErrorResponse(
			http.StatusInternalServerError,
			"policy_error",
			"Failed to retrieve policy",
			err.Error(),
		))
		return
	}

	merged := *current
	if update.Name != nil {
		merged.Name = *update.Name
	}
	if update.Description != nil {
		merged.Description = *update.Description
	}
	if update.Source != nil {
		merged.Source = *update.Source
	}
	if update.Destination != nil {
		merged.Destination = *update.Destination
	}
	if update.Action != nil {
		merged.Action = *update.Action
	}
	if update.Priority != nil {
		merged.Priority = *update.Priority
	}
	if update.Enabled != nil {
		merged.Enabled = *update.Enabled
	}
	if update.Conditions != nil {
		merged.Conditions = *update.Conditions
	}
	if err := merged.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, models.NewErrorResponse(
			http.StatusBadRequest,
			"validation_error",
			"Invalid policy",
			err.Error(),
		))
		return
	}

	updated, err := h.store.UpdatePolicy(id, update)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrNotFound):
			c.JSON(http.StatusNotFound, models.NewErrorResponse(
				http.StatusNotFound,
				"not_found",
				fmt.Sprintf("Policy %d not found", id),
				nil,
			))
		case errors.Is(err, storage.ErrDuplicateName):
			c.JSON(http.StatusConflict, models.NewErrorResponse(
				http.StatusConflict,
				"duplicate_name",
				"Another policy already uses that name",
				nil,
			))
		default:
			log.Errorf("Failed to update policy %d: %v", id, err)
			c.JSON(http.StatusInternalServerError, models.NewErrorResponse(
				http.StatusInternalServerError,
				"policy_error",
				"Failed to update policy",
				err.Error(),
			))
		}
		return
	}

	h.reloadEngine()

	c.JSON(http.StatusOK, updated)
}

// DeletePolicy handles DELETE /api/v1/policies/:id
func (h *PolicyHandler) DeletePolicy(c *gin.Context) {
	id, ok := h.policyID(c)
	if !ok {
		return
	}

	if err := h.store.DeletePolicy(id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, models.NewErrorResponse(
				http.StatusNotFound,
				"not_found",
				fmt.Sprintf("Policy %d not found", id),
				nil,
			))
			return
		}
		log.Errorf("Failed to delete policy %d: %v", id, err)
		c.JSON(http.StatusInternalServerError, models.NewErrorResponse(
			http.StatusInternalServerError,
			"policy_error",
			"Failed to delete policy",
			err.Error(),
		))
		return
	}

	h.reloadEngine()

	c.JSON(http.StatusOK, gin.H{
		"message": fmt.Sprintf("Policy %d deleted successfully", id),
	})
}

// ListTemplates handles GET /api/v1/policies/templates
func (h *PolicyHandler) ListTemplates(c *gin.Context) {
	templates := policy.Templates()
	c.JSON(http.StatusOK, models.TemplateListResponse{
		Templates: templates,
		Count:     len(templates),
	})
}

// DetectConflicts handles POST /api/v1/policies/conflicts.
// The draft policy is validated and checked but never stored.
func (h *PolicyHandler) DetectConflicts(c *gin.Context) {
	var req models.PolicyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.NewErrorResponse(
			http.StatusBadRequest,
			"validation_error",
			"Invalid request body",
			err.Error(),
		))
		return
	}

	p := req.Policy()
	if err := p.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, models.NewErrorResponse(
			http.StatusBadRequest,
			"validation_error",
			"Invalid policy",
			err.Error(),
		))
		return
	}

	conflicts := h.engine.DetectConflicts(p)
	if conflicts == nil {
		conflicts = []policy.Conflict{}
	}
	c.JSON(http.StatusOK, models.ConflictListResponse{
		Conflicts: conflicts,
		Count:     len(conflicts),
	})
}

// TestPolicy handles POST /api/v1/policies/:id/test
func (h *PolicyHandler) TestPolicy(c *gin.Context) {
	id, ok := h.policyID(c)
	if !ok {
		return
	}

	var req models.TestPolicyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.NewErrorResponse(
			http.StatusBadRequest,
			"validation_error",
			"Invalid request body",
			err.Error(),
		))
		return
	}

	p, err := h.store.GetPolicy(id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, models.NewErrorResponse(
				http.StatusNotFound,
				"not_found",
				fmt.Sprintf("Policy %d not found", id),
				nil,
			))
			return
		}
		log.Errorf("Failed to get policy %d: %v", id, err)
		c.JSON(http.StatusInternalServerError, models.NewErrorResponse(
			http.StatusInternalServerError,
			"policy_error",
			"Failed to retrieve policy",
			err.Error(),
		))
		return
	}

	results := h.engine.TestPolicy(p, req.Contexts)
	matched := 0
	for _, r := range results {
		if r.WouldApply {
			matched++
		}
	}

	c.JSON(http.StatusOK, models.TestPolicyResponse{
		PolicyID:     p.ID,
		PolicyName:   p.Name,
		Results:      results,
		MatchedCount: matched,
	})
}

// ApplyPolicies handles POST /api/v1/policies/apply
func (h *PolicyHandler) ApplyPolicies(c *gin.Context) {
	result, err := h.engine.ApplyPolicies(c.Request.Context())
	if err != nil {
		if errors.Is(err, engine.ErrApplyInProgress) {
			c.JSON(http.StatusConflict, models.NewErrorResponse(
				http.StatusConflict,
				"apply_in_progress",
				"Another policy application is already running",
				nil,
			))
			return
		}
		log.Errorf("Failed to apply policies: %v", err)
		c.JSON(http.StatusInternalServerError, models.NewErrorResponse(
			http.StatusInternalServerError,
			"enforcement_error",
			"Failed to apply policies",
			err.Error(),
		))
		return
	}

	c.JSON(http.StatusOK, models.ApplyResponse{
		Status:    "completed",
		Timestamp: time.Now().UTC(),
		Results:   result,
	})
}

// SuggestPolicies handles GET /api/v1/policies/suggest/:device_id
func (h *PolicyHandler) SuggestPolicies(c *gin.Context) {
	deviceID := c.Param("device_id")

	suggestions := h.engine.SuggestPolicies(deviceID)
	if suggestions == nil {
		suggestions = []engine.Suggestion{}
	}

	c.JSON(http.StatusOK, models.SuggestResponse{
		DeviceID:    deviceID,
		Suggestions: suggestions,
		Count:       len(suggestions),
	})
}

// GetPolicyLogs handles GET /api/v1/policies/:id/logs
func (h *PolicyHandler) GetPolicyLogs(c *gin.Context) {
	id, ok := h.policyID(c)
	if !ok {
		return
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			c.JSON(http.StatusBadRequest, models.NewErrorResponse(
				http.StatusBadRequest,
				"validation_error",
				"Invalid limit",
				nil,
			))
			return
		}
		limit = parsed
	}

	logs, err := h.store.ListAudit(id, limit)
	if err != nil {
		log.Errorf("Failed to list audit records for policy %d: %v", id, err)
		c.JSON(http.StatusInternalServerError, models.NewErrorResponse(
			http.StatusInternalServerError,
			"policy_error",
			"Failed to retrieve policy logs",
			err.Error(),
		))
		return
	}

	if logs == nil {
		logs = []storage.AuditRecord{}
	}
	c.JSON(http.StatusOK, models.AuditLogResponse{
		PolicyID: id,
		Logs:     logs,
		Count:    len(logs),
	})
}

// policyID parses the :id path parameter, writing a 400 response on
// failure.
func (h *PolicyHandler) policyID(c *gin.Context) (int64, bool) {
	raw := c.Param("id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, models.NewErrorResponse(
			http.StatusBadRequest,
			"validation_error",
			fmt.Sprintf("Invalid policy ID %q", raw),
			nil,
		))
		return 0, false
	}
	return id, true
}

// reloadEngine refreshes the active snapshot after a mutation. A
// reload failure keeps the previous snapshot serving, so it is logged
// rather than surfaced to the API caller.
func (h *PolicyHandler) reloadEngine() {
	if err := h.engine.LoadPolicies(); err != nil {
		log.Warnf("Failed to reload policies after mutation: %v", err)
	}
}
