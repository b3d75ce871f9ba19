package models

import (
	"time"

	"github.com/SanketKarpe/srujan/pkg/engine"
	"github.com/SanketKarpe/srujan/pkg/policy"
	"github.com/SanketKarpe/srujan/pkg/storage"
)

// PolicyRequest represents a policy creation request
type PolicyRequest struct {
	Name        string             `json:"name" binding:"required"`
	Description string             `json:"description"`
	Source      string             `json:"source" binding:"required"`
	Destination string             `json:"destination" binding:"required"`
	Conditions  []policy.Condition `json:"conditions"`
	Action      string             `json:"action" binding:"required"`
	Priority    int                `json:"priority"`
	Enabled     *bool              `json:"enabled"`
}

// Policy converts the request into the internal policy model.
// Priority defaults to 50 and enabled to true when omitted.
func (r *PolicyRequest) Policy() *policy.Policy {
	priority := r.Priority
	if priority == 0 {
		priority = 50
	}
	enabled := true
	if r.Enabled != nil {
		enabled = *r.Enabled
	}
	conditions := r.Conditions
	if conditions == nil {
		conditions = []policy.Condition{}
	}
	return &policy.Policy{
		Name:        r.Name,
		Description: r.Description,
		Source:      r.Source,
		Destination: r.Destination,
		Conditions:  conditions,
		Action:      policy.Action(r.Action),
		Priority:    priority,
		Enabled:     enabled,
	}
}

// PolicyUpdateRequest represents a partial policy update; omitted
// fields are left unchanged
type PolicyUpdateRequest struct {
	Name        *string             `json:"name,omitempty"`
	Description *string             `json:"description,omitempty"`
	Source      *string             `json:"source,omitempty"`
	Destination *string             `json:"destination,omitempty"`
	Action      *string             `json:"action,omitempty"`
	Priority    *int                `json:"priority,omitempty"`
	Enabled     *bool               `json:"enabled,omitempty"`
	Conditions  *[]policy.Condition `json:"conditions,omitempty"`
}

// Empty reports whether the update carries no fields at all
func (r *PolicyUpdateRequest) Empty() bool {
	return r.Name == nil && r.Description == nil && r.Source == nil &&
		r.Destination == nil && r.Action == nil && r.Priority == nil &&
		r.Enabled == nil && r.Conditions == nil
}

// PolicyCreateResponse returns the created policy with advisory
// conflicts; conflicts never block creation
type PolicyCreateResponse struct {
	Policy    *policy.Policy    `json:"policy"`
	Conflicts []policy.Conflict `json:"conflicts"`
	Warning   string            `json:"warning,omitempty"`
}

// PolicyListResponse represents a list of policies
type PolicyListResponse struct {
	Policies []policy.Policy `json:"policies"`
	Count    int             `json:"count"`
}

// TemplateListResponse represents the built-in policy templates
type TemplateListResponse struct {
	Templates []policy.Policy `json:"templates"`
	Count     int             `json:"count"`
}

// ConflictListResponse represents the conflicts found for a draft
// policy
type ConflictListResponse struct {
	Conflicts []policy.Conflict `json:"conflicts"`
	Count     int               `json:"count"`
}

// TestPolicyRequest carries the literal contexts to test a policy
// against
type TestPolicyRequest struct {
	Contexts []policy.Context `json:"contexts" binding:"required"`
}

// TestPolicyResponse represents the outcome of a policy test run
type TestPolicyResponse struct {
	PolicyID     int64               `json:"policy_id"`
	PolicyName   string              `json:"policy_name"`
	Results      []engine.TestResult `json:"results"`
	MatchedCount int                 `json:"matched_count"`
}

// ApplyResponse represents the result of an enforcement batch
type ApplyResponse struct {
	Status    string              `json:"status"`
	Timestamp time.Time           `json:"timestamp"`
	Results   *engine.ApplyResult `json:"results"`
}

// SuggestResponse represents policy suggestions for a device
type SuggestResponse struct {
	DeviceID    string              `json:"device_id"`
	Suggestions []engine.Suggestion `json:"suggestions"`
	Count       int                 `json:"count"`
}

// AuditLogResponse represents audit records for a policy
type AuditLogResponse struct {
	PolicyID int64                 `json:"policy_id"`
	Logs     []storage.AuditRecord `json:"logs"`
	Count    int                   `json:"count"`
}
