package models

import "github.com/SanketKarpe/srujan/pkg/policy"

// EvaluateRequest represents a connection to evaluate
type EvaluateRequest struct {
	Source      string                 `json:"source" binding:"required"`
	Destination string                 `json:"destination" binding:"required"`
	Extras      map[string]interface{} `json:"extras"`
}

// EvaluateResponse represents the decision for a connection
type EvaluateResponse struct {
	Action     policy.Action `json:"action"`
	Matched    bool          `json:"matched"`
	PolicyID   int64         `json:"policy_id,omitempty"`
	PolicyName string        `json:"policy_name,omitempty"`
}
