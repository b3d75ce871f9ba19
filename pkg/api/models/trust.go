package models

import "github.com/SanketKarpe/srujan/pkg/trust"

// TrustOverrideRequest represents a manual trust score override
type TrustOverrideRequest struct {
	Score  int    `json:"score" binding:"min=0,max=100"`
	Reason string `json:"reason" binding:"required"`
}

// TrustListResponse represents trust scores for all known devices
type TrustListResponse struct {
	Scores       []trust.Record `json:"scores"`
	Total        int            `json:"total"`
	ByLevel      map[string]int `json:"by_level"`
	AverageScore float64        `json:"average_score"`
}

// RecalculateRequest selects the devices to recalculate; empty means
// every device with a stored score
type RecalculateRequest struct {
	Devices []string `json:"devices"`
}

// RecalculateResponse represents the result of a bulk recalculation
type RecalculateResponse struct {
	Status       string        `json:"status"`
	Recalculated int           `json:"recalculated"`
	Summary      trust.Summary `json:"summary"`
}
