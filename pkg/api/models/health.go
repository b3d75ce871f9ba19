package models

// HealthResponse represents the health check response
type HealthResponse struct {
	Status  string `json:"status"` // "ok", "degraded", "down"
	Message string `json:"message"`
}

// StatusResponse represents detailed system status
type StatusResponse struct {
	Status      string      `json:"status"` // "ok", "degraded", "down"
	Version     string      `json:"version"`
	Store       StoreStatus `json:"store"`
	API         APIStatus   `json:"api"`
	PolicyCount int         `json:"policy_count"`
	DryRun      bool        `json:"dry_run"`
	Uptime      int64       `json:"uptime_seconds"`
}

// StoreStatus represents policy store status
type StoreStatus struct {
	Status  string `json:"status"` // "available", "error"
	Message string `json:"message"`
}

// APIStatus represents API server status
type APIStatus struct {
	Status  string `json:"status"` // "running", "stopped", "error"
	Message string `json:"message"`
}
