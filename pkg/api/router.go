package api

import (
	"github.com/SanketKarpe/srujan/pkg/api/handlers"
)

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	// Create handlers
	healthHandler := handlers.NewHealthHandler(s.store, s.dryRun)
	policyHandler := handlers.NewPolicyHandler(s.store, s.engine)
	trustHandler := handlers.NewTrustHandler(s.store, s.scorer)
	evaluateHandler := handlers.NewEvaluateHandler(s.engine)

	// API v1 group
	v1 := s.router.Group("/api/v1")
	{
		// Health and status endpoints
		v1.GET("/health", healthHandler.GetHealth)
		v1.GET("/status", healthHandler.GetStatus)

		// Policy management endpoints
		policies := v1.Group("/policies")
		{
			policies.POST("", policyHandler.CreatePolicy)
			policies.GET("", policyHandler.ListPolicies)
			policies.GET("/templates", policyHandler.ListTemplates)
			policies.POST("/conflicts", policyHandler.DetectConflicts)
			policies.POST("/apply", policyHandler.ApplyPolicies)
			policies.GET("/suggest/:device_id", policyHandler.SuggestPolicies)
			policies.GET("/:id", policyHandler.GetPolicy)
			policies.PUT("/:id", policyHandler.UpdatePolicy)
			policies.DELETE("/:id", policyHandler.DeletePolicy)
			policies.POST("/:id/test", policyHandler.TestPolicy)
			policies.GET("/:id/logs", policyHandler.GetPolicyLogs)
		}

		// Trust score endpoints
		trustGroup := v1.Group("/trust")
		{
			trustGroup.GET("", trustHandler.ListTrustScores)
			trustGroup.GET("/summary", trustHandler.GetSummary)
			trustGroup.POST("/recalculate", trustHandler.Recalculate)
			trustGroup.GET("/:device_id", trustHandler.GetTrustScore)
			trustGroup.PUT("/:device_id", trustHandler.OverrideTrustScore)
		}

		// Connection evaluation endpoint
		v1.POST("/evaluate", evaluateHandler.Evaluate)
	}
}
