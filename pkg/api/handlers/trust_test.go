package handlers

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SanketKarpe/srujan/pkg/api/models"
	"github.com/SanketKarpe/srujan/pkg/trust"
)

// TestGetTrustScore tests score computation and persistence
func TestGetTrustScore(t *testing.T) {
	env := setupTestEnv(t)
	env.source.SetDevice("AA:BB:CC:DD:EE:FF", trust.DeviceSignals{Known: true, TrustedManufacturer: true})

	w := env.do(t, http.MethodGet, "/api/v1/trust/AA:BB:CC:DD:EE:FF", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var rec trust.Record
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rec))
	assert.Equal(t, "AA:BB:CC:DD:EE:FF", rec.DeviceID)
	assert.Equal(t, 95, rec.Score)
	assert.Equal(t, trust.LevelHighlyTrusted, rec.Level)
	assert.Contains(t, rec.Factors, "known_device")
	assert.NotEmpty(t, rec.Recommendation)

	// The computed score was persisted
	stored, err := env.store.GetTrustScore("AA:BB:CC:DD:EE:FF")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, 95, stored.Score)
}

// TestGetTrustScore_Recalculate tests the cache bypass query flag
func TestGetTrustScore_Recalculate(t *testing.T) {
	env := setupTestEnv(t)
	env.source.SetDevice("dev-1", trust.DeviceSignals{Known: true})

	w := env.do(t, http.MethodGet, "/api/v1/trust/dev-1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var first trust.Record
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &first))

	// New signals are invisible through the cache
	env.source.SetDevice("dev-1", trust.DeviceSignals{Threats: 5})
	w = env.do(t, http.MethodGet, "/api/v1/trust/dev-1", nil)
	var cached trust.Record
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &cached))
	assert.Equal(t, first.Score, cached.Score)

	// recalculate=true forces a fresh computation
	w = env.do(t, http.MethodGet, "/api/v1/trust/dev-1?recalculate=true", nil)
	var fresh trust.Record
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &fresh))
	assert.NotEqual(t, first.Score, fresh.Score)
}

// TestOverrideTrustScore tests manual overrides through the API
func TestOverrideTrustScore(t *testing.T) {
	env := setupTestEnv(t)

	req := models.TrustOverrideRequest{Score: 5, Reason: "compromised during incident"}
	w := env.do(t, http.MethodPut, "/api/v1/trust/dev-1", req)
	require.Equal(t, http.StatusOK, w.Code)

	var rec trust.Record
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rec))
	assert.Equal(t, 5, rec.Score)
	assert.Equal(t, trust.LevelUntrusted, rec.Level)
	assert.True(t, rec.ManualOverride)
	assert.Contains(t, rec.Factors, "manual_override")

	// The pinned score serves subsequent reads
	w = env.do(t, http.MethodGet, "/api/v1/trust/dev-1", nil)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rec))
	assert.Equal(t, 5, rec.Score)
}

// TestOverrideTrustScore_Validation tests rejected override payloads
func TestOverrideTrustScore_Validation(t *testing.T) {
	env := setupTestEnv(t)

	// Reason is required
	w := env.do(t, http.MethodPut, "/api/v1/trust/dev-1", models.TrustOverrideRequest{Score: 50})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Score must stay inside 0-100
	w = env.do(t, http.MethodPut, "/api/v1/trust/dev-1", map[string]interface{}{
		"score": 150, "reason": "too trusting",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// TestListTrustScores tests the stored score listing
func TestListTrustScores(t *testing.T) {
	env := setupTestEnv(t)
	env.source.SetDevice("good", trust.DeviceSignals{Known: true, TrustedManufacturer: true, MinimalPermissions: true})
	env.source.SetDevice("bad", trust.DeviceSignals{Threats: 10, WeakEncryption: true})

	require.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/api/v1/trust/good", nil).Code)
	require.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/api/v1/trust/bad", nil).Code)

	w := env.do(t, http.MethodGet, "/api/v1/trust", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var response models.TrustListResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, 2, response.Total)
	require.Len(t, response.Scores, 2)
	// Highest score first
	assert.Equal(t, "good", response.Scores[0].DeviceID)
	assert.Equal(t, 1, response.ByLevel[string(trust.LevelHighlyTrusted)])
	assert.Equal(t, 1, response.ByLevel[string(trust.LevelUntrusted)])
	assert.Equal(t, 50.0, response.AverageScore)
}

// TestRecalculateEndpoint tests bulk recalculation
func TestRecalculateEndpoint(t *testing.T) {
	env := setupTestEnv(t)
	env.source.SetDevice("dev-1", trust.DeviceSignals{Known: true})
	require.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/api/v1/trust/dev-1", nil).Code)

	// Signals worsen; a bulk recalculation picks them up
	env.source.SetDevice("dev-1", trust.DeviceSignals{Threats: 6})

	w := env.do(t, http.MethodPost, "/api/v1/trust/recalculate", models.RecalculateRequest{})
	require.Equal(t, http.StatusOK, w.Code)

	var response models.RecalculateResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "completed", response.Status)
	assert.Equal(t, 1, response.Recalculated)

	stored, err := env.store.GetTrustScore("dev-1")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, 20, stored.Score)
}

// TestTrustSummary tests the aggregate endpoint
func TestTrustSummary(t *testing.T) {
	env := setupTestEnv(t)
	env.source.SetDevice("dev-1", trust.DeviceSignals{Known: true, TrustedManufacturer: true, MinimalPermissions: true})
	require.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/api/v1/trust/dev-1", nil).Code)

	w := env.do(t, http.MethodGet, "/api/v1/trust/summary", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var summary trust.Summary
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &summary))
	assert.Equal(t, 1, summary.Total)
	assert.Equal(t, 1, summary.ByLevel[trust.LevelHighlyTrusted])
}
