package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SanketKarpe/srujan/pkg/api/models"
	"github.com/SanketKarpe/srujan/pkg/engine"
	"github.com/SanketKarpe/srujan/pkg/policy"
	"github.com/SanketKarpe/srujan/pkg/storage"
	"github.com/SanketKarpe/srujan/pkg/trust"
)

// testEnv bundles the real collaborators the handlers are wired to
// in production, backed by a throwaway database and a dry-run engine.
type testEnv struct {
	store  *storage.SQLiteStore
	scorer *trust.Scorer
	source *trust.StaticSource
	engine *engine.Engine
	router *gin.Engine
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store, err := storage.NewSQLiteStore(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	source := trust.NewStaticSource()
	scorer := trust.NewScorer(source)
	eng := engine.New(store, scorer, nil, nil, true)
	require.NoError(t, eng.LoadPolicies())

	router := gin.New()
	policyHandler := NewPolicyHandler(store, eng)
	trustHandler := NewTrustHandler(store, scorer)
	evaluateHandler := NewEvaluateHandler(eng)
	healthHandler := NewHealthHandler(store, true)

	v1 := router.Group("/api/v1")
	{
		v1.GET("/health", healthHandler.GetHealth)
		v1.GET("/status", healthHandler.GetStatus)

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

		trustGroup := v1.Group("/trust")
		{
			trustGroup.GET("", trustHandler.ListTrustScores)
			trustGroup.GET("/summary", trustHandler.GetSummary)
			trustGroup.POST("/recalculate", trustHandler.Recalculate)
			trustGroup.GET("/:device_id", trustHandler.GetTrustScore)
			trustGroup.PUT("/:device_id", trustHandler.OverrideTrustScore)
		}

		v1.POST("/evaluate", evaluateHandler.Evaluate)
	}

	return &testEnv{store: store, scorer: scorer, source: source, engine: eng, router: router}
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Buffer
	if body != nil {
		jsonBody, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewBuffer(jsonBody)
	} else {
		reader = bytes.NewBuffer(nil)
	}

	req, err := http.NewRequest(method, path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func samplePolicyRequest(name string) models.PolicyRequest {
	return models.PolicyRequest{
		Name:        name,
		Description: "test policy",
		Source:      "category:iot",
		Destination: "!192.168.0.0/16",
		Conditions: []policy.Condition{
			{Type: policy.CondTimeRange, Operator: policy.OpBetween, Value: policy.BoundsValue(policy.StringValue("22:00"), policy.StringValue("23:59"))},
		},
		Action:   "block",
		Priority: 60,
	}
}

// TestCreatePolicy_Success tests successful policy creation
func TestCreatePolicy_Success(t *testing.T) {
	env := setupTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/v1/policies", samplePolicyRequest("Bedtime Block"))

	assert.Equal(t, http.StatusCreated, w.Code)

	var response models.PolicyCreateResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	require.NotNil(t, response.Policy)
	assert.Positive(t, response.Policy.ID)
	assert.Equal(t, "Bedtime Block", response.Policy.Name)
	assert.True(t, response.Policy.Enabled)
	assert.Empty(t, response.Conflicts)
}

// TestCreatePolicy_ReportsConflicts tests that advisory conflicts are
// returned without blocking creation
func TestCreatePolicy_ReportsConflicts(t *testing.T) {
	env := setupTestEnv(t)

	first := models.PolicyRequest{
		Name: "Blanket Block", Source: "any", Destination: "any",
		Action: "block", Priority: 50,
	}
	w := env.do(t, http.MethodPost, "/api/v1/policies", first)
	require.Equal(t, http.StatusCreated, w.Code)

	second := models.PolicyRequest{
		Name: "Blanket Allow", Source: "any", Destination: "any",
		Action: "allow", Priority: 50,
	}
	w = env.do(t, http.MethodPost, "/api/v1/policies", second)
	assert.Equal(t, http.StatusCreated, w.Code)

	var response models.PolicyCreateResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	require.Len(t, response.Conflicts, 1)
	assert.Equal(t, "high", response.Conflicts[0].Severity)
	assert.NotEmpty(t, response.Warning)
}

// TestCreatePolicy_DuplicateName tests the 409 on duplicate names
func TestCreatePolicy_DuplicateName(t *testing.T) {
	env := setupTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/v1/policies", samplePolicyRequest("Unique"))
	require.Equal(t, http.StatusCreated, w.Code)

	w = env.do(t, http.MethodPost, "/api/v1/policies", samplePolicyRequest("Unique"))
	assert.Equal(t, http.StatusConflict, w.Code)

	var response models.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "duplicate_name", response.Error)
}

// TestCreatePolicy_ValidationErrors tests rejected policy shapes
func TestCreatePolicy_ValidationErrors(t *testing.T) {
	env := setupTestEnv(t)

	testCases := []struct {
		name   string
		mutate func(r *models.PolicyRequest)
	}{
		{name: "unknown action", mutate: func(r *models.PolicyRequest) { r.Action = "reject" }},
		{name: "bad condition operator", mutate: func(r *models.PolicyRequest) {
			r.Conditions = []policy.Condition{
				{Type: policy.CondDayOfWeek, Operator: policy.OpIn, Value: policy.StringValue("Monday")},
			}
		}},
		{name: "unordered between bounds", mutate: func(r *models.PolicyRequest) {
			r.Conditions = []policy.Condition{
				{Type: policy.CondTimeRange, Operator: policy.OpBetween, Value: policy.BoundsValue(policy.StringValue("23:00"), policy.StringValue("01:00"))},
			}
		}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req := samplePolicyRequest("Invalid " + tc.name)
			tc.mutate(&req)

			w := env.do(t, http.MethodPost, "/api/v1/policies", req)
			assert.Equal(t, http.StatusBadRequest, w.Code)

			var response models.ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
			assert.Equal(t, "validation_error", response.Error)
		})
	}
}

// TestGetPolicy_NotFound tests the 404 path
func TestGetPolicy_NotFound(t *testing.T) {
	env := setupTestEnv(t)

	w := env.do(t, http.MethodGet, "/api/v1/policies/999", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, http.MethodGet, "/api/v1/policies/abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// TestListPolicies tests listing with and without the enabled filter
func TestListPolicies(t *testing.T) {
	env := setupTestEnv(t)

	enabled := samplePolicyRequest("Enabled")
	require.Equal(t, http.StatusCreated, env.do(t, http.MethodPost, "/api/v1/policies", enabled).Code)

	off := false
	disabled := samplePolicyRequest("Disabled")
	disabled.Enabled = &off
	require.Equal(t, http.StatusCreated, env.do(t, http.MethodPost, "/api/v1/policies", disabled).Code)

	w := env.do(t, http.MethodGet, "/api/v1/policies", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var all models.PolicyListResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &all))
	assert.Equal(t, 2, all.Count)

	w = env.do(t, http.MethodGet, "/api/v1/policies?enabled_only=true", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var active models.PolicyListResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &active))
	require.Equal(t, 1, active.Count)
	assert.Equal(t, "Enabled", active.Policies[0].Name)
}

// TestUpdatePolicy tests partial updates through the API
func TestUpdatePolicy(t *testing.T) {
	env := setupTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/v1/policies", samplePolicyRequest("Before"))
	require.Equal(t, http.StatusCreated, w.Code)
	var created models.PolicyCreateResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	name := "After"
	priority := 85
	update := models.PolicyUpdateRequest{Name: &name, Priority: &priority}

	w = env.do(t, http.MethodPut, "/api/v1/policies/"+itoa(created.Policy.ID), update)
	require.Equal(t, http.StatusOK, w.Code)

	var updated policy.Policy
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &updated))
	assert.Equal(t, "After", updated.Name)
	assert.Equal(t, 85, updated.Priority)
	assert.Equal(t, "category:iot", updated.Source)
}

// TestUpdatePolicy_Empty tests that a field-less update is rejected
func TestUpdatePolicy_Empty(t *testing.T) {
	env := setupTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/v1/policies", samplePolicyRequest("Static"))
	require.Equal(t, http.StatusCreated, w.Code)
	var created models.PolicyCreateResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	w = env.do(t, http.MethodPut, "/api/v1/policies/"+itoa(created.Policy.ID), models.PolicyUpdateRequest{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// TestUpdatePolicy_RejectsInvalidResult tests that a partial update
// cannot persist a policy that creation would have rejected
func TestUpdatePolicy_RejectsInvalidResult(t *testing.T) {
	env := setupTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/v1/policies", samplePolicyRequest("Guarded"))
	require.Equal(t, http.StatusCreated, w.Code)
	var created models.PolicyCreateResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	blank := ""
	testCases := []struct {
		name   string
		update models.PolicyUpdateRequest
	}{
		{name: "blank name", update: models.PolicyUpdateRequest{Name: &blank}},
		{name: "blank source", update: models.PolicyUpdateRequest{Source: &blank, Name: &blank}},
		{name: "blank destination", update: models.PolicyUpdateRequest{Destination: &blank}},
		{name: "malformed condition", update: models.PolicyUpdateRequest{Conditions: &[]policy.Condition{
			{Type: policy.CondTrustScore, Operator: policy.OpBetween, Value: policy.NumberValue(30)},
		}}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			w := env.do(t, http.MethodPut, "/api/v1/policies/"+itoa(created.Policy.ID), tc.update)
			assert.Equal(t, http.StatusBadRequest, w.Code)

			var response models.ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
			assert.Equal(t, "validation_error", response.Error)
		})
	}

	// The stored policy is untouched
	w = env.do(t, http.MethodGet, "/api/v1/policies/"+itoa(created.Policy.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	var stored policy.Policy
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stored))
	assert.Equal(t, "Guarded", stored.Name)
	assert.Equal(t, "category:iot", stored.Source)
	assert.Len(t, stored.Conditions, 1)
}

// TestDeletePolicy tests deletion and the refreshed snapshot
func TestDeletePolicy(t *testing.T) {
	env := setupTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/v1/policies", samplePolicyRequest("Doomed"))
	require.Equal(t, http.StatusCreated, w.Code)
	var created models.PolicyCreateResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	w = env.do(t, http.MethodDelete, "/api/v1/policies/"+itoa(created.Policy.ID), nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodDelete, "/api/v1/policies/"+itoa(created.Policy.ID), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

// TestListTemplates tests the built-in template listing
func TestListTemplates(t *testing.T) {
	env := setupTestEnv(t)

	w := env.do(t, http.MethodGet, "/api/v1/policies/templates", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var response models.TemplateListResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, 5, response.Count)
}

// TestDetectConflictsEndpoint tests draft conflict checks without
// persistence
func TestDetectConflictsEndpoint(t *testing.T) {
	env := setupTestEnv(t)

	existing := models.PolicyRequest{
		Name: "Existing", Source: "any", Destination: "any",
		Action: "block", Priority: 50,
	}
	require.Equal(t, http.StatusCreated, env.do(t, http.MethodPost, "/api/v1/policies", existing).Code)

	draft := models.PolicyRequest{
		Name: "Draft", Source: "any", Destination: "any",
		Action: "allow", Priority: 50,
	}
	w := env.do(t, http.MethodPost, "/api/v1/policies/conflicts", draft)
	require.Equal(t, http.StatusOK, w.Code)

	var response models.ConflictListResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, 1, response.Count)

	// The draft was not persisted
	w = env.do(t, http.MethodGet, "/api/v1/policies", nil)
	var list models.PolicyListResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Equal(t, 1, list.Count)
}

// TestTestPolicyEndpoint tests dry evaluation of stored policies
func TestTestPolicyEndpoint(t *testing.T) {
	env := setupTestEnv(t)

	req := models.PolicyRequest{
		Name: "Guest Block", Source: "zone:guest", Destination: "any",
		Action: "block", Priority: 80,
	}
	w := env.do(t, http.MethodPost, "/api/v1/policies", req)
	require.Equal(t, http.StatusCreated, w.Code)
	var created models.PolicyCreateResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	testReq := models.TestPolicyRequest{
		Contexts: []policy.Context{
			{"network_zone": "guest"},
			{"network_zone": "main"},
		},
	}
	w = env.do(t, http.MethodPost, "/api/v1/policies/"+itoa(created.Policy.ID)+"/test", testReq)
	require.Equal(t, http.StatusOK, w.Code)

	var response models.TestPolicyResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, 1, response.MatchedCount)
	require.Len(t, response.Results, 2)
	assert.True(t, response.Results[0].WouldApply)
	assert.False(t, response.Results[1].WouldApply)
}

// TestApplyPoliciesEndpoint tests the enforcement batch in dry-run
func TestApplyPoliciesEndpoint(t *testing.T) {
	env := setupTestEnv(t)

	require.Equal(t, http.StatusCreated, env.do(t, http.MethodPost, "/api/v1/policies", samplePolicyRequest("Apply Me")).Code)

	w := env.do(t, http.MethodPost, "/api/v1/policies/apply", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var response models.ApplyResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "completed", response.Status)
	require.NotNil(t, response.Results)
	assert.Equal(t, 1, response.Results.Applied)
}

// TestSuggestPoliciesEndpoint tests suggestions for a low-trust
// device
func TestSuggestPoliciesEndpoint(t *testing.T) {
	env := setupTestEnv(t)
	env.source.SetDevice("bad-device", trust.DeviceSignals{Threats: 10, WeakEncryption: true})

	w := env.do(t, http.MethodGet, "/api/v1/policies/suggest/bad-device", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var response models.SuggestResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, 1, response.Count)
	require.Len(t, response.Suggestions, 1)
	assert.Equal(t, policy.ActionQuarantine, response.Suggestions[0].Action)

	w = env.do(t, http.MethodGet, "/api/v1/policies/suggest/unremarkable", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, 0, response.Count)
}

// TestGetPolicyLogs tests the audit log endpoint
func TestGetPolicyLogs(t *testing.T) {
	env := setupTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/v1/policies", models.PolicyRequest{
		Name: "Logged Block", Source: "any", Destination: "any",
		Action: "block", Priority: 90,
	})
	require.Equal(t, http.StatusCreated, w.Code)
	var created models.PolicyCreateResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	// Evaluations feed the audit log
	evalReq := models.EvaluateRequest{Source: "AA:BB:CC:DD:EE:FF", Destination: "8.8.8.8"}
	require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, "/api/v1/evaluate", evalReq).Code)

	w = env.do(t, http.MethodGet, "/api/v1/policies/"+itoa(created.Policy.ID)+"/logs", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var response models.AuditLogResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	require.Equal(t, 1, response.Count)
	assert.Equal(t, created.Policy.ID, response.Logs[0].PolicyID)
	assert.True(t, response.Logs[0].Matched)
}

func itoa(id int64) string {
	return fmt.Sprintf("%d", id)
}
