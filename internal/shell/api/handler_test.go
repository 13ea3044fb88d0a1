package api

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artpar/fa-topology/internal/core/output"
	"github.com/artpar/fa-topology/internal/shell/planner"
	"github.com/artpar/fa-topology/internal/shell/store"
)

// =============================================================================
// Test Helpers
// =============================================================================

func newTestHandler(t *testing.T) *Handler {
	t.Helper()
	s, err := store.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() {
		s.Close()
	})

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewHandler(planner.NewService(s, nil, logger), logger)
}

func parseResponse[T any](t *testing.T, body io.Reader) T {
	t.Helper()
	var result T
	require.NoError(t, json.NewDecoder(body).Decode(&result))
	return result
}

func do(t *testing.T, h *Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	w := httptest.NewRecorder()
	h.Routes().ServeHTTP(w, req)
	return w
}

func intPtr(v int) *int { return &v }

// =============================================================================
// Health
// =============================================================================

func TestHealth_Success(t *testing.T) {
	w := do(t, newTestHandler(t), http.MethodGet, "/health", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	resp := parseResponse[HealthResponse](t, w.Body)
	assert.Equal(t, "healthy", resp.Status)
}

// =============================================================================
// Create Plan
// =============================================================================

func TestCreatePlan_Direct(t *testing.T) {
	w := do(t, newTestHandler(t), http.MethodPost, "/api/v1/plans", PlanRequest{Region: "us-east-1"})

	require.Equal(t, http.StatusCreated, w.Code)
	resp := parseResponse[PlanResponse](t, w.Body)

	assert.NotEmpty(t, resp.ID)
	assert.Len(t, resp.Fingerprint, 64)
	assert.Equal(t, "direct", resp.Routing)
	assert.True(t, resp.Changed)
	assert.False(t, resp.Blocked)
	assert.Empty(t, resp.Violations)
	require.Contains(t, resp.Outputs, output.NameAgentsURL)
	require.NotNil(t, resp.Outputs[output.NameAgentsURL].Ref)
	assert.Equal(t, "aws_lb.agents", resp.Outputs[output.NameAgentsURL].Ref.Identity)
}

func TestCreatePlan_Secure(t *testing.T) {
	w := do(t, newTestHandler(t), http.MethodPost, "/api/v1/plans", PlanRequest{
		Region:     "us-east-1",
		DomainName: "agents.example.com",
		DNSZoneID:  "Z1234567890ABC",
	})

	require.Equal(t, http.StatusCreated, w.Code)
	resp := parseResponse[PlanResponse](t, w.Body)
	assert.Equal(t, "secure-with-redirect", resp.Routing)
	assert.Equal(t, "https://agents.example.com", resp.Outputs[output.NameAgentsURL].Literal)
}

func TestCreatePlan_UnchangedOnRepeat(t *testing.T) {
	h := newTestHandler(t)
	req := PlanRequest{Region: "us-east-1"}

	first := parseResponse[PlanResponse](t, do(t, h, http.MethodPost, "/api/v1/plans", req).Body)
	second := parseResponse[PlanResponse](t, do(t, h, http.MethodPost, "/api/v1/plans", req).Body)

	assert.False(t, second.Changed)
	assert.Equal(t, first.Fingerprint, second.PreviousFingerprint)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestCreatePlan_ScaleToZeroWarning(t *testing.T) {
	w := do(t, newTestHandler(t), http.MethodPost, "/api/v1/plans", PlanRequest{Region: "us-east-1", DesiredCount: intPtr(0)})

	require.Equal(t, http.StatusCreated, w.Code)
	resp := parseResponse[PlanResponse](t, w.Body)
	assert.False(t, resp.Blocked)
	require.Len(t, resp.Violations, 1)
	assert.Equal(t, "scale-to-zero", resp.Violations[0].Rule)
}

func TestCreatePlan_ConfigErrors(t *testing.T) {
	tests := []struct {
		name  string
		req   PlanRequest
		field string
	}{
		{"missing zone", PlanRequest{Region: "us-east-1", DomainName: "agents.example.com"}, "dns_zone_id"},
		{"invalid sizing", PlanRequest{Region: "us-east-1", CPUUnits: intPtr(256), MemoryMiB: intPtr(4096)}, "cpu_units"},
		{"missing region", PlanRequest{}, "region"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, newTestHandler(t), http.MethodPost, "/api/v1/plans", tt.req)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			resp := parseResponse[ErrorResponse](t, w.Body)
			assert.Equal(t, "config_error", resp.Code)
			assert.Equal(t, tt.field, resp.Field)
		})
	}
}

func TestCreatePlan_InvalidJSON(t *testing.T) {
	w := do(t, newTestHandler(t), http.MethodPost, "/api/v1/plans", "{not json")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	resp := parseResponse[ErrorResponse](t, w.Body)
	assert.Equal(t, "validation_error", resp.Code)
}

// =============================================================================
// Get / List Plans
// =============================================================================

func TestGetPlan(t *testing.T) {
	h := newTestHandler(t)
	created := parseResponse[PlanResponse](t, do(t, h, http.MethodPost, "/api/v1/plans", PlanRequest{Region: "us-east-1"}).Body)

	w := do(t, h, http.MethodGet, "/api/v1/plans/"+created.ID, nil)

	require.Equal(t, http.StatusOK, w.Code)
	resp := parseResponse[PlanRecordResponse](t, w.Body)
	assert.Equal(t, created.ID, resp.ID)
	assert.Equal(t, created.Fingerprint, resp.Fingerprint)
	assert.Equal(t, "us-east-1", resp.Region)
	assert.NotEmpty(t, resp.Document)
}

func TestGetPlan_NotFound(t *testing.T) {
	w := do(t, newTestHandler(t), http.MethodGet, "/api/v1/plans/missing", nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
	resp := parseResponse[ErrorResponse](t, w.Body)
	assert.Equal(t, "plan_not_found", resp.Code)
}

func TestListPlans(t *testing.T) {
	h := newTestHandler(t)
	for _, region := range []string{"us-east-1", "eu-west-1", "ap-south-1"} {
		require.Equal(t, http.StatusCreated, do(t, h, http.MethodPost, "/api/v1/plans", PlanRequest{Region: region}).Code)
	}

	w := do(t, h, http.MethodGet, "/api/v1/plans?limit=2", nil)

	require.Equal(t, http.StatusOK, w.Code)
	resp := parseResponse[ListPlansResponse](t, w.Body)
	require.Len(t, resp.Plans, 2)
	assert.Equal(t, 2, resp.Limit)
	assert.Equal(t, 3, resp.Total)
	assert.Equal(t, "ap-south-1", resp.Plans[0].Region)
	assert.Empty(t, resp.Plans[0].Document)
}

// =============================================================================
// Terraform
// =============================================================================

func TestGetTerraform(t *testing.T) {
	h := newTestHandler(t)
	created := parseResponse[PlanResponse](t, do(t, h, http.MethodPost, "/api/v1/plans", PlanRequest{
		Region:     "us-east-1",
		DomainName: "agents.example.com",
		DNSZoneID:  "Z1234567890ABC",
	}).Body)

	w := do(t, h, http.MethodGet, "/api/v1/plans/"+created.ID+"/terraform", nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/plain; charset=utf-8", w.Header().Get("Content-Type"))
	body := w.Body.String()
	assert.Contains(t, body, `resource "aws_lb" "agents"`)
	assert.Contains(t, body, `resource "aws_route53_record" "agents"`)
	assert.Contains(t, body, `output "agents_url"`)
}

func TestGetTerraform_NotFound(t *testing.T) {
	w := do(t, newTestHandler(t), http.MethodGet, "/api/v1/plans/missing/terraform", nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
}
