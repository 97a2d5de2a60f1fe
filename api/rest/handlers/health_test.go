package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubPinger struct{ err error }

func (s *stubPinger) PingContext(context.Context) error { return s.err }

type stubTokenReporter struct{ status map[string]interface{} }

func (s *stubTokenReporter) TokenStatus() map[string]interface{} { return s.status }

func getHealth(t *testing.T, h *HealthHandler) HealthStatus {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	h.Health(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var status HealthStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	return status
}

func TestHealth_ReportsDatabaseState(t *testing.T) {
	status := getHealth(t, NewHealthHandler(nil, nil))
	assert.Equal(t, "running", status.Status)
	assert.Equal(t, "disabled", status.Services["database"])

	status = getHealth(t, NewHealthHandler(&stubPinger{}, nil))
	assert.Equal(t, "connected", status.Services["database"])

	status = getHealth(t, NewHealthHandler(&stubPinger{err: errors.New("connection refused")}, nil))
	assert.Equal(t, "unavailable", status.Services["database"])
}

func TestHealth_ReportsSourceTenantTokenState(t *testing.T) {
	status := getHealth(t, NewHealthHandler(nil, &stubTokenReporter{status: map[string]interface{}{"has_token": false}}))
	assert.Equal(t, "unknown", status.Services["sap_connection"])

	status = getHealth(t, NewHealthHandler(nil, &stubTokenReporter{status: map[string]interface{}{
		"has_token":          true,
		"expires_in_seconds": 3000,
	}}))
	assert.Equal(t, "healthy", status.Services["sap_connection"])

	status = getHealth(t, NewHealthHandler(nil, &stubTokenReporter{status: map[string]interface{}{
		"has_token":          true,
		"expires_in_seconds": -5,
	}}))
	assert.Equal(t, "degraded", status.Services["sap_connection"])
}
