package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ccintegration/SAP-IS-CICD/core/deployer"
	"github.com/Ccintegration/SAP-IS-CICD/core/models"
)

type stubTenant struct{ name string }

func (s *stubTenant) Tenant() string { return s.name }
func (s *stubTenant) FetchArtifact(context.Context, string, string) ([]byte, error) {
	return []byte("content"), nil
}
func (s *stubTenant) PackageExists(context.Context, string) (bool, error) { return true, nil }
func (s *stubTenant) GetPackage(_ context.Context, id string) (*models.IntegrationPackage, error) {
	return &models.IntegrationPackage{ID: id}, nil
}
func (s *stubTenant) CreatePackage(context.Context, *models.IntegrationPackage) error { return nil }
func (s *stubTenant) IFlowExists(context.Context, string, string) (bool, error)       { return false, nil }
func (s *stubTenant) UploadIFlow(context.Context, string, string, string, []byte, string) error {
	return nil
}
func (s *stubTenant) UpdateIFlow(context.Context, string, string, string, []byte, string) error {
	return nil
}
func (s *stubTenant) BatchUpdateConfig(context.Context, string, string, []models.ConfigParameter) error {
	return nil
}
func (s *stubTenant) Deploy(context.Context, string, string) models.DeployResult {
	return models.DeployResult{Status: models.DeployStatusDeployed}
}

type stubResolver struct{}

func (stubResolver) Resolve(string, string, string) ([]models.ConfigParameter, error) {
	return []models.ConfigParameter{{Key: "k", Value: "v", Type: "xsd:string"}}, nil
}

func newTestRouter() (*mux.Router, *deployer.SessionStore) {
	store := deployer.NewSessionStore(0)
	factory := func(name string) (deployer.TenantAPI, error) {
		return &stubTenant{name: name}, nil
	}
	exec := deployer.NewExecutor(store, stubResolver{}, factory, "CCCI_SANDBOX")
	h := NewDeploymentHandler(exec, store)

	r := mux.NewRouter()
	r.HandleFunc("/api/deployment/deploy", h.Deploy).Methods("POST")
	r.HandleFunc("/api/deployment/status/{deploymentId}", h.Status).Methods("GET")
	r.HandleFunc("/api/deployment/sessions", h.Sessions).Methods("GET")
	return r, store
}

func TestDeploy_AcknowledgesSynchronously(t *testing.T) {
	r, _ := newTestRouter()

	body := `{"artifacts":[{"iflow_id":"FlowA","name":"Flow A","version":"1.0.0","package_id":"PkgA"}],"target_environment":"CCCI_PROD","deployment_id":"dep-http"}`
	req := httptest.NewRequest(http.MethodPost, "/api/deployment/deploy", strings.NewReader(body))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp struct {
		Success bool                         `json:"success"`
		Data    models.DeploymentSessionView `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "dep-http", resp.Data.ID)
	assert.Equal(t, 1, resp.Data.Total)
}

func TestDeploy_RejectsMalformedInput(t *testing.T) {
	r, _ := newTestRouter()

	for _, body := range []string{
		`not json`,
		`{"artifacts":[],"target_environment":"CCCI_PROD"}`,
		`{"artifacts":[{"iflow_id":"FlowA","version":"1.0.0"}]}`,
	} {
		req := httptest.NewRequest(http.MethodPost, "/api/deployment/deploy", strings.NewReader(body))
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}
}

func TestStatus_UnknownDeploymentIs404(t *testing.T) {
	r, _ := newTestRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/deployment/status/unknown-id", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSessions_ListsSubmitted(t *testing.T) {
	r, store := newTestRouter()

	sess := models.NewDeploymentSession("dep-list", "CCCI_PROD", []*models.ArtifactProgress{{IFlowID: "FlowA"}})
	require.NoError(t, store.Create(sess))

	req := httptest.NewRequest(http.MethodGet, "/api/deployment/sessions", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data []models.DeploymentSummary `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "dep-list", resp.Data[0].ID)
}
