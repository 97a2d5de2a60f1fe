package sap

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ccintegration/SAP-IS-CICD/core/models"
)

func newTokenServer(t *testing.T, hits *int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*hits++
		user, _, ok := r.BasicAuth()
		require.True(t, ok)
		require.Equal(t, "client-id", user)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token": "fresh-token",
			"expires_in":   3600,
		})
	}))
}

func testClient(baseURL, tokenURL string) *Client {
	c := NewClient(Credentials{
		Name:         "CCCI_SANDBOX",
		BaseURL:      baseURL,
		TokenURL:     tokenURL,
		ClientID:     "client-id",
		ClientSecret: "secret",
	})
	// Pre-seed a token valid long enough that API calls never refresh.
	c.token = "seeded-token"
	c.tokenExpiry = time.Now().Add(time.Hour)
	return c
}

func TestAuthHeaders_RefreshesExpiringToken(t *testing.T) {
	hits := 0
	ts := newTokenServer(t, &hits)
	defer ts.Close()

	c := NewClient(Credentials{TokenURL: ts.URL, ClientID: "client-id", ClientSecret: "secret"})
	c.token = "stale-token"
	c.tokenExpiry = time.Now().Add(30 * time.Second)

	headers, err := c.AuthHeaders(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Bearer fresh-token", headers.Get("Authorization"))
	assert.Equal(t, 1, hits)
}

func TestAuthHeaders_KeepsValidToken(t *testing.T) {
	hits := 0
	ts := newTokenServer(t, &hits)
	defer ts.Close()

	c := NewClient(Credentials{TokenURL: ts.URL, ClientID: "client-id", ClientSecret: "secret"})
	c.token = "valid-token"
	c.tokenExpiry = time.Now().Add(300 * time.Second)

	headers, err := c.AuthHeaders(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Bearer valid-token", headers.Get("Authorization"))
	assert.Equal(t, 0, hits)
}

func TestAuthHeaders_ConcurrentRefreshIsShared(t *testing.T) {
	hits := 0
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits++
		time.Sleep(50 * time.Millisecond)
		json.NewEncoder(w).Encode(map[string]interface{}{"access_token": "fresh-token", "expires_in": 3600})
	}))
	defer ts.Close()

	c := NewClient(Credentials{TokenURL: ts.URL, ClientID: "client-id", ClientSecret: "secret"})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.AuthHeaders(context.Background())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, hits)
}

func TestAuthHeaders_TokenEndpointFailure(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "invalid client", http.StatusUnauthorized)
	}))
	defer ts.Close()

	c := NewClient(Credentials{TokenURL: ts.URL, ClientID: "client-id", ClientSecret: "wrong"})

	_, err := c.AuthHeaders(context.Background())
	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, http.StatusUnauthorized, authErr.Status)
}

func TestPackageExists_NotFoundIsFalse(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	}))
	defer ts.Close()

	c := testClient(ts.URL, "")
	exists, err := c.PackageExists(context.Background(), "MissingPackage")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestCreatePackage_SendsOnlyNonEmptyAllowListedFields(t *testing.T) {
	var body map[string]string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.WriteHeader(http.StatusCreated)
	}))
	defer ts.Close()

	c := testClient(ts.URL, "")
	err := c.CreatePackage(context.Background(), &models.IntegrationPackage{
		ID:         "PkgA",
		Name:       "Package A",
		ShortText:  "short",
		ModifiedBy: "someone", // not allow-listed
	})
	require.NoError(t, err)

	assert.Equal(t, map[string]string{
		"Id":        "PkgA",
		"Name":      "Package A",
		"ShortText": "short",
	}, body)
}

func TestDeploy_AcceptedAndFailed(t *testing.T) {
	status := http.StatusAccepted
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(status)
		w.Write([]byte("queue full"))
	}))
	defer ts.Close()

	c := testClient(ts.URL, "")

	result := c.Deploy(context.Background(), "FlowA", "1.0.0")
	assert.Equal(t, models.DeployStatusDeployed, result.Status)

	status = http.StatusInternalServerError
	result = c.Deploy(context.Background(), "FlowA", "1.0.0")
	assert.Equal(t, models.DeployStatusFailed, result.Status)
	assert.Contains(t, result.Message, "500")
}

func TestBatchUpdateConfig_BestEffort(t *testing.T) {
	var attempted []string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload struct {
			ParameterKey string `json:"ParameterKey"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		attempted = append(attempted, payload.ParameterKey)
		if payload.ParameterKey == "k1" {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	c := testClient(ts.URL, "")
	err := c.BatchUpdateConfig(context.Background(), "FlowA", "1.0.0", []models.ConfigParameter{
		{Key: "k1", Value: "v1", Type: "xsd:string"},
		{Key: "k2", Value: "v2", Type: "xsd:string"},
	})

	var agg *AggregateConfigError
	require.ErrorAs(t, err, &agg)
	assert.Equal(t, []string{"k1"}, agg.FailedKeys)
	assert.Equal(t, []string{"k1", "k2"}, attempted, "k2 must still be attempted")
	assert.Contains(t, agg.Error(), "k1")
}

func TestFetchArtifact_NotFound(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "no such artifact", http.StatusNotFound)
	}))
	defer ts.Close()

	c := testClient(ts.URL, "")
	_, err := c.FetchArtifact(context.Background(), "FlowA", "1.0.0")
	var notFound *NotFoundError
	require.ErrorAs(t, err, &notFound)
}

func TestGetPackages_UnwrapsODataEnvelope(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"d":{"results":[{"Id":"PkgA","Name":"Package A"},{"Id":"PkgB","Name":"Package B"}]}}`))
	}))
	defer ts.Close()

	c := testClient(ts.URL, "")
	packages, err := c.GetPackages(context.Background())
	require.NoError(t, err)
	require.Len(t, packages, 2)
	assert.Equal(t, "PkgA", packages[0].ID)
}

func TestGetPackage_UnwrapsSingleEntity(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"d":{"Id":"PkgA","Name":"Package A","ShortText":"short"}}`))
	}))
	defer ts.Close()

	c := testClient(ts.URL, "")
	pkg, err := c.GetPackage(context.Background(), "PkgA")
	require.NoError(t, err)
	assert.Equal(t, "Package A", pkg.Name)
	assert.Equal(t, "short", pkg.ShortText)
}
