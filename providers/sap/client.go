package sap

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/Ccintegration/SAP-IS-CICD/core/models"
)

// tokenExpiryMargin is how close to expiry a token may get before any remote
// call forces a refresh.
const tokenExpiryMargin = 60 * time.Second

// Client talks to one Integration Suite tenant and manages its OAuth
// client-credentials token. Safe for concurrent use; a refresh triggered by
// multiple goroutines is collapsed into a single token request.
type Client struct {
	creds  Credentials
	client *http.Client
	log    zerolog.Logger

	group       singleflight.Group
	mu          sync.Mutex // guards token fields
	token       string
	tokenExpiry time.Time
}

// NewClient creates a client for the given tenant credentials.
func NewClient(creds Credentials) *Client {
	return &Client{
		creds:  creds,
		client: &http.Client{Timeout: 60 * time.Second},
		log:    log.With().Str("tenant", creds.Name).Logger(),
	}
}

// Tenant returns the tenant name the client is bound to.
func (c *Client) Tenant() string { return c.creds.Name }

// AuthHeaders returns bearer-auth headers, refreshing the token first when it
// is missing or expires within 60 seconds.
func (c *Client) AuthHeaders(ctx context.Context) (http.Header, error) {
	c.mu.Lock()
	valid := c.token != "" && time.Until(c.tokenExpiry) > tokenExpiryMargin
	token := c.token
	c.mu.Unlock()

	if !valid {
		if err := c.RefreshToken(ctx); err != nil {
			return nil, err
		}
		c.mu.Lock()
		token = c.token
		c.mu.Unlock()
	}

	h := http.Header{}
	h.Set("Authorization", "Bearer "+token)
	h.Set("Accept", "application/json")
	return h, nil
}

// RefreshToken fetches a fresh token from the token endpoint. Concurrent
// callers share a single request.
func (c *Client) RefreshToken(ctx context.Context) error {
	_, err, _ := c.group.Do("token", func() (interface{}, error) {
		return nil, c.fetchToken(ctx)
	})
	return err
}

func (c *Client) fetchToken(ctx context.Context) error {
	form := url.Values{"grant_type": {"client_credentials"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.creds.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.SetBasicAuth(c.creds.ClientID, c.creds.ClientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.client.Do(req)
	if err != nil {
		return &AuthError{TokenURL: c.creds.TokenURL, Body: err.Error()}
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &AuthError{TokenURL: c.creds.TokenURL, Status: resp.StatusCode, Body: string(body)}
	}

	var tok struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &tok); err != nil {
		return &AuthError{TokenURL: c.creds.TokenURL, Status: resp.StatusCode, Body: "invalid token response: " + err.Error()}
	}

	c.mu.Lock()
	c.token = tok.AccessToken
	c.tokenExpiry = time.Now().Add(time.Duration(tok.ExpiresIn) * time.Second)
	c.mu.Unlock()

	c.log.Debug().Int("expires_in", tok.ExpiresIn).Msg("OAuth token refreshed")
	return nil
}

// TokenStatus reports the current token state for the token-status endpoint.
func (c *Client) TokenStatus() map[string]interface{} {
	c.mu.Lock()
	defer c.mu.Unlock()

	status := map[string]interface{}{
		"has_token": c.token != "",
	}
	if c.token != "" {
		status["expires_at"] = c.tokenExpiry.UTC()
		status["expires_in_seconds"] = int(time.Until(c.tokenExpiry).Seconds())
	}
	return status
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string) (*http.Response, error) {
	headers, err := c.AuthHeaders(ctx)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, method, c.creds.BaseURL+path, body)
	if err != nil {
		return nil, err
	}
	for k, vs := range headers {
		for _, v := range vs {
			req.Header.Set(k, v)
		}
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	return c.client.Do(req)
}

func drain(resp *http.Response) string {
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	return string(b)
}

// FetchArtifact downloads the binary content of a design-time artifact.
func (c *Client) FetchArtifact(ctx context.Context, id, version string) ([]byte, error) {
	path := fmt.Sprintf("/IntegrationDesigntimeArtifacts(Id='%s',Version='%s')/$value", id, version)
	resp, err := c.do(ctx, http.MethodGet, path, nil, "")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(resp.Body)
		return nil, &NotFoundError{Resource: fmt.Sprintf("artifact %s/%s: %s", id, version, string(b)), Status: resp.StatusCode}
	}
	return io.ReadAll(resp.Body)
}

// PackageExists probes the package resource. A 404 is false, not an error.
func (c *Client) PackageExists(ctx context.Context, id string) (bool, error) {
	resp, err := c.do(ctx, http.MethodGet, fmt.Sprintf("/IntegrationPackages('%s')", id), nil, "")
	if err != nil {
		return false, err
	}
	drain(resp)
	return resp.StatusCode >= 200 && resp.StatusCode <= 299, nil
}

// GetPackage fetches full package metadata, unwrapping the OData envelope.
func (c *Client) GetPackage(ctx context.Context, id string) (*models.IntegrationPackage, error) {
	resp, err := c.do(ctx, http.MethodGet, fmt.Sprintf("/IntegrationPackages('%s')", id), nil, "")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode == http.StatusNotFound {
		return nil, &NotFoundError{Resource: "package " + id, Status: resp.StatusCode}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &RemoteError{Op: "get package " + id, Status: resp.StatusCode, Body: string(body)}
	}

	var pkg models.IntegrationPackage
	if err := json.Unmarshal(unwrapOData(body), &pkg); err != nil {
		return nil, fmt.Errorf("decoding package %s: %w", id, err)
	}
	return &pkg, nil
}

// packageCreateFields is the allow-list of fields submitted on package
// creation. Anything else returned by the source tenant is dropped.
func packageCreateFields(pkg *models.IntegrationPackage) map[string]string {
	fields := map[string]string{
		"Id":                pkg.ID,
		"Name":              pkg.Name,
		"ShortText":         pkg.ShortText,
		"Description":       pkg.Description,
		"Vendor":            pkg.Vendor,
		"SupportedPlatform": pkg.SupportedPlatform,
		"Version":           pkg.Version,
		"Products":          pkg.Products,
		"Keywords":          pkg.Keywords,
		"Countries":         pkg.Countries,
		"Industries":        pkg.Industries,
		"LineOfBusiness":    pkg.LineOfBusiness,
	}
	for k, v := range fields {
		if v == "" {
			delete(fields, k)
		}
	}
	return fields
}

// CreatePackage creates a package on this tenant from source metadata. Only
// non-empty allow-listed fields are sent.
func (c *Client) CreatePackage(ctx context.Context, pkg *models.IntegrationPackage) error {
	payload, err := json.Marshal(packageCreateFields(pkg))
	if err != nil {
		return err
	}

	resp, err := c.do(ctx, http.MethodPost, "/IntegrationPackages", bytes.NewReader(payload), "application/json")
	if err != nil {
		return err
	}
	body := drain(resp)

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return &RemoteError{Op: "create package " + pkg.ID, Status: resp.StatusCode, Body: body}
	}
	c.log.Info().Str("package_id", pkg.ID).Msg("package created")
	return nil
}

// IFlowExists probes for a design-time artifact. A 404 is false, not an error.
func (c *Client) IFlowExists(ctx context.Context, id, version string) (bool, error) {
	path := fmt.Sprintf("/IntegrationDesigntimeArtifacts(Id='%s',Version='%s')", id, version)
	resp, err := c.do(ctx, http.MethodGet, path, nil, "")
	if err != nil {
		return false, err
	}
	drain(resp)
	return resp.StatusCode >= 200 && resp.StatusCode <= 299, nil
}

func iflowPayload(name, id, packageID string, content []byte) ([]byte, error) {
	body := map[string]string{
		"Name":            name,
		"ArtifactContent": base64.StdEncoding.EncodeToString(content),
	}
	if id != "" {
		body["Id"] = id
	}
	if packageID != "" {
		body["PackageId"] = packageID
	}
	return json.Marshal(body)
}

var iflowOKStatuses = map[int]bool{200: true, 201: true, 202: true}

// UploadIFlow creates a new artifact on this tenant.
func (c *Client) UploadIFlow(ctx context.Context, id, version, packageID string, content []byte, name string) error {
	payload, err := iflowPayload(name, id, packageID, content)
	if err != nil {
		return err
	}

	resp, err := c.do(ctx, http.MethodPost, "/IntegrationDesigntimeArtifacts", bytes.NewReader(payload), "application/json")
	if err != nil {
		return err
	}
	body := drain(resp)

	if !iflowOKStatuses[resp.StatusCode] {
		return &RemoteError{Op: "upload iflow " + id, Status: resp.StatusCode, Body: body}
	}
	c.log.Info().Str("iflow_id", id).Str("version", version).Msg("iflow uploaded")
	return nil
}

// UpdateIFlow replaces an existing artifact's content.
func (c *Client) UpdateIFlow(ctx context.Context, id, version, packageID string, content []byte, name string) error {
	payload, err := iflowPayload(name, "", "", content)
	if err != nil {
		return err
	}

	path := fmt.Sprintf("/IntegrationDesigntimeArtifacts(Id='%s',Version='%s')", id, version)
	resp, err := c.do(ctx, http.MethodPut, path, bytes.NewReader(payload), "application/json")
	if err != nil {
		return err
	}
	body := drain(resp)

	if !iflowOKStatuses[resp.StatusCode] {
		return &RemoteError{Op: "update iflow " + id, Status: resp.StatusCode, Body: body}
	}
	c.log.Info().Str("iflow_id", id).Str("version", version).Msg("iflow updated")
	return nil
}

// UpdateConfigParameter updates exactly one externalized parameter.
func (c *Client) UpdateConfigParameter(ctx context.Context, id, version, key, value, typ string) error {
	payload, err := json.Marshal(map[string]string{
		"ParameterKey":   key,
		"ParameterValue": value,
		"DataType":       typ,
	})
	if err != nil {
		return err
	}

	path := fmt.Sprintf("/IntegrationDesigntimeArtifacts(Id='%s',Version='%s')/Configurations('%s')",
		id, version, url.PathEscape(key))
	resp, err := c.do(ctx, http.MethodPut, path, bytes.NewReader(payload), "application/json")
	if err != nil {
		return fmt.Errorf("parameter %s: %w", key, err)
	}
	body := drain(resp)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &RemoteError{Op: "update parameter " + key, Status: resp.StatusCode, Body: body}
	}
	return nil
}

// BatchUpdateConfig applies every row, continuing past individual failures,
// and returns an AggregateConfigError naming every failed key if any update
// did not succeed.
func (c *Client) BatchUpdateConfig(ctx context.Context, id, version string, rows []models.ConfigParameter) error {
	agg := &AggregateConfigError{}
	for _, row := range rows {
		if err := c.UpdateConfigParameter(ctx, id, version, row.Key, row.Value, row.Type); err != nil {
			c.log.Warn().Err(err).Str("iflow_id", id).Str("key", row.Key).Msg("parameter update failed")
			agg.FailedKeys = append(agg.FailedKeys, row.Key)
			agg.Errs = append(agg.Errs, err)
		}
	}
	if len(agg.FailedKeys) > 0 {
		return agg
	}
	return nil
}

// Deploy triggers the runtime deployment of an artifact. Remote non-success
// is reported through the result, never as an error.
func (c *Client) Deploy(ctx context.Context, id, version string) models.DeployResult {
	path := fmt.Sprintf("/DeployIntegrationDesigntimeArtifact?Id='%s'&Version='%s'", id, version)
	resp, err := c.do(ctx, http.MethodPost, path, nil, "")
	if err != nil {
		return models.DeployResult{Status: models.DeployStatusFailed, Message: err.Error()}
	}
	body := drain(resp)

	if resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusAccepted {
		return models.DeployResult{Status: models.DeployStatusDeployed, Message: fmt.Sprintf("deployment triggered (status %d)", resp.StatusCode)}
	}
	return models.DeployResult{Status: models.DeployStatusFailed, Message: fmt.Sprintf("deploy returned status %d: %s", resp.StatusCode, body)}
}

// GetPackages lists all integration packages on the tenant.
func (c *Client) GetPackages(ctx context.Context) ([]models.IntegrationPackage, error) {
	resp, err := c.do(ctx, http.MethodGet, "/IntegrationPackages", nil, "")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &RemoteError{Op: "list packages", Status: resp.StatusCode, Body: string(body)}
	}

	var packages []models.IntegrationPackage
	if err := json.Unmarshal(unwrapOData(body), &packages); err != nil {
		return nil, fmt.Errorf("decoding package list: %w", err)
	}
	return packages, nil
}

// GetIFlows lists design-time artifacts. With no package filter, every
// package on the tenant is walked.
func (c *Client) GetIFlows(ctx context.Context, packageIDs []string) ([]models.IntegrationFlow, error) {
	if len(packageIDs) == 0 {
		packages, err := c.GetPackages(ctx)
		if err != nil {
			return nil, err
		}
		for _, pkg := range packages {
			packageIDs = append(packageIDs, pkg.ID)
		}
	}

	var flows []models.IntegrationFlow
	for _, pkgID := range packageIDs {
		path := fmt.Sprintf("/IntegrationPackages('%s')/IntegrationDesigntimeArtifacts", pkgID)
		resp, err := c.do(ctx, http.MethodGet, path, nil, "")
		if err != nil {
			return nil, err
		}
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			c.log.Warn().Int("status", resp.StatusCode).Str("package_id", pkgID).Msg("skipping package, artifact listing failed")
			continue
		}

		var pkgFlows []models.IntegrationFlow
		if err := json.Unmarshal(unwrapOData(body), &pkgFlows); err != nil {
			return nil, fmt.Errorf("decoding artifacts of package %s: %w", pkgID, err)
		}
		for i := range pkgFlows {
			if pkgFlows[i].PackageID == "" {
				pkgFlows[i].PackageID = pkgID
			}
		}
		flows = append(flows, pkgFlows...)
	}
	return flows, nil
}

// RemoteConfiguration is one externalized parameter as returned by the
// tenant API.
type RemoteConfiguration struct {
	ParameterKey   string `json:"ParameterKey"`
	ParameterValue string `json:"ParameterValue"`
	DataType       string `json:"DataType"`
}

// GetIFlowConfigurations lists the externalized parameters of an artifact.
func (c *Client) GetIFlowConfigurations(ctx context.Context, id, version string) ([]RemoteConfiguration, error) {
	path := fmt.Sprintf("/IntegrationDesigntimeArtifacts(Id='%s',Version='%s')/Configurations", id, version)
	resp, err := c.do(ctx, http.MethodGet, path, nil, "")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &RemoteError{Op: fmt.Sprintf("get configurations of %s/%s", id, version), Status: resp.StatusCode, Body: string(body)}
	}

	var configs []RemoteConfiguration
	if err := json.Unmarshal(unwrapOData(body), &configs); err != nil {
		return nil, fmt.Errorf("decoding configurations of %s: %w", id, err)
	}
	return configs, nil
}

// GetIFlowResources lists the resources/dependencies of an artifact. The
// payload is passed through untouched.
func (c *Client) GetIFlowResources(ctx context.Context, id, version string) (json.RawMessage, error) {
	path := fmt.Sprintf("/IntegrationDesigntimeArtifacts(Id='%s',Version='%s')/Resources", id, version)
	resp, err := c.do(ctx, http.MethodGet, path, nil, "")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &RemoteError{Op: fmt.Sprintf("get resources of %s/%s", id, version), Status: resp.StatusCode, Body: string(body)}
	}
	return json.RawMessage(unwrapOData(body)), nil
}

// TestConnection verifies that a token can be obtained and the package API
// answers. Returns the number of visible packages.
func (c *Client) TestConnection(ctx context.Context) (int, error) {
	if err := c.RefreshToken(ctx); err != nil {
		return 0, err
	}
	packages, err := c.GetPackages(ctx)
	if err != nil {
		return 0, err
	}
	return len(packages), nil
}

// unwrapOData strips the OData v2 {"d": {...}} and {"d": {"results": [...]}}
// envelopes when present, returning the inner payload.
func unwrapOData(body []byte) []byte {
	var envelope struct {
		D json.RawMessage `json:"d"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil || len(envelope.D) == 0 {
		return body
	}

	var results struct {
		Results json.RawMessage `json:"results"`
	}
	if err := json.Unmarshal(envelope.D, &results); err == nil && len(results.Results) > 0 {
		return results.Results
	}
	return envelope.D
}
