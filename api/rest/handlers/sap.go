package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"golang.org/x/sync/errgroup"

	"github.com/Ccintegration/SAP-IS-CICD/core/models"
	"github.com/Ccintegration/SAP-IS-CICD/providers/sap"
)

// SAPHandler proxies read-only requests to the source tenant.
type SAPHandler struct {
	source *sap.Client
}

// NewSAPHandler creates a proxy handler bound to the source tenant client.
func NewSAPHandler(source *sap.Client) *SAPHandler {
	return &SAPHandler{source: source}
}

// GetPackages handles GET /api/sap/packages.
func (h *SAPHandler) GetPackages(w http.ResponseWriter, r *http.Request) {
	packages, err := h.source.GetPackages(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, packages, fmt.Sprintf("Retrieved %d integration packages", len(packages)))
}

// GetPackage handles GET /api/sap/packages/{packageId}.
func (h *SAPHandler) GetPackage(w http.ResponseWriter, r *http.Request) {
	pkg, err := h.source.GetPackage(r.Context(), mux.Vars(r)["packageId"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pkg, "")
}

// packageQuery are the pagination, search and sort parameters of the
// paginated package listing.
type packageQuery struct {
	Page          int
	PageSize      int
	Search        string
	SortField     string
	SortDirection string
}

func parsePackageQuery(r *http.Request) packageQuery {
	q := packageQuery{
		Page:          1,
		PageSize:      20,
		Search:        r.URL.Query().Get("search"),
		SortField:     r.URL.Query().Get("sort_field"),
		SortDirection: r.URL.Query().Get("sort_direction"),
	}
	if n, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil && n >= 1 {
		q.Page = n
	}
	if n, err := strconv.Atoi(r.URL.Query().Get("page_size")); err == nil && n >= 1 && n <= 100 {
		q.PageSize = n
	}
	if q.SortField == "" {
		q.SortField = "modifiedDate"
	}
	if q.SortDirection == "" {
		q.SortDirection = "desc"
	}
	return q
}

// PaginationInfo describes one page of a paginated listing.
type PaginationInfo struct {
	CurrentPage     int  `json:"current_page"`
	PageSize        int  `json:"page_size"`
	TotalCount      int  `json:"total_count"`
	TotalPages      int  `json:"total_pages"`
	HasNextPage     bool `json:"has_next_page"`
	HasPreviousPage bool `json:"has_previous_page"`
}

// PackagePage is the paginated package listing payload.
type PackagePage struct {
	Packages   []models.IntegrationPackage `json:"packages"`
	Pagination PaginationInfo              `json:"pagination"`
}

// packageEpoch parses the OData millisecond timestamps (held as strings) for
// date sorting. Unparseable values sort first.
func packageEpoch(s string) int64 {
	n, _ := strconv.ParseInt(s, 10, 64)
	return n
}

func packageMatches(pkg models.IntegrationPackage, search string) bool {
	return strings.Contains(strings.ToLower(pkg.Name), search) ||
		strings.Contains(strings.ToLower(pkg.Description), search) ||
		strings.Contains(strings.ToLower(pkg.ModifiedBy), search)
}

func packageLess(a, b models.IntegrationPackage, field string) bool {
	switch field {
	case "name":
		return a.Name < b.Name
	case "modifiedBy":
		return a.ModifiedBy < b.ModifiedBy
	case "createdBy":
		return a.CreatedBy < b.CreatedBy
	case "createdDate":
		return packageEpoch(a.CreatedAt) < packageEpoch(b.CreatedAt)
	default: // modifiedDate
		return packageEpoch(a.ModifiedAt) < packageEpoch(b.ModifiedAt)
	}
}

// paginatePackages filters by the search term, sorts and slices one page out
// of the full package list.
func paginatePackages(all []models.IntegrationPackage, q packageQuery) PackagePage {
	filtered := all
	if q.Search != "" {
		search := strings.ToLower(q.Search)
		filtered = nil
		for _, pkg := range all {
			if packageMatches(pkg, search) {
				filtered = append(filtered, pkg)
			}
		}
	}

	desc := strings.EqualFold(q.SortDirection, "desc")
	sort.SliceStable(filtered, func(i, j int) bool {
		if desc {
			i, j = j, i
		}
		return packageLess(filtered[i], filtered[j], q.SortField)
	})

	total := len(filtered)
	totalPages := (total + q.PageSize - 1) / q.PageSize
	start := (q.Page - 1) * q.PageSize
	if start > total {
		start = total
	}
	end := start + q.PageSize
	if end > total {
		end = total
	}

	return PackagePage{
		Packages: filtered[start:end],
		Pagination: PaginationInfo{
			CurrentPage:     q.Page,
			PageSize:        q.PageSize,
			TotalCount:      total,
			TotalPages:      totalPages,
			HasNextPage:     q.Page < totalPages,
			HasPreviousPage: q.Page > 1,
		},
	}
}

// GetPackagesPaginated handles GET /api/sap/packages/paginated with search,
// sorting and paging done server-side over the full tenant listing.
func (h *SAPHandler) GetPackagesPaginated(w http.ResponseWriter, r *http.Request) {
	q := parsePackageQuery(r)

	all, err := h.source.GetPackages(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}

	page := paginatePackages(all, q)
	writeJSON(w, http.StatusOK, page,
		fmt.Sprintf("Retrieved %d packages (page %d of %d)", len(page.Packages), q.Page, page.Pagination.TotalPages))
}

// BaseTenantData is the combined package and artifact inventory of the
// source tenant.
type BaseTenantData struct {
	TenantName       string                      `json:"tenant_name"`
	Packages         []models.IntegrationPackage `json:"packages"`
	IFlows           []models.IntegrationFlow    `json:"iflows"`
	LastSynced       time.Time                   `json:"last_synced"`
	ConnectionStatus string                      `json:"connection_status"`
}

// GetBaseTenantData handles GET /api/sap/base-tenant-data. Packages and
// artifacts are fetched concurrently.
func (h *SAPHandler) GetBaseTenantData(w http.ResponseWriter, r *http.Request) {
	var packages []models.IntegrationPackage
	var flows []models.IntegrationFlow

	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		var err error
		packages, err = h.source.GetPackages(ctx)
		return err
	})
	g.Go(func() error {
		var err error
		flows, err = h.source.GetIFlows(ctx, nil)
		return err
	})
	if err := g.Wait(); err != nil {
		writeError(w, r, err)
		return
	}

	data := BaseTenantData{
		TenantName:       h.source.Tenant(),
		Packages:         packages,
		IFlows:           flows,
		LastSynced:       time.Now().UTC(),
		ConnectionStatus: "connected",
	}
	writeJSON(w, http.StatusOK, data,
		fmt.Sprintf("Retrieved base tenant data: %d packages, %d iflows", len(packages), len(flows)))
}

// GetIFlowDetails handles GET /api/sap/iflows/{iflowId}. The tenant listing
// is searched for the artifact; unknown ids are a 404.
func (h *SAPHandler) GetIFlowDetails(w http.ResponseWriter, r *http.Request) {
	iflowID := mux.Vars(r)["iflowId"]

	flows, err := h.source.GetIFlows(r.Context(), nil)
	if err != nil {
		writeError(w, r, err)
		return
	}

	for _, flow := range flows {
		if flow.ID == iflowID {
			writeJSON(w, http.StatusOK, flow, "")
			return
		}
	}
	writeError(w, r, &sap.NotFoundError{Resource: "integration flow " + iflowID, Status: http.StatusNotFound})
}

// GetIFlows handles GET /api/sap/iflows?package_ids=a,b.
func (h *SAPHandler) GetIFlows(w http.ResponseWriter, r *http.Request) {
	var packageIDs []string
	if raw := r.URL.Query().Get("package_ids"); raw != "" {
		for _, id := range strings.Split(raw, ",") {
			if id = strings.TrimSpace(id); id != "" {
				packageIDs = append(packageIDs, id)
			}
		}
	}

	flows, err := h.source.GetIFlows(r.Context(), packageIDs)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, flows, fmt.Sprintf("Retrieved %d integration flows", len(flows)))
}

// GetIFlowConfigurations handles GET /api/sap/iflows/{iflowId}/configurations.
func (h *SAPHandler) GetIFlowConfigurations(w http.ResponseWriter, r *http.Request) {
	version := r.URL.Query().Get("version")
	if version == "" {
		writeBadRequest(w, "version query parameter is required")
		return
	}

	configs, err := h.source.GetIFlowConfigurations(r.Context(), mux.Vars(r)["iflowId"], version)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, configs, "")
}

// GetIFlowResources handles GET /api/sap/iflows/{iflowId}/resources.
func (h *SAPHandler) GetIFlowResources(w http.ResponseWriter, r *http.Request) {
	version := r.URL.Query().Get("version")
	if version == "" {
		writeBadRequest(w, "version query parameter is required")
		return
	}

	resources, err := h.source.GetIFlowResources(r.Context(), mux.Vars(r)["iflowId"], version)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resources, "")
}

// RefreshToken handles POST /api/sap/refresh-token.
func (h *SAPHandler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	if err := h.source.RefreshToken(r.Context()); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"token_refreshed": true}, "OAuth token refreshed")
}

// TokenStatus handles GET /api/sap/token-status.
func (h *SAPHandler) TokenStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.source.TokenStatus(), "")
}

// TestConnectionRequest carries candidate tenant credentials to probe.
type TestConnectionRequest struct {
	Name         string `json:"name"`
	BaseURL      string `json:"base_url"`
	TokenURL     string `json:"token_url"`
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
}

// TestConnection handles POST /api/tenants/test-connection. Probe failures
// are reported in the body, not as an HTTP error.
func (h *SAPHandler) TestConnection(w http.ResponseWriter, r *http.Request) {
	var req TestConnectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body: "+err.Error())
		return
	}
	if req.BaseURL == "" || req.TokenURL == "" || req.ClientID == "" {
		writeBadRequest(w, "base_url, token_url and client_id are required")
		return
	}

	probe := sap.NewClient(sap.Credentials{
		Name:         req.Name,
		BaseURL:      req.BaseURL,
		TokenURL:     req.TokenURL,
		ClientID:     req.ClientID,
		ClientSecret: req.ClientSecret,
	})

	start := time.Now()
	packages, err := probe.TestConnection(r.Context())
	elapsed := time.Since(start).Milliseconds()

	if err != nil {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"success":          false,
			"response_time_ms": elapsed,
			"error":            err.Error(),
		}, "Connection failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":          true,
		"response_time_ms": elapsed,
		"packages_found":   packages,
	}, "Connection successful")
}
