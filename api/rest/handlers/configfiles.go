package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/Ccintegration/SAP-IS-CICD/core/configstore"
)

// ConfigFileHandler exposes the saved-configuration CSV store.
type ConfigFileHandler struct {
	store *configstore.Store
}

// NewConfigFileHandler creates a new configuration file handler.
func NewConfigFileHandler(store *configstore.Store) *ConfigFileHandler {
	return &ConfigFileHandler{store: store}
}

// SaveConfigurationsRequest is the payload of the save endpoint.
type SaveConfigurationsRequest struct {
	Environment string                           `json:"environment"`
	IFlows      []configstore.IFlowConfiguration `json:"iflows"`
}

// Save handles POST /api/save-iflow-configurations.
func (h *ConfigFileHandler) Save(w http.ResponseWriter, r *http.Request) {
	var req SaveConfigurationsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body: "+err.Error())
		return
	}
	if req.Environment == "" {
		writeBadRequest(w, "environment is required")
		return
	}

	result, err := h.store.Save(req.Environment, req.IFlows)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result,
		fmt.Sprintf("Saved %d configuration parameters", result.TotalParameters))
}

// List handles GET /api/list-configuration-files.
func (h *ConfigFileHandler) List(w http.ResponseWriter, r *http.Request) {
	files, err := h.store.ListFiles()
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"files":       files,
		"total_files": len(files),
	}, fmt.Sprintf("Found %d configuration files", len(files)))
}

// Download handles GET /api/download-configuration-file/{filename}. The file
// is returned as parsed rows, not raw CSV.
func (h *ConfigFileHandler) Download(w http.ResponseWriter, r *http.Request) {
	filename := mux.Vars(r)["filename"]

	rows, err := h.store.Load(filename)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"filename":       filename,
		"configurations": rows,
		"total_records":  len(rows),
	}, "")
}
