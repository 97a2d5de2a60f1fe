package handlers

import (
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/Ccintegration/SAP-IS-CICD/core/repository"
)

// TransportHandler exposes transport-release lookups.
type TransportHandler struct {
	repo *repository.TransportRepository
}

// NewTransportHandler creates a new transport handler.
func NewTransportHandler(repo *repository.TransportRepository) *TransportHandler {
	return &TransportHandler{repo: repo}
}

// List handles GET /api/transports.
func (h *TransportHandler) List(w http.ResponseWriter, r *http.Request) {
	releases, err := h.repo.List()
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, releases, fmt.Sprintf("Retrieved %d transport releases", len(releases)))
}

// Get handles GET /api/transports/{transportId}.
func (h *TransportHandler) Get(w http.ResponseWriter, r *http.Request) {
	release, err := h.repo.Get(mux.Vars(r)["transportId"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, release, "")
}

// ListArtifacts handles GET /api/transports/{transportId}/artifacts.
func (h *TransportHandler) ListArtifacts(w http.ResponseWriter, r *http.Request) {
	artifacts, err := h.repo.ListArtifacts(mux.Vars(r)["transportId"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, artifacts, fmt.Sprintf("Retrieved %d transport artifacts", len(artifacts)))
}
