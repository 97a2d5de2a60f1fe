package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/Ccintegration/SAP-IS-CICD/core/deployer"
)

// DeploymentHandler exposes batch deployment submission and polling.
type DeploymentHandler struct {
	executor *deployer.Executor
	store    *deployer.SessionStore
}

// NewDeploymentHandler creates a new deployment handler.
func NewDeploymentHandler(executor *deployer.Executor, store *deployer.SessionStore) *DeploymentHandler {
	return &DeploymentHandler{executor: executor, store: store}
}

// DeployRequest is the batch submission payload.
type DeployRequest struct {
	Artifacts         []deployer.DeployArtifact `json:"artifacts"`
	TargetEnvironment string                    `json:"target_environment"`
	DeploymentID      string                    `json:"deployment_id,omitempty"`
}

// Deploy handles POST /api/deployment/deploy. It acknowledges synchronously
// and runs the batch in the background; only malformed input fails here.
func (h *DeploymentHandler) Deploy(w http.ResponseWriter, r *http.Request) {
	var req DeployRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body: "+err.Error())
		return
	}

	sess, err := h.executor.Submit(req.Artifacts, req.TargetEnvironment, req.DeploymentID)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	writeJSON(w, http.StatusAccepted, sess.View(),
		fmt.Sprintf("Deployment of %d artifacts to %s started", sess.Total, sess.TargetTenant))
}

// Status handles GET /api/deployment/status/{deploymentId}.
func (h *DeploymentHandler) Status(w http.ResponseWriter, r *http.Request) {
	sess, err := h.store.Get(mux.Vars(r)["deploymentId"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess.View(), "")
}

// Sessions handles GET /api/deployment/sessions.
func (h *DeploymentHandler) Sessions(w http.ResponseWriter, r *http.Request) {
	summaries := h.store.List()
	writeJSON(w, http.StatusOK, summaries, fmt.Sprintf("%d deployment sessions", len(summaries)))
}
