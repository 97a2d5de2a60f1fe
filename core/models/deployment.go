package models

import (
	"sync"
	"time"
)

// DeploymentStatus is the aggregate status of a deployment session.
type DeploymentStatus string

const (
	DeploymentStatusInitialized DeploymentStatus = "initialized"
	DeploymentStatusInProgress  DeploymentStatus = "in_progress"
	DeploymentStatusCompleted   DeploymentStatus = "completed"
	DeploymentStatusFailed      DeploymentStatus = "failed"
	DeploymentStatusPartial     DeploymentStatus = "partial"
)

// ArtifactStatus is the overall status of a single artifact promotion.
type ArtifactStatus string

const (
	ArtifactStatusPending    ArtifactStatus = "pending"
	ArtifactStatusInProgress ArtifactStatus = "in_progress"
	ArtifactStatusCompleted  ArtifactStatus = "completed"
	ArtifactStatusFailed     ArtifactStatus = "failed"
)

// PhaseStatus tracks one of the three promotion phases (upload, configure,
// deploy). Each phase starts at pending, passes through phase-specific active
// states and ends at completed or failed.
type PhaseStatus string

const (
	PhasePending         PhaseStatus = "pending"
	PhaseCompleted       PhaseStatus = "completed"
	PhaseFailed          PhaseStatus = "failed"
	PhaseFetching        PhaseStatus = "fetching"
	PhaseCheckingPackage PhaseStatus = "checking_package"
	PhaseCreatingPackage PhaseStatus = "creating_package"
	PhaseUploading       PhaseStatus = "uploading"
	PhaseUpdating        PhaseStatus = "updating"
	PhaseConfiguring     PhaseStatus = "configuring"
	PhaseDeploying       PhaseStatus = "deploying"
)

// ArtifactProgress is the live progress record for one artifact in a batch.
// It is owned by the workflow goroutine running that artifact; all writes go
// through DeploymentSession.Mutate so pollers never observe a torn update.
type ArtifactProgress struct {
	IFlowID     string `json:"iflow_id"`
	Name        string `json:"name"`
	Version     string `json:"version"`
	PackageID   string `json:"package_id"`
	PackageName string `json:"package_name"`

	UploadStatus     PhaseStatus `json:"upload_status"`
	UploadPercent    int         `json:"upload_percent"`
	ConfigureStatus  PhaseStatus `json:"configure_status"`
	ConfigurePercent int         `json:"configure_percent"`
	DeployStatus     PhaseStatus `json:"deploy_status"`
	DeployPercent    int         `json:"deploy_percent"`

	Status  ArtifactStatus `json:"status"`
	Message string         `json:"message"`
	Error   string         `json:"error,omitempty"`

	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// DeploymentSession is the aggregate record of one batch deployment request.
// The progress slice is created at submission time, in request order, and its
// length never changes for the session's lifetime.
type DeploymentSession struct {
	ID           string              `json:"deployment_id"`
	TargetTenant string              `json:"target_tenant"`
	Total        int                 `json:"total_artifacts"`
	Artifacts    []*ArtifactProgress `json:"artifacts"`
	Status       DeploymentStatus    `json:"status"`
	StartedAt    time.Time           `json:"started_at"`
	CompletedAt  *time.Time          `json:"completed_at,omitempty"`

	mu sync.RWMutex
}

// NewDeploymentSession builds a session with one pending progress record per
// artifact, preserving request order.
func NewDeploymentSession(id, targetTenant string, artifacts []*ArtifactProgress) *DeploymentSession {
	for _, a := range artifacts {
		a.Status = ArtifactStatusPending
		a.UploadStatus = PhasePending
		a.ConfigureStatus = PhasePending
		a.DeployStatus = PhasePending
	}
	return &DeploymentSession{
		ID:           id,
		TargetTenant: targetTenant,
		Total:        len(artifacts),
		Artifacts:    artifacts,
		Status:       DeploymentStatusInitialized,
		StartedAt:    time.Now().UTC(),
	}
}

// Mutate applies fn while holding the session write lock. Workflow goroutines
// use it for every progress field update.
func (s *DeploymentSession) Mutate(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn()
}

// View returns a deep copy of the session safe to marshal while workflows are
// still writing.
func (s *DeploymentSession) View() DeploymentSessionView {
	s.mu.RLock()
	defer s.mu.RUnlock()

	artifacts := make([]ArtifactProgress, len(s.Artifacts))
	for i, a := range s.Artifacts {
		artifacts[i] = *a
	}
	v := DeploymentSessionView{
		ID:           s.ID,
		TargetTenant: s.TargetTenant,
		Total:        s.Total,
		Artifacts:    artifacts,
		Status:       s.Status,
		StartedAt:    s.StartedAt,
	}
	if s.CompletedAt != nil {
		t := *s.CompletedAt
		v.CompletedAt = &t
	}
	return v
}

// Summary returns the condensed view used by the session list endpoint.
// Counts are derived from the live progress records.
func (s *DeploymentSession) Summary() DeploymentSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sum := DeploymentSummary{
		ID:           s.ID,
		TargetTenant: s.TargetTenant,
		Status:       s.Status,
		Total:        s.Total,
		StartedAt:    s.StartedAt,
		CompletedAt:  s.CompletedAt,
	}
	for _, a := range s.Artifacts {
		switch a.Status {
		case ArtifactStatusCompleted:
			sum.Completed++
		case ArtifactStatusFailed:
			sum.Failed++
		}
	}
	return sum
}

// DeploymentSessionView is the poll-endpoint representation of a session.
type DeploymentSessionView struct {
	ID           string             `json:"deployment_id"`
	TargetTenant string             `json:"target_tenant"`
	Total        int                `json:"total_artifacts"`
	Artifacts    []ArtifactProgress `json:"artifacts"`
	Status       DeploymentStatus   `json:"status"`
	StartedAt    time.Time          `json:"started_at"`
	CompletedAt  *time.Time         `json:"completed_at,omitempty"`
}

// DeploymentSummary is one row of the session list endpoint.
type DeploymentSummary struct {
	ID           string           `json:"deployment_id"`
	TargetTenant string           `json:"target_tenant"`
	Status       DeploymentStatus `json:"status"`
	Total        int              `json:"total_artifacts"`
	Completed    int              `json:"completed"`
	Failed       int              `json:"failed"`
	StartedAt    time.Time        `json:"started_at"`
	CompletedAt  *time.Time       `json:"completed_at,omitempty"`
}
