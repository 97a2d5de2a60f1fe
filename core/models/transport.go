package models

import "time"

// TransportRelease is a curated set of artifacts staged for promotion,
// maintained outside this service and read from the transport database.
type TransportRelease struct {
	ID                string     `json:"id"`
	Name              string     `json:"name"`
	Description       string     `json:"description"`
	Status            string     `json:"status"`
	SourceEnvironment string     `json:"source_environment"`
	TargetEnvironment string     `json:"target_environment"`
	CreatedBy         string     `json:"created_by"`
	CreatedDate       time.Time  `json:"created_date"`
	ModifiedBy        string     `json:"modified_by"`
	ModifiedDate      *time.Time `json:"modified_date,omitempty"`
	TotalArtifacts    int        `json:"total_artifacts"`
}

// TransportArtifact is one artifact row belonging to a transport release.
type TransportArtifact struct {
	ID                 int64      `json:"id"`
	TransportReleaseID string     `json:"transport_release_id"`
	IFlowID            string     `json:"iflow_id"`
	IFlowName          string     `json:"iflow_name"`
	PackageID          string     `json:"package_id"`
	PackageName        string     `json:"package_name"`
	Version            string     `json:"version"`
	Status             string     `json:"status"`
	CreatedDate        *time.Time `json:"created_date,omitempty"`
	DeploymentOrder    int64      `json:"deployment_order"`
}
