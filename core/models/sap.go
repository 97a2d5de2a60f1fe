package models

import "time"

// IntegrationPackage mirrors the design-time package metadata returned by the
// Integration Suite OData API. Only the fields the promotion flow needs are
// mapped; the allow-list for package creation lives in the tenant client.
type IntegrationPackage struct {
	ID                string `json:"Id"`
	Name              string `json:"Name"`
	ShortText         string `json:"ShortText,omitempty"`
	Description       string `json:"Description,omitempty"`
	Vendor            string `json:"Vendor,omitempty"`
	SupportedPlatform string `json:"SupportedPlatform,omitempty"`
	Version           string `json:"Version,omitempty"`
	Products          string `json:"Products,omitempty"`
	Keywords          string `json:"Keywords,omitempty"`
	Countries         string `json:"Countries,omitempty"`
	Industries        string `json:"Industries,omitempty"`
	LineOfBusiness    string `json:"LineOfBusiness,omitempty"`
	ModifiedBy        string `json:"ModifiedBy,omitempty"`
	ModifiedAt        string `json:"ModifiedAt,omitempty"`
	CreatedBy         string `json:"CreatedBy,omitempty"`
	CreatedAt         string `json:"CreatedAt,omitempty"`
}

// IntegrationFlow is one design-time artifact inside a package.
type IntegrationFlow struct {
	ID          string `json:"Id"`
	Name        string `json:"Name"`
	Version     string `json:"Version"`
	PackageID   string `json:"PackageId"`
	Description string `json:"Description,omitempty"`
}

// ConfigParameter is one saved configuration row for an artifact version.
// Rows are immutable once written to the configuration store.
type ConfigParameter struct {
	IFlowID   string    `json:"iflow_id"`
	IFlowName string    `json:"iflow_name"`
	Version   string    `json:"version"`
	Key       string    `json:"parameter_key"`
	Value     string    `json:"parameter_value"`
	Type      string    `json:"parameter_type"`
	SavedAt   time.Time `json:"saved_at"`
}

// DeployResult is the outcome of a runtime deploy trigger. The call never
// raises for remote non-success; callers inspect Status.
type DeployResult struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

const (
	DeployStatusDeployed = "deployed"
	DeployStatusFailed   = "failed"
)
