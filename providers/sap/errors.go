package sap

import (
	"fmt"
	"strings"
)

// AuthError means the OAuth token endpoint rejected the client credentials.
type AuthError struct {
	TokenURL string
	Status   int
	Body     string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("token request to %s failed with status %d: %s", e.TokenURL, e.Status, e.Body)
}

// NotFoundError is returned for 404-class responses on resources that are
// expected to exist.
type NotFoundError struct {
	Resource string
	Status   int
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found (status %d)", e.Resource, e.Status)
}

// RemoteError is any other non-success response from the tenant API.
type RemoteError struct {
	Op     string
	Status int
	Body   string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s failed with status %d: %s", e.Op, e.Status, e.Body)
}

// AggregateConfigError collects per-key failures from a best-effort batch
// configuration update. Every row is attempted before this is returned.
type AggregateConfigError struct {
	FailedKeys []string
	Errs       []error
}

func (e *AggregateConfigError) Error() string {
	return fmt.Sprintf("failed to update configuration parameters: %s", strings.Join(e.FailedKeys, ", "))
}
