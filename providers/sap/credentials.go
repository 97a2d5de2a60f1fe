package sap

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Credentials holds the OAuth client credentials and endpoints for one tenant.
// Read once at client construction, never mutated.
type Credentials struct {
	Name         string `yaml:"name"`
	BaseURL      string `yaml:"base_url"`
	TokenURL     string `yaml:"token_url"`
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
}

type credentialsFile struct {
	Tenants []Credentials `yaml:"tenants"`
}

// ResolveCredentials loads the tenants file and returns the entry for the
// named tenant.
func ResolveCredentials(path, tenantName string) (Credentials, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Credentials{}, fmt.Errorf("reading tenants file: %w", err)
	}

	var file credentialsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return Credentials{}, fmt.Errorf("parsing tenants file %s: %w", path, err)
	}

	for _, t := range file.Tenants {
		if t.Name == tenantName {
			if t.BaseURL == "" || t.TokenURL == "" || t.ClientID == "" {
				return Credentials{}, fmt.Errorf("tenant %q has incomplete credentials", tenantName)
			}
			return t, nil
		}
	}
	return Credentials{}, fmt.Errorf("tenant %q not found in %s", tenantName, path)
}
