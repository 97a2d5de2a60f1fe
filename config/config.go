package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog/log"
)

// Config holds the application configuration.
type Config struct {
	ServerPort int    `envconfig:"SERVER_PORT" default:"8080" desc:"Port the API is served on"`
	LogLevel   string `envconfig:"LOG_LEVEL" default:"info"`
	LogPretty  bool   `envconfig:"LOG_PRETTY" default:"false"`

	// Transport database; empty disables the transport endpoints
	DatabaseURL string `envconfig:"DATABASE_URL" default:"postgres://localhost/sap_is_cicd?sslmode=disable"`

	// Tenant credentials
	TenantsFile  string `envconfig:"TENANTS_FILE" default:"tenants.yaml"`
	SourceTenant string `envconfig:"SOURCE_TENANT" default:"CCCI_SANDBOX"`

	// Saved configuration parameter files
	ConfigurationsDir string            `envconfig:"CONFIGURATIONS_DIR" default:"configurations"`
	EnvFolders        map[string]string `envconfig:"ENV_FOLDERS" default:"CCCI_PROD:PRD,CCCI_SANDBOX:DEV"`

	// Finished sessions older than this are evicted; zero keeps them forever
	SessionTTL time.Duration `envconfig:"SESSION_TTL" default:"0"`

	CORSAllowedOrigins []string `envconfig:"CORS_ALLOWED_ORIGINS" default:"http://localhost:3000,http://localhost:5173,http://localhost:8080"`
}

// MustParse loads the configuration from environment variables, exiting on
// invalid input.
func MustParse() Config {
	var c Config
	if err := envconfig.Process("", &c); err != nil {
		_ = envconfig.Usage("", &c)
		log.Fatal().Msg(err.Error())
	}
	return c
}
