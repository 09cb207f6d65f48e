// Package config provides bridge configuration loaded from environment variables.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/meetone/meet-bridge/pkg/commsutil"
	"github.com/meetone/meet-bridge/pkg/semver"
)

const logPrefix = "config:LoadConfig"

// Config holds meet-bridge configuration.
type Config struct {
	Scheme string `envconfig:"BRIDGE_SCHEME" default:"meetone://"`

	// COMMS: the host link at COMMSURL.
	COMMSURL  string `envconfig:"COMMS_URL" default:"nats://127.0.0.1:4222"`
	COMMSName string `envconfig:"SERVICE_NAME" default:"meet-bridge"`

	// Subject overrides (empty = derive from Scheme)
	OutboundSubject    string `envconfig:"BRIDGE_OUTBOUND_SUBJECT"`
	InboundSubject     string `envconfig:"BRIDGE_INBOUND_SUBJECT"`
	EventSubjectPrefix string `envconfig:"BRIDGE_EVENT_SUBJECT_PREFIX"`
	RequestSubject     string `envconfig:"BRIDGE_REQUEST_SUBJECT"`

	// Host protocol
	HostVersion    string `envconfig:"HOST_VERSION" default:"2.0.0"`
	VersionCompare string `envconfig:"BRIDGE_VERSION_COMPARE" default:"semver"`

	// Dispatch retry and request lifetime
	DispatchRetryDelay  time.Duration `envconfig:"DISPATCH_RETRY_DELAY" default:"1s"`
	DispatchMaxAttempts int           `envconfig:"DISPATCH_MAX_ATTEMPTS" default:"60"`
	RequestTimeout      time.Duration `envconfig:"BRIDGE_REQUEST_TIMEOUT" default:"0s"`

	// Request journal (empty DATABASE_URL disables it)
	DatabaseURL   string `envconfig:"DATABASE_URL"`
	RunMigrations bool   `envconfig:"RUN_MIGRATIONS" default:"false"`
	MigrationPath string `envconfig:"MIGRATION_PATH" default:"migrations"`

	// HTTP health endpoint for `meetbridge serve`
	HTTPAddr           string        `envconfig:"BRIDGE_HTTP_ADDR" default:"0.0.0.0:8080"`
	HealthCheckTimeout time.Duration `envconfig:"HEALTH_CHECK_TIMEOUT" default:"5s"`

	// Logging
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
}

// LoadConfig loads configuration from environment variables.
func LoadConfig() (*Config, error) {
	var c Config
	if err := envconfig.Process("", &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks the settings every bridge command depends on.
func (c *Config) Validate() error {
	if !strings.HasSuffix(c.Scheme, "://") || len(c.Scheme) <= len("://") {
		return fmt.Errorf("%s - BRIDGE_SCHEME must look like name://, got %q", logPrefix, c.Scheme)
	}
	if c.COMMSURL == "" {
		return fmt.Errorf("%s - COMMS_URL is required", logPrefix)
	}
	mode, err := semver.ParseCompareMode(c.VersionCompare)
	if err != nil {
		return fmt.Errorf("%s - BRIDGE_VERSION_COMPARE: %w", logPrefix, err)
	}
	if _, err := semver.SupportsCallbacks(c.HostVersion, mode); err != nil {
		return fmt.Errorf("%s - HOST_VERSION: %w", logPrefix, err)
	}
	if c.DispatchRetryDelay <= 0 {
		return fmt.Errorf("%s - DISPATCH_RETRY_DELAY must be positive", logPrefix)
	}
	if c.DispatchMaxAttempts <= 0 {
		return fmt.Errorf("%s - DISPATCH_MAX_ATTEMPTS must be positive", logPrefix)
	}
	if c.RequestTimeout < 0 {
		return fmt.Errorf("%s - BRIDGE_REQUEST_TIMEOUT must not be negative", logPrefix)
	}
	return nil
}

// ValidateForServe checks required config when running the long-lived bridge.
func (c *Config) ValidateForServe() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.HTTPAddr == "" {
		return fmt.Errorf("%s - BRIDGE_HTTP_ADDR is required for serve", logPrefix)
	}
	if c.HealthCheckTimeout <= 0 {
		return fmt.Errorf("%s - HEALTH_CHECK_TIMEOUT must be positive", logPrefix)
	}
	return nil
}

// ValidateForDB checks required config when running DB-dependent commands (migrate, clear, requests).
func (c *Config) ValidateForDB() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("%s - DATABASE_URL is required", logPrefix)
	}
	return nil
}

// JournalEnabled reports whether lifecycle events are written to Postgres.
func (c *Config) JournalEnabled() bool {
	return c.DatabaseURL != ""
}

// CompareMode returns the parsed BRIDGE_VERSION_COMPARE, defaulting to semver.
func (c *Config) CompareMode() semver.CompareMode {
	mode, err := semver.ParseCompareMode(c.VersionCompare)
	if err != nil {
		return semver.CompareSemver
	}
	return mode
}

// Outbound returns the outbound subject, derived from Scheme unless overridden.
func (c *Config) Outbound() string {
	if c.OutboundSubject != "" {
		return c.OutboundSubject
	}
	return commsutil.BuildOutboundSubject(c.Scheme)
}

// Inbound returns the inbound subject, derived from Scheme unless overridden.
func (c *Config) Inbound() string {
	if c.InboundSubject != "" {
		return c.InboundSubject
	}
	return commsutil.BuildInboundSubject(c.Scheme)
}

// Requests returns the subject serve accepts bridge requests on, derived from Scheme unless overridden.
func (c *Config) Requests() string {
	if c.RequestSubject != "" {
		return c.RequestSubject
	}
	return commsutil.BuildRequestSubject(c.Scheme)
}

// EventPrefix returns the event subject prefix, derived from Scheme unless overridden.
func (c *Config) EventPrefix() string {
	if c.EventSubjectPrefix != "" {
		return c.EventSubjectPrefix
	}
	return commsutil.BuildEventPrefix(c.Scheme)
}
