// Package config loads and validates the application configuration from YAML.
// Every section has working defaults; a deployment only overrides what
// differs.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	httpgw "github.com/c360/cse/gateway/http"
	"github.com/c360/cse/errors"
	"github.com/c360/cse/natsclient"
	"github.com/c360/cse/registration"
	"github.com/c360/cse/security"
	"github.com/c360/cse/storage"
)

// Config is the full application configuration.
type Config struct {
	CSE          CSEConfig           `yaml:"cse"`
	Storage      storage.Config      `yaml:"storage"`
	NATS         natsclient.Config   `yaml:"nats"`
	HTTP         httpgw.Config       `yaml:"http"`
	Security     security.Config     `yaml:"security"`
	Registration registration.Config `yaml:"registration"`
	Metrics      MetricsConfig       `yaml:"metrics"`
	Logging      LoggingConfig       `yaml:"logging"`
}

// CSEConfig identifies this CSE and sets the tree-wide defaults.
type CSEConfig struct {
	// CSEID is the CSE identifier, without the leading slash.
	CSEID string `yaml:"cseID"`
	// ResourceID is the resource identifier of the base resource.
	ResourceID string `yaml:"resourceID"`
	// ResourceName is the resource name of the base resource; it is the first
	// segment of every structured path.
	ResourceName string `yaml:"resourceName"`
	// DefaultExpiration is applied to resources created without an expiration
	// time. Zero disables expiration.
	DefaultExpiration time.Duration `yaml:"defaultExpiration"`
	// SortDiscoveredResources orders discovery batches by type and name.
	SortDiscoveredResources bool `yaml:"sortDiscoveredResources"`
	// MaxDiscoveryLevel bounds recursive discovery depth when the request
	// carries no level directive. Zero means unbounded.
	MaxDiscoveryLevel int `yaml:"maxDiscoveryLevel"`
}

// MetricsConfig controls the metrics endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Port    int    `yaml:"port"`
	Path    string `yaml:"path"`
}

// LoggingConfig controls the structured logger.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`
	// Format is json or text.
	Format string `yaml:"format"`
}

// Default returns a configuration with working defaults for a single-node
// in-memory deployment.
func Default() Config {
	return Config{
		CSE: CSEConfig{
			CSEID:                   "id-in",
			ResourceID:              "cb0",
			ResourceName:            "cse-in",
			DefaultExpiration:       0,
			SortDiscoveredResources: false,
			MaxDiscoveryLevel:       0,
		},
		Storage:      storage.DefaultConfig(),
		NATS:         natsclient.DefaultConfig(),
		HTTP:         httpgw.DefaultConfig(),
		Security:     security.DefaultConfig(),
		Registration: registration.DefaultConfig(),
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
			Path:    "/metrics",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads a YAML file over the defaults. An empty path yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, errors.WrapInvalid(err, "Config", "Load",
				fmt.Sprintf("failed to read %s", path))
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, errors.WrapInvalid(err, "Config", "Load",
				fmt.Sprintf("failed to parse %s", path))
		}
	}

	// The registration section inherits the CSE identity unless overridden.
	// DefaultConfig leaves it empty precisely so this branch can tell.
	if cfg.Registration.CSEID == "" {
		cfg.Registration.CSEID = cfg.CSE.CSEID
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks the configuration across sections.
func (c Config) Validate() error {
	if c.CSE.CSEID == "" {
		return errors.WrapInvalid(errors.ErrMissingConfig, "Config", "Validate", "cse id is required")
	}
	if c.CSE.ResourceID == "" {
		return errors.WrapInvalid(errors.ErrMissingConfig, "Config", "Validate", "cse resource id is required")
	}
	if c.CSE.ResourceName == "" {
		return errors.WrapInvalid(errors.ErrMissingConfig, "Config", "Validate", "cse resource name is required")
	}
	switch c.Storage.Backend {
	case storage.BackendMemory:
	case storage.BackendKV:
		if err := c.NATS.Validate(); err != nil {
			return err
		}
	default:
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			fmt.Sprintf("unknown storage backend %q", c.Storage.Backend))
	}
	if err := c.HTTP.Validate(); err != nil {
		return err
	}
	if err := c.Security.Validate(); err != nil {
		return err
	}
	if err := c.Registration.Validate(); err != nil {
		return err
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			fmt.Sprintf("unknown log level %q", c.Logging.Level))
	}
	return nil
}

// NewLogger builds the structured logger the configuration describes.
func (c Config) NewLogger() *slog.Logger {
	var level slog.Level
	switch c.Logging.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if c.Logging.Format == "text" {
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}
