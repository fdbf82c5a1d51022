package dispatcher

import (
	"time"

	"github.com/c360/cse/errors"
)

// Config configures the Dispatcher.
type Config struct {
	// CSEID is the CSE identifier used in unstructured addressing
	// ("/<CSE-ID>/<ri>" references).
	CSEID string `yaml:"cse_id"`

	// CSEResourceID is the resource identifier of the CSEBase.
	CSEResourceID string `yaml:"cse_resource_id"`

	// CSEResourceName is the resource name of the CSEBase, the first segment
	// of every structured path.
	CSEResourceName string `yaml:"cse_resource_name"`

	// SortDiscoveredResources sorts each type-and-parent batch by name during
	// tree and reference reconstruction. Sorting never crosses batches.
	SortDiscoveredResources bool `yaml:"sort_discovered_resources"`

	// DefaultExpiration is the expiration interval stamped on created
	// resources when the request carries none.
	DefaultExpiration time.Duration `yaml:"default_expiration"`

	// MaxDiscoveryLevel caps the recursion depth of a discovery walk when the
	// request does not bound it. 0 means unbounded.
	MaxDiscoveryLevel int `yaml:"max_discovery_level"`
}

// DefaultConfig returns default dispatcher configuration.
func DefaultConfig() Config {
	return Config{
		CSEID:                   "id-in",
		CSEResourceID:           "cse-in",
		CSEResourceName:         "cse-in",
		SortDiscoveredResources: true,
		DefaultExpiration:       24 * time.Hour * 365,
		MaxDiscoveryLevel:       0,
	}
}

// Validate checks the configuration for completeness.
func (c Config) Validate() error {
	if c.CSEID == "" {
		return errors.WrapInvalid(errors.ErrMissingConfig, "Dispatcher", "Validate", "cse_id is required")
	}
	if c.CSEResourceID == "" {
		return errors.WrapInvalid(errors.ErrMissingConfig, "Dispatcher", "Validate", "cse_resource_id is required")
	}
	if c.CSEResourceName == "" {
		return errors.WrapInvalid(errors.ErrMissingConfig, "Dispatcher", "Validate", "cse_resource_name is required")
	}
	if c.MaxDiscoveryLevel < 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Dispatcher", "Validate", "max_discovery_level cannot be negative")
	}
	return nil
}
