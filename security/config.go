package security

import "github.com/c360/cse/errors"

// Config holds the access control settings.
type Config struct {
	// AdminOriginator bypasses every policy check.
	AdminOriginator string `yaml:"adminOriginator"`
}

// DefaultConfig returns the access control defaults.
func DefaultConfig() Config {
	return Config{
		AdminOriginator: "CAdmin",
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.AdminOriginator == "" {
		return errors.WrapInvalid(errors.ErrMissingConfig, "Config", "Validate",
			"admin originator is required")
	}
	return nil
}
