package registration

import "github.com/c360/cse/errors"

// Config holds the registration rules.
type Config struct {
	// CSEID is this CSE's identifier; remote registrations claiming it are
	// rejected.
	CSEID string `yaml:"cseID"`
	// AllowedAEOriginators lists the originator patterns accepted for AE
	// registration. Entries may contain '*' wildcards.
	AllowedAEOriginators []string `yaml:"allowedAEOriginators"`
	// ReservedOriginators can never register as application entities.
	ReservedOriginators []string `yaml:"reservedOriginators"`
}

// DefaultConfig returns the registration defaults. CSEID is left empty so the
// application config can tell an explicit override from an unset value and
// fill it from the CSE identity.
func DefaultConfig() Config {
	return Config{
		AllowedAEOriginators: []string{"C*", "S*"},
		ReservedOriginators:  []string{"CAdmin", "none"},
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.CSEID == "" {
		return errors.WrapInvalid(errors.ErrMissingConfig, "Config", "Validate", "cse id is required")
	}
	return nil
}
