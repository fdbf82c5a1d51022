package http

import (
	"time"

	"github.com/c360/cse/errors"
)

// Config holds the HTTP binding settings.
type Config struct {
	// Address is the listen address, e.g. ":8080".
	Address string `yaml:"address"`
	// BasePath is the path prefix resource addresses hang under.
	BasePath string `yaml:"basePath"`
	// MaxRequestSize bounds the accepted request body in bytes.
	MaxRequestSize int64 `yaml:"maxRequestSize"`
	// RequestTimeout bounds one request's processing time.
	RequestTimeout time.Duration `yaml:"requestTimeout"`
	// EnableCORS switches on CORS headers for browser clients.
	EnableCORS bool `yaml:"enableCORS"`
	// CORSOrigins lists the allowed origins; "*" allows any.
	CORSOrigins []string `yaml:"corsOrigins"`
	// EnableEventFeed exposes the websocket lifecycle event feed under
	// BasePath + "/events".
	EnableEventFeed bool `yaml:"enableEventFeed"`
}

// DefaultConfig returns the HTTP binding defaults.
func DefaultConfig() Config {
	return Config{
		Address:         ":8080",
		BasePath:        "/cse",
		MaxRequestSize:  1024 * 1024,
		RequestTimeout:  10 * time.Second,
		EnableCORS:      false,
		CORSOrigins:     []string{"*"},
		EnableEventFeed: true,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.Address == "" {
		return errors.WrapInvalid(errors.ErrMissingConfig, "Config", "Validate", "listen address is required")
	}
	if c.BasePath == "" {
		return errors.WrapInvalid(errors.ErrMissingConfig, "Config", "Validate", "base path is required")
	}
	if c.MaxRequestSize <= 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate", "max request size must be positive")
	}
	return nil
}
