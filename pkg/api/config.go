package api

import (
	"fmt"

	"github.com/screenpaw/screenpaw/pkg/screenpaw"
)

// Config holds configuration for the inspection/action API handler
type Config struct {
	// Engine is the screen-time engine instance (required)
	Engine *screenpaw.Engine

	// OnError handles internal errors. If nil, a JSON error body with the
	// mapped status code is written.
	OnError func(err error) (status int, body interface{})
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if c.Engine == nil {
		return fmt.Errorf("engine is required")
	}
	return nil
}

// NewHandler creates a new API handler with the given configuration
func NewHandler(config Config) (*Handler, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &Handler{config: config}, nil
}
