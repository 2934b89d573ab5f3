package di

import (
	"fmt"

	"github.com/samber/do/v2"

	"github.com/magicapi/ai-gateway/internal/config"
)

// ConfigService wraps the environment-sourced configuration.
type ConfigService struct {
	Config *config.Config
}

// NewConfig builds the configuration from the process environment.
func NewConfig(do.Injector) (*ConfigService, error) {
	cfg := config.FromEnv()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &ConfigService{Config: cfg}, nil
}
