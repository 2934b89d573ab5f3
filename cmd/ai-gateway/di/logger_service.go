package di

import (
	"github.com/rs/zerolog"
	"github.com/samber/do/v2"

	"github.com/magicapi/ai-gateway/internal/proxy"
)

// LoggerService wraps the zerolog logger for DI.
type LoggerService struct {
	Logger zerolog.Logger
}

// NewLogger creates the zerolog logger from configuration.
func NewLogger(i do.Injector) (*LoggerService, error) {
	cfgSvc := do.MustInvoke[*ConfigService](i)

	return &LoggerService{Logger: proxy.NewLogger(cfgSvc.Config.Logging)}, nil
}
