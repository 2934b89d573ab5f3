package di

import (
	"context"
	"fmt"
	"time"

	"github.com/samber/do/v2"

	"github.com/magicapi/ai-gateway/internal/telemetry"
)

// collectorDrainTimeout bounds how long shutdown waits for queued records.
const collectorDrainTimeout = 30 * time.Second

// CollectorService wraps the telemetry collector and its exporters.
type CollectorService struct {
	Collector *telemetry.Collector
}

// NewCollector creates and starts the telemetry collector. The console
// exporter is registered when Elasticsearch is disabled or debug output is
// requested; the Elasticsearch exporter when enabled. Every exporter is
// wrapped with retry and circuit-breaker resilience.
func NewCollector(i do.Injector) (*CollectorService, error) {
	cfgSvc := do.MustInvoke[*ConfigService](i)
	loggerSvc := do.MustInvoke[*LoggerService](i)

	cfg := cfgSvc.Config.Telemetry
	logger := loggerSvc.Logger

	telemetry.SetDeploymentEnvironment(cfg.Environment)

	var exporters []telemetry.Exporter

	if cfg.Debug || !cfg.Elasticsearch.Enabled {
		exporters = append(exporters,
			telemetry.WithResilience(telemetry.NewConsoleExporter(logger), cfg.ExportTimeout, logger))
	}

	if cfg.Elasticsearch.Enabled {
		es, err := telemetry.NewElasticsearchExporter(cfg.Elasticsearch)
		if err != nil {
			return nil, fmt.Errorf("failed to create elasticsearch exporter: %w", err)
		}
		exporters = append(exporters,
			telemetry.WithResilience(es, cfg.ExportTimeout, logger))
	}

	collector := telemetry.NewCollector(cfg.QueueSize, cfg.Workers, logger, exporters...)
	collector.Start()

	return &CollectorService{Collector: collector}, nil
}

// Shutdown implements do.Shutdowner, draining queued records before exit.
func (c *CollectorService) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), collectorDrainTimeout)
	defer cancel()
	return c.Collector.Shutdown(ctx)
}
