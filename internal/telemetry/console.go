package telemetry

import (
	"context"

	"github.com/rs/zerolog"
)

// ConsoleExporter writes each record to the structured log. Used in debug
// deployments and as the default sink when Elasticsearch is disabled.
type ConsoleExporter struct {
	logger zerolog.Logger
}

// NewConsoleExporter builds a console exporter on the given logger.
func NewConsoleExporter(logger zerolog.Logger) *ConsoleExporter {
	return &ConsoleExporter{logger: logger}
}

func (e *ConsoleExporter) Name() string { return "console" }

func (e *ConsoleExporter) Export(_ context.Context, rec *Record) error {
	event := e.logger.Info().
		Str("request_id", rec.RequestID).
		Str("status", rec.Status).
		Str("method", rec.Method).
		Str("path", rec.Path).
		Str("provider", rec.Provider).
		Int("status_code", rec.StatusCode).
		Int64("duration_ms", rec.DurationMS).
		Int64("request_size_bytes", rec.RequestBytes).
		Int64("response_size_bytes", rec.ResponseBytes).
		Bool("streaming", rec.Streaming)

	if rec.Model != "" {
		event = event.Str("model", rec.Model)
	}
	if rec.TotalTokens != nil {
		event = event.Int64("total_tokens", *rec.TotalTokens)
	}
	if rec.ErrorType != "" {
		event = event.Str("error_type", rec.ErrorType).Str("error_detail", rec.ErrorDetail)
	}
	if rec.TruncatedStream {
		event = event.Bool("truncated_stream", true)
	}

	event.Msg("request completed")
	return nil
}
