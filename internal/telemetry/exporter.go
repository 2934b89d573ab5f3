package telemetry

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
)

// Exporter delivers one record to a sink.
type Exporter interface {
	Name() string
	Export(ctx context.Context, rec *Record) error
}

// exportRetries is the number of additional attempts after a failed export.
const exportRetries = 2

// resilientExporter isolates a flaky sink: each call is bounded by a
// timeout and retried a fixed number of times; repeated failures trip a
// circuit breaker so a dead sink cannot hold worker time hostage.
type resilientExporter struct {
	inner   Exporter
	breaker *gobreaker.CircuitBreaker[struct{}]
	timeout time.Duration
	logger  zerolog.Logger
}

// WithResilience wraps an exporter with timeout, retry, and breaker.
func WithResilience(inner Exporter, timeout time.Duration, logger zerolog.Logger) Exporter {
	breaker := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:    inner.Name(),
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})

	return &resilientExporter{
		inner:   inner,
		breaker: breaker,
		timeout: timeout,
		logger:  logger.With().Str("exporter", inner.Name()).Logger(),
	}
}

func (e *resilientExporter) Name() string {
	return e.inner.Name()
}

func (e *resilientExporter) Export(ctx context.Context, rec *Record) error {
	_, err := e.breaker.Execute(func() (struct{}, error) {
		var lastErr error
		for attempt := 0; attempt <= exportRetries; attempt++ {
			callCtx, cancel := context.WithTimeout(ctx, e.timeout)
			lastErr = e.inner.Export(callCtx, rec)
			cancel()
			if lastErr == nil {
				return struct{}{}, nil
			}
			if ctx.Err() != nil {
				return struct{}{}, lastErr
			}
		}
		return struct{}{}, lastErr
	})
	if err != nil {
		e.logger.Warn().Err(err).Str("request_id", rec.RequestID).Msg("export failed, record dropped")
	}
	return err
}
