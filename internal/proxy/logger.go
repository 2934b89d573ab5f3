package proxy

import (
	"context"
	"os"

	"github.com/google/uuid"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/magicapi/ai-gateway/internal/config"
)

type ctxKey string

// RequestIDKey is the context key for request IDs.
const RequestIDKey ctxKey = "request_id"

// NewLogger creates the global zerolog.Logger from LoggingConfig. Output is
// JSON unless stdout is a terminal or pretty output is forced.
func NewLogger(cfg config.LoggingConfig) zerolog.Logger {
	logger := zerolog.New(os.Stdout)

	if cfg.Pretty || isatty.IsTerminal(os.Stdout.Fd()) {
		logger = zerolog.New(zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: "15:04:05",
		})
	}

	return logger.Level(cfg.ParseLevel()).With().Timestamp().Logger()
}

// AddRequestID puts a request ID into the context and its logger. An empty
// id generates a fresh UUID.
func AddRequestID(ctx context.Context, requestID string) context.Context {
	if requestID == "" {
		requestID = uuid.New().String()
	}

	ctx = context.WithValue(ctx, RequestIDKey, requestID)

	logger := log.Ctx(ctx).With().Str("request_id", requestID).Logger()
	return logger.WithContext(ctx)
}

// GetRequestID retrieves the request ID from context.
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(RequestIDKey).(string); ok {
		return id
	}
	return ""
}
