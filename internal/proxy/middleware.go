package proxy

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// RequestIDMiddleware adds an X-Request-ID header and a request-scoped
// logger to the context. A client-supplied id is honored.
func RequestIDMiddleware(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			ctx := logger.WithContext(request.Context())
			ctx = AddRequestID(ctx, request.Header.Get("X-Request-ID"))

			writer.Header().Set("X-Request-ID", GetRequestID(ctx))

			next.ServeHTTP(writer, request.WithContext(ctx))
		})
	}
}

// corsAllowHeaders lists every header a browser client may send.
const corsAllowHeaders = "Content-Type, Authorization, Accept, " +
	"x-provider, x-magicapi-api-key, " +
	"x-aws-access-key-id, x-aws-secret-access-key, x-aws-session-token, x-aws-region, " +
	"x-project-id, x-organisation-id, x-organization-id, x-user-id, x-experiment-id"

// CORSMiddleware answers preflight requests and marks responses as
// cross-origin accessible.
func CORSMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			writer.Header().Set("Access-Control-Allow-Origin", "*")
			writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			writer.Header().Set("Access-Control-Allow-Headers", corsAllowHeaders)

			if request.Method == http.MethodOptions {
				writer.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(writer, request)
		})
	}
}

// statusWriter captures the response status for the access log.
type statusWriter struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusWriter) WriteHeader(code int) {
	w.statusCode = code
	w.ResponseWriter.WriteHeader(code)
}

// Unwrap exposes the underlying writer so http.ResponseController keeps
// working through the wrapper.
func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// LoggingMiddleware logs each request with method, path, status, and duration.
func LoggingMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			start := time.Now()

			wrapped := &statusWriter{ResponseWriter: writer, statusCode: http.StatusOK}
			next.ServeHTTP(wrapped, request)

			logger := zerolog.Ctx(request.Context()).With().
				Str("method", request.Method).
				Str("path", request.URL.Path).
				Int("status", wrapped.statusCode).
				Dur("duration", time.Since(start)).
				Logger()

			switch {
			case wrapped.statusCode >= 500:
				logger.Error().Msg("request failed")
			case wrapped.statusCode >= 400:
				logger.Warn().Msg("request rejected")
			default:
				logger.Info().Msg("request completed")
			}
		})
	}
}

// Chain applies middlewares to a handler, outermost first.
func Chain(h http.Handler, middlewares ...func(http.Handler) http.Handler) http.Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}
