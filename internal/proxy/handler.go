package proxy

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/magicapi/ai-gateway/internal/config"
	"github.com/magicapi/ai-gateway/internal/providers"
	"github.com/magicapi/ai-gateway/internal/telemetry"
)

// HeaderProvider selects the upstream provider for a request.
const HeaderProvider = "x-provider"

// Handler dispatches /v1/* requests to the provider named by the
// x-provider header. Every request, success or failure, produces exactly
// one telemetry record.
type Handler struct {
	registry  *providers.Registry
	engine    *Engine
	collector *telemetry.Collector
	cfg       config.ProxyConfig
	maxChunks int
}

// NewHandler builds the dispatch handler.
func NewHandler(registry *providers.Registry, engine *Engine, collector *telemetry.Collector, cfg config.ProxyConfig, maxChunks int) *Handler {
	return &Handler{
		registry:  registry,
		engine:    engine,
		collector: collector,
		cfg:       cfg,
		maxChunks: maxChunks,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := zerolog.Ctx(ctx)

	m := telemetry.NewRequestMetrics(GetRequestID(ctx), h.maxChunks)
	m.Method = r.Method
	m.Path = r.URL.Path
	m.Tracking = telemetry.TrackingFromHeaders(r.Header)
	defer func() {
		h.collector.Submit(m.Finish())
	}()

	providerName := r.Header.Get(HeaderProvider)
	if providerName == "" {
		h.fail(w, m, NewGatewayError(ErrTypeMissingProvider, http.StatusBadRequest,
			"x-provider header is required"))
		return
	}
	m.Provider = strings.ToLower(providerName)

	strategy, err := h.registry.Lookup(providerName)
	if err != nil {
		h.fail(w, m, ClassifyRequestError(err))
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.MaxRequestBytes)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.fail(w, m, NewGatewayError(ErrTypeRequestTooLarge, http.StatusRequestEntityTooLarge,
				"request body exceeds limit"))
			return
		}
		h.fail(w, m, NewGatewayError(ErrTypeClientDisconnect, statusClientClosedRequest,
			"request body read failed"))
		return
	}
	m.RequestBytes = int64(len(body))
	m.SetRequestBody(body)

	preq := &providers.Request{
		Method:    r.Method,
		Path:      r.URL.Path,
		Headers:   r.Header,
		Body:      body,
		Streaming: providers.StreamingRequested(r.Header, body),
	}
	m.Streaming = preq.Streaming
	m.Model = strategy.ExtractModel(body, nil)

	if gErr := h.engine.Execute(w, r, strategy, preq, m); gErr != nil {
		logger.Warn().Err(gErr).Str("provider", m.Provider).Msg("request failed")
		h.fail(w, m, gErr)
	}
}

// fail records the failure and writes the error response.
func (h *Handler) fail(w http.ResponseWriter, m *telemetry.RequestMetrics, gErr *GatewayError) {
	m.StatusCode = gErr.Status
	m.SetError(string(gErr.Type), gErr.Detail)
	WriteError(w, gErr)
}
