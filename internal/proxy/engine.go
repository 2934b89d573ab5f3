package proxy

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/samber/ro"

	"github.com/magicapi/ai-gateway/internal/config"
	"github.com/magicapi/ai-gateway/internal/providers"
	"github.com/magicapi/ai-gateway/internal/telemetry"
)

// streamReadSize is the per-read buffer for relayed SSE bodies.
const streamReadSize = 32 << 10

// Engine executes one proxied request: it applies the strategy's
// transforms, performs the upstream call, and relays the response in
// whatever framing the upstream chose, tapping chunks for telemetry along
// the way.
type Engine struct {
	client *http.Client
	cfg    config.ProxyConfig
}

// NewEngine builds an engine on the shared upstream client.
func NewEngine(client *http.Client, cfg config.ProxyConfig) *Engine {
	return &Engine{client: client, cfg: cfg}
}

// Execute proxies one request. A non-nil return means nothing has been
// written to w and the caller owns the error response; failures after the
// response has started are handled internally and recorded in m.
func (e *Engine) Execute(
	w http.ResponseWriter,
	r *http.Request,
	strategy providers.Strategy,
	preq *providers.Request,
	m *telemetry.RequestMetrics,
) *GatewayError {
	ctx := r.Context()
	logger := zerolog.Ctx(ctx)

	path, err := strategy.TransformPath(preq)
	if err != nil {
		return ClassifyRequestError(err)
	}

	headers, err := strategy.ProcessHeaders(preq.Headers)
	if err != nil {
		return ClassifyRequestError(err)
	}

	body, err := strategy.TransformRequestBody(preq)
	if err != nil {
		return ClassifyRequestError(err)
	}

	outCtx := providers.WithClientHeaders(ctx, preq.Headers)
	if !preq.Streaming {
		var cancel context.CancelFunc
		outCtx, cancel = context.WithTimeout(outCtx, e.cfg.UpstreamTimeout)
		defer cancel()
	}

	outReq, err := http.NewRequestWithContext(outCtx, preq.Method,
		strategy.BaseURL(preq.Headers)+path, bytes.NewReader(body))
	if err != nil {
		return ClassifyRequestError(err)
	}
	outReq.Header = headers
	outReq.ContentLength = int64(len(body))

	if err := strategy.Sign(outCtx, outReq, body); err != nil {
		return ClassifyRequestError(err)
	}

	upstreamStart := time.Now()
	resp, err := e.client.Do(outReq)
	if err != nil {
		return ClassifyUpstreamError(err)
	}
	defer resp.Body.Close()

	// Provider latency is time to response headers; streaming bodies keep
	// flowing long after.
	m.ProviderLatency = time.Since(upstreamStart)
	m.StatusCode = resp.StatusCode
	m.ProviderStatusCode = resp.StatusCode
	m.ProviderRequestID = strategy.ExtractProviderRequestID(resp.Header, nil)

	if resp.StatusCode >= 400 {
		return e.relayProviderError(w, resp, m)
	}

	framing := strategy.ResponseFraming(resp.Header.Get("Content-Type"), preq.Streaming)
	m.Framing = framing.String()

	logger.Debug().
		Str("provider", string(strategy.Name())).
		Str("framing", framing.String()).
		Int("upstream_status", resp.StatusCode).
		Msg("relaying upstream response")

	switch framing {
	case providers.FramingSSE:
		e.relaySSE(w, resp, strategy, m, logger)
		return nil
	case providers.FramingEventStream:
		e.relayEventStream(w, resp, strategy, m, logger)
		return nil
	default:
		return e.relayJSON(w, resp, strategy, m)
	}
}

// relayProviderError forwards an upstream error body untouched so the
// caller sees the provider's own diagnostics.
func (e *Engine) relayProviderError(w http.ResponseWriter, resp *http.Response, m *telemetry.RequestMetrics) *GatewayError {
	body, err := e.readCapped(resp.Body)
	if err != nil {
		return ClassifyUpstreamError(err)
	}

	m.Framing = providers.FramingJSON.String()
	m.SetError(string(ErrTypeProviderError), errorDetailPreview(body))
	m.SetResponseBody(body)
	m.ResponseBytes = int64(len(body))

	copyContentType(w, resp)
	w.WriteHeader(resp.StatusCode)
	_, _ = w.Write(body)
	return nil
}

// relayJSON buffers, transforms, and forwards a non-streaming body.
func (e *Engine) relayJSON(w http.ResponseWriter, resp *http.Response, strategy providers.Strategy, m *telemetry.RequestMetrics) *GatewayError {
	body, err := e.readCapped(resp.Body)
	if err != nil {
		return ClassifyUpstreamError(err)
	}

	// Header extraction ran before the body was available; upstreams that
	// send no request-id header carry the id in the body instead.
	if m.ProviderRequestID == "" {
		m.ProviderRequestID = strategy.ExtractProviderRequestID(resp.Header, body)
	}

	setUsage(m, strategy.ExtractUsage(body))
	if m.Model == "" {
		m.Model = strategy.ExtractModel(nil, body)
	}

	st := providers.NewStreamState(m.Model)
	out, err := strategy.TransformResponseBody(body, st)
	if err != nil {
		return &GatewayError{Type: ErrTypeProtocolError, Status: http.StatusBadGateway,
			Detail: "upstream response could not be translated", Err: err}
	}
	m.SetResponseBody(out)
	m.ResponseBytes = int64(len(out))

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.StatusCode)
	_, _ = w.Write(out)
	return nil
}

// relaySSE forwards an SSE body byte for byte while a tap parses a copy of
// the stream for telemetry. The tap never blocks the data path: when its
// buffer is full, chunks are dropped and the record is marked truncated.
func (e *Engine) relaySSE(w http.ResponseWriter, resp *http.Response, strategy providers.Strategy, m *telemetry.RequestMetrics, logger *zerolog.Logger) {
	SetSSEHeaders(w.Header())
	w.WriteHeader(resp.StatusCode)

	tap := newSSETap(strategy, m, e.cfg.StreamBufferSize)
	rc := http.NewResponseController(w)

	var written int64
	var werr error
	buf := make([]byte, streamReadSize)
	for {
		n, rerr := resp.Body.Read(buf)
		if n > 0 {
			_ = rc.SetWriteDeadline(time.Now().Add(e.cfg.ClientStallTimeout))
			var wn int
			wn, werr = w.Write(buf[:n])
			written += int64(wn)
			if werr != nil {
				break
			}
			_ = rc.Flush()
			tap.Offer(buf[:n])
		}
		if rerr != nil {
			if rerr != io.EOF {
				if errors.Is(rerr, context.Canceled) {
					m.SetError(string(ErrTypeClientDisconnect), "client closed request")
				} else {
					m.SetError(string(ErrTypeProtocolError), "upstream stream failed")
					logger.Warn().Err(rerr).Msg("upstream stream failed mid-response")
				}
			}
			break
		}
	}

	if werr != nil {
		errType := classifyWriteError(werr)
		m.SetError(string(errType), "client write failed")
		logger.Warn().Err(werr).Str("error_type", string(errType)).Msg("client write failed")
	}

	tap.Close()
	m.ResponseBytes = written
}

// relayEventStream decodes AWS event-stream frames and emits translated
// SSE chunks, terminating the stream with [DONE].
func (e *Engine) relayEventStream(w http.ResponseWriter, resp *http.Response, strategy providers.Strategy, m *telemetry.RequestMetrics, logger *zerolog.Logger) {
	SetSSEHeaders(w.Header())
	w.WriteHeader(http.StatusOK)
	m.StatusCode = http.StatusOK

	rc := http.NewResponseController(w)
	st := providers.NewStreamState(m.Model)
	reader := providers.NewEventStreamReader(resp.Body)

	var written int64
	for {
		frame, err := reader.Next()
		if err != nil {
			if err != io.EOF {
				if errors.Is(err, context.Canceled) {
					m.SetError(string(ErrTypeClientDisconnect), "client closed request")
				} else {
					m.SetError(string(ErrTypeProtocolError), "event stream decode failed")
					logger.Warn().Err(err).Msg("event stream decode failed")
				}
				return
			}
			break
		}

		if frame.ExceptionType != "" {
			m.SetError(string(ErrTypeProviderError), frame.ExceptionType)
			logger.Warn().Str("exception", frame.ExceptionType).Msg("upstream exception frame")
			return
		}

		sse, logged := strategy.TransformResponseChunk(frame, st)
		if logged {
			if sse != nil {
				m.AddChunk(sse)
			} else {
				m.AddChunk(frame.Payload)
			}
			if u := strategy.ExtractUsage(frame.Payload); !u.Empty() {
				setUsage(m, u)
			}
		}
		if sse == nil {
			continue
		}

		n, err := writeSSEData(w, rc, sse, e.cfg.ClientStallTimeout)
		written += int64(n)
		if err != nil {
			errType := classifyWriteError(err)
			m.SetError(string(errType), "client write failed")
			logger.Warn().Err(err).Str("error_type", string(errType)).Msg("client write failed")
			return
		}
	}

	if n := reader.DecodeErrors(); n > 0 {
		m.MarkTruncated()
		logger.Warn().Int("dropped_frames", n).Msg("event stream frames dropped")
	}

	n, _ := writeSSEData(w, rc, []byte("[DONE]"), e.cfg.ClientStallTimeout)
	m.ResponseBytes = written + int64(n)
}

// writeSSEData writes one data: line with the stall deadline armed.
func writeSSEData(w http.ResponseWriter, rc *http.ResponseController, payload []byte, stall time.Duration) (int, error) {
	_ = rc.SetWriteDeadline(time.Now().Add(stall))

	n, err := w.Write(append(append([]byte("data: "), payload...), '\n', '\n'))
	if err != nil {
		return n, err
	}
	_ = rc.Flush()
	return n, nil
}

// readCapped buffers a non-streaming body, reading one byte past the cap
// so overflow is detected rather than silently truncated.
func (e *Engine) readCapped(body io.Reader) ([]byte, error) {
	out, err := io.ReadAll(io.LimitReader(body, e.cfg.MaxResponseBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(out)) > e.cfg.MaxResponseBytes {
		return nil, errUpstreamTooLarge
	}
	return out, nil
}

func copyContentType(w http.ResponseWriter, resp *http.Response) {
	if ct := resp.Header.Get("Content-Type"); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
}

// errorDetailPreview trims an upstream error body for telemetry.
func errorDetailPreview(body []byte) string {
	const max = 512
	if len(body) > max {
		body = body[:max]
	}
	return string(body)
}

func setUsage(m *telemetry.RequestMetrics, u providers.Usage) {
	m.Input, m.Output, m.Total = u.Input, u.Output, u.Total
}

// sseTap feeds a copy of a relayed SSE stream into a parser that captures
// decoded chunks and usage for telemetry. Offer never blocks. The
// accumulator is mutated only by the parser goroutine while the stream is
// live; Offer records overflow in an atomic flag that Close applies after
// the parser has drained.
type sseTap struct {
	ch      chan []byte
	done    chan struct{}
	m       *telemetry.RequestMetrics
	dropped atomic.Bool
}

func newSSETap(strategy providers.Strategy, m *telemetry.RequestMetrics, bufferSize int) *sseTap {
	t := &sseTap{
		ch:   make(chan []byte, bufferSize),
		done: make(chan struct{}),
		m:    m,
	}

	pr, pw := io.Pipe()
	go func() {
		for b := range t.ch {
			_, _ = pw.Write(b)
		}
		_ = pw.Close()
	}()

	go func() {
		defer close(t.done)
		StreamSSE(pr).Subscribe(ro.NewObserver(
			func(event SSEEvent) {
				if bytes.Equal(event.Data, []byte("[DONE]")) {
					return
				}
				m.AddChunk(event.Data)
				if u := strategy.ExtractUsage(event.Data); !u.Empty() {
					setUsage(m, u)
				}
			},
			func(error) {},
			func() {},
		))
	}()

	return t
}

// Offer hands a copy of the chunk to the tap, dropping when the buffer is
// full so the data path never waits on telemetry.
func (t *sseTap) Offer(b []byte) {
	chunk := append([]byte(nil), b...)
	select {
	case t.ch <- chunk:
	default:
		t.dropped.Store(true)
	}
}

// Close ends the tap and waits for the parser to drain what it accepted.
// The truncation flag lands here, after the parser has exited, so the
// accumulator never sees writes from two goroutines.
func (t *sseTap) Close() {
	close(t.ch)
	<-t.done
	if t.dropped.Load() {
		t.m.MarkTruncated()
	}
}
