package telemetry

import (
	"encoding/json"
	"time"

	"github.com/samber/mo"
)

// RequestMetrics accumulates everything the proxy learns about one request.
// It is owned by a single request goroutine; Finish converts it into the
// immutable Record handed to the collector.
type RequestMetrics struct {
	RequestID string
	Start     time.Time

	Method   string
	Path     string
	Provider string
	Model    string

	StatusCode         int
	ProviderStatusCode int
	ProviderLatency    time.Duration
	RequestBytes       int64
	ResponseBytes      int64

	Streaming bool
	Framing   string

	Input  mo.Option[int64]
	Output mo.Option[int64]
	Total  mo.Option[int64]

	ErrorType   string
	ErrorDetail string

	Tracking          Tracking
	ProviderRequestID string

	requestBody  json.RawMessage
	responseBody json.RawMessage

	chunks    []json.RawMessage
	maxChunks int
	truncated bool
}

// NewRequestMetrics starts a metrics accumulator. maxChunks caps the
// streamed chunk log; beyond it chunks are discarded and the record is
// marked truncated.
func NewRequestMetrics(requestID string, maxChunks int) *RequestMetrics {
	return &RequestMetrics{
		RequestID: requestID,
		Start:     time.Now(),
		maxChunks: maxChunks,
	}
}

// AddChunk appends one decoded chunk to the streamed data log. The payload
// is copied; stream buffers are reused by the reader.
func (m *RequestMetrics) AddChunk(payload []byte) {
	if m.maxChunks > 0 && len(m.chunks) >= m.maxChunks {
		m.truncated = true
		return
	}
	m.chunks = append(m.chunks, json.RawMessage(append([]byte(nil), payload...)))
}

// SetRequestBody captures the inbound body for the exported document.
// Non-JSON bodies are skipped; capture is best effort.
func (m *RequestMetrics) SetRequestBody(body []byte) {
	if json.Valid(body) {
		m.requestBody = json.RawMessage(append([]byte(nil), body...))
	}
}

// SetResponseBody captures the final non-streaming response body.
// Non-JSON bodies are skipped; capture is best effort.
func (m *RequestMetrics) SetResponseBody(body []byte) {
	if json.Valid(body) {
		m.responseBody = json.RawMessage(append([]byte(nil), body...))
	}
}

// MarkTruncated flags the chunk log as incomplete, used when the tap
// channel overflowed upstream of the accumulator.
func (m *RequestMetrics) MarkTruncated() {
	m.truncated = true
}

// Truncated reports whether any streamed chunks were lost.
func (m *RequestMetrics) Truncated() bool {
	return m.truncated
}

// Chunks returns the captured chunk count.
func (m *RequestMetrics) Chunks() int {
	return len(m.chunks)
}

// SetError records the error classification for a failed request.
func (m *RequestMetrics) SetError(errorType, detail string) {
	m.ErrorType = errorType
	m.ErrorDetail = detail
}

// abortedErrorTypes are the classifications meaning the client went away
// rather than the request failing.
var abortedErrorTypes = map[string]bool{
	"client-disconnect": true,
	"client-stalled":    true,
}

func (m *RequestMetrics) status() string {
	switch {
	case m.ErrorType == "":
		return StatusSuccess
	case abortedErrorTypes[m.ErrorType]:
		return StatusAborted
	default:
		return StatusError
	}
}

// Finish freezes the accumulator into an exportable Record.
func (m *RequestMetrics) Finish() *Record {
	return &Record{
		RequestID:          m.RequestID,
		Timestamp:          m.Start.UTC(),
		Status:             m.status(),
		Method:             m.Method,
		Path:               m.Path,
		Provider:           m.Provider,
		Model:              m.Model,
		StatusCode:         m.StatusCode,
		ProviderStatusCode: m.ProviderStatusCode,
		DurationMS:         time.Since(m.Start).Milliseconds(),
		ProviderLatencyMS:  m.ProviderLatency.Milliseconds(),
		RequestBytes:       m.RequestBytes,
		ResponseBytes:      m.ResponseBytes,
		Streaming:          m.Streaming,
		Framing:            m.Framing,
		InputTokens:        tokenPtr(m.Input),
		OutputTokens:       tokenPtr(m.Output),
		TotalTokens:        tokenPtr(m.Total),
		RequestBody:        m.requestBody,
		ResponseBody:       m.responseBody,
		StreamedData:       m.chunks,
		TruncatedStream:    m.truncated,
		ErrorType:          m.ErrorType,
		ErrorDetail:        m.ErrorDetail,
		ProjectID:          m.Tracking.ProjectID,
		OrganisationID:     m.Tracking.OrganisationID,
		UserID:             m.Tracking.UserID,
		ExperimentID:       m.Tracking.ExperimentID,
		ProviderRequestID:  m.ProviderRequestID,
	}
}
