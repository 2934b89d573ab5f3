// Package providers implements the per-provider strategies of the gateway:
// path and header rewrites, request/response body transforms, response
// framing, and usage extraction for each supported LLM backend.
package providers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/mo"
	"github.com/tidwall/gjson"
)

// ID identifies a supported provider. Matching on the x-provider header is
// case-insensitive; IDs are the canonical lowercase form.
type ID string

// Supported providers.
const (
	OpenAI    ID = "openai"
	Anthropic ID = "anthropic"
	GROQ      ID = "groq"
	Fireworks ID = "fireworks"
	Together  ID = "together"
	Bedrock   ID = "bedrock"
)

// Framing describes how an upstream response body is carried.
type Framing int

const (
	// FramingJSON is a single buffered JSON body.
	FramingJSON Framing = iota
	// FramingSSE is a text/event-stream body relayed as-is.
	FramingSSE
	// FramingEventStream is an AWS binary event stream translated to SSE.
	FramingEventStream
)

// String returns the framing name used in logs and telemetry.
func (f Framing) String() string {
	switch f {
	case FramingSSE:
		return "sse"
	case FramingEventStream:
		return "aws_event_stream"
	default:
		return "json"
	}
}

// Sentinel errors returned by strategies. The proxy layer maps these to
// client-facing status codes.
var (
	// ErrUnknownProvider indicates an x-provider value outside the registry.
	ErrUnknownProvider = errors.New("providers: unknown provider")
	// ErrInvalidCredentials indicates missing or malformed client credentials.
	ErrInvalidCredentials = errors.New("providers: invalid credentials")
	// ErrInvalidBody indicates a request body a transform cannot work with.
	ErrInvalidBody = errors.New("providers: invalid request body")
)

// Request is the inbound request as seen by a strategy: the original /v1/...
// path, the client headers, and the fully buffered body.
type Request struct {
	Method    string
	Path      string
	Headers   http.Header
	Body      []byte
	Streaming bool
}

// Usage holds token counts extracted from an upstream response. Providers
// that omit usage leave the fields absent rather than zero.
type Usage struct {
	Input  mo.Option[int64]
	Output mo.Option[int64]
	Total  mo.Option[int64]
}

// Empty reports whether no token count was extracted at all.
func (u Usage) Empty() bool {
	return u.Input.IsAbsent() && u.Output.IsAbsent() && u.Total.IsAbsent()
}

// DecodedFrame is one decoded message from an AWS event stream.
type DecodedFrame struct {
	// EventType is the :event-type header, e.g. "contentBlockDelta".
	EventType string
	// ExceptionType is the :exception-type header for exception messages.
	ExceptionType string
	// Payload is the frame's JSON payload.
	Payload []byte
}

// StreamState carries the per-request state a streaming translation needs:
// the model name echoed into synthesized chunks, a stable chunk id and
// fingerprint, and the first-chunk flag that controls the assistant role.
type StreamState struct {
	Model       string
	ChunkID     string
	Fingerprint string
	Created     int64

	firstChunk bool
}

// NewStreamState seeds the state for one streaming response.
func NewStreamState(model string) *StreamState {
	short := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return &StreamState{
		Model:       model,
		ChunkID:     "chatcmpl-" + short,
		Fingerprint: "fp_" + short,
		Created:     time.Now().Unix(),
		firstChunk:  true,
	}
}

// takeFirst returns true exactly once, for the chunk that carries the role.
func (s *StreamState) takeFirst() bool {
	first := s.firstChunk
	s.firstChunk = false
	return first
}

// Strategy is the per-provider behavior behind the dispatch handler. All
// implementations are stateless; per-request streaming state travels in
// StreamState.
type Strategy interface {
	// Name returns the provider identifier.
	Name() ID

	// BaseURL returns the upstream base URL for a request. Most providers
	// have a fixed base; Bedrock derives it from the request's region.
	BaseURL(h http.Header) string

	// TransformPath rewrites the inbound path to the upstream path.
	// Idempotent: transforming an already transformed path is a no-op.
	TransformPath(req *Request) (string, error)

	// ProcessHeaders builds the outbound header set from the client headers.
	// Returns ErrInvalidCredentials when the provider's credential
	// requirements are not met.
	ProcessHeaders(h http.Header) (http.Header, error)

	// TransformRequestBody rewrites the request body for the upstream
	// dialect. Providers speaking OpenAI's dialect return the body unchanged.
	TransformRequestBody(req *Request) ([]byte, error)

	// Sign adds request signing after all other mutations. Only Bedrock
	// signs; everyone else is a no-op.
	Sign(ctx context.Context, req *http.Request, body []byte) error

	// ResponseFraming classifies the upstream response body.
	ResponseFraming(contentType string, streaming bool) Framing

	// TransformResponseBody rewrites a buffered non-streaming body to the
	// OpenAI dialect. Identity for providers already speaking it.
	TransformResponseBody(body []byte, st *StreamState) ([]byte, error)

	// TransformResponseChunk translates one decoded event-stream frame.
	// It returns the SSE payload to send to the client (nil when the frame
	// produces no client output) and whether the decoded payload belongs in
	// the telemetry chunk log. Only meaningful for FramingEventStream.
	TransformResponseChunk(frame *DecodedFrame, st *StreamState) (sse []byte, logged bool)

	// ExtractModel pulls the model name for telemetry, preferring the
	// request body over the response body.
	ExtractModel(reqBody, respBody []byte) string

	// ExtractUsage pulls token counts from a response or frame payload.
	ExtractUsage(body []byte) Usage

	// ExtractProviderRequestID pulls the upstream request id for telemetry.
	ExtractProviderRequestID(h http.Header, body []byte) string
}

// StreamingRequested reports whether the client asked for a streaming
// response, either via "stream": true in the body or an SSE Accept header.
func StreamingRequested(h http.Header, body []byte) bool {
	if gjson.GetBytes(body, "stream").Bool() {
		return true
	}
	return strings.Contains(h.Get("Accept"), "text/event-stream")
}
