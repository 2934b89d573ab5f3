package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/magicapi/ai-gateway/internal/sigv4"
)

// EventStreamContentType is the Bedrock streaming response content type.
const EventStreamContentType = "application/vnd.amazon.eventstream"

type bedrock struct {
	base
	signer *sigv4.Signer
	// endpoint, when set, replaces the regional endpoint entirely.
	endpoint string
	// useInvoke routes to the legacy InvokeModel endpoints instead of
	// Converse. Set via BEDROCK_USE_INVOKE for models predating Converse.
	// The toggle swaps only the path family; body translation and stream
	// decoding stay in the Converse dialect.
	useInvoke bool
}

func newBedrock(signer *sigv4.Signer, useInvoke bool) *bedrock {
	return &bedrock{
		base:      base{name: Bedrock},
		signer:    signer,
		useInvoke: useInvoke,
	}
}

// BaseURL derives the endpoint from the request's region.
func (p *bedrock) BaseURL(h http.Header) string {
	if p.endpoint != "" {
		return p.endpoint
	}
	return fmt.Sprintf("https://bedrock-runtime.%s.amazonaws.com", p.signer.Region(h))
}

func (p *bedrock) overrideBaseURL(u string) { p.endpoint = u }

// TransformPath moves the model id from the body into the path. Paths
// already in /model/... form pass through, so the rewrite is idempotent.
func (p *bedrock) TransformPath(req *Request) (string, error) {
	if strings.HasPrefix(req.Path, "/model/") {
		return req.Path, nil
	}

	model := gjson.GetBytes(req.Body, "model").String()
	if model == "" {
		return "", fmt.Errorf("%w: model is required", ErrInvalidBody)
	}

	op := "converse"
	if req.Streaming {
		op = "converse-stream"
	}
	if p.useInvoke {
		op = "invoke"
		if req.Streaming {
			op = "invoke-with-response-stream"
		}
	}

	return "/model/" + url.PathEscape(model) + "/" + op, nil
}

// ProcessHeaders builds a clean outbound header set. Client credentials
// travel in x-aws-* headers consumed by Sign, never forwarded upstream.
func (p *bedrock) ProcessHeaders(http.Header) (http.Header, error) {
	out := make(http.Header)
	out.Set("Content-Type", "application/json")
	out.Set("Accept", "application/json")
	return out, nil
}

func (p *bedrock) TransformRequestBody(req *Request) ([]byte, error) {
	return converseFromOpenAI(req.Body)
}

// Sign resolves credentials from the original client headers stashed on the
// outbound request context and signs with SigV4.
func (p *bedrock) Sign(ctx context.Context, req *http.Request, body []byte) error {
	clientHeaders := ClientHeaders(ctx)

	creds, err := p.signer.Resolve(ctx, clientHeaders)
	if err != nil {
		if errors.Is(err, sigv4.ErrNoCredentials) {
			return fmt.Errorf("%w: %s", ErrInvalidCredentials, "no AWS credentials")
		}
		return err
	}

	return p.signer.Sign(ctx, req, body, creds, p.signer.Region(clientHeaders))
}

func (p *bedrock) ResponseFraming(contentType string, streaming bool) Framing {
	if strings.HasPrefix(contentType, EventStreamContentType) {
		return FramingEventStream
	}
	if streaming {
		return FramingEventStream
	}
	return FramingJSON
}

func (p *bedrock) TransformResponseBody(body []byte, st *StreamState) ([]byte, error) {
	return completionFromConverse(body, st)
}

// TransformResponseChunk translates one Converse stream frame. Text deltas
// and the stop frame become client chunks; the metadata frame produces no
// client output but is kept in the chunk log for usage extraction. Frames
// that only mark block boundaries are dropped entirely.
func (p *bedrock) TransformResponseChunk(frame *DecodedFrame, st *StreamState) ([]byte, bool) {
	switch frame.EventType {
	case "contentBlockDelta":
		text := gjson.GetBytes(frame.Payload, "delta.text").String()
		return chunkFromDelta(text, st), true
	case "messageStop":
		reason := gjson.GetBytes(frame.Payload, "stopReason").String()
		return finishChunk(reason, st), true
	case "metadata":
		return nil, true
	default:
		// messageStart, contentBlockStart, contentBlockStop, ping.
		return nil, false
	}
}

// ExtractUsage reads Converse token counts, falling back to the OpenAI
// shape for bodies already translated.
func (p *bedrock) ExtractUsage(body []byte) Usage {
	if u := usageAt(body, "usage.inputTokens", "usage.outputTokens", "usage.totalTokens"); !u.Empty() {
		return u
	}
	return p.base.ExtractUsage(body)
}

func (p *bedrock) ExtractProviderRequestID(h http.Header, body []byte) string {
	if id := h.Get("x-amzn-requestid"); id != "" {
		return id
	}
	return p.base.ExtractProviderRequestID(h, body)
}

type clientHeadersKey struct{}

// WithClientHeaders stashes the original client headers on a context so
// Sign can reach per-request credentials after the outbound request is
// fully built.
func WithClientHeaders(ctx context.Context, h http.Header) context.Context {
	return context.WithValue(ctx, clientHeadersKey{}, h)
}

// ClientHeaders returns the stashed client headers, or an empty set.
func ClientHeaders(ctx context.Context) http.Header {
	if h, ok := ctx.Value(clientHeadersKey{}).(http.Header); ok {
		return h
	}
	return http.Header{}
}
