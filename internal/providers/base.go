package providers

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/samber/mo"
	"github.com/tidwall/gjson"
)

// base implements the behavior shared by every OpenAI-dialect provider:
// Bearer passthrough, identity transforms, SSE-or-JSON framing, and
// OpenAI-format usage extraction. Provider files embed it and override
// what differs.
type base struct {
	name    ID
	baseURL string
}

func (b *base) Name() ID { return b.name }

func (b *base) BaseURL(http.Header) string { return b.baseURL }

func (b *base) overrideBaseURL(u string) { b.baseURL = u }

func (b *base) TransformPath(req *Request) (string, error) {
	return req.Path, nil
}

// ProcessHeaders forwards the client's Bearer token and sets the JSON
// content type. Everything else the client sent stays behind.
func (b *base) ProcessHeaders(h http.Header) (http.Header, error) {
	token, err := bearerToken(h)
	if err != nil {
		return nil, err
	}

	out := make(http.Header)
	out.Set("Authorization", "Bearer "+token)
	out.Set("Content-Type", "application/json")
	return out, nil
}

func (b *base) TransformRequestBody(req *Request) ([]byte, error) {
	return req.Body, nil
}

func (b *base) Sign(context.Context, *http.Request, []byte) error {
	return nil
}

func (b *base) ResponseFraming(contentType string, streaming bool) Framing {
	if strings.HasPrefix(contentType, "text/event-stream") {
		return FramingSSE
	}
	if streaming && contentType == "" {
		return FramingSSE
	}
	return FramingJSON
}

func (b *base) TransformResponseBody(body []byte, _ *StreamState) ([]byte, error) {
	return body, nil
}

func (b *base) TransformResponseChunk(*DecodedFrame, *StreamState) ([]byte, bool) {
	return nil, false
}

func (b *base) ExtractModel(reqBody, respBody []byte) string {
	if model := gjson.GetBytes(reqBody, "model"); model.Exists() {
		return model.String()
	}
	return gjson.GetBytes(respBody, "model").String()
}

// ExtractUsage reads the OpenAI usage object. Absent fields stay absent so
// telemetry can distinguish "zero tokens" from "no usage reported".
func (b *base) ExtractUsage(body []byte) Usage {
	return usageAt(body, "usage.prompt_tokens", "usage.completion_tokens", "usage.total_tokens")
}

func (b *base) ExtractProviderRequestID(h http.Header, body []byte) string {
	if id := h.Get("x-request-id"); id != "" {
		return id
	}
	return gjson.GetBytes(body, "id").String()
}

// bearerToken extracts the token from an Authorization: Bearer header.
func bearerToken(h http.Header) (string, error) {
	auth := h.Get("Authorization")
	token, ok := strings.CutPrefix(auth, "Bearer ")
	if !ok || token == "" {
		return "", fmt.Errorf("%w: missing Bearer token", ErrInvalidCredentials)
	}
	return token, nil
}

func extractString(body []byte, path string) string {
	return gjson.GetBytes(body, path).String()
}

// usageAt builds a Usage from three gjson paths, keeping absence.
func usageAt(body []byte, inputPath, outputPath, totalPath string) Usage {
	var u Usage
	if v := gjson.GetBytes(body, inputPath); v.Exists() {
		u.Input = mo.Some(v.Int())
	}
	if v := gjson.GetBytes(body, outputPath); v.Exists() {
		u.Output = mo.Some(v.Int())
	}
	if v := gjson.GetBytes(body, totalPath); v.Exists() {
		u.Total = mo.Some(v.Int())
	}
	return u
}
