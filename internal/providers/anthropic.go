package providers

import (
	"net/http"
	"strings"

	"github.com/samber/mo"
)

// AnthropicVersion is the pinned Anthropic API version header value.
const AnthropicVersion = "2023-06-01"

type anthropic struct {
	base
}

func newAnthropic() *anthropic {
	return &anthropic{base{name: Anthropic, baseURL: "https://api.anthropic.com"}}
}

// TransformPath maps the OpenAI chat completions path onto the Messages API.
// Paths already pointing at /v1/messages pass through untouched.
func (p *anthropic) TransformPath(req *Request) (string, error) {
	if strings.Contains(req.Path, "/chat/completions") {
		return "/v1/messages", nil
	}
	return req.Path, nil
}

// ProcessHeaders converts the Bearer token to the x-api-key scheme and pins
// the API version.
func (p *anthropic) ProcessHeaders(h http.Header) (http.Header, error) {
	token, err := bearerToken(h)
	if err != nil {
		return nil, err
	}

	out := make(http.Header)
	out.Set("x-api-key", token)
	out.Set("anthropic-version", AnthropicVersion)
	out.Set("Content-Type", "application/json")
	return out, nil
}

// ExtractUsage reads the Messages API usage object. Anthropic reports no
// total, so one is synthesized when both sides are present.
func (p *anthropic) ExtractUsage(body []byte) Usage {
	u := usageAt(body, "usage.input_tokens", "usage.output_tokens", "usage.total_tokens")
	if u.Total.IsAbsent() {
		if in, ok := u.Input.Get(); ok {
			if out, ok := u.Output.Get(); ok {
				u.Total = mo.Some(in + out)
			}
		}
	}
	return u
}

func (p *anthropic) ExtractProviderRequestID(h http.Header, body []byte) string {
	if id := h.Get("request-id"); id != "" {
		return id
	}
	return p.base.ExtractProviderRequestID(h, body)
}
