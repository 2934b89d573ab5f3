package providers

import "net/http"

// HeaderAltAPIKey is the alternate client credential header. When present it
// wins over Authorization and is forwarded as a Bearer token.
const HeaderAltAPIKey = "x-magicapi-api-key"

type openAI struct {
	base
}

func newOpenAI() *openAI {
	return &openAI{base{name: OpenAI, baseURL: "https://api.openai.com"}}
}

// ProcessHeaders accepts either the alternate x-magicapi-api-key header or a
// standard Bearer token.
func (p *openAI) ProcessHeaders(h http.Header) (http.Header, error) {
	if key := h.Get(HeaderAltAPIKey); key != "" {
		out := make(http.Header)
		out.Set("Authorization", "Bearer "+key)
		out.Set("Content-Type", "application/json")
		return out, nil
	}
	return p.base.ProcessHeaders(h)
}
