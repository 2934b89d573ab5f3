package providers

import "net/http"

type groq struct {
	base
}

func newGROQ() *groq {
	return &groq{base{name: GROQ, baseURL: "https://api.groq.com/openai"}}
}

// ExtractUsage prefers the x_groq envelope GROQ attaches to streaming
// chunks, falling back to the standard usage object.
func (p *groq) ExtractUsage(body []byte) Usage {
	if u := usageAt(body, "x_groq.usage.prompt_tokens", "x_groq.usage.completion_tokens", "x_groq.usage.total_tokens"); !u.Empty() {
		return u
	}
	return p.base.ExtractUsage(body)
}

func (p *groq) ExtractProviderRequestID(h http.Header, body []byte) string {
	if id := p.base.ExtractProviderRequestID(h, body); id != "" {
		return id
	}
	return extractString(body, "x_groq.id")
}
