package providers

import (
	"net/http"
	"strings"
)

type fireworks struct {
	base
}

func newFireworks() *fireworks {
	return &fireworks{base{name: Fireworks, baseURL: "https://api.fireworks.ai/inference/v1"}}
}

// TransformPath strips the inbound /v1 prefix; the base URL already ends in
// the Fireworks inference /v1 segment.
func (p *fireworks) TransformPath(req *Request) (string, error) {
	return strings.TrimPrefix(req.Path, "/v1"), nil
}

func (p *fireworks) ProcessHeaders(h http.Header) (http.Header, error) {
	out, err := p.base.ProcessHeaders(h)
	if err != nil {
		return nil, err
	}
	out.Set("Accept", "application/json")
	return out, nil
}
