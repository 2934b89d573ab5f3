package proxy

import (
	"net/http"
	"time"
)

// NewHTTPClient builds the shared upstream client. No client-level timeout
// is set: non-streaming calls are bounded per request by context, streaming
// calls run until the stream ends.
func NewHTTPClient() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			MaxIdleConns:          128,
			MaxIdleConnsPerHost:   32,
			IdleConnTimeout:       30 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: time.Second,
			ForceAttemptHTTP2:     true,
		},
	}
}
