package proxy

import (
	"context"
	"net/http"
	"time"

	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

// Server wraps http.Server with gateway defaults.
type Server struct {
	httpServer *http.Server
	addr       string
}

// NewServer creates a Server with timeouts sized for streaming: header
// reads are bounded, but there is no write timeout since streams can run
// for many minutes. Per-write stall deadlines protect the streaming path
// instead. HTTP/2 cleartext (h2c) is enabled for non-TLS clients.
func NewServer(addr string, handler http.Handler) *Server {
	h2s := &http2.Server{}

	return &Server{
		addr: addr,
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           h2c.NewHandler(handler, h2s),
			ReadHeaderTimeout: 10 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
	}
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.addr
}

// ListenAndServe starts the server (blocks).
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
