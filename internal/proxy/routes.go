package proxy

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/magicapi/ai-gateway/internal/version"
)

// NewRouter assembles the route table: the health probe and the /v1/
// dispatch surface wrapped in the middleware chain.
func NewRouter(handler http.Handler, logger zerolog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", handleHealth)
	mux.Handle("/v1/", Chain(handler,
		RequestIDMiddleware(logger),
		CORSMiddleware(),
		LoggingMiddleware(),
	))

	return mux
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{
		"status":  "ok",
		"version": version.Version,
	})
}
