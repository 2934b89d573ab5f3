// Package proxy implements the HTTP dispatch layer and streaming engine of
// ai-gateway.
package proxy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"

	"github.com/magicapi/ai-gateway/internal/providers"
)

// ErrorType classifies a failed request. The values are stable strings that
// appear in error responses and telemetry records.
type ErrorType string

// Error classifications.
const (
	ErrTypeMissingProvider    ErrorType = "missing-provider"
	ErrTypeUnknownProvider    ErrorType = "unknown-provider"
	ErrTypeInvalidRequest     ErrorType = "invalid-request"
	ErrTypeInvalidCredentials ErrorType = "invalid-credentials"
	ErrTypeRequestTooLarge    ErrorType = "request-too-large"
	ErrTypeUpstreamTimeout    ErrorType = "upstream-timeout"
	ErrTypeUpstreamConnect    ErrorType = "upstream-connect"
	ErrTypeProviderError      ErrorType = "provider-error"
	ErrTypeProtocolError      ErrorType = "protocol-error"
	ErrTypeClientStalled      ErrorType = "client-stalled"
	ErrTypeClientDisconnect   ErrorType = "client-disconnect"
	ErrTypeInternal           ErrorType = "internal"
)

// GatewayError is a classified request failure with the status code to
// report to the client.
type GatewayError struct {
	Type   ErrorType
	Status int
	Detail string
	Err    error
}

func (e *GatewayError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Detail)
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

// NewGatewayError builds a classified error with no underlying cause.
func NewGatewayError(errType ErrorType, status int, detail string) *GatewayError {
	return &GatewayError{Type: errType, Status: status, Detail: detail}
}

// ClassifyRequestError maps a pre-flight error (before the upstream call)
// to a GatewayError.
func ClassifyRequestError(err error) *GatewayError {
	switch {
	case errors.Is(err, providers.ErrUnknownProvider):
		return &GatewayError{Type: ErrTypeUnknownProvider, Status: http.StatusBadRequest, Detail: err.Error(), Err: err}
	case errors.Is(err, providers.ErrInvalidCredentials):
		return &GatewayError{Type: ErrTypeInvalidCredentials, Status: http.StatusUnauthorized, Detail: err.Error(), Err: err}
	case errors.Is(err, providers.ErrInvalidBody):
		return &GatewayError{Type: ErrTypeInvalidRequest, Status: http.StatusBadRequest, Detail: err.Error(), Err: err}
	default:
		return &GatewayError{Type: ErrTypeInternal, Status: http.StatusInternalServerError, Detail: err.Error(), Err: err}
	}
}

// errUpstreamTooLarge marks a buffered upstream body that exceeded
// MaxResponseBytes.
var errUpstreamTooLarge = errors.New("upstream response exceeds buffer limit")

// ClassifyUpstreamError maps a failed upstream round trip to a
// GatewayError: timeouts are 504, connection failures 502, and a client
// that went away is not an upstream fault at all.
func ClassifyUpstreamError(err error) *GatewayError {
	switch {
	case errors.Is(err, context.Canceled):
		return &GatewayError{Type: ErrTypeClientDisconnect, Status: statusClientClosedRequest, Detail: "client closed request", Err: err}
	case errors.Is(err, context.DeadlineExceeded):
		return &GatewayError{Type: ErrTypeUpstreamTimeout, Status: http.StatusGatewayTimeout, Detail: "upstream request timed out", Err: err}
	case errors.Is(err, errUpstreamTooLarge):
		return &GatewayError{Type: ErrTypeProtocolError, Status: http.StatusBadGateway, Detail: "upstream response too large to buffer", Err: err}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &GatewayError{Type: ErrTypeUpstreamTimeout, Status: http.StatusGatewayTimeout, Detail: "upstream request timed out", Err: err}
	}

	return &GatewayError{Type: ErrTypeUpstreamConnect, Status: http.StatusBadGateway, Detail: "upstream connection failed", Err: err}
}

// classifyWriteError separates a stalled client from one that disconnected.
func classifyWriteError(err error) ErrorType {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return ErrTypeClientStalled
	}
	return ErrTypeClientDisconnect
}

// statusClientClosedRequest is the nginx convention for an aborted request.
const statusClientClosedRequest = 499

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// WriteError writes a JSON error response. Only valid before the response
// headers have been sent.
func WriteError(w http.ResponseWriter, gErr *GatewayError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(gErr.Status)

	body := errorBody{Error: errorDetail{
		Type:    string(gErr.Type),
		Message: gErr.Detail,
	}}
	_ = json.NewEncoder(w).Encode(body)
}
