// Package telemetry collects per-request metrics and exports them
// asynchronously. The data path never blocks on telemetry: records travel
// through a bounded queue and are dropped, counted, when the queue is full.
package telemetry

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/samber/mo"

	"github.com/magicapi/ai-gateway/internal/version"
)

// Tracking headers attached by callers for attribution.
const (
	HeaderProjectID      = "x-project-id"
	HeaderOrganisationID = "x-organisation-id"
	// HeaderOrganizationID is the accepted alternate spelling.
	HeaderOrganizationID = "x-organization-id"
	HeaderUserID         = "x-user-id"
	HeaderExperimentID   = "x-experiment-id"
)

// Outcome values for Record.Status.
const (
	StatusSuccess = "success"
	StatusError   = "error"
	StatusAborted = "aborted"
)

// recordName is the name field of every exported document.
const recordName = "ai_gateway_request_log"

// serviceName identifies the gateway in the exported resource block.
const serviceName = "ai-gateway"

// deploymentEnvironment is stamped on every exported document. Set once at
// startup, before the collector starts.
var deploymentEnvironment = "production"

// SetDeploymentEnvironment overrides the resource environment tag.
func SetDeploymentEnvironment(env string) {
	if env != "" {
		deploymentEnvironment = env
	}
}

// Record is one request log document. Fields are flat for in-process use;
// MarshalJSON renders the exported resource/attributes/metadata layout.
type Record struct {
	RequestID string
	ThreadID  string
	Timestamp time.Time
	Status    string

	Method   string
	Path     string
	Provider string
	Model    string

	StatusCode         int
	ProviderStatusCode int
	DurationMS         int64
	ProviderLatencyMS  int64

	RequestBytes  int64
	ResponseBytes int64

	Streaming bool
	Framing   string

	InputTokens  *int64
	OutputTokens *int64
	TotalTokens  *int64
	// Cost is reserved; no price table ships with the gateway.
	Cost *float64

	RequestBody     json.RawMessage
	ResponseBody    json.RawMessage
	StreamedData    []json.RawMessage
	TruncatedStream bool

	ErrorType   string
	ErrorDetail string

	ProjectID         string
	OrganisationID    string
	UserID            string
	ExperimentID      string
	ProviderRequestID string
}

type wireResource struct {
	ServiceName           string `json:"service.name"`
	ServiceVersion        string `json:"service.version"`
	DeploymentEnvironment string `json:"deployment.environment"`
}

type wireTokens struct {
	Input  *int64 `json:"input,omitempty"`
	Output *int64 `json:"output,omitempty"`
	Total  *int64 `json:"total,omitempty"`
}

type wireMetadata struct {
	Latency            int64      `json:"latency"`
	ProviderLatency    int64      `json:"provider_latency"`
	Tokens             wireTokens `json:"tokens"`
	Cost               *float64   `json:"cost,omitempty"`
	Status             string     `json:"status"`
	Path               string     `json:"path"`
	Method             string     `json:"method"`
	RequestSize        int64      `json:"request_size"`
	ResponseSize       int64      `json:"response_size"`
	StatusCode         int        `json:"status_code"`
	ProviderStatusCode int        `json:"provider_status_code,omitempty"`
	ErrorCount         int        `json:"error_count"`
	ErrorType          string     `json:"error_type,omitempty"`
	ErrorDetail        string     `json:"error_detail,omitempty"`
	ProviderErrorCount int        `json:"provider_error_count"`
	ProviderErrorType  string     `json:"provider_error_type,omitempty"`
	ProviderRequestID  string     `json:"provider_request_id,omitempty"`
	Streaming          bool       `json:"streaming"`
	Framing            string     `json:"framing,omitempty"`
	Truncated          bool       `json:"truncated"`
}

type wireResponse struct {
	Body         json.RawMessage   `json:"body,omitempty"`
	StreamedData []json.RawMessage `json:"streamed_data,omitempty"`
}

type wireAttributes struct {
	ID           string          `json:"id"`
	ThreadID     string          `json:"thread_id,omitempty"`
	OrgID        string          `json:"org_id,omitempty"`
	UserID       string          `json:"user_id,omitempty"`
	ProjectID    string          `json:"project_id,omitempty"`
	ExperimentID string          `json:"experiment_id,omitempty"`
	Provider     string          `json:"provider"`
	Model        string          `json:"model,omitempty"`
	Request      json.RawMessage `json:"request,omitempty"`
	Response     wireResponse    `json:"response"`
	Metadata     wireMetadata    `json:"metadata"`
}

type wireRecord struct {
	Timestamp  time.Time      `json:"timestamp"`
	Resource   wireResource   `json:"resource"`
	Name       string         `json:"name"`
	Attributes wireAttributes `json:"attributes"`
}

// MarshalJSON renders the exported document layout.
func (r *Record) MarshalJSON() ([]byte, error) {
	errorCount := 0
	if r.ErrorType != "" {
		errorCount = 1
	}
	providerErrorCount := 0
	providerErrorType := ""
	if r.ProviderStatusCode >= http.StatusBadRequest {
		providerErrorCount = 1
		providerErrorType = r.ErrorType
	}

	return json.Marshal(wireRecord{
		Timestamp: r.Timestamp,
		Resource: wireResource{
			ServiceName:           serviceName,
			ServiceVersion:        version.Version,
			DeploymentEnvironment: deploymentEnvironment,
		},
		Name: recordName,
		Attributes: wireAttributes{
			ID:           r.RequestID,
			ThreadID:     r.ThreadID,
			OrgID:        r.OrganisationID,
			UserID:       r.UserID,
			ProjectID:    r.ProjectID,
			ExperimentID: r.ExperimentID,
			Provider:     r.Provider,
			Model:        r.Model,
			Request:      r.RequestBody,
			Response: wireResponse{
				Body:         r.ResponseBody,
				StreamedData: r.StreamedData,
			},
			Metadata: wireMetadata{
				Latency:         r.DurationMS,
				ProviderLatency: r.ProviderLatencyMS,
				Tokens: wireTokens{
					Input:  r.InputTokens,
					Output: r.OutputTokens,
					Total:  r.TotalTokens,
				},
				Cost:               r.Cost,
				Status:             r.Status,
				Path:               r.Path,
				Method:             r.Method,
				RequestSize:        r.RequestBytes,
				ResponseSize:       r.ResponseBytes,
				StatusCode:         r.StatusCode,
				ProviderStatusCode: r.ProviderStatusCode,
				ErrorCount:         errorCount,
				ErrorType:          r.ErrorType,
				ErrorDetail:        r.ErrorDetail,
				ProviderErrorCount: providerErrorCount,
				ProviderErrorType:  providerErrorType,
				ProviderRequestID:  r.ProviderRequestID,
				Streaming:          r.Streaming,
				Framing:            r.Framing,
				Truncated:          r.TruncatedStream,
			},
		},
	})
}

// Tracking holds the caller attribution fields.
type Tracking struct {
	ProjectID      string
	OrganisationID string
	UserID         string
	ExperimentID   string
}

// TrackingFromHeaders extracts attribution headers. Both spellings of the
// organisation header are accepted; the British one wins when both appear.
func TrackingFromHeaders(h http.Header) Tracking {
	org := h.Get(HeaderOrganisationID)
	if org == "" {
		org = h.Get(HeaderOrganizationID)
	}
	return Tracking{
		ProjectID:      h.Get(HeaderProjectID),
		OrganisationID: org,
		UserID:         h.Get(HeaderUserID),
		ExperimentID:   h.Get(HeaderExperimentID),
	}
}

func tokenPtr(opt mo.Option[int64]) *int64 {
	if v, ok := opt.Get(); ok {
		return &v
	}
	return nil
}
