package providers

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Translation between the OpenAI chat completions dialect and the Bedrock
// Converse API. Requests hoist system messages and map sampling parameters
// into inferenceConfig; responses and stream frames are reshaped into
// chat.completion objects and chunks.

// converseRequest is the subset of the Converse API the gateway emits.
type converseRequest struct {
	Messages        []converseMessage `json:"messages"`
	System          []converseText    `json:"system,omitempty"`
	InferenceConfig *inferenceConfig  `json:"inferenceConfig,omitempty"`
}

type converseMessage struct {
	Role    string         `json:"role"`
	Content []converseText `json:"content"`
}

type converseText struct {
	Text string `json:"text"`
}

type inferenceConfig struct {
	MaxTokens     *int64   `json:"maxTokens,omitempty"`
	Temperature   *float64 `json:"temperature,omitempty"`
	TopP          *float64 `json:"topP,omitempty"`
	TopK          *int64   `json:"topK,omitempty"`
	StopSequences []string `json:"stopSequences,omitempty"`
}

// converseFromOpenAI rewrites an OpenAI chat body into a Converse body.
// Bodies that already carry an inferenceConfig are treated as native
// Converse and pass through, which keeps the rewrite idempotent; the
// model and stream fields still come off since Bedrock carries the model
// in the URL and selects streaming by endpoint.
func converseFromOpenAI(body []byte) ([]byte, error) {
	root := gjson.ParseBytes(body)
	if root.Get("inferenceConfig").Exists() {
		return stripRoutingFields(body)
	}

	msgs := root.Get("messages")
	if !msgs.IsArray() {
		return nil, fmt.Errorf("%w: messages must be an array", ErrInvalidBody)
	}

	out := converseRequest{}
	for _, m := range msgs.Array() {
		role := m.Get("role").String()
		text := m.Get("content").String()
		if role == "system" {
			out.System = append(out.System, converseText{Text: text})
			continue
		}
		if role == "" {
			role = "user"
		}
		out.Messages = append(out.Messages, converseMessage{
			Role:    role,
			Content: []converseText{{Text: text}},
		})
	}

	cfg := &inferenceConfig{}
	if v := root.Get("max_tokens"); v.Exists() {
		n := v.Int()
		cfg.MaxTokens = &n
	}
	if v := root.Get("temperature"); v.Exists() {
		f := v.Float()
		cfg.Temperature = &f
	}
	if v := root.Get("top_p"); v.Exists() {
		f := v.Float()
		cfg.TopP = &f
	}
	if v := root.Get("top_k"); v.Exists() {
		n := v.Int()
		cfg.TopK = &n
	}
	if v := root.Get("stop"); v.Exists() {
		if v.IsArray() {
			for _, s := range v.Array() {
				cfg.StopSequences = append(cfg.StopSequences, s.String())
			}
		} else {
			cfg.StopSequences = []string{v.String()}
		}
	}
	if cfg.MaxTokens != nil || cfg.Temperature != nil || cfg.TopP != nil || cfg.TopK != nil || len(cfg.StopSequences) > 0 {
		out.InferenceConfig = cfg
	}

	return json.Marshal(out)
}

// stripRoutingFields removes the fields the gateway routes on from a
// native Converse body.
func stripRoutingFields(body []byte) ([]byte, error) {
	out, err := sjson.DeleteBytes(body, "model")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBody, err)
	}
	out, err = sjson.DeleteBytes(out, "stream")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBody, err)
	}
	return out, nil
}

// completionFromConverse reshapes a buffered Converse response into an
// OpenAI chat.completion object.
func completionFromConverse(body []byte, st *StreamState) ([]byte, error) {
	root := gjson.ParseBytes(body)

	var content string
	for _, block := range root.Get("output.message.content").Array() {
		content += block.Get("text").String()
	}

	out := map[string]any{
		"id":                 st.ChunkID,
		"object":             "chat.completion",
		"created":            st.Created,
		"model":              st.Model,
		"system_fingerprint": st.Fingerprint,
		"choices": []map[string]any{{
			"index": 0,
			"message": map[string]any{
				"role":    "assistant",
				"content": content,
			},
			"finish_reason": mapStopReason(root.Get("stopReason").String()),
		}},
	}
	if usage := root.Get("usage"); usage.Exists() {
		out["usage"] = map[string]any{
			"prompt_tokens":     usage.Get("inputTokens").Int(),
			"completion_tokens": usage.Get("outputTokens").Int(),
			"total_tokens":      usage.Get("totalTokens").Int(),
		}
	}

	return json.Marshal(out)
}

// chunkFromDelta builds a chat.completion.chunk for one text delta. The
// first chunk of a stream carries the assistant role.
func chunkFromDelta(text string, st *StreamState) []byte {
	delta := map[string]any{"content": text}
	if st.takeFirst() {
		delta["role"] = "assistant"
	}
	return marshalChunk(st, delta, nil)
}

// finishChunk builds the terminal chunk carrying the finish reason.
func finishChunk(stopReason string, st *StreamState) []byte {
	reason := mapStopReason(stopReason)
	return marshalChunk(st, map[string]any{}, &reason)
}

func marshalChunk(st *StreamState, delta map[string]any, finish *string) []byte {
	chunk := map[string]any{
		"id":                 st.ChunkID,
		"object":             "chat.completion.chunk",
		"created":            st.Created,
		"model":              st.Model,
		"system_fingerprint": st.Fingerprint,
		"choices": []map[string]any{{
			"index":         0,
			"delta":         delta,
			"finish_reason": finish,
		}},
	}
	// Maps of strings and numbers cannot fail to marshal.
	out, _ := json.Marshal(chunk)
	return out
}

// mapStopReason translates Converse stop reasons to OpenAI finish reasons.
func mapStopReason(reason string) string {
	switch reason {
	case "max_tokens":
		return "length"
	case "content_filtered":
		return "content_filter"
	case "tool_use":
		return "tool_calls"
	default:
		// end_turn, stop_sequence, and anything unknown.
		return "stop"
	}
}
