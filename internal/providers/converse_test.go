package providers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func TestConverseFromOpenAI(t *testing.T) {
	t.Parallel()

	body := []byte(`{
		"model": "anthropic.claude-3-sonnet",
		"messages": [
			{"role": "system", "content": "Be brief."},
			{"role": "user", "content": "Hello"},
			{"role": "assistant", "content": "Hi"}
		],
		"max_tokens": 100,
		"temperature": 0.5,
		"top_p": 0.9,
		"top_k": 40,
		"stream": true
	}`)

	out, err := converseFromOpenAI(body)
	require.NoError(t, err)

	root := gjson.ParseBytes(out)
	assert.Equal(t, "Be brief.", root.Get("system.0.text").String())
	assert.Equal(t, int64(2), root.Get("messages.#").Int())
	assert.Equal(t, "user", root.Get("messages.0.role").String())
	assert.Equal(t, "Hello", root.Get("messages.0.content.0.text").String())
	assert.Equal(t, int64(100), root.Get("inferenceConfig.maxTokens").Int())
	assert.Equal(t, 0.5, root.Get("inferenceConfig.temperature").Float())
	assert.Equal(t, 0.9, root.Get("inferenceConfig.topP").Float())
	assert.Equal(t, int64(40), root.Get("inferenceConfig.topK").Int())

	// Fields of the source dialect must not leak through.
	assert.False(t, root.Get("model").Exists())
	assert.False(t, root.Get("stream").Exists())
	assert.False(t, root.Get("max_tokens").Exists())
}

func TestConverseFromOpenAIStopSequences(t *testing.T) {
	t.Parallel()

	out, err := converseFromOpenAI([]byte(`{"messages":[{"role":"user","content":"x"}],"stop":"END"}`))
	require.NoError(t, err)
	assert.Equal(t, "END", gjson.GetBytes(out, "inferenceConfig.stopSequences.0").String())

	out, err = converseFromOpenAI([]byte(`{"messages":[{"role":"user","content":"x"}],"stop":["a","b"]}`))
	require.NoError(t, err)
	assert.Equal(t, int64(2), gjson.GetBytes(out, "inferenceConfig.stopSequences.#").Int())
}

func TestConverseFromOpenAINativePassthrough(t *testing.T) {
	t.Parallel()

	native := []byte(`{"messages":[],"inferenceConfig":{"maxTokens":10}}`)
	out, err := converseFromOpenAI(native)
	require.NoError(t, err)
	assert.Equal(t, native, out)

	// Routing fields come off even on the passthrough path.
	routed := []byte(`{"model":"claude-3","stream":true,"messages":[],"inferenceConfig":{"maxTokens":10}}`)
	out, err = converseFromOpenAI(routed)
	require.NoError(t, err)
	assert.False(t, gjson.GetBytes(out, "model").Exists())
	assert.False(t, gjson.GetBytes(out, "stream").Exists())
	assert.Equal(t, int64(10), gjson.GetBytes(out, "inferenceConfig.maxTokens").Int())
}

func TestConverseFromOpenAIInvalid(t *testing.T) {
	t.Parallel()

	_, err := converseFromOpenAI([]byte(`{"messages":"nope"}`))
	assert.ErrorIs(t, err, ErrInvalidBody)
}

func TestCompletionFromConverse(t *testing.T) {
	t.Parallel()

	st := NewStreamState("anthropic.claude-3-sonnet")
	body := []byte(`{
		"output": {"message": {"role": "assistant", "content": [{"text": "Hello "}, {"text": "world"}]}},
		"stopReason": "end_turn",
		"usage": {"inputTokens": 12, "outputTokens": 34, "totalTokens": 46}
	}`)

	out, err := completionFromConverse(body, st)
	require.NoError(t, err)

	root := gjson.ParseBytes(out)
	assert.Equal(t, "chat.completion", root.Get("object").String())
	assert.Equal(t, st.Model, root.Get("model").String())
	assert.Equal(t, "Hello world", root.Get("choices.0.message.content").String())
	assert.Equal(t, "assistant", root.Get("choices.0.message.role").String())
	assert.Equal(t, "stop", root.Get("choices.0.finish_reason").String())
	assert.Equal(t, int64(12), root.Get("usage.prompt_tokens").Int())
	assert.Equal(t, int64(46), root.Get("usage.total_tokens").Int())
	assert.Regexp(t, `^fp_[0-9a-f]{8}$`, root.Get("system_fingerprint").String())
}

func TestChunkRoleOnFirstOnly(t *testing.T) {
	t.Parallel()

	st := NewStreamState("m")

	first := gjson.ParseBytes(chunkFromDelta("a", st))
	assert.Equal(t, "assistant", first.Get("choices.0.delta.role").String())
	assert.Equal(t, "a", first.Get("choices.0.delta.content").String())
	assert.Equal(t, "chat.completion.chunk", first.Get("object").String())

	second := gjson.ParseBytes(chunkFromDelta("b", st))
	assert.False(t, second.Get("choices.0.delta.role").Exists())
	assert.Equal(t, first.Get("id").String(), second.Get("id").String())
}

func TestFinishChunk(t *testing.T) {
	t.Parallel()

	st := NewStreamState("m")
	out := gjson.ParseBytes(finishChunk("max_tokens", st))
	assert.Equal(t, "length", out.Get("choices.0.finish_reason").String())
}

func TestMapStopReason(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"end_turn":         "stop",
		"stop_sequence":    "stop",
		"max_tokens":       "length",
		"content_filtered": "content_filter",
		"tool_use":         "tool_calls",
		"":                 "stop",
		"guardrails":       "stop",
	}
	for in, want := range cases {
		assert.Equal(t, want, mapStopReason(in), in)
	}
}
