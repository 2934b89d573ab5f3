package proxy_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/samber/ro"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magicapi/ai-gateway/internal/proxy"
)

func collectSSE(t *testing.T, body string) []proxy.SSEEvent {
	t.Helper()
	events, err := ro.Collect(proxy.StreamSSE(strings.NewReader(body)))
	require.NoError(t, err)
	return events
}

func TestStreamSSEBasic(t *testing.T) {
	t.Parallel()

	events := collectSSE(t, "data: one\n\nevent: delta\ndata: two\n\n")
	require.Len(t, events, 2)
	assert.Equal(t, "one", string(events[0].Data))
	assert.Equal(t, "delta", events[1].Event)
	assert.Equal(t, "two", string(events[1].Data))
}

func TestStreamSSEMultilineData(t *testing.T) {
	t.Parallel()

	events := collectSSE(t, "data: line1\ndata: line2\n\n")
	require.Len(t, events, 1)
	assert.Equal(t, "line1\nline2", string(events[0].Data))
}

func TestStreamSSEIgnoresComments(t *testing.T) {
	t.Parallel()

	events := collectSSE(t, ": keepalive\ndata: x\n\n")
	require.Len(t, events, 1)
	assert.Equal(t, "x", string(events[0].Data))
}

func TestStreamSSECRLF(t *testing.T) {
	t.Parallel()

	events := collectSSE(t, "data: x\r\n\r\n")
	require.Len(t, events, 1)
	assert.Equal(t, "x", string(events[0].Data))
}

func TestStreamSSEPendingEventAtEOF(t *testing.T) {
	t.Parallel()

	events := collectSSE(t, "data: tail")
	require.Len(t, events, 1)
	assert.Equal(t, "tail", string(events[0].Data))
}

func TestSSEEventRoundTrip(t *testing.T) {
	t.Parallel()

	event := proxy.SSEEvent{Event: "delta", ID: "7", Data: []byte("a\nb"), Retry: 100}
	wire := event.String()
	assert.Contains(t, wire, "event: delta\n")
	assert.Contains(t, wire, "id: 7\n")
	assert.Contains(t, wire, "retry: 100\n")
	assert.Contains(t, wire, "data: a\ndata: b\n")
	assert.True(t, strings.HasSuffix(wire, "\n\n"))
}

// Reassembling parsed events must reproduce the original stream for
// single-line data payloads.
func TestSSEReassemblyProperty(t *testing.T) {
	t.Parallel()

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	payload := gen.RegexMatch(`[a-zA-Z0-9{}",:]{1,40}`)

	properties.Property("parse then re-encode is identity", prop.ForAll(
		func(payloads []string) bool {
			var wire bytes.Buffer
			for _, p := range payloads {
				wire.WriteString("data: " + p + "\n\n")
			}

			events, err := ro.Collect(proxy.StreamSSE(bytes.NewReader(wire.Bytes())))
			if err != nil || len(events) != len(payloads) {
				return false
			}

			var rebuilt bytes.Buffer
			for _, e := range events {
				rebuilt.Write(e.Bytes())
			}
			return rebuilt.String() == wire.String()
		},
		gen.SliceOf(payload),
	))

	properties.TestingRun(t)
}
