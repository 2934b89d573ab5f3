package telemetry_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/samber/mo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/magicapi/ai-gateway/internal/telemetry"
)

// captureExporter records everything it receives.
type captureExporter struct {
	mu      sync.Mutex
	records []*telemetry.Record
	fail    error
	calls   int
}

func (e *captureExporter) Name() string { return "capture" }

func (e *captureExporter) Export(_ context.Context, rec *telemetry.Record) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	if e.fail != nil {
		return e.fail
	}
	e.records = append(e.records, rec)
	return nil
}

func (e *captureExporter) count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.records)
}

func TestCollectorDeliversAll(t *testing.T) {
	t.Parallel()

	sink := &captureExporter{}
	c := telemetry.NewCollector(16, 2, zerolog.Nop(), sink)
	c.Start()

	for i := 0; i < 10; i++ {
		require.True(t, c.Submit(&telemetry.Record{RequestID: "r"}))
	}

	require.NoError(t, c.Shutdown(context.Background()))
	assert.Equal(t, 10, sink.count())
	assert.Zero(t, c.Dropped())
}

func TestCollectorDropsOnOverflow(t *testing.T) {
	t.Parallel()

	// No workers started: the queue fills and stays full.
	c := telemetry.NewCollector(2, 1, zerolog.Nop(), &captureExporter{})

	assert.True(t, c.Submit(&telemetry.Record{}))
	assert.True(t, c.Submit(&telemetry.Record{}))
	assert.False(t, c.Submit(&telemetry.Record{}))
	assert.Equal(t, int64(1), c.Dropped())
}

func TestCollectorRejectsAfterShutdown(t *testing.T) {
	t.Parallel()

	c := telemetry.NewCollector(4, 1, zerolog.Nop(), &captureExporter{})
	c.Start()
	require.NoError(t, c.Shutdown(context.Background()))

	assert.False(t, c.Submit(&telemetry.Record{}))
	require.NoError(t, c.Shutdown(context.Background()))
}

func TestCollectorSinkIsolation(t *testing.T) {
	t.Parallel()

	failing := &captureExporter{fail: errors.New("sink down")}
	healthy := &captureExporter{}
	c := telemetry.NewCollector(4, 1, zerolog.Nop(), failing, healthy)
	c.Start()

	require.True(t, c.Submit(&telemetry.Record{RequestID: "r1"}))
	require.NoError(t, c.Shutdown(context.Background()))

	assert.Equal(t, 1, healthy.count())
}

func TestResilienceRetries(t *testing.T) {
	t.Parallel()

	sink := &captureExporter{fail: errors.New("boom")}
	wrapped := telemetry.WithResilience(sink, time.Second, zerolog.Nop())

	err := wrapped.Export(context.Background(), &telemetry.Record{})
	require.Error(t, err)
	assert.Equal(t, 3, sink.calls)
}

func TestResilienceBreakerOpens(t *testing.T) {
	t.Parallel()

	sink := &captureExporter{fail: errors.New("boom")}
	wrapped := telemetry.WithResilience(sink, time.Second, zerolog.Nop())

	for i := 0; i < 5; i++ {
		_ = wrapped.Export(context.Background(), &telemetry.Record{})
	}
	callsWhenOpen := sink.calls

	// With the breaker open the sink is no longer invoked.
	_ = wrapped.Export(context.Background(), &telemetry.Record{})
	assert.Equal(t, callsWhenOpen, sink.calls)
}

func TestRequestMetricsTruncation(t *testing.T) {
	t.Parallel()

	m := telemetry.NewRequestMetrics("req-1", 2)
	m.AddChunk([]byte(`{"n":1}`))
	m.AddChunk([]byte(`{"n":2}`))
	m.AddChunk([]byte(`{"n":3}`))

	assert.Equal(t, 2, m.Chunks())
	assert.True(t, m.Truncated())

	rec := m.Finish()
	assert.Len(t, rec.StreamedData, 2)
	assert.True(t, rec.TruncatedStream)
}

func TestRequestMetricsChunkCopy(t *testing.T) {
	t.Parallel()

	m := telemetry.NewRequestMetrics("req-1", 0)
	buf := []byte(`{"n":1}`)
	m.AddChunk(buf)
	buf[2] = 'x'

	rec := m.Finish()
	assert.JSONEq(t, `{"n":1}`, string(rec.StreamedData[0]))
}

func TestFinishRecord(t *testing.T) {
	t.Parallel()

	m := telemetry.NewRequestMetrics("req-1", 0)
	m.Method = http.MethodPost
	m.Path = "/v1/chat/completions"
	m.Provider = "openai"
	m.Model = "gpt-4o"
	m.StatusCode = 200
	m.Streaming = true
	m.Framing = "sse"
	m.Input = mo.Some[int64](10)
	m.Total = mo.Some[int64](15)

	rec := m.Finish()
	assert.Equal(t, int64(10), *rec.InputTokens)
	assert.Nil(t, rec.OutputTokens)
	assert.Nil(t, rec.Cost)
	assert.GreaterOrEqual(t, rec.DurationMS, int64(0))

	doc, err := json.Marshal(rec)
	require.NoError(t, err)

	root := gjson.ParseBytes(doc)
	assert.Equal(t, "ai_gateway_request_log", root.Get("name").String())
	assert.Equal(t, "ai-gateway", root.Get("resource.service\\.name").String())
	assert.Equal(t, "req-1", root.Get("attributes.id").String())
	assert.Equal(t, "openai", root.Get("attributes.provider").String())
	assert.Equal(t, int64(10), root.Get("attributes.metadata.tokens.input").Int())
	assert.False(t, root.Get("attributes.metadata.tokens.output").Exists())
	assert.False(t, root.Get("attributes.metadata.cost").Exists())
	assert.Equal(t, "success", root.Get("attributes.metadata.status").String())
	assert.True(t, root.Get("attributes.metadata.streaming").Bool())
}

func TestTrackingFromHeaders(t *testing.T) {
	t.Parallel()

	h := http.Header{}
	h.Set("x-project-id", "p1")
	h.Set("x-organization-id", "o-alt")
	h.Set("x-user-id", "u1")

	tr := telemetry.TrackingFromHeaders(h)
	assert.Equal(t, "p1", tr.ProjectID)
	assert.Equal(t, "o-alt", tr.OrganisationID)
	assert.Equal(t, "u1", tr.UserID)
	assert.Empty(t, tr.ExperimentID)

	h.Set("x-organisation-id", "o-main")
	assert.Equal(t, "o-main", telemetry.TrackingFromHeaders(h).OrganisationID)
}
