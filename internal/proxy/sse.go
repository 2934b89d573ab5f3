package proxy

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/samber/ro"
)

// SSEEvent represents a Server-Sent Event.
// Fields match the SSE specification: https://html.spec.whatwg.org/multipage/server-sent-events.html
type SSEEvent struct {
	Event string
	ID    string
	Data  []byte
	Retry int
}

// String returns the SSE wire format representation of the event.
func (e SSEEvent) String() string {
	var buf bytes.Buffer
	if e.Event != "" {
		fmt.Fprintf(&buf, "event: %s\n", e.Event)
	}
	if e.ID != "" {
		fmt.Fprintf(&buf, "id: %s\n", e.ID)
	}
	if e.Retry > 0 {
		fmt.Fprintf(&buf, "retry: %d\n", e.Retry)
	}
	if len(e.Data) > 0 {
		for _, line := range bytes.Split(e.Data, []byte("\n")) {
			fmt.Fprintf(&buf, "data: %s\n", line)
		}
	}
	buf.WriteString("\n")
	return buf.String()
}

// Bytes returns the SSE wire format representation as bytes.
func (e SSEEvent) Bytes() []byte {
	return []byte(e.String())
}

// ErrNotFlushable is returned when the ResponseWriter doesn't support flushing.
var ErrNotFlushable = errors.New("sse: ResponseWriter does not implement http.Flusher")

// SetSSEHeaders sets the response headers for an SSE stream.
func SetSSEHeaders(h http.Header) {
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache, no-transform")
	h.Set("X-Accel-Buffering", "no")
	h.Set("Connection", "keep-alive")
}

// StreamSSE creates an Observable from an SSE body. Events are parsed per
// the SSE specification and emitted as they arrive; the stream completes at
// EOF. The caller closes the underlying reader.
func StreamSSE(body io.Reader) ro.Observable[SSEEvent] {
	return ro.NewObservable(func(observer ro.Observer[SSEEvent]) ro.Teardown {
		parser := &sseParser{}
		parser.parseStream(bufio.NewReader(body), observer)
		return nil
	})
}

// sseParser holds per-event parsing state.
type sseParser struct {
	dataLines [][]byte
	event     SSEEvent
}

func (p *sseParser) parseStream(reader *bufio.Reader, observer ro.Observer[SSEEvent]) {
	for {
		line, err := reader.ReadBytes('\n')
		p.processLine(line, observer)

		if err != nil {
			p.finalize(observer, err)
			return
		}
	}
}

func (p *sseParser) processLine(line []byte, observer ro.Observer[SSEEvent]) {
	if len(line) == 0 {
		return
	}

	line = trimLineEndings(line)

	// Blank line terminates an event.
	if len(line) == 0 {
		p.emitEventIfReady(observer)
		return
	}

	p.parseField(line)
}

func trimLineEndings(line []byte) []byte {
	line = bytes.TrimSuffix(line, []byte("\n"))
	return bytes.TrimSuffix(line, []byte("\r"))
}

func (p *sseParser) emitEventIfReady(observer ro.Observer[SSEEvent]) {
	if len(p.dataLines) == 0 {
		return
	}

	p.event.Data = bytes.Join(p.dataLines, []byte("\n"))
	observer.Next(p.event)
	p.event = SSEEvent{}
	p.dataLines = nil
}

func (p *sseParser) finalize(observer ro.Observer[SSEEvent], err error) {
	p.emitEventIfReady(observer)

	if errors.Is(err, io.EOF) {
		observer.Complete()
	} else {
		observer.Error(err)
	}
}

func (p *sseParser) parseField(line []byte) {
	// Lines starting with a colon are comments.
	if line[0] == ':' {
		return
	}

	field, value := splitFieldValue(line)
	p.setField(field, value)
}

func splitFieldValue(line []byte) (field, value []byte) {
	colonIdx := bytes.IndexByte(line, ':')
	if colonIdx == -1 {
		return line, nil
	}

	field = line[:colonIdx]
	value = line[colonIdx+1:]

	// Remove optional leading space from value
	if len(value) > 0 && value[0] == ' ' {
		value = value[1:]
	}

	return field, value
}

func (p *sseParser) setField(field, value []byte) {
	switch string(field) {
	case "event":
		p.event.Event = string(value)
	case "data":
		p.dataLines = append(p.dataLines, value)
	case "id":
		p.event.ID = string(value)
	case "retry":
		if n, err := strconv.Atoi(string(value)); err == nil {
			p.event.Retry = n
		}
	}
}
