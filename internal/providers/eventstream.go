package providers

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws/protocol/eventstream"
)

// maxFrameLen bounds a single event-stream frame. The protocol caps
// messages at 16 MiB; anything larger means a corrupt length prefix.
const maxFrameLen = 16 << 20

// minFrameLen is the prelude plus the trailing CRC.
const minFrameLen = 16

// EventStreamReader decodes AWS event-stream frames from an upstream body.
// A frame that fails CRC or header validation is skipped rather than
// aborting the stream: the reader stays aligned on the length prefix of the
// next frame and counts the failure.
type EventStreamReader struct {
	r            *bufio.Reader
	dec          *eventstream.Decoder
	decodeErrors int
}

// NewEventStreamReader wraps an upstream response body.
func NewEventStreamReader(r io.Reader) *EventStreamReader {
	return &EventStreamReader{
		r:   bufio.NewReader(r),
		dec: eventstream.NewDecoder(),
	}
}

// Next returns the next well-formed frame, or io.EOF at end of stream.
// Malformed frames are dropped and counted.
func (e *EventStreamReader) Next() (*DecodedFrame, error) {
	for {
		frame, err := e.readFrame()
		if err != nil {
			return nil, err
		}

		msg, err := e.dec.Decode(bytes.NewReader(frame), nil)
		if err != nil {
			e.decodeErrors++
			continue
		}

		return frameFromMessage(msg), nil
	}
}

// DecodeErrors returns the number of frames dropped for failing to decode.
func (e *EventStreamReader) DecodeErrors() int {
	return e.decodeErrors
}

// readFrame reads one length-prefixed frame into memory. The total length
// field covers the prelude itself, so the frame is the prefix re-attached
// to the remaining bytes.
func (e *EventStreamReader) readFrame() ([]byte, error) {
	var prefix [4]byte
	if _, err := io.ReadFull(e.r, prefix[:]); err != nil {
		if err == io.ErrUnexpectedEOF {
			return nil, io.EOF
		}
		return nil, err
	}

	total := binary.BigEndian.Uint32(prefix[:])
	if total < minFrameLen || total > maxFrameLen {
		return nil, fmt.Errorf("event stream frame length %d out of range", total)
	}

	frame := make([]byte, total)
	copy(frame, prefix[:])
	if _, err := io.ReadFull(e.r, frame[4:]); err != nil {
		if err == io.ErrUnexpectedEOF {
			return nil, io.EOF
		}
		return nil, err
	}

	return frame, nil
}

func frameFromMessage(msg eventstream.Message) *DecodedFrame {
	frame := &DecodedFrame{Payload: msg.Payload}
	for _, h := range msg.Headers {
		value, ok := h.Value.(eventstream.StringValue)
		if !ok {
			continue
		}
		switch h.Name {
		case ":event-type":
			frame.EventType = string(value)
		case ":exception-type":
			frame.ExceptionType = string(value)
		}
	}
	return frame
}
