package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

const (
	// DefaultPort is the TCP port the collector listens on.
	DefaultPort = 3333
	// DefaultMaxFrameBytes bounds the compressed payload of one frame.
	DefaultMaxFrameBytes uint32 = 64 << 20

	frameHeaderLen = 4
)

var (
	// Hello is sent by the producer and echoed by the collector.
	Hello = []byte("hello")
	// CloseToken asks the collector to end the session.
	CloseToken = []byte("close")
)

// WriteFrame writes the length prefix and payload in a single write.
func WriteFrame(w io.Writer, payload []byte) error {
	if len(payload) == 0 {
		return fmt.Errorf("%w: empty payload frame", ErrProtocolViolation)
	}
	if uint64(len(payload)) > uint64(^uint32(0)) {
		return fmt.Errorf("%w: payload of %d bytes exceeds frame limit", ErrProtocolViolation, len(payload))
	}
	buf := make([]byte, frameHeaderLen+len(payload))
	binary.LittleEndian.PutUint32(buf[:frameHeaderLen], uint32(len(payload)))
	copy(buf[frameHeaderLen:], payload)
	if _, err := w.Write(buf); err != nil {
		return transportErr("write frame", err)
	}
	return nil
}

// WriteEnd writes the zero-length terminal frame.
func WriteEnd(w io.Writer) error {
	var hdr [frameHeaderLen]byte
	if _, err := w.Write(hdr[:]); err != nil {
		return transportErr("write end frame", err)
	}
	return nil
}

// ReadFrame reads one frame and returns its payload. It returns
// ErrEndOfStream for the zero-length frame without reading further.
func ReadFrame(r io.Reader, maxLen uint32) ([]byte, error) {
	var hdr [frameHeaderLen]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("%w: truncated frame header", ErrProtocolViolation)
		}
		return nil, transportErr("read frame header", err)
	}

	length := binary.LittleEndian.Uint32(hdr[:])
	if length == 0 {
		return nil, ErrEndOfStream
	}
	if maxLen > 0 && length > maxLen {
		return nil, fmt.Errorf("%w: frame length %d exceeds limit %d", ErrProtocolViolation, length, maxLen)
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("%w: truncated frame payload: %v", ErrProtocolViolation, err)
		}
		return nil, transportErr("read frame payload", err)
	}
	return payload, nil
}

// ClientHandshake sends Hello and reads the 5-byte reply. A reply other
// than Hello is returned with ok=false and no error.
func ClientHandshake(rw io.ReadWriter) (reply []byte, ok bool, err error) {
	if _, err := rw.Write(Hello); err != nil {
		return nil, false, transportErr("write hello", err)
	}
	reply = make([]byte, len(Hello))
	if _, err := io.ReadFull(rw, reply); err != nil {
		return nil, false, transportErr("read hello", err)
	}
	return reply, bytes.Equal(reply, Hello), nil
}

// ServerHandshake expects Hello from the peer and echoes it back.
func ServerHandshake(rw io.ReadWriter) error {
	greeting := make([]byte, len(Hello))
	if _, err := io.ReadFull(rw, greeting); err != nil {
		return transportErr("read hello", err)
	}
	if !bytes.Equal(greeting, Hello) {
		return fmt.Errorf("%w: unexpected greeting %q", ErrProtocolViolation, greeting)
	}
	if _, err := rw.Write(Hello); err != nil {
		return transportErr("write hello", err)
	}
	return nil
}

// ControlScanner looks for CloseToken in a stream of control bytes that
// may be split across reads.
type ControlScanner struct {
	tail []byte
}

// Feed consumes a chunk and reports whether CloseToken has been seen.
func (s *ControlScanner) Feed(chunk []byte) bool {
	chunk = bytes.Trim(chunk, "\x00")
	if len(chunk) == 0 {
		return false
	}
	window := append(s.tail, chunk...)
	if bytes.Contains(window, CloseToken) {
		s.tail = nil
		return true
	}
	keep := len(CloseToken) - 1
	if len(window) > keep {
		window = window[len(window)-keep:]
	}
	s.tail = append(s.tail[:0:0], window...)
	return false
}
