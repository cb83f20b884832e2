// Package wire implements the collector/producer link format: the
// hello handshake, length-prefixed frames and compressed CBOR batches.
package wire

import (
	"errors"
	"fmt"
)

var (
	// ErrProtocolViolation covers bad handshakes, truncated frames and
	// oversized length prefixes.
	ErrProtocolViolation = errors.New("protocol violation")
	// ErrCompression is returned when a payload fails to compress or decompress.
	ErrCompression = errors.New("compression error")
	// ErrEndOfStream is returned by ReadFrame for the zero-length frame.
	ErrEndOfStream = errors.New("end of stream")
)

// TransportError wraps a connect, read or write failure on the link.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

func transportErr(op string, err error) error {
	return &TransportError{Op: op, Err: err}
}
