// Package producer implements the receiving end of the telemetry link. It
// dials a collector, reads framed batches and replays them into a Store.
package producer

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"sync/atomic"
	"time"

	"github.com/skobkin/phoenixrec/internal/metrics"
	"github.com/skobkin/phoenixrec/internal/store"
	"github.com/skobkin/phoenixrec/internal/wire"
)

const (
	defaultDialTimeout  = 5 * time.Second
	defaultCloseTimeout = 2 * time.Second
)

// Options tunes a Producer. Zero values select defaults.
type Options struct {
	Compressor    wire.Compressor
	MaxFrameBytes uint32
	MaxBatchBytes int64
	DialTimeout   time.Duration
	// CloseTimeout is how long to wait for the end frame after close was sent.
	CloseTimeout time.Duration
	Metrics      *metrics.Link
	Logger       *slog.Logger
}

// Producer pulls one session from a collector.
type Producer struct {
	addr          string
	store         *store.Store
	codec         *wire.Codec
	maxFrameBytes uint32
	dialTimeout   time.Duration
	closeTimeout  time.Duration
	metrics       *metrics.Link
	logger        *slog.Logger

	connected atomic.Bool
	received  atomic.Uint64
}

// New builds a Producer that replays into st.
func New(addr string, st *store.Store, opts Options) *Producer {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	maxFrame := opts.MaxFrameBytes
	if maxFrame == 0 {
		maxFrame = wire.DefaultMaxFrameBytes
	}
	dialTimeout := opts.DialTimeout
	if dialTimeout <= 0 {
		dialTimeout = defaultDialTimeout
	}
	closeTimeout := opts.CloseTimeout
	if closeTimeout <= 0 {
		closeTimeout = defaultCloseTimeout
	}
	return &Producer{
		addr:          addr,
		store:         st,
		codec:         wire.NewCodec(opts.Compressor, opts.MaxBatchBytes),
		maxFrameBytes: maxFrame,
		dialTimeout:   dialTimeout,
		closeTimeout:  closeTimeout,
		metrics:       opts.Metrics,
		logger:        logger.With("component", "producer", "collector", addr),
	}
}

// Connected reports whether a session is open.
func (p *Producer) Connected() bool {
	return p.connected.Load()
}

// Received returns the number of entries replayed so far.
func (p *Producer) Received() uint64 {
	return p.received.Load()
}

// Run dials the collector and replays entries until the end frame
// arrives. Canceling ctx sends close and waits up to the close timeout
// for the collector to finish. Connection failures are not retried.
func (p *Producer) Run(ctx context.Context) error {
	dialer := net.Dialer{Timeout: p.dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", p.addr)
	if err != nil {
		p.metrics.ObserveFailure(metrics.ReasonTransport)
		return &wire.TransportError{Op: "dial", Err: err}
	}
	defer conn.Close()

	_ = conn.SetDeadline(time.Now().Add(p.dialTimeout))
	reply, ok, err := wire.ClientHandshake(conn)
	if err != nil {
		p.metrics.ObserveFailure(metrics.ReasonTransport)
		return err
	}
	_ = conn.SetDeadline(time.Time{})
	if !ok {
		p.metrics.ObserveFailure(metrics.ReasonHandshake)
		p.logger.Warn("unexpected handshake reply, continuing", "reply", string(reply))
	}

	p.connected.Store(true)
	p.metrics.SetConnected(true)
	defer func() {
		p.connected.Store(false)
		p.metrics.SetConnected(false)
	}()
	p.logger.Info("connected")

	done := make(chan struct{})
	defer close(done)
	go p.watchCancel(ctx, conn, done)

	for {
		payload, err := wire.ReadFrame(conn, p.maxFrameBytes)
		if errors.Is(err, wire.ErrEndOfStream) {
			p.logger.Info("session ended by collector", "entries", p.received.Load())
			return nil
		}
		if err != nil {
			if ctx.Err() != nil {
				p.logger.Info("session abandoned after close", "entries", p.received.Load(), "err", err)
				return nil
			}
			if errors.Is(err, wire.ErrProtocolViolation) {
				p.metrics.ObserveFailure(metrics.ReasonProtocol)
			} else {
				p.metrics.ObserveFailure(metrics.ReasonTransport)
			}
			return err
		}

		batch, err := p.codec.Unmarshal(payload)
		if err != nil {
			p.metrics.ObserveFailure(metrics.ReasonDecode)
			return err
		}
		p.metrics.ObserveFrame(len(batch), len(payload)+4)
		p.replay(batch)
	}
}

func (p *Producer) replay(batch store.Batch) {
	for i, e := range batch {
		if err := p.store.Replay(e); err != nil {
			p.metrics.ObserveFailure(metrics.ReasonReplay)
			p.logger.Warn("skipping entry", "index", i, "err", err)
			continue
		}
		p.received.Add(1)
	}
}

// watchCancel sends close once ctx is canceled and bounds the remaining
// read by the close timeout.
func (p *Producer) watchCancel(ctx context.Context, conn net.Conn, done <-chan struct{}) {
	select {
	case <-done:
		return
	case <-ctx.Done():
	}
	deadline := time.Now().Add(p.closeTimeout)
	_ = conn.SetWriteDeadline(deadline)
	if _, err := conn.Write(wire.CloseToken); err != nil {
		p.logger.Warn("failed to send close", "err", err)
	} else {
		p.logger.Info("close sent")
	}
	_ = conn.SetReadDeadline(deadline)
}
