// Package collector implements the sending end of the telemetry link. It
// accepts a single producer connection and streams queued entries to it.
package collector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/skobkin/phoenixrec/internal/metrics"
	"github.com/skobkin/phoenixrec/internal/store"
	"github.com/skobkin/phoenixrec/internal/wire"
)

const (
	controlBufferSize       = 64
	defaultCloseTimeout     = 2 * time.Second
	defaultHandshakeTimeout = 5 * time.Second
)

// ErrAlreadyRun is returned when Run is called on a collector whose
// session has already been served.
var ErrAlreadyRun = errors.New("collector already ran")

// Options tunes a Collector. Zero values select defaults.
type Options struct {
	Compressor    wire.Compressor
	MaxFrameBytes uint32
	MaxBatchBytes int64
	// CloseTimeout bounds the final flush and end frame write.
	CloseTimeout time.Duration
	Metrics      *metrics.Link
	Logger       *slog.Logger
}

// Collector serves queued entries to one producer. It implements
// store.Forwarder so it can be attached to a Store.
type Collector struct {
	addr          string
	codec         *wire.Codec
	maxFrameBytes uint32
	closeTimeout  time.Duration
	metrics       *metrics.Link
	logger        *slog.Logger
	queue         *Queue

	active    atomic.Bool
	connected atomic.Bool
	ran       atomic.Bool
	stop      chan struct{}
	stopOnce  sync.Once

	mu       sync.Mutex
	listener net.Listener
}

// New builds a Collector that will listen on addr.
func New(addr string, opts Options) *Collector {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	maxFrame := opts.MaxFrameBytes
	if maxFrame == 0 {
		maxFrame = wire.DefaultMaxFrameBytes
	}
	closeTimeout := opts.CloseTimeout
	if closeTimeout <= 0 {
		closeTimeout = defaultCloseTimeout
	}
	return &Collector{
		addr:          addr,
		codec:         wire.NewCodec(opts.Compressor, opts.MaxBatchBytes),
		maxFrameBytes: maxFrame,
		closeTimeout:  closeTimeout,
		metrics:       opts.Metrics,
		logger:        logger.With("component", "collector"),
		queue:         NewQueue(),
		stop:          make(chan struct{}),
	}
}

// Listen binds the listening socket and starts accepting entries into
// the queue. Run calls it when it has not been called yet.
func (c *Collector) Listen() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.listener != nil {
		return nil
	}
	if c.ran.Load() {
		return ErrAlreadyRun
	}
	ln, err := net.Listen("tcp", c.addr)
	if err != nil {
		return &wire.TransportError{Op: "listen", Err: err}
	}
	c.listener = ln
	c.active.Store(true)
	c.logger.Info("listening", "addr", ln.Addr().String(), "compression", c.codec.Compression())
	return nil
}

// Addr returns the bound address, or nil before Listen.
func (c *Collector) Addr() net.Addr {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.listener == nil {
		return nil
	}
	return c.listener.Addr()
}

// Enqueue queues e for transmission. Entries are dropped while the
// collector is not active and once the final flush has started.
func (c *Collector) Enqueue(e store.Entry) {
	if !c.active.Load() {
		return
	}
	if !c.queue.Push(e) {
		return
	}
	c.metrics.SetPending(c.queue.Len())
}

// Pending returns the number of entries waiting to be sent.
func (c *Collector) Pending() int {
	return c.queue.Len()
}

// Active reports whether entries are currently being queued.
func (c *Collector) Active() bool {
	return c.active.Load()
}

// Connected reports whether a producer session is open.
func (c *Collector) Connected() bool {
	return c.connected.Load()
}

// Stop ends the session. A connected producer receives the end frame.
func (c *Collector) Stop() {
	c.stopOnce.Do(func() {
		close(c.stop)
	})
}

// Run accepts one producer connection and serves it until the producer
// sends close, Stop is called or ctx is canceled. The listener is closed
// once a connection has been accepted.
func (c *Collector) Run(ctx context.Context) error {
	if err := c.Listen(); err != nil {
		return err
	}
	if !c.ran.CompareAndSwap(false, true) {
		return ErrAlreadyRun
	}
	defer func() {
		c.active.Store(false)
		c.queue.Close()
	}()

	c.mu.Lock()
	ln := c.listener
	c.mu.Unlock()

	acceptDone := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
		case <-c.stop:
		case <-acceptDone:
			return
		}
		_ = ln.Close()
	}()

	conn, err := ln.Accept()
	close(acceptDone)
	_ = ln.Close()
	if err != nil {
		if ctx.Err() != nil || c.stopped() {
			c.logger.Info("collector stopped before a producer connected")
			return nil
		}
		return &wire.TransportError{Op: "accept", Err: err}
	}

	logger := c.logger.With("remote", conn.RemoteAddr().String())
	logger.Info("producer connected")
	return c.serve(ctx, conn, logger)
}

func (c *Collector) serve(ctx context.Context, conn net.Conn, logger *slog.Logger) error {
	defer conn.Close()

	_ = conn.SetDeadline(time.Now().Add(defaultHandshakeTimeout))
	if err := wire.ServerHandshake(conn); err != nil {
		c.metrics.ObserveFailure(metrics.ReasonHandshake)
		logger.Warn("handshake failed", "err", err)
		return err
	}
	_ = conn.SetDeadline(time.Time{})

	c.connected.Store(true)
	c.metrics.SetConnected(true)
	defer func() {
		c.connected.Store(false)
		c.metrics.SetConnected(false)
	}()

	closeReq := make(chan struct{})
	readErr := make(chan error, 1)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.readControl(conn, closeReq, readErr)
	}()
	defer wg.Wait()
	defer conn.Close()

	if err := c.flush(conn, logger); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			logger.Info("session stopping", "reason", ctx.Err())
			return c.finish(conn, logger)
		case <-c.stop:
			logger.Info("session stopping", "reason", "stop requested")
			return c.finish(conn, logger)
		case <-closeReq:
			logger.Info("session stopping", "reason", "close requested by producer")
			return c.finish(conn, logger)
		case err := <-readErr:
			c.metrics.ObserveFailure(metrics.ReasonTransport)
			logger.Warn("producer went away", "err", err)
			return &wire.TransportError{Op: "read control", Err: err}
		case <-c.queue.Notify():
			if err := c.flush(conn, logger); err != nil {
				return err
			}
		}
	}
}

func (c *Collector) readControl(conn net.Conn, closeReq chan<- struct{}, readErr chan<- error) {
	var scanner wire.ControlScanner
	buf := make([]byte, controlBufferSize)
	for {
		n, err := conn.Read(buf)
		if n > 0 && scanner.Feed(buf[:n]) {
			close(closeReq)
			return
		}
		if err != nil {
			readErr <- err
			return
		}
	}
}

// flush sends the whole queue. Entries are removed only after the frames
// carrying them were written.
func (c *Collector) flush(conn net.Conn, logger *slog.Logger) error {
	batch := c.queue.Snapshot()
	if len(batch) == 0 {
		return nil
	}
	sent, err := c.sendBatch(conn, batch, logger)
	c.queue.Remove(sent)
	c.metrics.SetPending(c.queue.Len())
	return err
}

// sendBatch writes batch as one frame, splitting it when the encoded
// payload exceeds the frame limit. It returns how many leading entries
// were written.
func (c *Collector) sendBatch(conn net.Conn, batch store.Batch, logger *slog.Logger) (int, error) {
	payload, err := c.codec.Marshal(batch)
	if err != nil {
		c.metrics.ObserveFailure(metrics.ReasonEncode)
		logger.Error("failed to encode batch, keeping it queued", "entries", len(batch), "err", err)
		return 0, nil
	}

	if uint64(len(payload)) > uint64(c.maxFrameBytes) {
		if len(batch) == 1 {
			c.metrics.ObserveFailure(metrics.ReasonEncode)
			logger.Error("entry exceeds frame limit, dropping it", "bytes", len(payload), "limit", c.maxFrameBytes)
			return 1, nil
		}
		half := len(batch) / 2
		sent, err := c.sendBatch(conn, batch[:half], logger)
		if err != nil || sent < half {
			return sent, err
		}
		rest, err := c.sendBatch(conn, batch[half:], logger)
		return sent + rest, err
	}

	if err := wire.WriteFrame(conn, payload); err != nil {
		c.metrics.ObserveFailure(metrics.ReasonTransport)
		return 0, err
	}
	c.metrics.ObserveFrame(len(batch), len(payload)+4)
	logger.Debug("batch sent", "entries", len(batch), "bytes", len(payload))
	return len(batch), nil
}

// finish sends what is still queued followed by the end frame.
func (c *Collector) finish(conn net.Conn, logger *slog.Logger) error {
	c.active.Store(false)
	c.queue.Close()
	_ = conn.SetWriteDeadline(time.Now().Add(c.closeTimeout))

	var errs []error
	if err := c.flush(conn, logger); err != nil {
		errs = append(errs, fmt.Errorf("final flush: %w", err))
	}
	if err := wire.WriteEnd(conn); err != nil {
		errs = append(errs, err)
	}
	if tcp, ok := conn.(*net.TCPConn); ok {
		_ = tcp.CloseWrite()
	}
	if err := errors.Join(errs...); err != nil {
		logger.Warn("session ended uncleanly", "err", err)
		return err
	}
	logger.Info("session ended")
	return nil
}

func (c *Collector) stopped() bool {
	select {
	case <-c.stop:
		return true
	default:
		return false
	}
}
