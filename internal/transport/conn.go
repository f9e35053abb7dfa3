package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"syscall"
	"time"

	"github.com/anhducle98/simple-search/internal/protocol"
	"github.com/anhducle98/simple-search/pkg/resilience"
)

// Conn is a Link over a TCP connection. Frames are newline-delimited JSON,
// bounded by the configured maximum frame size.
type Conn struct {
	conn net.Conn
	enc  *protocol.Encoder
	dec  *protocol.Decoder
}

// NewConn wraps an established connection.
func NewConn(conn net.Conn, maxFrameBytes int) *Conn {
	return &Conn{
		conn: conn,
		enc:  protocol.NewEncoder(conn, maxFrameBytes),
		dec:  protocol.NewDecoder(conn, maxFrameBytes),
	}
}

func (c *Conn) Send(ctx context.Context, env protocol.Envelope) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	deadline, _ := ctx.Deadline()
	c.conn.SetWriteDeadline(deadline)
	stop := context.AfterFunc(ctx, func() { c.conn.SetWriteDeadline(time.Now()) })
	defer stop()

	if err := c.enc.Encode(env); err != nil {
		return c.mapErr(ctx, err)
	}
	return nil
}

func (c *Conn) Recv(ctx context.Context) (protocol.Envelope, error) {
	if err := ctx.Err(); err != nil {
		return protocol.Envelope{}, err
	}
	deadline, _ := ctx.Deadline()
	c.conn.SetReadDeadline(deadline)
	stop := context.AfterFunc(ctx, func() { c.conn.SetReadDeadline(time.Now()) })
	defer stop()

	var env protocol.Envelope
	if err := c.dec.Decode(&env); err != nil {
		return protocol.Envelope{}, c.mapErr(ctx, err)
	}
	return env, nil
}

func (c *Conn) Close() error {
	return c.conn.Close()
}

func (c *Conn) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

// mapErr turns deadline errors caused by ctx into ctx.Err() and every flavour
// of peer disconnect into ErrClosed. Protocol errors pass through.
func (c *Conn) mapErr(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		var ne net.Error
		if errors.As(err, &ne) && ne.Timeout() {
			return ctxErr
		}
	}
	switch {
	case errors.Is(err, io.EOF),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, net.ErrClosed),
		errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.EPIPE):
		return fmt.Errorf("%w: %v", ErrClosed, err)
	}
	return err
}

// DialConfig controls how a worker reaches the coordinator.
type DialConfig struct {
	Addr          string
	Rank          int
	MaxFrameBytes int
	Retry         resilience.RetryConfig
}

// Dial connects to the coordinator, retrying while it is not yet listening,
// and introduces this process with a Hello envelope.
func Dial(ctx context.Context, cfg DialConfig) (*Conn, error) {
	logger := slog.Default().With("component", "transport", "rank", cfg.Rank)
	var dialer net.Dialer
	var raw net.Conn
	err := resilience.Retry(ctx, "dial coordinator", cfg.Retry, func() error {
		c, err := dialer.DialContext(ctx, "tcp", cfg.Addr)
		if err != nil {
			return err
		}
		raw = c
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("dialing coordinator at %s: %w", cfg.Addr, err)
	}

	conn := NewConn(raw, cfg.MaxFrameBytes)
	if err := conn.Send(ctx, protocol.Hello(cfg.Rank)); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sending hello: %w", err)
	}
	logger.Info("connected to coordinator", "addr", cfg.Addr)
	return conn, nil
}
