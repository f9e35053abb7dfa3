package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/anhducle98/simple-search/internal/protocol"
)

// HandshakeTimeout bounds how long an accepted connection may take to send
// its Hello.
const HandshakeTimeout = 5 * time.Second

// Listener accepts worker connections for the coordinator.
type Listener struct {
	ln            net.Listener
	maxFrameBytes int
	logger        *slog.Logger
	closeOnce     sync.Once
}

func Listen(addr string, maxFrameBytes int) (*Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listening on %s: %w", addr, err)
	}
	l := &Listener{
		ln:            ln,
		maxFrameBytes: maxFrameBytes,
		logger:        slog.Default().With("component", "transport"),
	}
	l.logger.Info("coordinator listening", "addr", ln.Addr().String())
	return l, nil
}

func (l *Listener) Addr() net.Addr {
	return l.ln.Addr()
}

// AcceptWorkers blocks until every worker rank in [1, procs-1] has connected
// and sent its Hello, then closes the listener. The returned slice is indexed
// by rank; index 0 is nil. Connections that send anything other than a valid,
// unclaimed rank are dropped and the wait continues.
func (l *Listener) AcceptWorkers(ctx context.Context, procs int) ([]Link, error) {
	defer l.Close()
	stop := context.AfterFunc(ctx, func() { l.Close() })
	defer stop()

	links := make([]Link, procs)
	joined := 0
	for joined < procs-1 {
		raw, err := l.ln.Accept()
		if err != nil {
			CloseAll(links)
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, fmt.Errorf("waiting for workers (%d of %d joined): %w", joined, procs-1, ctxErr)
			}
			return nil, fmt.Errorf("accepting worker: %w", err)
		}

		conn := NewConn(raw, l.maxFrameBytes)
		rank, err := l.handshake(ctx, conn, procs, links)
		if err != nil {
			l.logger.Warn("rejecting connection", "remote", raw.RemoteAddr().String(), "error", err)
			conn.Close()
			if ctx.Err() != nil {
				CloseAll(links)
				return nil, fmt.Errorf("waiting for workers (%d of %d joined): %w", joined, procs-1, ctx.Err())
			}
			continue
		}
		links[rank] = conn
		joined++
		l.logger.Info("worker joined", "rank", rank, "remote", raw.RemoteAddr().String(),
			"joined", joined, "expected", procs-1)
	}
	return links, nil
}

func (l *Listener) handshake(ctx context.Context, conn *Conn, procs int, links []Link) (int, error) {
	hctx, cancel := context.WithTimeout(ctx, HandshakeTimeout)
	defer cancel()
	env, err := conn.Recv(hctx)
	if err != nil {
		return 0, fmt.Errorf("reading hello: %w", err)
	}
	if env.Kind != protocol.KindHello {
		return 0, protocol.Unexpected("waiting for hello", env)
	}
	if env.Rank >= procs {
		return 0, fmt.Errorf("rank %d outside group of %d", env.Rank, procs)
	}
	if links[env.Rank] != nil {
		return 0, fmt.Errorf("rank %d already joined", env.Rank)
	}
	return env.Rank, nil
}

func (l *Listener) Close() error {
	var err error
	l.closeOnce.Do(func() {
		err = l.ln.Close()
		if errors.Is(err, net.ErrClosed) {
			err = nil
		}
	})
	return err
}

// CloseAll closes every non-nil link.
func CloseAll(links []Link) {
	for _, link := range links {
		if link != nil {
			link.Close()
		}
	}
}
