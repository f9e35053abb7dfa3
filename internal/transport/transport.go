// Package transport provides the ordered, reliable point-to-point links the
// coordinator and workers talk over. A Link delivers envelopes in the order
// they were sent; there is exactly one Link per coordinator-worker pair.
//
// Two implementations exist: Pipe, which connects goroutines inside one
// process, and Conn, one TCP connection carrying newline-delimited frames.
package transport

import (
	"context"
	"errors"

	"github.com/anhducle98/simple-search/internal/protocol"
)

// ErrClosed is returned once the peer (or this end) has closed the link and
// no buffered envelopes remain.
var ErrClosed = errors.New("transport: link closed")

// Link is one end of a FIFO channel. Send and Recv block until the envelope
// is accepted or delivered, or ctx is done. A Link is used by a single
// goroutine per direction.
type Link interface {
	Send(ctx context.Context, env protocol.Envelope) error
	Recv(ctx context.Context) (protocol.Envelope, error)
	Close() error
}
