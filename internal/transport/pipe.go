package transport

import (
	"context"
	"sync"

	"github.com/anhducle98/simple-search/internal/protocol"
)

type pipeEnd struct {
	in   <-chan protocol.Envelope
	out  chan<- protocol.Envelope
	done chan struct{}
	once *sync.Once
}

// Pipe returns the two ends of an in-process link. Each direction buffers up
// to buffer envelopes; 0 makes every Send a rendezvous. Closing either end
// closes the link for both, but envelopes already buffered are still
// delivered before Recv reports ErrClosed.
func Pipe(buffer int) (Link, Link) {
	if buffer < 0 {
		buffer = 0
	}
	ab := make(chan protocol.Envelope, buffer)
	ba := make(chan protocol.Envelope, buffer)
	done := make(chan struct{})
	once := new(sync.Once)
	a := &pipeEnd{in: ba, out: ab, done: done, once: once}
	b := &pipeEnd{in: ab, out: ba, done: done, once: once}
	return a, b
}

func (p *pipeEnd) Send(ctx context.Context, env protocol.Envelope) error {
	if err := env.Validate(); err != nil {
		return err
	}
	select {
	case <-p.done:
		return ErrClosed
	default:
	}
	select {
	case p.out <- env:
		return nil
	case <-p.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *pipeEnd) Recv(ctx context.Context) (protocol.Envelope, error) {
	select {
	case env := <-p.in:
		return env, nil
	case <-p.done:
		select {
		case env := <-p.in:
			return env, nil
		default:
			return protocol.Envelope{}, ErrClosed
		}
	case <-ctx.Done():
		return protocol.Envelope{}, ctx.Err()
	}
}

func (p *pipeEnd) Close() error {
	p.once.Do(func() { close(p.done) })
	return nil
}
