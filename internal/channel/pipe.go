package channel

import (
	"context"
	"sync"

	"github.com/specialistvlad/blockgrid/internal/protocol"
)

const pipeBuffer = 64

// pipeState is shared by both ends of a pipe.
type pipeState struct {
	closed chan struct{}
	once   sync.Once
}

func (s *pipeState) close() {
	s.once.Do(func() { close(s.closed) })
}

type pipeEnd struct {
	id    string
	in    <-chan protocol.Message
	out   chan<- protocol.Message
	state *pipeState
}

// Pipe returns two connected in-process channels. Closing either end closes
// both.
func Pipe(id string) (Channel, Channel) {
	a := make(chan protocol.Message, pipeBuffer)
	b := make(chan protocol.Message, pipeBuffer)
	state := &pipeState{closed: make(chan struct{})}
	return &pipeEnd{id: id, in: a, out: b, state: state},
		&pipeEnd{id: id, in: b, out: a, state: state}
}

func (p *pipeEnd) ID() string { return p.id }

func (p *pipeEnd) Send(ctx context.Context, msg protocol.Message) error {
	select {
	case <-p.state.closed:
		return ErrClosed
	default:
	}
	select {
	case p.out <- msg:
		return nil
	case <-p.state.closed:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *pipeEnd) Recv(ctx context.Context) (protocol.Message, error) {
	select {
	case msg := <-p.in:
		return msg, nil
	default:
	}
	select {
	case msg := <-p.in:
		return msg, nil
	case <-p.state.closed:
		// Drain what the peer sent before closing.
		select {
		case msg := <-p.in:
			return msg, nil
		default:
			return protocol.Message{}, ErrClosed
		}
	case <-ctx.Done():
		return protocol.Message{}, ctx.Err()
	}
}

func (p *pipeEnd) Close() error {
	p.state.close()
	return nil
}
