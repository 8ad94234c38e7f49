package channel

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
)

// LocalListener accepts in-process workers created with Dial.
type LocalListener struct {
	conns  chan Channel
	closed chan struct{}
	once   sync.Once
	seq    atomic.Int64
}

// NewLocalListener returns a listener for in-process workers.
func NewLocalListener() *LocalListener {
	return &LocalListener{
		conns:  make(chan Channel),
		closed: make(chan struct{}),
	}
}

// Dial connects a new worker and returns its end of the pipe. It blocks until
// the listener accepts the connection.
func (l *LocalListener) Dial(ctx context.Context) (Channel, error) {
	id := fmt.Sprintf("local-%d", l.seq.Add(1))
	server, worker := Pipe(id)
	select {
	case l.conns <- server:
		return worker, nil
	case <-l.closed:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (l *LocalListener) Accept(ctx context.Context) (Channel, error) {
	select {
	case ch := <-l.conns:
		return ch, nil
	case <-l.closed:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (l *LocalListener) Close() error {
	l.once.Do(func() { close(l.closed) })
	return nil
}
