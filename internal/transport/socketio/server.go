package socketio

import (
	"context"
	"log/slog"
	"net/http"
	"sync"

	"github.com/pborman/uuid"
	"github.com/specialistvlad/blockgrid/internal/channel"
	"github.com/specialistvlad/blockgrid/internal/ctxlog"
	"github.com/specialistvlad/blockgrid/internal/protocol"
	sio "github.com/zishang520/socket.io/v2/socket"
)

const inboxSize = 64

// Server accepts worker sessions over Socket.IO. It implements
// channel.Listener.
type Server struct {
	io     *sio.Server
	logger *slog.Logger

	conns  chan channel.Channel
	closed chan struct{}
	once   sync.Once

	mu     sync.Mutex
	active map[*serverConn]struct{}
}

// NewServer creates a Socket.IO server. The logger is taken from ctx.
func NewServer(ctx context.Context) *Server {
	s := &Server{
		io:     sio.NewServer(nil, nil),
		logger: ctxlog.FromContext(ctx).With("component", "socketio"),
		conns:  make(chan channel.Channel, inboxSize),
		closed: make(chan struct{}),
		active: make(map[*serverConn]struct{}),
	}
	s.io.On("connection", func(clients ...any) {
		if len(clients) == 0 {
			return
		}
		client, ok := clients[0].(*sio.Socket)
		if !ok {
			s.logger.Warn("Ignoring connection of unexpected type.")
			return
		}
		s.accept(client)
	})
	return s
}

// Handler serves the Socket.IO endpoint.
func (s *Server) Handler() http.Handler {
	return s.io.ServeHandler(nil)
}

func (s *Server) accept(client *sio.Socket) {
	c := &serverConn{
		id:     uuid.New(),
		sock:   client,
		inbox:  make(chan protocol.Message, inboxSize),
		closed: make(chan struct{}),
	}
	c.logger = s.logger.With("session", c.id)

	client.On(Event, func(args ...any) {
		if len(args) == 0 {
			return
		}
		raw, ok := args[0].(string)
		if !ok {
			c.logger.Warn("Dropping non-string payload.")
			return
		}
		msg, err := protocol.Decode([]byte(raw))
		if err != nil {
			c.logger.Warn("Dropping malformed message.", "error", err)
			return
		}
		select {
		case c.inbox <- msg:
		case <-c.closed:
		}
	})
	client.On("disconnect", func(reason ...any) {
		c.logger.Debug("Socket disconnected.", "reason", reason)
		c.markClosed()
		s.forget(c)
	})

	s.mu.Lock()
	s.active[c] = struct{}{}
	s.mu.Unlock()
	c.logger.Info("🔌 Worker connected.")

	go func() {
		select {
		case s.conns <- c:
		case <-s.closed:
			_ = c.Close()
		}
	}()
}

func (s *Server) forget(c *serverConn) {
	s.mu.Lock()
	delete(s.active, c)
	s.mu.Unlock()
}

// Accept returns the next connected worker session.
func (s *Server) Accept(ctx context.Context) (channel.Channel, error) {
	select {
	case c := <-s.conns:
		return c, nil
	case <-s.closed:
		return nil, channel.ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close stops accepting sessions and disconnects the active ones.
func (s *Server) Close() error {
	s.once.Do(func() {
		close(s.closed)
		s.mu.Lock()
		conns := make([]*serverConn, 0, len(s.active))
		for c := range s.active {
			conns = append(conns, c)
		}
		s.mu.Unlock()
		for _, c := range conns {
			_ = c.Close()
		}
	})
	return nil
}

// serverConn is the scheduler's end of one Socket.IO session.
type serverConn struct {
	id     string
	sock   *sio.Socket
	logger *slog.Logger
	inbox  chan protocol.Message
	closed chan struct{}
	once   sync.Once
}

func (c *serverConn) ID() string { return c.id }

func (c *serverConn) Send(ctx context.Context, msg protocol.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case <-c.closed:
		return channel.ErrClosed
	default:
	}
	data, err := protocol.Encode(msg)
	if err != nil {
		return err
	}
	c.sock.Emit(Event, string(data))
	return nil
}

func (c *serverConn) Recv(ctx context.Context) (protocol.Message, error) {
	return receive(ctx, c.inbox, c.closed)
}

func (c *serverConn) markClosed() {
	c.once.Do(func() { close(c.closed) })
}

func (c *serverConn) Close() error {
	c.markClosed()
	c.sock.Disconnect(true)
	return nil
}

// receive implements the channel.Channel Recv contract over an inbox.
func receive(ctx context.Context, inbox <-chan protocol.Message, closed <-chan struct{}) (protocol.Message, error) {
	select {
	case msg := <-inbox:
		return msg, nil
	default:
	}
	select {
	case msg := <-inbox:
		return msg, nil
	case <-closed:
		select {
		case msg := <-inbox:
			return msg, nil
		default:
			return protocol.Message{}, channel.ErrClosed
		}
	case <-ctx.Done():
		return protocol.Message{}, ctx.Err()
	}
}
