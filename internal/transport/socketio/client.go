package socketio

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/specialistvlad/blockgrid/internal/channel"
	"github.com/specialistvlad/blockgrid/internal/ctxlog"
	"github.com/specialistvlad/blockgrid/internal/protocol"
	"github.com/zishang520/engine.io-client-go/transports"
	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/socket.io-client-go/socket"
)

// DialOptions tunes a worker connection.
type DialOptions struct {
	Namespace          string
	InsecureSkipVerify bool
	// ConnectTimeout bounds the initial handshake. Zero means 15s.
	ConnectTimeout time.Duration
}

// Dial connects a worker to the scheduler at rawURL, e.g.
// "http://scheduler:8080/socket.io/".
func Dial(ctx context.Context, rawURL string, opts DialOptions) (channel.Channel, error) {
	logger := ctxlog.FromContext(ctx).With("component", "socketio", "url", rawURL)

	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL: %w", err)
	}
	timeout := opts.ConnectTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	namespace := opts.Namespace
	if namespace == "" {
		namespace = "/"
	}

	sockOpts := socket.DefaultOptions()
	sockOpts.SetPath(parsedURL.Path)
	if opts.InsecureSkipVerify {
		logger.Warn("Skipping TLS certificate verification")
		sockOpts.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true})
	}
	sockOpts.SetTransports(types.NewSet(transports.WebSocket))

	baseURL := fmt.Sprintf("%s://%s", parsedURL.Scheme, parsedURL.Host)
	manager := socket.NewManager(baseURL, sockOpts)
	io := manager.Socket(namespace, sockOpts)

	c := &clientConn{
		sock:   io,
		logger: logger,
		inbox:  make(chan protocol.Message, inboxSize),
		closed: make(chan struct{}),
	}
	connectChan := make(chan error, 1)

	io.Once(types.EventName("connect"), func(...any) {
		logger.Debug("Connected.", "sid", io.Id())
		connectChan <- nil
	})
	io.Once(types.EventName("connect_error"), func(errs ...any) {
		err := fmt.Errorf("connect error")
		if len(errs) > 0 {
			if e, ok := errs[0].(error); ok {
				err = e
			}
		}
		connectChan <- err
	})
	io.On(types.EventName(Event), func(args ...any) {
		if len(args) == 0 {
			return
		}
		raw, ok := args[0].(string)
		if !ok {
			logger.Warn("Dropping non-string payload.")
			return
		}
		msg, err := protocol.Decode([]byte(raw))
		if err != nil {
			logger.Warn("Dropping malformed message.", "error", err)
			return
		}
		select {
		case c.inbox <- msg:
		case <-c.closed:
		}
	})
	io.On(types.EventName("disconnect"), func(reason ...any) {
		logger.Debug("Disconnected.", "reason", reason)
		c.markClosed()
	})

	io.Connect()

	select {
	case err := <-connectChan:
		if err != nil {
			io.Disconnect()
			return nil, fmt.Errorf("socket.io connection failed: %w", err)
		}
		return c, nil
	case <-ctx.Done():
		io.Disconnect()
		return nil, fmt.Errorf("context cancelled while waiting for socket.io connection: %w", ctx.Err())
	case <-time.After(timeout):
		io.Disconnect()
		return nil, fmt.Errorf("timed out after %s waiting for socket.io connection", timeout)
	}
}

// clientConn is the worker's end of a Socket.IO session.
type clientConn struct {
	sock   *socket.Socket
	logger *slog.Logger
	inbox  chan protocol.Message
	closed chan struct{}
	once   sync.Once
}

func (c *clientConn) ID() string { return string(c.sock.Id()) }

func (c *clientConn) Send(ctx context.Context, msg protocol.Message) error {
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

func (c *clientConn) Recv(ctx context.Context) (protocol.Message, error) {
	return receive(ctx, c.inbox, c.closed)
}

func (c *clientConn) markClosed() {
	c.once.Do(func() { close(c.closed) })
}

func (c *clientConn) Close() error {
	c.markClosed()
	c.sock.Disconnect()
	return nil
}
