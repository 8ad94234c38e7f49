package channel

import (
	"context"
	"errors"

	"github.com/specialistvlad/blockgrid/internal/protocol"
)

// ErrClosed is returned by operations on a closed channel or listener.
var ErrClosed = errors.New("channel closed")

// Channel is one worker session's connection.
type Channel interface {
	// ID identifies the session for logging.
	ID() string
	Send(ctx context.Context, msg protocol.Message) error
	Recv(ctx context.Context) (protocol.Message, error)
	Close() error
}

// Listener hands out channels for newly connected workers.
type Listener interface {
	Accept(ctx context.Context) (Channel, error)
	Close() error
}
