package scheduler

import (
	"io"
	"log/slog"
	"time"

	"github.com/specialistvlad/blockgrid/internal/journal"
)

// Config tunes the control loop. Zero fields take their defaults.
type Config struct {
	// HeartbeatTimeout evicts sessions that have been silent this long.
	HeartbeatTimeout time.Duration
	// StatusInterval is the period of progress reports. Negative disables them.
	StatusInterval time.Duration
	// ETAWindow is the trailing window used to measure the completion rate.
	ETAWindow time.Duration
	// DrainTimeout bounds how long a cancelled run waits for in-flight blocks.
	DrainTimeout time.Duration
	// SendTimeout bounds a single message delivery to a worker.
	SendTimeout time.Duration
	// DisconnectLimit is how many times a block may lose its worker before
	// further losses count as failed attempts. Negative means every loss counts.
	DisconnectLimit int
	// CheckConcurrency bounds the Checker calls running at once.
	CheckConcurrency int
}

const (
	DefaultHeartbeatTimeout = 30 * time.Second
	DefaultStatusInterval   = 10 * time.Second
	DefaultETAWindow        = 2 * time.Minute
	DefaultDrainTimeout     = 10 * time.Second
	DefaultSendTimeout      = 10 * time.Second
	DefaultDisconnectLimit  = 3
	DefaultCheckConcurrency = 8
)

func (c Config) withDefaults() Config {
	if c.HeartbeatTimeout <= 0 {
		c.HeartbeatTimeout = DefaultHeartbeatTimeout
	}
	if c.StatusInterval == 0 {
		c.StatusInterval = DefaultStatusInterval
	}
	if c.ETAWindow <= 0 {
		c.ETAWindow = DefaultETAWindow
	}
	if c.DrainTimeout <= 0 {
		c.DrainTimeout = DefaultDrainTimeout
	}
	if c.SendTimeout <= 0 {
		c.SendTimeout = DefaultSendTimeout
	}
	if c.CheckConcurrency <= 0 {
		c.CheckConcurrency = DefaultCheckConcurrency
	}
	switch {
	case c.DisconnectLimit == 0:
		c.DisconnectLimit = DefaultDisconnectLimit
	case c.DisconnectLimit < 0:
		c.DisconnectLimit = 0
	}
	return c
}

// heartbeatCheckInterval is how often sessions are checked for silence.
func (c Config) heartbeatCheckInterval() time.Duration {
	return max(c.HeartbeatTimeout/4, 10*time.Millisecond)
}

// Option customises a Core.
type Option func(*Core)

// WithLogger overrides the logger taken from the Distribute context.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Core) { c.baseLogger = logger }
}

// WithClock replaces time.Now. Session readers call it too, so it must be
// safe for concurrent use.
func WithClock(now func() time.Time) Option {
	return func(c *Core) { c.now = now }
}

// WithJournal records completions in j and skips blocks j already knows.
func WithJournal(j journal.Journal) Option {
	return func(c *Core) { c.journal = j }
}

// WithStatusOutput renders progress reports to w.
func WithStatusOutput(w io.Writer) Option {
	return func(c *Core) { c.statusOut = w }
}
