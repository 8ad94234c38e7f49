package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/pborman/uuid"
	"github.com/specialistvlad/blockgrid/internal/channel"
	"github.com/specialistvlad/blockgrid/internal/ctxlog"
	"github.com/specialistvlad/blockgrid/internal/protocol"
	"github.com/specialistvlad/blockgrid/internal/task"
)

const (
	DefaultHeartbeatInterval = 5 * time.Second
	DefaultSendTimeout       = 10 * time.Second
)

var (
	// ErrUnknownProcessor is reported for blocks naming a processor this
	// worker does not have.
	ErrUnknownProcessor = errors.New("unknown processor")
	// ErrProcessorPanic is reported for blocks whose processor panicked.
	ErrProcessorPanic = errors.New("processor panicked")
)

// Processors resolves processor names. *registry.Registry satisfies it.
type Processors interface {
	Processor(name string) (task.Processor, bool)
}

// Config configures a worker.
type Config struct {
	// ID identifies the worker in scheduler logs. Empty means a random id.
	ID string
	// Tasks restricts the worker to blocks of these tasks. Empty accepts any.
	Tasks []string
	// HeartbeatInterval must stay well below the scheduler's heartbeat timeout.
	HeartbeatInterval time.Duration
	SendTimeout       time.Duration
}

// Worker processes blocks assigned over one channel.
type Worker struct {
	ch    channel.Channel
	procs Processors
	cfg   Config

	sendMu    sync.Mutex
	mu        sync.Mutex
	current   *protocol.BlockKey
	processed int
	failed    int
}

// New creates a worker.
func New(ch channel.Channel, procs Processors, cfg Config) *Worker {
	if cfg.ID == "" {
		cfg.ID = uuid.New()
	}
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = DefaultSendTimeout
	}
	return &Worker{ch: ch, procs: procs, cfg: cfg}
}

// ID returns the worker id.
func (w *Worker) ID() string { return w.cfg.ID }

// Stats returns how many blocks were processed and how many of them failed.
func (w *Worker) Stats() (processed, failed int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.processed, w.failed
}

// Run serves the session until the scheduler ends it or ctx is cancelled.
// Both count as a clean exit.
func (w *Worker) Run(ctx context.Context) error {
	ctx = ctxlog.With(ctx, "worker", w.cfg.ID)
	logger := ctxlog.FromContext(ctx)
	defer w.ch.Close()

	if err := w.send(ctx, protocol.NewRegister(w.cfg.ID, w.cfg.Tasks)); err != nil {
		return w.exit(ctx, fmt.Errorf("failed to register: %w", err))
	}
	if err := w.send(ctx, protocol.NewRequestNext()); err != nil {
		return w.exit(ctx, fmt.Errorf("failed to request work: %w", err))
	}
	logger.Info("👷 Worker started.", "tasks", w.cfg.Tasks)

	hbCtx, stopHeartbeats := context.WithCancel(ctx)
	defer stopHeartbeats()
	go w.heartbeats(hbCtx)

	for {
		msg, err := w.ch.Recv(ctx)
		if err != nil {
			return w.exit(ctx, err)
		}
		switch msg.Kind {
		case protocol.Shutdown:
			logger.Info("👋 Scheduler sent shutdown.")
			return nil
		case protocol.Assign:
			if err := w.handle(ctx, msg.Block); err != nil {
				return w.exit(ctx, err)
			}
		default:
			logger.Debug("Ignoring unexpected message.", "kind", msg.Kind)
		}
	}
}

// exit turns the error that ended the session into Run's result.
func (w *Worker) exit(ctx context.Context, err error) error {
	logger := ctxlog.FromContext(ctx)
	switch {
	case ctx.Err() != nil:
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), w.cfg.SendTimeout)
		defer cancel()
		_ = w.send(releaseCtx, protocol.NewRelease())
		logger.Info("Worker released its session.")
		return nil
	case errors.Is(err, channel.ErrClosed):
		logger.Info("Scheduler closed the session.")
		return nil
	}
	return fmt.Errorf("worker %s: %w", w.cfg.ID, err)
}

func (w *Worker) handle(ctx context.Context, block *protocol.BlockDescriptor) error {
	logger := ctxlog.FromContext(ctx)
	if block == nil {
		logger.Warn("Ignoring assignment without a block.")
		return nil
	}
	key := block.Key()
	w.setCurrent(&key)
	_ = w.send(ctx, protocol.NewHeartbeat(&key))

	logger.Debug("Processing block.", "block", key.String(), "attempt", block.Attempt)
	start := time.Now()
	procErr := w.execute(ctxlog.With(ctx, "block", key.String()), block)
	w.setCurrent(nil)

	if ctx.Err() != nil {
		// The scheduler reassigns the block once the session is gone.
		return ctx.Err()
	}

	w.mu.Lock()
	w.processed++
	if procErr != nil {
		w.failed++
	}
	w.mu.Unlock()

	if procErr != nil {
		logger.Warn("Block failed.", "block", key.String(), "error", procErr)
	} else {
		logger.Debug("Block done.", "block", key.String(), "duration", time.Since(start))
	}

	if err := w.send(ctx, protocol.NewBlockDone(key, procErr)); err != nil {
		return fmt.Errorf("failed to report block %s: %w", key, err)
	}
	if err := w.send(ctx, protocol.NewRequestNext()); err != nil {
		return fmt.Errorf("failed to request work: %w", err)
	}
	return nil
}

func (w *Worker) execute(ctx context.Context, block *protocol.BlockDescriptor) (err error) {
	proc, ok := w.procs.Processor(block.Processor)
	if !ok {
		return fmt.Errorf("%w %q", ErrUnknownProcessor, block.Processor)
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrProcessorPanic, r)
		}
	}()
	return proc.ProcessBlock(ctx, block)
}

func (w *Worker) heartbeats(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.send(ctx, protocol.NewHeartbeat(w.getCurrent())); err != nil {
				return
			}
		}
	}
}

func (w *Worker) send(ctx context.Context, msg protocol.Message) error {
	w.sendMu.Lock()
	defer w.sendMu.Unlock()
	sendCtx, cancel := context.WithTimeout(ctx, w.cfg.SendTimeout)
	defer cancel()
	return w.ch.Send(sendCtx, msg)
}

func (w *Worker) setCurrent(key *protocol.BlockKey) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.current = key
}

func (w *Worker) getCurrent() *protocol.BlockKey {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current
}
