package scheduler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/specialistvlad/blockgrid/internal/blockgraph"
	"github.com/specialistvlad/blockgrid/internal/channel"
	"github.com/specialistvlad/blockgrid/internal/ctxlog"
	"github.com/specialistvlad/blockgrid/internal/journal"
	"github.com/specialistvlad/blockgrid/internal/protocol"
	"github.com/specialistvlad/blockgrid/internal/status"
	"github.com/specialistvlad/blockgrid/internal/task"
	"github.com/specialistvlad/blockgrid/internal/taskgraph"
	"github.com/specialistvlad/blockgrid/internal/zorder"
	"golang.org/x/sync/semaphore"
)

// Core is the scheduler. It is used for exactly one Distribute call;
// Attach, Serve and Snapshot are safe to call from any goroutine.
type Core struct {
	cfg        Config
	now        func() time.Time
	journal    journal.Journal
	statusOut  io.Writer
	baseLogger *slog.Logger

	attach    chan channel.Channel
	events    chan event
	snapshots chan chan status.Snapshot
	done      chan struct{}
	checks    *semaphore.Weighted
	started   atomic.Bool
	final     atomic.Pointer[status.Snapshot]

	// Everything below is owned by the control loop.
	logger   *slog.Logger
	reporter *status.Reporter
	blocks   map[protocol.BlockKey]*blockState
	tasks    map[string]*taskState
	taskIDs  []string
	ready    *zorder.Queue
	promote  []*blockState
	sessions map[string]*session
	order    []string
	seq      int
}

// New creates a scheduler core.
func New(cfg Config, opts ...Option) *Core {
	cfg = cfg.withDefaults()
	c := &Core{
		cfg:       cfg,
		now:       time.Now,
		attach:    make(chan channel.Channel),
		events:    make(chan event, 64),
		snapshots: make(chan chan status.Snapshot),
		done:      make(chan struct{}),
		checks:    semaphore.NewWeighted(int64(cfg.CheckConcurrency)),
		blocks:    make(map[protocol.BlockKey]*blockState),
		tasks:     make(map[string]*taskState),
		ready:     zorder.NewQueue(),
		sessions:  make(map[string]*session),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Attach hands a worker channel to the scheduler. Channels attached before
// Distribute starts wait for it; channels attached after it returns are
// closed.
func (c *Core) Attach(ch channel.Channel) {
	go func() {
		select {
		case c.attach <- ch:
		case <-c.done:
			_ = ch.Close()
		}
	}()
}

// Serve attaches every channel accepted from l until ctx is cancelled, the
// listener is closed or Distribute returns.
func (c *Core) Serve(ctx context.Context, l channel.Listener) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-c.done:
			cancel()
		case <-ctx.Done():
		}
	}()

	for {
		ch, err := l.Accept(ctx)
		if err != nil {
			if errors.Is(err, channel.ErrClosed) || ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("failed to accept worker channel: %w", err)
		}
		c.Attach(ch)
	}
}

// Snapshot returns the current progress. After Distribute returns it keeps
// returning the final state.
func (c *Core) Snapshot(ctx context.Context) (status.Snapshot, error) {
	if snap := c.final.Load(); snap != nil {
		return *snap, nil
	}
	if !c.started.Load() {
		return status.Snapshot{}, ErrNotRunning
	}
	reply := make(chan status.Snapshot, 1)
	select {
	case c.snapshots <- reply:
	case <-c.done:
		if snap := c.final.Load(); snap != nil {
			return *snap, nil
		}
		return status.Snapshot{}, ErrNotRunning
	case <-ctx.Done():
		return status.Snapshot{}, ctx.Err()
	}
	select {
	case snap := <-reply:
		return snap, nil
	case <-ctx.Done():
		return status.Snapshot{}, ctx.Err()
	}
}

// Distribute builds the task and block graphs from specs and runs every
// block on the attached workers. It returns when all blocks are DONE or
// FAILED, or after ctx is cancelled and in-flight blocks have drained. Task
// failures are reported in Results, not as an error.
func (c *Core) Distribute(ctx context.Context, specs []task.Spec) (Results, error) {
	if !c.started.CompareAndSwap(false, true) {
		return nil, ErrAlreadyStarted
	}
	defer close(c.done)

	c.logger = c.baseLogger
	if c.logger == nil {
		c.logger = ctxlog.FromContext(ctx)
	}
	c.logger = c.logger.With("component", "scheduler")
	ctx = ctxlog.WithLogger(ctx, c.logger)

	tg, err := taskgraph.Build(ctx, specs)
	if err != nil {
		return nil, fmt.Errorf("failed to build task graph: %w", err)
	}
	bg, err := blockgraph.Build(ctx, tg)
	if err != nil {
		return nil, fmt.Errorf("failed to build block graph: %w", err)
	}
	c.init(bg)
	c.logger.Info("🗺️ Block graph ready.", "tasks", len(c.taskIDs), "blocks", bg.Len())

	runErr := c.run(ctx)

	final := c.snapshot()
	c.final.Store(&final)
	return c.results(), runErr
}

func (c *Core) init(bg *blockgraph.Graph) {
	c.reporter = status.NewReporter(c.cfg.ETAWindow, c.statusOut, c.logger)
	c.taskIDs = bg.Tasks().TopologicalOrder()
	for _, id := range c.taskIDs {
		t, _ := bg.Task(id)
		ts := &taskState{task: t, fingerprint: journal.Fingerprint(t)}
		c.tasks[id] = ts
		for _, b := range bg.Blocks(id) {
			c.blocks[b.Key] = &blockState{block: b, task: ts, waiting: len(b.Deps)}
			ts.total++
		}
	}
	for _, id := range c.taskIDs {
		for _, b := range bg.Blocks(id) {
			if bs := c.blocks[b.Key]; bs.waiting == 0 {
				c.promote = append(c.promote, bs)
			}
		}
	}
}

func (c *Core) run(ctx context.Context) error {
	c.drainPromotions(ctx)

	heartbeat := time.NewTicker(c.cfg.heartbeatCheckInterval())
	defer heartbeat.Stop()
	var statusC <-chan time.Time
	if c.cfg.StatusInterval > 0 {
		ticker := time.NewTicker(c.cfg.StatusInterval)
		defer ticker.Stop()
		statusC = ticker.C
	}

	for !c.allTerminal() {
		if ctx.Err() != nil {
			return c.abort(ctx)
		}
		c.dispatch(ctx)

		select {
		case <-ctx.Done():
			return c.abort(ctx)
		case ch := <-c.attach:
			c.addSession(ctx, ch)
		case ev := <-c.events:
			c.handleEvent(ctx, ev)
		case reply := <-c.snapshots:
			reply <- c.snapshot()
		case <-heartbeat.C:
			c.checkHeartbeats(ctx)
		case <-statusC:
			c.reporter.Report(c.snapshot())
		}

		c.drainPromotions(ctx)
		c.retireSessions(ctx)
	}

	c.logger.Info("🏁 All tasks finished.")
	c.shutdownAll(ctx)
	c.reporter.Report(c.snapshot())
	return nil
}

// abort stops dispatching, lets in-flight blocks finish within the drain
// timeout and fails whatever is left.
func (c *Core) abort(ctx context.Context) error {
	cause := ctx.Err()
	c.logger.Warn("⚠️ Distribution cancelled, draining in-flight blocks.",
		"in_flight", c.inFlight(), "drain_timeout", c.cfg.DrainTimeout)

	drainCtx := context.WithoutCancel(ctx)
	c.shutdownIdle(drainCtx)

	deadline := time.NewTimer(c.cfg.DrainTimeout)
	defer deadline.Stop()
drain:
	for c.inFlight() > 0 {
		select {
		case ev := <-c.events:
			c.handleEvent(drainCtx, ev)
		case ch := <-c.attach:
			_ = ch.Close()
		case reply := <-c.snapshots:
			reply <- c.snapshot()
		case <-deadline.C:
			c.logger.Warn("Drain timeout reached.", "in_flight", c.inFlight())
			break drain
		}
		c.shutdownIdle(drainCtx)
	}
	c.shutdownAll(drainCtx)

	for _, id := range c.taskIDs {
		if ts := c.tasks[id]; !ts.terminal() && ts.cause == nil {
			ts.cause = cause
		}
	}
	return cause
}

func (c *Core) allTerminal() bool {
	for _, ts := range c.tasks {
		if !ts.terminal() {
			return false
		}
	}
	return true
}

func (c *Core) inFlight() int {
	n := 0
	for _, s := range c.sessions {
		if s.assigned != nil {
			n++
		}
	}
	return n
}

func (c *Core) snapshot() status.Snapshot {
	snap := status.Snapshot{Time: c.now(), Workers: len(c.sessions)}
	for _, s := range c.sessions {
		if s.idle() {
			snap.Idle++
		}
	}

	live := make(map[string]*status.Counts, len(c.tasks))
	for _, b := range c.blocks {
		counts := live[b.task.task.ID]
		if counts == nil {
			counts = &status.Counts{}
			live[b.task.task.ID] = counts
		}
		switch b.state {
		case Pending:
			counts.Pending++
		case Ready:
			counts.Ready++
		case Assigned:
			counts.Assigned++
		case Running:
			counts.Running++
		}
	}

	for _, id := range c.taskIDs {
		ts := c.tasks[id]
		counts := status.Counts{Done: ts.done, Skipped: ts.skipped, Failed: ts.failed}
		if l := live[id]; l != nil {
			counts = counts.Add(*l)
		}
		snap.Tasks = append(snap.Tasks, status.TaskStatus{TaskID: id, State: ts.state(), Counts: counts})
	}
	if c.reporter != nil {
		c.reporter.Estimate(&snap)
	}
	return snap
}
