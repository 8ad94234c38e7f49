package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/specialistvlad/blockgrid/internal/channel"
	"github.com/specialistvlad/blockgrid/internal/ctxlog"
	"github.com/specialistvlad/blockgrid/internal/journal"
	"github.com/specialistvlad/blockgrid/internal/scheduler"
	"github.com/specialistvlad/blockgrid/internal/task"
	"github.com/specialistvlad/blockgrid/internal/transport/socketio"
	"github.com/specialistvlad/blockgrid/internal/worker"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrTasksFailed is returned when a run finished with failed tasks.
	ErrTasksFailed = errors.New("tasks failed")
	// ErrNoWorkers is returned when a run has neither in-process workers nor
	// a listener remote workers could connect to.
	ErrNoWorkers = errors.New("no workers configured")
)

// Run executes the app in its configured mode.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Info("🚀 Starting blockgrid.", "mode", a.config.Mode)

	g, gctx := errgroup.WithContext(ctx)
	runCtx, stop := context.WithCancel(gctx)
	defer stop()

	if a.config.HealthcheckPort > 0 {
		g.Go(func() error {
			return a.runHealthcheckServer(runCtx, a.config.HealthcheckPort)
		})
	}

	var runErr error
	g.Go(func() error {
		defer stop()
		switch a.config.Mode {
		case ModeWorker:
			runErr = a.runWorker(runCtx)
		default:
			runErr = a.runScheduler(runCtx)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	if runErr != nil {
		return runErr
	}
	a.logger.Info("✅ blockgrid finished successfully.")
	return nil
}

// runScheduler distributes every requested block and reports the outcome.
func (a *App) runScheduler(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)
	s := resolveSettings(a.config, a.model.Scheduler)

	specs, err := a.model.Specs(a.registry, a.config.Requests...)
	if err != nil {
		return err
	}
	tasks := collectTasks(specs)
	if err := a.registry.Validate(ctx, tasks); err != nil {
		return err
	}

	dedicated := 0
	for _, t := range tasks {
		dedicated += t.NumWorkers
	}
	if s.listen == "" && s.localWorkers == 0 && dedicated == 0 {
		return fmt.Errorf("%w: set local workers, per-task num_workers or a listen address", ErrNoWorkers)
	}

	opts := []scheduler.Option{
		scheduler.WithLogger(logger),
		scheduler.WithStatusOutput(a.outW),
	}
	if s.journal != "" {
		j, err := journal.Open(ctx, s.journal)
		if err != nil {
			return fmt.Errorf("failed to open journal: %w", err)
		}
		defer func() {
			if err := j.Close(); err != nil {
				logger.Warn("Failed to close journal.", "error", err)
			}
		}()
		logger.Info("📒 Journal opened.", "dsn", s.journal)
		opts = append(opts, scheduler.WithJournal(j))
	}
	core := scheduler.New(s.core, opts...)

	serveCtx, stopServing := context.WithCancel(ctx)
	defer stopServing()
	g, gctx := errgroup.WithContext(serveCtx)

	if s.listen != "" {
		sio := socketio.NewServer(gctx)
		g.Go(func() error { return a.runSchedulerServer(gctx, s.listen, core, sio) })
		g.Go(func() error { return core.Serve(gctx, sio) })
	}

	for _, t := range tasks {
		for i := 0; i < t.NumWorkers; i++ {
			a.startLocalWorker(gctx, g, core, fmt.Sprintf("local-%s-%d", t.ID, i), []string{t.ID}, s)
		}
	}
	for i := 0; i < s.localWorkers; i++ {
		a.startLocalWorker(gctx, g, core, fmt.Sprintf("local-%d", i), nil, s)
	}

	results, distErr := core.Distribute(gctx, specs)
	stopServing()
	serveErr := g.Wait()

	if results != nil {
		a.logSummary(ctx, results)
	}
	if distErr != nil {
		if serveErr != nil && errors.Is(distErr, context.Canceled) && ctx.Err() == nil {
			return serveErr
		}
		return distErr
	}
	if serveErr != nil {
		return serveErr
	}
	if !results.Succeeded() {
		return fmt.Errorf("%w: %s", ErrTasksFailed, strings.Join(results.FailedTasks(), ", "))
	}
	return nil
}

// startLocalWorker runs an in-process worker connected to core by a pipe.
func (a *App) startLocalWorker(ctx context.Context, g *errgroup.Group, core *scheduler.Core, id string, tasks []string, s settings) {
	schedEnd, workerEnd := channel.Pipe(id)
	core.Attach(schedEnd)
	w := worker.New(workerEnd, a.registry, worker.Config{
		ID:                id,
		Tasks:             tasks,
		HeartbeatInterval: s.heartbeatInterval,
	})
	g.Go(func() error {
		if err := w.Run(ctx); err != nil {
			// A lost local worker is the scheduler's business: its block is
			// reassigned.
			ctxlog.FromContext(ctx).Warn("Local worker stopped.", "worker", id, "error", err)
		}
		return nil
	})
}

// runWorker connects to a remote scheduler and processes blocks until it is
// told to shut down.
func (a *App) runWorker(ctx context.Context) error {
	ch, err := socketio.Dial(ctx, a.config.Connect, socketio.DialOptions{
		InsecureSkipVerify: a.config.InsecureSkipVerify,
	})
	if err != nil {
		return err
	}
	defer ch.Close()

	w := worker.New(ch, a.registry, worker.Config{
		ID:                a.config.WorkerID,
		Tasks:             a.config.Tasks,
		HeartbeatInterval: a.config.HeartbeatInterval,
	})
	err = w.Run(ctx)
	processed, failed := w.Stats()
	a.logger.Info("👷 Worker stopped.", "worker", w.ID(), "processed", processed, "failed", failed)
	return err
}

func (a *App) logSummary(ctx context.Context, results scheduler.Results) {
	logger := ctxlog.FromContext(ctx)
	var done, skipped, failed, orphaned int
	for _, r := range results {
		done += r.Done
		skipped += r.Skipped
		failed += r.Failed
		orphaned += r.Orphaned
	}
	logger.Info("🏁 Run finished.",
		"tasks", len(results),
		"failed_tasks", len(results.FailedTasks()),
		"blocks_done", done,
		"blocks_skipped", skipped,
		"blocks_failed", failed,
		"blocks_orphaned", orphaned,
	)
	for _, id := range results.FailedTasks() {
		r := results[id]
		attrs := []any{"task", id, "failed", r.Failed, "orphaned", r.Orphaned}
		if r.FailedBlock != nil {
			attrs = append(attrs, "block", r.FailedBlock.String())
		}
		if r.Cause != nil {
			attrs = append(attrs, "cause", r.Cause)
		}
		logger.Error("❌ Task failed.", attrs...)
	}
}

// collectTasks returns the requested tasks and everything they require,
// each once.
func collectTasks(specs []task.Spec) []*task.Task {
	seen := make(map[*task.Task]bool)
	var out []*task.Task
	var visit func(t *task.Task)
	visit = func(t *task.Task) {
		if t == nil || seen[t] {
			return
		}
		seen[t] = true
		out = append(out, t)
		for _, up := range t.Requires {
			visit(up)
		}
	}
	for _, s := range specs {
		visit(s.Task)
	}
	return out
}
