package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/specialistvlad/blockgrid/internal/channel"
	"github.com/specialistvlad/blockgrid/internal/protocol"
	"github.com/specialistvlad/blockgrid/internal/region"
	"github.com/specialistvlad/blockgrid/internal/task"
	"github.com/stretchr/testify/require"
)

const testTimeout = 5 * time.Second

func r1(begin, end int64) region.Region {
	return region.MustNew(region.Coord{begin}, region.Coord{end - begin})
}

func newTask1D(id string, total region.Region, block, halo int64, requires ...*task.Task) *task.Task {
	return &task.Task{
		ID:          id,
		TotalRegion: total,
		WriteRegion: r1(0, block),
		ReadRegion:  r1(-halo, block+halo),
		Processor:   "test",
		Requires:    requires,
		MaxRetries:  task.DefaultMaxRetries,
	}
}

func key(taskID string, coord ...int64) protocol.BlockKey {
	return protocol.NewBlockKey(taskID, region.Coord(coord))
}

type outcome struct {
	results Results
	err     error
}

func start(ctx context.Context, core *Core, tasks ...*task.Task) <-chan outcome {
	specs := make([]task.Spec, len(tasks))
	for i, t := range tasks {
		specs[i] = task.Spec{Task: t}
	}
	out := make(chan outcome, 1)
	go func() {
		results, err := core.Distribute(ctx, specs)
		out <- outcome{results: results, err: err}
	}()
	return out
}

func wait(t *testing.T, out <-chan outcome) outcome {
	t.Helper()
	select {
	case o := <-out:
		return o
	case <-time.After(testTimeout):
		t.Fatal("timed out waiting for Distribute to return")
		return outcome{}
	}
}

// scriptedWorker drives the worker side of a pipe by hand.
type scriptedWorker struct {
	t  *testing.T
	ch channel.Channel
}

func connect(t *testing.T, core *Core, id string, tasks ...string) *scriptedWorker {
	t.Helper()
	server, worker := channel.Pipe(id)
	core.Attach(server)
	w := &scriptedWorker{t: t, ch: worker}
	// A core that already finished closes the channel straight away.
	w.trySend(protocol.NewRegister(id, tasks))
	w.trySend(protocol.NewRequestNext())
	return w
}

func (w *scriptedWorker) trySend(msg protocol.Message) {
	w.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()
	if err := w.ch.Send(ctx, msg); err != nil {
		require.ErrorIs(w.t, err, channel.ErrClosed)
	}
}

func (w *scriptedWorker) send(msg protocol.Message) {
	w.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()
	require.NoError(w.t, w.ch.Send(ctx, msg))
}

func (w *scriptedWorker) recv() (protocol.Message, error) {
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()
	return w.ch.Recv(ctx)
}

func (w *scriptedWorker) expectAssign() *protocol.BlockDescriptor {
	w.t.Helper()
	msg, err := w.recv()
	require.NoError(w.t, err)
	require.Equal(w.t, protocol.Assign, msg.Kind)
	require.NotNil(w.t, msg.Block)
	return msg.Block
}

func (w *scriptedWorker) expectShutdown() {
	w.t.Helper()
	msg, err := w.recv()
	require.NoError(w.t, err)
	require.Equal(w.t, protocol.Shutdown, msg.Kind)
}

func (w *scriptedWorker) expectClosed() {
	w.t.Helper()
	_, err := w.recv()
	require.ErrorIs(w.t, err, channel.ErrClosed)
}

// finish reports the outcome of block and asks for the next one. The
// scheduler may already have closed the session by the time it is asked.
func (w *scriptedWorker) finish(block *protocol.BlockDescriptor, procErr error) {
	w.t.Helper()
	k := block.Key()
	w.send(protocol.NewHeartbeat(&k))
	w.send(protocol.NewBlockDone(k, procErr))
	w.trySend(protocol.NewRequestNext())
}

// serve processes assignments in the background until the scheduler shuts
// the session down.
func (w *scriptedWorker) serve(process func(*protocol.BlockDescriptor) error) <-chan error {
	errc := make(chan error, 1)
	go func() {
		ctx := context.Background()
		for {
			msg, err := w.ch.Recv(ctx)
			if errors.Is(err, channel.ErrClosed) {
				errc <- nil
				return
			}
			if err != nil {
				errc <- err
				return
			}
			switch msg.Kind {
			case protocol.Shutdown:
				errc <- nil
				return
			case protocol.Assign:
				k := msg.Block.Key()
				_ = w.ch.Send(ctx, protocol.NewHeartbeat(&k))
				procErr := process(msg.Block)
				if err := w.ch.Send(ctx, protocol.NewBlockDone(k, procErr)); err != nil {
					errc <- nil
					return
				}
				_ = w.ch.Send(ctx, protocol.NewRequestNext())
			}
		}
	}()
	return errc
}

func waitServed(t *testing.T, errcs ...<-chan error) {
	t.Helper()
	for _, errc := range errcs {
		select {
		case err := <-errc:
			require.NoError(t, err)
		case <-time.After(testTimeout):
			t.Fatal("timed out waiting for worker to stop")
		}
	}
}

func keys(blocks []*protocol.BlockDescriptor) []protocol.BlockKey {
	out := make([]protocol.BlockKey, len(blocks))
	for i, b := range blocks {
		out[i] = b.Key()
	}
	return out
}
