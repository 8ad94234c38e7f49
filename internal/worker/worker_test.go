package worker

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/specialistvlad/blockgrid/internal/channel"
	"github.com/specialistvlad/blockgrid/internal/protocol"
	"github.com/specialistvlad/blockgrid/internal/region"
	"github.com/specialistvlad/blockgrid/internal/scheduler"
	"github.com/specialistvlad/blockgrid/internal/task"
	"github.com/specialistvlad/blockgrid/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testTimeout = 5 * time.Second

type processors map[string]task.Processor

func (p processors) Processor(name string) (task.Processor, bool) {
	proc, ok := p[name]
	return proc, ok
}

func recvKind(t *testing.T, ch channel.Channel, kind protocol.Kind) protocol.Message {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()
	for {
		msg, err := ch.Recv(ctx)
		require.NoError(t, err)
		if msg.Kind == protocol.Heartbeat && kind != protocol.Heartbeat {
			continue
		}
		require.Equal(t, kind, msg.Kind)
		return msg
	}
}

func send(t *testing.T, ch channel.Channel, msg protocol.Message) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()
	require.NoError(t, ch.Send(ctx, msg))
}

func runWorker(ctx context.Context, w *Worker) <-chan error {
	errc := make(chan error, 1)
	go func() { errc <- w.Run(ctx) }()
	return errc
}

func waitRun(t *testing.T, errc <-chan error) error {
	t.Helper()
	select {
	case err := <-errc:
		return err
	case <-time.After(testTimeout):
		t.Fatal("timed out waiting for worker")
		return nil
	}
}

func descriptor(processor string, coord int64) *protocol.BlockDescriptor {
	return &protocol.BlockDescriptor{
		TaskID:      "a",
		Coord:       []int64{coord},
		ReadOffset:  []int64{coord * 10},
		ReadShape:   []int64{10},
		WriteOffset: []int64{coord * 10},
		WriteShape:  []int64{10},
		Processor:   processor,
		Attempt:     1,
	}
}

func TestWorkerSessionLifecycle(t *testing.T) {
	ctx, _ := testutil.NewContext(t)
	server, client := channel.Pipe("w1")
	rec := testutil.NewRecorder()
	w := New(client, processors{"rec": rec}, Config{ID: "w1", Tasks: []string{"a"}, HeartbeatInterval: time.Hour})
	errc := runWorker(ctx, w)

	reg := recvKind(t, server, protocol.Register)
	assert.Equal(t, "w1", reg.WorkerID)
	assert.Equal(t, []string{"a"}, reg.Tasks)
	recvKind(t, server, protocol.RequestNext)

	block := descriptor("rec", 3)
	send(t, server, protocol.NewAssign(block))

	hb := recvKind(t, server, protocol.Heartbeat)
	require.NotNil(t, hb.Key)
	assert.Equal(t, block.Key(), *hb.Key)

	done := recvKind(t, server, protocol.BlockDone)
	assert.Equal(t, protocol.Success, done.Outcome)
	assert.Equal(t, block.Key(), *done.Key)
	recvKind(t, server, protocol.RequestNext)

	send(t, server, protocol.NewShutdown())
	require.NoError(t, waitRun(t, errc))
	assert.Equal(t, []protocol.BlockKey{block.Key()}, rec.Order())

	processed, failed := w.Stats()
	assert.Equal(t, 1, processed)
	assert.Zero(t, failed)
}

func TestWorkerReportsFailures(t *testing.T) {
	procs := processors{
		"fail": task.ProcessorFunc(func(context.Context, *protocol.BlockDescriptor) error {
			return errors.New("bad input")
		}),
		"panic": task.ProcessorFunc(func(context.Context, *protocol.BlockDescriptor) error {
			panic("index out of range")
		}),
	}
	testCases := []struct {
		name      string
		processor string
		wantErr   string
	}{
		{name: "error", processor: "fail", wantErr: "bad input"},
		{name: "panic", processor: "panic", wantErr: "processor panicked: index out of range"},
		{name: "unknown processor", processor: "render", wantErr: `unknown processor "render"`},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ctx, _ := testutil.NewContext(t)
			server, client := channel.Pipe("w")
			w := New(client, procs, Config{HeartbeatInterval: time.Hour})
			errc := runWorker(ctx, w)
			recvKind(t, server, protocol.Register)
			recvKind(t, server, protocol.RequestNext)

			send(t, server, protocol.NewAssign(descriptor(tc.processor, 0)))
			done := recvKind(t, server, protocol.BlockDone)
			assert.Equal(t, protocol.Failure, done.Outcome)
			assert.Contains(t, done.Error, tc.wantErr)

			// The worker keeps serving after a failure.
			recvKind(t, server, protocol.RequestNext)
			require.NoError(t, server.Close())
			require.NoError(t, waitRun(t, errc))

			_, failed := w.Stats()
			assert.Equal(t, 1, failed)
		})
	}
}

func TestWorkerReleasesOnCancel(t *testing.T) {
	ctx, _ := testutil.NewContext(t)
	ctx, cancel := context.WithCancel(ctx)
	server, client := channel.Pipe("w")
	w := New(client, processors{}, Config{HeartbeatInterval: time.Hour})
	errc := runWorker(ctx, w)

	recvKind(t, server, protocol.Register)
	recvKind(t, server, protocol.RequestNext)
	cancel()

	recvKind(t, server, protocol.Release)
	require.NoError(t, waitRun(t, errc))
}

func TestWorkerSendsHeartbeats(t *testing.T) {
	ctx, _ := testutil.NewContext(t)
	server, client := channel.Pipe("w")
	w := New(client, processors{}, Config{HeartbeatInterval: 10 * time.Millisecond})
	errc := runWorker(ctx, w)

	recvKind(t, server, protocol.Register)
	recvKind(t, server, protocol.RequestNext)
	for range 3 {
		hb := recvKind(t, server, protocol.Heartbeat)
		assert.Nil(t, hb.Key, "idle heartbeats name no block")
	}
	send(t, server, protocol.NewShutdown())
	require.NoError(t, waitRun(t, errc))
}

// A chain of two tasks with a halo, processed by a pool of workers over
// in-process pipes.
func TestWorkersCompleteChainedTasks(t *testing.T) {
	ctx, _ := testutil.NewContext(t)
	total := region.MustNew(region.Coord{0, 0}, region.Coord{40, 40})
	cell := region.MustNew(region.Coord{0, 0}, region.Coord{10, 10})
	halo := region.MustNew(region.Coord{-2, -2}, region.Coord{14, 14})
	up := &task.Task{ID: "smooth", TotalRegion: total, ReadRegion: cell, WriteRegion: cell, Processor: "rec"}
	down := &task.Task{ID: "edges", TotalRegion: total, ReadRegion: halo, WriteRegion: cell, Processor: "rec", Requires: []*task.Task{up}}

	rec := testutil.NewRecorder()
	rec.Delay = time.Millisecond
	procs := processors{"rec": rec}

	core := scheduler.New(scheduler.Config{StatusInterval: -1})
	var errcs []<-chan error
	for i := range 4 {
		server, client := channel.Pipe(fmt.Sprintf("w%d", i))
		core.Attach(server)
		errcs = append(errcs, runWorker(ctx, New(client, procs, Config{HeartbeatInterval: 50 * time.Millisecond})))
	}

	results, err := core.Distribute(ctx, []task.Spec{{Task: up}, {Task: down}})
	require.NoError(t, err)
	for _, errc := range errcs {
		require.NoError(t, waitRun(t, errc))
	}

	require.True(t, results.Succeeded())
	assert.Equal(t, 16, results["smooth"].Done)
	assert.Equal(t, 16, results["edges"].Done)

	// Every downstream block starts after the upstream blocks under its halo end.
	for x := int64(0); x < 4; x++ {
		for y := int64(0); y < 4; y++ {
			downRec, ok := rec.Record(protocol.NewBlockKey("edges", region.Coord{x, y}))
			require.True(t, ok)
			for ux := max(x-1, 0); ux <= min(x+1, 3); ux++ {
				for uy := max(y-1, 0); uy <= min(y+1, 3); uy++ {
					upRec, ok := rec.Record(protocol.NewBlockKey("smooth", region.Coord{ux, uy}))
					require.True(t, ok)
					assert.False(t, downRec.Start.Before(upRec.End),
						"edges[%d,%d] started before smooth[%d,%d] ended", x, y, ux, uy)
				}
			}
		}
	}
}
