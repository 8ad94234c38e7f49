package scheduler

import (
	"github.com/specialistvlad/blockgrid/internal/blockgraph"
	"github.com/specialistvlad/blockgrid/internal/protocol"
	"github.com/specialistvlad/blockgrid/internal/status"
	"github.com/specialistvlad/blockgrid/internal/task"
)

// BlockState is the lifecycle state of a block.
type BlockState int

const (
	Pending BlockState = iota
	Ready
	Assigned
	Running
	Done
	Failed
)

func (s BlockState) String() string {
	switch s {
	case Pending:
		return "PENDING"
	case Ready:
		return "READY"
	case Assigned:
		return "ASSIGNED"
	case Running:
		return "RUNNING"
	case Done:
		return "DONE"
	case Failed:
		return "FAILED"
	}
	return "UNKNOWN"
}

// blockState is the scheduler's mutable record of one block.
type blockState struct {
	block *blockgraph.Block
	task  *taskState
	state BlockState

	// waiting is the number of dependencies not yet done.
	waiting     int
	retries     int
	disconnects int
	dispatches  int
	session     string
	// checking is set while a Checker call for the block is outstanding.
	checking bool
}

func (b *blockState) key() protocol.BlockKey { return b.block.Key }

func (b *blockState) inFlight() bool { return b.state == Assigned || b.state == Running }

// taskState aggregates the blocks of one task.
type taskState struct {
	task        *task.Task
	fingerprint uint64

	total    int
	done     int
	skipped  int
	failed   int
	orphaned int

	failedBlock *protocol.BlockKey
	cause       error
	reported    bool
}

func (t *taskState) terminal() bool {
	return t.done+t.skipped+t.failed == t.total
}

func (t *taskState) state() status.TaskState {
	switch {
	case t.failed > 0 || t.cause != nil:
		return status.TaskFailed
	case t.terminal():
		return status.TaskSucceeded
	}
	return status.TaskRunning
}
