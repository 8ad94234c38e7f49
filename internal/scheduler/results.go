package scheduler

import (
	"sort"

	"github.com/specialistvlad/blockgrid/internal/protocol"
	"github.com/specialistvlad/blockgrid/internal/status"
)

// TaskResult is the outcome of one task.
type TaskResult struct {
	TaskID string
	// Status is SUCCEEDED or FAILED.
	Status status.TaskState
	Blocks int
	// Done counts processed blocks, Skipped blocks found already complete.
	Done    int
	Skipped int
	// Failed includes Orphaned, the blocks failed by an upstream failure.
	Failed   int
	Orphaned int

	FailedBlock *protocol.BlockKey
	Cause       error
}

// Results maps task ids to their outcome.
type Results map[string]*TaskResult

// Succeeded reports whether every task succeeded.
func (r Results) Succeeded() bool {
	for _, tr := range r {
		if tr.Status != status.TaskSucceeded {
			return false
		}
	}
	return true
}

// FailedTasks returns the sorted ids of failed tasks.
func (r Results) FailedTasks() []string {
	var out []string
	for id, tr := range r {
		if tr.Status != status.TaskSucceeded {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

func (c *Core) results() Results {
	out := make(Results, len(c.tasks))
	for id, ts := range c.tasks {
		tr := &TaskResult{
			TaskID:      id,
			Status:      status.TaskSucceeded,
			Blocks:      ts.total,
			Done:        ts.done,
			Skipped:     ts.skipped,
			Failed:      ts.failed,
			Orphaned:    ts.orphaned,
			FailedBlock: ts.failedBlock,
			Cause:       ts.cause,
		}
		if ts.state() != status.TaskSucceeded {
			tr.Status = status.TaskFailed
		}
		out[id] = tr
	}
	return out
}
