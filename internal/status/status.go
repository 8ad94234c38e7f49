// Package status tracks progress of a distribution run and estimates its
// remaining time.
package status

import (
	"time"
)

// Counts is the number of blocks per state.
type Counts struct {
	Pending  int `json:"pending"`
	Ready    int `json:"ready"`
	Assigned int `json:"assigned"`
	Running  int `json:"running"`
	Done     int `json:"done"`
	Skipped  int `json:"skipped"`
	Failed   int `json:"failed"`
}

// Total returns the number of blocks counted.
func (c Counts) Total() int {
	return c.Pending + c.Ready + c.Assigned + c.Running + c.Done + c.Skipped + c.Failed
}

// Remaining returns the number of blocks not yet in a terminal state.
func (c Counts) Remaining() int {
	return c.Pending + c.Ready + c.Assigned + c.Running
}

// Add returns the component-wise sum.
func (c Counts) Add(o Counts) Counts {
	return Counts{
		Pending:  c.Pending + o.Pending,
		Ready:    c.Ready + o.Ready,
		Assigned: c.Assigned + o.Assigned,
		Running:  c.Running + o.Running,
		Done:     c.Done + o.Done,
		Skipped:  c.Skipped + o.Skipped,
		Failed:   c.Failed + o.Failed,
	}
}

// TaskState is the coarse state of a task.
type TaskState string

const (
	TaskRunning   TaskState = "RUNNING"
	TaskSucceeded TaskState = "SUCCEEDED"
	TaskFailed    TaskState = "FAILED"
)

// TaskStatus is the progress of one task.
type TaskStatus struct {
	TaskID string    `json:"task_id"`
	State  TaskState `json:"state"`
	Counts Counts    `json:"counts"`
}

// Snapshot is a point-in-time view of a run.
type Snapshot struct {
	Time    time.Time    `json:"time"`
	Tasks   []TaskStatus `json:"tasks"`
	Workers int          `json:"workers"`
	Idle    int          `json:"idle_workers"`

	// Rate is completed blocks per second over the trailing window.
	Rate float64 `json:"rate"`
	// ETA is nil while the rate is zero.
	ETA *time.Duration `json:"eta,omitempty"`
}

// Totals sums the counts of all tasks.
func (s Snapshot) Totals() Counts {
	var total Counts
	for _, ts := range s.Tasks {
		total = total.Add(ts.Counts)
	}
	return total
}
