package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/specialistvlad/blockgrid/internal/protocol"
)

// ExecutionRecord is the timing of the successful attempt at a block.
type ExecutionRecord struct {
	Start   time.Time
	End     time.Time
	Attempt int
}

// Recorder is a block processor for tests. It records every block it is
// given, in order, and can be told to sleep or fail.
type Recorder struct {
	// Delay is slept before each block returns.
	Delay time.Duration
	// Fail, when set, decides the outcome of each block.
	Fail func(block *protocol.BlockDescriptor) error

	mu      sync.Mutex
	order   []protocol.BlockKey
	records map[protocol.BlockKey]*ExecutionRecord
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{records: make(map[protocol.BlockKey]*ExecutionRecord)}
}

// ProcessBlock implements task.Processor.
func (r *Recorder) ProcessBlock(ctx context.Context, block *protocol.BlockDescriptor) error {
	start := time.Now()
	if r.Delay > 0 {
		select {
		case <-time.After(r.Delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	var err error
	if r.Fail != nil {
		err = r.Fail(block)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	key := block.Key()
	r.order = append(r.order, key)
	if err == nil {
		r.records[key] = &ExecutionRecord{Start: start, End: time.Now(), Attempt: block.Attempt}
	}
	return err
}

// Order returns the keys of all processed blocks, including failed
// attempts, in completion order.
func (r *Recorder) Order() []protocol.BlockKey {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]protocol.BlockKey(nil), r.order...)
}

// Record returns the timing of a successfully processed block.
func (r *Recorder) Record(key protocol.BlockKey) (*ExecutionRecord, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[key]
	return rec, ok
}

// Count returns how many times key was processed.
func (r *Recorder) Count(key protocol.BlockKey) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, k := range r.order {
		if k == key {
			n++
		}
	}
	return n
}
