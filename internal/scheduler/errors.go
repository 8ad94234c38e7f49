package scheduler

import (
	"errors"
	"fmt"

	"github.com/specialistvlad/blockgrid/internal/protocol"
)

var (
	// ErrBlockProcess wraps failures reported by a worker.
	ErrBlockProcess = errors.New("block processing failed")
	// ErrWorkerDisconnected is the cause of blocks that lost their worker
	// too many times.
	ErrWorkerDisconnected = errors.New("worker disconnected")
	// ErrHeartbeatTimeout is the reason a silent session was evicted.
	ErrHeartbeatTimeout = errors.New("heartbeat timeout")
	// ErrUpstreamFailed is the cause of blocks failed by a dependency.
	ErrUpstreamFailed = errors.New("upstream block failed")
	// ErrVerifyFailed is reported when a post-run check rejects a block.
	ErrVerifyFailed = errors.New("block output failed verification")
	// ErrAlreadyStarted is returned by a second Distribute call on one Core.
	ErrAlreadyStarted = errors.New("scheduler: Distribute already called")
	// ErrNotRunning is returned by Snapshot before Distribute starts.
	ErrNotRunning = errors.New("scheduler: not running")

	errReleased = errors.New("worker released its session")
)

// BlockError describes why a block ended up FAILED.
type BlockError struct {
	Key      protocol.BlockKey
	Attempts int
	Cause    error
}

func (e *BlockError) Error() string {
	return fmt.Sprintf("block %s failed after %d attempt(s): %v", e.Key, e.Attempts, e.Cause)
}

func (e *BlockError) Unwrap() error { return e.Cause }
