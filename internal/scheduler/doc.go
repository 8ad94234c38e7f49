// Package scheduler distributes the blocks of a set of tasks over a pool of
// long-lived worker sessions.
//
// # Why Scheduler Exists
//
// Starting a worker is expensive compared to processing one block, so
// workers connect once and are handed block after block over a persistent
// channel. The scheduler core decides which block goes to which idle worker,
// tracks every block through its lifecycle and reacts to completions,
// failures and lost workers.
//
// # How It Works
//
// A single control goroutine owns all mutable state. It waits on:
//   - newly attached channels (Attach, Serve),
//   - messages and disconnects forwarded by one reader goroutine per session,
//   - a heartbeat ticker that evicts silent sessions,
//   - a status ticker and snapshot requests,
//   - cancellation of the Distribute context.
//
// After every event the loop promotes blocks whose dependencies are done,
// optionally skipping those a Checker reports as already computed, and hands
// the lowest Z-order ready block to each idle session.
//
// # Block Lifecycle
//
//	PENDING -> READY -> ASSIGNED -> RUNNING -> DONE
//	               ^        |          |
//	               +--------+----------+   (failure with retries left, lost worker)
//	                        |          |
//	                        +-> FAILED <-+ (retries exhausted, upstream failed)
//
// A block enters RUNNING with the first heartbeat naming it. Failures are
// retried up to the task's MaxRetries. A lost worker puts its block back
// without using a retry until the block has been lost more than
// Config.DisconnectLimit times. A failed block fails every block that
// transitively depends on it, and with them their tasks; unrelated blocks
// keep running.
//
// # Relationship with Other Components
//
//   - taskgraph / blockgraph: built at the start of Distribute, read-only.
//   - zorder.Queue: the ready set.
//   - channel.Channel: one per worker session; the core never sees sockets.
//   - journal.Journal: optional record of completed blocks for resumed runs.
//   - status.Reporter: periodic progress and ETA.
package scheduler
