// Package worker is the worker side of a scheduling session.
//
// A Worker announces itself with REGISTER, asks for work with REQUEST_NEXT
// and then processes one assigned block at a time, reporting every outcome
// with BLOCK_DONE. A background goroutine sends heartbeats naming the block
// in progress so the scheduler can tell a slow block from a dead worker.
// The session ends when the scheduler sends SHUTDOWN or closes the channel;
// cancelling the worker's context sends RELEASE instead.
package worker
