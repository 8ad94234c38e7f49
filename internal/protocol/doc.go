// Package protocol defines the messages exchanged between the scheduler and
// its worker sessions.
//
// # Session Lifecycle
//
// A worker opens one long-lived session and reuses it for many blocks:
//
//	worker                         scheduler
//	  | REGISTER{worker_id, tasks}    |
//	  |------------------------------>|
//	  | REQUEST_NEXT                  |
//	  |------------------------------>|
//	  |             ASSIGN{block}     |
//	  |<------------------------------|
//	  | HEARTBEAT{key} (periodic)     |
//	  |------------------------------>|
//	  | BLOCK_DONE{key, outcome}      |
//	  |------------------------------>|
//	  | REQUEST_NEXT                  |
//	  |------------------------------>|
//	  |             SHUTDOWN          |
//	  |<------------------------------|
//
// The scheduler sends ASSIGN only in answer to an outstanding REQUEST_NEXT,
// and at most one block per request. BLOCK_DONE frees the session but does
// not ask for more work; a worker that stays silent after it receives
// nothing until SHUTDOWN.
//
// A worker that wants to leave early sends RELEASE. Messages are encoded as
// JSON so that every transport (in-process pipes, Socket.IO) carries the
// same representation.
package protocol
