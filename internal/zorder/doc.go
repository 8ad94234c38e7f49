// Package zorder orders blocks along a Z-order (Morton) curve.
//
// Dispatching ready blocks in Morton order keeps consecutively scheduled
// blocks spatially close, which improves cache and I/O locality on the
// workers. The ordering is a preference only: readiness always wins, and a
// block is never offered before its dependencies are done.
package zorder
