// Package taskgraph resolves the dependencies between tasks of a single
// distribution request.
//
// # Why TaskGraph Exists
//
// Callers hand the scheduler a flat list of task specs, but tasks reference
// each other in two ways: explicitly, through Requires, and implicitly, when
// one task reads a dataset another task writes over an overlapping region. The
// task graph collects every task reachable from the request, deduplicates
// shared ancestors, adds both kinds of edges and rejects cycles before any
// block is created.
//
// # Edge Direction
//
// An edge A -> B means B depends on A: B's blocks may only run once the A
// blocks they read from are done. Upstream returns A for B; Downstream returns
// B for A.
//
// # Determinism
//
// Every listing (TopologicalOrder, Upstream, Downstream, cycle witnesses) is
// sorted, so repeated builds of the same request produce identical output.
package taskgraph
