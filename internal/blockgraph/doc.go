// Package blockgraph expands a task graph into blocks and the dependencies
// between them.
//
// # Why BlockGraph Exists
//
// Tasks describe work over whole regions, but workers process one block at a
// time. The block graph is where that translation happens: each requested
// region is snapped to its task's write grid, one Block is created per grid
// cell, and every block learns exactly which other blocks must finish before
// it may run.
//
// # Dependencies
//
// Two kinds of edges are created:
//
//   - Intra-task: neighbouring blocks of the same task whose halos overlap
//     must not run concurrently. Blocks are partitioned into conflict levels
//     (grid coordinate modulo a per-dimension stride) such that blocks of
//     the same level never overlap; a block depends on every conflicting
//     neighbour of an earlier level. This keeps the graph acyclic while still
//     ordering every conflicting pair.
//   - Cross-task: for a task edge A -> B, a B block depends on exactly the A
//     blocks whose write region intersects its read region.
//
// Upstream tasks that were not requested explicitly only get the blocks
// their downstream readers need.
//
// # Lifecycle
//
// A Graph is built once per distribution request and is read-only afterwards.
// The scheduler keeps its own mutable state per block.
package blockgraph
