// Package registry maps the processor and checker names used in task files
// to their compiled Go implementations.
//
// Modules register themselves at startup through the Module interface. The
// scheduler side validates that every task names a known processor before
// any block is dispatched; the worker side resolves the processor of each
// block it is assigned.
package registry
