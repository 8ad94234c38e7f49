// Package task describes units of block-wise work: the region they cover,
// how that region is cut into blocks, and which processor handles each block.
package task

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/specialistvlad/blockgrid/internal/protocol"
	"github.com/specialistvlad/blockgrid/internal/region"
)

// DefaultMaxRetries is the retry budget applied by loaders when a task does
// not set one.
const DefaultMaxRetries = 2

// ErrInvalidTask is wrapped by every validation failure.
var ErrInvalidTask = errors.New("invalid task")

// Fit controls how blocks at the boundary of the total region are treated.
type Fit string

const (
	// FitOverhang keeps boundary blocks at full size even if they extend past
	// the total region.
	FitOverhang Fit = "overhang"
	// FitShrink clips boundary write regions to the total region.
	FitShrink Fit = "shrink"
	// FitValid drops blocks that are not fully inside the total region.
	FitValid Fit = "valid"
)

// ParseFit converts a configuration string into a Fit. Empty means overhang.
func ParseFit(s string) (Fit, error) {
	switch Fit(s) {
	case "", FitOverhang:
		return FitOverhang, nil
	case FitShrink, FitValid:
		return Fit(s), nil
	}
	return "", fmt.Errorf("%w: unknown fit %q (want overhang, shrink or valid)", ErrInvalidTask, s)
}

// Processor performs the user computation for one block. It runs on the
// worker side.
type Processor interface {
	ProcessBlock(ctx context.Context, block *protocol.BlockDescriptor) error
}

// ProcessorFunc adapts a function to the Processor interface.
type ProcessorFunc func(ctx context.Context, block *protocol.BlockDescriptor) error

func (f ProcessorFunc) ProcessBlock(ctx context.Context, block *protocol.BlockDescriptor) error {
	return f(ctx, block)
}

// Checker reports whether a block's output already exists. It runs on the
// scheduler side before dispatch and, when requested, after completion.
// Checks of different blocks may run concurrently.
type Checker interface {
	CheckBlock(ctx context.Context, block *protocol.BlockDescriptor) (bool, error)
}

// CheckerFunc adapts a function to the Checker interface.
type CheckerFunc func(ctx context.Context, block *protocol.BlockDescriptor) (bool, error)

func (f CheckerFunc) CheckBlock(ctx context.Context, block *protocol.BlockDescriptor) (bool, error) {
	return f(ctx, block)
}

// Task is a block-wise computation over TotalRegion. ReadRegion and
// WriteRegion are templates for a single block: the write template's shape is
// the grid cell size and its offset is the grid origin, while the read
// template must contain the write template. The difference between the two is
// the halo every block reads around its write region.
type Task struct {
	ID          string
	TotalRegion region.Region
	ReadRegion  region.Region
	WriteRegion region.Region

	// Processor names the registered processor that handles this task's blocks.
	Processor string
	Arguments map[string]string

	// Requires lists explicit upstream tasks.
	Requires []*Task
	// Inputs and Outputs name datasets; a task reading a dataset another task
	// writes depends on it when their regions overlap.
	Inputs  []string
	Outputs []string

	// ConflictFree disables intra-task ordering for tasks whose blocks never
	// read what a sibling writes.
	ConflictFree bool
	Fit          Fit
	MaxRetries   int

	Check          Checker
	VerifyAfterRun bool

	// NumWorkers is the number of in-process workers dedicated to this task.
	NumWorkers int
}

// Validate checks the geometry and settings of the task.
func (t *Task) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("%w: id cannot be empty", ErrInvalidTask)
	}
	dims := t.TotalRegion.Dims()
	if dims == 0 {
		return fmt.Errorf("%w: task %q has no total region", ErrInvalidTask, t.ID)
	}
	if t.ReadRegion.Dims() != dims || t.WriteRegion.Dims() != dims {
		return fmt.Errorf("%w: task %q mixes dimensionalities (total %d, read %d, write %d)",
			ErrInvalidTask, t.ID, dims, t.ReadRegion.Dims(), t.WriteRegion.Dims())
	}
	if t.WriteRegion.Empty() {
		return fmt.Errorf("%w: task %q has an empty write region", ErrInvalidTask, t.ID)
	}
	if !t.ReadRegion.Contains(t.WriteRegion) {
		return fmt.Errorf("%w: task %q read region %s does not contain write region %s",
			ErrInvalidTask, t.ID, t.ReadRegion, t.WriteRegion)
	}
	if t.MaxRetries < 0 {
		return fmt.Errorf("%w: task %q has negative max retries", ErrInvalidTask, t.ID)
	}
	if _, err := ParseFit(string(t.Fit)); err != nil {
		return err
	}
	return nil
}

// Halo returns how far a block reads below (lo) and above (hi) its write
// region in every dimension.
func (t *Task) Halo() (lo, hi region.Coord) {
	lo = t.WriteRegion.Offset().Sub(t.ReadRegion.Offset())
	hi = t.ReadRegion.End().Sub(t.WriteRegion.End())
	return lo, hi
}

// GridShape is the size of one block.
func (t *Task) GridShape() region.Coord { return t.WriteRegion.Shape() }

// GridOrigin anchors the block grid.
func (t *Task) GridOrigin() region.Coord { return t.WriteRegion.Offset() }

// FitPolicy returns the effective fit, defaulting to overhang.
func (t *Task) FitPolicy() Fit {
	if t.Fit == "" {
		return FitOverhang
	}
	return t.Fit
}

// ReadFootprint is everything the task may read: its total region grown by
// the halo.
func (t *Task) ReadFootprint() region.Region {
	lo, hi := t.Halo()
	return t.TotalRegion.Grow(lo, hi)
}

// Equivalent reports whether two task definitions describe the same work.
// Capability fields (Check) are compared by presence only.
func Equivalent(a, b *Task) bool {
	if a == b {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	if a.ID != b.ID || a.Processor != b.Processor ||
		!a.TotalRegion.Equal(b.TotalRegion) ||
		!a.ReadRegion.Equal(b.ReadRegion) ||
		!a.WriteRegion.Equal(b.WriteRegion) ||
		a.ConflictFree != b.ConflictFree ||
		a.FitPolicy() != b.FitPolicy() ||
		a.MaxRetries != b.MaxRetries ||
		a.VerifyAfterRun != b.VerifyAfterRun ||
		(a.Check == nil) != (b.Check == nil) {
		return false
	}
	if !slices.Equal(a.Inputs, b.Inputs) || !slices.Equal(a.Outputs, b.Outputs) {
		return false
	}
	if len(a.Arguments) != len(b.Arguments) {
		return false
	}
	for k, v := range a.Arguments {
		if bv, ok := b.Arguments[k]; !ok || bv != v {
			return false
		}
	}
	if len(a.Requires) != len(b.Requires) {
		return false
	}
	for i := range a.Requires {
		if a.Requires[i].ID != b.Requires[i].ID {
			return false
		}
	}
	return true
}

// Spec is one entry of a distribution request: a task and the sub-region of
// it that must be computed. A nil Request means the whole total region.
type Spec struct {
	Task    *Task
	Request *region.Region
}

// RequestRegion returns the requested region, defaulting to the total region.
func (s Spec) RequestRegion() region.Region {
	if s.Request == nil {
		return s.Task.TotalRegion
	}
	return *s.Request
}
