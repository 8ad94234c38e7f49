package print

import (
	"context"
	"fmt"
	"sort"

	"github.com/specialistvlad/blockgrid/internal/ctxlog"
	"github.com/specialistvlad/blockgrid/internal/protocol"
	"github.com/specialistvlad/blockgrid/internal/registry"
	"github.com/specialistvlad/blockgrid/internal/task"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// ProcessBlock prints the block geometry and its arguments.
func ProcessBlock(ctx context.Context, block *protocol.BlockDescriptor) error {
	ctxlog.FromContext(ctx).Info("Printing block", "block", block.Key().String())

	write, err := block.WriteRegion()
	if err != nil {
		return err
	}
	read, err := block.ReadRegion()
	if err != nil {
		return err
	}
	fmt.Printf("   %s write=%s read=%s attempt=%d\n", block.Key(), write, read, block.Attempt)

	// Sort keys for consistent output
	keys := make([]string, 0, len(block.Arguments))
	for k := range block.Arguments {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Printf("      %s = %q\n", k, block.Arguments[k])
	}
	return nil
}

// Register registers the processor with the registry.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterProcessor("print", task.ProcessorFunc(ProcessBlock))
}
