package blockgraph

import (
	"maps"

	"github.com/specialistvlad/blockgrid/internal/protocol"
	"github.com/specialistvlad/blockgrid/internal/region"
	"github.com/specialistvlad/blockgrid/internal/task"
	"github.com/specialistvlad/blockgrid/internal/zorder"
)

// Block is one grid cell of a task. Blocks are immutable once the graph is
// built.
type Block struct {
	Key    protocol.BlockKey
	Coord  region.Coord
	Write  region.Region
	Read   region.Region
	Morton zorder.Code

	// Deps and Dependents are sorted by task id, then coordinate.
	Deps       []protocol.BlockKey
	Dependents []protocol.BlockKey

	level      int64
	depSet     map[protocol.BlockKey]struct{}
	dependents map[protocol.BlockKey]struct{}
}

func newBlock(taskID string, coord region.Coord, write, read region.Region) *Block {
	return &Block{
		Key:        protocol.NewBlockKey(taskID, coord),
		Coord:      coord,
		Write:      write,
		Read:       read,
		depSet:     make(map[protocol.BlockKey]struct{}),
		dependents: make(map[protocol.BlockKey]struct{}),
	}
}

// dependOn records that b waits for up.
func (b *Block) dependOn(up *Block) {
	b.depSet[up.Key] = struct{}{}
	up.dependents[b.Key] = struct{}{}
}

func (b *Block) freeze() {
	b.Deps = sortedKeys(b.depSet)
	b.Dependents = sortedKeys(b.dependents)
	b.depSet, b.dependents = nil, nil
}

// Descriptor builds the message a worker receives for this block.
func (b *Block) Descriptor(t *task.Task, attempt int) *protocol.BlockDescriptor {
	return &protocol.BlockDescriptor{
		TaskID:      b.Key.TaskID,
		Coord:       b.Coord.Clone(),
		ReadOffset:  b.Read.Offset(),
		ReadShape:   b.Read.Shape(),
		WriteOffset: b.Write.Offset(),
		WriteShape:  b.Write.Shape(),
		Processor:   t.Processor,
		Arguments:   maps.Clone(t.Arguments),
		Attempt:     attempt,
	}
}
