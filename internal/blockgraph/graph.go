package blockgraph

import (
	"fmt"
	"sort"

	"github.com/specialistvlad/blockgrid/internal/protocol"
	"github.com/specialistvlad/blockgrid/internal/region"
	"github.com/specialistvlad/blockgrid/internal/task"
	"github.com/specialistvlad/blockgrid/internal/taskgraph"
)

// taskBlocks holds the blocks of one task, indexed by grid coordinate.
type taskBlocks struct {
	task   *task.Task
	cells  map[string]*Block
	sorted []*Block
	stride region.Coord
}

func (tb *taskBlocks) at(coord region.Coord) *Block {
	return tb.cells[coord.String()]
}

// Graph is the combined block dependency graph of a distribution request.
type Graph struct {
	tasks  *taskgraph.Graph
	blocks map[protocol.BlockKey]*Block
	byTask map[string]*taskBlocks
}

// Tasks returns the task graph the blocks were derived from.
func (g *Graph) Tasks() *taskgraph.Graph { return g.tasks }

// Task returns a task by id.
func (g *Graph) Task(id string) (*task.Task, bool) { return g.tasks.Task(id) }

// Len returns the total number of blocks.
func (g *Graph) Len() int { return len(g.blocks) }

// Block looks up a block by key.
func (g *Graph) Block(key protocol.BlockKey) (*Block, bool) {
	b, ok := g.blocks[key]
	return b, ok
}

// Blocks returns the blocks of a task in Z-order.
func (g *Graph) Blocks(taskID string) []*Block {
	tb, ok := g.byTask[taskID]
	if !ok {
		return nil
	}
	out := make([]*Block, len(tb.sorted))
	copy(out, tb.sorted)
	return out
}

// checkAcyclic verifies the combined graph with Kahn's algorithm.
func (g *Graph) checkAcyclic() error {
	indegree := make(map[protocol.BlockKey]int, len(g.blocks))
	var queue []protocol.BlockKey
	for key, b := range g.blocks {
		indegree[key] = len(b.Deps)
		if len(b.Deps) == 0 {
			queue = append(queue, key)
		}
	}
	visited := 0
	for len(queue) > 0 {
		key := queue[0]
		queue = queue[1:]
		visited++
		for _, next := range g.blocks[key].Dependents {
			indegree[next]--
			if indegree[next] == 0 {
				queue = append(queue, next)
			}
		}
	}
	if visited != len(g.blocks) {
		return fmt.Errorf("%w: %d of %d blocks are part of a block cycle",
			taskgraph.ErrCyclicDependency, len(g.blocks)-visited, len(g.blocks))
	}
	return nil
}

func sortedKeys(set map[protocol.BlockKey]struct{}) []protocol.BlockKey {
	out := make([]protocol.BlockKey, 0, len(set))
	for key := range set {
		out = append(out, key)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TaskID != out[j].TaskID {
			return out[i].TaskID < out[j].TaskID
		}
		return out[i].Coord < out[j].Coord
	})
	return out
}
