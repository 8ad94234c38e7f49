package taskgraph

import (
	"fmt"
	"sort"

	"github.com/specialistvlad/blockgrid/internal/region"
	"github.com/specialistvlad/blockgrid/internal/task"
)

// node is a single task in the graph along with its adjacency sets.
type node struct {
	task       *task.Task
	deps       map[string]*node
	dependents map[string]*node
}

// Graph is an immutable task dependency graph. It is safe for concurrent reads.
type Graph struct {
	nodes     map[string]*node
	requested map[string]region.Region
	order     []string
}

func newGraph() *Graph {
	return &Graph{
		nodes:     make(map[string]*node),
		requested: make(map[string]region.Region),
	}
}

// addNode registers a task. Adding the same definition twice is a no-op;
// adding a different definition under an existing id is an error.
func (g *Graph) addNode(t *task.Task) error {
	if existing, ok := g.nodes[t.ID]; ok {
		if !task.Equivalent(existing.task, t) {
			return fmt.Errorf("%w: task %q is defined more than once", ErrConflictingDefinition, t.ID)
		}
		return nil
	}
	g.nodes[t.ID] = &node{
		task:       t,
		deps:       make(map[string]*node),
		dependents: make(map[string]*node),
	}
	return nil
}

// addEdge records that toID depends on fromID.
func (g *Graph) addEdge(fromID, toID string) error {
	if fromID == toID {
		return &CycleError{Cycle: []string{fromID, fromID}}
	}
	fromNode, ok := g.nodes[fromID]
	if !ok {
		return fmt.Errorf("source task not found: %s", fromID)
	}
	toNode, ok := g.nodes[toID]
	if !ok {
		return fmt.Errorf("destination task not found: %s", toID)
	}
	toNode.deps[fromID] = fromNode
	fromNode.dependents[toID] = toNode
	return nil
}

// Len returns the number of tasks in the graph.
func (g *Graph) Len() int { return len(g.nodes) }

// Task returns the task with the given id.
func (g *Graph) Task(id string) (*task.Task, bool) {
	n, ok := g.nodes[id]
	if !ok {
		return nil, false
	}
	return n.task, true
}

// Tasks returns every task in topological order.
func (g *Graph) Tasks() []*task.Task {
	out := make([]*task.Task, 0, len(g.order))
	for _, id := range g.order {
		out = append(out, g.nodes[id].task)
	}
	return out
}

// TopologicalOrder returns task ids so that every task follows its upstream
// tasks. Ties are broken lexicographically.
func (g *Graph) TopologicalOrder() []string {
	out := make([]string, len(g.order))
	copy(out, g.order)
	return out
}

// Upstream returns the sorted ids of the tasks id depends on.
func (g *Graph) Upstream(id string) []string {
	n, ok := g.nodes[id]
	if !ok {
		return nil
	}
	return sortedKeys(n.deps)
}

// Downstream returns the sorted ids of the tasks depending on id.
func (g *Graph) Downstream(id string) []string {
	n, ok := g.nodes[id]
	if !ok {
		return nil
	}
	return sortedKeys(n.dependents)
}

// Requested returns the explicit request for a task. Tasks pulled in only as
// ancestors of requested tasks report false.
func (g *Graph) Requested(id string) (region.Region, bool) {
	r, ok := g.requested[id]
	return r, ok
}

func sortedKeys(m map[string]*node) []string {
	out := make([]string, 0, len(m))
	for id := range m {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
