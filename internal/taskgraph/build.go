package taskgraph

import (
	"context"
	"fmt"
	"sort"

	"github.com/specialistvlad/blockgrid/internal/ctxlog"
	"github.com/specialistvlad/blockgrid/internal/task"
)

// Build collects every task reachable from specs, links explicit and inferred
// dependencies and validates that the result is acyclic.
func Build(ctx context.Context, specs []task.Spec) (*Graph, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Building task graph.", "specs", len(specs))

	g := newGraph()
	for i, spec := range specs {
		if spec.Task == nil {
			return nil, fmt.Errorf("spec %d has no task", i)
		}
		if err := g.collect(spec.Task); err != nil {
			return nil, err
		}
		if err := g.request(spec); err != nil {
			return nil, err
		}
	}

	if err := g.linkExplicit(); err != nil {
		return nil, err
	}
	inferred, err := g.linkInferred()
	if err != nil {
		return nil, err
	}
	if err := g.detectCycles(); err != nil {
		return nil, err
	}
	g.order = g.topologicalSort()

	logger.Debug("Task graph built.", "tasks", len(g.nodes), "requested", len(g.requested), "inferred_edges", inferred)
	return g, nil
}

// collect adds t and everything it transitively requires.
func (g *Graph) collect(t *task.Task) error {
	if t.ID == "" {
		return fmt.Errorf("%w: id cannot be empty", task.ErrInvalidTask)
	}
	if existing, ok := g.nodes[t.ID]; ok && existing.task == t {
		return nil
	}
	if err := g.addNode(t); err != nil {
		return err
	}
	for _, up := range t.Requires {
		if up == nil {
			return fmt.Errorf("%w: task %q requires a nil task", task.ErrInvalidTask, t.ID)
		}
		if err := g.collect(up); err != nil {
			return err
		}
	}
	return nil
}

// request records the explicit request of a spec. Requests for the same task
// are merged into their bounding hull.
func (g *Graph) request(spec task.Spec) error {
	r := spec.RequestRegion()
	prev, ok := g.requested[spec.Task.ID]
	if !ok {
		g.requested[spec.Task.ID] = r
		return nil
	}
	if prev.Dims() != r.Dims() {
		return fmt.Errorf("%w: task %q is requested with %d and %d dimensions",
			ErrConflictingDefinition, spec.Task.ID, prev.Dims(), r.Dims())
	}
	g.requested[spec.Task.ID] = prev.Hull(r)
	return nil
}

func (g *Graph) linkExplicit() error {
	for _, id := range sortedKeys(g.nodes) {
		for _, up := range g.nodes[id].task.Requires {
			if err := g.addEdge(up.ID, id); err != nil {
				return err
			}
		}
	}
	return nil
}

// linkInferred adds an edge A -> B when B reads a dataset A writes and B's
// read footprint overlaps A's total region. Tasks with invalid geometry are
// skipped here and reported by block enumeration.
func (g *Graph) linkInferred() (int, error) {
	ids := sortedKeys(g.nodes)
	count := 0
	for _, bID := range ids {
		b := g.nodes[bID].task
		if len(b.Inputs) == 0 || b.Validate() != nil {
			continue
		}
		footprint := b.ReadFootprint()
		for _, aID := range ids {
			if aID == bID {
				continue
			}
			a := g.nodes[aID].task
			if !sharesDataset(b.Inputs, a.Outputs) || a.Validate() != nil {
				continue
			}
			if !footprint.Intersects(a.TotalRegion) {
				continue
			}
			if _, exists := g.nodes[bID].deps[aID]; exists {
				continue
			}
			if err := g.addEdge(aID, bID); err != nil {
				return count, err
			}
			count++
		}
	}
	return count, nil
}

func sharesDataset(inputs, outputs []string) bool {
	for _, in := range inputs {
		for _, out := range outputs {
			if in == out {
				return true
			}
		}
	}
	return false
}

// detectCycles runs a depth-first search in sorted order and returns the
// first cycle found as a CycleError.
func (g *Graph) detectCycles() error {
	const (
		unvisited = iota
		inStack
		done
	)
	state := make(map[string]int, len(g.nodes))
	var stack []string

	var visit func(id string) error
	visit = func(id string) error {
		switch state[id] {
		case done:
			return nil
		case inStack:
			start := 0
			for i, s := range stack {
				if s == id {
					start = i
					break
				}
			}
			cycle := append([]string{}, stack[start:]...)
			cycle = append(cycle, id)
			return &CycleError{Cycle: cycle}
		}

		state[id] = inStack
		stack = append(stack, id)
		for _, next := range sortedKeys(g.nodes[id].dependents) {
			if err := visit(next); err != nil {
				return err
			}
		}
		stack = stack[:len(stack)-1]
		state[id] = done
		return nil
	}

	for _, id := range sortedKeys(g.nodes) {
		if state[id] == unvisited {
			if err := visit(id); err != nil {
				return err
			}
		}
	}
	return nil
}

// topologicalSort is Kahn's algorithm with a lexicographic tie-break.
func (g *Graph) topologicalSort() []string {
	indegree := make(map[string]int, len(g.nodes))
	var ready []string
	for id, n := range g.nodes {
		indegree[id] = len(n.deps)
		if len(n.deps) == 0 {
			ready = append(ready, id)
		}
	}
	sort.Strings(ready)

	order := make([]string, 0, len(g.nodes))
	for len(ready) > 0 {
		id := ready[0]
		ready = ready[1:]
		order = append(order, id)
		for _, next := range sortedKeys(g.nodes[id].dependents) {
			indegree[next]--
			if indegree[next] == 0 {
				i := sort.SearchStrings(ready, next)
				ready = append(ready, "")
				copy(ready[i+1:], ready[i:])
				ready[i] = next
			}
		}
	}
	return order
}
