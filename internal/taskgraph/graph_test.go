package taskgraph

import (
	"context"
	"errors"
	"testing"

	"github.com/specialistvlad/blockgrid/internal/region"
	"github.com/specialistvlad/blockgrid/internal/task"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTask(id string, total, block int64, requires ...*task.Task) *task.Task {
	return &task.Task{
		ID:          id,
		TotalRegion: region.MustNew(region.Coord{0}, region.Coord{total}),
		ReadRegion:  region.MustNew(region.Coord{0}, region.Coord{block}),
		WriteRegion: region.MustNew(region.Coord{0}, region.Coord{block}),
		Processor:   "print",
		Requires:    requires,
	}
}

func TestBuildExplicitEdges(t *testing.T) {
	a := newTask("a", 100, 10)
	b := newTask("b", 100, 10, a)
	c := newTask("c", 100, 10, b)

	g, err := Build(context.Background(), []task.Spec{{Task: c}})
	require.NoError(t, err)

	assert.Equal(t, 3, g.Len())
	assert.Equal(t, []string{"a", "b", "c"}, g.TopologicalOrder())
	assert.Equal(t, []string{"b"}, g.Upstream("c"))
	assert.Equal(t, []string{"b"}, g.Downstream("a"))
	assert.Empty(t, g.Upstream("a"))

	_, ok := g.Requested("c")
	assert.True(t, ok)
	_, ok = g.Requested("a")
	assert.False(t, ok, "ancestors are not explicitly requested")
}

func TestBuildSharedAncestorIsRepresentedOnce(t *testing.T) {
	root := newTask("root", 100, 10)
	left := newTask("left", 100, 10, root)
	right := newTask("right", 100, 10, root)

	g, err := Build(context.Background(), []task.Spec{{Task: left}, {Task: right}})
	require.NoError(t, err)

	assert.Equal(t, 3, g.Len())
	assert.Equal(t, []string{"left", "right"}, g.Downstream("root"))
	assert.Equal(t, []string{"root", "left", "right"}, g.TopologicalOrder())
}

func TestBuildMergesEquivalentDefinitions(t *testing.T) {
	a1 := newTask("a", 100, 10)
	a2 := newTask("a", 100, 10)
	b := newTask("b", 100, 10, a2)

	g, err := Build(context.Background(), []task.Spec{{Task: a1}, {Task: b}})
	require.NoError(t, err)
	assert.Equal(t, 2, g.Len())
}

func TestBuildRejectsConflictingDefinitions(t *testing.T) {
	a1 := newTask("a", 100, 10)
	a2 := newTask("a", 50, 10)

	_, err := Build(context.Background(), []task.Spec{{Task: a1}, {Task: a2}})
	assert.ErrorIs(t, err, ErrConflictingDefinition)
}

func TestBuildMergesRequests(t *testing.T) {
	a := newTask("a", 100, 10)
	r1 := region.MustNew(region.Coord{0}, region.Coord{10})
	r2 := region.MustNew(region.Coord{50}, region.Coord{10})

	g, err := Build(context.Background(), []task.Spec{{Task: a, Request: &r1}, {Task: a, Request: &r2}})
	require.NoError(t, err)

	req, ok := g.Requested("a")
	require.True(t, ok)
	assert.True(t, region.MustNew(region.Coord{0}, region.Coord{60}).Equal(req))
}

func TestBuildInfersEdgesFromDatasets(t *testing.T) {
	t.Run("overlapping regions", func(t *testing.T) {
		writer := newTask("writer", 100, 10)
		writer.Outputs = []string{"raw"}
		reader := newTask("reader", 100, 10)
		reader.Inputs = []string{"raw"}

		g, err := Build(context.Background(), []task.Spec{{Task: reader}, {Task: writer}})
		require.NoError(t, err)
		assert.Equal(t, []string{"writer"}, g.Upstream("reader"))
	})

	t.Run("halo reaches the neighbouring region", func(t *testing.T) {
		writer := newTask("writer", 10, 10)
		writer.Outputs = []string{"raw"}
		reader := newTask("reader", 10, 10)
		reader.TotalRegion = region.MustNew(region.Coord{10}, region.Coord{10})
		reader.ReadRegion = region.MustNew(region.Coord{-1}, region.Coord{12})
		reader.Inputs = []string{"raw"}

		g, err := Build(context.Background(), []task.Spec{{Task: reader}, {Task: writer}})
		require.NoError(t, err)
		assert.Equal(t, []string{"writer"}, g.Upstream("reader"))
	})

	t.Run("disjoint regions", func(t *testing.T) {
		writer := newTask("writer", 10, 10)
		writer.Outputs = []string{"raw"}
		reader := newTask("reader", 10, 10)
		reader.TotalRegion = region.MustNew(region.Coord{20}, region.Coord{10})
		reader.Inputs = []string{"raw"}

		g, err := Build(context.Background(), []task.Spec{{Task: reader}, {Task: writer}})
		require.NoError(t, err)
		assert.Empty(t, g.Upstream("reader"))
	})

	t.Run("different datasets", func(t *testing.T) {
		writer := newTask("writer", 100, 10)
		writer.Outputs = []string{"raw"}
		reader := newTask("reader", 100, 10)
		reader.Inputs = []string{"labels"}

		g, err := Build(context.Background(), []task.Spec{{Task: reader}, {Task: writer}})
		require.NoError(t, err)
		assert.Empty(t, g.Upstream("reader"))
	})
}

func TestBuildDetectsCycles(t *testing.T) {
	t.Run("explicit cycle", func(t *testing.T) {
		a := newTask("a", 100, 10)
		b := newTask("b", 100, 10, a)
		a.Requires = []*task.Task{b}

		_, err := Build(context.Background(), []task.Spec{{Task: a}})
		require.ErrorIs(t, err, ErrCyclicDependency)

		var ce *CycleError
		require.True(t, errors.As(err, &ce))
		assert.Equal(t, []string{"a", "b", "a"}, ce.Cycle)
		assert.ErrorContains(t, err, "a -> b -> a")
	})

	t.Run("self dependency", func(t *testing.T) {
		a := newTask("a", 100, 10)
		a.Requires = []*task.Task{a}

		_, err := Build(context.Background(), []task.Spec{{Task: a}})
		assert.ErrorIs(t, err, ErrCyclicDependency)
	})

	t.Run("cycle through inferred edge", func(t *testing.T) {
		a := newTask("a", 100, 10)
		a.Outputs = []string{"x"}
		b := newTask("b", 100, 10, a)
		b.Outputs = []string{"y"}
		a.Inputs = []string{"y"}

		_, err := Build(context.Background(), []task.Spec{{Task: b}})
		assert.ErrorIs(t, err, ErrCyclicDependency)
	})
}

func TestBuildRejectsNilTask(t *testing.T) {
	_, err := Build(context.Background(), []task.Spec{{}})
	assert.ErrorContains(t, err, "has no task")
}
