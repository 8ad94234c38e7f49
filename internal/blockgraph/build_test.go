package blockgraph

import (
	"context"
	"testing"

	"github.com/specialistvlad/blockgrid/internal/protocol"
	"github.com/specialistvlad/blockgrid/internal/region"
	"github.com/specialistvlad/blockgrid/internal/task"
	"github.com/specialistvlad/blockgrid/internal/taskgraph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func r1(begin, end int64) region.Region {
	return region.MustNew(region.Coord{begin}, region.Coord{end - begin})
}

func newTask1D(id string, total region.Region, block, haloLo, haloHi int64, requires ...*task.Task) *task.Task {
	return &task.Task{
		ID:          id,
		TotalRegion: total,
		WriteRegion: r1(0, block),
		ReadRegion:  r1(-haloLo, block+haloHi),
		Processor:   "print",
		Requires:    requires,
	}
}

func build(t *testing.T, specs ...task.Spec) *Graph {
	t.Helper()
	tg, err := taskgraph.Build(context.Background(), specs)
	require.NoError(t, err)
	g, err := Build(context.Background(), tg)
	require.NoError(t, err)
	return g
}

func key(taskID string, coord ...int64) protocol.BlockKey {
	return protocol.NewBlockKey(taskID, region.Coord(coord))
}

func TestIndependentBlocks(t *testing.T) {
	a := newTask1D("a", r1(0, 100), 10, 0, 0)
	g := build(t, task.Spec{Task: a})

	blocks := g.Blocks("a")
	require.Len(t, blocks, 10)
	for i, b := range blocks {
		assert.Equal(t, region.Coord{int64(i)}, b.Coord)
		assert.True(t, r1(int64(i)*10, int64(i)*10+10).Equal(b.Write))
		assert.True(t, b.Write.Equal(b.Read))
		assert.Empty(t, b.Deps)
		assert.Empty(t, b.Dependents)
	}
}

func TestRequestIsExpandedToGrid(t *testing.T) {
	a := newTask1D("a", r1(0, 100), 10, 0, 0)
	req := r1(5, 15)
	g := build(t, task.Spec{Task: a, Request: &req})

	blocks := g.Blocks("a")
	require.Len(t, blocks, 2)
	assert.True(t, r1(0, 10).Equal(blocks[0].Write))
	assert.True(t, r1(10, 20).Equal(blocks[1].Write))
}

// The write regions of a task tile its aligned request exactly: they are
// pairwise disjoint and their sizes add up to the aligned area.
func TestWriteRegionsTileAlignedRequest(t *testing.T) {
	testCases := []struct {
		name  string
		total region.Region
		write region.Region
		read  region.Region
		req   region.Region
	}{
		{
			name:  "exact multiple",
			total: region.MustNew(region.Coord{0, 0}, region.Coord{40, 30}),
			write: region.MustNew(region.Coord{0, 0}, region.Coord{10, 10}),
			read:  region.MustNew(region.Coord{-1, -1}, region.Coord{12, 12}),
			req:   region.MustNew(region.Coord{0, 0}, region.Coord{40, 30}),
		},
		{
			name:  "unaligned request",
			total: region.MustNew(region.Coord{0, 0}, region.Coord{100, 100}),
			write: region.MustNew(region.Coord{0, 0}, region.Coord{7, 9}),
			read:  region.MustNew(region.Coord{0, -3}, region.Coord{7, 12}),
			req:   region.MustNew(region.Coord{3, 11}, region.Coord{30, 41}),
		},
		{
			name:  "shifted origin and negative coordinates",
			total: region.MustNew(region.Coord{-50, -50}, region.Coord{100, 100}),
			write: region.MustNew(region.Coord{3, -2}, region.Coord{8, 5}),
			read:  region.MustNew(region.Coord{1, -4}, region.Coord{12, 9}),
			req:   region.MustNew(region.Coord{-17, -9}, region.Coord{33, 20}),
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			tk := &task.Task{ID: "t", TotalRegion: tc.total, WriteRegion: tc.write, ReadRegion: tc.read, Processor: "print"}
			req := tc.req
			g := build(t, task.Spec{Task: tk, Request: &req})

			aligned, err := region.AlignToGrid(tc.req, tc.write.Shape(), tc.write.Offset())
			require.NoError(t, err)

			blocks := g.Blocks("t")
			var total int64
			for i, a := range blocks {
				assert.True(t, aligned.Contains(a.Write), "block %s escapes %s", a.Write, aligned)
				total += a.Write.Size()
				for _, b := range blocks[i+1:] {
					assert.False(t, a.Write.Intersects(b.Write), "%s overlaps %s", a.Key, b.Key)
				}
				assert.True(t, tc.total.Contains(a.Read))
			}
			assert.Equal(t, aligned.Size(), total)
		})
	}
}

func TestCrossTaskDependenciesAreFineGrained(t *testing.T) {
	a := newTask1D("a", r1(0, 20), 5, 0, 0)
	b := newTask1D("b", r1(0, 20), 5, 1, 1, a)
	b.ConflictFree = true

	g := build(t, task.Spec{Task: b})

	assert.Equal(t, []protocol.BlockKey{key("a", 0), key("a", 1)}, mustBlock(t, g, key("b", 0)).Deps)
	assert.Equal(t, []protocol.BlockKey{key("a", 0), key("a", 1), key("a", 2)}, mustBlock(t, g, key("b", 1)).Deps)
	assert.Equal(t, []protocol.BlockKey{key("a", 2), key("a", 3)}, mustBlock(t, g, key("b", 3)).Deps)
	assert.Equal(t, []protocol.BlockKey{key("b", 0), key("b", 1)}, mustBlock(t, g, key("a", 0)).Dependents)
}

func TestUpstreamOnlyComputesNeededBlocks(t *testing.T) {
	a := newTask1D("a", r1(0, 100), 10, 0, 0)
	b := newTask1D("b", r1(0, 100), 10, 0, 2, a)
	req := r1(0, 20)

	g := build(t, task.Spec{Task: b, Request: &req})

	assert.Len(t, g.Blocks("b"), 2)
	// b[1] reads [10,22), so a needs cells 0..2.
	require.Len(t, g.Blocks("a"), 3)
	assert.Equal(t, 5, g.Len())
}

func TestIntraTaskHaloDependencies(t *testing.T) {
	a := newTask1D("a", r1(0, 40), 10, 1, 1)
	g := build(t, task.Spec{Task: a})

	assert.Empty(t, mustBlock(t, g, key("a", 0)).Deps)
	assert.Equal(t, []protocol.BlockKey{key("a", 0), key("a", 2)}, mustBlock(t, g, key("a", 1)).Deps)
	assert.Empty(t, mustBlock(t, g, key("a", 2)).Deps)
	assert.Equal(t, []protocol.BlockKey{key("a", 2)}, mustBlock(t, g, key("a", 3)).Deps)

	a.ConflictFree = true
	g = build(t, task.Spec{Task: a})
	for _, b := range g.Blocks("a") {
		assert.Empty(t, b.Deps)
	}
}

// Every pair of sibling blocks where one reads the other's output is ordered
// one way or the other, and the graph stays acyclic.
func TestIntraTaskConflictsAreAllOrdered(t *testing.T) {
	tk := &task.Task{
		ID:          "t",
		TotalRegion: region.MustNew(region.Coord{0, 0}, region.Coord{12, 12}),
		WriteRegion: region.MustNew(region.Coord{0, 0}, region.Coord{2, 3}),
		ReadRegion:  region.MustNew(region.Coord{0, -1}, region.Coord{5, 4}),
		Processor:   "print",
	}
	g := build(t, task.Spec{Task: tk})
	require.NoError(t, g.checkAcyclic())

	blocks := g.Blocks("t")
	for i, x := range blocks {
		for _, y := range blocks[i+1:] {
			conflict := x.Write.Intersects(y.Read) || y.Write.Intersects(x.Read)
			ordered := contains(x.Deps, y.Key) || contains(y.Deps, x.Key)
			assert.Equal(t, conflict, ordered, "%s vs %s", x.Key, y.Key)
		}
	}
}

func TestFitPolicies(t *testing.T) {
	testCases := []struct {
		fit       task.Fit
		count     int
		lastWrite region.Region
	}{
		{fit: task.FitOverhang, count: 3, lastWrite: r1(20, 30)},
		{fit: task.FitShrink, count: 3, lastWrite: r1(20, 25)},
		{fit: task.FitValid, count: 2, lastWrite: r1(10, 20)},
	}

	for _, tc := range testCases {
		t.Run(string(tc.fit), func(t *testing.T) {
			a := newTask1D("a", r1(0, 25), 10, 0, 0)
			a.Fit = tc.fit
			g := build(t, task.Spec{Task: a})

			blocks := g.Blocks("a")
			require.Len(t, blocks, tc.count)
			last := blocks[len(blocks)-1]
			assert.True(t, tc.lastWrite.Equal(last.Write), "want %s, got %s", tc.lastWrite, last.Write)
		})
	}
}

func TestBlocksAreInZOrder(t *testing.T) {
	tk := &task.Task{
		ID:          "t",
		TotalRegion: region.MustNew(region.Coord{0, 0}, region.Coord{20, 20}),
		WriteRegion: region.MustNew(region.Coord{0, 0}, region.Coord{10, 10}),
		ReadRegion:  region.MustNew(region.Coord{0, 0}, region.Coord{10, 10}),
		Processor:   "print",
	}
	g := build(t, task.Spec{Task: tk})

	var coords []string
	for _, b := range g.Blocks("t") {
		coords = append(coords, b.Key.Coord)
	}
	assert.Equal(t, []string{"0,0", "0,1", "1,0", "1,1"}, coords)
}

func TestUnalignableRequests(t *testing.T) {
	testCases := []struct {
		name string
		spec func() task.Spec
	}{
		{
			name: "request outside total region",
			spec: func() task.Spec {
				req := r1(90, 110)
				return task.Spec{Task: newTask1D("a", r1(0, 100), 10, 0, 0), Request: &req}
			},
		},
		{
			name: "read does not contain write",
			spec: func() task.Spec {
				a := newTask1D("a", r1(0, 100), 10, 0, 0)
				a.ReadRegion = r1(2, 8)
				return task.Spec{Task: a}
			},
		},
		{
			name: "request dimensionality",
			spec: func() task.Spec {
				req := region.MustNew(region.Coord{0, 0}, region.Coord{5, 5})
				return task.Spec{Task: newTask1D("a", r1(0, 100), 10, 0, 0), Request: &req}
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			tg, err := taskgraph.Build(context.Background(), []task.Spec{tc.spec()})
			require.NoError(t, err)
			_, err = Build(context.Background(), tg)
			require.ErrorIs(t, err, ErrUnalignableRequest)

			var ue *UnalignableRequestError
			require.ErrorAs(t, err, &ue)
			assert.Equal(t, "a", ue.TaskID)
		})
	}
}

func TestRequiresAcrossDimensionsIsRejected(t *testing.T) {
	a := newTask1D("a", r1(0, 100), 10, 0, 0)
	b := &task.Task{
		ID:          "b",
		TotalRegion: region.MustNew(region.Coord{0, 0}, region.Coord{20, 20}),
		WriteRegion: region.MustNew(region.Coord{0, 0}, region.Coord{10, 10}),
		ReadRegion:  region.MustNew(region.Coord{0, 0}, region.Coord{10, 10}),
		Processor:   "print",
		Requires:    []*task.Task{a},
	}
	tg, err := taskgraph.Build(context.Background(), []task.Spec{{Task: a}, {Task: b}})
	require.NoError(t, err)

	_, err = Build(context.Background(), tg)
	require.ErrorIs(t, err, ErrUnalignableRequest)
	require.ErrorIs(t, err, region.ErrUnalignable)
	var ue *UnalignableRequestError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, "b", ue.TaskID)
	assert.Contains(t, err.Error(), `requires task "a"`)
}

func TestDescriptor(t *testing.T) {
	a := newTask1D("a", r1(0, 30), 10, 2, 1)
	a.Arguments = map[string]string{"sigma": "1.5"}
	g := build(t, task.Spec{Task: a})

	d := mustBlock(t, g, key("a", 1)).Descriptor(a, 3)
	assert.Equal(t, "a", d.TaskID)
	assert.Equal(t, []int64{1}, d.Coord)
	assert.Equal(t, []int64{8}, d.ReadOffset)
	assert.Equal(t, []int64{13}, d.ReadShape)
	assert.Equal(t, []int64{10}, d.WriteOffset)
	assert.Equal(t, []int64{10}, d.WriteShape)
	assert.Equal(t, "print", d.Processor)
	assert.Equal(t, 3, d.Attempt)

	d.Arguments["sigma"] = "changed"
	assert.Equal(t, "1.5", a.Arguments["sigma"])
}

func mustBlock(t *testing.T, g *Graph, k protocol.BlockKey) *Block {
	t.Helper()
	b, ok := g.Block(k)
	require.True(t, ok, "block %s not found", k)
	return b
}

func contains(keys []protocol.BlockKey, k protocol.BlockKey) bool {
	for _, x := range keys {
		if x == k {
			return true
		}
	}
	return false
}
