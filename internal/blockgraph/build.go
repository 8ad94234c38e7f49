package blockgraph

import (
	"context"
	"fmt"
	"sort"

	"github.com/specialistvlad/blockgrid/internal/ctxlog"
	"github.com/specialistvlad/blockgrid/internal/protocol"
	"github.com/specialistvlad/blockgrid/internal/region"
	"github.com/specialistvlad/blockgrid/internal/task"
	"github.com/specialistvlad/blockgrid/internal/taskgraph"
	"github.com/specialistvlad/blockgrid/internal/zorder"
)

// Build enumerates the blocks of every task in tg and links their
// dependencies.
func Build(ctx context.Context, tg *taskgraph.Graph) (*Graph, error) {
	logger := ctxlog.FromContext(ctx)
	g := &Graph{
		tasks:  tg,
		blocks: make(map[protocol.BlockKey]*Block),
		byTask: make(map[string]*taskBlocks),
	}

	// Downstream tasks first, so every task knows what its readers need.
	order := tg.TopologicalOrder()
	for i := len(order) - 1; i >= 0; i-- {
		t, _ := tg.Task(order[i])
		tb, err := g.enumerate(t)
		if err != nil {
			return nil, err
		}
		g.byTask[t.ID] = tb
		for _, b := range tb.sorted {
			g.blocks[b.Key] = b
		}
	}

	edges := 0
	for _, id := range order {
		tb := g.byTask[id]
		assignMorton(tb)
		edges += linkIntra(tb)
		for _, upID := range tg.Upstream(id) {
			edges += linkCross(g.byTask[upID], tb)
		}
	}
	for _, b := range g.blocks {
		b.freeze()
	}
	for _, tb := range g.byTask {
		sort.Slice(tb.sorted, func(i, j int) bool {
			if c := tb.sorted[i].Morton.Compare(tb.sorted[j].Morton); c != 0 {
				return c < 0
			}
			return tb.sorted[i].Coord.Compare(tb.sorted[j].Coord) < 0
		})
	}

	if err := g.checkAcyclic(); err != nil {
		return nil, err
	}
	logger.Debug("Block graph built.", "tasks", len(g.byTask), "blocks", len(g.blocks), "edges", edges)
	return g, nil
}

func unalignable(t *task.Task, req region.Region, format string, args ...any) error {
	return &UnalignableRequestError{TaskID: t.ID, Request: req, Err: fmt.Errorf(format, args...)}
}

// enumerate creates the blocks of one task: the cells covering its explicit
// request plus the cells downstream readers need.
func (g *Graph) enumerate(t *task.Task) (*taskBlocks, error) {
	req, requested := g.tasks.Requested(t.ID)
	if !requested {
		req = region.Empty(t.TotalRegion.Dims())
	}
	if err := t.Validate(); err != nil {
		return nil, &UnalignableRequestError{TaskID: t.ID, Request: req, Err: err}
	}

	shape, origin := t.GridShape(), t.GridOrigin()
	cells := make(map[string]region.Coord)
	cover := func(r region.Region) error {
		lo, hi, err := region.CellsCovering(r, shape, origin)
		if err != nil {
			return err
		}
		region.ForEachCell(lo, hi, func(c region.Coord) bool {
			cells[c.String()] = c
			return true
		})
		return nil
	}

	if requested {
		if req.Dims() != t.TotalRegion.Dims() {
			return nil, unalignable(t, req, "%w: request has %d dimensions, task has %d",
				region.ErrUnalignable, req.Dims(), t.TotalRegion.Dims())
		}
		if !t.TotalRegion.Contains(req) {
			return nil, unalignable(t, req, "request lies outside total region %s", t.TotalRegion)
		}
		aligned, err := region.AlignToGrid(req, shape, origin)
		if err != nil {
			return nil, &UnalignableRequestError{TaskID: t.ID, Request: req, Err: err}
		}
		if err := cover(aligned); err != nil {
			return nil, &UnalignableRequestError{TaskID: t.ID, Request: req, Err: err}
		}
	}
	for _, downID := range g.tasks.Downstream(t.ID) {
		down := g.byTask[downID]
		if dims := down.task.TotalRegion.Dims(); dims != t.TotalRegion.Dims() {
			downReq, ok := g.tasks.Requested(downID)
			if !ok {
				downReq = region.Empty(dims)
			}
			return nil, unalignable(down.task, downReq, "%w: requires task %q with %d dimensions, task has %d",
				region.ErrUnalignable, t.ID, t.TotalRegion.Dims(), dims)
		}
		for _, b := range down.sorted {
			need := b.Read.Intersect(t.TotalRegion)
			if need.Empty() {
				continue
			}
			if err := cover(need); err != nil {
				return nil, &UnalignableRequestError{TaskID: t.ID, Request: req, Err: err}
			}
		}
	}

	tb := &taskBlocks{task: t, cells: make(map[string]*Block, len(cells)), stride: conflictStride(t)}
	haloLo, haloHi := t.Halo()
	for _, c := range cells {
		cell := region.Cell(c, shape, origin)
		write := cell
		switch t.FitPolicy() {
		case task.FitShrink:
			write = cell.Intersect(t.TotalRegion)
			if write.Empty() {
				continue
			}
		case task.FitValid:
			if !t.TotalRegion.Contains(cell) {
				continue
			}
		}
		read := write.Grow(haloLo, haloHi).Intersect(t.TotalRegion)
		b := newBlock(t.ID, c, write, read)
		b.level = conflictLevel(c, tb.stride)
		tb.cells[c.String()] = b
		tb.sorted = append(tb.sorted, b)
	}
	return tb, nil
}

// conflictStride returns, per dimension, the smallest number of cells k such
// that cells k apart never overlap through their halos.
func conflictStride(t *task.Task) region.Coord {
	lo, hi := t.Halo()
	w := t.GridShape()
	stride := make(region.Coord, len(w))
	for d := range w {
		stride[d] = region.CeilDiv(w[d]+max(lo[d], hi[d]), w[d])
	}
	return stride
}

// conflictLevel numbers the residue class of a cell modulo the stride.
func conflictLevel(c, stride region.Coord) int64 {
	var level int64
	for d := range c {
		level = level*stride[d] + region.FloorMod(c[d], stride[d])
	}
	return level
}

// assignMorton computes Z-order codes relative to the task's lowest cell.
func assignMorton(tb *taskBlocks) {
	if len(tb.sorted) == 0 {
		return
	}
	minCoord := tb.sorted[0].Coord.Clone()
	for _, b := range tb.sorted {
		for d, v := range b.Coord {
			minCoord[d] = min(minCoord[d], v)
		}
	}
	for _, b := range tb.sorted {
		comps := make([]uint64, len(b.Coord))
		for d, v := range b.Coord {
			comps[d] = uint64(v - minCoord[d])
		}
		b.Morton = zorder.Encode(comps)
	}
}

// linkIntra orders every pair of sibling blocks where one reads what the
// other writes. The block of the lower conflict level goes first.
func linkIntra(tb *taskBlocks) int {
	t := tb.task
	if t.ConflictFree {
		return 0
	}
	lo, hi := t.Halo()
	reach := make(region.Coord, len(lo))
	nonZero := false
	for d := range lo {
		reach[d] = max(lo[d], hi[d])
		nonZero = nonZero || reach[d] > 0
	}
	if !nonZero {
		return 0
	}

	edges := 0
	shape, origin := t.GridShape(), t.GridOrigin()
	for _, x := range tb.sorted {
		cellLo, cellHi, err := region.CellsCovering(x.Write.Grow(reach, reach), shape, origin)
		if err != nil {
			continue
		}
		region.ForEachCell(cellLo, cellHi, func(c region.Coord) bool {
			y := tb.at(c)
			if y == nil || y == x || y.level >= x.level {
				return true
			}
			if y.Write.Intersects(x.Read) || x.Write.Intersects(y.Read) {
				x.dependOn(y)
				edges++
			}
			return true
		})
	}
	return edges
}

// linkCross makes every block of down depend on the blocks of up whose write
// region intersects its read region. enumerate has already rejected tasks of
// different dimensionality.
func linkCross(up, down *taskBlocks) int {
	edges := 0
	shape, origin := up.task.GridShape(), up.task.GridOrigin()
	for _, b := range down.sorted {
		lo, hi, err := region.CellsCovering(b.Read, shape, origin)
		if err != nil {
			continue
		}
		region.ForEachCell(lo, hi, func(c region.Coord) bool {
			if a := up.at(c); a != nil && a.Write.Intersects(b.Read) {
				b.dependOn(a)
				edges++
			}
			return true
		})
	}
	return edges
}
