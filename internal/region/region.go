// Package region models axis-aligned boxes in N-dimensional integer space.
//
// A Region is an immutable value: every operation returns a new Region and
// never mutates its receiver or arguments. Regions are half-open, so a region
// with offset o and shape s covers the points p with o <= p < o+s in every
// dimension.
package region

import (
	"fmt"
	"strconv"
	"strings"
)

// Coord is a point (or a vector) in N-dimensional integer space.
type Coord []int64

// Dims returns the dimensionality of the coordinate.
func (c Coord) Dims() int { return len(c) }

// Clone returns an independent copy of c.
func (c Coord) Clone() Coord {
	if c == nil {
		return nil
	}
	out := make(Coord, len(c))
	copy(out, c)
	return out
}

// Add returns c+o component-wise. Both coordinates must share a dimensionality.
func (c Coord) Add(o Coord) Coord {
	out := make(Coord, len(c))
	for i := range c {
		out[i] = c[i] + o[i]
	}
	return out
}

// Sub returns c-o component-wise.
func (c Coord) Sub(o Coord) Coord {
	out := make(Coord, len(c))
	for i := range c {
		out[i] = c[i] - o[i]
	}
	return out
}

// Equal reports whether both coordinates have the same components.
func (c Coord) Equal(o Coord) bool {
	if len(c) != len(o) {
		return false
	}
	for i := range c {
		if c[i] != o[i] {
			return false
		}
	}
	return true
}

// Compare orders coordinates lexicographically. Shorter coordinates sort first.
func (c Coord) Compare(o Coord) int {
	for i := 0; i < len(c) && i < len(o); i++ {
		switch {
		case c[i] < o[i]:
			return -1
		case c[i] > o[i]:
			return 1
		}
	}
	switch {
	case len(c) < len(o):
		return -1
	case len(c) > len(o):
		return 1
	}
	return 0
}

// String renders the coordinate as comma separated components, e.g. "3,-1".
func (c Coord) String() string {
	parts := make([]string, len(c))
	for i, v := range c {
		parts[i] = strconv.FormatInt(v, 10)
	}
	return strings.Join(parts, ",")
}

// Zero returns the origin of the given dimensionality.
func Zero(dims int) Coord { return make(Coord, dims) }

// Region is an axis-aligned half-open box. The zero value is the empty
// zero-dimensional region.
type Region struct {
	offset Coord
	shape  Coord
}

// New builds a region from an offset and a shape. Shape components must be
// non-negative and both coordinates must share a dimensionality.
func New(offset, shape Coord) (Region, error) {
	if len(offset) != len(shape) {
		return Region{}, fmt.Errorf("offset has %d dimensions but shape has %d", len(offset), len(shape))
	}
	for i, s := range shape {
		if s < 0 {
			return Region{}, fmt.Errorf("shape component %d is negative (%d)", i, s)
		}
	}
	r := Region{offset: offset.Clone(), shape: shape.Clone()}
	if r.Empty() {
		return Empty(len(offset)), nil
	}
	return r, nil
}

// MustNew is like New but panics on invalid input. Intended for literals.
func MustNew(offset, shape Coord) Region {
	r, err := New(offset, shape)
	if err != nil {
		panic(err)
	}
	return r
}

// FromBounds builds the region [begin, end). Any dimension with end <= begin
// yields the empty region.
func FromBounds(begin, end Coord) (Region, error) {
	if len(begin) != len(end) {
		return Region{}, fmt.Errorf("begin has %d dimensions but end has %d", len(begin), len(end))
	}
	shape := make(Coord, len(begin))
	for i := range begin {
		if end[i] <= begin[i] {
			return Empty(len(begin)), nil
		}
		shape[i] = end[i] - begin[i]
	}
	return Region{offset: begin.Clone(), shape: shape}, nil
}

// Empty returns the distinguished empty region of the given dimensionality.
func Empty(dims int) Region {
	return Region{offset: Zero(dims), shape: Zero(dims)}
}

// Offset returns the lower corner of the region.
func (r Region) Offset() Coord { return r.offset.Clone() }

// Shape returns the extent of the region in every dimension.
func (r Region) Shape() Coord { return r.shape.Clone() }

// End returns the exclusive upper corner of the region.
func (r Region) End() Coord { return r.offset.Add(r.shape) }

// Dims returns the dimensionality of the region.
func (r Region) Dims() int { return len(r.shape) }

// Empty reports whether the region covers no points.
func (r Region) Empty() bool {
	if len(r.shape) == 0 {
		return true
	}
	for _, s := range r.shape {
		if s <= 0 {
			return true
		}
	}
	return false
}

// Size returns the number of points covered by the region.
func (r Region) Size() int64 {
	if r.Empty() {
		return 0
	}
	n := int64(1)
	for _, s := range r.shape {
		n *= s
	}
	return n
}

// Equal reports whether two regions cover the same points. All empty regions
// of the same dimensionality are equal.
func (r Region) Equal(o Region) bool {
	if r.Dims() != o.Dims() {
		return false
	}
	if r.Empty() || o.Empty() {
		return r.Empty() && o.Empty()
	}
	return r.offset.Equal(o.offset) && r.shape.Equal(o.shape)
}

// Contains reports whether o lies entirely within r. The empty region is
// contained in every region of the same dimensionality.
func (r Region) Contains(o Region) bool {
	if r.Dims() != o.Dims() {
		return false
	}
	if o.Empty() {
		return true
	}
	if r.Empty() {
		return false
	}
	rEnd, oEnd := r.End(), o.End()
	for i := range r.offset {
		if o.offset[i] < r.offset[i] || oEnd[i] > rEnd[i] {
			return false
		}
	}
	return true
}

// ContainsPoint reports whether p lies within r.
func (r Region) ContainsPoint(p Coord) bool {
	if r.Dims() != len(p) || r.Empty() {
		return false
	}
	end := r.End()
	for i := range p {
		if p[i] < r.offset[i] || p[i] >= end[i] {
			return false
		}
	}
	return true
}

// Intersect returns the overlap of r and o. Disjoint regions, or regions of
// different dimensionality, intersect to the empty region of r's dimensionality.
func (r Region) Intersect(o Region) Region {
	if r.Dims() != o.Dims() || r.Empty() || o.Empty() {
		return Empty(r.Dims())
	}
	rEnd, oEnd := r.End(), o.End()
	begin := make(Coord, r.Dims())
	end := make(Coord, r.Dims())
	for i := range begin {
		begin[i] = max(r.offset[i], o.offset[i])
		end[i] = min(rEnd[i], oEnd[i])
	}
	out, _ := FromBounds(begin, end)
	return out
}

// Intersects reports whether r and o share at least one point.
func (r Region) Intersects(o Region) bool {
	return !r.Intersect(o).Empty()
}

// Grow extends the region by lo below its offset and hi above its end.
// Negative amounts shrink it.
func (r Region) Grow(lo, hi Coord) Region {
	if r.Empty() {
		return r
	}
	begin := r.offset.Sub(lo)
	end := r.End().Add(hi)
	out, _ := FromBounds(begin, end)
	return out
}

// Shift translates the region by the given vector.
func (r Region) Shift(by Coord) Region {
	if r.Empty() {
		return r
	}
	return Region{offset: r.offset.Add(by), shape: r.shape.Clone()}
}

// Hull returns the smallest region containing both r and o.
func (r Region) Hull(o Region) Region {
	if r.Empty() {
		return o
	}
	if o.Empty() || r.Dims() != o.Dims() {
		return r
	}
	rEnd, oEnd := r.End(), o.End()
	begin := make(Coord, r.Dims())
	end := make(Coord, r.Dims())
	for i := range begin {
		begin[i] = min(r.offset[i], o.offset[i])
		end[i] = max(rEnd[i], oEnd[i])
	}
	out, _ := FromBounds(begin, end)
	return out
}

// String renders the region as a literal accepted by Parse, e.g. "[0:10,5:20]".
func (r Region) String() string {
	if r.Empty() {
		return fmt.Sprintf("[empty/%d]", r.Dims())
	}
	end := r.End()
	parts := make([]string, r.Dims())
	for i := range parts {
		parts[i] = fmt.Sprintf("%d:%d", r.offset[i], end[i])
	}
	return "[" + strings.Join(parts, ",") + "]"
}
