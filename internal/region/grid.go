package region

import (
	"errors"
	"fmt"
)

// ErrUnalignable is returned when a region cannot be snapped to a grid.
var ErrUnalignable = errors.New("region cannot be aligned to grid")

// FloorDiv divides rounding towards negative infinity.
func FloorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

// CeilDiv divides rounding towards positive infinity.
func CeilDiv(a, b int64) int64 {
	return -FloorDiv(-a, b)
}

// FloorMod returns a mod b in the range [0, b) for positive b.
func FloorMod(a, b int64) int64 {
	return a - FloorDiv(a, b)*b
}

func checkGrid(dims int, gridShape, gridOrigin Coord) error {
	if len(gridShape) != dims || len(gridOrigin) != dims {
		return fmt.Errorf("%w: region has %d dimensions, grid shape %d, grid origin %d",
			ErrUnalignable, dims, len(gridShape), len(gridOrigin))
	}
	for i, s := range gridShape {
		if s <= 0 {
			return fmt.Errorf("%w: grid shape component %d is %d", ErrUnalignable, i, s)
		}
	}
	return nil
}

// CellsCovering returns the half-open box [lo, hi) of grid cell indices whose
// cells intersect r. Cell k spans origin+k*shape to origin+(k+1)*shape. An
// empty region yields lo == hi.
func CellsCovering(r Region, gridShape, gridOrigin Coord) (lo, hi Coord, err error) {
	if err := checkGrid(r.Dims(), gridShape, gridOrigin); err != nil {
		return nil, nil, err
	}
	dims := r.Dims()
	lo, hi = Zero(dims), Zero(dims)
	if r.Empty() {
		return lo, hi, nil
	}
	end := r.End()
	for i := 0; i < dims; i++ {
		lo[i] = FloorDiv(r.offset[i]-gridOrigin[i], gridShape[i])
		hi[i] = CeilDiv(end[i]-gridOrigin[i], gridShape[i])
	}
	return lo, hi, nil
}

// AlignToGrid returns the smallest region whose bounds lie on the grid
// (origin + k*shape for integer k) and which contains r. The empty region
// aligns to itself.
func AlignToGrid(r Region, gridShape, gridOrigin Coord) (Region, error) {
	lo, hi, err := CellsCovering(r, gridShape, gridOrigin)
	if err != nil {
		return Region{}, err
	}
	if r.Empty() {
		return Empty(r.Dims()), nil
	}
	begin := make(Coord, r.Dims())
	end := make(Coord, r.Dims())
	for i := range begin {
		begin[i] = gridOrigin[i] + lo[i]*gridShape[i]
		end[i] = gridOrigin[i] + hi[i]*gridShape[i]
	}
	return FromBounds(begin, end)
}

// Cell returns the grid cell at the given index.
func Cell(index, gridShape, gridOrigin Coord) Region {
	offset := make(Coord, len(index))
	for i := range index {
		offset[i] = gridOrigin[i] + index[i]*gridShape[i]
	}
	return Region{offset: offset, shape: gridShape.Clone()}
}

// ForEachCell calls fn for every index in the half-open box [lo, hi) in
// row-major order. fn receives a fresh Coord on every call. Iteration stops
// early when fn returns false.
func ForEachCell(lo, hi Coord, fn func(Coord) bool) {
	dims := len(lo)
	if dims == 0 {
		return
	}
	for i := range lo {
		if hi[i] <= lo[i] {
			return
		}
	}
	cur := lo.Clone()
	for {
		if !fn(cur.Clone()) {
			return
		}
		d := dims - 1
		for ; d >= 0; d-- {
			cur[d]++
			if cur[d] < hi[d] {
				break
			}
			cur[d] = lo[d]
		}
		if d < 0 {
			return
		}
	}
}
