package zorder

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEncodeOneDimensionIsIdentity(t *testing.T) {
	for _, v := range []uint64{0, 1, 7, 1 << 40, ^uint64(0)} {
		assert.Equal(t, Code{v}, Encode([]uint64{v}))
	}
}

func TestEncodeTwoDimensions(t *testing.T) {
	assert.Equal(t, Code{0, 0}, Encode([]uint64{0, 0}))
	assert.Equal(t, Code{0, 1}, Encode([]uint64{0, 1}))
	assert.Equal(t, Code{0, 2}, Encode([]uint64{1, 0}))
	assert.Equal(t, Code{0, 3}, Encode([]uint64{1, 1}))
	assert.Equal(t, Code{0, 4}, Encode([]uint64{0, 2}))
	assert.Equal(t, Code{0, 12}, Encode([]uint64{2, 2}))
}

func TestEncodeOrdersQuadrantsBeforeNeighbours(t *testing.T) {
	type point struct{ x, y uint64 }
	var points []point
	for x := uint64(0); x < 4; x++ {
		for y := uint64(0); y < 4; y++ {
			points = append(points, point{x, y})
		}
	}
	sort.Slice(points, func(i, j int) bool {
		return Encode([]uint64{points[i].x, points[i].y}).Compare(Encode([]uint64{points[j].x, points[j].y})) < 0
	})

	// Each 2x2 quadrant is visited completely before the next one starts.
	for q := 0; q < 4; q++ {
		quad := points[q*4 : q*4+4]
		for _, p := range quad {
			assert.Equal(t, quad[0].x/2, p.x/2)
			assert.Equal(t, quad[0].y/2, p.y/2)
		}
	}
	assert.Equal(t, point{0, 0}, points[0])
	assert.Equal(t, point{3, 3}, points[15])
}

func TestCompare(t *testing.T) {
	assert.Equal(t, 0, Code{1, 2}.Compare(Code{1, 2}))
	assert.Equal(t, -1, Code{0, 9}.Compare(Code{1, 0}))
	assert.Equal(t, 1, Code{2}.Compare(Code{1, 5}))
	assert.Equal(t, -1, Code{1}.Compare(Code{1, 0}))
}
