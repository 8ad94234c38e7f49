package region

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	r, err := New(Coord{1, 2}, Coord{3, 4})
	require.NoError(t, err)
	assert.Equal(t, Coord{1, 2}, r.Offset())
	assert.Equal(t, Coord{3, 4}, r.Shape())
	assert.Equal(t, Coord{4, 6}, r.End())
	assert.Equal(t, int64(12), r.Size())

	_, err = New(Coord{0}, Coord{-1})
	assert.ErrorContains(t, err, "negative")

	_, err = New(Coord{0, 0}, Coord{1})
	assert.ErrorContains(t, err, "dimensions")
}

func TestRegionIsImmutable(t *testing.T) {
	offset := Coord{0, 0}
	r := MustNew(offset, Coord{2, 2})
	offset[0] = 100
	assert.Equal(t, Coord{0, 0}, r.Offset())

	got := r.Offset()
	got[1] = 7
	assert.Equal(t, Coord{0, 0}, r.Offset())
}

func TestIntersect(t *testing.T) {
	testCases := []struct {
		name string
		a, b Region
		want Region
	}{
		{
			name: "overlapping",
			a:    MustNew(Coord{0, 0}, Coord{10, 10}),
			b:    MustNew(Coord{5, -5}, Coord{10, 10}),
			want: MustNew(Coord{5, 0}, Coord{5, 5}),
		},
		{
			name: "contained",
			a:    MustNew(Coord{0}, Coord{100}),
			b:    MustNew(Coord{20}, Coord{10}),
			want: MustNew(Coord{20}, Coord{10}),
		},
		{
			name: "touching edges are disjoint",
			a:    MustNew(Coord{0}, Coord{10}),
			b:    MustNew(Coord{10}, Coord{10}),
			want: Empty(1),
		},
		{
			name: "disjoint in one dimension only",
			a:    MustNew(Coord{0, 0}, Coord{10, 10}),
			b:    MustNew(Coord{2, 20}, Coord{2, 2}),
			want: Empty(2),
		},
		{
			name: "dimension mismatch",
			a:    MustNew(Coord{0, 0}, Coord{10, 10}),
			b:    MustNew(Coord{0}, Coord{10}),
			want: Empty(2),
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := tc.a.Intersect(tc.b)
			assert.True(t, tc.want.Equal(got), "want %s, got %s", tc.want, got)
			assert.Equal(t, !tc.want.Empty(), tc.a.Intersects(tc.b))
		})
	}
}

func TestContains(t *testing.T) {
	outer := MustNew(Coord{0, 0}, Coord{10, 10})
	assert.True(t, outer.Contains(MustNew(Coord{0, 0}, Coord{10, 10})))
	assert.True(t, outer.Contains(MustNew(Coord{3, 3}, Coord{2, 2})))
	assert.True(t, outer.Contains(Empty(2)))
	assert.False(t, outer.Contains(MustNew(Coord{9, 9}, Coord{2, 1})))
	assert.False(t, outer.Contains(MustNew(Coord{0}, Coord{1})))
	assert.False(t, Empty(2).Contains(outer))

	assert.True(t, outer.ContainsPoint(Coord{9, 0}))
	assert.False(t, outer.ContainsPoint(Coord{10, 0}))
}

func TestGrowAndShift(t *testing.T) {
	r := MustNew(Coord{10, 10}, Coord{5, 5})

	grown := r.Grow(Coord{1, 2}, Coord{3, 0})
	assert.Equal(t, Coord{9, 8}, grown.Offset())
	assert.Equal(t, Coord{9, 7}, grown.Shape())

	shrunk := r.Grow(Coord{-3, 0}, Coord{-3, 0})
	assert.True(t, shrunk.Empty())

	shifted := r.Shift(Coord{-10, 5})
	assert.Equal(t, Coord{0, 15}, shifted.Offset())
	assert.Equal(t, r.Shape(), shifted.Shape())
}

func TestHull(t *testing.T) {
	a := MustNew(Coord{0}, Coord{5})
	b := MustNew(Coord{20}, Coord{5})
	assert.True(t, MustNew(Coord{0}, Coord{25}).Equal(a.Hull(b)))
	assert.True(t, a.Equal(a.Hull(Empty(1))))
	assert.True(t, a.Equal(Empty(1).Hull(a)))
}

func TestEmptyRegionsAreEqual(t *testing.T) {
	a := MustNew(Coord{3, 4}, Coord{0, 5})
	assert.True(t, a.Empty())
	assert.True(t, a.Equal(Empty(2)))
	assert.False(t, a.Equal(Empty(1)))
	assert.Equal(t, int64(0), a.Size())
}

func TestCoordCompare(t *testing.T) {
	assert.Equal(t, 0, Coord{1, 2}.Compare(Coord{1, 2}))
	assert.Equal(t, -1, Coord{1, 2}.Compare(Coord{1, 3}))
	assert.Equal(t, 1, Coord{2}.Compare(Coord{1, 9}))
	assert.Equal(t, -1, Coord{1}.Compare(Coord{1, 0}))
	assert.Equal(t, "3,-1", Coord{3, -1}.String())
}
