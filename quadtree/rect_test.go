package quadtree

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRectQuadrant(t *testing.T) {
	r := Rect{X: 10, Y: 20, W: 100, H: 50}

	require.Equal(t, Rect{X: 10, Y: 20, W: 50, H: 25}, r.Quadrant(TopLeft))
	require.Equal(t, Rect{X: 60, Y: 20, W: 50, H: 25}, r.Quadrant(TopRight))
	require.Equal(t, Rect{X: 10, Y: 45, W: 50, H: 25}, r.Quadrant(BottomLeft))
	require.Equal(t, Rect{X: 60, Y: 45, W: 50, H: 25}, r.Quadrant(BottomRight))
}

func TestRectEmpty(t *testing.T) {
	require.False(t, Rect{W: 1, H: 1}.Empty())
	require.True(t, Rect{W: 0, H: 1}.Empty())
	require.True(t, Rect{W: 1, H: -1}.Empty())
}

func TestRectContainsPoint(t *testing.T) {
	r := Rect{X: 0, Y: 0, W: 10, H: 10}

	require.True(t, r.ContainsPoint(0, 0))
	require.True(t, r.ContainsPoint(5, 9.5))
	require.False(t, r.ContainsPoint(10, 5))
	require.False(t, r.ContainsPoint(5, 10))
	require.False(t, r.ContainsPoint(-1, 5))
}

func TestRectIntersects(t *testing.T) {
	left := Rect{X: 0, Y: 0, W: 50, H: 50}
	right := Rect{X: 50, Y: 0, W: 50, H: 50}

	t.Run("point on an edge belongs to one quadrant", func(t *testing.T) {
		p := Rect{X: 50, Y: 10}
		require.False(t, left.Intersects(p))
		require.True(t, right.Intersects(p))
	})

	t.Run("point on the top left corner", func(t *testing.T) {
		require.True(t, left.Intersects(Rect{}))
	})

	t.Run("box straddling an edge belongs to both quadrants", func(t *testing.T) {
		b := Rect{X: 40, Y: 10, W: 20, H: 10}
		require.True(t, left.Intersects(b))
		require.True(t, right.Intersects(b))
	})

	t.Run("disjoint box", func(t *testing.T) {
		require.False(t, left.Intersects(Rect{X: 60, Y: 60, W: 5, H: 5}))
	})
}

func TestQuadrantString(t *testing.T) {
	require.Equal(t, "top_left", TopLeft.String())
	require.Equal(t, "bottom_right", BottomRight.String())
	require.Equal(t, "unknown", Quadrant(42).String())
}
