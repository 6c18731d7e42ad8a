package models

import (
	"testing"

	"github.com/aukilabs/broadphase/quadtree"
	"github.com/stretchr/testify/require"
)

func TestBodyBounds(t *testing.T) {
	b := Body{X: 10, Y: 20, HalfW: 2, HalfH: 3}
	require.Equal(t, quadtree.Rect{X: 8, Y: 17, W: 4, H: 6}, b.Bounds())
}

func TestBodyAdvance(t *testing.T) {
	bounds := quadtree.Rect{W: 100, H: 100}

	t.Run("moves by velocity", func(t *testing.T) {
		b := Body{X: 10, Y: 50, HalfW: 1, HalfH: 1, VX: 10, VY: -4}
		b = b.Advance(0.5, bounds)
		require.Equal(t, float32(15), b.X)
		require.Equal(t, float32(48), b.Y)
		require.Equal(t, float32(10), b.VX)
		require.Equal(t, float32(-4), b.VY)
	})

	t.Run("bounces on the right edge", func(t *testing.T) {
		b := Body{X: 95, Y: 50, HalfW: 2, HalfH: 2, VX: 10}
		b = b.Advance(1, bounds)
		require.Equal(t, float32(98), b.X)
		require.Equal(t, float32(-10), b.VX)
	})

	t.Run("bounces on the top edge", func(t *testing.T) {
		b := Body{X: 50, Y: 3, HalfW: 2, HalfH: 2, VY: -10}
		b = b.Advance(1, bounds)
		require.Equal(t, float32(2), b.Y)
		require.Equal(t, float32(10), b.VY)
	})

	t.Run("keeps points off the right and bottom edges", func(t *testing.T) {
		b := Body{X: 100, Y: 100}.Advance(0, bounds)
		require.Less(t, b.X, float32(100))
		require.Less(t, b.Y, float32(100))
		require.True(t, bounds.ContainsPoint(b.X, b.Y))
	})

	t.Run("does not move without velocity", func(t *testing.T) {
		b := Body{X: 50, Y: 50, HalfW: 2, HalfH: 2}
		require.Equal(t, b, b.Advance(1, bounds))
	})
}

func TestEntityIntersects(t *testing.T) {
	e := &Entity{ID: 1}
	e.SetBody(Body{X: 50, Y: 10, HalfW: 5, HalfH: 5})

	require.True(t, e.Intersects(quadtree.Rect{W: 50, H: 50}))
	require.True(t, e.Intersects(quadtree.Rect{X: 50, W: 50, H: 50}))
	require.False(t, e.Intersects(quadtree.Rect{Y: 50, W: 50, H: 50}))

	t.Run("point", func(t *testing.T) {
		p := &Entity{ID: 2}
		p.SetBody(Body{X: 50, Y: 10})

		require.False(t, p.Intersects(quadtree.Rect{W: 50, H: 50}))
		require.True(t, p.Intersects(quadtree.Rect{X: 50, W: 50, H: 50}))
	})
}

func TestEntityToView(t *testing.T) {
	e := &Entity{ID: 3, UUID: "entity-3", Static: true}
	e.SetBody(Body{X: 1, Y: 2, HalfW: 3, HalfH: 4})

	require.Equal(t, EntityView{
		ID:     3,
		UUID:   "entity-3",
		Static: true,
		Body:   Body{X: 1, Y: 2, HalfW: 3, HalfH: 4},
	}, e.ToView())
}
