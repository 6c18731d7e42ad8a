package quadtree

import (
	"math/rand"
	"testing"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/stretchr/testify/require"
)

type box struct {
	name   string
	bounds Rect
}

func point(name string, x, y float32) *box {
	return &box{name: name, bounds: Rect{X: x, Y: y}}
}

func boxContains(b *box, r Rect) bool {
	return r.Intersects(b.bounds)
}

func newTestTree(t testing.TB, capacity, maxDepth int) (*Tree[*box], *Index[*box]) {
	tree, err := New(Config[*box]{
		Name:     "test",
		Bounds:   Rect{W: 100, H: 100},
		Capacity: capacity,
		MaxDepth: maxDepth,
		Contains: boxContains,
	})
	require.NoError(t, err)
	return tree, NewIndex[*box]()
}

func insertAll(t testing.TB, tree *Tree[*box], idx *Index[*box], boxes ...*box) {
	for _, b := range boxes {
		require.NoError(t, tree.Insert(b, idx))
	}
}

// requireConsistent checks the counts, the adjacency graphs and the reverse
// index against each other.
func requireConsistent(t *testing.T, tree *Tree[*box], idx *Index[*box]) {
	t.Helper()

	require.Zero(t, tree.Recount())

	var registrations int
	tree.Walk(func(id NodeID) bool {
		n := &tree.nodes[id]
		if n.children != NoNode {
			require.Empty(t, n.residents)
			return true
		}

		if n.depth < tree.MaxDepth() {
			require.LessOrEqual(t, len(n.residents), tree.Capacity())
		}

		for e, neighbors := range n.residents {
			registrations++
			require.True(t, idx.Registered(e, id))
			require.Len(t, neighbors, len(n.residents)-1)

			for other := range neighbors {
				require.NotEqual(t, e, other)
				require.Contains(t, n.residents[other], e)
			}
		}
		return true
	})

	var indexed int
	for _, e := range idx.Entities() {
		for _, leaf := range idx.Leaves(e) {
			require.True(t, tree.IsLeaf(leaf))
			require.Contains(t, tree.nodes[leaf].residents, e)
			indexed++
		}
	}

	require.Equal(t, registrations, indexed)
	require.Equal(t, registrations, tree.Count(Root))
}

func TestNew(t *testing.T) {
	t.Run("zero config uses defaults", func(t *testing.T) {
		tree, err := New(Config[*box]{})
		require.NoError(t, err)
		require.Equal(t, "default", tree.Name())
		require.Equal(t, DefaultCapacity, tree.Capacity())
		require.Equal(t, DefaultMaxDepth, tree.MaxDepth())
		require.Equal(t, DefaultBounds, tree.Bounds())
		require.Equal(t, 1, tree.Len())
		require.True(t, tree.IsLeaf(Root))
		require.Equal(t, NoNode, tree.Parent(Root))

		rect, ok := tree.Rect(Root)
		require.True(t, ok)
		require.Equal(t, DefaultBounds, rect)
	})

	t.Run("negative capacity", func(t *testing.T) {
		_, err := New(Config[*box]{Capacity: -1})
		require.Error(t, err)
		require.Equal(t, ErrTypeInvalidConfig, errors.Type(err))
	})

	t.Run("negative max depth", func(t *testing.T) {
		_, err := New(Config[*box]{MaxDepth: -1})
		require.Error(t, err)
		require.Equal(t, ErrTypeInvalidConfig, errors.Type(err))
	})

	t.Run("bounds without area", func(t *testing.T) {
		_, err := New(Config[*box]{Bounds: Rect{W: -10, H: 10}})
		require.Error(t, err)
		require.True(t, errors.IsType(err, ErrTypeInvalidConfig))
	})
}

func TestInsertWithoutPredicate(t *testing.T) {
	tree, err := New(Config[*box]{})
	require.NoError(t, err)

	idx := NewIndex[*box]()
	err = tree.Insert(point("a", 1, 1), idx)
	require.Error(t, err)
	require.Equal(t, ErrTypePredicateNotConfigured, errors.Type(err))
	require.Zero(t, idx.Len())

	tree.SetContains(boxContains)
	require.NoError(t, tree.Insert(point("a", 1, 1), idx))
	require.Equal(t, 1, idx.Len())
}

func TestInsertTwice(t *testing.T) {
	tree, idx := newTestTree(t, 4, 8)
	a := point("a", 1, 1)

	require.NoError(t, tree.Insert(a, idx))
	err := tree.Insert(a, idx)
	require.Error(t, err)
	require.Equal(t, ErrTypeEntityAlreadyInserted, errors.Type(err))
	require.Equal(t, 1, tree.Count(Root))
}

func TestInsertAfterMove(t *testing.T) {
	tree, idx := newTestTree(t, 1, 8)
	a := point("a", 10, 10)
	b := point("b", 90, 90)
	insertAll(t, tree, idx, a, b)

	for _, x := range []float32{30, 60, 90} {
		tree.RemoveAll(a, idx)
		a.bounds.X = x
		a.bounds.Y = x
		require.NoError(t, tree.Insert(a, idx))
		tree.Update(idx)
		requireConsistent(t, tree, idx)
	}

	require.Equal(t, []*box{b}, tree.Neighbors(a, idx))
}

func TestInsertOutOfBounds(t *testing.T) {
	tree, idx := newTestTree(t, 4, 8)

	require.NoError(t, tree.Insert(point("far", 500, 500), idx))
	require.Zero(t, idx.Len())
	require.Zero(t, tree.Count(Root))
}

func TestInsertAdjacencyCompleteness(t *testing.T) {
	tree, idx := newTestTree(t, 4, 8)
	boxes := []*box{
		point("a", 10, 10),
		point("b", 60, 10),
		point("c", 10, 60),
		point("d", 60, 60),
	}
	insertAll(t, tree, idx, boxes...)

	require.True(t, tree.IsLeaf(Root))
	require.Len(t, tree.Residents(Root), 4)
	require.Equal(t, 4, tree.Count(Root))

	for _, b := range boxes {
		adjacent := tree.Adjacent(Root, b)
		require.Len(t, adjacent, 3)
		require.NotContains(t, adjacent, b)
		require.Equal(t, []NodeID{Root}, idx.Leaves(b))
	}
	requireConsistent(t, tree, idx)
}

func TestInsertSplit(t *testing.T) {
	t.Run("distinct quadrants", func(t *testing.T) {
		tree, idx := newTestTree(t, 4, 8)
		a := point("a", 10, 10)
		b := point("b", 60, 10)
		c := point("c", 10, 60)
		d := point("d", 60, 60)
		e := point("e", 20, 20)
		insertAll(t, tree, idx, a, b, c, d, e)

		children := tree.Children(Root)
		require.Len(t, children, 4)
		require.Empty(t, tree.Residents(Root))
		require.Equal(t, 5, tree.Count(Root))
		require.Equal(t, 5, tree.Len())

		topLeft := children[TopLeft]
		require.ElementsMatch(t, []*box{a, e}, tree.Residents(topLeft))
		require.Equal(t, []*box{e}, tree.Adjacent(topLeft, a))
		require.Equal(t, []NodeID{topLeft}, idx.Leaves(a))
		require.Equal(t, []NodeID{children[TopRight]}, idx.Leaves(b))
		require.Equal(t, []NodeID{children[BottomLeft]}, idx.Leaves(c))
		require.Equal(t, []NodeID{children[BottomRight]}, idx.Leaves(d))

		for q, child := range children {
			rect, ok := tree.Rect(child)
			require.True(t, ok)
			require.Equal(t, Rect{W: 100, H: 100}.Quadrant(Quadrant(q)), rect)
			require.Equal(t, Root, tree.Parent(child))
			require.Equal(t, 1, tree.Depth(child))
		}
		requireConsistent(t, tree, idx)
	})

	t.Run("mutually overlapping entities", func(t *testing.T) {
		tree, idx := newTestTree(t, 4, 3)

		var boxes []*box
		for i := 0; i < 5; i++ {
			boxes = append(boxes, &box{
				name:   "overlapping",
				bounds: Rect{X: 45 + float32(i), Y: 45, W: 5, H: 10},
			})
		}
		insertAll(t, tree, idx, boxes...)

		require.Len(t, tree.Children(Root), 4)
		require.Empty(t, tree.Residents(Root))

		// Each box overlaps the 4 quadrants around the center down to the
		// max depth, where leaves stop subdividing.
		for _, b := range boxes {
			leaves := idx.Leaves(b)
			require.Len(t, leaves, 4)
			for _, leaf := range leaves {
				require.Equal(t, 3, tree.Depth(leaf))
				require.Len(t, tree.Residents(leaf), 5)
			}
		}
		require.Equal(t, 20, tree.Count(Root))
		requireConsistent(t, tree, idx)
	})
}

func TestInsertBoundaryDuplication(t *testing.T) {
	tree, idx := newTestTree(t, 4, 8)
	a := point("a", 10, 10)
	b := point("b", 90, 10)
	c := point("c", 10, 90)
	d := point("d", 90, 90)
	straddling := &box{name: "straddling", bounds: Rect{X: 40, Y: 10, W: 20, H: 10}}
	insertAll(t, tree, idx, a, b, c, d, straddling)

	children := tree.Children(Root)
	require.Equal(t, []NodeID{children[TopLeft], children[TopRight]}, idx.Leaves(straddling))
	require.Equal(t, 6, tree.Count(Root))
	require.Equal(t, 2, tree.Count(children[TopLeft]))
	require.Equal(t, 2, tree.Count(children[TopRight]))
	require.Equal(t, 1, tree.Count(children[BottomLeft]))
	require.Equal(t, 1, tree.Count(children[BottomRight]))
	require.ElementsMatch(t, []*box{a, b}, tree.Neighbors(straddling, idx))
	requireConsistent(t, tree, idx)

	t.Run("remove symmetry", func(t *testing.T) {
		for _, leaf := range idx.Leaves(straddling) {
			require.NoError(t, tree.Remove(straddling, leaf, idx))
		}

		require.False(t, idx.Has(straddling))
		require.Empty(t, idx.Leaves(straddling))
		tree.Walk(func(id NodeID) bool {
			for _, e := range tree.Residents(id) {
				require.NotContains(t, tree.Adjacent(id, e), straddling)
			}
			return true
		})
		require.Equal(t, 4, tree.Count(Root))
		require.Equal(t, 1, tree.Count(children[TopLeft]))
		requireConsistent(t, tree, idx)
	})
}

func TestRemove(t *testing.T) {
	t.Run("not a leaf", func(t *testing.T) {
		tree, idx := newTestTree(t, 1, 8)
		insertAll(t, tree, idx, point("a", 10, 10), point("b", 60, 60))

		err := tree.Remove(point("a", 10, 10), Root, idx)
		require.Error(t, err)
		require.Equal(t, ErrTypeNotALeaf, errors.Type(err))
	})

	t.Run("unknown node", func(t *testing.T) {
		tree, idx := newTestTree(t, 4, 8)

		err := tree.Remove(point("a", 10, 10), 42, idx)
		require.Error(t, err)
		require.Equal(t, ErrTypeNotALeaf, errors.Type(err))
	})

	t.Run("entity not in leaf", func(t *testing.T) {
		tree, idx := newTestTree(t, 4, 8)
		insertAll(t, tree, idx, point("a", 10, 10))

		require.NoError(t, tree.Remove(point("b", 10, 10), Root, idx))
		require.Equal(t, 1, tree.Count(Root))
		requireConsistent(t, tree, idx)
	})

	t.Run("remove all", func(t *testing.T) {
		tree, idx := newTestTree(t, 4, 8)
		a := point("a", 10, 10)
		b := point("b", 20, 10)
		insertAll(t, tree, idx, a, b)

		tree.RemoveAll(a, idx)
		require.False(t, idx.Has(a))
		require.Empty(t, tree.Adjacent(Root, b))
		require.Equal(t, 1, tree.Count(Root))
		requireConsistent(t, tree, idx)
	})
}

func TestUpdate(t *testing.T) {
	t.Run("merge restores leaf", func(t *testing.T) {
		tree, idx := newTestTree(t, 4, 8)
		a := point("a", 10, 10)
		b := point("b", 60, 10)
		c := point("c", 10, 60)
		d := point("d", 60, 60)
		e := point("e", 20, 20)
		insertAll(t, tree, idx, a, b, c, d, e)
		require.False(t, tree.IsLeaf(Root))

		tree.RemoveAll(e, idx)
		require.Equal(t, 4, tree.Count(Root))

		require.Equal(t, 1, tree.Update(idx))
		require.True(t, tree.IsLeaf(Root))
		require.Equal(t, 1, tree.Len())
		require.ElementsMatch(t, []*box{a, b, c, d}, tree.Residents(Root))
		for _, r := range []*box{a, b, c, d} {
			require.Len(t, tree.Adjacent(Root, r), 3)
			require.Equal(t, []NodeID{Root}, idx.Leaves(r))
		}
		requireConsistent(t, tree, idx)

		t.Run("idempotence", func(t *testing.T) {
			require.Zero(t, tree.Update(idx))
			require.Equal(t, 1, tree.Len())
			requireConsistent(t, tree, idx)
		})

		t.Run("node ids are reused", func(t *testing.T) {
			require.NoError(t, tree.Insert(e, idx))
			require.Equal(t, []NodeID{1, 2, 3, 4}, tree.Children(Root))
			require.Len(t, tree.nodes, 5)
			requireConsistent(t, tree, idx)
		})
	})

	t.Run("no collapse above capacity", func(t *testing.T) {
		tree, idx := newTestTree(t, 4, 8)
		insertAll(t, tree, idx,
			point("a", 10, 10),
			point("b", 60, 10),
			point("c", 10, 60),
			point("d", 60, 60),
			point("e", 20, 20),
		)

		require.Zero(t, tree.Update(idx))
		require.Equal(t, 5, tree.Len())
	})

	t.Run("root collapses with duplicate registrations", func(t *testing.T) {
		tree, idx := newTestTree(t, 4, 8)

		// 5 entities in the top left quadrant, one of them straddling the
		// edge between 2 of its sub-quadrants.
		a := point("a", 5, 5)
		b := point("b", 30, 5)
		c := point("c", 5, 30)
		d := point("d", 30, 30)
		straddling := &box{name: "straddling", bounds: Rect{X: 20, Y: 5, W: 10, H: 2}}
		insertAll(t, tree, idx, a, b, c, d, straddling)
		require.Equal(t, 6, tree.Count(Root))

		tree.RemoveAll(d, idx)
		tree.RemoveAll(c, idx)
		require.Equal(t, 4, tree.Count(Root))

		require.Equal(t, 1, tree.Update(idx))
		require.True(t, tree.IsLeaf(Root))
		require.Equal(t, 3, tree.Count(Root))
		require.Zero(t, tree.Update(idx))
		requireConsistent(t, tree, idx)
	})

	t.Run("collapsed children bring the parent down to capacity", func(t *testing.T) {
		tree, idx := newTestTree(t, 4, 8)
		a := point("a", 5, 5)
		b := point("b", 30, 5)
		c := point("c", 5, 30)
		d := point("d", 30, 30)
		e := point("e", 60, 10)
		straddling := &box{name: "straddling", bounds: Rect{X: 20, Y: 5, W: 10, H: 2}}
		insertAll(t, tree, idx, a, b, c, d, e, straddling)
		require.Equal(t, 7, tree.Count(Root))

		tree.RemoveAll(d, idx)
		tree.RemoveAll(c, idx)
		require.Equal(t, 5, tree.Count(Root))

		require.Equal(t, 2, tree.Update(idx))
		require.True(t, tree.IsLeaf(Root))
		require.Equal(t, 4, tree.Count(Root))
		require.ElementsMatch(t, []*box{a, b, e, straddling}, tree.Residents(Root))
		require.Zero(t, tree.Update(idx))
		requireConsistent(t, tree, idx)
	})

	t.Run("entities registered outside the collapsed subtree keep their leaves", func(t *testing.T) {
		tree, idx := newTestTree(t, 2, 8)
		a := point("a", 10, 10)
		b := point("b", 60, 60)
		straddling := &box{name: "straddling", bounds: Rect{X: 20, Y: 20, W: 40, H: 40}}
		insertAll(t, tree, idx, a, b, straddling)
		require.Len(t, idx.Leaves(straddling), 4)
		requireConsistent(t, tree, idx)

		c := point("c", 12, 12)
		require.NoError(t, tree.Insert(c, idx))
		topLeft := tree.Children(Root)[TopLeft]
		topLeftTopLeft := tree.Children(topLeft)[TopLeft]
		require.False(t, tree.IsLeaf(topLeftTopLeft))
		require.Len(t, idx.Leaves(straddling), 7)
		requireConsistent(t, tree, idx)

		tree.RemoveAll(c, idx)
		require.Equal(t, 1, tree.Update(idx))
		require.True(t, tree.IsLeaf(topLeftTopLeft))
		require.ElementsMatch(t, []*box{a, straddling}, tree.Residents(topLeftTopLeft))
		require.Len(t, idx.Leaves(straddling), 7)
		require.Contains(t, idx.Leaves(straddling), tree.Children(Root)[BottomRight])
		requireConsistent(t, tree, idx)
	})
}

func TestPairs(t *testing.T) {
	tree, idx := newTestTree(t, 4, 8)
	straddling := &box{name: "straddling", bounds: Rect{X: 40, Y: 10, W: 20, H: 10}}
	insertAll(t, tree, idx,
		point("a", 10, 10),
		point("b", 90, 10),
		point("c", 10, 90),
		point("d", 90, 90),
		straddling,
	)

	var pairs int
	tree.Pairs(func(a, b *box) {
		require.NotEqual(t, a, b)
		require.True(t, a == straddling || b == straddling)
		pairs++
	})
	require.Equal(t, 2, pairs)
}

func TestGetDebugInfo(t *testing.T) {
	tree, idx := newTestTree(t, 4, 8)
	insertAll(t, tree, idx,
		point("a", 10, 10),
		point("b", 60, 10),
		point("c", 10, 60),
		point("d", 60, 60),
		point("e", 20, 20),
	)

	info := tree.GetDebugInfo()
	require.Equal(t, "test", info.Name)
	require.Equal(t, 5, info.NodeCount)
	require.Equal(t, 4, info.LeafCount)
	require.Equal(t, 1, info.Depth)
	require.Equal(t, 5, info.Registrations)
	require.Len(t, info.Leaves, 4)
	require.Equal(t, 2, info.Leaves[TopLeft].Residents)
}

func TestRandomOperationsStayConsistent(t *testing.T) {
	rnd := rand.New(rand.NewSource(42))
	tree, err := New(Config[*box]{
		Name:     "random",
		Bounds:   Rect{W: 1000, H: 1000},
		Capacity: 4,
		MaxDepth: 6,
		Contains: boxContains,
	})
	require.NoError(t, err)
	idx := NewIndex[*box]()

	boxes := make([]*box, 300)
	for i := range boxes {
		boxes[i] = &box{
			name: "random",
			bounds: Rect{
				X: rnd.Float32() * 980,
				Y: rnd.Float32() * 980,
				W: 1 + rnd.Float32()*20,
				H: 1 + rnd.Float32()*20,
			},
		}
	}
	insertAll(t, tree, idx, boxes...)
	requireConsistent(t, tree, idx)

	for round := 0; round < 3; round++ {
		rnd.Shuffle(len(boxes), func(i, j int) {
			boxes[i], boxes[j] = boxes[j], boxes[i]
		})

		removed := boxes[len(boxes)/2:]
		boxes = boxes[:len(boxes)/2]
		for _, b := range removed {
			tree.RemoveAll(b, idx)
		}
		requireConsistent(t, tree, idx)

		tree.Update(idx)
		requireConsistent(t, tree, idx)

		nodes := tree.Len()
		require.Zero(t, tree.Update(idx))
		require.Equal(t, nodes, tree.Len())
	}

	for _, b := range boxes {
		tree.RemoveAll(b, idx)
	}
	tree.Update(idx)
	require.True(t, tree.IsLeaf(Root))
	require.Zero(t, tree.Count(Root))
	require.Zero(t, idx.Len())
}

func BenchmarkInsert(b *testing.B) {
	tree, idx := newTestTree(b, 4, 8)
	boxes := make([]*box, 1000)
	for i := range boxes {
		x := rand.Float32() * 95
		y := rand.Float32() * 95
		boxes[i] = &box{bounds: Rect{X: x, Y: y, W: 2, H: 2}}
	}

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		e := boxes[i%len(boxes)]
		tree.RemoveAll(e, idx)
		tree.Insert(e, idx)
	}
}

func BenchmarkUpdate(b *testing.B) {
	tree, idx := newTestTree(b, 4, 8)
	boxes := make([]*box, 1000)
	for i := range boxes {
		x := rand.Float32() * 95
		y := rand.Float32() * 95
		boxes[i] = &box{bounds: Rect{X: x, Y: y, W: 2, H: 2}}
		tree.Insert(boxes[i], idx)
	}

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		e := boxes[i%len(boxes)]
		tree.RemoveAll(e, idx)
		tree.Update(idx)
		tree.Insert(e, idx)
	}
}
