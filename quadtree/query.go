package quadtree

func (t *Tree[E]) valid(id NodeID) bool {
	return id >= 0 && int(id) < len(t.nodes) && t.nodes[id].alive
}

// Len returns the number of nodes in the tree.
func (t *Tree[E]) Len() int {
	return len(t.nodes) - 4*len(t.free)
}

// IsLeaf reports whether id is a node of the tree without children.
func (t *Tree[E]) IsLeaf(id NodeID) bool {
	return t.valid(id) && t.nodes[id].children == NoNode
}

// Rect returns the rectangle of the given node.
func (t *Tree[E]) Rect(id NodeID) (Rect, bool) {
	if !t.valid(id) {
		return Rect{}, false
	}
	return t.nodes[id].rect, true
}

// Count returns the number of registrations below the given node.
func (t *Tree[E]) Count(id NodeID) int {
	if !t.valid(id) {
		return 0
	}
	return t.nodes[id].count
}

// Depth returns the depth of the given node. The root is at depth 0.
func (t *Tree[E]) Depth(id NodeID) int {
	if !t.valid(id) {
		return -1
	}
	return t.nodes[id].depth
}

// Parent returns the parent of the given node, or NoNode for the root.
func (t *Tree[E]) Parent(id NodeID) NodeID {
	if !t.valid(id) {
		return NoNode
	}
	return t.nodes[id].parent
}

// Children returns the 4 children of the given node in Quadrant order, or nil
// when the node is a leaf.
func (t *Tree[E]) Children(id NodeID) []NodeID {
	if !t.valid(id) || t.nodes[id].children == NoNode {
		return nil
	}

	first := t.nodes[id].children
	return []NodeID{first, first + 1, first + 2, first + 3}
}

// Residents returns the entities registered in the given leaf.
func (t *Tree[E]) Residents(id NodeID) []E {
	if !t.valid(id) {
		return nil
	}

	residents := make([]E, 0, len(t.nodes[id].residents))
	for e := range t.nodes[id].residents {
		residents = append(residents, e)
	}
	return residents
}

// Adjacent returns the residents of the given leaf that are linked to e.
func (t *Tree[E]) Adjacent(id NodeID, e E) []E {
	if !t.valid(id) {
		return nil
	}

	neighbors := t.nodes[id].residents[e]
	adjacent := make([]E, 0, len(neighbors))
	for n := range neighbors {
		adjacent = append(adjacent, n)
	}
	return adjacent
}

// Neighbors returns the neighbour candidates of e: the union of its adjacency
// sets in every leaf that registers it.
func (t *Tree[E]) Neighbors(e E, idx *Index[E]) []E {
	var neighbors []E
	seen := make(map[E]struct{})

	for _, leaf := range idx.Leaves(e) {
		if !t.valid(leaf) {
			continue
		}

		for n := range t.nodes[leaf].residents[e] {
			if _, ok := seen[n]; ok {
				continue
			}
			seen[n] = struct{}{}
			neighbors = append(neighbors, n)
		}
	}
	return neighbors
}

// Pairs calls fn once for every distinct pair of entities that share at least
// one leaf.
func (t *Tree[E]) Pairs(fn func(a, b E)) {
	seen := make(map[[2]E]struct{})

	t.Walk(func(id NodeID) bool {
		for a, neighbors := range t.nodes[id].residents {
			for b := range neighbors {
				if _, ok := seen[[2]E{b, a}]; ok {
					continue
				}
				if _, ok := seen[[2]E{a, b}]; ok {
					continue
				}
				seen[[2]E{a, b}] = struct{}{}
				fn(a, b)
			}
		}
		return true
	})
}

// Walk visits the nodes of the tree depth first, parents before children. The
// children of a node are skipped when fn returns false.
func (t *Tree[E]) Walk(fn func(id NodeID) bool) {
	t.walk(Root, fn)
}

func (t *Tree[E]) walk(id NodeID, fn func(id NodeID) bool) {
	if !fn(id) {
		return
	}

	if first := t.nodes[id].children; first != NoNode {
		for q := NodeID(0); q < 4; q++ {
			t.walk(first+q, fn)
		}
	}
}
