// Package quadtree implements a self-balancing quadtree used as a broad-phase
// proximity index.
//
// Leaves hold up to a configured number of residents and subdivide into 4
// equal quadrants when crowded. Every leaf keeps the complete adjacency graph
// of its residents, so two entities registered in the same leaf are neighbour
// candidates. A caller-owned Index maps each entity to the leaves that
// register it. An entity that straddles a quadrant edge is registered in every
// leaf the containment predicate accepts it in, which lets interactions across
// the edge be detected.
//
// A Tree and its Index are not safe for concurrent use.
package quadtree

import (
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
)

// NodeID addresses a node in the tree. Ids of collapsed nodes are reused by
// later splits.
type NodeID int32

const (
	// NoNode is the parent of the root and the children of a leaf.
	NoNode NodeID = -1

	// Root is the id of the root node. The root always exists.
	Root NodeID = 0
)

type node[E comparable] struct {
	rect   Rect
	parent NodeID
	depth  int
	alive  bool

	// The first of the 4 contiguous children, in Quadrant order.
	children NodeID

	// The number of (entity, leaf) registrations in the subtree. An entity
	// registered in 2 leaves is counted twice.
	count int

	// Leaf residents mapped to the other residents of the leaf.
	residents map[E]map[E]struct{}
}

// Tree is a quadtree whose nodes live in a single arena and refer to each
// other by NodeID.
type Tree[E comparable] struct {
	cfg   Config[E]
	nodes []node[E]
	free  []NodeID
}

// New creates a tree made of a single root leaf covering cfg.Bounds.
func New[E comparable](cfg Config[E]) (*Tree[E], error) {
	cfg, err := cfg.withDefaults()
	if err != nil {
		return nil, err
	}

	t := &Tree[E]{
		cfg: cfg,
		nodes: []node[E]{{
			rect:     cfg.Bounds,
			parent:   NoNode,
			children: NoNode,
			alive:    true,
		}},
	}

	instrumentNodes(cfg.Name, 1)
	return t, nil
}

func (t *Tree[E]) Name() string {
	return t.cfg.Name
}

func (t *Tree[E]) Capacity() int {
	return t.cfg.Capacity
}

func (t *Tree[E]) MaxDepth() int {
	return t.cfg.MaxDepth
}

func (t *Tree[E]) Bounds() Rect {
	return t.cfg.Bounds
}

// SetContains sets the containment predicate.
func (t *Tree[E]) SetContains(f ContainsFunc[E]) {
	t.cfg.Contains = f
}

// Insert registers e in every leaf whose rectangle the containment predicate
// accepts, subdividing leaves that are at capacity.
//
// It returns an error when no containment predicate is configured or when e is
// already registered in idx. An entity rejected by the root rectangle is
// ignored. To reindex an entity that moved, call RemoveAll before inserting it
// again.
func (t *Tree[E]) Insert(e E, idx *Index[E]) error {
	if t.cfg.Contains == nil {
		return errors.New("containment predicate is not configured").
			WithType(ErrTypePredicateNotConfigured).
			WithTag("tree", t.cfg.Name)
	}

	if idx.Has(e) {
		return errors.New("entity is already inserted").
			WithType(ErrTypeEntityAlreadyInserted).
			WithTag("tree", t.cfg.Name).
			WithTag("leaves", idx.Leaves(e))
	}

	t.insert(Root, e, idx)
	instrumentRegistrations(t.cfg.Name, t.nodes[Root].count)
	return nil
}

// Update collapses every subtree whose registration count is at or below
// capacity back into a single leaf and reinserts its distinct entities. It
// returns the number of collapsed subtrees.
//
// Calling Update again without inserting or removing in between is a no-op.
func (t *Tree[E]) Update(idx *Index[E]) int {
	if t.cfg.Contains == nil {
		return 0
	}

	collapses := t.update(Root, idx)
	if collapses != 0 {
		instrumentNodes(t.cfg.Name, t.Len())
		instrumentRegistrations(t.cfg.Name, t.nodes[Root].count)
	}
	return collapses
}

// Remove unregisters e from the given leaf. Adjacency sets of the remaining
// residents, the leaf entry in idx and the registration counts of the leaf and
// its ancestors are updated. Removing an entity that the leaf does not hold is
// a no-op.
//
// The leaves that hold e are listed by idx.Leaves(e). RemoveAll removes e from
// all of them.
func (t *Tree[E]) Remove(e E, leaf NodeID, idx *Index[E]) error {
	if !t.IsLeaf(leaf) {
		return errors.New("node is not a leaf").
			WithType(ErrTypeNotALeaf).
			WithTag("tree", t.cfg.Name).
			WithTag("node", leaf)
	}

	t.unregister(leaf, e, idx)
	instrumentRegistrations(t.cfg.Name, t.nodes[Root].count)
	return nil
}

// RemoveAll unregisters e from every leaf listed in idx.
func (t *Tree[E]) RemoveAll(e E, idx *Index[E]) {
	for _, leaf := range idx.Leaves(e) {
		t.unregister(leaf, e, idx)
	}
	instrumentRegistrations(t.cfg.Name, t.nodes[Root].count)
}

// Recount recomputes the registration count of every node from the leaf
// residents and returns the number of nodes whose count was corrected. Counts
// are maintained by Insert, Remove and Update so a non-zero result reveals a
// bookkeeping bug.
func (t *Tree[E]) Recount() int {
	var corrected int
	t.recount(Root, &corrected)
	return corrected
}

func (t *Tree[E]) insert(id NodeID, e E, idx *Index[E]) {
	if !t.cfg.Contains(e, t.nodes[id].rect) {
		return
	}

	if t.nodes[id].children == NoNode {
		if len(t.nodes[id].residents) < t.cfg.Capacity || t.nodes[id].depth >= t.cfg.MaxDepth {
			t.register(id, e, idx)
			return
		}
		t.split(id, idx)
	}

	first := t.nodes[id].children
	for q := NodeID(0); q < 4; q++ {
		t.insert(first+q, e, idx)
	}
}

func (t *Tree[E]) register(id NodeID, e E, idx *Index[E]) {
	n := &t.nodes[id]
	if _, ok := n.residents[e]; ok {
		return
	}

	if n.residents == nil {
		n.residents = make(map[E]map[E]struct{}, t.cfg.Capacity)
	}

	neighbors := make(map[E]struct{}, len(n.residents))
	for resident, residentNeighbors := range n.residents {
		neighbors[resident] = struct{}{}
		residentNeighbors[e] = struct{}{}
	}
	n.residents[e] = neighbors

	idx.add(e, id)
	t.addCount(id, 1)
}

func (t *Tree[E]) unregister(id NodeID, e E, idx *Index[E]) {
	idx.remove(e, id)

	n := &t.nodes[id]
	if _, ok := n.residents[e]; !ok {
		return
	}

	delete(n.residents, e)
	for _, neighbors := range n.residents {
		delete(neighbors, e)
	}
	t.addCount(id, -1)
}

// addCount adds delta to the count of id and all of its ancestors.
func (t *Tree[E]) addCount(id NodeID, delta int) {
	for ; id != NoNode; id = t.nodes[id].parent {
		t.nodes[id].count += delta
	}
}

func (t *Tree[E]) split(id NodeID, idx *Index[E]) {
	first := t.allocChildren(id)

	residents := t.nodes[id].residents
	t.nodes[id].residents = nil
	t.nodes[id].children = first
	t.addCount(id, -len(residents))

	for e := range residents {
		idx.remove(e, id)
		for q := NodeID(0); q < 4; q++ {
			t.insert(first+q, e, idx)
		}
	}

	instrumentSplit(t.cfg.Name)
	instrumentNodes(t.cfg.Name, t.Len())
	logs.WithTag("tree", t.cfg.Name).
		WithTag("node", id).
		WithTag("depth", t.nodes[id].depth).
		Debug("node split")
}

func (t *Tree[E]) allocChildren(parent NodeID) NodeID {
	var first NodeID
	if n := len(t.free); n != 0 {
		first = t.free[n-1]
		t.free = t.free[:n-1]
	} else {
		first = NodeID(len(t.nodes))
		t.nodes = append(t.nodes, make([]node[E], 4)...)
	}

	rect := t.nodes[parent].rect
	depth := t.nodes[parent].depth + 1
	for q := TopLeft; q <= BottomRight; q++ {
		t.nodes[first+NodeID(q)] = node[E]{
			rect:     rect.Quadrant(q),
			parent:   parent,
			depth:    depth,
			alive:    true,
			children: NoNode,
		}
	}
	return first
}

func (t *Tree[E]) update(id NodeID, idx *Index[E]) int {
	if t.collapsible(id) {
		t.collapse(id, idx)
		return 1
	}

	first := t.nodes[id].children
	if first == NoNode {
		return 0
	}

	var collapses int
	for q := NodeID(0); q < 4; q++ {
		collapses += t.update(first+q, idx)
	}

	// Collapsed children no longer count an entity once per leaf, which can
	// bring this node down to capacity.
	if collapses != 0 && t.collapsible(id) {
		t.collapse(id, idx)
		collapses++
	}
	return collapses
}

func (t *Tree[E]) collapsible(id NodeID) bool {
	n := &t.nodes[id]
	return n.children != NoNode && n.count <= t.cfg.Capacity
}

func (t *Tree[E]) collapse(id NodeID, idx *Index[E]) {
	entities := make(map[E]struct{}, t.nodes[id].count)
	t.collect(id, entities)

	t.release(t.nodes[id].children, idx)
	t.nodes[id].children = NoNode
	t.addCount(id, -t.nodes[id].count)

	for e := range entities {
		t.insert(id, e, idx)
	}

	instrumentCollapse(t.cfg.Name)
	logs.WithTag("tree", t.cfg.Name).
		WithTag("node", id).
		WithTag("depth", t.nodes[id].depth).
		WithTag("entities", len(entities)).
		Debug("node collapsed")
}

// collect adds the distinct entities registered below id to entities.
func (t *Tree[E]) collect(id NodeID, entities map[E]struct{}) {
	n := &t.nodes[id]
	if n.children == NoNode {
		for e := range n.residents {
			entities[e] = struct{}{}
		}
		return
	}

	for q := NodeID(0); q < 4; q++ {
		t.collect(n.children+q, entities)
	}
}

// release frees the 4 children starting at first along with their subtrees
// and drops their leaves from idx. Counts are left to the caller.
func (t *Tree[E]) release(first NodeID, idx *Index[E]) {
	for q := NodeID(0); q < 4; q++ {
		id := first + q
		n := &t.nodes[id]

		if n.children != NoNode {
			t.release(n.children, idx)
		}
		for e := range n.residents {
			idx.remove(e, id)
		}

		*n = node[E]{
			parent:   NoNode,
			children: NoNode,
		}
	}

	t.free = append(t.free, first)
}

func (t *Tree[E]) recount(id NodeID, corrected *int) int {
	n := &t.nodes[id]

	count := len(n.residents)
	if n.children != NoNode {
		count = 0
		for q := NodeID(0); q < 4; q++ {
			count += t.recount(n.children+q, corrected)
		}
	}

	if n.count != count {
		n.count = count
		*corrected++
	}
	return count
}
