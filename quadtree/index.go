package quadtree

import (
	"sort"
)

// Index is the reverse index that maps an entity to the leaves that currently
// register it. It is owned by the caller and passed into every mutating tree
// call. An entity straddling a quadrant edge is registered in several leaves.
//
// An Index is not safe for concurrent use and must only be used with one tree.
type Index[E comparable] struct {
	leaves map[E]map[NodeID]struct{}
}

// NewIndex returns an empty reverse index.
func NewIndex[E comparable]() *Index[E] {
	return &Index[E]{
		leaves: make(map[E]map[NodeID]struct{}),
	}
}

// Leaves returns the ids of the leaves that register e, in ascending order.
func (idx *Index[E]) Leaves(e E) []NodeID {
	leaves := idx.leaves[e]
	if len(leaves) == 0 {
		return nil
	}

	ids := make([]NodeID, 0, len(leaves))
	for id := range leaves {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return ids[i] < ids[j]
	})
	return ids
}

// Has reports whether e is registered in at least one leaf.
func (idx *Index[E]) Has(e E) bool {
	return len(idx.leaves[e]) != 0
}

// Registered reports whether e is registered in the given leaf.
func (idx *Index[E]) Registered(e E, leaf NodeID) bool {
	_, ok := idx.leaves[e][leaf]
	return ok
}

// Len returns the number of registered entities.
func (idx *Index[E]) Len() int {
	return len(idx.leaves)
}

// Entities returns the registered entities in no particular order.
func (idx *Index[E]) Entities() []E {
	entities := make([]E, 0, len(idx.leaves))
	for e := range idx.leaves {
		entities = append(entities, e)
	}
	return entities
}

func (idx *Index[E]) add(e E, leaf NodeID) {
	leaves, ok := idx.leaves[e]
	if !ok {
		leaves = make(map[NodeID]struct{}, 1)
		idx.leaves[e] = leaves
	}
	leaves[leaf] = struct{}{}
}

func (idx *Index[E]) remove(e E, leaf NodeID) {
	leaves, ok := idx.leaves[e]
	if !ok {
		return
	}

	delete(leaves, leaf)
	if len(leaves) == 0 {
		delete(idx.leaves, e)
	}
}
