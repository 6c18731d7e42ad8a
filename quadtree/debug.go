package quadtree

// DebugInfo describes the shape and the occupancy of a tree.
type DebugInfo struct {
	Name          string     `json:"name"`
	Bounds        Rect       `json:"bounds"`
	Capacity      int        `json:"capacity"`
	MaxDepth      int        `json:"max_depth"`
	NodeCount     int        `json:"node_count"`
	LeafCount     int        `json:"leaf_count"`
	Depth         int        `json:"depth"`
	Registrations int        `json:"registrations"`
	Leaves        []LeafInfo `json:"leaves"`
}

// LeafInfo describes a leaf of a tree.
type LeafInfo struct {
	ID        NodeID `json:"id"`
	Rect      Rect   `json:"rect"`
	Depth     int    `json:"depth"`
	Residents int    `json:"residents"`
}

func (t *Tree[E]) GetDebugInfo() DebugInfo {
	info := DebugInfo{
		Name:          t.cfg.Name,
		Bounds:        t.cfg.Bounds,
		Capacity:      t.cfg.Capacity,
		MaxDepth:      t.cfg.MaxDepth,
		Registrations: t.nodes[Root].count,
	}

	t.Walk(func(id NodeID) bool {
		n := &t.nodes[id]
		info.NodeCount++

		if n.depth > info.Depth {
			info.Depth = n.depth
		}

		if n.children == NoNode {
			info.LeafCount++
			info.Leaves = append(info.Leaves, LeafInfo{
				ID:        id,
				Rect:      n.rect,
				Depth:     n.depth,
				Residents: len(n.residents),
			})
		}
		return true
	})

	return info
}
