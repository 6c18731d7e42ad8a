package quadtree

// Error types reported by the tree.
const (
	ErrTypeInvalidConfig          = "quadtree_invalid_config"
	ErrTypePredicateNotConfigured = "quadtree_predicate_not_configured"
	ErrTypeEntityAlreadyInserted  = "quadtree_entity_already_inserted"
	ErrTypeNotALeaf               = "quadtree_not_a_leaf"
)
