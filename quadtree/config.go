package quadtree

import (
	"github.com/aukilabs/go-tooling/pkg/errors"
)

const (
	// The number of residents a leaf holds before it subdivides.
	DefaultCapacity = 4

	// The depth from which leaves stop subdividing.
	DefaultMaxDepth = 8

	defaultName = "default"
)

// DefaultBounds is the root rectangle used when none is configured.
var DefaultBounds = Rect{X: 0, Y: 0, W: 1024, H: 768}

// ContainsFunc reports whether an entity belongs in the given rectangle. The
// tree never computes geometry itself and relies solely on this predicate.
type ContainsFunc[E comparable] func(e E, r Rect) bool

// Config describes a tree. A zero field takes its default value.
type Config[E comparable] struct {
	// The tree name, used as a log tag and a metrics label.
	Name string

	// The root rectangle.
	Bounds Rect

	// The maximum number of residents a leaf holds before subdividing.
	Capacity int

	// The depth at which leaves stop subdividing and accept residents beyond
	// Capacity. It stops entities that overlap every quadrant from
	// subdividing forever.
	MaxDepth int

	// The containment predicate. It can also be set later with
	// Tree.SetContains but has to be set before inserting.
	Contains ContainsFunc[E]
}

func (c Config[E]) withDefaults() (Config[E], error) {
	if c.Name == "" {
		c.Name = defaultName
	}

	if c.Bounds == (Rect{}) {
		c.Bounds = DefaultBounds
	}
	if c.Bounds.Empty() {
		return c, errors.New("bounds have no area").
			WithType(ErrTypeInvalidConfig).
			WithTag("tree", c.Name).
			WithTag("bounds", c.Bounds)
	}

	switch {
	case c.Capacity == 0:
		c.Capacity = DefaultCapacity
	case c.Capacity < 0:
		return c, errors.New("capacity is negative").
			WithType(ErrTypeInvalidConfig).
			WithTag("tree", c.Name).
			WithTag("capacity", c.Capacity)
	}

	switch {
	case c.MaxDepth == 0:
		c.MaxDepth = DefaultMaxDepth
	case c.MaxDepth < 0:
		return c, errors.New("max depth is negative").
			WithType(ErrTypeInvalidConfig).
			WithTag("tree", c.Name).
			WithTag("max_depth", c.MaxDepth)
	}

	return c, nil
}
