package models

import (
	"math"
	"sync"

	"github.com/aukilabs/broadphase/quadtree"
)

// Entity is a moving box of a world.
type Entity struct {
	ID     uint32
	UUID   string
	Static bool

	mutex sync.RWMutex
	body  Body
}

func (e *Entity) SetBody(v Body) {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	e.body = v
}

func (e *Entity) Body() Body {
	e.mutex.RLock()
	defer e.mutex.RUnlock()

	return e.body
}

func (e *Entity) Bounds() quadtree.Rect {
	return e.Body().Bounds()
}

func (e *Entity) ToView() EntityView {
	e.mutex.RLock()
	defer e.mutex.RUnlock()

	return EntityView{
		ID:     e.ID,
		UUID:   e.UUID,
		Static: e.Static,
		Body:   e.body,
	}
}

// Intersects reports whether the entity bounds overlap r. It is the
// containment predicate of world trees.
func (e *Entity) Intersects(r quadtree.Rect) bool {
	b := e.Body()
	if b.HalfW == 0 && b.HalfH == 0 {
		return r.ContainsPoint(b.X, b.Y)
	}
	return r.Intersects(b.Bounds())
}

// EntityView is the serializable state of an entity.
type EntityView struct {
	ID     uint32 `json:"id"`
	UUID   string `json:"uuid"`
	Static bool   `json:"static,omitempty"`
	Body   Body   `json:"body"`
}

func EntitiesToViews(entities []*Entity) []EntityView {
	views := make([]EntityView, len(entities))
	for i, e := range entities {
		views[i] = e.ToView()
	}
	return views
}

// Body is the position, the size and the velocity of an entity. X and Y are
// the center of the entity.
type Body struct {
	X     float32 `json:"x"     yaml:"x"`
	Y     float32 `json:"y"     yaml:"y"`
	HalfW float32 `json:"half_w" yaml:"half_w"`
	HalfH float32 `json:"half_h" yaml:"half_h"`
	VX    float32 `json:"vx"    yaml:"vx"`
	VY    float32 `json:"vy"    yaml:"vy"`
}

func (b Body) Bounds() quadtree.Rect {
	return quadtree.Rect{
		X: b.X - b.HalfW,
		Y: b.Y - b.HalfH,
		W: 2 * b.HalfW,
		H: 2 * b.HalfH,
	}
}

// Advance moves the body by its velocity for the given number of seconds. The
// body bounces on the edges of bounds and always overlaps them.
func (b Body) Advance(seconds float32, bounds quadtree.Rect) Body {
	b.X += b.VX * seconds
	b.Y += b.VY * seconds

	if b.X-b.HalfW < bounds.X {
		b.X = bounds.X + b.HalfW
		b.VX = -b.VX
	} else if b.X+b.HalfW > bounds.MaxX() {
		b.X = bounds.MaxX() - b.HalfW
		b.VX = -b.VX
	}

	if b.Y-b.HalfH < bounds.Y {
		b.Y = bounds.Y + b.HalfH
		b.VY = -b.VY
	} else if b.Y+b.HalfH > bounds.MaxY() {
		b.Y = bounds.MaxY() - b.HalfH
		b.VY = -b.VY
	}

	// The right and bottom edges are outside of bounds.
	if b.X-b.HalfW >= bounds.MaxX() {
		b.X = math.Nextafter32(bounds.MaxX(), bounds.X) + b.HalfW
	}
	if b.Y-b.HalfH >= bounds.MaxY() {
		b.Y = math.Nextafter32(bounds.MaxY(), bounds.Y) + b.HalfH
	}

	return b
}
