package quadtree

// Rect is an axis-aligned rectangle. X and Y are the top-left corner.
type Rect struct {
	X float32 `json:"x" toml:"x" yaml:"x"`
	Y float32 `json:"y" toml:"y" yaml:"y"`
	W float32 `json:"w" toml:"w" yaml:"w"`
	H float32 `json:"h" toml:"h" yaml:"h"`
}

// Quadrant identifies one of the 4 sub-rectangles of a subdivided node.
type Quadrant uint8

const (
	TopLeft Quadrant = iota
	TopRight
	BottomLeft
	BottomRight
)

func (q Quadrant) String() string {
	switch q {
	case TopLeft:
		return "top_left"
	case TopRight:
		return "top_right"
	case BottomLeft:
		return "bottom_left"
	case BottomRight:
		return "bottom_right"
	default:
		return "unknown"
	}
}

func (r Rect) MaxX() float32 {
	return r.X + r.W
}

func (r Rect) MaxY() float32 {
	return r.Y + r.H
}

// Empty reports whether the rectangle has no area.
func (r Rect) Empty() bool {
	return r.W <= 0 || r.H <= 0
}

// Quadrant returns the given quarter of r, computed by halving its width and
// height.
func (r Rect) Quadrant(q Quadrant) Rect {
	w := r.W / 2
	h := r.H / 2

	switch q {
	case TopRight:
		return Rect{X: r.X + w, Y: r.Y, W: w, H: h}
	case BottomLeft:
		return Rect{X: r.X, Y: r.Y + h, W: w, H: h}
	case BottomRight:
		return Rect{X: r.X + w, Y: r.Y + h, W: w, H: h}
	default:
		return Rect{X: r.X, Y: r.Y, W: w, H: h}
	}
}

// ContainsPoint reports whether the point lies in r. The left and top edges
// are inclusive, the right and bottom edges exclusive.
func (r Rect) ContainsPoint(x, y float32) bool {
	return x >= r.X && x < r.MaxX() &&
		y >= r.Y && y < r.MaxY()
}

// Intersects reports whether the box b overlaps r. r is half-open like in
// ContainsPoint while b is closed, so a zero sized box behaves like a point and
// a box straddling a quadrant edge overlaps both quadrants.
func (r Rect) Intersects(b Rect) bool {
	return b.X < r.MaxX() && r.X <= b.MaxX() &&
		b.Y < r.MaxY() && r.Y <= b.MaxY()
}
