// internal/geom/geom.go
package geom

import (
	"math"

	"github.com/xkilldash9x/inputcore/api/schemas"
)

// Dist is the Euclidean distance between two points.
func Dist(a, b schemas.Point) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}

// ExceedsHysteresis reports whether p has moved at least threshold pixels from
// origin along either axis. The test is per axis, not radial, so a diagonal
// move needs the same travel on one axis as a straight one.
func ExceedsHysteresis(origin, p schemas.Point, threshold float64) bool {
	return math.Abs(p.X-origin.X) >= threshold || math.Abs(p.Y-origin.Y) >= threshold
}

// Within reports whether a and b are no more than slop apart on both axes.
func Within(a, b schemas.Point, slop float64) bool {
	return math.Abs(a.X-b.X) <= slop && math.Abs(a.Y-b.Y) <= slop
}

// Rect is an axis-aligned rectangle.
type Rect struct {
	X, Y, Width, Height float64
}

// RectAround returns the rectangle of the given radii centred on p.
func RectAround(p schemas.Point, radius schemas.Point) Rect {
	return Rect{X: p.X - radius.X, Y: p.Y - radius.Y, Width: 2 * radius.X, Height: 2 * radius.Y}
}

// Empty reports whether r has no area.
func (r Rect) Empty() bool { return r.Width <= 0 || r.Height <= 0 }

// Right is the exclusive right edge.
func (r Rect) Right() float64 { return r.X + r.Width }

// Bottom is the exclusive bottom edge.
func (r Rect) Bottom() float64 { return r.Y + r.Height }

// Contains reports whether p lies inside r. Edges on the right and bottom are
// exclusive so adjacent boxes never both claim a point.
func (r Rect) Contains(p schemas.Point) bool {
	return p.X >= r.X && p.X < r.Right() && p.Y >= r.Y && p.Y < r.Bottom()
}

// Intersect returns the overlap of r and o, or the zero Rect.
func (r Rect) Intersect(o Rect) Rect {
	x0 := math.Max(r.X, o.X)
	y0 := math.Max(r.Y, o.Y)
	x1 := math.Min(r.Right(), o.Right())
	y1 := math.Min(r.Bottom(), o.Bottom())
	if x1 <= x0 || y1 <= y0 {
		return Rect{}
	}
	return Rect{X: x0, Y: y0, Width: x1 - x0, Height: y1 - y0}
}

// Intersects reports whether r and o overlap.
func (r Rect) Intersects(o Rect) bool { return !r.Intersect(o).Empty() }

// Area returns Width*Height.
func (r Rect) Area() float64 {
	if r.Empty() {
		return 0
	}
	return r.Width * r.Height
}

// Center returns the midpoint of r.
func (r Rect) Center() schemas.Point {
	return schemas.Point{X: r.X + r.Width/2, Y: r.Y + r.Height/2}
}

// Origin returns the top-left corner.
func (r Rect) Origin() schemas.Point { return schemas.Point{X: r.X, Y: r.Y} }

// Translate returns r moved by d.
func (r Rect) Translate(d schemas.Point) Rect {
	return Rect{X: r.X + d.X, Y: r.Y + d.Y, Width: r.Width, Height: r.Height}
}

// Clamp returns the point inside r closest to p.
func (r Rect) Clamp(p schemas.Point) schemas.Point {
	if r.Empty() {
		return r.Origin()
	}
	return schemas.Point{
		X: math.Min(math.Max(p.X, r.X), r.Right()-1e-9),
		Y: math.Min(math.Max(p.Y, r.Y), r.Bottom()-1e-9),
	}
}
