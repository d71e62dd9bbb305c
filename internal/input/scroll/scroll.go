// internal/input/scroll/scroll.go
// Package scroll walks the scroll chain shared by wheel, gesture and keyboard
// defaults: scrollable boxes from a start node up to its document, then the
// document viewports from the innermost frame out to the root.
package scroll

import (
	"github.com/xkilldash9x/inputcore/api/schemas"
	"github.com/xkilldash9x/inputcore/internal/input/host"
)

// Ancestors scrolls the closest box at or above start, within start's
// document, that moves along axis. A positive delta scrolls forward.
//
// When stop is non-nil and names a node, bubbling ends there even if it did
// not move. On success stop is updated to the box that scrolled.
func Ancestors(tree host.Tree, sc host.Scroller, start host.Ref, axis schemas.Axis, g schemas.Granularity, delta float64, stop *host.Ref) bool {
	if delta == 0 {
		return false
	}
	for cur := host.ElementOf(tree, start); !cur.IsZero(); cur = tree.Parent(cur) {
		if !tree.IsAlive(cur) || tree.Document(cur) == cur {
			break
		}
		atStop := stop != nil && !stop.IsZero() && *stop == cur
		if s, ok := host.As[host.Scrollable](tree, cur); ok && s.ScrollsOverflow() {
			if sc.Scroll(cur, axis, g, delta) != 0 {
				if stop != nil {
					*stop = cur
				}
				return true
			}
		}
		if atStop {
			return true
		}
	}
	return false
}

// Viewport scrolls doc's viewport, bubbling out through enclosing frames
// until one moves.
func Viewport(tree host.Tree, sc host.Scroller, doc host.Ref, axis schemas.Axis, g schemas.Granularity, delta float64) bool {
	if delta == 0 {
		return false
	}
	for d := doc; !d.IsZero() && tree.IsAlive(d); d = tree.Document(tree.OwnerElement(d)) {
		if sc.Scroll(d, axis, g, delta) != 0 {
			return true
		}
	}
	return false
}

// Chain runs Ancestors then Viewport for both axes and reports whether
// anything moved.
func Chain(tree host.Tree, sc host.Scroller, start host.Ref, g schemas.Granularity, dx, dy float64) bool {
	h := Ancestors(tree, sc, start, schemas.AxisX, g, dx, nil)
	v := Ancestors(tree, sc, start, schemas.AxisY, g, dy, nil)
	if h || v {
		return true
	}
	doc := tree.Document(start)
	if doc.IsZero() {
		doc = tree.RootDocument()
	}
	h = Viewport(tree, sc, doc, schemas.AxisX, g, dx)
	v = Viewport(tree, sc, doc, schemas.AxisY, g, dy)
	return h || v
}
