// internal/input/host/resolve.go
package host

import (
	"errors"
	"fmt"
)

var (
	// ErrStaleTarget means a held reference no longer names an attached node.
	ErrStaleTarget = errors.New("stale target")
	// ErrViewportDetached means the viewport was torn down mid-dispatch.
	ErrViewportDetached = errors.New("viewport detached")
	// ErrNoSession means an operation needed a session that does not exist.
	ErrNoSession = errors.New("no session")
	// ErrDragDeclined means the platform refused to start a drag.
	ErrDragDeclined = errors.New("drag declined by platform")
	// ErrUnknownTouch means a touch id was never pressed in this sequence.
	ErrUnknownTouch = errors.New("unknown touch id")
)

// Valid reports whether r is alive and attached to its document.
func Valid(t Tree, r Ref) bool {
	return !r.IsZero() && t.IsAlive(r) && t.IsAttached(r)
}

// Revalidate returns r when it is still attached, otherwise the nearest
// ancestor that is. Destroyed nodes have no ancestry left and yield
// ErrStaleTarget.
func Revalidate(t Tree, r Ref) (Ref, error) {
	if r.IsZero() {
		return Ref{}, fmt.Errorf("revalidate: %w", ErrNoSession)
	}
	for cur := r; !cur.IsZero(); cur = t.Parent(cur) {
		if !t.IsAlive(cur) {
			break
		}
		if t.IsAttached(cur) {
			return cur, nil
		}
	}
	return Ref{}, fmt.Errorf("revalidate %s: %w", r, ErrStaleTarget)
}

// ElementOf maps a text node to its parent element.
func ElementOf(t Tree, r Ref) Ref {
	if !r.IsZero() && t.IsText(r) {
		return t.Parent(r)
	}
	return r
}

// Nearest walks from r towards the document root and returns the first node
// for which match is true.
func Nearest(t Tree, r Ref, match func(Ref) bool) Ref {
	for cur := r; !cur.IsZero(); cur = t.Parent(cur) {
		if match(cur) {
			return cur
		}
	}
	return Ref{}
}

// CommonAncestor returns the deepest node that is an ancestor-or-self of both
// a and b under the parent relation next. A zero result means the chains
// never meet.
func CommonAncestor(a, b Ref, next func(Ref) Ref) Ref {
	if a.IsZero() || b.IsZero() {
		return Ref{}
	}
	seen := make(map[Ref]struct{})
	for cur := a; !cur.IsZero(); cur = next(cur) {
		seen[cur] = struct{}{}
	}
	for cur := b; !cur.IsZero(); cur = next(cur) {
		if _, ok := seen[cur]; ok {
			return cur
		}
	}
	return Ref{}
}

// ParentForClick is the parent relation used to find click targets.
// Interactive content ends the chain so a press inside a form control and a
// release outside it never produce a click on a shared ancestor.
func ParentForClick(t Tree) func(Ref) Ref {
	return func(r Ref) Ref {
		if ic, ok := As[InteractiveContent](t, r); ok && ic.IsInteractiveContent() {
			return Ref{}
		}
		return t.Parent(r)
	}
}
