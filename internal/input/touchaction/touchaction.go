// internal/input/touchaction/touchaction.go
package touchaction

import (
	"github.com/xkilldash9x/inputcore/api/schemas"
	"github.com/xkilldash9x/inputcore/internal/input/host"
)

// Intersect combines two touch-action values. None absorbs everything and
// auto is the identity; disjoint restrictions collapse to none.
func Intersect(a, b schemas.TouchAction) schemas.TouchAction {
	switch {
	case a == schemas.TouchActionNone || b == schemas.TouchActionNone:
		return schemas.TouchActionNone
	case a == schemas.TouchActionAuto:
		return b
	case b == schemas.TouchActionAuto:
		return a
	}
	if both := a & b; both != 0 {
		return both
	}
	return schemas.TouchActionNone
}

// Resolver computes effective touch actions.
type Resolver struct {
	tree host.Tree
}

// New returns a Resolver over tree.
func New(tree host.Tree) *Resolver { return &Resolver{tree: tree} }

// Effective walks from t towards the root intersecting each declared
// touch-action. The walk stops at the first box that scrolls its overflow,
// because that box handles panning for everything inside it.
func (r *Resolver) Effective(t host.Ref) schemas.TouchAction {
	effective := schemas.TouchActionAuto
	for cur := host.ElementOf(r.tree, t); !cur.IsZero(); cur = r.tree.Parent(cur) {
		if !r.tree.IsAlive(cur) {
			break
		}
		if p, ok := host.As[host.TouchActionProvider](r.tree, cur); ok {
			effective = Intersect(p.TouchAction(), effective)
			if effective == schemas.TouchActionNone {
				break
			}
		}
		if s, ok := host.As[host.Scrollable](r.tree, cur); ok && s.ScrollsOverflow() {
			break
		}
	}
	return effective
}
