// internal/input/pointer/cursor.go
package pointer

import (
	"github.com/xkilldash9x/inputcore/api/schemas"
	"github.com/xkilldash9x/inputcore/internal/input/hittest"
	"github.com/xkilldash9x/inputcore/internal/input/host"
)

// Classify picks the cursor for what lies under the pointer. Controls win
// over content; an explicit cursor on the target or an ancestor wins over the
// inferred one.
func Classify(tree host.Tree, res hittest.Result) schemas.Cursor {
	switch {
	case res.IsOverResizer:
		return schemas.CursorResize
	case res.IsOverScrollbar, res.Empty():
		return schemas.CursorPointer
	}

	for cur := res.Target; !cur.IsZero(); cur = tree.Parent(cur) {
		if c, ok := host.As[host.CursorProvider](tree, cur); ok {
			if v := c.Cursor(); v != "" && v != schemas.CursorAuto {
				return v
			}
		}
	}

	if !host.Nearest(tree, res.Target, func(r host.Ref) bool { return host.IsLink(tree, r) }).IsZero() {
		return schemas.CursorHand
	}
	if host.IsEditable(tree, res.Target) || (!res.Node.IsZero() && tree.IsText(res.Node)) {
		return schemas.CursorText
	}
	return schemas.CursorPointer
}
