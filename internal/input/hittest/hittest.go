// internal/input/hittest/hittest.go
package hittest

import (
	"math"

	"go.uber.org/zap"

	"github.com/xkilldash9x/inputcore/api/schemas"
	"github.com/xkilldash9x/inputcore/internal/geom"
	"github.com/xkilldash9x/inputcore/internal/input/host"
	"github.com/xkilldash9x/inputcore/internal/observability"
)

// Flags modify a hit-test request.
type Flags uint8

const (
	// ReadOnly queries never touch hover or active state.
	ReadOnly Flags = 1 << iota
	// Active moves the active state to the hit chain.
	Active
	// Move marks queries made for pointer motion.
	Move
	// Release clears the active state.
	Release
	// TouchEvent marks queries made for touch points.
	TouchEvent
	// AllowChildFrameContent descends into embedded frames.
	AllowChildFrameContent
)

// Has reports whether every bit of o is set.
func (f Flags) Has(o Flags) bool { return f&o == o }

// Result describes what lies under a point.
type Result struct {
	// Node is the raw hit, possibly a text node.
	Node host.Ref
	// Target is Node mapped to its element.
	Target host.Ref
	// Document owns Target. With AllowChildFrameContent this is the innermost
	// document reached.
	Document host.Ref
	// DocPoint is the query point in Document's coordinates.
	DocPoint schemas.Point
	Local    schemas.Point

	IsOverScrollbar bool
	Scrollbar       host.Ref
	IsOverResizer   bool

	// IsOverEmbeddedFrame is set when the hit stopped at a frame owner.
	IsOverEmbeddedFrame bool
	EmbeddedFrame       host.Ref

	// Candidates lists elements under the footprint, topmost first. Only
	// rect-based queries fill it.
	Candidates []host.Ref
}

// Empty reports whether nothing was hit.
func (r Result) Empty() bool { return r.Target.IsZero() }

// HitTester resolves points to targets. It holds no session state.
type HitTester struct {
	tree       host.Tree
	logger     *zap.Logger
	onActivate func(host.Ref)
}

// New returns a HitTester over tree.
func New(tree host.Tree, logger *zap.Logger) *HitTester {
	return &HitTester{tree: tree, logger: observability.Component(logger, "hittest")}
}

// SetActivationHook registers fn to run whenever a non read-only query moves
// the active state to a different element.
func (h *HitTester) SetActivationHook(fn func(host.Ref)) { h.onActivate = fn }

// HitTest queries doc at p (in doc's coordinates). A positive radius makes
// the query rect-based.
func (h *HitTester) HitTest(doc host.Ref, p schemas.Point, radius schemas.Point, flags Flags) Result {
	if doc.IsZero() || !h.tree.IsAlive(doc) || !h.tree.IsLaidOut(doc) {
		h.logger.Debug("hit test on document without layout", zap.Stringer("document", doc))
		return Result{}
	}

	raw := h.tree.HitTest(doc, p, radius)
	res := Result{
		Node:            raw.Node,
		Target:          host.ElementOf(h.tree, raw.Node),
		Document:        doc,
		DocPoint:        p,
		Local:           raw.Local,
		Scrollbar:       raw.Scrollbar,
		IsOverScrollbar: !raw.Scrollbar.IsZero(),
		IsOverResizer:   raw.Resizer,
	}
	if radius.X > 0 || radius.Y > 0 {
		res.Candidates = h.elements(raw.Candidates)
	}

	if owner, ok := host.As[host.FrameOwner](h.tree, res.Target); ok {
		content := owner.ContentDocument()
		if flags.Has(AllowChildFrameContent) && !content.IsZero() && h.tree.IsAlive(content) {
			if !flags.Has(ReadOnly) {
				h.updateHoverActive(doc, res.Target, flags)
			}
			inner := h.HitTest(content, p.Sub(owner.ContentOffset()), radius, flags)
			if !inner.Empty() {
				return inner
			}
			// An empty frame still reports the owner.
		}
		res.IsOverEmbeddedFrame = true
		res.EmbeddedFrame = res.Target
	}

	if !flags.Has(ReadOnly) {
		h.updateHoverActive(doc, res.Target, flags)
	}
	return res
}

// HitTestRoot queries the root document with a viewport point.
func (h *HitTester) HitTestRoot(p schemas.Point, radius schemas.Point, flags Flags) Result {
	return h.HitTest(h.tree.RootDocument(), p, radius, flags|AllowChildFrameContent)
}

func (h *HitTester) updateHoverActive(doc, t host.Ref, flags Flags) {
	before := h.tree.ActiveElement(doc)
	active := flags.Has(Active) && !flags.Has(Release)
	h.tree.UpdateHoverActive(doc, t, active, flags.Has(Release))
	if !active {
		return
	}
	if after := h.tree.ActiveElement(doc); after != before && h.onActivate != nil {
		h.onActivate(after)
	}
}

func (h *HitTester) elements(nodes []host.Ref) []host.Ref {
	out := make([]host.Ref, 0, len(nodes))
	seen := make(map[host.Ref]struct{}, len(nodes))
	for _, n := range nodes {
		e := host.ElementOf(h.tree, n)
		if e.IsZero() {
			continue
		}
		if _, dup := seen[e]; dup {
			continue
		}
		seen[e] = struct{}{}
		out = append(out, e)
	}
	return out
}

// RootPoint converts p from doc's coordinates to root viewport coordinates.
func (h *HitTester) RootPoint(doc host.Ref, p schemas.Point) schemas.Point {
	for cur := doc; !cur.IsZero(); {
		owner := h.tree.OwnerElement(cur)
		if owner.IsZero() {
			break
		}
		if fo, ok := host.As[host.FrameOwner](h.tree, owner); ok {
			p = p.Add(fo.ContentOffset())
		}
		cur = h.tree.Document(owner)
	}
	return p
}

// DocPoint converts a root viewport point into doc's coordinates.
func (h *HitTester) DocPoint(doc host.Ref, p schemas.Point) schemas.Point {
	return p.Sub(h.RootPoint(doc, schemas.Point{}))
}

// Tree is the tree h queries.
func (h *HitTester) Tree() host.Tree { return h.tree }

// respondsToTap reports whether r handles taps on its own.
func (h *HitTester) respondsToTap(r host.Ref) bool {
	if c, ok := host.As[host.Clickable](h.tree, r); ok && c.IsClickable() {
		return true
	}
	if f, ok := host.As[host.Focusable](h.tree, r); ok && f.MouseFocusable() {
		return true
	}
	return host.IsLink(h.tree, r)
}

// Adjust snaps a rect-based result to the best candidate that responds to
// taps. Candidates are ranked by how much of the footprint they cover, then
// by how close their centre is to the touch point. The returned point lies
// inside the chosen node and is in res.Document's coordinates.
func (h *HitTester) Adjust(res Result, radius schemas.Point) (schemas.Point, host.Ref, bool) {
	footprint := geom.RectAround(res.DocPoint, radius)

	var (
		best      host.Ref
		bestArea  = -1.0
		bestDist  = math.Inf(1)
		bestPoint schemas.Point
	)
	seen := make(map[host.Ref]struct{})
	for _, c := range res.Candidates {
		node := host.Nearest(h.tree, c, h.respondsToTap)
		if node.IsZero() {
			continue
		}
		if _, dup := seen[node]; dup {
			continue
		}
		seen[node] = struct{}{}

		bounds := host.Bounds(h.tree, node)
		overlap := bounds.Intersect(footprint)
		area := overlap.Area()
		dist := geom.Dist(bounds.Center(), res.DocPoint)
		if area > bestArea || (area == bestArea && dist < bestDist) {
			best, bestArea, bestDist = node, area, dist
			if overlap.Empty() {
				bestPoint = bounds.Clamp(res.DocPoint)
			} else {
				bestPoint = overlap.Center()
			}
		}
	}
	if best.IsZero() {
		return res.DocPoint, res.Target, false
	}
	return bestPoint, best, true
}
