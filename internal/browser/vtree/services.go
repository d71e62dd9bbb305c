// internal/browser/vtree/services.go
package vtree

import (
	"math"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/xkilldash9x/inputcore/api/schemas"
	"github.com/xkilldash9x/inputcore/internal/geom"
	"github.com/xkilldash9x/inputcore/internal/input/host"
)

// Scroll step sizes.
const (
	LineStep     = 40.0
	PageFraction = 0.875
)

// ScrollRecord is one Scroll call that moved something.
type ScrollRecord struct {
	Target   host.Ref
	Axis     schemas.Axis
	Consumed float64
}

// Selection is the selection of one document.
type Selection struct {
	Anchor      host.Ref
	Start, End  schemas.Point
	Granularity schemas.Granularity
	Box         geom.Rect
}

// -- host.Focus --

func (v *View) FocusedTarget() host.Ref {
	if d, ok := v.docs[v.focusedDoc]; ok {
		return d.focused
	}
	return host.Ref{}
}

// FocusedDocument is the document holding focus.
func (v *View) FocusedDocument() host.Ref {
	if _, ok := v.docs[v.focusedDoc]; !ok {
		v.focusedDoc = v.root
	}
	return v.focusedDoc
}

// GuardFocus installs fn to approve focus changes; returning false refuses
// the change the way a blur listener can.
func (v *View) GuardFocus(fn func(doc, t host.Ref) bool) { v.focusGuard = fn }

func (v *View) SetFocusedTarget(doc host.Ref, t host.Ref) bool {
	if v.focusGuard != nil && !v.focusGuard(doc, t) {
		return false
	}
	if !t.IsZero() {
		if !v.nodes.Live(t) {
			return false
		}
		doc = v.Document(t)
	}
	d, ok := v.docs[doc]
	if !ok {
		return false
	}
	d.focused = t
	v.focusedDoc = doc
	v.logger.Debug("focus changed", zap.String("target", v.Label(t)))
	return true
}

func (v *View) AdvanceFocus(dir schemas.FocusDirection) bool {
	var order []host.Ref
	v.walk(v.FocusedDocument(), func(r host.Ref, n *node) bool {
		if n.kind != kindElement {
			return true
		}
		if (&Element{v: v, ref: r, n: n}).KeyboardFocusable() {
			order = append(order, r)
		}
		return true
	})
	if len(order) == 0 {
		return false
	}
	cur := v.FocusedTarget()

	var next host.Ref
	switch dir {
	case schemas.FocusForward, schemas.FocusBackward:
		next = sequential(order, cur, dir == schemas.FocusForward)
	default:
		next = v.spatial(order, cur, dir)
	}
	if next.IsZero() {
		return false
	}
	return v.SetFocusedTarget(v.FocusedDocument(), next)
}

// sequential steps through order without wrapping.
func sequential(order []host.Ref, cur host.Ref, forward bool) host.Ref {
	idx := -1
	for i, r := range order {
		if r == cur {
			idx = i
		}
	}
	switch {
	case forward && idx+1 < len(order):
		return order[idx+1]
	case !forward && idx == -1:
		return order[len(order)-1]
	case !forward && idx > 0:
		return order[idx-1]
	}
	return host.Ref{}
}

func (v *View) spatial(order []host.Ref, cur host.Ref, dir schemas.FocusDirection) host.Ref {
	from := geom.Rect{}.Center()
	if n, ok := v.nodes.Get(cur); ok {
		from = n.rect.Center()
	}
	type cand struct {
		r    host.Ref
		dist float64
	}
	var cands []cand
	for _, r := range order {
		if r == cur {
			continue
		}
		n, _ := v.nodes.Get(r)
		c := n.rect.Center()
		dx, dy := c.X-from.X, c.Y-from.Y
		var ahead bool
		switch dir {
		case schemas.FocusUp:
			ahead = dy < 0
		case schemas.FocusDown:
			ahead = dy > 0
		case schemas.FocusLeft:
			ahead = dx < 0
		case schemas.FocusRight:
			ahead = dx > 0
		}
		if ahead {
			cands = append(cands, cand{r, math.Hypot(dx, dy)})
		}
	}
	if len(cands) == 0 {
		return host.Ref{}
	}
	sort.SliceStable(cands, func(i, j int) bool { return cands[i].dist < cands[j].dist })
	return cands[0].r
}

// -- host.Scroller --

func (v *View) Scroll(t host.Ref, axis schemas.Axis, g schemas.Granularity, delta float64) float64 {
	n, ok := v.nodes.Get(t)
	if !ok || delta == 0 {
		return 0
	}
	var max schemas.Point
	switch n.kind {
	case kindDocument:
		max = v.docs[t].scrollMax
	case kindElement:
		s, ok := n.attr("data-scroll")
		if !ok {
			return 0
		}
		p, err := parsePair(s)
		if err != nil {
			return 0
		}
		max = p
	default:
		return 0
	}

	step := delta
	switch g {
	case schemas.ByLine:
		step = delta * LineStep
	case schemas.ByPage:
		extent := n.rect.Height
		if axis == schemas.AxisX {
			extent = n.rect.Width
		}
		step = delta * math.Max(extent*PageFraction, 1)
	}

	pos := v.scroll[t]
	old, limit := pos.Y, max.Y
	if axis == schemas.AxisX {
		old, limit = pos.X, max.X
	}
	next := math.Min(math.Max(old+step, 0), limit)
	if axis == schemas.AxisX {
		pos.X = next
	} else {
		pos.Y = next
	}
	v.scroll[t] = pos
	consumed := next - old
	if consumed != 0 {
		v.scrollLog = append(v.scrollLog, ScrollRecord{Target: t, Axis: axis, Consumed: consumed})
	}
	return math.Abs(consumed)
}

func (v *View) ScrollbarGesture(scrollbar host.Ref, ev schemas.GestureEvent) bool {
	if !v.nodes.Live(scrollbar) {
		return false
	}
	switch ev.Type {
	case schemas.GestureTapDown, schemas.GestureTap, schemas.GestureScrollBegin,
		schemas.GestureScrollUpdate, schemas.GestureScrollUpdateNoPropagation, schemas.GestureScrollEnd:
		v.scrollbarGestures = append(v.scrollbarGestures, ev.Type)
		return true
	}
	return false
}

// ScrollOffset is the current scroll position of t.
func (v *View) ScrollOffset(t host.Ref) schemas.Point { return v.scroll[t] }

// Scrolls returns every Scroll call that moved something.
func (v *View) Scrolls() []ScrollRecord { return append([]ScrollRecord(nil), v.scrollLog...) }

// ScrollbarGestures returns gestures taken by scrollbars.
func (v *View) ScrollbarGestures() []schemas.GestureType {
	return append([]schemas.GestureType(nil), v.scrollbarGestures...)
}

// WidgetGestures returns gestures consumed by embedded widgets.
func (v *View) WidgetGestures() []schemas.GestureType {
	return append([]schemas.GestureType(nil), v.widgetGestures...)
}

// -- host.DragPlatform --

func (v *View) BeginDrag(info host.DragInfo) bool {
	if v.declineDrags {
		return false
	}
	v.drags = append(v.drags, info)
	return true
}

// DeclineDrags makes the platform refuse every new drag.
func (v *View) DeclineDrags(decline bool) { v.declineDrags = decline }

// Drags returns drags handed to the platform.
func (v *View) Drags() []host.DragInfo { return append([]host.DragInfo(nil), v.drags...) }

// -- host.Editor --

func (v *View) SeedSelection(t host.Ref, p schemas.Point, g schemas.Granularity) bool {
	n, ok := v.nodes.Get(t)
	if !ok || !v.IsSelectable(t) {
		return false
	}
	d, ok := v.docs[n.doc]
	if !ok {
		return false
	}
	sel := &Selection{Anchor: t, Start: p, End: p, Granularity: g}
	if g != schemas.ByCharacter {
		sel.Box = n.rect
	}
	d.selection = sel
	return true
}

// IsSelectable is false for nodes inside a data-unselectable element.
func (v *View) IsSelectable(t host.Ref) bool {
	if !v.nodes.Live(t) {
		return false
	}
	for cur := v.elementOf(t); !cur.IsZero(); cur = v.Parent(cur) {
		n, ok := v.nodes.Get(cur)
		if !ok {
			break
		}
		if _, off := n.attr("data-unselectable"); off {
			return false
		}
	}
	return true
}

func (v *View) ExtendSelection(t host.Ref, p schemas.Point, g schemas.Granularity) {
	n, ok := v.nodes.Get(t)
	if !ok {
		return
	}
	d, ok := v.docs[n.doc]
	if !ok || d.selection == nil {
		return
	}
	sel := d.selection
	sel.End = p
	sel.Granularity = g
	box := geom.Rect{X: math.Min(sel.Start.X, p.X), Y: math.Min(sel.Start.Y, p.Y), Width: math.Abs(p.X - sel.Start.X), Height: math.Abs(p.Y - sel.Start.Y)}
	if !sel.Box.Empty() {
		box = union(box, sel.Box)
	}
	sel.Box = union(box, n.rect)
}

func union(a, b geom.Rect) geom.Rect {
	if a.Empty() {
		return b
	}
	if b.Empty() {
		return a
	}
	x, y := math.Min(a.X, b.X), math.Min(a.Y, b.Y)
	return geom.Rect{X: x, Y: y, Width: math.Max(a.Right(), b.Right()) - x, Height: math.Max(a.Bottom(), b.Bottom()) - y}
}

func (v *View) SelectionContains(doc host.Ref, p schemas.Point) bool {
	d, ok := v.docs[doc]
	return ok && d.selection != nil && d.selection.Box.Contains(p)
}

// Select selects all of r.
func (v *View) Select(r host.Ref) {
	n, ok := v.nodes.Get(r)
	if !ok {
		return
	}
	if d, ok := v.docs[n.doc]; ok {
		d.selection = &Selection{Anchor: r, Granularity: schemas.ByParagraph, Box: n.rect}
	}
}

// Selection returns doc's selection, or nil.
func (v *View) Selection(doc host.Ref) *Selection {
	if d, ok := v.docs[doc]; ok {
		return d.selection
	}
	return nil
}

func (v *View) HandleKeyCommand(t host.Ref, ev schemas.KeyEvent) bool {
	if !host.IsEditable(v, v.elementOf(t)) && !v.InDesignMode(v.Document(t)) {
		return false
	}
	switch ev.Type {
	case schemas.KeyChar:
		if ev.Text == "" {
			return false
		}
		v.edits = append(v.edits, "insert:"+ev.Text)
		return true
	case schemas.KeyDown, schemas.KeyRawDown:
		switch ev.Key {
		case "Backspace", "Delete", "Enter":
			v.edits = append(v.edits, strings.ToLower(ev.Key))
			return true
		}
		if ev.Modifiers.Has(schemas.ModCtrl) && len(ev.Key) == 1 {
			switch strings.ToLower(ev.Key) {
			case "a", "c", "v", "x", "z", "y":
				v.edits = append(v.edits, "ctrl+"+strings.ToLower(ev.Key))
				return true
			}
		}
	}
	return false
}

// Edits returns editing commands executed so far.
func (v *View) Edits() []string { return append([]string(nil), v.edits...) }

func (v *View) InDesignMode(doc host.Ref) bool {
	html := v.firstElement(doc, "html")
	n, ok := v.nodes.Get(html)
	if !ok {
		return false
	}
	mode, ok := n.attr("designmode")
	return ok && !strings.EqualFold(mode, "off")
}

func (v *View) elementOf(r host.Ref) host.Ref { return host.ElementOf(v, r) }

// -- host.Navigator --

func (v *View) NavigateBack() bool {
	if v.history == 0 {
		return false
	}
	v.history--
	v.backs++
	return true
}

// SetHistory sets how many entries NavigateBack can pop.
func (v *View) SetHistory(n int) { v.history = n }

// Backs counts successful NavigateBack calls.
func (v *View) Backs() int { return v.backs }

// -- host.Chrome --

func (v *View) SetCursor(c schemas.Cursor) { v.cursor = c }

func (v *View) SetTouchAction(id schemas.TouchID, a schemas.TouchAction) { v.touchActions[id] = a }

func (v *View) ShowContextMenu(t host.Ref, _ schemas.Point) {
	v.contextMenus = append(v.contextMenus, t)
}

// CurrentCursor is the last cursor set.
func (v *View) CurrentCursor() schemas.Cursor { return v.cursor }

// TouchActionFor is the last touch action reported for id.
func (v *View) TouchActionFor(id schemas.TouchID) (schemas.TouchAction, bool) {
	a, ok := v.touchActions[id]
	return a, ok
}

// ContextMenus returns targets of every context menu shown.
func (v *View) ContextMenus() []host.Ref { return append([]host.Ref(nil), v.contextMenus...) }
