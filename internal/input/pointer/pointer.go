// internal/input/pointer/pointer.go
// Package pointer is the PointerStateMachine. Each mouse-like device moves
// through Idle → Pressed → (Dragging | Selecting) → Idle; the machine turns
// raw platform pointer events into mouse notifications, click chains, drag
// hand-off, selection and wheel scrolling. Every held target is re-validated
// after each dispatch because listeners may rewrite the tree.
package pointer

import (
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/inputcore/api/schemas"
	"github.com/xkilldash9x/inputcore/internal/config"
	"github.com/xkilldash9x/inputcore/internal/geom"
	"github.com/xkilldash9x/inputcore/internal/input/dnd"
	"github.com/xkilldash9x/inputcore/internal/input/hittest"
	"github.com/xkilldash9x/inputcore/internal/input/host"
	"github.com/xkilldash9x/inputcore/internal/input/loop"
	"github.com/xkilldash9x/inputcore/internal/input/scroll"
	"github.com/xkilldash9x/inputcore/internal/input/session"
	"github.com/xkilldash9x/inputcore/internal/observability"
)

// Machine is the PointerStateMachine of one top-level viewport.
type Machine struct {
	host   host.Host
	hit    *hittest.HitTester
	reg    *session.Registry
	dnd    *dnd.Controller
	sched  loop.Scheduler
	cfg    config.PointerConfig
	drag   config.DragConfig
	logger *zap.Logger

	fakeMove *loop.Slot
	// autoscroll steps a selection dragged past the viewport edge on behalf
	// of scrollPointer.
	autoscroll    *loop.Slot
	scrollPointer schemas.PointerID
	// limiter decides between the short and long fake move interval: while
	// tokens last requests use the short one.
	limiter *rate.Limiter
}

// New returns a Machine sharing reg and d with the other components.
func New(cfg config.InputConfig, h host.Host, hit *hittest.HitTester, reg *session.Registry, d *dnd.Controller, sched loop.Scheduler, logger *zap.Logger) *Machine {
	return &Machine{
		host:       h,
		hit:        hit,
		reg:        reg,
		dnd:        d,
		sched:      sched,
		cfg:        cfg.Pointer,
		drag:       cfg.Drag,
		logger:     observability.Component(logger, "pointer"),
		fakeMove:   loop.NewSlot(sched),
		autoscroll: loop.NewSlot(sched),
		limiter:    rate.NewLimiter(rate.Every(cfg.Pointer.FakeMoveLongInterval), cfg.Pointer.FakeMoveBurst),
	}
}

// mouse is the platform side of a mouse notification.
type mouse struct {
	pos       schemas.Point // root viewport point
	button    schemas.MouseButton
	count     int
	mods      schemas.Modifiers
	related   host.Ref
	synthetic bool
}

func fromEvent(ev schemas.PointerEvent, count int) mouse {
	return mouse{pos: ev.Position, button: ev.Button, count: count, mods: ev.Modifiers, synthetic: ev.FromTouch}
}

// dispatch delivers a mouse notification. Stale or detached targets and a
// torn-down viewport get nothing.
func (m *Machine) dispatch(kind schemas.EventType, t host.Ref, ms mouse) host.Outcome {
	if !m.reg.Alive() || !host.Valid(m.host.Tree, t) {
		return host.Outcome{}
	}
	doc := m.host.Tree.Document(t)
	return m.host.Dispatcher.Dispatch(kind, t, host.MousePayload{
		Position:   m.hit.DocPoint(doc, ms.pos),
		Viewport:   ms.pos,
		Button:     ms.button,
		ClickCount: ms.count,
		Modifiers:  ms.mods,
		Related:    ms.related,
		Synthetic:  ms.synthetic,
	})
}

// revalidate re-resolves r after a dispatch. A zero result means r is gone.
func (m *Machine) revalidate(r host.Ref) host.Ref {
	if r.IsZero() {
		return r
	}
	out, err := host.Revalidate(m.host.Tree, r)
	if err != nil {
		m.logger.Debug("dropping stale reference", zap.Error(err))
		return host.Ref{}
	}
	return out
}

// clickCount compares ev with the previous press of p.
func (m *Machine) clickCount(p *session.Pointer, ev schemas.PointerEvent) int {
	if p.ClickCount == 0 || ev.Button != p.ClickButton {
		return 1
	}
	dt := ev.Timestamp - p.ClickTime
	if dt < 0 || dt >= m.cfg.MultiClickInterval {
		return 1
	}
	if !geom.Within(p.ClickPosition, ev.Position, m.cfg.MultiClickSlop) {
		return 1
	}
	return p.ClickCount + 1
}

// updateTarget sends mouseout/mouseover when the node under the pointer
// changes.
func (m *Machine) updateTarget(p *session.Pointer, next host.Ref, ms mouse) {
	prev := p.LastTarget
	if prev == next {
		return
	}
	p.LastTarget = next
	tree := m.host.Tree
	if host.Valid(tree, prev) {
		out := ms
		out.related = next
		m.dispatch(schemas.EventMouseOut, prev, out)
		if !m.reg.Alive() {
			return
		}
	}
	if host.Valid(tree, next) {
		over := ms
		over.related = prev
		m.dispatch(schemas.EventMouseOver, next, over)
	}
}

// Down handles a button press and reports whether it was consumed.
func (m *Machine) Down(ev schemas.PointerEvent) bool {
	m.CancelFakeMove()
	m.autoscroll.Cancel()
	p := m.reg.Pointer(ev.Pointer)
	p.LastPosition, p.HasPosition = ev.Position, true

	res := m.hit.HitTestRoot(ev.Position, schemas.Point{}, hittest.Active)
	target := res.Target
	if target.IsZero() {
		p.ClickCount = 0
		m.logger.Debug("press over nothing", zap.Int("pointer_id", int(ev.Pointer)))
		return false
	}

	count := m.clickCount(p, ev)
	p.State = session.Pressed
	p.Button = ev.Button
	p.PressOrigin = ev.Position
	p.PressTarget, p.ClickTarget = target, target
	p.PressDocument = res.Document
	p.ClickCount, p.ClickTime, p.ClickPosition, p.ClickButton = count, ev.Timestamp, ev.Position, ev.Button
	p.OverScrollbar, p.Scrollbar = res.IsOverScrollbar, res.Scrollbar
	p.DraggedThisPress = false

	ms := fromEvent(ev, count)
	m.updateTarget(p, target, ms)
	if !m.reg.Alive() {
		return true
	}
	target = m.revalidate(target)
	if target.IsZero() {
		return false
	}

	swallowed := m.dispatch(schemas.EventMouseDown, target, ms).Handled()
	if !m.reg.Alive() {
		return swallowed
	}
	p.PressTarget = m.revalidate(p.PressTarget)
	p.ClickTarget = m.revalidate(p.ClickTarget)
	if !swallowed {
		swallowed = m.focus(p.PressTarget)
		if !m.reg.Alive() {
			return swallowed
		}
		p.PressTarget = m.revalidate(p.PressTarget)
	}
	if !swallowed {
		swallowed = m.pressDefault(p, p.PressTarget, ms)
	}
	if ev.Button == schemas.ButtonRight && m.reg.Alive() {
		swallowed = m.ContextMenu(ev.Position, ev.Modifiers) || swallowed
	}
	return swallowed
}

// focus gives mouse focus to the nearest mouse-focusable ancestor of t, or
// blurs when there is none. It reports true when a listener refused.
func (m *Machine) focus(t host.Ref) bool {
	if t.IsZero() {
		return false
	}
	tree := m.host.Tree
	next := host.Nearest(tree, t, func(r host.Ref) bool {
		f, ok := host.As[host.Focusable](tree, r)
		return ok && f.MouseFocusable()
	})
	cur := m.host.Focus.FocusedTarget()
	if next == cur {
		return false
	}
	if next.IsZero() && cur.IsZero() {
		return false
	}
	if !m.host.Focus.SetFocusedTarget(tree.Document(t), next) {
		m.logger.Debug("focus change refused", zap.Stringer("target", next))
		return true
	}
	return false
}

// pressDefault arms a drag and seeds the selection. Only the left button does
// either, and never over a scrollbar. A handled selectstart leaves the
// selection alone; the first drag then asks again.
func (m *Machine) pressDefault(p *session.Pointer, t host.Ref, ms mouse) bool {
	if p.Button != schemas.ButtonLeft || p.OverScrollbar || t.IsZero() {
		return false
	}
	tree := m.host.Tree
	pos := ms.pos
	doc := tree.Document(t)
	docPt := m.hit.DocPoint(doc, pos)

	inSelection := false
	if src, kind := m.dragSource(t); !src.IsZero() {
		m.arm(p, src, kind, pos)
	} else if p.ClickCount == 1 && m.host.Editor.SelectionContains(doc, docPt) {
		m.arm(p, t, schemas.DragKindSelection, pos)
		inSelection = true
	}
	if inSelection {
		// The selection is kept so it can be dragged; release collapses it.
		return false
	}

	g := m.granularity(p.ClickCount)
	p.Granularity = g
	if !m.host.Editor.IsSelectable(t) || !m.selectStart(t, ms) {
		return false
	}
	if t = m.revalidate(t); t.IsZero() {
		return false
	}
	p.SelectionSeeded = m.host.Editor.SeedSelection(t, docPt, g)
	return p.SelectionSeeded && p.ClickCount > 1
}

// selectStart dispatches the cancellable selectstart to t and reports whether
// a selection may begin.
func (m *Machine) selectStart(t host.Ref, ms mouse) bool {
	if m.dispatch(schemas.EventSelectStart, t, ms).Handled() {
		m.logger.Debug("selectstart handled", zap.Stringer("target", t))
		return false
	}
	return m.reg.Alive()
}

func (m *Machine) granularity(count int) schemas.Granularity {
	switch {
	case count <= 1:
		return schemas.ByCharacter
	case count == 2:
		return schemas.ByWord
	}
	return m.cfg.TripleClick()
}

// dragSource is the nearest ancestor of t that can be dragged.
func (m *Machine) dragSource(t host.Ref) (host.Ref, schemas.DragKind) {
	tree := m.host.Tree
	kind := schemas.DragKindNone
	src := host.Nearest(tree, t, func(r host.Ref) bool {
		d, ok := host.As[host.Draggable](tree, r)
		if !ok {
			return false
		}
		kind = d.DragKind()
		return kind != schemas.DragKindNone
	})
	if src.IsZero() {
		return host.Ref{}, schemas.DragKindNone
	}
	return src, kind
}

func (m *Machine) arm(p *session.Pointer, src host.Ref, kind schemas.DragKind, origin schemas.Point) {
	m.dnd.Arm(src, kind, origin)
	p.DragArmed, p.DragKind, p.DragSource = true, kind, src
}

func (m *Machine) disarm(p *session.Pointer) {
	m.dnd.Disarm()
	p.DragArmed = false
}

// Move handles pointer motion and reports whether it was consumed.
func (m *Machine) Move(ev schemas.PointerEvent) bool {
	return m.move(ev, false)
}

func (m *Machine) move(ev schemas.PointerEvent, fake bool) bool {
	p := m.reg.Pointer(ev.Pointer)
	p.LastPosition, p.HasPosition = ev.Position, true

	m.settleDrag(p)
	if p.State == session.Dragging {
		m.dnd.Update(ev.Position, ev.Modifiers)
		return true
	}

	tree := m.host.Tree
	var res hittest.Result
	if host.Valid(tree, p.Capture) {
		res = hittest.Result{Target: p.Capture, Document: tree.Document(p.Capture)}
	} else {
		if !p.Capture.IsZero() {
			m.logger.Debug("capture target gone", zap.Int("pointer_id", int(p.ID)))
			p.Capture, p.CaptureLatched = host.Ref{}, false
		}
		flags := hittest.Move
		if p.IsPressed() {
			flags |= hittest.Active
		}
		res = m.hit.HitTestRoot(ev.Position, schemas.Point{}, flags)
	}
	target := res.Target

	ms := fromEvent(ev, 0)
	ms.synthetic = ms.synthetic || fake
	m.updateTarget(p, target, ms)
	if !m.reg.Alive() {
		return false
	}
	target = m.revalidate(target)
	out := m.dispatch(schemas.EventMouseMove, target, ms)
	if !m.reg.Alive() {
		return out.Handled()
	}

	if !p.IsPressed() {
		m.host.Chrome.SetCursor(Classify(tree, res))
		return out.Handled()
	}
	if out.Handled() {
		return true
	}
	return m.handleDrag(p, ev, m.revalidate(target), ms)
}

// handleDrag starts a drag once the armed source passed its hysteresis, or
// extends the selection.
func (m *Machine) handleDrag(p *session.Pointer, ev schemas.PointerEvent, target host.Ref, ms mouse) bool {
	if p.DragArmed {
		if !geom.ExceedsHysteresis(p.PressOrigin, ev.Position, m.drag.Hysteresis(p.DragKind)) {
			return false
		}
		if p.DragKind == schemas.DragKindSelection && ev.Timestamp-p.ClickTime < m.drag.TextDragDelay {
			// Too quick to be a text drag: select instead.
			m.disarm(p)
		} else if m.startDrag(p, ev.Position, ev.Modifiers) {
			return true
		} else if !m.reg.Alive() {
			return false
		}
	}
	if p.Button != schemas.ButtonLeft || p.OverScrollbar || p.DraggedThisPress || target.IsZero() {
		return false
	}
	if !p.SelectionSeeded && !m.beginSelection(p, target, ms) {
		return false
	}
	if target = m.revalidate(target); target.IsZero() {
		return false
	}
	doc := m.host.Tree.Document(target)
	m.host.Editor.ExtendSelection(target, m.hit.DocPoint(doc, ev.Position), p.Granularity)
	p.State = session.Selecting
	m.updateAutoscroll(p)
	return true
}

// beginSelection starts a character selection at the press point when the
// press itself did not, e.g. it landed on a selection or selectstart was
// handled. target hears the selectstart.
func (m *Machine) beginSelection(p *session.Pointer, target host.Ref, ms mouse) bool {
	t := m.revalidate(p.PressTarget)
	if t.IsZero() || !m.host.Editor.IsSelectable(t) || !m.selectStart(target, ms) {
		return false
	}
	if t = m.revalidate(t); t.IsZero() {
		return false
	}
	p.Granularity = schemas.ByCharacter
	p.SelectionSeeded = m.host.Editor.SeedSelection(t, m.hit.DocPoint(m.host.Tree.Document(t), p.PressOrigin), schemas.ByCharacter)
	return p.SelectionSeeded
}

// outside is how far pos lies beyond the root viewport on each axis.
func (m *Machine) outside(pos schemas.Point) (dx, dy float64) {
	tree := m.host.Tree
	b, ok := host.As[host.Bounded](tree, tree.RootDocument())
	if !ok {
		return 0, 0
	}
	box := b.Bounds()
	switch {
	case pos.X < box.X:
		dx = pos.X - box.X
	case pos.X > box.Right():
		dx = pos.X - box.Right()
	}
	switch {
	case pos.Y < box.Y:
		dy = pos.Y - box.Y
	case pos.Y > box.Bottom():
		dy = pos.Y - box.Bottom()
	}
	return dx, dy
}

// updateAutoscroll starts stepping while a selecting pointer is past the
// viewport edge and stops once it is back inside.
func (m *Machine) updateAutoscroll(p *session.Pointer) {
	if dx, dy := m.outside(p.LastPosition); dx == 0 && dy == 0 {
		m.autoscroll.Cancel()
		return
	}
	if m.autoscroll.Pending() && m.scrollPointer == p.ID {
		return
	}
	m.scrollPointer = p.ID
	m.autoscroll.Schedule(m.cfg.AutoscrollInterval, m.autoscrollStep)
}

// autoscrollStep scrolls the chain above the press target by the distance
// the pointer lies outside the viewport, then grows the selection to follow.
func (m *Machine) autoscrollStep() {
	if !m.reg.Alive() {
		return
	}
	p, ok := m.reg.PeekPointer(m.scrollPointer)
	if !ok || p.State != session.Selecting {
		return
	}
	dx, dy := m.outside(p.LastPosition)
	if dx == 0 && dy == 0 {
		return
	}
	t := m.revalidate(p.PressTarget)
	if t.IsZero() {
		return
	}
	if !scroll.Chain(m.host.Tree, m.host.Scroller, t, schemas.ByPixel, dx, dy) {
		m.logger.Debug("autoscroll reached the end", zap.Int("pointer_id", int(p.ID)))
		return
	}
	m.host.Editor.ExtendSelection(t, m.hit.DocPoint(m.host.Tree.Document(t), p.LastPosition), p.Granularity)
	m.autoscroll.Schedule(m.cfg.AutoscrollInterval, m.autoscrollStep)
}

// AutoscrollPending reports whether a selection autoscroll step is scheduled.
func (m *Machine) AutoscrollPending() bool { return m.autoscroll.Pending() }

func (m *Machine) startDrag(p *session.Pointer, pos schemas.Point, mods schemas.Modifiers) bool {
	p.DragArmed = false
	if !m.dnd.Start(pos, mods) {
		m.logger.Debug("drag did not start", zap.Int("pointer_id", int(p.ID)), zap.String("kind", string(p.DragKind)))
		return false
	}
	p.State = session.Dragging
	p.DraggedThisPress = true
	p.ClickTarget = host.Ref{}
	p.ClickCount = 0
	p.SelectionSeeded = false
	m.dnd.Update(pos, mods)
	return true
}

// settleDrag returns p to Pressed when its drag ended without a release,
// e.g. cancelled by Escape. The press stays click-less and cannot re-arm.
func (m *Machine) settleDrag(p *session.Pointer) {
	if p.State != session.Dragging || m.dnd.Active() {
		return
	}
	m.logger.Debug("drag ended under a held button", zap.Int("pointer_id", int(p.ID)))
	p.State = session.Pressed
	p.DragArmed = false
	p.ClickTarget = host.Ref{}
}

// StartDragAt starts a drag at pos without any hysteresis, for a long press.
// The pointer is left in the Dragging state.
func (m *Machine) StartDragAt(pos schemas.Point, mods schemas.Modifiers) bool {
	res := m.hit.HitTestRoot(pos, schemas.Point{}, hittest.ReadOnly)
	if res.Empty() {
		return false
	}
	src, kind := m.dragSource(res.Target)
	if src.IsZero() {
		if !m.host.Editor.SelectionContains(res.Document, res.DocPoint) {
			return false
		}
		src, kind = res.Target, schemas.DragKindSelection
	}
	p := m.reg.Pointer(schemas.PrimaryPointer)
	p.State = session.Pressed
	p.Button = schemas.ButtonLeft
	p.PressOrigin, p.LastPosition, p.HasPosition = pos, pos, true
	p.PressTarget, p.PressDocument = res.Target, res.Document
	m.arm(p, src, kind, pos)
	if m.startDrag(p, pos, mods) {
		return true
	}
	if m.reg.Alive() {
		p.ResetPress()
	}
	return false
}

// Up handles a button release and reports whether it was consumed.
func (m *Machine) Up(ev schemas.PointerEvent) bool {
	m.autoscroll.Cancel()
	p := m.reg.Pointer(ev.Pointer)
	p.LastPosition, p.HasPosition = ev.Position, true

	m.settleDrag(p)
	if p.State == session.Dragging {
		m.dnd.Drop(ev.Position, ev.Modifiers)
		if m.reg.Alive() {
			p.ResetPress()
		}
		return true
	}
	m.disarm(p)

	tree := m.host.Tree
	var res hittest.Result
	if host.Valid(tree, p.Capture) {
		res = hittest.Result{Target: p.Capture, Document: tree.Document(p.Capture)}
	} else {
		res = m.hit.HitTestRoot(ev.Position, schemas.Point{}, hittest.Release)
	}
	ms := fromEvent(ev, p.ClickCount)
	m.updateTarget(p, res.Target, ms)
	if !m.reg.Alive() {
		return false
	}
	release := m.revalidate(res.Target)
	swallowed := m.dispatch(schemas.EventMouseUp, release, ms).Handled()
	if !m.reg.Alive() {
		return swallowed
	}

	if p.IsPressed() && p.Button == ev.Button && p.Button != schemas.ButtonRight &&
		!p.DraggedThisPress && geom.Within(p.PressOrigin, ev.Position, m.cfg.ClickSlop) {
		release = m.revalidate(release)
		press := m.revalidate(p.ClickTarget)
		if t := host.CommonAncestor(release, press, host.ParentForClick(tree)); !t.IsZero() {
			swallowed = m.dispatch(schemas.EventClick, t, ms).Handled() || swallowed
			if !m.reg.Alive() {
				return swallowed
			}
		}
	}

	if !swallowed && p.DragKind == schemas.DragKindSelection && !p.DraggedThisPress && p.State == session.Pressed {
		if t := m.revalidate(release); !t.IsZero() {
			m.host.Editor.SeedSelection(t, m.hit.DocPoint(tree.Document(t), ev.Position), schemas.ByCharacter)
		}
	}
	p.ResetPress()
	return swallowed
}

// Leave handles the pointer leaving the viewport.
func (m *Machine) Leave(ev schemas.PointerEvent) bool {
	m.CancelFakeMove()
	p, ok := m.reg.PeekPointer(ev.Pointer)
	if !ok {
		return false
	}
	tree := m.host.Tree
	last := p.LastTarget
	p.LastTarget = host.Ref{}
	p.HasPosition = false
	if host.Valid(tree, last) {
		m.dispatch(schemas.EventMouseOut, last, fromEvent(ev, 0))
		if !m.reg.Alive() {
			return false
		}
		if doc := tree.Document(last); doc != tree.RootDocument() && tree.IsAlive(doc) {
			tree.UpdateHoverActive(doc, host.Ref{}, false, false)
		}
	}
	tree.UpdateHoverActive(tree.RootDocument(), host.Ref{}, false, false)
	return false
}

// Wheel dispatches a wheel notification and, unless it was handled, scrolls
// the chain under the pointer.
func (m *Machine) Wheel(ev schemas.WheelEvent) bool {
	res := m.hit.HitTestRoot(ev.Position, schemas.Point{}, hittest.ReadOnly)
	if res.Empty() {
		return false
	}
	doc := m.host.Tree.Document(res.Target)
	var out host.Outcome
	if host.Valid(m.host.Tree, res.Target) {
		out = m.host.Dispatcher.Dispatch(schemas.EventWheel, res.Target, host.MousePayload{
			Position:  m.hit.DocPoint(doc, ev.Position),
			Viewport:  ev.Position,
			Button:    schemas.ButtonNone,
			Modifiers: ev.Modifiers,
			DeltaX:    ev.DeltaX,
			DeltaY:    ev.DeltaY,
			DeltaMode: ev.DeltaMode,
		})
	}
	if out.Handled() || !m.reg.Alive() {
		return out.Handled()
	}
	t := m.revalidate(res.Target)
	if t.IsZero() {
		return false
	}

	g, dx, dy := schemas.ByPixel, ev.DeltaX, ev.DeltaY
	switch ev.DeltaMode {
	case schemas.WheelDeltaLine:
		dx, dy = dx*m.cfg.WheelLineHeight, dy*m.cfg.WheelLineHeight
	case schemas.WheelDeltaPage:
		g = schemas.ByPage
	}
	moved := scroll.Chain(m.host.Tree, m.host.Scroller, t, g, dx, dy)
	if moved {
		m.DispatchFakeMoveSoon()
	}
	return moved
}

// ContextMenu dispatches contextmenu under pos and shows the menu unless a
// listener handled it.
func (m *Machine) ContextMenu(pos schemas.Point, mods schemas.Modifiers) bool {
	res := m.hit.HitTestRoot(pos, schemas.Point{}, hittest.ReadOnly)
	if res.Empty() {
		return false
	}
	out := m.dispatch(schemas.EventContextMenu, res.Target, mouse{pos: pos, button: schemas.ButtonRight, mods: mods})
	if out.Handled() || !m.reg.Alive() {
		return out.Handled()
	}
	t := m.revalidate(res.Target)
	if t.IsZero() {
		return false
	}
	m.host.Chrome.ShowContextMenu(t, m.hit.DocPoint(m.host.Tree.Document(t), pos))
	return true
}

// SetCapture routes every move and up of pointer id to t. A latched capture
// survives the release.
func (m *Machine) SetCapture(id schemas.PointerID, t host.Ref, latched bool) bool {
	if !host.Valid(m.host.Tree, t) {
		return false
	}
	p := m.reg.Pointer(id)
	p.Capture, p.CaptureLatched = t, latched
	return true
}

// ReleaseCapture clears the capture of pointer id.
func (m *Machine) ReleaseCapture(id schemas.PointerID) {
	if p, ok := m.reg.PeekPointer(id); ok {
		p.Capture, p.CaptureLatched = host.Ref{}, false
	}
}

// DispatchFakeMoveSoon schedules a synthesized move at the last pointer
// position, so hover follows content that scrolled under a still pointer.
// Requests coalesce; a burst of them falls back to the long interval.
func (m *Machine) DispatchFakeMoveSoon() {
	p, ok := m.reg.PeekPointer(schemas.PrimaryPointer)
	if !ok || !p.HasPosition || p.IsPressed() {
		return
	}
	interval := m.cfg.FakeMoveShortInterval
	if !m.limiter.AllowN(m.sched.Now(), 1) {
		interval = m.cfg.FakeMoveLongInterval
	}
	m.fakeMove.Schedule(interval, m.fireFakeMove)
}

func (m *Machine) fireFakeMove() {
	if !m.reg.Alive() {
		return
	}
	p, ok := m.reg.PeekPointer(schemas.PrimaryPointer)
	if !ok || !p.HasPosition || p.IsPressed() {
		return
	}
	m.logger.Debug("synthesized move", zap.Float64("x", p.LastPosition.X), zap.Float64("y", p.LastPosition.Y))
	m.move(schemas.PointerEvent{
		Type:     schemas.PointerMove,
		Pointer:  schemas.PrimaryPointer,
		Position: p.LastPosition,
		Button:   schemas.ButtonNone,
	}, true)
}

// FakeMovePending reports whether a synthesized move is scheduled.
func (m *Machine) FakeMovePending() bool { return m.fakeMove.Pending() }

// CancelFakeMove drops a scheduled synthesized move.
func (m *Machine) CancelFakeMove() { m.fakeMove.Cancel() }

// Clear cancels deferred work. Session state is dropped by the registry.
func (m *Machine) Clear() {
	m.CancelFakeMove()
	m.autoscroll.Cancel()
}

// Tap is a gesture tap replayed as mouse input.
type Tap struct {
	// Position is the adjusted root viewport point.
	Position schemas.Point
	// Target is what the gesture hit at Position.
	Target    host.Ref
	Count     int
	Modifiers schemas.Modifiers
	Timestamp time.Duration
}

// SimulateTap synthesizes move, down, up and click for a tap so focus and
// selection defaults run exactly as they would for a mouse.
func (m *Machine) SimulateTap(tap Tap) bool {
	p := m.reg.Pointer(schemas.PrimaryPointer)
	p.LastPosition, p.HasPosition = tap.Position, true
	ms := mouse{pos: tap.Position, button: schemas.ButtonNone, mods: tap.Modifiers, synthetic: true}

	m.dispatch(schemas.EventMouseMove, tap.Target, ms)
	if !m.reg.Alive() {
		return false
	}

	var res hittest.Result
	if !tap.Target.IsZero() {
		res = m.hit.HitTestRoot(tap.Position, schemas.Point{}, hittest.ReadOnly)
	}
	clickNode := res.Target

	ms.button, ms.count = schemas.ButtonLeft, tap.Count
	p.State, p.Button = session.Pressed, schemas.ButtonLeft
	p.PressOrigin, p.PressTarget, p.ClickTarget, p.PressDocument = tap.Position, res.Target, clickNode, res.Document
	p.ClickCount, p.ClickTime, p.ClickPosition, p.ClickButton = tap.Count, tap.Timestamp, tap.Position, schemas.ButtonLeft

	swallowDown := m.dispatch(schemas.EventMouseDown, res.Target, ms).Handled()
	if !m.reg.Alive() {
		return swallowDown
	}
	if !swallowDown {
		swallowDown = m.focus(m.revalidate(res.Target))
		if !m.reg.Alive() {
			return swallowDown
		}
	}
	if !swallowDown {
		swallowDown = m.pressDefault(p, m.revalidate(res.Target), ms)
	}
	m.disarm(p)

	if !res.Empty() {
		res = m.hit.HitTestRoot(tap.Position, schemas.Point{}, hittest.ReadOnly)
	}
	swallowUp := m.dispatch(schemas.EventMouseUp, res.Target, ms).Handled()
	if !m.reg.Alive() {
		return swallowDown || swallowUp
	}

	swallowClick := false
	if click := m.revalidate(p.ClickTarget); !click.IsZero() && !res.Empty() {
		release := m.revalidate(res.Target)
		if t := host.CommonAncestor(release, click, host.ParentForClick(m.host.Tree)); !t.IsZero() {
			swallowClick = m.dispatch(schemas.EventClick, t, ms).Handled()
		}
	}
	if m.reg.Alive() {
		p.ResetPress()
	}
	return swallowDown || swallowUp || swallowClick
}
