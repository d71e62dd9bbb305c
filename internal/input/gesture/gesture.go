// internal/input/gesture/gesture.go
// Package gesture routes recognized platform gestures. Tap-family gestures
// are targeted with a rect-based hit test plus touch adjustment and replayed
// through the pointer machine; scroll-family gestures hit-test once on begin
// and reuse that target until the gesture ends.
package gesture

import (
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/inputcore/api/schemas"
	"github.com/xkilldash9x/inputcore/internal/config"
	"github.com/xkilldash9x/inputcore/internal/input/hittest"
	"github.com/xkilldash9x/inputcore/internal/input/host"
	"github.com/xkilldash9x/inputcore/internal/input/loop"
	"github.com/xkilldash9x/inputcore/internal/input/pointer"
	"github.com/xkilldash9x/inputcore/internal/input/scroll"
	"github.com/xkilldash9x/inputcore/internal/input/session"
	"github.com/xkilldash9x/inputcore/internal/observability"
)

// Router is the GestureRouter of one top-level viewport.
type Router struct {
	host   host.Host
	hit    *hittest.HitTester
	reg    *session.Registry
	ptr    *pointer.Machine
	sched  loop.Scheduler
	cfg    config.GestureConfig
	logger *zap.Logger

	lastShowPress time.Time
	// deferred stays active until deferredClear fires.
	deferred      host.Ref
	deferredClear *loop.Slot
	// longTapMenu is set when a long press started a drag; the long tap that
	// follows then opens the context menu.
	longTapMenu bool
}

// New returns a Router replaying taps through ptr.
func New(cfg config.InputConfig, h host.Host, hit *hittest.HitTester, reg *session.Registry, ptr *pointer.Machine, sched loop.Scheduler, logger *zap.Logger) *Router {
	return &Router{
		host:          h,
		hit:           hit,
		reg:           reg,
		ptr:           ptr,
		sched:         sched,
		cfg:           cfg.Gesture,
		logger:        observability.Component(logger, "gesture"),
		deferredClear: loop.NewSlot(sched),
	}
}

// Handle routes one gesture and reports whether it was consumed.
func (r *Router) Handle(ev schemas.GestureEvent) bool {
	if ev.Type.IsScroll() {
		return r.handleScroll(ev)
	}
	res, pos := r.target(ev)
	return r.handleTap(ev, res, pos)
}

// hitFlags is the hit-test request for a tap-family gesture.
func (r *Router) hitFlags(t schemas.GestureType) hittest.Flags {
	f := hittest.TouchEvent
	switch t {
	case schemas.GestureShowPress:
		return f | hittest.Active
	case schemas.GestureTapCancel:
		// Nothing active means nothing to release; leave hover alone.
		if r.host.Tree.ActiveElement(r.host.Tree.RootDocument()).IsZero() {
			f |= hittest.ReadOnly
		}
		return f | hittest.Release
	case schemas.GestureTap:
		return f | hittest.Release
	}
	return f | hittest.Active | hittest.ReadOnly
}

// target resolves a tap-family gesture. The returned point is the adjusted
// root viewport position.
func (r *Router) target(ev schemas.GestureEvent) (hittest.Result, schemas.Point) {
	flags := r.hitFlags(ev.Type)

	var elapsed time.Duration
	keepActive := false
	if ev.Type == schemas.GestureTap && !flags.Has(hittest.ReadOnly) && !r.lastShowPress.IsZero() {
		elapsed = r.sched.Now().Sub(r.lastShowPress)
		if elapsed < r.cfg.MinimumActiveInterval {
			flags |= hittest.ReadOnly
			keepActive = true
		}
	}

	radius := schemas.Point{X: ev.Area.X / 2, Y: ev.Area.Y / 2}
	pos := ev.Position
	res := r.hit.HitTestRoot(pos, radius, flags|hittest.ReadOnly)
	if r.cfg.TouchAdjustment && (radius.X > 0 || radius.Y > 0) {
		if p, node, ok := r.hit.Adjust(res, radius); ok {
			pos = r.hit.RootPoint(res.Document, p)
			r.logger.Debug("touch adjusted", zap.Stringer("target", node), zap.Float64("x", pos.X), zap.Float64("y", pos.Y))
		}
		res = r.hit.HitTestRoot(pos, schemas.Point{}, flags|hittest.ReadOnly)
	}
	if !flags.Has(hittest.ReadOnly) {
		res = r.hit.HitTestRoot(pos, schemas.Point{}, flags)
	}

	if keepActive {
		r.deferred = res.Target
		r.deferredClear.Schedule(r.cfg.MinimumActiveInterval-elapsed, r.clearDeferred)
	}
	return res, pos
}

func (r *Router) clearDeferred() {
	t := r.deferred
	r.deferred = host.Ref{}
	if !r.reg.Alive() || !host.Valid(r.host.Tree, t) {
		return
	}
	r.host.Tree.UpdateHoverActive(r.host.Tree.Document(t), t, false, true)
}

// ElementActivated drops the deferred active clear because another element
// became active.
func (r *Router) ElementActivated(host.Ref) {
	r.deferredClear.Cancel()
	r.deferred = host.Ref{}
}

// Forget drops references into the subtree rooted at removed.
func (r *Router) Forget(removed host.Ref) {
	tree := r.host.Tree
	for cur := r.deferred; !cur.IsZero(); cur = tree.Parent(cur) {
		if cur == removed {
			r.ElementActivated(host.Ref{})
			return
		}
	}
}

// DeferredPending reports whether an active state is waiting to be cleared.
func (r *Router) DeferredPending() bool { return r.deferredClear.Pending() }

// Clear cancels deferred work and forgets gesture history.
func (r *Router) Clear() {
	r.deferredClear.Cancel()
	r.deferred = host.Ref{}
	r.lastShowPress = time.Time{}
	r.longTapMenu = false
}

func (r *Router) handleTap(ev schemas.GestureEvent, res hittest.Result, pos schemas.Point) bool {
	if !res.Scrollbar.IsZero() {
		swallowed := r.host.Scroller.ScrollbarGesture(res.Scrollbar, ev)
		if swallowed && ev.Type == schemas.GestureTapDown {
			r.scrollMemo().Scrollbar = res.Scrollbar
		}
		if swallowed {
			return true
		}
	}

	if kind, ok := domEvent(ev.Type); ok {
		if r.dispatch(kind, res.Target, ev, pos).Handled() {
			return true
		}
		if !r.reg.Alive() {
			return false
		}
	}

	switch ev.Type {
	case schemas.GestureTap:
		count := ev.TapCount
		if count < 1 {
			count = 1
		}
		return r.ptr.SimulateTap(pointer.Tap{
			Position:  pos,
			Target:    r.revalidate(res.Target),
			Count:     count,
			Modifiers: ev.Modifiers,
			Timestamp: ev.Timestamp,
		})
	case schemas.GestureShowPress:
		r.lastShowPress = r.sched.Now()
		return true
	case schemas.GestureLongPress:
		return r.longPress(ev, pos)
	case schemas.GestureLongTap:
		if r.longTapMenu {
			r.longTapMenu = false
			return r.ptr.ContextMenu(pos, ev.Modifiers)
		}
		return false
	case schemas.GestureTwoFingerTap:
		return r.ptr.ContextMenu(pos, ev.Modifiers)
	}
	return false
}

// longPress tries a touch drag, then word selection, then the context menu.
func (r *Router) longPress(ev schemas.GestureEvent, pos schemas.Point) bool {
	r.longTapMenu = false
	if r.cfg.TouchDragDrop {
		if r.ptr.StartDragAt(pos, ev.Modifiers) {
			r.longTapMenu = true
			return true
		}
		if !r.reg.Alive() {
			return false
		}
	}
	if r.cfg.TouchEditing {
		tree := r.host.Tree
		res := r.hit.HitTestRoot(pos, schemas.Point{}, hittest.ReadOnly)
		link := host.Nearest(tree, res.Target, func(x host.Ref) bool { return host.IsLink(tree, x) })
		if !res.Empty() && link.IsZero() && (host.IsEditable(tree, res.Target) || tree.IsText(res.Node)) {
			if r.host.Editor.SeedSelection(res.Node, res.DocPoint, schemas.ByWord) {
				return true
			}
		}
	}
	return r.ptr.ContextMenu(pos, ev.Modifiers)
}

// -- Scroll family --

func (r *Router) scrollMemo() *session.GestureScroll {
	if r.reg.Scroll == nil {
		r.reg.Scroll = &session.GestureScroll{}
	}
	return r.reg.Scroll
}

func (r *Router) handleScroll(ev schemas.GestureEvent) bool {
	var target, scrollbar host.Ref
	if ev.Type != schemas.GestureScrollBegin && r.reg.Scroll != nil {
		scrollbar = r.reg.Scroll.Scrollbar
		target = r.reg.Scroll.Target
	}
	if target.IsZero() {
		res := r.hit.HitTestRoot(ev.Position, schemas.Point{}, hittest.ReadOnly)
		target = res.Target
		memo := r.scrollMemo()
		memo.Target = target
		memo.OverEmbeddedWidget = r.isWidget(target)
		memo.PreviousScrolled = host.Ref{}
		if scrollbar.IsZero() {
			scrollbar = res.Scrollbar
		}
	}

	if !scrollbar.IsZero() {
		swallowed := r.host.Scroller.ScrollbarGesture(scrollbar, ev)
		ended := ev.Type == schemas.GestureScrollEnd || ev.Type == schemas.GestureFlingStart
		if m := r.reg.Scroll; m != nil && (ended || !swallowed) {
			m.Scrollbar = host.Ref{}
		}
		if swallowed {
			if ended {
				r.reg.Scroll = nil
			}
			return true
		}
	}

	if kind, ok := domEvent(ev.Type); ok && !target.IsZero() {
		if r.dispatch(kind, target, ev, ev.Position).Handled() {
			return true
		}
		if !r.reg.Alive() {
			return false
		}
	}

	switch ev.Type {
	case schemas.GestureScrollBegin:
		return r.scrollBegin(ev)
	case schemas.GestureScrollUpdate, schemas.GestureScrollUpdateNoPropagation:
		return r.scrollUpdate(ev)
	case schemas.GestureScrollEnd, schemas.GestureFlingStart:
		memo := r.reg.Scroll
		r.reg.Scroll = nil
		if memo != nil && ev.Type == schemas.GestureScrollEnd {
			r.passToWidget(ev, memo, r.revalidate(memo.Target))
		}
	}
	return false
}

func (r *Router) scrollBegin(ev schemas.GestureEvent) bool {
	memo := r.reg.Scroll
	if memo == nil {
		return false
	}
	t := r.revalidate(memo.Target)
	if t.IsZero() {
		return false
	}
	r.passToWidget(ev, memo, t)
	return true
}

func (r *Router) scrollUpdate(ev schemas.GestureEvent) bool {
	if ev.DeltaX == 0 && ev.DeltaY == 0 {
		return false
	}
	tree, sc := r.host.Tree, r.host.Scroller
	memo := r.reg.Scroll
	if memo == nil || memo.Target.IsZero() {
		return r.scrollView(tree.RootDocument(), ev)
	}
	t := r.revalidate(memo.Target)
	if t.IsZero() {
		return false
	}

	noProp := ev.Type == schemas.GestureScrollUpdateNoPropagation
	if r.passToWidget(ev, memo, t) {
		if noProp {
			memo.PreviousScrolled = memo.Target
		}
		return true
	}

	// A finger moving down pulls content down, which scrolls backwards.
	var stop host.Ref
	if noProp {
		stop = memo.PreviousScrolled
	}
	h := scroll.Ancestors(tree, sc, t, schemas.AxisX, schemas.ByPixel, -ev.DeltaX, &stop)
	v := scroll.Ancestors(tree, sc, t, schemas.AxisY, schemas.ByPixel, -ev.DeltaY, &stop)
	if noProp {
		memo.PreviousScrolled = stop
	}
	if h || v {
		return true
	}
	return r.scrollView(tree.Document(t), ev)
}

func (r *Router) scrollView(doc host.Ref, ev schemas.GestureEvent) bool {
	tree, sc := r.host.Tree, r.host.Scroller
	h := scroll.Viewport(tree, sc, doc, schemas.AxisX, schemas.ByPixel, -ev.DeltaX)
	v := scroll.Viewport(tree, sc, doc, schemas.AxisY, schemas.ByPixel, -ev.DeltaY)
	return h || v
}

func (r *Router) isWidget(t host.Ref) bool {
	_, ok := host.As[host.EmbeddedWidget](r.host.Tree, t)
	return ok
}

// passToWidget offers a scroll gesture to the embedded widget the gesture
// began over.
func (r *Router) passToWidget(ev schemas.GestureEvent, memo *session.GestureScroll, t host.Ref) bool {
	if !memo.OverEmbeddedWidget || t.IsZero() {
		return false
	}
	w, ok := host.As[host.EmbeddedWidget](r.host.Tree, t)
	return ok && w.HandleGestureScroll(ev)
}

// -- helpers --

func (r *Router) revalidate(t host.Ref) host.Ref {
	if t.IsZero() {
		return t
	}
	out, err := host.Revalidate(r.host.Tree, t)
	if err != nil {
		r.logger.Debug("gesture target gone", zap.Error(err))
		return host.Ref{}
	}
	return out
}

func (r *Router) dispatch(kind schemas.EventType, t host.Ref, ev schemas.GestureEvent, pos schemas.Point) host.Outcome {
	if !r.reg.Alive() || !host.Valid(r.host.Tree, t) {
		return host.Outcome{}
	}
	doc := r.host.Tree.Document(t)
	return r.host.Dispatcher.Dispatch(kind, t, host.GesturePayload{Event: ev, Position: r.hit.DocPoint(doc, pos)})
}

// domEvent names the notification a gesture produces, if any.
func domEvent(t schemas.GestureType) (schemas.EventType, bool) {
	switch t {
	case schemas.GestureTap:
		return schemas.EventGestureTap, true
	case schemas.GestureTapDown:
		return schemas.EventGestureTapDown, true
	case schemas.GestureShowPress:
		return schemas.EventGestureShowPress, true
	case schemas.GestureLongPress:
		return schemas.EventGestureLongPress, true
	case schemas.GestureScrollBegin:
		return schemas.EventGestureScrollStart, true
	case schemas.GestureScrollUpdate, schemas.GestureScrollUpdateNoPropagation:
		return schemas.EventGestureScrollUpdate, true
	case schemas.GestureScrollEnd:
		return schemas.EventGestureScrollEnd, true
	case schemas.GestureFlingStart:
		return schemas.EventGestureFlingStart, true
	case schemas.GesturePinchBegin, schemas.GesturePinchUpdate, schemas.GesturePinchEnd:
		return schemas.EventGesturePinch, true
	}
	return "", false
}
