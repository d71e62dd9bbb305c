// internal/input/gesture/gesture_test.go
package gesture

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/inputcore/api/schemas"
	"github.com/xkilldash9x/inputcore/internal/browser/vtree"
	"github.com/xkilldash9x/inputcore/internal/config"
	"github.com/xkilldash9x/inputcore/internal/input/dnd"
	"github.com/xkilldash9x/inputcore/internal/input/hittest"
	"github.com/xkilldash9x/inputcore/internal/input/host"
	"github.com/xkilldash9x/inputcore/internal/input/loop"
	"github.com/xkilldash9x/inputcore/internal/input/pointer"
	"github.com/xkilldash9x/inputcore/internal/input/session"
)

const page = `<html data-scroll="0 2000"><body>
<button id="btn" data-rect="0 0 100 40">go</button>
<div id="plain" data-rect="0 100 100 100"></div>
<div id="list" data-rect="200 0 200 200" data-scroll="0 600"><div id="row" data-rect="200 0 200 50"></div></div>
<div id="bar" data-rect="450 0 100 200" data-scroll="0 300" data-scrollbar></div>
<embed id="plugin" data-rect="0 300 100 100" data-consumes-scroll>
<div id="a" draggable="true" data-rect="400 300 100 100"></div>
<p id="para" data-rect="0 450 200 40">some words here</p>
</body></html>`

type fixture struct {
	v     *vtree.View
	reg   *session.Registry
	r     *Router
	sched *loop.Manual
}

func newFixture(t *testing.T, tune ...func(*config.InputConfig)) *fixture {
	t.Helper()
	logger := zaptest.NewLogger(t)
	v, err := vtree.Parse(page, schemas.Point{X: 800, Y: 600}, logger)
	require.NoError(t, err)
	cfg := config.NewDefaultConfig().Input()
	for _, fn := range tune {
		fn(&cfg)
	}
	h := v.Host()
	hit := hittest.New(h.Tree, logger)
	reg := session.New()
	sched := loop.NewManual(time.Unix(0, 0))
	ptr := pointer.New(cfg, h, hit, reg, dnd.New(h, hit, reg, logger), sched, logger)
	r := New(cfg, h, hit, reg, ptr, sched, logger)
	hit.SetActivationHook(r.ElementActivated)
	v.OnWillRemove(func(ref host.Ref) {
		reg.Retarget(v, ref)
		r.Forget(ref)
	})
	return &fixture{v: v, reg: reg, r: r, sched: sched}
}

func gesture(typ schemas.GestureType, x, y float64) schemas.GestureEvent {
	return schemas.GestureEvent{Type: typ, Position: schemas.Point{X: x, Y: y}, TapCount: 1}
}

func scrollBy(typ schemas.GestureType, x, y, dx, dy float64) schemas.GestureEvent {
	ev := gesture(typ, x, y)
	ev.DeltaX, ev.DeltaY = dx, dy
	return ev
}

func (f *fixture) trace(only ...schemas.EventType) []string {
	keep := make(map[schemas.EventType]bool)
	for _, k := range only {
		keep[k] = true
	}
	var out []string
	for _, n := range f.v.Notifications() {
		if len(only) == 0 || keep[n.Kind] {
			out = append(out, fmt.Sprintf("%s@%s", n.Kind, n.Label))
		}
	}
	return out
}

func (f *fixture) el(id string) host.Ref { return f.v.MustQuery(fmt.Sprintf("//*[@id='%s']", id)) }

func (f *fixture) active() host.Ref { return f.v.ActiveElement(f.v.RootDocument()) }

var tapKinds = []schemas.EventType{
	schemas.EventGestureTap, schemas.EventMouseMove, schemas.EventMouseDown,
	schemas.EventMouseUp, schemas.EventClick,
}

func TestTapReplaysMouseSequence(t *testing.T) {
	f := newFixture(t)
	assert.True(t, f.r.Handle(gesture(schemas.GestureTap, 50, 20)))

	want := []string{"gesturetap@#btn", "mousemove@#btn", "mousedown@#btn", "mouseup@#btn", "click@#btn"}
	if diff := cmp.Diff(want, f.trace(tapKinds...)); diff != "" {
		t.Errorf("notifications mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, f.el("btn"), f.v.FocusedTarget())
	assert.False(t, f.reg.Pointer(schemas.PrimaryPointer).IsPressed())
}

func TestHandledGestureSkipsMouseReplay(t *testing.T) {
	f := newFixture(t)
	f.v.On(f.el("btn"), schemas.EventGestureTap, func(e *vtree.Event) { e.PreventDefault() })

	assert.True(t, f.r.Handle(gesture(schemas.GestureTap, 50, 20)))
	assert.Equal(t, []string{"gesturetap@#btn"}, f.trace(tapKinds...))
}

func TestTouchAdjustmentSnapsToClickable(t *testing.T) {
	f := newFixture(t)
	ev := gesture(schemas.GestureTap, 110, 20)
	ev.Area = schemas.Point{X: 30, Y: 30}
	f.r.Handle(ev)
	assert.Contains(t, f.trace(schemas.EventClick), "click@#btn")

	t.Run("disabled", func(t *testing.T) {
		f := newFixture(t, func(c *config.InputConfig) { c.Gesture.TouchAdjustment = false })
		f.r.Handle(ev)
		assert.NotContains(t, f.trace(schemas.EventClick), "click@#btn")
	})
}

func TestShowPressKeepsActiveForMinimumInterval(t *testing.T) {
	f := newFixture(t)
	btn := f.el("btn")

	f.r.Handle(gesture(schemas.GestureShowPress, 50, 20))
	require.Equal(t, btn, f.active())

	f.sched.Advance(50 * time.Millisecond)
	f.r.Handle(gesture(schemas.GestureTap, 50, 20))
	assert.Equal(t, btn, f.active(), "active state must outlive a quick tap")
	assert.True(t, f.r.DeferredPending())

	f.sched.Advance(100 * time.Millisecond)
	assert.False(t, f.r.DeferredPending())
	assert.True(t, f.active().IsZero())
	assert.Equal(t, btn, f.v.Hovered(f.v.RootDocument()))
}

func TestSlowTapReleasesActiveImmediately(t *testing.T) {
	f := newFixture(t)
	f.r.Handle(gesture(schemas.GestureShowPress, 50, 20))
	f.sched.Advance(200 * time.Millisecond)
	f.r.Handle(gesture(schemas.GestureTap, 50, 20))
	assert.True(t, f.active().IsZero())
	assert.False(t, f.r.DeferredPending())
}

func TestActivationCancelsDeferredClear(t *testing.T) {
	f := newFixture(t)
	f.r.Handle(gesture(schemas.GestureShowPress, 50, 20))
	f.sched.Advance(10 * time.Millisecond)
	f.r.Handle(gesture(schemas.GestureTap, 50, 20))
	require.True(t, f.r.DeferredPending())

	f.r.Handle(gesture(schemas.GestureShowPress, 50, 150))
	assert.False(t, f.r.DeferredPending())
	f.sched.Advance(time.Second)
	assert.Equal(t, f.el("plain"), f.active())
}

func TestTapCancelReleasesActive(t *testing.T) {
	f := newFixture(t)
	f.r.Handle(gesture(schemas.GestureTapDown, 50, 20))
	assert.True(t, f.active().IsZero(), "tap down never activates")
	f.r.Handle(gesture(schemas.GestureShowPress, 50, 20))
	require.False(t, f.active().IsZero())
	assert.False(t, f.r.Handle(gesture(schemas.GestureTapCancel, 50, 20)))
	assert.True(t, f.active().IsZero())
}

func TestLongPressShowsContextMenu(t *testing.T) {
	f := newFixture(t)
	plain := f.el("plain")
	assert.True(t, f.r.Handle(gesture(schemas.GestureLongPress, 50, 150)))
	assert.Equal(t, []host.Ref{plain}, f.v.ContextMenus())
	assert.Equal(t, []string{"gesturelongpress@#plain", "contextmenu@#plain"},
		f.trace(schemas.EventGestureLongPress, schemas.EventContextMenu))

	assert.False(t, f.r.Handle(gesture(schemas.GestureLongTap, 50, 150)))
	assert.Len(t, f.v.ContextMenus(), 1)
}

func TestLongPressStartsTouchDrag(t *testing.T) {
	f := newFixture(t, func(c *config.InputConfig) { c.Gesture.TouchDragDrop = true })
	a := f.el("a")

	assert.True(t, f.r.Handle(gesture(schemas.GestureLongPress, 450, 350)))
	require.NotNil(t, f.reg.Drag)
	assert.Equal(t, session.DragActive, f.reg.Drag.State)
	assert.Len(t, f.v.Drags(), 1)
	assert.Empty(t, f.v.ContextMenus())

	assert.True(t, f.r.Handle(gesture(schemas.GestureLongTap, 450, 350)))
	assert.Equal(t, []host.Ref{a}, f.v.ContextMenus())
}

func TestLongPressSelectsWordWhenEditing(t *testing.T) {
	f := newFixture(t, func(c *config.InputConfig) { c.Gesture.TouchEditing = true })
	assert.True(t, f.r.Handle(gesture(schemas.GestureLongPress, 10, 460)))
	sel := f.v.Selection(f.v.RootDocument())
	require.NotNil(t, sel)
	assert.Equal(t, schemas.ByWord, sel.Granularity)
	assert.Empty(t, f.v.ContextMenus())
}

func TestTwoFingerTapShowsContextMenu(t *testing.T) {
	f := newFixture(t)
	assert.True(t, f.r.Handle(gesture(schemas.GestureTwoFingerTap, 50, 150)))
	assert.Equal(t, []host.Ref{f.el("plain")}, f.v.ContextMenus())
}

func TestScrollGestureKeepsBeginTarget(t *testing.T) {
	f := newFixture(t)
	list := f.el("list")

	assert.True(t, f.r.Handle(gesture(schemas.GestureScrollBegin, 250, 100)))
	require.NotNil(t, f.reg.Scroll)
	assert.Equal(t, list, f.reg.Scroll.Target)

	// The finger left the list; the update still scrolls it.
	assert.True(t, f.r.Handle(scrollBy(schemas.GestureScrollUpdate, 10, 10, 0, -30)))
	assert.Equal(t, 30.0, f.v.ScrollOffset(list).Y)
	assert.Zero(t, f.v.ScrollOffset(f.v.RootDocument()).Y)

	assert.False(t, f.r.Handle(gesture(schemas.GestureScrollEnd, 10, 10)))
	assert.Nil(t, f.reg.Scroll)
	assert.Equal(t, []string{"gesturescrollstart@#list", "gesturescrollupdate@#list", "gesturescrollend@#list"},
		f.trace(schemas.EventGestureScrollStart, schemas.EventGestureScrollUpdate, schemas.EventGestureScrollEnd))
}

func TestScrollGestureBubblesToViewport(t *testing.T) {
	f := newFixture(t)
	f.r.Handle(gesture(schemas.GestureScrollBegin, 50, 150))
	assert.True(t, f.r.Handle(scrollBy(schemas.GestureScrollUpdate, 50, 150, 0, -100)))
	assert.Equal(t, 100.0, f.v.ScrollOffset(f.v.RootDocument()).Y)
	assert.False(t, f.r.Handle(scrollBy(schemas.GestureScrollUpdate, 50, 150, 0, 0)), "empty update")
}

func TestNoPropagationUpdateStopsAtPreviousScroller(t *testing.T) {
	f := newFixture(t)
	list := f.el("list")
	root := f.v.RootDocument()

	f.r.Handle(gesture(schemas.GestureScrollBegin, 250, 20))
	assert.True(t, f.r.Handle(scrollBy(schemas.GestureScrollUpdateNoPropagation, 250, 20, 0, -700)))
	assert.Equal(t, 600.0, f.v.ScrollOffset(list).Y)
	assert.Equal(t, list, f.reg.Scroll.PreviousScrolled)

	assert.True(t, f.r.Handle(scrollBy(schemas.GestureScrollUpdateNoPropagation, 250, 20, 0, -50)))
	assert.Zero(t, f.v.ScrollOffset(root).Y, "a pinned scroller must not hand off to the viewport")

	assert.True(t, f.r.Handle(scrollBy(schemas.GestureScrollUpdate, 250, 20, 0, -50)))
	assert.Equal(t, 50.0, f.v.ScrollOffset(root).Y)
}

func TestEmbeddedWidgetConsumesScroll(t *testing.T) {
	f := newFixture(t)
	f.r.Handle(gesture(schemas.GestureScrollBegin, 50, 350))
	require.True(t, f.reg.Scroll.OverEmbeddedWidget)
	assert.True(t, f.r.Handle(scrollBy(schemas.GestureScrollUpdate, 50, 350, 0, -40)))
	f.r.Handle(gesture(schemas.GestureScrollEnd, 50, 350))

	want := []schemas.GestureType{schemas.GestureScrollBegin, schemas.GestureScrollUpdate, schemas.GestureScrollEnd}
	assert.Equal(t, want, f.v.WidgetGestures())
	assert.Zero(t, f.v.ScrollOffset(f.v.RootDocument()).Y)
}

func TestScrollbarKeepsGestureAfterTapDown(t *testing.T) {
	f := newFixture(t)
	bar := f.el("bar")

	assert.True(t, f.r.Handle(gesture(schemas.GestureTapDown, 545, 50)))
	require.NotNil(t, f.reg.Scroll)
	assert.Equal(t, bar, f.reg.Scroll.Scrollbar)

	assert.True(t, f.r.Handle(gesture(schemas.GestureScrollBegin, 545, 50)))
	assert.True(t, f.r.Handle(scrollBy(schemas.GestureScrollUpdate, 300, 300, 0, -10)))
	assert.True(t, f.r.Handle(gesture(schemas.GestureScrollEnd, 300, 300)))
	assert.Nil(t, f.reg.Scroll)

	want := []schemas.GestureType{
		schemas.GestureTapDown, schemas.GestureScrollBegin,
		schemas.GestureScrollUpdate, schemas.GestureScrollEnd,
	}
	assert.Equal(t, want, f.v.ScrollbarGestures())
	assert.Empty(t, f.trace(schemas.EventGestureTapDown, schemas.EventGestureScrollUpdate))
	assert.Empty(t, f.v.Scrolls())
}

func TestRemovedScrollTargetMovesToParent(t *testing.T) {
	f := newFixture(t)
	list := f.el("list")
	f.r.Handle(gesture(schemas.GestureScrollBegin, 250, 20))
	require.Equal(t, f.el("row"), f.reg.Scroll.Target)

	f.v.Remove(f.el("row"))
	assert.Equal(t, list, f.reg.Scroll.Target)
	assert.True(t, f.r.Handle(scrollBy(schemas.GestureScrollUpdate, 250, 20, 0, -20)))
	assert.Equal(t, 20.0, f.v.ScrollOffset(list).Y)
}

func TestClearForgetsHistory(t *testing.T) {
	f := newFixture(t)
	f.r.Handle(gesture(schemas.GestureShowPress, 50, 20))
	f.r.Handle(gesture(schemas.GestureTap, 50, 20))
	require.True(t, f.r.DeferredPending())

	f.r.Clear()
	assert.False(t, f.r.DeferredPending())
	f.sched.Advance(time.Second)
	assert.Zero(t, f.sched.Pending())
}
