// internal/input/pointer/pointer_test.go
package pointer

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
	"github.com/xkilldash9x/inputcore/internal/input/session"
)

const page = `<html data-scroll="0 2000"><body>
<div id="a" draggable="true" data-rect="0 0 100 100"></div>
<div id="b" data-rect="200 0 100 100"><span id="child" data-rect="210 10 20 20">x</span></div>
<button id="btn" data-rect="0 200 100 40">go</button>
<div id="field" data-rect="200 200 100 40"></div>
<a id="link" href="/next" data-rect="0 300 100 20">next</a>
<p id="para" data-rect="200 300 200 40">some words here</p>
<div id="list" data-rect="400 0 200 200" data-scroll="0 600"><div id="row" data-rect="400 0 200 50"></div></div>
</body></html>`

type fixture struct {
	v     *vtree.View
	reg   *session.Registry
	m     *Machine
	sched *loop.Manual
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := zaptest.NewLogger(t)
	v, err := vtree.Parse(page, schemas.Point{X: 800, Y: 600}, logger)
	require.NoError(t, err)
	h := v.Host()
	hit := hittest.New(h.Tree, logger)
	reg := session.New()
	sched := loop.NewManual(time.Unix(0, 0))
	m := New(config.NewDefaultConfig().Input(), h, hit, reg, dnd.New(h, hit, reg, logger), sched, logger)
	v.OnWillRemove(func(r host.Ref) { reg.Retarget(v, r) })
	return &fixture{v: v, reg: reg, m: m, sched: sched}
}

func ev(typ schemas.PointerEventType, x, y float64, at time.Duration) schemas.PointerEvent {
	b := schemas.ButtonLeft
	if typ == schemas.PointerMove {
		b = schemas.ButtonNone
	}
	return schemas.PointerEvent{Type: typ, Position: schemas.Point{X: x, Y: y}, Button: b, Timestamp: at}
}

// trace renders the log as kind@label, optionally filtered.
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

func clickCounts(f *fixture) []int {
	var out []int
	for _, n := range f.v.Notifications() {
		if n.Kind == schemas.EventClick {
			out = append(out, n.Payload.(host.MousePayload).ClickCount)
		}
	}
	return out
}

var buttons = []schemas.EventType{schemas.EventMouseDown, schemas.EventMouseUp, schemas.EventClick}

func TestClickBelowHysteresis(t *testing.T) {
	f := newFixture(t)
	f.m.Down(ev(schemas.PointerDown, 10, 10, 0))
	f.m.Move(ev(schemas.PointerMove, 11, 11, 10*time.Millisecond))
	f.m.Up(ev(schemas.PointerUp, 11, 11, 20*time.Millisecond))

	want := []string{"mousedown@#a", "mouseup@#a", "click@#a"}
	if diff := cmp.Diff(want, f.trace(buttons...)); diff != "" {
		t.Errorf("notifications mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, []int{1}, clickCounts(f))
	assert.Empty(t, f.v.Drags())
	assert.Nil(t, f.reg.Drag)
	assert.Equal(t, session.Idle, f.reg.Pointer(schemas.PrimaryPointer).State)
}

func TestDragPastHysteresis(t *testing.T) {
	f := newFixture(t)
	f.m.Down(ev(schemas.PointerDown, 10, 10, 0))
	f.m.Move(ev(schemas.PointerMove, 50, 10, 300*time.Millisecond))
	require.Equal(t, session.DragActive, f.reg.Drag.State)
	assert.Equal(t, session.Dragging, f.reg.Pointer(schemas.PrimaryPointer).State)
	f.m.Up(ev(schemas.PointerUp, 50, 10, 400*time.Millisecond))

	want := []string{"mousedown@#a", "dragstart@#a", "drag@#a", "dragenter@#a", "drop@#a", "dragend@#a"}
	got := f.trace(append(buttons,
		schemas.EventDragStart, schemas.EventDrag, schemas.EventDragEnter,
		schemas.EventDragOver, schemas.EventDragLeave, schemas.EventDrop, schemas.EventDragEnd)...)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("notifications mismatch (-want +got):\n%s", diff)
	}
	assert.Len(t, f.v.Drags(), 1)
	assert.Nil(t, f.reg.Drag)
}

func TestDeclinedDragFallsBack(t *testing.T) {
	f := newFixture(t)
	f.v.DeclineDrags(true)
	f.m.Down(ev(schemas.PointerDown, 10, 10, 0))
	f.m.Move(ev(schemas.PointerMove, 50, 10, 300*time.Millisecond))
	assert.Nil(t, f.reg.Drag)
	assert.Equal(t, []string{"dragstart@#a", "dragend@#a"}, f.trace(schemas.EventDragStart, schemas.EventDragEnd))
	assert.NotEqual(t, session.Dragging, f.reg.Pointer(schemas.PrimaryPointer).State)
}

func TestMultiClickCount(t *testing.T) {
	f := newFixture(t)
	click := func(x, y float64, at time.Duration, b schemas.MouseButton) {
		down := ev(schemas.PointerDown, x, y, at)
		down.Button = b
		up := ev(schemas.PointerUp, x, y, at+10*time.Millisecond)
		up.Button = b
		f.m.Down(down)
		f.m.Up(up)
	}
	click(10, 10, 0, schemas.ButtonLeft)
	click(13, 12, 300*time.Millisecond, schemas.ButtonLeft)
	click(13, 12, 600*time.Millisecond, schemas.ButtonLeft)
	assert.Equal(t, schemas.ByParagraph, f.v.Selection(f.v.RootDocument()).Granularity, "third click seeds the configured granularity")
	// Too late.
	click(13, 12, 2*time.Second, schemas.ButtonLeft)
	// Too far.
	click(40, 40, 2100*time.Millisecond, schemas.ButtonLeft)
	// Other button.
	click(40, 40, 2200*time.Millisecond, schemas.ButtonMiddle)

	assert.Equal(t, []int{1, 2, 3, 1, 1, 1}, clickCounts(f))
}

func TestClickFollowsRemovedPressTarget(t *testing.T) {
	f := newFixture(t)
	child := f.v.MustQuery(`//*[@id='child']`)
	f.v.On(child, schemas.EventMouseDown, func(e *vtree.Event) { e.View.Remove(child) })

	f.m.Down(ev(schemas.PointerDown, 215, 15, 0))
	f.m.Up(ev(schemas.PointerUp, 215, 15, 10*time.Millisecond))

	want := []string{"mousedown@#child", "mouseup@#b", "click@#b"}
	if diff := cmp.Diff(want, f.trace(buttons...)); diff != "" {
		t.Errorf("notifications mismatch (-want +got):\n%s", diff)
	}
	log := f.v.Notifications()
	for i, n := range log {
		if n.Kind == schemas.EventMouseDown {
			for _, later := range log[i+1:] {
				assert.NotEqual(t, child, later.Target, "%s reached the detached node", later.Kind)
			}
			break
		}
	}
}

func TestClickNotSharedAcrossInteractiveContent(t *testing.T) {
	f := newFixture(t)
	f.m.Down(ev(schemas.PointerDown, 95, 210, 0))
	f.m.Up(ev(schemas.PointerUp, 98, 210, 10*time.Millisecond))
	assert.Equal(t, []string{"mousedown@#btn", "mouseup@#btn", "click@#btn"}, f.trace(buttons...))

	f.v.Reset()
	// Release lands outside the button but inside the click slop.
	f.m.Down(ev(schemas.PointerDown, 98, 210, time.Second))
	f.m.Up(ev(schemas.PointerUp, 102, 210, time.Second+10*time.Millisecond))
	assert.Equal(t, []string{"mousedown@#btn", "mouseup@body"}, f.trace(buttons...))
}

func TestPreventedMouseDownSkipsFocus(t *testing.T) {
	f := newFixture(t)
	btn := f.v.MustQuery(`//*[@id='btn']`)
	f.m.Down(ev(schemas.PointerDown, 10, 210, 0))
	f.m.Up(ev(schemas.PointerUp, 10, 210, 10*time.Millisecond))
	assert.Equal(t, btn, f.v.FocusedTarget())

	f.v.SetFocusedTarget(f.v.RootDocument(), host.Ref{})
	f.v.On(btn, schemas.EventMouseDown, func(e *vtree.Event) { e.PreventDefault() })
	f.m.Down(ev(schemas.PointerDown, 10, 210, time.Second))
	assert.True(t, f.v.FocusedTarget().IsZero())
}

func TestRefusedFocusSwallowsPress(t *testing.T) {
	f := newFixture(t)
	f.v.GuardFocus(func(_, _ host.Ref) bool { return false })
	assert.True(t, f.m.Down(ev(schemas.PointerDown, 10, 210, 0)))
}

func TestCaptureBypassesHitTest(t *testing.T) {
	f := newFixture(t)
	a := f.v.MustQuery(`//*[@id='a']`)
	require.True(t, f.m.SetCapture(schemas.PrimaryPointer, a, false))

	f.m.Move(ev(schemas.PointerMove, 250, 50, 0))
	assert.Equal(t, []string{"mousemove@#a"}, f.trace(schemas.EventMouseMove))

	f.m.ReleaseCapture(schemas.PrimaryPointer)
	f.v.Reset()
	f.m.Move(ev(schemas.PointerMove, 250, 50, 10*time.Millisecond))
	assert.Equal(t, []string{"mousemove@#b"}, f.trace(schemas.EventMouseMove))
}

func TestCaptureReleasedOnUpUnlessLatched(t *testing.T) {
	f := newFixture(t)
	a := f.v.MustQuery(`//*[@id='a']`)
	p := f.reg.Pointer(schemas.PrimaryPointer)

	f.m.SetCapture(schemas.PrimaryPointer, a, false)
	f.m.Down(ev(schemas.PointerDown, 250, 50, 0))
	f.m.Up(ev(schemas.PointerUp, 250, 50, 10*time.Millisecond))
	assert.True(t, p.Capture.IsZero())

	f.m.SetCapture(schemas.PrimaryPointer, a, true)
	f.m.Down(ev(schemas.PointerDown, 250, 50, time.Second))
	f.m.Up(ev(schemas.PointerUp, 250, 50, time.Second+10*time.Millisecond))
	assert.Equal(t, a, p.Capture)
}

func TestHoverTransitions(t *testing.T) {
	f := newFixture(t)
	f.m.Move(ev(schemas.PointerMove, 10, 10, 0))
	f.m.Move(ev(schemas.PointerMove, 20, 20, 10*time.Millisecond))
	f.m.Move(ev(schemas.PointerMove, 250, 50, 20*time.Millisecond))
	f.m.Leave(ev(schemas.PointerLeave, 900, 50, 30*time.Millisecond))

	want := []string{
		"mouseover@#a", "mousemove@#a",
		"mousemove@#a",
		"mouseout@#a", "mouseover@#b", "mousemove@#b",
		"mouseout@#b",
	}
	if diff := cmp.Diff(want, f.trace(schemas.EventMouseOver, schemas.EventMouseOut, schemas.EventMouseMove)); diff != "" {
		t.Errorf("notifications mismatch (-want +got):\n%s", diff)
	}
	assert.True(t, f.v.Hovered(f.v.RootDocument()).IsZero())
}

func TestCursorClassification(t *testing.T) {
	f := newFixture(t)
	cases := []struct {
		name string
		x, y float64
		want schemas.Cursor
	}{
		{"link", 10, 305, schemas.CursorHand},
		{"text", 210, 310, schemas.CursorText},
		{"plain box", 10, 10, schemas.CursorPointer},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f.m.Move(ev(schemas.PointerMove, tc.x, tc.y, 0))
			assert.Equal(t, tc.want, f.v.CurrentCursor())
		})
	}

	a := f.v.MustQuery(`//*[@id='a']`)
	f.v.SetAttr(a, "data-cursor", "move")
	f.m.Move(ev(schemas.PointerMove, 11, 11, 0))
	assert.Equal(t, schemas.CursorMove, f.v.CurrentCursor())
}

func TestSelectionExtendsWithSeedGranularity(t *testing.T) {
	f := newFixture(t)
	f.m.Down(ev(schemas.PointerDown, 210, 310, 0))
	f.m.Up(ev(schemas.PointerUp, 210, 310, 10*time.Millisecond))
	f.m.Down(ev(schemas.PointerDown, 210, 310, 100*time.Millisecond))
	f.m.Move(ev(schemas.PointerMove, 300, 320, 200*time.Millisecond))

	p := f.reg.Pointer(schemas.PrimaryPointer)
	assert.Equal(t, session.Selecting, p.State)
	sel := f.v.Selection(f.v.RootDocument())
	require.NotNil(t, sel)
	assert.Equal(t, schemas.ByWord, sel.Granularity)
	assert.Equal(t, schemas.Point{X: 300, Y: 320}, sel.End)
}

func TestHandledSelectStartSuppressesSelection(t *testing.T) {
	f := newFixture(t)
	para := f.v.MustQuery(`//*[@id='para']`)
	f.v.On(para, schemas.EventSelectStart, func(e *vtree.Event) { e.PreventDefault() })

	f.m.Down(ev(schemas.PointerDown, 210, 310, 0))
	f.m.Move(ev(schemas.PointerMove, 300, 320, 100*time.Millisecond))

	assert.Equal(t, []string{"selectstart@#para", "selectstart@#para"}, f.trace(schemas.EventSelectStart), "the drag asks again")
	assert.Nil(t, f.v.Selection(f.v.RootDocument()))
	assert.Equal(t, session.Pressed, f.reg.Pointer(schemas.PrimaryPointer).State)
}

func TestSelectionStartsOnDragAfterHandledPress(t *testing.T) {
	f := newFixture(t)
	para := f.v.MustQuery(`//*[@id='para']`)
	refusals := 1
	f.v.On(para, schemas.EventSelectStart, func(e *vtree.Event) {
		if refusals > 0 {
			refusals--
			e.PreventDefault()
		}
	})

	f.m.Down(ev(schemas.PointerDown, 210, 310, 0))
	require.Nil(t, f.v.Selection(f.v.RootDocument()))
	f.m.Move(ev(schemas.PointerMove, 300, 320, 100*time.Millisecond))

	sel := f.v.Selection(f.v.RootDocument())
	require.NotNil(t, sel)
	assert.Equal(t, schemas.Point{X: 210, Y: 310}, sel.Start, "anchored at the press")
	assert.Equal(t, schemas.Point{X: 300, Y: 320}, sel.End)
	assert.Equal(t, session.Selecting, f.reg.Pointer(schemas.PrimaryPointer).State)

	// Once started, further moves only extend.
	f.m.Move(ev(schemas.PointerMove, 320, 330, 150*time.Millisecond))
	assert.Len(t, f.trace(schemas.EventSelectStart), 2)
}

func TestSelectionAutoscrollsPastViewportEdge(t *testing.T) {
	f := newFixture(t)
	root := f.v.RootDocument()
	f.m.Down(ev(schemas.PointerDown, 210, 310, 0))
	f.m.Move(ev(schemas.PointerMove, 300, 650, 100*time.Millisecond))
	require.Equal(t, session.Selecting, f.reg.Pointer(schemas.PrimaryPointer).State)
	require.True(t, f.m.AutoscrollPending())
	assert.Zero(t, f.v.ScrollOffset(root).Y, "nothing scrolls before the first step")

	f.sched.Advance(50 * time.Millisecond)
	assert.Equal(t, 50.0, f.v.ScrollOffset(root).Y)
	f.sched.Advance(50 * time.Millisecond)
	assert.Equal(t, 100.0, f.v.ScrollOffset(root).Y)

	// Back inside the viewport the steps stop.
	f.m.Move(ev(schemas.PointerMove, 300, 500, 250*time.Millisecond))
	assert.False(t, f.m.AutoscrollPending())
	f.sched.Advance(time.Second)
	assert.Equal(t, 100.0, f.v.ScrollOffset(root).Y)

	f.m.Move(ev(schemas.PointerMove, 300, 700, 300*time.Millisecond))
	require.True(t, f.m.AutoscrollPending())
	f.m.Up(ev(schemas.PointerUp, 300, 700, 350*time.Millisecond))
	assert.False(t, f.m.AutoscrollPending(), "release stops the steps")
	assert.Zero(t, f.sched.Pending())
}

func TestNoAutoscrollWithoutSelection(t *testing.T) {
	f := newFixture(t)
	f.v.On(f.v.RootDocument(), schemas.EventSelectStart, func(e *vtree.Event) { e.PreventDefault() })

	f.m.Down(ev(schemas.PointerDown, 450, 150, 0))
	f.m.Move(ev(schemas.PointerMove, 450, 650, 100*time.Millisecond))
	assert.False(t, f.m.AutoscrollPending())
	assert.Len(t, f.trace(schemas.EventSelectStart), 2)
	assert.Nil(t, f.v.Selection(f.v.RootDocument()))
}

func TestWheelScrollsNearestScroller(t *testing.T) {
	f := newFixture(t)
	list := f.v.MustQuery(`//*[@id='list']`)
	root := f.v.RootDocument()

	assert.True(t, f.m.Wheel(schemas.WheelEvent{Position: schemas.Point{X: 450, Y: 20}, DeltaY: 120}))
	assert.Equal(t, 120.0, f.v.ScrollOffset(list).Y)

	assert.True(t, f.m.Wheel(schemas.WheelEvent{Position: schemas.Point{X: 450, Y: 20}, DeltaY: 3, DeltaMode: schemas.WheelDeltaLine}))
	assert.Equal(t, 240.0, f.v.ScrollOffset(list).Y)

	// Outside the list the document scrolls.
	assert.True(t, f.m.Wheel(schemas.WheelEvent{Position: schemas.Point{X: 10, Y: 10}, DeltaY: 50}))
	assert.Equal(t, 50.0, f.v.ScrollOffset(root).Y)

	f.v.On(list, schemas.EventWheel, func(e *vtree.Event) { e.PreventDefault() })
	assert.True(t, f.m.Wheel(schemas.WheelEvent{Position: schemas.Point{X: 450, Y: 20}, DeltaY: 120}))
	assert.Equal(t, 240.0, f.v.ScrollOffset(list).Y)
}

func TestFakeMoveCoalesces(t *testing.T) {
	f := newFixture(t)
	f.m.Move(ev(schemas.PointerMove, 10, 10, 0))
	f.v.Reset()

	f.m.DispatchFakeMoveSoon()
	f.m.DispatchFakeMoveSoon()
	assert.True(t, f.m.FakeMovePending())
	f.sched.Advance(100 * time.Millisecond)
	assert.Equal(t, []string{"mousemove@#a"}, f.trace(schemas.EventMouseMove), "requests coalesce into one move")
	payload := f.v.Notifications()[0].Payload.(host.MousePayload)
	assert.True(t, payload.Synthetic)

	// The burst is spent: the next request waits for the long interval.
	f.v.Reset()
	f.m.DispatchFakeMoveSoon()
	f.m.DispatchFakeMoveSoon()
	f.sched.Advance(100 * time.Millisecond)
	assert.Empty(t, f.trace(schemas.EventMouseMove))
	f.sched.Advance(150 * time.Millisecond)
	assert.Equal(t, []string{"mousemove@#a"}, f.trace(schemas.EventMouseMove))
}

func TestFakeMoveNeverFiresWhilePressed(t *testing.T) {
	f := newFixture(t)
	f.m.Move(ev(schemas.PointerMove, 10, 10, 0))
	f.m.DispatchFakeMoveSoon()
	f.m.Down(ev(schemas.PointerDown, 10, 10, 0))
	assert.False(t, f.m.FakeMovePending(), "a press cancels the pending move")
	f.m.DispatchFakeMoveSoon()
	assert.False(t, f.m.FakeMovePending())

	f.m.Up(ev(schemas.PointerUp, 10, 10, 10*time.Millisecond))
	f.m.DispatchFakeMoveSoon()
	f.m.Clear()
	assert.False(t, f.m.FakeMovePending())
	assert.Equal(t, 0, f.sched.Pending())
}

func TestSimulateTap(t *testing.T) {
	f := newFixture(t)
	btn := f.v.MustQuery(`//*[@id='btn']`)
	f.m.SimulateTap(Tap{Position: schemas.Point{X: 10, Y: 210}, Target: btn, Count: 1})

	want := []string{"mousemove@#btn", "mousedown@#btn", "mouseup@#btn", "click@#btn"}
	if diff := cmp.Diff(want, f.trace(schemas.EventMouseMove, schemas.EventMouseDown, schemas.EventMouseUp, schemas.EventClick)); diff != "" {
		t.Errorf("notifications mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, btn, f.v.FocusedTarget())
	assert.Equal(t, session.Idle, f.reg.Pointer(schemas.PrimaryPointer).State)
	for _, n := range f.v.Notifications() {
		assert.True(t, n.Payload.(host.MousePayload).Synthetic, "%s", n.Kind)
	}
}

func TestRightButtonShowsContextMenu(t *testing.T) {
	f := newFixture(t)
	b := f.v.MustQuery(`//*[@id='b']`)
	down := ev(schemas.PointerDown, 250, 50, 0)
	down.Button = schemas.ButtonRight
	f.m.Down(down)
	up := ev(schemas.PointerUp, 250, 50, 10*time.Millisecond)
	up.Button = schemas.ButtonRight
	f.m.Up(up)

	assert.Equal(t, []host.Ref{b}, f.v.ContextMenus())
	assert.Empty(t, f.trace(schemas.EventClick), "right button never clicks")

	f.v.Reset()
	f.v.On(b, schemas.EventContextMenu, func(e *vtree.Event) { e.PreventDefault() })
	f.m.Down(down)
	assert.Empty(t, f.v.ContextMenus())
}

func TestDetachedViewportIgnoresInput(t *testing.T) {
	f := newFixture(t)
	a := f.v.MustQuery(`//*[@id='a']`)
	f.v.On(a, schemas.EventMouseDown, func(*vtree.Event) { f.reg.Detach() })
	f.m.Down(ev(schemas.PointerDown, 10, 10, 0))
	f.m.Up(ev(schemas.PointerUp, 10, 10, 10*time.Millisecond))
	assert.Equal(t, []string{"mousedown@#a"}, f.trace(buttons...))
}

func TestClassifyControls(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, schemas.CursorResize, Classify(f.v, hittest.Result{IsOverResizer: true}))
	assert.Equal(t, schemas.CursorPointer, Classify(f.v, hittest.Result{}))
}
