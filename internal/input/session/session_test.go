// internal/input/session/session_test.go
package session

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/inputcore/api/schemas"
	"github.com/xkilldash9x/inputcore/internal/browser/vtree"
	"github.com/xkilldash9x/inputcore/internal/input/host"
)

const page = `<html><body>
<div id="outer" data-rect="0 0 300 300"><div id="mid" data-rect="0 0 200 200"><div id="leaf" data-rect="0 0 50 50"></div></div></div>
<div id="other" data-rect="400 0 100 100"></div>
<iframe id="frame" data-rect="400 300 200 200" srcdoc="<div id='inner' data-rect='0 0 100 100'></div>"></iframe>
</body></html>`

func setup(t *testing.T) (*vtree.View, func(string) host.Ref) {
	t.Helper()
	v, err := vtree.Parse(page, schemas.Point{X: 800, Y: 600}, zaptest.NewLogger(t))
	require.NoError(t, err)
	return v, func(id string) host.Ref { return v.MustQuery(fmt.Sprintf("//*[@id='%s']", id)) }
}

func TestPointerSessionsAreLazy(t *testing.T) {
	r := New()
	_, ok := r.PeekPointer(3)
	assert.False(t, ok)

	p := r.Pointer(3)
	assert.Equal(t, schemas.PointerID(3), p.ID)
	assert.Equal(t, Idle, p.State)
	assert.Same(t, p, r.Pointer(3))

	n := 0
	r.EachPointer(func(*Pointer) { n++ })
	assert.Equal(t, 1, n)
}

func TestResetPressKeepsHistory(t *testing.T) {
	_, el := setup(t)
	p := &Pointer{
		State: Pressed, Button: schemas.ButtonLeft, ClickCount: 2,
		PressTarget: el("leaf"), ClickTarget: el("leaf"), Capture: el("mid"),
		LastPosition: schemas.Point{X: 4, Y: 5}, HasPosition: true, DragArmed: true,
	}
	p.ResetPress()
	assert.False(t, p.IsPressed())
	assert.Equal(t, 2, p.ClickCount)
	assert.True(t, p.HasPosition)
	assert.True(t, p.PressTarget.IsZero())
	assert.True(t, p.Capture.IsZero())
	assert.False(t, p.DragArmed)

	latched := &Pointer{State: Pressed, Capture: el("mid"), CaptureLatched: true}
	latched.ResetPress()
	assert.Equal(t, el("mid"), latched.Capture)
}

func TestRetargetMovesReferencesToParent(t *testing.T) {
	v, el := setup(t)
	r := New()
	p := r.Pointer(schemas.PrimaryPointer)
	p.PressTarget, p.ClickTarget, p.LastTarget = el("leaf"), el("leaf"), el("other")
	p.Capture, p.CaptureLatched = el("leaf"), true

	r.Drag = NewDrag(el("other"), schemas.DragKindGeneric, schemas.Point{})
	r.Drag.SetDropTarget(v.RootDocument(), el("leaf"))

	r.Touch = NewTouchSequence()
	r.Touch.Document = v.RootDocument()
	r.Touch.Targets[1] = el("leaf")
	r.Touch.Targets[2] = el("other")

	r.Scroll = &GestureScroll{Target: el("leaf"), Scrollbar: el("mid"), PreviousScrolled: el("mid")}

	r.Retarget(v, el("mid"))

	assert.Equal(t, el("outer"), p.PressTarget)
	assert.Equal(t, el("outer"), p.ClickTarget)
	assert.Equal(t, el("other"), p.LastTarget)
	assert.True(t, p.Capture.IsZero())
	assert.False(t, p.CaptureLatched)

	assert.True(t, r.Drag.DropTarget(v.RootDocument()).IsZero())
	assert.Equal(t, el("outer"), r.Touch.Targets[1])
	assert.Equal(t, el("other"), r.Touch.Targets[2])

	assert.Equal(t, el("outer"), r.Scroll.Target)
	assert.Equal(t, el("outer"), r.Scroll.PreviousScrolled)
	assert.True(t, r.Scroll.Scrollbar.IsZero())
}

func TestRetargetNeverMovesTouchAcrossDocuments(t *testing.T) {
	v, el := setup(t)
	r := New()
	r.Touch = NewTouchSequence()
	r.Touch.Document = v.RootDocument()
	r.Touch.Targets[7] = el("inner")

	r.Retarget(v, el("inner"))
	target, held := r.Touch.Targets[7]
	assert.True(t, held, "the id stays until its release is dispatched")
	assert.True(t, target.IsZero())
}

func TestRetargetIgnoresUnrelatedAndZero(t *testing.T) {
	v, el := setup(t)
	r := New()
	p := r.Pointer(schemas.PrimaryPointer)
	p.PressTarget = el("leaf")

	r.Retarget(v, host.Ref{})
	r.Retarget(v, el("other"))
	assert.Equal(t, el("leaf"), p.PressTarget)
}

func TestClearAllAndDetach(t *testing.T) {
	r := New()
	r.Pointer(schemas.PrimaryPointer).State = Pressed
	r.Drag = NewDrag(host.Ref{}, schemas.DragKindGeneric, schemas.Point{})
	r.Touch = NewTouchSequence()
	r.Scroll = &GestureScroll{}

	r.ClearAll()
	assert.True(t, r.Alive())
	assert.Nil(t, r.Drag)
	assert.Nil(t, r.Touch)
	assert.Nil(t, r.Scroll)
	_, ok := r.PeekPointer(schemas.PrimaryPointer)
	assert.False(t, ok)

	r.Pointer(schemas.PrimaryPointer)
	r.Detach()
	assert.False(t, r.Alive())
	_, ok = r.PeekPointer(schemas.PrimaryPointer)
	assert.False(t, ok)
}

func TestSessionIDsAreUnique(t *testing.T) {
	a, b := NewTouchSequence(), NewTouchSequence()
	assert.NotEqual(t, a.ID, b.ID)
	assert.Zero(t, a.Active())

	d := NewDrag(host.Ref{}, schemas.DragKindLink, schemas.Point{X: 1, Y: 2})
	assert.NotEmpty(t, d.ID)
	assert.Equal(t, DragArmed, d.State)
	assert.Equal(t, "armed", d.State.String())
	assert.Equal(t, "dragging", Dragging.String())
}

func TestDropTargetPerDocument(t *testing.T) {
	v, el := setup(t)
	d := NewDrag(host.Ref{}, schemas.DragKindGeneric, schemas.Point{})
	root, inner := v.RootDocument(), v.Document(el("inner"))
	d.SetDropTarget(root, el("frame"))
	d.SetDropTarget(inner, el("inner"))
	assert.Equal(t, el("frame"), d.DropTarget(root))
	assert.Equal(t, el("inner"), d.DropTarget(inner))

	d.SetDropTarget(root, host.Ref{})
	assert.True(t, d.DropTarget(root).IsZero())
	assert.Len(t, d.DropTargets, 1)
}
