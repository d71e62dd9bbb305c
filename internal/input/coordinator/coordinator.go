// internal/input/coordinator/coordinator.go
// Package coordinator is the root of the input core. A Coordinator owns one
// of each dispatch component for a single top-level viewport, the session
// registry they share, and the entry point for every platform event kind.
package coordinator

import (
	"errors"

	"go.uber.org/zap"

	"github.com/xkilldash9x/inputcore/api/schemas"
	"github.com/xkilldash9x/inputcore/internal/config"
	"github.com/xkilldash9x/inputcore/internal/input/dnd"
	"github.com/xkilldash9x/inputcore/internal/input/gesture"
	"github.com/xkilldash9x/inputcore/internal/input/hittest"
	"github.com/xkilldash9x/inputcore/internal/input/host"
	"github.com/xkilldash9x/inputcore/internal/input/keyboard"
	"github.com/xkilldash9x/inputcore/internal/input/loop"
	"github.com/xkilldash9x/inputcore/internal/input/pointer"
	"github.com/xkilldash9x/inputcore/internal/input/session"
	"github.com/xkilldash9x/inputcore/internal/input/touch"
	"github.com/xkilldash9x/inputcore/internal/observability"
)

// Coordinator is the EventCoordinator of one top-level viewport. Like the
// components it owns, it must only be used from the viewport's loop.
type Coordinator struct {
	host   host.Host
	logger *zap.Logger

	reg      *session.Registry
	hit      *hittest.HitTester
	drag     *dnd.Controller
	pointer  *pointer.Machine
	gesture  *gesture.Router
	touch    *touch.Aggregator
	keyboard *keyboard.Dispatcher
}

// New wires a Coordinator for the viewport served by h.
func New(cfg config.Interface, logger *zap.Logger, h host.Host, sched loop.Scheduler) (*Coordinator, error) {
	if cfg == nil || logger == nil || sched == nil {
		return nil, errors.New("cannot initialize coordinator with nil dependencies")
	}
	if h.Tree == nil || h.Dispatcher == nil || h.Focus == nil || h.Scroller == nil ||
		h.Drag == nil || h.Editor == nil || h.Navigator == nil || h.Chrome == nil {
		return nil, errors.New("cannot initialize coordinator with an incomplete host")
	}
	in := cfg.Input()
	if err := in.Validate(); err != nil {
		return nil, err
	}

	c := &Coordinator{
		host:   h,
		logger: observability.Component(logger, "coordinator"),
		reg:    session.New(),
	}
	c.hit = hittest.New(h.Tree, logger)
	c.drag = dnd.New(h, c.hit, c.reg, logger)
	c.pointer = pointer.New(in, h, c.hit, c.reg, c.drag, sched, logger)
	c.gesture = gesture.New(in, h, c.hit, c.reg, c.pointer, sched, logger)
	c.touch = touch.New(h, c.hit, c.reg, logger)
	c.keyboard = keyboard.New(in, h, c.reg, c.drag, logger)

	c.hit.SetActivationHook(c.gesture.ElementActivated)
	c.keyboard.OnScroll(c.pointer.DispatchFakeMoveSoon)
	return c, nil
}

// Registry exposes the session state, mainly for inspection in tests and
// diagnostics.
func (c *Coordinator) Registry() *session.Registry { return c.reg }

// FakeMovePending reports whether a synthesized pointer move is scheduled.
func (c *Coordinator) FakeMovePending() bool { return c.pointer.FakeMovePending() }

func (c *Coordinator) alive(entry string) bool {
	if c.reg.Alive() {
		return true
	}
	c.logger.Debug("event after detach", zap.String("entry", entry))
	return false
}

// -- Pointer --

func (c *Coordinator) OnPointerDown(ev schemas.PointerEvent) bool {
	return c.alive("pointer_down") && c.pointer.Down(ev)
}

func (c *Coordinator) OnPointerMove(ev schemas.PointerEvent) bool {
	return c.alive("pointer_move") && c.pointer.Move(ev)
}

func (c *Coordinator) OnPointerUp(ev schemas.PointerEvent) bool {
	return c.alive("pointer_up") && c.pointer.Up(ev)
}

// OnPointerLeave handles the pointer leaving the viewport.
func (c *Coordinator) OnPointerLeave(ev schemas.PointerEvent) bool {
	return c.alive("pointer_leave") && c.pointer.Leave(ev)
}

func (c *Coordinator) OnPointerWheel(ev schemas.WheelEvent) bool {
	return c.alive("wheel") && c.pointer.Wheel(ev)
}

// OnPointerEvent routes ev by its transition type.
func (c *Coordinator) OnPointerEvent(ev schemas.PointerEvent) bool {
	switch ev.Type {
	case schemas.PointerDown:
		return c.OnPointerDown(ev)
	case schemas.PointerMove:
		return c.OnPointerMove(ev)
	case schemas.PointerUp:
		return c.OnPointerUp(ev)
	case schemas.PointerLeave:
		return c.OnPointerLeave(ev)
	}
	c.logger.Debug("unknown pointer event", zap.String("type", string(ev.Type)))
	return false
}

// -- Gesture, touch and keyboard --

func (c *Coordinator) OnGestureEvent(ev schemas.GestureEvent) bool {
	return c.alive("gesture") && c.gesture.Handle(ev)
}

func (c *Coordinator) OnTouchEvent(ev schemas.TouchEvent) bool {
	return c.alive("touch") && c.touch.Handle(ev)
}

func (c *Coordinator) OnKeyEvent(ev schemas.KeyEvent) bool {
	return c.alive("key") && c.keyboard.Handle(ev)
}

// OnDragEvent routes a drag that originated outside the viewport.
func (c *Coordinator) OnDragEvent(ev schemas.DragEvent) bool {
	if !c.alive("drag") {
		return false
	}
	switch ev.Type {
	case schemas.DragEnter:
		return c.drag.Enter(ev)
	case schemas.DragOver:
		return c.drag.Over(ev)
	case schemas.DragLeave:
		return c.drag.Leave(ev)
	case schemas.DragDrop:
		return c.drag.DropExternal(ev)
	}
	c.logger.Debug("unknown drag event", zap.String("type", string(ev.Type)))
	return false
}

// -- Session control --

// ClearAllSessions drops every session and pending timer, as on navigation.
// An active drag still gets its dragend.
func (c *Coordinator) ClearAllSessions() {
	if !c.reg.Alive() {
		return
	}
	c.drag.Teardown()
	c.pointer.Clear()
	c.gesture.Clear()
	c.reg.ClearAll()
	c.logger.Debug("sessions cleared")
}

// NotifyTargetWillBeRemoved must be called before t is detached from its
// tree. Sessions holding t or a descendant move to t's parent or let go.
func (c *Coordinator) NotifyTargetWillBeRemoved(t host.Ref) {
	if !c.reg.Alive() || t.IsZero() {
		return
	}
	c.reg.Retarget(c.host.Tree, t)
	c.gesture.Forget(t)
}

// NotifyScrolled tells the core that content moved under the pointer
// without pointer input.
func (c *Coordinator) NotifyScrolled() {
	if c.reg.Alive() {
		c.pointer.DispatchFakeMoveSoon()
	}
}

// SetCapture routes every move and up of pointer id to t until released.
func (c *Coordinator) SetCapture(id schemas.PointerID, t host.Ref) bool {
	return c.alive("set_capture") && c.pointer.SetCapture(id, t, false)
}

func (c *Coordinator) ReleaseCapture(id schemas.PointerID) {
	if c.reg.Alive() {
		c.pointer.ReleaseCapture(id)
	}
}

// Detach tears the viewport down. Every later call is a no-op, including
// calls made by listeners still running higher up the stack.
func (c *Coordinator) Detach() {
	if !c.reg.Alive() {
		return
	}
	c.drag.Teardown()
	c.pointer.Clear()
	c.gesture.Clear()
	c.reg.Detach()
	c.logger.Debug("viewport detached")
}
