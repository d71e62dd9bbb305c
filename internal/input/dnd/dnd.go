// internal/input/dnd/dnd.go
// Package dnd drives drag-and-drop for one top-level viewport. A drag moves
// None → Armed → Active → (Dropped | Cancelled); the session itself lives in
// the session.Registry so the pointer machine and gesture router see the same
// state. Nested frames keep their own drop target, and every Active session
// ends with exactly one dragend.
package dnd

import (
	"go.uber.org/zap"

	"github.com/xkilldash9x/inputcore/api/schemas"
	"github.com/xkilldash9x/inputcore/internal/input/hittest"
	"github.com/xkilldash9x/inputcore/internal/input/host"
	"github.com/xkilldash9x/inputcore/internal/input/session"
	"github.com/xkilldash9x/inputcore/internal/observability"
)

// Controller is the DragAndDropController.
type Controller struct {
	host   host.Host
	hit    *hittest.HitTester
	reg    *session.Registry
	logger *zap.Logger
}

// New returns a Controller.
func New(h host.Host, hit *hittest.HitTester, reg *session.Registry, logger *zap.Logger) *Controller {
	return &Controller{host: h, hit: hit, reg: reg, logger: observability.Component(logger, "dnd")}
}

// State is the phase of the current drag, DragNone when there is none.
func (c *Controller) State() session.DragState {
	if c.reg.Drag == nil {
		return session.DragNone
	}
	return c.reg.Drag.State
}

// Active reports whether a drag is in flight.
func (c *Controller) Active() bool { return c.State() == session.DragActive }

// Arm records a potential drag from source. origin is a root viewport point.
func (c *Controller) Arm(source host.Ref, kind schemas.DragKind, origin schemas.Point) {
	if c.Active() {
		return
	}
	c.reg.Drag = session.NewDrag(source, kind, origin)
	c.logger.Debug("drag armed", zap.String("session", c.reg.Drag.ID), zap.Stringer("target", source), zap.String("kind", string(kind)))
}

// Disarm drops an armed drag that never started.
func (c *Controller) Disarm() {
	if d := c.reg.Drag; d != nil && d.State == session.DragArmed {
		c.reg.Drag = nil
	}
}

// Start fires dragstart at the armed source and hands the drag to the
// platform. It reports whether the drag became Active.
func (c *Controller) Start(pos schemas.Point, mods schemas.Modifiers) bool {
	d := c.reg.Drag
	if d == nil || d.State != session.DragArmed {
		return false
	}
	tree := c.host.Tree
	src, err := host.Revalidate(tree, d.Source)
	if err != nil {
		c.logger.Debug("drag source gone before start", zap.String("session", d.ID), zap.Error(err))
		c.reg.Drag = nil
		return false
	}
	d.Source = src

	dt := NewDataTransfer()
	if d.Kind == schemas.DragKindLink {
		if l, ok := host.As[host.Linked](tree, src); ok {
			dt.SetData("text/uri-list", l.Href())
			dt.SetData("text/plain", l.Href())
		}
	}
	out := c.dispatch(schemas.EventDragStart, src, pos, mods, dt)
	if !c.reg.Alive() || c.reg.Drag != d {
		return false
	}
	if out.Handled() {
		c.logger.Debug("dragstart cancelled", zap.String("session", d.ID))
		c.reg.Drag = nil
		return false
	}

	// Publish once: nothing may change the payload after dragstart.
	dt.SetPolicy(Protected)
	d.Payload = dt
	d.State = session.DragActive
	if src, err = host.Revalidate(tree, d.Source); err == nil {
		d.Source = src
	}

	info := host.DragInfo{ID: d.ID, Source: d.Source, Kind: d.Kind, Origin: d.Origin, Data: dt}
	if !c.host.Drag.BeginDrag(info) {
		c.logger.Debug("drag not started", zap.String("session", d.ID), zap.Error(host.ErrDragDeclined))
		c.end(d, pos, mods)
		c.reg.Drag = nil
		return false
	}
	c.logger.Debug("drag started", zap.String("session", d.ID), zap.Stringer("target", d.Source))
	return true
}

// Update moves an active drag to pos, a root viewport point, and reports
// whether the target under it accepts the drop.
func (c *Controller) Update(pos schemas.Point, mods schemas.Modifiers) bool {
	d := c.reg.Drag
	if d == nil || d.State != session.DragActive {
		return false
	}
	d.Accepted = c.updateIn(d, c.host.Tree.RootDocument(), pos, pos, mods, false)
	return d.Accepted
}

// updateIn resolves the drop target in doc. notified is set once the source
// got its drag for this update, so nested frames do not repeat it.
func (c *Controller) updateIn(d *session.Drag, doc host.Ref, p, root schemas.Point, mods schemas.Modifiers, notified bool) bool {
	tree := c.host.Tree
	res := c.hit.HitTest(doc, p, schemas.Point{}, hittest.ReadOnly)
	next := res.Target
	if !host.Valid(tree, next) {
		next = host.Ref{}
	}
	prev := d.DropTarget(doc)
	if !host.Valid(tree, prev) {
		d.SetDropTarget(doc, host.Ref{})
		prev = host.Ref{}
	}

	accept := false
	if next != prev {
		// Source first, then dragleave to the old target, then dragenter.
		if !notified {
			c.sourceEvent(d, schemas.EventDrag, root, mods)
			if !c.live(d) {
				return false
			}
			notified = true
		}
		if !prev.IsZero() {
			c.leave(d, doc, prev, root, mods)
			if !c.live(d) {
				return false
			}
		}
		if inner, offset, ok := c.frame(next); ok {
			accept = c.updateIn(d, inner, p.Sub(offset), root, mods, notified)
		} else if !next.IsZero() {
			out := c.dispatchTarget(schemas.EventDragEnter, next, doc, p, mods, d)
			accept = out.Handled() || c.dropZone(d, next)
		}
		if !c.live(d) {
			return false
		}
		// A listener may have removed the new target while it was entered.
		if host.Valid(tree, next) {
			d.SetDropTarget(doc, next)
			d.OnlyDragOver = true
		} else {
			d.SetDropTarget(doc, host.Ref{})
		}
		return accept
	}

	if inner, offset, ok := c.frame(next); ok {
		return c.updateIn(d, inner, p.Sub(offset), root, mods, notified)
	}
	if next.IsZero() {
		return false
	}
	if !d.OnlyDragOver && !notified {
		c.sourceEvent(d, schemas.EventDrag, root, mods)
		if !c.live(d) {
			return false
		}
	}
	d.OnlyDragOver = false
	out := c.dispatchTarget(schemas.EventDragOver, next, doc, p, mods, d)
	if !c.live(d) {
		return false
	}
	return out.Handled() || c.dropZone(d, next)
}

// leave sends dragleave to t, or into t's content document when t is a frame.
func (c *Controller) leave(d *session.Drag, doc, t host.Ref, root schemas.Point, mods schemas.Modifiers) {
	if inner, _, ok := c.frame(t); ok {
		if innerT := d.DropTarget(inner); !innerT.IsZero() && host.Valid(c.host.Tree, innerT) {
			c.leave(d, inner, innerT, root, mods)
		}
		d.SetDropTarget(inner, host.Ref{})
	} else {
		c.dispatchTarget(schemas.EventDragLeave, t, doc, c.hit.DocPoint(doc, root), mods, d)
	}
	d.SetDropTarget(doc, host.Ref{})
}

// Drop ends an active drag at pos: drop goes to the current target, then
// dragend to the source. It reports whether the target accepted.
func (c *Controller) Drop(pos schemas.Point, mods schemas.Modifiers) bool {
	d := c.reg.Drag
	if d == nil || d.State != session.DragActive {
		return false
	}
	accepted := d.Accepted
	if !accepted {
		d.Payload.SetDropEffect(schemas.DragOperationNone)
	}
	handled := c.dropIn(d, c.host.Tree.RootDocument(), pos, mods)
	if c.reg.Alive() && !d.Ended {
		d.State = session.DragDropped
		c.end(d, pos, mods)
	}
	if c.reg.Drag == d {
		c.reg.Drag = nil
	}
	return handled || accepted
}

func (c *Controller) dropIn(d *session.Drag, doc host.Ref, root schemas.Point, mods schemas.Modifiers) bool {
	t := d.DropTarget(doc)
	if !host.Valid(c.host.Tree, t) {
		return false
	}
	if inner, _, ok := c.frame(t); ok {
		return c.dropIn(d, inner, root, mods)
	}
	if dt, ok := d.Payload.(*DataTransfer); ok {
		dt.SetPolicy(Readable)
		defer dt.SetPolicy(Protected)
	}
	out := c.dispatchTarget(schemas.EventDrop, t, doc, c.hit.DocPoint(doc, root), mods, d)
	d.SetDropTarget(doc, host.Ref{})
	return out.Handled()
}

// Cancel abandons the drag: dragleave to the current target, then dragend.
// An armed drag is simply dropped. It reports whether an active drag ended.
func (c *Controller) Cancel() bool {
	d := c.reg.Drag
	if d == nil {
		return false
	}
	if d.State != session.DragActive {
		c.reg.Drag = nil
		return false
	}
	d.State = session.DragCancelled
	root := c.host.Tree.RootDocument()
	pos := d.Origin
	if t := d.DropTarget(root); host.Valid(c.host.Tree, t) {
		c.leave(d, root, t, pos, 0)
	}
	if c.reg.Alive() {
		c.end(d, pos, 0)
	}
	if c.reg.Drag == d {
		c.reg.Drag = nil
	}
	return true
}

// Teardown ends any drag because the viewport is going away or navigating.
// The dragend guarantee still holds when the source is alive.
func (c *Controller) Teardown() {
	d := c.reg.Drag
	if d == nil {
		return
	}
	c.reg.Drag = nil
	if d.State == session.DragActive && !d.Ended {
		d.State = session.DragCancelled
		c.end(d, d.Origin, 0)
	}
}

// end sends dragend to the source exactly once.
func (c *Controller) end(d *session.Drag, pos schemas.Point, mods schemas.Modifiers) {
	if d.Ended {
		return
	}
	d.Ended = true
	if d.External {
		return
	}
	if dt, ok := d.Payload.(*DataTransfer); ok {
		dt.SetPolicy(Protected)
	}
	c.sourceEvent(d, schemas.EventDragEnd, pos, mods)
	if dt, ok := d.Payload.(*DataTransfer); ok {
		dt.SetPolicy(Numb)
	}
	c.logger.Debug("drag ended", zap.String("session", d.ID), zap.Stringer("state", d.State))
}

// -- External drags --

// Enter starts tracking a drag that originated outside the viewport.
func (c *Controller) Enter(ev schemas.DragEvent) bool {
	if d := c.reg.Drag; d != nil {
		if !d.External {
			return c.Update(ev.Position, ev.Modifiers)
		}
	} else {
		d := session.NewDrag(host.Ref{}, schemas.DragKindGeneric, ev.Position)
		d.External = true
		d.State = session.DragActive
		d.Payload = NewExternal(ev.Items, ev.Allowed)
		c.reg.Drag = d
		c.logger.Debug("external drag entered", zap.String("session", d.ID))
	}
	return c.Update(ev.Position, ev.Modifiers)
}

// Over updates an external drag.
func (c *Controller) Over(ev schemas.DragEvent) bool {
	if c.reg.Drag == nil {
		return c.Enter(ev)
	}
	return c.Update(ev.Position, ev.Modifiers)
}

// Leave ends an external drag that left the viewport.
func (c *Controller) Leave(ev schemas.DragEvent) bool {
	d := c.reg.Drag
	if d == nil || !d.External {
		return false
	}
	root := c.host.Tree.RootDocument()
	if t := d.DropTarget(root); host.Valid(c.host.Tree, t) {
		c.leave(d, root, t, ev.Position, ev.Modifiers)
	}
	if c.reg.Drag == d {
		c.reg.Drag = nil
	}
	return false
}

// DropExternal drops an external drag.
func (c *Controller) DropExternal(ev schemas.DragEvent) bool {
	d := c.reg.Drag
	if d == nil || !d.External {
		return false
	}
	return c.Drop(ev.Position, ev.Modifiers)
}

// -- helpers --

func (c *Controller) live(d *session.Drag) bool {
	return c.reg.Alive() && c.reg.Drag == d && d.State == session.DragActive
}

func (c *Controller) frame(t host.Ref) (host.Ref, schemas.Point, bool) {
	if t.IsZero() {
		return host.Ref{}, schemas.Point{}, false
	}
	fo, ok := host.As[host.FrameOwner](c.host.Tree, t)
	if !ok {
		return host.Ref{}, schemas.Point{}, false
	}
	inner := fo.ContentDocument()
	if inner.IsZero() || !c.host.Tree.IsAlive(inner) {
		return host.Ref{}, schemas.Point{}, false
	}
	return inner, fo.ContentOffset(), true
}

// dropZone evaluates declarative acceptance on t and its ancestors. A zone
// matches when it names an operation and one of the payload's types.
func (c *Controller) dropZone(d *session.Drag, t host.Ref) bool {
	dt, ok := d.Payload.(*DataTransfer)
	if !ok {
		return false
	}
	for cur := t; !cur.IsZero(); cur = c.host.Tree.Parent(cur) {
		dz, ok := host.As[host.DropTarget](c.host.Tree, cur)
		if !ok {
			continue
		}
		op, types := dz.DropZone()
		if op == schemas.DragOperationNone {
			continue
		}
		for _, typ := range types {
			if dt.HasType(typ) {
				dt.SetDropEffect(op)
				return true
			}
		}
	}
	return false
}

func (c *Controller) sourceEvent(d *session.Drag, kind schemas.EventType, root schemas.Point, mods schemas.Modifiers) {
	if d.External || d.Source.IsZero() {
		return
	}
	if !c.host.Tree.IsAlive(d.Source) {
		c.logger.Debug("drag source destroyed", zap.String("session", d.ID), zap.String("event", string(kind)))
		return
	}
	c.dispatch(kind, d.Source, root, mods, d.Payload)
}

func (c *Controller) dispatchTarget(kind schemas.EventType, t, doc host.Ref, p schemas.Point, mods schemas.Modifiers, d *session.Drag) host.Outcome {
	out := c.host.Dispatcher.Dispatch(kind, t, host.DragPayload{Position: p, Modifiers: mods, Data: d.Payload})
	if out.Handled() && (kind == schemas.EventDragEnter || kind == schemas.EventDragOver) {
		if dt, ok := d.Payload.(*DataTransfer); ok && dt.DropEffect() == schemas.DragOperationNone {
			dt.SetDropEffect(defaultEffect(dt.EffectAllowed()))
		}
	}
	return out
}

// dispatch sends a source-side notification. pos is a root viewport point.
func (c *Controller) dispatch(kind schemas.EventType, t host.Ref, pos schemas.Point, mods schemas.Modifiers, data host.Transfer) host.Outcome {
	doc := c.host.Tree.Document(t)
	return c.host.Dispatcher.Dispatch(kind, t, host.DragPayload{Position: c.hit.DocPoint(doc, pos), Modifiers: mods, Data: data})
}
