// internal/browser/vtree/dispatch.go
package vtree

import (
	"go.uber.org/zap"

	"github.com/xkilldash9x/inputcore/api/schemas"
	"github.com/xkilldash9x/inputcore/internal/input/host"
)

// Event is what a Listener sees.
type Event struct {
	Kind          schemas.EventType
	Target        host.Ref
	CurrentTarget host.Ref
	Payload       any
	View          *View

	prevented bool
	consumed  bool
	stopped   bool
}

func (e *Event) PreventDefault()  { e.prevented = true }
func (e *Event) Consume()         { e.consumed = true }
func (e *Event) StopPropagation() { e.stopped = true }

// Listener handles a notification.
type Listener func(e *Event)

// Notification is one recorded Dispatch call.
type Notification struct {
	Kind    schemas.EventType
	Target  host.Ref
	Label   string
	Payload any
}

// On registers fn for kind on r. Listeners on a document see every
// notification that bubbles out of it.
func (v *View) On(r host.Ref, kind schemas.EventType, fn Listener) {
	m := v.listeners[r]
	if m == nil {
		m = make(map[schemas.EventType][]Listener)
		v.listeners[r] = m
	}
	m[kind] = append(m[kind], fn)
}

// Dispatch records the notification and runs it through t's listeners, then
// bubbles it through t's ancestors up to and including the document. A
// detached subtree bubbles only as far as its own root.
func (v *View) Dispatch(kind schemas.EventType, t host.Ref, payload any) host.Outcome {
	v.log = append(v.log, Notification{Kind: kind, Target: t, Label: v.Label(t), Payload: payload})
	if !v.nodes.Live(t) {
		v.logger.Debug("dispatch to stale target", zap.String("kind", string(kind)), zap.Stringer("target", t))
		return host.Outcome{}
	}

	e := &Event{Kind: kind, Target: t, Payload: payload, View: v}
	var path []host.Ref
	for cur := t; !cur.IsZero(); cur = v.Parent(cur) {
		path = append(path, cur)
	}

	for _, cur := range path {
		// Copy so listeners can register more listeners while running.
		fns := append([]Listener(nil), v.listeners[cur][kind]...)
		e.CurrentTarget = cur
		for _, fn := range fns {
			fn(e)
		}
		if e.stopped {
			break
		}
	}
	return host.Outcome{Consumed: e.consumed, DefaultPrevented: e.prevented}
}

// Notifications returns everything dispatched since the last Reset.
func (v *View) Notifications() []Notification {
	return append([]Notification(nil), v.log...)
}

// Kinds returns the kinds of every notification dispatched since the last
// Reset, optionally filtered to the given kinds.
func (v *View) Kinds(only ...schemas.EventType) []schemas.EventType {
	keep := make(map[schemas.EventType]bool, len(only))
	for _, k := range only {
		keep[k] = true
	}
	out := make([]schemas.EventType, 0, len(v.log))
	for _, n := range v.log {
		if len(only) == 0 || keep[n.Kind] {
			out = append(out, n.Kind)
		}
	}
	return out
}

// Reset clears the notification log and every recorder.
func (v *View) Reset() {
	v.log = nil
	v.scrollLog = nil
	v.scrollbarGestures = nil
	v.widgetGestures = nil
	v.contextMenus = nil
	v.drags = nil
	v.edits = nil
}
