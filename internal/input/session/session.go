// internal/input/session/session.go
// Package session holds the per-viewport interaction state shared by the input
// components: pointer sessions keyed by device, the single drag session slot,
// the active touch sequence and the gesture scroll memo. A Registry is owned
// by one coordinator; nothing here is global.
package session

import (
	"time"

	"github.com/google/uuid"

	"github.com/xkilldash9x/inputcore/api/schemas"
	"github.com/xkilldash9x/inputcore/internal/input/host"
)

// PointerState is the press state of one pointer device.
type PointerState uint8

const (
	Idle PointerState = iota
	Pressed
	Dragging
	Selecting
)

func (s PointerState) String() string {
	switch s {
	case Idle:
		return "idle"
	case Pressed:
		return "pressed"
	case Dragging:
		return "dragging"
	case Selecting:
		return "selecting"
	}
	return "unknown"
}

// Pointer is the state of one mouse-like device.
type Pointer struct {
	ID    schemas.PointerID
	State PointerState

	Button schemas.MouseButton
	// Capture receives every move and up while set.
	Capture host.Ref
	// CaptureLatched keeps Capture past the release.
	CaptureLatched bool

	// LastTarget is the node the pointer was last over, for over/out pairs.
	LastTarget host.Ref
	// PressTarget received the mousedown.
	PressTarget host.Ref
	// ClickTarget is where a click chain starts; cleared to suppress the click.
	ClickTarget host.Ref
	// PressDocument owns PressTarget.
	PressDocument host.Ref

	// PressOrigin and LastPosition are root viewport points.
	PressOrigin  schemas.Point
	LastPosition schemas.Point
	HasPosition  bool

	// Multi-click bookkeeping from the previous press.
	ClickCount    int
	ClickTime     time.Duration
	ClickPosition schemas.Point
	ClickButton   schemas.MouseButton

	DragArmed        bool
	DragKind         schemas.DragKind
	DragSource       host.Ref
	DraggedThisPress bool

	// Granularity seeded by the press; extension reuses it.
	Granularity     schemas.Granularity
	SelectionSeeded bool

	OverScrollbar bool
	Scrollbar     host.Ref
}

// IsPressed reports whether a button is down.
func (p *Pointer) IsPressed() bool { return p.State != Idle }

// ResetPress returns p to Idle, keeping multi-click history and position.
func (p *Pointer) ResetPress() {
	p.State = Idle
	p.Button = schemas.ButtonNone
	p.PressTarget = host.Ref{}
	p.ClickTarget = host.Ref{}
	p.PressDocument = host.Ref{}
	p.DragArmed = false
	p.DragKind = schemas.DragKindNone
	p.DragSource = host.Ref{}
	p.DraggedThisPress = false
	p.SelectionSeeded = false
	p.OverScrollbar = false
	p.Scrollbar = host.Ref{}
	if !p.CaptureLatched {
		p.Capture = host.Ref{}
	}
}

// DragState is the phase of the drag session.
type DragState uint8

const (
	DragNone DragState = iota
	DragArmed
	DragActive
	DragDropped
	DragCancelled
)

func (s DragState) String() string {
	switch s {
	case DragNone:
		return "none"
	case DragArmed:
		return "armed"
	case DragActive:
		return "active"
	case DragDropped:
		return "dropped"
	case DragCancelled:
		return "cancelled"
	}
	return "unknown"
}

// Drag is the drag session of a viewport.
type Drag struct {
	ID      string
	Source  host.Ref
	Kind    schemas.DragKind
	State   DragState
	Origin  schemas.Point
	Payload host.Transfer
	// External drags come from the platform and have no source.
	External bool
	// DropTargets holds the current drop target per document. Nested frames
	// each keep their own entry.
	DropTargets map[host.Ref]host.Ref
	// OnlyDragOver suppresses enter/leave for the next update after a drop
	// target accepted.
	OnlyDragOver bool
	// Accepted is the verdict of the last update.
	Accepted bool
	// Ended is set once dragend went out.
	Ended bool
}

// NewDrag returns an armed drag with a fresh id.
func NewDrag(source host.Ref, kind schemas.DragKind, origin schemas.Point) *Drag {
	return &Drag{
		ID:          uuid.NewString(),
		Source:      source,
		Kind:        kind,
		State:       DragArmed,
		Origin:      origin,
		DropTargets: make(map[host.Ref]host.Ref),
	}
}

// DropTarget is the current drop target in doc.
func (d *Drag) DropTarget(doc host.Ref) host.Ref { return d.DropTargets[doc] }

// SetDropTarget records t as doc's drop target; a zero t clears it.
func (d *Drag) SetDropTarget(doc, t host.Ref) {
	if t.IsZero() {
		delete(d.DropTargets, doc)
		return
	}
	d.DropTargets[doc] = t
}

// TouchSequence is one multi-finger interaction.
type TouchSequence struct {
	ID string
	// Targets maps a live touch to the node its press hit.
	Targets map[schemas.TouchID]host.Ref
	// Document owns every routed touch of the sequence.
	Document host.Ref
}

// NewTouchSequence starts an empty sequence.
func NewTouchSequence() *TouchSequence {
	return &TouchSequence{ID: uuid.NewString(), Targets: make(map[schemas.TouchID]host.Ref)}
}

// Active is the number of touches currently held.
func (t *TouchSequence) Active() int { return len(t.Targets) }

// GestureScroll memoizes the target of a scroll gesture.
type GestureScroll struct {
	Target             host.Ref
	Scrollbar          host.Ref
	OverEmbeddedWidget bool
	// PreviousScrolled is the node that consumed the last update.
	PreviousScrolled host.Ref
}

// Registry is the InputSessionRegistry of one top-level viewport.
type Registry struct {
	pointers map[schemas.PointerID]*Pointer
	Drag     *Drag
	Touch    *TouchSequence
	Scroll   *GestureScroll
	detached bool
}

// New returns an empty registry for a live viewport.
func New() *Registry {
	return &Registry{pointers: make(map[schemas.PointerID]*Pointer)}
}

// Pointer returns the session for id, creating it on first use.
func (r *Registry) Pointer(id schemas.PointerID) *Pointer {
	p, ok := r.pointers[id]
	if !ok {
		p = &Pointer{ID: id, Button: schemas.ButtonNone, DragKind: schemas.DragKindNone}
		r.pointers[id] = p
	}
	return p
}

// PeekPointer returns the session for id without creating one.
func (r *Registry) PeekPointer(id schemas.PointerID) (*Pointer, bool) {
	p, ok := r.pointers[id]
	return p, ok
}

// EachPointer calls fn for every pointer session.
func (r *Registry) EachPointer(fn func(*Pointer)) {
	for _, p := range r.pointers {
		fn(p)
	}
}

// Alive reports whether the viewport still exists.
func (r *Registry) Alive() bool { return !r.detached }

// Detach marks the viewport torn down and drops every session.
func (r *Registry) Detach() {
	r.detached = true
	r.ClearAll()
}

// ClearAll drops every session, including captures.
func (r *Registry) ClearAll() {
	r.pointers = make(map[schemas.PointerID]*Pointer)
	r.Drag = nil
	r.Touch = nil
	r.Scroll = nil
}

// Retarget moves every reference into the subtree rooted at removed to the
// nearest ancestor outside it. Captures and drop targets inside the subtree
// are cleared instead. Touch targets move only if the replacement stays in
// the sequence's document.
func (r *Registry) Retarget(tree host.Tree, removed host.Ref) {
	if removed.IsZero() {
		return
	}
	parent := tree.Parent(removed)
	inside := func(x host.Ref) bool {
		for cur := x; !cur.IsZero(); cur = tree.Parent(cur) {
			if cur == removed {
				return true
			}
		}
		return false
	}
	move := func(x *host.Ref) {
		if inside(*x) {
			*x = parent
		}
	}

	for _, p := range r.pointers {
		if inside(p.Capture) {
			p.Capture = host.Ref{}
			p.CaptureLatched = false
		}
		move(&p.LastTarget)
		move(&p.PressTarget)
		move(&p.ClickTarget)
		move(&p.DragSource)
		if inside(p.Scrollbar) {
			p.Scrollbar = host.Ref{}
			p.OverScrollbar = false
		}
	}

	if d := r.Drag; d != nil {
		for doc, t := range d.DropTargets {
			if inside(t) {
				delete(d.DropTargets, doc)
			}
		}
	}

	if ts := r.Touch; ts != nil {
		for id, t := range ts.Targets {
			if !inside(t) {
				continue
			}
			if !parent.IsZero() && tree.Document(parent) == ts.Document {
				ts.Targets[id] = parent
			} else {
				ts.Targets[id] = host.Ref{}
			}
		}
	}

	if s := r.Scroll; s != nil {
		move(&s.Target)
		move(&s.PreviousScrolled)
		if inside(s.Scrollbar) {
			s.Scrollbar = host.Ref{}
		}
	}
}
