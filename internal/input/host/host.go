// internal/input/host/host.go
// Package host declares everything the input core consumes from the rest of
// the engine: the visual tree, the listener chain, focus, scrolling, the
// platform drag service, editing, navigation and browser chrome. The core never
// owns tree nodes; it only holds target.Ref handles and asks the Tree whether
// they are still alive before every use.
package host

import (
	"github.com/xkilldash9x/inputcore/api/schemas"
	"github.com/xkilldash9x/inputcore/internal/browser/target"
	"github.com/xkilldash9x/inputcore/internal/geom"
)

// Ref is a weak handle to a node or document.
type Ref = target.Ref

// Point is a position in the coordinate space of a document.
type Point = schemas.Point

// RawHit is what a Tree reports for a point in a single document. Embedded
// frames are not entered; a frame owner is reported as a leaf.
type RawHit struct {
	// Node is the topmost node under the point. It may be a text node.
	Node Ref
	// Local is the point in Node's own box.
	Local Point
	// Scrollbar is the scrollable box whose scrollbar is under the point.
	Scrollbar Ref
	// Resizer is set when the point is over a box's resize control.
	Resizer bool
	// Candidates are every node whose box intersects the footprint for a
	// rect-based query, topmost first.
	Candidates []Ref
}

// Tree is the visual and document tree seen from the input core.
type Tree interface {
	// RootDocument is the document of the top-level viewport.
	RootDocument() Ref
	// IsLaidOut reports whether doc has completed its first layout pass.
	IsLaidOut(doc Ref) bool
	// HitTest queries doc with a point in doc's coordinates. A zero radius is
	// a point query.
	HitTest(doc Ref, p Point, radius Point) RawHit
	// UpdateHoverActive moves hover to the chain from the document root to t.
	// active also moves the active state there; release clears it. A zero t
	// clears hover.
	UpdateHoverActive(doc Ref, t Ref, active, release bool)
	// ActiveElement is the element currently in the active state in doc.
	ActiveElement(doc Ref) Ref

	IsAlive(r Ref) bool
	IsAttached(r Ref) bool
	IsText(r Ref) bool
	// Parent is the parent within r's document; the document's parent is none.
	Parent(r Ref) Ref
	// Document returns the document owning r, or r itself for a document.
	Document(r Ref) Ref
	// OwnerElement is the frame owner hosting doc, or none for the root.
	OwnerElement(doc Ref) Ref
	// Node exposes r's capabilities. It returns nil when r is stale.
	Node(r Ref) Node

	ElementByAccessKey(doc Ref, key string) Ref
	// TopmostModal is the active modal dialog of doc, or none.
	TopmostModal(doc Ref) Ref
}

// Outcome is the listener chain's verdict on a notification.
type Outcome struct {
	Consumed         bool
	DefaultPrevented bool
}

// Handled reports whether the default action tied to the notification must
// be suppressed.
func (o Outcome) Handled() bool { return o.Consumed || o.DefaultPrevented }

// Dispatcher delivers a notification into a target's listener chain.
// Listeners may mutate the tree, move focus or tear down the viewport before
// Dispatch returns.
type Dispatcher interface {
	Dispatch(kind schemas.EventType, t Ref, payload any) Outcome
}

// Focus is the document focus subsystem.
type Focus interface {
	FocusedTarget() Ref
	// FocusedDocument is the document holding focus, never none.
	FocusedDocument() Ref
	// SetFocusedTarget moves focus to t. A zero t blurs the focused element
	// of doc. It returns false when a listener refused the change.
	SetFocusedTarget(doc Ref, t Ref) bool
	// AdvanceFocus moves focus in the given direction and reports whether it moved.
	AdvanceFocus(dir schemas.FocusDirection) bool
}

// Scroller is the layout scrolling subsystem.
type Scroller interface {
	// Scroll scrolls t along axis and returns the amount consumed. Passing a
	// document scrolls its viewport.
	Scroll(t Ref, axis schemas.Axis, g schemas.Granularity, delta float64) float64
	// ScrollbarGesture offers a gesture to a scrollbar and reports whether it
	// took it.
	ScrollbarGesture(scrollbar Ref, ev schemas.GestureEvent) bool
}

// DragInfo describes a drag handed to the platform.
type DragInfo struct {
	ID     string
	Source Ref
	Kind   schemas.DragKind
	Origin Point
	Data   Transfer
}

// DragPlatform starts OS level drags.
type DragPlatform interface {
	BeginDrag(info DragInfo) bool
}

// Editor is the editing and selection subsystem.
type Editor interface {
	// SeedSelection starts a selection at p in t's document using granularity
	// g. It returns false when nothing could be selected.
	SeedSelection(t Ref, p Point, g schemas.Granularity) bool
	// IsSelectable is false where user selection is switched off.
	IsSelectable(t Ref) bool
	ExtendSelection(t Ref, p Point, g schemas.Granularity)
	SelectionContains(doc Ref, p Point) bool
	// HandleKeyCommand runs the editing command bound to ev, if any.
	HandleKeyCommand(t Ref, ev schemas.KeyEvent) bool
	InDesignMode(doc Ref) bool
}

// Navigator is the session history.
type Navigator interface {
	NavigateBack() bool
}

// Chrome is the browser UI around the viewport.
type Chrome interface {
	SetCursor(c schemas.Cursor)
	SetTouchAction(id schemas.TouchID, a schemas.TouchAction)
	ShowContextMenu(t Ref, p Point)
}

// Transfer is the drag data store seen by listeners and the platform.
type Transfer interface {
	Types() []string
	GetData(mime string) (string, bool)
	SetData(mime, value string) bool
	EffectAllowed() schemas.DragOperation
	DropEffect() schemas.DragOperation
	SetDropEffect(op schemas.DragOperation)
}

// Host bundles the collaborators of one top-level viewport.
type Host struct {
	Tree       Tree
	Dispatcher Dispatcher
	Focus      Focus
	Scroller   Scroller
	Drag       DragPlatform
	Editor     Editor
	Navigator  Navigator
	Chrome     Chrome
}

// -- Capabilities --

// Node is a tree node. Capabilities are discovered by interface assertion.
type Node interface {
	Ref() Ref
}

// Bounded nodes have a border box in their document's coordinates.
type Bounded interface {
	Bounds() geom.Rect
}

// Focusable nodes can take keyboard or mouse focus.
type Focusable interface {
	IsFocusable() bool
	MouseFocusable() bool
}

// Scrollable nodes own a scrolling box.
type Scrollable interface {
	// ScrollsOverflow reports whether the box clips and scrolls its overflow.
	ScrollsOverflow() bool
}

// Draggable nodes can be the source of a drag.
type Draggable interface {
	DragKind() schemas.DragKind
}

// DropTarget nodes declare which payloads they accept without listener
// involvement (the dropzone attribute).
type DropTarget interface {
	DropZone() (op schemas.DragOperation, types []string)
}

// Clickable nodes are preferred by touch adjustment.
type Clickable interface {
	IsClickable() bool
}

// InteractiveContent nodes stop the click ancestor walk.
type InteractiveContent interface {
	IsInteractiveContent() bool
}

// FrameOwner nodes embed another document.
type FrameOwner interface {
	ContentDocument() Ref
	// ContentOffset is the origin of the content document in the owner's
	// document coordinates.
	ContentOffset() Point
}

// TouchActionProvider nodes restrict touch manipulation.
type TouchActionProvider interface {
	TouchAction() schemas.TouchAction
}

// CursorProvider nodes specify their own cursor.
type CursorProvider interface {
	Cursor() schemas.Cursor
}

// Editable nodes accept text input.
type Editable interface {
	IsContentEditable() bool
}

// EmbeddedWidget nodes host a plugin that may consume gesture scrolls.
type EmbeddedWidget interface {
	HandleGestureScroll(ev schemas.GestureEvent) bool
}

// Linked nodes are hyperlinks.
type Linked interface {
	Href() string
}

// As returns r's node as capability C.
func As[C any](t Tree, r Ref) (C, bool) {
	var zero C
	if r.IsZero() {
		return zero, false
	}
	n := t.Node(r)
	if n == nil {
		return zero, false
	}
	c, ok := n.(C)
	return c, ok
}

// Bounds returns r's box, or an empty Rect when r has none.
func Bounds(t Tree, r Ref) geom.Rect {
	if b, ok := As[Bounded](t, r); ok {
		return b.Bounds()
	}
	return geom.Rect{}
}

// IsLink reports whether r is a hyperlink with a target.
func IsLink(t Tree, r Ref) bool {
	l, ok := As[Linked](t, r)
	return ok && l.Href() != ""
}

// IsEditable reports whether r accepts text input.
func IsEditable(t Tree, r Ref) bool {
	e, ok := As[Editable](t, r)
	return ok && e.IsContentEditable()
}
