// internal/browser/vtree/node.go
package vtree

import (
	"strconv"
	"strings"

	"github.com/xkilldash9x/inputcore/api/schemas"
	"github.com/xkilldash9x/inputcore/internal/geom"
	"github.com/xkilldash9x/inputcore/internal/input/host"
)

var (
	nativelyFocusable = map[string]bool{"a": true, "button": true, "input": true, "textarea": true, "select": true, "iframe": true}
	nativelyClickable = map[string]bool{"a": true, "button": true, "input": true, "select": true, "label": true}
	interactive       = map[string]bool{
		"button": true, "input": true, "select": true, "textarea": true, "label": true,
		"iframe": true, "embed": true, "object": true, "details": true,
	}
)

// Element is an element node.
type Element struct {
	v   *View
	ref host.Ref
	n   *node
}

func (e *Element) Ref() host.Ref     { return e.ref }
func (e *Element) Bounds() geom.Rect { return e.n.rect }
func (e *Element) Tag() string       { return e.n.tag }

// Attr returns the value of an attribute.
func (e *Element) Attr(name string) (string, bool) { return e.n.attr(name) }

func (e *Element) tabIndex() (int, bool) {
	s, ok := e.n.attr("tabindex")
	if !ok {
		return 0, false
	}
	i, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, false
	}
	return i, true
}

func (e *Element) IsFocusable() bool {
	if _, disabled := e.n.attr("disabled"); disabled {
		return false
	}
	if _, ok := e.tabIndex(); ok {
		return true
	}
	if e.n.tag == "a" {
		_, href := e.n.attr("href")
		return href
	}
	if nativelyFocusable[e.n.tag] {
		return true
	}
	return e.IsContentEditable()
}

func (e *Element) MouseFocusable() bool {
	if _, ok := e.n.attr("data-no-mouse-focus"); ok {
		return false
	}
	return e.IsFocusable()
}

// KeyboardFocusable reports whether sequential navigation visits e.
func (e *Element) KeyboardFocusable() bool {
	if i, ok := e.tabIndex(); ok && i < 0 {
		return false
	}
	return e.IsFocusable()
}

// ScrollsOverflow is false for the root element; its data-scroll sizes the
// document viewport instead.
func (e *Element) ScrollsOverflow() bool {
	if e.n.tag == "html" {
		return false
	}
	_, ok := e.n.attr("data-scroll")
	return ok
}

func (e *Element) DragKind() schemas.DragKind {
	if d, ok := e.n.attr("draggable"); ok {
		if strings.EqualFold(d, "false") {
			return schemas.DragKindNone
		}
		if strings.EqualFold(d, "true") {
			return schemas.DragKindGeneric
		}
	}
	switch {
	case e.n.tag == "img":
		return schemas.DragKindImage
	case e.Href() != "":
		return schemas.DragKindLink
	}
	return schemas.DragKindNone
}

// DropZone parses dropzone="copy|move|link [string:mime ...]".
func (e *Element) DropZone() (schemas.DragOperation, []string) {
	s, ok := e.n.attr("dropzone")
	if !ok {
		return schemas.DragOperationNone, nil
	}
	op := schemas.DragOperationNone
	var types []string
	for _, f := range strings.Fields(strings.ToLower(s)) {
		switch {
		case f == "copy":
			op = schemas.DragOperationCopy
		case f == "move":
			op = schemas.DragOperationMove
		case f == "link":
			op = schemas.DragOperationLink
		case strings.HasPrefix(f, "string:"):
			types = append(types, strings.TrimPrefix(f, "string:"))
		}
	}
	if op == schemas.DragOperationNone && len(types) > 0 {
		op = schemas.DragOperationCopy
	}
	return op, types
}

func (e *Element) IsClickable() bool {
	if _, ok := e.n.attr("onclick"); ok {
		return true
	}
	if _, ok := e.n.attr("data-clickable"); ok {
		return true
	}
	if nativelyClickable[e.n.tag] {
		return true
	}
	l := e.v.listeners[e.ref]
	return len(l[schemas.EventClick]) > 0 || len(l[schemas.EventMouseDown]) > 0 || len(l[schemas.EventMouseUp]) > 0
}

func (e *Element) IsInteractiveContent() bool {
	if e.n.tag == "a" {
		return e.Href() != ""
	}
	return interactive[e.n.tag]
}

func (e *Element) TouchAction() schemas.TouchAction {
	s, ok := e.n.attr("touch-action")
	if !ok {
		return schemas.TouchActionAuto
	}
	return ParseTouchAction(s)
}

// ParseTouchAction parses a CSS touch-action value. Unknown tokens are ignored.
func ParseTouchAction(s string) schemas.TouchAction {
	var a schemas.TouchAction
	for _, f := range strings.Fields(strings.ToLower(s)) {
		switch f {
		case "auto":
			return schemas.TouchActionAuto
		case "none":
			return schemas.TouchActionNone
		case "pan-x":
			a |= schemas.TouchActionPanX
		case "pan-y":
			a |= schemas.TouchActionPanY
		case "pinch-zoom":
			a |= schemas.TouchActionPinch
		case "manipulation":
			a |= schemas.TouchActionPanX | schemas.TouchActionPanY | schemas.TouchActionPinch
		}
	}
	if a == 0 {
		return schemas.TouchActionAuto
	}
	return a
}

func (e *Element) Cursor() schemas.Cursor {
	if c, ok := e.n.attr("data-cursor"); ok {
		return schemas.Cursor(c)
	}
	return schemas.CursorAuto
}

func (e *Element) IsContentEditable() bool {
	if e.n.tag == "input" || e.n.tag == "textarea" {
		_, ro := e.n.attr("readonly")
		return !ro
	}
	if ce, ok := e.n.attr("contenteditable"); ok {
		return !strings.EqualFold(ce, "false")
	}
	return false
}

func (e *Element) Href() string {
	if e.n.tag != "a" && e.n.tag != "area" {
		return ""
	}
	return e.n.attrs["href"]
}

// Frame is an iframe element.
type Frame struct {
	*Element
}

func (f *Frame) ContentDocument() host.Ref { return f.n.content }

func (f *Frame) ContentOffset() schemas.Point { return f.n.rect.Origin() }

// Widget is an embed or object element hosting a plugin.
type Widget struct {
	*Element
}

// HandleGestureScroll consumes scroll gestures when the widget declares
// data-consumes-scroll.
func (w *Widget) HandleGestureScroll(ev schemas.GestureEvent) bool {
	if _, ok := w.n.attr("data-consumes-scroll"); !ok {
		return false
	}
	w.v.widgetGestures = append(w.v.widgetGestures, ev.Type)
	return true
}

// Text is a text node.
type Text struct {
	ref host.Ref
	n   *node
}

func (t *Text) Ref() host.Ref     { return t.ref }
func (t *Text) Bounds() geom.Rect { return t.n.rect }
func (t *Text) Data() string      { return t.n.text }

// Document is a document node. Its viewport always scrolls.
type Document struct {
	v   *View
	ref host.Ref
	n   *node
}

func (d *Document) Ref() host.Ref         { return d.ref }
func (d *Document) Bounds() geom.Rect     { return d.n.rect }
func (d *Document) ScrollsOverflow() bool { return true }
