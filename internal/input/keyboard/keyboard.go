// internal/input/keyboard/keyboard.go
// Package keyboard sequences keydown, keypress and keyup notifications to the
// focused target and runs the built-in fallbacks (editing commands, focus
// traversal, spatial navigation, back navigation, modal dismissal and page
// scrolling) when a notification is left unhandled.
package keyboard

import (
	"strings"

	"go.uber.org/zap"

	"github.com/xkilldash9x/inputcore/api/schemas"
	"github.com/xkilldash9x/inputcore/internal/config"
	"github.com/xkilldash9x/inputcore/internal/input/host"
	"github.com/xkilldash9x/inputcore/internal/input/scroll"
	"github.com/xkilldash9x/inputcore/internal/input/session"
	"github.com/xkilldash9x/inputcore/internal/observability"
)

// DragCanceler is the part of the drag controller Escape needs.
type DragCanceler interface {
	Active() bool
	Cancel() bool
}

// Dispatcher is the KeyboardDispatcher of one top-level viewport.
type Dispatcher struct {
	host       host.Host
	reg        *session.Registry
	drag       DragCanceler
	cfg        config.KeyboardConfig
	accessMask schemas.Modifiers
	logger     *zap.Logger

	onScroll func()
}

// New returns a Dispatcher. A malformed access key setting disables access
// keys.
func New(cfg config.InputConfig, h host.Host, reg *session.Registry, drag DragCanceler, logger *zap.Logger) *Dispatcher {
	d := &Dispatcher{
		host:   h,
		reg:    reg,
		drag:   drag,
		cfg:    cfg.Keyboard,
		logger: observability.Component(logger, "keyboard"),
	}
	mask, err := cfg.Keyboard.AccessKeyMask()
	if err != nil {
		d.logger.Warn("access keys disabled", zap.Error(err))
	} else {
		d.accessMask = mask
	}
	return d
}

// OnScroll registers fn to run after a key scrolled content.
func (d *Dispatcher) OnScroll(fn func()) { d.onScroll = fn }

// target is the focused element, or the focused document when nothing
// inside it has focus.
func (d *Dispatcher) target() host.Ref {
	if t := d.host.Focus.FocusedTarget(); host.Valid(d.host.Tree, t) {
		return t
	}
	return d.host.Focus.FocusedDocument()
}

func (d *Dispatcher) dispatch(kind schemas.EventType, t host.Ref, ev schemas.KeyEvent, accessKey bool) host.Outcome {
	if !d.reg.Alive() || t.IsZero() || !d.host.Tree.IsAlive(t) {
		return host.Outcome{}
	}
	return d.host.Dispatcher.Dispatch(kind, t, host.KeyPayload{Event: ev, AccessKeyHandled: accessKey})
}

// Handle routes one key event and reports whether it was consumed.
func (d *Dispatcher) Handle(ev schemas.KeyEvent) bool {
	if !d.reg.Alive() {
		return false
	}
	t := d.target()
	if t.IsZero() {
		return false
	}

	switch ev.Type {
	case schemas.KeyUp:
		return d.dispatch(schemas.EventKeyUp, t, ev, false).Handled()
	case schemas.KeyChar:
		return d.keypress(t, ev)
	}

	accessKey := false
	if ev.Type == schemas.KeyDown {
		accessKey = d.accessKey(ev)
		if !d.reg.Alive() {
			return true
		}
		t = d.target()
	}

	docBefore := d.host.Focus.FocusedDocument()
	out := d.dispatch(schemas.EventKeyDown, t, ev, accessKey)
	if !d.reg.Alive() {
		return true
	}
	handled := out.Handled() || accessKey
	if !handled {
		handled = d.keydownDefault(d.revalidate(t), ev)
	}
	// Focus moving to another document drops the keypress; the new document
	// never saw the keydown.
	changedDocument := d.host.Focus.FocusedDocument() != docBefore
	if handled || changedDocument || ev.Type == schemas.KeyRawDown {
		return handled || changedDocument
	}

	if ev.Text == "" {
		return false
	}
	// Focus may have moved within the document during keydown.
	return d.keypress(d.target(), ev)
}

func (d *Dispatcher) keypress(t host.Ref, ev schemas.KeyEvent) bool {
	press := ev
	press.Type = schemas.KeyChar
	out := d.dispatch(schemas.EventKeyPress, t, press, false)
	if out.Handled() || !d.reg.Alive() {
		return out.Handled()
	}
	return d.keypressDefault(d.revalidate(t), press)
}

func (d *Dispatcher) revalidate(t host.Ref) host.Ref {
	out, err := host.Revalidate(d.host.Tree, t)
	if err != nil {
		d.logger.Debug("key target gone", zap.Error(err))
		return host.Ref{}
	}
	return out
}

// accessKey activates the element bound to ev's character when the modifier
// set matches exactly, ignoring shift.
func (d *Dispatcher) accessKey(ev schemas.KeyEvent) bool {
	if d.accessMask == 0 || ev.Modifiers&^schemas.ModShift != d.accessMask {
		return false
	}
	key := ev.UnmodifiedText
	if key == "" {
		key = ev.Key
	}
	if key == "" {
		return false
	}
	doc := d.host.Focus.FocusedDocument()
	el := d.host.Tree.ElementByAccessKey(doc, strings.ToLower(key))
	if el.IsZero() {
		return false
	}
	d.logger.Debug("access key", zap.String("key", key), zap.Stringer("target", el))
	if f, ok := host.As[host.Focusable](d.host.Tree, el); ok && f.IsFocusable() {
		d.host.Focus.SetFocusedTarget(doc, el)
	}
	if d.reg.Alive() && host.Valid(d.host.Tree, el) {
		d.host.Dispatcher.Dispatch(schemas.EventClick, el, host.MousePayload{Modifiers: ev.Modifiers, Synthetic: true})
	}
	return true
}

// keydownDefault runs the keydown fallbacks in priority order.
func (d *Dispatcher) keydownDefault(t host.Ref, ev schemas.KeyEvent) bool {
	if t.IsZero() {
		return false
	}
	if d.host.Editor.HandleKeyCommand(t, ev) {
		return true
	}
	if !d.reg.Alive() {
		return false
	}
	doc := d.host.Tree.Document(t)
	mods := ev.Modifiers
	switch ev.Key {
	case "Tab":
		if mods.Has(schemas.ModCtrl) || mods.Has(schemas.ModMeta) || !d.cfg.TabCyclesElements {
			return false
		}
		if d.host.Editor.InDesignMode(doc) {
			return false
		}
		dir := schemas.FocusForward
		if mods.Has(schemas.ModShift) {
			dir = schemas.FocusBackward
		}
		return d.host.Focus.AdvanceFocus(dir)
	case "Backspace":
		if mods.Has(schemas.ModCtrl) || mods.Has(schemas.ModMeta) || mods.Has(schemas.ModAlt) {
			return false
		}
		// Shift+Backspace would go forward, which the navigator cannot do.
		if !d.cfg.BackspaceNavigatesBack || mods.Has(schemas.ModShift) {
			return false
		}
		return d.host.Navigator.NavigateBack()
	case "Escape":
		if d.drag != nil && d.drag.Active() {
			return d.drag.Cancel()
		}
		if modal := d.host.Tree.TopmostModal(doc); !modal.IsZero() {
			d.dispatch(schemas.EventCancel, modal, ev, false)
		}
		return false
	}
	if dir, ok := arrowDirection(ev.Key); ok {
		if mods.Has(schemas.ModCtrl) || mods.Has(schemas.ModMeta) || mods.Has(schemas.ModShift) {
			return false
		}
		if !d.cfg.SpatialNavigation || d.host.Editor.InDesignMode(doc) {
			return false
		}
		return d.host.Focus.AdvanceFocus(dir)
	}
	return false
}

// keypressDefault runs the keypress fallbacks: editing, then Space paging.
func (d *Dispatcher) keypressDefault(t host.Ref, ev schemas.KeyEvent) bool {
	if t.IsZero() {
		return false
	}
	if d.host.Editor.HandleKeyCommand(t, ev) {
		return true
	}
	if ev.Text != " " || !d.reg.Alive() {
		return false
	}
	mods := ev.Modifiers
	if mods.Has(schemas.ModCtrl) || mods.Has(schemas.ModMeta) || mods.Has(schemas.ModAlt) {
		return false
	}
	delta := 1.0
	if mods.Has(schemas.ModShift) {
		delta = -1
	}
	moved := scroll.Chain(d.host.Tree, d.host.Scroller, t, schemas.ByPage, 0, delta)
	if moved && d.onScroll != nil {
		d.onScroll()
	}
	return moved
}

func arrowDirection(key string) (schemas.FocusDirection, bool) {
	switch key {
	case "ArrowUp", "Up":
		return schemas.FocusUp, true
	case "ArrowDown", "Down":
		return schemas.FocusDown, true
	case "ArrowLeft", "Left":
		return schemas.FocusLeft, true
	case "ArrowRight", "Right":
		return schemas.FocusRight, true
	}
	return "", false
}
