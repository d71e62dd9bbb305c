// internal/browser/cdpinput/cdpinput.go
// Package cdpinput feeds Chrome DevTools Protocol Input domain commands into
// an event coordinator. It lets recorded or live CDP traffic drive the same
// dispatch core a platform embedder would.
package cdpinput

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/chromedp/cdproto/input"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/inputcore/api/schemas"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Sink receives translated platform events. *coordinator.Coordinator
// satisfies it.
type Sink interface {
	OnPointerEvent(ev schemas.PointerEvent) bool
	OnPointerWheel(ev schemas.WheelEvent) bool
	OnKeyEvent(ev schemas.KeyEvent) bool
	OnTouchEvent(ev schemas.TouchEvent) bool
	OnDragEvent(ev schemas.DragEvent) bool
}

// Message is one CDP command as it appears on the wire.
type Message struct {
	ID     int64               `json:"id,omitempty"`
	Method string              `json:"method"`
	Params jsoniter.RawMessage `json:"params"`
}

// Adapter translates Input domain commands to platform events. CDP touch
// commands carry every live finger, so the adapter keeps the previous batch
// to classify each point as pressed, moved, stationary or released.
type Adapter struct {
	sink   Sink
	logger *zap.Logger
	now    func() time.Duration

	epoch    time.Time
	hasEpoch bool
	touches  map[schemas.TouchID]schemas.TouchPoint
	// order keeps touch ids in first-press order for stable batches.
	order []schemas.TouchID
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithClock sets the time source used for commands without a timestamp.
func WithClock(now func() time.Duration) Option {
	return func(a *Adapter) { a.now = now }
}

// New returns an Adapter delivering to sink.
func New(sink Sink, logger *zap.Logger, opts ...Option) *Adapter {
	start := time.Now()
	a := &Adapter{
		sink:    sink,
		logger:  logger.Named("cdpinput"),
		now:     func() time.Duration { return time.Since(start) },
		touches: make(map[schemas.TouchID]schemas.TouchPoint),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Decode parses one wire message.
func Decode(raw []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(raw, &m); err != nil {
		return Message{}, fmt.Errorf("cdpinput: decode message: %w", err)
	}
	if m.Method == "" {
		return Message{}, fmt.Errorf("cdpinput: message has no method")
	}
	return m, nil
}

// Dispatch routes m to the matching command handler and reports whether
// the core handled the resulting event.
func (a *Adapter) Dispatch(m Message) (bool, error) {
	switch m.Method {
	case input.CommandDispatchMouseEvent:
		var p input.DispatchMouseEventParams
		if err := json.Unmarshal(m.Params, &p); err != nil {
			return false, fmt.Errorf("cdpinput: %s params: %w", m.Method, err)
		}
		return a.Mouse(&p)
	case input.CommandDispatchKeyEvent:
		var p input.DispatchKeyEventParams
		if err := json.Unmarshal(m.Params, &p); err != nil {
			return false, fmt.Errorf("cdpinput: %s params: %w", m.Method, err)
		}
		return a.Key(&p)
	case input.CommandDispatchTouchEvent:
		var p input.DispatchTouchEventParams
		if err := json.Unmarshal(m.Params, &p); err != nil {
			return false, fmt.Errorf("cdpinput: %s params: %w", m.Method, err)
		}
		return a.Touch(&p)
	case input.CommandDispatchDragEvent:
		var p input.DispatchDragEventParams
		if err := json.Unmarshal(m.Params, &p); err != nil {
			return false, fmt.Errorf("cdpinput: %s params: %w", m.Method, err)
		}
		return a.Drag(&p)
	}
	return false, fmt.Errorf("cdpinput: unsupported method %q", m.Method)
}

// DispatchRaw decodes and dispatches one wire message.
func (a *Adapter) DispatchRaw(raw []byte) (bool, error) {
	m, err := Decode(raw)
	if err != nil {
		return false, err
	}
	return a.Dispatch(m)
}

func (a *Adapter) stamp(ts *input.TimeSinceEpoch) time.Duration {
	if ts == nil {
		return a.now()
	}
	t := ts.Time()
	if !a.hasEpoch {
		a.epoch, a.hasEpoch = t, true
	}
	return t.Sub(a.epoch)
}

// Mouse translates Input.dispatchMouseEvent.
func (a *Adapter) Mouse(p *input.DispatchMouseEventParams) (bool, error) {
	pos := schemas.Point{X: p.X, Y: p.Y}
	mods := schemas.Modifiers(p.Modifiers)
	ts := a.stamp(p.Timestamp)

	if p.Type == input.MouseWheel {
		return a.sink.OnPointerWheel(schemas.WheelEvent{
			Position:  pos,
			DeltaX:    p.DeltaX,
			DeltaY:    p.DeltaY,
			DeltaMode: schemas.WheelDeltaPixel,
			Modifiers: mods,
			Timestamp: ts,
		}), nil
	}

	ev := schemas.PointerEvent{
		Pointer:   schemas.PrimaryPointer,
		Position:  pos,
		Global:    pos,
		Button:    button(p.Button),
		Modifiers: mods,
		Timestamp: ts,
	}
	switch p.Type {
	case input.MousePressed:
		ev.Type = schemas.PointerDown
	case input.MouseReleased:
		ev.Type = schemas.PointerUp
	case input.MouseMoved:
		ev.Type = schemas.PointerMove
	default:
		return false, fmt.Errorf("cdpinput: unknown mouse event type %q", p.Type)
	}
	return a.sink.OnPointerEvent(ev), nil
}

func button(b input.MouseButton) schemas.MouseButton {
	switch schemas.MouseButton(b) {
	case schemas.ButtonLeft, schemas.ButtonRight, schemas.ButtonMiddle:
		return schemas.MouseButton(b)
	}
	return schemas.ButtonNone
}

// Key translates Input.dispatchKeyEvent.
func (a *Adapter) Key(p *input.DispatchKeyEventParams) (bool, error) {
	ev := schemas.KeyEvent{
		Key:            p.Key,
		Code:           p.Code,
		Text:           p.Text,
		UnmodifiedText: p.UnmodifiedText,
		Modifiers:      schemas.Modifiers(p.Modifiers),
		AutoRepeat:     p.AutoRepeat,
		Timestamp:      a.stamp(p.Timestamp),
	}
	switch p.Type {
	case input.KeyDown:
		ev.Type = schemas.KeyDown
	case input.KeyRawDown:
		ev.Type = schemas.KeyRawDown
	case input.KeyChar:
		ev.Type = schemas.KeyChar
	case input.KeyUp:
		ev.Type = schemas.KeyUp
	default:
		return false, fmt.Errorf("cdpinput: unknown key event type %q", p.Type)
	}
	if ev.Key == "" && ev.Text != "" {
		ev.Key = ev.Text
	}
	return a.sink.OnKeyEvent(ev), nil
}

// Touch translates Input.dispatchTouchEvent.
func (a *Adapter) Touch(p *input.DispatchTouchEventParams) (bool, error) {
	ev := schemas.TouchEvent{
		Modifiers:  schemas.Modifiers(p.Modifiers),
		Cancelable: p.Type != input.TouchCancel,
		Timestamp:  a.stamp(p.Timestamp),
	}

	switch p.Type {
	case input.TouchEnd, input.TouchCancel:
		state := schemas.TouchReleased
		if p.Type == input.TouchCancel {
			state = schemas.TouchCancelled
		}
		for _, id := range a.order {
			tp := a.touches[id]
			tp.State = state
			ev.Points = append(ev.Points, tp)
		}
		a.touches = make(map[schemas.TouchID]schemas.TouchPoint)
		a.order = nil
	case input.TouchStart, input.TouchMove:
		if len(p.TouchPoints) == 0 {
			return false, fmt.Errorf("cdpinput: %s without touch points", p.Type)
		}
		ev.Points = a.diff(p.TouchPoints)
	default:
		return false, fmt.Errorf("cdpinput: unknown touch event type %q", p.Type)
	}

	if len(ev.Points) == 0 {
		a.logger.Debug("Dropping empty touch batch.", zap.String("type", string(p.Type)))
		return false, nil
	}
	return a.sink.OnTouchEvent(ev), nil
}

// diff classifies the live points of one CDP batch against the previous one.
// Fingers missing from the batch are released.
func (a *Adapter) diff(points []*input.TouchPoint) []schemas.TouchPoint {
	seen := make(map[schemas.TouchID]bool, len(points))
	next := make(map[schemas.TouchID]schemas.TouchPoint, len(points))
	var out []schemas.TouchPoint
	var order []schemas.TouchID

	for _, id := range a.order {
		prev := a.touches[id]
		cur, ok := find(points, id)
		if !ok {
			prev.State = schemas.TouchReleased
			out = append(out, prev)
			continue
		}
		tp := touchPoint(cur)
		if tp.Position == prev.Position {
			tp.State = schemas.TouchStationary
		} else {
			tp.State = schemas.TouchMoved
		}
		seen[id] = true
		next[id] = tp
		order = append(order, id)
		out = append(out, tp)
	}
	for _, cur := range points {
		tp := touchPoint(cur)
		if seen[tp.ID] {
			continue
		}
		tp.State = schemas.TouchPressed
		seen[tp.ID] = true
		next[tp.ID] = tp
		order = append(order, tp.ID)
		out = append(out, tp)
	}
	a.touches, a.order = next, order
	return out
}

func find(points []*input.TouchPoint, id schemas.TouchID) (*input.TouchPoint, bool) {
	for _, p := range points {
		if touchID(p) == id {
			return p, true
		}
	}
	return nil, false
}

func touchID(p *input.TouchPoint) schemas.TouchID {
	return schemas.TouchID(math.Round(p.ID))
}

func touchPoint(p *input.TouchPoint) schemas.TouchPoint {
	pos := schemas.Point{X: p.X, Y: p.Y}
	return schemas.TouchPoint{
		ID:       touchID(p),
		Position: pos,
		Global:   pos,
		Radius:   schemas.Point{X: p.RadiusX, Y: p.RadiusY},
		Force:    p.Force,
	}
}

// Drag translates Input.dispatchDragEvent. dragCancel becomes a leave.
func (a *Adapter) Drag(p *input.DispatchDragEventParams) (bool, error) {
	ev := schemas.DragEvent{
		Position:  schemas.Point{X: p.X, Y: p.Y},
		Modifiers: schemas.Modifiers(p.Modifiers),
		Allowed:   schemas.DragOperationAll,
	}
	if p.Data != nil {
		ev.Allowed = schemas.DragOperation(p.Data.DragOperationsMask) & schemas.DragOperationAll
		ev.Items = make(map[string]string, len(p.Data.Items))
		for _, it := range p.Data.Items {
			if it == nil {
				continue
			}
			ev.Items[strings.ToLower(it.MimeType)] = it.Data
		}
	}
	switch string(p.Type) {
	case "dragEnter":
		ev.Type = schemas.DragEnter
	case "dragOver":
		ev.Type = schemas.DragOver
	case "drop":
		ev.Type = schemas.DragDrop
	case "dragCancel":
		ev.Type = schemas.DragLeave
	default:
		return false, fmt.Errorf("cdpinput: unknown drag event type %q", p.Type)
	}
	return a.sink.OnDragEvent(ev), nil
}
