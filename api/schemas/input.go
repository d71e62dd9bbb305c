// api/schemas/input.go
package schemas

import "time"

// -- Geometry --

// Point is a position in viewport or document coordinates.
type Point struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Add returns p translated by o.
func (p Point) Add(o Point) Point { return Point{X: p.X + o.X, Y: p.Y + o.Y} }

// Sub returns p - o.
func (p Point) Sub(o Point) Point { return Point{X: p.X - o.X, Y: p.Y - o.Y} }

// -- Modifiers and Buttons --

// Modifiers is a bitmask of active keyboard modifiers. The values match the
// CDP Input domain modifier bitfield.
type Modifiers int

const (
	ModNone  Modifiers = 0
	ModAlt   Modifiers = 1
	ModCtrl  Modifiers = 2
	ModMeta  Modifiers = 4
	ModShift Modifiers = 8
)

// Has reports whether every bit in m2 is set.
func (m Modifiers) Has(m2 Modifiers) bool { return m&m2 == m2 }

// PointerID identifies a mouse-like device. The primary mouse is 0.
type PointerID int

// PrimaryPointer is the default mouse device.
const PrimaryPointer PointerID = 0

// MouseButton defines the mouse button being pressed.
type MouseButton string

const (
	ButtonNone   MouseButton = "none"
	ButtonLeft   MouseButton = "left"
	ButtonRight  MouseButton = "right"
	ButtonMiddle MouseButton = "middle"
)

// -- Pointer Events --

// PointerEventType is the platform-level pointer transition.
type PointerEventType string

const (
	PointerDown  PointerEventType = "down"
	PointerMove  PointerEventType = "move"
	PointerUp    PointerEventType = "up"
	PointerLeave PointerEventType = "leave"
)

// PointerEvent is a raw platform pointer event in root viewport coordinates.
type PointerEvent struct {
	Type      PointerEventType `json:"type"`
	Pointer   PointerID        `json:"pointer"`
	Position  Point            `json:"position"`
	Global    Point            `json:"global"`
	Button    MouseButton      `json:"button"`
	Modifiers Modifiers        `json:"modifiers"`
	Timestamp time.Duration    `json:"timestamp"`
	// FromTouch marks events synthesized from gestures; they never hit-test again.
	FromTouch bool `json:"fromTouch,omitempty"`
}

// WheelDeltaMode selects the unit of a wheel delta.
type WheelDeltaMode int

const (
	WheelDeltaPixel WheelDeltaMode = iota
	WheelDeltaLine
	WheelDeltaPage
)

// WheelEvent is a raw platform wheel event.
type WheelEvent struct {
	Position  Point          `json:"position"`
	DeltaX    float64        `json:"deltaX"`
	DeltaY    float64        `json:"deltaY"`
	DeltaMode WheelDeltaMode `json:"deltaMode"`
	Modifiers Modifiers      `json:"modifiers"`
	Timestamp time.Duration  `json:"timestamp"`
}

// -- Gesture Events --

// GestureType enumerates the platform gesture primitives.
type GestureType string

const (
	GestureTapDown                   GestureType = "tapdown"
	GestureShowPress                 GestureType = "showpress"
	GestureTap                       GestureType = "tap"
	GestureTapCancel                 GestureType = "tapcancel"
	GestureLongPress                 GestureType = "longpress"
	GestureLongTap                   GestureType = "longtap"
	GestureTwoFingerTap              GestureType = "twofingertap"
	GestureScrollBegin               GestureType = "scrollbegin"
	GestureScrollUpdate              GestureType = "scrollupdate"
	GestureScrollUpdateNoPropagation GestureType = "scrollupdate_nopropagate"
	GestureScrollEnd                 GestureType = "scrollend"
	GestureFlingStart                GestureType = "flingstart"
	GesturePinchBegin                GestureType = "pinchbegin"
	GesturePinchUpdate               GestureType = "pinchupdate"
	GesturePinchEnd                  GestureType = "pinchend"
)

// IsScroll reports whether t belongs to the scroll family.
func (t GestureType) IsScroll() bool {
	switch t {
	case GestureScrollBegin, GestureScrollUpdate, GestureScrollUpdateNoPropagation,
		GestureScrollEnd, GestureFlingStart, GesturePinchBegin, GesturePinchUpdate, GesturePinchEnd:
		return true
	}
	return false
}

// GestureEvent is a recognized gesture from the platform.
type GestureEvent struct {
	Type      GestureType   `json:"type"`
	Position  Point         `json:"position"`
	Global    Point         `json:"global"`
	Area      Point         `json:"area"` // Width and height of the contact footprint.
	DeltaX    float64       `json:"deltaX"`
	DeltaY    float64       `json:"deltaY"`
	Scale     float64       `json:"scale,omitempty"`
	TapCount  int           `json:"tapCount,omitempty"`
	Modifiers Modifiers     `json:"modifiers"`
	Timestamp time.Duration `json:"timestamp"`
}

// -- Touch Events --

// TouchID identifies one finger for the lifetime of its contact.
type TouchID int

// TouchState is the transition kind of a single touch point.
type TouchState int

const (
	TouchPressed TouchState = iota
	TouchMoved
	TouchStationary
	TouchReleased
	TouchCancelled
	touchStateEnd
)

// TouchStateCount bounds the TouchState enumeration.
const TouchStateCount = int(touchStateEnd)

func (s TouchState) String() string {
	switch s {
	case TouchPressed:
		return "pressed"
	case TouchMoved:
		return "moved"
	case TouchStationary:
		return "stationary"
	case TouchReleased:
		return "released"
	case TouchCancelled:
		return "cancelled"
	}
	return "unknown"
}

// Ended reports whether the point leaves the surface in this batch.
func (s TouchState) Ended() bool { return s == TouchReleased || s == TouchCancelled }

// TouchPoint is one contact in a platform touch batch.
type TouchPoint struct {
	ID       TouchID    `json:"id"`
	State    TouchState `json:"state"`
	Position Point      `json:"position"`
	Global   Point      `json:"global"`
	Radius   Point      `json:"radius"`
	Force    float64    `json:"force"`
}

// TouchEvent is one platform batch of touch points.
type TouchEvent struct {
	Points     []TouchPoint  `json:"points"`
	Modifiers  Modifiers     `json:"modifiers"`
	Cancelable bool          `json:"cancelable"`
	Timestamp  time.Duration `json:"timestamp"`
}

// -- Keyboard Events --

// KeyEventType is the platform key transition.
type KeyEventType string

const (
	KeyRawDown KeyEventType = "rawKeyDown"
	KeyDown    KeyEventType = "keyDown"
	KeyChar    KeyEventType = "char"
	KeyUp      KeyEventType = "keyUp"
)

// KeyEvent is a raw platform keyboard event.
type KeyEvent struct {
	Type KeyEventType `json:"type"`
	// Key is the DOM key value ("Tab", "ArrowLeft", "a", " ").
	Key            string        `json:"key"`
	Code           string        `json:"code"`
	Text           string        `json:"text"`
	UnmodifiedText string        `json:"unmodifiedText"`
	Modifiers      Modifiers     `json:"modifiers"`
	AutoRepeat     bool          `json:"autoRepeat"`
	Timestamp      time.Duration `json:"timestamp"`
}

// -- Drag Events from the platform --

// DragEventType is a platform drag-and-drop transition for drags the
// viewport did not originate.
type DragEventType string

const (
	DragEnter DragEventType = "enter"
	DragOver  DragEventType = "over"
	DragLeave DragEventType = "leave"
	DragDrop  DragEventType = "drop"
)

// DragEvent carries an external drag over the viewport.
type DragEvent struct {
	Type      DragEventType     `json:"type"`
	Position  Point             `json:"position"`
	Items     map[string]string `json:"items"`
	Allowed   DragOperation     `json:"allowed"`
	Modifiers Modifiers         `json:"modifiers"`
}

// -- Notification Vocabulary --

// EventType names a notification dispatched into a target's listener chain.
type EventType string

const (
	EventMouseDown   EventType = "mousedown"
	EventMouseUp     EventType = "mouseup"
	EventMouseMove   EventType = "mousemove"
	EventMouseOver   EventType = "mouseover"
	EventMouseOut    EventType = "mouseout"
	EventClick       EventType = "click"
	EventContextMenu EventType = "contextmenu"
	EventWheel       EventType = "wheel"
	EventSelectStart EventType = "selectstart"

	EventDragStart EventType = "dragstart"
	EventDrag      EventType = "drag"
	EventDragEnter EventType = "dragenter"
	EventDragOver  EventType = "dragover"
	EventDragLeave EventType = "dragleave"
	EventDrop      EventType = "drop"
	EventDragEnd   EventType = "dragend"

	EventTouchStart  EventType = "touchstart"
	EventTouchMove   EventType = "touchmove"
	EventTouchEnd    EventType = "touchend"
	EventTouchCancel EventType = "touchcancel"

	EventGestureTap          EventType = "gesturetap"
	EventGestureTapDown      EventType = "gesturetapdown"
	EventGestureShowPress    EventType = "gestureshowpress"
	EventGestureLongPress    EventType = "gesturelongpress"
	EventGestureScrollStart  EventType = "gesturescrollstart"
	EventGestureScrollUpdate EventType = "gesturescrollupdate"
	EventGestureScrollEnd    EventType = "gesturescrollend"
	EventGestureFlingStart   EventType = "gestureflingstart"
	EventGesturePinch        EventType = "gesturepinch"

	EventKeyDown  EventType = "keydown"
	EventKeyPress EventType = "keypress"
	EventKeyUp    EventType = "keyup"
	EventCancel   EventType = "cancel"
)

// TouchEventTypeFor maps a touch transition to its notification, or "" for
// stationary points which are never delivered as changes.
func TouchEventTypeFor(s TouchState) EventType {
	switch s {
	case TouchPressed:
		return EventTouchStart
	case TouchMoved:
		return EventTouchMove
	case TouchReleased:
		return EventTouchEnd
	case TouchCancelled:
		return EventTouchCancel
	}
	return ""
}

// -- Cursor, Touch Action, Drag, Scroll vocab --

// Cursor is the classified pointer cursor.
type Cursor string

const (
	CursorAuto       Cursor = "auto"
	CursorPointer    Cursor = "default"
	CursorText       Cursor = "text"
	CursorHand       Cursor = "pointer"
	CursorResize     Cursor = "se-resize"
	CursorMove       Cursor = "move"
	CursorNotAllowed Cursor = "not-allowed"
)

// TouchAction is the set of manipulations a touch may perform.
type TouchAction int

const (
	TouchActionNone  TouchAction = 0
	TouchActionPanX  TouchAction = 1 << 0
	TouchActionPanY  TouchAction = 1 << 1
	TouchActionPinch TouchAction = 1 << 2
	TouchActionAuto  TouchAction = TouchActionPanX | TouchActionPanY | TouchActionPinch | 1<<3
)

// DragKind classifies a drag source. Each kind has its own hysteresis.
type DragKind string

const (
	DragKindNone      DragKind = "none"
	DragKindSelection DragKind = "selection"
	DragKindImage     DragKind = "image"
	DragKindLink      DragKind = "link"
	DragKindGeneric   DragKind = "generic"
)

// DragOperation is a drop effect bitmask.
type DragOperation int

const (
	DragOperationNone DragOperation = 0
	DragOperationCopy DragOperation = 1
	DragOperationLink DragOperation = 2
	DragOperationMove DragOperation = 16
	DragOperationAll  DragOperation = DragOperationCopy | DragOperationLink | DragOperationMove
)

// Granularity is the unit for scroll and selection operations.
type Granularity string

const (
	ByCharacter Granularity = "character"
	ByWord      Granularity = "word"
	ByLine      Granularity = "line"
	ByParagraph Granularity = "paragraph"
	ByPixel     Granularity = "pixel"
	ByPage      Granularity = "page"
)

// Axis is a scroll axis.
type Axis int

const (
	AxisX Axis = iota
	AxisY
)

// FocusDirection selects the target of focus traversal.
type FocusDirection string

const (
	FocusForward  FocusDirection = "forward"
	FocusBackward FocusDirection = "backward"
	FocusUp       FocusDirection = "up"
	FocusDown     FocusDirection = "down"
	FocusLeft     FocusDirection = "left"
	FocusRight    FocusDirection = "right"
)
