// internal/input/host/payload.go
package host

import (
	"github.com/xkilldash9x/inputcore/api/schemas"
)

// MousePayload accompanies mouse, click and wheel notifications.
type MousePayload struct {
	// Position is in the target document's coordinates.
	Position   Point
	Viewport   Point
	Button     schemas.MouseButton
	ClickCount int
	Modifiers  schemas.Modifiers
	// Related is the node the pointer came from (over) or goes to (out).
	Related Ref
	// Wheel fields.
	DeltaX    float64
	DeltaY    float64
	DeltaMode schemas.WheelDeltaMode
	// Synthetic marks notifications produced from gestures or timers.
	Synthetic bool
}

// DragPayload accompanies drag-and-drop notifications.
type DragPayload struct {
	Position  Point
	Modifiers schemas.Modifiers
	Data      Transfer
}

// TouchInfo is one touch as seen by listeners.
type TouchInfo struct {
	ID       schemas.TouchID
	Target   Ref
	Position Point
	Radius   Point
	Force    float64
}

// TouchPayload accompanies touch notifications.
type TouchPayload struct {
	Touches        []TouchInfo
	TargetTouches  []TouchInfo
	ChangedTouches []TouchInfo
	Modifiers      schemas.Modifiers
	Cancelable     bool
}

// GesturePayload accompanies gesture notifications.
type GesturePayload struct {
	Event    schemas.GestureEvent
	Position Point
}

// KeyPayload accompanies keyboard notifications.
type KeyPayload struct {
	Event schemas.KeyEvent
	// AccessKeyHandled is set on a keydown that already triggered an access key.
	AccessKeyHandled bool
}
