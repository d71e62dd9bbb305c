// internal/replay/scenario.go
package replay

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"gopkg.in/yaml.v3"

	"github.com/xkilldash9x/inputcore/api/schemas"
)

// Scenario is one scripted interaction against a reference page.
type Scenario struct {
	Name     string        `yaml:"name"`
	Viewport schemas.Point `yaml:"viewport"`
	Page     string        `yaml:"page"`
	// Config overrides dotted configuration keys, e.g. input.pointer.click_slop.
	Config    map[string]any `yaml:"config"`
	Listeners []Listener     `yaml:"listeners"`
	Steps     []Step         `yaml:"steps"`
	Expect    Expectation    `yaml:"expect"`

	// Path is the file the scenario came from, if any.
	Path string `yaml:"-"`
}

// Listener installs a scripted reaction on a node.
type Listener struct {
	Target string            `yaml:"target"`
	Event  schemas.EventType `yaml:"event"`
	// Actions run in order: prevent, consume, stop, remove, destroy, clear,
	// detach, scrolled.
	Actions []string `yaml:"actions"`
	// SetData writes drag payload entries when the event carries one.
	SetData map[string]string `yaml:"set_data"`
	// Focus moves focus to the node at this XPath.
	Focus string `yaml:"focus"`
	Once  bool   `yaml:"once"`
}

// Step is one entry of the script. Exactly one field is set.
type Step struct {
	CDP      *CDPCommand   `yaml:"cdp"`
	Pointer  *PointerStep  `yaml:"pointer"`
	Gesture  *GestureStep  `yaml:"gesture"`
	Advance  time.Duration `yaml:"advance"`
	Remove   string        `yaml:"remove"`
	Destroy  string        `yaml:"destroy"`
	Capture  *CaptureStep  `yaml:"capture"`
	Release  *int          `yaml:"release"`
	Clear    bool          `yaml:"clear"`
	Scrolled bool          `yaml:"scrolled"`
	Detach   bool          `yaml:"detach"`
}

// CDPCommand is an Input domain command in wire form.
type CDPCommand struct {
	Method string         `yaml:"method"`
	Params map[string]any `yaml:"params"`
}

// PointerStep is a raw pointer transition, for devices CDP cannot name.
type PointerStep struct {
	Type      schemas.PointerEventType `yaml:"type"`
	Pointer   int                      `yaml:"pointer"`
	X         float64                  `yaml:"x"`
	Y         float64                  `yaml:"y"`
	Button    schemas.MouseButton      `yaml:"button"`
	Modifiers schemas.Modifiers        `yaml:"modifiers"`
}

// GestureStep is a recognized gesture.
type GestureStep struct {
	Type     schemas.GestureType `yaml:"type"`
	X        float64             `yaml:"x"`
	Y        float64             `yaml:"y"`
	Width    float64             `yaml:"width"`
	Height   float64             `yaml:"height"`
	DeltaX   float64             `yaml:"dx"`
	DeltaY   float64             `yaml:"dy"`
	Scale    float64             `yaml:"scale"`
	TapCount int                 `yaml:"taps"`
}

// CaptureStep routes a pointer to a node.
type CaptureStep struct {
	Pointer int    `yaml:"pointer"`
	Target  string `yaml:"target"`
}

// Expectation is checked after the last step.
type Expectation struct {
	// Events lists notifications as "kind@xpath". XPaths are resolved before
	// the first step so removed nodes can still be named.
	Events []string `yaml:"events"`
	// Only restricts the comparison to these kinds.
	Only []schemas.EventType `yaml:"only"`
	// Focus is the XPath of the node expected to hold focus.
	Focus string `yaml:"focus"`
}

func (s *Step) kinds() int {
	n := 0
	for _, set := range []bool{
		s.CDP != nil, s.Pointer != nil, s.Gesture != nil, s.Advance != 0,
		s.Remove != "", s.Destroy != "", s.Capture != nil, s.Release != nil,
		s.Clear, s.Scrolled, s.Detach,
	} {
		if set {
			n++
		}
	}
	return n
}

// Validate checks the scenario is runnable.
func (sc *Scenario) Validate() error {
	var errs []error
	if strings.TrimSpace(sc.Page) == "" {
		errs = append(errs, errors.New("page is empty"))
	}
	for i, st := range sc.Steps {
		if st.kinds() != 1 {
			errs = append(errs, fmt.Errorf("step %d: exactly one action is required", i))
		}
		if st.Advance < 0 {
			errs = append(errs, fmt.Errorf("step %d: advance must not be negative", i))
		}
	}
	for i, l := range sc.Listeners {
		if l.Target == "" || l.Event == "" {
			errs = append(errs, fmt.Errorf("listener %d: target and event are required", i))
		}
		for _, a := range l.Actions {
			if !knownActions[a] {
				errs = append(errs, fmt.Errorf("listener %d: unknown action %q", i, a))
			}
		}
	}
	for i, e := range sc.Expect.Events {
		if _, _, err := splitExpectation(e); err != nil {
			errs = append(errs, fmt.Errorf("expect %d: %w", i, err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("scenario %q: %w", sc.Name, err)
	}
	return nil
}

var knownActions = map[string]bool{
	"prevent": true, "consume": true, "stop": true, "remove": true, "destroy": true,
	"clear": true, "detach": true, "scrolled": true,
}

func splitExpectation(e string) (schemas.EventType, string, error) {
	kind, xpath, ok := strings.Cut(e, "@")
	if !ok || kind == "" || xpath == "" {
		return "", "", fmt.Errorf("%q is not kind@xpath", e)
	}
	return schemas.EventType(kind), xpath, nil
}

// Parse decodes a scenario document. Unknown fields are rejected.
func Parse(data []byte) (*Scenario, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var sc Scenario
	if err := dec.Decode(&sc); err != nil {
		return nil, fmt.Errorf("replay: decode scenario: %w", err)
	}
	if sc.Viewport == (schemas.Point{}) {
		sc.Viewport = schemas.Point{X: 800, Y: 600}
	}
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	return &sc, nil
}

// Load reads a scenario file. A leading ~ expands to the home directory.
func Load(path string) (*Scenario, error) {
	expanded, err := homedir.Expand(path)
	if err != nil {
		return nil, fmt.Errorf("replay: expand %q: %w", path, err)
	}
	data, err := os.ReadFile(expanded)
	if err != nil {
		return nil, fmt.Errorf("replay: read scenario: %w", err)
	}
	sc, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	sc.Path = expanded
	if sc.Name == "" {
		sc.Name = path
	}
	return sc, nil
}
