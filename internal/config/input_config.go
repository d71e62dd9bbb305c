// File: internal/config/input_config.go
// InputConfig carries the tunables of the input dispatch core: multi-click
// windows, drag hysteresis per drag kind, gesture timing and the feature flags
// that gate keyboard fallbacks. Everything here can be set from a YAML file or
// INPUTCORE_ environment variables through Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/xkilldash9x/inputcore/api/schemas"
)

// InputConfig groups the per-component input settings.
type InputConfig struct {
	Pointer  PointerConfig  `mapstructure:"pointer" yaml:"pointer"`
	Drag     DragConfig     `mapstructure:"drag" yaml:"drag"`
	Gesture  GestureConfig  `mapstructure:"gesture" yaml:"gesture"`
	Keyboard KeyboardConfig `mapstructure:"keyboard" yaml:"keyboard"`
}

// PointerConfig controls click coalescing and synthesized moves.
type PointerConfig struct {
	MultiClickInterval     time.Duration `mapstructure:"multi_click_interval" yaml:"multi_click_interval"`
	MultiClickSlop         float64       `mapstructure:"multi_click_slop" yaml:"multi_click_slop"`
	ClickSlop              float64       `mapstructure:"click_slop" yaml:"click_slop"`
	TripleClickGranularity string        `mapstructure:"triple_click_granularity" yaml:"triple_click_granularity"`
	FakeMoveShortInterval  time.Duration `mapstructure:"fake_move_short_interval" yaml:"fake_move_short_interval"`
	FakeMoveLongInterval   time.Duration `mapstructure:"fake_move_long_interval" yaml:"fake_move_long_interval"`
	// FakeMoveBurst is how many synthesized moves may use the short interval
	// before the long interval takes over.
	FakeMoveBurst   int     `mapstructure:"fake_move_burst" yaml:"fake_move_burst"`
	WheelLineHeight float64 `mapstructure:"wheel_line_height" yaml:"wheel_line_height"`
	// AutoscrollInterval paces the scroll steps of a selection dragged past
	// the viewport edge.
	AutoscrollInterval time.Duration `mapstructure:"autoscroll_interval" yaml:"autoscroll_interval"`
}

// DragConfig holds the hysteresis threshold in pixels for each drag kind.
type DragConfig struct {
	SelectionHysteresis float64       `mapstructure:"selection_hysteresis" yaml:"selection_hysteresis"`
	ImageHysteresis     float64       `mapstructure:"image_hysteresis" yaml:"image_hysteresis"`
	LinkHysteresis      float64       `mapstructure:"link_hysteresis" yaml:"link_hysteresis"`
	GenericHysteresis   float64       `mapstructure:"generic_hysteresis" yaml:"generic_hysteresis"`
	TextDragDelay       time.Duration `mapstructure:"text_drag_delay" yaml:"text_drag_delay"`
}

// GestureConfig controls tap and long-press handling.
type GestureConfig struct {
	MinimumActiveInterval time.Duration `mapstructure:"minimum_active_interval" yaml:"minimum_active_interval"`
	TouchAdjustment       bool          `mapstructure:"touch_adjustment" yaml:"touch_adjustment"`
	TouchDragDrop         bool          `mapstructure:"touch_drag_drop" yaml:"touch_drag_drop"`
	TouchEditing          bool          `mapstructure:"touch_editing" yaml:"touch_editing"`
}

// KeyboardConfig gates the built-in keyboard fallbacks.
type KeyboardConfig struct {
	TabCyclesElements      bool   `mapstructure:"tab_cycles_elements" yaml:"tab_cycles_elements"`
	SpatialNavigation      bool   `mapstructure:"spatial_navigation" yaml:"spatial_navigation"`
	BackspaceNavigatesBack bool   `mapstructure:"backspace_navigates_back" yaml:"backspace_navigates_back"`
	AccessKeyModifiers     string `mapstructure:"access_key_modifiers" yaml:"access_key_modifiers"`
}

func setInputDefaults(v *viper.Viper) {
	v.SetDefault("input.pointer.multi_click_interval", "500ms")
	v.SetDefault("input.pointer.multi_click_slop", 5.0)
	v.SetDefault("input.pointer.click_slop", 5.0)
	v.SetDefault("input.pointer.triple_click_granularity", "paragraph")
	v.SetDefault("input.pointer.fake_move_short_interval", "100ms")
	v.SetDefault("input.pointer.fake_move_long_interval", "250ms")
	v.SetDefault("input.pointer.fake_move_burst", 3)
	v.SetDefault("input.pointer.wheel_line_height", 40.0)
	v.SetDefault("input.pointer.autoscroll_interval", "50ms")

	v.SetDefault("input.drag.selection_hysteresis", 3.0)
	v.SetDefault("input.drag.image_hysteresis", 5.0)
	v.SetDefault("input.drag.link_hysteresis", 40.0)
	v.SetDefault("input.drag.generic_hysteresis", 3.0)
	v.SetDefault("input.drag.text_drag_delay", "150ms")

	v.SetDefault("input.gesture.minimum_active_interval", "150ms")
	v.SetDefault("input.gesture.touch_adjustment", true)
	v.SetDefault("input.gesture.touch_drag_drop", false)
	v.SetDefault("input.gesture.touch_editing", false)

	v.SetDefault("input.keyboard.tab_cycles_elements", true)
	v.SetDefault("input.keyboard.spatial_navigation", false)
	v.SetDefault("input.keyboard.backspace_navigates_back", false)
	v.SetDefault("input.keyboard.access_key_modifiers", "alt")
}

// Hysteresis returns the drag threshold for a drag kind.
func (d DragConfig) Hysteresis(kind schemas.DragKind) float64 {
	switch kind {
	case schemas.DragKindSelection:
		return d.SelectionHysteresis
	case schemas.DragKindImage:
		return d.ImageHysteresis
	case schemas.DragKindLink:
		return d.LinkHysteresis
	case schemas.DragKindGeneric:
		return d.GenericHysteresis
	}
	return 0
}

// TripleClick returns the selection granularity for a third click.
func (p PointerConfig) TripleClick() schemas.Granularity {
	if strings.EqualFold(p.TripleClickGranularity, string(schemas.ByLine)) {
		return schemas.ByLine
	}
	return schemas.ByParagraph
}

// AccessKeyMask parses AccessKeyModifiers ("alt", "ctrl+alt") into a bitmask.
func (k KeyboardConfig) AccessKeyMask() (schemas.Modifiers, error) {
	var mask schemas.Modifiers
	if strings.TrimSpace(k.AccessKeyModifiers) == "" {
		return mask, nil
	}
	for _, part := range strings.Split(k.AccessKeyModifiers, "+") {
		switch strings.ToLower(strings.TrimSpace(part)) {
		case "alt":
			mask |= schemas.ModAlt
		case "ctrl", "control":
			mask |= schemas.ModCtrl
		case "meta", "cmd":
			mask |= schemas.ModMeta
		case "shift":
			mask |= schemas.ModShift
		default:
			return 0, fmt.Errorf("unknown access key modifier %q", part)
		}
	}
	return mask, nil
}

// Validate checks the InputConfig settings.
func (i *InputConfig) Validate() error {
	p := i.Pointer
	if p.MultiClickInterval <= 0 {
		return fmt.Errorf("input.pointer.multi_click_interval must be a positive duration")
	}
	if p.MultiClickSlop < 0 || p.ClickSlop < 0 {
		return fmt.Errorf("input.pointer click slop values must not be negative")
	}
	switch strings.ToLower(p.TripleClickGranularity) {
	case "line", "paragraph":
	default:
		return fmt.Errorf("input.pointer.triple_click_granularity must be line or paragraph")
	}
	if p.FakeMoveShortInterval <= 0 || p.FakeMoveLongInterval < p.FakeMoveShortInterval {
		return fmt.Errorf("input.pointer.fake_move intervals must be positive and long >= short")
	}
	if p.FakeMoveBurst <= 0 {
		return fmt.Errorf("input.pointer.fake_move_burst must be a positive integer")
	}
	if p.WheelLineHeight <= 0 {
		return fmt.Errorf("input.pointer.wheel_line_height must be positive")
	}
	if p.AutoscrollInterval <= 0 {
		return fmt.Errorf("input.pointer.autoscroll_interval must be a positive duration")
	}

	d := i.Drag
	for _, h := range []float64{d.SelectionHysteresis, d.ImageHysteresis, d.LinkHysteresis, d.GenericHysteresis} {
		if h < 0 {
			return fmt.Errorf("input.drag hysteresis values must not be negative")
		}
	}
	if i.Gesture.MinimumActiveInterval < 0 {
		return fmt.Errorf("input.gesture.minimum_active_interval must not be negative")
	}
	if _, err := i.Keyboard.AccessKeyMask(); err != nil {
		return fmt.Errorf("input.keyboard.access_key_modifiers: %w", err)
	}
	return nil
}
