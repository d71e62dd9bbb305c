// internal/replay/replay.go
// Package replay drives the input core with scripted scenarios against the
// vtree reference host and checks the notifications it produces. Each
// scenario runs against its own view, coordinator and virtual clock, so
// scenarios can run in parallel.
package replay

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/inputcore/api/schemas"
	"github.com/xkilldash9x/inputcore/internal/browser/cdpinput"
	"github.com/xkilldash9x/inputcore/internal/browser/vtree"
	"github.com/xkilldash9x/inputcore/internal/config"
	"github.com/xkilldash9x/inputcore/internal/input/coordinator"
	"github.com/xkilldash9x/inputcore/internal/input/host"
	"github.com/xkilldash9x/inputcore/internal/input/loop"
)

// Result is the outcome of one scenario.
type Result struct {
	ID       string        `json:"id"`
	Name     string        `json:"name"`
	Passed   bool          `json:"passed"`
	Events   []string      `json:"events"`
	Diff     string        `json:"diff,omitempty"`
	Focus    string        `json:"focus,omitempty"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}

// MarshalResults encodes results as indented JSON.
func MarshalResults(results []*Result) ([]byte, error) {
	return jsoniter.ConfigCompatibleWithStandardLibrary.MarshalIndent(results, "", "  ")
}

// Settings builds the configuration for sc: defaults, then base, then the
// scenario's own overrides.
func Settings(sc *Scenario, base *viper.Viper) (*config.Config, error) {
	v := viper.New()
	config.SetDefaults(v)
	if base != nil {
		if err := v.MergeConfigMap(base.AllSettings()); err != nil {
			return nil, fmt.Errorf("replay: merge base config: %w", err)
		}
	}
	for k, val := range sc.Config {
		v.Set(k, val)
	}
	return config.NewConfigFromViper(v)
}

// Option configures a replay run.
type Option func(*options)

type options struct {
	realtime bool
}

// WithRealtime runs the scenario on a loop.Loop against the wall clock
// instead of a virtual one. Advance steps sleep, so deferred work fires on
// the loop goroutine in real time.
func WithRealtime() Option {
	return func(o *options) { o.realtime = true }
}

type runner struct {
	sc     *Scenario
	logger *zap.Logger
	view   *vtree.View
	coord  *coordinator.Coordinator
	sched  loop.Scheduler
	epoch  time.Time
	cdp    *cdpinput.Adapter

	// clock is set for virtual time runs, live for realtime ones.
	clock *loop.Manual
	live  *loop.Loop
}

// Run executes sc. Script errors (bad XPath, malformed commands) are
// returned; a mismatch is reported through Result.Passed.
func Run(ctx context.Context, sc *Scenario, base *viper.Viper, logger *zap.Logger, opts ...Option) (*Result, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	start := time.Now()
	res := &Result{ID: uuid.NewString(), Name: sc.Name}
	logger = logger.With(zap.String("scenario", sc.Name), zap.String("run_id", res.ID), zap.Bool("realtime", o.realtime))

	cfg, err := Settings(sc, base)
	if err != nil {
		return nil, err
	}
	view, err := vtree.Parse(sc.Page, sc.Viewport, logger)
	if err != nil {
		return nil, err
	}
	r := &runner{sc: sc, logger: logger, view: view}
	if o.realtime {
		r.live = loop.New(0)
		r.sched, r.epoch = r.live, time.Now()
	} else {
		r.clock = loop.NewManual(time.Unix(0, 0))
		r.sched, r.epoch = r.clock, r.clock.Now()
	}
	coord, err := coordinator.New(cfg, logger, view.Host(), r.sched)
	if err != nil {
		return nil, err
	}
	view.OnWillRemove(coord.NotifyTargetWillBeRemoved)
	r.coord = coord
	r.cdp = cdpinput.New(coord, logger, cdpinput.WithClock(r.now))

	if err := r.install(); err != nil {
		return nil, err
	}
	want, err := r.expected()
	if err != nil {
		return nil, err
	}

	if err := r.play(ctx); err != nil {
		return nil, err
	}

	res.Events = r.actual()
	res.Passed = true
	if sc.Expect.Events != nil {
		if diff := cmp.Diff(want, res.Events); diff != "" {
			res.Passed = false
			res.Diff = diff
		}
	}
	if sc.Expect.Focus != "" {
		target, err := view.Query(sc.Expect.Focus)
		if err != nil {
			return nil, err
		}
		res.Focus = view.Label(view.FocusedTarget())
		if view.FocusedTarget() != target {
			res.Passed = false
			res.Diff += fmt.Sprintf("focus: want %s, got %s\n", view.Label(target), res.Focus)
		}
	}
	res.Duration = time.Since(start)
	logger.Debug("Scenario finished.", zap.Bool("passed", res.Passed), zap.Int("events", len(res.Events)))
	return res, nil
}

// RunAll runs scenarios with at most limit in flight. A script error in one
// scenario is recorded on its result and does not stop the others.
func RunAll(ctx context.Context, scenarios []*Scenario, base *viper.Viper, logger *zap.Logger, limit int, opts ...Option) ([]*Result, error) {
	results := make([]*Result, len(scenarios))
	g, ctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, sc := range scenarios {
		g.Go(func() error {
			res, err := Run(ctx, sc, base, logger, opts...)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				logger.Warn("Scenario failed to run.", zap.String("scenario", sc.Name), zap.Error(err))
				res = &Result{ID: uuid.NewString(), Name: sc.Name, Error: err.Error()}
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (r *runner) query(xpath string) (host.Ref, error) {
	return r.view.Query(xpath)
}

func (r *runner) install() error {
	for _, l := range r.sc.Listeners {
		target, err := r.query(l.Target)
		if err != nil {
			return err
		}
		var focus host.Ref
		if l.Focus != "" {
			if focus, err = r.query(l.Focus); err != nil {
				return err
			}
		}
		fired := false
		r.view.On(target, l.Event, func(e *vtree.Event) {
			if l.Once && fired {
				return
			}
			fired = true
			r.react(l, e, focus)
		})
	}
	return nil
}

func (r *runner) react(l Listener, e *vtree.Event, focus host.Ref) {
	if dp, ok := e.Payload.(host.DragPayload); ok && dp.Data != nil {
		for mime, val := range l.SetData {
			dp.Data.SetData(mime, val)
		}
	}
	if !focus.IsZero() {
		r.view.SetFocusedTarget(r.view.Document(focus), focus)
	}
	for _, a := range l.Actions {
		switch a {
		case "prevent":
			e.PreventDefault()
		case "consume":
			e.Consume()
		case "stop":
			e.StopPropagation()
		case "remove":
			r.view.Remove(e.CurrentTarget)
		case "destroy":
			r.view.Destroy(e.CurrentTarget)
		case "clear":
			r.coord.ClearAllSessions()
		case "detach":
			r.coord.Detach()
		case "scrolled":
			r.coord.NotifyScrolled()
		}
	}
}

func (r *runner) step(st Step) error {
	switch {
	case st.CDP != nil:
		params, err := jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(st.CDP.Params)
		if err != nil {
			return fmt.Errorf("encode cdp params: %w", err)
		}
		_, err = r.cdp.Dispatch(cdpinput.Message{Method: st.CDP.Method, Params: params})
		return err
	case st.Pointer != nil:
		p := st.Pointer
		pos := schemas.Point{X: p.X, Y: p.Y}
		button := p.Button
		if button == "" {
			button = schemas.ButtonNone
		}
		r.coord.OnPointerEvent(schemas.PointerEvent{
			Type:      p.Type,
			Pointer:   schemas.PointerID(p.Pointer),
			Position:  pos,
			Global:    pos,
			Button:    button,
			Modifiers: p.Modifiers,
			Timestamp: r.now(),
		})
	case st.Gesture != nil:
		g := st.Gesture
		pos := schemas.Point{X: g.X, Y: g.Y}
		r.coord.OnGestureEvent(schemas.GestureEvent{
			Type:      g.Type,
			Position:  pos,
			Global:    pos,
			Area:      schemas.Point{X: g.Width, Y: g.Height},
			DeltaX:    g.DeltaX,
			DeltaY:    g.DeltaY,
			Scale:     g.Scale,
			TapCount:  g.TapCount,
			Timestamp: r.now(),
		})
	case st.Remove != "":
		t, err := r.query(st.Remove)
		if err != nil {
			return err
		}
		r.view.Remove(t)
	case st.Destroy != "":
		t, err := r.query(st.Destroy)
		if err != nil {
			return err
		}
		r.view.Destroy(t)
	case st.Capture != nil:
		t, err := r.query(st.Capture.Target)
		if err != nil {
			return err
		}
		if !r.coord.SetCapture(schemas.PointerID(st.Capture.Pointer), t) {
			r.logger.Debug("Capture refused.", zap.String("target", st.Capture.Target))
		}
	case st.Release != nil:
		r.coord.ReleaseCapture(schemas.PointerID(*st.Release))
	case st.Clear:
		r.coord.ClearAllSessions()
	case st.Scrolled:
		r.coord.NotifyScrolled()
	case st.Detach:
		r.coord.Detach()
	}
	return nil
}

func (r *runner) now() time.Duration { return r.sched.Now().Sub(r.epoch) }

// play runs the steps. A realtime run owns its loop for the duration: every
// step is posted to it and awaited, and the loop is stopped before play
// returns so the view can be read without it.
func (r *runner) play(ctx context.Context) error {
	if r.live == nil {
		for i, st := range r.sc.Steps {
			if err := ctx.Err(); err != nil {
				return err
			}
			if st.Advance > 0 {
				r.clock.Advance(st.Advance)
				continue
			}
			if err := r.step(st); err != nil {
				return fmt.Errorf("scenario %q step %d: %w", r.sc.Name, i, err)
			}
		}
		return nil
	}

	loopCtx, stop := context.WithCancel(ctx)
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		if err := r.live.Run(loopCtx); err != nil && !errors.Is(err, context.Canceled) {
			r.logger.Debug("Loop stopped.", zap.Error(err))
		}
	}()
	defer func() {
		stop()
		<-stopped
	}()

	for i, st := range r.sc.Steps {
		if err := ctx.Err(); err != nil {
			return err
		}
		if st.Advance > 0 {
			if err := sleep(ctx, st.Advance); err != nil {
				return err
			}
			continue
		}
		if err := r.onLoop(ctx, func() error { return r.step(st) }); err != nil {
			return fmt.Errorf("scenario %q step %d: %w", r.sc.Name, i, err)
		}
	}
	return nil
}

// onLoop runs fn on the live loop and waits for it.
func (r *runner) onLoop(ctx context.Context, fn func() error) error {
	done := make(chan error, 1)
	if !r.live.Post(func() { done <- fn() }) {
		return errors.New("replay: loop stopped")
	}
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *runner) expected() ([]string, error) {
	out := make([]string, 0, len(r.sc.Expect.Events))
	for _, e := range r.sc.Expect.Events {
		kind, xpath, err := splitExpectation(e)
		if err != nil {
			return nil, err
		}
		t, err := r.query(xpath)
		if err != nil {
			return nil, err
		}
		out = append(out, fmt.Sprintf("%s@%s", kind, r.view.Label(t)))
	}
	return out, nil
}

func (r *runner) actual() []string {
	only := make(map[schemas.EventType]bool, len(r.sc.Expect.Only))
	for _, k := range r.sc.Expect.Only {
		only[k] = true
	}
	out := []string{}
	for _, n := range r.view.Notifications() {
		if len(only) == 0 || only[n.Kind] {
			out = append(out, fmt.Sprintf("%s@%s", n.Kind, n.Label))
		}
	}
	return out
}
