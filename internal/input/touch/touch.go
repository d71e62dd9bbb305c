// internal/input/touch/touch.go
// Package touch aggregates platform touch batches into touch notifications.
// Each touch is hit-tested once, when it is pressed, and keeps that target
// until it is released or cancelled.
package touch

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/inputcore/api/schemas"
	"github.com/xkilldash9x/inputcore/internal/input/hittest"
	"github.com/xkilldash9x/inputcore/internal/input/host"
	"github.com/xkilldash9x/inputcore/internal/input/session"
	"github.com/xkilldash9x/inputcore/internal/input/touchaction"
	"github.com/xkilldash9x/inputcore/internal/observability"
)

// Aggregator is the TouchSequenceAggregator of one top-level viewport.
type Aggregator struct {
	host    host.Host
	hit     *hittest.HitTester
	reg     *session.Registry
	actions *touchaction.Resolver
	logger  *zap.Logger
}

// New returns an Aggregator storing its sequence in reg.
func New(h host.Host, hit *hittest.HitTester, reg *session.Registry, logger *zap.Logger) *Aggregator {
	return &Aggregator{
		host:    h,
		hit:     hit,
		reg:     reg,
		actions: touchaction.New(h.Tree),
		logger:  observability.Component(logger, "touch"),
	}
}

// Pressed reports whether any routed touch is still down.
func (a *Aggregator) Pressed() bool { return a.reg.Touch != nil && a.reg.Touch.Active() > 0 }

// changeSet collects the changed touches of one transition kind, grouped by
// target in first-seen order.
type changeSet struct {
	targets []host.Ref
	touches map[host.Ref][]host.TouchInfo
	// ids are released from the sequence when their notification is sent.
	ids map[host.Ref][]schemas.TouchID
}

func (c *changeSet) add(t host.Ref, info host.TouchInfo) {
	if c.touches == nil {
		c.touches = make(map[host.Ref][]host.TouchInfo)
		c.ids = make(map[host.Ref][]schemas.TouchID)
	}
	if _, seen := c.touches[t]; !seen {
		c.targets = append(c.targets, t)
	}
	c.touches[t] = append(c.touches[t], info)
	c.ids[t] = append(c.ids[t], info.ID)
}

// Handle routes one batch and reports whether any notification was handled.
func (a *Aggregator) Handle(ev schemas.TouchEvent) bool {
	if !a.reg.Alive() || len(ev.Points) == 0 {
		return false
	}
	tree := a.host.Tree

	fresh := true
	for _, p := range ev.Points {
		if p.State != schemas.TouchPressed {
			fresh = false
		}
	}
	if fresh || a.reg.Touch == nil {
		if a.reg.Touch != nil && a.reg.Touch.Active() > 0 {
			a.logger.Debug("fresh batch replaces unfinished sequence",
				zap.String("session", a.reg.Touch.ID), zap.Int("active", a.reg.Touch.Active()))
		}
		a.reg.Touch = session.NewTouchSequence()
	}
	seq := a.reg.Touch

	if !seq.Document.IsZero() && !tree.IsAlive(seq.Document) {
		a.logger.Debug("touch sequence document is gone", zap.String("session", seq.ID))
		return false
	}

	for _, p := range ev.Points {
		if p.State == schemas.TouchPressed {
			a.press(seq, p)
		}
	}
	if seq.Document.IsZero() {
		a.reg.Touch = nil
		return false
	}

	var (
		touches  []host.TouchInfo
		byTarget = make(map[host.Ref][]host.TouchInfo)
		changed  [schemas.TouchStateCount]changeSet
	)
	for _, p := range ev.Points {
		t, err := a.lookup(seq, p.ID)
		known := err == nil
		if !known {
			a.logger.Debug("touch not routed", zap.String("session", seq.ID), zap.Int("touch_id", int(p.ID)), zap.Error(err))
			if p.State.Ended() {
				delete(seq.Targets, p.ID)
			}
			t = seq.Document
		}
		info := host.TouchInfo{
			ID:       p.ID,
			Target:   t,
			Position: a.hit.DocPoint(seq.Document, p.Position),
			Radius:   p.Radius,
			Force:    p.Force,
		}
		if _, ok := byTarget[t]; !ok {
			byTarget[t] = nil
		}
		if !p.State.Ended() {
			touches = append(touches, info)
			byTarget[t] = append(byTarget[t], info)
		}
		if p.State != schemas.TouchStationary && known {
			changed[p.State].add(t, info)
		}
	}

	swallowed := false
	for state := range changed {
		set := &changed[state]
		kind := schemas.TouchEventTypeFor(schemas.TouchState(state))
		for _, t := range set.targets {
			if !a.reg.Alive() {
				return swallowed
			}
			if schemas.TouchState(state).Ended() {
				for _, id := range set.ids[t] {
					delete(seq.Targets, id)
				}
			}
			if !host.Valid(tree, t) {
				a.logger.Debug("touch target detached", zap.String("session", seq.ID), zap.Stringer("target", t))
				continue
			}
			out := a.host.Dispatcher.Dispatch(kind, t, host.TouchPayload{
				Touches:        touches,
				TargetTouches:  byTarget[t],
				ChangedTouches: set.touches[t],
				Modifiers:      ev.Modifiers,
				Cancelable:     ev.Cancelable,
			})
			swallowed = swallowed || out.Handled()
		}
	}

	// The sequence ends once its last routed touch is gone.
	if a.reg.Alive() && a.reg.Touch == seq && seq.Active() == 0 {
		a.reg.Touch = nil
	}
	return swallowed
}

// press hit-tests a newly pressed point and records its target. Once the
// sequence has a document every later press is resolved inside it.
func (a *Aggregator) press(seq *session.TouchSequence, p schemas.TouchPoint) {
	flags := hittest.TouchEvent | hittest.ReadOnly | hittest.Active
	var res hittest.Result
	if seq.Document.IsZero() {
		res = a.hit.HitTestRoot(p.Position, schemas.Point{}, flags)
	} else {
		local := a.hit.DocPoint(seq.Document, p.Position)
		if !host.Bounds(a.host.Tree, seq.Document).Contains(local) {
			a.logger.Debug("touch outside the sequence document", zap.String("session", seq.ID), zap.Int("touch_id", int(p.ID)))
			return
		}
		res = a.hit.HitTest(seq.Document, local, schemas.Point{}, flags)
	}
	if res.Empty() {
		return
	}
	if seq.Document.IsZero() {
		seq.Document = res.Document
	}
	if _, dup := seq.Targets[p.ID]; dup {
		a.logger.Debug("touch pressed twice", zap.String("session", seq.ID), zap.Int("touch_id", int(p.ID)))
	}
	seq.Targets[p.ID] = res.Target

	if action := a.actions.Effective(res.Target); action != schemas.TouchActionAuto {
		a.host.Chrome.SetTouchAction(p.ID, action)
	}
}

// lookup returns the target of a routed touch.
func (a *Aggregator) lookup(seq *session.TouchSequence, id schemas.TouchID) (host.Ref, error) {
	t, ok := seq.Targets[id]
	if !ok {
		return host.Ref{}, fmt.Errorf("touch %d: %w", id, host.ErrUnknownTouch)
	}
	// A target that moved to another document must not leak into this one.
	if a.host.Tree.Document(t) != seq.Document {
		return host.Ref{}, fmt.Errorf("touch %d left the sequence document: %w", id, host.ErrUnknownTouch)
	}
	return t, nil
}
