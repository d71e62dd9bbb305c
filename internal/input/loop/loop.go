// internal/input/loop/loop.go
// Package loop provides the cooperative, single-threaded scheduling used by
// the input core for its deferred work: synthesized pointer moves and the
// gesture active-state clear. Callbacks always run on the loop's goroutine, so
// components never need locks around their session state.
package loop

import (
	"container/heap"
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Timer is a single-shot cancellable callback.
type Timer interface {
	// Stop cancels the timer and reports whether it was still pending.
	Stop() bool
}

// Scheduler runs callbacks on the embedder's loop.
type Scheduler interface {
	Now() time.Time
	AfterFunc(d time.Duration, fn func()) Timer
}

// Slot owns at most one pending timer. Scheduling replaces whatever was
// pending, which is how repeated requests coalesce into one callback.
type Slot struct {
	sched Scheduler
	t     Timer
	armed bool
}

// NewSlot returns an empty slot on s.
func NewSlot(s Scheduler) *Slot { return &Slot{sched: s} }

// Schedule arms the slot to run fn after d, cancelling any earlier request.
func (s *Slot) Schedule(d time.Duration, fn func()) {
	s.Cancel()
	s.armed = true
	s.t = s.sched.AfterFunc(d, func() {
		s.armed = false
		s.t = nil
		fn()
	})
}

// Cancel stops the pending callback, if any.
func (s *Slot) Cancel() {
	if s.t != nil {
		s.t.Stop()
		s.t = nil
	}
	s.armed = false
}

// Pending reports whether a callback is waiting to run.
func (s *Slot) Pending() bool { return s.armed }

// -- Manual --

type manualTimer struct {
	m        *Manual
	deadline time.Time
	seq      uint64
	fn       func()
	index    int
	stopped  bool
	fired    bool
}

func (t *manualTimer) Stop() bool {
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	if t.index >= 0 {
		heap.Remove(&t.m.queue, t.index)
	}
	return true
}

type timerQueue []*manualTimer

func (q timerQueue) Len() int { return len(q) }
func (q timerQueue) Less(i, j int) bool {
	if q[i].deadline.Equal(q[j].deadline) {
		return q[i].seq < q[j].seq
	}
	return q[i].deadline.Before(q[j].deadline)
}
func (q timerQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}
func (q *timerQueue) Push(x any) {
	t := x.(*manualTimer)
	t.index = len(*q)
	*q = append(*q, t)
}
func (q *timerQueue) Pop() any {
	old := *q
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.index = -1
	*q = old[:n-1]
	return t
}

// Manual is a deterministic scheduler driven by a virtual clock. Nothing runs
// until Advance is called. Tests and scenario replay use it.
type Manual struct {
	now   time.Time
	seq   uint64
	queue timerQueue
}

// NewManual returns a Manual whose clock starts at start.
func NewManual(start time.Time) *Manual { return &Manual{now: start} }

func (m *Manual) Now() time.Time { return m.now }

func (m *Manual) AfterFunc(d time.Duration, fn func()) Timer {
	if d < 0 {
		d = 0
	}
	m.seq++
	t := &manualTimer{m: m, deadline: m.now.Add(d), seq: m.seq, fn: fn}
	heap.Push(&m.queue, t)
	return t
}

// Advance moves the clock forward by d, running every timer that falls due in
// deadline order. Timers scheduled by callbacks run too if they fall due
// before the new time.
func (m *Manual) Advance(d time.Duration) {
	target := m.now.Add(d)
	for m.queue.Len() > 0 && !m.queue[0].deadline.After(target) {
		t := heap.Pop(&m.queue).(*manualTimer)
		m.now = t.deadline
		t.fired = true
		t.fn()
	}
	m.now = target
}

// Set moves the clock forward to t, running due timers. Earlier times are ignored.
func (m *Manual) Set(t time.Time) {
	if t.After(m.now) {
		m.Advance(t.Sub(m.now))
	}
}

// Pending is the number of timers waiting to fire.
func (m *Manual) Pending() int { return m.queue.Len() }

// -- Loop --

// Loop is a real-time scheduler. Timer callbacks and posted tasks run on the
// goroutine that calls Run.
type Loop struct {
	tasks chan func()
	once  sync.Once
	done  chan struct{}
}

// New returns a Loop with a task queue of the given depth.
func New(depth int) *Loop {
	if depth <= 0 {
		depth = 64
	}
	return &Loop{tasks: make(chan func(), depth), done: make(chan struct{})}
}

func (l *Loop) Now() time.Time { return time.Now() }

// Post queues fn to run on the loop. It returns false once the loop stopped.
func (l *Loop) Post(fn func()) bool {
	select {
	case <-l.done:
		return false
	default:
	}
	select {
	case l.tasks <- fn:
		return true
	case <-l.done:
		return false
	}
}

type loopTimer struct {
	t       *time.Timer
	stopped atomic.Bool
}

func (t *loopTimer) Stop() bool {
	t.t.Stop()
	return !t.stopped.Swap(true)
}

func (l *Loop) AfterFunc(d time.Duration, fn func()) Timer {
	lt := &loopTimer{}
	lt.t = time.AfterFunc(d, func() {
		l.Post(func() {
			// Stop may have raced with the wall-clock timer firing.
			if lt.stopped.Swap(true) {
				return
			}
			fn()
		})
	})
	return lt
}

// Run executes tasks until ctx is done. Pending tasks are dropped.
func (l *Loop) Run(ctx context.Context) error {
	defer l.once.Do(func() { close(l.done) })
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case fn := <-l.tasks:
			fn()
		}
	}
}
