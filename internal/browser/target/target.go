// internal/browser/target/target.go
// Package target provides weak, generation-counted handles to nodes of a
// visual tree. A Ref never keeps its node alive: once the node is freed the
// handle stops resolving, even if its slot has been reused.
package target

import (
	"errors"
	"fmt"
)

// ErrStale is returned when a Ref no longer names a live slot.
var ErrStale = errors.New("target: stale reference")

// Ref is a weak handle into an Arena. The zero Ref names nothing.
type Ref struct {
	Index uint32
	Gen   uint32
}

// None is the empty reference.
var None = Ref{}

// IsZero reports whether r is the empty reference.
func (r Ref) IsZero() bool { return r.Gen == 0 }

func (r Ref) String() string {
	if r.IsZero() {
		return "none"
	}
	return fmt.Sprintf("%d:%d", r.Index, r.Gen)
}

type slot[T any] struct {
	gen   uint32
	live  bool
	value T
}

// Arena stores values behind generation-counted refs. It is not safe for
// concurrent use; each viewport owns its own arena.
type Arena[T any] struct {
	slots []slot[T]
	free  []uint32
	live  int
}

// NewArena returns an empty arena.
func NewArena[T any]() *Arena[T] { return &Arena[T]{} }

// Alloc stores v and returns its handle.
func (a *Arena[T]) Alloc(v T) Ref {
	var idx uint32
	if n := len(a.free); n > 0 {
		idx = a.free[n-1]
		a.free = a.free[:n-1]
	} else {
		idx = uint32(len(a.slots))
		a.slots = append(a.slots, slot[T]{})
	}
	s := &a.slots[idx]
	s.gen++
	if s.gen == 0 {
		// Generation 0 is reserved for None.
		s.gen = 1
	}
	s.live = true
	s.value = v
	a.live++
	return Ref{Index: idx, Gen: s.gen}
}

func (a *Arena[T]) slot(r Ref) (*slot[T], bool) {
	if r.IsZero() || int(r.Index) >= len(a.slots) {
		return nil, false
	}
	s := &a.slots[r.Index]
	if !s.live || s.gen != r.Gen {
		return nil, false
	}
	return s, true
}

// Get returns the value behind r, or ok=false when r is stale.
func (a *Arena[T]) Get(r Ref) (v T, ok bool) {
	s, ok := a.slot(r)
	if !ok {
		return v, false
	}
	return s.value, true
}

// MustGet returns the value or ErrStale.
func (a *Arena[T]) MustGet(r Ref) (T, error) {
	v, ok := a.Get(r)
	if !ok {
		return v, fmt.Errorf("resolve %s: %w", r, ErrStale)
	}
	return v, nil
}

// Live reports whether r still resolves.
func (a *Arena[T]) Live(r Ref) bool {
	_, ok := a.slot(r)
	return ok
}

// Free releases r. Every outstanding copy of r becomes stale.
func (a *Arena[T]) Free(r Ref) bool {
	s, ok := a.slot(r)
	if !ok {
		return false
	}
	var zero T
	s.live = false
	s.value = zero
	a.free = append(a.free, r.Index)
	a.live--
	return true
}

// Len is the number of live values.
func (a *Arena[T]) Len() int { return a.live }

// Each calls fn for every live value in slot order until fn returns false.
func (a *Arena[T]) Each(fn func(Ref, T) bool) {
	for i := range a.slots {
		s := &a.slots[i]
		if !s.live {
			continue
		}
		if !fn(Ref{Index: uint32(i), Gen: s.gen}, s.value) {
			return
		}
	}
}
